package server

import (
	"bufio"
	"fmt"
	"net"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"waypoint-server/internal/domain"
)

type lineClient struct {
	conn   net.Conn
	reader *bufio.Reader
}

func dialLines(t *testing.T, f *fixture) *lineClient {
	t.Helper()
	ls := NewLineServer(f.sim, "127.0.0.1:0")
	require.NoError(t, ls.Start())
	t.Cleanup(ls.Stop)

	conn, err := net.Dial("tcp", ls.Addr().String())
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	return &lineClient{conn: conn, reader: bufio.NewReader(conn)}
}

func (c *lineClient) send(t *testing.T, line string) string {
	t.Helper()
	require.NoError(t, c.conn.SetDeadline(time.Now().Add(3*time.Second)))
	_, err := fmt.Fprintf(c.conn, "%s\n", line)
	require.NoError(t, err)
	reply, err := c.reader.ReadString('\n')
	require.NoError(t, err)
	return strings.TrimSuffix(reply, "\n")
}

func TestLineServer_Queries(t *testing.T) {
	f := newFixture(t)
	c := dialLines(t, f)

	assert.True(t, strings.HasPrefix(c.send(t, "time"), "OK "))

	lat, lon, err := f.grid.ToGeo(domain.Position{Row: 0, Col: 0})
	require.NoError(t, err)
	assert.Equal(t, "OK door", c.send(t, fmt.Sprintf("findnearplace %f %f 4", lat, lon)))
	assert.Equal(t, "OK door shop", c.send(t, "FindNearPlace sitter 20"))
	assert.True(t, strings.HasPrefix(c.send(t, "findnearplace sitter 0"), "ERROR "))

	assert.Equal(t, "OK sitter", c.send(t, "findnearagent walker 2"))
	assert.True(t, strings.HasPrefix(c.send(t, "findnearagent ghost 2"), "ERROR "))
}

func TestLineServer_Commands(t *testing.T) {
	f := newFixture(t)
	c := dialLines(t, f)

	assert.Equal(t, "ERROR usage: move <agent> <lat> <lon>", c.send(t, "move walker"))
	assert.Equal(t, "ERROR usage: move <agent> <lat> <lon>", c.send(t, "move walker north east"))
	assert.True(t, strings.HasPrefix(c.send(t, "move ghost 49.001 8.001"), "ERROR "))
	assert.True(t, strings.HasPrefix(c.send(t, "dance"), "ERROR unknown command"))

	assert.Equal(t, "OK", c.send(t, "hide sitter"))
	assert.False(t, f.agent(t, "sitter").Visible)
	assert.Equal(t, "OK", c.send(t, "unhide all"))
	assert.True(t, f.agent(t, "sitter").Visible)

	assert.Equal(t, "OK", c.send(t, "auto all false"))
	assert.True(t, f.agent(t, "sitter").Controlled)
	assert.Equal(t, "OK", c.send(t, "auto sitter true"))
	assert.False(t, f.agent(t, "sitter").Controlled)

	lat, lon, err := f.grid.ToGeo(domain.Position{Row: 1, Col: 5})
	require.NoError(t, err)
	assert.Equal(t, "OK", c.send(t, fmt.Sprintf("move walker %.9f %.9f", lat, lon)))
	require.Eventually(t, func() bool {
		return f.agent(t, "walker").Pos == domain.Position{Row: 1, Col: 5}
	}, 3*time.Second, 10*time.Millisecond)

	assert.Equal(t, "OK", c.send(t, "movecell walker 3 0"))
	assert.True(t, strings.HasPrefix(c.send(t, "movecell walker 2 0"), "ERROR "))
}
