package network

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"waypoint-server/pkg/api"
)

func TestBroadcaster_SendAndBroadcast(t *testing.T) {
	b := NewBroadcaster()
	a := b.Register("a")
	c := b.Register("c")

	assert.Equal(t, 2, b.SubscriberCount())
	assert.True(t, b.HasSubscriber("a"))

	assert.Equal(t, 2, b.Broadcast(api.ServerResponse{Type: api.TypeUpdate, Tick: 1}))
	assert.Equal(t, int64(1), (<-a).Tick)
	assert.Equal(t, int64(1), (<-c).Tick)

	assert.True(t, b.SendTo("c", api.ServerResponse{Type: api.TypeError, Error: "boom"}))
	assert.False(t, b.SendTo("nobody", api.ServerResponse{}))
	msg := <-c
	assert.Equal(t, "boom", msg.Error)
	assert.Empty(t, a)
}

func TestBroadcaster_ReRegisterClosesOld(t *testing.T) {
	b := NewBroadcaster()
	first := b.Register("s")
	second := b.Register("s")

	_, open := <-first
	assert.False(t, open, "old channel must be closed")

	// Unregister со старым каналом не трогает новую подписку
	b.Unregister("s", first)
	assert.True(t, b.HasSubscriber("s"))

	b.Unregister("s", second)
	assert.False(t, b.HasSubscriber("s"))
	_, open = <-second
	assert.False(t, open)
}

func TestBroadcaster_SlowSubscriberDrops(t *testing.T) {
	b := NewBroadcaster()
	ch := b.Register("slow")

	for i := 0; i < subscriberBuffer+5; i++ {
		b.Broadcast(api.ServerResponse{Tick: int64(i)})
	}
	require.Len(t, ch, subscriberBuffer)
	assert.Equal(t, uint64(5), b.Dropped())

	// Очередь сохраняет самые первые снимки
	assert.Equal(t, int64(0), (<-ch).Tick)
}
