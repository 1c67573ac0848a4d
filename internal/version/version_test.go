package version

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBuildID(t *testing.T) {
	tests := []struct {
		name      string
		date      string
		expected  int
		wantError bool
	}{
		{name: "epoch date", date: "2026-01-01", expected: 0},
		{name: "next day after epoch", date: "2026-01-02", expected: 1},
		{name: "one year later", date: "2027-01-01", expected: 365},
		{name: "leap year included", date: "2029-01-01", expected: 1096},
		{name: "invalid format", date: "invalid", wantError: true},
		{name: "empty date", date: "", wantError: true},
		{name: "before epoch", date: "2025-12-31", wantError: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := buildID(tt.date)
			if tt.wantError {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.expected, got)
		})
	}
}

func TestInfoAndString(t *testing.T) {
	old := [4]string{BuildDate, BuildCommit, BuildBranch, BuildCI}
	t.Cleanup(func() {
		BuildDate, BuildCommit, BuildBranch, BuildCI = old[0], old[1], old[2], old[3]
	})

	BuildDate, BuildCommit, BuildBranch, BuildCI = "2026-02-01", "abc123", "main", ""
	info := Info()
	assert.True(t, info.Calculated)
	assert.Equal(t, 31, info.BuildID)
	assert.NotEmpty(t, info.GoVersion)
	assert.Contains(t, String(), "commit[abc123] branch[main] ci[local]")

	BuildDate = ""
	info = Info()
	assert.False(t, info.Calculated)
	assert.Contains(t, info.Error, "empty")
	assert.Contains(t, String(), "unknown")
}
