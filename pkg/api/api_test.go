package api

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPayloadValidation(t *testing.T) {
	tests := []struct {
		name    string
		payload Validator
		wantErr bool
	}{
		{"Move ok", MovePayload{Agent: "a", Lat: 49.4, Lon: 8.6}, false},
		{"Move without agent", MovePayload{Lat: 1, Lon: 1}, true},
		{"Move bad latitude", MovePayload{Agent: "a", Lat: 91}, true},
		{"Move bad longitude", MovePayload{Agent: "a", Lon: -181}, true},
		{"Cell ok", MoveCellPayload{Agent: "a", Row: 0, Col: 3}, false},
		{"Cell negative", MoveCellPayload{Agent: "a", Row: -1}, true},
		{"Auto ok", AutoPayload{Agent: "a", Auto: true}, false},
		{"Auto without agent", AutoPayload{}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.payload.Validate()
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestClientCommandDecoding(t *testing.T) {
	raw := `{"action":"MOVE","payload":{"agent":"bob","lat":49.41,"lon":8.69}}`

	var cmd ClientCommand
	require.NoError(t, json.Unmarshal([]byte(raw), &cmd))
	assert.Equal(t, "MOVE", cmd.Action)

	var p MovePayload
	require.NoError(t, json.Unmarshal(cmd.Payload, &p))
	assert.Equal(t, "bob", p.Agent)
	assert.InDelta(t, 49.41, p.Lat, 1e-9)
}

func TestSchemaListsActions(t *testing.T) {
	data, err := SchemaJSON()
	require.NoError(t, err)

	s := string(data)
	for _, action := range []string{"LOGIN", "MOVE", "MOVE_CELL", "AUTO", "STATE"} {
		assert.Contains(t, s, `"`+action+`"`)
	}
	assert.Contains(t, s, "Waypoint protocol")
	assert.Contains(t, s, "MovePayload")
}
