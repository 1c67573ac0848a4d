package api

import (
	"encoding/json"
	"fmt"

	"github.com/invopop/jsonschema"
)

// protocolDefinitions собирает все сообщения протокола в одну схему
type protocolDefinitions struct {
	Command  ClientCommand   `json:"command"`
	Response ServerResponse  `json:"response"`
	Move     MovePayload     `json:"move"`
	MoveCell MoveCellPayload `json:"moveCell"`
	Auto     AutoPayload     `json:"auto"`
}

// Schema строит JSON Schema протокола (команды, полезные нагрузки, ответы).
func Schema() *jsonschema.Schema {
	reflector := jsonschema.Reflector{
		AllowAdditionalProperties: true,
	}
	schema := reflector.Reflect(new(protocolDefinitions))
	schema.Title = "Waypoint protocol"
	schema.Description = "Messages accepted and emitted by the /ws endpoint"
	return schema
}

// SchemaJSON возвращает схему в виде отформатированного JSON.
func SchemaJSON() ([]byte, error) {
	data, err := json.MarshalIndent(Schema(), "", "  ")
	if err != nil {
		return nil, fmt.Errorf("marshal schema: %w", err)
	}
	return data, nil
}
