package actions

import (
	"waypoint-server/internal/domain"
	"waypoint-server/internal/engine/handlers"
	"waypoint-server/pkg/api"
)

// HandleMove отправляет агента в географическую точку
func HandleMove(ctx handlers.Context, p api.MovePayload) (handlers.Result, error) {
	if _, err := ctx.World.MoveAgentTo(p.Agent, p.Lat, p.Lon); err != nil {
		return handlers.EmptyResult(), err
	}
	return handlers.EmptyResult(), nil
}

// HandleMoveCell отправляет агента в клетку сетки
func HandleMoveCell(ctx handlers.Context, p api.MoveCellPayload) (handlers.Result, error) {
	if _, err := ctx.World.MoveAgentToCell(p.Agent, domain.Position{Row: p.Row, Col: p.Col}); err != nil {
		return handlers.EmptyResult(), err
	}
	return handlers.EmptyResult(), nil
}
