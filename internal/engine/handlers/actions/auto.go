package actions

import (
	"waypoint-server/internal/engine/handlers"
	"waypoint-server/pkg/api"
)

// HandleAuto возвращает агента поведению или забирает под внешнее управление
func HandleAuto(ctx handlers.Context, p api.AutoPayload) (handlers.Result, error) {
	return handlers.EmptyResult(), ctx.World.SetAutopilot(p.Agent, p.Auto)
}
