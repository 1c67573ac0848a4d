package actions

import (
	"waypoint-server/internal/engine"
	"waypoint-server/internal/engine/handlers"
)

// HandleState отвечает текущим снимком мира
func HandleState(ctx handlers.Context) (handlers.Result, error) {
	snap := engine.Snapshot(ctx.World)
	return handlers.Result{Reply: &snap}, nil
}
