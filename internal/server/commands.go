package server

import (
	"context"
	"errors"
	"fmt"

	"github.com/sirupsen/logrus"

	"waypoint-server/internal/domain"
	"waypoint-server/internal/engine"
	"waypoint-server/internal/engine/handlers"
	"waypoint-server/internal/engine/handlers/actions"
	"waypoint-server/pkg/api"
	"waypoint-server/pkg/logger"
)

var errAlreadyLoggedIn = errors.New("already logged in")

// commandHandlers - реестр команд, которые клиент может прислать после LOGIN
var commandHandlers = map[domain.ActionType]handlers.HandlerFunc{
	domain.ActionMove:     handlers.WithPayload(actions.HandleMove),
	domain.ActionMoveCell: handlers.WithPayload(actions.HandleMoveCell),
	domain.ActionAuto:     handlers.WithPayload(actions.HandleAuto),
	domain.ActionState:    handlers.WithEmptyPayload(actions.HandleState),
}

// execute выполняет разобранную команду в потоке симуляции и готовит ответ.
// STATE отвечает снимком, остальные - OK или ERROR.
func execute(ctx context.Context, sim *engine.Simulation, cmd domain.InternalCommand) api.ServerResponse {
	ctx, cancel := context.WithTimeout(ctx, commandTimeout)
	defer cancel()

	var (
		result handlers.Result
		err    error
	)

	handler, ok := commandHandlers[cmd.Action]
	switch {
	case cmd.Action == domain.ActionLogin:
		err = errAlreadyLoggedIn
	case !ok:
		err = fmt.Errorf("unknown action")
	default:
		err = sim.Do(ctx, func(w *engine.World) error {
			var herr error
			result, herr = handler(handlers.Context{World: w, Session: cmd.Session}, cmd.Payload)
			return herr
		})
	}

	if err != nil {
		logger.Log.WithFields(logrus.Fields{
			"session": cmd.Session,
			"action":  cmd.Action.String(),
		}).WithError(err).Debug("Command rejected")
		return api.ServerResponse{Type: api.TypeError, Action: cmd.Action.String(), Error: err.Error()}
	}
	if result.Reply != nil {
		return *result.Reply
	}
	return api.ServerResponse{Type: api.TypeOK, Action: cmd.Action.String()}
}
