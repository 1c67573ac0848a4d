package handlers

import (
	"encoding/json"

	"waypoint-server/internal/engine"
	"waypoint-server/pkg/api"
)

// Context передает хендлеру состояние мира.
// Хендлер вызывается только в потоке симуляции и может менять мир.
type Context struct {
	World   *engine.World
	Session string // Кто прислал команду (для логов)
}

// Result - результат выполнения команды.
// Reply непустой, если команда отвечает данными (STATE), иначе клиенту уходит OK.
type Result struct {
	Reply *api.ServerResponse
}

// HandlerFunc - это контракт для любой команды (MOVE, AUTO, etc).
type HandlerFunc func(ctx Context, payload json.RawMessage) (Result, error)

// EmptyResult - вспомогательная функция для пустого успешного ответа
func EmptyResult() Result {
	return Result{}
}
