package domain

import "encoding/json"

// InternalCommand - команда, уже разобранная транспортом.
// Исполняется только в потоке симуляции.
type InternalCommand struct {
	Action  ActionType      // Число! Быстро и безопасно.
	Session string          // Кто прислал (для ответа)
	Payload json.RawMessage // Сырые данные (парсятся обработчиком)
}
