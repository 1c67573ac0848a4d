package domain

import "strings"

// ActionType - внутренний числовой идентификатор внешней команды
type ActionType uint8

const (
	ActionUnknown ActionType = iota
	ActionLogin
	ActionMove     // Агент -> географическая точка (lat, lon)
	ActionMoveCell // Агент -> клетка (row, col)
	ActionAuto     // Вернуть/забрать управление у поведенческой модели
	ActionState    // Запрос текущего снимка мира
)

// Маппинг для конвертации JSON -> Domain
var actionStringToCmd = map[string]ActionType{
	"LOGIN":     ActionLogin,
	"MOVE":      ActionMove,
	"MOVE_CELL": ActionMoveCell,
	"AUTO":      ActionAuto,
	"STATE":     ActionState,
}

// Маппинг для логов Domain -> String
var actionCmdToString = map[ActionType]string{
	ActionLogin:    "LOGIN",
	ActionMove:     "MOVE",
	ActionMoveCell: "MOVE_CELL",
	ActionAuto:     "AUTO",
	ActionState:    "STATE",
}

// ParseAction конвертирует строку из JSON в ActionType
func ParseAction(s string) ActionType {
	// Регистр не важен: TCP-клиенты пишут команды строчными
	if val, ok := actionStringToCmd[strings.ToUpper(s)]; ok {
		return val
	}
	return ActionUnknown
}

// String реализует интерфейс Stringer (для fmt.Printf)
func (a ActionType) String() string {
	if val, ok := actionCmdToString[a]; ok {
		return val
	}
	return "UNKNOWN"
}

// ActionNames возвращает имена всех известных команд (для схемы протокола)
func ActionNames() []string {
	return []string{"LOGIN", "MOVE", "MOVE_CELL", "AUTO", "STATE"}
}
