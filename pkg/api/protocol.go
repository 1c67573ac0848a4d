package api

import (
	"encoding/json"
)

// Типы сообщений сервера
const (
	TypeUpdate = "UPDATE"
	TypeError  = "ERROR"
	TypeOK     = "OK"
)

// --- СЕРВЕР -> КЛИЕНТ ---

// ServerResponse это корневой объект, который сервер отправляет клиенту.
// UPDATE - снимок мира после тика, ERROR/OK - ответ на команду.
type ServerResponse struct {
	// Type тип сообщения: UPDATE, ERROR или OK.
	Type string `json:"type"`

	// Tick номер тика симуляции, после которого снят снимок.
	Tick int64 `json:"tick"`

	// Grid метаданные карты.
	Grid *GridMeta `json:"grid,omitempty"`

	// Agents все видимые агенты, по имени.
	Agents []AgentView `json:"agents,omitempty"`

	// Action команда, на которую отвечает ERROR/OK.
	Action string `json:"action,omitempty"`

	// Error текст ошибки для ERROR.
	Error string `json:"error,omitempty"`
}

// GridMeta содержит размеры карты, чтобы клиент подготовил сетку.
type GridMeta struct {
	Width      int  `json:"w"`
	Height     int  `json:"h"`
	Calibrated bool `json:"calibrated"` // Есть географическая привязка
}

// CellView - клетка сетки
type CellView struct {
	Row int `json:"row"`
	Col int `json:"col"`
}

// GeoView - географическая точка
type GeoView struct {
	Lat float64 `json:"lat"`
	Lon float64 `json:"lon"`
}

// AgentView это DTO для агента.
type AgentView struct {
	Name   string   `json:"name"`
	Pos    CellView `json:"pos"`
	Geo    *GeoView `json:"geo,omitempty"`
	Facing string   `json:"facing"`
	Speed  int      `json:"speed"`

	// Destination имя места назначения (пусто, если агент стоит).
	Destination   string `json:"destination,omitempty"`
	AtDestination bool   `json:"atDestination"`

	// Controlled true, если агентом управляют извне (автопилот выключен).
	Controlled bool `json:"controlled"`
}

// PlaceView это DTO для места назначения.
type PlaceView struct {
	Name      string   `json:"name"`
	Type      string   `json:"type"`
	Pos       CellView `json:"pos"`
	Geo       *GeoView `json:"geo,omitempty"`
	Temporary bool     `json:"temporary"`
}

// CacheView - статистика кэша градиентов
type CacheView struct {
	Size      int      `json:"size"`
	Capacity  int      `json:"capacity"`
	Hits      uint64   `json:"hits"`
	Loads     uint64   `json:"loads"`
	Computes  uint64   `json:"computes"`
	Evictions uint64   `json:"evictions"`
	Stored    int      `json:"stored"`
	Cached    []string `json:"cached"`
}

// GradientView - матрица градиента для отладки. Недостижимые клетки = -1.
type GradientView struct {
	Place    string    `json:"place"`
	Center   CellView  `json:"center"`
	Complete bool      `json:"complete"`
	Matrix   [][]int32 `json:"matrix"`
}

// --- КЛИЕНТ -> СЕРВЕР ---

// ClientCommand это корневой объект для всех сообщений от клиента к серверу.
type ClientCommand struct {
	// Token идентификатор клиента. Обязателен только для первого сообщения "LOGIN".
	Token string `json:"token,omitempty" jsonschema:"description=Client session token required by LOGIN"`

	// Action название действия, которое нужно выполнить.
	Action string `json:"action" jsonschema:"enum=LOGIN,enum=MOVE,enum=MOVE_CELL,enum=AUTO,enum=STATE"`

	// Payload JSON-объект с данными для действия. Его структура зависит от Action.
	Payload json.RawMessage `json:"payload,omitempty"`
}

// --- Payloads ---

// MovePayload отправляет агента в географическую точку.
type MovePayload struct {
	Agent string  `json:"agent" jsonschema:"minLength=1"`
	Lat   float64 `json:"lat" jsonschema:"minimum=-90,maximum=90"`
	Lon   float64 `json:"lon" jsonschema:"minimum=-180,maximum=180"`
}

// MoveCellPayload отправляет агента в клетку сетки.
type MoveCellPayload struct {
	Agent string `json:"agent" jsonschema:"minLength=1"`
	Row   int    `json:"row" jsonschema:"minimum=0"`
	Col   int    `json:"col" jsonschema:"minimum=0"`
}

// AutoPayload включает или выключает автопилот агента.
type AutoPayload struct {
	Agent string `json:"agent" jsonschema:"minLength=1"`
	Auto  bool   `json:"auto"`
}
