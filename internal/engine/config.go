package engine

import (
	"fmt"
	"time"

	"waypoint-server/internal/domain"
	"waypoint-server/pkg/mapgen"
)

// Значения по умолчанию
const (
	DefaultCacheSize    = 100
	DefaultTickInterval = 200 * time.Millisecond
	DefaultGradientPath = "gradients"
	DefaultWorldName    = "default"
	DefaultAgentCount   = 10
	DefaultAgentSpeed   = 1
)

// CacheConfig - параметры кэша градиентов. Задаются один раз на мир и дальше не меняются.
type CacheConfig struct {
	// Size - сколько градиентов держать в памяти
	Size int
	// Prefill - при старте загрузить кэш с диска / посчитать градиенты мест заранее
	Prefill bool
}

// Config хранит параметры запуска симуляции
type Config struct {
	// WorldName - имя мира, оно же подкаталог в GradientPath
	WorldName string

	// Seed - мастер-зерно: карта, стартовые позиции и поведение агентов.
	Seed int64

	// MapFile - текстовая карта ('#' - стена). Пусто - генерировать.
	MapFile string
	// Размер генерируемой карты
	Width, Height int
	// OpenField - открытая местность вместо комнат; Boulders - валуны по шуму
	OpenField bool
	Boulders  bool
	// PlaceTypes - типы мест для генератора
	PlaceTypes []string

	// Origin - левый нижний угол карты. nil - без географической привязки.
	Origin  *domain.LatLon
	CellDeg float64

	// GradientPath - корень долговременного хранилища. Пусто - только память.
	GradientPath string

	Cache CacheConfig

	TickInterval time.Duration
	Agents       int
	AgentSpeed   int
}

// NewConfig создает конфиг по умолчанию (случайный сид)
func NewConfig() Config {
	return Config{
		WorldName:    DefaultWorldName,
		Seed:         time.Now().UnixNano(),
		Width:        mapgen.DefaultWidth,
		Height:       mapgen.DefaultHeight,
		Boulders:     true,
		PlaceTypes:   mapgen.DefaultPlaceTypes,
		Origin:       &domain.LatLon{Lat: 49.0069, Lon: 8.4037},
		CellDeg:      0.00005,
		GradientPath: DefaultGradientPath,
		Cache: CacheConfig{
			Size: DefaultCacheSize,
		},
		TickInterval: DefaultTickInterval,
		Agents:       DefaultAgentCount,
		AgentSpeed:   DefaultAgentSpeed,
	}
}

// Validate проверяет значения после разбора флагов и окружения
func (c Config) Validate() error {
	if c.WorldName == "" {
		return fmt.Errorf("world name is empty")
	}
	if c.Cache.Size <= 0 {
		return fmt.Errorf("cache size must be positive, got %d", c.Cache.Size)
	}
	if c.TickInterval <= 0 {
		return fmt.Errorf("tick interval must be positive, got %s", c.TickInterval)
	}
	if c.MapFile == "" && (c.Width < 10 || c.Height < 10) {
		return fmt.Errorf("generated map too small: %dx%d", c.Width, c.Height)
	}
	if c.Origin != nil && c.CellDeg <= 0 {
		return fmt.Errorf("cell size must be positive, got %g", c.CellDeg)
	}
	if c.Agents < 0 || c.AgentSpeed < 1 {
		return fmt.Errorf("invalid agents %d / speed %d", c.Agents, c.AgentSpeed)
	}
	return nil
}
