package engine

import (
	"fmt"

	"github.com/sirupsen/logrus"

	"waypoint-server/pkg/logger"
	"waypoint-server/pkg/mapgen"
)

// MapFromConfig загружает карту из файла или генерирует её по сиду
func MapFromConfig(cfg Config) (*mapgen.Map, error) {
	if cfg.MapFile != "" {
		m, err := mapgen.LoadFile(cfg.MapFile)
		if err != nil {
			return nil, fmt.Errorf("load map: %w", err)
		}
		if cfg.Origin != nil {
			m.Calibration = mapgen.Calibrate(m.Width, m.Height, *cfg.Origin, cfg.CellDeg)
		}
		return m, nil
	}

	return mapgen.Generate(cfg.Seed, mapgen.Options{
		Width:      cfg.Width,
		Height:     cfg.Height,
		OpenField:  cfg.OpenField,
		Boulders:   cfg.Boulders,
		PlaceTypes: cfg.PlaceTypes,
		Origin:     cfg.Origin,
		CellDeg:    cfg.CellDeg,
	})
}

// BuildWorld собирает мир по карте: сетка, кэш градиентов, места из заготовок,
// агенты в случайных свободных клетках и поведение "экскурсия".
// store может быть nil (градиенты только в памяти).
func BuildWorld(cfg Config, m *mapgen.Map, store GradientStore) (*World, error) {
	grid, err := m.Grid()
	if err != nil {
		return nil, err
	}

	cache := NewGradientCache(grid, store, cfg.Cache)
	if cfg.Cache.Prefill {
		// С диска поднимаем то, что посчитано в прошлых запусках
		if _, err := cache.Prewarm(nil, cfg.Cache.Size); err != nil {
			logger.Log.WithError(err).Warn("Prewarm finished with errors")
		}
	}

	w := NewWorld(cfg.WorldName, grid, cache, cfg.Seed)

	// 1. Места
	for _, seed := range m.Places {
		if _, err := w.CreatePlace(seed.Type, seed.Name, seed.Pos); err != nil {
			return nil, fmt.Errorf("place %q: %w", seed.Name, err)
		}
	}

	// 2. Агенты
	open := m.OpenCells()
	if cfg.Agents > 0 && len(open) == 0 {
		return nil, fmt.Errorf("map has no open cells for agents")
	}
	for i := 0; i < cfg.Agents; i++ {
		pos := open[w.Rand().Intn(len(open))]
		if _, err := w.AddAgent("", pos, cfg.AgentSpeed); err != nil {
			return nil, err
		}
	}

	// 3. Поведение: без мест агентам некуда ходить, пусть стоят
	if len(w.PlaceTypes()) > 0 {
		w.SetBehavior(NewTourBehavior(""))
	}

	logger.Log.WithFields(logrus.Fields{
		"world":  w.Name,
		"size":   fmt.Sprintf("%dx%d", grid.Width(), grid.Height()),
		"places": len(m.Places),
		"agents": cfg.Agents,
		"geo":    grid.Geo() != nil,
	}).Info("World built")
	return w, nil
}
