package server

import (
	"context"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"waypoint-server/internal/domain"
	"waypoint-server/internal/engine"
	"waypoint-server/internal/network"
	"waypoint-server/pkg/logger"
)

func TestMain(m *testing.M) {
	logger.Init()
	os.Exit(m.Run())
}

var testMap = []string{
	"..........",
	"..........",
	"#########.",
	"..........",
}

type fixture struct {
	sim  *engine.Simulation
	hub  *network.Broadcaster
	grid *domain.Grid
}

// newFixture поднимает мир с двумя местами и двумя агентами и запускает цикл
func newFixture(t *testing.T) *fixture {
	t.Helper()

	geo, err := domain.NewGeoTransform(4, 10,
		domain.LatLon{Lat: 49.004, Lon: 8.010},
		domain.LatLon{Lat: 49.000, Lon: 8.010},
		domain.LatLon{Lat: 49.000, Lon: 8.000},
	)
	require.NoError(t, err)
	grid, err := domain.ParseGrid(testMap, geo)
	require.NoError(t, err)

	world := engine.NewWorld("test", grid, engine.NewGradientCache(grid, nil, engine.CacheConfig{Size: 4}), 1)
	_, err = world.CreatePlace("shop", "shop", domain.Position{Row: 0, Col: 6})
	require.NoError(t, err)
	_, err = world.CreatePlace("door", "door", domain.Position{Row: 3, Col: 0})
	require.NoError(t, err)
	_, err = world.AddAgent("walker", domain.Position{Row: 0, Col: 0}, 1)
	require.NoError(t, err)
	_, err = world.AddAgent("sitter", domain.Position{Row: 1, Col: 1}, 1)
	require.NoError(t, err)

	hub := network.NewBroadcaster()
	sim := engine.NewSimulation(world, hub, 10*time.Millisecond)

	ctx, cancel := context.WithCancel(context.Background())
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		sim.Run(ctx)
	}()
	t.Cleanup(func() {
		cancel()
		wg.Wait()
	})

	return &fixture{sim: sim, hub: hub, grid: grid}
}

// agent читает копию агента через цикл симуляции
func (f *fixture) agent(t *testing.T, name string) engine.Agent {
	t.Helper()
	var out engine.Agent
	err := f.sim.Do(context.Background(), func(w *engine.World) error {
		a, err := w.Agent(name)
		if err != nil {
			return err
		}
		out = *a
		return nil
	})
	require.NoError(t, err)
	return out
}
