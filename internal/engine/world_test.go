package engine

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"waypoint-server/internal/domain"
)

func newTestWorld(t *testing.T, geo *domain.GeoTransform, lines ...string) *World {
	t.Helper()
	grid, err := domain.ParseGrid(lines, geo)
	require.NoError(t, err)
	return NewWorld("test", grid, NewGradientCache(grid, nil, CacheConfig{Size: 8}), 1)
}

var corridorMap = []string{
	"..........",
	"..........",
	"#########.",
	"..........",
}

func TestWorld_CreatePlace(t *testing.T) {
	w := newTestWorld(t, nil, corridorMap...)

	p, err := w.CreatePlace("shop", "", domain.Position{Row: 0, Col: 6})
	require.NoError(t, err)
	assert.Equal(t, "shop-0.6", p.Name)
	assert.False(t, p.IsTemporary())
	assert.Equal(t, "0.6", p.Key())
	assert.True(t, w.Cache().InMemory("0.6"), "long-lived place registers its field in the cache")

	_, err = w.CreatePlace("shop", "", domain.Position{Row: 2, Col: 0})
	assert.ErrorIs(t, err, domain.ErrInvalidDestination)

	_, err = w.CreatePlace("shop", "far", domain.Position{Row: 9, Col: 0})
	assert.ErrorIs(t, err, domain.ErrOutOfBounds)

	_, err = w.CreatePlace("shop", "shop-0.6", domain.Position{Row: 1, Col: 1})
	assert.Error(t, err, "duplicate names are rejected")

	// Второе место в той же клетке делит градиент
	q, err := w.CreatePlace("cafe", "corner", domain.Position{Row: 0, Col: 6})
	require.NoError(t, err)
	assert.Equal(t, uint64(1), w.Cache().Stats().Computes)

	g1, err := p.Gradient()
	require.NoError(t, err)
	g2, err := q.Gradient()
	require.NoError(t, err)
	assert.Same(t, g1, g2)

	assert.Equal(t, []string{"cafe", "shop"}, w.PlaceTypes())
}

func TestWorld_CreateTemporaryPlace(t *testing.T) {
	w := newTestWorld(t, nil, corridorMap...)

	p, err := w.CreateTemporaryPlace(TemporaryPlaceType, "", domain.Position{Row: 0, Col: 0}, domain.Position{Row: 0, Col: 3})
	require.NoError(t, err)
	assert.True(t, p.IsTemporary())
	assert.Equal(t, "Unknown-0.0", p.Name)

	g, err := p.Gradient()
	require.NoError(t, err)
	assert.False(t, g.Complete())
	assert.Zero(t, w.Cache().Stats().Computes, "temporary places never touch the cache")

	d, err := p.DistanceFrom(domain.Position{Row: 0, Col: 3})
	require.NoError(t, err)
	assert.Equal(t, 30, d)

	_, err = w.PlaceByName("Unknown-0.0")
	assert.ErrorIs(t, err, domain.ErrPlaceNotFound, "temporary places are not registered")

	_, err = w.CreateTemporaryPlace(TemporaryPlaceType, "", domain.Position{Row: 2, Col: 3}, domain.Position{})
	assert.ErrorIs(t, err, domain.ErrInvalidDestination)
}

func TestWorld_TemporaryPlaceUnreachable(t *testing.T) {
	w := newTestWorld(t, nil,
		".....",
		"#####",
		".....",
	)
	_, err := w.CreateTemporaryPlace(TemporaryPlaceType, "", domain.Position{Row: 0, Col: 0}, domain.Position{Row: 2, Col: 0})
	assert.ErrorIs(t, err, domain.ErrUnreachable)
}

func TestWorld_Lookups(t *testing.T) {
	w := newTestWorld(t, nil, corridorMap...)

	below, err := w.CreatePlace("door", "below", domain.Position{Row: 3, Col: 0})
	require.NoError(t, err)
	above, err := w.CreatePlace("door", "above", domain.Position{Row: 0, Col: 6})
	require.NoError(t, err)
	_, err = w.CreatePlace("bench", "bench", domain.Position{Row: 1, Col: 2})
	require.NoError(t, err)

	from := domain.Position{Row: 1, Col: 0}

	t.Run("By name and position", func(t *testing.T) {
		p, err := w.PlaceByName("above")
		require.NoError(t, err)
		assert.Same(t, above, p)

		p, err = w.PlaceAt(domain.Position{Row: 3, Col: 0})
		require.NoError(t, err)
		assert.Same(t, below, p)

		_, err = w.PlaceAt(domain.Position{Row: 3, Col: 3})
		assert.ErrorIs(t, err, domain.ErrPlaceNotFound)
	})

	t.Run("Of type", func(t *testing.T) {
		doors, err := w.PlacesOfType("door")
		require.NoError(t, err)
		assert.Equal(t, []*Place{below, above}, doors)

		_, err = w.PlacesOfType("castle")
		assert.ErrorIs(t, err, domain.ErrPlaceTypeUndefined)
	})

	t.Run("Nearest by path, not by straight line", func(t *testing.T) {
		// "below" в двух клетках по прямой, но стена заставляет обходить через правый край
		p, err := w.NearestPlaceOfType("door", from)
		require.NoError(t, err)
		assert.Same(t, above, p)
	})

	t.Run("Near by straight line", func(t *testing.T) {
		near, err := w.FindPlacesNear(from, 3)
		require.NoError(t, err)
		assert.Equal(t, []*Place{below, w.placesByName["bench"]}, near)

		_, err = w.FindPlacesNear(domain.Position{Row: 3, Col: 9}, 1)
		assert.ErrorIs(t, err, domain.ErrNothingNear)
	})

	t.Run("Random of type", func(t *testing.T) {
		for i := 0; i < 10; i++ {
			p, err := w.RandomPlaceOfType("door")
			require.NoError(t, err)
			assert.Equal(t, "door", p.Type)
		}
	})
}

func TestWorld_Agents(t *testing.T) {
	w := newTestWorld(t, nil, corridorMap...)

	_, err := w.AddAgent("", domain.Position{Row: 2, Col: 2}, 1)
	assert.ErrorIs(t, err, domain.ErrBlocked)

	a1, err := w.AddAgent("", domain.Position{Row: 0, Col: 0}, 1)
	require.NoError(t, err)
	assert.Equal(t, "agent-1", a1.Name)
	assert.True(t, a1.AtDestination())

	bob, err := w.AddAgent("bob", domain.Position{Row: 1, Col: 1}, 2)
	require.NoError(t, err)
	_, err = w.AddAgent("bob", domain.Position{Row: 1, Col: 2}, 1)
	assert.Error(t, err)

	ghost, err := w.AddAgent("ghost", domain.Position{Row: 0, Col: 1}, 1)
	require.NoError(t, err)
	ghost.Visible = false

	assert.Equal(t, []*Agent{a1, bob, ghost}, w.Agents())

	near, err := w.FindAgentsNear(domain.Position{Row: 0, Col: 0}, 2, true)
	require.NoError(t, err)
	assert.Equal(t, []*Agent{a1, bob}, near)

	near, err = w.FindAgentsNear(domain.Position{Row: 0, Col: 0}, 2, false)
	require.NoError(t, err)
	assert.Len(t, near, 3)

	_, err = w.FindAgentsNear(domain.Position{Row: 3, Col: 9}, 2, false)
	assert.ErrorIs(t, err, domain.ErrNothingNear)

	require.NoError(t, w.RemoveAgent("ghost"))
	_, err = w.Agent("ghost")
	assert.ErrorIs(t, err, domain.ErrAgentNotFound)
}

func TestWorld_TickArrival(t *testing.T) {
	w := newTestWorld(t, nil, corridorMap...)

	target, err := w.CreatePlace("door", "", domain.Position{Row: 3, Col: 0})
	require.NoError(t, err)
	a, err := w.AddAgent("walker", domain.Position{Row: 0, Col: 0}, 3)
	require.NoError(t, err)
	a.SetDestination(target)
	assert.False(t, a.AtDestination())

	var arrivedAt int64
	for i := 0; i < 20 && arrivedAt == 0; i++ {
		report := w.Tick()
		assert.Empty(t, report.Failures)
		if len(report.Arrived) > 0 {
			assert.Equal(t, []string{"walker"}, report.Arrived)
			arrivedAt = report.Tick
		}
		assert.False(t, w.Grid().IsObstacle(a.Pos))
	}

	require.NotZero(t, arrivedAt)
	assert.Equal(t, target.Pos, a.Pos)
	assert.True(t, a.AtDestination())
	assert.Nil(t, a.Destination(), "arrival clears the destination")
	assert.Same(t, target, a.LastPlace())

	// После прибытия агент стоит на месте
	report := w.Tick()
	assert.Zero(t, report.Moved)
}

func TestAgent_StaleGridBlocked(t *testing.T) {
	w := newTestWorld(t, nil, "........")

	target, err := w.CreatePlace("end", "", domain.Position{Row: 0, Col: 7})
	require.NoError(t, err)
	a, err := w.AddAgent("a", domain.Position{Row: 0, Col: 0}, 4)
	require.NoError(t, err)
	a.SetDestination(target)

	stale := w.Grid().WithObstacles(domain.Position{Row: 0, Col: 2})
	res, err := a.Step(stale)
	assert.ErrorIs(t, err, domain.ErrBlocked)
	assert.Equal(t, 1, res.Steps)
	assert.Equal(t, domain.Position{Row: 0, Col: 1}, a.Pos)
	assert.Same(t, target, a.Destination(), "blocked agent keeps its destination")

	// На актуальной карте следующий тик продолжает путь
	_, err = a.Step(w.Grid())
	require.NoError(t, err)
	assert.Equal(t, domain.Position{Row: 0, Col: 5}, a.Pos)
}

func TestWorld_TickSurvivesFailures(t *testing.T) {
	w := newTestWorld(t, nil,
		"......",
		"######",
		"......",
	)
	target, err := w.CreatePlace("exit", "", domain.Position{Row: 0, Col: 5})
	require.NoError(t, err)

	stuck, err := w.AddAgent("a-stuck", domain.Position{Row: 2, Col: 0}, 1)
	require.NoError(t, err)
	stuck.SetDestination(target)
	free, err := w.AddAgent("b-free", domain.Position{Row: 0, Col: 0}, 1)
	require.NoError(t, err)
	free.SetDestination(target)

	report := w.Tick()
	require.Len(t, report.Failures, 1)
	assert.Equal(t, "a-stuck", report.Failures[0].Agent)
	assert.ErrorIs(t, report.Failures[0].Err, domain.ErrUnreachable)
	assert.Equal(t, 1, report.Moved)
	assert.Equal(t, domain.Position{Row: 0, Col: 1}, free.Pos)
}

func TestWorld_MoveAgentTo(t *testing.T) {
	geo, err := domain.NewGeoTransform(4, 10,
		domain.LatLon{Lat: 49.004, Lon: 8.010},
		domain.LatLon{Lat: 49.000, Lon: 8.010},
		domain.LatLon{Lat: 49.000, Lon: 8.000},
	)
	require.NoError(t, err)
	w := newTestWorld(t, geo, corridorMap...)

	a, err := w.AddAgent("visitor", domain.Position{Row: 0, Col: 0}, 2)
	require.NoError(t, err)

	goal := domain.Position{Row: 3, Col: 2}
	lat, lon, err := w.Grid().ToGeo(goal)
	require.NoError(t, err)

	p, err := w.MoveAgentTo("visitor", lat, lon)
	require.NoError(t, err)
	assert.True(t, p.IsTemporary())
	assert.Equal(t, goal, p.Pos)
	assert.Equal(t, TemporaryPlaceType, p.Type)
	assert.True(t, a.Controlled)
	assert.Same(t, p, a.Destination())

	for i := 0; i < 30 && !a.AtDestination(); i++ {
		report := w.Tick()
		require.Empty(t, report.Failures)
	}
	assert.Equal(t, goal, a.Pos)

	_, err = w.MoveAgentTo("nobody", lat, lon)
	assert.ErrorIs(t, err, domain.ErrAgentNotFound)

	_, err = w.MoveAgentTo("visitor", 10, 10)
	assert.ErrorIs(t, err, domain.ErrOutOfBounds)

	// Без калибровки географические команды не работают
	plain := newTestWorld(t, nil, corridorMap...)
	_, err = plain.AddAgent("x", domain.Position{}, 1)
	require.NoError(t, err)
	_, err = plain.MoveAgentTo("x", lat, lon)
	assert.ErrorIs(t, err, domain.ErrNoCalibration)
}

func TestWorld_TourBehavior(t *testing.T) {
	w := newTestWorld(t, nil, corridorMap...)
	_, err := w.CreatePlace("stop", "", domain.Position{Row: 0, Col: 9})
	require.NoError(t, err)
	_, err = w.CreatePlace("stop", "", domain.Position{Row: 3, Col: 0})
	require.NoError(t, err)

	tour := NewTourBehavior("stop")
	tour.Dwell = 2
	w.SetBehavior(tour)

	auto, err := w.AddAgent("auto", domain.Position{Row: 1, Col: 4}, 2)
	require.NoError(t, err)
	manual, err := w.AddAgent("manual", domain.Position{Row: 1, Col: 5}, 2)
	require.NoError(t, err)
	require.NoError(t, w.SetAutopilot("manual", false))

	w.Tick()
	assert.NotNil(t, auto.Destination(), "idle agent gets a destination")
	assert.Nil(t, manual.Destination(), "controlled agent is left alone")
	assert.Equal(t, domain.Position{Row: 1, Col: 5}, manual.Pos)

	arrivals := 0
	for i := 0; i < 100; i++ {
		arrivals += len(w.Tick().Arrived)
		assert.False(t, w.Grid().IsObstacle(auto.Pos))
	}
	assert.Greater(t, arrivals, 1, "agent keeps touring between stops")
}
