package engine

import (
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"waypoint-server/internal/domain"
	"waypoint-server/internal/infrastructure/storage"
	"waypoint-server/internal/systems"
)

func openGrid(t *testing.T, width, height int) *domain.Grid {
	t.Helper()
	g, err := domain.NewGrid(width, height, nil, nil)
	require.NoError(t, err)
	return g
}

// countingCompute считает вызовы расчета
func countingCompute(counter *atomic.Int32) ComputeFunc {
	return func(grid *domain.Grid, center domain.Position) (*systems.Gradient, error) {
		counter.Add(1)
		return systems.ComputeFull(grid, center)
	}
}

// brokenStore ничего не хранит: каждая запись падает
type brokenStore struct{}

func (brokenStore) Has(string) bool                        { return false }
func (brokenStore) Load(string) (*systems.Gradient, error) { return nil, storage.ErrNotFound }
func (brokenStore) Save(*systems.Gradient) error           { return errors.New("disk full") }
func (brokenStore) Keys() []string                         { return nil }

func TestGradientCache_ComputeOnce(t *testing.T) {
	var computes atomic.Int32
	c := NewGradientCache(openGrid(t, 20, 20), nil, CacheConfig{Size: 4}, WithComputeFunc(countingCompute(&computes)))

	pos := domain.Position{Row: 5, Col: 7}
	first, err := c.GetOrCompute(pos)
	require.NoError(t, err)
	second, err := c.Get("5.7")
	require.NoError(t, err)

	assert.Equal(t, int32(1), computes.Load())
	assert.Equal(t, first.Matrix(), second.Matrix())
	assert.True(t, first.Complete())

	s := c.Stats()
	assert.Equal(t, uint64(1), s.Computes)
	assert.Equal(t, uint64(1), s.Hits)
	assert.Equal(t, 1, s.Size)
	assert.Equal(t, 4, s.Capacity)
}

func TestGradientCache_ConcurrentSameKey(t *testing.T) {
	var computes atomic.Int32
	release := make(chan struct{})
	slow := func(grid *domain.Grid, center domain.Position) (*systems.Gradient, error) {
		computes.Add(1)
		<-release
		return systems.ComputeFull(grid, center)
	}
	c := NewGradientCache(openGrid(t, 30, 30), nil, CacheConfig{Size: 2}, WithComputeFunc(slow))

	const callers = 16
	results := make([]*systems.Gradient, callers)
	var wg sync.WaitGroup
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			g, err := c.GetOrCompute(domain.Position{Row: 3, Col: 3})
			assert.NoError(t, err)
			results[i] = g
		}(i)
	}

	// Первый вызов ждет в расчете, остальные - его результат
	require.Eventually(t, func() bool { return computes.Load() == 1 }, time.Second, 10*time.Millisecond)
	close(release)
	wg.Wait()

	assert.Equal(t, int32(1), computes.Load())
	for _, g := range results {
		require.NotNil(t, g)
		assert.Equal(t, results[0].Matrix(), g.Matrix())
	}
}

func TestGradientCache_EvictionWithoutStoreRecomputes(t *testing.T) {
	var computes atomic.Int32
	c := NewGradientCache(openGrid(t, 10, 10), nil, CacheConfig{Size: 2}, WithComputeFunc(countingCompute(&computes)))

	for _, key := range []string{"0.0", "1.1", "2.2"} {
		_, err := c.Get(key)
		require.NoError(t, err)
	}

	s := c.Stats()
	assert.Equal(t, 2, s.Size)
	assert.Equal(t, uint64(1), s.Evictions)
	assert.False(t, c.Contains("0.0"), "least recently used entry must be gone")

	g, err := c.Get("0.0")
	require.NoError(t, err)
	assert.Equal(t, domain.Position{}, g.Center())
	assert.Equal(t, int32(4), computes.Load())
}

func TestGradientCache_EvictionReloadsFromStore(t *testing.T) {
	grid := openGrid(t, 12, 8)
	store, err := storage.NewGradientStore(t.TempDir(), "test")
	require.NoError(t, err)

	var computes atomic.Int32
	c := NewGradientCache(grid, store, CacheConfig{Size: 2}, WithComputeFunc(countingCompute(&computes)))

	keys := []string{"0.0", "3.4", "7.11", "5.5"}
	for _, key := range keys {
		_, err := c.Get(key)
		require.NoError(t, err)
	}
	require.Equal(t, int32(4), computes.Load())

	s := c.Stats()
	assert.Equal(t, 2, s.Size, "memory holds at most capacity fields")
	assert.Equal(t, uint64(2), s.Evictions)
	assert.Equal(t, 4, c.Stored())

	// Вытесненный ключ поднимается с диска, а не считается заново
	assert.False(t, c.InMemory("0.0"))
	assert.True(t, c.Contains("0.0"))

	got, err := c.Get("0.0")
	require.NoError(t, err)
	want, err := systems.ComputeFull(grid, domain.Position{})
	require.NoError(t, err)

	assert.Equal(t, want.Matrix(), got.Matrix())
	assert.Equal(t, int32(4), computes.Load())
	assert.Equal(t, uint64(1), c.Stats().Loads)
}

func TestGradientCache_PrewarmFromStore(t *testing.T) {
	grid := openGrid(t, 10, 10)
	dir := t.TempDir()

	store, err := storage.NewGradientStore(dir, "w")
	require.NoError(t, err)
	first := NewGradientCache(grid, store, CacheConfig{Size: 10})
	for _, key := range []string{"1.1", "2.2", "3.3", "4.4"} {
		_, err := first.Get(key)
		require.NoError(t, err)
	}

	// Новый запуск: кэш пуст, хранилище открыто заново
	reopened, err := storage.NewGradientStore(dir, "w")
	require.NoError(t, err)
	var computes atomic.Int32
	c := NewGradientCache(grid, reopened, CacheConfig{Size: 3, Prefill: true}, WithComputeFunc(countingCompute(&computes)))

	warmed, err := c.Prewarm(nil, 10)
	require.NoError(t, err)
	assert.Equal(t, 3, warmed, "prewarm is bounded by capacity")
	assert.Zero(t, computes.Load())
	assert.Equal(t, uint64(3), c.Stats().Loads)
	assert.ElementsMatch(t, []string{"1.1", "2.2", "3.3"}, c.Cached())
}

func TestGradientCache_PrewarmCandidates(t *testing.T) {
	var computes atomic.Int32
	c := NewGradientCache(openGrid(t, 10, 10), nil, CacheConfig{Size: 10}, WithComputeFunc(countingCompute(&computes)))

	candidates := []domain.Position{{Row: 0, Col: 0}, {Row: 20, Col: 20}, {Row: 1, Col: 1}, {Row: 2, Col: 2}}
	warmed, err := c.Prewarm(candidates, 2)

	assert.ErrorIs(t, err, domain.ErrOutOfBounds)
	assert.Equal(t, 2, warmed)
	assert.Equal(t, int32(2), computes.Load())
	assert.True(t, c.InMemory("0.0"))
	assert.True(t, c.InMemory("1.1"))
	assert.False(t, c.Contains("2.2"))
}

func TestGradientCache_SaveFailureIsNotFatal(t *testing.T) {
	c := NewGradientCache(openGrid(t, 5, 5), brokenStore{}, CacheConfig{Size: 2})

	g, err := c.Get("2.2")
	require.NoError(t, err)
	assert.Equal(t, "2.2", g.Key())
	assert.True(t, c.InMemory("2.2"))
}

func TestGradientCache_Errors(t *testing.T) {
	c := NewGradientCache(openGrid(t, 5, 5), nil, CacheConfig{})
	assert.Equal(t, DefaultCacheSize, c.Config().Size)

	_, err := c.GetOrCompute(domain.Position{Row: 5, Col: 0})
	assert.ErrorIs(t, err, domain.ErrOutOfBounds)

	_, err = c.Get("not-a-key")
	assert.Error(t, err)
	assert.Zero(t, c.Stats().Size)
}

func TestGradientCache_ContainsKeepsEvictionOrder(t *testing.T) {
	c := NewGradientCache(openGrid(t, 10, 10), nil, CacheConfig{Size: 2})

	_, err := c.Get("0.0")
	require.NoError(t, err)
	_, err = c.Get("1.1")
	require.NoError(t, err)

	// Проверки наличия не освежают "0.0": он по-прежнему вытесняется первым
	for i := 0; i < 3; i++ {
		assert.True(t, c.Contains("0.0"))
		assert.True(t, c.InMemory("0.0"))
	}
	_, err = c.Get("2.2")
	require.NoError(t, err)

	assert.False(t, c.InMemory("0.0"))
	assert.True(t, c.InMemory("1.1"))
	assert.True(t, c.InMemory("2.2"))
	assert.Equal(t, uint64(0), c.Stats().Hits)
}

func TestGradientCache_StoredFieldFromOtherGridIsRecomputed(t *testing.T) {
	base := t.TempDir()
	before := openGrid(t, 8, 6)
	after := before.WithObstacles(domain.Position{Row: 1, Col: 0}, domain.Position{Row: 1, Col: 1}, domain.Position{Row: 0, Col: 1})
	require.NotEqual(t, before.Fingerprint(), after.Fingerprint())

	store, err := storage.NewGradientStore(base, "reused")
	require.NoError(t, err)
	old := NewGradientCache(before, store, CacheConfig{Size: 4})
	_, err = old.Get("0.0")
	require.NoError(t, err)
	require.True(t, store.Has("0.0"))

	// Тот же мир и размер, но другая карта
	store, err = storage.NewGradientStore(base, "reused")
	require.NoError(t, err)
	var computes atomic.Int32
	fresh := NewGradientCache(after, store, CacheConfig{Size: 4}, WithComputeFunc(countingCompute(&computes)))

	g, err := fresh.Get("0.0")
	require.NoError(t, err)
	assert.Equal(t, int32(1), computes.Load(), "stale entry is not served")
	assert.Zero(t, fresh.Stats().Loads)
	assert.Equal(t, systems.Unreachable, g.At(5, 5), "corner cell is walled off on the new map")
	assert.Equal(t, after.Fingerprint(), g.Fingerprint())

	// Пересчитанный градиент перезаписал запись: следующий запуск поднимает его
	store, err = storage.NewGradientStore(base, "reused")
	require.NoError(t, err)
	again := NewGradientCache(after, store, CacheConfig{Size: 4})
	_, err = again.Get("0.0")
	require.NoError(t, err)
	assert.Equal(t, uint64(1), again.Stats().Loads)
}

func TestGradientCache_PrewarmSkipsStoredKeysOnWalls(t *testing.T) {
	base := t.TempDir()
	grid := openGrid(t, 6, 6)
	store, err := storage.NewGradientStore(base, "w")
	require.NoError(t, err)
	old := NewGradientCache(grid, store, CacheConfig{Size: 4})
	_, err = old.Get("2.2")
	require.NoError(t, err)

	walled := grid.WithObstacles(domain.Position{Row: 2, Col: 2})
	var computes atomic.Int32
	c := NewGradientCache(walled, store, CacheConfig{Size: 4}, WithComputeFunc(countingCompute(&computes)))
	warmed, err := c.Prewarm(nil, 4)
	require.NoError(t, err)
	assert.Zero(t, warmed)
	assert.Zero(t, computes.Load())
}
