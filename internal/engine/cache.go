package engine

import (
	"errors"
	"fmt"
	"sync"

	"github.com/sirupsen/logrus"
	"github.com/zyedidia/generic/cache"
	"github.com/zyedidia/generic/mapset"
	"golang.org/x/sync/singleflight"

	"waypoint-server/internal/domain"
	"waypoint-server/internal/systems"
	"waypoint-server/pkg/logger"
)

// GradientStore - долговременное хранилище градиентов по ключу "row.col".
// Реализация: storage.GradientStore.
type GradientStore interface {
	Has(key string) bool
	Load(key string) (*systems.Gradient, error)
	Save(g *systems.Gradient) error
	Keys() []string
}

// ComputeFunc считает полный градиент для центра
type ComputeFunc func(grid *domain.Grid, center domain.Position) (*systems.Gradient, error)

// CacheStats - счетчики кэша
type CacheStats struct {
	Hits      uint64 // Найден в памяти
	Loads     uint64 // Поднят с диска
	Computes  uint64 // Посчитан заново
	Evictions uint64 // Вытеснен из памяти
	Size      int
	Capacity  int
}

// GradientCache - ограниченный кэш полных градиентов, ключ - позиция центра.
//
// Порядок поиска: память (LRU) -> хранилище -> расчет. Посчитанный градиент
// сохраняется в хранилище, поэтому вытеснение из памяти не теряет работу:
// следующий запрос поднимет его с диска.
//
// Для одного ключа в каждый момент идет не больше одного расчета: остальные
// вызывающие ждут его результат (блокирующий контракт).
type GradientCache struct {
	grid    *domain.Grid
	store   GradientStore // nil - только память
	cfg     CacheConfig
	compute ComputeFunc

	mu  sync.Mutex
	lru *cache.Cache[string, *systems.Gradient]
	// resident - ключи в памяти: проверка без сдвига в LRU-порядке
	resident mapset.Set[string]
	stats    CacheStats

	group singleflight.Group
	log   *logrus.Entry
}

// CacheOption настраивает кэш при создании
type CacheOption func(*GradientCache)

// WithComputeFunc подменяет расчет (для инструментирования в тестах)
func WithComputeFunc(fn ComputeFunc) CacheOption {
	return func(c *GradientCache) {
		c.compute = fn
	}
}

// NewGradientCache создает кэш для сетки. store может быть nil.
func NewGradientCache(grid *domain.Grid, store GradientStore, cfg CacheConfig, opts ...CacheOption) *GradientCache {
	if cfg.Size <= 0 {
		cfg.Size = DefaultCacheSize
	}

	c := &GradientCache{
		grid:     grid,
		store:    store,
		cfg:      cfg,
		compute:  systems.ComputeFull,
		lru:      cache.New[string, *systems.Gradient](cfg.Size),
		resident: mapset.New[string](),
		log:      logger.Component("gradient_cache"),
	}
	for _, opt := range opts {
		opt(c)
	}

	// Колбэк вызывается внутри Put, то есть уже под c.mu
	c.lru.SetEvictCallback(func(key string, _ *systems.Gradient) {
		c.stats.Evictions++
		c.resident.Remove(key)
		c.log.WithField("key", key).Debug("Gradient evicted from memory")
	})

	return c
}

// Config возвращает неизменяемые параметры кэша
func (c *GradientCache) Config() CacheConfig { return c.cfg }

// GetOrCompute возвращает полный градиент с центром в pos.
// Блокирует, пока градиент не будет загружен или посчитан.
func (c *GradientCache) GetOrCompute(pos domain.Position) (*systems.Gradient, error) {
	if !c.grid.Contains(pos) {
		return nil, fmt.Errorf("gradient cache: %w: %s", domain.ErrOutOfBounds, pos)
	}
	key := pos.String()

	if g, ok := c.lookup(key); ok {
		return g, nil
	}

	v, err, _ := c.group.Do(key, func() (interface{}, error) {
		// Пока ждали очередь, ключ мог появиться
		if g, ok := c.lookup(key); ok {
			return g, nil
		}

		if g := c.loadFromStore(key); g != nil {
			c.insert(key, g, func(s *CacheStats) { s.Loads++ })
			return g, nil
		}

		g, err := c.compute(c.grid, pos)
		if err != nil {
			return nil, err
		}
		c.insert(key, g, func(s *CacheStats) { s.Computes++ })
		c.persist(g)
		return g, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(*systems.Gradient), nil
}

// Get - то же по строковому ключу "row.col".
func (c *GradientCache) Get(key string) (*systems.Gradient, error) {
	pos, err := domain.ParsePosition(key)
	if err != nil {
		return nil, err
	}
	return c.GetOrCompute(pos)
}

// Contains true, если градиент есть в памяти или в хранилище.
// Расчет не запускает и порядок вытеснения не меняет.
func (c *GradientCache) Contains(key string) bool {
	return c.InMemory(key) || (c.store != nil && c.store.Has(key))
}

// InMemory true, если градиент сейчас в памяти. Порядок LRU не трогает.
func (c *GradientCache) InMemory(key string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.resident.Has(key)
}

// Prewarm загружает или считает до n градиентов заранее, чтобы первый запрос
// не упирался в расчет. Без кандидатов берет первые n ключей из хранилища.
// n не больше емкости кэша: иначе прогретые записи вытеснят друг друга.
// Возвращает число записей, оказавшихся в памяти.
func (c *GradientCache) Prewarm(candidates []domain.Position, n int) (int, error) {
	if n > c.cfg.Size {
		n = c.cfg.Size
	}
	if len(candidates) == 0 && c.store != nil {
		for _, key := range c.store.Keys() {
			if pos, err := domain.ParsePosition(key); err == nil {
				candidates = append(candidates, pos)
			}
		}
	}

	var errs []error
	warmed := 0
	for _, pos := range candidates {
		if warmed >= n {
			break
		}
		// Ключ из хранилища от прежней карты может указывать в стену
		if c.grid.Contains(pos) && c.grid.IsObstacle(pos) {
			continue
		}
		if _, err := c.GetOrCompute(pos); err != nil {
			errs = append(errs, err)
			continue
		}
		warmed++
	}

	c.log.WithFields(logrus.Fields{
		"warmed": warmed,
		"failed": len(errs),
	}).Info("Gradient cache prewarmed")

	return warmed, errors.Join(errs...)
}

// Stats возвращает снимок счетчиков
func (c *GradientCache) Stats() CacheStats {
	c.mu.Lock()
	defer c.mu.Unlock()
	s := c.stats
	s.Size = c.lru.Size()
	s.Capacity = c.lru.Capacity()
	return s
}

// Cached возвращает ключи, которые сейчас в памяти
func (c *GradientCache) Cached() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	keys := make([]string, 0, c.lru.Size())
	c.lru.Each(func(key string, _ *systems.Gradient) {
		keys = append(keys, key)
	})
	return keys
}

// Stored - число записей в хранилище (0 без хранилища)
func (c *GradientCache) Stored() int {
	if c.store == nil {
		return 0
	}
	return len(c.store.Keys())
}

func (c *GradientCache) lookup(key string) (*systems.Gradient, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	g, ok := c.lru.Get(key)
	if ok {
		c.stats.Hits++
	}
	return g, ok
}

func (c *GradientCache) insert(key string, g *systems.Gradient, count func(*CacheStats)) {
	c.mu.Lock()
	defer c.mu.Unlock()
	count(&c.stats)
	c.lru.Put(key, g)
	c.resident.Put(key)
}

// loadFromStore возвращает nil, если записи нет или она не читается:
// тогда градиент просто посчитается заново.
func (c *GradientCache) loadFromStore(key string) *systems.Gradient {
	if c.store == nil || !c.store.Has(key) {
		return nil
	}
	g, err := c.store.Load(key)
	if err != nil {
		c.log.WithFields(logrus.Fields{
			"key":   key,
			"error": err,
		}).Warn("Failed to load stored gradient, recomputing")
		return nil
	}
	if g.Fingerprint() != c.grid.Fingerprint() || g.Width() != c.grid.Width() || g.Height() != c.grid.Height() || !g.Complete() {
		c.log.WithField("key", key).Warn("Stored gradient does not match the grid, recomputing")
		return nil
	}
	return g
}

func (c *GradientCache) persist(g *systems.Gradient) {
	if c.store == nil {
		return
	}
	// Ошибка записи не фатальна: градиент уже в памяти
	if err := c.store.Save(g); err != nil {
		c.log.WithFields(logrus.Fields{
			"key":   g.Key(),
			"error": err,
		}).Error("Failed to persist gradient")
	}
}
