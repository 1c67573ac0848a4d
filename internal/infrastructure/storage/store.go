package storage

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/sirupsen/logrus"
	"github.com/zyedidia/generic/mapset"

	"waypoint-server/internal/domain"
	"waypoint-server/pkg/logger"
)

// MaxKeyLength - ключ становится именем файла, держим его в пределах любой ФС
const MaxKeyLength = 250

var (
	ErrNotFound   = errors.New("gradient not stored")
	ErrCorrupt    = errors.New("gradient entry corrupt")
	ErrInvalidKey = errors.New("invalid gradient key")
)

// GradientStore - долговременное хранилище градиентов: один gzip-файл на ключ
// в каталоге <base>/<world>. Оглавление (множество ключей) держится в памяти и
// строится по каталогу при открытии.
//
// Безопасен для конкурентного использования.
type GradientStore struct {
	dir string

	mu  sync.RWMutex
	toc mapset.Set[string]
}

// NewGradientStore открывает (или создает) каталог мира и читает оглавление.
// Недописанные временные файлы и посторонние файлы пропускаются.
func NewGradientStore(baseDir, world string) (*GradientStore, error) {
	if world == "" || strings.ContainsAny(world, `/\`) || world == "." || world == ".." {
		return nil, fmt.Errorf("invalid world name %q", world)
	}
	dir := filepath.Join(baseDir, world)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create gradient dir: %w", err)
	}

	s := &GradientStore{
		dir: dir,
		toc: mapset.New[string](),
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("read gradient dir: %w", err)
	}
	skipped := 0
	for _, e := range entries {
		name := e.Name()
		if e.IsDir() || strings.HasPrefix(name, ".") || !strings.HasSuffix(name, FileSuffix) {
			skipped++
			continue
		}
		key := strings.TrimSuffix(name, FileSuffix)
		if ValidateKey(key) != nil {
			skipped++
			continue
		}
		s.toc.Put(key)
	}

	logger.Log.WithFields(logrus.Fields{
		"component": "gradient_store",
		"dir":       dir,
		"entries":   s.toc.Size(),
		"skipped":   skipped,
	}).Info("Gradient store opened")

	return s, nil
}

// ValidateKey проверяет, что ключ - позиция "row.col" и годится как имя файла.
func ValidateKey(key string) error {
	if key == "" || len(key) > MaxKeyLength {
		return fmt.Errorf("%w: length %d", ErrInvalidKey, len(key))
	}
	p, err := domain.ParsePosition(key)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidKey, err)
	}
	if p.Row < 0 || p.Col < 0 || p.String() != key {
		return fmt.Errorf("%w: %q", ErrInvalidKey, key)
	}
	return nil
}

// Dir - каталог мира
func (s *GradientStore) Dir() string { return s.dir }

func (s *GradientStore) path(key string) string {
	return filepath.Join(s.dir, key+FileSuffix)
}

// Has проверяет оглавление (без обращения к диску).
func (s *GradientStore) Has(key string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.toc.Has(key)
}

// Len - количество записей
func (s *GradientStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.toc.Size()
}

// Keys возвращает ключи в порядке позиций (строка, затем столбец).
func (s *GradientStore) Keys() []string {
	s.mu.RLock()
	keys := make([]string, 0, s.toc.Size())
	s.toc.Each(func(key string) {
		keys = append(keys, key)
	})
	s.mu.RUnlock()

	sort.Slice(keys, func(i, j int) bool {
		a, _ := domain.ParsePosition(keys[i])
		b, _ := domain.ParsePosition(keys[j])
		return a.Less(b)
	})
	return keys
}

// Remove удаляет запись. Отсутствующий ключ - не ошибка.
func (s *GradientStore) Remove(key string) error {
	if err := ValidateKey(key); err != nil {
		return err
	}
	s.forget(key)
	if err := os.Remove(s.path(key)); err != nil && !errors.Is(err, os.ErrNotExist) {
		return err
	}
	return nil
}

func (s *GradientStore) forget(key string) {
	s.mu.Lock()
	s.toc.Remove(key)
	s.mu.Unlock()
}
