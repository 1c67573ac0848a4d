package storage

import (
	"bufio"
	"compress/gzip"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/sirupsen/logrus"

	"waypoint-server/internal/domain"
	"waypoint-server/internal/systems"
	"waypoint-server/pkg/logger"
)

// maxCells - предел размера матрицы при чтении, чтобы битый заголовок
// не заставил выделить гигабайты.
const maxCells = 1 << 26

// Load читает градиент с диска.
// ErrNotFound - ключа нет в оглавлении. Битая запись удаляется из оглавления
// и с диска, ошибка оборачивает ErrCorrupt.
func (s *GradientStore) Load(key string) (*systems.Gradient, error) {
	if err := ValidateKey(key); err != nil {
		return nil, err
	}
	if !s.Has(key) {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, key)
	}

	f, err := os.Open(s.path(key))
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			// Файл удалили в обход хранилища
			s.forget(key)
			return nil, fmt.Errorf("%w: %s", ErrNotFound, key)
		}
		return nil, err
	}
	defer f.Close()

	g, err := readBinary(f)
	if err != nil {
		logger.Log.WithFields(logrus.Fields{
			"component": "gradient_store",
			"key":       key,
			"error":     err,
		}).Warn("Corrupt gradient entry, dropping it")

		s.forget(key)
		_ = os.Remove(s.path(key))
		return nil, fmt.Errorf("%w: %s: %v", ErrCorrupt, key, err)
	}

	if g.Key() != key {
		s.forget(key)
		return nil, fmt.Errorf("%w: %s holds gradient for %s", ErrCorrupt, key, g.Key())
	}
	return g, nil
}

func readBinary(r io.Reader) (*systems.Gradient, error) {
	zr, err := gzip.NewReader(r)
	if err != nil {
		return nil, fmt.Errorf("failed to open gzip stream: %w", err)
	}
	defer zr.Close()
	br := bufio.NewReader(zr)

	// 1. Заголовок целиком
	var header GradientFileHeader
	if err := binary.Read(br, binary.LittleEndian, &header); err != nil {
		return nil, fmt.Errorf("failed to read header: %w", err)
	}

	// Валидация
	if string(header.Magic[:]) != MagicHeader {
		return nil, fmt.Errorf("invalid magic")
	}
	if header.Version != Version2 {
		return nil, fmt.Errorf("unsupported version: %d (expected %d)", header.Version, Version2)
	}
	if header.Width <= 0 || header.Height <= 0 {
		return nil, fmt.Errorf("invalid size %dx%d", header.Width, header.Height)
	}
	cells := int64(header.Width) * int64(header.Height)
	if cells != int64(header.CellCount) || cells > maxCells {
		return nil, fmt.Errorf("cell count %d does not match %dx%d", header.CellCount, header.Width, header.Height)
	}

	// 2. Матрица
	dist := make([]int32, cells)
	if err := binary.Read(br, binary.LittleEndian, dist); err != nil {
		return nil, fmt.Errorf("failed to read matrix: %w", err)
	}

	center := domain.Position{Row: int(header.CenterRow), Col: int(header.CenterCol)}
	return systems.RestoreGradient(center, int(header.Width), int(header.Height), dist, header.Flags&flagComplete != 0, header.GridHash)
}
