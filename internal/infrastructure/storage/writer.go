package storage

import (
	"bufio"
	"compress/gzip"
	"encoding/binary"
	"fmt"
	"io"

	"github.com/google/renameio/v2"

	"waypoint-server/internal/systems"
)

const (
	MagicHeader string = `WPGR` // 4 байта
	Version2    uint32 = 2      // 1 - без отпечатка сетки, не читается

	FileSuffix = ".grad"

	flagComplete uint32 = 1 << 0
)

// GradientFileHeader - точное представление заголовка файла.
// binary.Write пишет его целиком: тут только массивы и числа.
type GradientFileHeader struct {
	Magic     [4]byte // 4 байта
	Version   uint32  // 4
	Width     int32   // 4
	Height    int32   // 4
	CenterRow int32   // 4
	CenterCol int32   // 4
	Flags     uint32  // 4, бит 0 - полный градиент
	CellCount int32   // 4, должно быть Width*Height
	GridHash  uint64  // 8, отпечаток сетки (domain.Grid.Fingerprint)
}

// Save сохраняет градиент под ключом g.Key().
// Запись через временный файл и rename: после падения на диске либо старая
// версия, либо новая целиком, но не половина.
func (s *GradientStore) Save(g *systems.Gradient) error {
	key := g.Key()
	if err := ValidateKey(key); err != nil {
		return err
	}

	pf, err := renameio.NewPendingFile(s.path(key), renameio.WithPermissions(0o644))
	if err != nil {
		return fmt.Errorf("create pending file for %s: %w", key, err)
	}
	defer pf.Cleanup()

	if err := writeBinary(pf, g); err != nil {
		return fmt.Errorf("encode gradient %s: %w", key, err)
	}
	if err := pf.CloseAtomicallyReplace(); err != nil {
		return fmt.Errorf("commit gradient %s: %w", key, err)
	}

	s.mu.Lock()
	s.toc.Put(key)
	s.mu.Unlock()

	return nil
}

func writeBinary(w io.Writer, g *systems.Gradient) error {
	zw := gzip.NewWriter(w)
	bw := bufio.NewWriter(zw)

	center := g.Center()
	header := GradientFileHeader{
		Version:   Version2,
		Width:     int32(g.Width()),
		Height:    int32(g.Height()),
		CenterRow: int32(center.Row),
		CenterCol: int32(center.Col),
		CellCount: int32(g.Width() * g.Height()),
		GridHash:  g.Fingerprint(),
	}
	if g.Complete() {
		header.Flags |= flagComplete
	}
	copy(header.Magic[:], MagicHeader)

	if err := binary.Write(bw, binary.LittleEndian, &header); err != nil {
		return fmt.Errorf("failed to write header: %w", err)
	}

	// Матрица построчно: без лишней копии всего поля
	for row := 0; row < g.Height(); row++ {
		if err := binary.Write(bw, binary.LittleEndian, g.Row(row)); err != nil {
			return fmt.Errorf("failed to write row %d: %w", row, err)
		}
	}

	if err := bw.Flush(); err != nil {
		return err
	}
	return zw.Close()
}
