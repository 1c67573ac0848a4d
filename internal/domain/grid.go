package domain

import (
	"encoding/binary"
	"fmt"
	"hash/fnv"
	"strings"
)

// Grid - карта препятствий, по которой ходят агенты.
// Создается один раз и дальше не меняется; WithObstacles возвращает копию.
type Grid struct {
	width     int
	height    int
	obstacles []bool // Индекс: Row * width + Col
	geo       *GeoTransform

	fingerprint uint64
}

// NewGrid создает сетку. obstacles может быть nil (карта без стен),
// иначе длина должна совпадать с width*height. Срез копируется.
func NewGrid(width, height int, obstacles []bool, geo *GeoTransform) (*Grid, error) {
	if width <= 0 || height <= 0 {
		return nil, fmt.Errorf("invalid grid size %dx%d", width, height)
	}
	size := width * height
	g := &Grid{
		width:     width,
		height:    height,
		obstacles: make([]bool, size),
		geo:       geo,
	}
	if obstacles != nil {
		if len(obstacles) != size {
			return nil, fmt.Errorf("obstacle bitmap has %d cells, want %d", len(obstacles), size)
		}
		copy(g.obstacles, obstacles)
	}
	g.fingerprint = fingerprint(width, height, g.obstacles)
	return g, nil
}

// ParseGrid строит сетку из текстовой карты: '#' - препятствие, всё остальное - проход.
// Все строки должны быть одной длины.
func ParseGrid(lines []string, geo *GeoTransform) (*Grid, error) {
	if len(lines) == 0 {
		return nil, fmt.Errorf("empty map")
	}
	width := len(strings.TrimRight(lines[0], "\r"))
	obstacles := make([]bool, 0, width*len(lines))
	for row, line := range lines {
		line = strings.TrimRight(line, "\r")
		if len(line) != width {
			return nil, fmt.Errorf("map row %d has width %d, want %d", row, len(line), width)
		}
		for i := 0; i < len(line); i++ {
			obstacles = append(obstacles, line[i] == '#')
		}
	}
	return NewGrid(width, len(lines), obstacles, geo)
}

func (g *Grid) Width() int  { return g.width }
func (g *Grid) Height() int { return g.height }
func (g *Grid) Size() int   { return g.width * g.height }

// Geo возвращает калибровку (nil, если карта без координат).
func (g *Grid) Geo() *GeoTransform { return g.geo }

// Contains проверяет границы
func (g *Grid) Contains(p Position) bool {
	return p.Row >= 0 && p.Row < g.height && p.Col >= 0 && p.Col < g.width
}

// Index переводит позицию в плоский индекс. Границы не проверяет.
func (g *Grid) Index(p Position) int {
	return p.Row*g.width + p.Col
}

// PositionAt - обратное к Index
func (g *Grid) PositionAt(idx int) Position {
	return Position{Row: idx / g.width, Col: idx % g.width}
}

// Position создает позицию с проверкой границ.
// Позиция на препятствии допустима: нельзя только шагнуть в неё.
func (g *Grid) Position(row, col int) (Position, error) {
	p := Position{Row: row, Col: col}
	if !g.Contains(p) {
		return Position{}, fmt.Errorf("%w: %s in %dx%d", ErrOutOfBounds, p, g.height, g.width)
	}
	return p, nil
}

// IsObstacle true для стены. Клетки вне карты тоже считаются непроходимыми.
func (g *Grid) IsObstacle(p Position) bool {
	if !g.Contains(p) {
		return true
	}
	return g.obstacles[g.Index(p)]
}

// Move возвращает клетку после шага в направлении d.
// ErrOutOfBounds - если шаг уводит с карты, ErrBlocked - если там препятствие.
func (g *Grid) Move(p Position, d Direction) (Position, error) {
	next := p.Shift(d)
	if !g.Contains(next) {
		return Position{}, fmt.Errorf("%w: %s -> %s", ErrOutOfBounds, p, d)
	}
	if g.obstacles[g.Index(next)] {
		return Position{}, fmt.Errorf("%w: %s -> %s", ErrBlocked, p, d)
	}
	return next, nil
}

// WithObstacles возвращает новую сетку с дополнительными препятствиями.
// Клетки вне карты игнорируются.
func (g *Grid) WithObstacles(cells ...Position) *Grid {
	clone := &Grid{
		width:     g.width,
		height:    g.height,
		obstacles: make([]bool, len(g.obstacles)),
		geo:       g.geo,
	}
	copy(clone.obstacles, g.obstacles)
	for _, c := range cells {
		if g.Contains(c) {
			clone.obstacles[g.Index(c)] = true
		}
	}
	clone.fingerprint = fingerprint(clone.width, clone.height, clone.obstacles)
	return clone
}

// Fingerprint - хэш размеров и карты препятствий. Градиент, посчитанный на
// сетке с другим отпечатком, для этой сетки недействителен.
func (g *Grid) Fingerprint() uint64 { return g.fingerprint }

func fingerprint(width, height int, obstacles []bool) uint64 {
	h := fnv.New64a()
	var size [8]byte
	binary.LittleEndian.PutUint32(size[:4], uint32(width))
	binary.LittleEndian.PutUint32(size[4:], uint32(height))
	h.Write(size[:])

	// По биту на клетку
	packed := make([]byte, (len(obstacles)+7)/8)
	for i, wall := range obstacles {
		if wall {
			packed[i/8] |= 1 << (i % 8)
		}
	}
	h.Write(packed)
	return h.Sum64()
}

// OpenCells возвращает количество проходимых клеток
func (g *Grid) OpenCells() int {
	n := 0
	for _, wall := range g.obstacles {
		if !wall {
			n++
		}
	}
	return n
}

// FromGeo переводит (lat, lon) в клетку. Нужна калибровка.
func (g *Grid) FromGeo(lat, lon float64) (Position, error) {
	if g.geo == nil {
		return Position{}, ErrNoCalibration
	}
	p := g.geo.ToLocal(lat, lon)
	if !g.Contains(p) {
		return Position{}, fmt.Errorf("%w: (%.6f, %.6f) maps to %s", ErrOutOfBounds, lat, lon, p)
	}
	return p, nil
}

// ToGeo переводит клетку в (lat, lon).
func (g *Grid) ToGeo(p Position) (lat, lon float64, err error) {
	if g.geo == nil {
		return 0, 0, ErrNoCalibration
	}
	lat, lon = g.geo.ToCoordinates(p)
	return lat, lon, nil
}
