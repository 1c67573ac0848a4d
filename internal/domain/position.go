package domain

import (
	"fmt"
	"math"
	"strconv"
	"strings"
)

// NearDistance радиус "рядом" по умолчанию (в клетках)
const NearDistance = 15

// Position - клетка сетки (строка, столбец).
// Значение сравнимо через ==, поэтому годится как ключ map.
// Сама по себе позиция не знает о стенах: проверки делает Grid.
type Position struct {
	Row int `json:"row"`
	Col int `json:"col"`
}

// String возвращает ключ вида "row.col" (он же ключ кэша градиентов).
func (p Position) String() string {
	return strconv.Itoa(p.Row) + "." + strconv.Itoa(p.Col)
}

// ParsePosition разбирает строку "row.col".
func ParsePosition(s string) (Position, error) {
	rowStr, colStr, ok := strings.Cut(s, ".")
	if !ok {
		return Position{}, fmt.Errorf("invalid position key %q", s)
	}
	row, err := strconv.Atoi(rowStr)
	if err != nil {
		return Position{}, fmt.Errorf("invalid position row %q: %w", s, err)
	}
	col, err := strconv.Atoi(colStr)
	if err != nil {
		return Position{}, fmt.Errorf("invalid position col %q: %w", s, err)
	}
	return Position{Row: row, Col: col}, nil
}

// Shift возвращает соседнюю клетку в направлении d без каких-либо проверок.
func (p Position) Shift(d Direction) Position {
	dr, dc := d.Offset()
	return Position{Row: p.Row + dr, Col: p.Col + dc}
}

// DistanceTo возвращает точное евклидово расстояние (float)
func (p Position) DistanceTo(other Position) float64 {
	return math.Sqrt(float64(p.DistanceSquaredTo(other)))
}

// DistanceSquaredTo возвращает квадрат расстояния (int) для сравнения без корней
func (p Position) DistanceSquaredTo(other Position) int {
	dr := p.Row - other.Row
	dc := p.Col - other.Col
	return dr*dr + dc*dc
}

// Near true, если евклидово расстояние не больше radius.
// Сначала дешевая проверка по осям, корень не считаем вовсе.
func (p Position) Near(other Position, radius int) bool {
	dr := abs(p.Row - other.Row)
	dc := abs(p.Col - other.Col)
	if dr > radius || dc > radius {
		return false
	}
	return dr*dr+dc*dc <= radius*radius
}

// IsAdjacent возвращает true, если цель в соседней клетке (включая диагональ)
func (p Position) IsAdjacent(other Position) bool {
	dr := abs(p.Row - other.Row)
	dc := abs(p.Col - other.Col)
	return dr <= 1 && dc <= 1 && (dr != 0 || dc != 0)
}

// Less задает порядок: сначала строка, потом столбец.
func (p Position) Less(other Position) bool {
	if p.Row != other.Row {
		return p.Row < other.Row
	}
	return p.Col < other.Col
}

func abs(x int) int {
	if x < 0 {
		return -x
	}
	return x
}
