package domain

// Direction - одно из восьми направлений движения.
// Нумерация по часовой стрелке, начиная с "вверх": N=0, NE=1, E=2 ... NW=7.
type Direction int

const (
	NoDirection Direction = -1 // Нет предпочтения / уже на месте

	DirN Direction = iota - 1
	DirNE
	DirE
	DirSE
	DirS
	DirSW
	DirW
	DirNW
)

// DirectionCount количество возможных направлений
const DirectionCount = 8

// Стоимость шага (октильная метрика)
const (
	StraightCost = 10
	DiagonalCost = 14 // ≈ 10·√2
)

// compass хранит смещения (Δrow, Δcol) для каждого направления
var compass = [DirectionCount][2]int{
	{-1, 0}, {-1, 1}, {0, 1}, {1, 1},
	{1, 0}, {1, -1}, {0, -1}, {-1, -1},
}

var directionNames = [DirectionCount]string{"N", "NE", "E", "SE", "S", "SW", "W", "NW"}

// Offset возвращает смещение (Δrow, Δcol) для направления.
func (d Direction) Offset() (int, int) {
	n := d.Normalize()
	return compass[n][0], compass[n][1]
}

// Normalize приводит любое целое к диапазону 0..7 (в т.ч. отрицательные повороты).
func (d Direction) Normalize() Direction {
	return Direction(((int(d) % DirectionCount) + DirectionCount) % DirectionCount)
}

// Valid true для 0..7
func (d Direction) Valid() bool {
	return d >= DirN && d <= DirNW
}

// IsDiagonal true для NE, SE, SW, NW
func (d Direction) IsDiagonal() bool {
	return d.Normalize()%2 == 1
}

// Cost возвращает вес ребра: 10 по осям, 14 по диагонали.
func (d Direction) Cost() int {
	if d.IsDiagonal() {
		return DiagonalCost
	}
	return StraightCost
}

// Turn поворачивает на n восьмушек (отрицательное n - против часовой).
func (d Direction) Turn(n int) Direction {
	return Direction(int(d) + n).Normalize()
}

// Opposite разворот на 180°
func (d Direction) Opposite() Direction {
	return d.Turn(DirectionCount / 2)
}

func (d Direction) String() string {
	if !d.Valid() {
		return "NONE"
	}
	return directionNames[d]
}
