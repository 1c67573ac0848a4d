package systems

import (
	"fmt"
	"math"

	"waypoint-server/internal/domain"
)

// Unreachable - стоимость клетки, до которой нет пути
// (стена, замкнутая область или клетка вне частичного градиента).
const Unreachable int32 = math.MaxInt32

// Gradient - поле расстояний до центра: для каждой клетки карты
// стоимость пути до Center с весами 10 (по осям) и 14 (по диагонали).
//
// После создания не меняется, поэтому читать его можно из любых горутин без блокировок.
// Наружу матрица отдается только копией или через посетителя Each.
type Gradient struct {
	center   domain.Position
	width    int
	height   int
	dist     []int32 // Индекс: Row * width + Col
	complete bool    // false - расчет остановлен досрочно

	fingerprint uint64 // Отпечаток сетки, на которой посчитан
}

// EdgeWeight возвращает вес шага в направлении d
func EdgeWeight(d domain.Direction) int {
	return d.Cost()
}

// ComputeFull считает полный градиент: волна идет, пока есть куда расти.
// Единственная возможная ошибка - центр вне карты.
func ComputeFull(grid *domain.Grid, center domain.Position) (*Gradient, error) {
	if !grid.Contains(center) {
		return nil, fmt.Errorf("gradient center: %w: %s", domain.ErrOutOfBounds, center)
	}
	g := newGradient(grid, center, true)
	g.expand(grid, nil)
	return g, nil
}

// ComputePartial считает градиент до тех пор, пока волна не накроет relevant.
// Стоимости уже достигнутых клеток корректны, остальные остаются Unreachable.
// Если волна затухла, так и не дойдя до relevant - ErrUnreachable.
func ComputePartial(grid *domain.Grid, center, relevant domain.Position) (*Gradient, error) {
	if !grid.Contains(center) {
		return nil, fmt.Errorf("gradient center: %w: %s", domain.ErrOutOfBounds, center)
	}
	if !grid.Contains(relevant) {
		return nil, fmt.Errorf("relevant position: %w: %s", domain.ErrOutOfBounds, relevant)
	}
	g := newGradient(grid, center, false)
	if !g.expand(grid, &relevant) {
		return nil, fmt.Errorf("%w: %s from %s", domain.ErrUnreachable, center, relevant)
	}
	return g, nil
}

// RestoreGradient собирает градиент из сохраненной матрицы и проверяет её.
// Срез dist забирается во владение; fingerprint - отпечаток исходной сетки.
func RestoreGradient(center domain.Position, width, height int, dist []int32, complete bool, fingerprint uint64) (*Gradient, error) {
	if width <= 0 || height <= 0 {
		return nil, fmt.Errorf("invalid gradient size %dx%d", width, height)
	}
	if len(dist) != width*height {
		return nil, fmt.Errorf("gradient matrix has %d cells, want %d", len(dist), width*height)
	}
	if center.Row < 0 || center.Row >= height || center.Col < 0 || center.Col >= width {
		return nil, fmt.Errorf("gradient center: %w: %s", domain.ErrOutOfBounds, center)
	}
	if dist[center.Row*width+center.Col] != 0 {
		return nil, fmt.Errorf("gradient center %s has non-zero cost", center)
	}
	return &Gradient{
		center:   center,
		width:    width,
		height:   height,
		dist:     dist,
		complete: complete,

		fingerprint: fingerprint,
	}, nil
}

func newGradient(grid *domain.Grid, center domain.Position, complete bool) *Gradient {
	g := &Gradient{
		center:   center,
		width:    grid.Width(),
		height:   grid.Height(),
		dist:     make([]int32, grid.Size()),
		complete: complete,

		fingerprint: grid.Fingerprint(),
	}
	for i := range g.dist {
		g.dist[i] = Unreachable
	}
	g.dist[grid.Index(center)] = 0
	return g
}

// expand - многофронтовая волна.
// Каждый раунд релаксирует 8 соседей всех клеток фронта; соседи, чья стоимость
// строго уменьшилась, образуют следующий фронт. Приоритетная очередь не нужна:
// весов всего два, а повторная релаксация доводит поле до неподвижной точки.
//
// relevant != nil: остановиться после раунда, в котором relevant был во фронте.
// Возвращает true, если relevant достигнут (или не задан).
func (g *Gradient) expand(grid *domain.Grid, relevant *domain.Position) bool {
	relevantIdx := -1
	if relevant != nil {
		relevantIdx = grid.Index(*relevant)
	}

	// queued[i] == round: клетка уже в следующем фронте этого раунда
	queued := make([]uint32, len(g.dist))
	round := uint32(1)

	frontier := []int{grid.Index(g.center)}
	next := make([]int, 0, 64)

	for len(frontier) > 0 {
		found := false

		for _, idx := range frontier {
			if idx == relevantIdx {
				found = true
			}

			pos := grid.PositionAt(idx)
			base := g.dist[idx]

			for d := domain.DirN; d <= domain.DirNW; d++ {
				n := pos.Shift(d)
				if grid.IsObstacle(n) { // Вне карты - тоже препятствие
					continue
				}
				nIdx := grid.Index(n)
				cost := base + int32(d.Cost())
				if cost < g.dist[nIdx] {
					g.dist[nIdx] = cost
					if queued[nIdx] != round {
						queued[nIdx] = round
						next = append(next, nIdx)
					}
				}
			}
		}

		if found {
			return true
		}

		frontier, next = next, frontier[:0]
		round++
	}

	return relevantIdx == -1
}

// Center - цель градиента
func (g *Gradient) Center() domain.Position { return g.center }

func (g *Gradient) Width() int  { return g.width }
func (g *Gradient) Height() int { return g.height }

// Complete false для частичного (досрочно остановленного) градиента
func (g *Gradient) Complete() bool { return g.complete }

// Fingerprint - отпечаток сетки (см. domain.Grid.Fingerprint)
func (g *Gradient) Fingerprint() uint64 { return g.fingerprint }

// Key - ключ кэша, строковая форма центра
func (g *Gradient) Key() string { return g.center.String() }

func (g *Gradient) contains(p domain.Position) bool {
	return p.Row >= 0 && p.Row < g.height && p.Col >= 0 && p.Col < g.width
}

// At возвращает сохраненную стоимость клетки (Unreachable вне карты).
func (g *Gradient) At(row, col int) int32 {
	if row < 0 || row >= g.height || col < 0 || col >= g.width {
		return Unreachable
	}
	return g.dist[row*g.width+col]
}

// DistanceFrom возвращает стоимость пути от pos до центра.
func (g *Gradient) DistanceFrom(pos domain.Position) (int, error) {
	if !g.contains(pos) {
		return 0, fmt.Errorf("%w: %s", domain.ErrOutOfBounds, pos)
	}
	return int(g.dist[pos.Row*g.width+pos.Col]), nil
}

// PointFrom выбирает направление шага от pos, сильнее всего уменьшающее стоимость.
//
// NoDirection - агент уже в центре.
// При равенстве выигрывает preferred (агент не виляет), иначе - меньший индекс.
// ErrUnreachable - из pos нет спуска: клетка не покрыта градиентом.
//
// Препятствия оцениваются по снимку карты, на котором считался градиент:
// у стен стоимость всегда Unreachable, и спуск в них невозможен.
func (g *Gradient) PointFrom(pos domain.Position, preferred domain.Direction) (domain.Direction, error) {
	if !g.contains(pos) {
		return domain.NoDirection, fmt.Errorf("%w: %s", domain.ErrOutOfBounds, pos)
	}

	current := g.dist[pos.Row*g.width+pos.Col]
	if current == 0 {
		return domain.NoDirection, nil
	}

	best := current
	bestDir := domain.NoDirection
	preferredIsBest := false

	for d := domain.DirN; d <= domain.DirNW; d++ {
		n := pos.Shift(d)
		if !g.contains(n) {
			continue
		}
		cost := g.dist[n.Row*g.width+n.Col]
		switch {
		case cost < best:
			best = cost
			bestDir = d
			preferredIsBest = d == preferred
		case cost == best && bestDir != domain.NoDirection && d == preferred:
			preferredIsBest = true
		}
	}

	if bestDir == domain.NoDirection {
		return domain.NoDirection, fmt.Errorf("%w: no descent from %s towards %s", domain.ErrUnreachable, pos, g.center)
	}
	if preferredIsBest {
		return preferred, nil
	}
	return bestDir, nil
}

// Matrix возвращает копию матрицы [row][col] для отрисовки.
func (g *Gradient) Matrix() [][]int32 {
	out := make([][]int32, g.height)
	for row := range out {
		out[row] = make([]int32, g.width)
		copy(out[row], g.dist[row*g.width:(row+1)*g.width])
	}
	return out
}

// Row возвращает копию одной строки матрицы.
func (g *Gradient) Row(row int) []int32 {
	out := make([]int32, g.width)
	copy(out, g.dist[row*g.width:(row+1)*g.width])
	return out
}

// Each обходит все клетки без копирования.
func (g *Gradient) Each(fn func(pos domain.Position, cost int32)) {
	for idx, cost := range g.dist {
		fn(domain.Position{Row: idx / g.width, Col: idx % g.width}, cost)
	}
}

// Reachable возвращает количество клеток с конечной стоимостью
func (g *Gradient) Reachable() int {
	n := 0
	for _, cost := range g.dist {
		if cost != Unreachable {
			n++
		}
	}
	return n
}
