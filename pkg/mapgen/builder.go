package mapgen

import (
	"fmt"
	"math/rand"

	"github.com/ojrac/opensimplex-go"

	"waypoint-server/internal/domain"
)

// Константы генерации
const (
	DefaultWidth  = 80
	DefaultHeight = 50
	MaxRooms      = 12
	MinSize       = 5
	MaxSize       = 12
)

// Rect - прямоугольник комнаты (X - столбец, Y - строка)
type Rect struct {
	X, Y, W, H int
}

// Center - центр комнаты
func (r Rect) Center() domain.Position {
	return domain.Position{Row: r.Y + r.H/2, Col: r.X + r.W/2}
}

func (r Rect) Intersects(other Rect) bool {
	return r.X <= other.X+other.W && r.X+r.W >= other.X &&
		r.Y <= other.Y+other.H && r.Y+r.H >= other.Y
}

// PlaceSeed - будущее постоянное место: тип, имя и клетка
type PlaceSeed struct {
	Type string
	Name string
	Pos  domain.Position
}

// MapBuilder предоставляет fluent API для создания карт.
// Всё случайное идет из переданного rng: одинаковый сид - одинаковая карта.
type MapBuilder struct {
	width  int
	height int
	rng    *rand.Rand

	wall     []bool
	corridor []bool // Клетки коридоров: валуны сюда не ставим
	rooms    []Rect
	seeds    []PlaceSeed
	geo      *Calibration
	err      error
}

// NewMap создает builder. Карта изначально сплошной камень.
func NewMap(rng *rand.Rand) *MapBuilder {
	return &MapBuilder{
		width:  DefaultWidth,
		height: DefaultHeight,
		rng:    rng,
	}
}

// WithSize устанавливает размер карты
func (b *MapBuilder) WithSize(width, height int) *MapBuilder {
	b.width = width
	b.height = height
	return b
}

func (b *MapBuilder) randRange(min, max int) int {
	return b.rng.Intn(max-min+1) + min
}

func (b *MapBuilder) index(row, col int) int { return row*b.width + col }

func (b *MapBuilder) carve(row, col int, corridor bool) {
	i := b.index(row, col)
	b.wall[i] = false
	if corridor {
		b.corridor[i] = true
	}
}

// WithRooms генерирует комнаты и соединяет каждую с предыдущей Г-образным коридором
func (b *MapBuilder) WithRooms(maxRooms int) *MapBuilder {
	if b.width < MinSize+2 || b.height < MinSize+2 {
		b.err = fmt.Errorf("map %dx%d is too small for rooms", b.width, b.height)
		return b
	}

	size := b.width * b.height
	b.wall = make([]bool, size)
	b.corridor = make([]bool, size)
	for i := range b.wall {
		b.wall[i] = true
	}

	b.rooms = make([]Rect, 0, maxRooms)
	for i := 0; i < maxRooms; i++ {
		w := b.randRange(MinSize, min(MaxSize, b.width-2))
		h := b.randRange(MinSize, min(MaxSize, b.height-2))
		x := b.randRange(0, b.width-w-1)
		y := b.randRange(0, b.height-h-1)

		newRoom := Rect{X: x, Y: y, W: w, H: h}

		failed := false
		for _, other := range b.rooms {
			if newRoom.Intersects(other) {
				failed = true
				break
			}
		}
		if failed {
			continue
		}

		b.createRoom(newRoom)
		if len(b.rooms) > 0 {
			prev := b.rooms[len(b.rooms)-1].Center()
			curr := newRoom.Center()

			if b.rng.Intn(2) == 0 {
				b.createHCorridor(prev.Col, curr.Col, prev.Row)
				b.createVCorridor(prev.Row, curr.Row, curr.Col)
			} else {
				b.createVCorridor(prev.Row, curr.Row, prev.Col)
				b.createHCorridor(prev.Col, curr.Col, curr.Row)
			}
		}
		b.rooms = append(b.rooms, newRoom)
	}

	if len(b.rooms) == 0 {
		b.err = fmt.Errorf("no room fits into %dx%d", b.width, b.height)
	}
	return b
}

func (b *MapBuilder) createRoom(room Rect) {
	for y := room.Y + 1; y < room.Y+room.H; y++ {
		for x := room.X + 1; x < room.X+room.W; x++ {
			b.carve(y, x, false)
		}
	}
	// Центр держим свободным так же, как коридоры
	c := room.Center()
	b.corridor[b.index(c.Row, c.Col)] = true
}

func (b *MapBuilder) createHCorridor(x1, x2, y int) {
	for x := min(x1, x2); x <= max(x1, x2); x++ {
		b.carve(y, x, true)
	}
}

func (b *MapBuilder) createVCorridor(y1, y2, x int) {
	for y := min(y1, y2); y <= max(y1, y2); y++ {
		b.carve(y, x, true)
	}
}

// WithBoulders рассыпает валуны внутри комнат по шуму OpenSimplex:
// клетка становится стеной, если шум выше threshold (от -1 до 1).
// scale - частота шума: чем больше, тем мельче пятна.
// Коридоры и центры комнат не трогаются, отрезанные карманы замуровываются.
func (b *MapBuilder) WithBoulders(seed int64, scale, threshold float64) *MapBuilder {
	if b.err != nil || b.wall == nil {
		return b
	}
	noise := opensimplex.New(seed)
	for row := 0; row < b.height; row++ {
		for col := 0; col < b.width; col++ {
			i := b.index(row, col)
			if b.wall[i] || b.corridor[i] {
				continue
			}
			if noise.Eval2(float64(col)*scale, float64(row)*scale) > threshold {
				b.wall[i] = true
			}
		}
	}
	b.sealPockets()
	return b
}

// sealPockets замуровывает карманы, отрезанные валунами. Остается область,
// связная с сетью коридоров (коридоры валунами не занимаются, значит сеть цела).
func (b *MapBuilder) sealPockets() {
	anchor := -1
	for i, c := range b.corridor {
		if c && !b.wall[i] {
			anchor = i
			break
		}
	}
	if anchor < 0 {
		return
	}

	label := make([]int, len(b.wall))
	b.fill(anchor, 1, label)

	for i := range b.wall {
		if !b.wall[i] && label[i] != 1 {
			b.wall[i] = true
		}
	}
}

// fill помечает область, связную с клеткой from (8 соседей), и возвращает её размер
func (b *MapBuilder) fill(from, id int, label []int) int {
	label[from] = id
	queue := []int{from}
	size := 0
	for len(queue) > 0 {
		i := queue[0]
		queue = queue[1:]
		size++

		p := domain.Position{Row: i / b.width, Col: i % b.width}
		for d := domain.DirN; d <= domain.DirNW; d++ {
			n := p.Shift(d)
			if n.Row < 0 || n.Row >= b.height || n.Col < 0 || n.Col >= b.width {
				continue
			}
			j := b.index(n.Row, n.Col)
			if b.wall[j] || label[j] != 0 {
				continue
			}
			label[j] = id
			queue = append(queue, j)
		}
	}
	return size
}

// WithPlaces раскладывает места по комнатам: типы идут по кругу, по одному
// месту на комнату, начиная со второй. Имена "<тип>-<n>" раздает Build.
// Комната, целиком занятая валунами, пропускается. Первые буквы типов
// должны различаться: в текстовой карте место помечается первой буквой.
func (b *MapBuilder) WithPlaces(types ...string) *MapBuilder {
	if b.err != nil || len(types) == 0 || len(b.rooms) == 0 {
		return b
	}
	marks := make(map[byte]string, len(types))
	for _, t := range types {
		if t == "" || !isPlaceMark(t[0]) {
			b.err = fmt.Errorf("invalid place type %q", t)
			return b
		}
		if other, ok := marks[t[0]]; ok && other != t {
			b.err = fmt.Errorf("place types %q and %q share the map mark %q", other, t, t[0])
			return b
		}
		marks[t[0]] = t
	}

	used := make(map[domain.Position]bool)
	rooms := b.rooms
	if len(rooms) > 1 {
		rooms = rooms[1:]
	}
	for i, room := range rooms {
		pos, ok := b.pickOpenCell(room)
		if !ok || used[pos] {
			continue
		}
		used[pos] = true
		b.seeds = append(b.seeds, PlaceSeed{Type: types[i%len(types)], Pos: pos})
	}
	return b
}

// pickOpenCell - случайная свободная клетка комнаты, иначе первая свободная по порядку
func (b *MapBuilder) pickOpenCell(room Rect) (domain.Position, bool) {
	for attempt := 0; attempt < 20; attempt++ {
		row := room.Y + 1 + b.rng.Intn(room.H-1)
		col := room.X + 1 + b.rng.Intn(room.W-1)
		if !b.wall[b.index(row, col)] {
			return domain.Position{Row: row, Col: col}, true
		}
	}
	for row := room.Y + 1; row < room.Y+room.H; row++ {
		for col := room.X + 1; col < room.X+room.W; col++ {
			if !b.wall[b.index(row, col)] {
				return domain.Position{Row: row, Col: col}, true
			}
		}
	}
	return domain.Position{}, false
}

// WithCalibration привязывает карту к координатам: левый нижний угол в origin,
// клетка - cellDeg градусов по обеим осям, без поворота.
func (b *MapBuilder) WithCalibration(origin domain.LatLon, cellDeg float64) *MapBuilder {
	if cellDeg <= 0 {
		b.err = fmt.Errorf("cell size must be positive, got %g", cellDeg)
		return b
	}
	b.geo = Calibrate(b.width, b.height, origin, cellDeg)
	return b
}

// Start - стартовая клетка: центр первой комнаты, если он свободен,
// иначе первая свободная клетка карты
func (b *MapBuilder) Start() domain.Position {
	if len(b.rooms) > 0 {
		if c := b.rooms[0].Center(); !b.wall[b.index(c.Row, c.Col)] {
			return c
		}
	}
	for i, wall := range b.wall {
		if !wall {
			return domain.Position{Row: i / b.width, Col: i % b.width}
		}
	}
	return domain.Position{Row: b.height / 2, Col: b.width / 2}
}

// Build собирает и возвращает готовую карту
func (b *MapBuilder) Build() (*Map, error) {
	if b.err != nil {
		return nil, b.err
	}
	if b.wall == nil {
		return nil, fmt.Errorf("map has no layout: call WithRooms or WithOpenField first")
	}
	return &Map{
		Width:       b.width,
		Height:      b.height,
		Obstacles:   append([]bool(nil), b.wall...),
		Rooms:       append([]Rect(nil), b.rooms...),
		Places:      numberPlaces(b.seeds),
		Start:       b.Start(),
		Calibration: b.geo,
	}, nil
}
