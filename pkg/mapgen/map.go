package mapgen

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"sort"
	"strings"

	"waypoint-server/internal/domain"
)

// Символы текстовой карты
const (
	WallChar  = '#'
	FloorChar = '.'
)

// Calibration - три угла карты в географических координатах
type Calibration struct {
	TopRight    domain.LatLon `json:"topRight"`
	BottomRight domain.LatLon `json:"bottomRight"`
	BottomLeft  domain.LatLon `json:"bottomLeft"`
}

// Calibrate - калибровка без поворота: левый нижний угол в origin,
// клетка - cellDeg градусов по обеим осям
func Calibrate(width, height int, origin domain.LatLon, cellDeg float64) *Calibration {
	return &Calibration{
		BottomLeft:  origin,
		BottomRight: domain.LatLon{Lat: origin.Lat, Lon: origin.Lon + float64(width)*cellDeg},
		TopRight: domain.LatLon{
			Lat: origin.Lat + float64(height)*cellDeg,
			Lon: origin.Lon + float64(width)*cellDeg,
		},
	}
}

// Map - готовая карта: препятствия, комнаты, заготовки мест и калибровка
type Map struct {
	Width, Height int
	Obstacles     []bool // Индекс: Row * Width + Col
	Rooms         []Rect
	Places        []PlaceSeed
	Start         domain.Position
	Calibration   *Calibration
}

// Grid строит сетку. Калибровка, если есть, превращается в GeoTransform.
func (m *Map) Grid() (*domain.Grid, error) {
	var geo *domain.GeoTransform
	if m.Calibration != nil {
		var err error
		geo, err = domain.NewGeoTransform(m.Height, m.Width,
			m.Calibration.TopRight, m.Calibration.BottomRight, m.Calibration.BottomLeft)
		if err != nil {
			return nil, fmt.Errorf("calibration: %w", err)
		}
	}
	return domain.NewGrid(m.Width, m.Height, m.Obstacles, geo)
}

// OpenCells - все проходимые клетки по строкам
func (m *Map) OpenCells() []domain.Position {
	var out []domain.Position
	for i, wall := range m.Obstacles {
		if !wall {
			out = append(out, domain.Position{Row: i / m.Width, Col: i % m.Width})
		}
	}
	return out
}

// Lines рисует карту текстом. Места помечаются первой буквой типа; если тип
// длиннее буквы, после пустой строки идет легенда "<буква>=<тип>".
func (m *Map) Lines() []string {
	buf := make([][]byte, m.Height)
	for row := range buf {
		buf[row] = make([]byte, m.Width)
		for col := range buf[row] {
			buf[row][col] = FloorChar
			if m.Obstacles[row*m.Width+col] {
				buf[row][col] = WallChar
			}
		}
	}
	legend := make(map[byte]string)
	for _, p := range m.Places {
		if p.Type == "" {
			continue
		}
		buf[p.Pos.Row][p.Pos.Col] = p.Type[0]
		if len(p.Type) > 1 {
			legend[p.Type[0]] = p.Type
		}
	}

	lines := make([]string, m.Height, m.Height+len(legend)+1)
	for i, row := range buf {
		lines[i] = string(row)
	}
	if len(legend) > 0 {
		marks := make([]byte, 0, len(legend))
		for c := range legend {
			marks = append(marks, c)
		}
		sort.Slice(marks, func(i, j int) bool { return marks[i] < marks[j] })

		lines = append(lines, "")
		for _, c := range marks {
			lines = append(lines, fmt.Sprintf("%c=%s", c, legend[c]))
		}
	}
	return lines
}

// ParseMap читает текстовую карту: '#' - стена, '.' и пробел - проход,
// любой другой символ - место, тип которого - этот символ или запись легенды.
// Легенда идет после первой пустой строки: по строке "<буква>=<тип>".
// Места нумеруются по строкам: "<тип>-<n>".
// Первое место становится стартом (иначе первая свободная клетка).
func ParseMap(lines []string) (*Map, error) {
	for len(lines) > 0 && strings.TrimSpace(lines[len(lines)-1]) == "" {
		lines = lines[:len(lines)-1]
	}
	if len(lines) == 0 {
		return nil, fmt.Errorf("empty map")
	}

	var legendLines []string
	for i, line := range lines {
		if strings.TrimRight(line, "\r") == "" {
			lines, legendLines = lines[:i], lines[i+1:]
			break
		}
	}
	if len(lines) == 0 {
		return nil, fmt.Errorf("map has a legend but no rows")
	}
	legend, err := parseLegend(legendLines)
	if err != nil {
		return nil, err
	}

	width := len(strings.TrimRight(lines[0], "\r"))
	m := &Map{
		Width:     width,
		Height:    len(lines),
		Obstacles: make([]bool, 0, width*len(lines)),
	}
	var seeds []PlaceSeed
	for row, line := range lines {
		line = strings.TrimRight(line, "\r")
		if len(line) != width {
			return nil, fmt.Errorf("map row %d has width %d, want %d", row, len(line), width)
		}
		for col := 0; col < len(line); col++ {
			c := line[col]
			m.Obstacles = append(m.Obstacles, c == WallChar)
			if !isPlaceMark(c) {
				continue
			}
			placeType, ok := legend[c]
			if !ok {
				placeType = string(c)
			}
			seeds = append(seeds, PlaceSeed{Type: placeType, Pos: domain.Position{Row: row, Col: col}})
		}
	}
	m.Places = numberPlaces(seeds)

	switch {
	case len(m.Places) > 0:
		m.Start = m.Places[0].Pos
	default:
		open := m.OpenCells()
		if len(open) == 0 {
			return nil, fmt.Errorf("map has no open cells")
		}
		m.Start = open[0]
	}
	return m, nil
}

func parseLegend(lines []string) (map[byte]string, error) {
	legend := make(map[byte]string, len(lines))
	for _, line := range lines {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		mark, placeType, ok := strings.Cut(line, "=")
		if !ok || len(mark) != 1 || !isPlaceMark(mark[0]) || placeType == "" || placeType[0] != mark[0] {
			return nil, fmt.Errorf("invalid legend entry %q", line)
		}
		legend[mark[0]] = placeType
	}
	return legend, nil
}

// isPlaceMark - символ карты обозначает место
func isPlaceMark(c byte) bool {
	return c != WallChar && c != FloorChar && c != ' ' && c != '=' && c > ' ' && c < 0x7f
}

// numberPlaces упорядочивает места по строкам и нумерует их внутри типа.
// Так имена совпадают с теми, что ParseMap даст для Lines().
func numberPlaces(seeds []PlaceSeed) []PlaceSeed {
	out := append([]PlaceSeed(nil), seeds...)
	sort.SliceStable(out, func(i, j int) bool { return out[i].Pos.Less(out[j].Pos) })

	counters := make(map[string]int)
	for i := range out {
		counters[out[i].Type]++
		out[i].Name = fmt.Sprintf("%s-%d", out[i].Type, counters[out[i].Type])
	}
	return out
}

// Read разбирает карту из потока
func Read(r io.Reader) (*Map, error) {
	var lines []string
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 4096), 1<<20)
	for scanner.Scan() {
		lines = append(lines, scanner.Text())
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("read map: %w", err)
	}
	return ParseMap(lines)
}

// LoadFile читает карту из файла
func LoadFile(path string) (*Map, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	m, err := Read(f)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return m, nil
}
