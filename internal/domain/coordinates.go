package domain

import (
	"fmt"
	"math"
	"strconv"
	"strings"
)

// LatLon - географическая точка в градусах
type LatLon struct {
	Lat float64 `json:"lat"`
	Lon float64 `json:"lon"`
}

// GeoTransform переводит клетки сетки в географические координаты и обратно.
// Карта - повернутый прямоугольник, заданный тремя углами:
// правым верхним, правым нижним и левым нижним.
// Чистая функция: состояния нет, после создания не меняется.
type GeoTransform struct {
	height int
	width  int

	bottomLeft LatLon

	widthDeg  float64 // Длина нижней кромки в градусах
	heightDeg float64 // Длина правой кромки в градусах

	colFactor float64 // Градусов на столбец
	rowFactor float64 // Градусов на строку

	cosA, sinA float64 // Поворот нижней кромки относительно оси долгот

	crossesZero bool // Карта пересекает экватор или нулевой меридиан
}

// NewGeoTransform создает преобразование для сетки height×width.
func NewGeoTransform(height, width int, topRight, bottomRight, bottomLeft LatLon) (*GeoTransform, error) {
	if height <= 0 || width <= 0 {
		return nil, fmt.Errorf("invalid grid size %dx%d", width, height)
	}

	widthDeg := math.Hypot(bottomRight.Lat-bottomLeft.Lat, bottomRight.Lon-bottomLeft.Lon)
	heightDeg := math.Hypot(topRight.Lat-bottomRight.Lat, topRight.Lon-bottomRight.Lon)
	if widthDeg == 0 || heightDeg == 0 {
		return nil, fmt.Errorf("degenerate calibration corners")
	}

	// atan2 сохраняет знак поворота (acos его теряет, если карта наклонена к югу)
	a := math.Atan2(bottomRight.Lat-bottomLeft.Lat, bottomRight.Lon-bottomLeft.Lon)

	t := &GeoTransform{
		height:     height,
		width:      width,
		bottomLeft: bottomLeft,
		widthDeg:   widthDeg,
		heightDeg:  heightDeg,
		colFactor:  widthDeg / float64(width),
		rowFactor:  heightDeg / float64(height),
		cosA:       math.Cos(a),
		sinA:       math.Sin(a),
	}

	t.crossesZero = math.Signbit(bottomLeft.Lon) != math.Signbit(topRight.Lon) ||
		math.Signbit(bottomLeft.Lat) != math.Signbit(topRight.Lat)

	return t, nil
}

// ToCoordinates возвращает (lat, lon) центра клетки.
func (t *GeoTransform) ToCoordinates(p Position) (lat, lon float64) {
	x := t.colFactor * (float64(p.Col) + 0.5)
	y := t.rowFactor * (float64(t.height-p.Row) - 0.5)

	lat = x*t.sinA + y*t.cosA + t.bottomLeft.Lat
	lon = x*t.cosA - y*t.sinA + t.bottomLeft.Lon
	return lat, lon
}

// ToLocal - обратное преобразование. Результат может оказаться вне карты,
// границы проверяет Grid.
func (t *GeoTransform) ToLocal(lat, lon float64) Position {
	dLat := lat - t.bottomLeft.Lat
	dLon := lon - t.bottomLeft.Lon

	y := dLat*t.cosA - dLon*t.sinA
	x := dLat*t.sinA + dLon*t.cosA

	row := int(math.Floor(float64(t.height) - y/t.rowFactor))
	col := int(math.Floor(x / t.colFactor))
	return Position{Row: row, Col: col}
}

// Pretty форматирует координаты как "N 49 25.123 E 8 40.5"
func (t *GeoTransform) Pretty(lat, lon float64) string {
	return hemisphere(lat, "N", "S") + " " + degMin(lat) + " " + hemisphere(lon, "E", "W") + " " + degMin(lon)
}

// CrossesZero true, если карта лежит в разных полушариях
func (t *GeoTransform) CrossesZero() bool { return t.crossesZero }

func hemisphere(v float64, pos, neg string) string {
	if v < 0 {
		return neg
	}
	return pos
}

func degMin(v float64) string {
	v = math.Abs(v)
	deg := math.Floor(v)
	minutes := strconv.FormatFloat((v-deg)*60, 'f', 3, 64)
	minutes = strings.TrimRight(strings.TrimRight(minutes, "0"), ".")
	return strconv.Itoa(int(deg)) + " " + minutes
}
