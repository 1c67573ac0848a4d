package mapgen

import (
	"math/rand"

	"waypoint-server/internal/domain"
)

// Параметры валунов по умолчанию
const (
	DefaultBoulderScale     = 0.15
	DefaultBoulderThreshold = 0.45
	DefaultDistrict         = 10
)

// DefaultPlaceTypes - типы мест, если не заданы
var DefaultPlaceTypes = []string{"home", "work", "shop", "park"}

// Options - параметры Generate. Нулевые значения заменяются значениями по умолчанию.
type Options struct {
	Width, Height int
	Rooms         int

	// OpenField - открытая местность с кварталами вместо комнат и коридоров
	OpenField bool
	District  int

	// Boulders - рассыпать валуны по шуму
	Boulders         bool
	BoulderScale     float64
	BoulderThreshold float64

	PlaceTypes []string

	// Origin - левый нижний угол. nil - карта без калибровки.
	Origin  *domain.LatLon
	CellDeg float64
}

// Generate создает карту целиком. Одинаковые seed и opts дают одинаковую карту.
func Generate(seed int64, opts Options) (*Map, error) {
	if opts.Width == 0 {
		opts.Width = DefaultWidth
	}
	if opts.Height == 0 {
		opts.Height = DefaultHeight
	}
	if opts.Rooms == 0 {
		opts.Rooms = MaxRooms
	}
	if opts.District == 0 {
		opts.District = DefaultDistrict
	}
	if opts.BoulderScale == 0 {
		opts.BoulderScale = DefaultBoulderScale
	}
	if opts.BoulderThreshold == 0 {
		opts.BoulderThreshold = DefaultBoulderThreshold
	}
	if len(opts.PlaceTypes) == 0 {
		opts.PlaceTypes = DefaultPlaceTypes
	}

	rng := rand.New(rand.NewSource(seed))
	b := NewMap(rng).WithSize(opts.Width, opts.Height)
	if opts.OpenField {
		b.WithOpenField(opts.District)
	} else {
		b.WithRooms(opts.Rooms)
	}
	if opts.Boulders {
		b.WithBoulders(seed, opts.BoulderScale, opts.BoulderThreshold)
	}
	b.WithPlaces(opts.PlaceTypes...)
	if opts.Origin != nil {
		b.WithCalibration(*opts.Origin, opts.CellDeg)
	}
	return b.Build()
}
