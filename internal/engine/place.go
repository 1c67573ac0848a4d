package engine

import (
	"fmt"

	"waypoint-server/internal/domain"
	"waypoint-server/internal/systems"
)

// TemporaryPlaceType - тип мест, созданных командой "иди в точку"
const TemporaryPlaceType = "Unknown"

// Place - место назначения.
//
// Постоянное место хранит только ключ: градиент живет в общем кэше и делится
// между всеми местами в той же клетке. Временное место держит собственный
// частичный градиент, посчитанный ровно до клетки агента, и в кэш не попадает.
type Place struct {
	Type string
	Name string
	Pos  domain.Position

	temporary bool
	gradient  *systems.Gradient // Только для временных
	cache     *GradientCache
}

// Key - ключ градиента в кэше
func (p *Place) Key() string { return p.Pos.String() }

// IsTemporary true для места с частичным градиентом
func (p *Place) IsTemporary() bool { return p.temporary }

// Gradient возвращает градиент места. Для постоянного может запустить расчет.
func (p *Place) Gradient() (*systems.Gradient, error) {
	if p.temporary {
		return p.gradient, nil
	}
	return p.cache.GetOrCompute(p.Pos)
}

// PointFrom - направление следующего шага к месту
func (p *Place) PointFrom(pos domain.Position, preferred domain.Direction) (domain.Direction, error) {
	g, err := p.Gradient()
	if err != nil {
		return domain.NoDirection, err
	}
	return g.PointFrom(pos, preferred)
}

// DistanceFrom - стоимость пути от pos до места
func (p *Place) DistanceFrom(pos domain.Position) (int, error) {
	g, err := p.Gradient()
	if err != nil {
		return 0, err
	}
	return g.DistanceFrom(pos)
}

func (p *Place) String() string {
	return fmt.Sprintf("%s(%s @ %s)", p.Type, p.Name, p.Pos)
}

var _ systems.Navigator = (*Place)(nil)

func defaultPlaceName(placeType string, pos domain.Position) string {
	return placeType + "-" + pos.String()
}

func (w *World) checkDestination(pos domain.Position) error {
	if !w.grid.Contains(pos) {
		return fmt.Errorf("%w: %s", domain.ErrOutOfBounds, pos)
	}
	if w.grid.IsObstacle(pos) {
		return fmt.Errorf("%w: %s", domain.ErrInvalidDestination, pos)
	}
	return nil
}

// CreatePlace регистрирует постоянное место. Градиент считается (или поднимается
// с диска) сразу, чтобы первый агент не ждал. Пустое имя - "<тип>-<row.col>".
func (w *World) CreatePlace(placeType, name string, pos domain.Position) (*Place, error) {
	if placeType == "" {
		return nil, fmt.Errorf("place type is empty")
	}
	if err := w.checkDestination(pos); err != nil {
		return nil, err
	}
	if name == "" {
		name = defaultPlaceName(placeType, pos)
	}
	if _, exists := w.placesByName[name]; exists {
		return nil, fmt.Errorf("place %q already exists", name)
	}

	if _, err := w.cache.GetOrCompute(pos); err != nil {
		return nil, fmt.Errorf("place %q: %w", name, err)
	}

	p := &Place{
		Type:  placeType,
		Name:  name,
		Pos:   pos,
		cache: w.cache,
	}
	w.places = append(w.places, p)
	w.placesByName[name] = p
	w.placeTypes.Put(placeType)

	w.log.WithField("place", p.String()).Debug("Place created")
	return p, nil
}

// CreateTemporaryPlace создает место с частичным градиентом до relevant.
// В мире оно не регистрируется. ErrUnreachable - из relevant до места не дойти.
func (w *World) CreateTemporaryPlace(placeType, name string, pos, relevant domain.Position) (*Place, error) {
	if err := w.checkDestination(pos); err != nil {
		return nil, err
	}
	if name == "" {
		name = defaultPlaceName(placeType, pos)
	}

	g, err := systems.ComputePartial(w.grid, pos, relevant)
	if err != nil {
		return nil, fmt.Errorf("place %q: %w", name, err)
	}

	return &Place{
		Type:      placeType,
		Name:      name,
		Pos:       pos,
		temporary: true,
		gradient:  g,
	}, nil
}
