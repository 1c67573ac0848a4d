package engine

import "waypoint-server/internal/systems"

// Behavior - модель поведения агентов без внешнего управления.
// Вызывается в каждом тике до шага агента.
type Behavior interface {
	Act(w *World, a *Agent) error
}

// BehaviorFunc позволяет использовать функцию как Behavior
type BehaviorFunc func(w *World, a *Agent) error

func (f BehaviorFunc) Act(w *World, a *Agent) error { return f(w, a) }

// TourBehavior - агенты ходят между случайными местами. Дойдя до места,
// агент Dwell тиков бродит вокруг него на поводке Radius, потом выбирает новое.
type TourBehavior struct {
	PlaceType string // Пусто - любые места
	Dwell     int
	Radius    int
	Soberness int

	dwelt map[string]int
}

// NewTourBehavior создает поведение с настройками по умолчанию
func NewTourBehavior(placeType string) *TourBehavior {
	return &TourBehavior{
		PlaceType: placeType,
		Dwell:     10,
		Radius:    5,
		Soberness: systems.DefaultSoberness,
		dwelt:     make(map[string]int),
	}
}

func (t *TourBehavior) Act(w *World, a *Agent) error {
	if dest := a.Destination(); dest != nil && !a.AtDestination() {
		d, err := dest.DistanceFrom(a.Pos)
		if err == nil && d != int(systems.Unreachable) {
			return nil
		}
		// Из этой области до цели не дойти: выбираем другую
	}

	if last := a.LastPlace(); last != nil && t.dwelt[a.Name] < t.Dwell {
		t.dwelt[a.Name]++
		return a.WanderAround(w.Grid(), w.Rand(), last, t.Radius, t.Soberness)
	}

	delete(t.dwelt, a.Name)
	next, err := w.RandomPlaceOfType(t.PlaceType)
	if err != nil {
		return err
	}
	a.SetDestination(next)
	return nil
}
