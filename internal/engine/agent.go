package engine

import (
	"math/rand"

	"waypoint-server/internal/domain"
	"waypoint-server/internal/systems"
)

// Agent - подвижный агент. Меняется только в потоке симуляции.
type Agent struct {
	Name   string
	Pos    domain.Position
	Facing domain.Direction
	Speed  int // Шагов за тик

	// Controlled - агентом управляют извне, поведение по умолчанию не вмешивается
	Controlled bool
	Visible    bool

	destination   *Place
	lastPlace     *Place // Куда агент пришел в последний раз
	atDestination bool
}

func newAgent(name string, pos domain.Position, speed int) *Agent {
	if speed < 1 {
		speed = 1
	}
	return &Agent{
		Name:          name,
		Pos:           pos,
		Facing:        domain.NoDirection,
		Speed:         speed,
		Visible:       true,
		atDestination: true,
	}
}

// Destination - текущая цель (nil, если агент никуда не идет)
func (a *Agent) Destination() *Place { return a.destination }

// LastPlace - место, до которого агент дошел последним
func (a *Agent) LastPlace() *Place { return a.lastPlace }

// AtDestination true, если агент дошел (или ему некуда идти)
func (a *Agent) AtDestination() bool { return a.atDestination }

// SetDestination назначает цель. Та же цель в пути - ничего не меняет,
// nil - остановиться.
func (a *Agent) SetDestination(p *Place) {
	if p == a.destination && (p == nil || !a.atDestination) {
		return
	}
	a.destination = p
	a.atDestination = p == nil
}

// Step продвигает агента к цели на один тик.
// ErrBlocked/ErrUnreachable не фатальны: агент стоит, следующий тик попробует снова.
func (a *Agent) Step(grid *domain.Grid) (systems.RouteResult, error) {
	if a.destination == nil || a.atDestination {
		return systems.RouteResult{Pos: a.Pos, Facing: a.Facing, Arrived: a.atDestination}, nil
	}

	res, err := systems.Route(grid, a.destination, a.Pos, a.Facing, a.Speed)
	a.Pos = res.Pos
	a.Facing = res.Facing
	if err != nil {
		return res, err
	}

	if res.Arrived {
		a.lastPlace = a.destination
		a.destination = nil
		a.atDestination = true
	}
	return res, nil
}

// Wander - случайная прогулка. Отмечает агента как пришедшего, чтобы движение
// к цели не перебивало прогулку.
func (a *Agent) Wander(grid *domain.Grid, rng *rand.Rand, soberness int) error {
	a.atDestination = true
	pos, facing, err := systems.Wander(grid, rng, a.Pos, a.Facing, soberness)
	a.Pos, a.Facing = pos, facing
	return err
}

// WanderAround - прогулка на поводке длиной radius клеток вокруг места.
func (a *Agent) WanderAround(grid *domain.Grid, rng *rand.Rand, place *Place, radius, soberness int) error {
	a.atDestination = true
	pos, facing, err := systems.WanderAround(grid, rng, place, a.Pos, a.Facing, radius, soberness)
	a.Pos, a.Facing = pos, facing
	return err
}

// Turn поворачивает агента на n восьмушек
func (a *Agent) Turn(n int) {
	if !a.Facing.Valid() {
		a.Facing = domain.DirN
	}
	a.Facing = a.Facing.Turn(n)
}
