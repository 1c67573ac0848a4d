package systems

import (
	"errors"
	"math/rand"

	"waypoint-server/internal/domain"
)

const (
	// DefaultSoberness - в среднем раз в столько шагов бродяга поворачивает
	DefaultSoberness = 5

	// wanderTurn - поворот "игрушечного робота" при упоре в стену (135°)
	wanderTurn = 3
)

// Navigator - всё, что умеет вести к цели по полю расстояний
// (место назначения, градиент).
type Navigator interface {
	PointFrom(pos domain.Position, preferred domain.Direction) (domain.Direction, error)
	DistanceFrom(pos domain.Position) (int, error)
}

// RouteResult - итог одного тика движения
type RouteResult struct {
	Pos     domain.Position
	Facing  domain.Direction
	Steps   int  // Сколько шагов реально сделано
	Arrived bool // Агент стоит в клетке со стоимостью 0
}

// Route делает до speed шагов вниз по полю nav.
//
// Направление на каждом шаге - PointFrom(pos, facing), поэтому при равных
// вариантах агент держит курс. Ошибка шага (ErrBlocked при устаревшем поле,
// ErrUnreachable вне частичного поля) прерывает оставшиеся шаги тика и
// возвращается вместе с уже пройденным путем: следующий тик попробует снова.
func Route(grid *domain.Grid, nav Navigator, pos domain.Position, facing domain.Direction, speed int) (RouteResult, error) {
	res := RouteResult{Pos: pos, Facing: facing}

	if d, err := nav.DistanceFrom(pos); err != nil {
		return res, err
	} else if d == 0 {
		res.Arrived = true
		return res, nil
	}

	for i := 0; i < speed; i++ {
		dir, err := nav.PointFrom(res.Pos, res.Facing)
		if err != nil {
			return res, err
		}
		if dir == domain.NoDirection {
			res.Arrived = true
			return res, nil
		}

		next, err := grid.Move(res.Pos, dir)
		if err != nil {
			return res, err
		}
		res.Pos = next
		res.Facing = dir
		res.Steps++

		d, err := nav.DistanceFrom(next)
		if err != nil {
			return res, err
		}
		if d == 0 {
			res.Arrived = true
			return res, nil
		}
	}

	return res, nil
}

// IsRecoverable true для ошибок движения, после которых агент просто ждет следующего тика.
func IsRecoverable(err error) bool {
	return errors.Is(err, domain.ErrBlocked) || errors.Is(err, domain.ErrUnreachable)
}

// Wander делает один случайный шаг "игрушечного робота":
// идем прямо; упершись в стену, поворачиваемся на 135° (в случайную сторону)
// до тех пор, пока не найдется свободное направление.
// После шага с вероятностью 1/soberness поворачиваемся на 45°.
//
// ErrBlocked - если свободных направлений нет совсем (клетка замурована).
func Wander(grid *domain.Grid, rng *rand.Rand, pos domain.Position, facing domain.Direction, soberness int) (domain.Position, domain.Direction, error) {
	if !facing.Valid() {
		facing = domain.Direction(rng.Intn(domain.DirectionCount))
	}
	if soberness < 1 {
		soberness = 1
	}

	search := wanderTurn
	if rng.Intn(2) == 1 {
		search = -wanderTurn
	}

	moved := false
	for tries := 0; tries < domain.DirectionCount; tries++ {
		next, err := grid.Move(pos, facing)
		if err == nil {
			pos = next
			moved = true
			break
		}
		facing = facing.Turn(search)
	}

	if rng.Intn(soberness) == 0 {
		if rng.Intn(2) == 1 {
			facing = facing.Turn(1)
		} else {
			facing = facing.Turn(-1)
		}
	}

	if !moved {
		return pos, facing, domain.ErrBlocked
	}
	return pos, facing, nil
}

// WanderAround бродит рядом с местом: пока агент в пределах radius
// (по стоимости пути в клетках), он блуждает, иначе делает шаг к месту.
func WanderAround(grid *domain.Grid, rng *rand.Rand, nav Navigator, pos domain.Position, facing domain.Direction, radius, soberness int) (domain.Position, domain.Direction, error) {
	d, err := nav.DistanceFrom(pos)
	if err != nil {
		return pos, facing, err
	}

	if d > radius*domain.StraightCost {
		res, err := Route(grid, nav, pos, facing, 1)
		return res.Pos, res.Facing, err
	}
	return Wander(grid, rng, pos, facing, soberness)
}
