package engine

import (
	"errors"
	"fmt"
	"math/rand"
	"sort"

	"github.com/sirupsen/logrus"
	"github.com/zyedidia/generic/mapset"

	"waypoint-server/internal/domain"
	"waypoint-server/internal/systems"
	"waypoint-server/pkg/logger"
	"waypoint-server/pkg/utils"
)

// World - состояние симуляции: сетка, кэш градиентов, места и агенты.
//
// Не потокобезопасен: принадлежит потоку симуляции (см. Simulation).
// Кэш градиентов внутри потокобезопасен и может прогреваться параллельно.
type World struct {
	Name string

	grid  *domain.Grid
	cache *GradientCache

	places       []*Place // В порядке создания
	placesByName map[string]*Place
	placeTypes   mapset.Set[string]

	agents map[string]*Agent
	namer  *utils.Namer

	behavior Behavior
	rng      *rand.Rand
	tick     int64

	log *logrus.Entry
}

// StepFailure - агент, который не смог сделать шаг в этом тике
type StepFailure struct {
	Agent string
	Err   error
}

// TickReport - итог одного тика
type TickReport struct {
	Tick     int64
	Moved    int      // Агентов, сделавших хотя бы шаг
	Arrived  []string // Дошедшие в этом тике
	Failures []StepFailure
}

// NewWorld создает мир. Кэш должен быть построен для той же сетки.
func NewWorld(name string, grid *domain.Grid, gradients *GradientCache, seed int64) *World {
	return &World{
		Name:         name,
		grid:         grid,
		cache:        gradients,
		placesByName: make(map[string]*Place),
		placeTypes:   mapset.New[string](),
		agents:       make(map[string]*Agent),
		namer:        utils.NewNamer(),
		rng:          rand.New(rand.NewSource(seed)),
		log:          logger.Component("world").WithField("world", name),
	}
}

func (w *World) Grid() *domain.Grid         { return w.grid }
func (w *World) Cache() *GradientCache      { return w.cache }
func (w *World) Rand() *rand.Rand           { return w.rng }
func (w *World) CurrentTick() int64         { return w.tick }
func (w *World) SetBehavior(b Behavior)     { w.behavior = b }
func (w *World) Places() []*Place           { return append([]*Place(nil), w.places...) }
func (w *World) HasPlaceType(t string) bool { return w.placeTypes.Has(t) }

// PlaceTypes возвращает известные типы мест по алфавиту
func (w *World) PlaceTypes() []string {
	types := make([]string, 0, w.placeTypes.Size())
	w.placeTypes.Each(func(t string) {
		types = append(types, t)
	})
	sort.Strings(types)
	return types
}

// --- Места ---

// PlaceByName ищет постоянное место по имени
func (w *World) PlaceByName(name string) (*Place, error) {
	if p, ok := w.placesByName[name]; ok {
		return p, nil
	}
	return nil, fmt.Errorf("%w: %q", domain.ErrPlaceNotFound, name)
}

// PlaceAt возвращает первое место в клетке
func (w *World) PlaceAt(pos domain.Position) (*Place, error) {
	for _, p := range w.places {
		if p.Pos == pos {
			return p, nil
		}
	}
	return nil, fmt.Errorf("%w: at %s", domain.ErrPlaceNotFound, pos)
}

// PlacesOfType возвращает места типа в порядке создания
func (w *World) PlacesOfType(placeType string) ([]*Place, error) {
	if !w.placeTypes.Has(placeType) {
		return nil, fmt.Errorf("%w: %q", domain.ErrPlaceTypeUndefined, placeType)
	}
	var out []*Place
	for _, p := range w.places {
		if p.Type == placeType {
			out = append(out, p)
		}
	}
	return out, nil
}

// NearestPlaceOfType - ближайшее по стоимости пути (не по прямой) место типа.
// При равенстве - созданное раньше.
func (w *World) NearestPlaceOfType(placeType string, from domain.Position) (*Place, error) {
	candidates, err := w.PlacesOfType(placeType)
	if err != nil {
		return nil, err
	}

	var best *Place
	bestDist := int(systems.Unreachable)
	for _, p := range candidates {
		d, err := p.DistanceFrom(from)
		if err != nil {
			return nil, err
		}
		if d < bestDist {
			best, bestDist = p, d
		}
	}
	if best == nil {
		return nil, fmt.Errorf("%w: no %q reachable from %s", domain.ErrUnreachable, placeType, from)
	}
	return best, nil
}

// RandomPlaceOfType выбирает случайное место типа. Пустой тип - любое место.
func (w *World) RandomPlaceOfType(placeType string) (*Place, error) {
	candidates := w.places
	if placeType != "" {
		var err error
		if candidates, err = w.PlacesOfType(placeType); err != nil {
			return nil, err
		}
	}
	if len(candidates) == 0 {
		return nil, fmt.Errorf("%w: no places of type %q", domain.ErrPlaceNotFound, placeType)
	}
	return candidates[w.rng.Intn(len(candidates))], nil
}

// FindPlacesNear - места в радиусе (по прямой), от ближних к дальним.
func (w *World) FindPlacesNear(pos domain.Position, radius int) ([]*Place, error) {
	var out []*Place
	for _, p := range w.places {
		if p.Pos.Near(pos, radius) {
			out = append(out, p)
		}
	}
	if len(out) == 0 {
		return nil, fmt.Errorf("%w: no places within %d of %s", domain.ErrNothingNear, radius, pos)
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Pos.DistanceSquaredTo(pos) < out[j].Pos.DistanceSquaredTo(pos)
	})
	return out, nil
}

// --- Агенты ---

// AddAgent ставит нового агента в свободную клетку. Пустое имя - "agent-N".
func (w *World) AddAgent(name string, pos domain.Position, speed int) (*Agent, error) {
	if !w.grid.Contains(pos) {
		return nil, fmt.Errorf("agent start: %w: %s", domain.ErrOutOfBounds, pos)
	}
	if w.grid.IsObstacle(pos) {
		return nil, fmt.Errorf("agent start: %w: %s", domain.ErrBlocked, pos)
	}
	if name == "" {
		name = w.namer.Next("agent")
		for w.agents[name] != nil {
			name = w.namer.Next("agent")
		}
	}
	if _, exists := w.agents[name]; exists {
		return nil, fmt.Errorf("agent %q already exists", name)
	}

	a := newAgent(name, pos, speed)
	w.agents[name] = a
	w.log.WithFields(logrus.Fields{"agent": name, "pos": pos.String()}).Debug("Agent added")
	return a, nil
}

// RemoveAgent убирает агента из мира
func (w *World) RemoveAgent(name string) error {
	if _, ok := w.agents[name]; !ok {
		return fmt.Errorf("%w: %q", domain.ErrAgentNotFound, name)
	}
	delete(w.agents, name)
	return nil
}

// Agent ищет агента по имени
func (w *World) Agent(name string) (*Agent, error) {
	if a, ok := w.agents[name]; ok {
		return a, nil
	}
	return nil, fmt.Errorf("%w: %q", domain.ErrAgentNotFound, name)
}

// Agents возвращает всех агентов по имени
func (w *World) Agents() []*Agent {
	out := make([]*Agent, 0, len(w.agents))
	for _, a := range w.agents {
		out = append(out, a)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// FindAgentsNear - агенты в радиусе от pos по имени. visibleOnly - только видимые.
func (w *World) FindAgentsNear(pos domain.Position, radius int, visibleOnly bool) ([]*Agent, error) {
	var out []*Agent
	for _, a := range w.Agents() {
		if visibleOnly && !a.Visible {
			continue
		}
		if a.Pos.Near(pos, radius) {
			out = append(out, a)
		}
	}
	if len(out) == 0 {
		return nil, fmt.Errorf("%w: no agents within %d of %s", domain.ErrNothingNear, radius, pos)
	}
	return out, nil
}

// MoveAgentTo отправляет агента в географическую точку: точка переводится в
// клетку, для неё строится временное место с частичным градиентом до агента.
// Агент переходит под внешнее управление.
func (w *World) MoveAgentTo(name string, lat, lon float64) (*Place, error) {
	pos, err := w.grid.FromGeo(lat, lon)
	if err != nil {
		return nil, err
	}
	return w.MoveAgentToCell(name, pos)
}

// MoveAgentToCell - то же для клетки сетки
func (w *World) MoveAgentToCell(name string, pos domain.Position) (*Place, error) {
	a, err := w.Agent(name)
	if err != nil {
		return nil, err
	}

	p, err := w.CreateTemporaryPlace(TemporaryPlaceType, "", pos, a.Pos)
	if err != nil {
		return nil, err
	}

	a.Controlled = true
	a.SetDestination(p)

	w.log.WithFields(logrus.Fields{
		"agent": name,
		"from":  a.Pos.String(),
		"to":    pos.String(),
	}).Info("Agent sent to position")
	return p, nil
}

// SetAutopilot возвращает агента поведению по умолчанию (auto=true)
// или оставляет под внешним управлением.
func (w *World) SetAutopilot(name string, auto bool) error {
	a, err := w.Agent(name)
	if err != nil {
		return err
	}
	a.Controlled = !auto
	return nil
}

// --- Тик ---

// Tick продвигает всех агентов на один тик в порядке имен.
// Ошибки шага попадают в отчет и в лог, но тик не прерывают.
func (w *World) Tick() TickReport {
	w.tick++
	report := TickReport{Tick: w.tick}

	for _, a := range w.Agents() {
		before := a.Pos

		if !a.Controlled && w.behavior != nil {
			if err := w.behavior.Act(w, a); err != nil {
				w.recordFailure(&report, a, err)
				continue
			}
		}

		wasArrived := a.AtDestination()

		_, err := a.Step(w.grid)
		if a.Pos != before {
			report.Moved++
		}
		if err != nil {
			w.recordFailure(&report, a, err)
			continue
		}
		if !wasArrived && a.AtDestination() {
			report.Arrived = append(report.Arrived, a.Name)
		}
	}

	return report
}

func (w *World) recordFailure(report *TickReport, a *Agent, err error) {
	report.Failures = append(report.Failures, StepFailure{Agent: a.Name, Err: err})

	entry := w.log.WithFields(logrus.Fields{
		"agent": a.Name,
		"pos":   a.Pos.String(),
		"tick":  w.tick,
		"error": err,
	})
	if systems.IsRecoverable(err) || errors.Is(err, domain.ErrPlaceNotFound) {
		entry.Debug("Agent could not move this tick")
		return
	}
	entry.Warn("Agent step failed")
}
