package engine

import (
	"context"
	"errors"
	"sync/atomic"
	"time"

	"github.com/sirupsen/logrus"

	"waypoint-server/internal/domain"
	"waypoint-server/internal/network"
	"waypoint-server/pkg/api"
	"waypoint-server/pkg/logger"
)

// ErrSimulationStopped - команда не выполнена: цикл симуляции завершен
var ErrSimulationStopped = errors.New("simulation stopped")

// Состояния запроса: кто первым перевел его из pending, тот и решает его судьбу
const (
	requestPending int32 = iota
	requestTaken
	requestAbandoned
)

type request struct {
	fn    func(w *World) error
	done  chan error
	state *atomic.Int32
}

func newRequest(fn func(w *World) error) request {
	return request{fn: fn, done: make(chan error, 1), state: new(atomic.Int32)}
}

// take забирает запрос в цикл. false - вызывающий уже ушел по таймауту.
func (r request) take() bool {
	return r.state.CompareAndSwap(requestPending, requestTaken)
}

// abandon отзывает запрос. false - цикл уже взял его, результат придет в done.
func (r request) abandon() bool {
	return r.state.CompareAndSwap(requestPending, requestAbandoned)
}

// Simulation - поток, которому принадлежит World.
// Тикает по таймеру, между тиками выполняет присланные команды и после
// каждого тика рассылает снимок подписчикам.
type Simulation struct {
	world    *World
	hub      *network.Broadcaster
	interval time.Duration

	requests chan request
	stopped  chan struct{}

	log *logrus.Entry
}

// NewSimulation создает цикл. hub может быть nil (без рассылки).
func NewSimulation(w *World, hub *network.Broadcaster, interval time.Duration) *Simulation {
	if interval <= 0 {
		interval = DefaultTickInterval
	}
	return &Simulation{
		world:    w,
		hub:      hub,
		interval: interval,
		requests: make(chan request, 100),
		stopped:  make(chan struct{}),
		log:      logger.Component("simulation").WithField("world", w.Name),
	}
}

// Run крутит цикл до отмены контекста
func (s *Simulation) Run(ctx context.Context) {
	s.log.WithField("interval", s.interval).Info("Simulation loop started")
	defer close(s.stopped)

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			s.drain()
			s.log.Info("Simulation loop stopped")
			return

		case req := <-s.requests:
			if req.take() {
				req.done <- req.fn(s.world)
			}

		case <-ticker.C:
			report := s.world.Tick()
			if len(report.Arrived) > 0 {
				s.log.WithFields(logrus.Fields{
					"tick":    report.Tick,
					"arrived": report.Arrived,
				}).Debug("Agents arrived")
			}
			s.publish()
		}
	}
}

// drain отвечает ожидающим командам, чтобы они не висели до своих таймаутов
func (s *Simulation) drain() {
	for {
		select {
		case req := <-s.requests:
			if req.take() {
				req.done <- ErrSimulationStopped
			}
		default:
			return
		}
	}
}

// Do выполняет fn в потоке симуляции и ждет результат.
// Только так внешний код (сеть, HTTP) может трогать World.
//
// Ошибка ctx или ErrSimulationStopped означает, что fn не выполнялась и уже
// не выполнится. Если цикл успел взять fn, Do дожидается ее результата.
func (s *Simulation) Do(ctx context.Context, fn func(w *World) error) error {
	req := newRequest(fn)

	select {
	case s.requests <- req:
	case <-s.stopped:
		return ErrSimulationStopped
	case <-ctx.Done():
		return ctx.Err()
	}

	select {
	case err := <-req.done:
		return err
	case <-s.stopped:
		// Цикл вышел, а запрос мог остаться в буфере
		if req.abandon() {
			return ErrSimulationStopped
		}
	case <-ctx.Done():
		if req.abandon() {
			return ctx.Err()
		}
	}
	return <-req.done
}

// Snapshot собирает снимок мира для клиентов. Вызывать в потоке симуляции.
func Snapshot(w *World) api.ServerResponse {
	grid := w.Grid()
	resp := api.ServerResponse{
		Type: api.TypeUpdate,
		Tick: w.CurrentTick(),
		Grid: &api.GridMeta{
			Width:      grid.Width(),
			Height:     grid.Height(),
			Calibrated: grid.Geo() != nil,
		},
	}

	for _, a := range w.Agents() {
		if !a.Visible {
			continue
		}
		resp.Agents = append(resp.Agents, ViewAgent(grid, a))
	}
	return resp
}

// ViewAgent собирает DTO агента. Координаты есть только у калиброванной карты.
func ViewAgent(grid *domain.Grid, a *Agent) api.AgentView {
	view := api.AgentView{
		Name:          a.Name,
		Pos:           api.CellView{Row: a.Pos.Row, Col: a.Pos.Col},
		Facing:        a.Facing.String(),
		Speed:         a.Speed,
		AtDestination: a.AtDestination(),
		Controlled:    a.Controlled,
	}
	if lat, lon, err := grid.ToGeo(a.Pos); err == nil {
		view.Geo = &api.GeoView{Lat: lat, Lon: lon}
	}
	if dest := a.Destination(); dest != nil {
		view.Destination = dest.Name
	}
	return view
}

func (s *Simulation) publish() {
	if s.hub == nil || s.hub.SubscriberCount() == 0 {
		return
	}
	s.hub.Broadcast(Snapshot(s.world))
}
