package agent

import (
	"context"
	"encoding/json"
	"fmt"
	"math/rand"

	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"

	"waypoint-server/internal/domain"
	"waypoint-server/pkg/api"
	"waypoint-server/pkg/logger"
)

// Bot - внешний клиент без интерфейса. Подключается по WebSocket так же,
// как обычный клиент, берет агента под управление и водит его по случайным
// клеткам карты.
//
// Жизненный цикл:
//  1. NewBot -> параметры подключения.
//  2. Run -> LOGIN, затем цикл чтения снимков.
//  3. На каждом UPDATE decide решает, пора ли выбрать новую цель.
//  4. Цель уходит командой MOVE_CELL; стена или недостижимая клетка
//     возвращается как ERROR, и цель выбирается заново.
type Bot struct {
	URL   string
	Token string
	Agent string
	// Limit - после скольких прибытий остановиться (0 - без ограничения)
	Limit int

	rng *rand.Rand
	log *logrus.Entry

	target   *api.CellView
	pending  bool
	arrivals int
}

func NewBot(url, token, agentName string, seed int64) *Bot {
	return &Bot{
		URL:   url,
		Token: token,
		Agent: agentName,
		rng:   rand.New(rand.NewSource(seed)),
		log: logger.Component("bot").WithFields(logrus.Fields{
			"token": token,
			"agent": agentName,
		}),
	}
}

// Arrivals - сколько раз агент дошел до выбранной цели
func (b *Bot) Arrivals() int { return b.arrivals }

// Run подключается и работает до отмены ctx, обрыва связи или Limit прибытий.
func (b *Bot) Run(ctx context.Context) error {
	conn, _, err := websocket.DefaultDialer.DialContext(ctx, b.URL, nil)
	if err != nil {
		return fmt.Errorf("dial %s: %w", b.URL, err)
	}
	defer conn.Close()

	// Отмена контекста прерывает блокирующее чтение
	done := make(chan struct{})
	defer close(done)
	go func() {
		select {
		case <-ctx.Done():
			conn.Close()
		case <-done:
		}
	}()

	if err := conn.WriteJSON(api.ClientCommand{Action: domain.ActionLogin.String(), Token: b.Token}); err != nil {
		return err
	}
	b.log.Info("Bot connected")

	for {
		var msg api.ServerResponse
		if err := conn.ReadJSON(&msg); err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return err
		}

		cmd, err := b.handle(msg)
		if err != nil {
			return err
		}
		if b.Limit > 0 && b.arrivals >= b.Limit {
			b.log.WithField("arrivals", b.arrivals).Info("Bot finished")
			return nil
		}
		if cmd != nil {
			if err := conn.WriteJSON(cmd); err != nil {
				return err
			}
		}
	}
}

// handle обрабатывает одно сообщение и возвращает команду для отправки (или nil)
func (b *Bot) handle(msg api.ServerResponse) (*api.ClientCommand, error) {
	switch msg.Type {
	case api.TypeError:
		if msg.Action == domain.ActionLogin.String() {
			return nil, fmt.Errorf("login rejected: %s", msg.Error)
		}
		if msg.Action == domain.ActionMoveCell.String() {
			// Цель не подошла, выберем другую на следующем снимке
			b.log.WithField("error", msg.Error).Debug("Target rejected")
			b.target, b.pending = nil, false
		}
		return nil, nil
	case api.TypeOK:
		if msg.Action == domain.ActionMoveCell.String() {
			b.pending = false
		}
		return nil, nil
	case api.TypeUpdate:
		next := b.decide(msg)
		if next == nil {
			return nil, nil
		}
		payload, err := json.Marshal(next)
		if err != nil {
			return nil, err
		}
		b.target = &api.CellView{Row: next.Row, Col: next.Col}
		b.pending = true
		return &api.ClientCommand{Action: domain.ActionMoveCell.String(), Payload: payload}, nil
	}
	return nil, nil
}

// decide возвращает новую цель, если старой нет или агент до нее дошел
func (b *Bot) decide(state api.ServerResponse) *api.MoveCellPayload {
	if b.pending || state.Grid == nil || state.Grid.Width == 0 || state.Grid.Height == 0 {
		return nil
	}
	me := findAgent(state.Agents, b.Agent)
	if me == nil {
		return nil
	}

	if b.target != nil {
		if me.Pos != *b.target {
			return nil
		}
		b.arrivals++
		b.log.WithField("cell", fmt.Sprintf("%d.%d", me.Pos.Row, me.Pos.Col)).Debug("Arrived")
	}

	// Следующая цель не должна совпадать с текущей клеткой
	for {
		row, col := b.rng.Intn(state.Grid.Height), b.rng.Intn(state.Grid.Width)
		if row != me.Pos.Row || col != me.Pos.Col || state.Grid.Width*state.Grid.Height == 1 {
			return &api.MoveCellPayload{Agent: b.Agent, Row: row, Col: col}
		}
	}
}

func findAgent(agents []api.AgentView, name string) *api.AgentView {
	for i := range agents {
		if agents[i].Name == name {
			return &agents[i]
		}
	}
	return nil
}
