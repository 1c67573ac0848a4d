package server

import (
	"context"
	"net/http"
	"time"

	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"

	"waypoint-server/internal/domain"
	"waypoint-server/internal/engine"
	"waypoint-server/internal/network"
	"waypoint-server/pkg/api"
	"waypoint-server/pkg/logger"
	"waypoint-server/pkg/utils"
)

// Настройки WebSocket
const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 512
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

// Client - посредник между Websocket и симуляцией
type Client struct {
	Sim     *engine.Simulation
	Hub     *network.Broadcaster
	Conn    *websocket.Conn
	Session string

	send chan api.ServerResponse
}

func NewClient(sim *engine.Simulation, hub *network.Broadcaster, conn *websocket.Conn) *Client {
	return &Client{
		Sim:  sim,
		Hub:  hub,
		Conn: conn,
	}
}

// readPump читает команды от клиента. writePump запускается после LOGIN.
func (c *Client) readPump() {
	ctx, cancel := context.WithCancel(context.Background())
	defer func() {
		cancel()
		if c.send != nil {
			// Закрывает канал: writePump отправит Close и завершится
			c.Hub.Unregister(c.Session, c.send)
			logger.Log.WithField("session", c.Session).Info("Client disconnected")
			return
		}
		if err := c.Conn.Close(); err != nil {
			logger.Log.WithError(err).Warn("failed to close websocket connection")
		}
	}()

	c.Conn.SetReadLimit(maxMessageSize)
	if err := c.Conn.SetReadDeadline(time.Now().Add(pongWait)); err != nil {
		logger.Log.WithError(err).Warn("failed to set read deadline")
	}
	c.Conn.SetPongHandler(func(string) error {
		if err := c.Conn.SetReadDeadline(time.Now().Add(pongWait)); err != nil {
			logger.Log.WithError(err).Warn("failed to set pong read deadline")
		}
		return nil
	})

	// 1. HANDSHAKE (LOGIN)
	var loginCmd api.ClientCommand
	if err := c.Conn.ReadJSON(&loginCmd); err != nil {
		logger.Log.WithError(err).Warn("Handshake failed")
		return
	}
	if domain.ParseAction(loginCmd.Action) != domain.ActionLogin {
		c.rejectHandshake(loginCmd.Action)
		return
	}

	c.Session = loginCmd.Token
	if c.Session == "" {
		c.Session = utils.GenerateID()
	}

	// 2. ПОДПИСКА НА ОБНОВЛЕНИЯ
	c.send = c.Hub.Register(c.Session)
	go c.writePump(c.send)

	logger.Log.WithField("session", c.Session).Info("Client logged in")
	c.Hub.SendTo(c.Session, api.ServerResponse{Type: api.TypeOK, Action: domain.ActionLogin.String()})

	// Первый снимок, не дожидаясь тика
	c.Hub.SendTo(c.Session, execute(ctx, c.Sim, domain.InternalCommand{Action: domain.ActionState, Session: c.Session}))

	// 3. ЦИКЛ ЧТЕНИЯ КОМАНД
	for {
		var cmd api.ClientCommand
		if err := c.Conn.ReadJSON(&cmd); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				logger.Log.WithError(err).Warn("WS read error")
			}
			return
		}

		internal := domain.InternalCommand{
			Action:  domain.ParseAction(cmd.Action),
			Session: c.Session,
			Payload: cmd.Payload,
		}
		reply := execute(ctx, c.Sim, internal)
		if reply.Type == api.TypeError && internal.Action == domain.ActionUnknown {
			reply.Action = cmd.Action
		}

		if !c.Hub.SendTo(c.Session, reply) {
			logger.Log.WithFields(logrus.Fields{
				"session": c.Session,
				"action":  cmd.Action,
			}).Warn("Reply dropped: client queue is full")
		}
	}
}

// rejectHandshake отвечает ошибкой напрямую: writePump еще не запущен
func (c *Client) rejectHandshake(action string) {
	if err := c.Conn.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
		logger.Log.WithError(err).Warn("failed to set write deadline")
	}
	err := c.Conn.WriteJSON(api.ServerResponse{
		Type:   api.TypeError,
		Action: action,
		Error:  "first message must be LOGIN",
	})
	if err != nil {
		logger.Log.WithError(err).Debug("write handshake error failed")
	}
}

// writePump отправляет данные клиенту + Ping
func (c *Client) writePump(send <-chan api.ServerResponse) {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		if err := c.Conn.Close(); err != nil {
			logger.Log.WithError(err).Debug("failed to close websocket connection in writePump")
		}
	}()

	for {
		select {
		case message, ok := <-send:
			if err := c.Conn.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
				logger.Log.WithError(err).Warn("failed to set write deadline")
			}
			if !ok {
				if err := c.Conn.WriteMessage(websocket.CloseMessage, []byte{}); err != nil {
					logger.Log.WithError(err).Debug("write close message failed")
				}
				return
			}
			if err := c.Conn.WriteJSON(message); err != nil {
				logger.Log.WithError(err).Debug("write json message failed")
				return
			}

		case <-ticker.C:
			if err := c.Conn.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
				logger.Log.WithError(err).Warn("failed to set ping write deadline")
			}
			if err := c.Conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				logger.Log.WithError(err).Debug("ping failed")
				return
			}
		}
	}
}
