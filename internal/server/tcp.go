package server

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"net"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/sirupsen/logrus"

	"waypoint-server/internal/domain"
	"waypoint-server/internal/engine"
	"waypoint-server/pkg/logger"
)

const (
	maxLineLength = 1024
	lineIdleWait  = 5 * time.Minute
	allAgents     = "all"
)

var errUsage = errors.New("usage")

// LineServer - текстовый командный порт: одна команда на строку, один ответ на строку.
//
//	move <agent> <lat> <lon>
//	movecell <agent> <row> <col>
//	auto <agent|all> <true|false>
//	hide <agent|all>, unhide <agent|all>
//	findnearagent <agent> <radius>
//	findnearplace <agent> <radius> | findnearplace <lat> <lon> <radius>
//	time
//
// Ответ: "OK" или "OK <данные>", при ошибке "ERROR <причина>".
type LineServer struct {
	Sim *engine.Simulation

	address  string
	listener net.Listener

	running atomic.Bool
	stopCh  chan struct{}
	wg      sync.WaitGroup

	connMu sync.Mutex
	conns  map[net.Conn]struct{}

	log *logrus.Entry
}

func NewLineServer(sim *engine.Simulation, address string) *LineServer {
	return &LineServer{
		Sim:     sim,
		address: address,
		stopCh:  make(chan struct{}),
		conns:   make(map[net.Conn]struct{}),
		log:     logger.Component("tcp"),
	}
}

// Start начинает слушать порт и принимать соединения в фоне
func (s *LineServer) Start() error {
	if !s.running.CompareAndSwap(false, true) {
		return nil // Уже запущен
	}

	ln, err := net.Listen("tcp", s.address)
	if err != nil {
		s.running.Store(false)
		return err
	}
	s.listener = ln

	s.wg.Add(1)
	go s.acceptLoop()

	s.log.WithField("addr", ln.Addr().String()).Info("Command port listening")
	return nil
}

// Addr - фактический адрес (нужен, если слушали ":0")
func (s *LineServer) Addr() net.Addr {
	if s.listener == nil {
		return nil
	}
	return s.listener.Addr()
}

// Stop закрывает порт и все открытые соединения
func (s *LineServer) Stop() {
	if !s.running.CompareAndSwap(true, false) {
		return
	}
	close(s.stopCh)
	s.listener.Close()

	s.connMu.Lock()
	for conn := range s.conns {
		conn.Close()
	}
	s.connMu.Unlock()

	s.wg.Wait()
}

func (s *LineServer) acceptLoop() {
	defer s.wg.Done()

	for {
		conn, err := s.listener.Accept()
		if err != nil {
			select {
			case <-s.stopCh:
				return
			default:
			}
			var ne net.Error
			if errors.As(err, &ne) && ne.Timeout() {
				continue
			}
			s.log.WithError(err).Error("Accept failed")
			return
		}

		s.connMu.Lock()
		s.conns[conn] = struct{}{}
		s.connMu.Unlock()

		s.wg.Add(1)
		go s.serve(conn)
	}
}

func (s *LineServer) serve(conn net.Conn) {
	defer s.wg.Done()
	defer func() {
		s.connMu.Lock()
		delete(s.conns, conn)
		s.connMu.Unlock()
		conn.Close()
	}()

	remote := conn.RemoteAddr().String()
	s.log.WithField("remote", remote).Debug("Command client connected")

	scanner := bufio.NewScanner(conn)
	scanner.Buffer(make([]byte, 0, 256), maxLineLength)
	writer := bufio.NewWriter(conn)

	for {
		conn.SetReadDeadline(time.Now().Add(lineIdleWait))
		if !scanner.Scan() {
			break
		}
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}

		reply := s.handleLine(context.Background(), line)
		writer.WriteString(reply)
		writer.WriteByte('\n')
		if err := writer.Flush(); err != nil {
			s.log.WithError(err).WithField("remote", remote).Debug("Write failed")
			return
		}
	}
	if err := scanner.Err(); err != nil {
		s.log.WithError(err).WithField("remote", remote).Debug("Command client dropped")
	}
}

// handleLine разбирает и выполняет одну команду
func (s *LineServer) handleLine(ctx context.Context, line string) string {
	ctx, cancel := context.WithTimeout(ctx, commandTimeout)
	defer cancel()

	parts := strings.Fields(line)
	name := strings.ToLower(parts[0])
	args := parts[1:]

	var (
		data string
		err  error
	)
	switch name {
	case "move":
		err = s.move(ctx, args)
	case "movecell":
		err = s.moveCell(ctx, args)
	case "auto":
		err = s.auto(ctx, args)
	case "hide":
		err = s.setVisible(ctx, args, false)
	case "unhide":
		err = s.setVisible(ctx, args, true)
	case "findnearagent":
		data, err = s.findAgents(ctx, args)
	case "findnearplace":
		data, err = s.findPlaces(ctx, args)
	case "time":
		err = s.Sim.Do(ctx, func(w *engine.World) error {
			data = strconv.FormatInt(w.CurrentTick(), 10)
			return nil
		})
	default:
		err = fmt.Errorf("unknown command %q", name)
	}

	if errors.Is(err, errUsage) {
		return "ERROR usage: " + usage(name)
	}
	if err != nil {
		s.log.WithError(err).WithField("command", name).Debug("Command failed")
		return "ERROR " + err.Error()
	}
	if data == "" {
		return "OK"
	}
	return "OK " + data
}

func usage(command string) string {
	switch command {
	case "move":
		return "move <agent> <lat> <lon>"
	case "movecell":
		return "movecell <agent> <row> <col>"
	case "auto":
		return "auto <agent|all> <true|false>"
	case "hide", "unhide":
		return command + " <agent|all>"
	case "findnearagent":
		return "findnearagent <agent> <radius>"
	case "findnearplace":
		return "findnearplace <agent> <radius> | findnearplace <lat> <lon> <radius>"
	}
	return command
}

func (s *LineServer) move(ctx context.Context, args []string) error {
	if len(args) != 3 {
		return errUsage
	}
	lat, err1 := strconv.ParseFloat(args[1], 64)
	lon, err2 := strconv.ParseFloat(args[2], 64)
	if err1 != nil || err2 != nil {
		return errUsage
	}
	return s.Sim.Do(ctx, func(w *engine.World) error {
		_, err := w.MoveAgentTo(args[0], lat, lon)
		return err
	})
}

func (s *LineServer) moveCell(ctx context.Context, args []string) error {
	if len(args) != 3 {
		return errUsage
	}
	row, err1 := strconv.Atoi(args[1])
	col, err2 := strconv.Atoi(args[2])
	if err1 != nil || err2 != nil {
		return errUsage
	}
	return s.Sim.Do(ctx, func(w *engine.World) error {
		_, err := w.MoveAgentToCell(args[0], domain.Position{Row: row, Col: col})
		return err
	})
}

func (s *LineServer) auto(ctx context.Context, args []string) error {
	if len(args) != 2 {
		return errUsage
	}
	on, err := strconv.ParseBool(args[1])
	if err != nil {
		return errUsage
	}
	return s.Sim.Do(ctx, func(w *engine.World) error {
		if args[0] != allAgents {
			return w.SetAutopilot(args[0], on)
		}
		for _, a := range w.Agents() {
			if err := w.SetAutopilot(a.Name, on); err != nil {
				return err
			}
		}
		return nil
	})
}

func (s *LineServer) setVisible(ctx context.Context, args []string, visible bool) error {
	if len(args) != 1 {
		return errUsage
	}
	return s.Sim.Do(ctx, func(w *engine.World) error {
		if args[0] == allAgents {
			for _, a := range w.Agents() {
				a.Visible = visible
			}
			return nil
		}
		a, err := w.Agent(args[0])
		if err != nil {
			return err
		}
		a.Visible = visible
		return nil
	})
}

func (s *LineServer) findAgents(ctx context.Context, args []string) (string, error) {
	if len(args) != 2 {
		return "", errUsage
	}
	radius, err := strconv.Atoi(args[1])
	if err != nil || radius < 0 {
		return "", errUsage
	}

	var names []string
	err = s.Sim.Do(ctx, func(w *engine.World) error {
		a, err := w.Agent(args[0])
		if err != nil {
			return err
		}
		found, err := w.FindAgentsNear(a.Pos, radius, false)
		if err != nil {
			return err
		}
		for _, other := range found {
			if other != a {
				names = append(names, other.Name)
			}
		}
		if len(names) == 0 {
			return fmt.Errorf("%w: no one near %s", domain.ErrNothingNear, a.Name)
		}
		return nil
	})
	return strings.Join(names, " "), err
}

func (s *LineServer) findPlaces(ctx context.Context, args []string) (string, error) {
	var (
		agent    string
		lat, lon float64
		radius   int
		err      error
	)
	switch len(args) {
	case 2:
		agent = args[0]
		radius, err = strconv.Atoi(args[1])
	case 3:
		var err1, err2 error
		lat, err1 = strconv.ParseFloat(args[0], 64)
		lon, err2 = strconv.ParseFloat(args[1], 64)
		radius, err = strconv.Atoi(args[2])
		err = errors.Join(err1, err2, err)
	default:
		return "", errUsage
	}
	if err != nil || radius < 0 {
		return "", errUsage
	}

	var names []string
	err = s.Sim.Do(ctx, func(w *engine.World) error {
		var pos domain.Position
		if agent != "" {
			a, err := w.Agent(agent)
			if err != nil {
				return err
			}
			pos = a.Pos
		} else {
			var err error
			if pos, err = w.Grid().FromGeo(lat, lon); err != nil {
				return err
			}
		}

		found, err := w.FindPlacesNear(pos, radius)
		if err != nil {
			return err
		}
		for _, p := range found {
			names = append(names, p.Name)
		}
		return nil
	})
	return strings.Join(names, " "), err
}
