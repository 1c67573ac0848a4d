package server

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	_ "net/http/pprof" // Profiling
	"time"

	"waypoint-server/internal/engine"
	"waypoint-server/internal/network"
	"waypoint-server/internal/version"
	"waypoint-server/pkg/api"
	"waypoint-server/pkg/logger"
)

// commandTimeout - сколько запрос ждет очереди симуляции
const commandTimeout = 5 * time.Second

type Server struct {
	Sim  *engine.Simulation
	Hub  *network.Broadcaster
	Port string

	httpServer *http.Server
}

func New(sim *engine.Simulation, hub *network.Broadcaster, port string) *Server {
	s := &Server{
		Sim:  sim,
		Hub:  hub,
		Port: port,
	}
	s.httpServer = &http.Server{
		Addr:              ":" + port,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	return s
}

// Handler собирает все маршруты. Отдельно от Run, чтобы тесты могли поднять httptest.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("/ws", enableCORS(s.handleWS))
	mux.HandleFunc("/health", enableCORS(s.handleHealth))
	mux.HandleFunc("/version", enableCORS(s.handleVersion))
	mux.HandleFunc("/schema", enableCORS(s.handleSchema))

	debugHandler := NewDebugHandler(s.Sim)
	debugHandler.RegisterRoutes(mux)

	// pprof регистрируется в DefaultServeMux
	mux.Handle("/debug/pprof/", http.DefaultServeMux)

	return mux
}

// Run запускает HTTP сервер. Возвращает nil после Shutdown.
func (s *Server) Run() error {
	logger.Log.Infof("🧭 Waypoint server running on :%s", s.Port)
	if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Shutdown останавливает прием соединений
func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}

func enableCORS(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		// Разрешаем запросы с фронтенда
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type")

		next(w, r)
	}
}

// handleWS обрабатывает подключение по WebSocket
func (s *Server) handleWS(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		logger.Log.WithError(err).Error("Upgrade error")
		return
	}

	client := NewClient(s.Sim, s.Hub, conn)
	go client.readPump()
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	w.Write([]byte("ok"))
}

func (s *Server) handleVersion(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(version.Info())
}

func (s *Server) handleSchema(w http.ResponseWriter, r *http.Request) {
	data, err := api.SchemaJSON()
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/schema+json")
	w.Write(data)
}
