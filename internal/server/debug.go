package server

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"waypoint-server/internal/domain"
	"waypoint-server/internal/engine"
	"waypoint-server/internal/systems"
	"waypoint-server/pkg/api"
)

// DebugHandler предоставляет доступ к внутреннему состоянию симуляции.
// Всё читается через Simulation.Do, мир из HTTP-потока не трогаем.
type DebugHandler struct {
	Sim *engine.Simulation
}

func NewDebugHandler(sim *engine.Simulation) *DebugHandler {
	return &DebugHandler{Sim: sim}
}

// RegisterRoutes регистрирует debug-эндпоинты
func (h *DebugHandler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("/debug/cache", h.handleCache)
	mux.HandleFunc("/debug/places", h.handlePlaces)
	mux.HandleFunc("/debug/agents", h.handleAgents)
	mux.HandleFunc("/debug/gradient", h.handleGradient)
}

func (h *DebugHandler) query(r *http.Request, fn func(w *engine.World) error) error {
	ctx, cancel := context.WithTimeout(r.Context(), commandTimeout)
	defer cancel()
	return h.Sim.Do(ctx, fn)
}

// /debug/cache - статистика кэша градиентов
func (h *DebugHandler) handleCache(w http.ResponseWriter, r *http.Request) {
	var view api.CacheView
	err := h.query(r, func(world *engine.World) error {
		c := world.Cache()
		s := c.Stats()
		view = api.CacheView{
			Size:      s.Size,
			Capacity:  s.Capacity,
			Hits:      s.Hits,
			Loads:     s.Loads,
			Computes:  s.Computes,
			Evictions: s.Evictions,
			Stored:    c.Stored(),
			Cached:    c.Cached(),
		}
		return nil
	})
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, view)
}

// /debug/places - все зарегистрированные места
func (h *DebugHandler) handlePlaces(w http.ResponseWriter, r *http.Request) {
	var views []api.PlaceView
	err := h.query(r, func(world *engine.World) error {
		for _, p := range world.Places() {
			view := api.PlaceView{
				Name:      p.Name,
				Type:      p.Type,
				Pos:       api.CellView{Row: p.Pos.Row, Col: p.Pos.Col},
				Temporary: p.IsTemporary(),
			}
			if lat, lon, err := world.Grid().ToGeo(p.Pos); err == nil {
				view.Geo = &api.GeoView{Lat: lat, Lon: lon}
			}
			views = append(views, view)
		}
		return nil
	})
	if err != nil {
		writeError(w, err)
		return
	}
	if len(views) == 0 {
		writeJSON(w, nil)
		return
	}
	writeJSON(w, views)
}

// /debug/agents - снимок всех агентов, включая скрытых
func (h *DebugHandler) handleAgents(w http.ResponseWriter, r *http.Request) {
	var views []api.AgentView
	err := h.query(r, func(world *engine.World) error {
		for _, a := range world.Agents() {
			views = append(views, engine.ViewAgent(world.Grid(), a))
		}
		return nil
	})
	if err != nil {
		writeError(w, err)
		return
	}
	if len(views) == 0 {
		writeJSON(w, nil)
		return
	}
	writeJSON(w, views)
}

// /debug/gradient?place=shop-0.6 - матрица градиента места (копия)
func (h *DebugHandler) handleGradient(w http.ResponseWriter, r *http.Request) {
	name := r.URL.Query().Get("place")
	if name == "" {
		http.Error(w, "place is required", http.StatusBadRequest)
		return
	}

	var g *systems.Gradient
	err := h.query(r, func(world *engine.World) error {
		p, err := world.PlaceByName(name)
		if err != nil {
			return err
		}
		g, err = p.Gradient()
		return err
	})
	if err != nil {
		writeError(w, err)
		return
	}

	matrix := g.Matrix()
	for _, row := range matrix {
		for i, v := range row {
			if v == systems.Unreachable {
				row[i] = -1
			}
		}
	}
	writeJSON(w, api.GradientView{
		Place:    name,
		Center:   api.CellView{Row: g.Center().Row, Col: g.Center().Col},
		Complete: g.Complete(),
		Matrix:   matrix,
	})
}

func writeError(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, domain.ErrPlaceNotFound), errors.Is(err, domain.ErrAgentNotFound):
		status = http.StatusNotFound
	case errors.Is(err, engine.ErrSimulationStopped), errors.Is(err, context.DeadlineExceeded):
		status = http.StatusServiceUnavailable
	}
	http.Error(w, err.Error(), status)
}

func writeJSON(w http.ResponseWriter, data interface{}) {
	// Разрешаем запросы с любого источника (нужно для локального debug-клиента)
	w.Header().Set("Access-Control-Allow-Origin", "*")
	w.Header().Set("Access-Control-Allow-Methods", "GET, OPTIONS")
	w.Header().Set("Access-Control-Allow-Headers", "Content-Type")

	w.Header().Set("Content-Type", "application/json")

	// Пустой список отдаем как [], а не null
	if data == nil {
		w.Write([]byte("[]"))
		return
	}

	json.NewEncoder(w).Encode(data)
}
