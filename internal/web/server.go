// Package web is the HTTP surface for downstream consumers: the current
// record list, fresh aggregate snapshots, sync control, and bulk clear.
package web

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"ordertrack/internal/backup"
	"ordertrack/internal/fullsync"
	"ordertrack/internal/metrics"
	"ordertrack/internal/reconcile"
	"ordertrack/internal/stats"
)

type Server struct {
	Rec     *reconcile.Engine
	Stats   *stats.Engine
	Coord   *fullsync.Coordinator
	Metrics *metrics.Registry
	Dumper  backup.Dumper
}

func (s *Server) Router() chi.Router {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]any{"status": "ok"})
	})
	if s.Metrics != nil {
		r.Method(http.MethodGet, "/metrics", s.Metrics.Handler())
	}

	r.Get("/orders", s.handleOrders)
	r.Delete("/orders", s.handleClear)
	r.Get("/stats", s.handleStats)
	r.Post("/sync", s.handleSync)
	if s.Dumper != nil {
		r.Post("/backup", s.handleBackup)
	}
	return r
}

// handleOrders returns the full record list sorted by recency; ?limit trims
// it for recent-orders views.
func (s *Server) handleOrders(w http.ResponseWriter, r *http.Request) {
	orders, err := s.Rec.Orders()
	if err != nil {
		log.Printf("web: list orders failed: %v", err)
		writeJSON(w, http.StatusInternalServerError, map[string]any{"error": "store unavailable"})
		return
	}
	if q := r.URL.Query().Get("limit"); q != "" {
		if n, err := strconv.Atoi(q); err == nil && n >= 0 && n < len(orders) {
			orders = orders[:n]
		}
	}
	writeJSON(w, http.StatusOK, map[string]any{"orders": orders, "count": len(orders)})
}

func (s *Server) handleClear(w http.ResponseWriter, _ *http.Request) {
	if err := s.Rec.Clear(); err != nil {
		log.Printf("web: clear failed: %v", err)
		writeJSON(w, http.StatusInternalServerError, map[string]any{"error": "clear failed"})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"status": "cleared"})
}

func (s *Server) handleStats(w http.ResponseWriter, _ *http.Request) {
	rep, err := s.Stats.Report()
	if err != nil {
		log.Printf("web: stats failed: %v", err)
		writeJSON(w, http.StatusInternalServerError, map[string]any{"error": "store unavailable"})
		return
	}
	writeJSON(w, http.StatusOK, rep)
}

func (s *Server) handleSync(w http.ResponseWriter, r *http.Request) {
	if s.Coord == nil {
		writeJSON(w, http.StatusNotImplemented, map[string]any{"error": "no page source configured"})
		return
	}
	// The run outlives the request; detach it from the request context.
	if err := s.Coord.Start(context.WithoutCancel(r.Context())); err != nil {
		if errors.Is(err, fullsync.ErrAlreadyRunning) {
			writeJSON(w, http.StatusConflict, map[string]any{"error": err.Error()})
			return
		}
		writeJSON(w, http.StatusInternalServerError, map[string]any{"error": err.Error()})
		return
	}
	writeJSON(w, http.StatusAccepted, map[string]any{"status": "started"})
}

func (s *Server) handleBackup(w http.ResponseWriter, _ *http.Request) {
	orders, err := s.Rec.Orders()
	if err != nil {
		log.Printf("web: backup failed: %v", err)
		writeJSON(w, http.StatusInternalServerError, map[string]any{"error": "store unavailable"})
		return
	}
	path, err := s.Dumper.Dump(time.Now().UTC().Format("20060102T150405Z"), orders)
	if err != nil {
		log.Printf("web: backup failed: %v", err)
		writeJSON(w, http.StatusInternalServerError, map[string]any{"error": "dump failed"})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"path": path, "orders": len(orders)})
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}
