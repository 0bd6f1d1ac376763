package httpapi

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/plutonik-a/berlin-wastewater-dashboard/internal/pipeline"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// SnapshotProvider serves the latest aggregation result, nil before the
// first refresh completes.
type SnapshotProvider interface {
	Snapshot() *pipeline.Snapshot
}

// ReadinessChecker reports whether the service is ready to serve traffic.
type ReadinessChecker interface {
	CheckReadiness(ctx context.Context) error
}

// Server exposes the dashboard data API plus health, readiness, and metrics
// endpoints.
type Server struct {
	httpServer *http.Server
	snapshots  SnapshotProvider
	logger     *slog.Logger
}

// NewServer creates the HTTP server with all routes registered.
func NewServer(addr string, snapshots SnapshotProvider, ready ReadinessChecker, logger *slog.Logger) *Server {
	mux := http.NewServeMux()

	s := &Server{
		httpServer: &http.Server{
			Addr:         addr,
			Handler:      mux,
			ReadTimeout:  10 * time.Second,
			WriteTimeout: 10 * time.Second,
			IdleTimeout:  60 * time.Second,
		},
		snapshots: snapshots,
		logger:    logger,
	}

	mux.HandleFunc("GET /healthz", s.handleHealth)
	mux.HandleFunc("GET /readyz", handleReady(ready))
	mux.Handle("GET /metrics", promhttp.Handler())

	mux.HandleFunc("GET /api/stations", s.handleStations)
	mux.HandleFunc("GET /api/series/{station}", s.handleSeries)
	mux.HandleFunc("GET /api/composite", s.handleComposite)
	mux.HandleFunc("GET /api/scale", s.handleScale)

	return s
}

// Start begins listening. Returns http.ErrServerClosed on graceful shutdown.
func (s *Server) Start() error {
	s.logger.Info("http server starting", "addr", s.httpServer.Addr)
	return s.httpServer.ListenAndServe()
}

// Shutdown gracefully drains connections within the given context deadline.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}

// ServeHTTP delegates to the underlying handler, useful for testing.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.httpServer.Handler.ServeHTTP(w, r)
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "healthy"})
}

func handleReady(checker ReadinessChecker) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()

		if err := checker.CheckReadiness(ctx); err != nil {
			writeJSON(w, http.StatusServiceUnavailable, map[string]string{
				"status": "not ready",
				"error":  err.Error(),
			})
			return
		}
		writeJSON(w, http.StatusOK, map[string]string{"status": "ready"})
	}
}

// currentSnapshot fetches the snapshot or answers 503 when none exists yet.
func (s *Server) currentSnapshot(w http.ResponseWriter) (*pipeline.Snapshot, bool) {
	snap := s.snapshots.Snapshot()
	if snap == nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{
			"error": "dataset not loaded yet",
		})
		return nil, false
	}
	return snap, true
}

func (s *Server) handleStations(w http.ResponseWriter, _ *http.Request) {
	snap, ok := s.currentSnapshot(w)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"stations": snap.Stations})
}

func (s *Server) handleSeries(w http.ResponseWriter, r *http.Request) {
	snap, ok := s.currentSnapshot(w)
	if !ok {
		return
	}

	station := r.PathValue("station")
	points, ok := snap.SeriesFor(station)
	if !ok {
		writeJSON(w, http.StatusNotFound, map[string]string{
			"error": "unknown station: " + station,
		})
		return
	}
	writeJSON(w, http.StatusOK, points)
}

func (s *Server) handleComposite(w http.ResponseWriter, _ *http.Request) {
	snap, ok := s.currentSnapshot(w)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, snap.Composite)
}

func (s *Server) handleScale(w http.ResponseWriter, _ *http.Request) {
	snap, ok := s.currentSnapshot(w)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"upper_bound":  snap.UpperBound,
		"refreshed_at": snap.RefreshedAt.Format(time.RFC3339),
	})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v) //nolint:errcheck // best-effort response
}
