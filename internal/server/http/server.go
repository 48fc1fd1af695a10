// Package httpserver provides the HTTP surface for the ingestion crawler:
// health probes, Prometheus metrics, run status, task detail, a graceful
// stop control, and read access to the ingested works.
package httpserver

import (
	"context"
	"encoding/json"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog"

	"github.com/Jiejieojoyuyu/article-recommendation-project/internal/checkpoint"
	"github.com/Jiejieojoyuyu/article-recommendation-project/internal/crawler"
	"github.com/Jiejieojoyuyu/article-recommendation-project/internal/database"
	"github.com/Jiejieojoyuyu/article-recommendation-project/internal/repository"
)

// RunController is the slice of the crawl controller the server exposes.
type RunController interface {
	Status() crawler.StatusReport
	RequestStop()
}

// HealthChecker reports backing-store health for the probe endpoints.
type HealthChecker interface {
	Health(ctx context.Context) database.HealthStatus
}

// Server is the operational HTTP server.
type Server struct {
	router     chi.Router
	httpServer *http.Server
	controller RunController
	tracker    *checkpoint.Tracker
	works      repository.WorkRepository
	relations  repository.RelationRepository
	db         HealthChecker
	metrics    http.Handler
	validate   *validator.Validate
	logger     zerolog.Logger
}

// Config holds HTTP server configuration.
type Config struct {
	Address         string
	MetricsPath     string
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	IdleTimeout     time.Duration
	ShutdownTimeout time.Duration
}

// NewServer creates the operational server. The metrics handler is mounted
// at cfg.MetricsPath when non-nil; pass nil to leave metrics unexposed.
func NewServer(
	cfg Config,
	controller RunController,
	tracker *checkpoint.Tracker,
	works repository.WorkRepository,
	relations repository.RelationRepository,
	db HealthChecker,
	metrics http.Handler,
	logger zerolog.Logger,
) *Server {
	s := &Server{
		controller: controller,
		tracker:    tracker,
		works:      works,
		relations:  relations,
		db:         db,
		metrics:    metrics,
		validate:   validator.New(validator.WithRequiredStructEnabled()),
		logger:     logger.With().Str("component", "http-server").Logger(),
	}

	s.router = s.buildRouter(cfg.MetricsPath)

	s.httpServer = &http.Server{
		Addr:         cfg.Address,
		Handler:      s.router,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
		IdleTimeout:  cfg.IdleTimeout,
	}

	return s
}

// buildRouter creates the chi router with all middleware and routes.
func (s *Server) buildRouter(metricsPath string) chi.Router {
	r := chi.NewRouter()

	// Global middleware
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(correlationIDMiddleware)

	// Health endpoints
	r.Get("/healthz", s.healthHandler)
	r.Get("/readyz", s.readinessHandler)

	if s.metrics != nil {
		if metricsPath == "" {
			metricsPath = "/metrics"
		}
		r.Method(http.MethodGet, metricsPath, s.metrics)
	}

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(jsonContentTypeMiddleware)

		r.Get("/status", s.statusHandler)
		r.Get("/tasks", s.listTasksHandler)
		r.Post("/stop", s.stopHandler)

		r.Get("/works", s.listWorksHandler)
		r.Get("/works/{workID}", s.getWorkHandler)
		r.Get("/works/{workID}/relations", s.listWorkRelationsHandler)
	})

	return r
}

// Start starts the HTTP server.
func (s *Server) Start() error {
	s.logger.Info().Str("address", s.httpServer.Addr).Msg("HTTP server starting")
	ln, err := net.Listen("tcp", s.httpServer.Addr)
	if err != nil {
		return fmt.Errorf("listen on HTTP address: %w", err)
	}
	return s.httpServer.Serve(ln)
}

// Shutdown gracefully shuts down the HTTP server.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}

// Handler returns the assembled router, used by tests.
func (s *Server) Handler() http.Handler {
	return s.router
}

// healthHandler returns basic liveness status.
func (s *Server) healthHandler(w http.ResponseWriter, r *http.Request) {
	health := s.db.Health(r.Context())
	if health.Status == "healthy" {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok", "database": health.Status})
		return
	}
	writeJSON(w, http.StatusServiceUnavailable, map[string]string{
		"status":   "unhealthy",
		"database": health.Status,
		"error":    health.Error,
	})
}

// readinessHandler reports whether the crawler can serve: the store must
// answer a ping.
func (s *Server) readinessHandler(w http.ResponseWriter, r *http.Request) {
	health := s.db.Health(r.Context())
	if health.Status != "healthy" {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{
			"status":   "not_ready",
			"database": health.Status,
			"error":    health.Error,
		})
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{
		"status":   "ready",
		"database": "healthy",
	})
}

// writeJSON writes a JSON response with the given status code. Encode
// failures are unrecoverable here because the headers are already sent.
func writeJSON(w http.ResponseWriter, statusCode int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	_ = json.NewEncoder(w).Encode(v)
}

// writeError writes a JSON error response.
func writeError(w http.ResponseWriter, statusCode int, message string) {
	writeJSON(w, statusCode, map[string]string{
		"error": message,
	})
}
