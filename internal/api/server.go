// Package api serves the operational HTTP surface: health, the call
// log, and Prometheus metrics.
package api

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/voicegate/voicegate/internal/api/middleware"
	"github.com/voicegate/voicegate/internal/database"
	"github.com/voicegate/voicegate/internal/metrics"
)

// Server holds HTTP handler dependencies and the chi router.
type Server struct {
	router   *chi.Mux
	calls    database.CallRepository
	active   metrics.ActiveCallsProvider
	registry *prometheus.Registry
	limiter  *middleware.IPRateLimiter
}

// NewServer creates the HTTP handler with all routes mounted.
func NewServer(calls database.CallRepository, active metrics.ActiveCallsProvider, registry *prometheus.Registry, limiter *middleware.IPRateLimiter) *Server {
	s := &Server{
		router:   chi.NewRouter(),
		calls:    calls,
		active:   active,
		registry: registry,
		limiter:  limiter,
	}

	s.routes()
	return s
}

// ServeHTTP implements http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

// routes configures all middleware and mounts all route groups.
func (s *Server) routes() {
	r := s.router

	// Global middleware stack.
	r.Use(chimw.RequestID)
	r.Use(chimw.RealIP)
	r.Use(middleware.StructuredLogger)
	r.Use(middleware.Recoverer)
	if s.limiter != nil {
		r.Use(middleware.RateLimit(s.limiter))
	}

	r.Route("/api/v1", func(r chi.Router) {
		r.Get("/health", s.handleHealth)

		r.Route("/calls", func(r chi.Router) {
			r.Get("/", s.handleListCalls)
			r.Get("/{id}", s.handleGetCall)
		})
	})

	r.Method(http.MethodGet, "/metrics", promhttp.HandlerFor(
		s.registry, promhttp.HandlerOpts{},
	))

	slog.Info("api routes mounted")
}

// handleHealth returns basic health status. Unauthenticated.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	resp := map[string]any{"status": "ok"}
	if s.active != nil {
		resp["active_calls"] = s.active.ActiveCallCount()
	}
	writeJSON(w, http.StatusOK, resp)
}
