// Package core is the API chassis for the climatelens engine. It owns the
// chi router and the cross-cutting concerns (panic recovery, request
// correlation, logging, timeouts) applied before requests reach the domain
// handlers.
package core

import (
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"climatelens/internal/config"
)

// defaultRequestTimeout is the soft deadline for a single request. Segment
// runs manage their own tighter deadline beneath it.
const defaultRequestTimeout = 150 * time.Second

// RouteRegistrar mounts a domain handler's routes onto the /v1 group. The
// indirection keeps core free of handler imports.
type RouteRegistrar func(r chi.Router)

// Server bundles the router with its injected dependencies, so tests can
// construct one with only the pieces they exercise.
type Server struct {
	Config    *config.Config
	Logger    *slog.Logger
	Validator *Validator

	// V1Registrars is populated by the entry point before MountRoutes.
	V1Registrars []RouteRegistrar

	// HealthProbes are checked by the /healthz endpoint. Empty means the
	// endpoint reports liveness only.
	HealthProbes []HealthProbe

	// Metrics backs the /metrics endpoint. Nil disables the endpoint.
	Metrics prometheus.Gatherer

	router *chi.Mux
}

// NewServer validates the critical dependencies and prepares the router.
// The caller mounts routes afterwards, which lets tests register their own.
func NewServer(cfg *config.Config, logger *slog.Logger) (*Server, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config must not be nil")
	}
	if logger == nil {
		return nil, fmt.Errorf("logger must not be nil")
	}

	return &Server{
		Config:    cfg,
		Logger:    logger,
		Validator: NewValidator(logger),
		router:    chi.NewRouter(),
	}, nil
}

// Handler returns the router as an http.Handler for ListenAndServe.
func (s *Server) Handler() http.Handler {
	return s.router
}

// Router exposes the underlying mux for tests.
func (s *Server) Router() *chi.Mux {
	return s.router
}

// MountRoutes registers the global middleware chain, the /v1 domain routes,
// and the operational endpoints.
func (s *Server) MountRoutes() {
	s.registerGlobalMiddleware()

	s.router.Route("/v1", func(r chi.Router) {
		for _, registrar := range s.V1Registrars {
			registrar(r)
		}
	})

	s.router.Get("/healthz", s.HandleHealth)
	if s.Metrics != nil {
		s.router.Method(http.MethodGet, "/metrics",
			promhttp.HandlerFor(s.Metrics, promhttp.HandlerOpts{}))
	}
}

// registerGlobalMiddleware applies middleware in strict order: the recoverer
// is outermost so every panic is caught, the timeout bounds everything
// beneath it, and the request ID must exist before anything logs.
func (s *Server) registerGlobalMiddleware() {
	s.router.Use(s.Recoverer)
	s.router.Use(ContextTimeoutMiddleware(defaultRequestTimeout))
	s.router.Use(RequestIDMiddleware)
	s.router.Use(SecurityHeadersMiddleware)
	s.router.Use(RequestLogger(s.Logger))
}
