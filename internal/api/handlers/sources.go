package handlers

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"climatelens/internal/core"
	"climatelens/internal/types"
)

// SourceService is the service contract for the sources handler.
type SourceService interface {
	SourceStatus() []types.SourceStatus
	SourceTest(ctx context.Context) []types.SourceProbe
}

// SourcesHandler exposes the data source inventory and reachability probes.
type SourcesHandler struct {
	service SourceService
	logger  *slog.Logger
}

// NewSourcesHandler creates the handler.
func NewSourcesHandler(svc SourceService, logger *slog.Logger) *SourcesHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &SourcesHandler{service: svc, logger: logger}
}

// RegisterRoutes mounts the source endpoints onto the /v1 group.
func (h *SourcesHandler) RegisterRoutes(r chi.Router) {
	r.Route("/sources", func(r chi.Router) {
		r.Get("/status", h.HandleStatus)
		r.Get("/test", h.HandleTest)
	})
}

// HandleStatus handles GET /v1/sources/status. It reports the configured
// fallback chain in priority order without touching the network.
func (h *SourcesHandler) HandleStatus(w http.ResponseWriter, r *http.Request) {
	core.JSON(w, r, http.StatusOK, core.APIResponse{
		Data: map[string]any{"sources": h.service.SourceStatus()},
	})
}

// HandleTest handles GET /v1/sources/test. It probes every configured source
// live and reports per-source reachability and latency. Unreachable sources
// do not make this endpoint fail; the point is the report itself.
func (h *SourcesHandler) HandleTest(w http.ResponseWriter, r *http.Request) {
	probes := h.service.SourceTest(r.Context())
	core.JSON(w, r, http.StatusOK, core.APIResponse{
		Data: map[string]any{"sources": probes},
	})
}
