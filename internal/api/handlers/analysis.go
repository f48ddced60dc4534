// Package handlers contains the HTTP handler implementations for the
// climatelens API. Handlers stay thin: decode, validate, delegate to the
// analysis service, encode.
package handlers

import (
	"context"
	"log/slog"
	"net/http"
	"sort"

	"github.com/go-chi/chi/v5"

	"climatelens/internal/analysis"
	"climatelens/internal/core"
	"climatelens/internal/types"
)

// AnalysisService is the service contract the analysis handler depends on.
// Defined locally so handler tests can substitute a stub.
type AnalysisService interface {
	Analyze(ctx context.Context, lat, lon float64, month, day int, conditionIDs []string, forceRefresh bool) (*analysis.Output, error)
	Segment(ctx context.Context, centerLat, centerLon float64, month int, conditionID string, step, searchRange float64) (*types.Grid, error)
}

// ConditionCatalog lists the evaluable conditions for discovery endpoints.
type ConditionCatalog interface {
	List() []types.ConditionSpec
}

// GeocodeResolver turns a place name into coordinates. No implementation
// ships here; deployments inject one, and without it requests must carry
// explicit coordinates.
type GeocodeResolver interface {
	Resolve(ctx context.Context, name string) (lat, lon float64, err error)
}

// AnalysisHandler maps HTTP requests to the analysis service.
type AnalysisHandler struct {
	service   AnalysisService
	catalog   ConditionCatalog
	geocoder  GeocodeResolver
	validator *core.Validator
	logger    *slog.Logger
}

// NewAnalysisHandler creates the handler. geocoder may be nil.
func NewAnalysisHandler(svc AnalysisService, catalog ConditionCatalog, geocoder GeocodeResolver, val *core.Validator, logger *slog.Logger) *AnalysisHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &AnalysisHandler{
		service:   svc,
		catalog:   catalog,
		geocoder:  geocoder,
		validator: val,
		logger:    logger,
	}
}

// RegisterRoutes mounts the analysis endpoints onto the /v1 group.
func (h *AnalysisHandler) RegisterRoutes(r chi.Router) {
	r.Post("/analyze", h.HandleAnalyze)
	r.Post("/segment", h.HandleSegment)
	r.Get("/conditions", h.HandleListConditions)
}

// conditionSummary is the discovery view of a condition: thresholds and
// variables, without the internal predicate machinery.
type conditionSummary struct {
	ID          string             `json:"id"`
	DisplayName string             `json:"display_name"`
	Description string             `json:"description"`
	Variables   []string           `json:"variables"`
	Thresholds  map[string]float64 `json:"thresholds"`
}

// HandleListConditions handles GET /v1/conditions.
func (h *AnalysisHandler) HandleListConditions(w http.ResponseWriter, r *http.Request) {
	specs := h.catalog.List()
	out := make([]conditionSummary, 0, len(specs))
	for _, spec := range specs {
		out = append(out, conditionSummary{
			ID:          spec.ID,
			DisplayName: spec.DisplayName,
			Description: spec.Description,
			Variables:   spec.Variables,
			Thresholds:  spec.Thresholds(),
		})
	}
	core.JSON(w, r, http.StatusOK, core.APIResponse{Data: map[string]any{"conditions": out}})
}

// AnalyzeRequest is the body for POST /v1/analyze. Either explicit
// coordinates or a resolvable location name must be supplied.
type AnalyzeRequest struct {
	Location     string   `json:"location,omitempty"`
	Latitude     *float64 `json:"latitude,omitempty"`
	Longitude    *float64 `json:"longitude,omitempty"`
	Month        int      `json:"month" validate:"required,min=1,max=12"`
	Day          int      `json:"day" validate:"min=0,max=31"`
	Conditions   []string `json:"conditions" validate:"required,min=1,dive,required"`
	ForceRefresh bool     `json:"force_refresh,omitempty"`
}

// HandleAnalyze handles POST /v1/analyze.
func (h *AnalysisHandler) HandleAnalyze(w http.ResponseWriter, r *http.Request) {
	var req AnalyzeRequest
	if err := core.DecodeJSON(w, r, &req); err != nil {
		core.Error(w, r, err)
		return
	}
	if appErr := h.validator.ValidateStruct(req); appErr != nil {
		core.Error(w, r, appErr)
		return
	}

	lat, lon, err := h.resolveCoordinates(r.Context(), req.Location, req.Latitude, req.Longitude)
	if err != nil {
		core.Error(w, r, err)
		return
	}

	out, err := h.service.Analyze(r.Context(), lat, lon, req.Month, req.Day, req.Conditions, req.ForceRefresh)
	if err != nil {
		core.Error(w, r, err)
		return
	}

	core.JSON(w, r, http.StatusOK, core.APIResponse{Data: out})
}

// SegmentRequest is the body for POST /v1/segment. Day is absent on purpose:
// segmentation always evaluates over the whole month.
type SegmentRequest struct {
	Location  string   `json:"location,omitempty"`
	Latitude  *float64 `json:"latitude,omitempty"`
	Longitude *float64 `json:"longitude,omitempty"`
	Month     int      `json:"month" validate:"required,min=1,max=12"`
	Condition string   `json:"condition" validate:"required"`
	GridStep  *float64 `json:"grid_step,omitempty" validate:"omitempty,gt=0"`
	GridRange *float64 `json:"grid_range,omitempty" validate:"omitempty,gt=0"`
}

const (
	defaultGridStep  = 0.5
	defaultGridRange = 1.0
)

// SegmentResponse reshapes the grid for clients: cells ranked best-first by
// probability, failed cells trailing.
type SegmentResponse struct {
	Center      types.Coordinate `json:"center"`
	Condition   string           `json:"condition"`
	Month       int              `json:"month"`
	GridStep    float64          `json:"grid_step"`
	GridRange   float64          `json:"grid_range"`
	CellsTotal  int              `json:"cells_total"`
	CellsFailed int              `json:"cells_failed"`
	Cells       []types.GridCell `json:"cells"`
}

// HandleSegment handles POST /v1/segment.
func (h *AnalysisHandler) HandleSegment(w http.ResponseWriter, r *http.Request) {
	var req SegmentRequest
	if err := core.DecodeJSON(w, r, &req); err != nil {
		core.Error(w, r, err)
		return
	}
	if appErr := h.validator.ValidateStruct(req); appErr != nil {
		core.Error(w, r, appErr)
		return
	}

	lat, lon, err := h.resolveCoordinates(r.Context(), req.Location, req.Latitude, req.Longitude)
	if err != nil {
		core.Error(w, r, err)
		return
	}

	step := defaultGridStep
	if req.GridStep != nil {
		step = *req.GridStep
	}
	searchRange := defaultGridRange
	if req.GridRange != nil {
		searchRange = *req.GridRange
	}

	grid, err := h.service.Segment(r.Context(), lat, lon, req.Month, req.Condition, step, searchRange)
	if err != nil {
		core.Error(w, r, err)
		return
	}

	core.JSON(w, r, http.StatusOK, core.APIResponse{Data: buildSegmentResponse(grid)})
}

// resolveCoordinates prefers explicit coordinates; a location name is only
// consulted when they are absent. Without a geocoder a name-only request is
// answered with location_unknown.
func (h *AnalysisHandler) resolveCoordinates(ctx context.Context, location string, lat, lon *float64) (float64, float64, error) {
	if lat != nil && lon != nil {
		return *lat, *lon, nil
	}
	if lat != nil || lon != nil {
		return 0, 0, types.NewAppError(types.ErrCodeValidationMissingField,
			"latitude and longitude must be provided together", nil)
	}
	if location == "" {
		return 0, 0, types.NewAppError(types.ErrCodeValidationMissingField,
			"either coordinates or a location name is required", nil)
	}
	if h.geocoder == nil {
		return 0, 0, types.NewAppErrorWithDetails(types.ErrCodeLocationUnknown,
			"location resolution is not available, supply coordinates", nil,
			map[string]any{"location": location})
	}

	rlat, rlon, err := h.geocoder.Resolve(ctx, location)
	if err != nil {
		return 0, 0, types.NewAppErrorWithDetails(types.ErrCodeLocationUnknown,
			"could not resolve location", err,
			map[string]any{"location": location})
	}
	return rlat, rlon, nil
}

// buildSegmentResponse sorts cells by probability descending. Cells without
// a result rank below every successful cell; ties keep grid order.
func buildSegmentResponse(grid *types.Grid) SegmentResponse {
	cells := make([]types.GridCell, len(grid.Cells))
	copy(cells, grid.Cells)

	sort.SliceStable(cells, func(i, j int) bool {
		pi, iok := cellProbability(cells[i])
		pj, jok := cellProbability(cells[j])
		if iok != jok {
			return iok
		}
		return pi > pj
	})

	return SegmentResponse{
		Center:      grid.Center,
		Condition:   grid.ConditionID,
		Month:       grid.Month,
		GridStep:    grid.Step,
		GridRange:   grid.Range,
		CellsTotal:  len(cells),
		CellsFailed: grid.FailedCount,
		Cells:       cells,
	}
}

func cellProbability(c types.GridCell) (float64, bool) {
	if c.Result == nil {
		return 0, false
	}
	return c.Result.Probability, true
}
