package analysis

import (
	"context"
	"log/slog"
	"time"

	"golang.org/x/sync/singleflight"

	"climatelens/internal/observability"
	"climatelens/internal/sources"
	"climatelens/internal/types"
)

// Options tunes the service. Zero values fall back to the defaults noted on
// each field.
type Options struct {
	// GridWorkers bounds concurrent grid cell analyses. Default 4.
	GridWorkers int
	// SegmentTimeout is the deadline for a whole segmentation run. Default 2m.
	SegmentTimeout time.Duration
}

const (
	defaultGridWorkers    = 4
	defaultSegmentTimeout = 2 * time.Minute
)

// Service is the exposed analysis surface consumed by the HTTP layer. It
// fronts the analyzer with the shared result cache and implements the
// geospatial segmenter's fan-out.
type Service struct {
	analyzer *Analyzer
	cache    *Cache
	gateway  *sources.Gateway
	flight   singleflight.Group
	workers  int
	timeout  time.Duration
	logger   *slog.Logger
	metrics  *observability.Metrics
}

// NewService wires the exposed surface. The cache and gateway are shared,
// process-scoped state constructed once at startup.
func NewService(analyzer *Analyzer, cache *Cache, gateway *sources.Gateway, opts Options, logger *slog.Logger, metrics *observability.Metrics) *Service {
	if opts.GridWorkers <= 0 {
		opts.GridWorkers = defaultGridWorkers
	}
	if opts.SegmentTimeout <= 0 {
		opts.SegmentTimeout = defaultSegmentTimeout
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		analyzer: analyzer,
		cache:    cache,
		gateway:  gateway,
		workers:  opts.GridWorkers,
		timeout:  opts.SegmentTimeout,
		logger:   logger,
		metrics:  metrics,
	}
}

// Output is an analyze response: per-condition results and errors, whether
// the response was served from cache, and the source that supplied the data.
type Output struct {
	Results map[string]*types.AnalysisResult `json:"results"`
	Errors  map[string]*types.AppError       `json:"errors,omitempty"`
	Cached  bool                             `json:"cached"`
	Source  string                           `json:"source"`
}

// Analyze answers one location/date query, consulting the cache first.
//
// The cache is only authoritative when every requested condition has a live
// entry from a single source (the source is part of the key and is unknown
// until a fetch happens, so sources are tried in fallback order). Anything
// less is a miss: the conditions share one fetch anyway, so partial hits
// save nothing. forceRefresh bypasses the lookup entirely but fresh results
// are still written back, overwriting existing entries.
func (s *Service) Analyze(ctx context.Context, lat, lon float64, month, day int, conditionIDs []string, forceRefresh bool) (*Output, error) {
	if s.metrics != nil {
		s.metrics.AnalyzeRequests.Inc()
	}

	coord, appErr := types.ValidateCoordinate(lat, lon)
	if appErr != nil {
		return nil, appErr
	}
	if appErr := types.ValidateTargetDate(month, day); appErr != nil {
		return nil, appErr
	}

	conditionIDs = dedupe(conditionIDs)

	if forceRefresh {
		s.cache.recordLookup("bypass")
	} else if out, ok := s.lookup(coord, month, day, conditionIDs); ok {
		s.cache.recordLookup("hit")
		return out, nil
	} else {
		s.cache.recordLookup("miss")
	}

	comp, err := s.analyzer.Analyze(ctx, lat, lon, month, day, conditionIDs)
	if err != nil {
		return nil, err
	}

	for id, result := range comp.Results {
		s.cache.Put(NewKey(coord, month, day, id, comp.Source), result)
	}

	return &Output{
		Results: comp.Results,
		Errors:  comp.Errors,
		Cached:  false,
		Source:  comp.Source,
	}, nil
}

// lookup tries to assemble a fully-cached response from a single source.
func (s *Service) lookup(coord types.Coordinate, month, day int, conditionIDs []string) (*Output, bool) {
	for _, sourceID := range s.gateway.SourceIDs() {
		results := make(map[string]*types.AnalysisResult, len(conditionIDs))
		complete := true
		for _, id := range conditionIDs {
			result, ok := s.cache.Get(NewKey(coord, month, day, id, sourceID))
			if !ok {
				complete = false
				break
			}
			results[id] = result
		}
		if complete {
			return &Output{Results: results, Cached: true, Source: sourceID}, true
		}
	}
	return nil, false
}

// SourceStatus reports which sources are configured.
func (s *Service) SourceStatus() []types.SourceStatus {
	return s.gateway.Status()
}

// SourceTest probes source connectivity.
func (s *Service) SourceTest(ctx context.Context) []types.SourceProbe {
	return s.gateway.Test(ctx)
}

// dedupe removes duplicate condition ids, preserving first-seen order.
func dedupe(ids []string) []string {
	seen := make(map[string]struct{}, len(ids))
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		if _, dup := seen[id]; dup {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}
