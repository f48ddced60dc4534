package sources

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/jonboulle/clockwork"
	"golang.org/x/sync/errgroup"

	"climatelens/internal/observability"
	"climatelens/internal/types"
)

// FetchResult is a successful gateway fetch: the raw source-native series
// tagged with the source that answered. The tag propagates through the
// normalizer and analyzer into results and cache keys, so cached values are
// never silently mixed across sources.
type FetchResult struct {
	SourceID string
	Raw      RawSeries
	Years    YearRange
}

// Gateway fetches a raw multi-year daily series for a set of canonical
// variables at a coordinate, trying each configured source in a fixed
// fallback order. Exactly one attempt is made per configured source per
// call; there is no retry loop.
type Gateway struct {
	chain     []Source // fallback order: primary first
	yearsBack int
	logger    *slog.Logger
	metrics   *observability.Metrics
	clock     clockwork.Clock
}

// NewGateway creates a gateway over the given fallback chain. The chain
// order is fixed at construction; the first source is the primary.
func NewGateway(chain []Source, yearsBack int, logger *slog.Logger, metrics *observability.Metrics, clock clockwork.Clock) *Gateway {
	if logger == nil {
		logger = slog.Default()
	}
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	return &Gateway{
		chain:     chain,
		yearsBack: yearsBack,
		logger:    logger,
		metrics:   metrics,
		clock:     clock,
	}
}

// SourceIDs returns the chain's source identifiers in fallback order.
func (g *Gateway) SourceIDs() []string {
	ids := make([]string, len(g.chain))
	for i, s := range g.chain {
		ids[i] = s.ID()
	}
	return ids
}

// yearRange computes the historical window: yearsBack years ending at the
// last complete calendar year.
func (g *Gateway) yearRange() YearRange {
	current := g.clock.Now().UTC().Year()
	return YearRange{Start: current - g.yearsBack, End: current - 1}
}

// Fetch validates the coordinate and walks the fallback chain. A source call
// counts as failed on a transport error, a non-success status, a payload that
// does not parse, or a payload that is empty for every requested variable.
//
// When every configured source has failed (or none is configured), Fetch
// returns upstream_source_unavailable carrying the per-source causes in its
// details for diagnostics.
func (g *Gateway) Fetch(ctx context.Context, lat, lon float64, variables []string) (*FetchResult, error) {
	coord, appErr := types.ValidateCoordinate(lat, lon)
	if appErr != nil {
		return nil, appErr
	}

	years := g.yearRange()
	causes := make(map[string]any, len(g.chain))

	for _, src := range g.chain {
		if !src.Configured() {
			causes[src.ID()] = "credentials not configured"
			continue
		}

		start := g.clock.Now()
		raw, err := src.Fetch(ctx, coord.Lat, coord.Lon, variables, years)
		if g.metrics != nil {
			g.metrics.UpstreamLatency.WithLabelValues(src.ID()).Observe(g.clock.Since(start).Seconds())
		}

		switch {
		case err != nil:
			g.recordFetch(src.ID(), "error")
			g.logger.WarnContext(ctx, "source fetch failed",
				"source", src.ID(),
				"lat", coord.Lat,
				"lon", coord.Lon,
				"error", err,
			)
			causes[src.ID()] = err.Error()
			continue
		case raw.Empty():
			g.recordFetch(src.ID(), "empty")
			g.logger.WarnContext(ctx, "source returned empty payload",
				"source", src.ID(),
				"lat", coord.Lat,
				"lon", coord.Lon,
			)
			causes[src.ID()] = "empty payload"
			continue
		}

		g.recordFetch(src.ID(), "success")
		return &FetchResult{SourceID: src.ID(), Raw: raw, Years: years}, nil
	}

	return nil, types.NewAppErrorWithDetails(
		types.ErrCodeSourceUnavailable,
		"all configured weather data sources failed",
		nil,
		map[string]any{"sources": causes},
	)
}

func (g *Gateway) recordFetch(sourceID, outcome string) {
	if g.metrics != nil {
		g.metrics.UpstreamFetches.WithLabelValues(sourceID, outcome).Inc()
	}
}

// Status reports the configuration state of every source in the chain.
func (g *Gateway) Status() []types.SourceStatus {
	out := make([]types.SourceStatus, len(g.chain))
	for i, s := range g.chain {
		out[i] = types.SourceStatus{ID: s.ID(), Configured: s.Configured()}
	}
	return out
}

// Test probes every source concurrently and reports reachability with
// latency. Unconfigured sources are reported unreachable without a network
// attempt.
func (g *Gateway) Test(ctx context.Context) []types.SourceProbe {
	probes := make([]types.SourceProbe, len(g.chain))

	eg, ctx := errgroup.WithContext(ctx)
	for i, src := range g.chain {
		i, src := i, src
		probes[i] = types.SourceProbe{ID: src.ID()}
		if !src.Configured() {
			probes[i].Error = "credentials not configured"
			continue
		}

		eg.Go(func() error {
			start := time.Now()
			if err := src.Probe(ctx); err != nil {
				probes[i].Error = err.Error()
				return nil
			}
			probes[i].Reachable = true
			probes[i].LatencyMS = time.Since(start).Milliseconds()
			return nil
		})
	}
	_ = eg.Wait()

	return probes
}

// String implements fmt.Stringer for startup logging.
func (g *Gateway) String() string {
	return fmt.Sprintf("gateway(chain=%v, years_back=%d)", g.SourceIDs(), g.yearsBack)
}
