// Package observability provides Prometheus instrumentation for the engine.
// Counters cover the two operational questions that matter here: how many
// upstream fetches each source absorbs (and how often the fallback fires),
// and how effective the analysis cache is.
package observability

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds the Prometheus collectors for the engine.
type Metrics struct {
	UpstreamFetches *prometheus.CounterVec   // labels: source, outcome={success,error,empty}
	UpstreamLatency *prometheus.HistogramVec // labels: source
	CacheLookups    *prometheus.CounterVec   // labels: result={hit,miss,bypass}
	GridCells       *prometheus.CounterVec   // labels: outcome={ok,failed}
	AnalyzeRequests prometheus.Counter
}

func newMetrics() *Metrics {
	return &Metrics{
		UpstreamFetches: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "climatelens",
			Name:      "upstream_fetches_total",
			Help:      "Upstream fetch attempts by source and outcome.",
		}, []string{"source", "outcome"}),
		UpstreamLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "climatelens",
			Name:      "upstream_fetch_duration_seconds",
			Help:      "Upstream fetch duration in seconds.",
			Buckets:   []float64{0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
		}, []string{"source"}),
		CacheLookups: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "climatelens",
			Name:      "analysis_cache_lookups_total",
			Help:      "Analysis cache lookups by result.",
		}, []string{"result"}),
		GridCells: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "climatelens",
			Name:      "grid_cells_total",
			Help:      "Segmentation grid cells by outcome.",
		}, []string{"outcome"}),
		AnalyzeRequests: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "climatelens",
			Name:      "analyze_requests_total",
			Help:      "Total analyze invocations.",
		}),
	}
}

// NewMetrics creates and registers all engine metrics with the default
// Prometheus registry.
func NewMetrics() *Metrics {
	m := newMetrics()
	prometheus.MustRegister(
		m.UpstreamFetches,
		m.UpstreamLatency,
		m.CacheLookups,
		m.GridCells,
		m.AnalyzeRequests,
	)
	return m
}

// NewMetricsForTesting creates Metrics with no registration to avoid
// "already registered" panics when called from multiple tests.
func NewMetricsForTesting() *Metrics {
	return newMetrics()
}
