// Package sources implements retrieval of multi-year daily weather
// observations from upstream archives.
//
// Two concrete sources exist behind the Source interface: the NASA POWER
// daily point archive (primary, no credentials) and the Meteomatics API
// (secondary, Basic auth). The Gateway tries them in a fixed fallback order;
// failover is handled there, not inside the individual sources.
package sources

import (
	"context"
)

// RawSeries is a source-native payload: native variable code -> date key
// (YYYYMMDD for POWER, ISO timestamps for Meteomatics are converted by the
// client) -> numeric value. It is normalized into the canonical variable set
// by the Normalizer before any evaluation.
type RawSeries map[string]map[string]float64

// Empty reports whether the payload carries no values for any variable.
// Sources answering 200 with an all-empty body count as failed, which lets
// the gateway fall back (the archive genuinely has no data to offer).
func (r RawSeries) Empty() bool {
	for _, dates := range r {
		if len(dates) > 0 {
			return false
		}
	}
	return true
}

// YearRange is an inclusive historical year span.
type YearRange struct {
	Start int
	End   int
}

// Source is one upstream weather archive. Implementations issue exactly one
// request attempt per Fetch call; the fallback chain, not retries, provides
// resilience.
type Source interface {
	// ID returns the stable source identifier that tags fetched series,
	// analysis results, and cache keys.
	ID() string
	// Configured reports whether the source has the credentials it needs.
	// Unconfigured sources are skipped by the gateway.
	Configured() bool
	// Fetch retrieves daily values for the given canonical variables at a
	// coordinate over the year range. The call is read-only and safe to
	// re-issue.
	Fetch(ctx context.Context, lat, lon float64, variables []string, years YearRange) (RawSeries, error)
	// Probe performs a minimal connectivity test against the source.
	Probe(ctx context.Context) error
}
