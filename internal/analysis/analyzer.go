// Package analysis orchestrates the extreme-probability engine: the compound
// extreme analyzer, the TTL result cache, and the geospatial segmenter.
package analysis

import (
	"context"
	"log/slog"
	"math"
	"sort"

	"climatelens/internal/conditions"
	"climatelens/internal/sources"
	"climatelens/internal/types"
)

// Computation is the outcome of one analyzer run at one coordinate and
// target date: per-condition results, per-condition errors (insufficient
// history), and the source that supplied the data.
type Computation struct {
	Results map[string]*types.AnalysisResult
	Errors  map[string]*types.AppError
	Source  string
}

// Analyzer performs compound extreme analysis: one gateway fetch for the
// union of variables across the requested conditions, one normalization
// pass, then an independent evaluation per condition.
type Analyzer struct {
	gateway    *sources.Gateway
	normalizer sources.Normalizer
	registry   *conditions.Registry
	evaluator  conditions.Evaluator
	logger     *slog.Logger
}

// NewAnalyzer wires the analyzer's collaborators. All state is constructed
// once at startup and passed in by handle; there is no implicit global
// lookup.
func NewAnalyzer(gateway *sources.Gateway, registry *conditions.Registry, evaluator conditions.Evaluator, logger *slog.Logger) *Analyzer {
	if logger == nil {
		logger = slog.Default()
	}
	return &Analyzer{
		gateway:   gateway,
		registry:  registry,
		evaluator: evaluator,
		logger:    logger,
	}
}

// Registry exposes the condition catalog for callers that need to validate
// condition identifiers up front.
func (a *Analyzer) Registry() *conditions.Registry {
	return a.registry
}

// Analyze computes the probability of each requested condition at the given
// coordinate and target date (day 0 = whole month).
//
// Unknown condition ids and invalid dates fail the whole call before any
// network attempt. A gateway failure also fails the whole call: without data
// there are no partial per-condition results. A condition with zero usable
// years is reported in Computation.Errors as insufficient_history rather
// than fabricated as a 0% probability.
func (a *Analyzer) Analyze(ctx context.Context, lat, lon float64, month, day int, conditionIDs []string) (*Computation, error) {
	if appErr := types.ValidateTargetDate(month, day); appErr != nil {
		return nil, appErr
	}
	if len(conditionIDs) == 0 {
		return nil, types.NewAppError(types.ErrCodeValidationInvalidConditions,
			"at least one condition is required", nil)
	}

	specs := make([]types.ConditionSpec, 0, len(conditionIDs))
	for _, id := range conditionIDs {
		spec, appErr := a.registry.Get(id)
		if appErr != nil {
			return nil, appErr
		}
		specs = append(specs, spec)
	}

	fetched, err := a.gateway.Fetch(ctx, lat, lon, variableUnion(specs))
	if err != nil {
		return nil, err
	}

	series, err := a.normalizer.Normalize(fetched.SourceID, fetched.Raw)
	if err != nil {
		return nil, err
	}

	comp := &Computation{
		Results: make(map[string]*types.AnalysisResult, len(specs)),
		Errors:  make(map[string]*types.AppError),
		Source:  fetched.SourceID,
	}

	for _, spec := range specs {
		matches := a.evaluator.Evaluate(spec, series, month, day)

		result := summarize(spec, matches, fetched.SourceID)
		if result.YearsTotal == 0 {
			comp.Errors[spec.ID] = types.NewAppErrorWithDetails(
				types.ErrCodeInsufficientHistory,
				"no usable historical years for condition "+spec.ID,
				nil,
				map[string]any{"variables": spec.Variables},
			)
			continue
		}
		comp.Results[spec.ID] = result
	}

	a.logger.DebugContext(ctx, "analysis complete",
		"lat", lat, "lon", lon,
		"month", month, "day", day,
		"source", fetched.SourceID,
		"conditions", len(specs),
		"failed", len(comp.Errors),
	)

	return comp, nil
}

// summarize reduces per-year matches to an AnalysisResult. Excluded years
// are dropped from the denominator, so conditions with different variable
// requirements may have different denominators even from the same fetch.
func summarize(spec types.ConditionSpec, matches []types.YearMatch, sourceID string) *types.AnalysisResult {
	total, matching := 0, 0
	var matchingYears []int
	for _, m := range matches {
		if m.Excluded {
			continue
		}
		total++
		if m.Matched {
			matching++
			matchingYears = append(matchingYears, m.Year)
		}
	}

	result := &types.AnalysisResult{
		ConditionID:       spec.ID,
		Description:       spec.Description,
		YearsTotal:        total,
		YearsMatching:     matching,
		MatchingYears:     matchingYears,
		VariablesAnalyzed: spec.Variables,
		Thresholds:        spec.Thresholds(),
		Source:            sourceID,
		Years:             matches,
	}
	if total > 0 {
		result.Probability = math.Round(100*100*float64(matching)/float64(total)) / 100
	}
	return result
}

// variableUnion returns the sorted, deduplicated union of variables required
// by the given specs, so multiple conditions share a single upstream fetch.
func variableUnion(specs []types.ConditionSpec) []string {
	seen := make(map[string]struct{})
	for _, spec := range specs {
		for _, v := range spec.Variables {
			seen[v] = struct{}{}
		}
	}
	union := make([]string, 0, len(seen))
	for v := range seen {
		union = append(union, v)
	}
	sort.Strings(union)
	return union
}
