package conditions

import (
	"fmt"
	"math"
	"sort"
	"time"

	"climatelens/internal/types"
)

// MissingDataPolicy controls how a year with an absent required variable is
// counted.
type MissingDataPolicy string

const (
	// MissingExclude drops the year from the denominator entirely. This is
	// the default: an unreliable year should not dilute the probability.
	MissingExclude MissingDataPolicy = "exclude"
	// MissingNoMatch keeps the year in the denominator as a non-match.
	MissingNoMatch MissingDataPolicy = "no_match"
)

// Evaluator classifies each historical year of a normalized series as
// matching or not matching a condition spec. It is deterministic and
// side-effect-free: the same (spec, series, date, window) always yields the
// same result, which the analysis cache depends on.
type Evaluator struct {
	// WindowDays widens the target date by +/- N adjacent days; the mean of
	// the available in-window values feeds the predicates. 0 means exact
	// date match only.
	WindowDays int
	// Missing selects the missing-data policy. Zero value means MissingExclude.
	Missing MissingDataPolicy
}

// Evaluate classifies every year present in the series against the spec for
// the target month/day. Day 0 selects whole-month aggregation: each year's
// value per variable is the mean over that month.
func (e Evaluator) Evaluate(spec types.ConditionSpec, series *types.ObservationSeries, month, day int) []types.YearMatch {
	years := e.collectYears(spec, series, month, day)

	matches := make([]types.YearMatch, 0, len(years))
	for _, year := range years {
		values := make(map[string]float64, len(spec.Variables))
		complete := true
		for _, variable := range spec.Variables {
			v, ok := e.valueFor(series.Values(variable), year, month, day)
			if !ok {
				complete = false
				continue
			}
			values[variable] = v
		}

		ym := types.YearMatch{Year: year, Values: values}
		switch {
		case complete:
			ym.Matched = matchRule(spec, values)
		case e.missing() == MissingExclude:
			ym.Excluded = true
		}
		matches = append(matches, ym)
	}

	return matches
}

func (e Evaluator) missing() MissingDataPolicy {
	if e.Missing == "" {
		return MissingExclude
	}
	return e.Missing
}

// collectYears returns the sorted union, over the spec's required variables,
// of years that have at least one observation usable for the target date:
// within the target month for month mode, or within day +/- WindowDays for
// exact/window mode. The window uses the same calendar arithmetic as
// valueFor, so an observation in an adjacent month (or an adjacent year, for
// windows straddling New Year) still credits the year it belongs to.
func (e Evaluator) collectYears(spec types.ConditionSpec, series *types.ObservationSeries, month, day int) []int {
	seen := make(map[int]struct{})
	for _, variable := range spec.Variables {
		for dateKey := range series.Values(variable) {
			t, err := time.Parse("20060102", dateKey)
			if err != nil {
				continue
			}
			switch {
			case day == 0:
				if int(t.Month()) == month {
					seen[t.Year()] = struct{}{}
				}
			case e.WindowDays == 0:
				// Exact mode matches the literal calendar date, like the
				// valueFor key lookup.
				if int(t.Month()) == month && t.Day() == day {
					seen[t.Year()] = struct{}{}
				}
			default:
				for y := t.Year() - 1; y <= t.Year()+1; y++ {
					target := time.Date(y, time.Month(month), day, 0, 0, 0, 0, time.UTC)
					diff := int(t.Sub(target).Hours() / 24)
					if diff >= -e.WindowDays && diff <= e.WindowDays {
						seen[y] = struct{}{}
					}
				}
			}
		}
	}

	years := make([]int, 0, len(seen))
	for y := range seen {
		years = append(years, y)
	}
	sort.Ints(years)
	return years
}

// valueFor resolves one variable's value for one year at the target date.
//
// Exact-date mode (day > 0, window 0) looks up the literal date key; a year
// without that calendar date (Feb 29 off leap years) is simply missing.
// Window mode averages the available values across day +/- WindowDays,
// crossing month boundaries via calendar arithmetic. Month mode (day 0)
// averages the whole month.
func (e Evaluator) valueFor(dates types.DateSeries, year, month, day int) (float64, bool) {
	if len(dates) == 0 {
		return 0, false
	}

	if day == 0 {
		return monthMean(dates, year, month)
	}

	if e.WindowDays == 0 {
		v, ok := dates[fmt.Sprintf("%04d%02d%02d", year, month, day)]
		return v, ok
	}

	sum, n := 0.0, 0
	seen := make(map[string]struct{}, 2*e.WindowDays+1)
	for off := -e.WindowDays; off <= e.WindowDays; off++ {
		t := time.Date(year, time.Month(month), day+off, 0, 0, 0, 0, time.UTC)
		key := t.Format("20060102")
		if _, dup := seen[key]; dup {
			continue
		}
		seen[key] = struct{}{}
		if v, ok := dates[key]; ok {
			sum += v
			n++
		}
	}
	if n == 0 {
		return 0, false
	}
	return sum / float64(n), true
}

func monthMean(dates types.DateSeries, year, month int) (float64, bool) {
	sum, n := 0.0, 0
	for dateKey, v := range dates {
		t, err := time.Parse("20060102", dateKey)
		if err != nil || t.Year() != year || int(t.Month()) != month {
			continue
		}
		sum += v
		n++
	}
	if n == 0 {
		return 0, false
	}
	return sum / float64(n), true
}

// matchRule applies the spec's combination rule to a complete value set.
func matchRule(spec types.ConditionSpec, values map[string]float64) bool {
	switch spec.Rule {
	case types.CombineAll:
		for _, p := range spec.Predicates {
			if !p.Operator.Compare(values[p.Variable], p.Threshold) {
				return false
			}
		}
		return true

	case types.CombineAny:
		for _, p := range spec.Predicates {
			if p.Operator.Compare(values[p.Variable], p.Threshold) {
				return true
			}
		}
		return false

	case types.CombineAtLeast:
		satisfied := 0
		for _, p := range spec.Predicates {
			if p.Operator.Compare(values[p.Variable], p.Threshold) {
				satisfied++
			}
		}
		return satisfied >= spec.MinSatisfied

	case types.CombineComposite:
		return compositeScore(spec, values) > spec.CompositeCutoff

	default:
		return false
	}
}

// compositeScore sums weight * relative exceedance over the satisfied
// predicates. Exceedance is measured relative to the threshold, so a value
// far past its threshold contributes more than one barely past it.
func compositeScore(spec types.ConditionSpec, values map[string]float64) float64 {
	score := 0.0
	for _, p := range spec.Predicates {
		v := values[p.Variable]
		if !p.Operator.Compare(v, p.Threshold) {
			continue
		}
		if p.Threshold == 0 {
			score += p.Weight
			continue
		}
		score += p.Weight * math.Abs(v-p.Threshold) / math.Abs(p.Threshold)
	}
	return score
}
