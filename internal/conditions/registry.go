// Package conditions holds the data-driven catalog of extreme-weather
// condition definitions and the evaluator that classifies historical years
// against them.
//
// Conditions are declarative records, not branching code: adding one means
// registering a new ConditionSpec. The combination rules (all / any /
// at_least / composite) are the only logic, and they are shared by every
// spec.
package conditions

import (
	"fmt"

	"climatelens/internal/types"
)

// Registry is the immutable catalog of condition specs, loaded once at
// process start. It is read-only after construction and safe for concurrent
// use.
type Registry struct {
	specs map[string]types.ConditionSpec
	order []string
}

// NewRegistry builds a registry from the given specs, validating each record.
func NewRegistry(specs ...types.ConditionSpec) (*Registry, error) {
	r := &Registry{specs: make(map[string]types.ConditionSpec, len(specs))}
	for _, spec := range specs {
		if err := validateSpec(spec); err != nil {
			return nil, fmt.Errorf("condition %q: %w", spec.ID, err)
		}
		if _, dup := r.specs[spec.ID]; dup {
			return nil, fmt.Errorf("condition %q: duplicate id", spec.ID)
		}
		r.specs[spec.ID] = spec
		r.order = append(r.order, spec.ID)
	}
	return r, nil
}

// MustDefaultRegistry builds the registry of built-in conditions, panicking
// on a defect in the built-in data. Called once at startup.
func MustDefaultRegistry() *Registry {
	r, err := NewRegistry(DefaultSpecs()...)
	if err != nil {
		panic(fmt.Sprintf("built-in condition specs invalid: %v", err))
	}
	return r
}

// Get returns the spec for the given id, or condition_unknown.
func (r *Registry) Get(id string) (types.ConditionSpec, *types.AppError) {
	spec, ok := r.specs[id]
	if !ok {
		return types.ConditionSpec{}, types.NewAppErrorWithDetails(
			types.ErrCodeConditionUnknown,
			fmt.Sprintf("unknown condition %q", id),
			nil,
			map[string]any{"available": r.IDs()},
		)
	}
	return spec, nil
}

// List returns all specs in registration order.
func (r *Registry) List() []types.ConditionSpec {
	out := make([]types.ConditionSpec, 0, len(r.order))
	for _, id := range r.order {
		out = append(out, r.specs[id])
	}
	return out
}

// IDs returns the registered condition identifiers in registration order.
func (r *Registry) IDs() []string {
	out := make([]string, len(r.order))
	copy(out, r.order)
	return out
}

func validateSpec(spec types.ConditionSpec) error {
	if spec.ID == "" {
		return fmt.Errorf("empty id")
	}
	if len(spec.Variables) == 0 {
		return fmt.Errorf("no variables")
	}
	if len(spec.Predicates) == 0 {
		return fmt.Errorf("no predicates")
	}
	vars := make(map[string]struct{}, len(spec.Variables))
	for _, v := range spec.Variables {
		if _, ok := types.CanonicalVariables[v]; !ok {
			return fmt.Errorf("variable %q is not canonical", v)
		}
		vars[v] = struct{}{}
	}
	totalWeight := 0.0
	for _, p := range spec.Predicates {
		if _, ok := vars[p.Variable]; !ok {
			return fmt.Errorf("predicate references unlisted variable %q", p.Variable)
		}
		switch p.Operator {
		case types.OpGreater, types.OpGreaterOrEqual, types.OpLess, types.OpLessOrEqual:
		default:
			return fmt.Errorf("predicate on %q has invalid operator %q", p.Variable, p.Operator)
		}
		totalWeight += p.Weight
	}
	switch spec.Rule {
	case types.CombineAll, types.CombineAny:
	case types.CombineAtLeast:
		if spec.MinSatisfied < 1 || spec.MinSatisfied > len(spec.Predicates) {
			return fmt.Errorf("min_satisfied %d outside [1, %d]", spec.MinSatisfied, len(spec.Predicates))
		}
	case types.CombineComposite:
		if spec.CompositeCutoff <= 0 {
			return fmt.Errorf("composite rule requires a positive cutoff")
		}
		if totalWeight <= 0 {
			return fmt.Errorf("composite rule requires positive predicate weights")
		}
	default:
		return fmt.Errorf("invalid rule %q", spec.Rule)
	}
	return nil
}

// DefaultSpecs returns the built-in condition catalog.
//
// Thresholds follow long-standing heuristics for outdoor-event planning:
// the "very cold" rule counts wind chill, so its wind predicate points
// upward while its temperature predicates point downward; the discomfort
// composite weights heat and humidity twice as heavily as stillness and
// drizzle.
func DefaultSpecs() []types.ConditionSpec {
	return []types.ConditionSpec{
		{
			ID:          "very_hot",
			DisplayName: "Very Hot",
			Description: "High temperature with humidity",
			Variables:   []string{"T2M", "RH2M", "T2M_MIN"},
			Rule:        types.CombineAll,
			Predicates: []types.Predicate{
				{Variable: "T2M", Operator: types.OpGreater, Threshold: 32.0},
				{Variable: "RH2M", Operator: types.OpGreater, Threshold: 70.0},
				{Variable: "T2M_MIN", Operator: types.OpGreater, Threshold: 22.0},
			},
		},
		{
			ID:           "very_cold",
			DisplayName:  "Very Cold",
			Description:  "Low temperature with wind chill effects",
			Variables:    []string{"T2M_MIN", "WS10M", "T2M"},
			Rule:         types.CombineAtLeast,
			MinSatisfied: 2,
			Predicates: []types.Predicate{
				{Variable: "T2M_MIN", Operator: types.OpLess, Threshold: 5.0},
				{Variable: "WS10M", Operator: types.OpGreater, Threshold: 5.0},
				{Variable: "T2M", Operator: types.OpLess, Threshold: 7.0},
			},
		},
		{
			ID:          "very_wet",
			DisplayName: "Very Wet",
			Description: "Heavy precipitation",
			Variables:   []string{"PRECTOTCORR"},
			Rule:        types.CombineAny,
			Predicates: []types.Predicate{
				{Variable: "PRECTOTCORR", Operator: types.OpGreater, Threshold: 20.0},
			},
		},
		{
			ID:          "very_windy",
			DisplayName: "Very Windy",
			Description: "High wind speed",
			Variables:   []string{"WS10M"},
			Rule:        types.CombineAny,
			Predicates: []types.Predicate{
				{Variable: "WS10M", Operator: types.OpGreater, Threshold: 10.0},
			},
		},
		{
			ID:              "very_uncomfortable",
			DisplayName:     "Very Uncomfortable",
			Description:     "Heat + humidity + low breeze discomfort",
			Variables:       []string{"T2M", "RH2M", "WS10M", "PRECTOTCORR"},
			Rule:            types.CombineComposite,
			CompositeCutoff: 0.5,
			Predicates: []types.Predicate{
				{Variable: "T2M", Operator: types.OpGreater, Threshold: 30.0, Weight: 0.3},
				{Variable: "RH2M", Operator: types.OpGreater, Threshold: 65.0, Weight: 0.3},
				{Variable: "WS10M", Operator: types.OpLess, Threshold: 3.0, Weight: 0.2},
				{Variable: "PRECTOTCORR", Operator: types.OpGreater, Threshold: 1.0, Weight: 0.2},
			},
		},
	}
}
