package types

// ConditionOperator is the comparison applied between an observed value and a
// predicate threshold.
type ConditionOperator string

const (
	OpGreater        ConditionOperator = ">"
	OpGreaterOrEqual ConditionOperator = ">="
	OpLess           ConditionOperator = "<"
	OpLessOrEqual    ConditionOperator = "<="
)

// Compare applies the operator to (value, threshold).
func (op ConditionOperator) Compare(value, threshold float64) bool {
	switch op {
	case OpGreater:
		return value > threshold
	case OpGreaterOrEqual:
		return value >= threshold
	case OpLess:
		return value < threshold
	case OpLessOrEqual:
		return value <= threshold
	default:
		return false
	}
}

// CombineRule defines how a condition's predicates are combined into a single
// per-year match decision.
type CombineRule string

const (
	// CombineAll requires every predicate to hold (conjunction).
	CombineAll CombineRule = "all"
	// CombineAny requires at least one predicate to hold.
	CombineAny CombineRule = "any"
	// CombineAtLeast requires MinSatisfied predicates to hold.
	CombineAtLeast CombineRule = "at_least"
	// CombineComposite computes a weighted exceedance score across predicates
	// and matches when the score exceeds CompositeCutoff.
	CombineComposite CombineRule = "composite"
)

// Predicate is a single (variable, operator, threshold) test. Weight is only
// meaningful under CombineComposite, where each predicate contributes
// weight * relative exceedance to the composite score.
type Predicate struct {
	Variable  string            `json:"variable"`
	Operator  ConditionOperator `json:"operator"`
	Threshold float64           `json:"threshold"`
	Weight    float64           `json:"weight,omitempty"`
}

// ConditionSpec is an immutable, declarative condition definition. Specs are
// data, not branching code: adding a condition means registering a new record.
type ConditionSpec struct {
	ID              string      `json:"id"`
	DisplayName     string      `json:"display_name"`
	Description     string      `json:"description"`
	Variables       []string    `json:"variables"`
	Predicates      []Predicate `json:"predicates"`
	Rule            CombineRule `json:"rule"`
	MinSatisfied    int         `json:"min_satisfied,omitempty"`
	CompositeCutoff float64     `json:"composite_cutoff,omitempty"`
}

// Thresholds returns the predicate thresholds keyed by variable, for result
// reporting.
func (s ConditionSpec) Thresholds() map[string]float64 {
	out := make(map[string]float64, len(s.Predicates))
	for _, p := range s.Predicates {
		out[p.Variable] = p.Threshold
	}
	return out
}
