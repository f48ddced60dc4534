package conditions

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"climatelens/internal/types"
)

func TestMustDefaultRegistry(t *testing.T) {
	r := MustDefaultRegistry()

	want := []string{"very_hot", "very_cold", "very_wet", "very_windy", "very_uncomfortable"}
	assert.Equal(t, want, r.IDs())

	specs := r.List()
	require.Len(t, specs, len(want))
	for i, spec := range specs {
		assert.Equal(t, want[i], spec.ID, "List must preserve registration order")
	}
}

func TestRegistry_Get(t *testing.T) {
	r := MustDefaultRegistry()

	spec, appErr := r.Get("very_wet")
	require.Nil(t, appErr)
	assert.Equal(t, "very_wet", spec.ID)
	assert.Equal(t, map[string]float64{"PRECTOTCORR": 20.0}, spec.Thresholds())
}

func TestRegistry_GetUnknown(t *testing.T) {
	r := MustDefaultRegistry()

	_, appErr := r.Get("extremely_mild")
	require.NotNil(t, appErr)
	assert.Equal(t, types.ErrCodeConditionUnknown, appErr.Code)

	// The error advertises what is available.
	available, ok := appErr.Details["available"].([]string)
	require.True(t, ok)
	assert.Contains(t, available, "very_hot")
}

func TestNewRegistry_Validation(t *testing.T) {
	valid := types.ConditionSpec{
		ID:        "heatwave",
		Variables: []string{"T2M"},
		Rule:      types.CombineAll,
		Predicates: []types.Predicate{
			{Variable: "T2M", Operator: types.OpGreater, Threshold: 35},
		},
	}

	tests := []struct {
		name   string
		mutate func(types.ConditionSpec) types.ConditionSpec
	}{
		{"empty id", func(s types.ConditionSpec) types.ConditionSpec {
			s.ID = ""
			return s
		}},
		{"no variables", func(s types.ConditionSpec) types.ConditionSpec {
			s.Variables = nil
			return s
		}},
		{"no predicates", func(s types.ConditionSpec) types.ConditionSpec {
			s.Predicates = nil
			return s
		}},
		{"non-canonical variable", func(s types.ConditionSpec) types.ConditionSpec {
			s.Variables = []string{"SOIL_MOISTURE"}
			return s
		}},
		{"predicate on unlisted variable", func(s types.ConditionSpec) types.ConditionSpec {
			s.Predicates = []types.Predicate{{Variable: "RH2M", Operator: types.OpGreater, Threshold: 70}}
			return s
		}},
		{"invalid operator", func(s types.ConditionSpec) types.ConditionSpec {
			s.Predicates = []types.Predicate{{Variable: "T2M", Operator: "!=", Threshold: 35}}
			return s
		}},
		{"invalid rule", func(s types.ConditionSpec) types.ConditionSpec {
			s.Rule = "most"
			return s
		}},
		{"at_least without min", func(s types.ConditionSpec) types.ConditionSpec {
			s.Rule = types.CombineAtLeast
			s.MinSatisfied = 0
			return s
		}},
		{"at_least min exceeds predicates", func(s types.ConditionSpec) types.ConditionSpec {
			s.Rule = types.CombineAtLeast
			s.MinSatisfied = 2
			return s
		}},
		{"composite without cutoff", func(s types.ConditionSpec) types.ConditionSpec {
			s.Rule = types.CombineComposite
			return s
		}},
		{"composite without weights", func(s types.ConditionSpec) types.ConditionSpec {
			s.Rule = types.CombineComposite
			s.CompositeCutoff = 0.5
			return s
		}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewRegistry(tt.mutate(valid))
			assert.Error(t, err)
		})
	}

	t.Run("valid spec passes", func(t *testing.T) {
		_, err := NewRegistry(valid)
		assert.NoError(t, err)
	})

	t.Run("duplicate id rejected", func(t *testing.T) {
		_, err := NewRegistry(valid, valid)
		assert.Error(t, err)
	})
}
