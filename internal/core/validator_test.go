package core

import (
	"testing"

	"climatelens/internal/types"
)

type sampleRequest struct {
	Latitude   *float64 `json:"latitude,omitempty"`
	Month      int      `json:"month" validate:"required,min=1,max=12"`
	Conditions []string `json:"conditions" validate:"required,min=1"`
	GridStep   *float64 `json:"grid_step,omitempty" validate:"omitempty,gt=0"`
}

func validSample() sampleRequest {
	return sampleRequest{Month: 7, Conditions: []string{"very_wet"}}
}

func TestValidateStruct_Valid(t *testing.T) {
	v := NewValidator(nil)
	if appErr := v.ValidateStruct(validSample()); appErr != nil {
		t.Fatalf("unexpected validation error: %v", appErr)
	}
}

func TestValidateStruct_CodesFollowFields(t *testing.T) {
	tests := []struct {
		name     string
		mutate   func(*sampleRequest)
		wantCode types.ErrorCode
	}{
		{
			name:     "missing required month",
			mutate:   func(r *sampleRequest) { r.Month = 0 },
			wantCode: types.ErrCodeValidationMissingField,
		},
		{
			name:     "month out of range",
			mutate:   func(r *sampleRequest) { r.Month = 13 },
			wantCode: types.ErrCodeValidationInvalidDate,
		},
		{
			name:     "empty conditions",
			mutate:   func(r *sampleRequest) { r.Conditions = []string{} },
			wantCode: types.ErrCodeValidationInvalidConditions,
		},
		{
			name: "non-positive grid step",
			mutate: func(r *sampleRequest) {
				step := -0.5
				r.GridStep = &step
			},
			wantCode: types.ErrCodeValidationInvalidGrid,
		},
	}

	v := NewValidator(nil)
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := validSample()
			tt.mutate(&req)

			appErr := v.ValidateStruct(req)
			if appErr == nil {
				t.Fatal("expected a validation error")
			}
			if appErr.Code != tt.wantCode {
				t.Errorf("code = %q, want %q", appErr.Code, tt.wantCode)
			}
		})
	}
}

func TestValidateStruct_DetailsUseJSONNames(t *testing.T) {
	v := NewValidator(nil)

	req := validSample()
	req.Month = 0

	appErr := v.ValidateStruct(req)
	if appErr == nil {
		t.Fatal("expected a validation error")
	}
	if _, ok := appErr.Details["month"]; !ok {
		t.Errorf("details keyed by %v, want json name \"month\"", appErr.Details)
	}
}

func TestValidateStruct_NonStructIsInternalError(t *testing.T) {
	v := NewValidator(nil)

	appErr := v.ValidateStruct("not a struct")
	if appErr == nil {
		t.Fatal("expected an error for non-struct input")
	}
	if appErr.Code != types.ErrCodeInternalUnexpected {
		t.Errorf("code = %q, want %q", appErr.Code, types.ErrCodeInternalUnexpected)
	}
}
