package core

import (
	"errors"
	"log/slog"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"

	"climatelens/internal/types"
)

// Validator wraps go-playground/validator and translates its field errors
// into the engine's structured AppError codes.
type Validator struct {
	validate *validator.Validate
	logger   *slog.Logger
}

// NewValidator builds a Validator using JSON tag names in error output so
// clients see the field names they actually sent.
func NewValidator(logger *slog.Logger) *Validator {
	if logger == nil {
		logger = slog.Default()
	}

	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" || name == "" {
			return fld.Name
		}
		return name
	})

	return &Validator{validate: v, logger: logger}
}

// ValidateStruct validates dst according to its struct tags. On failure it
// returns an AppError whose code reflects the first offending field and
// whose details list every violation as field -> constraint.
func (v *Validator) ValidateStruct(dst any) *types.AppError {
	err := v.validate.Struct(dst)
	if err == nil {
		return nil
	}

	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) {
		// InvalidValidationError: dst was not a struct. Programming error.
		v.logger.Error("validator received non-struct input", "error", err)
		return types.NewAppError(types.ErrCodeInternalUnexpected,
			"an unexpected error occurred", err)
	}

	details := make(map[string]any, len(fieldErrs))
	for _, fe := range fieldErrs {
		details[fe.Field()] = constraintMessage(fe)
	}

	first := fieldErrs[0]
	return types.NewAppErrorWithDetails(
		codeForField(first),
		"request validation failed",
		err,
		details,
	)
}

// codeForField maps a failed field to the engine's validation error codes.
func codeForField(fe validator.FieldError) types.ErrorCode {
	if fe.Tag() == "required" {
		return types.ErrCodeValidationMissingField
	}
	switch fe.Field() {
	case "latitude", "lat":
		return types.ErrCodeValidationInvalidLat
	case "longitude", "lon":
		return types.ErrCodeValidationInvalidLon
	case "month", "day":
		return types.ErrCodeValidationInvalidDate
	case "grid_step", "grid_range":
		return types.ErrCodeValidationInvalidGrid
	case "conditions", "condition":
		return types.ErrCodeValidationInvalidConditions
	default:
		return types.ErrCodeValidationMissingField
	}
}

// constraintMessage renders a readable description of the failed constraint.
func constraintMessage(fe validator.FieldError) string {
	if fe.Param() != "" {
		return "failed constraint " + fe.Tag() + "=" + fe.Param()
	}
	return "failed constraint " + fe.Tag()
}
