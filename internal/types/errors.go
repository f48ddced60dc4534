package types

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
)

// ErrorCode is a typed string for categorizing application errors.
type ErrorCode string

// Complete error code constants.
// All components MUST use these constants instead of hardcoded strings.
const (
	// Validation (400)
	ErrCodeValidationInvalidLat        ErrorCode = "validation_invalid_latitude"
	ErrCodeValidationInvalidLon        ErrorCode = "validation_invalid_longitude"
	ErrCodeValidationInvalidDate       ErrorCode = "validation_invalid_date"
	ErrCodeValidationInvalidGrid       ErrorCode = "validation_invalid_grid"
	ErrCodeValidationInvalidConditions ErrorCode = "validation_invalid_conditions"
	ErrCodeValidationMissingField      ErrorCode = "validation_missing_required_field"
	ErrCodeValidationInvalidJSON       ErrorCode = "validation_invalid_json"

	// Not Found (404)
	ErrCodeConditionUnknown ErrorCode = "condition_unknown"
	ErrCodeLocationUnknown  ErrorCode = "location_unknown"

	// Data quality (422)
	ErrCodeInsufficientHistory ErrorCode = "insufficient_history"

	// Upstream (502)
	ErrCodeSourceUnavailable ErrorCode = "upstream_source_unavailable"
	ErrCodeUpstreamHTTP      ErrorCode = "upstream_http_failure"
	ErrCodeUpstreamRateLimit ErrorCode = "upstream_rate_limited"
	ErrCodeUpstreamMalformed ErrorCode = "upstream_payload_malformed"

	// Grid (never a top-level HTTP status; scoped to one cell)
	ErrCodeCellFailed ErrorCode = "cell_failed"

	// Internal (500)
	ErrCodeInternalUnexpected ErrorCode = "internal_unexpected_error"
)

// HTTPStatus maps an ErrorCode to its corresponding HTTP status code.
// Used by the API layer to translate AppErrors into HTTP responses.
// Returns 500 for unrecognized error codes as a safe default.
func (c ErrorCode) HTTPStatus() int {
	s := string(c)
	switch {
	case strings.HasPrefix(s, "validation_"):
		return http.StatusBadRequest // 400
	case c == ErrCodeConditionUnknown, c == ErrCodeLocationUnknown:
		return http.StatusNotFound // 404
	case c == ErrCodeInsufficientHistory:
		return http.StatusUnprocessableEntity // 422
	case c == ErrCodeUpstreamRateLimit:
		return http.StatusTooManyRequests // 429
	case strings.HasPrefix(s, "upstream_"):
		return http.StatusBadGateway // 502
	default:
		return http.StatusInternalServerError // 500
	}
}

// AppError is the standard application error type used throughout the engine.
// All domain errors should be expressed as AppError to enable consistent
// error formatting, HTTP status mapping, and error chain support.
type AppError struct {
	Code    ErrorCode      `json:"code"`
	Message string         `json:"message"`
	Err     error          `json:"-"`
	Details map[string]any `json:"details,omitempty"`
}

// Error implements the error interface.
func (e *AppError) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Unwrap returns the underlying error for errors.Is/errors.As support.
func (e *AppError) Unwrap() error {
	return e.Err
}

// HTTPStatus returns the HTTP status code corresponding to this error's code.
func (e *AppError) HTTPStatus() int {
	return e.Code.HTTPStatus()
}

// WithDetails returns a copy of the error with the provided details merged in.
// This is useful for adding context without mutating the original error.
func (e *AppError) WithDetails(details map[string]any) *AppError {
	merged := make(map[string]any, len(e.Details)+len(details))
	for k, v := range e.Details {
		merged[k] = v
	}
	for k, v := range details {
		merged[k] = v
	}
	return &AppError{
		Code:    e.Code,
		Message: e.Message,
		Err:     e.Err,
		Details: merged,
	}
}

// NewAppError creates a new AppError with the given code, message, and optional
// underlying error. This is the standard constructor for domain errors.
func NewAppError(code ErrorCode, message string, err error) *AppError {
	return &AppError{
		Code:    code,
		Message: message,
		Err:     err,
	}
}

// NewAppErrorWithDetails creates a new AppError with the given code, message,
// underlying error, and structured details.
func NewAppErrorWithDetails(code ErrorCode, message string, err error, details map[string]any) *AppError {
	return &AppError{
		Code:    code,
		Message: message,
		Err:     err,
		Details: details,
	}
}

// NewCellFailure wraps any engine error into a cell-scoped failure. The
// segmenter is the only place that converts hard failures into recoverable,
// localized ones; the original code remains discoverable via Unwrap and the
// "cause" detail.
func NewCellFailure(err error) *AppError {
	cause := string(ErrCodeInternalUnexpected)
	var appErr *AppError
	if errors.As(err, &appErr) {
		cause = string(appErr.Code)
	}
	return &AppError{
		Code:    ErrCodeCellFailed,
		Message: "grid cell analysis failed",
		Err:     err,
		Details: map[string]any{"cause": cause},
	}
}
