package config

import (
	"fmt"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
)

// ErrorType categorizes configuration loading failures to aid debugging.
type ErrorType string

const (
	// ErrParsing indicates a failure parsing environment variable values
	// into their target types.
	ErrParsing ErrorType = "PARSING_FAILED"
	// ErrValidation indicates the configuration failed struct validation rules.
	ErrValidation ErrorType = "VALIDATION_FAILED"
)

// Error wraps a configuration failure with its category.
type Error struct {
	Type ErrorType
	Err  error
}

func (e *Error) Error() string {
	return fmt.Sprintf("config %s: %v", e.Type, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Load resolves the full configuration from the environment, optionally
// seeded from a .env file for local development. Missing .env files are not
// an error; OS environment variables always take precedence because godotenv
// never overwrites existing values.
func Load() (*Config, error) {
	// Best-effort dotenv load for local development.
	_ = godotenv.Load()

	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, &Error{Type: ErrParsing, Err: err}
	}

	if err := validator.New().Struct(&cfg); err != nil {
		return nil, &Error{Type: ErrValidation, Err: err}
	}

	return &cfg, nil
}
