package config

import (
	"errors"
	"testing"
	"time"
)

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() with defaults: %v", err)
	}

	if cfg.Environment != "local" {
		t.Errorf("Environment = %q, want local", cfg.Environment)
	}
	if cfg.Server.Port != "8080" {
		t.Errorf("Port = %q, want 8080", cfg.Server.Port)
	}
	if cfg.Sources.PowerBaseURL != "https://power.larc.nasa.gov" {
		t.Errorf("PowerBaseURL = %q", cfg.Sources.PowerBaseURL)
	}
	if cfg.Sources.YearsBack != 25 {
		t.Errorf("YearsBack = %d, want 25", cfg.Sources.YearsBack)
	}
	if cfg.Analysis.CacheTTL != 24*time.Hour {
		t.Errorf("CacheTTL = %v, want 24h", cfg.Analysis.CacheTTL)
	}
	if cfg.Analysis.GridWorkers != 4 {
		t.Errorf("GridWorkers = %d, want 4", cfg.Analysis.GridWorkers)
	}
	if cfg.Analysis.WindowDays != 0 {
		t.Errorf("WindowDays = %d, want 0", cfg.Analysis.WindowDays)
	}
}

func TestLoad_EnvironmentOverrides(t *testing.T) {
	t.Setenv("APP_ENV", "prod")
	t.Setenv("PORT", "9090")
	t.Setenv("YEARS_BACK", "10")
	t.Setenv("ANALYSIS_CACHE_TTL", "1h")
	t.Setenv("METEOMATICS_USERNAME", "alice")
	t.Setenv("METEOMATICS_PASSWORD", "s3cret")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load(): %v", err)
	}

	if cfg.Environment != "prod" {
		t.Errorf("Environment = %q, want prod", cfg.Environment)
	}
	if cfg.Server.Port != "9090" {
		t.Errorf("Port = %q, want 9090", cfg.Server.Port)
	}
	if cfg.Sources.YearsBack != 10 {
		t.Errorf("YearsBack = %d, want 10", cfg.Sources.YearsBack)
	}
	if cfg.Analysis.CacheTTL != time.Hour {
		t.Errorf("CacheTTL = %v, want 1h", cfg.Analysis.CacheTTL)
	}
	if !cfg.Sources.SecondaryConfigured() {
		t.Error("expected secondary source to be configured")
	}
	if cfg.Sources.MeteomaticsPass.Unmask() != "s3cret" {
		t.Error("password did not round-trip through envconfig")
	}
}

func TestLoad_SecondaryUnconfigured(t *testing.T) {
	t.Setenv("METEOMATICS_USERNAME", "")
	t.Setenv("METEOMATICS_PASSWORD", "")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load(): %v", err)
	}
	if cfg.Sources.SecondaryConfigured() {
		t.Error("secondary should not be configured without credentials")
	}
}

func TestLoad_ParseFailure(t *testing.T) {
	t.Setenv("YEARS_BACK", "not-a-number")

	_, err := Load()
	if err == nil {
		t.Fatal("expected parse error")
	}
	var cfgErr *Error
	if !errors.As(err, &cfgErr) {
		t.Fatalf("expected *config.Error, got %T", err)
	}
	if cfgErr.Type != ErrParsing {
		t.Errorf("error type = %q, want %q", cfgErr.Type, ErrParsing)
	}
}

func TestLoad_ValidationFailure(t *testing.T) {
	tests := []struct {
		name  string
		key   string
		value string
	}{
		{name: "bad environment", key: "APP_ENV", value: "production"},
		{name: "bad log level", key: "LOG_LEVEL", value: "verbose"},
		{name: "bad base url", key: "POWER_BASE_URL", value: "not a url"},
		{name: "years back too deep", key: "YEARS_BACK", value: "99"},
		{name: "too many workers", key: "GRID_WORKERS", value: "100"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv(tt.key, tt.value)

			_, err := Load()
			if err == nil {
				t.Fatal("expected validation error")
			}
			var cfgErr *Error
			if !errors.As(err, &cfgErr) {
				t.Fatalf("expected *config.Error, got %T", err)
			}
			if cfgErr.Type != ErrValidation {
				t.Errorf("error type = %q, want %q", cfgErr.Type, ErrValidation)
			}
		})
	}
}
