// Package config defines the configuration for the climatelens engine.
// Configuration is loaded once at process initialization and is immutable
// thereafter. It follows 12-Factor principles by strictly separating code
// from configuration.
//
// Values are resolved via a priority chain:
//
//	OS Environment (Highest) -> Dotenv File (Lowest)
//
// Any invalid value causes startup to fail immediately (fail fast). The one
// deliberately optional piece is the secondary data source credentials:
// their absence means the engine runs in primary-only mode.
package config

import (
	"time"

	"climatelens/internal/types"
)

// SecretString is an alias for types.SecretString, the redacted secret type
// used to prevent accidental logging of sensitive values.
type SecretString = types.SecretString

// Config is the top-level configuration struct. It is populated once during
// process initialization and never modified. Sub-components receive only the
// specific config subsets they require.
type Config struct {
	Environment string `envconfig:"APP_ENV" default:"local" validate:"oneof=local dev staging prod"`
	Service     string `envconfig:"SERVICE_NAME" default:"climatelens"`
	LogLevel    string `envconfig:"LOG_LEVEL" default:"info" validate:"oneof=debug info warn error"`

	Server   ServerConfig
	Sources  SourcesConfig
	Analysis AnalysisConfig
}

// ServerConfig holds HTTP server configuration.
type ServerConfig struct {
	Port            string        `envconfig:"PORT" default:"8080"`
	ShutdownTimeout time.Duration `envconfig:"SHUTDOWN_TIMEOUT" default:"10s"`
}

// SourcesConfig holds upstream data source endpoints and credentials.
//
// The NASA POWER archive is the primary source and needs no credentials.
// Meteomatics is the secondary: when its username or password is empty the
// fallback chain consists of the primary alone.
type SourcesConfig struct {
	PowerBaseURL       string        `envconfig:"POWER_BASE_URL" default:"https://power.larc.nasa.gov" validate:"url"`
	MeteomaticsBaseURL string        `envconfig:"METEOMATICS_BASE_URL" default:"https://api.meteomatics.com" validate:"url"`
	MeteomaticsUser    string        `envconfig:"METEOMATICS_USERNAME"`
	MeteomaticsPass    SecretString  `envconfig:"METEOMATICS_PASSWORD"`
	RequestTimeout     time.Duration `envconfig:"SOURCE_TIMEOUT" default:"30s"`
	UserAgent          string        `envconfig:"SOURCE_USER_AGENT" default:"climatelens/1.0"`

	// YearsBack is the depth of the historical window. The year range ends at
	// the last complete calendar year.
	YearsBack int `envconfig:"YEARS_BACK" default:"25" validate:"min=1,max=40"`
}

// AnalysisConfig holds cache and segmentation tuning parameters.
type AnalysisConfig struct {
	// CacheTTL is the time-to-live for analysis results. Upstream archives
	// change only when revised, so hours-to-a-day scale is appropriate.
	CacheTTL time.Duration `envconfig:"ANALYSIS_CACHE_TTL" default:"24h"`

	// GridWorkers bounds concurrent grid cell analyses to protect upstream
	// rate limits.
	GridWorkers int `envconfig:"GRID_WORKERS" default:"4" validate:"min=1,max=32"`

	// WindowDays widens the evaluator's target date by +/- N adjacent days to
	// tolerate leap-year and alignment gaps. 0 means exact date match only.
	WindowDays int `envconfig:"EVAL_WINDOW_DAYS" default:"0" validate:"min=0,max=7"`

	// SegmentTimeout is the deadline for a whole segmentation run. Cells not
	// completed by then are marked as timed-out failures.
	SegmentTimeout time.Duration `envconfig:"SEGMENT_TIMEOUT" default:"2m"`
}

// SecondaryConfigured reports whether Meteomatics credentials are present.
func (c SourcesConfig) SecondaryConfigured() bool {
	return c.MeteomaticsUser != "" && c.MeteomaticsPass.Unmask() != ""
}
