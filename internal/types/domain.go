package types

// Coordinate is a geographic point. Latitude is in [-90, 90] and longitude
// is normalized into [-180, 180); see ValidateCoordinate.
type Coordinate struct {
	Lat float64 `json:"lat"`
	Lon float64 `json:"lon"`
}

// DateSeries maps a date key (YYYYMMDD) to a numeric observation value.
type DateSeries map[string]float64

// ObservationSeries holds normalized daily observations for one coordinate
// over a historical year range: canonical variable name -> date -> value.
// Immutable once built; owned exclusively by the analyze call that fetched it.
type ObservationSeries struct {
	Source    string                `json:"source"`
	Variables map[string]DateSeries `json:"variables"`
}

// Values returns the series for a canonical variable, or nil if the source
// did not supply it. Callers must tolerate partial variable coverage.
func (s *ObservationSeries) Values(variable string) DateSeries {
	if s == nil {
		return nil
	}
	return s.Variables[variable]
}

// YearMatch records the classification of a single historical year against a
// condition, including the variable values used in the decision so results
// are explainable.
type YearMatch struct {
	Year     int                `json:"year"`
	Matched  bool               `json:"matched"`
	Excluded bool               `json:"excluded,omitempty"`
	Values   map[string]float64 `json:"values,omitempty"`
}

// AnalysisResult is the probability summary for one condition at one
// coordinate and target date.
//
// Invariant: 0 <= YearsMatching <= YearsTotal, and when YearsTotal > 0,
// Probability == 100 * YearsMatching / YearsTotal. A zero YearsTotal is an
// error condition (insufficient_history) and is never reported as 0%.
type AnalysisResult struct {
	ConditionID       string             `json:"condition"`
	Description       string             `json:"condition_description"`
	Probability       float64            `json:"probability"`
	YearsTotal        int                `json:"years_total"`
	YearsMatching     int                `json:"years_matching"`
	MatchingYears     []int              `json:"matching_years,omitempty"`
	VariablesAnalyzed []string           `json:"variables_analyzed"`
	Thresholds        map[string]float64 `json:"thresholds"`
	Source            string             `json:"data_source"`
	Years             []YearMatch        `json:"year_details,omitempty"`
}

// GridCell is one sample point of a geospatial segmentation run. Exactly one
// of Result or Error is set.
type GridCell struct {
	LatOffset float64         `json:"lat_offset"`
	LonOffset float64         `json:"lon_offset"`
	Lat       float64         `json:"lat"`
	Lon       float64         `json:"lon"`
	Result    *AnalysisResult `json:"result,omitempty"`
	Error     *AppError       `json:"error,omitempty"`
}

// Grid is the complete outcome of one segmentation request. It is owned by
// that request and discarded once the response is produced; individual
// results may separately land in the shared analysis cache.
type Grid struct {
	Center      Coordinate `json:"center"`
	ConditionID string     `json:"condition"`
	Month       int        `json:"month"`
	Step        float64    `json:"step"`
	Range       float64    `json:"range"`
	Cells       []GridCell `json:"cells"`
	FailedCount int        `json:"failed_count"`
}

// SourceStatus reports whether a data source is configured for use.
type SourceStatus struct {
	ID         string `json:"id"`
	Configured bool   `json:"configured"`
}

// SourceProbe reports the outcome of a connectivity test against one source.
type SourceProbe struct {
	ID        string `json:"id"`
	Reachable bool   `json:"reachable"`
	LatencyMS int64  `json:"latency_ms,omitempty"`
	Error     string `json:"error,omitempty"`
}
