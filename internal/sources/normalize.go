package sources

import (
	"time"

	"climatelens/internal/types"
)

// powerFillValue is NASA POWER's sentinel for missing observations.
const powerFillValue = -999.0

// variableMapping describes how one source-native variable code maps onto the
// canonical set: the canonical name plus any unit conversion. Both current
// sources happen to deliver canonical units natively, so every convert is
// identity, but the hook is where a future source's unit change belongs --
// conversion lives here, never downstream.
type variableMapping struct {
	canonical string
	convert   func(float64) float64
}

func identity(v float64) float64 { return v }

// powerVariables maps NASA POWER parameter codes. POWER's codes are the
// canonical set, so this table is the identity mapping.
var powerVariables = map[string]variableMapping{
	"T2M":         {canonical: "T2M", convert: identity},
	"T2M_MIN":     {canonical: "T2M_MIN", convert: identity},
	"T2M_MAX":     {canonical: "T2M_MAX", convert: identity},
	"RH2M":        {canonical: "RH2M", convert: identity},
	"PRECTOTCORR": {canonical: "PRECTOTCORR", convert: identity},
	"WS10M":       {canonical: "WS10M", convert: identity},
}

// meteomaticsVariables maps Meteomatics parameter codes (with their unit
// suffix) onto the canonical set.
var meteomaticsVariables = map[string]variableMapping{
	"t_2m:C":                 {canonical: "T2M", convert: identity},
	"t_min_2m_24h:C":         {canonical: "T2M_MIN", convert: identity},
	"t_max_2m_24h:C":         {canonical: "T2M_MAX", convert: identity},
	"relative_humidity_2m:p": {canonical: "RH2M", convert: identity},
	"precip_24h:mm":          {canonical: "PRECTOTCORR", convert: identity},
	"wind_speed_10m:ms":      {canonical: "WS10M", convert: identity},
}

// meteomaticsCodes is the request-side reverse mapping: canonical name to
// Meteomatics parameter code.
var meteomaticsCodes = func() map[string]string {
	m := make(map[string]string, len(meteomaticsVariables))
	for code, mapping := range meteomaticsVariables {
		m[mapping.canonical] = code
	}
	return m
}()

// MeteomaticsCode returns the native Meteomatics parameter code for a
// canonical variable name.
func MeteomaticsCode(canonical string) (string, bool) {
	code, ok := meteomaticsCodes[canonical]
	return code, ok
}

// sourceTables selects the static mapping table for a source identifier.
var sourceTables = map[string]map[string]variableMapping{
	SourceNASAPower:   powerVariables,
	SourceMeteomatics: meteomaticsVariables,
}

// Normalizer maps each source's native variable identifiers and units onto
// the canonical variable set consumed by the rest of the engine. It is
// stateless; the mapping tables are fixed at compile time.
type Normalizer struct{}

// Normalize converts a raw source payload into an ObservationSeries of
// canonical variables.
//
// Native codes with no canonical mapping are dropped. A canonical variable
// absent from the source's schema is simply omitted from the output; callers
// must tolerate partial variable coverage. Date keys that do not parse as
// YYYYMMDD and POWER fill values (-999) are skipped.
//
// It fails with upstream_payload_malformed only when the payload is
// structurally unusable: an unknown source, a nil payload, or a non-empty
// payload in which not a single date key parses.
func (Normalizer) Normalize(sourceID string, raw RawSeries) (*types.ObservationSeries, error) {
	table, ok := sourceTables[sourceID]
	if !ok {
		return nil, types.NewAppError(types.ErrCodeUpstreamMalformed,
			"no variable mapping table for source "+sourceID, nil)
	}
	if raw == nil {
		return nil, types.NewAppError(types.ErrCodeUpstreamMalformed,
			"nil payload from source "+sourceID, nil)
	}

	out := &types.ObservationSeries{
		Source:    sourceID,
		Variables: make(map[string]types.DateSeries),
	}

	totalIn, totalOut := 0, 0
	for nativeCode, dates := range raw {
		mapping, ok := table[nativeCode]
		if !ok {
			continue
		}
		series := make(types.DateSeries, len(dates))
		for dateKey, value := range dates {
			totalIn++
			if _, err := time.Parse("20060102", dateKey); err != nil {
				continue
			}
			if value == powerFillValue {
				continue
			}
			series[dateKey] = mapping.convert(value)
			totalOut++
		}
		if len(series) > 0 {
			out.Variables[mapping.canonical] = series
		}
	}

	if totalIn > 0 && totalOut == 0 {
		return nil, types.NewAppError(types.ErrCodeUpstreamMalformed,
			"payload from "+sourceID+" contained no parseable observations", nil)
	}

	return out, nil
}
