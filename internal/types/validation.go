package types

import (
	"fmt"
	"math"
	"time"
)

// Validation constraint constants.
const (
	MinLat = -90.0
	MaxLat = 90.0
	MinLon = -180.0
	MaxLon = 180.0

	// CoordinatePrecision is the number of decimal places coordinates are
	// rounded to when building cache keys. Two decimals (~1.1 km at the
	// equator) raises the hit rate for near-duplicate queries without
	// crossing upstream grid cells.
	CoordinatePrecision = 2

	MaxGridStep  = 5.0
	MaxGridRange = 10.0
)

// VariableMetadata defines the canonical rules for a weather variable.
type VariableMetadata struct {
	ID          string     `json:"id"`
	Unit        string     `json:"unit"`
	Range       [2]float64 `json:"valid_range"`
	Description string     `json:"description"`
}

// CanonicalVariables defines the source-independent variable set the engine
// operates on. All normalized series use exactly these names and units.
var CanonicalVariables = map[string]VariableMetadata{
	"T2M":         {ID: "T2M", Unit: "celsius", Range: [2]float64{-90, 60}, Description: "Daily mean air temperature at 2m"},
	"T2M_MIN":     {ID: "T2M_MIN", Unit: "celsius", Range: [2]float64{-90, 60}, Description: "Daily minimum air temperature at 2m"},
	"T2M_MAX":     {ID: "T2M_MAX", Unit: "celsius", Range: [2]float64{-90, 60}, Description: "Daily maximum air temperature at 2m"},
	"RH2M":        {ID: "RH2M", Unit: "percent", Range: [2]float64{0, 100}, Description: "Relative humidity at 2m"},
	"PRECTOTCORR": {ID: "PRECTOTCORR", Unit: "mm/day", Range: [2]float64{0, 2000}, Description: "Corrected daily precipitation total"},
	"WS10M":       {ID: "WS10M", Unit: "m/s", Range: [2]float64{0, 120}, Description: "Wind speed at 10m"},
}

// ValidateCoordinate checks latitude bounds and normalizes the longitude into
// [-180, 180). It returns the normalized coordinate, or an AppError without
// touching the network.
func ValidateCoordinate(lat, lon float64) (Coordinate, *AppError) {
	if math.IsNaN(lat) || lat < MinLat || lat > MaxLat {
		return Coordinate{}, NewAppError(ErrCodeValidationInvalidLat,
			fmt.Sprintf("latitude %v outside [%v, %v]", lat, MinLat, MaxLat), nil)
	}
	if math.IsNaN(lon) || math.IsInf(lon, 0) {
		return Coordinate{}, NewAppError(ErrCodeValidationInvalidLon,
			fmt.Sprintf("longitude %v is not a finite number", lon), nil)
	}
	return Coordinate{Lat: lat, Lon: WrapLon(lon)}, nil
}

// WrapLon normalizes a longitude into [-180, 180) modulo 360.
func WrapLon(lon float64) float64 {
	wrapped := math.Mod(lon+180, 360)
	if wrapped < 0 {
		wrapped += 360
	}
	return wrapped - 180
}

// ClampLat clamps a latitude into [-90, 90].
func ClampLat(lat float64) float64 {
	if lat < MinLat {
		return MinLat
	}
	if lat > MaxLat {
		return MaxLat
	}
	return lat
}

// RoundCoordinate rounds to the fixed spatial cache resolution.
func RoundCoordinate(c Coordinate) Coordinate {
	scale := math.Pow(10, CoordinatePrecision)
	return Coordinate{
		Lat: math.Round(c.Lat*scale) / scale,
		Lon: math.Round(c.Lon*scale) / scale,
	}
}

// ValidateTargetDate checks a (month, day) pair. Day 0 selects whole-month
// aggregation and is valid; otherwise the day must exist in the given month
// in at least some years (Feb 29 is accepted and resolved per-year by the
// evaluator).
func ValidateTargetDate(month, day int) *AppError {
	if month < 1 || month > 12 {
		return NewAppError(ErrCodeValidationInvalidDate,
			fmt.Sprintf("month %d outside [1, 12]", month), nil)
	}
	if day == 0 {
		return nil
	}
	if day < 1 || day > 31 {
		return NewAppError(ErrCodeValidationInvalidDate,
			fmt.Sprintf("day %d outside [1, 31]", day), nil)
	}
	// Use a leap year so Feb 29 validates.
	probe := time.Date(2024, time.Month(month), 1, 0, 0, 0, 0, time.UTC)
	if day > probe.AddDate(0, 1, -1).Day() {
		return NewAppError(ErrCodeValidationInvalidDate,
			fmt.Sprintf("day %d does not exist in month %d", day, month), nil)
	}
	return nil
}

// ValidateGridParams checks segmentation step and range bounds.
func ValidateGridParams(step, searchRange float64) *AppError {
	if step <= 0 || step > MaxGridStep {
		return NewAppError(ErrCodeValidationInvalidGrid,
			fmt.Sprintf("step %v outside (0, %v]", step, MaxGridStep), nil)
	}
	if searchRange <= 0 || searchRange > MaxGridRange {
		return NewAppError(ErrCodeValidationInvalidGrid,
			fmt.Sprintf("range %v outside (0, %v]", searchRange, MaxGridRange), nil)
	}
	return nil
}
