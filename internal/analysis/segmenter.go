package analysis

import (
	"context"
	"errors"
	"fmt"
	"math"

	"golang.org/x/sync/errgroup"

	"climatelens/internal/types"
)

// Segment walks an offset grid around the center coordinate, resolving each
// cell through the cache -> analyzer chain with bounded concurrency.
//
// Offsets run from -range to +range inclusive on both axes, spaced by step.
// Each cell's absolute coordinate is clamped in latitude and wrapped in
// longitude; offsets that collapse onto the same coordinate (e.g. clamping
// at a pole) share a single underlying computation. Identical in-flight keys
// are additionally deduplicated across concurrent requests via single-flight.
//
// One cell's failure never aborts the grid: the cell is marked with a
// cell_failed error and the rest proceeds. The grid is assembled only after
// every cell has completed or failed. On deadline expiry, in-flight fetches
// are abandoned and uncompleted cells are marked as timed-out failures.
func (s *Service) Segment(ctx context.Context, centerLat, centerLon float64, month int, conditionID string, step, searchRange float64) (*types.Grid, error) {
	center, appErr := types.ValidateCoordinate(centerLat, centerLon)
	if appErr != nil {
		return nil, appErr
	}
	if appErr := types.ValidateTargetDate(month, 0); appErr != nil {
		return nil, appErr
	}
	if appErr := types.ValidateGridParams(step, searchRange); appErr != nil {
		return nil, appErr
	}
	if _, appErr := s.analyzer.Registry().Get(conditionID); appErr != nil {
		return nil, appErr
	}

	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	offsets := gridOffsets(step, searchRange)
	cells := make([]types.GridCell, 0, len(offsets)*len(offsets))
	groups := make(map[string][]int) // resolved coordinate -> cell indices

	for _, latOff := range offsets {
		for _, lonOff := range offsets {
			cell := types.GridCell{
				LatOffset: latOff,
				LonOffset: lonOff,
				Lat:       types.ClampLat(center.Lat + latOff),
				Lon:       types.WrapLon(center.Lon + lonOff),
			}
			key := fmt.Sprintf("%.4f,%.4f", cell.Lat, cell.Lon)
			groups[key] = append(groups[key], len(cells))
			cells = append(cells, cell)
		}
	}

	eg, ctx := errgroup.WithContext(ctx)
	eg.SetLimit(s.workers)

	for _, indices := range groups {
		indices := indices
		lat, lon := cells[indices[0]].Lat, cells[indices[0]].Lon
		eg.Go(func() error {
			result, err := s.analyzeCell(ctx, lat, lon, month, conditionID)
			for _, i := range indices {
				if err != nil {
					cells[i].Error = types.NewCellFailure(err)
				} else {
					cells[i].Result = result
				}
			}
			return nil
		})
	}

	// Barrier: the grid is only assembled once every cell has resolved.
	_ = eg.Wait()

	failed := 0
	for i := range cells {
		if cells[i].Error != nil {
			failed++
			s.recordCell("failed")
		} else {
			s.recordCell("ok")
		}
	}

	s.logger.InfoContext(ctx, "segmentation complete",
		"lat", center.Lat, "lon", center.Lon,
		"condition", conditionID,
		"cells", len(cells),
		"unique_coords", len(groups),
		"failed", failed,
	)

	return &types.Grid{
		Center:      center,
		ConditionID: conditionID,
		Month:       month,
		Step:        step,
		Range:       searchRange,
		Cells:       cells,
		FailedCount: failed,
	}, nil
}

// analyzeCell resolves one unique coordinate through single-flight and the
// cached analyze path.
func (s *Service) analyzeCell(ctx context.Context, lat, lon float64, month int, conditionID string) (*types.AnalysisResult, error) {
	if err := ctx.Err(); err != nil {
		return nil, deadlineError(err)
	}

	coord := types.RoundCoordinate(types.Coordinate{Lat: lat, Lon: lon})
	flightKey := fmt.Sprintf("%.2f,%.2f|%02d|%s", coord.Lat, coord.Lon, month, conditionID)

	v, err, _ := s.flight.Do(flightKey, func() (any, error) {
		return s.Analyze(ctx, lat, lon, month, 0, []string{conditionID}, false)
	})
	if err != nil {
		return nil, deadlineError(err)
	}

	out := v.(*Output)
	if condErr, ok := out.Errors[conditionID]; ok {
		return nil, condErr
	}
	return out.Results[conditionID], nil
}

// deadlineError rewraps context expiry so timed-out cells carry a readable
// message instead of a bare "context deadline exceeded".
func deadlineError(err error) error {
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return types.NewAppError(types.ErrCodeInternalUnexpected, "cell analysis timed out", err)
	}
	return err
}

// gridOffsets enumerates -range..+range inclusive, spaced by step. When step
// does not divide range evenly the enumeration truncates rather than
// overshooting past the range; the epsilon absorbs float division noise for
// the even cases.
func gridOffsets(step, searchRange float64) []float64 {
	steps := int(math.Floor(searchRange/step + 1e-9))
	offsets := make([]float64, 0, 2*steps+1)
	for i := -steps; i <= steps; i++ {
		offsets = append(offsets, float64(i)*step)
	}
	return offsets
}

func (s *Service) recordCell(outcome string) {
	if s.metrics != nil {
		s.metrics.GridCells.WithLabelValues(outcome).Inc()
	}
}
