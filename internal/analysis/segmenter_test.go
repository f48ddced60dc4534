package analysis

import (
	"context"
	"fmt"
	"math"
	"sync"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"climatelens/internal/conditions"
	"climatelens/internal/observability"
	"climatelens/internal/sources"
	"climatelens/internal/types"
)

// countingSource wraps stubSource with a mutex so concurrent grid cells can
// safely count fetches.
type countingSource struct {
	mu  sync.Mutex
	src stubSource
}

func (c *countingSource) ID() string       { return c.src.id }
func (c *countingSource) Configured() bool { return c.src.configured }

func (c *countingSource) Fetch(ctx context.Context, lat, lon float64, variables []string, years sources.YearRange) (sources.RawSeries, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.src.Fetch(ctx, lat, lon, variables, years)
}

func (c *countingSource) Probe(ctx context.Context) error { return nil }

func (c *countingSource) calls() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.src.fetchCalls
}

// failAtSource fails fetches for one specific latitude and succeeds
// elsewhere, so grid tests can poison a single cell.
type failAtSource struct {
	countingSource
	failLat float64
}

func (f *failAtSource) Fetch(ctx context.Context, lat, lon float64, variables []string, years sources.YearRange) (sources.RawSeries, error) {
	if lat == f.failLat {
		f.countingSource.mu.Lock()
		f.countingSource.src.fetchCalls++
		f.countingSource.mu.Unlock()
		return nil, fmt.Errorf("synthetic outage at %v", lat)
	}
	return f.countingSource.Fetch(ctx, lat, lon, variables, years)
}

func monthlyRaw() sources.RawSeries {
	raw := sources.RawSeries{"PRECTOTCORR": {}}
	for year := 2001; year <= 2025; year++ {
		for day := 1; day <= 28; day++ {
			raw["PRECTOTCORR"][fmt.Sprintf("%d07%02d", year, day)] = 25.0
		}
	}
	return raw
}

func TestSegment_GridShape(t *testing.T) {
	src := &countingSource{src: stubSource{id: sources.SourceNASAPower, configured: true, raw: monthlyRaw()}}
	s := newTestService(t, time.Hour, src)

	grid, err := s.Segment(context.Background(), 40.0, -74.0, 7, "very_wet", 0.5, 1.0)
	require.NoError(t, err)

	// Offsets -1.0..+1.0 in 0.5 steps: 5 per axis, 25 cells.
	require.Len(t, grid.Cells, 25)
	assert.Equal(t, 0, grid.FailedCount)
	assert.Equal(t, types.Coordinate{Lat: 40.0, Lon: -74.0}, grid.Center)

	// Cell order: latitude offset outer, longitude offset inner.
	assert.Equal(t, -1.0, grid.Cells[0].LatOffset)
	assert.Equal(t, -1.0, grid.Cells[0].LonOffset)
	assert.Equal(t, -1.0, grid.Cells[4].LatOffset)
	assert.Equal(t, 1.0, grid.Cells[4].LonOffset)
	assert.Equal(t, 1.0, grid.Cells[24].LatOffset)
	assert.Equal(t, 1.0, grid.Cells[24].LonOffset)

	// Absolute coordinates are center plus offsets.
	assert.Equal(t, 39.0, grid.Cells[0].Lat)
	assert.Equal(t, -75.0, grid.Cells[0].Lon)

	for _, cell := range grid.Cells {
		require.NotNil(t, cell.Result, "cell (%v,%v) missing result", cell.LatOffset, cell.LonOffset)
		assert.Equal(t, 100.0, cell.Result.Probability)
		assert.Nil(t, cell.Error)
	}

	// 25 distinct coordinates, one fetch each.
	assert.Equal(t, 25, src.calls())
}

func TestGridOffsets(t *testing.T) {
	tests := []struct {
		name        string
		step, rng   float64
		wantOffsets []float64
	}{
		{name: "step divides range", step: 0.5, rng: 1.0, wantOffsets: []float64{-1.0, -0.5, 0, 0.5, 1.0}},
		{name: "step exceeds range", step: 2.0, rng: 1.0, wantOffsets: []float64{0}},
		{name: "non-divisible step truncates", step: 0.4, rng: 1.0, wantOffsets: []float64{-0.8, -0.4, 0, 0.4, 0.8}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.wantOffsets, gridOffsets(tt.step, tt.rng))
		})
	}
}

func TestGridOffsets_NeverExceedRange(t *testing.T) {
	for _, step := range []float64{0.1, 0.3, 0.4, 0.5, 0.7, 1.0} {
		for _, rng := range []float64{0.5, 1.0, 2.0} {
			for _, off := range gridOffsets(step, rng) {
				assert.LessOrEqual(t, math.Abs(off), rng,
					"offset %v outside range for step=%v range=%v", off, step, rng)
			}
		}
	}
}

func TestSegment_StepNotDividingRange(t *testing.T) {
	src := &countingSource{src: stubSource{id: sources.SourceNASAPower, configured: true, raw: monthlyRaw()}}
	s := newTestService(t, time.Hour, src)

	grid, err := s.Segment(context.Background(), 40.0, -74.0, 7, "very_wet", 0.4, 1.0)
	require.NoError(t, err)

	// Offsets -0.8..+0.8 in 0.4 steps: 5 per axis, 25 cells, none past the range.
	require.Len(t, grid.Cells, 25)
	for _, cell := range grid.Cells {
		assert.LessOrEqual(t, math.Abs(cell.LatOffset), 1.0)
		assert.LessOrEqual(t, math.Abs(cell.LonOffset), 1.0)
	}
	assert.Equal(t, -0.8, grid.Cells[0].LatOffset)
	assert.Equal(t, 0.8, grid.Cells[24].LatOffset)
}

func TestSegment_ResultsLandInCache(t *testing.T) {
	src := &countingSource{src: stubSource{id: sources.SourceNASAPower, configured: true, raw: monthlyRaw()}}
	s := newTestService(t, time.Hour, src)

	_, err := s.Segment(context.Background(), 40.0, -74.0, 7, "very_wet", 0.5, 1.0)
	require.NoError(t, err)
	calls := src.calls()

	// A second identical run is fully served from cache.
	grid, err := s.Segment(context.Background(), 40.0, -74.0, 7, "very_wet", 0.5, 1.0)
	require.NoError(t, err)
	assert.Equal(t, calls, src.calls(), "second segmentation must be cache-served")
	assert.Equal(t, 0, grid.FailedCount)

	// So is a point analysis of any cell (month mode).
	out, err := s.Analyze(context.Background(), 39.0, -75.0, 7, 0, []string{"very_wet"}, false)
	require.NoError(t, err)
	assert.True(t, out.Cached)
}

func TestSegment_CellFailureIsIsolated(t *testing.T) {
	src := &failAtSource{failLat: 39.0}
	src.countingSource.src = stubSource{id: sources.SourceNASAPower, configured: true, raw: monthlyRaw()}
	s := newTestService(t, time.Hour, src)

	grid, err := s.Segment(context.Background(), 40.0, -74.0, 7, "very_wet", 0.5, 1.0)
	require.NoError(t, err, "one failing cell must not fail the grid")

	require.Len(t, grid.Cells, 25)
	assert.Equal(t, 5, grid.FailedCount, "the whole lat=39 row fails")

	for _, cell := range grid.Cells {
		if cell.Lat == 39.0 {
			require.NotNil(t, cell.Error)
			assert.Equal(t, types.ErrCodeCellFailed, cell.Error.Code)
			assert.Equal(t, string(types.ErrCodeSourceUnavailable), cell.Error.Details["cause"])
			assert.Nil(t, cell.Result)
		} else {
			require.NotNil(t, cell.Result)
			assert.Nil(t, cell.Error)
		}
	}
}

// hangAtSource blocks fetches for one latitude until the context expires,
// succeeding everywhere else.
type hangAtSource struct {
	countingSource
	hangLat float64
}

func (h *hangAtSource) Fetch(ctx context.Context, lat, lon float64, variables []string, years sources.YearRange) (sources.RawSeries, error) {
	if lat == h.hangLat {
		<-ctx.Done()
		return nil, ctx.Err()
	}
	return h.countingSource.Fetch(ctx, lat, lon, variables, years)
}

func TestSegment_DeadlineExpiryKeepsCompletedCells(t *testing.T) {
	src := &hangAtSource{hangLat: 39.0}
	src.countingSource.src = stubSource{id: sources.SourceNASAPower, configured: true, raw: monthlyRaw()}

	metrics := observability.NewMetricsForTesting()
	clock := clockwork.NewFakeClockAt(time.Date(2026, 8, 31, 0, 0, 0, 0, time.UTC))
	gateway := sources.NewGateway([]sources.Source{src}, 25, nil, metrics, clock)
	analyzer := NewAnalyzer(gateway, conditions.MustDefaultRegistry(), conditions.Evaluator{}, nil)
	// Enough workers that every cell starts before the deadline: fast cells
	// complete, the hung row is cut off by the timeout.
	s := NewService(analyzer, NewCache(time.Hour, metrics), gateway,
		Options{GridWorkers: 32, SegmentTimeout: 50 * time.Millisecond}, nil, metrics)

	grid, err := s.Segment(context.Background(), 40.0, -74.0, 7, "very_wet", 0.5, 1.0)
	require.NoError(t, err, "deadline expiry must not fail the whole grid")

	require.Len(t, grid.Cells, 25, "timed-out cells still appear in the grid")
	assert.Equal(t, 5, grid.FailedCount, "only the hung lat=39 row times out")

	for _, cell := range grid.Cells {
		if cell.Lat == 39.0 {
			require.NotNil(t, cell.Error, "uncompleted cell (%v,%v) must be a failure", cell.LatOffset, cell.LonOffset)
			assert.Equal(t, types.ErrCodeCellFailed, cell.Error.Code)
			assert.Nil(t, cell.Result)
		} else {
			require.NotNil(t, cell.Result, "completed cell (%v,%v) must be kept", cell.LatOffset, cell.LonOffset)
			assert.Nil(t, cell.Error)
		}
	}
}

func TestSegment_PoleClampDeduplicatesCells(t *testing.T) {
	src := &countingSource{src: stubSource{id: sources.SourceNASAPower, configured: true, raw: monthlyRaw()}}
	s := newTestService(t, time.Hour, src)

	// Center on the pole: the +0.5 and +1.0 latitude offsets all clamp to 90.
	grid, err := s.Segment(context.Background(), 90.0, 0.0, 7, "very_wet", 0.5, 1.0)
	require.NoError(t, err)

	require.Len(t, grid.Cells, 25)
	for _, cell := range grid.Cells {
		assert.LessOrEqual(t, cell.Lat, 90.0)
		require.NotNil(t, cell.Result)
	}

	// Three lat rows collapse onto 90.0, so only 15 unique coordinates and
	// therefore at most 15 fetches.
	assert.Equal(t, 15, src.calls())
}

func TestSegment_InvalidInputs(t *testing.T) {
	s := newTestService(t, time.Hour, &stubSource{id: sources.SourceNASAPower, configured: true})

	tests := []struct {
		name      string
		lat, lon  float64
		month     int
		condition string
		step, rng float64
		wantCode  types.ErrorCode
	}{
		{name: "bad latitude", lat: 95, lon: 0, month: 7, condition: "very_wet", step: 0.5, rng: 1, wantCode: types.ErrCodeValidationInvalidLat},
		{name: "bad month", lat: 40, lon: 0, month: 0, condition: "very_wet", step: 0.5, rng: 1, wantCode: types.ErrCodeValidationInvalidDate},
		{name: "bad step", lat: 40, lon: 0, month: 7, condition: "very_wet", step: 0, rng: 1, wantCode: types.ErrCodeValidationInvalidGrid},
		{name: "step too coarse", lat: 40, lon: 0, month: 7, condition: "very_wet", step: 6, rng: 1, wantCode: types.ErrCodeValidationInvalidGrid},
		{name: "range too wide", lat: 40, lon: 0, month: 7, condition: "very_wet", step: 0.5, rng: 11, wantCode: types.ErrCodeValidationInvalidGrid},
		{name: "unknown condition", lat: 40, lon: 0, month: 7, condition: "nope", step: 0.5, rng: 1, wantCode: types.ErrCodeConditionUnknown},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := s.Segment(context.Background(), tt.lat, tt.lon, tt.month, tt.condition, tt.step, tt.rng)
			var appErr *types.AppError
			require.ErrorAs(t, err, &appErr)
			assert.Equal(t, tt.wantCode, appErr.Code)
		})
	}
}

func TestSegment_DateLineWrap(t *testing.T) {
	src := &countingSource{src: stubSource{id: sources.SourceNASAPower, configured: true, raw: monthlyRaw()}}
	s := newTestService(t, time.Hour, src)

	grid, err := s.Segment(context.Background(), 0.0, 179.5, 7, "very_wet", 0.5, 1.0)
	require.NoError(t, err)

	// The +1.0 longitude offset crosses the antimeridian and wraps.
	var wrapped bool
	for _, cell := range grid.Cells {
		require.GreaterOrEqual(t, cell.Lon, -180.0)
		require.Less(t, cell.Lon, 180.0)
		if cell.LonOffset == 1.0 {
			assert.Equal(t, -179.5, cell.Lon)
			wrapped = true
		}
	}
	assert.True(t, wrapped)
}
