package sources

import (
	"context"
	"net/http"
	"testing"

	"github.com/jarcoal/httpmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"climatelens/internal/external"
	"climatelens/internal/types"
)

const powerTestURL = "https://power.larc.nasa.gov"

func newPowerClientForTest(t *testing.T) *PowerClient {
	t.Helper()
	httpClient := &http.Client{}
	httpmock.ActivateNonDefault(httpClient)
	t.Cleanup(httpmock.DeactivateAndReset)

	return NewPowerClient(powerTestURL, external.NewClient(httpClient, t.Name(), "climatelens-test/1.0"))
}

func TestPowerClient_Fetch(t *testing.T) {
	p := newPowerClientForTest(t)

	var gotQuery map[string][]string
	httpmock.RegisterResponder(http.MethodGet, powerTestURL+"/api/temporal/daily/point",
		func(req *http.Request) (*http.Response, error) {
			gotQuery = req.URL.Query()
			return httpmock.NewJsonResponse(200, map[string]any{
				"properties": map[string]any{
					"parameter": map[string]any{
						"T2M":  map[string]float64{"20230715": 33.1, "20230716": -999.0},
						"RH2M": map[string]float64{"20230715": 72.0},
					},
				},
			})
		})

	raw, err := p.Fetch(context.Background(), 40.7128, -74.006, []string{"T2M", "RH2M"}, YearRange{Start: 2001, End: 2025})
	require.NoError(t, err)

	assert.Equal(t, 33.1, raw["T2M"]["20230715"])
	assert.Equal(t, 72.0, raw["RH2M"]["20230715"])

	require.NotNil(t, gotQuery)
	assert.Equal(t, []string{"40.7128"}, gotQuery["latitude"])
	assert.Equal(t, []string{"-74.006"}, gotQuery["longitude"])
	assert.Equal(t, []string{"20010101"}, gotQuery["start"])
	assert.Equal(t, []string{"20251231"}, gotQuery["end"])
	assert.Equal(t, []string{"RE"}, gotQuery["community"])
	assert.Equal(t, []string{"T2M,RH2M"}, gotQuery["parameters"])
	assert.Equal(t, []string{"JSON"}, gotQuery["format"])
}

func TestPowerClient_FetchUserAgentAndRequestID(t *testing.T) {
	p := newPowerClientForTest(t)

	var gotUA, gotReqID string
	httpmock.RegisterResponder(http.MethodGet, powerTestURL+"/api/temporal/daily/point",
		func(req *http.Request) (*http.Response, error) {
			gotUA = req.Header.Get("User-Agent")
			gotReqID = req.Header.Get("X-Request-Id")
			return httpmock.NewJsonResponse(200, map[string]any{
				"properties": map[string]any{"parameter": map[string]any{"T2M": map[string]float64{"20230715": 1}}},
			})
		})

	ctx := types.WithRequestID(context.Background(), "req-abc")
	_, err := p.Fetch(ctx, 40.7, -74.0, []string{"T2M"}, YearRange{Start: 2024, End: 2024})
	require.NoError(t, err)

	assert.Equal(t, "climatelens-test/1.0", gotUA)
	assert.Equal(t, "req-abc", gotReqID)
}

func TestPowerClient_FetchServerError(t *testing.T) {
	p := newPowerClientForTest(t)

	httpmock.RegisterResponder(http.MethodGet, powerTestURL+"/api/temporal/daily/point",
		httpmock.NewStringResponder(503, "unavailable"))

	_, err := p.Fetch(context.Background(), 40.7, -74.0, []string{"T2M"}, YearRange{Start: 2024, End: 2024})
	requireAppError(t, err, types.ErrCodeUpstreamHTTP)
}

func TestPowerClient_FetchMalformedBody(t *testing.T) {
	p := newPowerClientForTest(t)

	httpmock.RegisterResponder(http.MethodGet, powerTestURL+"/api/temporal/daily/point",
		httpmock.NewStringResponder(200, "<html>surprise</html>"))

	_, err := p.Fetch(context.Background(), 40.7, -74.0, []string{"T2M"}, YearRange{Start: 2024, End: 2024})
	requireAppError(t, err, types.ErrCodeUpstreamHTTP)
}

func TestPowerClient_FetchMissingParameterBlock(t *testing.T) {
	p := newPowerClientForTest(t)

	httpmock.RegisterResponder(http.MethodGet, powerTestURL+"/api/temporal/daily/point",
		httpmock.NewStringResponder(200, `{"messages":[]}`))

	_, err := p.Fetch(context.Background(), 40.7, -74.0, []string{"T2M"}, YearRange{Start: 2024, End: 2024})
	requireAppError(t, err, types.ErrCodeUpstreamHTTP)
}

func TestPowerClient_AlwaysConfigured(t *testing.T) {
	p := newPowerClientForTest(t)
	assert.True(t, p.Configured())
	assert.Equal(t, SourceNASAPower, p.ID())
}
