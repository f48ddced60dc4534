package sources

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"climatelens/internal/external"
	"climatelens/internal/types"
)

// SourceNASAPower identifies the NASA POWER daily point archive.
const SourceNASAPower = "nasa_power"

// powerPath is the POWER temporal daily point endpoint.
const powerPath = "/api/temporal/daily/point"

// PowerClient fetches daily observations from the NASA POWER archive.
// POWER is public and requires no credentials, so it is always configured.
type PowerClient struct {
	baseURL string
	client  *external.Client
}

// NewPowerClient creates a POWER source against the given base URL.
func NewPowerClient(baseURL string, client *external.Client) *PowerClient {
	return &PowerClient{
		baseURL: strings.TrimRight(baseURL, "/"),
		client:  client,
	}
}

// ID returns the source identifier.
func (p *PowerClient) ID() string { return SourceNASAPower }

// Configured is always true: POWER needs no credentials.
func (p *PowerClient) Configured() bool { return true }

// powerResponse mirrors the subset of the POWER JSON schema the engine
// consumes: properties.parameter.{CODE}.{YYYYMMDD} -> value.
type powerResponse struct {
	Properties struct {
		Parameter map[string]map[string]float64 `json:"parameter"`
	} `json:"properties"`
}

// Fetch issues a single request for the given parameters over the year range.
// POWER variable codes are the canonical names, so the variable list passes
// through unchanged.
func (p *PowerClient) Fetch(ctx context.Context, lat, lon float64, variables []string, years YearRange) (RawSeries, error) {
	q := url.Values{}
	q.Set("latitude", fmt.Sprintf("%g", lat))
	q.Set("longitude", fmt.Sprintf("%g", lon))
	q.Set("start", fmt.Sprintf("%d0101", years.Start))
	q.Set("end", fmt.Sprintf("%d1231", years.End))
	q.Set("community", "RE")
	q.Set("parameters", strings.Join(variables, ","))
	q.Set("format", "JSON")

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.baseURL+powerPath+"?"+q.Encode(), nil)
	if err != nil {
		return nil, types.NewAppError(types.ErrCodeInternalUnexpected, "building POWER request", err)
	}

	resp, err := p.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	var payload powerResponse
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return nil, types.NewAppError(types.ErrCodeUpstreamHTTP, "decoding POWER response", err)
	}
	if payload.Properties.Parameter == nil {
		return nil, types.NewAppError(types.ErrCodeUpstreamHTTP, "POWER response missing properties.parameter", nil)
	}

	return RawSeries(payload.Properties.Parameter), nil
}

// Probe fetches a single day of mean temperature for a fixed reference point.
func (p *PowerClient) Probe(ctx context.Context) error {
	_, err := p.Fetch(ctx, 40.7128, -74.0060, []string{"T2M"}, YearRange{Start: 2024, End: 2024})
	return err
}
