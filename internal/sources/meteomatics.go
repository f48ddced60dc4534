package sources

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"climatelens/internal/external"
	"climatelens/internal/types"
)

// SourceMeteomatics identifies the Meteomatics historical weather API.
const SourceMeteomatics = "meteomatics"

// MeteomaticsClient fetches daily observations from Meteomatics. The API
// requires Basic auth; without credentials the source reports itself as
// unconfigured and the gateway runs primary-only.
type MeteomaticsClient struct {
	baseURL  string
	username string
	password types.SecretString
	client   *external.Client
}

// NewMeteomaticsClient creates a Meteomatics source. Empty credentials are
// allowed and simply leave the source unconfigured.
func NewMeteomaticsClient(baseURL, username string, password types.SecretString, client *external.Client) *MeteomaticsClient {
	return &MeteomaticsClient{
		baseURL:  strings.TrimRight(baseURL, "/"),
		username: username,
		password: password,
		client:   client,
	}
}

// ID returns the source identifier.
func (m *MeteomaticsClient) ID() string { return SourceMeteomatics }

// Configured reports whether Basic auth credentials are present.
func (m *MeteomaticsClient) Configured() bool {
	return m.username != "" && m.password.Unmask() != ""
}

// meteomaticsResponse mirrors the Meteomatics JSON schema:
// data[].{parameter, coordinates[].dates[].{date, value}}.
// Values are pointers because the API encodes missing observations as null.
type meteomaticsResponse struct {
	Data []struct {
		Parameter   string `json:"parameter"`
		Coordinates []struct {
			Dates []struct {
				Date  string   `json:"date"`
				Value *float64 `json:"value"`
			} `json:"dates"`
		} `json:"coordinates"`
	} `json:"data"`
}

// Fetch issues a single request for the canonical variables over the year
// range, using the URL form /{start}--{end}:P1D/{params}/{lat},{lon}/json.
// Date keys in the returned RawSeries are converted to YYYYMMDD so the
// normalizer sees one date format regardless of source.
func (m *MeteomaticsClient) Fetch(ctx context.Context, lat, lon float64, variables []string, years YearRange) (RawSeries, error) {
	if !m.Configured() {
		return nil, types.NewAppError(types.ErrCodeUpstreamHTTP,
			"meteomatics credentials not configured", nil)
	}

	codes := make([]string, 0, len(variables))
	for _, v := range variables {
		code, ok := MeteomaticsCode(v)
		if !ok {
			continue
		}
		codes = append(codes, code)
	}
	if len(codes) == 0 {
		return nil, types.NewAppError(types.ErrCodeUpstreamHTTP,
			"no requested variables are available from meteomatics", nil)
	}

	timeRange := fmt.Sprintf("%d-01-01T00:00:00Z--%d-12-31T00:00:00Z:P1D", years.Start, years.End)
	u := fmt.Sprintf("%s/%s/%s/%g,%g/json", m.baseURL, timeRange, strings.Join(codes, ","), lat, lon)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, types.NewAppError(types.ErrCodeInternalUnexpected, "building meteomatics request", err)
	}
	req.SetBasicAuth(m.username, m.password.Unmask())

	resp, err := m.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	var payload meteomaticsResponse
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return nil, types.NewAppError(types.ErrCodeUpstreamHTTP, "decoding meteomatics response", err)
	}

	raw := make(RawSeries, len(payload.Data))
	for _, dataset := range payload.Data {
		series := make(map[string]float64)
		for _, coord := range dataset.Coordinates {
			for _, d := range coord.Dates {
				if d.Value == nil {
					continue
				}
				ts, err := time.Parse(time.RFC3339, d.Date)
				if err != nil {
					continue
				}
				series[ts.UTC().Format("20060102")] = *d.Value
			}
		}
		raw[dataset.Parameter] = series
	}

	return raw, nil
}

// Probe requests the current temperature for a fixed reference point, the
// cheapest authenticated call the API offers.
func (m *MeteomaticsClient) Probe(ctx context.Context) error {
	if !m.Configured() {
		return types.NewAppError(types.ErrCodeUpstreamHTTP,
			"meteomatics credentials not configured", nil)
	}

	u := m.baseURL + "/now/t_2m:C/40.7128,-74.0060/json"
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return types.NewAppError(types.ErrCodeInternalUnexpected, "building meteomatics probe", err)
	}
	req.SetBasicAuth(m.username, m.password.Unmask())

	resp, err := m.client.Do(req)
	if err != nil {
		return err
	}
	resp.Body.Close()
	return nil
}
