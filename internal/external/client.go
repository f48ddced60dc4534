// Package external routes all outbound HTTP calls to upstream weather
// archives through a single client wrapper that enforces consistent
// resilience behavior: circuit breaking, request tagging, and error mapping.
//
// The wrapper deliberately performs NO retries. The engine's resilience model
// is the two-source fallback chain, and a single attempt per configured
// source keeps failure latency bounded and predictable.
package external

import (
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/sony/gobreaker/v2"

	"climatelens/internal/types"
)

// Client wraps an *http.Client and a circuit breaker. Source clients
// (NASA POWER, Meteomatics) embed Client to inherit this behavior.
type Client struct {
	client    *http.Client
	breaker   *gobreaker.CircuitBreaker[*http.Response]
	userAgent string
}

// NewClient creates a Client with the given http client, breaker name, and
// user agent string. The breaker opens after five consecutive failures and
// probes again after 30 seconds.
func NewClient(httpClient *http.Client, breakerName, userAgent string) *Client {
	cb := gobreaker.NewCircuitBreaker[*http.Response](gobreaker.Settings{
		Name:        breakerName,
		MaxRequests: 1,
		Interval:    60 * time.Second,
		Timeout:     30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures > 5
		},
	})

	return &Client{
		client:    httpClient,
		breaker:   cb,
		userAgent: userAgent,
	}
}

// Do executes the HTTP request with:
//  1. Request ID propagation (X-Request-Id from context)
//  2. User-Agent header injection
//  3. Circuit breaker wrapping (429 and 5xx count as breaker failures)
//  4. Error mapping to types.AppError
//
// On success (2xx) it returns the response as-is; the caller closes the body.
// Any failure, including non-2xx statuses, is returned as a *types.AppError
// so the source gateway can fall back without inspecting transport details.
func (c *Client) Do(req *http.Request) (*http.Response, error) {
	if reqID := types.GetRequestID(req.Context()); reqID != "" {
		req.Header.Set("X-Request-Id", reqID)
	}
	if c.userAgent != "" {
		req.Header.Set("User-Agent", c.userAgent)
	}

	resp, err := c.breaker.Execute(func() (*http.Response, error) {
		r, doErr := c.client.Do(req)
		if doErr != nil {
			return nil, doErr
		}
		if r.StatusCode == http.StatusTooManyRequests {
			r.Body.Close()
			return nil, fmt.Errorf("upstream returned 429")
		}
		if r.StatusCode >= 500 {
			r.Body.Close()
			return nil, fmt.Errorf("upstream returned %d", r.StatusCode)
		}
		return r, nil
	})
	if err != nil {
		return nil, c.mapError(err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		resp.Body.Close()
		return nil, types.NewAppError(
			types.ErrCodeUpstreamHTTP,
			fmt.Sprintf("upstream returned status %d", resp.StatusCode),
			nil,
		)
	}

	return resp, nil
}

// mapError translates transport-level failures into domain-level AppErrors.
func (c *Client) mapError(err error) *types.AppError {
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		return types.NewAppError(
			types.ErrCodeUpstreamRateLimit,
			"circuit breaker is open; upstream temporarily unavailable",
			err,
		)
	}
	return types.NewAppError(
		types.ErrCodeUpstreamHTTP,
		"upstream request failed",
		err,
	)
}
