package core

import (
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"

	"climatelens/internal/config"
)

func TestNewServer_RequiresDependencies(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	if _, err := NewServer(nil, logger); err == nil {
		t.Error("expected an error for nil config")
	}
	if _, err := NewServer(&config.Config{}, nil); err == nil {
		t.Error("expected an error for nil logger")
	}
}

func TestMountRoutes_V1AndOperationalEndpoints(t *testing.T) {
	srv := newTestServer(t)
	srv.V1Registrars = append(srv.V1Registrars, func(r chi.Router) {
		r.Get("/ping", func(w http.ResponseWriter, r *http.Request) {
			JSON(w, r, http.StatusOK, APIResponse{Data: "pong"})
		})
	})
	srv.Metrics = prometheus.NewRegistry()
	srv.MountRoutes()

	ts := httptest.NewServer(srv.Handler())
	defer ts.Close()

	tests := []struct {
		path       string
		wantStatus int
	}{
		{path: "/v1/ping", wantStatus: http.StatusOK},
		{path: "/healthz", wantStatus: http.StatusOK},
		{path: "/metrics", wantStatus: http.StatusOK},
		{path: "/v1/nope", wantStatus: http.StatusNotFound},
	}

	for _, tt := range tests {
		resp, err := http.Get(ts.URL + tt.path)
		if err != nil {
			t.Fatalf("GET %s: %v", tt.path, err)
		}
		resp.Body.Close()
		if resp.StatusCode != tt.wantStatus {
			t.Errorf("GET %s status = %d, want %d", tt.path, resp.StatusCode, tt.wantStatus)
		}
	}
}

func TestMountRoutes_NilMetricsDisablesEndpoint(t *testing.T) {
	srv := newTestServer(t)
	srv.MountRoutes()

	w := httptest.NewRecorder()
	srv.Handler().ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	if w.Code != http.StatusNotFound {
		t.Errorf("metrics status = %d, want %d", w.Code, http.StatusNotFound)
	}
}

func TestMountRoutes_PanicInHandlerIsRecovered(t *testing.T) {
	srv := newTestServer(t)
	srv.V1Registrars = append(srv.V1Registrars, func(r chi.Router) {
		r.Get("/explode", func(w http.ResponseWriter, r *http.Request) {
			panic("handler bug")
		})
	})
	srv.MountRoutes()

	w := httptest.NewRecorder()
	srv.Handler().ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/v1/explode", nil))

	if w.Code != http.StatusInternalServerError {
		t.Fatalf("status = %d, want %d", w.Code, http.StatusInternalServerError)
	}

	var resp APIErrorResponse
	if err := json.NewDecoder(w.Body).Decode(&resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if resp.Error.Code == "" {
		t.Error("panic response missing structured error code")
	}
	if w.Header().Get("X-Request-Id") == "" {
		t.Error("panic response missing X-Request-Id header")
	}
}
