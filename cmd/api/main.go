// Package main is the entry point for the climatelens API server.
//
// It loads configuration, builds the upstream fallback chain (NASA POWER
// primary, Meteomatics secondary when credentials are present), wires the
// analysis service behind the HTTP chassis, and serves until SIGINT/SIGTERM
// triggers a graceful shutdown.
package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/prometheus/client_golang/prometheus"

	"climatelens/internal/analysis"
	"climatelens/internal/api/handlers"
	"climatelens/internal/conditions"
	"climatelens/internal/config"
	"climatelens/internal/core"
	"climatelens/internal/external"
	"climatelens/internal/observability"
	"climatelens/internal/sources"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "fatal: %v\n", err)
		os.Exit(1)
	}
}

// run encapsulates the startup lifecycle so main() can cleanly exit on error.
func run() error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("loading configuration: %w", err)
	}

	logger := newLogger(cfg.LogLevel)
	slog.SetDefault(logger)

	metrics := observability.NewMetrics()

	// Upstream fallback chain, in priority order. Each source gets its own
	// circuit breaker so one upstream's failures never trip the other.
	httpClient := &http.Client{Timeout: cfg.Sources.RequestTimeout}
	chain := []sources.Source{
		sources.NewPowerClient(cfg.Sources.PowerBaseURL,
			external.NewClient(httpClient, sources.SourceNASAPower, cfg.Sources.UserAgent)),
		sources.NewMeteomaticsClient(cfg.Sources.MeteomaticsBaseURL,
			cfg.Sources.MeteomaticsUser, cfg.Sources.MeteomaticsPass,
			external.NewClient(httpClient, sources.SourceMeteomatics, cfg.Sources.UserAgent)),
	}

	gateway := sources.NewGateway(chain, cfg.Sources.YearsBack, logger, metrics, clockwork.NewRealClock())

	evaluator := conditions.Evaluator{WindowDays: cfg.Analysis.WindowDays}
	analyzer := analysis.NewAnalyzer(gateway, conditions.MustDefaultRegistry(), evaluator, logger)
	cache := analysis.NewCache(cfg.Analysis.CacheTTL, metrics)

	service := analysis.NewService(analyzer, cache, gateway, analysis.Options{
		GridWorkers:    cfg.Analysis.GridWorkers,
		SegmentTimeout: cfg.Analysis.SegmentTimeout,
	}, logger, metrics)

	srv, err := core.NewServer(cfg, logger)
	if err != nil {
		return fmt.Errorf("creating server: %w", err)
	}
	srv.Metrics = prometheus.DefaultGatherer

	analysisHandler := handlers.NewAnalysisHandler(service, analyzer.Registry(), nil, srv.Validator, logger)
	sourcesHandler := handlers.NewSourcesHandler(service, logger)
	srv.V1Registrars = append(srv.V1Registrars,
		analysisHandler.RegisterRoutes,
		sourcesHandler.RegisterRoutes,
	)

	srv.MountRoutes()

	logger.Info("climatelens API starting",
		"environment", cfg.Environment,
		"port", cfg.Server.Port,
		"sources", gateway.String(),
		"years_back", cfg.Sources.YearsBack,
	)

	return runHTTPServer(srv, cfg, logger)
}

// runHTTPServer serves until a shutdown signal or a listener error.
func runHTTPServer(srv *core.Server, cfg *config.Config, logger *slog.Logger) error {
	addr := ":" + cfg.Server.Port

	httpServer := &http.Server{
		Addr:              addr,
		Handler:           srv.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      3 * time.Minute, // segment runs can be slow on cold caches
		IdleTimeout:       120 * time.Second,
	}

	serverErr := make(chan error, 1)
	go func() {
		logger.Info("HTTP server listening", "addr", addr)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
		close(serverErr)
	}()

	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-shutdown:
		logger.Info("shutdown signal received", "signal", sig.String())
	case err := <-serverErr:
		if err != nil {
			return fmt.Errorf("server error: %w", err)
		}
	}

	logger.Info("initiating graceful shutdown")
	ctx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()

	if err := httpServer.Shutdown(ctx); err != nil {
		logger.Error("HTTP server shutdown error", "error", err)
		return fmt.Errorf("server shutdown: %w", err)
	}

	logger.Info("server stopped cleanly")
	return nil
}

// newLogger builds the structured JSON logger for the configured level.
func newLogger(level string) *slog.Logger {
	var lvl slog.Level
	switch level {
	case "debug":
		lvl = slog.LevelDebug
	case "warn":
		lvl = slog.LevelWarn
	case "error":
		lvl = slog.LevelError
	default:
		lvl = slog.LevelInfo
	}

	handler := slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: lvl})
	return slog.New(handler)
}
