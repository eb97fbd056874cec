// Package main provides the entrypoint for the conditions API server.
package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"

	"github.com/swellcast/swellcast/internal/api"
	"github.com/swellcast/swellcast/internal/api/handler"
	"github.com/swellcast/swellcast/internal/api/middleware"
	"github.com/swellcast/swellcast/internal/app"
	"github.com/swellcast/swellcast/internal/telemetry"
)

// Version and BuildTime are set at compile time via ldflags.
var (
	Version   = "dev"
	BuildTime = "unknown"
)

func main() {
	const serviceName = "swellcast-api"

	// Setup structured logging
	log := zerolog.New(os.Stdout).
		With().
		Timestamp().
		Str("service", serviceName).
		Str("version", Version).
		Logger()

	log.Info().
		Str("build_time", BuildTime).
		Msg("starting conditions API")

	// Get configuration from environment
	port := os.Getenv("APP_PORT")
	if port == "" {
		port = "8080"
	}

	cataloguePath := os.Getenv("STATION_CATALOGUE")
	if cataloguePath == "" {
		cataloguePath = "data/stations.geojson"
	}

	otlpEndpoint := os.Getenv("OTEL_EXPORTER_OTLP_ENDPOINT")
	if otlpEndpoint == "" {
		otlpEndpoint = "localhost:4317"
	}

	env := os.Getenv("APP_ENV")
	if env == "" {
		env = "development"
	}

	// Initialize OpenTelemetry
	ctx := context.Background()
	telemetryEnabled := os.Getenv("OTEL_ENABLED") == "true"

	tp, err := telemetry.Init(ctx, telemetry.Config{
		ServiceName:    serviceName,
		ServiceVersion: Version,
		Environment:    env,
		OTLPEndpoint:   otlpEndpoint,
		Enabled:        telemetryEnabled,
	})
	if err != nil {
		log.Fatal().Err(err).Msg("failed to initialize telemetry")
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if shutdownErr := tp.Shutdown(shutdownCtx); shutdownErr != nil {
			log.Error().Err(shutdownErr).Msg("failed to shutdown telemetry")
		}
	}()

	if telemetryEnabled {
		log.Info().
			Str("otlp_endpoint", otlpEndpoint).
			Msg("OpenTelemetry initialized")
	}

	// Initialize metrics
	metrics, err := middleware.NewMetrics()
	if err != nil {
		log.Error().Err(err).Msg("failed to initialize metrics")
		os.Exit(1) //nolint:gocritic // intentional exit, telemetry cleanup is best-effort
	}
	upstreamMetrics, err := middleware.NewUpstreamMetrics()
	if err != nil {
		log.Error().Err(err).Msg("failed to initialize upstream metrics")
		os.Exit(1)
	}

	// Assemble the service core
	core, err := app.New(app.Config{
		Logger:        log,
		CataloguePath: cataloguePath,
		NDBCBaseURL:   os.Getenv("NDBC_BASE_URL"),
		NOMADSBaseURL: os.Getenv("NOMADS_BASE_URL"),
		COOPSBaseURL:  os.Getenv("COOPS_BASE_URL"),
		Metrics:       upstreamMetrics,
	})
	if err != nil {
		log.Fatal().Err(err).Msg("failed to assemble service")
	}
	defer core.Close()

	log.Info().
		Int("stations", core.Catalogue.Len()).
		Str("catalogue", cataloguePath).
		Msg("station catalogue loaded")

	// Start the background refresh loop
	core.Scheduler.Start()

	// Create router with configuration
	router := api.NewRouter(api.RouterConfig{
		Version:     Version,
		BuildTime:   BuildTime,
		Logger:      log,
		ServiceName: serviceName,
		Metrics:     metrics,
		Catalogue:   core.Catalogue,
		Conditions:  core.Conditions,
		Tides:       core.Tides,
		Ops: handler.OpsHandlerConfig{
			Version:    Version,
			BuildTime:  BuildTime,
			Catalogue:  core.Catalogue,
			Store:      core.Store,
			Prefetcher: core.Prefetcher,
			Scheduler:  core.Scheduler,
			Upstreams:  core.Upstreams(),
		},
	})

	// Create HTTP server
	server := &http.Server{
		Addr:         ":" + port,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Start server in goroutine
	go func() {
		log.Info().
			Str("addr", server.Addr).
			Msg("server listening")

		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("server error")
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("shutting down server")

	// Graceful shutdown with timeout
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("server forced to shutdown")
		os.Exit(1)
	}

	log.Info().Msg("server stopped")
}
