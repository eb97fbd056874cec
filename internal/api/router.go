// Package api provides the HTTP API surface of the conditions service.
package api

import (
	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog"

	"github.com/swellcast/swellcast/internal/api/handler"
	"github.com/swellcast/swellcast/internal/api/middleware"
	"github.com/swellcast/swellcast/internal/station"
)

// RouterConfig holds configuration for the router.
type RouterConfig struct {
	Version     string
	BuildTime   string
	Logger      zerolog.Logger
	ServiceName string
	Metrics     *middleware.Metrics

	Catalogue  *station.Catalogue
	Conditions handler.ConditionsService
	Tides      handler.TideService
	Ops        handler.OpsHandlerConfig
}

// NewRouter creates a new chi router with all API routes configured.
func NewRouter(cfg RouterConfig) *chi.Mux {
	r := chi.NewRouter()

	serviceName := cfg.ServiceName
	if serviceName == "" {
		serviceName = "swellcast-api"
	}

	// Global middleware - order matters
	r.Use(middleware.RequestID)            // Generate/propagate request ID first
	r.Use(middleware.Tracing(serviceName)) // Distributed tracing
	if cfg.Metrics != nil {
		r.Use(cfg.Metrics.Middleware()) // HTTP metrics
	}
	r.Use(middleware.Logger(cfg.Logger))   // Structured logging
	r.Use(middleware.Recovery(cfg.Logger)) // Panic recovery
	r.Use(chimiddleware.RealIP)            // Real IP extraction
	r.Use(middleware.SecurityHeaders)      // Security headers (HSTS, CSP, etc.)
	r.Use(middleware.RequireTLS)           // TLS enforcement (enabled via REQUIRE_TLS=true)
	r.Use(middleware.ContentTypeJSON)      // JSON content type

	stationsHandler := handler.NewStationsHandler(cfg.Catalogue, cfg.Conditions, cfg.Tides)
	opsHandler := handler.NewOpsHandler(cfg.Ops)

	// Envelope and tide reads can trigger upstream fetches on a cache
	// miss; catalogue reads never leave the process.
	expensiveRateLimit := middleware.RateLimitByIP(middleware.ExpensiveRateLimit) // 30 req/min
	standardRateLimit := middleware.RateLimitByIP(middleware.StandardRateLimit)   // 100 req/min

	r.Route("/api", func(r chi.Router) {
		r.Route("/stations", func(r chi.Router) {
			r.With(standardRateLimit).Get("/", stationsHandler.List)
			r.With(standardRateLimit).Get("/nearest", stationsHandler.Nearest)
			r.With(expensiveRateLimit).Get("/{stationId}", stationsHandler.Get)
		})

		r.With(expensiveRateLimit).Get("/tides/{stationId}", stationsHandler.Tides)

		r.Route("/ops", func(r chi.Router) {
			r.Get("/health", opsHandler.HealthCheck)
			r.Get("/status", opsHandler.SystemStatus)
			r.Post("/cache/purge", opsHandler.PurgeCache)
		})
	})

	return r
}
