// Package app wires the service together: one catalogue, one cache
// store, one keep-alive transport, one client per upstream, and the
// refresh machinery on top. Everything is constructed exactly once at
// startup and shared.
package app

import (
	"context"
	"net/http"
	"time"

	"github.com/rs/zerolog"

	"github.com/swellcast/swellcast/internal/api/middleware"
	"github.com/swellcast/swellcast/internal/buoy"
	"github.com/swellcast/swellcast/internal/cache"
	"github.com/swellcast/swellcast/internal/conditions"
	"github.com/swellcast/swellcast/internal/forecast"
	"github.com/swellcast/swellcast/internal/prefetch"
	"github.com/swellcast/swellcast/internal/scheduler"
	"github.com/swellcast/swellcast/internal/station"
	"github.com/swellcast/swellcast/internal/tide"
	"github.com/swellcast/swellcast/internal/upstream"
)

// Config holds the application configuration.
type Config struct {
	Logger zerolog.Logger

	// CataloguePath is the station GeoJSON file.
	CataloguePath string

	// Base URL overrides for the three upstreams; empty takes the
	// production endpoints.
	NDBCBaseURL   string
	NOMADSBaseURL string
	COOPSBaseURL  string

	// Metrics instruments upstream fetches when set.
	Metrics *middleware.UpstreamMetrics
}

// App is the assembled service core.
type App struct {
	Catalogue  *station.Catalogue
	Store      *cache.Store
	Buoys      *buoy.Fetcher
	Forecasts  *forecast.Fetcher
	Tides      *tide.Fetcher
	Conditions *conditions.Service
	Prefetcher *prefetch.Prefetcher
	Scheduler  *scheduler.Scheduler

	ndbc      *upstream.Client
	nomads    *upstream.Client
	coops     *upstream.Client
	transport *http.Transport
}

// New builds the service core from configuration.
func New(cfg Config) (*App, error) {
	logger := cfg.Logger

	catalogue, err := station.Load(cfg.CataloguePath)
	if err != nil {
		return nil, err
	}

	store := cache.NewStore(cache.StoreConfig{Logger: logger})
	transport := upstream.NewTransport()

	ndbc := upstream.NewClient(upstream.ClientConfig{
		Name:      "ndbc",
		Transport: transport,
		Logger:    logger,
	})
	nomads := upstream.NewClient(upstream.ClientConfig{
		Name:      "nomads",
		Transport: transport,
		Logger:    logger,
	})
	coops := upstream.NewClient(upstream.ClientConfig{
		Name:      "coops",
		Transport: transport,
		Logger:    logger,
	})

	buoys := buoy.NewFetcher(buoy.FetcherConfig{
		BaseURL: cfg.NDBCBaseURL,
		Client:  ndbc,
		Store:   store,
		Logger:  logger,
	})
	forecasts := forecast.NewFetcher(forecast.FetcherConfig{
		BaseURL: cfg.NOMADSBaseURL,
		Client:  nomads,
		Store:   store,
		Logger:  logger,
	})
	tides := tide.NewFetcher(tide.FetcherConfig{
		BaseURL: cfg.COOPSBaseURL,
		Client:  coops,
		Store:   store,
		Logger:  logger,
	})

	svc := conditions.NewService(conditions.ServiceConfig{
		Catalogue:    catalogue,
		Observations: observedBuoys{fetcher: buoys, store: store, metrics: cfg.Metrics},
		Forecasts:    observedForecasts{fetcher: forecasts, store: store, metrics: cfg.Metrics},
		Store:        store,
		Logger:       logger,
	})

	prefetcher := prefetch.New(prefetch.Config{
		Catalogue: catalogue,
		Refresher: svc,
		Logger:    logger,
	})

	sched := scheduler.New(scheduler.Config{
		Warmer:  prefetcher,
		Sweeper: store,
		Logger:  logger,
	})

	return &App{
		Catalogue:  catalogue,
		Store:      store,
		Buoys:      buoys,
		Forecasts:  forecasts,
		Tides:      tides,
		Conditions: svc,
		Prefetcher: prefetcher,
		Scheduler:  sched,
		ndbc:       ndbc,
		nomads:     nomads,
		coops:      coops,
		transport:  transport,
	}, nil
}

// Upstreams returns the per-upstream clients for the status endpoint.
func (a *App) Upstreams() []*upstream.Client {
	return []*upstream.Client{a.ndbc, a.nomads, a.coops}
}

// Close stops the refresh loop and releases idle connections.
func (a *App) Close() {
	a.Scheduler.Stop()
	a.transport.CloseIdleConnections()
}

// observedBuoys instruments observation fetches. Hit or miss is judged
// against the cache before the call, since a fill is invisible from
// the outside.
type observedBuoys struct {
	fetcher *buoy.Fetcher
	store   *cache.Store
	metrics *middleware.UpstreamMetrics
}

func (o observedBuoys) Get(ctx context.Context, stationID string) (*buoy.Observation, error) {
	if o.metrics == nil {
		return o.fetcher.Get(ctx, stationID)
	}

	if o.store.TTL(buoy.CacheKey(stationID)) > 0 {
		o.metrics.RecordCacheHit("ndbc", "observation")
	} else {
		o.metrics.RecordCacheMiss("ndbc", "observation")
	}

	start := time.Now()
	obs, err := o.fetcher.Get(ctx, stationID)
	o.metrics.RecordRequest("ndbc", "observation", time.Since(start), err)
	return obs, err
}

// observedForecasts instruments forecast fetches.
type observedForecasts struct {
	fetcher *forecast.Fetcher
	store   *cache.Store
	metrics *middleware.UpstreamMetrics
}

func (o observedForecasts) Get(ctx context.Context, lat, lon float64) (*forecast.Forecast, error) {
	if o.metrics == nil {
		return o.fetcher.Get(ctx, lat, lon)
	}

	if o.store.TTL(forecast.CacheKey(lat, lon)) > 0 {
		o.metrics.RecordCacheHit("nomads", "forecast")
	} else {
		o.metrics.RecordCacheMiss("nomads", "forecast")
	}

	start := time.Now()
	fc, err := o.fetcher.Get(ctx, lat, lon)
	o.metrics.RecordRequest("nomads", "forecast", time.Since(start), err)
	return fc, err
}
