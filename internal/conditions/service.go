// Package conditions assembles the station envelope: the current buoy
// observation joined with the point forecast for the station's
// coordinates, served through its own cache layer so a burst of
// requests for one station costs at most one fetch per source.
package conditions

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/swellcast/swellcast/internal/apperr"
	"github.com/swellcast/swellcast/internal/buoy"
	"github.com/swellcast/swellcast/internal/cache"
	"github.com/swellcast/swellcast/internal/cadence"
	"github.com/swellcast/swellcast/internal/forecast"
	"github.com/swellcast/swellcast/internal/station"
)

// Per-source deadlines inside one envelope fill. The forecast budget is
// wider because the dods endpoint routinely needs a retry or two.
const (
	observationDeadline = 10 * time.Second
	forecastDeadline    = 20 * time.Second
)

// maxEnvelopeTTL caps how long a combined envelope may outlive its
// sources.
const maxEnvelopeTTL = 6 * time.Hour

// ObservationSource supplies cached buoy observations.
type ObservationSource interface {
	Get(ctx context.Context, stationID string) (*buoy.Observation, error)
}

// ForecastSource supplies cached point forecasts.
type ForecastSource interface {
	Get(ctx context.Context, lat, lon float64) (*forecast.Forecast, error)
}

// ServiceConfig holds configuration for the conditions service.
type ServiceConfig struct {
	Catalogue    *station.Catalogue
	Observations ObservationSource
	Forecasts    ForecastSource

	// Store is the shared cache store (required).
	Store *cache.Store

	// Logger for envelope assembly.
	Logger zerolog.Logger

	// Now returns the current time; tests inject a fixed clock.
	Now func() time.Time
}

// Service builds station envelopes.
type Service struct {
	catalogue    *station.Catalogue
	observations ObservationSource
	forecasts    ForecastSource
	store        *cache.Store
	logger       zerolog.Logger
	now          func() time.Time
}

// NewService creates a conditions service.
func NewService(cfg ServiceConfig) *Service {
	now := cfg.Now
	if now == nil {
		now = time.Now
	}
	return &Service{
		catalogue:    cfg.Catalogue,
		observations: cfg.Observations,
		forecasts:    cfg.Forecasts,
		store:        cfg.Store,
		logger:       cfg.Logger,
		now:          now,
	}
}

// CacheKey returns the cache key for a station's envelope.
func CacheKey(stationID string) string {
	return "env:" + stationID
}

// GetStation returns the combined envelope for a station. The envelope
// is cached until the earlier of its sources goes stale, so a stampede
// of callers for one station collapses into at most one observation
// fetch and one forecast fetch.
func (s *Service) GetStation(ctx context.Context, stationID string) (*StationConditions, error) {
	st, err := s.catalogue.Get(stationID)
	if err != nil {
		return nil, err
	}

	v, err := s.store.GetOrFill(ctx, CacheKey(stationID), func(ctx context.Context) (interface{}, time.Duration, error) {
		env, err := s.assemble(ctx, st)
		if err != nil {
			return nil, 0, err
		}
		return env, s.envelopeTTL(st), nil
	})
	if err != nil {
		return nil, err
	}
	return v.(*StationConditions), nil
}

// Refresh warms the envelope for a station. A fresh cache entry makes
// this a no-op; the prefetcher relies on that to stay idempotent.
func (s *Service) Refresh(ctx context.Context, stationID string) error {
	_, err := s.GetStation(ctx, stationID)
	return err
}

// assemble fans out to both sources in parallel. A failed observation
// fails the envelope; a failed forecast degrades it to an error stub.
func (s *Service) assemble(ctx context.Context, st station.Station) (*StationConditions, error) {
	var (
		wg     sync.WaitGroup
		obs    *buoy.Observation
		obsErr error
		fc     *forecast.Forecast
		fcErr  error
	)

	if st.HasRealTimeData {
		wg.Add(1)
		go func() {
			defer wg.Done()
			obsCtx, cancel := context.WithTimeout(ctx, observationDeadline)
			defer cancel()
			obs, obsErr = s.observations.Get(obsCtx, st.ID)
		}()
	}
	if st.InForecastGrid {
		wg.Add(1)
		go func() {
			defer wg.Done()
			fcCtx, cancel := context.WithTimeout(ctx, forecastDeadline)
			defer cancel()
			fc, fcErr = s.forecasts.Get(fcCtx, st.Lat, st.Lon)
		}()
	}
	wg.Wait()

	if obsErr != nil {
		return nil, obsErr
	}

	env := &StationConditions{
		Station: StationInfo{
			ID:   st.ID,
			Name: st.Name,
			Type: st.Type,
			Lat:  st.Lat,
			Lon:  st.Lon,
		},
		Observation: obs,
		Forecast:    fc,
		Units:       DisplayUnits,
		GeneratedAt: s.now().UTC(),
	}

	if fcErr != nil {
		s.logger.Warn().Str("station", st.ID).Err(fcErr).Msg("forecast unavailable for envelope")
		env.ForecastError = &SourceError{
			Kind:    string(apperr.KindOf(fcErr)),
			Message: apperr.MessageOf(fcErr),
		}
	}
	return env, nil
}

// envelopeTTL is the earlier of the source cadences, capped. An
// envelope must never outlive either of the entries it was built from.
func (s *Service) envelopeTTL(st station.Station) time.Duration {
	now := s.now()
	ttl := maxEnvelopeTTL
	if st.HasRealTimeData {
		if d := cadence.UntilNextObservation(now); d < ttl {
			ttl = d
		}
	}
	if st.InForecastGrid {
		if d := cadence.UntilNextCycle(now); d < ttl {
			ttl = d
		}
	}
	return ttl
}
