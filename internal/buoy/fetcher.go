package buoy

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/swellcast/swellcast/internal/apperr"
	"github.com/swellcast/swellcast/internal/cache"
	"github.com/swellcast/swellcast/internal/cadence"
	"github.com/swellcast/swellcast/internal/upstream"
)

// DefaultBaseURL is the NDBC real-time data root.
const DefaultBaseURL = "https://www.ndbc.noaa.gov/data/realtime2"

// FetcherConfig holds configuration for the buoy fetcher.
type FetcherConfig struct {
	// BaseURL overrides the NDBC root; tests point it at a stub.
	BaseURL string

	// Client is the shared upstream HTTP client (required).
	Client *upstream.Client

	// Store is the shared cache store (required).
	Store *cache.Store

	// Logger for fetch operations.
	Logger zerolog.Logger

	// Timeout bounds each of the two upstream calls. Default: 10s.
	Timeout time.Duration

	// Now returns the current time; tests inject a fixed clock.
	Now func() time.Time
}

// Fetcher retrieves buoy observations through the cache. There is no
// retry: observation data is republished on a short cadence and the
// caller's deadline is tighter than any useful retry window.
type Fetcher struct {
	baseURL string
	client  *upstream.Client
	store   *cache.Store
	logger  zerolog.Logger
	timeout time.Duration
	now     func() time.Time
}

// NewFetcher creates a buoy fetcher.
func NewFetcher(cfg FetcherConfig) *Fetcher {
	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = 10 * time.Second
	}
	now := cfg.Now
	if now == nil {
		now = time.Now
	}
	return &Fetcher{
		baseURL: baseURL,
		client:  cfg.Client,
		store:   cfg.Store,
		logger:  cfg.Logger,
		timeout: timeout,
		now:     now,
	}
}

// CacheKey returns the cache key for a station's observation.
func CacheKey(stationID string) string {
	return "obs:" + stationID
}

// Get returns the current observation for a station, from cache when
// fresh, otherwise via a single-flight fill. The entry lives until the
// next upstream publish.
func (f *Fetcher) Get(ctx context.Context, stationID string) (*Observation, error) {
	v, err := f.store.GetOrFill(ctx, CacheKey(stationID), func(ctx context.Context) (interface{}, time.Duration, error) {
		obs, err := f.fetch(ctx, stationID)
		if err != nil {
			return nil, 0, err
		}
		return obs, cadence.UntilNextObservation(f.now()), nil
	})
	if err != nil {
		return nil, err
	}
	return v.(*Observation), nil
}

// fetch retrieves and parses both feeds. The meteorological record is
// mandatory; the spectral record is optional and its absence or
// failure never fails the observation.
func (f *Fetcher) fetch(ctx context.Context, stationID string) (*Observation, error) {
	var (
		wg       sync.WaitGroup
		metText  string
		metErr   error
		spectral *Spectral
	)

	wg.Add(2)
	go func() {
		defer wg.Done()
		metText, metErr = f.fetchFeed(ctx, stationID+".txt")
	}()
	go func() {
		defer wg.Done()
		specText, err := f.fetchFeed(ctx, stationID+".spec")
		if err != nil {
			if !apperr.IsKind(err, apperr.KindNotFound) {
				f.logger.Warn().Str("station", stationID).Err(err).Msg("spectral feed unavailable")
			}
			return
		}
		spectral = parseSpec(specText)
	}()
	wg.Wait()

	if metErr != nil {
		return nil, metErr
	}

	samples, err := parseMet(metText)
	if err != nil {
		return nil, err
	}

	obs := f.compose(samples, spectral)
	f.logger.Debug().
		Str("station", stationID).
		Time("observed", obs.Time).
		Bool("spectral", spectral != nil).
		Msg("observation fetched")
	return obs, nil
}

// fetchFeed GETs one feed with the per-call timeout applied.
func (f *Fetcher) fetchFeed(ctx context.Context, name string) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, f.timeout)
	defer cancel()

	url := fmt.Sprintf("%s/%s", f.baseURL, name)
	resp, err := f.client.Get(ctx, url)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return "", apperr.Wrap(apperr.KindTimeout, err, "ndbc fetch timed out")
		}
		return "", apperr.Wrap(apperr.KindUpstreamUnavailable, err, "ndbc fetch failed")
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return "", apperr.New(apperr.KindNotFound, "feed %s not found", name)
	}
	if resp.StatusCode != http.StatusOK {
		return "", apperr.New(apperr.KindUpstreamUnavailable, "ndbc returned status %d", resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", apperr.Wrap(apperr.KindUpstreamUnavailable, err, "reading ndbc response")
	}
	return string(body), nil
}

// compose assembles the observation from the latest sample, the trend
// window and the optional spectral record.
func (f *Fetcher) compose(samples []sample, spectral *Spectral) *Observation {
	latest := samples[0]

	obs := &Observation{
		Time: latest.time,
		Wind: Wind{
			DirectionDeg: latest.windDir,
			SpeedMph:     scale(latest.windSpeed, MpsToMph),
			GustMph:      scale(latest.gust, MpsToMph),
		},
		Wave: Wave{
			HeightFt:        scale(latest.waveHeight, MetersToFeet),
			DominantPeriodS: latest.domPeriod,
			AveragePeriodS:  latest.avgPeriod,
			DirectionDeg:    latest.waveDir,
			Steepness:       steepnessLabel(latest.waveHeight, latest.domPeriod),
		},
		Spectral: spectral,
		Atmosphere: Atmosphere{
			PressureHpa: latest.pressure,
			AirTempC:    latest.airTemp,
			WaterTempC:  latest.waterTemp,
			DewPointC:   latest.dewPoint,
		},
		Trend: deriveTrend(samples),
	}

	ageMinutes := f.now().UTC().Sub(latest.time).Minutes()
	obs.DataAge = DataAge{
		Minutes: float64(int(ageMinutes*10)) / 10,
		IsStale: ageMinutes > 45,
	}

	if obs.Wind.SpeedMph != nil {
		b := beaufortFor(*obs.Wind.SpeedMph)
		obs.Beaufort = &b
	}
	obs.Summary = marinerSummary(obs)
	return obs
}
