package forecast

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/rs/zerolog"

	"github.com/swellcast/swellcast/internal/apperr"
	"github.com/swellcast/swellcast/internal/cache"
	"github.com/swellcast/swellcast/internal/cadence"
	"github.com/swellcast/swellcast/internal/gridmodel"
	"github.com/swellcast/swellcast/internal/upstream"
)

// DefaultBaseURL is the NOMADS GFS-Wave dods root.
const DefaultBaseURL = "https://nomads.ncep.noaa.gov/dods/wave/gfswave"

const (
	defaultTimeout = 60 * time.Second
	retryInterval  = 2 * time.Second
	maxRetries     = 2 // three attempts total
)

// FetcherConfig holds configuration for the forecast fetcher.
type FetcherConfig struct {
	// BaseURL overrides the NOMADS root; tests point it at a stub.
	BaseURL string

	// Client is the shared upstream HTTP client (required).
	Client *upstream.Client

	// Store is the shared cache store (required).
	Store *cache.Store

	// Logger for fetch operations.
	Logger zerolog.Logger

	// Timeout bounds one whole fetch including retries. Default: 60s.
	Timeout time.Duration

	// Now returns the current time; tests inject a fixed clock.
	Now func() time.Time
}

// Fetcher retrieves GFS-Wave point forecasts through the cache. The
// dods endpoint drops connections under load, so each fetch retries
// transient failures on a short constant interval before giving up.
type Fetcher struct {
	baseURL string
	client  *upstream.Client
	store   *cache.Store
	logger  zerolog.Logger
	timeout time.Duration
	now     func() time.Time
}

// NewFetcher creates a forecast fetcher.
func NewFetcher(cfg FetcherConfig) *Fetcher {
	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = defaultTimeout
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

// CacheKey returns the cache key for a point forecast. Points that
// round to the same 4-decimal coordinates share an entry.
func CacheKey(lat, lon float64) string {
	return "fcst:" + gridmodel.CacheKeyCoords(lat, lon)
}

// Get returns the latest-cycle forecast for a point, from cache when
// fresh, otherwise via a single-flight fill. Out-of-grid points fail
// before any network or cache activity.
func (f *Fetcher) Get(ctx context.Context, lat, lon float64) (*Forecast, error) {
	cell, err := gridmodel.Locate(lat, lon)
	if err != nil {
		return nil, err
	}

	v, err := f.store.GetOrFill(ctx, CacheKey(lat, lon), func(ctx context.Context) (interface{}, time.Duration, error) {
		fc, err := f.fetch(ctx, cell)
		if err != nil {
			return nil, 0, err
		}
		return fc, cadence.UntilNextCycle(f.now()), nil
	})
	if err != nil {
		return nil, err
	}
	return v.(*Forecast), nil
}

// fetch retrieves and parses the latest available cycle for a cell,
// retrying transient failures.
func (f *Fetcher) fetch(ctx context.Context, cell gridmodel.Cell) (*Forecast, error) {
	ctx, cancel := context.WithTimeout(ctx, f.timeout)
	defer cancel()

	cycle := cadence.LatestCycle(f.now())
	url := f.requestURL(cell, cycle)

	var fc *Forecast
	operation := func() error {
		var err error
		fc, err = f.attempt(ctx, cell, cycle, url)
		return err
	}
	policy := backoff.WithContext(
		backoff.WithMaxRetries(backoff.NewConstantBackOff(retryInterval), maxRetries), ctx)

	if err := backoff.Retry(operation, policy); err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return nil, apperr.Wrap(apperr.KindTimeout, err, "nomads fetch timed out")
		}
		var classified *apperr.Error
		if errors.As(err, &classified) {
			return nil, err
		}
		return nil, apperr.Wrap(apperr.KindUpstreamUnavailable, err, "nomads fetch failed")
	}

	f.logger.Debug().
		Str("model", cell.Model.ID).
		Str("cycle", cycle.DateString()+cycle.HourString()).
		Int("periods", len(fc.Periods)).
		Msg("forecast fetched")
	return fc, nil
}

// attempt performs one request. Server errors, dropped connections and
// unparseable bodies are retryable; a missing cycle or client error is
// not going to heal within the retry window and fails immediately.
func (f *Fetcher) attempt(ctx context.Context, cell gridmodel.Cell, cycle cadence.Cycle, url string) (*Forecast, error) {
	resp, err := f.client.Get(ctx, url)
	if err != nil {
		if errors.Is(err, upstream.ErrCircuitOpen) || ctx.Err() != nil {
			return nil, backoff.Permanent(err)
		}
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return nil, backoff.Permanent(apperr.New(apperr.KindUpstreamUnavailable,
			"cycle %sz of %s not published", cycle.HourString(), cycle.DateString()))
	}
	if resp.StatusCode != http.StatusOK {
		return nil, backoff.Permanent(apperr.New(apperr.KindUpstreamUnavailable,
			"nomads returned status %d", resp.StatusCode))
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}
	data, err := parseASCII(string(body))
	if err != nil {
		return nil, err
	}
	return compose(cell, cycle, data), nil
}

// requestURL renders the dods ascii query for every variable at the
// cell, all steps of the cycle.
func (f *Fetcher) requestURL(cell gridmodel.Cell, cycle cadence.Cycle) string {
	specs := make([]string, len(variables))
	for i, name := range variables {
		specs[i] = fmt.Sprintf("%s[0:%d][%d][%d]", name, stepCount-1, cell.Row, cell.Col)
	}
	return fmt.Sprintf("%s/%s/gfswave.%s_%sz.ascii?%s",
		f.baseURL, cycle.DateString(), cell.Model.ID, cycle.HourString(), strings.Join(specs, ","))
}

// compose assembles the forecast from the parsed series. Steps without
// a combined wave height are dropped: the model writes fill there and a
// period of nothing but wind is not useful.
func compose(cell gridmodel.Cell, cycle cadence.Cycle, data map[string][]*float64) *Forecast {
	at := func(name string, step int) *float64 { return seriesAt(data, name, step) }

	lat := cell.Model.Lat.Start + float64(cell.Row)*cell.Model.Lat.Resolution
	lon := cell.Model.Lon.Start + float64(cell.Col)*cell.Model.Lon.Resolution
	if lon > 180 {
		lon -= 360
	}

	fc := &Forecast{
		Model:     cell.Model.ID,
		CycleDate: cycle.DateString(),
		CycleHour: cycle.HourString(),
		Lat:       lat,
		Lon:       lon,
	}

	start := cycle.Start()
	for step := 0; step < stepCount; step++ {
		height := at("htsgwsfc", step)
		if height == nil {
			continue
		}

		p := Period{
			Time:             start.Add(time.Duration(step*stepIntervalHours) * time.Hour),
			WaveHeightM:      height,
			WaveHeightFt:     scale(height, MetersToFeet),
			PeakPeriodS:      at("perpwsfc", step),
			PeakDirectionDeg: at("dirpwsfc", step),
			Wind: WindForecast{
				SpeedMps:     at("windsfc", step),
				SpeedMph:     scale(at("windsfc", step), MpsToMph),
				DirectionDeg: at("wdirsfc", step),
				UMps:         at("ugrdsfc", step),
				VMps:         at("vgrdsfc", step),
			},
		}

		// A partition without a height is model fill leaking through a
		// period/direction series; it carries no usable wave train.
		windWave := partitionAt(data, step, "wvhgtsfc", "wvpersfc", "wvdirsfc")
		if windWave.HeightM != nil {
			p.WindWave = &windWave
		}
		for i := 1; i <= 3; i++ {
			swell := partitionAt(data, step,
				fmt.Sprintf("swell_%d", i), fmt.Sprintf("swper_%d", i), fmt.Sprintf("swdir_%d", i))
			if swell.HeightM != nil {
				p.Swells = append(p.Swells, swell)
			}
		}

		fc.Periods = append(fc.Periods, p)
	}
	return fc
}

func partitionAt(data map[string][]*float64, step int, heightVar, periodVar, dirVar string) Partition {
	height := seriesAt(data, heightVar, step)
	return Partition{
		HeightM:      height,
		HeightFt:     scale(height, MetersToFeet),
		PeriodS:      seriesAt(data, periodVar, step),
		DirectionDeg: seriesAt(data, dirVar, step),
	}
}

func seriesAt(data map[string][]*float64, name string, step int) *float64 {
	series := data[name]
	if series == nil {
		return nil
	}
	return series[step]
}

func scale(v *float64, factor float64) *float64 {
	if v == nil {
		return nil
	}
	scaled := *v * factor
	return &scaled
}
