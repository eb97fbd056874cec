// Package tide proxies NOAA CO-OPS high/low tide predictions for shore
// stations. Predictions are computed from harmonic constants and do not
// change within a day, so entries live far longer than any other cache
// family.
package tide

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/rs/zerolog"

	"github.com/swellcast/swellcast/internal/apperr"
	"github.com/swellcast/swellcast/internal/cache"
	"github.com/swellcast/swellcast/internal/upstream"
)

// DefaultBaseURL is the CO-OPS data API root.
const DefaultBaseURL = "https://api.tidesandcurrents.noaa.gov/api/prod/datagetter"

const (
	cacheTTL       = 24 * time.Hour
	defaultTimeout = 10 * time.Second
)

// Predictions is one station's high/low tide schedule for the day.
type Predictions struct {
	StationID string  `json:"stationId"`
	Events    []Event `json:"events"`
}

// Event is a single predicted high or low water.
type Event struct {
	Time     string  `json:"time"`
	HeightFt float64 `json:"heightFt"`
	Type     string  `json:"type"` // "H" or "L"
}

// FetcherConfig holds configuration for the tide fetcher.
type FetcherConfig struct {
	// BaseURL overrides the CO-OPS root; tests point it at a stub.
	BaseURL string

	// Client is the shared upstream HTTP client (required).
	Client *upstream.Client

	// Store is the shared cache store (required).
	Store *cache.Store

	// Logger for fetch operations.
	Logger zerolog.Logger

	// Timeout bounds each upstream call. Default: 10s.
	Timeout time.Duration

	// Now returns the current time; tests inject a fixed clock.
	Now func() time.Time
}

// Fetcher retrieves tide predictions through the cache.
type Fetcher struct {
	baseURL string
	client  *upstream.Client
	store   *cache.Store
	logger  zerolog.Logger
	timeout time.Duration
	now     func() time.Time
}

// NewFetcher creates a tide fetcher.
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

// CacheKey returns the cache key for a station's tide predictions.
func CacheKey(stationID string) string {
	return "tide:" + stationID
}

// Get returns today's high/low predictions for a CO-OPS station.
func (f *Fetcher) Get(ctx context.Context, stationID string) (*Predictions, error) {
	v, err := f.store.GetOrFill(ctx, CacheKey(stationID), func(ctx context.Context) (interface{}, time.Duration, error) {
		p, err := f.fetch(ctx, stationID)
		if err != nil {
			return nil, 0, err
		}
		return p, cacheTTL, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(*Predictions), nil
}

// coopsResponse mirrors the datagetter JSON envelope. Heights arrive as
// strings.
type coopsResponse struct {
	Predictions []struct {
		T    string `json:"t"`
		V    string `json:"v"`
		Type string `json:"type"`
	} `json:"predictions"`
	Error *struct {
		Message string `json:"message"`
	} `json:"error"`
}

func (f *Fetcher) fetch(ctx context.Context, stationID string) (*Predictions, error) {
	ctx, cancel := context.WithTimeout(ctx, f.timeout)
	defer cancel()

	resp, err := f.client.Get(ctx, f.requestURL(stationID))
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return nil, apperr.Wrap(apperr.KindTimeout, err, "co-ops fetch timed out")
		}
		return nil, apperr.Wrap(apperr.KindUpstreamUnavailable, err, "co-ops fetch failed")
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, apperr.New(apperr.KindUpstreamUnavailable, "co-ops returned status %d", resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, apperr.Wrap(apperr.KindUpstreamUnavailable, err, "reading co-ops response")
	}

	var decoded coopsResponse
	if err := json.Unmarshal(body, &decoded); err != nil {
		return nil, apperr.Wrap(apperr.KindUpstreamUnavailable, err, "parsing co-ops response")
	}
	// The API reports unknown stations inside a 200 body.
	if decoded.Error != nil {
		return nil, apperr.New(apperr.KindNotFound, "no tide predictions for station %s: %s", stationID, decoded.Error.Message)
	}

	p := &Predictions{StationID: stationID}
	for _, pred := range decoded.Predictions {
		height, err := strconv.ParseFloat(pred.V, 64)
		if err != nil {
			continue
		}
		p.Events = append(p.Events, Event{Time: pred.T, HeightFt: height, Type: pred.Type})
	}

	f.logger.Debug().Str("station", stationID).Int("events", len(p.Events)).Msg("tide predictions fetched")
	return p, nil
}

func (f *Fetcher) requestURL(stationID string) string {
	q := url.Values{}
	q.Set("product", "predictions")
	q.Set("application", "swellcast")
	q.Set("datum", "MLLW")
	q.Set("station", stationID)
	q.Set("date", "today")
	q.Set("units", "english")
	q.Set("time_zone", "lst_ldt")
	q.Set("interval", "hilo")
	q.Set("format", "json")
	return fmt.Sprintf("%s?%s", f.baseURL, q.Encode())
}
