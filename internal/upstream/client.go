// Package upstream provides the shared HTTP client used for all
// outbound NOAA calls. One keep-alive transport is constructed at
// startup and reused by every fetcher; opening a client per request is
// prohibited. Each upstream gets its own circuit breaker so a NOMADS
// outage cannot trip buoy fetches, and vice versa.
package upstream

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/rs/zerolog"
	"github.com/sony/gobreaker/v2"
)

// ErrCircuitOpen is returned when the upstream's circuit breaker is
// open and the call was not attempted.
var ErrCircuitOpen = errors.New("upstream circuit breaker is open")

// StatusError reports a non-2xx upstream response.
type StatusError struct {
	StatusCode int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("upstream status %d %s", e.StatusCode, http.StatusText(e.StatusCode))
}

// IsServerError reports a 5xx status.
func (e *StatusError) IsServerError() bool {
	return e.StatusCode >= 500
}

// ClientConfig holds configuration for a per-upstream client.
type ClientConfig struct {
	// Name identifies the upstream for breaker naming and logs.
	Name string

	// Transport is the shared keep-alive transport. Required; built
	// once by NewTransport and passed to every client.
	Transport http.RoundTripper

	// Logger for client operations.
	Logger zerolog.Logger

	// BreakerTimeout is the open-state duration before half-open.
	// Default: 60 seconds.
	BreakerTimeout time.Duration
}

// Client wraps the shared transport with a circuit breaker for one
// upstream host. Per-call deadlines come from the request context;
// the client itself imposes none.
type Client struct {
	name    string
	httpc   *http.Client
	breaker *gobreaker.CircuitBreaker[*http.Response]
	logger  zerolog.Logger
}

// NewTransport builds the process-wide keep-alive HTTPS transport.
// Idle connections are kept for 60 seconds, matching the upstream
// keep-alive contract.
func NewTransport() *http.Transport {
	return &http.Transport{
		Proxy: http.ProxyFromEnvironment,
		DialContext: (&net.Dialer{
			Timeout:   10 * time.Second,
			KeepAlive: 30 * time.Second,
		}).DialContext,
		MaxIdleConns:          100,
		MaxIdleConnsPerHost:   20,
		IdleConnTimeout:       60 * time.Second,
		TLSHandshakeTimeout:   10 * time.Second,
		ExpectContinueTimeout: 1 * time.Second,
	}
}

// NewClient creates a client for one upstream over the shared
// transport.
func NewClient(cfg ClientConfig) *Client {
	breakerTimeout := cfg.BreakerTimeout
	if breakerTimeout == 0 {
		breakerTimeout = 60 * time.Second
	}

	logger := cfg.Logger
	breaker := gobreaker.NewCircuitBreaker[*http.Response](gobreaker.Settings{
		Name:        cfg.Name,
		MaxRequests: 1,
		Timeout:     breakerTimeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			failureRatio := float64(counts.TotalFailures) / float64(counts.Requests)
			return counts.Requests >= 5 && failureRatio >= 0.5
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logger.Warn().
				Str("upstream", name).
				Str("from", from.String()).
				Str("to", to.String()).
				Msg("circuit breaker state change")
		},
	})

	return &Client{
		name:    cfg.Name,
		httpc:   &http.Client{Transport: cfg.Transport},
		breaker: breaker,
		logger:  logger,
	}
}

// Get issues a GET through the breaker. 5xx responses are surfaced as
// *StatusError (and counted as breaker failures) with the body already
// closed; other statuses are returned to the caller untouched.
func (c *Client) Get(ctx context.Context, url string) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, http.NoBody)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}

	resp, err := c.breaker.Execute(func() (*http.Response, error) {
		r, err := c.httpc.Do(req) //nolint:bodyclose // closed below on 5xx, by caller otherwise
		if err != nil {
			return nil, err
		}
		if r.StatusCode >= 500 {
			r.Body.Close()
			return nil, &StatusError{StatusCode: r.StatusCode}
		}
		return r, nil
	})
	if err != nil {
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			return nil, fmt.Errorf("%s: %w", c.name, ErrCircuitOpen)
		}
		return nil, err
	}
	return resp, nil
}

// State returns the breaker state, exposed for the health snapshot.
func (c *Client) State() gobreaker.State {
	return c.breaker.State()
}

// Name returns the upstream name.
func (c *Client) Name() string {
	return c.name
}
