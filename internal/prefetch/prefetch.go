// Package prefetch warms the station envelope cache in controlled
// batches so interactive requests land on hot entries. The pacing is
// deliberately gentle: the upstream data servers throttle aggressive
// clients, and a cold cache is a better outcome than a blocked one.
package prefetch

import (
	"context"
	"math"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/swellcast/swellcast/internal/cadence"
	"github.com/swellcast/swellcast/internal/station"
)

// Defaults for the batch shape. One wave touches at most
// batchSize*concurrentBatches stations, then pauses.
const (
	defaultBatchSize         = 5
	defaultConcurrentBatches = 3
	defaultWaveDelay         = time.Second

	// defaultMinWorthwhileTTL skips stations whose envelope would
	// expire almost immediately after warming.
	defaultMinWorthwhileTTL = 300 * time.Second
)

// maxRecordedErrors bounds the error list carried in the status.
const maxRecordedErrors = 10

// Refresher warms one station's envelope.
type Refresher interface {
	Refresh(ctx context.Context, stationID string) error
}

// Config holds configuration for the prefetcher.
type Config struct {
	Catalogue *station.Catalogue
	Refresher Refresher

	// Logger for prefetch runs.
	Logger zerolog.Logger

	// Now returns the current time; tests inject a fixed clock.
	Now func() time.Time

	// BatchSize, ConcurrentBatches and WaveDelay override the batch
	// shape; zero values take the defaults.
	BatchSize         int
	ConcurrentBatches int
	WaveDelay         time.Duration

	// MinWorthwhileTTL overrides the skip threshold.
	MinWorthwhileTTL time.Duration
}

// Prefetcher runs warm-up sweeps over the station catalogue.
type Prefetcher struct {
	catalogue *station.Catalogue
	refresher Refresher
	logger    zerolog.Logger
	now       func() time.Time

	batchSize         int
	concurrentBatches int
	waveDelay         time.Duration
	minTTL            time.Duration

	mu     sync.Mutex
	status Status
}

// Status is a snapshot of the most recent sweep.
type Status struct {
	Running      bool      `json:"running"`
	Succeeded    int       `json:"succeeded"`
	Failed       int       `json:"failed"`
	Skipped      int       `json:"skipped"`
	Errors       []string  `json:"errors,omitempty"`
	LastStarted  time.Time `json:"lastStarted,omitempty"`
	LastFinished time.Time `json:"lastFinished,omitempty"`
}

// New creates a prefetcher.
func New(cfg Config) *Prefetcher {
	p := &Prefetcher{
		catalogue:         cfg.Catalogue,
		refresher:         cfg.Refresher,
		logger:            cfg.Logger,
		now:               cfg.Now,
		batchSize:         cfg.BatchSize,
		concurrentBatches: cfg.ConcurrentBatches,
		waveDelay:         cfg.WaveDelay,
		minTTL:            cfg.MinWorthwhileTTL,
	}
	if p.now == nil {
		p.now = time.Now
	}
	if p.batchSize == 0 {
		p.batchSize = defaultBatchSize
	}
	if p.concurrentBatches == 0 {
		p.concurrentBatches = defaultConcurrentBatches
	}
	if p.waveDelay == 0 {
		p.waveDelay = defaultWaveDelay
	}
	if p.minTTL == 0 {
		p.minTTL = defaultMinWorthwhileTTL
	}
	return p
}

// Run performs one full sweep over the catalogue and returns the final
// status. Stations whose envelope would go stale within the skip
// threshold are counted but not fetched. Cancellation stops the sweep
// between waves and between stations inside a batch.
func (p *Prefetcher) Run(ctx context.Context) Status {
	started := p.now()
	p.mu.Lock()
	p.status = Status{Running: true, LastStarted: started, LastFinished: p.status.LastFinished}
	p.mu.Unlock()

	targets, skipped := p.plan()
	p.mu.Lock()
	p.status.Skipped = skipped
	p.mu.Unlock()

	waveSize := p.batchSize * p.concurrentBatches
	for start := 0; start < len(targets); start += waveSize {
		if ctx.Err() != nil {
			break
		}
		end := start + waveSize
		if end > len(targets) {
			end = len(targets)
		}
		p.runWave(ctx, targets[start:end])

		if end < len(targets) {
			select {
			case <-ctx.Done():
			case <-time.After(p.waveDelay):
			}
		}
	}

	p.mu.Lock()
	p.status.Running = false
	p.status.LastFinished = p.now()
	final := p.snapshotLocked()
	p.mu.Unlock()

	p.logger.Info().
		Int("succeeded", final.Succeeded).
		Int("failed", final.Failed).
		Int("skipped", final.Skipped).
		Dur("took", final.LastFinished.Sub(started)).
		Msg("prefetch sweep finished")
	return final
}

// Status returns a snapshot of the current or most recent sweep.
func (p *Prefetcher) Status() Status {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.snapshotLocked()
}

func (p *Prefetcher) snapshotLocked() Status {
	s := p.status
	s.Errors = append([]string(nil), p.status.Errors...)
	return s
}

// plan selects the stations worth warming right now.
func (p *Prefetcher) plan() (targets []station.Station, skipped int) {
	now := p.now()
	for _, st := range p.catalogue.All() {
		if !st.HasRealTimeData && !st.InForecastGrid {
			skipped++
			continue
		}
		if p.envelopeTTL(st, now) < p.minTTL {
			skipped++
			continue
		}
		targets = append(targets, st)
	}
	return targets, skipped
}

// envelopeTTL mirrors the lifetime the conditions layer will assign.
func (p *Prefetcher) envelopeTTL(st station.Station, now time.Time) time.Duration {
	ttl := time.Duration(math.MaxInt64)
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

// runWave splits one wave into concurrent batches; each batch works its
// stations sequentially.
func (p *Prefetcher) runWave(ctx context.Context, wave []station.Station) {
	var wg sync.WaitGroup
	for start := 0; start < len(wave); start += p.batchSize {
		end := start + p.batchSize
		if end > len(wave) {
			end = len(wave)
		}
		wg.Add(1)
		go func(batch []station.Station) {
			defer wg.Done()
			for _, st := range batch {
				if ctx.Err() != nil {
					return
				}
				p.warm(ctx, st.ID)
			}
		}(wave[start:end])
	}
	wg.Wait()
}

func (p *Prefetcher) warm(ctx context.Context, stationID string) {
	err := p.refresher.Refresh(ctx, stationID)

	p.mu.Lock()
	defer p.mu.Unlock()
	if err != nil {
		p.status.Failed++
		if len(p.status.Errors) < maxRecordedErrors {
			p.status.Errors = append(p.status.Errors, stationID+": "+err.Error())
		}
		p.logger.Warn().Str("station", stationID).Err(err).Msg("prefetch failed")
		return
	}
	p.status.Succeeded++
}
