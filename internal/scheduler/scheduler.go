// Package scheduler drives the background refresh loop. One sweep runs
// at startup to fill the cold cache, then the loop re-arms itself for
// the next model cycle's availability instant. Sweeps never overlap;
// the loop is strictly sequential.
package scheduler

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/swellcast/swellcast/internal/cadence"
	"github.com/swellcast/swellcast/internal/prefetch"
)

// defaultRecoveryDelay is how soon a sweep with failures is retried.
const defaultRecoveryDelay = 5 * time.Minute

// Warmer runs one cache warm-up sweep.
type Warmer interface {
	Run(ctx context.Context) prefetch.Status
}

// Sweeper evicts expired cache entries between sweeps.
type Sweeper interface {
	Sweep() int
}

// Config holds configuration for the scheduler.
type Config struct {
	Warmer  Warmer
	Sweeper Sweeper

	// Logger for loop lifecycle events.
	Logger zerolog.Logger

	// Now returns the current time; tests inject a fixed clock.
	Now func() time.Time

	// RecoveryDelay overrides the retry interval after a failed sweep.
	RecoveryDelay time.Duration
}

// Scheduler owns the refresh loop goroutine.
type Scheduler struct {
	warmer        Warmer
	sweeper       Sweeper
	logger        zerolog.Logger
	now           func() time.Time
	recoveryDelay time.Duration

	mu      sync.Mutex
	running bool
	cancel  context.CancelFunc
	done    chan struct{}
}

// New creates a stopped scheduler.
func New(cfg Config) *Scheduler {
	now := cfg.Now
	if now == nil {
		now = time.Now
	}
	delay := cfg.RecoveryDelay
	if delay == 0 {
		delay = defaultRecoveryDelay
	}
	return &Scheduler{
		warmer:        cfg.Warmer,
		sweeper:       cfg.Sweeper,
		logger:        cfg.Logger,
		now:           now,
		recoveryDelay: delay,
	}
}

// Start launches the loop. The first sweep begins immediately. Starting
// a running scheduler is a no-op.
func (s *Scheduler) Start() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.running {
		return
	}

	ctx, cancel := context.WithCancel(context.Background())
	s.cancel = cancel
	s.done = make(chan struct{})
	s.running = true

	go s.loop(ctx, s.done)
	s.logger.Info().Msg("refresh scheduler started")
}

// Stop cancels the loop and waits for any in-flight sweep to wind
// down. Stopping a stopped scheduler is a no-op.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return
	}
	cancel, done := s.cancel, s.done
	s.mu.Unlock()

	cancel()
	<-done

	s.mu.Lock()
	s.running = false
	s.mu.Unlock()
	s.logger.Info().Msg("refresh scheduler stopped")
}

// Running reports whether the loop is active.
func (s *Scheduler) Running() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.running
}

func (s *Scheduler) loop(ctx context.Context, done chan struct{}) {
	defer close(done)

	timer := time.NewTimer(0)
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-timer.C:
		}

		status := s.warmer.Run(ctx)
		if ctx.Err() != nil {
			return
		}

		if s.sweeper != nil {
			if dropped := s.sweeper.Sweep(); dropped > 0 {
				s.logger.Debug().Int("dropped", dropped).Msg("expired cache entries swept")
			}
		}

		next := cadence.UntilNextCycle(s.now())
		if status.Failed > 0 && status.Succeeded == 0 {
			// A sweep that made no progress retries soon instead of
			// waiting out the whole cycle. Partial sweeps hold the
			// cycle cadence; hammering a flaky upstream every few
			// minutes only earns throttling.
			next = s.recoveryDelay
		}
		s.logger.Info().
			Int("succeeded", status.Succeeded).
			Int("failed", status.Failed).
			Dur("next", next).
			Msg("refresh sweep complete")
		timer.Reset(next)
	}
}
