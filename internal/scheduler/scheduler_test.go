package scheduler_test

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/swellcast/swellcast/internal/prefetch"
	"github.com/swellcast/swellcast/internal/scheduler"
)

type stubWarmer struct {
	runs    int64
	failing int64
	partial int64
	block   time.Duration
	ran     chan struct{}
}

func (w *stubWarmer) Run(ctx context.Context) prefetch.Status {
	atomic.AddInt64(&w.runs, 1)
	if w.block > 0 {
		select {
		case <-ctx.Done():
		case <-time.After(w.block):
		}
	}
	if w.ran != nil {
		select {
		case w.ran <- struct{}{}:
		default:
		}
	}
	var s prefetch.Status
	switch {
	case atomic.LoadInt64(&w.partial) > 0:
		s.Succeeded = 1
		s.Failed = 1
	case atomic.LoadInt64(&w.failing) > 0:
		s.Failed = 1
	default:
		s.Succeeded = 1
	}
	return s
}

type stubSweeper struct{ calls int64 }

func (s *stubSweeper) Sweep() int {
	atomic.AddInt64(&s.calls, 1)
	return 0
}

func newScheduler(w scheduler.Warmer, sweeper scheduler.Sweeper, recovery time.Duration) *scheduler.Scheduler {
	return scheduler.New(scheduler.Config{
		Warmer:        w,
		Sweeper:       sweeper,
		Logger:        zerolog.Nop(),
		RecoveryDelay: recovery,
	})
}

func waitFor(t *testing.T, ch <-chan struct{}) {
	t.Helper()
	select {
	case <-ch:
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for a sweep")
	}
}

func TestStartRunsColdFillImmediately(t *testing.T) {
	w := &stubWarmer{ran: make(chan struct{}, 1)}
	sweeper := &stubSweeper{}
	s := newScheduler(w, sweeper, time.Hour)
	defer s.Stop()

	require.False(t, s.Running())
	s.Start()
	require.True(t, s.Running())

	waitFor(t, w.ran)
	assert.Equal(t, int64(1), atomic.LoadInt64(&w.runs))
	assert.Equal(t, int64(1), atomic.LoadInt64(&sweeper.calls), "each sweep is followed by an eviction pass")
}

func TestStartIsIdempotent(t *testing.T) {
	w := &stubWarmer{ran: make(chan struct{}, 1)}
	s := newScheduler(w, nil, time.Hour)
	defer s.Stop()

	s.Start()
	s.Start()
	waitFor(t, w.ran)

	// A second Start must not spawn a second loop; with the hour-long
	// re-arm there is exactly one sweep.
	time.Sleep(20 * time.Millisecond)
	assert.Equal(t, int64(1), atomic.LoadInt64(&w.runs))
}

func TestFailedSweepRetriesAfterRecoveryDelay(t *testing.T) {
	w := &stubWarmer{ran: make(chan struct{}, 1), failing: 1}
	s := newScheduler(w, nil, 10*time.Millisecond)
	defer s.Stop()

	s.Start()
	waitFor(t, w.ran)
	waitFor(t, w.ran)
	assert.GreaterOrEqual(t, atomic.LoadInt64(&w.runs), int64(2))

	// Once sweeps succeed again the loop re-arms on the cycle cadence
	// and goes quiet.
	atomic.StoreInt64(&w.failing, 0)
	waitFor(t, w.ran)
	runs := atomic.LoadInt64(&w.runs)
	time.Sleep(50 * time.Millisecond)
	assert.Equal(t, runs, atomic.LoadInt64(&w.runs))
}

func TestPartialSweepHoldsCycleCadence(t *testing.T) {
	w := &stubWarmer{ran: make(chan struct{}, 1), partial: 1}
	s := newScheduler(w, nil, 10*time.Millisecond)
	defer s.Stop()

	s.Start()
	waitFor(t, w.ran)

	// A sweep that warmed some stations re-arms on the cycle cadence;
	// the recovery delay is reserved for sweeps with nothing to show.
	time.Sleep(50 * time.Millisecond)
	assert.Equal(t, int64(1), atomic.LoadInt64(&w.runs))
}

func TestStopWaitsForInFlightSweep(t *testing.T) {
	w := &stubWarmer{block: 50 * time.Millisecond}
	s := newScheduler(w, nil, time.Hour)

	s.Start()
	time.Sleep(10 * time.Millisecond) // let the cold fill begin
	s.Stop()

	assert.False(t, s.Running())
	assert.Equal(t, int64(1), atomic.LoadInt64(&w.runs))
}

func TestStopIsIdempotent(t *testing.T) {
	w := &stubWarmer{}
	s := newScheduler(w, nil, time.Hour)

	s.Stop() // never started
	s.Start()
	s.Stop()
	s.Stop()
	assert.False(t, s.Running())
}

func TestRestartAfterStop(t *testing.T) {
	w := &stubWarmer{ran: make(chan struct{}, 1)}
	s := newScheduler(w, nil, time.Hour)

	s.Start()
	waitFor(t, w.ran)
	s.Stop()

	s.Start()
	waitFor(t, w.ran)
	s.Stop()
	assert.Equal(t, int64(2), atomic.LoadInt64(&w.runs))
}
