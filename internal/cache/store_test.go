package cache_test

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/swellcast/swellcast/internal/cache"
)

// fakeClock is an injectable clock for expiry tests.
type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

func newTestStore(t *testing.T) (*cache.Store, *fakeClock) {
	t.Helper()
	clock := &fakeClock{now: time.Date(2025, 3, 10, 12, 0, 0, 0, time.UTC)}
	return cache.NewStore(cache.StoreConfig{
		Logger: zerolog.Nop(),
		Now:    clock.Now,
	}), clock
}

func TestGetMissesOnExpiredEntry(t *testing.T) {
	store, clock := newTestStore(t)

	store.Put("obs:46042", "fresh", 30*time.Minute)

	v, ok := store.Get("obs:46042")
	require.True(t, ok)
	assert.Equal(t, "fresh", v)

	clock.Advance(30*time.Minute + time.Second)

	_, ok = store.Get("obs:46042")
	assert.False(t, ok, "expired entry must read as a miss")
}

func TestTTLReportsRemainingLifetime(t *testing.T) {
	store, clock := newTestStore(t)

	store.Put("fcst:36.7000_237.6000", 1, time.Hour)
	assert.Equal(t, time.Hour, store.TTL("fcst:36.7000_237.6000"))

	clock.Advance(45 * time.Minute)
	assert.Equal(t, 15*time.Minute, store.TTL("fcst:36.7000_237.6000"))

	clock.Advance(20 * time.Minute)
	assert.Equal(t, time.Duration(0), store.TTL("fcst:36.7000_237.6000"))
	assert.Equal(t, time.Duration(0), store.TTL("missing"))
}

func TestGetOrFillStoresProducedValue(t *testing.T) {
	store, _ := newTestStore(t)

	calls := 0
	v, err := store.GetOrFill(context.Background(), "env:46042", func(context.Context) (interface{}, time.Duration, error) {
		calls++
		return 42, time.Hour, nil
	})
	require.NoError(t, err)
	assert.Equal(t, 42, v)
	assert.Equal(t, 1, calls)

	// Second call is a pure hit.
	v, err = store.GetOrFill(context.Background(), "env:46042", func(context.Context) (interface{}, time.Duration, error) {
		calls++
		return 0, time.Hour, nil
	})
	require.NoError(t, err)
	assert.Equal(t, 42, v)
	assert.Equal(t, 1, calls)
}

func TestGetOrFillSingleFlight(t *testing.T) {
	store, _ := newTestStore(t)

	var calls int64
	release := make(chan struct{})

	const waiters = 100
	results := make([]interface{}, waiters)
	errs := make([]error, waiters)

	var wg sync.WaitGroup
	for i := 0; i < waiters; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			results[i], errs[i] = store.GetOrFill(context.Background(), "obs:46042",
				func(context.Context) (interface{}, time.Duration, error) {
					atomic.AddInt64(&calls, 1)
					<-release
					return "observation", 30 * time.Minute, nil
				})
		}(i)
	}

	// Give the goroutines a moment to pile onto the flight.
	time.Sleep(50 * time.Millisecond)
	close(release)
	wg.Wait()

	assert.Equal(t, int64(1), atomic.LoadInt64(&calls), "producer must run exactly once")
	for i := 0; i < waiters; i++ {
		require.NoError(t, errs[i])
		assert.Equal(t, "observation", results[i])
	}
}

func TestGetOrFillErrorPropagatesAndIsNotCached(t *testing.T) {
	store, _ := newTestStore(t)

	boom := errors.New("upstream down")
	calls := 0

	_, err := store.GetOrFill(context.Background(), "obs:44098", func(context.Context) (interface{}, time.Duration, error) {
		calls++
		return nil, 0, boom
	})
	require.ErrorIs(t, err, boom)

	// The failure must not poison the key.
	v, err := store.GetOrFill(context.Background(), "obs:44098", func(context.Context) (interface{}, time.Duration, error) {
		calls++
		return "recovered", time.Minute, nil
	})
	require.NoError(t, err)
	assert.Equal(t, "recovered", v)
	assert.Equal(t, 2, calls)
}

func TestGetOrFillCancelledProducerDoesNotPopulate(t *testing.T) {
	store, _ := newTestStore(t)

	ctx, cancel := context.WithCancel(context.Background())
	_, err := store.GetOrFill(ctx, "fcst:42.8000_289.8300", func(ctx context.Context) (interface{}, time.Duration, error) {
		cancel()
		return "late", time.Hour, nil
	})
	require.ErrorIs(t, err, context.Canceled)

	_, ok := store.Get("fcst:42.8000_289.8300")
	assert.False(t, ok, "cancelled fill must not land in the store")
}

func TestGetOrFillDifferentKeysProceedInParallel(t *testing.T) {
	store, _ := newTestStore(t)

	var running int64
	var peak int64
	start := make(chan struct{})

	var wg sync.WaitGroup
	for _, key := range []string{"obs:a", "obs:b", "obs:c"} {
		wg.Add(1)
		go func(key string) {
			defer wg.Done()
			_, _ = store.GetOrFill(context.Background(), key, func(context.Context) (interface{}, time.Duration, error) {
				n := atomic.AddInt64(&running, 1)
				for {
					p := atomic.LoadInt64(&peak)
					if n <= p || atomic.CompareAndSwapInt64(&peak, p, n) {
						break
					}
				}
				<-start
				atomic.AddInt64(&running, -1)
				return key, time.Minute, nil
			})
		}(key)
	}

	time.Sleep(50 * time.Millisecond)
	close(start)
	wg.Wait()

	assert.Equal(t, int64(3), atomic.LoadInt64(&peak), "distinct keys must fill concurrently")
}

func TestPutDropsNonPositiveTTL(t *testing.T) {
	store, _ := newTestStore(t)

	store.Put("obs:x", 1, 0)
	store.Put("obs:y", 1, -time.Minute)
	assert.Equal(t, 0, store.Len())
}

func TestPurgeAndSweep(t *testing.T) {
	store, clock := newTestStore(t)

	store.Put("a", 1, time.Minute)
	store.Put("b", 2, time.Hour)
	assert.Equal(t, 2, store.Len())

	clock.Advance(2 * time.Minute)
	assert.Equal(t, 1, store.Sweep())
	assert.Equal(t, 1, store.Len())

	assert.Equal(t, 1, store.Purge())
	assert.Equal(t, 0, store.Len())
}
