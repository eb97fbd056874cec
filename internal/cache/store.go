// Package cache provides the in-process TTL store backing the refresh
// core. Entries expire at an absolute instant; a stale read is
// indistinguishable from a miss. Concurrent fills of the same key
// coalesce into a single producer invocation.
package cache

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/singleflight"
)

// Producer computes a value and the TTL it should be stored with. The
// TTL is producer-supplied because it depends on the upstream cadence
// at fill time, not on the key family alone.
type Producer func(ctx context.Context) (interface{}, time.Duration, error)

// StoreConfig holds configuration for the store.
type StoreConfig struct {
	// Logger for store operations.
	Logger zerolog.Logger

	// Now returns the current time. Defaults to time.Now; tests inject
	// a fixed clock.
	Now func() time.Time
}

// Store is a keyed TTL cache with atomic get-or-compute semantics.
type Store struct {
	logger zerolog.Logger
	now    func() time.Time

	mu      sync.RWMutex
	entries map[string]entry

	flight singleflight.Group
}

type entry struct {
	value    interface{}
	expiry   time.Time
	storedAt time.Time
}

// NewStore creates an empty store.
func NewStore(cfg StoreConfig) *Store {
	now := cfg.Now
	if now == nil {
		now = time.Now
	}
	return &Store{
		logger:  cfg.Logger,
		now:     now,
		entries: make(map[string]entry),
	}
}

// Get returns the value for key if present and not expired.
func (s *Store) Get(key string) (interface{}, bool) {
	s.mu.RLock()
	e, ok := s.entries[key]
	s.mu.RUnlock()
	if !ok || !s.now().Before(e.expiry) {
		return nil, false
	}
	return e.value, true
}

// TTL returns the remaining lifetime of the entry for key, or zero when
// the key is absent or already expired.
func (s *Store) TTL(key string) time.Duration {
	s.mu.RLock()
	e, ok := s.entries[key]
	s.mu.RUnlock()
	if !ok {
		return 0
	}
	remaining := e.expiry.Sub(s.now())
	if remaining < 0 {
		return 0
	}
	return remaining
}

// GetOrFill returns the cached value for key, or invokes producer to
// compute it. Concurrent calls for the same key share one producer
// invocation; every waiter receives the produced value or the
// producer's error. Errors are never cached, and a producer cancelled
// by its context does not populate the store.
func (s *Store) GetOrFill(ctx context.Context, key string, producer Producer) (interface{}, error) {
	if v, ok := s.Get(key); ok {
		return v, nil
	}

	v, err, _ := s.flight.Do(key, func() (interface{}, error) {
		// Re-check under the flight: a previous fill may have landed
		// between the miss and the flight admission.
		if v, ok := s.Get(key); ok {
			return v, nil
		}

		value, ttl, err := producer(ctx)
		if err != nil {
			return nil, err
		}
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}

		s.Put(key, value, ttl)
		return value, nil
	})
	if err != nil {
		return nil, err
	}
	return v, nil
}

// Put unconditionally stores value under key with expiry now + ttl.
// Non-positive TTLs are dropped rather than stored pre-expired.
func (s *Store) Put(key string, value interface{}, ttl time.Duration) {
	if ttl <= 0 {
		return
	}
	now := s.now()
	s.mu.Lock()
	s.entries[key] = entry{value: value, expiry: now.Add(ttl), storedAt: now}
	s.mu.Unlock()

	s.logger.Debug().
		Str("key", key).
		Dur("ttl", ttl).
		Msg("cache entry stored")
}

// Purge drops all entries. Operational escape hatch; in-flight fills
// are unaffected and will repopulate on completion.
func (s *Store) Purge() int {
	s.mu.Lock()
	n := len(s.entries)
	s.entries = make(map[string]entry)
	s.mu.Unlock()

	s.logger.Info().Int("entries", n).Msg("cache purged")
	return n
}

// Len returns the number of stored entries, expired or not.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.entries)
}

// Sweep removes expired entries and returns how many were dropped. The
// scheduler calls this between prefetch cycles to keep the map bounded
// by the live catalogue.
func (s *Store) Sweep() int {
	now := s.now()
	s.mu.Lock()
	defer s.mu.Unlock()

	dropped := 0
	for k, e := range s.entries {
		if !now.Before(e.expiry) {
			delete(s.entries, k)
			dropped++
		}
	}
	return dropped
}
