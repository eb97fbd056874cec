package prefetch_test

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/swellcast/swellcast/internal/prefetch"
	"github.com/swellcast/swellcast/internal/station"
)

// catalogueOf builds a catalogue with n realtime stations inside the
// west coast grid plus one station with no data sources at all.
func catalogueOf(t *testing.T, n int) *station.Catalogue {
	t.Helper()
	var features []string
	for i := 0; i < n; i++ {
		features = append(features, fmt.Sprintf(`{"type": "Feature",
  "geometry": {"type": "Point", "coordinates": [%.3f, 33.0]},
  "properties": {"id": "TEST%02d", "name": "Test %d", "hasRealTimeData": true}}`,
			-117.5-float64(i)*0.05, i, i))
	}
	features = append(features, `{"type": "Feature",
  "geometry": {"type": "Point", "coordinates": [139.77, 35.0]},
  "properties": {"id": "NODATA", "name": "No Data", "hasRealTimeData": false}}`)

	doc := fmt.Sprintf(`{"type": "FeatureCollection", "features": [%s]}`, strings.Join(features, ","))
	cat, err := station.Parse([]byte(doc))
	require.NoError(t, err)
	return cat
}

type countingRefresher struct {
	mu       sync.Mutex
	seen     map[string]int
	inFlight int64
	peak     int64
	delay    time.Duration
	failIDs  map[string]bool
}

func (r *countingRefresher) Refresh(ctx context.Context, stationID string) error {
	cur := atomic.AddInt64(&r.inFlight, 1)
	defer atomic.AddInt64(&r.inFlight, -1)
	for {
		peak := atomic.LoadInt64(&r.peak)
		if cur <= peak || atomic.CompareAndSwapInt64(&r.peak, peak, cur) {
			break
		}
	}
	if r.delay > 0 {
		time.Sleep(r.delay)
	}

	r.mu.Lock()
	if r.seen == nil {
		r.seen = make(map[string]int)
	}
	r.seen[stationID]++
	r.mu.Unlock()

	if r.failIDs[stationID] {
		return fmt.Errorf("refresh %s: upstream busted", stationID)
	}
	return nil
}

// midInterval is comfortably far from both publish cadences.
func midInterval() time.Time {
	return time.Date(2025, 3, 10, 12, 30, 0, 0, time.UTC)
}

func newPrefetcher(cat *station.Catalogue, r prefetch.Refresher, now func() time.Time) *prefetch.Prefetcher {
	return prefetch.New(prefetch.Config{
		Catalogue: cat,
		Refresher: r,
		Logger:    zerolog.Nop(),
		Now:       now,
		WaveDelay: time.Millisecond,
	})
}

func TestRunWarmsEveryEligibleStationOnce(t *testing.T) {
	cat := catalogueOf(t, 20)
	r := &countingRefresher{}
	p := newPrefetcher(cat, r, midInterval)

	status := p.Run(context.Background())

	assert.Equal(t, 20, status.Succeeded)
	assert.Equal(t, 0, status.Failed)
	assert.Equal(t, 1, status.Skipped, "the dataless station is skipped")
	assert.False(t, status.Running)
	assert.Len(t, r.seen, 20)
	for id, n := range r.seen {
		assert.Equal(t, 1, n, "station %s warmed more than once", id)
	}
}

func TestRunBoundsConcurrency(t *testing.T) {
	cat := catalogueOf(t, 30)
	r := &countingRefresher{delay: 5 * time.Millisecond}
	p := newPrefetcher(cat, r, midInterval)

	p.Run(context.Background())

	assert.LessOrEqual(t, atomic.LoadInt64(&r.peak), int64(3),
		"no more than one goroutine per concurrent batch")
}

func TestRunSkipsWhenDataIsAboutToTurn(t *testing.T) {
	cat := catalogueOf(t, 5)
	r := &countingRefresher{}
	// 12:54 is two minutes before a publish: the warmed entries would
	// expire within the skip threshold.
	p := newPrefetcher(cat, r, func() time.Time {
		return time.Date(2025, 3, 10, 12, 54, 0, 0, time.UTC)
	})

	status := p.Run(context.Background())

	assert.Equal(t, 0, status.Succeeded)
	assert.Equal(t, 6, status.Skipped)
	assert.Empty(t, r.seen)
}

func TestRunRecordsFailures(t *testing.T) {
	cat := catalogueOf(t, 8)
	r := &countingRefresher{failIDs: map[string]bool{"TEST03": true}}
	p := newPrefetcher(cat, r, midInterval)

	status := p.Run(context.Background())

	assert.Equal(t, 7, status.Succeeded)
	assert.Equal(t, 1, status.Failed)
	require.Len(t, status.Errors, 1)
	assert.Contains(t, status.Errors[0], "TEST03")
}

func TestRunStopsOnCancellation(t *testing.T) {
	cat := catalogueOf(t, 30)
	r := &countingRefresher{delay: 2 * time.Millisecond}
	p := newPrefetcher(cat, r, midInterval)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	status := p.Run(ctx)

	assert.False(t, status.Running)
	assert.Less(t, status.Succeeded, 30, "a cancelled sweep must not finish the catalogue")
}

func TestStatusIsSnapshotted(t *testing.T) {
	cat := catalogueOf(t, 3)
	r := &countingRefresher{}
	p := newPrefetcher(cat, r, midInterval)

	before := p.Status()
	assert.True(t, before.LastStarted.IsZero())

	p.Run(context.Background())

	after := p.Status()
	assert.False(t, after.LastStarted.IsZero())
	assert.False(t, after.LastFinished.IsZero())
	assert.Equal(t, 3, after.Succeeded)
}
