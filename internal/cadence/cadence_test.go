package cadence_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/swellcast/swellcast/internal/cadence"
)

func utc(year int, month time.Month, day, hour, min, sec int) time.Time {
	return time.Date(year, month, day, hour, min, sec, 0, time.UTC)
}

func TestUntilNextObservation(t *testing.T) {
	tests := []struct {
		name string
		now  time.Time
		want time.Duration
	}{
		{
			name: "before first publish of the hour",
			now:  utc(2025, 3, 10, 12, 10, 0),
			want: 16*time.Minute + cadence.ObservationBuffer,
		},
		{
			name: "between publishes",
			now:  utc(2025, 3, 10, 12, 30, 0),
			want: 26*time.Minute + cadence.ObservationBuffer,
		},
		{
			name: "after second publish rolls to next hour",
			now:  utc(2025, 3, 10, 12, 57, 0),
			want: 29*time.Minute + cadence.ObservationBuffer,
		},
		{
			name: "exactly at publish minute gets full interval",
			now:  utc(2025, 3, 10, 12, 26, 0),
			want: 30*time.Minute + cadence.ObservationBuffer,
		},
		{
			name: "hour rollover across midnight",
			now:  utc(2025, 3, 10, 23, 58, 30),
			want: 27*time.Minute + 30*time.Second + cadence.ObservationBuffer,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, cadence.UntilNextObservation(tt.now))
		})
	}
}

func TestLatestCycle(t *testing.T) {
	tests := []struct {
		name     string
		now      time.Time
		wantDate string
		wantHour int
	}{
		{
			name:     "just before 06Z availability uses 00Z",
			now:      utc(2025, 3, 10, 10, 59, 59),
			wantDate: "20250310",
			wantHour: 0,
		},
		{
			name:     "exactly at 06Z availability uses 06Z",
			now:      utc(2025, 3, 10, 11, 0, 0),
			wantDate: "20250310",
			wantHour: 6,
		},
		{
			name:     "early morning falls back to yesterday 18Z",
			now:      utc(2025, 3, 10, 3, 0, 0),
			wantDate: "20250309",
			wantHour: 18,
		},
		{
			name:     "late evening uses 18Z",
			now:      utc(2025, 3, 10, 23, 30, 0),
			wantDate: "20250310",
			wantHour: 18,
		},
		{
			name:     "month boundary rolls back correctly",
			now:      utc(2025, 3, 1, 1, 0, 0),
			wantDate: "20250228",
			wantHour: 18,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := cadence.LatestCycle(tt.now)
			assert.Equal(t, tt.wantDate, c.DateString())
			assert.Equal(t, tt.wantHour, c.Hour)
		})
	}
}

func TestLatestCycleAvailabilityInvariant(t *testing.T) {
	// For any instant, the latest cycle is available and the next one
	// is not yet.
	start := utc(2025, 6, 1, 0, 0, 0)
	for i := 0; i < 48; i++ {
		now := start.Add(time.Duration(i) * time.Hour).Add(17 * time.Minute)
		latest := cadence.LatestCycle(now)
		next := cadence.NextCycle(now)

		require.False(t, latest.AvailableAt().After(now),
			"latest cycle %s %02dZ not yet available at %s", latest.DateString(), latest.Hour, now)
		require.True(t, next.AvailableAt().After(now),
			"next cycle %s %02dZ already available at %s", next.DateString(), next.Hour, now)
	}
}

func TestUntilNextCycle(t *testing.T) {
	// At 10:30 UTC the next availability is 06Z+5h = 11:00.
	now := utc(2025, 3, 10, 10, 30, 0)
	assert.Equal(t, 30*time.Minute+cadence.CycleBuffer, cadence.UntilNextCycle(now))

	// Just past the last availability of the day the next one is
	// tomorrow's 00Z at 05:00.
	now = utc(2025, 3, 10, 23, 0, 0)
	assert.Equal(t, 6*time.Hour+cadence.CycleBuffer, cadence.UntilNextCycle(now))
}

func TestCycleStrings(t *testing.T) {
	c := cadence.Cycle{Date: utc(2025, 3, 10, 0, 0, 0), Hour: 6}
	assert.Equal(t, "20250310", c.DateString())
	assert.Equal(t, "06", c.HourString())
	assert.Equal(t, utc(2025, 3, 10, 11, 0, 0), c.AvailableAt())
}
