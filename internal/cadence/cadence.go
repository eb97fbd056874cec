// Package cadence maps wall-clock time onto the publication schedules of
// the two upstream data producers.
//
// NDBC buoys republish twice per hour at fixed minute offsets (:26 and
// :56). The GFS-Wave model runs four cycles per UTC day (00/06/12/18Z),
// each becoming retrievable roughly five hours after its nominal hour.
// All functions are pure: they depend only on the instant passed in, so
// callers inject time for tests.
package cadence

import (
	"fmt"
	"time"
)

const (
	// ObservationBuffer pads the observation TTL so a request arriving
	// exactly at a publish minute still reads the fresh value.
	ObservationBuffer = 60 * time.Second

	// CycleLatency is how long after its nominal hour a model cycle
	// becomes retrievable from NOMADS.
	CycleLatency = 5 * time.Hour

	// CycleBuffer pads the forecast TTL past the availability instant.
	CycleBuffer = 5 * time.Minute
)

// observationMinutes are the wall-clock minutes at which NDBC publishes.
var observationMinutes = []int{26, 56}

// cycleHours are the nominal UTC hours of the four daily model runs.
var cycleHours = []int{0, 6, 12, 18}

// Cycle identifies one model run: a UTC calendar date plus a nominal
// hour in {00, 06, 12, 18}.
type Cycle struct {
	Date time.Time // midnight UTC of the run date
	Hour int
}

// DateString renders the run date as YYYYMMDD.
func (c Cycle) DateString() string {
	return c.Date.Format("20060102")
}

// HourString renders the cycle hour as zero-padded HH.
func (c Cycle) HourString() string {
	return fmt.Sprintf("%02d", c.Hour)
}

// Start returns the nominal start instant of the cycle.
func (c Cycle) Start() time.Time {
	return c.Date.Add(time.Duration(c.Hour) * time.Hour)
}

// AvailableAt returns the instant the cycle's outputs become
// retrievable.
func (c Cycle) AvailableAt() time.Time {
	return c.Start().Add(CycleLatency)
}

// UntilNextObservation returns the time until the next NDBC publish
// minute plus the safety buffer. At exactly a publish instant the full
// next interval is returned, not zero.
func UntilNextObservation(now time.Time) time.Duration {
	now = now.UTC()
	base := now.Truncate(time.Minute).Add(-time.Duration(now.Minute()) * time.Minute)
	for _, m := range observationMinutes {
		publish := base.Add(time.Duration(m) * time.Minute)
		if publish.After(now) {
			return publish.Sub(now) + ObservationBuffer
		}
	}
	// Past :56; next publish is :26 of the following hour.
	publish := base.Add(time.Hour + time.Duration(observationMinutes[0])*time.Minute)
	return publish.Sub(now) + ObservationBuffer
}

// LatestCycle returns the most recent cycle whose availability instant
// is at or before now. When no cycle today qualifies it returns
// yesterday's 18Z run.
func LatestCycle(now time.Time) Cycle {
	now = now.UTC()
	midnight := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)
	for i := len(cycleHours) - 1; i >= 0; i-- {
		c := Cycle{Date: midnight, Hour: cycleHours[i]}
		if !c.AvailableAt().After(now) {
			return c
		}
	}
	return Cycle{Date: midnight.AddDate(0, 0, -1), Hour: cycleHours[len(cycleHours)-1]}
}

// NextCycle returns the earliest cycle whose availability instant is
// strictly after now.
func NextCycle(now time.Time) Cycle {
	now = now.UTC()
	midnight := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)
	for _, h := range cycleHours {
		c := Cycle{Date: midnight, Hour: h}
		if c.AvailableAt().After(now) {
			return c
		}
	}
	return Cycle{Date: midnight.AddDate(0, 0, 1), Hour: cycleHours[0]}
}

// UntilNextCycle returns the time until the next cycle's availability
// instant plus the safety buffer.
func UntilNextCycle(now time.Time) time.Duration {
	now = now.UTC()
	return NextCycle(now).AvailableAt().Sub(now) + CycleBuffer
}
