package models

import (
	"time"

	"github.com/swellcast/swellcast/internal/prefetch"
)

// Health status values.
const (
	HealthStatusOK       = "ok"
	HealthStatusDegraded = "degraded"
)

// Health is the liveness check response. It carries the latest
// prefetch sweep snapshot so a single poll answers both "is it up" and
// "is the cache warm".
type Health struct {
	Status   string                 `json:"status"`
	Time     time.Time              `json:"time"`
	Details  map[string]interface{} `json:"details,omitempty"`
	Stations int                    `json:"stations"`
	Prefetch prefetch.Status        `json:"prefetch"`
}

// SystemStatus is the operational status response: the refresh loop,
// the cache and the upstream breakers in one snapshot.
type SystemStatus struct {
	Status    string           `json:"status"`
	Time      time.Time        `json:"time"`
	Scheduler SchedulerStatus  `json:"scheduler"`
	Prefetch  prefetch.Status  `json:"prefetch"`
	Cache     CacheStatus      `json:"cache"`
	Upstreams []UpstreamStatus `json:"upstreams"`
}

// SchedulerStatus describes the background refresh loop.
type SchedulerStatus struct {
	Running bool `json:"running"`
}

// CacheStatus describes the shared TTL store.
type CacheStatus struct {
	Entries int `json:"entries"`
}

// UpstreamStatus describes one upstream circuit breaker.
type UpstreamStatus struct {
	Name  string `json:"name"`
	State string `json:"state"`
}

// PurgeResult is the response of the cache purge operation.
type PurgeResult struct {
	Purged int `json:"purged"`
}
