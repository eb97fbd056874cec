package handler

import (
	"net/http"
	"time"

	"github.com/swellcast/swellcast/internal/api/models"
	"github.com/swellcast/swellcast/internal/api/response"
	"github.com/swellcast/swellcast/internal/cache"
	"github.com/swellcast/swellcast/internal/prefetch"
	"github.com/swellcast/swellcast/internal/station"
	"github.com/swellcast/swellcast/internal/upstream"
)

// PrefetchStatuser reports the state of the warm-up sweeps.
type PrefetchStatuser interface {
	Status() prefetch.Status
}

// SchedulerStatuser reports whether the refresh loop is active.
type SchedulerStatuser interface {
	Running() bool
}

// OpsHandler handles operational endpoints.
type OpsHandler struct {
	version    string
	buildTime  string
	catalogue  *station.Catalogue
	store      *cache.Store
	prefetcher PrefetchStatuser
	scheduler  SchedulerStatuser
	upstreams  []*upstream.Client
}

// OpsHandlerConfig holds the dependencies of the ops endpoints.
type OpsHandlerConfig struct {
	Version    string
	BuildTime  string
	Catalogue  *station.Catalogue
	Store      *cache.Store
	Prefetcher PrefetchStatuser
	Scheduler  SchedulerStatuser
	Upstreams  []*upstream.Client
}

// NewOpsHandler creates a new OpsHandler.
func NewOpsHandler(cfg OpsHandlerConfig) *OpsHandler {
	return &OpsHandler{
		version:    cfg.Version,
		buildTime:  cfg.BuildTime,
		catalogue:  cfg.Catalogue,
		store:      cfg.Store,
		prefetcher: cfg.Prefetcher,
		scheduler:  cfg.Scheduler,
		upstreams:  cfg.Upstreams,
	}
}

// HealthCheck handles GET /api/ops/health - liveness check plus the
// latest warm-up sweep snapshot.
func (h *OpsHandler) HealthCheck(w http.ResponseWriter, r *http.Request) {
	health := models.Health{
		Status:   models.HealthStatusOK,
		Time:     time.Now().UTC(),
		Stations: h.catalogue.Len(),
		Prefetch: h.prefetcher.Status(),
		Details: map[string]interface{}{
			"version":   h.version,
			"buildTime": h.buildTime,
		},
	}
	response.JSON(w, r, http.StatusOK, health)
}

// SystemStatus handles GET /api/ops/status - refresh loop, cache and
// breaker snapshot. The overall status degrades when any upstream
// breaker is not closed.
func (h *OpsHandler) SystemStatus(w http.ResponseWriter, r *http.Request) {
	status := models.SystemStatus{
		Status:    models.HealthStatusOK,
		Time:      time.Now().UTC(),
		Scheduler: models.SchedulerStatus{Running: h.scheduler.Running()},
		Prefetch:  h.prefetcher.Status(),
		Cache:     models.CacheStatus{Entries: h.store.Len()},
	}
	for _, c := range h.upstreams {
		state := c.State().String()
		if state != "closed" {
			status.Status = models.HealthStatusDegraded
		}
		status.Upstreams = append(status.Upstreams, models.UpstreamStatus{
			Name:  c.Name(),
			State: state,
		})
	}
	response.JSON(w, r, http.StatusOK, status)
}

// PurgeCache handles POST /api/ops/cache/purge - drop every cache
// entry. The next requests and the next sweep repopulate.
func (h *OpsHandler) PurgeCache(w http.ResponseWriter, r *http.Request) {
	purged := h.store.Purge()
	response.JSON(w, r, http.StatusOK, models.PurgeResult{Purged: purged})
}
