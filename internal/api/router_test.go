package api_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/swellcast/swellcast/internal/api"
	"github.com/swellcast/swellcast/internal/api/handler"
	"github.com/swellcast/swellcast/internal/apperr"
	"github.com/swellcast/swellcast/internal/cache"
	"github.com/swellcast/swellcast/internal/conditions"
	"github.com/swellcast/swellcast/internal/prefetch"
	"github.com/swellcast/swellcast/internal/station"
	"github.com/swellcast/swellcast/internal/tide"
)

const catalogueFixture = `{
  "type": "FeatureCollection",
  "features": [
    {"type": "Feature",
     "geometry": {"type": "Point", "coordinates": [-122.398, 36.785]},
     "properties": {"id": "46042", "name": "Monterey", "type": "buoy", "hasRealTimeData": true}},
    {"type": "Feature",
     "geometry": {"type": "Point", "coordinates": [-70.17, 42.8]},
     "properties": {"id": "44098", "name": "Jeffreys Ledge", "type": "buoy", "hasRealTimeData": true}}
  ]
}`

type stubConditions struct {
	env *conditions.StationConditions
	err error
}

func (s *stubConditions) GetStation(ctx context.Context, stationID string) (*conditions.StationConditions, error) {
	if s.err != nil {
		return nil, s.err
	}
	return s.env, nil
}

type stubTides struct {
	predictions *tide.Predictions
	err         error
}

func (s *stubTides) Get(ctx context.Context, stationID string) (*tide.Predictions, error) {
	if s.err != nil {
		return nil, s.err
	}
	return s.predictions, nil
}

type stubPrefetcher struct{}

func (stubPrefetcher) Status() prefetch.Status {
	return prefetch.Status{Succeeded: 2, LastFinished: time.Now()}
}

type stubScheduler struct{ running bool }

func (s stubScheduler) Running() bool { return s.running }

func newTestRouter(t *testing.T, svc *stubConditions, tides *stubTides) http.Handler {
	t.Helper()
	cat, err := station.Parse([]byte(catalogueFixture))
	require.NoError(t, err)

	store := cache.NewStore(cache.StoreConfig{Logger: zerolog.Nop()})
	store.Put("env:46042", struct{}{}, time.Minute)

	return api.NewRouter(api.RouterConfig{
		Version:    "test",
		BuildTime:  "now",
		Logger:     zerolog.Nop(),
		Catalogue:  cat,
		Conditions: svc,
		Tides:      tides,
		Ops: handler.OpsHandlerConfig{
			Version:    "test",
			BuildTime:  "now",
			Catalogue:  cat,
			Store:      store,
			Prefetcher: stubPrefetcher{},
			Scheduler:  stubScheduler{running: true},
		},
	})
}

func get(router http.Handler, path string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, path, http.NoBody)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	return rec
}

func TestListStations(t *testing.T) {
	router := newTestRouter(t, &stubConditions{}, &stubTides{})
	rec := get(router, "/api/stations")

	require.Equal(t, http.StatusOK, rec.Code)
	assert.NotEmpty(t, rec.Header().Get("X-Request-Id"))

	var doc map[string]interface{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &doc))
	assert.Equal(t, "FeatureCollection", doc["type"])
	assert.Len(t, doc["features"], 2)
}

func TestGetStationEnvelope(t *testing.T) {
	env := &conditions.StationConditions{
		Station: conditions.StationInfo{ID: "46042", Name: "Monterey"},
		Units:   conditions.DisplayUnits,
	}
	router := newTestRouter(t, &stubConditions{env: env}, &stubTides{})
	rec := get(router, "/api/stations/46042")

	require.Equal(t, http.StatusOK, rec.Code)

	var got conditions.StationConditions
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	assert.Equal(t, "46042", got.Station.ID)
	assert.Equal(t, "ft", got.Units.WaveHeight)
}

func TestGetStationErrorBody(t *testing.T) {
	svc := &stubConditions{err: apperr.New(apperr.KindNotFound, "station 99999 not found")}
	router := newTestRouter(t, svc, &stubTides{})
	rec := get(router, "/api/stations/99999")

	require.Equal(t, http.StatusNotFound, rec.Code)

	var body map[string]interface{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.EqualValues(t, 404, body["status"])
	assert.Equal(t, "station 99999 not found", body["message"])
	assert.Equal(t, "/api/stations/99999", body["path"])
	assert.Equal(t, "GET", body["method"])
	assert.NotEmpty(t, body["timestamp"])
}

func TestGetStationUpstreamErrors(t *testing.T) {
	tests := []struct {
		kind apperr.Kind
		want int
	}{
		{apperr.KindUpstreamUnavailable, http.StatusBadGateway},
		{apperr.KindTimeout, http.StatusGatewayTimeout},
		{apperr.KindInternal, http.StatusInternalServerError},
	}
	for _, tt := range tests {
		svc := &stubConditions{err: apperr.New(tt.kind, "boom")}
		router := newTestRouter(t, svc, &stubTides{})
		rec := get(router, "/api/stations/46042")
		assert.Equal(t, tt.want, rec.Code, "kind %s", tt.kind)
	}
}

func TestNearestStation(t *testing.T) {
	router := newTestRouter(t, &stubConditions{}, &stubTides{})
	rec := get(router, "/api/stations/nearest?lat=36.6&lon=-122.0")

	require.Equal(t, http.StatusOK, rec.Code)

	var got handler.NearestResult
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	assert.Equal(t, "46042", got.Station.ID)
	assert.Greater(t, got.DistanceKm, 0.0)
}

func TestNearestStationValidation(t *testing.T) {
	router := newTestRouter(t, &stubConditions{}, &stubTides{})

	assert.Equal(t, http.StatusBadRequest, get(router, "/api/stations/nearest").Code)
	assert.Equal(t, http.StatusBadRequest, get(router, "/api/stations/nearest?lat=abc&lon=1").Code)
	assert.Equal(t, http.StatusBadRequest, get(router, "/api/stations/nearest?lat=95&lon=1").Code)
}

func TestTides(t *testing.T) {
	tides := &stubTides{predictions: &tide.Predictions{
		StationID: "9410230",
		Events:    []tide.Event{{Time: "2025-03-10 04:12", HeightFt: 5.2, Type: "H"}},
	}}
	router := newTestRouter(t, &stubConditions{}, tides)
	rec := get(router, "/api/tides/9410230")

	require.Equal(t, http.StatusOK, rec.Code)

	var got tide.Predictions
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	require.Len(t, got.Events, 1)
	assert.Equal(t, "H", got.Events[0].Type)
}

func TestOpsHealth(t *testing.T) {
	router := newTestRouter(t, &stubConditions{}, &stubTides{})
	rec := get(router, "/api/ops/health")

	require.Equal(t, http.StatusOK, rec.Code)

	var body map[string]interface{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "ok", body["status"])
	assert.EqualValues(t, 2, body["stations"])

	snapshot, ok := body["prefetch"].(map[string]interface{})
	require.True(t, ok, "health carries the warm-up sweep snapshot")
	assert.EqualValues(t, 2, snapshot["succeeded"])
}

func TestOpsStatus(t *testing.T) {
	router := newTestRouter(t, &stubConditions{}, &stubTides{})
	rec := get(router, "/api/ops/status")

	require.Equal(t, http.StatusOK, rec.Code)

	var body map[string]interface{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "ok", body["status"])

	scheduler, ok := body["scheduler"].(map[string]interface{})
	require.True(t, ok)
	assert.Equal(t, true, scheduler["running"])

	cacheStatus, ok := body["cache"].(map[string]interface{})
	require.True(t, ok)
	assert.EqualValues(t, 1, cacheStatus["entries"])
}

func TestOpsCachePurge(t *testing.T) {
	router := newTestRouter(t, &stubConditions{}, &stubTides{})

	req := httptest.NewRequest(http.MethodPost, "/api/ops/cache/purge", http.NoBody)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)

	var body map[string]interface{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.EqualValues(t, 1, body["purged"])
}

func TestSecurityHeadersApplied(t *testing.T) {
	router := newTestRouter(t, &stubConditions{}, &stubTides{})
	rec := get(router, "/api/ops/health")

	assert.Equal(t, "nosniff", rec.Header().Get("X-Content-Type-Options"))
	assert.Equal(t, "DENY", rec.Header().Get("X-Frame-Options"))
}
