package response_test

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/swellcast/swellcast/internal/api/response"
	"github.com/swellcast/swellcast/internal/apperr"
)

func TestStatusOf(t *testing.T) {
	tests := []struct {
		err  error
		want int
	}{
		{apperr.New(apperr.KindNotFound, "missing"), http.StatusNotFound},
		{apperr.New(apperr.KindOutOfGrid, "outside"), http.StatusBadRequest},
		{apperr.New(apperr.KindUpstreamUnavailable, "down"), http.StatusBadGateway},
		{apperr.New(apperr.KindTimeout, "slow"), http.StatusGatewayTimeout},
		{apperr.New(apperr.KindInternal, "bug"), http.StatusInternalServerError},
		{errors.New("plain"), http.StatusInternalServerError},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, response.StatusOf(tt.err))
	}
}

func TestFromErrorHidesInternalDetails(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/api/stations/46042", http.NoBody)
	rec := httptest.NewRecorder()

	response.FromError(rec, req, errors.New("pointer dereference in parser"))

	require.Equal(t, http.StatusInternalServerError, rec.Code)

	var body map[string]interface{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "an unexpected error occurred", body["message"])
	assert.NotContains(t, rec.Body.String(), "dereference")
}

func TestFromErrorSurfacesDomainMessage(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/api/stations/99999", http.NoBody)
	rec := httptest.NewRecorder()

	response.FromError(rec, req, apperr.New(apperr.KindNotFound, "station 99999 not found"))

	require.Equal(t, http.StatusNotFound, rec.Code)

	var body map[string]interface{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "station 99999 not found", body["message"])
	assert.Equal(t, "/api/stations/99999", body["path"])
	assert.Equal(t, "GET", body["method"])
}

func TestJSONWritesRequestIDHeaderWhenPresent(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/api/ops/health", http.NoBody)
	rec := httptest.NewRecorder()

	response.JSON(rec, req, http.StatusOK, map[string]string{"status": "ok"})

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))
	assert.JSONEq(t, `{"status":"ok"}`, rec.Body.String())
}
