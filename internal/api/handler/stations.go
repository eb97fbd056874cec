// Package handler provides HTTP handlers for the conditions API.
package handler

import (
	"context"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/swellcast/swellcast/internal/api/response"
	"github.com/swellcast/swellcast/internal/conditions"
	"github.com/swellcast/swellcast/internal/station"
	"github.com/swellcast/swellcast/internal/tide"
)

// ConditionsService assembles station envelopes.
type ConditionsService interface {
	GetStation(ctx context.Context, stationID string) (*conditions.StationConditions, error)
}

// TideService supplies tide predictions.
type TideService interface {
	Get(ctx context.Context, stationID string) (*tide.Predictions, error)
}

// StationsHandler handles the station endpoints.
type StationsHandler struct {
	catalogue  *station.Catalogue
	conditions ConditionsService
	tides      TideService
}

// NewStationsHandler creates a new StationsHandler.
func NewStationsHandler(catalogue *station.Catalogue, svc ConditionsService, tides TideService) *StationsHandler {
	return &StationsHandler{
		catalogue:  catalogue,
		conditions: svc,
		tides:      tides,
	}
}

// List handles GET /api/stations - the catalogue as GeoJSON.
func (h *StationsHandler) List(w http.ResponseWriter, r *http.Request) {
	response.JSON(w, r, http.StatusOK, h.catalogue.GeoJSON())
}

// NearestResult is the response of the nearest-station lookup.
type NearestResult struct {
	Station    station.Station `json:"station"`
	DistanceKm float64         `json:"distanceKm"`
}

// Nearest handles GET /api/stations/nearest?lat=..&lon=..
func (h *StationsHandler) Nearest(w http.ResponseWriter, r *http.Request) {
	lat, err := strconv.ParseFloat(r.URL.Query().Get("lat"), 64)
	if err != nil {
		response.BadRequest(w, r, "query parameter lat must be a number")
		return
	}
	lon, err := strconv.ParseFloat(r.URL.Query().Get("lon"), 64)
	if err != nil {
		response.BadRequest(w, r, "query parameter lon must be a number")
		return
	}
	if lat < -90 || lat > 90 {
		response.BadRequest(w, r, "latitude out of range")
		return
	}

	nearest, distance, err := h.catalogue.Nearest(lat, lon)
	if err != nil {
		response.FromError(w, r, err)
		return
	}
	response.JSON(w, r, http.StatusOK, NearestResult{Station: nearest, DistanceKm: distance})
}

// Get handles GET /api/stations/{stationId} - the combined envelope.
func (h *StationsHandler) Get(w http.ResponseWriter, r *http.Request) {
	stationID := chi.URLParam(r, "stationId")

	env, err := h.conditions.GetStation(r.Context(), stationID)
	if err != nil {
		response.FromError(w, r, err)
		return
	}
	response.JSON(w, r, http.StatusOK, env)
}

// Tides handles GET /api/tides/{stationId} - CO-OPS predictions.
func (h *StationsHandler) Tides(w http.ResponseWriter, r *http.Request) {
	stationID := chi.URLParam(r, "stationId")

	predictions, err := h.tides.Get(r.Context(), stationID)
	if err != nil {
		response.FromError(w, r, err)
		return
	}
	response.JSON(w, r, http.StatusOK, predictions)
}
