package conditions

import (
	"time"

	"github.com/swellcast/swellcast/internal/buoy"
	"github.com/swellcast/swellcast/internal/forecast"
)

// StationConditions is the combined current-plus-forecast envelope for
// one station.
type StationConditions struct {
	Station     StationInfo        `json:"station"`
	Observation *buoy.Observation  `json:"observation,omitempty"`
	Forecast    *forecast.Forecast `json:"forecast,omitempty"`

	// ForecastError is set when the station sits on a forecast grid but
	// the model data could not be retrieved. The observation is still
	// served; forecast trouble degrades the envelope, never fails it.
	ForecastError *SourceError `json:"forecastError,omitempty"`

	Units       Units     `json:"units"`
	GeneratedAt time.Time `json:"generatedAt"`
}

// StationInfo is the station header echoed in every envelope.
type StationInfo struct {
	ID   string  `json:"id"`
	Name string  `json:"name"`
	Type string  `json:"type"`
	Lat  float64 `json:"latitude"`
	Lon  float64 `json:"longitude"`
}

// SourceError describes a degraded upstream source.
type SourceError struct {
	Kind    string `json:"kind"`
	Message string `json:"message"`
}

// Units documents the display units used across the envelope.
type Units struct {
	WaveHeight string `json:"waveHeight"`
	WindSpeed  string `json:"windSpeed"`
	Direction  string `json:"direction"`
	Period     string `json:"period"`
}

// DisplayUnits is the fixed unit set all envelopes are rendered in.
var DisplayUnits = Units{
	WaveHeight: "ft",
	WindSpeed:  "mph",
	Direction:  "degrees",
	Period:     "seconds",
}
