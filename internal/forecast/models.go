package forecast

import "time"

// Unit conversion factors for display fields.
const (
	MetersToFeet = 3.28084
	MpsToMph     = 1.15078
)

// Forecast is one model cycle's hourly series at a single grid point.
type Forecast struct {
	// Model is the regional grid product the point routed to.
	Model string `json:"model"`

	// CycleDate and CycleHour identify the model run, e.g. "20250310"
	// and "06".
	CycleDate string `json:"cycleDate"`
	CycleHour string `json:"cycleHour"`

	// Lat and Lon are the grid lattice coordinates actually sampled,
	// which may differ slightly from the requested point.
	Lat float64 `json:"latitude"`
	Lon float64 `json:"longitude"`

	Periods []Period `json:"periods"`
}

// Period is the sea state at one 3-hour forecast step. A step is only
// emitted when the model reports a significant wave height for it.
type Period struct {
	Time time.Time `json:"time"`

	WaveHeightM  *float64 `json:"waveHeightM,omitempty"`
	WaveHeightFt *float64 `json:"waveHeightFt,omitempty"`

	// PeakPeriodS and PeakDirectionDeg describe the dominant spectral
	// peak across all partitions.
	PeakPeriodS      *float64 `json:"peakPeriodS,omitempty"`
	PeakDirectionDeg *float64 `json:"peakDirectionDeg,omitempty"`

	WindWave *Partition  `json:"windWave,omitempty"`
	Swells   []Partition `json:"swells,omitempty"`

	Wind WindForecast `json:"wind"`
}

// Partition is one wave train: the wind sea or a numbered swell.
type Partition struct {
	HeightM      *float64 `json:"heightM,omitempty"`
	HeightFt     *float64 `json:"heightFt,omitempty"`
	PeriodS      *float64 `json:"periodS,omitempty"`
	DirectionDeg *float64 `json:"directionDeg,omitempty"`
}

// WindForecast is the surface wind at one step.
type WindForecast struct {
	SpeedMps     *float64 `json:"speedMps,omitempty"`
	SpeedMph     *float64 `json:"speedMph,omitempty"`
	DirectionDeg *float64 `json:"directionDeg,omitempty"`
	UMps         *float64 `json:"uMps,omitempty"`
	VMps         *float64 `json:"vMps,omitempty"`
}
