// Package buoy fetches and parses NDBC real-time buoy observations and
// derives short-window trends from them.
package buoy

import (
	"errors"
	"time"
)

// Buoy errors.
var (
	// ErrNoData means the station returned no valid observation rows.
	ErrNoData = errors.New("no valid observation data")
)

// Unit conversion factors used throughout the core. The wind factor
// matches the upstream publisher's convention for these feeds.
const (
	MetersToFeet = 3.28084
	MpsToMph     = 1.15078
)

// Observation is the parsed state of one buoy at its latest report,
// plus derived trend and summary fields. Absent source fields stay nil
// and are omitted from serialized output.
type Observation struct {
	Time       time.Time   `json:"time"`
	Wind       Wind        `json:"wind"`
	Wave       Wave        `json:"wave"`
	Spectral   *Spectral   `json:"spectral,omitempty"`
	Atmosphere Atmosphere  `json:"atmosphere"`
	DataAge    DataAge     `json:"dataAge"`
	Trend      *Trend      `json:"trend,omitempty"`
	Beaufort   *Beaufort   `json:"beaufort,omitempty"`
	Summary    string      `json:"summary,omitempty"`
}

// Wind holds surface wind fields in display units.
type Wind struct {
	DirectionDeg *float64 `json:"direction,omitempty"`
	SpeedMph     *float64 `json:"speed,omitempty"`
	GustMph      *float64 `json:"gust,omitempty"`
}

// Wave holds the bulk wave fields in display units.
type Wave struct {
	HeightFt        *float64 `json:"height,omitempty"`
	DominantPeriodS *float64 `json:"dominantPeriod,omitempty"`
	AveragePeriodS  *float64 `json:"averagePeriod,omitempty"`
	DirectionDeg    *float64 `json:"direction,omitempty"`

	// Steepness is derived from height and dominant period when both
	// are present: ratio h/T^2 at or above 0.025 is VERY_STEEP, at or
	// above 0.02 is STEEP.
	Steepness string `json:"steepness,omitempty"`
}

// Spectral is the optional decomposition from the station's .spec feed.
type Spectral struct {
	WaveHeightFt   *float64  `json:"waveHeight,omitempty"`
	Swell          Component `json:"swell"`
	WindWave       Component `json:"windWave"`
	Steepness      string    `json:"steepness,omitempty"`
	AveragePeriodS *float64  `json:"averagePeriod,omitempty"`
	MeanWaveDirDeg *float64  `json:"meanWaveDirection,omitempty"`
}

// Component is one wave partition from the spectral feed.
type Component struct {
	HeightFt     *float64 `json:"height,omitempty"`
	PeriodS      *float64 `json:"period,omitempty"`
	DirectionDeg *float64 `json:"direction,omitempty"`
}

// Atmosphere holds the meteorological fields as reported (hPa, °C).
type Atmosphere struct {
	PressureHpa *float64 `json:"pressure,omitempty"`
	AirTempC    *float64 `json:"airTemp,omitempty"`
	WaterTempC  *float64 `json:"waterTemp,omitempty"`
	DewPointC   *float64 `json:"dewPoint,omitempty"`
}

// DataAge reports how old the latest observation is. Reports older than
// 45 minutes are flagged stale.
type DataAge struct {
	Minutes float64 `json:"minutes"`
	IsStale bool    `json:"isStale"`
}

// Trend labels the direction of change over the recent window
// (8 samples, about four hours at the half-hourly cadence). A field is
// empty when fewer than two valid samples exist for it.
type Trend struct {
	WaveHeight string `json:"waveHeight,omitempty"`
	WavePeriod string `json:"wavePeriod,omitempty"`
	WindSpeed  string `json:"windSpeed,omitempty"`
}

// Trend labels.
const (
	TrendSteady      = "steady"
	TrendBuilding    = "building"
	TrendDropping    = "dropping"
	TrendLengthening = "lengthening"
	TrendShortening  = "shortening"
	TrendIncreasing  = "increasing"
	TrendDecreasing  = "decreasing"
)

// Dominant partition labels for the mariner summary.
const (
	PartitionMixed    = "mixed"
	PartitionSwell    = "swell"
	PartitionWindWave = "wind-wave"
)

// Beaufort is the wind condition category for the latest report.
type Beaufort struct {
	Force int    `json:"force"`
	Name  string `json:"name"`
	Seas  string `json:"seas"`
}

// DominantPartition classifies which wave partition dominates the
// spectral decomposition. Partitions within a factor of two of each
// other count as mixed seas.
func (s *Spectral) DominantPartition() string {
	if s == nil {
		return ""
	}
	swell := s.Swell.HeightFt
	wind := s.WindWave.HeightFt
	switch {
	case swell != nil && wind != nil:
		hi, lo := *swell, *wind
		if lo > hi {
			hi, lo = lo, hi
		}
		if lo*2 > hi {
			return PartitionMixed
		}
		if *swell >= *wind {
			return PartitionSwell
		}
		return PartitionWindWave
	case swell != nil:
		return PartitionSwell
	case wind != nil:
		return PartitionWindWave
	default:
		return ""
	}
}
