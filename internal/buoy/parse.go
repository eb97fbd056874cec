package buoy

import (
	"strconv"
	"strings"
	"time"

	"github.com/swellcast/swellcast/internal/apperr"
)

// missing is the NDBC sentinel for an absent field. It maps to nil,
// never to zero.
const missing = "MM"

// Standard meteorological column indices in the .txt feed.
// YY MM DD hh mm WDIR WSPD GST WVHT DPD APD MWD PRES ATMP WTMP DEWP ...
const (
	colWindDir = 5
	colWindSpd = 6
	colGust    = 7
	colWvHt    = 8
	colDomPd   = 9
	colAvgPd   = 10
	colWvDir   = 11
	colPres    = 12
	colAirTmp  = 13
	colWtrTmp  = 14
	colDewPt   = 15
)

// Spectral summary column indices in the .spec feed.
// YY MM DD hh mm WVHT SwH SwP WWH WWP SwD WWD STEEPNESS APD MWD
const (
	specColWvHt  = 5
	specColSwH   = 6
	specColSwP   = 7
	specColWWH   = 8
	specColWWP   = 9
	specColSwD   = 10
	specColWWD   = 11
	specColSteep = 12
	specColAPD   = 13
	specColMWD   = 14
)

// sample is one parsed row of the meteorological feed, in source units
// (m, m/s, s, deg, hPa, °C).
type sample struct {
	time       time.Time
	windDir    *float64
	windSpeed  *float64
	gust       *float64
	waveHeight *float64
	domPeriod  *float64
	avgPeriod  *float64
	waveDir    *float64
	pressure   *float64
	airTemp    *float64
	waterTemp  *float64
	dewPoint   *float64
}

// parseMet parses the meteorological feed into samples, most recent
// first (source row order). Rows whose timestamp cannot be parsed are
// skipped; a row with every data field missing still contributes its
// timestamp.
func parseMet(text string) ([]sample, error) {
	var samples []sample
	for _, line := range strings.Split(strings.TrimSpace(text), "\n") {
		line = strings.TrimSpace(line)
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		fields := strings.Fields(line)
		if len(fields) < 5 {
			continue
		}
		ts, ok := parseRowTime(fields)
		if !ok {
			continue
		}
		samples = append(samples, sample{
			time:       ts,
			windDir:    fieldAt(fields, colWindDir),
			windSpeed:  fieldAt(fields, colWindSpd),
			gust:       fieldAt(fields, colGust),
			waveHeight: fieldAt(fields, colWvHt),
			domPeriod:  fieldAt(fields, colDomPd),
			avgPeriod:  fieldAt(fields, colAvgPd),
			waveDir:    fieldAt(fields, colWvDir),
			pressure:   fieldAt(fields, colPres),
			airTemp:    fieldAt(fields, colAirTmp),
			waterTemp:  fieldAt(fields, colWtrTmp),
			dewPoint:   fieldAt(fields, colDewPt),
		})
	}
	if len(samples) == 0 {
		return nil, apperr.Wrap(apperr.KindNotFound, ErrNoData, "no parseable observation rows")
	}
	return samples, nil
}

// parseSpec parses the first data row of the spectral feed. A feed with
// no data rows yields nil without error; the spectral record is
// optional everywhere downstream.
func parseSpec(text string) *Spectral {
	for _, line := range strings.Split(strings.TrimSpace(text), "\n") {
		line = strings.TrimSpace(line)
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		fields := strings.Fields(line)
		if len(fields) < 5 {
			continue
		}
		sp := &Spectral{
			WaveHeightFt: scale(fieldAt(fields, specColWvHt), MetersToFeet),
			Swell: Component{
				HeightFt:     scale(fieldAt(fields, specColSwH), MetersToFeet),
				PeriodS:      fieldAt(fields, specColSwP),
				DirectionDeg: compassAt(fields, specColSwD),
			},
			WindWave: Component{
				HeightFt:     scale(fieldAt(fields, specColWWH), MetersToFeet),
				PeriodS:      fieldAt(fields, specColWWP),
				DirectionDeg: compassAt(fields, specColWWD),
			},
			AveragePeriodS: fieldAt(fields, specColAPD),
			MeanWaveDirDeg: fieldAt(fields, specColMWD),
		}
		if len(fields) > specColSteep && fields[specColSteep] != missing && fields[specColSteep] != "N/A" {
			sp.Steepness = fields[specColSteep]
		}
		return sp
	}
	return nil
}

// parseRowTime parses the five leading timestamp columns. Missing hour
// or minute default to zero, matching the upstream convention.
func parseRowTime(fields []string) (time.Time, bool) {
	year, err := strconv.Atoi(fields[0])
	if err != nil {
		return time.Time{}, false
	}
	if year < 100 {
		year += 2000
	}
	month, err1 := strconv.Atoi(fields[1])
	day, err2 := strconv.Atoi(fields[2])
	if err1 != nil || err2 != nil {
		return time.Time{}, false
	}
	hour, minute := 0, 0
	if fields[3] != missing {
		if hour, err = strconv.Atoi(fields[3]); err != nil {
			return time.Time{}, false
		}
	}
	if fields[4] != missing {
		if minute, err = strconv.Atoi(fields[4]); err != nil {
			return time.Time{}, false
		}
	}
	return time.Date(year, time.Month(month), day, hour, minute, 0, 0, time.UTC), true
}

// fieldAt parses the numeric field at index i, mapping the MM sentinel
// and malformed values to nil.
func fieldAt(fields []string, i int) *float64 {
	if i >= len(fields) || fields[i] == missing {
		return nil
	}
	v, err := strconv.ParseFloat(fields[i], 64)
	if err != nil {
		return nil
	}
	return &v
}

// compassAt parses a 16-point compass label at index i into degrees.
func compassAt(fields []string, i int) *float64 {
	if i >= len(fields) || fields[i] == missing {
		return nil
	}
	deg, ok := compassDegrees[fields[i]]
	if !ok {
		// Some stations report numeric directions here.
		return fieldAt(fields, i)
	}
	return &deg
}

var compassDegrees = map[string]float64{
	"N": 0, "NNE": 22.5, "NE": 45, "ENE": 67.5,
	"E": 90, "ESE": 112.5, "SE": 135, "SSE": 157.5,
	"S": 180, "SSW": 202.5, "SW": 225, "WSW": 247.5,
	"W": 270, "WNW": 292.5, "NW": 315, "NNW": 337.5,
}

// scale multiplies an optional value by factor.
func scale(v *float64, factor float64) *float64 {
	if v == nil {
		return nil
	}
	out := *v * factor
	return &out
}

// steepnessLabel derives the steepness category from height (m) and
// period (s).
func steepnessLabel(heightM, periodS *float64) string {
	if heightM == nil || periodS == nil || *periodS == 0 {
		return ""
	}
	ratio := *heightM / (*periodS * *periodS)
	switch {
	case ratio >= 0.025:
		return "VERY_STEEP"
	case ratio >= 0.02:
		return "STEEP"
	default:
		return ""
	}
}
