package buoy

import "fmt"

// trendWindow is how many recent samples feed the trend, about four
// hours at the half-hourly publish cadence.
const trendWindow = 8

// Trend thresholds, in display units.
const (
	waveTrendThresholdFt  = 0.5
	periodTrendThresholdS = 1.0
	windTrendThresholdMph = 2.0
)

// deriveTrend computes trend labels over the most recent samples.
// Samples arrive most recent first. Each delta is most-recent-valid
// minus oldest-valid-within-window; a metric with fewer than two valid
// samples gets no label. Returns nil when nothing is labelable.
func deriveTrend(samples []sample) *Trend {
	window := samples
	if len(window) > trendWindow {
		window = window[:trendWindow]
	}

	t := &Trend{}
	if d, ok := windowDelta(window, func(s sample) *float64 { return scale(s.waveHeight, MetersToFeet) }); ok {
		t.WaveHeight = label(d, waveTrendThresholdFt, TrendBuilding, TrendDropping)
	}
	if d, ok := windowDelta(window, func(s sample) *float64 { return s.domPeriod }); ok {
		t.WavePeriod = label(d, periodTrendThresholdS, TrendLengthening, TrendShortening)
	}
	if d, ok := windowDelta(window, func(s sample) *float64 { return scale(s.windSpeed, MpsToMph) }); ok {
		t.WindSpeed = label(d, windTrendThresholdMph, TrendIncreasing, TrendDecreasing)
	}

	if t.WaveHeight == "" && t.WavePeriod == "" && t.WindSpeed == "" {
		return nil
	}
	return t
}

// windowDelta returns newest-valid minus oldest-valid for one metric,
// and whether at least two distinct valid samples exist.
func windowDelta(window []sample, metric func(sample) *float64) (float64, bool) {
	var newest, oldest *float64
	for i := range window {
		v := metric(window[i])
		if v == nil {
			continue
		}
		if newest == nil {
			newest = v
		} else {
			oldest = v
		}
	}
	if newest == nil || oldest == nil {
		return 0, false
	}
	return *newest - *oldest, true
}

func label(delta, threshold float64, up, down string) string {
	switch {
	case delta >= threshold:
		return up
	case delta <= -threshold:
		return down
	default:
		return TrendSteady
	}
}

// beaufortScale maps an upper-bound wind speed in mph to the Beaufort
// category. Bounds are exclusive upper limits except the last entry.
var beaufortScale = []struct {
	upperMph float64
	name     string
	seas     string
}{
	{1, "calm", "sea like a mirror"},
	{4, "light air", "ripples without crests"},
	{8, "light breeze", "small wavelets, glassy crests"},
	{13, "gentle breeze", "large wavelets, crests begin to break"},
	{19, "moderate breeze", "small waves with frequent whitecaps"},
	{25, "fresh breeze", "moderate waves, many whitecaps"},
	{32, "strong breeze", "large waves, whitecaps everywhere"},
	{39, "near gale", "sea heaps up, foam blown in streaks"},
	{47, "gale", "moderately high waves, edges of crests break"},
	{55, "strong gale", "high waves, dense foam, spray reduces visibility"},
	{64, "storm", "very high waves with overhanging crests"},
	{73, "violent storm", "exceptionally high waves, sea covered in foam"},
}

// beaufortFor looks up the category for a wind speed in mph.
func beaufortFor(speedMph float64) Beaufort {
	for force, entry := range beaufortScale {
		if speedMph < entry.upperMph {
			return Beaufort{Force: force, Name: entry.name, Seas: entry.seas}
		}
	}
	return Beaufort{Force: 12, Name: "hurricane", Seas: "air filled with foam and spray, sea completely white"}
}

// marinerSummary composes a deterministic one-sentence description from
// the dominant partition and the Beaufort category. Randomized prose is
// a presentation concern; the core emits one stable sentence plus the
// structured fields it derives from.
func marinerSummary(obs *Observation) string {
	if obs.Wave.HeightFt == nil {
		if obs.Beaufort != nil {
			return fmt.Sprintf("No wave data reported; winds %s.", obs.Beaufort.Name)
		}
		return ""
	}

	seas := "Seas"
	switch obs.Spectral.DominantPartition() {
	case PartitionMixed:
		seas = "Mixed seas"
	case PartitionSwell:
		seas = "Swell-dominated seas"
	case PartitionWindWave:
		seas = "Wind-driven seas"
	}

	s := fmt.Sprintf("%s of %.1f ft", seas, *obs.Wave.HeightFt)
	if obs.Wave.DominantPeriodS != nil {
		s += fmt.Sprintf(" at %.0f s", *obs.Wave.DominantPeriodS)
	}
	if obs.Beaufort != nil {
		s += fmt.Sprintf(" with %s winds", obs.Beaufort.Name)
	}
	return s + "."
}
