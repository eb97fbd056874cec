package forecast

import (
	"strconv"
	"strings"

	"github.com/swellcast/swellcast/internal/apperr"
)

// stepCount is the number of 3-hour steps requested per cycle, covering
// roughly a week of forecast.
const stepCount = 56

// stepInterval in hours between consecutive forecast steps.
const stepIntervalHours = 3

// fillThreshold marks the grid fill value (~9.999e20) the model writes
// where a field is undefined, e.g. swell_3 when only two trains exist.
const fillThreshold = 9e20

// variables are the surface fields requested from the dods endpoint, in
// query order.
var variables = []string{
	"htsgwsfc", // significant height of combined waves
	"perpwsfc", // primary wave mean period
	"dirpwsfc", // primary wave direction
	"wvhgtsfc", // wind-wave height
	"wvpersfc", // wind-wave period
	"wvdirsfc", // wind-wave direction
	"swell_1", "swell_2", "swell_3",
	"swper_1", "swper_2", "swper_3",
	"swdir_1", "swdir_2", "swdir_3",
	"ugrdsfc", // wind u-component
	"vgrdsfc", // wind v-component
	"wdirsfc", // wind direction
	"windsfc", // wind speed
}

// parseASCII decodes the GrADS ascii response into per-variable series
// indexed by forecast step. Each variable block opens with a line naming
// the variable; subsequent bracketed lines carry one step each, like
// "[12][0], 1.85". Fill values and malformed cells become nil. A body
// with no recognizable variable block fails, which covers empty
// responses and HTML error pages.
func parseASCII(text string) (map[string][]*float64, error) {
	known := make(map[string]bool, len(variables))
	for _, v := range variables {
		known[v] = true
	}

	out := make(map[string][]*float64, len(variables))
	var current []*float64

	for _, line := range strings.Split(text, "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			current = nil
			continue
		}

		if !strings.HasPrefix(line, "[") {
			name := line
			if i := strings.IndexByte(line, ','); i >= 0 {
				name = strings.TrimSpace(line[:i])
			}
			if known[name] {
				current = make([]*float64, stepCount)
				out[name] = current
			} else {
				current = nil
			}
			continue
		}

		if current == nil {
			continue
		}
		step, value, ok := parseDataLine(line)
		if !ok || step < 0 || step >= stepCount {
			continue
		}
		if value < fillThreshold {
			v := value
			current[step] = &v
		}
	}

	if len(out) == 0 {
		return nil, apperr.New(apperr.KindUpstreamUnavailable, "response contained no forecast variables")
	}
	return out, nil
}

// parseDataLine splits "[12][0], 1.85" into step index and value.
func parseDataLine(line string) (int, float64, bool) {
	end := strings.IndexByte(line, ']')
	if end < 1 {
		return 0, 0, false
	}
	step, err := strconv.Atoi(line[1:end])
	if err != nil {
		return 0, 0, false
	}
	comma := strings.LastIndexByte(line, ',')
	if comma < 0 {
		return 0, 0, false
	}
	value, err := strconv.ParseFloat(strings.TrimSpace(line[comma+1:]), 64)
	if err != nil {
		return 0, 0, false
	}
	return step, value, true
}
