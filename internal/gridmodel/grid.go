// Package gridmodel routes geographic coordinates onto the regional
// GFS-Wave forecast grids. Each model covers a closed lat/lon rectangle
// on a regular lattice; routing picks the first containing model in a
// fixed scan order and computes the nearest row/column indices.
//
// All longitude math is in [0, 360). Client-facing longitudes in
// [-180, 180] are normalized on entry.
package gridmodel

import (
	"fmt"
	"math"

	"github.com/swellcast/swellcast/internal/apperr"
)

// Axis describes one dimension of a regular grid lattice.
type Axis struct {
	Start      float64
	End        float64
	Resolution float64
	Size       int
}

// Index returns the nearest lattice index for v, which must lie within
// the closed [Start, End] interval.
func (a Axis) Index(v float64) int {
	idx := int(math.Round((v - a.Start) / a.Resolution))
	if idx < 0 {
		idx = 0
	}
	if idx > a.Size-1 {
		idx = a.Size - 1
	}
	return idx
}

// Contains reports whether v lies within the closed interval.
func (a Axis) Contains(v float64) bool {
	return v >= a.Start && v <= a.End
}

// Model is one regional GFS-Wave grid.
type Model struct {
	// ID is the NOMADS product name, e.g. "wcoast.0p16".
	ID  string
	Lat Axis
	Lon Axis // in [0, 360)
}

// Contains reports whether the point lies in the model's closed
// rectangle. lon must already be normalized to [0, 360).
func (m Model) Contains(lat, lon float64) bool {
	return m.Lat.Contains(lat) && m.Lon.Contains(lon)
}

// Cell is a routed grid position.
type Cell struct {
	Model Model
	Row   int // latitude index
	Col   int // longitude index
}

// The three regional 0.16-degree wave grids served by NOMADS, in
// routing order. The Gulf grid is scanned before the Atlantic one
// because its rectangle is wholly contained in the Atlantic rectangle;
// Gulf stations should route to the regional Gulf product. Sizes follow
// from (end-start)/resolution + 1.
var Models = []Model{
	{
		ID:  "wcoast.0p16",
		Lat: Axis{Start: 25.0, End: 50.00005, Resolution: 0.166667, Size: 151},
		Lon: Axis{Start: 210.0, End: 250.00008, Resolution: 0.166667, Size: 241},
	},
	{
		ID:  "gulfmex.0p16",
		Lat: Axis{Start: 15.0, End: 31.00006, Resolution: 0.166667, Size: 97},
		Lon: Axis{Start: 260.0, End: 285.00005, Resolution: 0.166667, Size: 151},
	},
	{
		ID:  "atlocn.0p16",
		Lat: Axis{Start: 0.0, End: 55.00011, Resolution: 0.166667, Size: 331},
		Lon: Axis{Start: 260.0, End: 310.00010, Resolution: 0.166667, Size: 301},
	},
}

// NormalizeLon maps a longitude in either [-180, 180] or [0, 360)
// convention into [0, 360). Idempotent.
func NormalizeLon(lon float64) float64 {
	lon = math.Mod(lon, 360)
	if lon < 0 {
		lon += 360
	}
	return lon
}

// Locate routes (lat, lon) to a model grid cell. Longitude may be in
// either convention. Points outside every model rectangle fail with an
// OutOfGrid error carrying the original coordinates; there is no
// nearest-model fallback.
func Locate(lat, lon float64) (Cell, error) {
	normLon := NormalizeLon(lon)
	for _, m := range Models {
		if m.Contains(lat, normLon) {
			return Cell{
				Model: m,
				Row:   m.Lat.Index(lat),
				Col:   m.Lon.Index(normLon),
			}, nil
		}
	}
	return Cell{}, apperr.New(apperr.KindOutOfGrid,
		"coordinates (%.4f, %.4f) outside all forecast model grids", lat, lon)
}

// InAnyGrid reports whether the point is covered by some model.
func InAnyGrid(lat, lon float64) bool {
	_, err := Locate(lat, lon)
	return err == nil
}

// CacheKeyCoords renders a stable decimal form of the point for cache
// keys: latitude as given, longitude normalized, four decimals each.
func CacheKeyCoords(lat, lon float64) string {
	return fmt.Sprintf("%.4f_%.4f", lat, NormalizeLon(lon))
}
