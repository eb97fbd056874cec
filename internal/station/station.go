// Package station holds the offshore station catalogue. The catalogue
// is loaded once from a GeoJSON file at startup and is immutable
// afterwards; every subsystem shares the same snapshot.
package station

import (
	"encoding/json"
	"fmt"
	"math"
	"os"
	"sort"

	"github.com/swellcast/swellcast/internal/apperr"
	"github.com/swellcast/swellcast/internal/gridmodel"
)

// Station is one catalogue entry.
type Station struct {
	ID   string  `json:"id"`
	Name string  `json:"name"`
	Type string  `json:"type,omitempty"`
	Lat  float64 `json:"latitude"`
	Lon  float64 `json:"longitude"`

	// HasRealTimeData marks stations with a live NDBC feed.
	HasRealTimeData bool `json:"hasRealTimeData"`

	// InForecastGrid marks stations whose coordinates lie in some
	// regional model rectangle; computed at load time.
	InForecastGrid bool `json:"inForecastGrid"`
}

// Catalogue is the immutable station set.
type Catalogue struct {
	stations []Station
	byID     map[string]int
}

// geoJSON mirrors the catalogue file schema: a FeatureCollection of
// Point features.
type geoJSON struct {
	Type     string `json:"type"`
	Features []struct {
		Type     string `json:"type"`
		Geometry struct {
			Type        string    `json:"type"`
			Coordinates []float64 `json:"coordinates"` // [lon, lat]
		} `json:"geometry"`
		Properties struct {
			ID              string `json:"id"`
			Name            string `json:"name"`
			Type            string `json:"type"`
			HasRealTimeData bool   `json:"hasRealTimeData"`
		} `json:"properties"`
	} `json:"features"`
}

// Load reads the catalogue from a GeoJSON file.
func Load(path string) (*Catalogue, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading station catalogue: %w", err)
	}
	return Parse(data)
}

// Parse builds a catalogue from GeoJSON bytes.
func Parse(data []byte) (*Catalogue, error) {
	var doc geoJSON
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("parsing station catalogue: %w", err)
	}
	if doc.Type != "FeatureCollection" {
		return nil, fmt.Errorf("station catalogue: expected FeatureCollection, got %q", doc.Type)
	}

	cat := &Catalogue{byID: make(map[string]int, len(doc.Features))}
	for _, f := range doc.Features {
		if f.Geometry.Type != "Point" || len(f.Geometry.Coordinates) < 2 {
			return nil, fmt.Errorf("station catalogue: station %q has no point geometry", f.Properties.ID)
		}
		lon, lat := f.Geometry.Coordinates[0], f.Geometry.Coordinates[1]
		s := Station{
			ID:              f.Properties.ID,
			Name:            f.Properties.Name,
			Type:            f.Properties.Type,
			Lat:             lat,
			Lon:             lon,
			HasRealTimeData: f.Properties.HasRealTimeData,
			InForecastGrid:  gridmodel.InAnyGrid(lat, lon),
		}
		if _, dup := cat.byID[s.ID]; dup {
			continue
		}
		cat.byID[s.ID] = len(cat.stations)
		cat.stations = append(cat.stations, s)
	}
	return cat, nil
}

// Get looks up a station by identifier.
func (c *Catalogue) Get(id string) (Station, error) {
	idx, ok := c.byID[id]
	if !ok {
		return Station{}, apperr.New(apperr.KindNotFound, "station %s not found", id)
	}
	return c.stations[idx], nil
}

// All returns every station in catalogue order. The slice is a copy;
// the catalogue itself never changes.
func (c *Catalogue) All() []Station {
	out := make([]Station, len(c.stations))
	copy(out, c.stations)
	return out
}

// InGrid returns the stations whose coordinates lie in some model grid.
func (c *Catalogue) InGrid() []Station {
	var out []Station
	for _, s := range c.stations {
		if s.InForecastGrid {
			out = append(out, s)
		}
	}
	return out
}

// Len returns the catalogue size.
func (c *Catalogue) Len() int {
	return len(c.stations)
}

// Nearest returns the station geographically closest to the point,
// by great-circle distance.
func (c *Catalogue) Nearest(lat, lon float64) (Station, float64, error) {
	if len(c.stations) == 0 {
		return Station{}, 0, apperr.New(apperr.KindNotFound, "station catalogue is empty")
	}
	best := 0
	bestDist := math.Inf(1)
	for i, s := range c.stations {
		d := haversineKm(lat, lon, s.Lat, s.Lon)
		if d < bestDist {
			best, bestDist = i, d
		}
	}
	return c.stations[best], bestDist, nil
}

// GeoJSON renders the catalogue back to a FeatureCollection for the
// list endpoint.
func (c *Catalogue) GeoJSON() map[string]interface{} {
	features := make([]map[string]interface{}, 0, len(c.stations))
	for _, s := range c.stations {
		features = append(features, map[string]interface{}{
			"type": "Feature",
			"geometry": map[string]interface{}{
				"type":        "Point",
				"coordinates": []float64{s.Lon, s.Lat},
			},
			"properties": map[string]interface{}{
				"id":              s.ID,
				"name":            s.Name,
				"type":            s.Type,
				"hasRealTimeData": s.HasRealTimeData,
				"inForecastGrid":  s.InForecastGrid,
			},
		})
	}
	return map[string]interface{}{
		"type":     "FeatureCollection",
		"features": features,
	}
}

// IDs returns the sorted station identifiers; used by tests and logs.
func (c *Catalogue) IDs() []string {
	ids := make([]string, 0, len(c.stations))
	for id := range c.byID {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

const earthRadiusKm = 6371

// haversineKm is the great-circle distance between two points.
func haversineKm(lat1, lon1, lat2, lon2 float64) float64 {
	dLat := radians(lat2 - lat1)
	dLon := radians(lon2 - lon1)
	a := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(radians(lat1))*math.Cos(radians(lat2))*
			math.Sin(dLon/2)*math.Sin(dLon/2)
	return earthRadiusKm * 2 * math.Atan2(math.Sqrt(a), math.Sqrt(1-a))
}

func radians(deg float64) float64 {
	return deg * math.Pi / 180
}
