// Package geo renders conflict events as map layers. Only events carrying a
// coordinate pair are placed on the map.
package geo

import (
	"encoding/json"
	"math"
	"sort"

	"github.com/rotisserie/eris"
	"github.com/twpayne/go-geom"
	"github.com/twpayne/go-geom/encoding/geojson"
	"go.uber.org/zap"

	"github.com/sells-group/conflict-dash/internal/model"
)

// SRID is the spatial reference of UCDP coordinates (WGS 84).
const SRID = 4326

// Point returns the event location as an XY point in lon/lat order.
func Point(e *model.Event) (*geom.Point, bool) {
	if !e.HasCoordinates || !validCoord(e.Latitude, e.Longitude) {
		return nil, false
	}
	p := geom.NewPointFlat(geom.XY, []float64{e.Longitude, e.Latitude})
	p.SetSRID(SRID)
	return p, true
}

func validCoord(lat, lon float64) bool {
	return !math.IsNaN(lat) && !math.IsNaN(lon) &&
		lat >= -90 && lat <= 90 && lon >= -180 && lon <= 180
}

// FeatureCollection builds one point feature per located event. The
// collection bounding box covers every feature and is nil when none is
// located.
func FeatureCollection(events []model.Event) *geojson.FeatureCollection {
	fc := &geojson.FeatureCollection{Features: make([]*geojson.Feature, 0, len(events))}
	bounds := geom.NewBounds(geom.XY)
	var skipped int
	for i := range events {
		e := &events[i]
		p, ok := Point(e)
		if !ok {
			skipped++
			continue
		}
		bounds.Extend(p)
		fc.Features = append(fc.Features, &geojson.Feature{
			ID:       e.ID,
			Geometry: p,
			Properties: map[string]any{
				"year":          e.Year,
				"region":        e.Region,
				"country":       e.Country,
				"conflict_name": e.ConflictName,
				"violence_type": string(e.ViolenceType),
				"best":          e.Fatalities.Best,
			},
		})
	}
	if len(fc.Features) > 0 {
		fc.BBox = bounds
	}
	if skipped > 0 {
		zap.L().Debug("geo: events without coordinates skipped",
			zap.Int("skipped", skipped),
			zap.Int("placed", len(fc.Features)),
		)
	}
	return fc
}

// Marshal encodes the events as a GeoJSON FeatureCollection.
func Marshal(events []model.Event) ([]byte, error) {
	b, err := json.Marshal(FeatureCollection(events))
	if err != nil {
		return nil, eris.Wrap(err, "geo: marshal feature collection")
	}
	return b, nil
}

// Centroid is the mean location of one country's located events.
type Centroid struct {
	Country     string  `json:"country"`
	Latitude    float64 `json:"latitude"`
	Longitude   float64 `json:"longitude"`
	Conflicts   int     `json:"conflicts"`
	FatalitySum int64   `json:"fatality_sum"`
}

// Centroids averages event coordinates per country, ordered by conflict
// count descending then country name.
func Centroids(events []model.Event) []Centroid {
	type acc struct {
		lat, lon float64
		c        Centroid
	}
	byCountry := make(map[string]*acc)
	for i := range events {
		e := &events[i]
		if _, ok := Point(e); !ok {
			continue
		}
		a := byCountry[e.Country]
		if a == nil {
			a = &acc{c: Centroid{Country: e.Country}}
			byCountry[e.Country] = a
		}
		a.lat += e.Latitude
		a.lon += e.Longitude
		a.c.Conflicts++
		a.c.FatalitySum += e.Fatalities.Best
	}

	out := make([]Centroid, 0, len(byCountry))
	for _, a := range byCountry {
		n := float64(a.c.Conflicts)
		a.c.Latitude = a.lat / n
		a.c.Longitude = a.lon / n
		out = append(out, a.c)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Conflicts != out[j].Conflicts {
			return out[i].Conflicts > out[j].Conflicts
		}
		return out[i].Country < out[j].Country
	})
	return out
}
