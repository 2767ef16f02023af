package track

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/paulmach/orb"
	orbgeojson "github.com/paulmach/orb/geojson"
	geom "github.com/twpayne/go-geom"
	"github.com/twpayne/go-geom/encoding/geojson"
)

// ParseGeoJSON parses a FeatureCollection, a single Feature or a bare
// geometry. Only the first LineString or MultiLineString is used; the third
// coordinate component, when the layout has one, is the elevation.
func ParseGeoJSON(data []byte) (*ParsedTrack, error) {
	var head struct {
		Type string `json:"type"`
	}
	if err := json.Unmarshal(data, &head); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformed, err)
	}

	var features []*geojson.Feature
	switch head.Type {
	case "FeatureCollection":
		var fc geojson.FeatureCollection
		if err := fc.UnmarshalJSON(data); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrMalformed, err)
		}
		features = fc.Features
	case "Feature":
		var f geojson.Feature
		if err := f.UnmarshalJSON(data); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrMalformed, err)
		}
		features = []*geojson.Feature{&f}
	default:
		var g geom.T
		if err := geojson.Unmarshal(data, &g); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrMalformed, err)
		}
		features = []*geojson.Feature{{Geometry: g}}
	}

	for _, f := range features {
		if f == nil {
			continue
		}
		var points []Point
		switch g := f.Geometry.(type) {
		case *geom.LineString:
			points = appendCoords(nil, g.Coords(), g.Layout().ZIndex())
		case *geom.MultiLineString:
			for i := 0; i < g.NumLineStrings(); i++ {
				ls := g.LineString(i)
				points = appendCoords(points, ls.Coords(), ls.Layout().ZIndex())
			}
		default:
			continue
		}
		if len(points) == 0 {
			return nil, ErrNoPoints
		}
		return Summarize(featureName(f), points)
	}
	return nil, ErrNoTrack
}

func appendCoords(dst []Point, coords []geom.Coord, zIndex int) []Point {
	for _, c := range coords {
		pt := Point{Latitude: c.Y(), Longitude: c.X()}
		if zIndex >= 0 && zIndex < len(c) {
			pt.Elevation = float64Ptr(c[zIndex])
		}
		dst = append(dst, pt)
	}
	return dst
}

func featureName(f *geojson.Feature) string {
	if name, ok := f.Properties["name"].(string); ok && strings.TrimSpace(name) != "" {
		return strings.TrimSpace(name)
	}
	return DefaultName
}

// Feature renders the track as a GeoJSON LineString feature for map layers.
// Elevation is not part of the rendered geometry.
func (t *ParsedTrack) Feature() *orbgeojson.Feature {
	line := make(orb.LineString, 0, len(t.Points))
	for _, p := range t.Points {
		line = append(line, orb.Point{p.Longitude, p.Latitude})
	}
	f := orbgeojson.NewFeature(line)
	f.Properties["name"] = t.Name
	f.Properties["distance_meters"] = t.DistanceMeters
	if t.ElevationGainMeters != nil {
		f.Properties["elevation_gain_meters"] = *t.ElevationGainMeters
	}
	f.BBox = orbgeojson.BBox{t.Bounds.MinLon, t.Bounds.MinLat, t.Bounds.MaxLon, t.Bounds.MaxLat}
	return f
}
