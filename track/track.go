// Package track parses raw track documents into a normalized point sequence
// and derives the route metrics and along-track projections used by the rest
// of the engine.
package track

import (
	"bytes"
	"errors"

	"github.com/lucasjlepore/cycleroute/geo"
	"github.com/paulmach/orb"
)

// DefaultName is used when the document declares no name.
const DefaultName = "Unnamed Route"

var (
	ErrMalformed = errors.New("track document is not well-formed")
	ErrNoTrack   = errors.New("no track found in document")
	ErrNoPoints  = errors.New("no track points found in document")
)

// Point is one raw coordinate of a route. Elevation is nil when the source
// point carries none.
type Point struct {
	Latitude  float64  `json:"latitude"`
	Longitude float64  `json:"longitude"`
	Elevation *float64 `json:"elevation"`
}

// Bounds is the latitude/longitude bounding box of a track.
type Bounds struct {
	MinLat float64 `json:"min_lat"`
	MaxLat float64 `json:"max_lat"`
	MinLon float64 `json:"min_lon"`
	MaxLon float64 `json:"max_lon"`
}

// ParsedTrack is the normalized form of a track document. Every field other
// than Name and Points is derived from Points.
type ParsedTrack struct {
	Name                string   `json:"name"`
	Points              []Point  `json:"points"`
	DistanceMeters      float64  `json:"distance_meters"`
	ElevationGainMeters *float64 `json:"elevation_gain_meters"`
	Bounds              Bounds   `json:"bounds"`
}

// Parse detects the document format and parses it. Documents whose first
// non-space byte is '{' are read as GeoJSON, anything else as GPX.
func Parse(data []byte) (*ParsedTrack, error) {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) > 0 && trimmed[0] == '{' {
		return ParseGeoJSON(data)
	}
	return ParseGPX(data)
}

// Summarize builds a ParsedTrack from an already-normalized point sequence.
func Summarize(name string, points []Point) (*ParsedTrack, error) {
	if len(points) == 0 {
		return nil, ErrNoPoints
	}
	if name == "" {
		name = DefaultName
	}
	return &ParsedTrack{
		Name:                name,
		Points:              points,
		DistanceMeters:      totalDistance(points),
		ElevationGainMeters: elevationGain(points),
		Bounds:              boundsOf(points),
	}, nil
}

// HasElevation reports whether at least one point carries elevation.
func HasElevation(points []Point) bool {
	for _, p := range points {
		if p.Elevation != nil {
			return true
		}
	}
	return false
}

func totalDistance(points []Point) float64 {
	total := 0.0
	for i := 1; i < len(points); i++ {
		total += geo.Distance(points[i-1].Latitude, points[i-1].Longitude, points[i].Latitude, points[i].Longitude)
	}
	return total
}

func elevationGain(points []Point) *float64 {
	if !HasElevation(points) {
		return nil
	}
	gain := 0.0
	for i := 1; i < len(points); i++ {
		prev, curr := points[i-1].Elevation, points[i].Elevation
		if prev != nil && curr != nil && *curr > *prev {
			gain += *curr - *prev
		}
	}
	return &gain
}

func boundsOf(points []Point) Bounds {
	b := orb.Bound{
		Min: orb.Point{points[0].Longitude, points[0].Latitude},
		Max: orb.Point{points[0].Longitude, points[0].Latitude},
	}
	for _, p := range points[1:] {
		b = b.Extend(orb.Point{p.Longitude, p.Latitude})
	}
	return Bounds{
		MinLat: b.Min.Lat(),
		MaxLat: b.Max.Lat(),
		MinLon: b.Min.Lon(),
		MaxLon: b.Max.Lon(),
	}
}

func float64Ptr(v float64) *float64 { return &v }
