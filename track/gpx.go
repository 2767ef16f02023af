package track

import (
	"fmt"
	"strings"

	"github.com/tkrajina/gpxgo/gpx"
)

// ParseGPX parses a GPX document. Multiple segments of the first track that
// carries points are concatenated in document order; when no track carries
// points the first route is used instead.
func ParseGPX(data []byte) (*ParsedTrack, error) {
	doc, err := gpx.ParseBytes(data)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	if len(doc.Tracks) == 0 && len(doc.Routes) == 0 {
		return nil, ErrNoTrack
	}

	var points []Point
	for _, trk := range doc.Tracks {
		for _, seg := range trk.Segments {
			points = appendGPXPoints(points, seg.Points)
		}
		if len(points) > 0 {
			break
		}
	}
	if len(points) == 0 {
		for _, rte := range doc.Routes {
			points = appendGPXPoints(points, rte.Points)
			if len(points) > 0 {
				break
			}
		}
	}
	if len(points) == 0 {
		return nil, ErrNoPoints
	}
	return Summarize(gpxName(doc), points)
}

func appendGPXPoints(dst []Point, src []gpx.GPXPoint) []Point {
	for _, p := range src {
		pt := Point{Latitude: p.Latitude, Longitude: p.Longitude}
		if p.Elevation.NotNull() {
			pt.Elevation = float64Ptr(p.Elevation.Value())
		}
		dst = append(dst, pt)
	}
	return dst
}

func gpxName(doc *gpx.GPX) string {
	if name := strings.TrimSpace(doc.Name); name != "" {
		return name
	}
	for _, trk := range doc.Tracks {
		if name := strings.TrimSpace(trk.Name); name != "" {
			return name
		}
	}
	for _, rte := range doc.Routes {
		if name := strings.TrimSpace(rte.Name); name != "" {
			return name
		}
	}
	return DefaultName
}
