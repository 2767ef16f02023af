package track

import (
	"math"

	"github.com/lucasjlepore/cycleroute/geo"
)

// CumulativeDistances returns the along-track distance of every point; the
// first entry is always 0.
func CumulativeDistances(points []Point) []float64 {
	if len(points) == 0 {
		return nil
	}
	out := make([]float64, len(points))
	for i := 1; i < len(points); i++ {
		prev, curr := points[i-1], points[i]
		out[i] = out[i-1] + geo.Distance(prev.Latitude, prev.Longitude, curr.Latitude, curr.Longitude)
	}
	return out
}

// SnapDistance returns the along-track distance of the track vertex closest
// to (lat, lon). Ties resolve to the lowest index. A single-point track
// yields the direct distance to that point.
func SnapDistance(points []Point, lat, lon float64) float64 {
	return SnapDistanceWith(points, CumulativeDistances(points), lat, lon)
}

// SnapDistanceWith is SnapDistance with precomputed cumulative distances,
// for callers snapping many points onto the same track.
func SnapDistanceWith(points []Point, cumulative []float64, lat, lon float64) float64 {
	switch len(points) {
	case 0:
		return 0
	case 1:
		return geo.Distance(points[0].Latitude, points[0].Longitude, lat, lon)
	}
	best := math.Inf(1)
	along := 0.0
	for i, p := range points {
		d := geo.Distance(lat, lon, p.Latitude, p.Longitude)
		if d < best {
			best = d
			along = cumulative[i]
		}
	}
	return along
}

// DistanceAlong projects (lat, lon) onto every segment in planar lat/lon
// space, keeps the projection with the smallest great-circle offset and
// returns the along-track distance to it.
func DistanceAlong(points []Point, lat, lon float64) float64 {
	switch len(points) {
	case 0:
		return 0
	case 1:
		return geo.Distance(points[0].Latitude, points[0].Longitude, lat, lon)
	}

	best := math.Inf(1)
	bestSeg := 0
	bestFrac := 0.0
	for i := 0; i < len(points)-1; i++ {
		a, b := points[i], points[i+1]
		dx := b.Longitude - a.Longitude
		dy := b.Latitude - a.Latitude
		lenSq := dx*dx + dy*dy

		frac := 0.0
		if lenSq > 0 {
			frac = ((lon-a.Longitude)*dx + (lat-a.Latitude)*dy) / lenSq
			frac = math.Max(0, math.Min(1, frac))
		}
		d := geo.Distance(a.Latitude+frac*dy, a.Longitude+frac*dx, lat, lon)
		if d < best {
			best = d
			bestSeg = i
			bestFrac = frac
		}
	}

	along := 0.0
	for i := 0; i < bestSeg; i++ {
		along += geo.Distance(points[i].Latitude, points[i].Longitude, points[i+1].Latitude, points[i+1].Longitude)
	}
	start, end := points[bestSeg], points[bestSeg+1]
	return along + geo.Distance(start.Latitude, start.Longitude, end.Latitude, end.Longitude)*bestFrac
}
