package weather

import (
	"math"

	"github.com/lucasjlepore/cycleroute/geo"
)

// WindType is the wind direction relative to the rider's nose.
type WindType string

const (
	Headwind       WindType = "headwind"
	Tailwind       WindType = "tailwind"
	CrosswindLeft  WindType = "crosswind-left"
	CrosswindRight WindType = "crosswind-right"
)

// WindClassification is derived from the travel bearing and the direction
// the wind blows from; it is never stored as authoritative.
type WindClassification struct {
	Type          WindType `json:"type"`
	RelativeAngle float64  `json:"relative_angle"`
}

// RelativeWindAngle wraps windFrom-travel into (-180, 180].
func RelativeWindAngle(travelDeg, windFromDeg float64) float64 {
	r := geo.NormalizeDegrees(geo.NormalizeDegrees(windFromDeg) - geo.NormalizeDegrees(travelDeg))
	if r > 180 {
		r -= 360
	}
	return r
}

// ClassifyWind classifies the wind for a rider travelling on travelDeg.
// Angles outside [0, 360) are normalized first.
func ClassifyWind(travelDeg, windFromDeg float64) WindClassification {
	r := RelativeWindAngle(travelDeg, windFromDeg)
	abs := math.Abs(r)

	var t WindType
	switch {
	case abs <= 45:
		t = Headwind
	case abs >= 135:
		t = Tailwind
	case r > 0:
		t = CrosswindRight
	default:
		t = CrosswindLeft
	}
	return WindClassification{Type: t, RelativeAngle: r}
}
