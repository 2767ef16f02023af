// Package weather samples a route at fixed distances for a planned ride and
// attaches hourly forecasts and wind classification to every sample.
package weather

import (
	"errors"
	"fmt"
	"time"

	"github.com/lucasjlepore/cycleroute/geo"
	"github.com/lucasjlepore/cycleroute/track"
)

const (
	// SampleInterval is the along-track spacing of forecast samples in meters.
	SampleInterval = 10000.0

	MinSpeedKmh = 5.0
	MaxSpeedKmh = 60.0
)

var (
	ErrRouteTooShort = errors.New("route too short to sample")
	ErrInvalidSpeed  = errors.New("invalid average speed")
)

// SamplePoint is a synthetic point on the route with the time a rider at the
// planned average speed is expected to reach it.
type SamplePoint struct {
	Latitude                float64   `json:"latitude"`
	Longitude               float64   `json:"longitude"`
	Elevation               *float64  `json:"elevation,omitempty"`
	DistanceFromStartMeters float64   `json:"distance_from_start_m"`
	EstimatedArrivalTime    time.Time `json:"estimated_arrival_time"`
	TravelDirectionDeg      float64   `json:"travel_direction_deg"`
}

// ValidateSpeed checks the planned average speed against the supported range.
func ValidateSpeed(kmh float64) error {
	if kmh < MinSpeedKmh || kmh > MaxSpeedKmh {
		return fmt.Errorf("%w: %.1f km/h (expected %.0f-%.0f)", ErrInvalidSpeed, kmh, MinSpeedKmh, MaxSpeedKmh)
	}
	return nil
}

// SampleRoute samples points every SampleInterval meters.
func SampleRoute(points []track.Point, start time.Time, avgSpeedKmh float64) []SamplePoint {
	return SampleRouteEvery(points, start, avgSpeedKmh, SampleInterval)
}

// PlanSamples samples the route and reports ErrRouteTooShort when nothing
// beyond the starting point could be placed.
func PlanSamples(points []track.Point, start time.Time, avgSpeedKmh float64) ([]SamplePoint, error) {
	if avgSpeedKmh <= 0 {
		return nil, fmt.Errorf("%w: %.1f km/h", ErrInvalidSpeed, avgSpeedKmh)
	}
	samples := SampleRoute(points, start, avgSpeedKmh)
	if len(samples) < 2 {
		return nil, ErrRouteTooShort
	}
	return samples, nil
}

// SampleRouteEvery walks the track and places a sample at distance 0, at
// every multiple of interval and at the track end unless the last sample is
// already within 10% of the interval of it. Tracks with fewer than two
// points yield nil.
func SampleRouteEvery(points []track.Point, start time.Time, avgSpeedKmh, interval float64) []SamplePoint {
	if len(points) < 2 || avgSpeedKmh <= 0 || interval <= 0 {
		return nil
	}
	speedMps := avgSpeedKmh * 1000 / 3600
	arrival := func(d float64) time.Time {
		return start.Add(time.Duration(d / speedMps * float64(time.Second)))
	}

	first, second := points[0], points[1]
	samples := []SamplePoint{{
		Latitude:                first.Latitude,
		Longitude:               first.Longitude,
		Elevation:               first.Elevation,
		DistanceFromStartMeters: 0,
		EstimatedArrivalTime:    start,
		TravelDirectionDeg:      geo.Bearing(first.Latitude, first.Longitude, second.Latitude, second.Longitude),
	}}

	cumulative := 0.0
	next := interval
	for i := 1; i < len(points); i++ {
		prev, curr := points[i-1], points[i]
		segment := geo.Distance(prev.Latitude, prev.Longitude, curr.Latitude, curr.Longitude)
		cumulative += segment

		lookahead := points[min(i+1, len(points)-1)]
		for cumulative >= next {
			frac := 1.0
			if segment > 0 {
				frac = 1 - (cumulative-next)/segment
			}
			samples = append(samples, SamplePoint{
				Latitude:                prev.Latitude + (curr.Latitude-prev.Latitude)*frac,
				Longitude:               prev.Longitude + (curr.Longitude-prev.Longitude)*frac,
				Elevation:               interpolateElevation(prev.Elevation, curr.Elevation, frac),
				DistanceFromStartMeters: next,
				EstimatedArrivalTime:    arrival(next),
				TravelDirectionDeg:      geo.Bearing(prev.Latitude, prev.Longitude, lookahead.Latitude, lookahead.Longitude),
			})
			next += interval
		}
	}

	last := points[len(points)-1]
	if cumulative-samples[len(samples)-1].DistanceFromStartMeters > interval*0.1 {
		penultimate := points[len(points)-2]
		samples = append(samples, SamplePoint{
			Latitude:                last.Latitude,
			Longitude:               last.Longitude,
			Elevation:               last.Elevation,
			DistanceFromStartMeters: cumulative,
			EstimatedArrivalTime:    arrival(cumulative),
			TravelDirectionDeg:      geo.Bearing(penultimate.Latitude, penultimate.Longitude, last.Latitude, last.Longitude),
		})
	}
	return samples
}

func interpolateElevation(a, b *float64, frac float64) *float64 {
	if a != nil && b != nil {
		v := *a + (*b-*a)*frac
		return &v
	}
	if b == nil {
		return nil
	}
	v := *b
	return &v
}
