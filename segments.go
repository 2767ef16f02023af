package cycleroute

import (
	"fmt"
	"math"
	"time"

	"github.com/lucasjlepore/cycleroute/weather"
)

// WindSegment is a stretch of route over which consecutive forecast samples
// share the same wind classification. Each sample covers the route from its
// own distance to the next sample.
type WindSegment struct {
	Type           weather.WindType `json:"type"`
	StartMeters    float64          `json:"start_m"`
	EndMeters      float64          `json:"end_m"`
	DistanceMeters float64          `json:"distance_m"`
	StartTime      time.Time        `json:"start_time"`
	Samples        int              `json:"samples"`
	AvgWindKmh     float64          `json:"avg_wind_kmh"`
	MaxGustKmh     float64          `json:"max_gust_kmh"`
	Description    string           `json:"description"`
}

// WindExposure is the share of route distance under each wind type.
type WindExposure struct {
	Headwind       float64          `json:"headwind"`
	Tailwind       float64          `json:"tailwind"`
	CrosswindLeft  float64          `json:"crosswind_left"`
	CrosswindRight float64          `json:"crosswind_right"`
	Dominant       weather.WindType `json:"dominant"`
}

// Crosswind is the combined share of both crosswind sides.
func (e WindExposure) Crosswind() float64 {
	return e.CrosswindLeft + e.CrosswindRight
}

// WindSegments groups forecast points by wind classification. totalMeters
// closes the final segment; when it is shorter than the last sample the
// last sample's distance is used.
func WindSegments(points []weather.WeatherPoint, totalMeters float64) []WindSegment {
	var out []WindSegment
	var windSum float64
	for i, p := range points {
		end := totalMeters
		if i+1 < len(points) {
			end = points[i+1].DistanceFromStartMeters
		}
		end = math.Max(end, p.DistanceFromStartMeters)

		if n := len(out); n > 0 && out[n-1].Type == p.WindClassification.Type {
			seg := &out[n-1]
			seg.EndMeters = end
			seg.Samples++
			seg.MaxGustKmh = math.Max(seg.MaxGustKmh, p.WindGustsKmh)
			windSum += p.WindSpeedKmh
			seg.AvgWindKmh = windSum / float64(seg.Samples)
			continue
		}
		windSum = p.WindSpeedKmh
		out = append(out, WindSegment{
			Type:        p.WindClassification.Type,
			StartMeters: p.DistanceFromStartMeters,
			EndMeters:   end,
			StartTime:   p.EstimatedArrivalTime,
			Samples:     1,
			AvgWindKmh:  p.WindSpeedKmh,
			MaxGustKmh:  p.WindGustsKmh,
		})
	}
	for i := range out {
		seg := &out[i]
		seg.DistanceMeters = seg.EndMeters - seg.StartMeters
		seg.Description = fmt.Sprintf("%s at %.0f km/h (gusts %.0f km/h)", windLabel(seg.Type), seg.AvgWindKmh, seg.MaxGustKmh)
	}
	return out
}

// ExposureOf returns the distance share of each wind type across segments.
// It returns nil when the segments cover no distance.
func ExposureOf(segments []WindSegment) *WindExposure {
	var total float64
	shares := map[weather.WindType]float64{}
	for _, seg := range segments {
		shares[seg.Type] += seg.DistanceMeters
		total += seg.DistanceMeters
	}
	if total <= 0 {
		return nil
	}
	e := &WindExposure{
		Headwind:       shares[weather.Headwind] / total,
		Tailwind:       shares[weather.Tailwind] / total,
		CrosswindLeft:  shares[weather.CrosswindLeft] / total,
		CrosswindRight: shares[weather.CrosswindRight] / total,
	}
	best := -1.0
	for _, t := range []weather.WindType{weather.Headwind, weather.Tailwind, weather.CrosswindLeft, weather.CrosswindRight} {
		if shares[t] > best {
			best = shares[t]
			e.Dominant = t
		}
	}
	return e
}

func windLabel(t weather.WindType) string {
	switch t {
	case weather.Headwind:
		return "Headwind"
	case weather.Tailwind:
		return "Tailwind"
	case weather.CrosswindLeft:
		return "Crosswind from the left"
	case weather.CrosswindRight:
		return "Crosswind from the right"
	}
	return string(t)
}
