// Package cycleroute summarizes a planned ride: route metrics, the forecast
// along the route and the wind the rider will face, rendered as briefing
// notes.
package cycleroute

import (
	"math"
	"time"

	"github.com/lucasjlepore/cycleroute/track"
	"github.com/lucasjlepore/cycleroute/weather"
)

// wetProbability is the precipitation probability treated as likely rain.
const wetProbability = 50.0

// Plan is the planned departure and pace.
type Plan struct {
	Start       time.Time `json:"start"`
	AvgSpeedKmh float64   `json:"avg_speed_kmh"`
}

// PlanSummary is the ride timing derived from a Plan and the route length.
type PlanSummary struct {
	Start           time.Time `json:"start"`
	Finish          time.Time `json:"finish"`
	AvgSpeedKmh     float64   `json:"avg_speed_kmh"`
	DurationSeconds float64   `json:"duration_seconds"`
}

// ForecastSummary aggregates the forecast over every sample point.
type ForecastSummary struct {
	Samples              int      `json:"samples"`
	MinTempC             float64  `json:"min_temp_c"`
	MaxTempC             float64  `json:"max_temp_c"`
	MinFeelsLikeC        float64  `json:"min_feels_like_c"`
	MaxFeelsLikeC        float64  `json:"max_feels_like_c"`
	MaxPrecipProbability float64  `json:"max_precip_probability"`
	PrecipMm             float64  `json:"precip_mm"`
	MaxWindKmh           float64  `json:"max_wind_kmh"`
	MaxGustKmh           float64  `json:"max_gust_kmh"`
	WetSamples           int      `json:"wet_samples"`
	FirstWetMeters       *float64 `json:"first_wet_m,omitempty"`
	FirstWetCode         int      `json:"first_wet_code,omitempty"`
}

// RouteSummary is the full description of a planned ride.
type RouteSummary struct {
	Name                string           `json:"name"`
	PointCount          int              `json:"point_count"`
	DistanceMeters      float64          `json:"distance_meters"`
	ElevationGainMeters *float64         `json:"elevation_gain_meters,omitempty"`
	ElevationLossMeters *float64         `json:"elevation_loss_meters,omitempty"`
	MinElevationMeters  *float64         `json:"min_elevation_meters,omitempty"`
	MaxElevationMeters  *float64         `json:"max_elevation_meters,omitempty"`
	Bounds              track.Bounds     `json:"bounds"`
	CoursePoints        int              `json:"course_points"`
	POIs                []POIStop        `json:"pois,omitempty"`
	POICategories       []CategoryCount  `json:"poi_categories,omitempty"`
	Plan                *PlanSummary     `json:"plan,omitempty"`
	Forecast            *ForecastSummary `json:"forecast,omitempty"`
	WindExposure        *WindExposure    `json:"wind_exposure,omitempty"`
	WindSegments        []WindSegment    `json:"wind_segments,omitempty"`
	Notes               string           `json:"notes,omitempty"`
}

// Summarize derives the route summary. plan and forecast are optional.
func Summarize(t *track.ParsedTrack, plan *Plan, forecast []weather.WeatherPoint) *RouteSummary {
	if t == nil {
		return nil
	}
	s := &RouteSummary{
		Name:                t.Name,
		PointCount:          len(t.Points),
		DistanceMeters:      t.DistanceMeters,
		ElevationGainMeters: t.ElevationGainMeters,
		Bounds:              t.Bounds,
	}
	s.ElevationLossMeters, s.MinElevationMeters, s.MaxElevationMeters = elevationProfile(t.Points)

	if plan != nil && plan.AvgSpeedKmh > 0 {
		secs := t.DistanceMeters / (plan.AvgSpeedKmh / 3.6)
		s.Plan = &PlanSummary{
			Start:           plan.Start,
			Finish:          plan.Start.Add(time.Duration(secs * float64(time.Second))),
			AvgSpeedKmh:     plan.AvgSpeedKmh,
			DurationSeconds: secs,
		}
	}
	if len(forecast) > 0 {
		s.Forecast = summarizeForecast(forecast)
		s.WindSegments = WindSegments(forecast, t.DistanceMeters)
		s.WindExposure = ExposureOf(s.WindSegments)
	}
	return s
}

func elevationProfile(points []track.Point) (loss, lo, hi *float64) {
	var prev *float64
	for _, p := range points {
		e := p.Elevation
		if e == nil {
			continue
		}
		if lo == nil {
			lo, hi, loss = floatPtr(*e), floatPtr(*e), floatPtr(0)
		}
		*lo = math.Min(*lo, *e)
		*hi = math.Max(*hi, *e)
		if prev != nil && *e < *prev {
			*loss += *prev - *e
		}
		prev = e
	}
	return loss, lo, hi
}

func summarizeForecast(points []weather.WeatherPoint) *ForecastSummary {
	first := points[0]
	f := &ForecastSummary{
		Samples:       len(points),
		MinTempC:      first.TempC,
		MaxTempC:      first.TempC,
		MinFeelsLikeC: first.FeelsLikeC,
		MaxFeelsLikeC: first.FeelsLikeC,
	}
	for _, p := range points {
		f.MinTempC = math.Min(f.MinTempC, p.TempC)
		f.MaxTempC = math.Max(f.MaxTempC, p.TempC)
		f.MinFeelsLikeC = math.Min(f.MinFeelsLikeC, p.FeelsLikeC)
		f.MaxFeelsLikeC = math.Max(f.MaxFeelsLikeC, p.FeelsLikeC)
		f.MaxPrecipProbability = math.Max(f.MaxPrecipProbability, p.PrecipProbability)
		f.PrecipMm += p.PrecipMm
		f.MaxWindKmh = math.Max(f.MaxWindKmh, p.WindSpeedKmh)
		f.MaxGustKmh = math.Max(f.MaxGustKmh, p.WindGustsKmh)

		if p.PrecipProbability >= wetProbability || IsWet(p.WeatherCode) {
			f.WetSamples++
			if f.FirstWetMeters == nil {
				f.FirstWetMeters = floatPtr(p.DistanceFromStartMeters)
				f.FirstWetCode = p.WeatherCode
			}
		}
	}
	return f
}

func floatPtr(v float64) *float64 {
	return &v
}
