package weather

import (
	"context"
	"fmt"
	"math"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// DefaultBatchSize bounds concurrent forecast requests.
const DefaultBatchSize = 5

// WeatherPoint is a SamplePoint with the forecast hour nearest to its
// estimated arrival time.
type WeatherPoint struct {
	SamplePoint
	TempC              float64            `json:"temp_c"`
	FeelsLikeC         float64            `json:"feels_like_c"`
	PrecipProbability  float64            `json:"precip_probability"`
	PrecipMm           float64            `json:"precip_mm"`
	WindSpeedKmh       float64            `json:"wind_speed_kmh"`
	WindGustsKmh       float64            `json:"wind_gusts_kmh"`
	WindDirectionDeg   float64            `json:"wind_direction_deg"`
	CloudCoverPercent  float64            `json:"cloud_cover_percent"`
	WeatherCode        int                `json:"weather_code"`
	WindClassification WindClassification `json:"wind_classification"`
}

// Enricher attaches forecasts to sample points in fixed-size batches.
type Enricher struct {
	Forecaster Forecaster
	BatchSize  int
	Logger     *zap.Logger
}

// NewEnricher returns an Enricher with the default batch size.
func NewEnricher(f Forecaster, logger *zap.Logger) *Enricher {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Enricher{Forecaster: f, BatchSize: DefaultBatchSize, Logger: logger}
}

// Enrich fetches a forecast for every sample. Requests inside a batch run
// concurrently and a batch finishes before the next one starts. Output order
// matches input order. Any failed point fails the whole call and no partial
// result is returned.
func (e *Enricher) Enrich(ctx context.Context, samples []SamplePoint) ([]WeatherPoint, error) {
	if e.Forecaster == nil {
		return nil, fmt.Errorf("enrich weather: no forecaster configured")
	}
	batch := e.BatchSize
	if batch <= 0 {
		batch = DefaultBatchSize
	}
	logger := e.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	out := make([]WeatherPoint, len(samples))
	for start := 0; start < len(samples); start += batch {
		end := min(start+batch, len(samples))
		g, gctx := errgroup.WithContext(ctx)
		for i := start; i < end; i++ {
			i := i
			g.Go(func() error {
				sp := samples[i]
				forecast, err := e.Forecaster.Hourly(gctx, sp.Latitude, sp.Longitude)
				if err != nil {
					return fmt.Errorf("forecast for sample %d at %.1f m: %w", i, sp.DistanceFromStartMeters, err)
				}
				wp, err := Attach(sp, forecast)
				if err != nil {
					return fmt.Errorf("forecast for sample %d: %w", i, err)
				}
				out[i] = wp
				return nil
			})
		}
		if err := g.Wait(); err != nil {
			logger.Error("weather enrichment failed",
				zap.Int("batch_start", start),
				zap.Int("batch_end", end),
				zap.Error(err))
			return nil, fmt.Errorf("enrich weather: %w", err)
		}
		logger.Debug("weather batch complete", zap.Int("batch_start", start), zap.Int("batch_end", end))
	}
	return out, nil
}

// Attach copies the forecast hour closest to the sample's arrival time onto
// the sample and classifies the wind locally.
func Attach(sp SamplePoint, f *HourlyForecast) (WeatherPoint, error) {
	if f == nil || len(f.Time) == 0 {
		return WeatherPoint{}, fmt.Errorf("forecast has no hourly data")
	}
	idx := NearestHour(f.Time, sp.EstimatedArrivalTime)
	wp := WeatherPoint{
		SamplePoint:       sp,
		TempC:             at(f.TemperatureC, idx),
		FeelsLikeC:        at(f.ApparentTemperatureC, idx),
		PrecipProbability: at(f.PrecipitationProbability, idx),
		PrecipMm:          at(f.PrecipitationMm, idx),
		WindSpeedKmh:      at(f.WindSpeedKmh, idx),
		WindGustsKmh:      at(f.WindGustsKmh, idx),
		WindDirectionDeg:  at(f.WindDirectionDeg, idx),
		CloudCoverPercent: at(f.CloudCoverPercent, idx),
	}
	if idx < len(f.WeatherCode) {
		wp.WeatherCode = f.WeatherCode[idx]
	}
	wp.WindClassification = ClassifyWind(sp.TravelDirectionDeg, wp.WindDirectionDeg)
	return wp, nil
}

// NearestHour returns the index of the hour with the smallest absolute
// distance to target; the first index wins ties.
func NearestHour(hours []time.Time, target time.Time) int {
	best := 0
	bestDiff := time.Duration(math.MaxInt64)
	for i, h := range hours {
		diff := h.Sub(target)
		if diff < 0 {
			diff = -diff
		}
		if diff < bestDiff {
			bestDiff = diff
			best = i
		}
	}
	return best
}

func at(values []float64, i int) float64 {
	if i < len(values) {
		return values[i]
	}
	return 0
}
