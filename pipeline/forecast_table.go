package pipeline

import (
	"bytes"
	"encoding/csv"
	"math"
	"strconv"
	"time"

	"github.com/lucasjlepore/cycleroute/weather"
)

var forecastColumns = []string{
	"distance_m", "arrival_utc", "latitude", "longitude", "elevation_m", "travel_direction_deg",
	"temp_c", "feels_like_c", "precip_probability", "precip_mm", "wind_speed_kmh", "wind_gusts_kmh",
	"wind_direction_deg", "cloud_cover_percent", "weather_code", "wind_type", "relative_wind_angle",
}

type forecastParquetRow struct {
	DistanceM          float64 `parquet:"name=distance_m, type=DOUBLE"`
	ArrivalUTC         string  `parquet:"name=arrival_utc, type=BYTE_ARRAY, convertedtype=UTF8"`
	Latitude           float64 `parquet:"name=latitude, type=DOUBLE"`
	Longitude          float64 `parquet:"name=longitude, type=DOUBLE"`
	ElevationM         float64 `parquet:"name=elevation_m, type=DOUBLE"`
	TravelDirectionDeg float64 `parquet:"name=travel_direction_deg, type=DOUBLE"`
	TempC              float64 `parquet:"name=temp_c, type=DOUBLE"`
	FeelsLikeC         float64 `parquet:"name=feels_like_c, type=DOUBLE"`
	PrecipProbability  float64 `parquet:"name=precip_probability, type=DOUBLE"`
	PrecipMm           float64 `parquet:"name=precip_mm, type=DOUBLE"`
	WindSpeedKmh       float64 `parquet:"name=wind_speed_kmh, type=DOUBLE"`
	WindGustsKmh       float64 `parquet:"name=wind_gusts_kmh, type=DOUBLE"`
	WindDirectionDeg   float64 `parquet:"name=wind_direction_deg, type=DOUBLE"`
	CloudCoverPercent  float64 `parquet:"name=cloud_cover_percent, type=DOUBLE"`
	WeatherCode        int32   `parquet:"name=weather_code, type=INT32"`
	WindType           string  `parquet:"name=wind_type, type=BYTE_ARRAY, convertedtype=UTF8, encoding=PLAIN_DICTIONARY"`
	RelativeWindAngle  float64 `parquet:"name=relative_wind_angle, type=DOUBLE"`
}

func forecastRow(p weather.WeatherPoint) forecastParquetRow {
	return forecastParquetRow{
		DistanceM:          p.DistanceFromStartMeters,
		ArrivalUTC:         p.EstimatedArrivalTime.UTC().Format(time.RFC3339),
		Latitude:           p.Latitude,
		Longitude:          p.Longitude,
		ElevationM:         valueOrNaN(p.Elevation),
		TravelDirectionDeg: p.TravelDirectionDeg,
		TempC:              p.TempC,
		FeelsLikeC:         p.FeelsLikeC,
		PrecipProbability:  p.PrecipProbability,
		PrecipMm:           p.PrecipMm,
		WindSpeedKmh:       p.WindSpeedKmh,
		WindGustsKmh:       p.WindGustsKmh,
		WindDirectionDeg:   p.WindDirectionDeg,
		CloudCoverPercent:  p.CloudCoverPercent,
		WeatherCode:        int32(p.WeatherCode),
		WindType:           string(p.WindClassification.Type),
		RelativeWindAngle:  p.WindClassification.RelativeAngle,
	}
}

func marshalForecastCSV(points []weather.WeatherPoint) ([]byte, error) {
	var buf bytes.Buffer
	w := csv.NewWriter(&buf)
	if err := w.Write(forecastColumns); err != nil {
		return nil, err
	}
	for _, p := range points {
		r := forecastRow(p)
		row := []string{
			formatFloat(r.DistanceM),
			r.ArrivalUTC,
			formatFloat(r.Latitude),
			formatFloat(r.Longitude),
			formatFloatPtr(p.Elevation),
			formatFloat(r.TravelDirectionDeg),
			formatFloat(r.TempC),
			formatFloat(r.FeelsLikeC),
			formatFloat(r.PrecipProbability),
			formatFloat(r.PrecipMm),
			formatFloat(r.WindSpeedKmh),
			formatFloat(r.WindGustsKmh),
			formatFloat(r.WindDirectionDeg),
			formatFloat(r.CloudCoverPercent),
			strconv.Itoa(int(r.WeatherCode)),
			r.WindType,
			formatFloat(r.RelativeWindAngle),
		}
		if err := w.Write(row); err != nil {
			return nil, err
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func valueOrNaN(v *float64) float64 {
	if v == nil {
		return math.NaN()
	}
	return *v
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'f', 6, 64)
}

func formatFloatPtr(v *float64) string {
	if v == nil {
		return ""
	}
	return formatFloat(*v)
}
