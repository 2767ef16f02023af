package weather

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"
)

const (
	DefaultForecastURL      = "https://api.open-meteo.com/v1/forecast"
	DefaultRequestTimeout   = 10 * time.Second
	DefaultRetries          = 2
	defaultRetryBackoffUnit = time.Second
)

// hourlyFields is the fixed set of hourly variables requested per point.
var hourlyFields = []string{
	"temperature_2m",
	"apparent_temperature",
	"precipitation_probability",
	"precipitation",
	"wind_speed_10m",
	"wind_direction_10m",
	"wind_gusts_10m",
	"weather_code",
	"cloud_cover",
}

// HourlyForecast is an hourly time series for one location. All slices have
// the same length as Time.
type HourlyForecast struct {
	Time                     []time.Time
	TemperatureC             []float64
	ApparentTemperatureC     []float64
	PrecipitationProbability []float64
	PrecipitationMm          []float64
	WindSpeedKmh             []float64
	WindDirectionDeg         []float64
	WindGustsKmh             []float64
	WeatherCode              []int
	CloudCoverPercent        []float64
}

// Forecaster fetches an hourly forecast for a coordinate.
type Forecaster interface {
	Hourly(ctx context.Context, lat, lon float64) (*HourlyForecast, error)
}

// OpenMeteo is a Forecaster backed by the Open-Meteo forecast API.
type OpenMeteo struct {
	BaseURL    string
	HTTPClient *http.Client
	Timeout    time.Duration
	Retries    int
	// Backoff returns the wait before retry attempt n (1-based).
	Backoff func(attempt int) time.Duration
}

// NewOpenMeteo returns a client with the default endpoint, a 10 second
// per-request timeout and two retries with linear backoff.
func NewOpenMeteo() *OpenMeteo {
	return &OpenMeteo{
		BaseURL:    DefaultForecastURL,
		HTTPClient: http.DefaultClient,
		Timeout:    DefaultRequestTimeout,
		Retries:    DefaultRetries,
		Backoff:    LinearBackoff(defaultRetryBackoffUnit),
	}
}

// LinearBackoff waits unit, 2*unit, 3*unit... between attempts.
func LinearBackoff(unit time.Duration) func(int) time.Duration {
	return func(attempt int) time.Duration {
		return time.Duration(attempt) * unit
	}
}

type openMeteoResponse struct {
	Hourly struct {
		Time                     []int64    `json:"time"`
		Temperature2m            []*float64 `json:"temperature_2m"`
		ApparentTemperature      []*float64 `json:"apparent_temperature"`
		PrecipitationProbability []*float64 `json:"precipitation_probability"`
		Precipitation            []*float64 `json:"precipitation"`
		WindSpeed10m             []*float64 `json:"wind_speed_10m"`
		WindDirection10m         []*float64 `json:"wind_direction_10m"`
		WindGusts10m             []*float64 `json:"wind_gusts_10m"`
		WeatherCode              []*float64 `json:"weather_code"`
		CloudCover               []*float64 `json:"cloud_cover"`
	} `json:"hourly"`
}

// RequestURL builds the forecast URL for a coordinate.
func (c *OpenMeteo) RequestURL(lat, lon float64) string {
	base := c.BaseURL
	if base == "" {
		base = DefaultForecastURL
	}
	q := url.Values{}
	q.Set("latitude", strconv.FormatFloat(lat, 'f', 4, 64))
	q.Set("longitude", strconv.FormatFloat(lon, 'f', 4, 64))
	q.Set("hourly", strings.Join(hourlyFields, ","))
	q.Set("timezone", "GMT")
	q.Set("timeformat", "unixtime")
	return base + "?" + q.Encode()
}

// Hourly fetches the forecast, retrying failed attempts.
func (c *OpenMeteo) Hourly(ctx context.Context, lat, lon float64) (*HourlyForecast, error) {
	reqURL := c.RequestURL(lat, lon)

	var lastErr error
	for attempt := 0; attempt <= c.Retries; attempt++ {
		if attempt > 0 {
			if err := sleepContext(ctx, c.backoff(attempt)); err != nil {
				return nil, fmt.Errorf("open-meteo request for %s: %w", reqURL, err)
			}
		}
		forecast, err := c.fetch(ctx, reqURL)
		if err == nil {
			return forecast, nil
		}
		lastErr = err
		if ctx.Err() != nil {
			break
		}
	}
	return nil, fmt.Errorf("open-meteo request failed for %s after %d attempts: %w", reqURL, c.Retries+1, lastErr)
}

func (c *OpenMeteo) backoff(attempt int) time.Duration {
	if c.Backoff == nil {
		return LinearBackoff(defaultRetryBackoffUnit)(attempt)
	}
	return c.Backoff(attempt)
}

func (c *OpenMeteo) fetch(ctx context.Context, reqURL string) (*HourlyForecast, error) {
	timeout := c.Timeout
	if timeout <= 0 {
		timeout = DefaultRequestTimeout
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	client := c.HTTPClient
	if client == nil {
		client = http.DefaultClient
	}
	resp, err := client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))
		return nil, fmt.Errorf("unexpected status %d", resp.StatusCode)
	}

	var body openMeteoResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return nil, fmt.Errorf("decode forecast: %w", err)
	}
	return body.toForecast()
}

func (r *openMeteoResponse) toForecast() (*HourlyForecast, error) {
	h := r.Hourly
	n := len(h.Time)
	if n == 0 {
		return nil, fmt.Errorf("forecast has no hourly data")
	}
	series := map[string][]*float64{
		"temperature_2m":            h.Temperature2m,
		"apparent_temperature":      h.ApparentTemperature,
		"precipitation_probability": h.PrecipitationProbability,
		"precipitation":             h.Precipitation,
		"wind_speed_10m":            h.WindSpeed10m,
		"wind_direction_10m":        h.WindDirection10m,
		"wind_gusts_10m":            h.WindGusts10m,
		"weather_code":              h.WeatherCode,
		"cloud_cover":               h.CloudCover,
	}
	for name, values := range series {
		if len(values) != n {
			return nil, fmt.Errorf("hourly %s has %d values, want %d", name, len(values), n)
		}
	}

	out := &HourlyForecast{
		Time:                     make([]time.Time, n),
		TemperatureC:             derefAll(h.Temperature2m),
		ApparentTemperatureC:     derefAll(h.ApparentTemperature),
		PrecipitationProbability: derefAll(h.PrecipitationProbability),
		PrecipitationMm:          derefAll(h.Precipitation),
		WindSpeedKmh:             derefAll(h.WindSpeed10m),
		WindDirectionDeg:         derefAll(h.WindDirection10m),
		WindGustsKmh:             derefAll(h.WindGusts10m),
		WeatherCode:              make([]int, n),
		CloudCoverPercent:        derefAll(h.CloudCover),
	}
	for i, ts := range h.Time {
		out.Time[i] = time.Unix(ts, 0).UTC()
	}
	for i, code := range h.WeatherCode {
		if code != nil {
			out.WeatherCode[i] = int(*code)
		}
	}
	return out, nil
}

// Open-Meteo reports missing hours as null; they read as zero.
func derefAll(values []*float64) []float64 {
	out := make([]float64, len(values))
	for i, v := range values {
		if v != nil {
			out[i] = *v
		}
	}
	return out
}

func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
