package weather

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
)

// DefaultCacheTTL is how long a fetched forecast stays valid.
const DefaultCacheTTL = 30 * time.Minute

// CacheKey identifies a forecast for one route ridden from one planned start.
type CacheKey struct {
	RouteID     string
	StartTime   time.Time
	AvgSpeedKmh float64
}

func (k CacheKey) String() string {
	return "cycleroute:forecast:" + k.RouteID + ":" +
		strconv.FormatInt(k.StartTime.Unix(), 10) + ":" +
		strconv.FormatFloat(k.AvgSpeedKmh, 'f', -1, 64)
}

// cachedPoint is the stored form of a WeatherPoint. The wind classification
// is left out and recomputed from the two angles on read.
type cachedPoint struct {
	Latitude                float64   `json:"latitude"`
	Longitude               float64   `json:"longitude"`
	Elevation               *float64  `json:"elevation,omitempty"`
	DistanceFromStartMeters float64   `json:"distance_from_start_m"`
	EstimatedArrivalTime    time.Time `json:"estimated_arrival_time"`
	TravelDirectionDeg      float64   `json:"travel_direction_deg"`
	TempC                   float64   `json:"temp_c"`
	FeelsLikeC              float64   `json:"feels_like_c"`
	PrecipProbability       float64   `json:"precip_probability"`
	PrecipMm                float64   `json:"precip_mm"`
	WindSpeedKmh            float64   `json:"wind_speed_kmh"`
	WindGustsKmh            float64   `json:"wind_gusts_kmh"`
	WindDirectionDeg        float64   `json:"wind_direction_deg"`
	CloudCoverPercent       float64   `json:"cloud_cover_percent"`
	WeatherCode             int       `json:"weather_code"`
}

type cacheEntry struct {
	FetchedAt time.Time     `json:"fetched_at"`
	Points    []cachedPoint `json:"points"`
}

// RedisCache stores enriched forecasts in Redis with a fixed TTL.
type RedisCache struct {
	client *redis.Client
	ttl    time.Duration
}

// NewRedisCache wraps client; a non-positive ttl selects DefaultCacheTTL.
func NewRedisCache(client *redis.Client, ttl time.Duration) *RedisCache {
	if ttl <= 0 {
		ttl = DefaultCacheTTL
	}
	return &RedisCache{client: client, ttl: ttl}
}

// Get returns the cached forecast for key. A miss returns (nil, false, nil).
func (c *RedisCache) Get(ctx context.Context, key CacheKey) ([]WeatherPoint, bool, error) {
	raw, err := c.client.Get(ctx, key.String()).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("read forecast cache: %w", err)
	}

	var entry cacheEntry
	if err := json.Unmarshal(raw, &entry); err != nil {
		return nil, false, fmt.Errorf("decode forecast cache: %w", err)
	}
	out := make([]WeatherPoint, len(entry.Points))
	for i, p := range entry.Points {
		out[i] = WeatherPoint{
			SamplePoint: SamplePoint{
				Latitude:                p.Latitude,
				Longitude:               p.Longitude,
				Elevation:               p.Elevation,
				DistanceFromStartMeters: p.DistanceFromStartMeters,
				EstimatedArrivalTime:    p.EstimatedArrivalTime,
				TravelDirectionDeg:      p.TravelDirectionDeg,
			},
			TempC:              p.TempC,
			FeelsLikeC:         p.FeelsLikeC,
			PrecipProbability:  p.PrecipProbability,
			PrecipMm:           p.PrecipMm,
			WindSpeedKmh:       p.WindSpeedKmh,
			WindGustsKmh:       p.WindGustsKmh,
			WindDirectionDeg:   p.WindDirectionDeg,
			CloudCoverPercent:  p.CloudCoverPercent,
			WeatherCode:        p.WeatherCode,
			WindClassification: ClassifyWind(p.TravelDirectionDeg, p.WindDirectionDeg),
		}
	}
	return out, true, nil
}

// Put stores points under key, replacing any previous forecast.
func (c *RedisCache) Put(ctx context.Context, key CacheKey, points []WeatherPoint) error {
	entry := cacheEntry{FetchedAt: time.Now().UTC(), Points: make([]cachedPoint, len(points))}
	for i, p := range points {
		entry.Points[i] = cachedPoint{
			Latitude:                p.Latitude,
			Longitude:               p.Longitude,
			Elevation:               p.Elevation,
			DistanceFromStartMeters: p.DistanceFromStartMeters,
			EstimatedArrivalTime:    p.EstimatedArrivalTime,
			TravelDirectionDeg:      p.TravelDirectionDeg,
			TempC:                   p.TempC,
			FeelsLikeC:              p.FeelsLikeC,
			PrecipProbability:       p.PrecipProbability,
			PrecipMm:                p.PrecipMm,
			WindSpeedKmh:            p.WindSpeedKmh,
			WindGustsKmh:            p.WindGustsKmh,
			WindDirectionDeg:        p.WindDirectionDeg,
			CloudCoverPercent:       p.CloudCoverPercent,
			WeatherCode:             p.WeatherCode,
		}
	}
	raw, err := json.Marshal(entry)
	if err != nil {
		return fmt.Errorf("encode forecast cache: %w", err)
	}
	if err := c.client.Set(ctx, key.String(), raw, c.ttl).Err(); err != nil {
		return fmt.Errorf("write forecast cache: %w", err)
	}
	return nil
}

// Invalidate drops every cached forecast for a route.
func (c *RedisCache) Invalidate(ctx context.Context, routeID string) error {
	iter := c.client.Scan(ctx, 0, "cycleroute:forecast:"+routeID+":*", 100).Iterator()
	var keys []string
	for iter.Next(ctx) {
		keys = append(keys, iter.Val())
	}
	if err := iter.Err(); err != nil {
		return fmt.Errorf("scan forecast cache: %w", err)
	}
	if len(keys) == 0 {
		return nil
	}
	if err := c.client.Del(ctx, keys...).Err(); err != nil {
		return fmt.Errorf("delete forecast cache: %w", err)
	}
	return nil
}
