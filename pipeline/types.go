package pipeline

import (
	"context"
	"time"

	"github.com/lucasjlepore/cycleroute"
	"github.com/lucasjlepore/cycleroute/coursepoint"
	"github.com/lucasjlepore/cycleroute/track"
	"github.com/lucasjlepore/cycleroute/weather"
)

// Options configures an on-disk bundle run.
type Options struct {
	TrackPath       string
	AnnotationsPath string
	OutDir          string
	RouteID         string
	Start           time.Time
	AvgSpeedKmh     float64
	Format          string // parquet|csv
	Units           cycleroute.Units
	Overwrite       bool
	SkipWeather     bool
}

// Result returns generated output paths.
type Result struct {
	OutputDir    string `json:"output_dir"`
	ManifestPath string `json:"manifest_path"`
	GPXPath      string `json:"gpx_path"`
	FITPath      string `json:"fit_path"`
	ForecastPath string `json:"forecast_path,omitempty"`
	GeoJSONPath  string `json:"geojson_path"`
	SummaryPath  string `json:"summary_path"`
	BriefingPath string `json:"briefing_path"`
}

// Input is one in-memory bundle request. Plan is nil when no ride is planned,
// in which case no forecast is fetched.
type Input struct {
	Track       []byte
	Annotations *coursepoint.Annotations
	RouteID     string
	Plan        *cycleroute.Plan
	Units       cycleroute.Units
	Format      string
	SkipWeather bool
}

// Bundle is every generated artifact plus the intermediate results they were
// built from. Files is keyed by file name.
type Bundle struct {
	Manifest     Manifest
	Files        map[string][]byte
	Track        *track.ParsedTrack
	CoursePoints []coursepoint.CoursePoint
	Forecast     []weather.WeatherPoint
	Summary      *cycleroute.RouteSummary
	Briefing     string
}

// Manifest describes a bundle. It is written last and does not list itself.
type Manifest struct {
	BundleID        string           `json:"bundle_id"`
	GeneratedAt     string           `json:"generated_at"`
	RouteID         string           `json:"route_id"`
	RouteName       string           `json:"route_name"`
	Source          SourceInfo       `json:"source"`
	Plan            *cycleroute.Plan `json:"plan,omitempty"`
	CoursePoints    int              `json:"course_points"`
	ForecastSamples int              `json:"forecast_samples"`
	ForecastCached  bool             `json:"forecast_cached"`
	Files           []ManifestFile   `json:"files"`
	Warnings        []string         `json:"warnings,omitempty"`
}

// SourceInfo identifies the input track document.
type SourceInfo struct {
	Format    string `json:"format"` // gpx|geojson
	SHA256    string `json:"sha256"`
	SizeBytes int64  `json:"size_bytes"`
}

// ManifestFile is one generated artifact.
type ManifestFile struct {
	Name        string `json:"name"`
	ContentType string `json:"content_type"`
	SizeBytes   int64  `json:"size_bytes"`
	SHA256      string `json:"sha256"`
}

// ForecastCache stores enriched forecasts between runs. weather.RedisCache
// satisfies it.
type ForecastCache interface {
	Get(ctx context.Context, key weather.CacheKey) ([]weather.WeatherPoint, bool, error)
	Put(ctx context.Context, key weather.CacheKey, points []weather.WeatherPoint) error
	Invalidate(ctx context.Context, routeID string) error
}
