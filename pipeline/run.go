// Package pipeline composes the parser, sampler, enricher, merger and
// exporters into a single route bundle.
package pipeline

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/lucasjlepore/cycleroute"
	"github.com/lucasjlepore/cycleroute/coursepoint"
	"github.com/lucasjlepore/cycleroute/fitexport"
	"github.com/lucasjlepore/cycleroute/gpxexport"
	"github.com/lucasjlepore/cycleroute/track"
	"github.com/lucasjlepore/cycleroute/weather"
	"github.com/paulmach/orb"
	orbgeojson "github.com/paulmach/orb/geojson"
	"go.uber.org/zap"
)

const (
	FormatParquet = "parquet"
	FormatCSV     = "csv"

	geojsonName  = "route.geojson"
	summaryName  = "summary.json"
	briefingName = "briefing.md"
	manifestName = "manifest.json"
)

var unsafeFilenameChars = regexp.MustCompile(`[^a-zA-Z0-9_-]`)

// ExportFilename is the download name for an exported route:
// the route name with unsafe characters replaced, then the date.
func ExportFilename(name string, date time.Time, ext string) string {
	return unsafeFilenameChars.ReplaceAllString(name, "_") + "-" + date.Format("2006-01-02") + "." + ext
}

// RouteID is the default route identity, a short content hash of the track
// document.
func RouteID(data []byte) string {
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:8])
}

// Runner builds route bundles. Enricher and Cache are optional; without an
// Enricher no forecast is produced.
type Runner struct {
	Enricher *weather.Enricher
	Cache    ForecastCache
	Logger   *zap.Logger
	Now      func() time.Time
}

func (r *Runner) logger() *zap.Logger {
	if r.Logger == nil {
		return zap.NewNop()
	}
	return r.Logger
}

func (r *Runner) now() time.Time {
	if r.Now == nil {
		return time.Now().UTC()
	}
	return r.Now().UTC()
}

// Run reads the inputs named by opts, builds the bundle and writes every
// artifact into opts.OutDir.
func (r *Runner) Run(ctx context.Context, opts Options) (*Result, error) {
	if strings.TrimSpace(opts.TrackPath) == "" {
		return nil, fmt.Errorf("track path is required")
	}
	if strings.TrimSpace(opts.OutDir) == "" {
		return nil, fmt.Errorf("output directory is required")
	}
	format, err := normalizeFormat(opts.Format)
	if err != nil {
		return nil, err
	}
	hasPlan := !opts.Start.IsZero() || opts.AvgSpeedKmh > 0
	if hasPlan {
		if err := weather.ValidateSpeed(opts.AvgSpeedKmh); err != nil {
			return nil, fmt.Errorf("plan needs an average speed: %w", err)
		}
	}

	data, err := os.ReadFile(opts.TrackPath)
	if err != nil {
		return nil, fmt.Errorf("read track: %w", err)
	}
	in := Input{
		Track:       data,
		RouteID:     opts.RouteID,
		Units:       opts.Units,
		Format:      format,
		SkipWeather: opts.SkipWeather,
	}
	if opts.AnnotationsPath != "" {
		in.Annotations, err = readAnnotationsFile(opts.AnnotationsPath)
		if err != nil {
			return nil, err
		}
	}
	if hasPlan {
		in.Plan = &cycleroute.Plan{Start: opts.Start, AvgSpeedKmh: opts.AvgSpeedKmh}
	}

	b, err := r.assemble(ctx, in)
	if err != nil {
		return nil, err
	}
	if err := ensureOutputDir(opts.OutDir, opts.Overwrite); err != nil {
		return nil, err
	}

	res := &Result{OutputDir: opts.OutDir}
	for _, f := range b.Manifest.Files {
		path := filepath.Join(opts.OutDir, f.Name)
		if err := os.WriteFile(path, b.Files[f.Name], 0o644); err != nil {
			return nil, fmt.Errorf("write %s: %w", f.Name, err)
		}
		switch {
		case f.ContentType == gpxexport.ContentType:
			res.GPXPath = path
		case f.ContentType == fitexport.ContentType:
			res.FITPath = path
		case f.Name == geojsonName:
			res.GeoJSONPath = path
		case f.Name == summaryName:
			res.SummaryPath = path
		case f.Name == briefingName:
			res.BriefingPath = path
		}
	}

	if len(b.Forecast) > 0 {
		name := forecastName(format)
		path := filepath.Join(opts.OutDir, name)
		var table []byte
		switch format {
		case FormatParquet:
			if err := writeForecastParquet(path, b.Forecast); err != nil {
				return nil, fmt.Errorf("write forecast parquet: %w", err)
			}
			if table, err = os.ReadFile(path); err != nil {
				return nil, fmt.Errorf("read forecast parquet: %w", err)
			}
		case FormatCSV:
			if table, err = marshalForecastCSV(b.Forecast); err != nil {
				return nil, fmt.Errorf("encode forecast csv: %w", err)
			}
			if err := os.WriteFile(path, table, 0o644); err != nil {
				return nil, fmt.Errorf("write forecast csv: %w", err)
			}
		}
		b.add(name, forecastContentType(format), table)
		res.ForecastPath = path
	}

	res.ManifestPath = filepath.Join(opts.OutDir, manifestName)
	if err := writeJSON(res.ManifestPath, b.Manifest); err != nil {
		return nil, fmt.Errorf("write %s: %w", manifestName, err)
	}
	r.logger().Info("bundle written",
		zap.String("bundle_id", b.Manifest.BundleID),
		zap.String("dir", opts.OutDir),
		zap.Int("files", len(b.Manifest.Files)+1))
	return res, nil
}

// Build produces the complete bundle in memory, manifest included.
func (r *Runner) Build(ctx context.Context, in Input) (*Bundle, error) {
	format, err := normalizeFormat(in.Format)
	if err != nil {
		return nil, err
	}
	in.Format = format

	b, err := r.assemble(ctx, in)
	if err != nil {
		return nil, err
	}
	if len(b.Forecast) > 0 {
		var table []byte
		switch format {
		case FormatParquet:
			table, err = marshalForecastParquet(b.Forecast)
		case FormatCSV:
			table, err = marshalForecastCSV(b.Forecast)
		}
		if err != nil {
			return nil, fmt.Errorf("encode forecast %s: %w", format, err)
		}
		b.add(forecastName(format), forecastContentType(format), table)
	}

	manifest, err := marshalJSON(b.Manifest)
	if err != nil {
		return nil, fmt.Errorf("encode %s: %w", manifestName, err)
	}
	b.Files[manifestName] = manifest
	return b, nil
}

// assemble builds every artifact except the forecast table and manifest
// bytes, which depend on where the bundle is going.
func (r *Runner) assemble(ctx context.Context, in Input) (*Bundle, error) {
	parsed, err := track.Parse(in.Track)
	if err != nil {
		return nil, fmt.Errorf("parse track: %w", err)
	}
	units := in.Units
	if units == "" {
		units = cycleroute.Metric
	}
	now := r.now()
	sum := sha256.Sum256(in.Track)
	routeID := in.RouteID
	if routeID == "" {
		routeID = RouteID(in.Track)
	}

	b := &Bundle{
		Track: parsed,
		Files: make(map[string][]byte),
		Manifest: Manifest{
			BundleID:    uuid.NewString(),
			GeneratedAt: now.Format(time.RFC3339),
			RouteID:     routeID,
			RouteName:   parsed.Name,
			Plan:        in.Plan,
			Source: SourceInfo{
				Format:    sourceFormat(in.Track),
				SHA256:    hex.EncodeToString(sum[:]),
				SizeBytes: int64(len(in.Track)),
			},
		},
	}

	var cues []coursepoint.Cue
	var pois []coursepoint.POI
	if in.Annotations != nil {
		cues, pois = in.Annotations.Cues, in.Annotations.POIs
	}
	b.CoursePoints = coursepoint.Merge(parsed.Points, cues, pois)
	b.Manifest.CoursePoints = len(b.CoursePoints)

	if in.Plan != nil && !in.SkipWeather && r.Enricher != nil {
		forecast, cached, err := r.Forecast(ctx, routeID, parsed.Points, *in.Plan)
		switch {
		case errors.Is(err, weather.ErrRouteTooShort):
			b.Manifest.Warnings = append(b.Manifest.Warnings, "route too short to sample, forecast skipped")
		case err != nil:
			return nil, err
		default:
			b.Forecast = forecast
			b.Manifest.ForecastCached = cached
			b.Manifest.ForecastSamples = len(forecast)
		}
	} else if in.Plan != nil {
		b.Manifest.Warnings = append(b.Manifest.Warnings, "weather skipped")
	}

	gpxData, err := gpxexport.Build(gpxexport.Options{
		Name:   parsed.Name,
		Points: parsed.Points,
		POIs:   pois,
		Now:    now,
	})
	if err != nil {
		return nil, err
	}
	b.add(ExportFilename(parsed.Name, now, "gpx"), gpxexport.ContentType, gpxData)

	fitData, err := fitexport.Build(fitexport.Options{
		Name:         parsed.Name,
		Points:       parsed.Points,
		CoursePoints: b.CoursePoints,
	})
	if err != nil {
		return nil, fmt.Errorf("encode fit: %w", err)
	}
	b.add(ExportFilename(parsed.Name, now, "fit"), fitexport.ContentType, fitData)

	geo, err := routeFeatures(parsed, b.CoursePoints).MarshalJSON()
	if err != nil {
		return nil, fmt.Errorf("encode %s: %w", geojsonName, err)
	}
	b.add(geojsonName, "application/geo+json", geo)

	b.Summary = cycleroute.Summarize(parsed, in.Plan, b.Forecast)
	b.Summary.CoursePoints = len(b.CoursePoints)
	b.Summary.AddPOIs(parsed.Points, pois)
	b.Briefing = cycleroute.BuildRouteBriefing(b.Summary, units)
	b.Summary.Notes = b.Briefing

	summary, err := marshalJSON(b.Summary)
	if err != nil {
		return nil, fmt.Errorf("encode %s: %w", summaryName, err)
	}
	b.add(summaryName, "application/json", summary)
	b.add(briefingName, "text/markdown", []byte(b.Briefing))
	return b, nil
}

// Forecast returns the enriched forecast for a planned ride, preferring a
// cached copy. A fresh forecast replaces every cached entry for the route.
func (r *Runner) Forecast(ctx context.Context, routeID string, points []track.Point, plan cycleroute.Plan) ([]weather.WeatherPoint, bool, error) {
	if r.Enricher == nil {
		return nil, false, fmt.Errorf("forecast: no enricher configured")
	}
	samples, err := weather.PlanSamples(points, plan.Start, plan.AvgSpeedKmh)
	if err != nil {
		return nil, false, err
	}

	log := r.logger().With(zap.String("route_id", routeID))
	key := weather.CacheKey{RouteID: routeID, StartTime: plan.Start, AvgSpeedKmh: plan.AvgSpeedKmh}
	if r.Cache != nil {
		cached, ok, err := r.Cache.Get(ctx, key)
		switch {
		case err != nil:
			log.Warn("forecast cache read failed", zap.Error(err))
		case ok:
			log.Debug("forecast cache hit", zap.Int("samples", len(cached)))
			return cached, true, nil
		}
	}

	forecast, err := r.Enricher.Enrich(ctx, samples)
	if err != nil {
		return nil, false, err
	}
	if r.Cache != nil {
		if err := r.Cache.Invalidate(ctx, routeID); err != nil {
			log.Warn("forecast cache invalidate failed", zap.Error(err))
		}
		if err := r.Cache.Put(ctx, key, forecast); err != nil {
			log.Warn("forecast cache write failed", zap.Error(err))
		}
	}
	return forecast, false, nil
}

func (b *Bundle) add(name, contentType string, data []byte) {
	sum := sha256.Sum256(data)
	b.Files[name] = data
	b.Manifest.Files = append(b.Manifest.Files, ManifestFile{
		Name:        name,
		ContentType: contentType,
		SizeBytes:   int64(len(data)),
		SHA256:      hex.EncodeToString(sum[:]),
	})
}

func routeFeatures(t *track.ParsedTrack, cps []coursepoint.CoursePoint) *orbgeojson.FeatureCollection {
	fc := orbgeojson.NewFeatureCollection()
	fc.Append(t.Feature())
	for _, cp := range cps {
		f := orbgeojson.NewFeature(orb.Point{cp.Longitude, cp.Latitude})
		f.Properties["name"] = cp.Name
		f.Properties["type"] = string(cp.Type)
		f.Properties["distance_m"] = cp.DistanceMeters
		fc.Append(f)
	}
	return fc
}

func normalizeFormat(format string) (string, error) {
	format = strings.ToLower(strings.TrimSpace(format))
	if format == "" {
		format = FormatParquet
	}
	if format != FormatParquet && format != FormatCSV {
		return "", fmt.Errorf("unsupported format %q (expected parquet|csv)", format)
	}
	return format, nil
}

func forecastName(format string) string {
	return "forecast." + format
}

func forecastContentType(format string) string {
	if format == FormatCSV {
		return "text/csv"
	}
	return "application/vnd.apache.parquet"
}

func sourceFormat(data []byte) string {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) > 0 && trimmed[0] == '{' {
		return "geojson"
	}
	return "gpx"
}

func readAnnotationsFile(path string) (*coursepoint.Annotations, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open annotations: %w", err)
	}
	defer f.Close()
	return coursepoint.ReadAnnotations(f)
}

func ensureOutputDir(path string, overwrite bool) error {
	if err := os.MkdirAll(path, 0o755); err != nil {
		return fmt.Errorf("create output directory: %w", err)
	}
	entries, err := os.ReadDir(path)
	if err != nil {
		return fmt.Errorf("read output directory: %w", err)
	}
	if len(entries) > 0 && !overwrite {
		return fmt.Errorf("output directory is not empty: %s (set overwrite=true to allow)", path)
	}
	return nil
}

func marshalJSON(v any) ([]byte, error) {
	out, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return nil, err
	}
	return append(out, '\n'), nil
}

func writeJSON(path string, v any) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()
	enc := json.NewEncoder(f)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
