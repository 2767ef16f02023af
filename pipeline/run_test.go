package pipeline

import (
	"bytes"
	"context"
	"encoding/csv"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/google/uuid"
	"github.com/lucasjlepore/cycleroute"
	"github.com/lucasjlepore/cycleroute/coursepoint"
	"github.com/lucasjlepore/cycleroute/fitexport"
	"github.com/lucasjlepore/cycleroute/weather"
	"github.com/redis/go-redis/v9"
	"github.com/xitongsys/parquet-go-source/local"
	"github.com/xitongsys/parquet-go/reader"
)

var (
	rideStart = time.Date(2026, 6, 1, 7, 0, 0, 0, time.UTC)
	buildTime = time.Date(2026, 5, 30, 18, 45, 0, 0, time.UTC)
)

// eastboundGPX is a 25 km track along the equator, ridden due east.
const eastboundGPX = `<?xml version="1.0" encoding="UTF-8"?>
<gpx version="1.1" creator="test" xmlns="http://www.topografix.com/GPX/1/1">
  <trk><name>Morning Loop</name><trkseg>
    <trkpt lat="0" lon="0"><ele>100</ele></trkpt>
    <trkpt lat="0" lon="0.1"><ele>140</ele></trkpt>
    <trkpt lat="0" lon="0.225"><ele>120</ele></trkpt>
  </trkseg></trk>
</gpx>`

const shortGPX = `<?xml version="1.0" encoding="UTF-8"?>
<gpx version="1.1" creator="test" xmlns="http://www.topografix.com/GPX/1/1">
  <trk><name>Block</name><trkseg>
    <trkpt lat="0" lon="0"></trkpt>
    <trkpt lat="0" lon="0.0005"></trkpt>
  </trkseg></trk>
</gpx>`

// eastWind answers every request with three hours of wind from the east.
type eastWind struct {
	mu    sync.Mutex
	calls int
	err   error
}

func (f *eastWind) Hourly(ctx context.Context, lat, lon float64) (*weather.HourlyForecast, error) {
	f.mu.Lock()
	f.calls++
	f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	return &weather.HourlyForecast{
		Time:                     []time.Time{rideStart, rideStart.Add(time.Hour), rideStart.Add(2 * time.Hour)},
		TemperatureC:             []float64{12, 14, 16},
		ApparentTemperatureC:     []float64{11, 13, 15},
		PrecipitationProbability: []float64{10, 10, 10},
		PrecipitationMm:          []float64{0, 0, 0},
		WindSpeedKmh:             []float64{18, 18, 18},
		WindDirectionDeg:         []float64{90, 90, 90},
		WindGustsKmh:             []float64{30, 30, 30},
		WeatherCode:              []int{1, 1, 1},
		CloudCoverPercent:        []float64{20, 20, 20},
	}, nil
}

func (f *eastWind) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

func testRunner(f weather.Forecaster) *Runner {
	return &Runner{
		Enricher: weather.NewEnricher(f, nil),
		Now:      func() time.Time { return buildTime },
	}
}

func testAnnotations() *coursepoint.Annotations {
	d := 5000.0
	return &coursepoint.Annotations{
		Cues: []coursepoint.Cue{{Instruction: "Turn left", Latitude: 0, Longitude: 0.045, DistanceMeters: &d}},
		POIs: []coursepoint.POI{{Name: "Cafe", Category: coursepoint.CategoryFood, Latitude: 0.001, Longitude: 0.15}},
	}
}

func plan() *cycleroute.Plan {
	return &cycleroute.Plan{Start: rideStart, AvgSpeedKmh: 25}
}

func TestExportFilename(t *testing.T) {
	date := time.Date(2026, 6, 1, 23, 0, 0, 0, time.UTC)
	cases := []struct {
		name, ext, want string
	}{
		{"Morning Loop", "gpx", "Morning_Loop-2026-06-01.gpx"},
		{"Col du Galibier!", "fit", "Col_du_Galibier_-2026-06-01.fit"},
		{"a/b\\c", "gpx", "a_b_c-2026-06-01.gpx"},
		{"Côte", "fit", "C_te-2026-06-01.fit"},
		{"ok_name-2", "gpx", "ok_name-2-2026-06-01.gpx"},
	}
	for _, tc := range cases {
		if got := ExportFilename(tc.name, date, tc.ext); got != tc.want {
			t.Fatalf("ExportFilename(%q) = %q, want %q", tc.name, got, tc.want)
		}
	}
}

func TestBuildBundle(t *testing.T) {
	f := &eastWind{}
	b, err := testRunner(f).Build(context.Background(), Input{
		Track:       []byte(eastboundGPX),
		Annotations: testAnnotations(),
		Plan:        plan(),
	})
	if err != nil {
		t.Fatalf("Build() error: %v", err)
	}

	wantFiles := []string{
		"Morning_Loop-2026-05-30.gpx",
		"Morning_Loop-2026-05-30.fit",
		"route.geojson",
		"summary.json",
		"briefing.md",
		"forecast.parquet",
	}
	if len(b.Manifest.Files) != len(wantFiles) {
		t.Fatalf("manifest lists %d files, want %d", len(b.Manifest.Files), len(wantFiles))
	}
	for i, name := range wantFiles {
		mf := b.Manifest.Files[i]
		if mf.Name != name {
			t.Fatalf("file %d = %q, want %q", i, mf.Name, name)
		}
		if int64(len(b.Files[name])) != mf.SizeBytes || mf.SizeBytes == 0 {
			t.Fatalf("%s size mismatch: manifest %d, data %d", name, mf.SizeBytes, len(b.Files[name]))
		}
		if len(mf.SHA256) != 64 {
			t.Fatalf("%s sha256 = %q", name, mf.SHA256)
		}
	}
	if _, ok := b.Files[manifestName]; !ok {
		t.Fatalf("manifest.json missing from bundle files")
	}

	if _, err := uuid.Parse(b.Manifest.BundleID); err != nil {
		t.Fatalf("bundle id %q is not a uuid: %v", b.Manifest.BundleID, err)
	}
	if b.Manifest.GeneratedAt != "2026-05-30T18:45:00Z" {
		t.Fatalf("generated_at = %q", b.Manifest.GeneratedAt)
	}
	if len(b.Manifest.RouteID) != 16 {
		t.Fatalf("default route id = %q, want 16 hex chars", b.Manifest.RouteID)
	}
	if b.Manifest.Source.Format != "gpx" || b.Manifest.Source.SizeBytes != int64(len(eastboundGPX)) {
		t.Fatalf("unexpected source info: %+v", b.Manifest.Source)
	}
	if b.Manifest.ForecastSamples != 4 || b.Manifest.ForecastCached {
		t.Fatalf("forecast samples=%d cached=%v, want 4 fresh", b.Manifest.ForecastSamples, b.Manifest.ForecastCached)
	}
	if f.count() != 4 {
		t.Fatalf("forecaster called %d times, want 4", f.count())
	}
	if b.Manifest.CoursePoints != 2 || len(b.CoursePoints) != 2 {
		t.Fatalf("expected 2 course points, got %d", len(b.CoursePoints))
	}
	if b.CoursePoints[0].Type != coursepoint.Left || b.CoursePoints[1].Type != coursepoint.Food {
		t.Fatalf("unexpected course point order: %+v", b.CoursePoints)
	}

	parquet := b.Files["forecast.parquet"]
	if !bytes.HasPrefix(parquet, []byte("PAR1")) || !bytes.HasSuffix(parquet, []byte("PAR1")) {
		t.Fatalf("forecast.parquet is missing parquet magic")
	}

	course, err := fitexport.Inspect(b.Files["Morning_Loop-2026-05-30.fit"])
	if err != nil {
		t.Fatalf("Inspect() error: %v", err)
	}
	if course.Name != "Morning Loop" || course.Records != 3 || len(course.CoursePoints) != 2 {
		t.Fatalf("unexpected course: %+v", course)
	}

	var manifest Manifest
	if err := json.Unmarshal(b.Files[manifestName], &manifest); err != nil {
		t.Fatalf("unmarshal manifest: %v", err)
	}
	if manifest.BundleID != b.Manifest.BundleID || len(manifest.Files) != len(wantFiles) {
		t.Fatalf("manifest.json does not match bundle manifest")
	}

	var summary cycleroute.RouteSummary
	if err := json.Unmarshal(b.Files["summary.json"], &summary); err != nil {
		t.Fatalf("unmarshal summary: %v", err)
	}
	if summary.WindExposure == nil || summary.WindExposure.Dominant != weather.Headwind {
		t.Fatalf("expected a headwind ride, got %+v", summary.WindExposure)
	}
	if summary.CoursePoints != 2 || summary.Notes != b.Briefing {
		t.Fatalf("summary course points=%d, notes match=%v", summary.CoursePoints, summary.Notes == b.Briefing)
	}
	if len(summary.POIs) != 1 || summary.POIs[0].Name != "Cafe" || summary.POIs[0].Label != "Food" {
		t.Fatalf("unexpected summary POIs: %+v", summary.POIs)
	}
	if !strings.Contains(b.Briefing, "Morning Loop") || !strings.Contains(b.Briefing, "Points of interest: 1 Food") {
		t.Fatalf("briefing missing route name or POIs:\n%s", b.Briefing)
	}

	var geo struct {
		Type     string `json:"type"`
		Features []struct {
			Geometry struct {
				Type string `json:"type"`
			} `json:"geometry"`
			Properties map[string]any `json:"properties"`
		} `json:"features"`
	}
	if err := json.Unmarshal(b.Files[geojsonName], &geo); err != nil {
		t.Fatalf("unmarshal geojson: %v", err)
	}
	if geo.Type != "FeatureCollection" || len(geo.Features) != 3 {
		t.Fatalf("unexpected geojson: %+v", geo)
	}
	if geo.Features[0].Geometry.Type != "LineString" || geo.Features[2].Properties["name"] != "Cafe" {
		t.Fatalf("unexpected geojson features: %+v", geo.Features)
	}
}

func TestBuildCSVForecast(t *testing.T) {
	b, err := testRunner(&eastWind{}).Build(context.Background(), Input{
		Track:  []byte(eastboundGPX),
		Plan:   plan(),
		Format: "CSV",
	})
	if err != nil {
		t.Fatalf("Build() error: %v", err)
	}
	rows, err := csv.NewReader(bytes.NewReader(b.Files["forecast.csv"])).ReadAll()
	if err != nil {
		t.Fatalf("read forecast csv: %v", err)
	}
	if len(rows) != 5 {
		t.Fatalf("expected header + 4 rows, got %d", len(rows))
	}
	for i, col := range forecastColumns {
		if rows[0][i] != col {
			t.Fatalf("header column %d = %q, want %q", i, rows[0][i], col)
		}
	}
	if rows[1][0] != "0.000000" || rows[1][1] != "2026-06-01T07:00:00Z" {
		t.Fatalf("unexpected first row: %v", rows[1])
	}
	if rows[2][15] != string(weather.Headwind) {
		t.Fatalf("wind_type = %q, want headwind", rows[2][15])
	}
	if rows[1][4] != "100.000000" {
		t.Fatalf("elevation_m = %q, want 100.000000", rows[1][4])
	}
}

func TestBuildWithoutPlan(t *testing.T) {
	f := &eastWind{}
	b, err := testRunner(f).Build(context.Background(), Input{Track: []byte(eastboundGPX)})
	if err != nil {
		t.Fatalf("Build() error: %v", err)
	}
	if f.count() != 0 || len(b.Forecast) != 0 {
		t.Fatalf("forecast fetched without a plan")
	}
	if _, ok := b.Files["forecast.parquet"]; ok {
		t.Fatalf("forecast table written without a forecast")
	}
	if len(b.Manifest.Warnings) != 0 {
		t.Fatalf("unexpected warnings: %v", b.Manifest.Warnings)
	}
	if b.Summary.Plan != nil || b.Summary.Forecast != nil {
		t.Fatalf("summary has plan data without a plan")
	}
}

func TestBuildSkipWeather(t *testing.T) {
	f := &eastWind{}
	b, err := testRunner(f).Build(context.Background(), Input{
		Track:       []byte(eastboundGPX),
		Plan:        plan(),
		SkipWeather: true,
	})
	if err != nil {
		t.Fatalf("Build() error: %v", err)
	}
	if f.count() != 0 {
		t.Fatalf("forecaster called with weather skipped")
	}
	if len(b.Manifest.Warnings) != 1 || b.Manifest.Warnings[0] != "weather skipped" {
		t.Fatalf("unexpected warnings: %v", b.Manifest.Warnings)
	}
	if b.Summary.Plan == nil {
		t.Fatalf("expected plan timing without weather")
	}
}

func TestBuildRouteTooShort(t *testing.T) {
	b, err := testRunner(&eastWind{}).Build(context.Background(), Input{Track: []byte(shortGPX), Plan: plan()})
	if err != nil {
		t.Fatalf("Build() error: %v", err)
	}
	if len(b.Forecast) != 0 || len(b.Manifest.Warnings) != 1 {
		t.Fatalf("expected a too-short warning, got forecast=%d warnings=%v", len(b.Forecast), b.Manifest.Warnings)
	}
}

func TestBuildForecastFailure(t *testing.T) {
	boom := errors.New("upstream down")
	_, err := testRunner(&eastWind{err: boom}).Build(context.Background(), Input{Track: []byte(eastboundGPX), Plan: plan()})
	if !errors.Is(err, boom) {
		t.Fatalf("expected upstream error, got %v", err)
	}
}

func TestBuildRejectsBadInput(t *testing.T) {
	r := testRunner(&eastWind{})
	if _, err := r.Build(context.Background(), Input{Track: []byte(eastboundGPX), Format: "xlsx"}); err == nil {
		t.Fatalf("expected unsupported format error")
	}
	if _, err := r.Build(context.Background(), Input{Track: []byte("<gpx")}); err == nil {
		t.Fatalf("expected parse error")
	}
	_, err := r.Build(context.Background(), Input{Track: []byte(eastboundGPX), Plan: &cycleroute.Plan{Start: rideStart}})
	if !errors.Is(err, weather.ErrInvalidSpeed) {
		t.Fatalf("expected ErrInvalidSpeed, got %v", err)
	}
}

func TestForecastCache(t *testing.T) {
	ctx := context.Background()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	f := &eastWind{}
	r := testRunner(f)
	r.Cache = weather.NewRedisCache(client, weather.DefaultCacheTTL)

	in := Input{Track: []byte(eastboundGPX), RouteID: "loop", Plan: plan()}
	first, err := r.Build(ctx, in)
	if err != nil {
		t.Fatalf("first Build() error: %v", err)
	}
	second, err := r.Build(ctx, in)
	if err != nil {
		t.Fatalf("second Build() error: %v", err)
	}
	if f.count() != 4 {
		t.Fatalf("forecaster called %d times, want 4", f.count())
	}
	if first.Manifest.ForecastCached || !second.Manifest.ForecastCached {
		t.Fatalf("cached flags = %v/%v, want false/true", first.Manifest.ForecastCached, second.Manifest.ForecastCached)
	}
	if second.Forecast[1].WindClassification.Type != weather.Headwind {
		t.Fatalf("cached forecast lost its wind classification: %+v", second.Forecast[1].WindClassification)
	}

	in.Plan = &cycleroute.Plan{Start: rideStart, AvgSpeedKmh: 30}
	if _, err := r.Build(ctx, in); err != nil {
		t.Fatalf("third Build() error: %v", err)
	}
	if f.count() != 8 {
		t.Fatalf("new pace should refetch, forecaster called %d times", f.count())
	}
	keys := mr.Keys()
	want := weather.CacheKey{RouteID: "loop", StartTime: rideStart, AvgSpeedKmh: 30}.String()
	if len(keys) != 1 || keys[0] != want {
		t.Fatalf("cache keys = %v, want only %s", keys, want)
	}
}

func TestForecastCacheReadFailure(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	mr.Close()

	f := &eastWind{}
	r := testRunner(f)
	r.Cache = weather.NewRedisCache(client, weather.DefaultCacheTTL)
	b, err := r.Build(context.Background(), Input{Track: []byte(eastboundGPX), Plan: plan()})
	if err != nil {
		t.Fatalf("Build() should survive a cache outage: %v", err)
	}
	if len(b.Forecast) != 4 || f.count() != 4 {
		t.Fatalf("expected a fresh forecast, got %d points from %d calls", len(b.Forecast), f.count())
	}
}

func TestRunWritesBundle(t *testing.T) {
	dir := t.TempDir()
	trackPath := filepath.Join(dir, "loop.gpx")
	if err := os.WriteFile(trackPath, []byte(eastboundGPX), 0o644); err != nil {
		t.Fatalf("write track: %v", err)
	}
	annPath := filepath.Join(dir, "annotations.json")
	ann, err := json.Marshal(testAnnotations())
	if err != nil {
		t.Fatalf("marshal annotations: %v", err)
	}
	if err := os.WriteFile(annPath, ann, 0o644); err != nil {
		t.Fatalf("write annotations: %v", err)
	}

	outDir := filepath.Join(dir, "out")
	opts := Options{
		TrackPath:       trackPath,
		AnnotationsPath: annPath,
		OutDir:          outDir,
		Start:           rideStart,
		AvgSpeedKmh:     25,
		Units:           cycleroute.Imperial,
	}
	res, err := testRunner(&eastWind{}).Run(context.Background(), opts)
	if err != nil {
		t.Fatalf("Run() error: %v", err)
	}
	for _, p := range []string{res.GPXPath, res.FITPath, res.ForecastPath, res.GeoJSONPath, res.SummaryPath, res.BriefingPath, res.ManifestPath} {
		if p == "" {
			t.Fatalf("missing output path in %+v", res)
		}
		if _, err := os.Stat(p); err != nil {
			t.Fatalf("stat %s: %v", p, err)
		}
	}
	if filepath.Base(res.ForecastPath) != "forecast.parquet" {
		t.Fatalf("forecast path = %s", res.ForecastPath)
	}

	fr, err := local.NewLocalFileReader(res.ForecastPath)
	if err != nil {
		t.Fatalf("open parquet: %v", err)
	}
	defer fr.Close()
	pr, err := reader.NewParquetReader(fr, new(forecastParquetRow), 1)
	if err != nil {
		t.Fatalf("parquet reader: %v", err)
	}
	defer pr.ReadStop()
	if n := pr.GetNumRows(); n != 4 {
		t.Fatalf("parquet rows = %d, want 4", n)
	}
	rows := make([]forecastParquetRow, 4)
	if err := pr.Read(&rows); err != nil {
		t.Fatalf("read parquet rows: %v", err)
	}
	if rows[0].ArrivalUTC != "2026-06-01T07:00:00Z" || rows[1].WindType != string(weather.Headwind) {
		t.Fatalf("unexpected parquet rows: %+v", rows[:2])
	}

	data, err := os.ReadFile(res.ManifestPath)
	if err != nil {
		t.Fatalf("read manifest: %v", err)
	}
	var manifest Manifest
	if err := json.Unmarshal(data, &manifest); err != nil {
		t.Fatalf("unmarshal manifest: %v", err)
	}
	if len(manifest.Files) != 6 {
		t.Fatalf("manifest lists %d files, want 6", len(manifest.Files))
	}
	last := manifest.Files[len(manifest.Files)-1]
	info, err := os.Stat(res.ForecastPath)
	if err != nil {
		t.Fatalf("stat forecast: %v", err)
	}
	if last.Name != "forecast.parquet" || last.SizeBytes != info.Size() {
		t.Fatalf("forecast manifest entry %+v does not match file size %d", last, info.Size())
	}

	briefing, err := os.ReadFile(res.BriefingPath)
	if err != nil {
		t.Fatalf("read briefing: %v", err)
	}
	if !strings.Contains(string(briefing), " mi") {
		t.Fatalf("expected imperial units in briefing:\n%s", briefing)
	}

	if _, err := testRunner(&eastWind{}).Run(context.Background(), opts); err == nil || !strings.Contains(err.Error(), "not empty") {
		t.Fatalf("expected non-empty output directory error, got %v", err)
	}
	opts.Overwrite = true
	opts.Format = FormatCSV
	res, err = testRunner(&eastWind{}).Run(context.Background(), opts)
	if err != nil {
		t.Fatalf("Run() with overwrite error: %v", err)
	}
	if filepath.Base(res.ForecastPath) != "forecast.csv" {
		t.Fatalf("forecast path = %s", res.ForecastPath)
	}
}

func TestRunRequiresPaths(t *testing.T) {
	r := testRunner(&eastWind{})
	cases := []Options{
		{OutDir: t.TempDir()},
		{TrackPath: "route.gpx"},
		{TrackPath: "route.gpx", OutDir: t.TempDir(), Format: "json"},
	}
	for i, opts := range cases {
		if _, err := r.Run(context.Background(), opts); err == nil {
			t.Fatalf("case %d: expected error", i)
		}
	}
	_, err := r.Run(context.Background(), Options{TrackPath: filepath.Join(t.TempDir(), "missing.gpx"), OutDir: t.TempDir()})
	if err == nil || !strings.Contains(err.Error(), "read track") {
		t.Fatalf("expected read error, got %v", err)
	}
}

func TestRunValidatesSpeedBeforeReading(t *testing.T) {
	r := testRunner(&eastWind{})
	opts := Options{
		TrackPath: filepath.Join(t.TempDir(), "missing.gpx"),
		OutDir:    t.TempDir(),
		Start:     rideStart,
	}
	_, err := r.Run(context.Background(), opts)
	if !errors.Is(err, weather.ErrInvalidSpeed) || !strings.Contains(err.Error(), "average speed") {
		t.Fatalf("expected a missing speed error, got %v", err)
	}

	opts.AvgSpeedKmh = 75
	if _, err := r.Run(context.Background(), opts); !errors.Is(err, weather.ErrInvalidSpeed) {
		t.Fatalf("expected speed out of range, got %v", err)
	}
}

func ExampleExportFilename() {
	fmt.Println(ExportFilename("Sunday Hills #2", time.Date(2026, 6, 7, 0, 0, 0, 0, time.UTC), "fit"))
	// Output: Sunday_Hills__2-2026-06-07.fit
}
