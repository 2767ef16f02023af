package main

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"
)

const routeGPX = `<?xml version="1.0" encoding="UTF-8"?>
<gpx version="1.1" creator="test" xmlns="http://www.topografix.com/GPX/1/1">
  <trk><name>Morning Loop</name><trkseg>
    <trkpt lat="0" lon="0"><ele>100</ele></trkpt>
    <trkpt lat="0" lon="0.1"><ele>140</ele></trkpt>
    <trkpt lat="0" lon="0.225"><ele>120</ele></trkpt>
  </trkseg></trk>
</gpx>`

const routeAnnotations = `{
  "cues": [{"instruction": "Turn left", "latitude": 0, "longitude": 0.045, "distance_m": 5000}],
  "pois": [{"name": "Cafe", "category": "FOOD", "latitude": 0.001, "longitude": 0.15}]
}`

// eastWindBody is three hours of wind from the east starting 2026-06-01T07:00Z.
const eastWindBody = `{
  "hourly": {
    "time": [1780297200, 1780300800, 1780304400],
    "temperature_2m": [12, 14, 16],
    "apparent_temperature": [11, 13, 15],
    "precipitation_probability": [5, 5, 5],
    "precipitation": [0, 0, 0],
    "wind_speed_10m": [18, 18, 18],
    "wind_direction_10m": [90, 90, 90],
    "wind_gusts_10m": [30, 30, 30],
    "weather_code": [1, 1, 1],
    "cloud_cover": [20, 20, 20]
  }
}`

func writeFixtures(t *testing.T) (dir, gpxPath, annPath string) {
	t.Helper()
	t.Setenv("CYCLEROUTE_LOG_LEVEL", "error")
	dir = t.TempDir()
	gpxPath = filepath.Join(dir, "loop.gpx")
	annPath = filepath.Join(dir, "annotations.json")
	if err := os.WriteFile(gpxPath, []byte(routeGPX), 0o644); err != nil {
		t.Fatalf("write gpx: %v", err)
	}
	if err := os.WriteFile(annPath, []byte(routeAnnotations), 0o644); err != nil {
		t.Fatalf("write annotations: %v", err)
	}
	return dir, gpxPath, annPath
}

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	root := newRootCmd()
	var out bytes.Buffer
	root.SetOut(&out)
	root.SetErr(&out)
	root.SetArgs(args)
	err := root.Execute()
	return out.String(), err
}

func TestSummaryCommand(t *testing.T) {
	_, gpxPath, annPath := writeFixtures(t)

	out, err := execute(t, "summary", gpxPath, "--annotations", annPath)
	if err != nil {
		t.Fatalf("summary failed: %v\n%s", err, out)
	}
	for _, want := range []string{"Route: Morning Loop", "Distance 25.0 km", "Course points: 2", "Course Points", "left", "Cafe", "Points of Interest", "| Food      | Cafe", "Points of interest: 1 Food"} {
		if !strings.Contains(out, want) {
			t.Fatalf("summary output missing %q:\n%s", want, out)
		}
	}

	out, err = execute(t, "summary", gpxPath, "--json", "--units", "imperial")
	if err != nil {
		t.Fatalf("summary --json failed: %v", err)
	}
	var s struct {
		Name       string `json:"name"`
		PointCount int    `json:"point_count"`
		Notes      string `json:"notes"`
	}
	if err := json.Unmarshal([]byte(out), &s); err != nil {
		t.Fatalf("unmarshal summary: %v\n%s", err, out)
	}
	if s.Name != "Morning Loop" || s.PointCount != 3 || !strings.Contains(s.Notes, "15.5 mi") {
		t.Fatalf("unexpected summary: %+v", s)
	}
}

func TestExportAndInspectFIT(t *testing.T) {
	dir, gpxPath, annPath := writeFixtures(t)
	fitPath := filepath.Join(dir, "loop.fit")

	out, err := execute(t, "export", gpxPath, "--format", "fit", "-a", annPath, "-o", fitPath)
	if err != nil {
		t.Fatalf("export failed: %v\n%s", err, out)
	}
	if !strings.HasPrefix(out, fitPath) {
		t.Fatalf("unexpected export output: %s", out)
	}

	out, err = execute(t, "fit-inspect", fitPath)
	if err != nil {
		t.Fatalf("fit-inspect failed: %v\n%s", err, out)
	}
	for _, want := range []string{"Course: Morning Loop", "Records: 3 (3 with altitude)", "Turn left", "Cafe"} {
		if !strings.Contains(out, want) {
			t.Fatalf("fit-inspect output missing %q:\n%s", want, out)
		}
	}

	out, err = execute(t, "fit-dump", fitPath)
	if err != nil {
		t.Fatalf("fit-dump failed: %v\n%s", err, out)
	}
	for _, want := range []string{"File CRC:   ok", "course_point", "record"} {
		if !strings.Contains(out, want) {
			t.Fatalf("fit-dump output missing %q:\n%s", want, out)
		}
	}

	out, err = execute(t, "fit-dump", fitPath, "--jsonl")
	if err != nil {
		t.Fatalf("fit-dump --jsonl failed: %v", err)
	}
	lines := strings.Split(strings.TrimSpace(out), "\n")
	if len(lines) < 9 {
		t.Fatalf("expected a JSON line per record, got %d lines", len(lines))
	}
	for i, line := range lines {
		if !json.Valid([]byte(line)) {
			t.Fatalf("line %d is not JSON: %s", i, line)
		}
	}
}

func TestExportGPXToStdout(t *testing.T) {
	_, gpxPath, annPath := writeFixtures(t)
	out, err := execute(t, "export", gpxPath, "-a", annPath, "-o", "-", "--description", "Flat & fast")
	if err != nil {
		t.Fatalf("export failed: %v", err)
	}
	if !strings.HasPrefix(out, "<?xml") {
		t.Fatalf("expected GPX on stdout, got:\n%s", out)
	}
	for _, want := range []string{"CycleRoute Planner", "Flat &amp; fast", "<wpt", "<trkseg>"} {
		if !strings.Contains(out, want) {
			t.Fatalf("gpx output missing %q", want)
		}
	}
}

func TestExportRejectsUnknownFormat(t *testing.T) {
	_, gpxPath, _ := writeFixtures(t)
	if _, err := execute(t, "export", gpxPath, "--format", "kml", "-o", "-"); err == nil {
		t.Fatalf("expected unsupported format error")
	}
}

func TestWeatherCommand(t *testing.T) {
	_, gpxPath, _ := writeFixtures(t)
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		if r.URL.Query().Get("timeformat") != "unixtime" {
			http.Error(w, "bad request", http.StatusBadRequest)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(eastWindBody))
	}))
	defer srv.Close()
	t.Setenv("CYCLEROUTE_WEATHER_URL", srv.URL)

	out, err := execute(t, "weather", gpxPath, "--start", "2026-06-01T07:00:00Z", "--speed", "25")
	if err != nil {
		t.Fatalf("weather failed: %v\n%s", err, out)
	}
	if calls.Load() != 4 {
		t.Fatalf("expected 4 forecast requests, got %d", calls.Load())
	}
	for _, want := range []string{"Forecast (4 points along the route)", "Wind Exposure", "Along the Route", "headwind", "Mainly clear"} {
		if !strings.Contains(out, want) {
			t.Fatalf("weather output missing %q:\n%s", want, out)
		}
	}

	out, err = execute(t, "weather", gpxPath, "--start", "2026-06-01T07:00:00Z", "--json", "--route-id", "loop")
	if err != nil {
		t.Fatalf("weather --json failed: %v", err)
	}
	var res struct {
		RouteID  string           `json:"route_id"`
		Cached   bool             `json:"cached"`
		Forecast []map[string]any `json:"forecast"`
	}
	if err := json.Unmarshal([]byte(out), &res); err != nil {
		t.Fatalf("unmarshal weather json: %v\n%s", err, out)
	}
	if res.RouteID != "loop" || res.Cached || len(res.Forecast) != 4 {
		t.Fatalf("unexpected weather json: %+v", res)
	}
}

func TestWeatherRejectsBadPlan(t *testing.T) {
	_, gpxPath, _ := writeFixtures(t)
	if _, err := execute(t, "weather", gpxPath, "--speed", "90"); err == nil {
		t.Fatalf("expected speed out of range error")
	}
	if _, err := execute(t, "weather", gpxPath, "--start", "tomorrow"); err == nil {
		t.Fatalf("expected invalid start error")
	}
}

func TestBundleCommand(t *testing.T) {
	dir, gpxPath, annPath := writeFixtures(t)
	outDir := filepath.Join(dir, "bundle")

	out, err := execute(t, "bundle", gpxPath, "-a", annPath, "--out", outDir, "--skip-weather", "--table", "csv")
	if err != nil {
		t.Fatalf("bundle failed: %v\n%s", err, out)
	}
	if !strings.Contains(out, "bundle complete") || strings.Contains(out, "forecast:") {
		t.Fatalf("unexpected bundle output:\n%s", out)
	}
	for _, name := range []string{"manifest.json", "route.geojson", "summary.json", "briefing.md"} {
		if _, err := os.Stat(filepath.Join(outDir, name)); err != nil {
			t.Fatalf("missing %s: %v", name, err)
		}
	}
	matches, err := filepath.Glob(filepath.Join(outDir, "Morning_Loop-*.fit"))
	if err != nil || len(matches) != 1 {
		t.Fatalf("expected one fit export, got %v (%v)", matches, err)
	}

	if _, err := execute(t, "bundle", gpxPath, "--out", outDir, "--skip-weather"); err == nil {
		t.Fatalf("expected non-empty output directory error")
	}
}

func TestUnknownUnits(t *testing.T) {
	_, gpxPath, _ := writeFixtures(t)
	if _, err := execute(t, "summary", gpxPath, "--units", "furlongs"); err == nil {
		t.Fatalf("expected units error")
	}
}
