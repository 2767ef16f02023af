//go:build js && wasm

package main

import (
	"archive/zip"
	"bytes"
	"context"
	"fmt"
	"sort"
	"strings"
	"syscall/js"
	"time"

	"github.com/lucasjlepore/cycleroute"
	"github.com/lucasjlepore/cycleroute/coursepoint"
	"github.com/lucasjlepore/cycleroute/pipeline"
	"github.com/lucasjlepore/cycleroute/weather"
)

func main() {
	js.Global().Set("planRoute", js.FuncOf(planRoute))
	select {}
}

// planRoute returns a Promise so forecast requests can block without holding
// the browser event loop.
func planRoute(_ js.Value, args []js.Value) any {
	executor := js.FuncOf(func(_ js.Value, p []js.Value) any {
		resolve := p[0]
		go func() {
			resolve.Invoke(js.ValueOf(buildBundle(args)))
		}()
		return nil
	})
	promise := js.Global().Get("Promise").New(executor)
	executor.Release()
	return promise
}

func buildBundle(args []js.Value) map[string]any {
	if len(args) < 2 {
		return failure("expected arguments: trackBytes(Uint8Array), options(object)")
	}
	fileArg, optsArg := args[0], args[1]
	if fileArg.IsUndefined() || fileArg.IsNull() || fileArg.Get("length").Int() == 0 {
		return failure("track bytes are required")
	}
	trackBytes := make([]byte, fileArg.Get("length").Int())
	if n := js.CopyBytesToGo(trackBytes, fileArg); n == 0 {
		return failure("failed to read track bytes from JS input")
	}

	units, err := cycleroute.ParseUnits(getString(optsArg, "units", ""))
	if err != nil {
		return failure(err.Error())
	}
	in := pipeline.Input{
		Track:       trackBytes,
		RouteID:     getString(optsArg, "route_id", ""),
		Units:       units,
		Format:      getString(optsArg, "format", pipeline.FormatCSV),
		SkipWeather: getBool(optsArg, "skip_weather"),
	}
	if raw := getString(optsArg, "annotations", ""); raw != "" {
		if in.Annotations, err = coursepoint.ReadAnnotations(strings.NewReader(raw)); err != nil {
			return failure(err.Error())
		}
	}
	if start := getString(optsArg, "start", ""); start != "" {
		t, err := time.Parse(time.RFC3339, start)
		if err != nil {
			return failure(fmt.Sprintf("invalid start %q: %v", start, err))
		}
		speed := getFloat(optsArg, "speed_kmh")
		if err := weather.ValidateSpeed(speed); err != nil {
			return failure(err.Error())
		}
		in.Plan = &cycleroute.Plan{Start: t.UTC(), AvgSpeedKmh: speed}
	}

	forecaster := weather.NewOpenMeteo()
	forecaster.BaseURL = getString(optsArg, "weather_url", weather.DefaultForecastURL)
	r := &pipeline.Runner{Enricher: weather.NewEnricher(forecaster, nil)}
	bundle, err := r.Build(context.Background(), in)
	if err != nil {
		return failure(err.Error())
	}

	zipBytes, err := zipArtifacts(bundle.Files)
	if err != nil {
		return failure(fmt.Sprintf("create zip: %v", err))
	}
	payload := js.Global().Get("Uint8Array").New(len(zipBytes))
	js.CopyBytesToJS(payload, zipBytes)

	fileNames := make([]string, 0, len(bundle.Files))
	for name := range bundle.Files {
		fileNames = append(fileNames, name)
	}
	sort.Strings(fileNames)

	return map[string]any{
		"ok":       true,
		"zip":      payload,
		"briefing": bundle.Briefing,
		"warnings": stringsToAny(bundle.Manifest.Warnings),
		"files":    stringsToAny(fileNames),
	}
}

func failure(msg string) map[string]any {
	return map[string]any{"ok": false, "error": msg}
}

func zipArtifacts(files map[string][]byte) ([]byte, error) {
	names := make([]string, 0, len(files))
	for name := range files {
		names = append(names, name)
	}
	sort.Strings(names)

	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	fixedTime := time.Unix(0, 0).UTC()

	for _, name := range names {
		h := &zip.FileHeader{
			Name:   name,
			Method: zip.Deflate,
		}
		h.SetModTime(fixedTime)
		w, err := zw.CreateHeader(h)
		if err != nil {
			return nil, err
		}
		if _, err := w.Write(files[name]); err != nil {
			return nil, err
		}
	}
	if err := zw.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func getString(v js.Value, key, fallback string) string {
	if v.IsUndefined() || v.IsNull() {
		return fallback
	}
	out := v.Get(key)
	if out.IsUndefined() || out.IsNull() {
		return fallback
	}
	s := out.String()
	if s == "" || s == "undefined" || s == "null" {
		return fallback
	}
	return s
}

func getFloat(v js.Value, key string) float64 {
	if v.IsUndefined() || v.IsNull() {
		return 0
	}
	out := v.Get(key)
	if out.IsUndefined() || out.IsNull() || out.Type() != js.TypeNumber {
		return 0
	}
	return out.Float()
}

func getBool(v js.Value, key string) bool {
	if v.IsUndefined() || v.IsNull() {
		return false
	}
	out := v.Get(key)
	return out.Type() == js.TypeBoolean && out.Bool()
}

func stringsToAny(values []string) []any {
	out := make([]any, len(values))
	for i, v := range values {
		out[i] = v
	}
	return out
}
