package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/lucasjlepore/cycleroute"
	"github.com/lucasjlepore/cycleroute/config"
	"github.com/lucasjlepore/cycleroute/coursepoint"
	"github.com/lucasjlepore/cycleroute/pipeline"
	"github.com/lucasjlepore/cycleroute/track"
	"github.com/lucasjlepore/cycleroute/weather"
	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		os.Exit(1)
	}
}

// app holds what every subcommand shares once flags are parsed.
type app struct {
	configPath string
	verbose    bool
	units      string

	cfg    config.Config
	logger *zap.Logger
	now    func() time.Time
}

func newRootCmd() *cobra.Command {
	a := &app{now: time.Now}
	root := &cobra.Command{
		Use:   "cycleroute",
		Short: "Plan cycling routes with weather and export them to bike computers",
		Long: `cycleroute parses GPX or GeoJSON tracks, forecasts the weather a rider will meet
along the way at a planned pace, and exports courses as GPX or FIT with turn cues
and points of interest.

Settings come from CYCLEROUTE_* environment variables or --config.`,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return a.setup()
		},
		PersistentPostRun: func(cmd *cobra.Command, args []string) {
			if a.logger != nil {
				_ = a.logger.Sync()
			}
		},
	}
	root.PersistentFlags().StringVar(&a.configPath, "config", "", "config file (yaml, json or toml)")
	root.PersistentFlags().BoolVarP(&a.verbose, "verbose", "v", false, "development logging")
	root.PersistentFlags().StringVar(&a.units, "units", "", "metric|imperial (default from config)")

	root.AddCommand(
		newSummaryCmd(a),
		newWeatherCmd(a),
		newExportCmd(a),
		newBundleCmd(a),
		newFitInspectCmd(a),
		newFitDumpCmd(a),
	)
	return root
}

func (a *app) setup() error {
	cfg, err := config.Load(a.configPath)
	if err != nil {
		return err
	}
	a.cfg = cfg

	if a.verbose {
		a.logger, err = zap.NewDevelopment()
	} else {
		level, lerr := cfg.Level()
		if lerr != nil {
			return lerr
		}
		zc := zap.NewProductionConfig()
		zc.Level = zap.NewAtomicLevelAt(level)
		a.logger, err = zc.Build()
	}
	if err != nil {
		return fmt.Errorf("init logger: %w", err)
	}
	return nil
}

func (a *app) unitSystem() (cycleroute.Units, error) {
	if a.units != "" {
		return cycleroute.ParseUnits(a.units)
	}
	return cycleroute.ParseUnits(a.cfg.Units)
}

// runner wires the forecast client and, when configured, the Redis cache.
// The returned func releases the cache connection.
func (a *app) runner() (*pipeline.Runner, func()) {
	enricher := weather.NewEnricher(a.cfg.Forecaster(), a.logger)
	enricher.BatchSize = a.cfg.WeatherConcurrency
	r := &pipeline.Runner{Enricher: enricher, Logger: a.logger, Now: a.now}
	if !a.cfg.CacheEnabled() {
		return r, func() {}
	}
	client := redis.NewClient(&redis.Options{
		Addr:     a.cfg.RedisAddr,
		Password: a.cfg.RedisPassword,
		DB:       a.cfg.RedisDB,
	})
	r.Cache = weather.NewRedisCache(client, a.cfg.CacheTTL)
	a.logger.Debug("forecast cache enabled", zap.String("addr", a.cfg.RedisAddr), zap.Duration("ttl", a.cfg.CacheTTL))
	return r, func() { _ = client.Close() }
}

func readTrack(path string) ([]byte, *track.ParsedTrack, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, nil, fmt.Errorf("read track: %w", err)
	}
	t, err := track.Parse(data)
	if err != nil {
		return nil, nil, fmt.Errorf("parse %s: %w", path, err)
	}
	return data, t, nil
}

func readAnnotations(path string) (*coursepoint.Annotations, error) {
	if path == "" {
		return &coursepoint.Annotations{}, nil
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open annotations: %w", err)
	}
	defer f.Close()
	return coursepoint.ReadAnnotations(f)
}

// parsePlan reads --start and --speed. An empty start means the next full hour.
func (a *app) parsePlan(start string, speed float64) (cycleroute.Plan, error) {
	if err := weather.ValidateSpeed(speed); err != nil {
		return cycleroute.Plan{}, err
	}
	var t time.Time
	if start == "" {
		t = a.now().UTC().Truncate(time.Hour).Add(time.Hour)
	} else {
		var err error
		t, err = time.Parse(time.RFC3339, start)
		if err != nil {
			return cycleroute.Plan{}, fmt.Errorf("invalid --start %q (expected RFC3339): %w", start, err)
		}
	}
	return cycleroute.Plan{Start: t.UTC(), AvgSpeedKmh: speed}, nil
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
