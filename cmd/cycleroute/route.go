package main

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/lucasjlepore/cycleroute"
	"github.com/lucasjlepore/cycleroute/coursepoint"
	"github.com/lucasjlepore/cycleroute/fitexport"
	"github.com/lucasjlepore/cycleroute/gpxexport"
	"github.com/lucasjlepore/cycleroute/pipeline"
	"github.com/lucasjlepore/cycleroute/weather"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

func newSummaryCmd(a *app) *cobra.Command {
	var (
		annotations string
		jsonOut     bool
	)
	cmd := &cobra.Command{
		Use:   "summary <track>",
		Short: "Describe a route: distance, climbing and course points",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			_, t, err := readTrack(args[0])
			if err != nil {
				return err
			}
			ann, err := readAnnotations(annotations)
			if err != nil {
				return err
			}
			units, err := a.unitSystem()
			if err != nil {
				return err
			}

			cps := coursepoint.Merge(t.Points, ann.Cues, ann.POIs)
			s := cycleroute.Summarize(t, nil, nil)
			s.CoursePoints = len(cps)
			s.AddPOIs(t.Points, ann.POIs)
			s.Notes = cycleroute.BuildRouteBriefing(s, units)

			out := cmd.OutOrStdout()
			if jsonOut {
				return writeJSON(out, s)
			}
			fmt.Fprintln(out, s.Notes)
			if len(cps) > 0 {
				fmt.Fprintln(out)
				fmt.Fprintln(out, "Course Points")
				for _, cp := range cps {
					fmt.Fprintf(out, "- %8s | %-11s | %s\n", units.FormatDistance(cp.DistanceMeters), cp.Type, cp.Name)
				}
			}
			if len(s.POIs) > 0 {
				fmt.Fprintln(out)
				fmt.Fprintln(out, "Points of Interest")
				for _, p := range s.POIs {
					line := fmt.Sprintf("- %8s | %-9s | %s", units.FormatDistance(p.DistanceMeters), p.Label, p.Name)
					if p.Description != "" {
						line += " (" + p.Description + ")"
					}
					fmt.Fprintln(out, line)
				}
			}
			return nil
		},
	}
	cmd.Flags().StringVarP(&annotations, "annotations", "a", "", "cues and POIs JSON")
	cmd.Flags().BoolVar(&jsonOut, "json", false, "emit the summary as JSON")
	return cmd
}

func newWeatherCmd(a *app) *cobra.Command {
	var (
		start   string
		speed   float64
		routeID string
		tz      string
		jsonOut bool
	)
	cmd := &cobra.Command{
		Use:   "weather <track>",
		Short: "Forecast the weather along a route at a planned pace",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			data, t, err := readTrack(args[0])
			if err != nil {
				return err
			}
			plan, err := a.parsePlan(start, speed)
			if err != nil {
				return err
			}
			units, err := a.unitSystem()
			if err != nil {
				return err
			}
			loc, err := time.LoadLocation(tz)
			if err != nil {
				return fmt.Errorf("invalid --tz %q: %w", tz, err)
			}
			if routeID == "" {
				routeID = pipeline.RouteID(data)
			}

			r, release := a.runner()
			defer release()
			forecast, cached, err := r.Forecast(cmd.Context(), routeID, t.Points, plan)
			if err != nil {
				return err
			}
			a.logger.Info("forecast ready",
				zap.String("route_id", routeID),
				zap.Int("samples", len(forecast)),
				zap.Bool("cached", cached))

			s := cycleroute.Summarize(t, &plan, forecast)
			s.Notes = cycleroute.BuildRouteBriefing(s, units)

			out := cmd.OutOrStdout()
			if jsonOut {
				return writeJSON(out, struct {
					RouteID  string                   `json:"route_id"`
					Cached   bool                     `json:"cached"`
					Summary  *cycleroute.RouteSummary `json:"summary"`
					Forecast []weather.WeatherPoint   `json:"forecast"`
				}{routeID, cached, s, forecast})
			}

			fmt.Fprintln(out, s.Notes)
			fmt.Fprintln(out)
			fmt.Fprintln(out, "Along the Route")
			for _, p := range forecast {
				fmt.Fprintf(
					out,
					"- %8s | %s | %5s | %3.0f%% rain | wind %s gusts %s | %-15s | %s\n",
					units.FormatDistance(p.DistanceFromStartMeters),
					cycleroute.FormatArrival(p.EstimatedArrivalTime, loc),
					units.FormatTemp(p.TempC),
					p.PrecipProbability,
					units.FormatSpeed(p.WindSpeedKmh),
					units.FormatSpeed(p.WindGustsKmh),
					p.WindClassification.Type,
					cycleroute.WeatherDescription(p.WeatherCode),
				)
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&start, "start", "", "planned start, RFC3339 (default next full hour)")
	cmd.Flags().Float64Var(&speed, "speed", 25, "planned average speed in km/h")
	cmd.Flags().StringVar(&routeID, "route-id", "", "cache identity of the route (default content hash)")
	cmd.Flags().StringVar(&tz, "tz", "UTC", "time zone for arrival times")
	cmd.Flags().BoolVar(&jsonOut, "json", false, "emit summary and forecast as JSON")
	return cmd
}

func newExportCmd(a *app) *cobra.Command {
	var (
		format      string
		annotations string
		output      string
		description string
	)
	cmd := &cobra.Command{
		Use:   "export <track>",
		Short: "Export a route as a GPX track or a FIT course",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			_, t, err := readTrack(args[0])
			if err != nil {
				return err
			}
			ann, err := readAnnotations(annotations)
			if err != nil {
				return err
			}

			now := a.now().UTC()
			format = strings.ToLower(strings.TrimSpace(format))
			var data []byte
			switch format {
			case "gpx":
				data, err = gpxexport.Build(gpxexport.Options{
					Name:        t.Name,
					Description: description,
					Points:      t.Points,
					POIs:        ann.POIs,
					Now:         now,
				})
			case "fit":
				data, err = fitexport.Build(fitexport.Options{
					Name:         t.Name,
					Points:       t.Points,
					CoursePoints: coursepoint.Merge(t.Points, ann.Cues, ann.POIs),
				})
			default:
				return fmt.Errorf("unsupported format %q (expected gpx|fit)", format)
			}
			if err != nil {
				return err
			}

			if output == "-" {
				_, err := cmd.OutOrStdout().Write(data)
				return err
			}
			if output == "" {
				output = pipeline.ExportFilename(t.Name, now, format)
			}
			if err := os.WriteFile(output, data, 0o644); err != nil {
				return fmt.Errorf("write %s: %w", output, err)
			}
			a.logger.Info("route exported",
				zap.String("format", format),
				zap.String("path", output),
				zap.Int("bytes", len(data)))
			fmt.Fprintf(cmd.OutOrStdout(), "%s (%d bytes)\n", output, len(data))
			return nil
		},
	}
	cmd.Flags().StringVarP(&format, "format", "f", "gpx", "gpx|fit")
	cmd.Flags().StringVarP(&annotations, "annotations", "a", "", "cues and POIs JSON")
	cmd.Flags().StringVarP(&output, "output", "o", "", "output path, - for stdout (default <name>-<date>.<format>)")
	cmd.Flags().StringVar(&description, "description", "", "GPX metadata description")
	return cmd
}

func newBundleCmd(a *app) *cobra.Command {
	var (
		opts  pipeline.Options
		start string
	)
	cmd := &cobra.Command{
		Use:   "bundle <track>",
		Short: "Write GPX, FIT, forecast table, summary and briefing into one directory",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			plan, err := a.parsePlan(start, opts.AvgSpeedKmh)
			if err != nil {
				return err
			}
			units, err := a.unitSystem()
			if err != nil {
				return err
			}
			opts.TrackPath = args[0]
			opts.Start = plan.Start
			opts.Units = units

			r, release := a.runner()
			defer release()
			result, err := r.Run(cmd.Context(), opts)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "bundle complete\n")
			fmt.Fprintf(out, "Output dir:     %s\n", result.OutputDir)
			fmt.Fprintf(out, "manifest.json:  %s\n", result.ManifestPath)
			fmt.Fprintf(out, "gpx:            %s\n", result.GPXPath)
			fmt.Fprintf(out, "fit:            %s\n", result.FITPath)
			if result.ForecastPath != "" {
				fmt.Fprintf(out, "forecast:       %s\n", result.ForecastPath)
			}
			fmt.Fprintf(out, "geojson:        %s\n", result.GeoJSONPath)
			fmt.Fprintf(out, "summary:        %s\n", result.SummaryPath)
			fmt.Fprintf(out, "briefing:       %s\n", result.BriefingPath)
			return nil
		},
	}
	cmd.Flags().StringVarP(&opts.OutDir, "out", "o", "", "output directory")
	cmd.Flags().StringVarP(&opts.AnnotationsPath, "annotations", "a", "", "cues and POIs JSON")
	cmd.Flags().StringVar(&start, "start", "", "planned start, RFC3339 (default next full hour)")
	cmd.Flags().Float64Var(&opts.AvgSpeedKmh, "speed", 25, "planned average speed in km/h")
	cmd.Flags().StringVar(&opts.RouteID, "route-id", "", "cache identity of the route (default content hash)")
	cmd.Flags().StringVar(&opts.Format, "table", pipeline.FormatParquet, "forecast table format: parquet|csv")
	cmd.Flags().BoolVar(&opts.Overwrite, "overwrite", false, "allow writing into a non-empty output directory")
	cmd.Flags().BoolVar(&opts.SkipWeather, "skip-weather", false, "do not fetch a forecast")
	_ = cmd.MarkFlagRequired("out")
	return cmd
}
