package cycleroute

import (
	"fmt"
	"strings"
	"time"

	"github.com/lucasjlepore/cycleroute/weather"
)

// BuildRouteBriefing turns a route summary into pre-ride notes.
func BuildRouteBriefing(s *RouteSummary, u Units) string {
	if s == nil {
		return ""
	}

	var b strings.Builder

	fmt.Fprintf(&b, "Route: %s\n", s.Name)
	fmt.Fprintf(&b, "Distance %s | %d points", u.FormatDistance(s.DistanceMeters), s.PointCount)
	if s.ElevationGainMeters != nil {
		fmt.Fprintf(&b, " | Climbing +%s", u.FormatElevation(*s.ElevationGainMeters))
		if s.ElevationLossMeters != nil {
			fmt.Fprintf(&b, " / -%s", u.FormatElevation(*s.ElevationLossMeters))
		}
	}
	b.WriteByte('\n')
	if s.MinElevationMeters != nil && s.MaxElevationMeters != nil {
		fmt.Fprintf(&b, "Elevation range %s to %s\n", u.FormatElevation(*s.MinElevationMeters), u.FormatElevation(*s.MaxElevationMeters))
	}
	if s.CoursePoints > 0 {
		fmt.Fprintf(&b, "Course points: %d\n", s.CoursePoints)
	}
	if len(s.POICategories) > 0 {
		parts := make([]string, len(s.POICategories))
		for i, c := range s.POICategories {
			parts[i] = fmt.Sprintf("%d %s", c.Count, c.Label)
		}
		fmt.Fprintf(&b, "Points of interest: %s\n", strings.Join(parts, ", "))
	}

	if p := s.Plan; p != nil {
		fmt.Fprintf(
			&b,
			"Plan: depart %s at %s, finish around %s (%s riding)\n",
			p.Start.Format("2006-01-02 15:04 MST"),
			u.FormatSpeed(p.AvgSpeedKmh),
			FormatArrival(p.Finish, p.Start.Location()),
			formatDuration(p.DurationSeconds),
		)
	}

	if f := s.Forecast; f != nil {
		fmt.Fprintf(&b, "\nForecast (%d points along the route)\n", f.Samples)
		fmt.Fprintf(
			&b,
			"- Temperature %s to %s, feels like %s to %s\n",
			u.FormatTemp(f.MinTempC),
			u.FormatTemp(f.MaxTempC),
			u.FormatTemp(f.MinFeelsLikeC),
			u.FormatTemp(f.MaxFeelsLikeC),
		)
		if f.FirstWetMeters != nil {
			fmt.Fprintf(
				&b,
				"- Rain: up to %.0f%% chance, %.1f mm across sampled hours; first likely at %s (%s)\n",
				f.MaxPrecipProbability,
				f.PrecipMm,
				u.FormatDistanceRound(*f.FirstWetMeters),
				WeatherDescription(f.FirstWetCode),
			)
		} else {
			fmt.Fprintf(&b, "- Rain unlikely (max %.0f%% chance)\n", f.MaxPrecipProbability)
		}
		fmt.Fprintf(&b, "- Wind up to %s, gusts to %s\n", u.FormatSpeed(f.MaxWindKmh), u.FormatSpeed(f.MaxGustKmh))
	}

	if e := s.WindExposure; e != nil {
		b.WriteString("\nWind Exposure\n")
		fmt.Fprintf(
			&b,
			"- Headwind %.0f%% | Tailwind %.0f%% | Crosswind %.0f%%\n",
			e.Headwind*100,
			e.Tailwind*100,
			e.Crosswind()*100,
		)
		for _, seg := range s.WindSegments {
			fmt.Fprintf(
				&b,
				"- %s to %s: %s\n",
				u.FormatDistanceRound(seg.StartMeters),
				u.FormatDistanceRound(seg.EndMeters),
				seg.Description,
			)
		}
	}

	if s.Forecast != nil {
		b.WriteString("\nRide Notes\n- ")
		b.WriteString(windAssessment(s))
		b.WriteString("\n- ")
		b.WriteString(kitSuggestion(s))
		b.WriteByte('\n')
	}

	return strings.TrimSpace(b.String())
}

func windAssessment(s *RouteSummary) string {
	e := s.WindExposure
	if e == nil {
		return "Wind exposure unavailable."
	}
	switch {
	case e.Headwind >= 0.5:
		if late := lateHeadwind(s.WindSegments, s.DistanceMeters); late {
			return "Most of the route and the closing stretch face a headwind; pace the first half conservatively."
		}
		return "Headwind dominates the route; expect a slower average than planned."
	case e.Tailwind >= 0.5:
		return "Tailwind for most of the route; the planned pace should be comfortable."
	case e.Crosswind() >= 0.5:
		return "Crosswinds dominate; take care on exposed sections and descents."
	}
	return "Mixed wind with no dominant direction."
}

func lateHeadwind(segments []WindSegment, total float64) bool {
	if len(segments) == 0 || total <= 0 {
		return false
	}
	last := segments[len(segments)-1]
	return last.Type == weather.Headwind && last.EndMeters-last.StartMeters >= total*0.25
}

func kitSuggestion(s *RouteSummary) string {
	f := s.Forecast
	switch {
	case f.FirstWetMeters != nil:
		return "Pack a rain jacket and allow extra braking distance."
	case f.MinFeelsLikeC < 10:
		return "Cool conditions; bring arm warmers or a gilet for the start."
	case f.MaxTempC >= 28:
		return "Hot conditions; carry extra water and plan refills."
	}
	return "Conditions look settled for the planned ride."
}

// FormatArrival renders an estimated arrival in the plan's location.
func FormatArrival(t time.Time, loc *time.Location) string {
	if loc == nil {
		loc = time.UTC
	}
	return t.In(loc).Format("15:04")
}
