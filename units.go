package cycleroute

import (
	"fmt"
	"math"
)

const (
	kmPerMile      = 1.60934
	feetPerMeter   = 3.28084
	secondsPerHour = 3600.0
)

// Units selects how distances, speeds and temperatures are rendered.
type Units string

const (
	Metric   Units = "metric"
	Imperial Units = "imperial"
)

// ParseUnits accepts "metric" or "imperial"; an empty string is metric.
func ParseUnits(s string) (Units, error) {
	switch Units(s) {
	case "", Metric:
		return Metric, nil
	case Imperial:
		return Imperial, nil
	}
	return "", fmt.Errorf("unknown units %q (expected metric|imperial)", s)
}

func MetersToMiles(m float64) float64       { return m / 1000 / kmPerMile }
func MetersToFeet(m float64) float64        { return m * feetPerMeter }
func CelsiusToFahrenheit(c float64) float64 { return c*1.8 + 32 }
func KmhToMph(kmh float64) float64          { return kmh / kmPerMile }

// FormatDistance renders meters with one decimal in km or mi.
func (u Units) FormatDistance(meters float64) string {
	if u == Imperial {
		return fmt.Sprintf("%.1f mi", MetersToMiles(meters))
	}
	return fmt.Sprintf("%.1f km", meters/1000)
}

// FormatDistanceRound renders meters as whole km or mi.
func (u Units) FormatDistanceRound(meters float64) string {
	if u == Imperial {
		return fmt.Sprintf("%.0f mi", math.Round(MetersToMiles(meters)))
	}
	return fmt.Sprintf("%.0f km", math.Round(meters/1000))
}

func (u Units) FormatSpeed(kmh float64) string {
	if u == Imperial {
		return fmt.Sprintf("%.1f mph", KmhToMph(kmh))
	}
	return fmt.Sprintf("%g km/h", kmh)
}

func (u Units) FormatTemp(celsius float64) string {
	if u == Imperial {
		return fmt.Sprintf("%.0f°F", math.Round(CelsiusToFahrenheit(celsius)))
	}
	return fmt.Sprintf("%.0f°C", math.Round(celsius))
}

func (u Units) FormatElevation(meters float64) string {
	if u == Imperial {
		return fmt.Sprintf("%.0f ft", math.Round(MetersToFeet(meters)))
	}
	return fmt.Sprintf("%.0f m", math.Round(meters))
}

func formatDuration(seconds float64) string {
	if seconds <= 0 {
		return "0m"
	}
	s := int(math.Round(seconds))
	h := s / 3600
	m := (s % 3600) / 60
	if h > 0 {
		return fmt.Sprintf("%dh%02dm", h, m)
	}
	if m > 0 {
		return fmt.Sprintf("%dm", m)
	}
	return fmt.Sprintf("%ds", s)
}
