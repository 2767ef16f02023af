package fitexport

import (
	"bytes"
	"fmt"
	"time"

	"github.com/tormoder/fit"
)

// CoursePointSummary is one decoded course_point message.
type CoursePointSummary struct {
	Name           string    `json:"name"`
	Type           string    `json:"type"`
	DistanceMeters float64   `json:"distance_m"`
	Latitude       float64   `json:"latitude"`
	Longitude      float64   `json:"longitude"`
	Timestamp      time.Time `json:"timestamp"`
}

// CourseSummary describes a decoded course file.
type CourseSummary struct {
	Name           string               `json:"name"`
	Sport          string               `json:"sport"`
	Records        int                  `json:"records"`
	RecordsWithAlt int                  `json:"records_with_altitude"`
	DistanceMeters float64              `json:"distance_m"`
	ElapsedSeconds float64              `json:"elapsed_s"`
	Events         int                  `json:"events"`
	CoursePoints   []CoursePointSummary `json:"course_points"`
}

// Inspect decodes a FIT course file.
func Inspect(data []byte) (*CourseSummary, error) {
	decoded, err := fit.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("decode fit: %w", err)
	}
	course, err := decoded.Course()
	if err != nil {
		return nil, fmt.Errorf("read course file: %w", err)
	}

	out := &CourseSummary{Records: len(course.Records), Events: len(course.Events)}
	if course.Course != nil {
		out.Name = course.Course.Name
		out.Sport = course.Course.Sport.String()
	}
	if len(course.Laps) > 0 {
		lap := course.Laps[0]
		out.DistanceMeters = lap.GetTotalDistanceScaled()
		out.ElapsedSeconds = lap.GetTotalElapsedTimeScaled()
	}
	for _, rec := range course.Records {
		if rec.Altitude != 0xFFFF {
			out.RecordsWithAlt++
		}
	}
	for _, cp := range course.CoursePoints {
		s := CoursePointSummary{
			Name:           cp.Name,
			Type:           cp.Type.String(),
			DistanceMeters: cp.GetDistanceScaled(),
			Timestamp:      cp.Timestamp.UTC(),
		}
		if !cp.PositionLat.Invalid() {
			s.Latitude = cp.PositionLat.Degrees()
		}
		if !cp.PositionLong.Invalid() {
			s.Longitude = cp.PositionLong.Degrees()
		}
		out.CoursePoints = append(out.CoursePoints, s)
	}
	return out, nil
}
