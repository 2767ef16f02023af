// Package fitexport encodes a route with its course points as a FIT course
// file and decodes course files back into a summary.
package fitexport

import (
	"bytes"
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/lucasjlepore/cycleroute/coursepoint"
	"github.com/lucasjlepore/cycleroute/track"
	"github.com/muktihari/fit/encoder"
	"github.com/muktihari/fit/kit/scaleoffset"
	"github.com/muktihari/fit/profile/mesgdef"
	"github.com/muktihari/fit/profile/typedef"
	"github.com/muktihari/fit/proto"
)

const (
	ContentType = "application/octet-stream"

	// SerialNumber is the placeholder device serial written to file_id.
	SerialNumber = 12345

	semicirclesPerDegree = (1 << 31) / 180.0
)

// BaseTime anchors the synthetic one-second-per-point clock.
var BaseTime = time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

var ErrEmptyTrack = errors.New("cannot export a track without points")

var markerTypes = map[coursepoint.MarkerType]typedef.CoursePoint{
	coursepoint.Generic:     typedef.CoursePointGeneric,
	coursepoint.Left:        typedef.CoursePointLeft,
	coursepoint.Right:       typedef.CoursePointRight,
	coursepoint.Straight:    typedef.CoursePointStraight,
	coursepoint.SharpLeft:   typedef.CoursePointSharpLeft,
	coursepoint.SharpRight:  typedef.CoursePointSharpRight,
	coursepoint.SlightLeft:  typedef.CoursePointSlightLeft,
	coursepoint.SlightRight: typedef.CoursePointSlightRight,
	coursepoint.UTurn:       typedef.CoursePointUTurn,
	coursepoint.Food:        typedef.CoursePointFood,
	coursepoint.Water:       typedef.CoursePointWater,
	coursepoint.RestArea:    typedef.CoursePointRestArea,
	coursepoint.Summit:      typedef.CoursePointSummit,
	coursepoint.Danger:      typedef.CoursePointDanger,
}

// CoursePointType returns the FIT enum for a marker; unknown markers are generic.
func CoursePointType(t coursepoint.MarkerType) typedef.CoursePoint {
	if v, ok := markerTypes[t]; ok {
		return v
	}
	return typedef.CoursePointGeneric
}

// Options describes one course export. CoursePoints are written in the
// order given, normally the output of coursepoint.Merge.
type Options struct {
	Name         string
	Points       []track.Point
	CoursePoints []coursepoint.CoursePoint
}

// ToSemicircles converts degrees to FIT semicircles, rounding to the nearest
// integer and clamping to the int32 range. MaxInt32 is the sint32 invalid
// value, so +180 maps one semicircle short of it.
func ToSemicircles(deg float64) int32 {
	v := math.Round(deg * semicirclesPerDegree)
	switch {
	case v >= math.MaxInt32:
		return math.MaxInt32 - 1
	case v < math.MinInt32:
		return math.MinInt32
	}
	return int32(v)
}

// Messages returns the course as FIT messages in file order: file_id,
// course, lap, timer start, records, course points, timer stop.
func Messages(opts Options) (proto.FIT, error) {
	points := opts.Points
	if len(points) == 0 {
		return proto.FIT{}, ErrEmptyTrack
	}

	cum := track.CumulativeDistances(points)
	total := cum[len(cum)-1]
	elapsed := len(points) - 1
	end := BaseTime.Add(time.Duration(elapsed) * time.Second)
	first, last := points[0], points[len(points)-1]
	name := opts.Name
	if name == "" {
		name = track.DefaultName
	}

	msgs := make([]proto.Message, 0, 5+len(points)+len(opts.CoursePoints))
	msgs = append(msgs,
		mesgdef.NewFileId(nil).
			SetType(typedef.FileCourse).
			SetManufacturer(typedef.ManufacturerDevelopment).
			SetProduct(0).
			SetTimeCreated(BaseTime).
			SetSerialNumber(SerialNumber).
			ToMesg(nil),
		mesgdef.NewCourse(nil).
			SetName(coursepoint.Truncate(name, coursepoint.MaxNameLength)).
			SetSport(typedef.SportCycling).
			ToMesg(nil),
		mesgdef.NewLap(nil).
			SetTimestamp(BaseTime).
			SetStartTime(BaseTime).
			SetStartPositionLat(ToSemicircles(first.Latitude)).
			SetStartPositionLong(ToSemicircles(first.Longitude)).
			SetEndPositionLat(ToSemicircles(last.Latitude)).
			SetEndPositionLong(ToSemicircles(last.Longitude)).
			SetTotalDistance(scaleDistance(total)).
			SetTotalTimerTime(uint32(elapsed)*1000).
			SetTotalElapsedTime(uint32(elapsed)*1000).
			ToMesg(nil),
		timerEvent(BaseTime, typedef.EventTypeStart),
	)

	for i, p := range points {
		rec := mesgdef.NewRecord(nil).
			SetTimestamp(BaseTime.Add(time.Duration(i) * time.Second)).
			SetPositionLat(ToSemicircles(p.Latitude)).
			SetPositionLong(ToSemicircles(p.Longitude)).
			SetDistance(scaleDistance(cum[i]))
		if p.Elevation != nil {
			rec.SetAltitude(scaleAltitude(*p.Elevation))
		}
		msgs = append(msgs, rec.ToMesg(nil))
	}

	for i, cp := range opts.CoursePoints {
		msgs = append(msgs, mesgdef.NewCoursePoint(nil).
			SetMessageIndex(typedef.MessageIndex(i)).
			SetTimestamp(CoursePointTime(cp.DistanceMeters, total, len(points))).
			SetPositionLat(ToSemicircles(cp.Latitude)).
			SetPositionLong(ToSemicircles(cp.Longitude)).
			SetDistance(scaleDistance(cp.DistanceMeters)).
			SetType(CoursePointType(cp.Type)).
			SetName(coursepoint.Truncate(cp.Name, coursepoint.MaxNameLength)).
			ToMesg(nil))
	}

	msgs = append(msgs, timerEvent(end, typedef.EventTypeStopAll))
	return proto.FIT{Messages: msgs}, nil
}

// Build encodes the course file.
func Build(opts Options) ([]byte, error) {
	fit, err := Messages(opts)
	if err != nil {
		return nil, err
	}
	var buf bytes.Buffer
	if err := encoder.New(&buf).Encode(&fit); err != nil {
		return nil, fmt.Errorf("encode fit course: %w", err)
	}
	return buf.Bytes(), nil
}

// CoursePointTime places a marker on the synthetic clock in proportion to
// its share of the total distance, rounded to the second.
func CoursePointTime(distance, total float64, numPoints int) time.Time {
	if total <= 0 || numPoints < 2 {
		return BaseTime
	}
	frac := math.Min(distance/total, 1)
	if frac < 0 {
		frac = 0
	}
	secs := math.Round(frac * float64(numPoints-1))
	return BaseTime.Add(time.Duration(secs) * time.Second)
}

func timerEvent(ts time.Time, eventType typedef.EventType) proto.Message {
	return mesgdef.NewEvent(nil).
		SetTimestamp(ts).
		SetEvent(typedef.EventTimer).
		SetEventType(eventType).
		SetEventGroup(0).
		ToMesg(nil)
}

// distance: scale 100, uint32.
func scaleDistance(m float64) uint32 {
	v := math.Round(scaleoffset.Discard(m, 100, 0))
	switch {
	case v < 0:
		return 0
	case v > math.MaxUint32-1:
		return math.MaxUint32 - 1
	}
	return uint32(v)
}

// altitude: scale 5, offset 500, uint16.
func scaleAltitude(m float64) uint16 {
	v := math.Round(scaleoffset.Discard(m, 5, 500))
	switch {
	case v < 0:
		return 0
	case v > math.MaxUint16-1:
		return math.MaxUint16 - 1
	}
	return uint16(v)
}
