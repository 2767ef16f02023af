// Package coursepoint merges turn cues and points of interest into a single
// distance-ordered list of course points.
package coursepoint

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"sort"
	"unicode/utf8"

	"github.com/lucasjlepore/cycleroute/track"
)

// MaxNameLength is the longest course point name, in characters.
const MaxNameLength = 32

var ErrInvalidPOI = errors.New("invalid point of interest")

// CoursePoint is a named marker on the route.
type CoursePoint struct {
	Name           string     `json:"name"`
	Latitude       float64    `json:"latitude"`
	Longitude      float64    `json:"longitude"`
	DistanceMeters float64    `json:"distance_m"`
	Type           MarkerType `json:"type"`
}

// Cue is a turn instruction with a precomputed along-route distance.
type Cue struct {
	Instruction    string   `json:"instruction"`
	Latitude       float64  `json:"latitude"`
	Longitude      float64  `json:"longitude"`
	DistanceMeters *float64 `json:"distance_m,omitempty"`
}

// POI is a user-placed point of interest. Its route distance is derived by
// snapping to the track.
type POI struct {
	Name        string   `json:"name"`
	Description string   `json:"description,omitempty"`
	Category    Category `json:"category"`
	Latitude    float64  `json:"latitude"`
	Longitude   float64  `json:"longitude"`
}

// Validate checks the name length, category and coordinates.
func (p POI) Validate() error {
	n := utf8.RuneCountInString(p.Name)
	switch {
	case n == 0 || n > 255:
		return fmt.Errorf("%w: name must be 1-255 characters", ErrInvalidPOI)
	case !p.Category.Valid():
		return fmt.Errorf("%w: unknown category %q", ErrInvalidPOI, p.Category)
	case p.Latitude < -90 || p.Latitude > 90:
		return fmt.Errorf("%w: latitude %v out of range", ErrInvalidPOI, p.Latitude)
	case p.Longitude < -180 || p.Longitude > 180:
		return fmt.Errorf("%w: longitude %v out of range", ErrInvalidPOI, p.Longitude)
	}
	return nil
}

// annotation is either a Cue or a POI.
type annotation interface {
	coursePoint(points []track.Point, cum []float64) CoursePoint
}

func (c Cue) coursePoint([]track.Point, []float64) CoursePoint {
	d := 0.0
	if c.DistanceMeters != nil {
		d = *c.DistanceMeters
	}
	return CoursePoint{
		Name:           Truncate(c.Instruction, MaxNameLength),
		Latitude:       c.Latitude,
		Longitude:      c.Longitude,
		DistanceMeters: d,
		Type:           InstructionType(c.Instruction),
	}
}

func (p POI) coursePoint(points []track.Point, cum []float64) CoursePoint {
	return CoursePoint{
		Name:           Truncate(p.Name, MaxNameLength),
		Latitude:       p.Latitude,
		Longitude:      p.Longitude,
		DistanceMeters: track.SnapDistanceWith(points, cum, p.Latitude, p.Longitude),
		Type:           p.Category.MarkerType(),
	}
}

// Merge converts cues and POIs to course points sorted by distance. Equal
// distances keep input order with cues ahead of POIs.
func Merge(points []track.Point, cues []Cue, pois []POI) []CoursePoint {
	all := make([]annotation, 0, len(cues)+len(pois))
	for _, c := range cues {
		all = append(all, c)
	}
	for _, p := range pois {
		all = append(all, p)
	}
	if len(all) == 0 {
		return nil
	}

	var cum []float64
	if len(pois) > 0 {
		cum = track.CumulativeDistances(points)
	}
	out := make([]CoursePoint, len(all))
	for i, a := range all {
		out[i] = a.coursePoint(points, cum)
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].DistanceMeters < out[j].DistanceMeters
	})
	return out
}

// Truncate shortens s to at most n characters without splitting a rune.
func Truncate(s string, n int) string {
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	i := 0
	for pos := range s {
		if i == n {
			return s[:pos]
		}
		i++
	}
	return s
}

// Annotations is the JSON document of cues and POIs supplied for a route.
type Annotations struct {
	Cues []Cue `json:"cues"`
	POIs []POI `json:"pois"`
}

// ReadAnnotations decodes and validates an annotations document.
func ReadAnnotations(r io.Reader) (*Annotations, error) {
	var a Annotations
	if err := json.NewDecoder(r).Decode(&a); err != nil {
		return nil, fmt.Errorf("decode annotations: %w", err)
	}
	for i, p := range a.POIs {
		if err := p.Validate(); err != nil {
			return nil, fmt.Errorf("poi %d: %w", i, err)
		}
	}
	return &a, nil
}
