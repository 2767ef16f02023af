// Package gpxexport renders a route and its points of interest as a GPX 1.1
// document.
package gpxexport

import (
	"bytes"
	"encoding/xml"
	"fmt"
	"strconv"
	"time"

	"github.com/lucasjlepore/cycleroute/coursepoint"
	"github.com/lucasjlepore/cycleroute/track"
)

const (
	Creator     = "CycleRoute Planner"
	ContentType = "application/gpx+xml"
	Namespace   = "http://www.topografix.com/GPX/1/1"
)

// Options describes one export.
type Options struct {
	Name        string
	Description string
	Points      []track.Point
	POIs        []coursepoint.POI
	// Now stamps the metadata; zero means the current time.
	Now time.Time
}

// File is the subset of the GPX 1.1 schema written by Build. Coordinates
// and elevations are kept as preformatted decimal strings so every float64
// survives a parse unchanged.
type File struct {
	XMLName   xml.Name   `xml:"gpx"`
	Version   string     `xml:"version,attr"`
	Creator   string     `xml:"creator,attr"`
	Xmlns     string     `xml:"xmlns,attr"`
	Metadata  Metadata   `xml:"metadata"`
	Waypoints []Waypoint `xml:"wpt"`
	Tracks    []Track    `xml:"trk"`
}

type Metadata struct {
	Name string `xml:"name"`
	Desc string `xml:"desc,omitempty"`
	Time string `xml:"time"`
}

type Waypoint struct {
	Lat  string `xml:"lat,attr"`
	Lon  string `xml:"lon,attr"`
	Name string `xml:"name"`
	Desc string `xml:"desc,omitempty"`
	Type string `xml:"type"`
}

type Track struct {
	Name     string         `xml:"name"`
	Segments []TrackSegment `xml:"trkseg"`
}

type TrackSegment struct {
	Points []TrackPoint `xml:"trkpt"`
}

type TrackPoint struct {
	Lat string  `xml:"lat,attr"`
	Lon string  `xml:"lon,attr"`
	Ele *string `xml:"ele,omitempty"`
}

// Document builds the GPX model for opts. Every track point is emitted
// unchanged.
func Document(opts Options) *File {
	now := opts.Now
	if now.IsZero() {
		now = time.Now().UTC()
	}
	name := opts.Name
	if name == "" {
		name = track.DefaultName
	}

	doc := &File{
		Version: "1.1",
		Creator: Creator,
		Xmlns:   Namespace,
		Metadata: Metadata{
			Name: name,
			Desc: opts.Description,
			Time: now.UTC().Format(time.RFC3339),
		},
	}

	for _, p := range opts.POIs {
		doc.Waypoints = append(doc.Waypoints, Waypoint{
			Lat:  formatCoord(p.Latitude),
			Lon:  formatCoord(p.Longitude),
			Name: p.Name,
			Desc: p.Description,
			Type: p.Category.GPXType(),
		})
	}

	seg := TrackSegment{Points: make([]TrackPoint, len(opts.Points))}
	for i, p := range opts.Points {
		pt := &seg.Points[i]
		pt.Lat = formatCoord(p.Latitude)
		pt.Lon = formatCoord(p.Longitude)
		if p.Elevation != nil {
			ele := formatCoord(*p.Elevation)
			pt.Ele = &ele
		}
	}
	doc.Tracks = []Track{{Name: name, Segments: []TrackSegment{seg}}}
	return doc
}

// Build serializes the export as indented GPX 1.1 XML.
func Build(opts Options) ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteString(xml.Header)
	enc := xml.NewEncoder(&buf)
	enc.Indent("", "  ")
	if err := enc.Encode(Document(opts)); err != nil {
		return nil, fmt.Errorf("encode gpx: %w", err)
	}
	buf.WriteByte('\n')
	return buf.Bytes(), nil
}

// formatCoord writes the shortest decimal that parses back to v, never in
// exponent form since xsd:decimal has none.
func formatCoord(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}
