package track

import (
	"errors"
	"testing"

	"github.com/lucasjlepore/cycleroute/geo"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const threePointGPX = `<?xml version="1.0" encoding="UTF-8"?>
<gpx version="1.1" creator="test" xmlns="http://www.topografix.com/GPX/1/1">
  <metadata><name>Equator Loop</name></metadata>
  <trk>
    <name>Track name</name>
    <trkseg>
      <trkpt lat="0" lon="0"><ele>0</ele></trkpt>
      <trkpt lat="0" lon="0.1"><ele>10</ele></trkpt>
      <trkpt lat="0" lon="0.2"><ele>5</ele></trkpt>
    </trkseg>
  </trk>
</gpx>`

func TestParseGPXThreePointScenario(t *testing.T) {
	parsed, err := Parse([]byte(threePointGPX))
	require.NoError(t, err)

	assert.Equal(t, "Equator Loop", parsed.Name)
	require.Len(t, parsed.Points, 3)
	assert.InDelta(t, 22239, parsed.DistanceMeters, 1)
	require.NotNil(t, parsed.ElevationGainMeters)
	assert.InDelta(t, 10, *parsed.ElevationGainMeters, 1e-9)
	assert.Equal(t, Bounds{MinLat: 0, MaxLat: 0, MinLon: 0, MaxLon: 0.2}, parsed.Bounds)
}

func TestParseGPXDistanceIsSumOfSegments(t *testing.T) {
	doc := `<gpx version="1.1" creator="test" xmlns="http://www.topografix.com/GPX/1/1"><trk><trkseg>
<trkpt lat="45.0" lon="7.0"/>
<trkpt lat="45.01" lon="7.02"/>
<trkpt lat="45.03" lon="7.01"/>
<trkpt lat="45.05" lon="7.04"/>
</trkseg></trk></gpx>`
	parsed, err := ParseGPX([]byte(doc))
	require.NoError(t, err)

	want := 0.0
	for i := 1; i < len(parsed.Points); i++ {
		a, b := parsed.Points[i-1], parsed.Points[i]
		want += geo.Distance(a.Latitude, a.Longitude, b.Latitude, b.Longitude)
	}
	assert.Equal(t, want, parsed.DistanceMeters)
	assert.Nil(t, parsed.ElevationGainMeters, "no point carries elevation")
	assert.Equal(t, DefaultName, parsed.Name)
}

func TestParseGPXConcatenatesSegments(t *testing.T) {
	doc := `<gpx version="1.1" creator="test" xmlns="http://www.topografix.com/GPX/1/1"><trk><name>Two parts</name>
<trkseg><trkpt lat="1" lon="1"/><trkpt lat="1" lon="2"/></trkseg>
<trkseg><trkpt lat="5" lon="5"><ele>100</ele></trkpt></trkseg>
</trk></gpx>`
	parsed, err := ParseGPX([]byte(doc))
	require.NoError(t, err)
	require.Len(t, parsed.Points, 3)
	assert.Equal(t, "Two parts", parsed.Name)
	assert.Equal(t, 5.0, parsed.Points[2].Latitude)
	require.NotNil(t, parsed.ElevationGainMeters, "one point with elevation makes the track elevation-aware")
	assert.Zero(t, *parsed.ElevationGainMeters)
}

func TestParseGPXFallsBackToRoute(t *testing.T) {
	doc := `<gpx version="1.1" creator="test" xmlns="http://www.topografix.com/GPX/1/1"><rte><name>Planned</name>
<rtept lat="10" lon="10"/><rtept lat="10.1" lon="10"/></rte></gpx>`
	parsed, err := ParseGPX([]byte(doc))
	require.NoError(t, err)
	assert.Equal(t, "Planned", parsed.Name)
	assert.Len(t, parsed.Points, 2)
}

func TestParseGPXFailures(t *testing.T) {
	tests := []struct {
		name string
		doc  string
		want error
	}{
		{"malformed", `<gpx version="1.1"><trk><trkseg>`, ErrMalformed},
		{"not xml", `definitely not a track`, ErrMalformed},
		{"waypoints only", `<gpx version="1.1" creator="t" xmlns="http://www.topografix.com/GPX/1/1"><wpt lat="1" lon="2"/></gpx>`, ErrNoTrack},
		{"empty segment", `<gpx version="1.1" creator="t" xmlns="http://www.topografix.com/GPX/1/1"><trk><trkseg></trkseg></trk></gpx>`, ErrNoPoints},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse([]byte(tt.doc))
			require.Error(t, err)
			assert.True(t, errors.Is(err, tt.want), "got %v", err)
		})
	}
}

func TestElevationGainNeverNegative(t *testing.T) {
	points := []Point{
		{Latitude: 0, Longitude: 0, Elevation: float64Ptr(500)},
		{Latitude: 0, Longitude: 0.01, Elevation: float64Ptr(400)},
		{Latitude: 0, Longitude: 0.02},
		{Latitude: 0, Longitude: 0.03, Elevation: float64Ptr(450)},
		{Latitude: 0, Longitude: 0.04, Elevation: float64Ptr(300)},
	}
	parsed, err := Summarize("descent", points)
	require.NoError(t, err)
	require.NotNil(t, parsed.ElevationGainMeters)
	assert.Zero(t, *parsed.ElevationGainMeters, "gaps across a missing elevation do not count")
}

func TestSummarizeRejectsEmpty(t *testing.T) {
	_, err := Summarize("x", nil)
	assert.ErrorIs(t, err, ErrNoPoints)
}
