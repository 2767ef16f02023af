package cycleroute

import (
	"sort"

	"github.com/lucasjlepore/cycleroute/coursepoint"
	"github.com/lucasjlepore/cycleroute/track"
)

// POIStop is a point of interest placed along the route.
type POIStop struct {
	Name        string               `json:"name"`
	Category    coursepoint.Category `json:"category"`
	Label       string               `json:"label"`
	Description string               `json:"description,omitempty"`
	// DistanceMeters is the along-track distance to the nearest point on any
	// segment, not just the nearest vertex.
	DistanceMeters float64 `json:"distance_m"`
	Latitude       float64 `json:"latitude"`
	Longitude      float64 `json:"longitude"`
}

// CategoryCount is the number of POIs in one category.
type CategoryCount struct {
	Category coursepoint.Category `json:"category"`
	Label    string               `json:"label"`
	Count    int                  `json:"count"`
}

// ListPOIs places every POI on the route and orders them by distance from
// the start. Equal distances keep input order.
func ListPOIs(points []track.Point, pois []coursepoint.POI) []POIStop {
	if len(pois) == 0 {
		return nil
	}
	out := make([]POIStop, len(pois))
	for i, p := range pois {
		out[i] = POIStop{
			Name:           p.Name,
			Category:       p.Category,
			Label:          p.Category.Label(),
			Description:    p.Description,
			DistanceMeters: track.DistanceAlong(points, p.Latitude, p.Longitude),
			Latitude:       p.Latitude,
			Longitude:      p.Longitude,
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].DistanceMeters < out[j].DistanceMeters })
	return out
}

// CountPOIs groups POIs by category in display order, skipping empty
// categories. Unknown categories count as other.
func CountPOIs(pois []coursepoint.POI) []CategoryCount {
	counts := make(map[coursepoint.Category]int, len(pois))
	for _, p := range pois {
		c := p.Category
		if !c.Valid() {
			c = coursepoint.CategoryOther
		}
		counts[c]++
	}
	var out []CategoryCount
	for _, c := range coursepoint.Categories() {
		if n := counts[c]; n > 0 {
			out = append(out, CategoryCount{Category: c, Label: c.Label(), Count: n})
		}
	}
	return out
}

// AddPOIs attaches the POI listing and per-category counts to s.
func (s *RouteSummary) AddPOIs(points []track.Point, pois []coursepoint.POI) {
	if s == nil {
		return
	}
	s.POIs = ListPOIs(points, pois)
	s.POICategories = CountPOIs(pois)
}
