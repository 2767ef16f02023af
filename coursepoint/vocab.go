package coursepoint

import "strings"

// MarkerType is the course point kind understood by bike computers.
type MarkerType string

const (
	Generic     MarkerType = "generic"
	Left        MarkerType = "left"
	Right       MarkerType = "right"
	Straight    MarkerType = "straight"
	SharpLeft   MarkerType = "sharpLeft"
	SharpRight  MarkerType = "sharpRight"
	SlightLeft  MarkerType = "slightLeft"
	SlightRight MarkerType = "slightRight"
	UTurn       MarkerType = "uTurn"
	Food        MarkerType = "food"
	Water       MarkerType = "water"
	RestArea    MarkerType = "restArea"
	Summit      MarkerType = "summit"
	Danger      MarkerType = "danger"
)

var instructionTypes = map[string]MarkerType{
	"turn left":    Left,
	"left":         Left,
	"turn right":   Right,
	"right":        Right,
	"straight":     Straight,
	"continue":     Straight,
	"sharp left":   SharpLeft,
	"sharp right":  SharpRight,
	"slight left":  SlightLeft,
	"bear left":    SlightLeft,
	"slight right": SlightRight,
	"bear right":   SlightRight,
	"u-turn":       UTurn,
	"food":         Food,
	"rest stop":    Food,
	"water":        Water,
}

// InstructionType maps a free-text cue instruction to a marker type.
func InstructionType(instruction string) MarkerType {
	if t, ok := instructionTypes[strings.ToLower(strings.TrimSpace(instruction))]; ok {
		return t
	}
	return Generic
}

// Category is a point-of-interest category.
type Category string

const (
	CategoryFood      Category = "FOOD"
	CategoryWater     Category = "WATER"
	CategoryRestroom  Category = "RESTROOM"
	CategoryViewpoint Category = "VIEWPOINT"
	CategoryCaution   Category = "CAUTION"
	CategoryOther     Category = "OTHER"
)

type categoryInfo struct {
	marker MarkerType
	gpx    string
	label  string
}

var categories = map[Category]categoryInfo{
	CategoryFood:      {Food, "FOOD", "Food"},
	CategoryWater:     {Water, "WATER", "Water"},
	CategoryRestroom:  {RestArea, "TOILET", "Restroom"},
	CategoryViewpoint: {Summit, "OVERLOOK", "Viewpoint"},
	CategoryCaution:   {Danger, "DANGER", "Caution"},
	CategoryOther:     {Generic, "GENERIC", "Other"},
}

// Categories lists the known categories in display order.
func Categories() []Category {
	return []Category{CategoryFood, CategoryWater, CategoryRestroom, CategoryViewpoint, CategoryCaution, CategoryOther}
}

// Valid reports whether c is one of the known categories.
func (c Category) Valid() bool {
	_, ok := categories[c]
	return ok
}

// MarkerType returns the FIT course point type; unknown categories are generic.
func (c Category) MarkerType() MarkerType {
	if info, ok := categories[c]; ok {
		return info.marker
	}
	return Generic
}

// GPXType returns the waypoint <type> value; unknown categories are GENERIC.
func (c Category) GPXType() string {
	if info, ok := categories[c]; ok {
		return info.gpx
	}
	return "GENERIC"
}

// Label returns the human readable category name.
func (c Category) Label() string {
	if info, ok := categories[c]; ok {
		return info.label
	}
	return "Other"
}
