// Package style maps region metrics to map colours and stroke weights.
package style

import (
	"math"
	"strings"

	"github.com/sells-group/crime-map/internal/model"
)

// FillOpacity is the fill opacity applied to every overlay.
const FillOpacity = 0.35

// Marker radius bounds for point rendering.
const (
	MinRadius = 6.0
	MaxRadius = 22.0
)

// Crime level palette, level 1 (low risk) to level 5 (high risk).
var crimeLevelColors = [5]string{"#16a34a", "#84cc16", "#f59e0b", "#f97316", "#ef4444"}

// Crime type keys.
const (
	CrimeTypeDrugs     = "drugs"
	CrimeTypeRobberies = "robberies"
	CrimeTypeViolent   = "violent"
	CrimeTypeOther     = "other"
)

var crimeTypeColors = map[string]string{
	CrimeTypeDrugs:     "#22c55e",
	CrimeTypeRobberies: "#3b82f6",
	CrimeTypeViolent:   "#ef4444",
	CrimeTypeOther:     "#a855f7",
}

// E33 threshold buckets, evaluated top-down with strict greater-than.
var e33Buckets = []struct {
	above float64
	color string
}{
	{0.40, "#7f1d1d"},
	{0.25, "#b91c1c"},
	{0.15, "#f97316"},
	{0.05, "#facc15"},
}

const e33BaseColor = "#22c55e"

// Style is the visual encoding of one region.
type Style struct {
	Color       string  `json:"color"`
	FillColor   string  `json:"fillColor"`
	Weight      int     `json:"weight"`
	Radius      float64 `json:"radius,omitempty"`
	FillOpacity float64 `json:"fillOpacity"`
}

// ColorForCrimeLevel clamps level into [1,5] before the palette lookup.
func ColorForCrimeLevel(level int) string {
	idx := min(max(level-1, 0), len(crimeLevelColors)-1)
	return crimeLevelColors[idx]
}

// ColorForE33 buckets a crisis-call fraction. Values on a boundary fall into
// the lower bucket; NaN lands in the base bucket.
func ColorForE33(p float64) string {
	for _, b := range e33Buckets {
		if p > b.above {
			return b.color
		}
	}
	return e33BaseColor
}

// CrimeTypeKey normalizes a crime type to a palette key; unknown or empty
// types map to "other".
func CrimeTypeKey(crimeType string) string {
	key := strings.ToLower(crimeType)
	if _, ok := crimeTypeColors[key]; ok {
		return key
	}
	return CrimeTypeOther
}

// ColorForCrimeType looks up the categorical colour.
func ColorForCrimeType(crimeType string) string {
	return crimeTypeColors[CrimeTypeKey(crimeType)]
}

// StrokeWeightForIncidents returns the outline weight tier for n incidents.
func StrokeWeightForIncidents(n int) int {
	switch {
	case n >= 40:
		return 4
	case n >= 25:
		return 3
	case n >= 10:
		return 2
	default:
		return 1
	}
}

// RadiusForIncidents sizes a point marker: 6 + sqrt(max(n,1)), capped at 22.
func RadiusForIncidents(n int) float64 {
	r := MinRadius + math.Sqrt(float64(max(n, 1)))
	return math.Min(r, MaxRadius)
}

// ColorFor picks the colour for the active metric. Unknown metrics use the
// categorical encoding.
func ColorFor(r model.Region, metric model.Metric) string {
	switch metric {
	case model.MetricCrimeLevel:
		return ColorForCrimeLevel(r.CrimeLevel)
	case model.MetricE33Percent:
		return ColorForE33(r.E33())
	default:
		return ColorForCrimeType(r.PrevalentCrimeType)
	}
}

// For computes the polygon style of a region.
func For(r model.Region, metric model.Metric) Style {
	c := ColorFor(r, metric)
	return Style{
		Color:       c,
		FillColor:   c,
		Weight:      StrokeWeightForIncidents(r.IncidentCount),
		FillOpacity: FillOpacity,
	}
}

// ForMarker computes the point-marker style of a region.
func ForMarker(r model.Region, metric model.Metric) Style {
	s := For(r, metric)
	s.Weight = 1
	s.Radius = RadiusForIncidents(r.IncidentCount)
	return s
}
