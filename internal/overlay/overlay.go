// Package overlay turns regions and their boundary shapes into styled map
// features with tooltips, ready to hand to a Leaflet-style map surface.
package overlay

import (
	"strings"

	"github.com/rotisserie/eris"
	"github.com/twpayne/go-geom"

	"github.com/sells-group/crime-map/internal/boundary"
	"github.com/sells-group/crime-map/internal/model"
	"github.com/sells-group/crime-map/internal/style"
)

// Mode selects polygon or point-marker rendering.
type Mode string

const (
	// ModePolygon draws matched boundary shapes only.
	ModePolygon Mode = "polygon"
	// ModeMarker draws every region as a circle at its centroid.
	ModeMarker Mode = "marker"
)

// ParseMode resolves a render mode name. Empty means polygon.
func ParseMode(s string) (Mode, error) {
	switch Mode(strings.ToLower(strings.TrimSpace(s))) {
	case ModePolygon, "":
		return ModePolygon, nil
	case ModeMarker:
		return ModeMarker, nil
	default:
		return "", eris.Errorf("overlay: unknown render mode %q", s)
	}
}

// Renderer builds overlays.
type Renderer struct {
	Mode        Mode
	FillOpacity float64
}

// NewRenderer creates a Renderer. A non-positive opacity uses style.FillOpacity.
func NewRenderer(mode Mode, fillOpacity float64) Renderer {
	if mode == "" {
		mode = ModePolygon
	}
	if fillOpacity <= 0 {
		fillOpacity = style.FillOpacity
	}
	return Renderer{Mode: mode, FillOpacity: fillOpacity}
}

// Feature is one drawable region.
type Feature struct {
	RegionID int
	Name     string
	Geometry geom.T
	Style    style.Style
	Tooltip  Tooltip
}

// Overlay is the rendered output for one region set.
type Overlay struct {
	Metric   model.Metric
	Mode     Mode
	Features []Feature
	// Unmatched holds regions that had no usable boundary shape. They are
	// still part of the region data and its aggregates.
	Unmatched []model.Region
	Regions   []model.Region
}

// Render styles every region for the metric. In polygon mode regions
// without a boundary shape (or with an empty geometry) are left out of
// Features; in marker mode every region is drawn at its centroid.
func (r Renderer) Render(regions []model.Region, shapes *boundary.Collection, metric model.Metric) *Overlay {
	out := &Overlay{
		Metric:   metric,
		Mode:     r.Mode,
		Features: make([]Feature, 0, len(regions)),
		Regions:  regions,
	}

	for _, reg := range regions {
		f := Feature{
			RegionID: reg.ID,
			Name:     reg.Name,
			Tooltip:  TooltipFor(reg),
		}

		if r.Mode == ModeMarker {
			f.Geometry = geom.NewPointFlat(geom.XY, []float64{reg.CenterLon, reg.CenterLat}).SetSRID(4326)
			f.Style = style.ForMarker(reg, metric)
		} else {
			shape, ok := shapes.Find(reg.Name)
			if !ok || shape.Geometry == nil {
				out.Unmatched = append(out.Unmatched, reg)
				continue
			}
			f.Geometry = shape.Geometry
			f.Style = style.For(reg, metric)
		}
		f.Style.FillOpacity = r.FillOpacity
		out.Features = append(out.Features, f)
	}

	return out
}
