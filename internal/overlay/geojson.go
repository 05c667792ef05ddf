package overlay

import (
	"strconv"

	"github.com/twpayne/go-geom/encoding/geojson"
)

// FeatureCollection encodes the overlay as GeoJSON. Each feature carries its
// Leaflet path options under "style" and the tooltip under "tooltip".
func (o *Overlay) FeatureCollection() *geojson.FeatureCollection {
	fc := &geojson.FeatureCollection{Features: make([]*geojson.Feature, 0, len(o.Features))}
	for _, f := range o.Features {
		props := map[string]any{
			"region_id":    f.RegionID,
			"name":         f.Name,
			"metric":       string(o.Metric),
			"style":        f.Style,
			"tooltip":      f.Tooltip,
			"tooltip_html": f.Tooltip.HTML(),
		}
		fc.Features = append(fc.Features, &geojson.Feature{
			ID:         strconv.Itoa(f.RegionID),
			Geometry:   f.Geometry,
			Properties: props,
		})
	}
	return fc
}
