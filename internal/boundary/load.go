package boundary

import (
	"context"
	"fmt"
	"io"
	"net/url"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/jonas-p/go-shp"
	"github.com/rotisserie/eris"
	"github.com/twpayne/go-geom"
	"github.com/twpayne/go-geom/encoding/geojson"
	"github.com/twpayne/go-geom/xy"
	"go.uber.org/zap"

	"github.com/sells-group/crime-map/internal/fetcher"
)

// Loader reads boundary datasets from local paths or http(s) URLs. Both
// may point at a GeoJSON file, a .shp file, or a .zip distribution.
type Loader struct {
	Fetcher fetcher.Fetcher
	// NameHint picks the layer inside a multi-layer zip, e.g. "buurt".
	NameHint string
}

// Load reads a boundary dataset with the default HTTP fetcher.
func Load(ctx context.Context, source string, fields Fields) (*Collection, error) {
	l := Loader{
		Fetcher:  fetcher.NewHTTPFetcher(fetcher.HTTPOptions{}),
		NameHint: "buurt",
	}
	return l.Load(ctx, source, fields)
}

// Load reads the dataset at source.
func (l Loader) Load(ctx context.Context, source string, fields Fields) (*Collection, error) {
	if !isURL(source) {
		return l.loadFile(source, fields)
	}

	dir, err := os.MkdirTemp("", "crime-map-boundary-*")
	if err != nil {
		return nil, eris.Wrap(err, "boundary: create temp dir")
	}
	defer os.RemoveAll(dir) //nolint:errcheck

	local := filepath.Join(dir, downloadName(source))
	n, err := l.Fetcher.DownloadToFile(ctx, source, local)
	if err != nil {
		return nil, eris.Wrapf(err, "boundary: download %s", source)
	}
	zap.L().Debug("boundary: downloaded dataset", zap.String("url", source), zap.Int64("bytes", n))
	return l.loadFile(local, fields)
}

func (l Loader) loadFile(source string, fields Fields) (*Collection, error) {
	switch strings.ToLower(filepath.Ext(source)) {
	case ".zip":
		dir, err := os.MkdirTemp("", "crime-map-unzip-*")
		if err != nil {
			return nil, eris.Wrap(err, "boundary: create temp dir")
		}
		defer os.RemoveAll(dir) //nolint:errcheck

		dataset, err := fetcher.ExtractDataset(source, dir, l.NameHint)
		if err != nil {
			return nil, eris.Wrapf(err, "boundary: unpack %s", source)
		}
		return l.loadFile(dataset, fields)
	case ".shp":
		return LoadShapefile(source, fields)
	default:
		f, err := os.Open(source)
		if err != nil {
			return nil, eris.Wrapf(err, "boundary: open %s", source)
		}
		defer f.Close() //nolint:errcheck
		return DecodeGeoJSON(f, fields)
	}
}

func isURL(source string) bool {
	return strings.HasPrefix(source, "http://") || strings.HasPrefix(source, "https://")
}

// downloadName keeps the URL's file name so the extension still selects
// the decoder.
func downloadName(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil {
		return "boundary.geojson"
	}
	name := path.Base(u.Path)
	if name == "." || name == "/" || name == "" {
		return "boundary.geojson"
	}
	return name
}

// DecodeGeoJSON parses a GeoJSON FeatureCollection. Features without a name
// property are kept but can never be matched.
func DecodeGeoJSON(r io.Reader, fields Fields) (*Collection, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, eris.Wrap(err, "boundary: read geojson")
	}

	var fc geojson.FeatureCollection
	if err := fc.UnmarshalJSON(data); err != nil {
		return nil, eris.Wrap(err, "boundary: parse geojson")
	}

	shapes := make([]Shape, 0, len(fc.Features))
	for _, f := range fc.Features {
		if f == nil {
			continue
		}
		shapes = append(shapes, Shape{
			Name:         stringProp(f.Properties, fields.Name),
			Municipality: stringProp(f.Properties, fields.Municipality),
			Geometry:     f.Geometry,
			Properties:   f.Properties,
		})
	}
	return NewCollection(shapes), nil
}

func stringProp(props map[string]any, key string) string {
	if key == "" || props == nil {
		return ""
	}
	switch v := props[key].(type) {
	case string:
		return v
	case nil:
		return ""
	default:
		return fmt.Sprint(v)
	}
}

// LoadShapefile reads polygon boundaries from a shapefile and its .dbf
// attributes. Coordinates are taken as-is and must already be WGS84.
func LoadShapefile(path string, fields Fields) (*Collection, error) {
	reader, err := shp.Open(path)
	if err != nil {
		return nil, eris.Wrapf(err, "boundary: open shapefile %s", path)
	}
	defer func() { _ = reader.Close() }()

	// Build field name → index map.
	fieldIdx := make(map[string]int)
	for i, f := range reader.Fields() {
		name := strings.TrimRight(f.String(), "\x00")
		fieldIdx[strings.ToUpper(name)] = i
	}
	attr := func(key string) string {
		idx, ok := fieldIdx[strings.ToUpper(key)]
		if !ok {
			return ""
		}
		return strings.TrimSpace(strings.TrimRight(reader.Attribute(idx), "\x00"))
	}

	var shapes []Shape
	var skipped int
	for reader.Next() {
		_, shape := reader.Shape()
		poly, ok := shape.(*shp.Polygon)
		if !ok {
			skipped++
			continue
		}
		g := polygonToMultiPolygon(poly)
		if g == nil {
			skipped++
			continue
		}

		props := make(map[string]any, len(fieldIdx))
		for name := range fieldIdx {
			props[name] = attr(name)
		}
		shapes = append(shapes, Shape{
			Name:         attr(fields.Name),
			Municipality: attr(fields.Municipality),
			Geometry:     g,
			Properties:   props,
		})
	}

	if skipped > 0 {
		zap.L().Debug("boundary: skipped shapefile records",
			zap.String("path", path),
			zap.Int("skipped", skipped),
		)
	}
	return NewCollection(shapes), nil
}

// polygonToMultiPolygon converts a shapefile Polygon to a geom.MultiPolygon.
// Clockwise parts are outer rings; counter-clockwise parts are holes of the
// smallest outer ring containing them. A hole with no enclosing ring is kept
// as a polygon of its own.
func polygonToMultiPolygon(p *shp.Polygon) *geom.MultiPolygon {
	if p == nil || p.NumParts == 0 || len(p.Points) == 0 {
		return nil
	}

	type ring struct {
		flat []float64
		area float64
	}
	var outers, holes []ring
	n := min(int(p.NumParts), len(p.Parts))
	for i := range n {
		start := p.Parts[i]
		end := int32(len(p.Points))
		if i+1 < n {
			end = p.Parts[i+1]
		}
		if start < 0 || start >= end || end > int32(len(p.Points)) {
			zap.L().Debug("boundary: skipping malformed polygon part", zap.Int("part", i))
			continue
		}

		flat := make([]float64, 0, (end-start)*2)
		for j := start; j < end; j++ {
			flat = append(flat, p.Points[j].X, p.Points[j].Y)
		}

		// Shapefiles store outer rings clockwise.
		area := xy.SignedArea(geom.XY, flat)
		switch {
		case area > 0:
			outers = append(outers, ring{flat: flat, area: area})
		case area < 0:
			holes = append(holes, ring{flat: flat, area: -area})
		default:
			zap.L().Debug("boundary: skipping degenerate polygon ring", zap.Int("part", i))
		}
	}

	polys := make([][][]float64, len(outers))
	for i, o := range outers {
		polys[i] = [][]float64{o.flat}
	}
	for _, h := range holes {
		owner := -1
		first := geom.Coord{h.flat[0], h.flat[1]}
		for i, o := range outers {
			if o.area <= h.area || !xy.IsPointInRing(geom.XY, first, o.flat) {
				continue
			}
			if owner < 0 || o.area < outers[owner].area {
				owner = i
			}
		}
		if owner < 0 {
			polys = append(polys, [][]float64{h.flat})
			continue
		}
		polys[owner] = append(polys[owner], h.flat)
	}

	mp := geom.NewMultiPolygon(geom.XY).SetSRID(4326)
	for i, rings := range polys {
		poly := geom.NewPolygon(geom.XY)
		var err error
		for _, r := range rings {
			if err = poly.Push(geom.NewLinearRingFlat(geom.XY, r)); err != nil {
				break
			}
		}
		if err == nil {
			err = mp.Push(poly)
		}
		if err != nil {
			zap.L().Debug("boundary: skipping malformed polygon", zap.Int("polygon", i), zap.Error(err))
		}
	}

	if mp.NumPolygons() == 0 {
		return nil
	}
	return mp
}
