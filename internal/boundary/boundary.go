// Package boundary holds the neighbourhood boundary shapes that regions are
// joined to by name.
package boundary

import (
	"strings"

	"github.com/twpayne/go-geom"
	"golang.org/x/text/cases"
)

// Shape is one named boundary polygon.
type Shape struct {
	Name         string
	Municipality string
	Geometry     geom.T
	Properties   map[string]any
}

// Fields names the feature properties used for matching.
type Fields struct {
	Name         string
	Municipality string
}

// DefaultFields are the CBS wijk- en buurtkaart property names.
var DefaultFields = Fields{Name: "BUURTNAAM", Municipality: "GM_NAAM"}

// Collection is an immutable, name-indexed set of shapes.
type Collection struct {
	shapes []Shape
	index  map[string]int
}

// NewCollection indexes shapes by case-folded name. With duplicate names the
// earliest shape wins.
func NewCollection(shapes []Shape) *Collection {
	c := &Collection{
		shapes: shapes,
		index:  make(map[string]int, len(shapes)),
	}
	for i, s := range shapes {
		key := foldKey(s.Name)
		if key == "" {
			continue
		}
		if _, dup := c.index[key]; !dup {
			c.index[key] = i
		}
	}
	return c
}

// Find returns the shape whose name equals regionName, ignoring case. A nil
// collection never matches.
func (c *Collection) Find(regionName string) (*Shape, bool) {
	if c == nil {
		return nil, false
	}
	i, ok := c.index[foldKey(regionName)]
	if !ok {
		return nil, false
	}
	return &c.shapes[i], true
}

// Len returns the number of shapes.
func (c *Collection) Len() int {
	if c == nil {
		return 0
	}
	return len(c.shapes)
}

// Shapes returns the shapes in collection order.
func (c *Collection) Shapes() []Shape {
	if c == nil {
		return nil
	}
	return c.shapes
}

// FilterMunicipality keeps shapes whose municipality contains target,
// ignoring case. An empty target keeps everything.
func (c *Collection) FilterMunicipality(target string) *Collection {
	if c == nil {
		return NewCollection(nil)
	}
	want := foldKey(target)
	if want == "" {
		return c
	}
	kept := make([]Shape, 0, len(c.shapes))
	for _, s := range c.shapes {
		if strings.Contains(foldKey(s.Municipality), want) {
			kept = append(kept, s)
		}
	}
	return NewCollection(kept)
}

// foldKey normalizes a name for case-insensitive exact comparison.
func foldKey(s string) string {
	return cases.Fold().String(s)
}
