// Package zoning tags warehouse records with the zoning district they fall in,
// read from polygon shapefiles.
package zoning

import (
	"fmt"
	"math"
	"strings"

	shp "github.com/jonas-p/go-shp"

	"valuation/internal/types"
)

// Zone code attributes, in lookup order. DBF truncates names to 10 characters.
var zoneFields = []string{"ZONING", "BASE_ZONIN", "ZONE_CODE"}

// Feature is a polygon (possibly multi-part) with its attribute values.
type Feature struct {
	Parts [][][2]float64 // closed rings of [y, x] points
	Attrs map[string]string

	MinY, MinX, MaxY, MaxX float64
}

// NewFeature builds a feature and its bounding box from rings of [y, x] points.
func NewFeature(parts [][][2]float64, attrs map[string]string) Feature {
	f := Feature{Parts: parts, Attrs: attrs}
	f.MinY, f.MinX = math.MaxFloat64, math.MaxFloat64
	f.MaxY, f.MaxX = -math.MaxFloat64, -math.MaxFloat64
	for _, ring := range parts {
		for _, pt := range ring {
			f.MinY = math.Min(f.MinY, pt[0])
			f.MaxY = math.Max(f.MaxY, pt[0])
			f.MinX = math.Min(f.MinX, pt[1])
			f.MaxX = math.Max(f.MaxX, pt[1])
		}
	}
	return f
}

// Contains reports whether (y, x) lies inside any ring of the feature.
func (f Feature) Contains(y, x float64) bool {
	if y < f.MinY || y > f.MaxY || x < f.MinX || x > f.MaxX {
		return false
	}
	for _, ring := range f.Parts {
		if pointInPolygon(y, x, ring) {
			return true
		}
	}
	return false
}

// Layer is a set of zoning polygons sharing one projection. Earlier features
// win when polygons overlap.
type Layer struct {
	proj     Projection
	features []Feature
}

// NewLayer returns a layer over the given features.
func NewLayer(proj Projection, features ...Feature) *Layer {
	if proj == nil {
		proj = Geographic
	}
	return &Layer{proj: proj, features: features}
}

// Load reads every shapefile in paths into one layer. Base zoning should come
// before overlay districts.
func Load(proj Projection, paths ...string) (*Layer, error) {
	l := NewLayer(proj)
	for _, path := range paths {
		feats, err := loadShapefile(path)
		if err != nil {
			return nil, fmt.Errorf("load zoning shapefile %s: %w", path, err)
		}
		l.features = append(l.features, feats...)
	}
	return l, nil
}

// Len returns the number of polygons in the layer.
func (l *Layer) Len() int { return len(l.features) }

func loadShapefile(path string) ([]Feature, error) {
	r, err := shp.Open(path)
	if err != nil {
		return nil, err
	}
	defer r.Close()

	fields := r.Fields()

	var features []Feature
	for r.Next() {
		idx, shape := r.Shape()
		poly, ok := shape.(*shp.Polygon)
		if !ok {
			continue
		}

		numParts := len(poly.Parts)
		parts := make([][][2]float64, numParts)
		for partIdx := 0; partIdx < numParts; partIdx++ {
			start := poly.Parts[partIdx]
			end := int32(len(poly.Points))
			if partIdx+1 < numParts {
				end = poly.Parts[partIdx+1]
			}
			ring := make([][2]float64, 0, int(end-start))
			for i := start; i < end; i++ {
				pt := poly.Points[i]
				ring = append(ring, [2]float64{pt.Y, pt.X})
			}
			parts[partIdx] = ring
		}

		attrs := make(map[string]string, len(fields))
		for i, f := range fields {
			attrs[f.String()] = strings.TrimSpace(r.ReadAttribute(idx, i))
		}
		features = append(features, NewFeature(parts, attrs))
	}
	return features, nil
}

// Lookup returns the attributes of the first polygon containing p.
func (l *Layer) Lookup(p types.Point) (map[string]string, bool) {
	if !p.Valid() {
		return nil, false
	}
	y, x := l.proj.Project(p.Lat, p.Lon)
	for _, f := range l.features {
		if f.Contains(y, x) {
			return f.Attrs, true
		}
	}
	return nil, false
}

// ZoneCode picks the district code out of a polygon's attributes.
func ZoneCode(attrs map[string]string) string {
	for _, k := range zoneFields {
		if v := strings.TrimSpace(attrs[k]); v != "" {
			return v
		}
	}
	return ""
}

// Annotate sets Zone on every record that falls inside a polygon and returns
// how many were tagged. Records without coordinates are left alone.
func (l *Layer) Annotate(records []types.Record) int {
	tagged := 0
	for i := range records {
		attrs, ok := l.Lookup(records[i].Point())
		if !ok {
			continue
		}
		if code := ZoneCode(attrs); code != "" {
			records[i].Zone = code
			tagged++
		}
	}
	return tagged
}

// pointInPolygon is the ray-casting test over a ring of [y, x] points.
func pointInPolygon(y, x float64, ring [][2]float64) bool {
	inside := false
	j := len(ring) - 1
	for i := 0; i < len(ring); i++ {
		yi, xi := ring[i][0], ring[i][1]
		yj, xj := ring[j][0], ring[j][1]
		if ((yi > y) != (yj > y)) && (x < (xj-xi)*(y-yi)/(yj-yi)+xi) {
			inside = !inside
		}
		j = i
	}
	return inside
}
