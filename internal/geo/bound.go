package geo

import (
	"math"

	"github.com/paulmach/orb"
	orbgeo "github.com/paulmach/orb/geo"

	"valuation/internal/types"
)

// boundPadding widens the spherical box so it always contains the ellipsoidal
// radius.
const boundPadding = 1.01

// Bound is a latitude/longitude box. LonLimited is false when the box would
// wrap the antimeridian, in which case only the latitude range applies.
type Bound struct {
	MinLat, MaxLat float64
	MinLon, MaxLon float64
	LonLimited     bool
}

// Contains reports whether p lies inside the box.
func (b Bound) Contains(p types.Point) bool {
	if p.Lat < b.MinLat || p.Lat > b.MaxLat {
		return false
	}
	if b.LonLimited && (p.Lon < b.MinLon || p.Lon > b.MaxLon) {
		return false
	}
	return true
}

// BoundAround returns a box containing every point within radiusKm of center.
// It is a pre-selection only; callers still apply the exact Distance.
func BoundAround(center types.Point, radiusKm float64) (Bound, error) {
	if err := Validate(center); err != nil {
		return Bound{}, err
	}
	if radiusKm < 0 {
		radiusKm = 0
	}

	ob := orbgeo.NewBoundAroundPoint(orb.Point{center.Lon, center.Lat}, radiusKm*1000*boundPadding)

	b := Bound{
		MinLat:     ob.Min.Lat(),
		MaxLat:     ob.Max.Lat(),
		MinLon:     ob.Min.Lon(),
		MaxLon:     ob.Max.Lon(),
		LonLimited: true,
	}
	if b.MinLat <= -90 || b.MaxLat >= 90 {
		// A box touching a pole spans every longitude.
		b.LonLimited = false
	}
	if math.IsNaN(b.MinLon) || math.IsNaN(b.MaxLon) || b.MinLon < -180 || b.MaxLon > 180 || b.MinLon > b.MaxLon {
		b.LonLimited = false
	}
	if b.MinLat < -90 {
		b.MinLat = -90
	}
	if b.MaxLat > 90 {
		b.MaxLat = 90
	}
	return b, nil
}
