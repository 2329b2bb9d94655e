// Package geo computes geodesic distances between warehouse locations and the
// coarse bounding boxes used to pre-select candidates from a database.
package geo

import (
	"fmt"

	"github.com/tidwall/geodesic"

	"valuation/internal/types"
)

// Distance returns the geodesic distance in kilometres between a and b on the
// WGS-84 ellipsoid. Out-of-range or missing coordinates are rejected with
// types.ErrInvalidCoordinate rather than clamped.
func Distance(a, b types.Point) (float64, error) {
	if err := Validate(a); err != nil {
		return 0, err
	}
	if err := Validate(b); err != nil {
		return 0, err
	}
	if a == b {
		return 0, nil
	}

	// Solve in a canonical order so swapping the arguments yields the same bits.
	if less(b, a) {
		a, b = b, a
	}
	var meters float64
	geodesic.WGS84.Inverse(a.Lat, a.Lon, b.Lat, b.Lon, &meters, nil, nil)
	return meters / 1000, nil
}

// Validate returns a wrapped types.ErrInvalidCoordinate when p is not a usable
// latitude/longitude pair.
func Validate(p types.Point) error {
	if !p.Valid() {
		return fmt.Errorf("%w: lat=%v lon=%v", types.ErrInvalidCoordinate, p.Lat, p.Lon)
	}
	return nil
}

func less(a, b types.Point) bool {
	if a.Lat != b.Lat {
		return a.Lat < b.Lat
	}
	return a.Lon < b.Lon
}
