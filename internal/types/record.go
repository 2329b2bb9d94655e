package types

import "math"

// Record is one warehouse transaction. Numeric fields are already parsed from
// their currency/locale representation by the dataset loaders.
type Record struct {
	Identifier string  `json:"identifier"`
	Latitude   float64 `json:"latitude"`
	Longitude  float64 `json:"longitude"`
	TotalArea  float64 `json:"total_area"`
	Price      float64 `json:"price"`
	UnitPrice  float64 `json:"unit_price"`

	// Zone is the zoning district code when a zoning layer was loaded.
	Zone string `json:"zone,omitempty"`
}

// Point is a WGS-84 latitude/longitude pair in decimal degrees.
type Point struct {
	Lat float64 `json:"lat"`
	Lon float64 `json:"lon"`
}

// Point returns the record's coordinates.
func (r Record) Point() Point {
	return Point{Lat: r.Latitude, Lon: r.Longitude}
}

// HasCoordinates reports whether both coordinates are present and inside
// their valid ranges. Records without them never take part in an evaluation.
func (r Record) HasCoordinates() bool {
	return r.Point().Valid()
}

// Valid reports whether the point is finite and within [-90,90] x [-180,180].
func (p Point) Valid() bool {
	if math.IsNaN(p.Lat) || math.IsNaN(p.Lon) || math.IsInf(p.Lat, 0) || math.IsInf(p.Lon, 0) {
		return false
	}
	return p.Lat >= -90 && p.Lat <= 90 && p.Lon >= -180 && p.Lon <= 180
}

// SameRecord reports whether a and b are the same transaction row: every
// field is equal, with NaN matching NaN. A second sale at the same address is
// a different row and may serve as a comparable for the first.
func SameRecord(a, b Record) bool {
	return a.Identifier == b.Identifier &&
		a.Zone == b.Zone &&
		sameFloat(a.Latitude, b.Latitude) &&
		sameFloat(a.Longitude, b.Longitude) &&
		sameFloat(a.TotalArea, b.TotalArea) &&
		sameFloat(a.Price, b.Price) &&
		sameFloat(a.UnitPrice, b.UnitPrice)
}

func sameFloat(a, b float64) bool {
	return a == b || (math.IsNaN(a) && math.IsNaN(b))
}
