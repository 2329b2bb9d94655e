package zoning

import (
	"fmt"
	"math"
	"strconv"
	"strings"
)

// Projection maps WGS-84 latitude/longitude into the coordinate system of a
// zoning layer. It returns (northing, easting) so results can be compared
// with rings stored in [y, x] order.
type Projection interface {
	Project(latDeg, lonDeg float64) (y, x float64)
}

type geographic struct{}

func (geographic) Project(latDeg, lonDeg float64) (float64, float64) { return latDeg, lonDeg }

// Geographic is the identity projection for layers stored in degrees.
var Geographic Projection = geographic{}

const (
	grs80A  = 6378137.0
	grs80E2 = 0.00669438002290
)

// LCCParams describes a two-standard-parallel Lambert Conformal Conic zone.
type LCCParams struct {
	OriginLat, CentralMeridian float64 // degrees
	Parallel1, Parallel2       float64 // degrees
	FalseEasting               float64 // output units
	FalseNorthing              float64 // output units
	SemiMajor                  float64 // metres
	E2                         float64 // eccentricity squared
	UnitsPerMeter              float64 // 0 means metres
}

// LambertConformalConic is an ellipsoidal LCC projection.
type LambertConformalConic struct {
	p       LCCParams
	e       float64
	n, f    float64
	rho0    float64
	lambda0 float64
}

// NewLambertConformalConic precomputes the cone constants for p.
func NewLambertConformalConic(p LCCParams) *LambertConformalConic {
	if p.SemiMajor == 0 {
		p.SemiMajor, p.E2 = grs80A, grs80E2
	}
	if p.UnitsPerMeter == 0 {
		p.UnitsPerMeter = 1
	}
	l := &LambertConformalConic{p: p, e: math.Sqrt(p.E2)}

	phi1 := p.Parallel1 * math.Pi / 180
	phi2 := p.Parallel2 * math.Pi / 180
	phi0 := p.OriginLat * math.Pi / 180

	m1, m2 := l.m(phi1), l.m(phi2)
	t1, t2 := l.t(phi1), l.t(phi2)

	l.n = math.Log(m1/m2) / math.Log(t1/t2)
	l.f = p.SemiMajor * p.UnitsPerMeter * m1 / (l.n * math.Pow(t1, l.n))
	l.rho0 = l.f * math.Pow(l.t(phi0), l.n)
	l.lambda0 = p.CentralMeridian * math.Pi / 180
	return l
}

func (l *LambertConformalConic) m(phi float64) float64 {
	s := math.Sin(phi)
	return math.Cos(phi) / math.Sqrt(1-l.p.E2*s*s)
}

func (l *LambertConformalConic) t(phi float64) float64 {
	es := l.e * math.Sin(phi)
	return math.Tan(math.Pi/4-phi/2) / math.Pow((1-es)/(1+es), l.e/2)
}

// Project returns (northing, easting) in the zone's units.
func (l *LambertConformalConic) Project(latDeg, lonDeg float64) (y, x float64) {
	phi := latDeg * math.Pi / 180
	lambda := lonDeg * math.Pi / 180

	rho := l.f * math.Pow(l.t(phi), l.n)
	theta := l.n * (lambda - l.lambda0)

	x = rho*math.Sin(theta) + l.p.FalseEasting
	y = l.rho0 - rho*math.Cos(theta) + l.p.FalseNorthing
	return y, x
}

// EuropeLCC is ETRS89 / LCC Europe (EPSG:3034), metres.
var EuropeLCC = NewLambertConformalConic(LCCParams{
	OriginLat:       52,
	CentralMeridian: 10,
	Parallel1:       35,
	Parallel2:       65,
	FalseEasting:    4000000,
	FalseNorthing:   2800000,
})

// ProjectionByName resolves a configured projection name. Besides the named
// systems it accepts a GRS80 conic in metres written as
// "lcc:originLat,centralMeridian,parallel1,parallel2,falseEasting,falseNorthing".
func ProjectionByName(name string) (Projection, error) {
	key := strings.ToLower(strings.TrimSpace(name))
	switch key {
	case "", "geographic", "wgs84", "epsg:4326":
		return Geographic, nil
	case "europe-lcc", "epsg:3034":
		return EuropeLCC, nil
	}
	if rest, ok := strings.CutPrefix(key, "lcc:"); ok {
		return parseLCC(rest)
	}
	return nil, fmt.Errorf("unknown projection %q", name)
}

func parseLCC(s string) (Projection, error) {
	parts := strings.Split(s, ",")
	if len(parts) != 6 {
		return nil, fmt.Errorf("lcc projection needs 6 comma-separated values, got %d", len(parts))
	}
	v := make([]float64, len(parts))
	for i, part := range parts {
		f, err := strconv.ParseFloat(strings.TrimSpace(part), 64)
		if err != nil {
			return nil, fmt.Errorf("lcc projection value %d: %w", i+1, err)
		}
		v[i] = f
	}
	if v[2] == v[3] {
		return nil, fmt.Errorf("lcc projection needs two distinct standard parallels")
	}
	return NewLambertConformalConic(LCCParams{
		OriginLat:       v[0],
		CentralMeridian: v[1],
		Parallel1:       v[2],
		Parallel2:       v[3],
		FalseEasting:    v[4],
		FalseNorthing:   v[5],
	}), nil
}
