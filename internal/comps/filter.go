// Package comps selects the comparable transactions for a target warehouse by
// geographic distance and floor-area band.
package comps

import (
	"fmt"
	"math"

	"valuation/internal/geo"
	"valuation/internal/types"
)

// Criteria bounds the comparable search. The area band is inclusive at both ends
// and may be negative when built from a large tolerance.
type Criteria struct {
	MaxDistanceKm float64 `json:"max_distance_km"`
	MinArea       float64 `json:"min_area"`
	MaxArea       float64 `json:"max_area"`
}

// Comparable is a record that passed the filter, paired with its distance to the target.
type Comparable struct {
	types.Record
	DistanceKm float64 `json:"distance_km"`
}

// Set is the ordered list of comparables for one target.
type Set []Comparable

// Validate checks the distance threshold and the area band.
func (c Criteria) Validate() error {
	if math.IsNaN(c.MaxDistanceKm) || c.MaxDistanceKm < 0 {
		return fmt.Errorf("%w: max distance %v km", types.ErrInvalidParameters, c.MaxDistanceKm)
	}
	if math.IsNaN(c.MinArea) || math.IsNaN(c.MaxArea) {
		return fmt.Errorf("%w: area band [%v, %v]", types.ErrInvalidParameters, c.MinArea, c.MaxArea)
	}
	if c.MinArea > c.MaxArea {
		return fmt.Errorf("%w: min area %v exceeds max area %v", types.ErrInvalidParameters, c.MinArea, c.MaxArea)
	}
	return nil
}

// AreaBand returns the band targetArea ± tolerance.
func AreaBand(targetArea, tolerance float64) (minArea, maxArea float64) {
	return targetArea - tolerance, targetArea + tolerance
}

// Filter returns the candidates within c.MaxDistanceKm of the target whose total
// area lies inside the band, in input order. Candidates without valid
// coordinates and the target's own row are skipped; other sales at the target's
// address are kept. An empty set is not an error.
func Filter(target types.Record, candidates []types.Record, c Criteria) (Set, error) {
	if err := c.Validate(); err != nil {
		return nil, err
	}
	origin := target.Point()
	if err := geo.Validate(origin); err != nil {
		return nil, fmt.Errorf("target %q: %w", target.Identifier, err)
	}

	set := Set{}
	for _, cand := range candidates {
		if types.SameRecord(cand, target) {
			continue
		}
		if !cand.HasCoordinates() {
			continue
		}
		// NaN areas fail both comparisons.
		if !(cand.TotalArea >= c.MinArea && cand.TotalArea <= c.MaxArea) {
			continue
		}

		dist, err := geo.Distance(origin, cand.Point())
		if err != nil {
			continue
		}
		if dist > c.MaxDistanceKm {
			continue
		}
		set = append(set, Comparable{Record: cand, DistanceKm: dist})
	}
	return set, nil
}

// Records returns the underlying records of the set.
func (s Set) Records() []types.Record {
	out := make([]types.Record, len(s))
	for i, c := range s {
		out[i] = c.Record
	}
	return out
}

// Contains reports whether the set holds the given row.
func (s Set) Contains(r types.Record) bool {
	for _, c := range s {
		if types.SameRecord(c.Record, r) {
			return true
		}
	}
	return false
}
