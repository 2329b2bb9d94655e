// Package idw interpolates a target's unit price from its comparables with
// Inverse Distance Weighting.
package idw

import (
	"fmt"
	"math"

	"valuation/internal/geo"
	"valuation/internal/types"
)

const (
	// DefaultPower is the inverse-square exponent.
	DefaultPower = 2.0

	// MinComparables is the smallest number of located comparables an
	// estimate is produced from.
	MinComparables = 3
)

// Sample is one located value to interpolate from.
type Sample struct {
	Point types.Point
	Value float64
}

// Weight is the diagnostic breakdown for one comparable.
type Weight struct {
	Index            int     `json:"index"`
	DistanceKm       float64 `json:"distance_km"`
	Value            float64 `json:"value"`
	RawWeight        float64 `json:"raw_weight"`
	NormalizedWeight float64 `json:"normalized_weight"`
	WeightPercent    float64 `json:"weight_percent"`
	Contribution     float64 `json:"contribution"`
	Coincident       bool    `json:"coincident,omitempty"`

	// Saturated marks a RawWeight clamped to math.MaxFloat64 because 1/d^power
	// overflowed. NormalizedWeight is unaffected.
	Saturated bool `json:"saturated,omitempty"`
}

// weighting is the outcome of one interpolation over valid samples.
type weighting struct {
	estimate   float64
	weights    []Weight
	coincident int // index into weights, -1 when weighting applied
}

// Estimate returns the distance-weighted average of the sample values seen from
// target. Samples without valid coordinates are ignored; fewer than
// MinComparables located samples is rejected with
// types.ErrInsufficientComparables.
func Estimate(target types.Point, samples []Sample, power float64) (float64, error) {
	w, err := weigh(target, samples, power)
	if err != nil {
		return 0, err
	}
	return w.estimate, nil
}

func validatePower(power float64) error {
	if math.IsNaN(power) || math.IsInf(power, 0) || power <= 0 {
		return fmt.Errorf("%w: %v", types.ErrInvalidPower, power)
	}
	return nil
}

func weigh(target types.Point, samples []Sample, power float64) (weighting, error) {
	if err := validatePower(power); err != nil {
		return weighting{}, err
	}
	if err := geo.Validate(target); err != nil {
		return weighting{}, fmt.Errorf("target: %w", err)
	}

	ws := make([]Weight, 0, len(samples))
	for i, s := range samples {
		d, err := geo.Distance(target, s.Point)
		if err != nil {
			continue
		}
		ws = append(ws, Weight{Index: i, DistanceKm: d, Value: s.Value})
	}

	if len(ws) == 0 {
		return weighting{}, fmt.Errorf("%w: %w", types.ErrInsufficientComparables, types.ErrEmptyComparableSet)
	}
	if len(ws) < MinComparables {
		return weighting{}, fmt.Errorf("%w: have %d, need %d", types.ErrInsufficientComparables, len(ws), MinComparables)
	}

	// A comparable at the target's location is taken as ground truth.
	for i := range ws {
		if ws[i].DistanceKm == 0 {
			ws[i].Coincident = true
			ws[i].NormalizedWeight = 1
			ws[i].WeightPercent = 100
			ws[i].Contribution = ws[i].Value
			return weighting{estimate: ws[i].Value, weights: ws, coincident: i}, nil
		}
	}

	// Normalise against the nearest comparable so that (dMin/d)^p stays in (0,1].
	dMin := ws[0].DistanceKm
	lo, hi := ws[0].Value, ws[0].Value
	for _, w := range ws[1:] {
		dMin = math.Min(dMin, w.DistanceKm)
		lo = math.Min(lo, w.Value)
		hi = math.Max(hi, w.Value)
	}

	var total float64
	for i := range ws {
		ws[i].RawWeight, ws[i].Saturated = rawWeight(ws[i].DistanceKm, power)
		ws[i].NormalizedWeight = math.Pow(dMin/ws[i].DistanceKm, power)
		total += ws[i].NormalizedWeight
	}

	var estimate float64
	for i := range ws {
		ws[i].NormalizedWeight /= total
		ws[i].WeightPercent = ws[i].NormalizedWeight * 100
		ws[i].Contribution = ws[i].Value * ws[i].NormalizedWeight
		estimate += ws[i].Contribution
	}

	// Rounding must not push a weighted mean outside its inputs.
	estimate = math.Max(lo, math.Min(hi, estimate))

	return weighting{estimate: estimate, weights: ws, coincident: -1}, nil
}

// rawWeight returns 1/d^power, clamped to the largest finite float64 so the
// diagnostics stay JSON-encodable.
func rawWeight(d, power float64) (float64, bool) {
	w := 1 / math.Pow(d, power)
	if math.IsInf(w, 0) || math.IsNaN(w) {
		return math.MaxFloat64, true
	}
	return w, false
}
