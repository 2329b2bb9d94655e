// Package appraisal runs one valuation of a target warehouse: comparable
// selection, IDW interpolation and the derived totals shown to users.
//
// Evaluate is a pure function of its inputs; repeated calls with the same
// dataset and parameters return the same Evaluation. Caching lives in the
// cache package.
package appraisal

import (
	"fmt"

	"valuation/internal/comps"
	"valuation/internal/idw"
	"valuation/internal/types"
)

// Params are the user-tunable inputs of an evaluation.
type Params struct {
	MaxDistanceKm float64 `json:"max_distance_km"`
	MinArea       float64 `json:"min_area"`
	MaxArea       float64 `json:"max_area"`
	Power         float64 `json:"power"`
}

// ParamsFromTolerance builds parameters with an area band of target area ± tolerance.
func ParamsFromTolerance(target types.Record, maxDistanceKm, areaTolerance, power float64) Params {
	lo, hi := comps.AreaBand(target.TotalArea, areaTolerance)
	return Params{MaxDistanceKm: maxDistanceKm, MinArea: lo, MaxArea: hi, Power: power}
}

// Criteria returns the filter part of the parameters.
func (p Params) Criteria() comps.Criteria {
	return comps.Criteria{MaxDistanceKm: p.MaxDistanceKm, MinArea: p.MinArea, MaxArea: p.MaxArea}
}

// Summary holds the totals derived from an estimate.
type Summary struct {
	PredictedUnitPrice float64 `json:"predicted_unit_price"`
	ActualUnitPrice    float64 `json:"actual_unit_price"`
	PredictedTotal     float64 `json:"predicted_total"`
	ActualTotal        float64 `json:"actual_total"`

	// DeviationPercent is nil when the target has no recorded unit price.
	DeviationPercent *float64 `json:"deviation_percent,omitempty"`
}

// Evaluation is the full outcome of one run.
type Evaluation struct {
	Target      types.Record `json:"target"`
	Params      Params       `json:"params"`
	Comparables comps.Set    `json:"comparables"`
	Result      idw.Result   `json:"result"`
	Summary     *Summary     `json:"summary,omitempty"`
}

// Evaluate selects the comparables for target out of records and interpolates
// its unit price. A power of 0 means idw.DefaultPower. Too few comparables is
// reported through Result.InsufficientData with a nil Summary.
func Evaluate(target types.Record, records []types.Record, p Params) (Evaluation, error) {
	if p.Power == 0 {
		p.Power = idw.DefaultPower
	}

	set, err := comps.Filter(target, records, p.Criteria())
	if err != nil {
		return Evaluation{}, fmt.Errorf("filter comparables: %w", err)
	}

	res, err := idw.Compute(target, set, p.Power)
	if err != nil {
		return Evaluation{}, fmt.Errorf("compute idw: %w", err)
	}

	ev := Evaluation{
		Target:      target,
		Params:      p,
		Comparables: set,
		Result:      res,
	}
	if !res.InsufficientData {
		s := Summarize(target, res.Estimate)
		ev.Summary = &s
	}
	return ev, nil
}

// Summarize derives the total prices and the deviation from the target's
// recorded unit price.
func Summarize(target types.Record, estimate float64) Summary {
	s := Summary{
		PredictedUnitPrice: estimate,
		ActualUnitPrice:    target.UnitPrice,
		PredictedTotal:     estimate * target.TotalArea,
		ActualTotal:        target.UnitPrice * target.TotalArea,
	}
	if target.UnitPrice != 0 {
		dev := (estimate - target.UnitPrice) / target.UnitPrice * 100
		s.DeviationPercent = &dev
	}
	return s
}
