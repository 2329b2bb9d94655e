package idw

import (
	"errors"
	"fmt"

	"valuation/internal/comps"
	"valuation/internal/types"
)

// Status describes whether an interpolation produced an estimate.
type Status string

const (
	StatusOK           Status = "ok"
	StatusInsufficient Status = "insufficient"
	StatusEmpty        Status = "empty"
)

// Result is the estimator output handed to display collaborators. Estimate and
// Weights are only meaningful when Status is StatusOK.
type Result struct {
	Status           Status   `json:"status"`
	InsufficientData bool     `json:"insufficient_data"`
	Estimate         float64  `json:"estimate"`
	Power            float64  `json:"power"`
	Coincident       bool     `json:"coincident"`
	Comparables      int      `json:"comparables"`
	Weights          []Weight `json:"weights,omitempty"`
}

// Compute interpolates the target's unit price from the comparable set. Too few
// comparables is reported through Result.Status, not as an error; errors are
// returned only for an invalid power or target location.
func Compute(target types.Record, set comps.Set, power float64) (Result, error) {
	if err := validatePower(power); err != nil {
		return Result{}, err
	}

	samples := make([]Sample, len(set))
	for i, c := range set {
		samples[i] = Sample{Point: c.Point(), Value: c.UnitPrice}
	}

	res := Result{Power: power, Comparables: len(set)}

	w, err := weigh(target.Point(), samples, power)
	switch {
	case errors.Is(err, types.ErrEmptyComparableSet):
		res.Status = StatusEmpty
		res.InsufficientData = true
		return res, nil
	case errors.Is(err, types.ErrInsufficientComparables):
		res.Status = StatusInsufficient
		res.InsufficientData = true
		return res, nil
	case err != nil:
		return Result{}, err
	}

	res.Status = StatusOK
	res.Estimate = w.estimate
	res.Coincident = w.coincident >= 0
	res.Weights = w.weights
	return res, nil
}

// Err converts a non-OK status into the matching sentinel error.
func (r Result) Err() error {
	switch r.Status {
	case StatusEmpty:
		return fmt.Errorf("%w: %w", types.ErrInsufficientComparables, types.ErrEmptyComparableSet)
	case StatusInsufficient:
		return types.ErrInsufficientComparables
	}
	return nil
}
