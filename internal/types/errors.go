package types

import "errors"

// Evaluation errors. Callers match them with errors.Is; the engine wraps them
// with the offending value.
var (
	// ErrInvalidCoordinate indicates a latitude or longitude outside its valid
	// range, or one that is missing.
	ErrInvalidCoordinate = errors.New("invalid coordinate")

	// ErrInsufficientComparables indicates fewer than the minimum number of
	// comparables needed for an interpolation.
	ErrInsufficientComparables = errors.New("insufficient comparables")

	// ErrEmptyComparableSet indicates that no record passed the filter.
	ErrEmptyComparableSet = errors.New("empty comparable set")

	// ErrInvalidPower indicates a non-positive or non-finite IDW exponent.
	ErrInvalidPower = errors.New("invalid power")

	// ErrInvalidParameters indicates a malformed distance threshold or area band.
	ErrInvalidParameters = errors.New("invalid parameters")

	// ErrTargetNotFound indicates the requested target is not in the dataset.
	ErrTargetNotFound = errors.New("target not found")
)
