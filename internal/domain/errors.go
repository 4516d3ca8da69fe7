package domain

import "fmt"

// The error taxonomy below is deliberately small. None of these conditions
// are transient, so callers never retry - they map each category to a
// user-facing message (bad request, "widen date range", data-quality issue).

// InvalidParameterError reports a malformed or out-of-range input parameter.
// This is a caller bug, not a data problem.
type InvalidParameterError struct {
	Name   string
	Reason string
}

func (e *InvalidParameterError) Error() string {
	return fmt.Sprintf("invalid parameter %s: %s", e.Name, e.Reason)
}

// InsufficientDataError reports that the available history is too short for
// the requested window or resolution. Surfaced to the user as "widen the date
// range or shorten the window".
type InsufficientDataError struct {
	Have int
	Need int
}

func (e *InsufficientDataError) Error() string {
	return fmt.Sprintf("insufficient data: have %d points, need at least %d", e.Have, e.Need)
}

// InvalidPriceDataError reports a corrupt value in the input price series at
// the first offending index. The pipeline fails fast rather than skipping
// bad points silently.
type InvalidPriceDataError struct {
	Index  int
	Price  float64
	Reason string
}

func (e *InvalidPriceDataError) Error() string {
	if e.Reason != "" {
		return fmt.Sprintf("invalid price data at index %d: %s", e.Index, e.Reason)
	}
	return fmt.Sprintf("invalid price data at index %d: price %v must be positive and finite", e.Index, e.Price)
}

// EmptyDistributionError reports a zero-length return distribution reaching a
// statistic. Usually the consequence of an upstream InsufficientDataError.
type EmptyDistributionError struct{}

func (e *EmptyDistributionError) Error() string {
	return "empty return distribution"
}
