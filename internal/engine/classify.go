package engine

import "github.com/shopspring/decimal"

// Classify applies the six-way status rule for one joined row. Presence and
// zero are distinct states: a side that never appeared is missing data, an
// explicit zero participates in the arithmetic comparison.
func Classify(plannedPresent, actualPresent bool, planned, actual, tolerance decimal.Decimal) Status {
	switch {
	case !plannedPresent && !actualPresent:
		return StatusNoData
	case !plannedPresent:
		return StatusNotPlanned
	case !actualPresent:
		return StatusNoCoverage
	}
	diff := planned.Sub(actual)
	if diff.Abs().LessThanOrEqual(tolerance) {
		return StatusExact
	}
	if diff.IsPositive() {
		return StatusOverstaffed
	}
	return StatusUnderstaffed
}
