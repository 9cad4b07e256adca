package fuzzy

import "math"

// DontCare marks an antecedent evaluation that places no constraint on a
// rule. It is distinct from a missing input value, which lives on the
// variable (see Variable.SetMissing).
const DontCare = -1.0

// And is the conjunction used across a rule's antecedents.
func And(x, y float64) float64 {
	switch {
	case x == DontCare && y == DontCare:
		return DontCare
	case x == DontCare:
		return y
	case y == DontCare:
		return x
	default:
		return math.Min(x, y)
	}
}

// Threshold classifies a crisp output: 1 at or above threshold, 0 for
// non-negative values below it, -1 otherwise.
func Threshold(value, threshold float64) int {
	switch {
	case value >= threshold:
		return 1
	case value >= 0:
		return 0
	default:
		return -1
	}
}
