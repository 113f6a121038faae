package numeric

import "math"

// Epsilon is the default floor below which a denominator is treated as
// degenerate.
const Epsilon = 1e-9

// SafeDiv divides num by den, substituting fallback when the denominator
// is near zero or either operand is non-finite. The result is always finite.
func SafeDiv(num, den, fallback float64) float64 {
	if !IsFinite(num) || !IsFinite(den) {
		return fallback
	}
	if math.Abs(den) < Epsilon {
		return fallback
	}
	out := num / den
	if !IsFinite(out) {
		return fallback
	}
	return out
}

// SafeSqrt returns sqrt(v), treating small negative values (numerical
// noise from covariance arithmetic) as zero and substituting fallback
// for anything genuinely negative or non-finite.
func SafeSqrt(v, fallback float64) float64 {
	if !IsFinite(v) {
		return fallback
	}
	if v < 0 {
		if v > -Epsilon {
			return 0
		}
		return fallback
	}
	return math.Sqrt(v)
}

// SafeLog returns ln(v), substituting fallback for non-positive or
// non-finite input.
func SafeLog(v, fallback float64) float64 {
	if !IsFinite(v) || v <= 0 {
		return fallback
	}
	return math.Log(v)
}

// Clamp bounds v to [lo, hi]. Non-finite input collapses to lo.
func Clamp(v, lo, hi float64) float64 {
	if !IsFinite(v) {
		return lo
	}
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

// Clamp01 bounds v to the unit interval.
func Clamp01(v float64) float64 {
	return Clamp(v, 0, 1)
}

// FloorAt returns v, raised to floor when below it or non-finite.
func FloorAt(v, floor float64) float64 {
	if !IsFinite(v) || v < floor {
		return floor
	}
	return v
}

// IsFinite reports whether v is neither NaN nor infinite.
func IsFinite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}
