package systems

import "math"

// eps guards denominators that may collapse to zero.
const eps = 1e-9

// clamp bounds v to [lo, hi]. NaN collapses to lo.
func clamp(v, lo, hi float64) float64 {
	if math.IsNaN(v) {
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

// clamp01 clamps v to the [0, 1] range.
func clamp01(v float64) float64 {
	return clamp(v, 0, 1)
}

// clampPercent clamps v to the [0, 100] range.
func clampPercent(v float64) float64 {
	return clamp(v, 0, 100)
}

// finite returns v, or fallback when v is NaN or infinite.
func finite(v, fallback float64) float64 {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return fallback
	}
	return v
}

// approach moves cur toward target by the fraction alpha.
func approach(cur, target, alpha float64) float64 {
	return cur + (target-cur)*alpha
}
