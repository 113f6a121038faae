package numeric

// Mean returns the arithmetic mean of xs, or fallback for an empty sample.
func Mean(xs []float64, fallback float64) float64 {
	if len(xs) == 0 {
		return fallback
	}
	sum := 0.0
	for _, x := range xs {
		if !IsFinite(x) {
			return fallback
		}
		sum += x
	}
	return sum / float64(len(xs))
}

// StdDev returns the sample standard deviation of xs, or fallback when
// fewer than two observations are available.
func StdDev(xs []float64, fallback float64) float64 {
	if len(xs) < 2 {
		return fallback
	}
	mean := Mean(xs, 0)
	sum2 := 0.0
	for _, x := range xs {
		if !IsFinite(x) {
			return fallback
		}
		d := x - mean
		sum2 += d * d
	}
	variance := sum2 / float64(len(xs)-1)
	if variance < 0 {
		variance = 0
	}
	return SafeSqrt(variance, fallback)
}

// Pearson computes the correlation coefficient between two equal-length
// series. Degenerate samples (short, mismatched, or zero variance on
// either side) yield 0, the neutral value. The result is clamped to
// [-1, 1] to absorb floating error.
func Pearson(xs, ys []float64) float64 {
	n := len(xs)
	if n < 2 || n != len(ys) {
		return 0
	}
	mx := Mean(xs, 0)
	my := Mean(ys, 0)
	var sxy, sxx, syy float64
	for i := 0; i < n; i++ {
		dx := xs[i] - mx
		dy := ys[i] - my
		sxy += dx * dy
		sxx += dx * dx
		syy += dy * dy
	}
	den := SafeSqrt(sxx*syy, 0)
	r := SafeDiv(sxy, den, 0)
	return Clamp(r, -1, 1)
}
