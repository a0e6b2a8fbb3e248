package dsp

// preEmphasis applies y[n] = x[n] - coef*x[n-1]. The filter state before the
// first sample is linearly extrapolated as 2*x[0] - x[1], matching deEmphasis.
func preEmphasis(x []float64, coef float64) []float64 {
	out := make([]float64, len(x))
	if len(x) == 0 {
		return out
	}
	state := 0.0
	if len(x) > 1 {
		state = 2*x[0] - x[1]
	}
	out[0] = x[0] + state
	for n := 1; n < len(x); n++ {
		out[n] = x[n] - coef*x[n-1]
	}
	return out
}

// deEmphasis is the inverse of preEmphasis: x[n] = y[n] + coef*x[n-1], with a
// decaying correction for the extrapolated initial state.
func deEmphasis(y []float64, coef float64) []float64 {
	out := make([]float64, len(y))
	if len(y) == 0 {
		return out
	}
	prev := 0.0
	for n, v := range y {
		prev = v + coef*prev
		out[n] = prev
	}
	if len(y) < 2 {
		return out
	}

	k := ((2-coef)*y[0] - y[1]) / (3 - coef)
	decay := 1.0
	for n := range out {
		out[n] -= k * decay
		decay *= coef
	}
	return out
}
