package dsp

import "math"

// powerToDB converts power values to decibels referenced to their maximum,
// flooring at amin and clipping anything more than topDB below the peak.
func powerToDB(power []float64) []float64 {
	ref := 0.0
	for _, p := range power {
		if p > ref {
			ref = p
		}
	}
	refDB := 10 * math.Log10(math.Max(amin, ref))

	out := make([]float64, len(power))
	peak := math.Inf(-1)
	for i, p := range power {
		out[i] = 10*math.Log10(math.Max(amin, p)) - refDB
		if out[i] > peak {
			peak = out[i]
		}
	}
	floor := peak - topDB
	for i, v := range out {
		if v < floor {
			out[i] = floor
		}
	}
	return out
}

// dbToPower inverts powerToDB up to the discarded reference.
func dbToPower(db []float64) []float64 {
	out := make([]float64, len(db))
	for i, v := range db {
		out[i] = math.Pow(10, v/10)
	}
	return out
}
