package dsp

import (
	"math"

	"gonum.org/v1/gonum/mat"
)

// Slaney mel scale: linear below 1 kHz, logarithmic above.
const (
	melFSp       = 200.0 / 3
	melMinLogHz  = 1000.0
	melMinLogMel = melMinLogHz / melFSp
)

var melLogStep = math.Log(6.4) / 27.0

func hzToMel(f float64) float64 {
	if f >= melMinLogHz {
		return melMinLogMel + math.Log(f/melMinLogHz)/melLogStep
	}
	return f / melFSp
}

func melToHz(m float64) float64 {
	if m >= melMinLogMel {
		return melMinLogHz * math.Exp(melLogStep*(m-melMinLogMel))
	}
	return melFSp * m
}

// melFilterBank builds an nMels x (nFFT/2+1) matrix of triangular filters
// spanning 0..sampleRate/2 with Slaney area normalisation.
func melFilterBank(sampleRate float64, nFFT, nMels int) *mat.Dense {
	bins := nFFT/2 + 1
	fftFreqs := make([]float64, bins)
	for k := range fftFreqs {
		fftFreqs[k] = float64(k) * sampleRate / float64(nFFT)
	}

	minMel := hzToMel(0)
	maxMel := hzToMel(sampleRate / 2)
	melF := make([]float64, nMels+2)
	for i := range melF {
		m := minMel + (maxMel-minMel)*float64(i)/float64(nMels+1)
		melF[i] = melToHz(m)
	}

	weights := mat.NewDense(nMels, bins, nil)
	for i := 0; i < nMels; i++ {
		lowerWidth := melF[i+1] - melF[i]
		upperWidth := melF[i+2] - melF[i+1]
		enorm := 2.0 / (melF[i+2] - melF[i])
		for k, f := range fftFreqs {
			lower := (f - melF[i]) / lowerWidth
			upper := (melF[i+2] - f) / upperWidth
			w := math.Min(lower, upper)
			if w > 0 {
				weights.Set(i, k, w*enorm)
			}
		}
	}
	return weights
}
