package dsp

import (
	"math"
	"math/cmplx"

	"github.com/mjibson/go-dsp/fft"
)

// stft computes a centered, zero-padded short-time Fourier transform.
// The result is indexed [frame][bin] with NumFreqBins bins per frame.
func stft(y []float64, window []float64) [][]complex128 {
	pad := FFTSize / 2
	padded := make([]float64, len(y)+2*pad)
	copy(padded[pad:], y)

	n := 1 + len(y)/HopLength
	out := make([][]complex128, n)
	frame := make([]float64, FFTSize)
	for t := 0; t < n; t++ {
		start := t * HopLength
		for i := range frame {
			frame[i] = padded[start+i] * window[i]
		}
		spec := fft.FFTReal(frame)
		bins := make([]complex128, NumFreqBins)
		copy(bins, spec[:NumFreqBins])
		out[t] = bins
	}
	return out
}

// istft inverts stft by windowed overlap-add with squared-window
// normalisation. The output has HopLength*(frames-1) samples.
func istft(frames [][]complex128, window []float64) []float64 {
	if len(frames) == 0 {
		return nil
	}
	full := FFTSize + HopLength*(len(frames)-1)
	y := make([]float64, full)
	wss := make([]float64, full)
	buf := make([]complex128, FFTSize)

	for t, spec := range frames {
		buf[0] = complex(real(spec[0]), 0)
		for k := 1; k < FFTSize/2; k++ {
			buf[k] = spec[k]
			buf[FFTSize-k] = cmplx.Conj(spec[k])
		}
		buf[FFTSize/2] = complex(real(spec[FFTSize/2]), 0)

		td := fft.IFFT(buf)
		start := t * HopLength
		for i := 0; i < FFTSize; i++ {
			y[start+i] += real(td[i]) * window[i]
			wss[start+i] += window[i] * window[i]
		}
	}

	for i := range y {
		if wss[i] > math.SmallestNonzeroFloat64 {
			y[i] /= wss[i]
		}
	}

	pad := FFTSize / 2
	out := make([]float64, full-2*pad)
	copy(out, y[pad:full-pad])
	return out
}
