package dsp

import (
	"github.com/ewilliams-labs/cadence/internal/core/domain"
	"gonum.org/v1/gonum/mat"
)

// ToMel computes the log-power mel spectrogram of audio, flattened row-major
// as NumMels rows of one value per STFT frame. The dB reference is the
// clip's own peak mel power.
func ToMel(audio *domain.AudioBuffer) (domain.MelSpectrogram, error) {
	if audio == nil || len(audio.Samples) == 0 || audio.SampleRate <= 0 {
		return domain.MelSpectrogram{}, domain.ErrInvalidAudio
	}

	spec := stft(audio.Samples, hannWindow(FFTSize))
	frames := len(spec)

	// power is bins x frames so the mel projection is a single product.
	power := mat.NewDense(NumFreqBins, frames, nil)
	for t, col := range spec {
		for k, c := range col {
			re, im := real(c), imag(c)
			power.Set(k, t, re*re+im*im)
		}
	}

	basis := melFilterBank(float64(audio.SampleRate), FFTSize, NumMels)
	var mel mat.Dense
	mel.Mul(basis, power)

	flat := make([]float64, 0, NumMels*frames)
	for b := 0; b < NumMels; b++ {
		flat = append(flat, mel.RawRowView(b)...)
	}

	return domain.MelSpectrogram{
		Bands:  NumMels,
		Frames: frames,
		Data:   powerToDB(flat),
	}, nil
}

// FramesFor reports how many STFT frames ToMel yields for n samples.
func FramesFor(n int) int {
	return 1 + n/HopLength
}
