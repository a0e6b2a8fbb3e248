package domain

import "time"

// ClipDuration bounds every preview handed to the spectral transform.
const ClipDuration = 5 * time.Second

// AudioBuffer holds mono samples in [-1, 1] at their native rate.
type AudioBuffer struct {
	Samples    []float64
	SampleRate int
}

// Duration reports the buffer length in time.
func (b AudioBuffer) Duration() time.Duration {
	if b.SampleRate <= 0 {
		return 0
	}
	return time.Duration(float64(len(b.Samples)) / float64(b.SampleRate) * float64(time.Second))
}

// MelSpectrogram is a Bands x Frames log-power matrix flattened row-major.
type MelSpectrogram struct {
	Bands  int
	Frames int
	Data   []float64
}

// Waveform is reconstructed audio ready for encoding.
type Waveform struct {
	Samples    []float64
	SampleRate int
}
