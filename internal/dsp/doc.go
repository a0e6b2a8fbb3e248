// Package dsp converts between audio waveforms and the fixed-size log-power
// mel spectrograms the classifiers consume.
//
// The forward path (ToMel) computes a centered STFT, projects its power onto
// 128 Slaney mel bands and converts to decibels referenced to the clip's own
// peak power. The inverse path (ToAudio) undoes the decibel step, recovers a
// linear magnitude spectrogram by non-negative least squares against the mel
// basis and estimates phase with Griffin-Lim.
//
// Phase is discarded by the forward transform, so reconstruction is lossy by
// construction. ToAudio exists so an operator can hear roughly what the model
// heard; it is not an audio codec.
package dsp
