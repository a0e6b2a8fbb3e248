package dsp

// These shapes are shared with the pretrained models. Changing any of them
// invalidates the combined model's input layout.
const (
	NumMels        = 128
	NumFrames      = 431
	FFTSize        = 2048
	HopLength      = 512
	ClipSeconds    = 5
	MelVectorLen   = NumMels * NumFrames
	NumFreqBins    = FFTSize/2 + 1
	ReconstructHz  = 44100
	GriffinLimIter = 64
	EmphasisCoef   = 0.97
	OutputGain     = 10.0
)

const (
	amin               = 1e-10
	topDB              = 80.0
	griffinLimMomentum = 0.99
	nnlsIterations     = 20
	phaseSeed          = 0
)
