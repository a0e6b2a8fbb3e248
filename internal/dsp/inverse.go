package dsp

import (
	"fmt"
	"math"
	"math/cmplx"
	"math/rand"

	"github.com/ewilliams-labs/cadence/internal/core/domain"
	"gonum.org/v1/gonum/mat"
)

// Reconstructor turns a flattened mel spectrogram back into audio.
// The zero value is not usable; start from DefaultReconstructor.
type Reconstructor struct {
	Iterations     int
	NNLSIterations int
	Seed           int64
}

// DefaultReconstructor returns the fixed reconstruction parameters.
func DefaultReconstructor() Reconstructor {
	return Reconstructor{
		Iterations:     GriffinLimIter,
		NNLSIterations: nnlsIterations,
		Seed:           phaseSeed,
	}
}

// ToAudio reconstructs a waveform from a NumMels x NumFrames dB mel vector
// using the default parameters. outRate <= 0 selects ReconstructHz.
func ToAudio(mel []float64, outRate int) (domain.Waveform, error) {
	return DefaultReconstructor().ToAudio(mel, outRate)
}

// ToAudio reconstructs a waveform. Output is deterministic for a given
// Reconstructor and input, and has HopLength*(NumFrames-1) samples.
func (r Reconstructor) ToAudio(mel []float64, outRate int) (domain.Waveform, error) {
	if len(mel) != MelVectorLen {
		return domain.Waveform{}, &domain.ShapeError{What: "mel spectrogram", Want: MelVectorLen, Got: len(mel)}
	}
	if outRate <= 0 {
		outRate = ReconstructHz
	}
	if r.Iterations < 0 || r.NNLSIterations < 0 {
		return domain.Waveform{}, fmt.Errorf("dsp: negative iteration count")
	}

	melPower := mat.NewDense(NumMels, NumFrames, dbToPower(mel))
	basis := melFilterBank(float64(outRate), FFTSize, NumMels)

	linear, err := melToLinear(melPower, basis, r.NNLSIterations)
	if err != nil {
		return domain.Waveform{}, err
	}

	// Power to magnitude, transposed to [frame][bin].
	mag := make([][]float64, NumFrames)
	for t := range mag {
		row := make([]float64, NumFreqBins)
		for k := range row {
			row[k] = math.Sqrt(linear.At(k, t))
		}
		mag[t] = row
	}

	// #nosec G404 -- phase initialisation must be reproducible, not secret
	rng := rand.New(rand.NewSource(r.Seed))
	y := griffinLim(mag, r.Iterations, rng)

	y = deEmphasis(y, EmphasisCoef)
	y = preEmphasis(y, EmphasisCoef)
	for i := range y {
		y[i] *= OutputGain
	}

	return domain.Waveform{Samples: y, SampleRate: outRate}, nil
}

// melToLinear solves min ||basis*X - melPower|| subject to X >= 0. It starts
// from the clipped minimum-norm least-squares solution and refines it with a
// fixed number of projected gradient steps.
func melToLinear(melPower, basis *mat.Dense, iterations int) (*mat.Dense, error) {
	var gram mat.SymDense
	gram.SymOuterK(1, basis)

	var eig mat.EigenSym
	if !eig.Factorize(&gram, false) {
		return nil, fmt.Errorf("dsp: mel basis eigendecomposition failed")
	}
	lipschitz := 0.0
	for _, v := range eig.Values(nil) {
		lipschitz = math.Max(lipschitz, v)
	}
	if lipschitz <= 0 {
		return nil, fmt.Errorf("dsp: degenerate mel basis")
	}

	n, _ := gram.Dims()
	ridge := 1e-8 * lipschitz
	for i := 0; i < n; i++ {
		gram.SetSym(i, i, gram.At(i, i)+ridge)
	}
	var chol mat.Cholesky
	if !chol.Factorize(&gram) {
		return nil, fmt.Errorf("dsp: mel basis gram matrix not positive definite")
	}

	var coeff mat.Dense
	if err := chol.SolveTo(&coeff, melPower); err != nil {
		return nil, fmt.Errorf("dsp: least squares solve: %w", err)
	}

	x := &mat.Dense{}
	x.Mul(basis.T(), &coeff)
	clampNonNegative(x)

	step := 1 / lipschitz
	var residual, grad mat.Dense
	for i := 0; i < iterations; i++ {
		residual.Mul(basis, x)
		residual.Sub(&residual, melPower)
		grad.Mul(basis.T(), &residual)
		grad.Scale(step, &grad)
		x.Sub(x, &grad)
		clampNonNegative(x)
	}
	return x, nil
}

func clampNonNegative(m *mat.Dense) {
	m.Apply(func(_, _ int, v float64) float64 {
		if v < 0 {
			return 0
		}
		return v
	}, m)
}

// griffinLim estimates phase for a [frame][bin] magnitude spectrogram using
// the fast (momentum) variant, starting from random phase drawn from rng.
func griffinLim(mag [][]float64, iterations int, rng *rand.Rand) []float64 {
	window := hannWindow(FFTSize)
	frames := len(mag)

	angles := make([][]complex128, frames)
	spec := make([][]complex128, frames)
	for t := range angles {
		angles[t] = make([]complex128, NumFreqBins)
		spec[t] = make([]complex128, NumFreqBins)
		for k := range angles[t] {
			angles[t][k] = cmplx.Exp(complex(0, 2*math.Pi*rng.Float64()))
		}
	}

	const eps = 1e-38
	momentum := griffinLimMomentum / (1 + griffinLimMomentum)
	var rebuilt [][]complex128
	for it := 0; it < iterations; it++ {
		applyMagnitude(spec, mag, angles)
		next := stft(istft(spec, window), window)
		for t := range angles {
			for k := range angles[t] {
				a := next[t][k]
				if rebuilt != nil {
					a -= complex(momentum, 0) * rebuilt[t][k]
				}
				angles[t][k] = a / complex(cmplx.Abs(a)+eps, 0)
			}
		}
		rebuilt = next
	}

	applyMagnitude(spec, mag, angles)
	return istft(spec, window)
}

func applyMagnitude(dst [][]complex128, mag [][]float64, angles [][]complex128) {
	for t := range dst {
		for k := range dst[t] {
			dst[t][k] = complex(mag[t][k], 0) * angles[t][k]
		}
	}
}
