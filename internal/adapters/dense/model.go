// Package dense evaluates small feed-forward classifiers in process. Weights
// are read from a JSON export:
//
//	{
//	  "name": "features_only",
//	  "general_size": 10,
//	  "mel_size": 0,
//	  "layers": [
//	    {"weights": [[...], ...], "bias": [...], "activation": "relu", "dropout": 0.2},
//	    {"weights": [[...], ...], "bias": [...], "activation": "softmax"}
//	  ]
//	}
//
// weights is row-major with one row per output unit. The network input is
// the general vector followed by the mel vector.
package dense

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"hash/fnv"
	"io"
	"math"
	"math/rand"
	"os"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"

	"github.com/ewilliams-labs/cadence/internal/core/domain"
	"github.com/ewilliams-labs/cadence/internal/core/ports"
)

type layerSpec struct {
	Weights    [][]float64 `json:"weights"`
	Bias       []float64   `json:"bias"`
	Activation string      `json:"activation"`
	Dropout    float64     `json:"dropout"`
}

type modelSpec struct {
	Name        string      `json:"name"`
	GeneralSize int         `json:"general_size"`
	MelSize     int         `json:"mel_size"`
	Layers      []layerSpec `json:"layers"`
}

type layer struct {
	w          *mat.Dense
	b          *mat.VecDense
	activation string
	dropout    float64
}

// Model is immutable after Load and safe for concurrent use.
type Model struct {
	name        string
	generalSize int
	melSize     int
	layers      []layer
	mode        domain.InferenceMode
}

var _ ports.Model = (*Model)(nil)

// Load reads a model export from path.
func Load(path string, mode domain.InferenceMode) (*Model, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("dense model: open %s: %w", path, err)
	}
	defer f.Close()

	m, err := Parse(f, mode)
	if err != nil {
		return nil, fmt.Errorf("dense model: %s: %w", path, err)
	}
	return m, nil
}

// Parse decodes and validates a model export.
func Parse(r io.Reader, mode domain.InferenceMode) (*Model, error) {
	var spec modelSpec
	if err := json.NewDecoder(r).Decode(&spec); err != nil {
		return nil, fmt.Errorf("dense model: decode: %w", err)
	}
	if spec.GeneralSize <= 0 {
		return nil, errors.New("dense model: general_size must be positive")
	}
	if spec.MelSize < 0 {
		return nil, errors.New("dense model: mel_size must not be negative")
	}
	if len(spec.Layers) == 0 {
		return nil, errors.New("dense model: no layers")
	}

	m := &Model{
		name:        spec.Name,
		generalSize: spec.GeneralSize,
		melSize:     spec.MelSize,
		mode:        mode,
	}

	in := spec.GeneralSize + spec.MelSize
	for i, ls := range spec.Layers {
		l, err := buildLayer(ls, in)
		if err != nil {
			return nil, fmt.Errorf("dense model: layer %d: %w", i, err)
		}
		m.layers = append(m.layers, l)
		in = len(ls.Bias)
	}
	return m, nil
}

func buildLayer(ls layerSpec, in int) (layer, error) {
	out := len(ls.Weights)
	if out == 0 {
		return layer{}, errors.New("no units")
	}
	if len(ls.Bias) != out {
		return layer{}, fmt.Errorf("bias has %d entries for %d units", len(ls.Bias), out)
	}
	if ls.Dropout < 0 || ls.Dropout >= 1 {
		return layer{}, fmt.Errorf("dropout %v outside [0, 1)", ls.Dropout)
	}
	switch ls.Activation {
	case "", "linear", "relu", "sigmoid", "tanh", "softmax":
	default:
		return layer{}, fmt.Errorf("unknown activation %q", ls.Activation)
	}

	data := make([]float64, 0, out*in)
	for r, row := range ls.Weights {
		if len(row) != in {
			return layer{}, fmt.Errorf("weights row %d has %d columns, want %d", r, len(row), in)
		}
		data = append(data, row...)
	}

	return layer{
		w:          mat.NewDense(out, in, data),
		b:          mat.NewVecDense(out, append([]float64(nil), ls.Bias...)),
		activation: ls.Activation,
		dropout:    ls.Dropout,
	}, nil
}

// Name identifies the model in logs.
func (m *Model) Name() string { return m.name }

// Predict runs a forward pass. Inputs are never modified.
func (m *Model) Predict(ctx context.Context, in ports.ModelInputs) ([]float64, error) {
	if len(in.General) != m.generalSize {
		return nil, &domain.ShapeError{What: "general input", Want: m.generalSize, Got: len(in.General)}
	}
	if len(in.Mel) != m.melSize {
		return nil, &domain.ShapeError{What: "mel input", Want: m.melSize, Got: len(in.Mel)}
	}

	x := make([]float64, 0, m.generalSize+m.melSize)
	x = append(x, in.General...)
	x = append(x, in.Mel...)
	if floats.HasNaN(x) {
		return nil, errors.New("dense model: input contains NaN")
	}

	var rng *rand.Rand
	if m.mode == domain.ModeTrain {
		rng = rand.New(rand.NewSource(inputSeed(x)))
	}

	cur := mat.NewVecDense(len(x), x)
	for _, l := range m.layers {
		rows, _ := l.w.Dims()
		next := mat.NewVecDense(rows, nil)
		next.MulVec(l.w, cur)
		next.AddVec(next, l.b)
		activate(next.RawVector().Data, l.activation)
		if rng != nil && l.dropout > 0 {
			applyDropout(next.RawVector().Data, l.dropout, rng)
		}
		cur = next
	}

	out := make([]float64, cur.Len())
	copy(out, cur.RawVector().Data)
	return out, nil
}

func activate(v []float64, activation string) {
	switch activation {
	case "relu":
		for i, x := range v {
			v[i] = math.Max(0, x)
		}
	case "sigmoid":
		for i, x := range v {
			v[i] = 1 / (1 + math.Exp(-x))
		}
	case "tanh":
		for i, x := range v {
			v[i] = math.Tanh(x)
		}
	case "softmax":
		softmax(v)
	}
}

// softmax is computed in place with the max subtracted for stability.
func softmax(v []float64) {
	if len(v) == 0 {
		return
	}
	peak := floats.Max(v)
	for i, x := range v {
		v[i] = math.Exp(x - peak)
	}
	floats.Scale(1/floats.Sum(v), v)
}

// applyDropout zeroes units with probability p and rescales the survivors
// (inverted dropout).
func applyDropout(v []float64, p float64, rng *rand.Rand) {
	keep := 1 - p
	for i := range v {
		if rng.Float64() < p {
			v[i] = 0
			continue
		}
		v[i] /= keep
	}
}

// inputSeed makes train-mode dropout reproducible for identical inputs.
func inputSeed(x []float64) int64 {
	h := fnv.New64a()
	var b [8]byte
	for _, v := range x {
		bits := math.Float64bits(v)
		for i := range b {
			b[i] = byte(bits >> (8 * i))
		}
		_, _ = h.Write(b[:])
	}
	// #nosec G115 -- bit reinterpretation for a PRNG seed
	return int64(h.Sum64())
}
