package dense

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ewilliams-labs/cadence/internal/core/domain"
	"github.com/ewilliams-labs/cadence/internal/core/ports"
)

// Two inputs, a three-unit hidden layer and a two-class softmax head.
const smallModel = `{
	"name": "features_only",
	"general_size": 2,
	"mel_size": 0,
	"layers": [
		{"weights": [[1, 0], [0, 1], [1, 1]], "bias": [0, 0, -1], "activation": "relu", "dropout": 0.5},
		{"weights": [[1, 0, 0], [0, 1, 1]], "bias": [0, 0], "activation": "softmax"}
	]
}`

const combinedModel = `{
	"name": "combined",
	"general_size": 1,
	"mel_size": 2,
	"layers": [
		{"weights": [[1, 1, 1], [-1, 0, 0]], "bias": [0, 0], "activation": "softmax"}
	]
}`

func parse(t *testing.T, src string, mode domain.InferenceMode) *Model {
	t.Helper()
	m, err := Parse(strings.NewReader(src), mode)
	require.NoError(t, err)
	return m
}

func TestPredictSoftmaxSumsToOne(t *testing.T) {
	m := parse(t, smallModel, domain.ModeEval)

	probs, err := m.Predict(context.Background(), ports.ModelInputs{General: []float64{2, 1}})
	require.NoError(t, err)
	require.Len(t, probs, 2)

	// hidden = relu([2, 1, 2]) ; logits = [2, 3]
	assert.InDelta(t, 1.0, probs[0]+probs[1], 1e-12)
	assert.Greater(t, probs[1], probs[0])
	assert.Equal(t, "features_only", m.Name())
}

func TestPredictCombinedConcatenatesInputs(t *testing.T) {
	m := parse(t, combinedModel, domain.ModeEval)

	probs, err := m.Predict(context.Background(), ports.ModelInputs{General: []float64{1}, Mel: []float64{2, 3}})
	require.NoError(t, err)

	// logits = [6, -1]
	assert.Greater(t, probs[0], 0.99)
}

func TestPredictShapeErrors(t *testing.T) {
	m := parse(t, combinedModel, domain.ModeEval)

	tests := []struct {
		name string
		in   ports.ModelInputs
	}{
		{name: "short general", in: ports.ModelInputs{General: nil, Mel: []float64{1, 2}}},
		{name: "missing mel", in: ports.ModelInputs{General: []float64{1}}},
		{name: "long mel", in: ports.ModelInputs{General: []float64{1}, Mel: []float64{1, 2, 3}}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := m.Predict(context.Background(), tt.in)
			var shapeErr *domain.ShapeError
			require.True(t, errors.As(err, &shapeErr), "got %v", err)
		})
	}
}

func TestPredictDoesNotMutateInputs(t *testing.T) {
	m := parse(t, combinedModel, domain.ModeEval)
	general := []float64{1}
	mel := []float64{2, 3}

	_, err := m.Predict(context.Background(), ports.ModelInputs{General: general, Mel: mel})
	require.NoError(t, err)
	assert.Equal(t, []float64{1}, general)
	assert.Equal(t, []float64{2, 3}, mel)
}

func TestTrainModeDropoutIsReproducible(t *testing.T) {
	in := ports.ModelInputs{General: []float64{2, 1}}
	eval := parse(t, smallModel, domain.ModeEval)
	train := parse(t, smallModel, domain.ModeTrain)

	first, err := train.Predict(context.Background(), in)
	require.NoError(t, err)
	second, err := train.Predict(context.Background(), in)
	require.NoError(t, err)
	assert.Equal(t, first, second)
	assert.InDelta(t, 1.0, first[0]+first[1], 1e-12)

	a, err := eval.Predict(context.Background(), in)
	require.NoError(t, err)
	b, err := eval.Predict(context.Background(), in)
	require.NoError(t, err)
	assert.Equal(t, a, b)
}

func TestParseRejectsBadExports(t *testing.T) {
	tests := []struct {
		name string
		src  string
	}{
		{name: "not json", src: `{`},
		{name: "no layers", src: `{"general_size": 2, "layers": []}`},
		{name: "no general", src: `{"general_size": 0, "layers": [{"weights": [[1]], "bias": [0]}]}`},
		{name: "column mismatch", src: `{"general_size": 2, "layers": [{"weights": [[1]], "bias": [0]}]}`},
		{name: "bias mismatch", src: `{"general_size": 1, "layers": [{"weights": [[1]], "bias": [0, 1]}]}`},
		{name: "bad activation", src: `{"general_size": 1, "layers": [{"weights": [[1]], "bias": [0], "activation": "gelu"}]}`},
		{name: "bad dropout", src: `{"general_size": 1, "layers": [{"weights": [[1]], "bias": [0], "dropout": 1}]}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse(strings.NewReader(tt.src), domain.ModeEval)
			require.Error(t, err)
		})
	}
}

func TestLoadFromFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "model.json")
	require.NoError(t, os.WriteFile(path, []byte(smallModel), 0o600))

	m, err := Load(path, domain.ModeEval)
	require.NoError(t, err)
	assert.Equal(t, "features_only", m.Name())

	_, err = Load(filepath.Join(t.TempDir(), "missing.json"), domain.ModeEval)
	require.Error(t, err)
}
