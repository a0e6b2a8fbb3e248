package ports

import "context"

// ModelInputs are the named input tensors of a classifier. Mel is nil for
// the features-only model.
type ModelInputs struct {
	General []float64
	Mel     []float64
}

// Model is a pretrained classifier. Implementations must be safe for
// concurrent use and must not mutate inputs.
type Model interface {
	Predict(ctx context.Context, in ModelInputs) ([]float64, error)
}
