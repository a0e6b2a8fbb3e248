package domain

import "strconv"

// PredictionResult is built once per request and never persisted.
type PredictionResult struct {
	Label            int       `json:"label"`
	Probabilities    []float64 `json:"probabilities"`
	PreviewAvailable bool      `json:"preview_available"`
	TrackID          string    `json:"track_id"`
	RequestID        string    `json:"request_id"`
}

// Argmax returns the index of the largest probability, or -1 for an empty slice.
// Ties resolve to the lowest index.
func Argmax(probs []float64) int {
	best := -1
	for i, p := range probs {
		if best == -1 || p > probs[best] {
			best = i
		}
	}
	return best
}

// InferenceMode selects how models evaluate. Serving always uses ModeEval;
// ModeTrain exists to reproduce the behaviour of models exported with
// training-time layers such as dropout still active.
type InferenceMode string

const (
	ModeEval  InferenceMode = "eval"
	ModeTrain InferenceMode = "train"
)

// ParseInferenceMode accepts "eval", "train" or an empty string (eval).
func ParseInferenceMode(s string) (InferenceMode, error) {
	switch InferenceMode(s) {
	case "", ModeEval:
		return ModeEval, nil
	case ModeTrain:
		return ModeTrain, nil
	default:
		return "", &ValidationError{Reason: "unknown inference mode " + strconv.Quote(s)}
	}
}
