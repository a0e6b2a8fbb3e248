package domain

import (
	"fmt"
	"math"
)

// DefaultSampleRate is appended to the feature vector when no audio exists.
const DefaultSampleRate = 22050.0

// FeatureVectorLen is the input width of the general model branch.
const FeatureVectorLen = 10

// FeatureOrder is the canonical layout the trained models expect.
// Do not reorder.
var FeatureOrder = [...]string{
	"danceability",
	"energy",
	"loudness",
	"speechiness",
	"acousticness",
	"instrumentalness",
	"liveness",
	"valence",
	"tempo",
}

// FeatureSet maps editorial and acoustic attribute names to values.
type FeatureSet map[string]float64

// FeatureVector is the ordered model input: the nine features followed by a sample rate.
type FeatureVector []float64

// BuildFeatureVector orders features canonically and appends sampleRate, or
// DefaultSampleRate when sampleRate is nil. Every missing key is reported.
func BuildFeatureVector(features FeatureSet, sampleRate *float64) (FeatureVector, error) {
	var missing, invalid []string
	for _, key := range FeatureOrder {
		v, ok := features[key]
		if !ok {
			missing = append(missing, key)
			continue
		}
		if math.IsNaN(v) || math.IsInf(v, 0) {
			invalid = append(invalid, key)
		}
	}
	if len(missing) > 0 || len(invalid) > 0 {
		verr := &ValidationError{Missing: missing}
		if len(invalid) > 0 {
			verr.Reason = fmt.Sprintf("non-finite features: %v", invalid)
		}
		return nil, verr
	}

	vec := make(FeatureVector, 0, FeatureVectorLen)
	for _, key := range FeatureOrder {
		vec = append(vec, features[key])
	}
	if sampleRate != nil {
		vec = append(vec, *sampleRate)
	} else {
		vec = append(vec, DefaultSampleRate)
	}
	return vec, nil
}
