package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/ewilliams-labs/cadence/internal/core/domain"
	"github.com/ewilliams-labs/cadence/internal/core/ports"
	"github.com/ewilliams-labs/cadence/internal/dsp"
	"github.com/ewilliams-labs/cadence/internal/logging"
)

const (
	modelCombined     = "combined"
	modelFeaturesOnly = "features_only"
)

// Orchestrator runs the prediction pipeline and the catalog lookups the web
// client needs. It holds only shared read-only collaborators.
type Orchestrator struct {
	audio        ports.AudioSource
	catalog      ports.CatalogProvider
	combined     ports.Model
	featuresOnly ports.Model
	featureLog   ports.FeatureLog

	toMel   func(*domain.AudioBuffer) (domain.MelSpectrogram, error)
	toAudio func(mel []float64, outRate int) (domain.Waveform, error)
	newID   func() string
	logger  logging.Logger
}

// NewOrchestrator constructs an Orchestrator. featureLog may be nil.
func NewOrchestrator(
	audio ports.AudioSource,
	catalog ports.CatalogProvider,
	combined ports.Model,
	featuresOnly ports.Model,
	featureLog ports.FeatureLog,
) *Orchestrator {
	return &Orchestrator{
		audio:        audio,
		catalog:      catalog,
		combined:     combined,
		featuresOnly: featuresOnly,
		featureLog:   featureLog,
		toMel:        dsp.ToMel,
		toAudio:      dsp.ToAudio,
		newID:        uuid.NewString,
		logger:       logging.WithFields(logging.Fields{"component": "orchestrator"}),
	}
}

// Predict classifies trackID. When a preview is available the combined model
// runs on the mel spectrogram and the feature vector; otherwise, or when the
// combined path fails with a transform, shape or inference error, the
// features-only model answers.
func (o *Orchestrator) Predict(ctx context.Context, trackID string, features domain.FeatureSet) (domain.PredictionResult, error) {
	if strings.TrimSpace(trackID) == "" {
		return domain.PredictionResult{}, &domain.ValidationError{Missing: []string{"track_id"}}
	}

	// Reject bad input before touching the network.
	if _, err := domain.BuildFeatureVector(features, nil); err != nil {
		return domain.PredictionResult{}, fmt.Errorf("service: build feature vector: %w", err)
	}

	requestID := o.newID()
	logger := o.logger.WithFields(logging.Fields{"request_id": requestID, "track_id": trackID})

	audio, err := o.audio.Fetch(ctx, trackID)
	previewAvailable := err == nil
	if err != nil {
		if !errors.Is(err, domain.ErrNoAudio) {
			logger.Error(err, "audio source failed", logging.Fields{"stage": "fetch"})
			return domain.PredictionResult{}, fmt.Errorf("service: fetch audio: %w", err)
		}
		logger.Info("no audio for track", logging.Fields{"reason": err.Error()})
	}

	var sampleRate *float64
	if previewAvailable {
		sr := float64(audio.SampleRate)
		sampleRate = &sr
	}
	vector, err := domain.BuildFeatureVector(features, sampleRate)
	if err != nil {
		return domain.PredictionResult{}, fmt.Errorf("service: build feature vector: %w", err)
	}
	logger.Info("feature vector built", logging.Fields{"vector": []float64(vector), "preview_available": previewAvailable})

	var probs []float64
	fallback := false
	if previewAvailable {
		probs, err = o.predictCombined(ctx, &audio, vector)
		if err != nil {
			if !isCombinedFailure(err) {
				logger.Error(err, "combined inference failed", logging.Fields{"stage": "combined"})
				return domain.PredictionResult{}, fmt.Errorf("service: combined inference: %w", err)
			}
			logger.Warn("combined path failed, falling back to features-only model", logging.Fields{
				"stage": "combined",
				"error": err.Error(),
			})
			fallback = true
		}
	}
	if !previewAvailable || fallback {
		probs, err = o.predictFeaturesOnly(ctx, vector)
		if err != nil {
			logger.Error(err, "features-only inference failed", logging.Fields{"stage": "features_only", "fallback": fallback})
			return domain.PredictionResult{}, fmt.Errorf("service: features-only inference: %w", err)
		}
	}

	result := domain.PredictionResult{
		Label:            domain.Argmax(probs),
		Probabilities:    probs,
		PreviewAvailable: previewAvailable,
		TrackID:          trackID,
		RequestID:        requestID,
	}
	logger.Info("prediction complete", logging.Fields{"label": result.Label, "fallback": fallback})

	o.recordFeatures(ctx, logger, ports.FeatureLogEntry{
		RequestID:        requestID,
		TrackID:          trackID,
		Vector:           vector,
		PreviewAvailable: previewAvailable,
		Fallback:         fallback,
		Label:            result.Label,
		CreatedAt:        time.Now().UTC(),
	})

	return result, nil
}

func (o *Orchestrator) predictCombined(ctx context.Context, audio *domain.AudioBuffer, vector domain.FeatureVector) ([]float64, error) {
	mel, err := o.toMel(audio)
	if err != nil {
		return nil, err
	}
	if len(mel.Data) != dsp.MelVectorLen {
		return nil, &domain.ShapeError{What: "mel spectrogram", Want: dsp.MelVectorLen, Got: len(mel.Data)}
	}
	return runModel(ctx, o.combined, modelCombined, ports.ModelInputs{General: vector, Mel: mel.Data})
}

func (o *Orchestrator) predictFeaturesOnly(ctx context.Context, vector domain.FeatureVector) ([]float64, error) {
	return runModel(ctx, o.featuresOnly, modelFeaturesOnly, ports.ModelInputs{General: vector})
}

func runModel(ctx context.Context, m ports.Model, name string, in ports.ModelInputs) ([]float64, error) {
	if m == nil {
		return nil, &domain.InferenceError{Model: name, Err: errors.New("model not loaded")}
	}
	probs, err := m.Predict(ctx, in)
	if err != nil {
		return nil, &domain.InferenceError{Model: name, Err: err}
	}
	if len(probs) == 0 {
		return nil, &domain.InferenceError{Model: name, Err: errors.New("empty output")}
	}
	return probs, nil
}

// isCombinedFailure lists the errors that send a request down the
// features-only path. Anything else is a bug and surfaces.
func isCombinedFailure(err error) bool {
	var shapeErr *domain.ShapeError
	var inferErr *domain.InferenceError
	return errors.Is(err, domain.ErrInvalidAudio) || errors.As(err, &shapeErr) || errors.As(err, &inferErr)
}

func (o *Orchestrator) recordFeatures(ctx context.Context, logger logging.Logger, e ports.FeatureLogEntry) {
	if o.featureLog == nil {
		return
	}
	if err := o.featureLog.RecordFeatures(ctx, e); err != nil {
		logger.Warn("feature log write failed", logging.Fields{"error": err.Error()})
	}
}

// Reconstruct renders the audible approximation of the track's mel
// spectrogram. It has no fallback: a track without a preview is an error.
func (o *Orchestrator) Reconstruct(ctx context.Context, trackID string) (domain.Waveform, error) {
	if strings.TrimSpace(trackID) == "" {
		return domain.Waveform{}, &domain.ValidationError{Missing: []string{"track_id"}}
	}
	logger := o.logger.WithFields(logging.Fields{"track_id": trackID})

	audio, err := o.audio.Fetch(ctx, trackID)
	if err != nil {
		logger.Warn("no audio to reconstruct", logging.Fields{"stage": "fetch", "error": err.Error()})
		return domain.Waveform{}, fmt.Errorf("service: reconstruct: %w", err)
	}

	mel, err := o.toMel(&audio)
	if err != nil {
		logger.Error(err, "mel transform failed", logging.Fields{"stage": "to_mel"})
		return domain.Waveform{}, fmt.Errorf("service: reconstruct: %w", err)
	}

	wave, err := o.toAudio(mel.Data, dsp.ReconstructHz)
	if err != nil {
		logger.Error(err, "inverse transform failed", logging.Fields{"stage": "to_audio"})
		return domain.Waveform{}, fmt.Errorf("service: reconstruct: %w", err)
	}

	logger.Info("audio reconstructed", logging.Fields{"samples": len(wave.Samples), "sample_rate": wave.SampleRate})
	return wave, nil
}

// Search returns catalog tracks matching query, best match first.
func (o *Orchestrator) Search(ctx context.Context, query string) ([]domain.Track, error) {
	if strings.TrimSpace(query) == "" {
		return nil, &domain.ValidationError{Missing: []string{"q"}}
	}
	tracks, err := o.catalog.SearchTracks(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("service: search: %w", err)
	}
	return tracks, nil
}

// AudioFeatures returns the catalog's attributes for trackID, ready to pass
// back into Predict.
func (o *Orchestrator) AudioFeatures(ctx context.Context, trackID string) (domain.FeatureSet, error) {
	if strings.TrimSpace(trackID) == "" {
		return nil, &domain.ValidationError{Missing: []string{"track_id"}}
	}
	fs, err := o.catalog.GetAudioFeatures(ctx, trackID)
	if err != nil {
		return nil, fmt.Errorf("service: audio features: %w", err)
	}
	return fs, nil
}

// History returns the most recent feature vectors logged for trackID.
func (o *Orchestrator) History(ctx context.Context, trackID string, limit int) ([]ports.FeatureLogEntry, error) {
	if o.featureLog == nil {
		return []ports.FeatureLogEntry{}, nil
	}
	entries, err := o.featureLog.RecentFeatures(ctx, trackID, limit)
	if err != nil {
		return nil, fmt.Errorf("service: feature history: %w", err)
	}
	return entries, nil
}
