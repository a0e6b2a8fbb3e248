package services

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sync"
	"testing"

	"github.com/ewilliams-labs/cadence/internal/core/domain"
	"github.com/ewilliams-labs/cadence/internal/core/ports"
	"github.com/ewilliams-labs/cadence/internal/dsp"
)

// --- Mocks ---

type mockAudio struct {
	buf domain.AudioBuffer
	err error
}

func (m *mockAudio) Fetch(ctx context.Context, trackID string) (domain.AudioBuffer, error) {
	return m.buf, m.err
}

type mockModel struct {
	probs []float64
	err   error

	mu    sync.Mutex
	calls []ports.ModelInputs
}

func (m *mockModel) Predict(ctx context.Context, in ports.ModelInputs) ([]float64, error) {
	m.mu.Lock()
	m.calls = append(m.calls, in)
	m.mu.Unlock()
	return m.probs, m.err
}

func (m *mockModel) callCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.calls)
}

type mockCatalog struct {
	tracks   []domain.Track
	features domain.FeatureSet
	err      error
}

func (m *mockCatalog) GetTrack(ctx context.Context, trackID string) (domain.Track, error) {
	return domain.Track{}, m.err
}

func (m *mockCatalog) SearchTracks(ctx context.Context, query string) ([]domain.Track, error) {
	return m.tracks, m.err
}

func (m *mockCatalog) GetAudioFeatures(ctx context.Context, trackID string) (domain.FeatureSet, error) {
	return m.features, m.err
}

type mockFeatureLog struct {
	entries []ports.FeatureLogEntry
	err     error
}

func (m *mockFeatureLog) RecordFeatures(ctx context.Context, e ports.FeatureLogEntry) error {
	m.entries = append(m.entries, e)
	return m.err
}

func (m *mockFeatureLog) RecentFeatures(ctx context.Context, trackID string, limit int) ([]ports.FeatureLogEntry, error) {
	return m.entries, m.err
}

// --- Helpers ---

func features() domain.FeatureSet {
	return domain.FeatureSet{
		"danceability":     0.5,
		"energy":           0.7,
		"loudness":         -6,
		"speechiness":      0.05,
		"acousticness":     0.1,
		"instrumentalness": 0,
		"liveness":         0.1,
		"valence":          0.6,
		"tempo":            120,
	}
}

func clip() domain.AudioBuffer {
	return domain.AudioBuffer{Samples: make([]float64, 1024), SampleRate: dsp.ReconstructHz}
}

func melOK(*domain.AudioBuffer) (domain.MelSpectrogram, error) {
	return domain.MelSpectrogram{Bands: dsp.NumMels, Frames: dsp.NumFrames, Data: make([]float64, dsp.MelVectorLen)}, nil
}

func newTestOrchestrator(audio ports.AudioSource, combined, featuresOnly ports.Model, log ports.FeatureLog) *Orchestrator {
	o := NewOrchestrator(audio, &mockCatalog{}, combined, featuresOnly, log)
	o.toMel = melOK
	o.newID = func() string { return "req-1" }
	return o
}

// --- Tests ---

func TestOrchestrator_Predict(t *testing.T) {
	combinedProbs := []float64{0.1, 0.2, 0.6, 0.1}
	fallbackProbs := []float64{0.7, 0.2, 0.1}

	tests := []struct {
		name            string
		audio           *mockAudio
		toMel           func(*domain.AudioBuffer) (domain.MelSpectrogram, error)
		combined        *mockModel
		featuresOnly    *mockModel
		wantProbs       []float64
		wantLabel       int
		wantPreview     bool
		wantCombined    int
		wantFallback    int
		wantLoggedFB    bool
		wantSampleRate  float64
		wantErr         bool
		wantValidation  bool
		wantInferenceEr bool
	}{
		{
			name:           "no preview uses features-only model",
			audio:          &mockAudio{err: fmt.Errorf("wrapped: %w", domain.ErrNoPreview)},
			combined:       &mockModel{probs: combinedProbs},
			featuresOnly:   &mockModel{probs: fallbackProbs},
			wantProbs:      fallbackProbs,
			wantLabel:      0,
			wantPreview:    false,
			wantFallback:   1,
			wantSampleRate: domain.DefaultSampleRate,
		},
		{
			name:           "upstream failure counts as no audio",
			audio:          &mockAudio{err: &domain.UpstreamError{Stage: "download", Err: errors.New("timeout")}},
			combined:       &mockModel{probs: combinedProbs},
			featuresOnly:   &mockModel{probs: fallbackProbs},
			wantProbs:      fallbackProbs,
			wantPreview:    false,
			wantFallback:   1,
			wantSampleRate: domain.DefaultSampleRate,
		},
		{
			name:           "preview uses combined model",
			audio:          &mockAudio{buf: clip()},
			combined:       &mockModel{probs: combinedProbs},
			featuresOnly:   &mockModel{probs: fallbackProbs},
			wantProbs:      combinedProbs,
			wantLabel:      2,
			wantPreview:    true,
			wantCombined:   1,
			wantSampleRate: dsp.ReconstructHz,
		},
		{
			name:  "transform failure falls back",
			audio: &mockAudio{buf: clip()},
			toMel: func(*domain.AudioBuffer) (domain.MelSpectrogram, error) {
				return domain.MelSpectrogram{}, domain.ErrInvalidAudio
			},
			combined:       &mockModel{probs: combinedProbs},
			featuresOnly:   &mockModel{probs: fallbackProbs},
			wantProbs:      fallbackProbs,
			wantPreview:    true,
			wantFallback:   1,
			wantLoggedFB:   true,
			wantSampleRate: dsp.ReconstructHz,
		},
		{
			name:  "short mel falls back",
			audio: &mockAudio{buf: clip()},
			toMel: func(*domain.AudioBuffer) (domain.MelSpectrogram, error) {
				return domain.MelSpectrogram{Bands: dsp.NumMels, Frames: 216, Data: make([]float64, dsp.NumMels*216)}, nil
			},
			combined:       &mockModel{probs: combinedProbs},
			featuresOnly:   &mockModel{probs: fallbackProbs},
			wantProbs:      fallbackProbs,
			wantPreview:    true,
			wantFallback:   1,
			wantLoggedFB:   true,
			wantSampleRate: dsp.ReconstructHz,
		},
		{
			name:           "combined model error falls back",
			audio:          &mockAudio{buf: clip()},
			combined:       &mockModel{err: errors.New("serving unavailable")},
			featuresOnly:   &mockModel{probs: fallbackProbs},
			wantProbs:      fallbackProbs,
			wantPreview:    true,
			wantCombined:   1,
			wantFallback:   1,
			wantLoggedFB:   true,
			wantSampleRate: dsp.ReconstructHz,
		},
		{
			name:            "fallback failure is internal",
			audio:           &mockAudio{buf: clip()},
			combined:        &mockModel{err: errors.New("boom")},
			featuresOnly:    &mockModel{err: errors.New("also boom")},
			wantCombined:    1,
			wantFallback:    1,
			wantErr:         true,
			wantInferenceEr: true,
		},
		{
			name:            "features-only failure without preview is internal",
			audio:           &mockAudio{err: domain.ErrNoPreview},
			combined:        &mockModel{probs: combinedProbs},
			featuresOnly:    &mockModel{probs: []float64{}},
			wantFallback:    1,
			wantErr:         true,
			wantInferenceEr: true,
		},
		{
			name:         "unexpected audio error surfaces",
			audio:        &mockAudio{err: context.Canceled},
			combined:     &mockModel{probs: combinedProbs},
			featuresOnly: &mockModel{probs: fallbackProbs},
			wantErr:      true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			log := &mockFeatureLog{}
			o := newTestOrchestrator(tt.audio, tt.combined, tt.featuresOnly, log)
			if tt.toMel != nil {
				o.toMel = tt.toMel
			}

			got, err := o.Predict(context.Background(), "t1", features())

			if got := tt.combined.callCount(); got != tt.wantCombined {
				t.Errorf("combined calls: got %d, want %d", got, tt.wantCombined)
			}
			if got := tt.featuresOnly.callCount(); got != tt.wantFallback {
				t.Errorf("features-only calls: got %d, want %d", got, tt.wantFallback)
			}

			if tt.wantErr {
				if err == nil {
					t.Fatal("expected error")
				}
				var verr *domain.ValidationError
				if errors.As(err, &verr) {
					t.Fatalf("internal failure must not look like a validation error: %v", err)
				}
				var ierr *domain.InferenceError
				if tt.wantInferenceEr && !errors.As(err, &ierr) {
					t.Fatalf("error %v should carry an InferenceError", err)
				}
				if len(log.entries) != 0 {
					t.Fatalf("failed prediction should not be logged")
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}

			if got.TrackID != "t1" || got.RequestID != "req-1" {
				t.Fatalf("ids: got %+v", got)
			}
			if got.PreviewAvailable != tt.wantPreview {
				t.Fatalf("preview available: got %v, want %v", got.PreviewAvailable, tt.wantPreview)
			}
			if got.Label != tt.wantLabel {
				t.Fatalf("label: got %d, want %d", got.Label, tt.wantLabel)
			}
			if len(got.Probabilities) != len(tt.wantProbs) {
				t.Fatalf("probabilities: got %v, want %v", got.Probabilities, tt.wantProbs)
			}
			var sum float64
			for i := range tt.wantProbs {
				if got.Probabilities[i] != tt.wantProbs[i] {
					t.Fatalf("probabilities: got %v, want %v", got.Probabilities, tt.wantProbs)
				}
				sum += got.Probabilities[i]
			}
			if math.Abs(sum-1) > 1e-9 {
				t.Fatalf("probabilities sum to %v", sum)
			}

			if len(log.entries) != 1 {
				t.Fatalf("feature log entries: got %d, want 1", len(log.entries))
			}
			entry := log.entries[0]
			if entry.Fallback != tt.wantLoggedFB {
				t.Fatalf("logged fallback: got %v, want %v", entry.Fallback, tt.wantLoggedFB)
			}
			if len(entry.Vector) != domain.FeatureVectorLen {
				t.Fatalf("logged vector length: got %d", len(entry.Vector))
			}
			if entry.Vector[domain.FeatureVectorLen-1] != tt.wantSampleRate {
				t.Fatalf("sample rate slot: got %v, want %v", entry.Vector[domain.FeatureVectorLen-1], tt.wantSampleRate)
			}
		})
	}
}

func TestOrchestrator_PredictCombinedInputs(t *testing.T) {
	combined := &mockModel{probs: []float64{0.5, 0.5}}
	featuresOnly := &mockModel{probs: []float64{1}}
	o := newTestOrchestrator(&mockAudio{buf: clip()}, combined, featuresOnly, nil)

	if _, err := o.Predict(context.Background(), "t1", features()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	in := combined.calls[0]
	if len(in.General) != domain.FeatureVectorLen {
		t.Fatalf("general length: got %d", len(in.General))
	}
	if len(in.Mel) != dsp.MelVectorLen {
		t.Fatalf("mel length: got %d", len(in.Mel))
	}
	if in.General[0] != 0.5 || in.General[8] != 120 || in.General[9] != dsp.ReconstructHz {
		t.Fatalf("general layout: got %v", in.General)
	}
}

func TestOrchestrator_PredictValidation(t *testing.T) {
	tests := []struct {
		name        string
		trackID     string
		features    domain.FeatureSet
		wantMissing []string
	}{
		{
			name:        "missing features",
			trackID:     "t1",
			features:    domain.FeatureSet{"danceability": 0.5, "tempo": 120},
			wantMissing: []string{"energy", "loudness", "speechiness", "acousticness", "instrumentalness", "liveness", "valence"},
		},
		{
			name:        "missing track id",
			trackID:     "",
			features:    features(),
			wantMissing: []string{"track_id"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			audio := &mockAudio{buf: clip()}
			combined := &mockModel{probs: []float64{1}}
			featuresOnly := &mockModel{probs: []float64{1}}
			o := newTestOrchestrator(audio, combined, featuresOnly, nil)

			_, err := o.Predict(context.Background(), tt.trackID, tt.features)
			var verr *domain.ValidationError
			if !errors.As(err, &verr) {
				t.Fatalf("error: got %v, want ValidationError", err)
			}
			if fmt.Sprint(verr.Missing) != fmt.Sprint(tt.wantMissing) {
				t.Fatalf("missing: got %v, want %v", verr.Missing, tt.wantMissing)
			}
			if combined.callCount()+featuresOnly.callCount() != 0 {
				t.Fatal("models must not run on invalid input")
			}
		})
	}
}

func TestOrchestrator_FeatureLogFailureIsNotFatal(t *testing.T) {
	log := &mockFeatureLog{err: errors.New("disk full")}
	o := newTestOrchestrator(&mockAudio{err: domain.ErrNoPreview}, &mockModel{}, &mockModel{probs: []float64{0.3, 0.7}}, log)

	got, err := o.Predict(context.Background(), "t1", features())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got.Label != 1 {
		t.Fatalf("label: got %d, want 1", got.Label)
	}
}

func TestOrchestrator_Reconstruct(t *testing.T) {
	wave := domain.Waveform{Samples: make([]float64, 8), SampleRate: dsp.ReconstructHz}

	tests := []struct {
		name      string
		audio     *mockAudio
		toAudio   func([]float64, int) (domain.Waveform, error)
		wantErrIs error
		wantShape bool
	}{
		{
			name:  "reconstructs",
			audio: &mockAudio{buf: clip()},
			toAudio: func(mel []float64, rate int) (domain.Waveform, error) {
				if rate != dsp.ReconstructHz {
					return domain.Waveform{}, fmt.Errorf("rate %d", rate)
				}
				return wave, nil
			},
		},
		{
			name:      "no preview is an error",
			audio:     &mockAudio{err: domain.ErrNoPreview},
			toAudio:   func([]float64, int) (domain.Waveform, error) { return wave, nil },
			wantErrIs: domain.ErrNoPreview,
		},
		{
			name:  "shape errors surface",
			audio: &mockAudio{buf: clip()},
			toAudio: func(mel []float64, rate int) (domain.Waveform, error) {
				return domain.Waveform{}, &domain.ShapeError{What: "mel", Want: 1, Got: 2}
			},
			wantShape: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			o := newTestOrchestrator(tt.audio, &mockModel{}, &mockModel{}, nil)
			o.toAudio = tt.toAudio

			got, err := o.Reconstruct(context.Background(), "t1")
			switch {
			case tt.wantErrIs != nil:
				if !errors.Is(err, tt.wantErrIs) {
					t.Fatalf("error: got %v, want %v", err, tt.wantErrIs)
				}
			case tt.wantShape:
				var shapeErr *domain.ShapeError
				if !errors.As(err, &shapeErr) {
					t.Fatalf("error: got %v, want ShapeError", err)
				}
			default:
				if err != nil {
					t.Fatalf("unexpected error: %v", err)
				}
				if len(got.Samples) != len(wave.Samples) {
					t.Fatalf("samples: got %d", len(got.Samples))
				}
			}
		})
	}
}

func TestOrchestrator_CatalogLookups(t *testing.T) {
	catalog := &mockCatalog{
		tracks:   []domain.Track{{ID: "t1", Title: "Song"}},
		features: features(),
	}
	o := NewOrchestrator(&mockAudio{}, catalog, nil, nil, nil)

	tracks, err := o.Search(context.Background(), "song")
	if err != nil || len(tracks) != 1 {
		t.Fatalf("search: got %v, %v", tracks, err)
	}

	var verr *domain.ValidationError
	if _, err := o.Search(context.Background(), "  "); !errors.As(err, &verr) {
		t.Fatalf("empty query: got %v, want ValidationError", err)
	}

	fs, err := o.AudioFeatures(context.Background(), "t1")
	if err != nil || len(fs) != 9 {
		t.Fatalf("features: got %v, %v", fs, err)
	}

	catalog.err = domain.ErrNotFound
	if _, err := o.AudioFeatures(context.Background(), "t1"); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("not found: got %v", err)
	}

	history, err := o.History(context.Background(), "t1", 5)
	if err != nil || len(history) != 0 {
		t.Fatalf("history without log: got %v, %v", history, err)
	}
}
