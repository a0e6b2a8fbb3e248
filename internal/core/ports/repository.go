package ports

import (
	"context"
	"time"

	"github.com/ewilliams-labs/cadence/internal/core/domain"
)

// TrackCache stores catalog lookups so repeated requests skip the network.
type TrackCache interface {
	GetTrack(ctx context.Context, trackID string, maxAge time.Duration) (domain.Track, error)
	SaveTrack(ctx context.Context, t domain.Track) error
}

// FeatureLogEntry is one computed feature vector, kept for drift analysis.
type FeatureLogEntry struct {
	RequestID        string
	TrackID          string
	Vector           domain.FeatureVector
	PreviewAvailable bool
	Fallback         bool
	Label            int
	CreatedAt        time.Time
}

// FeatureLog records feature vectors computed at inference time.
type FeatureLog interface {
	RecordFeatures(ctx context.Context, e FeatureLogEntry) error
	RecentFeatures(ctx context.Context, trackID string, limit int) ([]FeatureLogEntry, error)
}
