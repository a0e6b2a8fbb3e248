package ports

import (
	"context"

	"github.com/ewilliams-labs/cadence/internal/core/domain"
)

// CatalogProvider looks up track metadata in the music catalog.
type CatalogProvider interface {
	GetTrack(ctx context.Context, trackID string) (domain.Track, error)
	SearchTracks(ctx context.Context, query string) ([]domain.Track, error)
	GetAudioFeatures(ctx context.Context, trackID string) (domain.FeatureSet, error)
}
