package ports

import (
	"context"

	"github.com/ewilliams-labs/cadence/internal/core/domain"
)

// AudioSource yields the first five seconds of a track's preview.
// Every failure returned matches domain.ErrNoAudio.
type AudioSource interface {
	Fetch(ctx context.Context, trackID string) (domain.AudioBuffer, error)
}
