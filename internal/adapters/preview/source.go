package preview

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/ewilliams-labs/cadence/internal/core/domain"
	"github.com/ewilliams-labs/cadence/internal/core/ports"
	"github.com/ewilliams-labs/cadence/internal/logging"
)

// Source resolves a track to its preview clip. Every error it returns
// matches domain.ErrNoAudio.
type Source struct {
	catalog    ports.CatalogProvider
	downloader *Downloader
	cache      ports.TrackCache
	cacheTTL   time.Duration
	logger     logging.Logger
}

var _ ports.AudioSource = (*Source)(nil)

// NewSource wires a catalog and downloader. cache may be nil.
func NewSource(catalog ports.CatalogProvider, downloader *Downloader, cache ports.TrackCache, cacheTTL time.Duration) *Source {
	return &Source{
		catalog:    catalog,
		downloader: downloader,
		cache:      cache,
		cacheTTL:   cacheTTL,
		logger:     logging.WithFields(logging.Fields{"component": "audio_source"}),
	}
}

// Fetch returns at most the first five seconds of the track's preview.
func (s *Source) Fetch(ctx context.Context, trackID string) (domain.AudioBuffer, error) {
	track, err := s.lookup(ctx, trackID)
	if err != nil {
		s.logger.Error(err, "catalog lookup failed", logging.Fields{"track_id": trackID, "stage": "lookup"})
		return domain.AudioBuffer{}, &domain.UpstreamError{Stage: "lookup", Err: err}
	}

	if track.PreviewURL == "" {
		s.logger.Info("no preview available", logging.Fields{"track_id": trackID})
		return domain.AudioBuffer{}, fmt.Errorf("preview source: track %s: %w", trackID, domain.ErrNoPreview)
	}

	data, err := s.downloader.Download(ctx, track.PreviewURL)
	if err != nil {
		s.logger.Error(err, "preview download failed", logging.Fields{"track_id": trackID, "stage": "download"})
		return domain.AudioBuffer{}, &domain.UpstreamError{Stage: "download", Err: err}
	}

	buf, err := DecodeClip(data, domain.ClipDuration)
	if err != nil {
		s.logger.Error(err, "preview decode failed", logging.Fields{"track_id": trackID, "stage": "decode"})
		return domain.AudioBuffer{}, &domain.UpstreamError{Stage: "decode", Err: err}
	}

	s.logger.Debug("preview decoded", logging.Fields{
		"track_id":    trackID,
		"sample_rate": buf.SampleRate,
		"samples":     len(buf.Samples),
	})
	return buf, nil
}

func (s *Source) lookup(ctx context.Context, trackID string) (domain.Track, error) {
	if s.cache != nil {
		t, err := s.cache.GetTrack(ctx, trackID, s.cacheTTL)
		if err == nil {
			return t, nil
		}
		if !errors.Is(err, domain.ErrNotFound) {
			s.logger.Warn("track cache read failed", logging.Fields{"track_id": trackID, "error": err.Error()})
		}
	}

	t, err := s.catalog.GetTrack(ctx, trackID)
	if err != nil {
		return domain.Track{}, err
	}

	if s.cache != nil {
		if err := s.cache.SaveTrack(ctx, t); err != nil {
			s.logger.Warn("track cache write failed", logging.Fields{"track_id": trackID, "error": err.Error()})
		}
	}
	return t, nil
}
