package domain

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrNotFound indicates a requested record does not exist.
	ErrNotFound = errors.New("domain: not found")

	// ErrNoAudio is matched by every reason a track ends up without audio.
	// Absence of audio is an expected outcome, not a system failure.
	ErrNoAudio = errors.New("domain: no audio available")

	// ErrNoPreview indicates the catalog has no preview URL for the track.
	ErrNoPreview = fmt.Errorf("%w: no preview url", ErrNoAudio)

	// ErrInvalidAudio indicates the spectral transform was given no usable audio.
	ErrInvalidAudio = errors.New("domain: invalid audio data or sample rate")
)

// ValidationError reports malformed client input. Missing holds every
// absent feature key in canonical order.
type ValidationError struct {
	Missing []string
	Reason  string
}

func (e *ValidationError) Error() string {
	var parts []string
	if len(e.Missing) > 0 {
		parts = append(parts, fmt.Sprintf("missing features: [%s]", strings.Join(e.Missing, ", ")))
	}
	if e.Reason != "" {
		parts = append(parts, e.Reason)
	}
	if len(parts) == 0 {
		return "domain: validation failed"
	}
	return "domain: validation failed: " + strings.Join(parts, "; ")
}

// ShapeError reports a tensor whose length does not match the expected layout.
type ShapeError struct {
	What string
	Want int
	Got  int
}

func (e *ShapeError) Error() string {
	return fmt.Sprintf("domain: %s has length %d, want %d", e.What, e.Got, e.Want)
}

// UpstreamError wraps a catalog, network or decode failure. It matches
// ErrNoAudio so callers treat it as "no audio".
type UpstreamError struct {
	Stage string
	Err   error
}

func (e *UpstreamError) Error() string {
	return fmt.Sprintf("domain: upstream %s failed: %v", e.Stage, e.Err)
}

func (e *UpstreamError) Unwrap() error { return e.Err }

func (e *UpstreamError) Is(target error) bool {
	return target == ErrNoAudio
}

// InferenceError reports a failure inside a model invocation.
type InferenceError struct {
	Model string
	Err   error
}

func (e *InferenceError) Error() string {
	return fmt.Sprintf("domain: %s model failed: %v", e.Model, e.Err)
}

func (e *InferenceError) Unwrap() error { return e.Err }
