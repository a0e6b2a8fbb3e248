// Package httpretry provides an http.RoundTripper that retries transient
// failures with exponential backoff.
package httpretry

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/ewilliams-labs/cadence/internal/logging"
)

const (
	DefaultMaxRetries = 3
	DefaultBackoff    = 500 * time.Millisecond
)

// Transport retries requests that fail at the network level or return 429
// or 5xx. Retry-After is honoured when present.
type Transport struct {
	Base        http.RoundTripper
	MaxRetries  int
	BaseBackoff time.Duration
	Logger      logging.Logger
}

// New wraps base (http.DefaultTransport when nil).
func New(base http.RoundTripper, maxRetries int, baseBackoff time.Duration) *Transport {
	return &Transport{
		Base:        base,
		MaxRetries:  maxRetries,
		BaseBackoff: baseBackoff,
		Logger:      logging.WithFields(logging.Fields{"component": "http_retry"}),
	}
}

// RoundTrip implements http.RoundTripper.
func (t *Transport) RoundTrip(req *http.Request) (*http.Response, error) {
	base := t.Base
	if base == nil {
		base = http.DefaultTransport
	}
	maxRetries := t.MaxRetries
	if maxRetries <= 0 {
		maxRetries = DefaultMaxRetries
	}
	baseBackoff := t.BaseBackoff
	if baseBackoff <= 0 {
		baseBackoff = DefaultBackoff
	}
	logger := t.Logger
	if logger == nil {
		logger = logging.Nop()
	}

	if req.Body != nil && req.GetBody == nil {
		bodyBytes, err := io.ReadAll(req.Body)
		if err != nil {
			return nil, fmt.Errorf("http retry: read request body: %w", err)
		}
		_ = req.Body.Close()
		req.GetBody = func() (io.ReadCloser, error) {
			return io.NopCloser(bytes.NewReader(bodyBytes)), nil
		}
	}

	ctx := req.Context()
	for attempt := 0; attempt < maxRetries; attempt++ {
		if err := ctx.Err(); err != nil {
			return nil, fmt.Errorf("http retry: request canceled: %w", err)
		}

		attemptReq := req
		if attempt > 0 {
			attemptReq = req.Clone(ctx)
		}
		if req.GetBody != nil {
			body, err := req.GetBody()
			if err != nil {
				return nil, fmt.Errorf("http retry: reset request body: %w", err)
			}
			attemptReq.Body = body
		}

		resp, err := base.RoundTrip(attemptReq)
		retryAfter, retry := shouldRetry(resp, err)
		if !retry {
			return resp, err
		}

		fields := logging.Fields{"attempt": attempt + 1, "max_attempts": maxRetries, "host": req.URL.Host}
		if err != nil {
			logger.Warn("retrying after transport error", fields, logging.Fields{"error": err.Error()})
		} else {
			logger.Warn("retrying after retryable status", fields, logging.Fields{"status": resp.StatusCode})
		}

		if attempt == maxRetries-1 {
			if err != nil {
				return nil, fmt.Errorf("http retry: request failed after %d attempts: %w", maxRetries, err)
			}
			// The final response is handed back so callers can read the status.
			return resp, nil
		}
		if resp != nil {
			_, _ = io.Copy(io.Discard, resp.Body)
			_ = resp.Body.Close()
		}

		backoff := baseBackoff * time.Duration(1<<attempt)
		if retryAfter > 0 {
			backoff = retryAfter
		}
		if err := sleepWithContext(ctx, backoff); err != nil {
			return nil, err
		}
	}

	return nil, fmt.Errorf("http retry: request failed after %d attempts", maxRetries)
}

func shouldRetry(resp *http.Response, err error) (time.Duration, bool) {
	if err != nil {
		return 0, true
	}
	if resp == nil {
		return 0, false
	}
	if resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= http.StatusInternalServerError {
		return parseRetryAfter(resp), true
	}
	return 0, false
}

func parseRetryAfter(resp *http.Response) time.Duration {
	if resp == nil {
		return 0
	}
	retryAfter := resp.Header.Get("Retry-After")
	if retryAfter == "" {
		return 0
	}
	if seconds, err := strconv.Atoi(retryAfter); err == nil && seconds > 0 {
		return time.Duration(seconds) * time.Second
	}
	if when, err := http.ParseTime(retryAfter); err == nil {
		if until := time.Until(when); until > 0 {
			return until
		}
	}
	return 0
}

func sleepWithContext(ctx context.Context, delay time.Duration) error {
	if delay <= 0 {
		return nil
	}
	timer := time.NewTimer(delay)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return fmt.Errorf("http retry: request canceled: %w", ctx.Err())
	case <-timer.C:
		return nil
	}
}
