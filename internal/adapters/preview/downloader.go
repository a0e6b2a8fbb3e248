// Package preview fetches and decodes catalog preview clips.
package preview

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	"golang.org/x/time/rate"
)

// DefaultMaxBytes comfortably holds a 30 s 320 kbps MP3.
const DefaultMaxBytes = 5 << 20

// Downloader performs rate-limited, size-bounded GETs of preview files.
type Downloader struct {
	client   *http.Client
	limiter  *rate.Limiter
	maxBytes int64
}

// NewDownloader allows perSecond requests with the given burst. A
// non-positive perSecond disables limiting.
func NewDownloader(client *http.Client, perSecond float64, burst int, maxBytes int64) *Downloader {
	if client == nil {
		client = &http.Client{Timeout: 15 * time.Second}
	}
	limit := rate.Inf
	if perSecond > 0 {
		limit = rate.Limit(perSecond)
	}
	if burst <= 0 {
		burst = 1
	}
	if maxBytes <= 0 {
		maxBytes = DefaultMaxBytes
	}
	return &Downloader{
		client:   client,
		limiter:  rate.NewLimiter(limit, burst),
		maxBytes: maxBytes,
	}
}

// Download returns the body of url.
func (d *Downloader) Download(ctx context.Context, url string) ([]byte, error) {
	if err := d.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("preview downloader: rate limit: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("preview downloader: %w", err)
	}

	// #nosec G107 -- URL comes from the catalog API response
	resp, err := d.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("preview downloader: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("preview downloader: status %d", resp.StatusCode)
	}
	if resp.ContentLength > d.maxBytes {
		return nil, fmt.Errorf("preview downloader: body of %d bytes exceeds limit %d", resp.ContentLength, d.maxBytes)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, d.maxBytes+1))
	if err != nil {
		return nil, fmt.Errorf("preview downloader: read body: %w", err)
	}
	if int64(len(body)) > d.maxBytes {
		return nil, fmt.Errorf("preview downloader: body exceeds limit %d", d.maxBytes)
	}
	return body, nil
}
