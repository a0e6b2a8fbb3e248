package spotify

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sort"
	"strings"
	"time"

	spotifyapi "github.com/zmb3/spotify/v2"
	spotifyauth "github.com/zmb3/spotify/v2/auth"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/clientcredentials"

	"github.com/ewilliams-labs/cadence/internal/adapters/httpretry"
	"github.com/ewilliams-labs/cadence/internal/core/domain"
	"github.com/ewilliams-labs/cadence/internal/core/ports"
	"github.com/ewilliams-labs/cadence/internal/logging"
)

// searchLimit matches the number of suggestions the web client shows.
const searchLimit = 5

// Config holds the credentials and transport settings for the catalog client.
type Config struct {
	ClientID     string
	ClientSecret string
	// BaseURL overrides the Web API root. It must end in a slash.
	BaseURL  string
	TokenURL string
	Timeout  time.Duration

	MaxRetries  int
	BaseBackoff time.Duration
}

// Client is the catalog adapter backed by the Spotify Web API.
type Client struct {
	api    *spotifyapi.Client
	logger logging.Logger
}

// compile-time interface assertion
var _ ports.CatalogProvider = (*Client)(nil)

// NewClient builds a client-credentials authenticated catalog client. Token
// and API requests share a retrying transport.
func NewClient(ctx context.Context, cfg Config) (*Client, error) {
	if cfg.ClientID == "" || cfg.ClientSecret == "" {
		return nil, errors.New("spotify adapter: client id and secret are required")
	}
	tokenURL := cfg.TokenURL
	if tokenURL == "" {
		tokenURL = spotifyauth.TokenURL
	}

	base := &http.Client{
		Transport: httpretry.New(http.DefaultTransport, cfg.MaxRetries, cfg.BaseBackoff),
		Timeout:   cfg.Timeout,
	}
	ctx = context.WithValue(ctx, oauth2.HTTPClient, base)

	creds := &clientcredentials.Config{
		ClientID:     cfg.ClientID,
		ClientSecret: cfg.ClientSecret,
		TokenURL:     tokenURL,
	}
	httpClient := creds.Client(ctx)
	httpClient.Timeout = cfg.Timeout

	return NewClientWithHTTP(httpClient, cfg.BaseURL), nil
}

// NewClientWithHTTP wraps an already authenticated http.Client. An empty
// baseURL uses the public API.
func NewClientWithHTTP(httpClient *http.Client, baseURL string) *Client {
	var opts []spotifyapi.ClientOption
	if baseURL != "" {
		if !strings.HasSuffix(baseURL, "/") {
			baseURL += "/"
		}
		opts = append(opts, spotifyapi.WithBaseURL(baseURL))
	}
	return &Client{
		api:    spotifyapi.New(httpClient, opts...),
		logger: logging.WithFields(logging.Fields{"component": "spotify_adapter"}),
	}
}

// GetTrack fetches track metadata including its preview URL.
func (c *Client) GetTrack(ctx context.Context, trackID string) (domain.Track, error) {
	if strings.TrimSpace(trackID) == "" {
		return domain.Track{}, fmt.Errorf("spotify adapter: empty track id: %w", domain.ErrNotFound)
	}

	ft, err := c.api.GetTrack(ctx, spotifyapi.ID(trackID))
	if err != nil {
		return domain.Track{}, fmt.Errorf("spotify adapter: get track %s: %w", trackID, mapAPIError(err))
	}
	if ft == nil {
		return domain.Track{}, fmt.Errorf("spotify adapter: get track %s: %w", trackID, domain.ErrNotFound)
	}

	t := mapTrackToDomain(*ft)
	if t.PreviewURL == "" {
		c.logger.Debug("track has no preview url", logging.Fields{"track_id": trackID})
	}
	return t, nil
}

// SearchTracks returns up to five tracks ordered by similarity to query.
func (c *Client) SearchTracks(ctx context.Context, query string) ([]domain.Track, error) {
	parsed := parseSearchQuery(query)
	q := parsed.catalogQuery()
	if parsed.empty() {
		q = strings.TrimSpace(query)
	}
	if q == "" {
		return []domain.Track{}, nil
	}

	res, err := c.api.Search(ctx, q, spotifyapi.SearchTypeTrack, spotifyapi.Limit(searchLimit))
	if err != nil {
		return nil, fmt.Errorf("spotify adapter: search %q: %w", q, mapAPIError(err))
	}
	if res == nil || res.Tracks == nil {
		return []domain.Track{}, nil
	}

	scored := make([]scoredTrack, 0, len(res.Tracks.Tracks))
	for _, ft := range res.Tracks.Tracks {
		t := mapTrackToDomain(ft)
		scored = append(scored, scoredTrack{track: t, score: matchScore(parsed, t)})
	}
	sort.SliceStable(scored, func(i, j int) bool {
		return scored[i].score > scored[j].score
	})

	out := make([]domain.Track, 0, min(len(scored), searchLimit))
	for i := 0; i < len(scored) && i < searchLimit; i++ {
		out = append(out, scored[i].track)
	}
	return out, nil
}

// GetAudioFeatures returns the nine catalog attributes the classifier uses.
func (c *Client) GetAudioFeatures(ctx context.Context, trackID string) (domain.FeatureSet, error) {
	if strings.TrimSpace(trackID) == "" {
		return nil, fmt.Errorf("spotify adapter: empty track id: %w", domain.ErrNotFound)
	}

	afs, err := c.api.GetAudioFeatures(ctx, spotifyapi.ID(trackID))
	if err != nil {
		return nil, fmt.Errorf("spotify adapter: audio features %s: %w", trackID, mapAPIError(err))
	}
	if len(afs) == 0 || afs[0] == nil {
		return nil, fmt.Errorf("spotify adapter: audio features %s: %w", trackID, domain.ErrNotFound)
	}

	return mapFeaturesToDomain(afs[0]), nil
}

// mapAPIError turns a 404 from the API into domain.ErrNotFound.
func mapAPIError(err error) error {
	var apiErr spotifyapi.Error
	if errors.As(err, &apiErr) && apiErr.Status == http.StatusNotFound {
		return fmt.Errorf("%w: %s", domain.ErrNotFound, apiErr.Message)
	}
	return err
}
