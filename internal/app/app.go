// Package app assembles the adapters and the orchestrator from a Config.
package app

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/ewilliams-labs/cadence/internal/adapters/dense"
	"github.com/ewilliams-labs/cadence/internal/adapters/httpretry"
	"github.com/ewilliams-labs/cadence/internal/adapters/preview"
	"github.com/ewilliams-labs/cadence/internal/adapters/spotify"
	"github.com/ewilliams-labs/cadence/internal/adapters/sqlite"
	"github.com/ewilliams-labs/cadence/internal/adapters/tfserving"
	"github.com/ewilliams-labs/cadence/internal/config"
	"github.com/ewilliams-labs/cadence/internal/core/domain"
	"github.com/ewilliams-labs/cadence/internal/core/ports"
	"github.com/ewilliams-labs/cadence/internal/core/services"
	"github.com/ewilliams-labs/cadence/internal/logging"
)

// App holds everything a command needs. Build it once with New and release
// it with Close.
type App struct {
	Config       *config.Config
	Logger       logging.Logger
	Orchestrator *services.Orchestrator

	store *sqlite.Adapter
}

// New configures logging, opens storage and connects the catalog, preview
// source and models in dependency order.
func New(ctx context.Context, cfg *config.Config) (*App, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if err := cfg.ValidateCatalog(); err != nil {
		return nil, err
	}

	logger, err := logging.New(cfg.Log.Level, cfg.Log.Format)
	if err != nil {
		return nil, err
	}
	logging.SetDefault(logger)
	logger = logger.WithFields(logging.Fields{"component": "app"})

	a := &App{Config: cfg, Logger: logger}

	var (
		cache      ports.TrackCache
		featureLog ports.FeatureLog
	)
	if cfg.Storage.Path != "" {
		store, err := sqlite.NewAdapter(cfg.Storage.Path)
		if err != nil {
			return nil, fmt.Errorf("app: open storage: %w", err)
		}
		a.store = store
		cache, featureLog = store, store
	}

	catalog, err := spotify.NewClient(ctx, spotify.Config{
		ClientID:     cfg.Spotify.ClientID,
		ClientSecret: cfg.Spotify.ClientSecret,
		BaseURL:      cfg.Spotify.BaseURL,
		TokenURL:     cfg.Spotify.TokenURL,
		Timeout:      cfg.Spotify.Timeout,
		MaxRetries:   cfg.Spotify.MaxRetries,
		BaseBackoff:  cfg.Spotify.BaseBackoff,
	})
	if err != nil {
		a.Close()
		return nil, fmt.Errorf("app: catalog: %w", err)
	}

	previewHTTP := &http.Client{
		Transport: httpretry.New(http.DefaultTransport, cfg.Spotify.MaxRetries, cfg.Spotify.BaseBackoff),
		Timeout:   cfg.Preview.Timeout,
	}
	downloader := preview.NewDownloader(previewHTTP, cfg.Preview.RatePerSecond, cfg.Preview.Burst, cfg.Preview.MaxBytes)
	source := preview.NewSource(catalog, downloader, cache, cfg.Storage.CacheTTL)

	combined, featuresOnly, err := loadModels(cfg.Inference)
	if err != nil {
		a.Close()
		return nil, err
	}

	a.Orchestrator = services.NewOrchestrator(source, catalog, combined, featuresOnly, featureLog)

	logger.Info("application initialized", logging.Fields{
		"backend":    cfg.Inference.Backend,
		"mode":       cfg.Inference.Mode,
		"storage":    cfg.Storage.Path,
		"combined":   combined != nil,
		"cache_ttl":  cfg.Storage.CacheTTL.String(),
		"rate_limit": cfg.Preview.RatePerSecond,
	})
	return a, nil
}

// loadModels returns the combined and features-only classifiers. The
// combined model is optional for the dense backend: without it every
// prediction takes the features-only path.
func loadModels(cfg config.InferenceConfig) (ports.Model, ports.Model, error) {
	mode, err := domain.ParseInferenceMode(cfg.Mode)
	if err != nil {
		return nil, nil, err
	}

	switch cfg.Backend {
	case config.BackendTFServing:
		httpClient := &http.Client{Timeout: cfg.Timeout}
		signature := cfg.Signature()
		var combined ports.Model
		if cfg.CombinedModelName != "" {
			combined = tfserving.NewClient(cfg.TFServingURL, cfg.CombinedModelName, signature, httpClient)
		}
		featuresOnly := tfserving.NewClient(cfg.TFServingURL, cfg.FeaturesModelName, signature, httpClient)
		return combined, featuresOnly, nil

	case config.BackendDense:
		featuresOnly, err := dense.Load(cfg.FeaturesModelPath, mode)
		if err != nil {
			return nil, nil, fmt.Errorf("app: features-only model: %w", err)
		}
		if cfg.CombinedModelPath == "" {
			return nil, featuresOnly, nil
		}
		combined, err := dense.Load(cfg.CombinedModelPath, mode)
		if err != nil {
			return nil, nil, fmt.Errorf("app: combined model: %w", err)
		}
		return combined, featuresOnly, nil

	default:
		return nil, nil, fmt.Errorf("app: unknown inference backend %q", cfg.Backend)
	}
}

// Close releases storage and flushes the logger.
func (a *App) Close() error {
	var errs []error
	if a.store != nil {
		if err := a.store.Close(); err != nil {
			errs = append(errs, fmt.Errorf("app: close storage: %w", err))
		}
		a.store = nil
	}
	if a.Logger != nil {
		// Sync on stderr returns EINVAL on some platforms; ignore it.
		_ = a.Logger.Sync()
	}
	return errors.Join(errs...)
}
