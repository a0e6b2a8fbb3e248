// Package config loads service settings from defaults, an optional YAML
// file, a .env file and CADENCE_-prefixed environment variables, in
// increasing order of precedence. CLI flags bound into the same viper
// instance win over all of them.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"

	"github.com/ewilliams-labs/cadence/internal/core/domain"
)

const EnvPrefix = "CADENCE"

// Backends for the two classifiers.
const (
	BackendDense     = "dense"
	BackendTFServing = "tfserving"
)

type Config struct {
	Log       LogConfig       `mapstructure:"log"`
	Server    ServerConfig    `mapstructure:"server"`
	Spotify   SpotifyConfig   `mapstructure:"spotify"`
	Preview   PreviewConfig   `mapstructure:"preview"`
	Storage   StorageConfig   `mapstructure:"storage"`
	Inference InferenceConfig `mapstructure:"inference"`
	Batch     BatchConfig     `mapstructure:"batch"`
}

type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

type ServerConfig struct {
	Addr              string        `mapstructure:"addr"`
	ReadHeaderTimeout time.Duration `mapstructure:"read_header_timeout"`
	WriteTimeout      time.Duration `mapstructure:"write_timeout"`
	ShutdownTimeout   time.Duration `mapstructure:"shutdown_timeout"`
	AllowedOrigins    []string      `mapstructure:"allowed_origins"`
}

type SpotifyConfig struct {
	ClientID     string        `mapstructure:"client_id"`
	ClientSecret string        `mapstructure:"client_secret"`
	BaseURL      string        `mapstructure:"base_url"`
	TokenURL     string        `mapstructure:"token_url"`
	Timeout      time.Duration `mapstructure:"timeout"`
	MaxRetries   int           `mapstructure:"max_retries"`
	BaseBackoff  time.Duration `mapstructure:"base_backoff"`
}

type PreviewConfig struct {
	RatePerSecond float64       `mapstructure:"rate_per_second"`
	Burst         int           `mapstructure:"burst"`
	MaxBytes      int64         `mapstructure:"max_bytes"`
	Timeout       time.Duration `mapstructure:"timeout"`
}

type StorageConfig struct {
	// Path of the sqlite database. Empty disables the cache and feature log.
	Path     string        `mapstructure:"path"`
	CacheTTL time.Duration `mapstructure:"cache_ttl"`
}

type InferenceConfig struct {
	Mode    string `mapstructure:"mode"`
	Backend string `mapstructure:"backend"`

	CombinedModelPath string `mapstructure:"combined_model_path"`
	FeaturesModelPath string `mapstructure:"features_model_path"`

	TFServingURL      string        `mapstructure:"tfserving_url"`
	CombinedModelName string        `mapstructure:"combined_model_name"`
	FeaturesModelName string        `mapstructure:"features_model_name"`
	EvalSignature     string        `mapstructure:"eval_signature"`
	TrainSignature    string        `mapstructure:"train_signature"`
	Timeout           time.Duration `mapstructure:"timeout"`
}

type BatchConfig struct {
	Workers int `mapstructure:"workers"`
}

// New returns a viper instance with defaults and environment binding set.
func New() *viper.Viper {
	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_", ".", "_"))
	v.AutomaticEnv()

	// The unprefixed names are what the catalog's own tooling documents.
	_ = v.BindEnv("spotify.client_id", EnvPrefix+"_SPOTIFY_CLIENT_ID", "SPOTIFY_CLIENT_ID")
	_ = v.BindEnv("spotify.client_secret", EnvPrefix+"_SPOTIFY_CLIENT_SECRET", "SPOTIFY_CLIENT_SECRET")

	return v
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")

	v.SetDefault("server.addr", ":8080")
	v.SetDefault("server.read_header_timeout", "15s")
	v.SetDefault("server.write_timeout", "120s")
	v.SetDefault("server.shutdown_timeout", "10s")
	v.SetDefault("server.allowed_origins", []string{"http://localhost:3000"})

	v.SetDefault("spotify.client_id", "")
	v.SetDefault("spotify.client_secret", "")
	v.SetDefault("spotify.base_url", "")
	v.SetDefault("spotify.token_url", "")
	v.SetDefault("spotify.timeout", "10s")
	v.SetDefault("spotify.max_retries", 3)
	v.SetDefault("spotify.base_backoff", "500ms")

	v.SetDefault("preview.rate_per_second", 5.0)
	v.SetDefault("preview.burst", 5)
	v.SetDefault("preview.max_bytes", 5<<20)
	v.SetDefault("preview.timeout", "15s")

	v.SetDefault("storage.path", "cadence.db")
	v.SetDefault("storage.cache_ttl", "24h")

	v.SetDefault("inference.mode", string(domain.ModeEval))
	v.SetDefault("inference.backend", BackendDense)
	v.SetDefault("inference.combined_model_path", "models/combined.json")
	v.SetDefault("inference.features_model_path", "models/features_only.json")
	v.SetDefault("inference.tfserving_url", "http://localhost:8501")
	v.SetDefault("inference.combined_model_name", "combined")
	v.SetDefault("inference.features_model_name", "features_only")
	v.SetDefault("inference.eval_signature", "serving_default")
	v.SetDefault("inference.train_signature", "serving_train")
	v.SetDefault("inference.timeout", "30s")

	v.SetDefault("batch.workers", 4)
}

// LoadDotEnv loads KEY=value pairs from the given files into the process
// environment without overriding variables that are already set. Missing
// files are skipped.
func LoadDotEnv(paths ...string) error {
	if len(paths) == 0 {
		paths = []string{".env"}
	}
	for _, p := range paths {
		if err := godotenv.Load(p); err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				continue
			}
			return fmt.Errorf("config: load %s: %w", p, err)
		}
	}
	return nil
}

// Load reads configFile (if non-empty) into v and decodes the result.
func Load(v *viper.Viper, configFile string) (*Config, error) {
	if configFile != "" {
		v.SetConfigFile(configFile)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("config: read %s: %w", configFile, err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("config: decode: %w", err)
	}
	return &cfg, nil
}

// Validate checks settings every command needs.
func (c *Config) Validate() error {
	var problems []string

	if _, err := domain.ParseInferenceMode(c.Inference.Mode); err != nil {
		problems = append(problems, fmt.Sprintf("inference.mode %q must be eval or train", c.Inference.Mode))
	}
	switch c.Inference.Backend {
	case BackendDense:
		if c.Inference.FeaturesModelPath == "" {
			problems = append(problems, "inference.features_model_path is required for the dense backend")
		}
	case BackendTFServing:
		if c.Inference.TFServingURL == "" || c.Inference.FeaturesModelName == "" {
			problems = append(problems, "inference.tfserving_url and inference.features_model_name are required for the tfserving backend")
		}
	default:
		problems = append(problems, fmt.Sprintf("inference.backend %q must be dense or tfserving", c.Inference.Backend))
	}
	if c.Preview.MaxBytes <= 0 {
		problems = append(problems, "preview.max_bytes must be positive")
	}
	if c.Batch.Workers < 1 {
		problems = append(problems, "batch.workers must be at least 1")
	}

	if len(problems) > 0 {
		return fmt.Errorf("config: invalid: %s", strings.Join(problems, "; "))
	}
	return nil
}

// ValidateCatalog checks the credentials needed to reach the catalog.
func (c *Config) ValidateCatalog() error {
	if c.Spotify.ClientID == "" || c.Spotify.ClientSecret == "" {
		return errors.New("config: spotify.client_id and spotify.client_secret are required (set SPOTIFY_CLIENT_ID and SPOTIFY_CLIENT_SECRET)")
	}
	return nil
}

// Signature returns the tfserving signature for the configured mode.
func (c InferenceConfig) Signature() string {
	if c.Mode == string(domain.ModeTrain) {
		return c.TrainSignature
	}
	return c.EvalSignature
}
