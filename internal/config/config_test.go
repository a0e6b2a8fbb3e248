package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load(New(), "")
	require.NoError(t, err)

	assert.Equal(t, "info", cfg.Log.Level)
	assert.Equal(t, ":8080", cfg.Server.Addr)
	assert.Equal(t, 15*time.Second, cfg.Server.ReadHeaderTimeout)
	assert.Equal(t, []string{"http://localhost:3000"}, cfg.Server.AllowedOrigins)
	assert.Equal(t, 500*time.Millisecond, cfg.Spotify.BaseBackoff)
	assert.Equal(t, int64(5<<20), cfg.Preview.MaxBytes)
	assert.Equal(t, 24*time.Hour, cfg.Storage.CacheTTL)
	assert.Equal(t, "eval", cfg.Inference.Mode)
	assert.Equal(t, BackendDense, cfg.Inference.Backend)
	assert.Equal(t, 4, cfg.Batch.Workers)
	require.NoError(t, cfg.Validate())
}

func TestLoadFileAndEnv(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "cadence.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
server:
  addr: ":9090"
inference:
  mode: train
  backend: tfserving
storage:
  cache_ttl: 1h
`), 0o600))

	t.Setenv("CADENCE_SERVER_ADDR", ":7070")
	t.Setenv("SPOTIFY_CLIENT_ID", "id-from-plain-env")
	t.Setenv("CADENCE_SPOTIFY_CLIENT_SECRET", "secret")

	cfg, err := Load(New(), path)
	require.NoError(t, err)

	assert.Equal(t, ":7070", cfg.Server.Addr, "env overrides file")
	assert.Equal(t, "train", cfg.Inference.Mode)
	assert.Equal(t, BackendTFServing, cfg.Inference.Backend)
	assert.Equal(t, time.Hour, cfg.Storage.CacheTTL)
	assert.Equal(t, "id-from-plain-env", cfg.Spotify.ClientID)
	assert.Equal(t, "secret", cfg.Spotify.ClientSecret)
	assert.Equal(t, "serving_train", cfg.Inference.Signature())
	require.NoError(t, cfg.ValidateCatalog())
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(New(), filepath.Join(t.TempDir(), "nope.yaml"))
	require.Error(t, err)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(c *Config)
	}{
		{name: "bad mode", mutate: func(c *Config) { c.Inference.Mode = "predict" }},
		{name: "bad backend", mutate: func(c *Config) { c.Inference.Backend = "onnx" }},
		{name: "dense without model", mutate: func(c *Config) { c.Inference.FeaturesModelPath = "" }},
		{name: "tfserving without url", mutate: func(c *Config) {
			c.Inference.Backend = BackendTFServing
			c.Inference.TFServingURL = ""
		}},
		{name: "no workers", mutate: func(c *Config) { c.Batch.Workers = 0 }},
		{name: "no byte cap", mutate: func(c *Config) { c.Preview.MaxBytes = 0 }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg, err := Load(New(), "")
			require.NoError(t, err)
			tt.mutate(cfg)
			require.Error(t, cfg.Validate())
		})
	}
}

func TestValidateCatalogRequiresCredentials(t *testing.T) {
	t.Setenv("SPOTIFY_CLIENT_ID", "")
	t.Setenv("SPOTIFY_CLIENT_SECRET", "")
	t.Setenv("CADENCE_SPOTIFY_CLIENT_ID", "")
	t.Setenv("CADENCE_SPOTIFY_CLIENT_SECRET", "")

	cfg, err := Load(New(), "")
	require.NoError(t, err)
	require.Error(t, cfg.ValidateCatalog())
}

func TestLoadDotEnv(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, ".env")
	require.NoError(t, os.WriteFile(path, []byte("CADENCE_TEST_DOTENV=from-file\nCADENCE_TEST_PRESET=from-file\n"), 0o600))

	t.Setenv("CADENCE_TEST_PRESET", "from-env")
	// t.Setenv restores the variable afterwards; unset it so godotenv sets it.
	t.Setenv("CADENCE_TEST_DOTENV", "")
	require.NoError(t, os.Unsetenv("CADENCE_TEST_DOTENV"))

	require.NoError(t, LoadDotEnv(path, filepath.Join(dir, "missing.env")))
	assert.Equal(t, "from-file", os.Getenv("CADENCE_TEST_DOTENV"))
	assert.Equal(t, "from-env", os.Getenv("CADENCE_TEST_PRESET"))
}
