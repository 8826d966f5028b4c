package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "sqlite", cfg.Store.Driver)
	assert.Equal(t, "text-embedding-3-small", cfg.Embeddings.Model)
	assert.Equal(t, 100, cfg.Embeddings.BatchSize)
	assert.InDelta(t, 0.3, cfg.Classify.Threshold, 1e-9)
	assert.Equal(t, 3, cfg.Classify.MaxTopics)
	assert.Equal(t, 8080, cfg.Server.Port)
	assert.Equal(t, "info", cfg.Log.Level)
}

func TestLoadEnvOverrides(t *testing.T) {
	t.Setenv("REVIEWPULSE_STORE_DRIVER", "postgres")
	t.Setenv("REVIEWPULSE_STORE_DATABASE_URL", "postgres://localhost/reviews")
	t.Setenv("REVIEWPULSE_LOG_LEVEL", "debug")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "postgres", cfg.Store.Driver)
	assert.Equal(t, "postgres://localhost/reviews", cfg.Store.DatabaseURL)
	assert.Equal(t, "debug", cfg.Log.Level)
}

func TestInitLogger(t *testing.T) {
	require.NoError(t, InitLogger(LogConfig{Level: "debug", Format: "console"}))
	require.NoError(t, InitLogger(LogConfig{Level: "info", Format: "json"}))

	err := InitLogger(LogConfig{Level: "verbose", Format: "json"})
	require.Error(t, err)
}
