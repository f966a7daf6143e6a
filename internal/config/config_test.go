package config_test

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aretw0/lattice/internal/config"
)

func TestParse_Defaults(t *testing.T) {
	cfg, err := config.Parse()
	require.NoError(t, err)
	assert.Equal(t, "activities", cfg.ActivityRoot)
	assert.Equal(t, config.StoreMemory, cfg.Store)
	assert.Equal(t, 4096, cfg.MaxInputSize)
	assert.Equal(t, 60*time.Second, cfg.RequestTimeout)
	assert.Equal(t, "gpt-4o-mini", cfg.DefaultModel)
}

func TestParse_Environment(t *testing.T) {
	t.Setenv("LATTICE_STORE", "redis")
	t.Setenv("LATTICE_STATE_TTL", "2h")
	t.Setenv("LATTICE_MODELS", "MODEL_0=gpt-4o-mini,MODEL_1=gpt-4o")
	t.Setenv("LATTICE_RATE_LIMIT", "2.5")

	cfg, err := config.Parse()
	require.NoError(t, err)
	assert.Equal(t, config.StoreRedis, cfg.Store)
	assert.Equal(t, 2*time.Hour, cfg.StateTTL)
	assert.Equal(t, map[string]string{"MODEL_0": "gpt-4o-mini", "MODEL_1": "gpt-4o"}, cfg.Models)
	assert.Equal(t, 2.5, cfg.RateLimit)
}

func TestParse_InvalidStore(t *testing.T) {
	t.Setenv("LATTICE_STORE", "mongo")
	_, err := config.Parse()
	assert.ErrorContains(t, err, "LATTICE_STORE")
}

func TestLoad_DotEnv(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "test.env")
	require.NoError(t, os.WriteFile(path, []byte("LATTICE_HTTP_ADDR=:9999\nLATTICE_LOG_LEVEL=debug\n"), 0o600))
	t.Setenv("LATTICE_LOG_LEVEL", "warn")
	t.Cleanup(func() { _ = os.Unsetenv("LATTICE_HTTP_ADDR") })

	cfg, err := config.Load(path)
	require.NoError(t, err)
	assert.Equal(t, ":9999", cfg.HTTPAddr)
	assert.Equal(t, "warn", cfg.LogLevel, "the environment wins over the file")
}

func TestLoad_MissingFileIgnored(t *testing.T) {
	_, err := config.Load(filepath.Join(t.TempDir(), "absent.env"))
	assert.NoError(t, err)
}
