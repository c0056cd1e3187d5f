package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadOverridesDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	contents := `
retries:
  max_attempts: 8
gate:
  width: 20
store:
  backend: redis
  redis:
    addr: localhost:6379
    prefix: "custom:"
metrics:
  enabled: true
  port: 9091
`
	require.NoError(t, os.WriteFile(path, []byte(contents), 0644))

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, 8, cfg.Retries.MaxAttempts)
	assert.Equal(t, 20, cfg.Gate.Width)
	assert.Equal(t, "redis", cfg.Store.Backend)
	assert.Equal(t, "localhost:6379", cfg.Store.Redis.Addr)
	assert.True(t, cfg.Metrics.Enabled)
	assert.Equal(t, 9091, cfg.Metrics.Port)

	// Untouched fields keep their defaults.
	assert.Equal(t, 4, cfg.Jobs.MaxTries)
	assert.Equal(t, time.Second, cfg.Retries.MinPause)
}

func TestLoadMissingFileErrors(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}

func TestDefaultMatchesOriginalEngineDefaults(t *testing.T) {
	cfg := Default()
	assert.Equal(t, 5, cfg.Retries.MaxAttempts)
	assert.Equal(t, "file", cfg.Store.Backend)
	assert.Equal(t, "/tmp/aws_batch_jobs_db.json", cfg.Store.File.Path)
}
