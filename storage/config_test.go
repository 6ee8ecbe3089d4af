package storage

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	assert.Equal(t, uint32(128), cfg.PoolSize)
	assert.Equal(t, uint32(1), cfg.NumInstances)
	assert.Equal(t, "lru", cfg.Replacer)
	assert.Equal(t, "file", cfg.DiskBackend)
	assert.True(t, cfg.WALEnabled)
	require.NoError(t, cfg.Validate())
}

func TestLoadConfig(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	yaml := `
pool_size: 64
num_instances: 4
replacer: clock
data_directory: /tmp/bustub-test
disk_backend: mmap
wal_enabled: false
log_level: debug
`
	require.NoError(t, os.WriteFile(path, []byte(yaml), 0644))

	cfg, err := LoadConfig(path)
	require.NoError(t, err)

	assert.Equal(t, uint32(64), cfg.PoolSize)
	assert.Equal(t, uint32(4), cfg.NumInstances)
	assert.Equal(t, "clock", cfg.Replacer)
	assert.Equal(t, "/tmp/bustub-test", cfg.DataDirectory)
	assert.Equal(t, "mmap", cfg.DiskBackend)
	assert.False(t, cfg.WALEnabled)
	assert.Equal(t, "debug", cfg.LogLevel)

	// Unset keys fall back to the defaults
	assert.True(t, cfg.EnableMetrics)
}

func TestLoadConfigMissingFile(t *testing.T) {
	_, err := LoadConfig(filepath.Join(t.TempDir(), "does-not-exist.yaml"))
	assert.Error(t, err)
}

func TestLoadConfigEnvOverride(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("pool_size: 64\n"), 0644))

	t.Setenv("BUSTUB_POOL_SIZE", "256")
	t.Setenv("BUSTUB_REPLACER", "clock")

	cfg, err := LoadConfig(path)
	require.NoError(t, err)

	assert.Equal(t, uint32(256), cfg.PoolSize)
	assert.Equal(t, "clock", cfg.Replacer)
}

func TestConfigValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"zero pool size", func(c *Config) { c.PoolSize = 0 }},
		{"zero instances", func(c *Config) { c.NumInstances = 0 }},
		{"unknown replacer", func(c *Config) { c.Replacer = "fifo" }},
		{"unknown backend", func(c *Config) { c.DiskBackend = "tape" }},
		{"empty data directory", func(c *Config) { c.DataDirectory = "" }},
		{"bad log level", func(c *Config) { c.LogLevel = "verbose" }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(cfg)
			assert.Error(t, cfg.Validate())
		})
	}
}

func TestConfigOpenWithoutWAL(t *testing.T) {
	cfg := DefaultConfig()
	cfg.DataDirectory = t.TempDir()
	cfg.WALEnabled = false
	cfg.PoolSize = 2

	pool, disk, logManager, err := cfg.Open()
	require.NoError(t, err)
	assert.Nil(t, logManager)
	defer disk.Close()

	page := pool.NewPage()
	require.NotNil(t, page)
	require.True(t, pool.UnpinPage(page.PageID(), false))
}
