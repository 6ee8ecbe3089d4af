package storage

import (
	"path/filepath"
	"strings"

	"github.com/pkg/errors"
	"github.com/spf13/viper"
)

// Config holds buffer pool configuration
type Config struct {
	// Buffer pool
	PoolSize     uint32 `mapstructure:"pool_size"`     // Frames per instance
	NumInstances uint32 `mapstructure:"num_instances"` // Parallel pool shard count
	Replacer     string `mapstructure:"replacer"`      // Replacement policy (lru, clock)

	// Disk
	DataDirectory string `mapstructure:"data_directory"` // Directory for data files
	DiskBackend   string `mapstructure:"disk_backend"`   // Disk manager backend (file, mmap)

	// WAL
	WALEnabled bool `mapstructure:"wal_enabled"` // Whether WAL is enabled

	// Observability
	EnableMetrics bool   `mapstructure:"enable_metrics"` // Whether to collect performance metrics
	LogLevel      string `mapstructure:"log_level"`      // Log level (debug, info, warn, error)
}

// DefaultConfig returns the default configuration
func DefaultConfig() *Config {
	return &Config{
		PoolSize:      128,
		NumInstances:  1,
		Replacer:      "lru",
		DataDirectory: "./data",
		DiskBackend:   "file",
		WALEnabled:    true,
		EnableMetrics: true,
		LogLevel:      "info",
	}
}

// LoadConfig loads configuration from a YAML file, with environment
// variables (BUSTUB_POOL_SIZE, BUSTUB_NUM_INSTANCES, ...) overriding the
// file's values
func LoadConfig(path string) (*Config, error) {
	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("yaml")

	defaults := DefaultConfig()
	v.SetDefault("pool_size", defaults.PoolSize)
	v.SetDefault("num_instances", defaults.NumInstances)
	v.SetDefault("replacer", defaults.Replacer)
	v.SetDefault("data_directory", defaults.DataDirectory)
	v.SetDefault("disk_backend", defaults.DiskBackend)
	v.SetDefault("wal_enabled", defaults.WALEnabled)
	v.SetDefault("enable_metrics", defaults.EnableMetrics)
	v.SetDefault("log_level", defaults.LogLevel)

	v.SetEnvPrefix("BUSTUB")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		return nil, errors.Wrap(err, "read config")
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, errors.Wrap(err, "unmarshal config")
	}

	if err := cfg.Validate(); err != nil {
		return nil, errors.Wrap(err, "invalid configuration")
	}

	return &cfg, nil
}

// Validate validates the configuration
func (c *Config) Validate() error {
	if c.PoolSize == 0 {
		return errors.New("pool size must be greater than 0")
	}

	if c.NumInstances == 0 {
		return errors.New("instance count must be greater than 0")
	}

	switch c.Replacer {
	case "lru", "clock":
	default:
		return errors.Errorf("unknown replacer policy: %s (must be lru or clock)", c.Replacer)
	}

	switch c.DiskBackend {
	case "file", "mmap":
	default:
		return errors.Errorf("unknown disk backend: %s (must be file or mmap)", c.DiskBackend)
	}

	if c.DataDirectory == "" {
		return errors.New("data directory cannot be empty")
	}

	switch c.LogLevel {
	case "debug", "info", "warn", "error":
	default:
		return errors.Errorf("invalid log level: %s (must be debug, info, warn, or error)", c.LogLevel)
	}

	return nil
}

// Open assembles the configured buffer pool: the disk manager backend,
// the log manager when WAL is enabled, and the parallel pool instances.
// The caller owns the returned managers and closes them in reverse order.
func (c *Config) Open() (*ParallelBufferPoolManager, DiskManager, *LogManager, error) {
	if err := c.Validate(); err != nil {
		return nil, nil, nil, err
	}

	var (
		disk DiskManager
		err  error
	)
	dataFile := filepath.Join(c.DataDirectory, "bustub.db")
	switch c.DiskBackend {
	case "mmap":
		disk, err = NewMmapDiskManager(dataFile)
	default:
		disk, err = NewFileDiskManager(dataFile)
	}
	if err != nil {
		return nil, nil, nil, err
	}

	var logManager *LogManager
	if c.WALEnabled {
		logManager, err = NewLogManager(filepath.Join(c.DataDirectory, "bustub.wal"))
		if err != nil {
			disk.Close()
			return nil, nil, nil, err
		}
	}

	pool, err := NewParallelBufferPoolManager(c.NumInstances, c.PoolSize, disk, logManager, c.Replacer)
	if err != nil {
		if logManager != nil {
			logManager.Close()
		}
		disk.Close()
		return nil, nil, nil, err
	}

	return pool, disk, logManager, nil
}
