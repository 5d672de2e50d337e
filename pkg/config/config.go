/*
Copyright © 2025 NAME HERE <EMAIL ADDRESS>
*/
package config

import (
	"crypto/rand"
	"encoding/hex"
	"os"
	"path/filepath"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/rs/zerolog"
	"gopkg.in/yaml.v3"

	"github.com/ssargent/tablekv/pkg/metrics"
	"github.com/ssargent/tablekv/pkg/storage"
	"github.com/ssargent/tablekv/pkg/store"
)

// Config represents the tablekv configuration
type Config struct {
	DataDir string `yaml:"data_dir"`
	// MaxKeyLen is persisted on first open; changing it later makes the
	// database refuse to open.
	MaxKeyLen      int     `yaml:"max_key_len"`
	CheckpointPath string  `yaml:"checkpoint_path"`
	Engine         Engine  `yaml:"engine"`
	Server         Server  `yaml:"server"`
	Logging        Logging `yaml:"logging"`
}

// Engine tunes pebble. None of these settings change the key encoding.
type Engine struct {
	CacheSize                   int64         `yaml:"cache_size"`
	MemTableSize                uint64        `yaml:"memtable_size"`
	MemTableStopWritesThreshold int           `yaml:"memtable_stop_writes_threshold"`
	MaxConcurrentCompactions    int           `yaml:"max_concurrent_compactions"`
	L0CompactionThreshold       int           `yaml:"l0_compaction_threshold"`
	L0StopWritesThreshold       int           `yaml:"l0_stop_writes_threshold"`
	BytesPerSync                int           `yaml:"bytes_per_sync"`
	WALBytesPerSync             int           `yaml:"wal_bytes_per_sync"`
	WALMinSyncInterval          time.Duration `yaml:"wal_min_sync_interval"`
	WALDir                      string        `yaml:"wal_dir"`
	DisableAutomaticCompactions bool          `yaml:"disable_automatic_compactions"`
	Sync                        bool          `yaml:"sync"`
}

// Server configures the admin HTTP API
type Server struct {
	Bind string `yaml:"bind"`
	Port int    `yaml:"port"`
	// APIKey guards /api/v1. Empty disables the check.
	APIKey string `yaml:"api_key"`
}

// Logging contains logging configuration
type Logging struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// DefaultConfig returns a default configuration
func DefaultConfig() *Config {
	engine := storage.DefaultOptions()
	return &Config{
		DataDir:        "./data",
		MaxKeyLen:      4,
		CheckpointPath: "./checkpoints.db",
		Engine: Engine{
			CacheSize:                   engine.CacheSize,
			MemTableSize:                engine.MemTableSize,
			MemTableStopWritesThreshold: engine.MemTableStopWritesThreshold,
			MaxConcurrentCompactions:    engine.MaxConcurrentCompactions,
			L0CompactionThreshold:       engine.L0CompactionThreshold,
			L0StopWritesThreshold:       engine.L0StopWritesThreshold,
			BytesPerSync:                engine.BytesPerSync,
			Sync:                        engine.Sync,
		},
		Server: Server{
			Bind: "127.0.0.1",
			Port: 8080,
		},
		Logging: Logging{
			Level:  "info",
			Format: "console",
		},
	}
}

// Validate checks the values a database can not be opened without
func (c *Config) Validate() error {
	if c.DataDir == "" {
		return errors.New("data_dir is required")
	}
	if c.MaxKeyLen < 1 || c.MaxKeyLen > 0xFFFE {
		return errors.Newf("max_key_len %d out of range [1, 65534]", c.MaxKeyLen)
	}
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return errors.Newf("server port %d out of range", c.Server.Port)
	}
	if _, err := zerolog.ParseLevel(c.Logging.Level); err != nil {
		return errors.Wrapf(err, "logging level %q", c.Logging.Level)
	}
	switch c.Logging.Format {
	case "", "console", "json":
	default:
		return errors.Newf("logging format %q must be console or json", c.Logging.Format)
	}
	if c.Engine.CacheSize < 0 || c.Engine.MaxConcurrentCompactions < 0 {
		return errors.New("engine sizes must not be negative")
	}
	return nil
}

// EngineOptions converts the engine section into storage options
func (c *Config) EngineOptions(log zerolog.Logger) storage.Options {
	return storage.Options{
		CacheSize:                   c.Engine.CacheSize,
		MemTableSize:                c.Engine.MemTableSize,
		MemTableStopWritesThreshold: c.Engine.MemTableStopWritesThreshold,
		MaxConcurrentCompactions:    c.Engine.MaxConcurrentCompactions,
		L0CompactionThreshold:       c.Engine.L0CompactionThreshold,
		L0StopWritesThreshold:       c.Engine.L0StopWritesThreshold,
		BytesPerSync:                c.Engine.BytesPerSync,
		WALBytesPerSync:             c.Engine.WALBytesPerSync,
		WALMinSyncInterval:          c.Engine.WALMinSyncInterval,
		WALDir:                      c.Engine.WALDir,
		DisableAutomaticCompactions: c.Engine.DisableAutomaticCompactions,
		Sync:                        c.Engine.Sync,
		Logger:                      log,
	}
}

// StoreOptions builds the options store.Open needs
func (c *Config) StoreOptions(log zerolog.Logger, m *metrics.Metrics) store.Options {
	return store.Options{
		Engine:    c.EngineOptions(log),
		MaxKeyLen: c.MaxKeyLen,
		Logger:    log,
		Metrics:   m,
	}
}

// LoadConfig loads configuration from the specified path
func LoadConfig(configPath string) (*Config, error) {
	if _, err := os.Stat(configPath); os.IsNotExist(err) {
		return nil, errors.Newf("config file does not exist: %s", configPath)
	}

	if !filepath.IsAbs(configPath) {
		absPath, err := filepath.Abs(configPath)
		if err != nil {
			return nil, errors.Wrap(err, "invalid config path")
		}
		configPath = absPath
	}

	data, err := os.ReadFile(configPath)
	if err != nil {
		return nil, errors.Wrap(err, "failed to read config file")
	}

	// fields missing from the file keep their defaults
	config := DefaultConfig()
	if err := yaml.Unmarshal(data, config); err != nil {
		return nil, errors.Wrap(err, "failed to parse config file")
	}

	return config, nil
}

// SaveConfig saves the configuration to the specified path with secure permissions
func SaveConfig(config *Config, configPath string) error {
	configDir := filepath.Dir(configPath)
	if err := os.MkdirAll(configDir, 0750); err != nil {
		return errors.Wrap(err, "failed to create config directory")
	}

	data, err := yaml.Marshal(config)
	if err != nil {
		return errors.Wrap(err, "failed to marshal config")
	}

	// the file carries the API key
	if err := os.WriteFile(configPath, data, 0600); err != nil {
		return errors.Wrap(err, "failed to write config file")
	}

	return nil
}

// GenerateSecureKey generates a cryptographically secure random key
func GenerateSecureKey(length int) (string, error) {
	bytes := make([]byte, length)
	if _, err := rand.Read(bytes); err != nil {
		return "", errors.Wrap(err, "failed to generate secure key")
	}
	return hex.EncodeToString(bytes), nil
}

// BootstrapConfig writes a new configuration with a generated API key
func BootstrapConfig(configPath string, dataDir string) (*Config, error) {
	config := DefaultConfig()
	if dataDir != "" {
		config.DataDir = dataDir
		config.CheckpointPath = filepath.Join(filepath.Dir(filepath.Clean(dataDir)), "checkpoints.db")
	}

	apiKey, err := GenerateSecureKey(32) // 256 bits
	if err != nil {
		return nil, errors.Wrap(err, "failed to generate API key")
	}
	config.Server.APIKey = apiKey

	if err := SaveConfig(config, configPath); err != nil {
		return nil, errors.Wrap(err, "failed to save bootstrap config")
	}

	return config, nil
}

// GetDefaultConfigPath returns the default configuration path for the current platform
func GetDefaultConfigPath() string {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return "./tablekv.yaml"
	}

	// ~/.config/tablekv/config.yaml on Linux and macOS
	return filepath.Join(homeDir, ".config", "tablekv", "config.yaml")
}

// ConfigExists checks if a configuration file exists
func ConfigExists(configPath string) bool {
	_, err := os.Stat(configPath)
	return !os.IsNotExist(err)
}
