// Package config loads runtime configuration for the profile sync core.
package config

import (
	"fmt"
	"time"

	"github.com/spf13/viper"
)

// Config holds all runtime configuration.
type Config struct {
	DataDir string
	Remote  RemoteConfig
	Sync    SyncConfig
	Logging LoggingConfig
}

// RemoteConfig configures the remote profile API client.
type RemoteConfig struct {
	BaseURL string
	Token   string
	Timeout time.Duration
}

// SyncConfig configures queue drain behavior.
type SyncConfig struct {
	MaxRetries    int
	DrainInterval time.Duration
}

// LoggingConfig configures the process logger.
type LoggingConfig struct {
	Level string
}

// Load loads configuration from environment variables or a .env file.
func Load() (*Config, error) {
	viper.SetConfigFile(".env")
	viper.AutomaticEnv()

	// Try to read from .env file, but don't fail if it doesn't exist
	_ = viper.ReadInConfig()

	viper.SetDefault("DATA_DIR", "./data")
	viper.SetDefault("REMOTE_TIMEOUT_SECONDS", 30)
	viper.SetDefault("SYNC_MAX_RETRIES", 3)
	viper.SetDefault("SYNC_DRAIN_INTERVAL_MINUTES", 15)
	viper.SetDefault("LOG_LEVEL", "info")

	config := &Config{
		DataDir: viper.GetString("DATA_DIR"),
		Remote: RemoteConfig{
			BaseURL: viper.GetString("REMOTE_BASE_URL"),
			Token:   viper.GetString("REMOTE_API_TOKEN"),
			Timeout: time.Duration(viper.GetInt("REMOTE_TIMEOUT_SECONDS")) * time.Second,
		},
		Sync: SyncConfig{
			MaxRetries:    viper.GetInt("SYNC_MAX_RETRIES"),
			DrainInterval: time.Duration(viper.GetInt("SYNC_DRAIN_INTERVAL_MINUTES")) * time.Minute,
		},
		Logging: LoggingConfig{
			Level: viper.GetString("LOG_LEVEL"),
		},
	}

	if err := config.Validate(); err != nil {
		return nil, err
	}

	return config, nil
}

// Validate validates critical configuration values.
func (c *Config) Validate() error {
	if c.DataDir == "" {
		return fmt.Errorf("data directory is required")
	}
	if c.Remote.BaseURL == "" {
		return fmt.Errorf("remote base URL is required")
	}
	if c.Sync.MaxRetries < 1 {
		return fmt.Errorf("sync max retries must be at least 1")
	}
	return nil
}
