// Package config handles configuration loading and validation for fieldsync.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds the application configuration.
type Config struct {
	Remote        RemoteConfig       `yaml:"remote"`
	Queue         QueueConfig        `yaml:"queue"`
	LockCache     LockCacheConfig    `yaml:"lock_cache"`
	Notifications NotificationConfig `yaml:"notifications"`
	Connectivity  ConnectivityConfig `yaml:"connectivity"`
	DataDir       string             `yaml:"-"` // set by caller, not from config file
}

// RemoteConfig points at the document API.
type RemoteConfig struct {
	BaseURL        string `yaml:"base_url"`
	Token          string `yaml:"token"`
	TimeoutSeconds int    `yaml:"timeout_seconds"`
}

// Timeout returns the per-request HTTP timeout.
func (r RemoteConfig) Timeout() time.Duration {
	return time.Duration(r.TimeoutSeconds) * time.Second
}

// QueueConfig tunes the offline mutation queue.
type QueueConfig struct {
	MaxRetries           int `yaml:"max_retries"`
	RetryBackoffMS       int `yaml:"retry_backoff_ms"`
	RemoteTimeoutSeconds int `yaml:"remote_timeout_seconds"`
}

// RetryBackoff returns the pause between failed drain attempts.
func (q QueueConfig) RetryBackoff() time.Duration {
	return time.Duration(q.RetryBackoffMS) * time.Millisecond
}

// RemoteTimeout returns the per-item remote call bound during a drain.
func (q QueueConfig) RemoteTimeout() time.Duration {
	return time.Duration(q.RemoteTimeoutSeconds) * time.Second
}

// LockCacheConfig tunes the TTL lock cache.
type LockCacheConfig struct {
	TTLSeconds int    `yaml:"ttl_seconds"`
	Collection string `yaml:"collection"`
}

// TTL returns how long a cached lock entry may be served.
func (l LockCacheConfig) TTL() time.Duration {
	return time.Duration(l.TTLSeconds) * time.Second
}

// NotificationConfig tunes the notification history.
type NotificationConfig struct {
	Retention int `yaml:"retention"`
}

// ConnectivityConfig tunes the connectivity monitor.
type ConnectivityConfig struct {
	ProbeIntervalSeconds int `yaml:"probe_interval_seconds"`
}

// ProbeInterval returns how often the monitor probes the remote.
func (c ConnectivityConfig) ProbeInterval() time.Duration {
	return time.Duration(c.ProbeIntervalSeconds) * time.Second
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() Config {
	return Config{
		Remote: RemoteConfig{
			TimeoutSeconds: 30,
		},
		Queue: QueueConfig{
			MaxRetries:           3,
			RetryBackoffMS:       200,
			RemoteTimeoutSeconds: 10,
		},
		LockCache: LockCacheConfig{
			TTLSeconds: 30,
			Collection: "work_item_locks",
		},
		Notifications: NotificationConfig{
			Retention: 100,
		},
		Connectivity: ConnectivityConfig{
			ProbeIntervalSeconds: 30,
		},
	}
}

// Load reads configuration from the given path and sets the data directory.
// If configPath is empty or doesn't exist, returns defaults with the provided dataDir.
func Load(configPath, dataDir string) (*Config, error) {
	cfg := DefaultConfig()
	cfg.DataDir = dataDir

	if configPath != "" {
		if _, err := os.Stat(configPath); err == nil {
			data, err := os.ReadFile(configPath)
			if err != nil {
				return nil, fmt.Errorf("read config file: %w", err)
			}

			if err := yaml.Unmarshal(data, &cfg); err != nil {
				return nil, fmt.Errorf("parse config file: %w", err)
			}

			// Re-set dataDir since Unmarshal may have cleared it
			cfg.DataDir = dataDir
		}
	}

	// Apply defaults for zero values
	cfg.applyDefaults()

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return &cfg, nil
}

// applyDefaults sets default values for any unset configuration options.
func (c *Config) applyDefaults() {
	defaults := DefaultConfig()
	if c.Remote.TimeoutSeconds == 0 {
		c.Remote.TimeoutSeconds = defaults.Remote.TimeoutSeconds
	}
	if c.Queue.MaxRetries == 0 {
		c.Queue.MaxRetries = defaults.Queue.MaxRetries
	}
	if c.Queue.RetryBackoffMS == 0 {
		c.Queue.RetryBackoffMS = defaults.Queue.RetryBackoffMS
	}
	if c.Queue.RemoteTimeoutSeconds == 0 {
		c.Queue.RemoteTimeoutSeconds = defaults.Queue.RemoteTimeoutSeconds
	}
	if c.LockCache.TTLSeconds == 0 {
		c.LockCache.TTLSeconds = defaults.LockCache.TTLSeconds
	}
	if c.LockCache.Collection == "" {
		c.LockCache.Collection = defaults.LockCache.Collection
	}
	if c.Notifications.Retention == 0 {
		c.Notifications.Retention = defaults.Notifications.Retention
	}
	if c.Connectivity.ProbeIntervalSeconds == 0 {
		c.Connectivity.ProbeIntervalSeconds = defaults.Connectivity.ProbeIntervalSeconds
	}
}

// Validate checks that the configuration is valid.
func (c *Config) Validate() error {
	if c.DataDir == "" {
		return fmt.Errorf("data directory cannot be empty")
	}

	if c.Queue.MaxRetries < 1 {
		return fmt.Errorf("queue.max_retries must be at least 1")
	}

	if c.Queue.RetryBackoffMS < 0 {
		return fmt.Errorf("queue.retry_backoff_ms cannot be negative")
	}

	if c.LockCache.TTLSeconds < 1 {
		return fmt.Errorf("lock_cache.ttl_seconds must be at least 1")
	}

	if c.Notifications.Retention < 1 {
		return fmt.Errorf("notifications.retention must be at least 1")
	}

	if c.Connectivity.ProbeIntervalSeconds < 1 {
		return fmt.Errorf("connectivity.probe_interval_seconds must be at least 1")
	}

	return nil
}

// DatabaseFile returns the path to the local store database.
func (c *Config) DatabaseFile() string {
	return filepath.Join(c.DataDir, "fieldsync.db")
}
