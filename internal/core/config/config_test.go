package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoad_MissingFileUsesDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "nope.yaml"), "/tmp/fieldsync")
	require.NoError(t, err)

	assert.Equal(t, "/tmp/fieldsync", cfg.DataDir)
	assert.Equal(t, 3, cfg.Queue.MaxRetries)
	assert.Equal(t, 200*time.Millisecond, cfg.Queue.RetryBackoff())
	assert.Equal(t, 30*time.Second, cfg.LockCache.TTL())
	assert.Equal(t, "work_item_locks", cfg.LockCache.Collection)
	assert.Equal(t, 100, cfg.Notifications.Retention)
}

func TestLoad_EmptyPathUsesDefaults(t *testing.T) {
	cfg, err := Load("", "/tmp/fieldsync")
	require.NoError(t, err)
	assert.Equal(t, 30*time.Second, cfg.Connectivity.ProbeInterval())
}

func TestLoad_FileOverridesDefaults(t *testing.T) {
	path := writeConfig(t, `
remote:
  base_url: https://sync.example.com
  token: abc123
  timeout_seconds: 5
queue:
  max_retries: 5
  retry_backoff_ms: 50
lock_cache:
  ttl_seconds: 60
`)

	cfg, err := Load(path, "/tmp/fieldsync")
	require.NoError(t, err)

	assert.Equal(t, "https://sync.example.com", cfg.Remote.BaseURL)
	assert.Equal(t, 5*time.Second, cfg.Remote.Timeout())
	assert.Equal(t, 5, cfg.Queue.MaxRetries)
	assert.Equal(t, 50*time.Millisecond, cfg.Queue.RetryBackoff())
	assert.Equal(t, 60*time.Second, cfg.LockCache.TTL())

	// Unset sections keep defaults.
	assert.Equal(t, 100, cfg.Notifications.Retention)
	assert.Equal(t, 10*time.Second, cfg.Queue.RemoteTimeout())
}

func TestLoad_InvalidYAML(t *testing.T) {
	path := writeConfig(t, "queue: [not a map")

	_, err := Load(path, "/tmp/fieldsync")
	assert.Error(t, err)
}

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{
			name:    "empty data dir",
			mutate:  func(c *Config) { c.DataDir = "" },
			wantErr: "data directory",
		},
		{
			name:    "zero max retries",
			mutate:  func(c *Config) { c.Queue.MaxRetries = 0 },
			wantErr: "max_retries",
		},
		{
			name:    "negative backoff",
			mutate:  func(c *Config) { c.Queue.RetryBackoffMS = -1 },
			wantErr: "retry_backoff_ms",
		},
		{
			name:    "zero ttl",
			mutate:  func(c *Config) { c.LockCache.TTLSeconds = 0 },
			wantErr: "ttl_seconds",
		},
		{
			name:    "zero retention",
			mutate:  func(c *Config) { c.Notifications.Retention = 0 },
			wantErr: "retention",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			cfg.DataDir = "/tmp/fieldsync"
			tt.mutate(&cfg)

			err := cfg.Validate()
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestConfig_ValidateOK(t *testing.T) {
	cfg := DefaultConfig()
	cfg.DataDir = "/tmp/fieldsync"
	assert.NoError(t, cfg.Validate())
}
