package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidateDeep_OK(t *testing.T) {
	cfg := DefaultConfig()
	cfg.DataDir = t.TempDir()
	cfg.Remote.BaseURL = "https://sync.example.com"

	assert.NoError(t, cfg.ValidateDeep(""))
}

func TestValidateDeep_BadBaseURL(t *testing.T) {
	tests := []struct {
		name string
		url  string
	}{
		{name: "bad scheme", url: "ftp://sync.example.com"},
		{name: "missing host", url: "https://"},
		{name: "not a url", url: "://nope"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			cfg.DataDir = t.TempDir()
			cfg.Remote.BaseURL = tt.url

			err := cfg.ValidateDeep("")
			require.Error(t, err)
			assert.Contains(t, err.Error(), "base_url")
		})
	}
}

func TestValidateDeep_DataDirIsFile(t *testing.T) {
	file := filepath.Join(t.TempDir(), "not-a-dir")
	require.NoError(t, os.WriteFile(file, []byte("x"), 0o644))

	cfg := DefaultConfig()
	cfg.DataDir = file

	err := cfg.ValidateDeep("")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "data_dir")
}

func TestValidateDeep_ConfigPathIsDirectory(t *testing.T) {
	cfg := DefaultConfig()
	cfg.DataDir = t.TempDir()

	err := cfg.ValidateDeep(t.TempDir())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "config_file")
}

func TestWarnings(t *testing.T) {
	cfg := DefaultConfig()
	cfg.DataDir = t.TempDir()

	warnings := cfg.Warnings()
	require.Len(t, warnings, 1)
	assert.Contains(t, warnings[0].Message, "base_url")

	cfg.Remote.BaseURL = "https://sync.example.com"
	warnings = cfg.Warnings()
	require.Len(t, warnings, 1)
	assert.Contains(t, warnings[0].Message, "token")

	cfg.Remote.Token = "abc"
	assert.Empty(t, cfg.Warnings())
}
