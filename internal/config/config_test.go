package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

func TestLoad(t *testing.T) {
	path := writeConfig(t, `
dropbox:
  app_key: key
  app_secret: secret
sync:
  remote_folder: /blog
  local_base_path: /var/lib/blogdkr/sync
build:
  command: hugo --minify
  working_directory: /var/lib/blogdkr/sync
copy_rules:
  - source_pattern: /var/lib/blogdkr/sync/public/**
    destination: /srv/www/blog
    recursive: true
`)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "key", cfg.Dropbox.AppKey)
	assert.Equal(t, "/blog", cfg.Sync.RemoteFolder)
	assert.Equal(t, "hugo --minify", cfg.Build.Command)
	require.Len(t, cfg.CopyRules, 1)
	assert.True(t, cfg.CopyRules[0].Recursive)

	// Defaults survive partial configs.
	assert.Equal(t, "0.0.0.0:3000", cfg.Server.ListenAddr)
	assert.Equal(t, "/webhook", cfg.Server.WebhookPath)
	assert.Equal(t, "info", cfg.Log.Level)
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	assert.Error(t, err)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{
			name:   "valid defaults",
			mutate: func(*Config) {},
		},
		{
			name:    "missing base path",
			mutate:  func(c *Config) { c.Sync.LocalBasePath = "" },
			wantErr: "local_base_path",
		},
		{
			name:    "missing remote folder",
			mutate:  func(c *Config) { c.Sync.RemoteFolder = "" },
			wantErr: "remote_folder",
		},
		{
			name: "copy rule without destination",
			mutate: func(c *Config) {
				c.CopyRules = []CopyRule{{SourcePattern: "public/**"}}
			},
			wantErr: "destination",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(cfg)
			err := cfg.Validate()
			if tt.wantErr == "" {
				assert.NoError(t, err)
			} else {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.wantErr)
			}
		})
	}
}
