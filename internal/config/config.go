// Package config loads the blogdkr YAML configuration.
package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Config is the root configuration.
type Config struct {
	Dropbox   DropboxConfig `yaml:"dropbox"`
	Server    ServerConfig  `yaml:"server"`
	Sync      SyncConfig    `yaml:"sync"`
	Build     BuildConfig   `yaml:"build"`
	CopyRules []CopyRule    `yaml:"copy_rules"`
	Log       LogConfig     `yaml:"log"`
}

// DropboxConfig holds the OAuth app credentials and token storage settings.
type DropboxConfig struct {
	AppKey        string `yaml:"app_key"`
	AppSecret     string `yaml:"app_secret"`
	RedirectURI   string `yaml:"redirect_uri"`
	TokenFile     string `yaml:"token_file"`
	TokenPassword string `yaml:"token_password"`
}

// ServerConfig holds the public and admin listen addresses.
type ServerConfig struct {
	ListenAddr      string `yaml:"listen_addr"`
	AdminListenAddr string `yaml:"admin_listen_addr"`
	WebhookPath     string `yaml:"webhook_path"`
}

// SyncConfig holds the remote folder and local mirror settings.
type SyncConfig struct {
	RemoteFolder  string `yaml:"remote_folder"`
	LocalBasePath string `yaml:"local_base_path"`
}

// BuildConfig holds the build command run after each reconciliation.
type BuildConfig struct {
	Command          string `yaml:"command"`
	WorkingDirectory string `yaml:"working_directory"`
}

// CopyRule copies glob matches into a destination directory after a
// successful build. Matched directories are descended into only when
// Recursive is set.
type CopyRule struct {
	SourcePattern string `yaml:"source_pattern"`
	Destination   string `yaml:"destination"`
	Recursive     bool   `yaml:"recursive"`
}

// LogConfig holds logger settings.
type LogConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// Default returns a config with usable defaults for everything that has
// one. Credentials and paths must still come from the config file.
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			ListenAddr:      "0.0.0.0:3000",
			AdminListenAddr: "127.0.0.1:3001",
			WebhookPath:     "/webhook",
		},
		Sync: SyncConfig{
			RemoteFolder:  "/",
			LocalBasePath: "./sync",
		},
		Dropbox: DropboxConfig{
			TokenFile: ".blogdkr_tokens",
		},
		Log: LogConfig{
			Level:  "info",
			Format: "json",
		},
	}
}

// Load reads and validates a config file, applying defaults for anything
// left unset.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}

	cfg := Default()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks the fields the sync core cannot run without.
func (c *Config) Validate() error {
	if c.Sync.LocalBasePath == "" {
		return fmt.Errorf("sync.local_base_path is required")
	}
	if c.Sync.RemoteFolder == "" {
		return fmt.Errorf("sync.remote_folder is required")
	}
	for i, rule := range c.CopyRules {
		if rule.SourcePattern == "" {
			return fmt.Errorf("copy_rules[%d].source_pattern is required", i)
		}
		if rule.Destination == "" {
			return fmt.Errorf("copy_rules[%d].destination is required", i)
		}
	}
	return nil
}
