package config

import (
	"os"
	"path/filepath"

	"github.com/BurntSushi/toml"
)

// Config represents the global ~/.pairchat/config.toml.
type Config struct {
	DefaultSession string `toml:"default_session"`
	Remote         Remote `toml:"remote"`
	User           User   `toml:"user"`
}

// Remote configures the sync backend connection. An empty URL means the
// daemon runs against the in-process loopback server.
type Remote struct {
	URL                  string `toml:"url"`
	OpTimeoutSeconds     int    `toml:"op_timeout_seconds"`
	ReconnectBaseMillis  int    `toml:"reconnect_base_millis"`
	ReconnectMaxSeconds  int    `toml:"reconnect_max_seconds"`
	MaxReconnectAttempts int    `toml:"max_reconnect_attempts"`
}

// User identifies the local account.
type User struct {
	UID         string `toml:"uid"`
	Username    string `toml:"username"`
	DisplayName string `toml:"display_name"`
}

// Load reads config from the given path. Returns zero config and error if file missing.
func Load(path string) (*Config, error) {
	var cfg Config
	_, err := toml.DecodeFile(path, &cfg)
	if err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Save writes config to the given path, creating parent dirs as needed.
func Save(path string, cfg *Config) error {
	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return err
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0600)
	if err != nil {
		return err
	}
	encErr := toml.NewEncoder(f).Encode(cfg)
	if closeErr := f.Close(); closeErr != nil && encErr == nil {
		return closeErr
	}
	return encErr
}
