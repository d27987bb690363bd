package config

import (
	"os"
	"path/filepath"

	"github.com/BurntSushi/toml"
)

// Config represents the global ~/.lythe/config.toml.
type Config struct {
	DefaultSession string       `toml:"default_session"`
	Server         ServerConfig `toml:"server"`
	Resend         ResendConfig `toml:"resend"`
}

// ServerConfig holds the API endpoint and transport timeouts.
type ServerConfig struct {
	BaseURL               string `toml:"base_url"`
	ConnectTimeoutSeconds int    `toml:"connect_timeout_seconds"`
	ReadTimeoutSeconds    int    `toml:"read_timeout_seconds"`
	WriteTimeoutSeconds   int    `toml:"write_timeout_seconds"`
}

// ResendConfig tunes the pending-message resend loop.
type ResendConfig struct {
	IntervalSeconds int `toml:"interval_seconds"`
	MaxRetries      int `toml:"max_retries"`
}

// Default returns a config with the stock timeouts filled in.
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			ConnectTimeoutSeconds: 10,
			ReadTimeoutSeconds:    15,
			WriteTimeoutSeconds:   15,
		},
		Resend: ResendConfig{
			IntervalSeconds: 5,
			MaxRetries:      3,
		},
	}
}

// Load reads config from the given path. Missing or zero timeout fields are
// backfilled from Default.
func Load(path string) (*Config, error) {
	cfg := Default()
	_, err := toml.DecodeFile(path, cfg)
	if err != nil {
		return nil, err
	}
	applyDefaults(cfg)
	return cfg, nil
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

func applyDefaults(cfg *Config) {
	def := Default()
	if cfg.Server.ConnectTimeoutSeconds <= 0 {
		cfg.Server.ConnectTimeoutSeconds = def.Server.ConnectTimeoutSeconds
	}
	if cfg.Server.ReadTimeoutSeconds <= 0 {
		cfg.Server.ReadTimeoutSeconds = def.Server.ReadTimeoutSeconds
	}
	if cfg.Server.WriteTimeoutSeconds <= 0 {
		cfg.Server.WriteTimeoutSeconds = def.Server.WriteTimeoutSeconds
	}
	if cfg.Resend.IntervalSeconds <= 0 {
		cfg.Resend.IntervalSeconds = def.Resend.IntervalSeconds
	}
	if cfg.Resend.MaxRetries <= 0 {
		cfg.Resend.MaxRetries = def.Resend.MaxRetries
	}
}
