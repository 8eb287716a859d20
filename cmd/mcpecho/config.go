package main

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/joeshaw/envdecode"
)

// Config is the mcpecho configuration. Values come from defaults, then the
// TOML file, then the environment.
type Config struct {
	// Transport is one of "stdio", "websocket" or "broker".
	Transport string `toml:"transport" env:"MCPECHO_TRANSPORT"`
	// Addr is the websocket listen address.
	Addr string `toml:"addr" env:"MCPECHO_ADDR"`
	// Path is the websocket endpoint path.
	Path string `toml:"path" env:"MCPECHO_PATH"`
	// URL is the websocket endpoint dialed by the call command.
	URL string `toml:"url" env:"MCPECHO_URL"`
	// Session names the broker namespaces used by the broker transport.
	Session string `toml:"session" env:"MCPECHO_SESSION"`
	// MetricsAddr, when set, serves Prometheus metrics on /metrics.
	MetricsAddr string `toml:"metrics_addr" env:"MCPECHO_METRICS_ADDR"`
	// RequestTimeout bounds outbound requests.
	RequestTimeout time.Duration `toml:"request_timeout" env:"MCPECHO_REQUEST_TIMEOUT"`

	Log LogConfig `toml:"log"`
}

// LogConfig controls the slog output.
type LogConfig struct {
	Level string `toml:"level" env:"MCPECHO_LOG_LEVEL"`
	// File, when set, receives logs through a rotating writer instead of
	// stderr.
	File       string `toml:"file" env:"MCPECHO_LOG_FILE"`
	MaxSizeMB  int    `toml:"max_size_mb" env:"MCPECHO_LOG_MAX_SIZE_MB"`
	MaxBackups int    `toml:"max_backups" env:"MCPECHO_LOG_MAX_BACKUPS"`
	MaxAgeDays int    `toml:"max_age_days" env:"MCPECHO_LOG_MAX_AGE_DAYS"`
	Compress   bool   `toml:"compress" env:"MCPECHO_LOG_COMPRESS"`
}

// DefaultConfig returns the built-in configuration.
func DefaultConfig() Config {
	return Config{
		Transport:      "stdio",
		Addr:           "127.0.0.1:8080",
		Path:           "/mcp",
		URL:            "ws://127.0.0.1:8080/mcp",
		Session:        "mcpecho",
		RequestTimeout: 30 * time.Second,
		Log: LogConfig{
			Level:      "info",
			MaxSizeMB:  50,
			MaxBackups: 3,
			MaxAgeDays: 14,
		},
	}
}

// LoadConfig layers the file at path (optional) and the environment over the
// defaults.
func LoadConfig(path string) (Config, error) {
	cfg := DefaultConfig()

	if path != "" {
		if _, err := toml.DecodeFile(path, &cfg); err != nil {
			return Config{}, fmt.Errorf("load config %s: %w", path, err)
		}
	}

	if err := envdecode.Decode(&cfg); err != nil && !errors.Is(err, envdecode.ErrNoTargetFieldsAreSet) {
		return Config{}, fmt.Errorf("load config from environment: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate reports the first invalid setting.
func (c Config) Validate() error {
	switch c.Transport {
	case "stdio", "websocket", "broker":
	default:
		return fmt.Errorf("unknown transport %q", c.Transport)
	}
	if !strings.HasPrefix(c.Path, "/") {
		return fmt.Errorf("path %q must start with /", c.Path)
	}
	if c.RequestTimeout <= 0 {
		return fmt.Errorf("request_timeout must be positive")
	}
	if _, err := parseLevel(c.Log.Level); err != nil {
		return err
	}
	return nil
}
