package main

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestLoadConfig_Defaults(t *testing.T) {
	cfg, err := LoadConfig("")
	require.NoError(t, err)
	require.Equal(t, DefaultConfig(), cfg)
}

func TestLoadConfig_FileThenEnv(t *testing.T) {
	path := filepath.Join(t.TempDir(), "mcpecho.toml")
	require.NoError(t, os.WriteFile(path, []byte(`
transport = "websocket"
addr = "0.0.0.0:9000"
request_timeout = "5s"

[log]
level = "debug"
max_backups = 7
`), 0o600))

	t.Setenv("MCPECHO_ADDR", "127.0.0.1:9100")
	t.Setenv("MCPECHO_LOG_FILE", "/tmp/mcpecho.log")

	cfg, err := LoadConfig(path)
	require.NoError(t, err)
	require.Equal(t, "websocket", cfg.Transport)
	require.Equal(t, "127.0.0.1:9100", cfg.Addr)
	require.Equal(t, 5*time.Second, cfg.RequestTimeout)
	require.Equal(t, "debug", cfg.Log.Level)
	require.Equal(t, 7, cfg.Log.MaxBackups)
	require.Equal(t, "/tmp/mcpecho.log", cfg.Log.File)
	// Untouched keys keep their defaults.
	require.Equal(t, "/mcp", cfg.Path)
	require.Equal(t, 50, cfg.Log.MaxSizeMB)
}

func TestLoadConfig_Invalid(t *testing.T) {
	for name, body := range map[string]string{
		"transport": `transport = "carrier-pigeon"`,
		"path":      `path = "mcp"`,
		"level":     "[log]\nlevel = \"loud\"",
		"timeout":   `request_timeout = "-1s"`,
		"syntax":    `transport = `,
	} {
		t.Run(name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "bad.toml")
			require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
			_, err := LoadConfig(path)
			require.Error(t, err)
		})
	}
}

func TestLoadConfig_MissingFile(t *testing.T) {
	_, err := LoadConfig(filepath.Join(t.TempDir(), "missing.toml"))
	require.ErrorIs(t, err, os.ErrNotExist)
}

func TestNewLogger_File(t *testing.T) {
	path := filepath.Join(t.TempDir(), "logs", "mcpecho.log")
	log, closer, err := newLogger(LogConfig{Level: "info", File: path, MaxSizeMB: 1}, os.Stderr)
	require.NoError(t, err)

	log.Debug("hidden")
	log.Info("mcpecho.test", "k", "v")
	require.NoError(t, closer.Close())

	b, err := os.ReadFile(path)
	require.NoError(t, err)
	require.Contains(t, string(b), `"msg":"mcpecho.test"`)
	require.NotContains(t, string(b), "hidden")
}
