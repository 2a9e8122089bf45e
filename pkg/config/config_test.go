package config

import (
	"context"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, path, body string) {
	t.Helper()
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
}

func TestDefaultConfigIsValid(t *testing.T) {
	cfg := DefaultConfig()
	require.NoError(t, cfg.Validate())
	assert.Equal(t, 4096, cfg.Server.MaxQueryLen)
	assert.Equal(t, 10, cfg.Server.MaxSuggestions)
	assert.Equal(t, 1000, cfg.Build.ProgressEvery)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
		err    error
	}{
		{"empty addr", func(c *Config) { c.Server.Addr = "" }, ErrInvalidAddr},
		{"zero query len", func(c *Config) { c.Server.MaxQueryLen = 0 }, ErrInvalidLimit},
		{"negative burst", func(c *Config) { c.Server.Burst = -1 }, ErrInvalidLimit},
		{"zero rate", func(c *Config) { c.Server.RequestsPerSecond = 0 }, ErrInvalidLimit},
		{"bad color", func(c *Config) { c.CLI.Color = "pink" }, ErrInvalidColor},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(cfg)
			assert.ErrorIs(t, cfg.Validate(), tt.err)
		})
	}
}

func TestInitConfigCreatesDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "config.toml")

	cfg, err := InitConfig(path)
	require.NoError(t, err)
	assert.Equal(t, DefaultConfig(), cfg)
	require.FileExists(t, path)

	loaded, err := LoadConfig(path)
	require.NoError(t, err)
	assert.Equal(t, DefaultConfig(), loaded)
}

func TestSaveLoadRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	cfg := DefaultConfig()
	cfg.Server.Addr = "0.0.0.0:9999"
	cfg.Server.ReadTimeout = Duration{3 * time.Second}
	cfg.CLI.Color = "never"
	require.NoError(t, SaveConfig(cfg, path))

	loaded, err := LoadConfig(path)
	require.NoError(t, err)
	assert.Equal(t, cfg, loaded)
}

func TestLoadConfigPartialRecovery(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	writeConfig(t, path, `
[server]
addr = "0.0.0.0:9000"
read_timeout = 5
max_query_len = 100

[cli]
color = "always"
`)

	cfg, err := LoadConfig(path)
	require.NoError(t, err)
	assert.Equal(t, "0.0.0.0:9000", cfg.Server.Addr)
	assert.Equal(t, 100, cfg.Server.MaxQueryLen)
	assert.Equal(t, DefaultConfig().Server.ReadTimeout, cfg.Server.ReadTimeout)
	assert.Equal(t, "always", cfg.CLI.Color)
}

func TestLoadConfigRejectsInvalidValues(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	writeConfig(t, path, "[server]\nmax_suggestions = 0\n")

	_, err := LoadConfig(path)
	assert.ErrorIs(t, err, ErrInvalidLimit)
}

func TestLoadConfigUnparsableFallsBackToDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	writeConfig(t, path, "[server\naddr = ")

	cfg, err := LoadConfig(path)
	require.NoError(t, err)
	assert.Equal(t, DefaultConfig(), cfg)
}

func TestLoadConfigWithPriorityCustomPath(t *testing.T) {
	path := filepath.Join(t.TempDir(), "custom.toml")
	writeConfig(t, path, "[build]\nprogress_every = 7\n")

	cfg, used, err := LoadConfigWithPriority(path)
	require.NoError(t, err)
	assert.Equal(t, path, used)
	assert.Equal(t, 7, cfg.Build.ProgressEvery)
}

func TestWatchReloadsOnChange(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	require.NoError(t, SaveConfig(DefaultConfig(), path))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var latest atomic.Pointer[Config]
	done := make(chan error, 1)
	go func() {
		done <- Watch(ctx, path, 20*time.Millisecond, func(c *Config) { latest.Store(c) })
	}()

	// invalid edits never reach the callback
	writeConfig(t, path, "[server]\nburst = -5\n")
	time.Sleep(100 * time.Millisecond)
	assert.Nil(t, latest.Load())

	require.Eventually(t, func() bool {
		writeConfig(t, path, "[server]\nmax_suggestions = 3\n")
		c := latest.Load()
		return c != nil && c.Server.MaxSuggestions == 3
	}, 5*time.Second, 100*time.Millisecond)

	cancel()
	require.NoError(t, <-done)
}
