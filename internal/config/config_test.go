package config_test

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/omochice/handstream/internal/config"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoad_Defaults(t *testing.T) {
	cfg, err := config.Load("")
	require.NoError(t, err)

	assert.Equal(t, 5*time.Second, cfg.Server.ReconnectDelay)
	assert.Equal(t, "rightHandData", cfg.Stream.Tag)
	assert.Equal(t, 60, cfg.Stream.Hz)
	assert.Equal(t, "info", cfg.Log.Level)
	assert.Empty(t, cfg.Metrics.Addr)
	// The server URL has no default.
	assert.Error(t, cfg.Validate())
}

func TestLoad_FromFile(t *testing.T) {
	path := writeConfig(t, `
server:
  url: ws://robot.local:9000
  reconnect_delay: 2s
stream:
  tag: relativeHandData
  hz: 30
metrics:
  addr: ":9090"
log:
  level: debug
`)

	cfg, err := config.Load(path)
	require.NoError(t, err)
	require.NoError(t, cfg.Validate())

	assert.Equal(t, "ws://robot.local:9000", cfg.Server.URL)
	assert.Equal(t, 2*time.Second, cfg.Server.ReconnectDelay)
	assert.Equal(t, "relativeHandData", cfg.Stream.Tag)
	assert.Equal(t, 30, cfg.Stream.Hz)
	assert.Equal(t, ":9090", cfg.Metrics.Addr)
	assert.Equal(t, "debug", cfg.Log.Level)
}

func TestLoad_PartialFileKeepsDefaults(t *testing.T) {
	path := writeConfig(t, `
server:
  url: ws://localhost:8080
`)

	cfg, err := config.Load(path)
	require.NoError(t, err)
	require.NoError(t, cfg.Validate())

	assert.Equal(t, "ws://localhost:8080", cfg.Server.URL)
	assert.Equal(t, 5*time.Second, cfg.Server.ReconnectDelay)
	assert.Equal(t, 60, cfg.Stream.Hz)
}

func TestLoad_EnvOverridesFile(t *testing.T) {
	path := writeConfig(t, `
server:
  url: ws://from-file:8080
stream:
  hz: 30
`)

	t.Setenv(config.EnvServerURL, "ws://from-env:8080")
	t.Setenv(config.EnvReconnectDelay, "250ms")
	t.Setenv(config.EnvStreamHz, "90")
	t.Setenv(config.EnvStreamTag, "relativeHandData")
	t.Setenv(config.EnvLogLevel, "warn")

	cfg, err := config.Load(path)
	require.NoError(t, err)

	assert.Equal(t, "ws://from-env:8080", cfg.Server.URL)
	assert.Equal(t, 250*time.Millisecond, cfg.Server.ReconnectDelay)
	assert.Equal(t, 90, cfg.Stream.Hz)
	assert.Equal(t, "relativeHandData", cfg.Stream.Tag)
	assert.Equal(t, "warn", cfg.Log.Level)
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := config.Load(filepath.Join(t.TempDir(), "nope.yaml"))
	assert.Error(t, err)
}

func TestLoad_MalformedFile(t *testing.T) {
	path := writeConfig(t, "server: [not a mapping")
	_, err := config.Load(path)
	assert.Error(t, err)
}

func TestConfig_Validate(t *testing.T) {
	valid := func() config.Config {
		cfg := config.Default()
		cfg.Server.URL = "ws://localhost:8080"
		return cfg
	}

	tests := []struct {
		name    string
		mutate  func(*config.Config)
		wantErr string
	}{
		{
			name:   "valid config",
			mutate: func(*config.Config) {},
		},
		{
			name:    "missing url",
			mutate:  func(c *config.Config) { c.Server.URL = "" },
			wantErr: "server url is required",
		},
		{
			name:    "non websocket scheme",
			mutate:  func(c *config.Config) { c.Server.URL = "http://localhost:8080" },
			wantErr: "scheme must be ws or wss",
		},
		{
			name:    "zero reconnect delay",
			mutate:  func(c *config.Config) { c.Server.ReconnectDelay = 0 },
			wantErr: "reconnect delay must be positive",
		},
		{
			name:    "zero hz",
			mutate:  func(c *config.Config) { c.Stream.Hz = 0 },
			wantErr: "hz must be positive",
		},
		{
			name:    "empty tag",
			mutate:  func(c *config.Config) { c.Stream.Tag = "" },
			wantErr: "tag must not be empty",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := valid()
			tt.mutate(&cfg)
			err := cfg.Validate()
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			assert.ErrorContains(t, err, tt.wantErr)
		})
	}
}
