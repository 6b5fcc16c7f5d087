// Package config loads streamer configuration from an optional YAML
// file with environment variable overrides. The server URL always comes
// from configuration, never from code.
package config

import (
	"fmt"
	"net/url"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

// Environment variables overriding file values.
const (
	EnvServerURL      = "HANDSTREAM_SERVER_URL"
	EnvReconnectDelay = "HANDSTREAM_RECONNECT_DELAY"
	EnvStreamTag      = "HANDSTREAM_STREAM_TAG"
	EnvStreamHz       = "HANDSTREAM_STREAM_HZ"
	EnvMetricsAddr    = "HANDSTREAM_METRICS_ADDR"
	EnvLogLevel       = "HANDSTREAM_LOG_LEVEL"
)

// Config is the full application configuration.
type Config struct {
	Server  ServerConfig  `yaml:"server"`
	Stream  StreamConfig  `yaml:"stream"`
	Metrics MetricsConfig `yaml:"metrics"`
	Log     LogConfig     `yaml:"log"`
}

// ServerConfig addresses the robot-control server.
type ServerConfig struct {
	URL            string        `yaml:"url"`
	ReconnectDelay time.Duration `yaml:"reconnect_delay"`
}

// StreamConfig sets the frame tag and tick rate.
type StreamConfig struct {
	Tag string `yaml:"tag"`
	Hz  int    `yaml:"hz"`
}

// MetricsConfig controls the metrics endpoint. An empty address
// disables it.
type MetricsConfig struct {
	Addr string `yaml:"addr"`
}

// LogConfig sets the log level.
type LogConfig struct {
	Level string `yaml:"level"`
}

// Default returns the configuration used when no file or environment
// override is present. The server URL has no default and must be
// supplied.
func Default() Config {
	return Config{
		Server: ServerConfig{
			ReconnectDelay: 5 * time.Second,
		},
		Stream: StreamConfig{
			Tag: "rightHandData",
			Hz:  60,
		},
		Log: LogConfig{
			Level: "info",
		},
	}
}

// Load builds the configuration from defaults, then the YAML file at
// path when non-empty, then environment overrides. Callers apply any
// flag overrides of their own and then call Validate.
func Load(path string) (Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return Config{}, fmt.Errorf("failed to read config file: %w", err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return Config{}, fmt.Errorf("failed to parse config file: %w", err)
		}
	}

	applyEnvOverrides(&cfg)
	return cfg, nil
}

// Validate checks that the configuration is usable.
func (c Config) Validate() error {
	if c.Server.URL == "" {
		return fmt.Errorf("server url is required (set server.url or %s)", EnvServerURL)
	}
	u, err := url.Parse(c.Server.URL)
	if err != nil {
		return fmt.Errorf("invalid server url: %w", err)
	}
	if u.Scheme != "ws" && u.Scheme != "wss" {
		return fmt.Errorf("server url scheme must be ws or wss, got %q", u.Scheme)
	}
	if c.Server.ReconnectDelay <= 0 {
		return fmt.Errorf("reconnect delay must be positive, got %s", c.Server.ReconnectDelay)
	}
	if c.Stream.Hz <= 0 {
		return fmt.Errorf("stream hz must be positive, got %d", c.Stream.Hz)
	}
	if c.Stream.Tag == "" {
		return fmt.Errorf("stream tag must not be empty")
	}
	return nil
}

func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv(EnvServerURL); v != "" {
		cfg.Server.URL = v
	}
	if v := os.Getenv(EnvReconnectDelay); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			cfg.Server.ReconnectDelay = d
		}
	}
	if v := os.Getenv(EnvStreamTag); v != "" {
		cfg.Stream.Tag = v
	}
	if v := os.Getenv(EnvStreamHz); v != "" {
		if hz, err := strconv.Atoi(v); err == nil {
			cfg.Stream.Hz = hz
		}
	}
	if v := os.Getenv(EnvMetricsAddr); v != "" {
		cfg.Metrics.Addr = v
	}
	if v := os.Getenv(EnvLogLevel); v != "" {
		cfg.Log.Level = v
	}
}
