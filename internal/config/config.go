// Package config defines all configuration for the feed tools.
// Config is loaded from a YAML file (default: configs/config.yaml) with
// sensitive fields overridable via FEED_* environment variables.
package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config is the top-level configuration. Maps directly to the YAML file structure.
type Config struct {
	Venue      VenueConfig      `mapstructure:"venue"`
	Products   []string         `mapstructure:"products"`
	Recorder   RecorderConfig   `mapstructure:"recorder"`
	OrderEntry OrderEntryConfig `mapstructure:"order_entry"`
	Metrics    MetricsConfig    `mapstructure:"metrics"`
	Logging    LoggingConfig    `mapstructure:"logging"`
}

// VenueConfig holds the venue endpoints. RESTURL serves book snapshots
// during recovery; Sandbox swaps both endpoints for the venue's sandbox.
type VenueConfig struct {
	WSURL          string `mapstructure:"ws_url"`
	RESTURL        string `mapstructure:"rest_url"`
	SandboxWSURL   string `mapstructure:"sandbox_ws_url"`
	SandboxRESTURL string `mapstructure:"sandbox_rest_url"`
	Sandbox        bool   `mapstructure:"sandbox"`
}

// FeedWSURL returns the effective WebSocket endpoint.
func (v VenueConfig) FeedWSURL() string {
	if v.Sandbox && v.SandboxWSURL != "" {
		return v.SandboxWSURL
	}
	return v.WSURL
}

// FeedRESTURL returns the effective REST endpoint.
func (v VenueConfig) FeedRESTURL() string {
	if v.Sandbox && v.SandboxRESTURL != "" {
		return v.SandboxRESTURL
	}
	return v.RESTURL
}

// RecorderConfig controls the tick recorder.
type RecorderConfig struct {
	OutputDir string        `mapstructure:"output_dir"`
	Interval  time.Duration `mapstructure:"interval"`
	Depth     int           `mapstructure:"depth"`
	Format    string        `mapstructure:"format"` // "json" or "msgpack"
}

// OrderEntryConfig holds the private API credentials. Credentials come from
// FEED_API_KEY / FEED_API_SECRET / FEED_PASSPHRASE in any real deployment.
type OrderEntryConfig struct {
	Enabled    bool   `mapstructure:"enabled"`
	ApiKey     string `mapstructure:"api_key"`
	Secret     string `mapstructure:"secret"`
	Passphrase string `mapstructure:"passphrase"`
}

// MetricsConfig controls the Prometheus endpoint.
type MetricsConfig struct {
	Enabled bool `mapstructure:"enabled"`
	Port    int  `mapstructure:"port"`
}

type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// Load reads config from a YAML file with env var overrides.
func Load(path string) (*Config, error) {
	v := viper.New()
	v.SetConfigFile(path)
	v.SetEnvPrefix("FEED")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	// Override sensitive fields from env
	if key := os.Getenv("FEED_API_KEY"); key != "" {
		cfg.OrderEntry.ApiKey = key
	}
	if secret := os.Getenv("FEED_API_SECRET"); secret != "" {
		cfg.OrderEntry.Secret = secret
	}
	if pass := os.Getenv("FEED_PASSPHRASE"); pass != "" {
		cfg.OrderEntry.Passphrase = pass
	}
	if os.Getenv("FEED_SANDBOX") == "true" || os.Getenv("FEED_SANDBOX") == "1" {
		cfg.Venue.Sandbox = true
	}

	return &cfg, nil
}

// Validate checks required fields and value ranges.
func (c *Config) Validate() error {
	if c.Venue.FeedWSURL() == "" {
		return fmt.Errorf("venue.ws_url is required")
	}
	if c.Venue.FeedRESTURL() == "" {
		return fmt.Errorf("venue.rest_url is required")
	}
	if len(c.Products) == 0 {
		return fmt.Errorf("at least one product is required")
	}
	if c.Recorder.Interval < 0 {
		return fmt.Errorf("recorder.interval must be >= 0")
	}
	switch c.Recorder.Format {
	case "", "json", "msgpack":
	default:
		return fmt.Errorf("recorder.format must be json or msgpack")
	}
	if c.OrderEntry.Enabled {
		if c.OrderEntry.ApiKey == "" || c.OrderEntry.Secret == "" || c.OrderEntry.Passphrase == "" {
			return fmt.Errorf("order_entry requires api_key, secret and passphrase (set FEED_API_KEY etc.)")
		}
	}
	if c.Metrics.Enabled && c.Metrics.Port == 0 {
		return fmt.Errorf("metrics.port is required when metrics.enabled")
	}
	return nil
}
