// Package config defines all configuration for the streaming cache
// client. Config is loaded from a YAML file (default:
// configs/config.yaml) with secrets overridable via BFX_* environment
// variables.
package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config is the top-level configuration. Maps directly to the YAML
// file structure.
type Config struct {
	Identity     IdentityConfig     `mapstructure:"identity"`
	Stream       StreamConfig       `mapstructure:"stream"`
	Resume       ResumeConfig       `mapstructure:"resume"`
	Cache        CacheConfig        `mapstructure:"cache"`
	Logging      LoggingConfig      `mapstructure:"logging"`
	Monitor      MonitorConfig      `mapstructure:"monitor"`
	Metrics      MetricsConfig      `mapstructure:"metrics"`
	Subscription SubscriptionConfig `mapstructure:"subscription"`
}

// SubscriptionConfig describes the market/order subscription the binary
// opens on startup. Every market-filter field is optional; an absent
// field places no restriction, same as types.MarketFilter itself.
type SubscriptionConfig struct {
	MarketIDs    []string `mapstructure:"market_ids"`
	EventTypeIDs []string `mapstructure:"event_type_ids"`
	CountryCodes []string `mapstructure:"country_codes"`
	Orders       bool     `mapstructure:"orders"`
}

// IdentityConfig holds the account credentials used for certificate
// login and application identification. Username and Password are
// always sourced from environment variables (never the YAML file) since
// they are long-lived secrets; the client certificate and key paths are
// read from the YAML file like the other fields.
type IdentityConfig struct {
	Username       string `mapstructure:"-"`
	Password       string `mapstructure:"-"`
	ApplicationKey string `mapstructure:"application_key"`
	ClientCertPath string `mapstructure:"client_cert_path"`
	ClientKeyPath  string `mapstructure:"client_key_path"`
	Jurisdiction   string `mapstructure:"jurisdiction"`
}

// StreamConfig tunes the long-lived connection to the streaming host.
type StreamConfig struct {
	Addr              string        `mapstructure:"addr"`
	ServerName        string        `mapstructure:"server_name"`
	HeartbeatInterval time.Duration `mapstructure:"heartbeat_interval"`
	DialTimeout       time.Duration `mapstructure:"dial_timeout"`
}

// ResumeConfig tunes reconnect backoff and churn detection.
type ResumeConfig struct {
	MinBackoff     time.Duration `mapstructure:"min_backoff"`
	MaxBackoff     time.Duration `mapstructure:"max_backoff"`
	ChurnWindow    time.Duration `mapstructure:"churn_window"`
	ChurnThreshold int           `mapstructure:"churn_threshold"`
}

// CacheConfig tunes the stream tracker's cache lifecycle. SweepInterval
// sets how often the stale-cache sweep runs. StaleThreshold is defaulted
// and validated here but is not passed to the tracker, which always uses
// its own tracker.StaleThreshold constant.
type CacheConfig struct {
	StaleThreshold time.Duration `mapstructure:"stale_threshold"`
	SweepInterval  time.Duration `mapstructure:"sweep_interval"`
}

// LoggingConfig controls log verbosity/format.
type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// MonitorConfig controls the optional debug WebSocket bridge.
type MonitorConfig struct {
	Enabled        bool     `mapstructure:"enabled"`
	Addr           string   `mapstructure:"addr"`
	AllowedOrigins []string `mapstructure:"allowed_origins"`
}

// MetricsConfig controls the Prometheus metrics endpoint.
type MetricsConfig struct {
	Enabled   bool   `mapstructure:"enabled"`
	Addr      string `mapstructure:"addr"`
	Namespace string `mapstructure:"namespace"`
}

// Load reads config from a YAML file with env var overrides.
// Secrets use env vars: BFX_USERNAME, BFX_PASSWORD, BFX_APPLICATION_KEY.
func Load(path string) (*Config, error) {
	v := viper.New()
	v.SetConfigFile(path)
	v.SetEnvPrefix("BFX")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	cfg.Identity.Username = os.Getenv("BFX_USERNAME")
	cfg.Identity.Password = os.Getenv("BFX_PASSWORD")
	if key := os.Getenv("BFX_APPLICATION_KEY"); key != "" {
		cfg.Identity.ApplicationKey = key
	}

	applyDefaults(&cfg)
	return &cfg, nil
}

// applyDefaults fills in the tuning constants spec.md documents as
// defaults rather than hard requirements, when the YAML file left them
// at their zero value.
func applyDefaults(cfg *Config) {
	if cfg.Resume.MinBackoff == 0 {
		cfg.Resume.MinBackoff = time.Second
	}
	if cfg.Resume.MaxBackoff == 0 {
		cfg.Resume.MaxBackoff = 30 * time.Second
	}
	if cfg.Resume.ChurnWindow == 0 {
		cfg.Resume.ChurnWindow = 5 * time.Minute
	}
	if cfg.Resume.ChurnThreshold == 0 {
		cfg.Resume.ChurnThreshold = 5
	}
	if cfg.Cache.StaleThreshold == 0 {
		cfg.Cache.StaleThreshold = 8 * time.Hour
	}
	if cfg.Cache.SweepInterval == 0 {
		cfg.Cache.SweepInterval = time.Hour
	}
}

// Validate checks all required fields and value ranges.
func (c *Config) Validate() error {
	if c.Identity.Username == "" {
		return fmt.Errorf("identity.username is required (set BFX_USERNAME)")
	}
	if c.Identity.Password == "" {
		return fmt.Errorf("identity.password is required (set BFX_PASSWORD)")
	}
	if c.Identity.ApplicationKey == "" {
		return fmt.Errorf("identity.application_key is required")
	}
	if c.Identity.ClientCertPath == "" || c.Identity.ClientKeyPath == "" {
		return fmt.Errorf("identity.client_cert_path and identity.client_key_path are required")
	}
	if c.Stream.Addr == "" {
		return fmt.Errorf("stream.addr is required")
	}
	if c.Resume.MinBackoff <= 0 || c.Resume.MaxBackoff <= 0 {
		return fmt.Errorf("resume.min_backoff and resume.max_backoff must be > 0")
	}
	if c.Resume.MinBackoff > c.Resume.MaxBackoff {
		return fmt.Errorf("resume.min_backoff must be <= resume.max_backoff")
	}
	if c.Resume.ChurnThreshold <= 0 {
		return fmt.Errorf("resume.churn_threshold must be > 0")
	}
	if c.Cache.StaleThreshold <= 0 {
		return fmt.Errorf("cache.stale_threshold must be > 0")
	}
	if c.Monitor.Enabled && c.Monitor.Addr == "" {
		return fmt.Errorf("monitor.addr is required when monitor.enabled is true")
	}
	if c.Metrics.Enabled && c.Metrics.Addr == "" {
		return fmt.Errorf("metrics.addr is required when metrics.enabled is true")
	}
	return nil
}
