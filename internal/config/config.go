// Package config loads and validates service configuration via Viper.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/spf13/viper"

	"github.com/palbase/palbase-sync/internal/fetcher"
)

// Config captures all service configuration knobs loaded via Viper.
type Config struct {
	Server   ServerConfig   `mapstructure:"server"`
	Database DatabaseConfig `mapstructure:"database"`
	Sync     SyncConfig     `mapstructure:"sync"`
	Browser  BrowserConfig  `mapstructure:"browser"`
	Sources  SourcesConfig  `mapstructure:"sources"`
	Logging  LoggingConfig  `mapstructure:"logging"`
}

// ServerConfig controls the control-plane HTTP server.
type ServerConfig struct {
	Port int `mapstructure:"port"`
}

// DatabaseConfig controls access to Postgres.
type DatabaseConfig struct {
	DSN      string `mapstructure:"dsn"`
	MaxConns int    `mapstructure:"max_conns"`
	MinConns int    `mapstructure:"min_conns"`
}

// SyncConfig governs run scheduling and the write path.
type SyncConfig struct {
	Cron           string `mapstructure:"cron"`
	StalenessHours int    `mapstructure:"staleness_hours"`
	BatchSize      int    `mapstructure:"batch_size"`
}

// BrowserConfig configures the headless rendering subsystem.
type BrowserConfig struct {
	// RemoteURL points at a managed browser pool; empty means a local
	// Chrome process.
	RemoteURL      string  `mapstructure:"remote_url"`
	UserAgent      string  `mapstructure:"user_agent"`
	TimeoutSeconds int     `mapstructure:"timeout_seconds"`
	MaxConcurrency int     `mapstructure:"max_concurrency"`
	DomainQPS      float64 `mapstructure:"domain_qps"`
}

// SourcesConfig holds per-source credentials and politeness knobs.
type SourcesConfig struct {
	RescueGroupsAPIKey string `mapstructure:"rescuegroups_api_key"`
	RespectRobots      bool   `mapstructure:"respect_robots"`
	RateLimitMinMs     int    `mapstructure:"rate_limit_min_ms"`
	RateLimitMaxMs     int    `mapstructure:"rate_limit_max_ms"`
}

// LoggingConfig toggles zap development features.
type LoggingConfig struct {
	Development bool `mapstructure:"development"`
}

// Load builds a Config from disk/environment.
func Load(path string) (Config, error) {
	v := viper.New()
	v.SetEnvPrefix("PETSYNC")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}

	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", 8080)
	// empty defaults keep required keys visible to AutomaticEnv
	v.SetDefault("database.dsn", "")
	v.SetDefault("sources.rescuegroups_api_key", "")
	v.SetDefault("database.max_conns", 8)
	v.SetDefault("database.min_conns", 1)
	v.SetDefault("sync.cron", "0 3 * * *")
	v.SetDefault("sync.staleness_hours", 48)
	v.SetDefault("sync.batch_size", 100)
	v.SetDefault("browser.remote_url", "")
	v.SetDefault("browser.user_agent", fetcher.UserAgent)
	v.SetDefault("browser.timeout_seconds", 60)
	v.SetDefault("browser.max_concurrency", 2)
	v.SetDefault("browser.domain_qps", 1.0)
	v.SetDefault("sources.respect_robots", true)
	v.SetDefault("sources.rate_limit_min_ms", 1000)
	v.SetDefault("sources.rate_limit_max_ms", 3000)
	v.SetDefault("logging.development", true)
}

// Validate enforces required values. Missing required keys are reported
// together so an operator fixes the environment in one pass.
func (c Config) Validate() error {
	var missing []string
	if c.Database.DSN == "" {
		missing = append(missing, "database.dsn")
	}
	if c.Sources.RescueGroupsAPIKey == "" {
		missing = append(missing, "sources.rescuegroups_api_key")
	}
	if len(missing) > 0 {
		return fmt.Errorf("missing required configuration: %s", strings.Join(missing, ", "))
	}

	if c.Server.Port <= 0 {
		return fmt.Errorf("server.port must be > 0")
	}
	if c.Sync.StalenessHours <= 0 {
		return fmt.Errorf("sync.staleness_hours must be > 0")
	}
	if c.Sync.BatchSize <= 0 {
		return fmt.Errorf("sync.batch_size must be > 0")
	}
	if c.Browser.TimeoutSeconds <= 0 {
		return fmt.Errorf("browser.timeout_seconds must be > 0")
	}
	if c.Sources.RateLimitMinMs < 0 || c.Sources.RateLimitMaxMs < c.Sources.RateLimitMinMs {
		return fmt.Errorf("sources.rate_limit_min_ms/max_ms must satisfy 0 <= min <= max")
	}
	if _, err := cron.ParseStandard(c.Sync.Cron); err != nil {
		return fmt.Errorf("invalid sync.cron %q: %w", c.Sync.Cron, err)
	}
	return nil
}

// StalenessThreshold converts the configured hours into a duration.
func (c Config) StalenessThreshold() time.Duration {
	return time.Duration(c.Sync.StalenessHours) * time.Hour
}

// BrowserTimeout converts the page timeout into a duration.
func (c Config) BrowserTimeout() time.Duration {
	return time.Duration(c.Browser.TimeoutSeconds) * time.Second
}

// MinDelay is the politeness floor between page requests.
func (c Config) MinDelay() time.Duration {
	return time.Duration(c.Sources.RateLimitMinMs) * time.Millisecond
}

// MaxDelay is the politeness ceiling between page requests.
func (c Config) MaxDelay() time.Duration {
	return time.Duration(c.Sources.RateLimitMaxMs) * time.Millisecond
}
