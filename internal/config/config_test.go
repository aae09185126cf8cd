package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestLoadWithFileOverrides(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	configYAML := `
server:
  port: 9090
database:
  dsn: postgres://pal:pw@localhost:5432/palbase
sync:
  cron: "30 2 * * *"
  staleness_hours: 72
  batch_size: 50
browser:
  remote_url: ws://browserless:3000
  timeout_seconds: 45
sources:
  rescuegroups_api_key: test-key
  respect_robots: false
  rate_limit_min_ms: 500
  rate_limit_max_ms: 1500
logging:
  development: false
`
	if err := os.WriteFile(path, []byte(configYAML), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load config: %v", err)
	}
	if cfg.Server.Port != 9090 {
		t.Fatalf("port = %d, want 9090", cfg.Server.Port)
	}
	if cfg.Sync.Cron != "30 2 * * *" {
		t.Fatalf("cron = %q", cfg.Sync.Cron)
	}
	if cfg.StalenessThreshold() != 72*time.Hour {
		t.Fatalf("staleness = %v", cfg.StalenessThreshold())
	}
	if cfg.Browser.RemoteURL != "ws://browserless:3000" {
		t.Fatalf("remote_url = %q", cfg.Browser.RemoteURL)
	}
	if cfg.MinDelay() != 500*time.Millisecond || cfg.MaxDelay() != 1500*time.Millisecond {
		t.Fatalf("delays = %v/%v", cfg.MinDelay(), cfg.MaxDelay())
	}
	if cfg.Logging.Development {
		t.Fatal("expected production logging")
	}
}

func TestValidateEnumeratesMissingKeys(t *testing.T) {
	var cfg Config
	cfg.Server.Port = 8080
	cfg.Sync = SyncConfig{Cron: "0 3 * * *", StalenessHours: 48, BatchSize: 100}
	cfg.Browser.TimeoutSeconds = 60

	err := cfg.Validate()
	if err == nil {
		t.Fatal("expected validation error")
	}
	msg := err.Error()
	if !strings.Contains(msg, "database.dsn") || !strings.Contains(msg, "sources.rescuegroups_api_key") {
		t.Fatalf("error does not list every missing key: %v", err)
	}
}

func TestValidateRejectsBadCron(t *testing.T) {
	var cfg Config
	cfg.Server.Port = 8080
	cfg.Database.DSN = "postgres://x"
	cfg.Sources.RescueGroupsAPIKey = "k"
	cfg.Sync = SyncConfig{Cron: "every day at 3", StalenessHours: 48, BatchSize: 100}
	cfg.Browser.TimeoutSeconds = 60

	if err := cfg.Validate(); err == nil {
		t.Fatal("expected cron validation error")
	}
}

func TestDefaults(t *testing.T) {
	t.Setenv("PETSYNC_DATABASE_DSN", "postgres://pal:pw@localhost/palbase")
	t.Setenv("PETSYNC_SOURCES_RESCUEGROUPS_API_KEY", "env-key")

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("load config: %v", err)
	}
	if cfg.Sync.Cron != "0 3 * * *" {
		t.Fatalf("default cron = %q", cfg.Sync.Cron)
	}
	if cfg.Sync.StalenessHours != 48 || cfg.Sync.BatchSize != 100 {
		t.Fatalf("sync defaults = %+v", cfg.Sync)
	}
	if !cfg.Sources.RespectRobots {
		t.Fatal("robots should be respected by default")
	}
	if cfg.Sources.RescueGroupsAPIKey != "env-key" {
		t.Fatalf("api key = %q", cfg.Sources.RescueGroupsAPIKey)
	}
}
