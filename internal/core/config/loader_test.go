package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestLoadExpandsEnvAndAppliesDefaults(t *testing.T) {
	t.Setenv("TEST_DB_URL", "postgres://ops:secret@db:5432/dashboard")
	t.Setenv("TEST_VAPID_PRIV", "priv-key")

	path := writeConfig(t, `
server:
  port: 9090
services:
  - name: api
    url: http://api:3000/health
  - name: auth
    url: http://auth:3001/health
database:
  url: ${TEST_DB_URL}
push:
  vapid_public_key: pub-key
  vapid_private_key: ${TEST_VAPID_PRIV}
  subject: mailto:ops@example.com
`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.Server.Port != 9090 {
		t.Errorf("Expected port 9090, got %d", cfg.Server.Port)
	}
	if len(cfg.Services) != 2 || cfg.Services[1].Name != "auth" {
		t.Errorf("Unexpected services: %+v", cfg.Services)
	}
	if cfg.Database.URL != "postgres://ops:secret@db:5432/dashboard" {
		t.Errorf("Env expansion failed: %q", cfg.Database.URL)
	}
	if cfg.Push.VAPIDPrivateKey != "priv-key" {
		t.Errorf("Env expansion failed for push key: %q", cfg.Push.VAPIDPrivateKey)
	}

	// Unset sections fall back to defaults
	if cfg.Monitor.Interval != 10*time.Second {
		t.Errorf("Expected default interval, got %s", cfg.Monitor.Interval)
	}
	if cfg.Monitor.ProbeTimeout != 5*time.Second {
		t.Errorf("Expected default probe timeout, got %s", cfg.Monitor.ProbeTimeout)
	}
	if cfg.Backup.Schedule != "0 2 * * *" {
		t.Errorf("Expected default schedule, got %q", cfg.Backup.Schedule)
	}
	if cfg.Backup.Retention != 30*24*time.Hour {
		t.Errorf("Expected default retention, got %s", cfg.Backup.Retention)
	}
	if cfg.Backup.Port != 5432 {
		t.Errorf("Expected default pg port, got %d", cfg.Backup.Port)
	}
}

func TestLoadPushIntervalFollowsCycleInterval(t *testing.T) {
	path := writeConfig(t, `
monitor:
  interval: 30s
`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Monitor.PushInterval != 30*time.Second {
		t.Errorf("Expected push interval to follow cycle interval, got %s", cfg.Monitor.PushInterval)
	}
}

func TestLoadMissingFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "nope.yaml")); err == nil {
		t.Error("Expected error for missing config file")
	}
}

func TestLoadMalformedYAML(t *testing.T) {
	path := writeConfig(t, "server: [not a map")
	if _, err := Load(path); err == nil {
		t.Error("Expected error for malformed YAML")
	}
}
