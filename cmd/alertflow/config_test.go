package main

import (
	"os"
	"path/filepath"
	"testing"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	if cfg.Database.Path != "data/alertflow.db" {
		t.Errorf("database path = %q", cfg.Database.Path)
	}
	if cfg.Engine.HistoryLimit != 100 || cfg.Engine.IngestRetries != 3 {
		t.Errorf("engine defaults = %+v", cfg.Engine)
	}
	if cfg.Sweep.DelayedInterval != "30s" || cfg.Sweep.EscalationInterval != "1m" {
		t.Errorf("sweep defaults = %+v", cfg.Sweep)
	}
	if cfg.Metrics.Address != ":9090" {
		t.Errorf("metrics address = %q", cfg.Metrics.Address)
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("default config must validate: %v", err)
	}
}

func TestLoadConfig(t *testing.T) {
	path := writeConfig(t, `
database:
  path: /tmp/alerts.db
rules:
  file: rules.yaml
  watch: true
engine:
  send_timeout: 5s
  flapping_count: 4
sweep:
  delayed_interval: 10s
redis:
  address: localhost:6379
`)

	cfg, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Database.Path != "/tmp/alerts.db" {
		t.Errorf("database path = %q", cfg.Database.Path)
	}
	if cfg.Engine.SendTimeout != "5s" || cfg.Engine.FlappingCount != 4 {
		t.Errorf("engine = %+v", cfg.Engine)
	}
	// Unset fields fall back to defaults.
	if cfg.Engine.HistoryLimit != 100 {
		t.Errorf("history_limit = %d, want default 100", cfg.Engine.HistoryLimit)
	}
	if cfg.Sweep.DelayedInterval != "10s" || cfg.Sweep.EscalationInterval != "1m" {
		t.Errorf("sweep = %+v", cfg.Sweep)
	}
	if cfg.Redis.Address != "localhost:6379" {
		t.Errorf("redis address = %q", cfg.Redis.Address)
	}
}

func TestLoadConfigRejectsInvalid(t *testing.T) {
	tests := []struct {
		name    string
		content string
	}{
		{
			name:    "bad duration",
			content: "engine:\n  send_timeout: soon\n",
		},
		{
			name:    "watch without file",
			content: "rules:\n  watch: true\n",
		},
		{
			name:    "not yaml",
			content: "{{{",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := LoadConfig(writeConfig(t, tt.content)); err == nil {
				t.Error("expected error, got nil")
			}
		})
	}
}

func TestDuration(t *testing.T) {
	if got := duration("90s"); got.Seconds() != 90 {
		t.Errorf("duration = %v, want 90s", got)
	}
}
