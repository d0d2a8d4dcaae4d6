package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestDefault(t *testing.T) {
	cfg := Default()

	if cfg.Comms.ChannelCapacity != 100 {
		t.Errorf("expected channel capacity 100, got %d", cfg.Comms.ChannelCapacity)
	}
	if cfg.Comms.RequestTimeout != 30*time.Second {
		t.Errorf("expected request timeout 30s, got %s", cfg.Comms.RequestTimeout)
	}
	if cfg.Monitor.Stagnation != 0.1 || cfg.Monitor.MaxFailureRate != 0.2 {
		t.Error("monitor thresholds do not match detection defaults")
	}
	if !cfg.Checkpoints.Enabled || cfg.Checkpoints.Keep != 20 {
		t.Error("checkpoints must default to enabled, keep 20")
	}
	if cfg.Logging.Enabled {
		t.Error("debug logging must default to off")
	}
}

func TestLoadFromPath(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	content := `
comms:
  channel_capacity: 50
  request_timeout: 10s
monitor:
  max_failure_rate: 0.5
  report_interval: 5s
checkpoints:
  enabled: false
logging:
  enabled: true
  dir: /tmp/concord-logs
`
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	cfg, err := LoadFromPath(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}

	if cfg.Comms.ChannelCapacity != 50 {
		t.Errorf("expected capacity 50, got %d", cfg.Comms.ChannelCapacity)
	}
	if cfg.Comms.RequestTimeout != 10*time.Second {
		t.Errorf("expected timeout 10s, got %s", cfg.Comms.RequestTimeout)
	}
	if cfg.Monitor.MaxFailureRate != 0.5 {
		t.Errorf("expected failure rate 0.5, got %f", cfg.Monitor.MaxFailureRate)
	}
	if cfg.Monitor.ReportInterval != 5*time.Second {
		t.Errorf("expected report interval 5s, got %s", cfg.Monitor.ReportInterval)
	}
	if cfg.Checkpoints.Enabled {
		t.Error("checkpoints override not applied")
	}
	if !cfg.Logging.Enabled || cfg.Logging.Dir != "/tmp/concord-logs" {
		t.Error("logging override not applied")
	}

	// Untouched keys keep their defaults.
	if cfg.Monitor.Stagnation != 0.1 {
		t.Errorf("unset key must keep its default, got %f", cfg.Monitor.Stagnation)
	}
	if cfg.Checkpoints.Keep != 20 {
		t.Errorf("unset key must keep its default, got %d", cfg.Checkpoints.Keep)
	}
}

func TestLoadFromPathMissingFile(t *testing.T) {
	if _, err := LoadFromPath(filepath.Join(t.TempDir(), "absent.yaml")); err == nil {
		t.Error("expected error for missing config file")
	}
}

func TestEnvOverrides(t *testing.T) {
	t.Setenv("XDG_CONFIG_HOME", t.TempDir())
	t.Setenv("CONCORD_CHECKPOINT_DIR", "/data/checkpoints")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Checkpoints.Dir != "/data/checkpoints" {
		t.Errorf("env override not applied, got %q", cfg.Checkpoints.Dir)
	}
}

func TestSaveRoundTrip(t *testing.T) {
	t.Setenv("XDG_CONFIG_HOME", t.TempDir())

	cfg := Default()
	cfg.Comms.ChannelCapacity = 42
	cfg.Monitor.ReportInterval = 7 * time.Second
	if err := Save(cfg); err != nil {
		t.Fatalf("save: %v", err)
	}

	loaded, err := LoadFromPath(GetUserConfigPath())
	if err != nil {
		t.Fatalf("load saved config: %v", err)
	}
	if loaded.Comms.ChannelCapacity != 42 {
		t.Errorf("capacity not round-tripped, got %d", loaded.Comms.ChannelCapacity)
	}
	if loaded.Monitor.ReportInterval != 7*time.Second {
		t.Errorf("interval not round-tripped, got %s", loaded.Monitor.ReportInterval)
	}
}
