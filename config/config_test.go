package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/Swind/go-thread-manager/core"
	"github.com/sirupsen/logrus"
)

func writeConfig(t *testing.T, name, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte(body), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func TestDefault(t *testing.T) {
	cfg := Default()

	if cfg.Manager.MaxFamilies != core.DefaultMaxFamilies {
		t.Errorf("MaxFamilies = %d, want %d", cfg.Manager.MaxFamilies, core.DefaultMaxFamilies)
	}
	if cfg.Manager.QueueOrder != "fifo" {
		t.Errorf("QueueOrder = %q, want fifo", cfg.Manager.QueueOrder)
	}
	if cfg.Metrics.PollInterval != time.Second {
		t.Errorf("PollInterval = %s, want 1s", cfg.Metrics.PollInterval)
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("default config invalid: %v", err)
	}
}

// TestLoad_FileAndEnv verifies file values and environment overrides
// Given: A yaml file and a THREADMANAGER_ environment override
// When: Load is called
// Then: File values apply, the environment wins where both are set
func TestLoad_FileAndEnv(t *testing.T) {
	path := writeConfig(t, "threadmanager.yaml", `
manager:
  max_families: 8
  queue_order: request_id
log:
  level: debug
  format: json
metrics:
  enabled: true
  poll_interval: 250ms
`)
	t.Setenv("THREADMANAGER_MANAGER_MAX_FAMILIES", "16")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if cfg.Manager.MaxFamilies != 16 {
		t.Errorf("MaxFamilies = %d, want env override 16", cfg.Manager.MaxFamilies)
	}
	if cfg.Manager.QueueOrder != "request_id" || cfg.Log.Level != "debug" || cfg.Log.Format != "json" {
		t.Errorf("file values not applied: %+v", cfg)
	}
	if !cfg.Metrics.Enabled || cfg.Metrics.PollInterval != 250*time.Millisecond {
		t.Errorf("metrics section = %+v", cfg.Metrics)
	}
	if cfg.Metrics.Namespace != "threadmanager" {
		t.Errorf("default namespace lost: %q", cfg.Metrics.Namespace)
	}
}

func TestLoad_NoFileUsesDefaults(t *testing.T) {
	t.Setenv("THREADMANAGER_LOG_LEVEL", "warn")

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.Log.Level != "warn" {
		t.Errorf("Log.Level = %q, want warn", cfg.Log.Level)
	}
	if cfg.Manager.MaxFamilies != core.DefaultMaxFamilies {
		t.Errorf("MaxFamilies = %d", cfg.Manager.MaxFamilies)
	}
}

func TestLoad_MissingExplicitFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "absent.yaml")); err == nil {
		t.Fatal("Load of a missing explicit file should fail")
	}
}

func TestValidate_Rejects(t *testing.T) {
	cases := map[string]func(*Config){
		"max families": func(c *Config) { c.Manager.MaxFamilies = 0 },
		"history":      func(c *Config) { c.Manager.HistoryCapacity = -1 },
		"queue order":  func(c *Config) { c.Manager.QueueOrder = "lifo" },
		"log level":    func(c *Config) { c.Log.Level = "loud" },
		"log format":   func(c *Config) { c.Log.Format = "xml" },
		"poll":         func(c *Config) { c.Metrics.Enabled = true; c.Metrics.PollInterval = 0 },
	}
	for name, mutate := range cases {
		cfg := Default()
		mutate(cfg)
		if err := cfg.Validate(); err == nil {
			t.Errorf("%s: Validate accepted an invalid value", name)
		}
	}
}

func TestLoad_InvalidFileValue(t *testing.T) {
	path := writeConfig(t, "bad.toml", "[manager]\nqueue_order = \"random\"\n")
	_, err := Load(path)
	if err == nil || !strings.Contains(err.Error(), "queue_order") {
		t.Fatalf("Load error = %v, want queue_order validation error", err)
	}
}

func TestConfig_ManagerConfig(t *testing.T) {
	cfg := Default()
	cfg.Manager.MaxFamilies = 3
	cfg.Manager.QueueOrder = "request_id"

	logger := core.NewNoOpLogger()
	mc, err := cfg.ManagerConfig(logger, nil)
	if err != nil {
		t.Fatalf("ManagerConfig failed: %v", err)
	}
	if mc.MaxFamilies != 3 || mc.QueueOrder != core.QueueOrderRequestID || mc.Logger != logger {
		t.Errorf("ManagerConfig = %+v", mc)
	}

	m := core.NewThreadManager(mc)
	defer m.Close()
	if got := m.ManagerStats().Capacity; got != 3 {
		t.Errorf("manager capacity = %d, want 3", got)
	}
}

func TestConfig_NewLogger(t *testing.T) {
	cfg := Default()
	cfg.Log.Level = "debug"
	cfg.Log.Format = "json"

	l, err := cfg.NewLogger()
	if err != nil {
		t.Fatalf("NewLogger failed: %v", err)
	}
	if l.GetLevel() != logrus.DebugLevel {
		t.Errorf("level = %v, want debug", l.GetLevel())
	}
	if _, ok := l.Formatter.(*logrus.JSONFormatter); !ok {
		t.Errorf("formatter = %T, want JSON", l.Formatter)
	}
}
