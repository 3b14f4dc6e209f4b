package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoadDefaultsWithEnvBaseURL(t *testing.T) {
	t.Setenv("AUTONEX_PLATFORM_BASE_URL", "http://platform.local:8000")

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Server.Address != ":8090" {
		t.Errorf("server address default: %q", cfg.Server.Address)
	}
	if cfg.Platform.BaseURL != "http://platform.local:8000" {
		t.Errorf("base URL: %q", cfg.Platform.BaseURL)
	}
	if cfg.Polling.DemoStatus != 3*time.Second {
		t.Errorf("demo status interval default: %v", cfg.Polling.DemoStatus)
	}
	if cfg.Demo.DetectionDwell != 10*time.Second {
		t.Errorf("detection dwell default: %v", cfg.Demo.DetectionDwell)
	}
	if cfg.Demo.AnomalyPollDeadline != 20*time.Second {
		t.Errorf("anomaly poll deadline default: %v", cfg.Demo.AnomalyPollDeadline)
	}
	if cfg.Cache.Enabled {
		t.Errorf("cache must be disabled by default")
	}
}

func TestLoadRequiresBaseURL(t *testing.T) {
	t.Setenv("AUTONEX_CONSOLE_CONFIG", "")
	t.Setenv("AUTONEX_PLATFORM_BASE_URL", "")
	if _, err := Load(""); err == nil {
		t.Fatalf("expected an error without platform.baseURL")
	}
}

func TestLoadYAMLFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "console.yaml")
	content := `
server:
  address: ":9000"
platform:
  baseURL: "http://backend:8000"
  ratePerSec: 50
polling:
  incidents: 2s
demo:
  detectionDwell: 3s
  anomalyLimit: 10
logging:
  level: debug
  json: true
`
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Server.Address != ":9000" {
		t.Errorf("server address: %q", cfg.Server.Address)
	}
	if cfg.Platform.RatePerSec != 50 {
		t.Errorf("rate: %v", cfg.Platform.RatePerSec)
	}
	if cfg.Polling.Incidents != 2*time.Second {
		t.Errorf("incidents interval: %v", cfg.Polling.Incidents)
	}
	if cfg.Demo.DetectionDwell != 3*time.Second || cfg.Demo.AnomalyLimit != 10 {
		t.Errorf("demo config: %+v", cfg.Demo)
	}
	if cfg.Logging.Level != "debug" || !cfg.Logging.JSON {
		t.Errorf("logging config: %+v", cfg.Logging)
	}
	// Unset sections keep their defaults.
	if cfg.Polling.Dashboard != 5*time.Second {
		t.Errorf("dashboard interval default lost: %v", cfg.Polling.Dashboard)
	}
}

func TestEnvOverridesWinOverFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "console.yaml")
	content := `
platform:
  baseURL: "http://from-file:8000"
logging:
  level: info
`
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}
	t.Setenv("AUTONEX_PLATFORM_BASE_URL", "http://from-env:8000")
	t.Setenv("AUTONEX_CONSOLE_LOG_LEVEL", "warn")
	t.Setenv("AUTONEX_CONSOLE_DETECTION_DWELL", "1s")
	t.Setenv("AUTONEX_CONSOLE_CACHE_ENABLED", "true")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Platform.BaseURL != "http://from-env:8000" {
		t.Errorf("env must win over file: %q", cfg.Platform.BaseURL)
	}
	if cfg.Logging.Level != "warn" {
		t.Errorf("log level: %q", cfg.Logging.Level)
	}
	if cfg.Demo.DetectionDwell != time.Second {
		t.Errorf("detection dwell: %v", cfg.Demo.DetectionDwell)
	}
	if !cfg.Cache.Enabled {
		t.Errorf("cache enabled override lost")
	}
}

func TestLoadMissingFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "absent.yaml")); err == nil {
		t.Fatalf("expected an error for a missing config file")
	}
}
