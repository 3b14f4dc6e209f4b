package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config captures the settings required to boot the console engine.
type Config struct {
	Server   ServerConfig   `yaml:"server"`
	Platform PlatformConfig `yaml:"platform"`
	Polling  PollingConfig  `yaml:"polling"`
	Demo     DemoConfig     `yaml:"demo"`
	Logging  LoggingConfig  `yaml:"logging"`
	Cache    CacheConfig    `yaml:"cache"`
}

// ServerConfig controls the operator HTTP listener.
type ServerConfig struct {
	Address         string        `yaml:"address"`
	MetricsAddress  string        `yaml:"metricsAddress"`
	GracefulTimeout time.Duration `yaml:"gracefulTimeout"`
}

// PlatformConfig configures access to the AUTONEX platform backend API.
type PlatformConfig struct {
	BaseURL string        `yaml:"baseURL"`
	Timeout time.Duration `yaml:"timeout"`
	// RatePerSec bounds outbound requests across all pollers; zero disables
	// throttling.
	RatePerSec float64 `yaml:"ratePerSec"`
	RateBurst  int     `yaml:"rateBurst"`
}

// PollingConfig holds the refresh interval of each view's poller.
type PollingConfig struct {
	Dashboard  time.Duration `yaml:"dashboard"`
	Metrics    time.Duration `yaml:"metrics"`
	Anomalies  time.Duration `yaml:"anomalies"`
	Incidents  time.Duration `yaml:"incidents"`
	DemoStatus time.Duration `yaml:"demoStatus"`
}

// DemoConfig controls the failure-injection demo workflow timings.
type DemoConfig struct {
	// DetectionDwell is the pause after injection before the detection
	// trigger fires, giving the injected fault time to surface in metrics.
	DetectionDwell time.Duration `yaml:"detectionDwell"`
	// AnomalyPollInterval and AnomalyPollDeadline bound the poll-until-present
	// loop that waits for the detector to surface anomalies.
	AnomalyPollInterval time.Duration `yaml:"anomalyPollInterval"`
	AnomalyPollDeadline time.Duration `yaml:"anomalyPollDeadline"`
	// AnomalyLookback and AnomalyLimit shape the anomaly query issued by the
	// workflow.
	AnomalyLookback time.Duration `yaml:"anomalyLookback"`
	AnomalyLimit    int           `yaml:"anomalyLimit"`
}

// LoggingConfig controls structured logging.
type LoggingConfig struct {
	Level string `yaml:"level"`
	JSON  bool   `yaml:"json"`
}

// CacheConfig controls Valkey-backed caching of repeated backend lookups.
type CacheConfig struct {
	Enabled       bool          `yaml:"enabled"`
	Addr          string        `yaml:"addr"`
	Username      string        `yaml:"username"`
	Password      string        `yaml:"password"`
	DB            int           `yaml:"db"`
	DialTimeout   time.Duration `yaml:"dialTimeout"`
	ReadTimeout   time.Duration `yaml:"readTimeout"`
	WriteTimeout  time.Duration `yaml:"writeTimeout"`
	MaxRetries    int           `yaml:"maxRetries"`
	TLS           bool          `yaml:"tls"`
	ServicesTTL   time.Duration `yaml:"servicesTTL"`
	TimeseriesTTL time.Duration `yaml:"timeseriesTTL"`
}

// Load initialises Config from a YAML file and optional environment overrides.
func Load(path string) (*Config, error) {
	if path == "" {
		path = os.Getenv("AUTONEX_CONSOLE_CONFIG")
	}

	cfg := defaultConfig()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return nil, fmt.Errorf("config file %s not found: %w", path, err)
			}
			return nil, fmt.Errorf("read config: %w", err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return nil, fmt.Errorf("parse config: %w", err)
		}
	}

	applyEnvOverrides(&cfg)

	if cfg.Platform.BaseURL == "" {
		return nil, fmt.Errorf("platform.baseURL is required")
	}
	return &cfg, nil
}

func defaultConfig() Config {
	return Config{
		Server: ServerConfig{
			Address:         ":8090",
			MetricsAddress:  ":2112",
			GracefulTimeout: 10 * time.Second,
		},
		Platform: PlatformConfig{
			Timeout:    5 * time.Second,
			RatePerSec: 20,
			RateBurst:  10,
		},
		Polling: PollingConfig{
			Dashboard:  5 * time.Second,
			Metrics:    5 * time.Second,
			Anomalies:  10 * time.Second,
			Incidents:  5 * time.Second,
			DemoStatus: 3 * time.Second,
		},
		Demo: DemoConfig{
			DetectionDwell:      10 * time.Second,
			AnomalyPollInterval: 2 * time.Second,
			AnomalyPollDeadline: 20 * time.Second,
			AnomalyLookback:     time.Hour,
			AnomalyLimit:        5,
		},
		Logging: LoggingConfig{Level: "info", JSON: false},
		Cache: CacheConfig{
			Enabled:       false,
			DialTimeout:   2 * time.Second,
			ReadTimeout:   500 * time.Millisecond,
			WriteTimeout:  500 * time.Millisecond,
			MaxRetries:    2,
			ServicesTTL:   time.Minute,
			TimeseriesTTL: 5 * time.Second,
		},
	}
}

func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("AUTONEX_CONSOLE_SERVER_ADDRESS"); v != "" {
		cfg.Server.Address = v
	}
	if v := os.Getenv("AUTONEX_CONSOLE_METRICS_ADDRESS"); v != "" {
		cfg.Server.MetricsAddress = v
	}
	if v := os.Getenv("AUTONEX_PLATFORM_BASE_URL"); v != "" {
		cfg.Platform.BaseURL = v
	}
	if v := os.Getenv("AUTONEX_PLATFORM_TIMEOUT"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			cfg.Platform.Timeout = d
		}
	}
	if v := os.Getenv("AUTONEX_PLATFORM_RATE_PER_SEC"); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			cfg.Platform.RatePerSec = f
		}
	}
	if v := os.Getenv("AUTONEX_CONSOLE_LOG_LEVEL"); v != "" {
		cfg.Logging.Level = v
	}
	if v := os.Getenv("AUTONEX_CONSOLE_LOG_FORMAT"); v == "json" {
		cfg.Logging.JSON = true
	}
	if v := os.Getenv("AUTONEX_CONSOLE_DETECTION_DWELL"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			cfg.Demo.DetectionDwell = d
		}
	}
	if v := os.Getenv("AUTONEX_CONSOLE_CACHE_ENABLED"); v != "" {
		cfg.Cache.Enabled = strings.EqualFold(v, "true") || strings.EqualFold(v, "1")
	}
	if v := os.Getenv("AUTONEX_CONSOLE_CACHE_ADDR"); v != "" {
		cfg.Cache.Addr = v
	}
	if v := os.Getenv("AUTONEX_CONSOLE_CACHE_USERNAME"); v != "" {
		cfg.Cache.Username = v
	}
	if v := os.Getenv("AUTONEX_CONSOLE_CACHE_PASSWORD"); v != "" {
		cfg.Cache.Password = v
	}
	if v := os.Getenv("AUTONEX_CONSOLE_CACHE_DB"); v != "" {
		if db, err := strconv.Atoi(v); err == nil {
			cfg.Cache.DB = db
		}
	}
	if v := os.Getenv("AUTONEX_CONSOLE_CACHE_TLS"); strings.EqualFold(v, "true") || strings.EqualFold(v, "1") {
		cfg.Cache.TLS = true
	}
}
