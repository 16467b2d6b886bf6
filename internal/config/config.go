// Package config loads wonquotes configuration from a YAML file and
// WONQUOTES_* environment variables.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"
)

// Store backends, mirrored from the quotes package so config stays a leaf.
const (
	BackendFile   = "file"
	BackendPebble = "pebble"
)

// Config is the root configuration.
type Config struct {
	Store     StoreConfig     `koanf:"store"`
	Pricing   PricingConfig   `koanf:"pricing"`
	Changelog ChangelogConfig `koanf:"changelog"`
	HTTP      HTTPConfig      `koanf:"http"`
	Logging   LoggingConfig   `koanf:"logging"`
	Telemetry TelemetryConfig `koanf:"telemetry"`
}

// StoreConfig selects and tunes the record store.
type StoreConfig struct {
	Backend     string `koanf:"backend"`
	Path        string `koanf:"path"`
	MaxRecords  int    `koanf:"max_records"`
	DeferWrites bool   `koanf:"defer_writes"`
}

// PricingConfig points at the optional pricing-rules document.
type PricingConfig struct {
	RulesPath string `koanf:"rules_path"`
}

// ChangelogConfig controls the ingestion audit trail.
type ChangelogConfig struct {
	Enabled      bool   `koanf:"enabled"`
	Dir          string `koanf:"dir"`
	KafkaBrokers string `koanf:"kafka_brokers"`
	KafkaTopic   string `koanf:"kafka_topic"`
}

// HTTPConfig configures the operational listener started by serve.
type HTTPConfig struct {
	Enabled         bool     `koanf:"enabled"`
	Addr            string   `koanf:"addr"`
	ShutdownTimeout Duration `koanf:"shutdown_timeout"`
}

// LoggingConfig holds the logging knobs exposed through config.
type LoggingConfig struct {
	Level  string `koanf:"level"`
	Format string `koanf:"format"`
}

// TelemetryConfig is flat so every field is reachable from the environment.
type TelemetryConfig struct {
	Enabled        bool     `koanf:"enabled"`
	Endpoint       string   `koanf:"endpoint"`
	Protocol       string   `koanf:"protocol"`
	Insecure       bool     `koanf:"insecure"`
	TLSSkipVerify  bool     `koanf:"tls_skip_verify"`
	SamplingRate   float64  `koanf:"sampling_rate"`
	MetricsEnabled bool     `koanf:"metrics_enabled"`
	ExportInterval Duration `koanf:"export_interval"`
}

// Default returns the built-in configuration.
func Default() *Config {
	dataDir := DataDir()
	return &Config{
		Store: StoreConfig{
			Backend:    BackendFile,
			Path:       filepath.Join(dataDir, "won_quotes.json"),
			MaxRecords: 10000,
		},
		Changelog: ChangelogConfig{
			Dir:        dataDir,
			KafkaTopic: "wonquotes.changelog",
		},
		HTTP: HTTPConfig{
			Addr:            "127.0.0.1:9464",
			ShutdownTimeout: Duration(10 * time.Second),
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
		},
		Telemetry: TelemetryConfig{
			Endpoint:       "localhost:4317",
			Protocol:       "grpc",
			Insecure:       true,
			SamplingRate:   1.0,
			MetricsEnabled: true,
			ExportInterval: Duration(15 * time.Second),
		},
	}
}

// DataDir is where records and the changelog live by default:
// $XDG_DATA_HOME/wonquotes, else ~/.local/share/wonquotes.
func DataDir() string {
	if xdg := os.Getenv("XDG_DATA_HOME"); xdg != "" {
		return filepath.Join(xdg, "wonquotes")
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "wonquotes-data"
	}
	return filepath.Join(home, ".local", "share", "wonquotes")
}

// Validate checks the configuration for errors.
func (c *Config) Validate() error {
	var errs []error
	switch c.Store.Backend {
	case BackendFile, BackendPebble:
	default:
		errs = append(errs, fmt.Errorf("store.backend must be %q or %q, got %q", BackendFile, BackendPebble, c.Store.Backend))
	}
	if c.Store.Path == "" {
		errs = append(errs, errors.New("store.path is required"))
	}
	if c.Store.MaxRecords <= 0 {
		errs = append(errs, fmt.Errorf("store.max_records must be positive, got %d", c.Store.MaxRecords))
	}
	if c.Changelog.Enabled && c.Changelog.Dir == "" && c.Changelog.KafkaBrokers == "" {
		errs = append(errs, errors.New("changelog needs a dir or kafka_brokers when enabled"))
	}
	if c.Changelog.KafkaBrokers != "" && c.Changelog.KafkaTopic == "" {
		errs = append(errs, errors.New("changelog.kafka_topic is required with kafka_brokers"))
	}
	if c.HTTP.Enabled && c.HTTP.Addr == "" {
		errs = append(errs, errors.New("http.addr is required when http is enabled"))
	}
	if c.Telemetry.SamplingRate < 0 || c.Telemetry.SamplingRate > 1 {
		errs = append(errs, fmt.Errorf("telemetry.sampling_rate must be between 0 and 1, got %g", c.Telemetry.SamplingRate))
	}
	return errors.Join(errs...)
}
