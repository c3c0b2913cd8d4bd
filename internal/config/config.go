package config

import (
	"fmt"
	"os"
	"strconv"

	"gopkg.in/yaml.v3"

	"github.com/sydlexius/qrsift/internal/logging"
)

// Config holds all application configuration.
type Config struct {
	Scan    ScanConfig    `yaml:"scan"`
	Watch   WatchConfig   `yaml:"watch"`
	Logging LoggingConfig `yaml:"logging"`
}

// ScanConfig holds default scan behavior. CLI flags override these values.
type ScanConfig struct {
	Root               string `yaml:"root"`
	Recursive          bool   `yaml:"recursive"`
	DryRun             bool   `yaml:"dry_run"`
	PreserveTimestamps bool   `yaml:"preserve_timestamps"`
	SniffContent       bool   `yaml:"sniff_content"`
}

// WatchConfig holds watch-mode settings.
type WatchConfig struct {
	DebounceSeconds  int `yaml:"debounce_seconds"`
	RefreshMinutes   int `yaml:"refresh_minutes"`
	MinRescanSeconds int `yaml:"min_rescan_seconds"`
	PollSeconds      int `yaml:"poll_seconds"`
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	Level          string `yaml:"level"`
	Format         string `yaml:"format"`
	FilePath       string `yaml:"file_path"`
	FileMaxSizeMB  int    `yaml:"file_max_size_mb"`
	FileMaxFiles   int    `yaml:"file_max_files"`
	FileMaxAgeDays int    `yaml:"file_max_age_days"`
}

// Default returns a Config with sensible defaults.
func Default() *Config {
	return &Config{
		Scan: ScanConfig{
			Recursive:          true,
			DryRun:             false,
			PreserveTimestamps: true,
			SniffContent:       false,
		},
		Watch: WatchConfig{
			DebounceSeconds:  2,
			RefreshMinutes:   5,
			MinRescanSeconds: 10,
			PollSeconds:      30,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "text",
		},
	}
}

// Load reads config from a YAML file (if it exists) and overrides with
// environment variables. Environment variables take precedence.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		if err := cfg.loadFromFile(path); err != nil {
			return nil, fmt.Errorf("loading config file: %w", err)
		}
	}

	cfg.loadFromEnv()

	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	return cfg, nil
}

func (c *Config) loadFromFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return err
	}
	return yaml.Unmarshal(data, c)
}

func (c *Config) loadFromEnv() {
	if v := os.Getenv("QS_ROOT"); v != "" {
		c.Scan.Root = v
	}
	envBool("QS_RECURSIVE", &c.Scan.Recursive)
	envBool("QS_DRY_RUN", &c.Scan.DryRun)
	envBool("QS_PRESERVE_TIMESTAMPS", &c.Scan.PreserveTimestamps)
	envBool("QS_SNIFF", &c.Scan.SniffContent)
	if v := os.Getenv("QS_LOG_LEVEL"); v != "" {
		c.Logging.Level = v
	}
	if v := os.Getenv("QS_LOG_FORMAT"); v != "" {
		c.Logging.Format = v
	}
	if v := os.Getenv("QS_LOG_FILE"); v != "" {
		c.Logging.FilePath = v
	}
}

// envBool parses a boolean environment variable into dst. Unset or
// unparseable values leave dst unchanged.
func envBool(key string, dst *bool) {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			*dst = b
		}
	}
}

func (c *Config) validate() error {
	if !logging.ValidLevel(c.Logging.Level) {
		return fmt.Errorf("invalid log level: %q", c.Logging.Level)
	}
	if !logging.ValidFormat(c.Logging.Format) {
		return fmt.Errorf("invalid log format: %q", c.Logging.Format)
	}
	if c.Watch.DebounceSeconds < 0 {
		return fmt.Errorf("watch.debounce_seconds must not be negative")
	}
	if c.Watch.RefreshMinutes < 0 {
		return fmt.Errorf("watch.refresh_minutes must not be negative")
	}
	if c.Watch.MinRescanSeconds < 0 {
		return fmt.Errorf("watch.min_rescan_seconds must not be negative")
	}
	if c.Watch.PollSeconds < 0 {
		return fmt.Errorf("watch.poll_seconds must not be negative")
	}
	return nil
}
