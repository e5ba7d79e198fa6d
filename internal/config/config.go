package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/loykin/solo/internal/detector"
	"github.com/loykin/solo/internal/logger"
	"github.com/spf13/viper"
)

// EnvPrefix is prepended to every environment override, e.g.
// SOLO_TERMINATION_GRACE=10s or SOLO_LOG_LEVEL=debug.
const EnvPrefix = "SOLO"

const (
	DefaultProduct  = "solo"
	DefaultMarker   = ".solo.pid"
	DefaultGrace    = 5 * time.Second
	DefaultKillWait = 3 * time.Second
	DefaultListen   = "127.0.0.1:7860"
	DefaultAppName  = "playground"
)

// Config represents the top-level TOML structure.
type Config struct {
	Product     string            `toml:"product" mapstructure:"product"`
	Marker      MarkerConfig      `toml:"marker" mapstructure:"marker"`
	Identity    IdentityConfig    `toml:"identity" mapstructure:"identity"`
	Termination TerminationConfig `toml:"termination" mapstructure:"termination"`
	Log         LogConfig         `toml:"log" mapstructure:"log"`
	History     HistoryConfig     `toml:"history" mapstructure:"history"`
	Metrics     MetricsConfig     `toml:"metrics" mapstructure:"metrics"`
	App         AppConfig         `toml:"app" mapstructure:"app"`

	// path of the file this config was read from; empty for defaults.
	source string
}

type MarkerConfig struct {
	Path string `toml:"path" mapstructure:"path"`
}

type IdentityConfig struct {
	// Patterns are command-line substrings that identify a prior instance.
	// When empty, the product and application names are used.
	Patterns         []string `toml:"patterns" mapstructure:"patterns"`
	RemoveMismatched bool     `toml:"remove_mismatched" mapstructure:"remove_mismatched"`
}

type TerminationConfig struct {
	Grace    time.Duration `toml:"grace" mapstructure:"grace"`
	KillWait time.Duration `toml:"kill_wait" mapstructure:"kill_wait"`
}

type LogConfig struct {
	Level      string `toml:"level" mapstructure:"level"`
	Color      bool   `toml:"color" mapstructure:"color"`
	File       string `toml:"file" mapstructure:"file"`
	MaxSizeMB  int    `toml:"max_size_mb" mapstructure:"max_size_mb"`
	MaxBackups int    `toml:"max_backups" mapstructure:"max_backups"`
	MaxAgeDays int    `toml:"max_age_days" mapstructure:"max_age_days"`
	Compress   bool   `toml:"compress" mapstructure:"compress"`
}

type HistoryConfig struct {
	DSN string `toml:"dsn" mapstructure:"dsn"`
}

type MetricsConfig struct {
	Enabled bool `toml:"enabled" mapstructure:"enabled"`
}

type AppConfig struct {
	Name   string `toml:"name" mapstructure:"name"`
	Listen string `toml:"listen" mapstructure:"listen"`
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("product", DefaultProduct)
	v.SetDefault("marker.path", DefaultMarker)
	v.SetDefault("identity.patterns", []string{})
	v.SetDefault("identity.remove_mismatched", false)
	v.SetDefault("termination.grace", DefaultGrace)
	v.SetDefault("termination.kill_wait", DefaultKillWait)
	v.SetDefault("log.level", "info")
	v.SetDefault("log.color", true)
	v.SetDefault("log.file", "")
	v.SetDefault("log.max_size_mb", logger.DefaultMaxSizeMB)
	v.SetDefault("log.max_backups", logger.DefaultMaxBackups)
	v.SetDefault("log.max_age_days", logger.DefaultMaxAgeDays)
	v.SetDefault("log.compress", false)
	v.SetDefault("history.dsn", "")
	v.SetDefault("metrics.enabled", false)
	v.SetDefault("app.name", DefaultAppName)
	v.SetDefault("app.listen", DefaultListen)
}

// Default returns the configuration used when no file is given.
// Environment overrides still apply.
func Default() (*Config, error) {
	return LoadConfig("")
}

// LoadConfig reads path (TOML) on top of the defaults and applies SOLO_*
// environment overrides. An empty path skips the file.
func LoadConfig(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v)
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		v.SetConfigType("toml")
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config %s: %w", path, err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to decode config: %w", err)
	}
	cfg.source = path
	cfg.Identity.Patterns = splitPatterns(cfg.Identity.Patterns)

	// a relative log file lives next to the config file, like other
	// file-relative settings; without a config file it is left as-is.
	if cfg.Log.File != "" && path != "" && !filepath.IsAbs(cfg.Log.File) {
		cfg.Log.File = filepath.Join(filepath.Dir(path), cfg.Log.File)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Source returns the path the config was loaded from, if any.
func (c *Config) Source() string { return c.source }

// Validate checks values that would make the launcher misbehave.
func (c *Config) Validate() error {
	var errs []error
	if strings.TrimSpace(c.Product) == "" {
		errs = append(errs, errors.New("product must not be empty"))
	}
	if c.Termination.Grace <= 0 {
		errs = append(errs, fmt.Errorf("termination.grace must be positive, got %s", c.Termination.Grace))
	}
	if c.Termination.KillWait <= 0 {
		errs = append(errs, fmt.Errorf("termination.kill_wait must be positive, got %s", c.Termination.KillWait))
	}
	if _, err := logger.ParseLevel(c.Log.Level); err != nil {
		errs = append(errs, err)
	}
	if strings.TrimSpace(c.App.Listen) == "" {
		errs = append(errs, errors.New("app.listen must not be empty"))
	}
	if len(errs) > 0 {
		return fmt.Errorf("invalid config: %w", errors.Join(errs...))
	}
	return nil
}

// LoggerConfig converts the [log] section.
func (c *Config) LoggerConfig() logger.Config {
	return logger.Config{
		Level:      c.Log.Level,
		Color:      c.Log.Color,
		File:       c.Log.File,
		MaxSizeMB:  c.Log.MaxSizeMB,
		MaxBackups: c.Log.MaxBackups,
		MaxAgeDays: c.Log.MaxAgeDays,
		Compress:   c.Log.Compress,
	}
}

// IdentityPatterns returns the configured patterns, falling back to the
// product and application names.
func (c *Config) IdentityPatterns() []string {
	if len(c.Identity.Patterns) > 0 {
		return c.Identity.Patterns
	}
	return splitPatterns([]string{c.Product, c.App.Name})
}

// Detectors builds the identity checks. The running executable is always
// included so a prior copy of the same binary is recognised.
func (c *Config) Detectors() []detector.Detector {
	dets := []detector.Detector{detector.CmdlineDetector{Patterns: c.IdentityPatterns()}}
	if exe, err := os.Executable(); err == nil {
		dets = append(dets, detector.ExecutableDetector{Path: exe})
	}
	return dets
}

// splitPatterns trims entries and expands comma-separated values, which is
// how a list arrives from SOLO_IDENTITY_PATTERNS.
func splitPatterns(in []string) []string {
	out := make([]string, 0, len(in))
	for _, p := range in {
		for _, part := range strings.Split(p, ",") {
			if part = strings.TrimSpace(part); part != "" {
				out = append(out, part)
			}
		}
	}
	return out
}
