package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/bgricker/cisim/internal/pipeline"
)

// FileName is the per-repository configuration file looked up in the working
// directory.
const FileName = ".cisim.yml"

// Config captures CLI options sourced from config files or flags.
type Config struct {
	Type     string `yaml:"type"`
	Pipeline string `yaml:"pipeline"`
	Job      string `yaml:"job"`
	Workdir  string `yaml:"workdir"`

	Format   string   `yaml:"format"`
	Verbose  bool     `yaml:"verbose"`
	DryRun   bool     `yaml:"dry_run"`
	Timeout  Duration `yaml:"timeout"`
	Shell    string   `yaml:"shell"`
	LogLevel string   `yaml:"log_level"`

	History HistoryConfig `yaml:"history"`
	Metrics MetricsConfig `yaml:"metrics"`
	Warn    WarnConfig    `yaml:"warn"`

	GuardPrivileged           bool     `yaml:"guard_privileged"`
	PrivilegedCommandPatterns []string `yaml:"privileged_command_patterns"`
}

// HistoryConfig controls the run history store.
type HistoryConfig struct {
	Enabled bool   `yaml:"enabled"`
	Path    string `yaml:"path"`
}

// MetricsConfig controls metrics export.
type MetricsConfig struct {
	Textfile string `yaml:"textfile"`
}

// WarnConfig controls additional warning behaviour.
type WarnConfig struct {
	VersionMismatch bool `yaml:"version_mismatch"`
}

const (
	// TypeAuto detects the dialect from the file location and shape.
	TypeAuto = "auto"

	// FormatPretty renders human readable output.
	FormatPretty = "pretty"
	// FormatJSON renders machine readable output.
	FormatJSON = "json"

	// DefaultTimeout bounds a single step.
	DefaultTimeout = 300 * time.Second
	// DefaultHistoryPath is used when history is enabled without a path.
	DefaultHistoryPath = ".cisim/history.db"
)

// Default returns the baseline configuration used when no flags or config file specify values.
func Default() Config {
	return Config{
		Type:     TypeAuto,
		Format:   FormatPretty,
		Timeout:  Duration(DefaultTimeout),
		LogLevel: "warn",
		Warn: WarnConfig{
			VersionMismatch: true,
		},
	}
}

// Load reads .cisim.yml from dir when present. Missing files are ignored.
// Keys present in the file override the defaults; absent keys keep them.
func Load(dir string) (Config, error) {
	cfg := Default()
	path := filepath.Join(dir, FileName)
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return cfg, nil
		}
		return cfg, fmt.Errorf("read config %q: %w", path, err)
	}

	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return Default(), fmt.Errorf("parse config %q: %w", path, err)
	}
	cfg.PrivilegedCommandPatterns = append([]string{}, cfg.PrivilegedCommandPatterns...)
	return cfg, nil
}

// Validate reports the first invalid setting.
func (c Config) Validate() error {
	switch c.Format {
	case FormatPretty, FormatJSON:
	default:
		return fmt.Errorf("unsupported format %q (want %s or %s)", c.Format, FormatPretty, FormatJSON)
	}
	if _, err := c.Dialect(); err != nil {
		return err
	}
	if c.Timeout.Duration() <= 0 {
		return fmt.Errorf("timeout must be positive, got %s", c.Timeout)
	}
	switch strings.ToLower(c.LogLevel) {
	case "", "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("unsupported log level %q", c.LogLevel)
	}
	return nil
}

// Dialect returns the configured dialect, or "" for auto-detection.
func (c Config) Dialect() (pipeline.Dialect, error) {
	if c.Type == "" || strings.EqualFold(c.Type, TypeAuto) {
		return "", nil
	}
	return pipeline.ParseDialect(c.Type)
}

// HistoryPath returns the history database path, or "" when history is off.
func (c Config) HistoryPath() string {
	if c.History.Path != "" {
		return c.History.Path
	}
	if c.History.Enabled {
		return DefaultHistoryPath
	}
	return ""
}

// ApplyFlags mutates cfg by applying values from CLI flags when they are present.
func ApplyFlags(cfg *Config, flags FlagValues) {
	if flags.Type.Set {
		cfg.Type = flags.Type.Value
	}
	if flags.Job.Set {
		cfg.Job = flags.Job.Value
	}
	if flags.Workdir.Set {
		cfg.Workdir = flags.Workdir.Value
	}
	if flags.Format.Set {
		cfg.Format = flags.Format.Value
	}
	if flags.Verbose.Set {
		cfg.Verbose = flags.Verbose.Value
	}
	if flags.DryRun.Set {
		cfg.DryRun = flags.DryRun.Value
	}
	if flags.Timeout.Set {
		cfg.Timeout = Duration(flags.Timeout.Value)
	}
	if flags.Shell.Set {
		cfg.Shell = flags.Shell.Value
	}
	if flags.LogLevel.Set {
		cfg.LogLevel = flags.LogLevel.Value
	}
	if flags.HistoryDB.Set {
		cfg.History.Path = flags.HistoryDB.Value
		cfg.History.Enabled = flags.HistoryDB.Value != ""
	}
	if flags.MetricsFile.Set {
		cfg.Metrics.Textfile = flags.MetricsFile.Value
	}
	if flags.GuardPrivileged.Set {
		cfg.GuardPrivileged = flags.GuardPrivileged.Value
	}
}

// FlagValues captures CLI flag state with knowledge of whether each flag was set explicitly.
type FlagValues struct {
	Type            StringFlag
	Job             StringFlag
	Workdir         StringFlag
	Format          StringFlag
	Verbose         BoolFlag
	DryRun          BoolFlag
	Timeout         DurationFlag
	Shell           StringFlag
	LogLevel        StringFlag
	HistoryDB       StringFlag
	MetricsFile     StringFlag
	GuardPrivileged BoolFlag
}

// StringFlag represents a string flag and whether it was set.
type StringFlag struct {
	Value string
	Set   bool
}

// BoolFlag represents a bool flag and whether it was set.
type BoolFlag struct {
	Value bool
	Set   bool
}

// DurationFlag represents a duration flag and whether it was set.
type DurationFlag struct {
	Value time.Duration
	Set   bool
}

// Duration is a time.Duration written as a Go duration string ("90s", "5m").
// Bare integers are read as seconds.
type Duration time.Duration

// Duration returns the value as a time.Duration.
func (d Duration) Duration() time.Duration {
	return time.Duration(d)
}

func (d Duration) String() string {
	return time.Duration(d).String()
}

// UnmarshalYAML implements yaml.Unmarshaler.
func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	if value.Kind != yaml.ScalarNode {
		return fmt.Errorf("line %d: timeout must be a duration", value.Line)
	}
	raw := strings.TrimSpace(value.Value)
	if parsed, err := time.ParseDuration(raw); err == nil {
		*d = Duration(parsed)
		return nil
	}
	if seconds, err := strconv.Atoi(raw); err == nil {
		*d = Duration(time.Duration(seconds) * time.Second)
		return nil
	}
	return fmt.Errorf("line %d: invalid duration %q", value.Line, raw)
}

// MarshalYAML implements yaml.Marshaler.
func (d Duration) MarshalYAML() (interface{}, error) {
	return d.String(), nil
}
