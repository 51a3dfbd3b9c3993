package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"github.com/bgricker/cisim/internal/pipeline"
)

func TestLoadMissingFileReturnsDefaults(t *testing.T) {
	cfg, err := Load(t.TempDir())
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if diff := cmp.Diff(Default(), cfg); diff != "" {
		t.Fatalf("unexpected config (-want +got):\n%s", diff)
	}
}

func TestLoadMergesOverDefaults(t *testing.T) {
	dir := t.TempDir()
	writeConfig(t, dir, `type: azure
format: json
timeout: 90s
history:
  enabled: true
warn:
  version_mismatch: false
privileged_command_patterns:
  - '^docker '
`)

	cfg, err := Load(dir)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Type != "azure" || cfg.Format != FormatJSON {
		t.Fatalf("unexpected type/format: %+v", cfg)
	}
	if cfg.Timeout.Duration() != 90*time.Second {
		t.Fatalf("expected 90s timeout, got %s", cfg.Timeout)
	}
	if cfg.Warn.VersionMismatch {
		t.Fatalf("expected version warnings to be disabled")
	}
	if cfg.LogLevel != "warn" {
		t.Fatalf("expected default log level to survive, got %q", cfg.LogLevel)
	}
	if cfg.HistoryPath() != DefaultHistoryPath {
		t.Fatalf("expected default history path, got %q", cfg.HistoryPath())
	}
	if len(cfg.PrivilegedCommandPatterns) != 1 {
		t.Fatalf("expected patterns, got %v", cfg.PrivilegedCommandPatterns)
	}
	d, err := cfg.Dialect()
	if err != nil || d != pipeline.DialectAzure {
		t.Fatalf("expected azure dialect, got %q (%v)", d, err)
	}
}

func TestLoadInvalidFile(t *testing.T) {
	dir := t.TempDir()
	writeConfig(t, dir, "timeout: soon\n")
	if _, err := Load(dir); err == nil {
		t.Fatalf("expected error for invalid timeout")
	}
}

func TestDurationSeconds(t *testing.T) {
	dir := t.TempDir()
	writeConfig(t, dir, "timeout: 45\n")
	cfg, err := Load(dir)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Timeout.Duration() != 45*time.Second {
		t.Fatalf("expected 45s, got %s", cfg.Timeout)
	}
}

func TestApplyFlags(t *testing.T) {
	cfg := Default()
	cfg.Format = FormatJSON
	cfg.Verbose = true

	ApplyFlags(&cfg, FlagValues{
		Type:      StringFlag{Value: "github", Set: true},
		Job:       StringFlag{Value: "build", Set: true},
		Verbose:   BoolFlag{Value: false, Set: true},
		Timeout:   DurationFlag{Value: time.Minute, Set: true},
		HistoryDB: StringFlag{Value: "runs.db", Set: true},
	})

	if cfg.Type != "github" || cfg.Job != "build" {
		t.Fatalf("unexpected flags applied: %+v", cfg)
	}
	if cfg.Format != FormatJSON {
		t.Fatalf("unset flag must not override config, got %q", cfg.Format)
	}
	if cfg.Verbose {
		t.Fatalf("explicit false flag must override config")
	}
	if cfg.Timeout.Duration() != time.Minute {
		t.Fatalf("expected 1m timeout, got %s", cfg.Timeout)
	}
	if cfg.HistoryPath() != "runs.db" {
		t.Fatalf("expected history path from flag, got %q", cfg.HistoryPath())
	}
}

func TestValidate(t *testing.T) {
	if err := Default().Validate(); err != nil {
		t.Fatalf("defaults must validate: %v", err)
	}

	cases := map[string]func(*Config){
		"format":    func(c *Config) { c.Format = "xml" },
		"type":      func(c *Config) { c.Type = "gitlab" },
		"timeout":   func(c *Config) { c.Timeout = 0 },
		"log level": func(c *Config) { c.LogLevel = "loud" },
	}
	for name, mutate := range cases {
		cfg := Default()
		mutate(&cfg)
		if err := cfg.Validate(); err == nil {
			t.Fatalf("%s: expected validation error", name)
		}
	}
}

func writeConfig(t *testing.T, dir, content string) {
	t.Helper()
	if err := os.WriteFile(filepath.Join(dir, FileName), []byte(content), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
}
