package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
)

func TestDefaultValidates(t *testing.T) {
	cfg := Default()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("Default().Validate() = %v", err)
	}
}

func TestValidateRanges(t *testing.T) {
	cases := []struct {
		name   string
		mutate func(*Config)
	}{
		{"zero cpus", func(c *Config) { c.CPUs = 0 }},
		{"too many cpus", func(c *Config) { c.CPUs = 65 }},
		{"zero priorities", func(c *Config) { c.PriorityLevels = 0 }},
		{"too many priorities", func(c *Config) { c.PriorityLevels = 257 }},
		{"zero slice", func(c *Config) { c.TimeSliceTicks = 0 }},
		{"zero tick period", func(c *Config) { c.TickPeriodMs = 0 }},
		{"zero stack", func(c *Config) { c.MaxStackBytes = 0 }},
		{"negative procs", func(c *Config) { c.MaxProcesses = -1 }},
		{"garbage requires", func(c *Config) { c.Requires = "not-a-constraint" }},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			cfg := Default()
			tc.mutate(&cfg)
			if err := cfg.Validate(); !errors.Is(err, ErrInvalid) {
				t.Fatalf("Validate() = %v, want ErrInvalid", err)
			}
		})
	}
}

func TestRequiresVersionGate(t *testing.T) {
	cfg := Default()
	cfg.Requires = ">= 1.0, < 2.0"
	if err := cfg.Validate(); err != nil {
		t.Fatalf("satisfiable constraint rejected: %v", err)
	}

	cfg.Requires = ">= 2.0"
	if err := cfg.Validate(); !errors.Is(err, ErrIncompatible) {
		t.Fatalf("Validate() = %v, want ErrIncompatible", err)
	}
}

func TestLoadOverlaysDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "kernel.json")
	body := `{"cpus": 4, "timeSliceTicks": 20, "debug": {"metricsAddr": ":9180"}}`
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.CPUs != 4 {
		t.Fatalf("cpus = %d, want 4", cfg.CPUs)
	}
	if cfg.TimeSliceTicks != 20 {
		t.Fatalf("timeSliceTicks = %d, want 20", cfg.TimeSliceTicks)
	}
	// Absent fields keep their defaults.
	if cfg.PriorityLevels != Default().PriorityLevels {
		t.Fatalf("priorityLevels = %d, want default", cfg.PriorityLevels)
	}
	if cfg.Debug.MetricsAddr != ":9180" {
		t.Fatalf("metricsAddr = %q", cfg.Debug.MetricsAddr)
	}
}

func TestLoadRejectsInvalid(t *testing.T) {
	path := filepath.Join(t.TempDir(), "kernel.json")
	if err := os.WriteFile(path, []byte(`{"cpus": 0}`), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	if _, err := Load(path); !errors.Is(err, ErrInvalid) {
		t.Fatalf("Load = %v, want ErrInvalid", err)
	}
	if _, err := Load(filepath.Join(t.TempDir(), "missing.json")); err == nil {
		t.Fatal("Load of missing file succeeded")
	}
}
