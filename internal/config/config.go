// Package config carries the kernel core configuration: boot-time sizing,
// scheduler tunables, and the debug endpoint settings, loadable from JSON
// with hot reload of the tunable subset.
package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"

	semver "github.com/Masterminds/semver/v3"
)

// Version is the kernel core version checked against a configuration's
// Requires constraint.
const Version = "1.2.0"

// Configuration errors.
var (
	ErrInvalid      = errors.New("config: invalid value")
	ErrIncompatible = errors.New("config: version constraint not satisfied")
)

// Debug configures the diagnostic endpoints.
type Debug struct {
	// MetricsAddr serves the plain-text metrics exposition when non-empty.
	MetricsAddr string `json:"metricsAddr,omitempty"`

	// DebugAddr serves the JSON snapshot endpoints when non-empty.
	DebugAddr string `json:"debugAddr,omitempty"`

	// HTTP3 additionally serves the debug mux over HTTP/3 on DebugAddr.
	HTTP3 bool `json:"http3,omitempty"`
}

// Config is the kernel construction configuration.
type Config struct {
	// CPUs is the number of virtual CPUs.
	CPUs int `json:"cpus"`

	// PriorityLevels is the number of priority levels; valid priorities
	// are 0..PriorityLevels-1, lower value meaning higher priority.
	PriorityLevels int `json:"priorityLevels"`

	// TimeSliceTicks is the thread time slice in timer ticks. Hot
	// reloadable.
	TimeSliceTicks int `json:"timeSliceTicks"`

	// TickPeriodMs is the timer device period in milliseconds.
	TickPeriodMs int `json:"tickPeriodMs"`

	// MaxStackBytes bounds per-thread stack allocation.
	MaxStackBytes int `json:"maxStackBytes"`

	// MaxProcesses bounds the process table; zero means unbounded.
	MaxProcesses int `json:"maxProcesses"`

	// PinHostCPUs pins each virtual CPU loop to a host CPU.
	PinHostCPUs bool `json:"pinHostCPUs,omitempty"`

	// Requires is an optional semver constraint the kernel core version
	// must satisfy, e.g. ">= 1.1".
	Requires string `json:"requires,omitempty"`

	Debug Debug `json:"debug"`
}

// Default returns the host-simulation defaults.
func Default() Config {
	return Config{
		CPUs:           8,
		PriorityLevels: 64,
		TimeSliceTicks: 10,
		TickPeriodMs:   1,
		MaxStackBytes:  1 << 20,
		MaxProcesses:   1024,
	}
}

// Load reads and validates a JSON configuration file. Absent fields fall
// back to the defaults.
func Load(path string) (Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("config load: %w", err)
	}
	cfg := Default()
	if err := json.Unmarshal(data, &cfg); err != nil {
		return Config{}, fmt.Errorf("config parse %s: %w", path, err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate checks field ranges and the Requires constraint against the
// kernel core version.
func (c *Config) Validate() error {
	if c.CPUs <= 0 || c.CPUs > 64 {
		return fmt.Errorf("cpus %d out of range 1..64: %w", c.CPUs, ErrInvalid)
	}
	if c.PriorityLevels <= 0 || c.PriorityLevels > 256 {
		return fmt.Errorf("priorityLevels %d out of range 1..256: %w", c.PriorityLevels, ErrInvalid)
	}
	if c.TimeSliceTicks <= 0 {
		return fmt.Errorf("timeSliceTicks %d must be positive: %w", c.TimeSliceTicks, ErrInvalid)
	}
	if c.TickPeriodMs <= 0 {
		return fmt.Errorf("tickPeriodMs %d must be positive: %w", c.TickPeriodMs, ErrInvalid)
	}
	if c.MaxStackBytes <= 0 {
		return fmt.Errorf("maxStackBytes %d must be positive: %w", c.MaxStackBytes, ErrInvalid)
	}
	if c.MaxProcesses < 0 {
		return fmt.Errorf("maxProcesses %d must not be negative: %w", c.MaxProcesses, ErrInvalid)
	}
	if c.Requires != "" {
		constraint, err := semver.NewConstraint(c.Requires)
		if err != nil {
			return fmt.Errorf("requires %q: %w", c.Requires, ErrInvalid)
		}
		v := semver.MustParse(Version)
		if !constraint.Check(v) {
			return fmt.Errorf("requires %q, kernel core is %s: %w", c.Requires, Version, ErrIncompatible)
		}
	}
	return nil
}
