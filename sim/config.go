package sim

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/konstrukt-sim/konstrukt/sim/trace"
)

// EngineConfig holds the settings of one engine run, loadable from a YAML file.
type EngineConfig struct {
	WorkerThreads int       `yaml:"worker_threads"` // job manager workers, at least 1
	Ticks         int       `yaml:"ticks"`          // number of ticks to run
	TickDuration  float64   `yaml:"tick_duration"`  // wall duration of one tick (seconds)
	TimeFactor    float64   `yaml:"time_factor"`    // simulation group time scale (0 = paused)
	Gravity       []float64 `yaml:"gravity"`        // physics gravity vector, 3 elements
	Solids        int       `yaml:"solids"`         // solids dropped into the physics world
	Seed          int64     `yaml:"seed"`           // RNG seed for solid placement and impulses
	TraceLevel    string    `yaml:"trace_level"`    // "none" or "jobs"
	TraceDB       string    `yaml:"trace_db"`       // SQLite trace store path ("" = don't persist)
}

// DefaultEngineConfig returns the configuration used when no file is given.
func DefaultEngineConfig() EngineConfig {
	return EngineConfig{
		WorkerThreads: 3,
		Ticks:         60,
		TickDuration:  1.0 / 60.0,
		TimeFactor:    1.0,
		Gravity:       []float64{0, 0, -9.81},
		Solids:        8,
		Seed:          42,
		TraceLevel:    string(trace.LevelNone),
	}
}

// LoadEngineConfig reads a YAML engine configuration. Fields absent from the
// file keep their default values; unknown fields are rejected.
func LoadEngineConfig(path string) (*EngineConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading engine config: %w", err)
	}
	cfg := DefaultEngineConfig()
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&cfg); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("parsing engine config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid engine config %s: %w", path, err)
	}
	return &cfg, nil
}

// Validate checks value ranges.
func (c *EngineConfig) Validate() error {
	// The tick loop waits on its jobs, so without a worker it never advances.
	if c.WorkerThreads < 1 {
		return fmt.Errorf("worker_threads must be at least 1, got %d", c.WorkerThreads)
	}
	if c.Ticks < 0 {
		return fmt.Errorf("ticks must be non-negative, got %d", c.Ticks)
	}
	if c.TickDuration <= 0 {
		return fmt.Errorf("tick_duration must be positive, got %f", c.TickDuration)
	}
	if c.TimeFactor < 0 {
		return fmt.Errorf("time_factor must be non-negative, got %f", c.TimeFactor)
	}
	if len(c.Gravity) != 3 {
		return fmt.Errorf("gravity must have 3 elements, got %d", len(c.Gravity))
	}
	if c.Solids < 0 {
		return fmt.Errorf("solids must be non-negative, got %d", c.Solids)
	}
	if !trace.IsValidLevel(c.TraceLevel) {
		return fmt.Errorf("unknown trace_level %q", c.TraceLevel)
	}
	return nil
}
