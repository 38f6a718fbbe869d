package cmd

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"

	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"

	sim "github.com/konstrukt-sim/konstrukt/sim"
)

// Environment variables read after the .env file is loaded.
const (
	envWorkers = "KONSTRUKT_WORKERS"
	envLog     = "KONSTRUKT_LOG"
	envTraceDB = "KONSTRUKT_TRACE_DB"
)

// loadDotEnv loads path into the environment without overriding variables
// that are already set. A missing file is not an error.
func loadDotEnv(path string) {
	if path == "" {
		return
	}
	if err := godotenv.Load(path); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return
		}
		logrus.Warnf("Ignoring env file %s: %v", path, err)
	}
}

func envString(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

// applyEnv overrides cfg with KONSTRUKT_* environment variables.
func applyEnv(cfg *sim.EngineConfig) error {
	if v := os.Getenv(envWorkers); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("%s=%q is not an integer: %w", envWorkers, v, err)
		}
		cfg.WorkerThreads = n
	}
	cfg.TraceDB = envString(envTraceDB, cfg.TraceDB)
	return nil
}

// engineFlags holds run flags; set marks the ones given on the command line.
type engineFlags struct {
	configPath   string
	workers      int
	ticks        int
	tickDuration float64
	timeFactor   float64
	gravity      []float64
	solids       int
	seed         int64
	traceLevel   string
	traceDB      string
	set          func(name string) bool
}

// resolveEngineConfig merges, from lowest to highest precedence: defaults,
// the config file, the environment, and flags given on the command line.
func resolveEngineConfig(f engineFlags) (*sim.EngineConfig, error) {
	cfg := sim.DefaultEngineConfig()
	if f.configPath != "" {
		loaded, err := sim.LoadEngineConfig(f.configPath)
		if err != nil {
			return nil, err
		}
		cfg = *loaded
	}
	if err := applyEnv(&cfg); err != nil {
		return nil, err
	}

	set := f.set
	if set == nil {
		set = func(string) bool { return false }
	}
	if set("workers") {
		cfg.WorkerThreads = f.workers
	}
	if set("ticks") {
		cfg.Ticks = f.ticks
	}
	if set("tick-duration") {
		cfg.TickDuration = f.tickDuration
	}
	if set("time-factor") {
		cfg.TimeFactor = f.timeFactor
	}
	if set("gravity") {
		cfg.Gravity = f.gravity
	}
	if set("solids") {
		cfg.Solids = f.solids
	}
	if set("seed") {
		cfg.Seed = f.seed
	}
	if set("trace-level") {
		cfg.TraceLevel = f.traceLevel
	}
	if set("trace-db") {
		cfg.TraceDB = f.traceDB
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid engine config: %w", err)
	}
	return &cfg, nil
}
