package sim

import (
	"hash/fnv"
	"math/rand"
)

// Subsystems drawing from an RNG.
const (
	// SubsystemScene places the initial solids of a run.
	SubsystemScene = "scene"
	// SubsystemImpulses kicks solids during a run.
	SubsystemImpulses = "impulses"
)

// RNG hands out one deterministic random source per subsystem, so adding
// draws in one subsystem doesn't shift the values another one sees.
//
// Each source is seeded with seed XOR fnv1a64(name). Not safe for
// concurrent use; jobs that need randomness take their own source before
// they are created.
type RNG struct {
	seed       int64
	subsystems map[string]*rand.Rand
}

// NewRNG creates an RNG for a run seed.
func NewRNG(seed int64) *RNG {
	return &RNG{seed: seed, subsystems: make(map[string]*rand.Rand)}
}

// For returns the source of the named subsystem, creating it on first use.
func (r *RNG) For(name string) *rand.Rand {
	if src, ok := r.subsystems[name]; ok {
		return src
	}
	src := rand.New(rand.NewSource(r.seed ^ fnv1a64(name)))
	r.subsystems[name] = src
	return src
}

// Seed returns the run seed.
func (r *RNG) Seed() int64 { return r.seed }

func fnv1a64(s string) int64 {
	h := fnv.New64a()
	h.Write([]byte(s))
	return int64(h.Sum64())
}
