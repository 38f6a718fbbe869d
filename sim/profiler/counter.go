// Package profiler collects diagnostic counters published by the engine
// subsystems (live jobs, live objects). Counters are informational only;
// nothing in the engine reads them back to make decisions.
package profiler

import (
	"sort"
	"sync"
	"sync/atomic"

	"github.com/sirupsen/logrus"
)

// Counter is a named integer gauge. It is safe for concurrent use.
type Counter struct {
	name  string
	value atomic.Int64
}

// Name returns the counter name.
func (c *Counter) Name() string { return c.name }

// Increase adds n to the counter.
func (c *Counter) Increase(n int64) { c.value.Add(n) }

// Decrease subtracts n from the counter.
func (c *Counter) Decrease(n int64) { c.value.Add(-n) }

// Set overwrites the counter value.
func (c *Counter) Set(n int64) { c.value.Store(n) }

// Value returns the current counter value.
func (c *Counter) Value() int64 { return c.value.Load() }

// Sample is a point-in-time counter reading.
type Sample struct {
	Name  string
	Value int64
}

// Registry owns the counters of one engine instance.
type Registry struct {
	mu       sync.Mutex
	counters map[string]*Counter
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{counters: make(map[string]*Counter)}
}

// Define returns the counter registered under name, creating it on first
// use. A nil registry hands out detached counters, so subsystems can be
// built without a collector.
func (r *Registry) Define(name string) *Counter {
	if r == nil {
		return &Counter{name: name}
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if c, ok := r.counters[name]; ok {
		return c
	}
	c := &Counter{name: name}
	r.counters[name] = c
	return c
}

// Snapshot returns all counter values sorted by name.
func (r *Registry) Snapshot() []Sample {
	if r == nil {
		return nil
	}
	r.mu.Lock()
	samples := make([]Sample, 0, len(r.counters))
	for name, c := range r.counters {
		samples = append(samples, Sample{Name: name, Value: c.Value()})
	}
	r.mu.Unlock()

	sort.Slice(samples, func(i, j int) bool { return samples[i].Name < samples[j].Name })
	return samples
}

// Log writes the current snapshot at debug level.
func (r *Registry) Log() {
	fields := logrus.Fields{}
	for _, s := range r.Snapshot() {
		fields[s.Name] = s.Value
	}
	logrus.WithFields(fields).Debug("profiler counters")
}
