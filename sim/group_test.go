package sim

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/konstrukt-sim/konstrukt/sim/job"
	"github.com/konstrukt-sim/konstrukt/sim/profiler"
)

// recordingSimulation records the calls it receives.
type recordingSimulation struct {
	mu        sync.Mutex
	begins    []float64
	completes int
}

func (r *recordingSimulation) BeginUpdate(_ *job.Manager, duration float64) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.begins = append(r.begins, duration)
}

func (r *recordingSimulation) CompleteUpdate(_ *job.Manager) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.completes++
}

func newTestManager(t *testing.T) *job.Manager {
	t.Helper()
	jm := job.NewManager(job.Config{WorkerThreads: 2})
	t.Cleanup(jm.Destroy)
	return jm
}

func tick(g *Group, jm *job.Manager, d float64) {
	g.BeginUpdate(jm, d)
	g.CompleteUpdate()
}

func TestGroup_UpdatesEverySimulation(t *testing.T) {
	// GIVEN a group with two simulations
	counters := profiler.NewRegistry()
	g := NewGroup(counters)
	defer g.Destroy()
	jm := newTestManager(t)
	a, b := &recordingSimulation{}, &recordingSimulation{}
	g.AddSimulation(a)
	g.AddSimulation(b)
	assert.Equal(t, int64(2), counters.Define("simulation count").Value())

	// WHEN ticking twice
	tick(g, jm, 0.5)
	tick(g, jm, 0.25)

	// THEN both saw both ticks with the unscaled duration
	for _, s := range []*recordingSimulation{a, b} {
		assert.Equal(t, []float64{0.5, 0.25}, s.begins)
		assert.Equal(t, 2, s.completes)
	}
	assert.InDelta(t, 0.75, g.TotalTime(), 1e-12)
}

func TestGroup_TimeFactor_ScalesDuration(t *testing.T) {
	g := NewGroup(nil)
	defer g.Destroy()
	jm := newTestManager(t)
	s := &recordingSimulation{}
	g.AddSimulation(s)

	g.SetTimeFactor(2)
	tick(g, jm, 0.5)

	assert.Equal(t, 2.0, g.TimeFactor())
	assert.Equal(t, []float64{1.0}, s.begins)
	assert.InDelta(t, 1.0, g.TotalTime(), 1e-12)
}

func TestGroup_ZeroTimeFactor_Pauses(t *testing.T) {
	// GIVEN a paused group
	g := NewGroup(nil)
	defer g.Destroy()
	jm := newTestManager(t)
	s := &recordingSimulation{}
	g.AddSimulation(s)
	g.SetTimeFactor(0)

	// WHEN ticking
	tick(g, jm, 0.5)

	// THEN no simulation was updated and no time passed
	assert.Empty(t, s.begins)
	assert.Zero(t, s.completes)
	assert.Zero(t, g.TotalTime())

	// AND resuming updates again
	g.SetTimeFactor(1)
	tick(g, jm, 0.5)
	assert.Equal(t, []float64{0.5}, s.begins)
	assert.Equal(t, 1, s.completes)
}

func TestGroup_RemoveSimulation(t *testing.T) {
	counters := profiler.NewRegistry()
	g := NewGroup(counters)
	defer g.Destroy()
	jm := newTestManager(t)
	a, b := &recordingSimulation{}, &recordingSimulation{}
	ida := g.AddSimulation(a)
	idb := g.AddSimulation(b)

	g.RemoveSimulation(ida)
	tick(g, jm, 0.1)

	assert.False(t, g.HasSimulation(ida))
	assert.True(t, g.HasSimulation(idb))
	assert.Equal(t, 1, g.Count())
	assert.Equal(t, int64(1), counters.Define("simulation count").Value())
	assert.Empty(t, a.begins)
	assert.Len(t, b.begins, 1)
}

func TestGroup_Destroy_SharedCounters_KeepOtherGroupsCount(t *testing.T) {
	// GIVEN two groups publishing into one registry
	counters := profiler.NewRegistry()
	a, b := NewGroup(counters), NewGroup(counters)
	defer b.Destroy()
	a.AddSimulation(&recordingSimulation{})
	b.AddSimulation(&recordingSimulation{})
	b.AddSimulation(&recordingSimulation{})

	// WHEN one of them is destroyed
	a.Destroy()

	// THEN the other group's simulations are still counted
	assert.Equal(t, int64(2), counters.Define("simulation count").Value())
}

func TestGroup_EditsDuringUpdate_AreFatal(t *testing.T) {
	g := NewGroup(nil)
	jm := newTestManager(t)
	id := g.AddSimulation(&recordingSimulation{})

	g.BeginUpdate(jm, 0.1)
	assert.Panics(t, func() { g.AddSimulation(&recordingSimulation{}) })
	assert.Panics(t, func() { g.RemoveSimulation(id) })
	assert.Panics(t, func() { g.SetTimeFactor(2) })
	assert.Panics(t, func() { g.BeginUpdate(jm, 0.1) })
	g.CompleteUpdate()

	assert.Panics(t, func() { g.CompleteUpdate() }, "complete without begin")
	assert.Panics(t, func() { g.SetTimeFactor(-1) })
	g.Destroy()
}

func TestGroup_DrivesJobSimulations(t *testing.T) {
	// GIVEN job simulations for three subsystems
	g := NewGroup(nil)
	defer g.Destroy()
	jm := newTestManager(t)
	var mu sync.Mutex
	seen := map[string]float64{}
	for _, name := range []string{"audio", "script", "render"} {
		g.AddSimulation(NewJobSimulation(name, func(d float64) {
			mu.Lock()
			defer mu.Unlock()
			seen[name] += d
		}))
	}

	// WHEN ticking three times
	for range 3 {
		tick(g, jm, 0.1)
	}

	// THEN every subsystem ran on the workers for each tick
	require.Len(t, seen, 3)
	for name, total := range seen {
		assert.InDelta(t, 0.3, total, 1e-12, name)
	}
}
