package sim

import (
	"github.com/sirupsen/logrus"

	"github.com/konstrukt-sim/konstrukt/sim/job"
	"github.com/konstrukt-sim/konstrukt/sim/object"
	"github.com/konstrukt-sim/konstrukt/sim/profiler"
)

// SimulationID identifies a simulation registered in a Group.
type SimulationID = object.ID

// Group updates a set of simulations with a shared, scalable clock.
type Group struct {
	timeFactor    float64
	totalTime     float64
	updateRunning bool // true between BeginUpdate and CompleteUpdate
	begun         bool // false when the running update was paused
	jobManager    *job.Manager

	simulations *object.Table[Simulation]
	count       *profiler.Counter
}

// NewGroup creates an empty group running at normal speed.
func NewGroup(counters *profiler.Registry) *Group {
	return &Group{
		timeFactor:  1.0,
		simulations: object.NewTable[Simulation](),
		count:       counters.Define("simulation count"),
	}
}

// Destroy drops all registered simulations. The simulations themselves are
// not destroyed; they are owned by the caller.
func (g *Group) Destroy() {
	g.assertIdle("Destroy")
	for g.simulations.Count() > 0 {
		g.simulations.Remove(g.simulations.GetIDByIndex(g.simulations.Count() - 1))
		g.count.Decrease(1)
	}
	g.simulations.Destroy()
}

// AddSimulation registers s and returns its id.
func (g *Group) AddSimulation(s Simulation) SimulationID {
	g.assertIdle("AddSimulation")
	if s == nil {
		logrus.Panic("simulation group: nil simulation")
	}
	id := g.simulations.Allocate()
	*g.simulations.Get(id) = s
	g.count.Increase(1)
	return id
}

// RemoveSimulation unregisters a simulation.
func (g *Group) RemoveSimulation(id SimulationID) {
	g.assertIdle("RemoveSimulation")
	g.simulations.Remove(id)
	g.count.Decrease(1)
}

// HasSimulation reports whether id is registered.
func (g *Group) HasSimulation(id SimulationID) bool {
	return g.simulations.Has(id)
}

// Count returns the number of registered simulations.
func (g *Group) Count() int {
	return g.simulations.Count()
}

// SetTimeFactor scales the duration passed to the simulations. Zero pauses
// the group.
func (g *Group) SetTimeFactor(factor float64) {
	g.assertIdle("SetTimeFactor")
	if factor < 0 {
		logrus.Panicf("simulation group: negative time factor %v", factor)
	}
	g.timeFactor = factor
}

// TimeFactor returns the current time factor.
func (g *Group) TimeFactor() float64 {
	return g.timeFactor
}

// TotalTime returns the simulated time accumulated so far.
func (g *Group) TotalTime() float64 {
	return g.totalTime
}

// BeginUpdate starts the update of every simulation with the scaled
// duration. The job manager lock must be held.
func (g *Group) BeginUpdate(jm *job.Manager, duration float64) {
	if g.updateRunning {
		logrus.Panic("simulation group: update already running")
	}
	g.updateRunning = true
	g.jobManager = jm

	if g.timeFactor == 0 {
		g.begun = false
		return
	}
	g.begun = true

	duration *= g.timeFactor
	g.totalTime += duration

	for i := range g.simulations.Count() {
		(*g.simulations.GetByIndex(i)).BeginUpdate(jm, duration)
	}
}

// CompleteUpdate waits for every simulation begun by BeginUpdate.
func (g *Group) CompleteUpdate() {
	if !g.updateRunning {
		logrus.Panic("simulation group: no update running")
	}

	if g.begun {
		for i := range g.simulations.Count() {
			(*g.simulations.GetByIndex(i)).CompleteUpdate(g.jobManager)
		}
	}

	g.updateRunning = false
	g.begun = false
	g.jobManager = nil
}

func (g *Group) assertIdle(op string) {
	if g.updateRunning {
		logrus.Panicf("simulation group: %s while an update is running", op)
	}
}
