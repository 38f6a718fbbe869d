// Package physics simulates rigid body movement and collisions.
//
// A World owns solids and the forces acting on them. Each tick the world is
// advanced by one job on the job manager (BeginUpdate / CompleteUpdate), so
// it can be registered in a sim.Group next to the other subsystems.
//
// The integrator steps at a fixed rate of SimulationFrequency. Time that
// doesn't fill a whole step is carried over to the next update; updates
// that would need more than MaxSubSteps steps drop the excess.
package physics

import (
	"github.com/sirupsen/logrus"
	"gonum.org/v1/gonum/spatial/r3"

	"github.com/konstrukt-sim/konstrukt/sim/job"
	"github.com/konstrukt-sim/konstrukt/sim/object"
	"github.com/konstrukt-sim/konstrukt/sim/profiler"
)

const (
	// SimulationFrequency is the number of integration steps per second.
	SimulationFrequency = 20
	// MaxFrameFrequency bounds the frame rate the world keeps up with.
	MaxFrameFrequency = 120
	// MaxSubSteps is the most steps one update may take.
	MaxSubSteps = MaxFrameFrequency / SimulationFrequency
	// StepDuration is the length of one integration step in seconds.
	StepDuration = 1.0 / SimulationFrequency
)

// Collision reports a contact between two solids. NormalOnB points from B
// towards A.
type Collision struct {
	A, B      SolidID
	PointOnA  r3.Vec
	PointOnB  r3.Vec
	NormalOnB r3.Vec
	Impulse   float64
}

// CollisionCallback receives collisions during CompleteUpdate.
type CollisionCallback func(w *World, c Collision)

// World simulates solid movement and collision.
type World struct {
	gravity     r3.Vec
	onCollision CollisionCallback

	solids *object.Table[solid]
	forces *object.Table[force]

	solidCount *profiler.Counter
	forceCount *profiler.Counter

	// Owned by the update job between BeginUpdate and CompleteUpdate.
	updating       bool
	updateJob      job.ID
	updateDuration float64
	accumulator    float64
	steps          int
	collisions     []Collision
}

// NewWorld creates an empty world without gravity.
func NewWorld(counters *profiler.Registry) *World {
	logrus.Debugf("physics world: step=%.3fs max_substeps=%d", StepDuration, MaxSubSteps)
	return &World{
		solids:     object.NewTable[solid](),
		forces:     object.NewTable[force](),
		solidCount: counters.Define("solid count"),
		forceCount: counters.Define("force count"),
	}
}

// Destroy removes all forces and solids and releases their shapes.
func (w *World) Destroy() {
	w.assertIdle("Destroy")
	if n := w.forces.Count(); n > 0 {
		logrus.Warnf("physics world destroyed with %d forces", n)
	}
	for w.forces.Count() > 0 {
		w.forces.Remove(w.forces.GetIDByIndex(w.forces.Count() - 1))
		w.forceCount.Decrease(1)
	}
	for w.solids.Count() > 0 {
		id := w.solids.GetIDByIndex(w.solids.Count() - 1)
		w.solids.Get(id).shape.Release()
		w.solids.Remove(id)
		w.solidCount.Decrease(1)
	}
	w.forces.Destroy()
	w.solids.Destroy()
}

// SetGravity sets the acceleration applied to solids affected by gravity.
func (w *World) SetGravity(g r3.Vec) {
	w.assertIdle("SetGravity")
	w.gravity = g
}

// Gravity returns the current gravity.
func (w *World) Gravity() r3.Vec { return w.gravity }

// SetCollisionCallback sets the function collisions are delivered to.
// Nil disables collision reporting.
func (w *World) SetCollisionCallback(fn CollisionCallback) {
	w.onCollision = fn
}

// Steps returns the number of integration steps taken so far.
func (w *World) Steps() int { return w.steps }

// BeginUpdate creates the job advancing the world by duration seconds. The
// job manager lock must be held.
func (w *World) BeginUpdate(jm *job.Manager, duration float64) {
	if w.updating {
		logrus.Panic("physics world: update already running")
	}
	w.updating = true
	w.updateDuration = duration
	w.updateJob = jm.CreateJob(job.JobConfig{
		Name:     "UpdatePhysicsWorld",
		Function: updatePhysicsWorld,
		Data:     w,
	})
}

// CompleteUpdate waits for the update job, publishes the new motion states
// and delivers the collisions found during the update.
func (w *World) CompleteUpdate(jm *job.Manager) {
	if !w.updating {
		logrus.Panic("physics world: no update running")
	}
	jm.WaitForJobs(w.updateJob)
	jm.RemoveJob(w.updateJob)
	w.updating = false

	for _, s := range w.solids.All() {
		s.published = s.body
	}

	collisions := w.collisions
	w.collisions = nil
	if w.onCollision == nil {
		return
	}
	for _, c := range collisions {
		// a callback may have released one of the solids
		if w.solids.Has(object.ID(c.A)) && w.solids.Has(object.ID(c.B)) {
			w.onCollision(w, c)
		}
	}
}

func updatePhysicsWorld(data any) {
	w := data.(*World)
	w.accumulator += w.updateDuration
	n := int(w.accumulator / StepDuration)
	w.accumulator -= float64(n) * StepDuration
	if n > MaxSubSteps {
		n = MaxSubSteps
	}
	for range n {
		w.step(StepDuration)
	}
}

func (w *World) assertIdle(op string) {
	if w.updating {
		logrus.Panicf("physics world: %s while an update is running", op)
	}
}
