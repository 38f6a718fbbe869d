package physics

import (
	"github.com/sirupsen/logrus"
	"gonum.org/v1/gonum/spatial/r3"

	"github.com/konstrukt-sim/konstrukt/sim/object"
)

// ForceID identifies a force in its world.
type ForceID object.ID

// A force acts on its solid in every integration step until destroyed.
type force struct {
	solid            SolidID
	value            r3.Vec // per second
	relativePosition r3.Vec
	local            bool
}

// CreateForce attaches a force to a solid. It has no effect until SetForce
// gives it a value.
func (w *World) CreateForce(solidID SolidID) ForceID {
	w.assertIdle("CreateForce")
	if !w.solids.Has(object.ID(solidID)) {
		logrus.Panicf("physics world: force on unknown solid %d", solidID)
	}
	id := w.forces.Allocate()
	*w.forces.Get(id) = force{solid: solidID}
	w.forceCount.Increase(1)
	return ForceID(id)
}

// SetForce changes the magnitude, direction and point of application of a
// force. With local set, value and relativePosition follow the solid's
// rotation.
func (w *World) SetForce(id ForceID, value, relativePosition r3.Vec, local bool) {
	w.assertIdle("SetForce")
	f := w.forces.Get(object.ID(id))
	f.value = value
	f.relativePosition = relativePosition
	f.local = local
}

// DestroyForce detaches and removes a force.
func (w *World) DestroyForce(id ForceID) {
	w.assertIdle("DestroyForce")
	w.forces.Remove(object.ID(id))
	w.forceCount.Decrease(1)
}

// HasForce reports whether id refers to a live force.
func (w *World) HasForce(id ForceID) bool {
	return w.forces.Has(object.ID(id))
}

// applyForces accumulates every force into its solid for the next step.
func (w *World) applyForces() {
	for _, f := range w.forces.All() {
		s := w.solids.Get(object.ID(f.solid))
		value, rel := f.value, f.relativePosition
		if f.local {
			value = rotate(s.body.Rotation, value)
			rel = rotate(s.body.Rotation, rel)
		}
		s.force = r3.Add(s.force, value)
		if rel != (r3.Vec{}) {
			s.torque = r3.Add(s.torque, r3.Cross(rel, value))
		}
	}
}
