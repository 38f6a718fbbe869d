package physics

import (
	"math"

	"github.com/sirupsen/logrus"
	"gonum.org/v1/gonum/num/quat"
	"gonum.org/v1/gonum/spatial/r3"

	"github.com/konstrukt-sim/konstrukt/sim/object"
)

// SolidID identifies a solid in its world.
type SolidID object.ID

// InfiniteCollisionThreshold disables collision reporting for a solid.
const InfiniteCollisionThreshold = math.MaxFloat64

// SolidProperties configures how a solid reacts.
type SolidProperties struct {
	// Mass of zero makes the solid static: collisions and gravity don't
	// move it.
	Mass        float64
	Restitution float64
	Friction    float64
	// Collisions are reported when the contact impulse reaches the
	// threshold of either solid.
	CollisionThreshold float64
	AffectedByGravity  bool
}

// SolidMotionState is the position and movement of a solid.
type SolidMotionState struct {
	Position        r3.Vec
	Rotation        quat.Number
	LinearVelocity  r3.Vec
	AngularVelocity r3.Vec
}

type solid struct {
	refs       int
	shape      *CollisionShape
	props      SolidProperties
	radius     float64
	invMass    float64
	invInertia r3.Vec

	body      SolidMotionState // integrated by the update job
	published SolidMotionState // copy readers see, refreshed on CompleteUpdate
	force     r3.Vec
	torque    r3.Vec
}

func (s *solid) setProperties(p SolidProperties) {
	s.props = p
	s.invMass = 0
	s.invInertia = r3.Vec{}
	if p.Mass <= 0 {
		return
	}
	s.invMass = 1 / p.Mass
	in := s.shape.localInertia(p.Mass)
	s.invInertia = r3.Vec{X: inverse(in.X), Y: inverse(in.Y), Z: inverse(in.Z)}
}

func inverse(v float64) float64 {
	if v == 0 {
		return 0
	}
	return 1 / v
}

// CreateSolid adds a solid to the world. The solid starts without
// references; the world keeps a reference on shape while the solid exists.
func (w *World) CreateSolid(props SolidProperties, motion SolidMotionState, shape *CollisionShape) SolidID {
	w.assertIdle("CreateSolid")
	if shape == nil {
		logrus.Panic("physics world: solid without collision shape")
	}
	if motion.Rotation == (quat.Number{}) {
		motion.Rotation = quat.Number{Real: 1}
	}

	id := w.solids.Allocate()
	s := w.solids.Get(id)
	*s = solid{
		shape:     shape,
		radius:    shape.BoundingRadius(),
		body:      motion,
		published: motion,
	}
	s.setProperties(props)
	shape.Reference()

	w.solidCount.Increase(1)
	logrus.Debugf("physics world: created %s solid %d (mass %.2f)", shape.Kind(), id, props.Mass)
	return SolidID(id)
}

// HasSolid reports whether id refers to a live solid.
func (w *World) HasSolid(id SolidID) bool {
	return w.solids.Has(object.ID(id))
}

// SolidCount returns the number of solids.
func (w *World) SolidCount() int {
	return w.solids.Count()
}

// ReferenceSolid adds a reference to a solid.
func (w *World) ReferenceSolid(id SolidID) {
	w.assertIdle("ReferenceSolid")
	w.solids.Get(object.ID(id)).refs++
}

// ReleaseSolid drops a reference. The solid is removed when none are left;
// forces still attached to it at that point are a fatal error.
func (w *World) ReleaseSolid(id SolidID) {
	w.assertIdle("ReleaseSolid")
	s := w.solids.Get(object.ID(id))
	if s.refs <= 0 {
		logrus.Panicf("physics world: solid %d released without references", id)
	}
	s.refs--
	if s.refs > 0 {
		return
	}

	for i := range w.forces.Count() {
		if w.forces.GetByIndex(i).solid == id {
			logrus.Panicf("physics world: solid %d still had force %d on destruction",
				id, w.forces.GetIDByIndex(i))
		}
	}
	s.shape.Release()
	w.solids.Remove(object.ID(id))
	w.solidCount.Decrease(1)
	logrus.Debugf("physics world: removed solid %d", id)
}

// SetSolidProperties replaces the properties of a solid.
func (w *World) SetSolidProperties(id SolidID, props SolidProperties) {
	w.assertIdle("SetSolidProperties")
	w.solids.Get(object.ID(id)).setProperties(props)
}

// SolidProperties returns the properties of a solid.
func (w *World) SolidProperties(id SolidID) SolidProperties {
	return w.solids.Get(object.ID(id)).props
}

// SolidMotionState returns the motion state published by the last
// CompleteUpdate (or the initial state for a solid created since).
func (w *World) SolidMotionState(id SolidID) SolidMotionState {
	return w.solids.Get(object.ID(id)).published
}

// ApplySolidImpulse changes the velocity of a solid instantly. A non-zero
// relativePosition also changes its angular velocity. With local set, both
// vectors are given in the solid's frame.
func (w *World) ApplySolidImpulse(id SolidID, impulse, relativePosition r3.Vec, local bool) {
	w.assertIdle("ApplySolidImpulse")
	s := w.solids.Get(object.ID(id))
	if local {
		impulse = rotate(s.body.Rotation, impulse)
		relativePosition = rotate(s.body.Rotation, relativePosition)
	}
	s.applyImpulse(impulse, relativePosition)
}

func (s *solid) applyImpulse(impulse, rel r3.Vec) {
	s.body.LinearVelocity = r3.Add(s.body.LinearVelocity, r3.Scale(s.invMass, impulse))
	if rel != (r3.Vec{}) {
		s.body.AngularVelocity = r3.Add(s.body.AngularVelocity, mulElem(s.invInertia, r3.Cross(rel, impulse)))
	}
}

// rotate rotates v by the unit quaternion q.
func rotate(q quat.Number, v r3.Vec) r3.Vec {
	p := quat.Number{Imag: v.X, Jmag: v.Y, Kmag: v.Z}
	r := quat.Mul(quat.Mul(q, p), quat.Conj(q))
	return r3.Vec{X: r.Imag, Y: r.Jmag, Z: r.Kmag}
}

func mulElem(a, b r3.Vec) r3.Vec {
	return r3.Vec{X: a.X * b.X, Y: a.Y * b.Y, Z: a.Z * b.Z}
}
