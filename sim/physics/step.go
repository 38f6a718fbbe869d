package physics

import (
	"math"

	"gonum.org/v1/gonum/num/quat"
	"gonum.org/v1/gonum/spatial/r3"
)

// step advances the world by dt seconds: forces and gravity, integration,
// then contact resolution.
func (w *World) step(dt float64) {
	w.applyForces()

	for i := range w.solids.Count() {
		s := w.solids.GetByIndex(i)
		if s.invMass > 0 {
			w.integrate(s, dt)
		}
		s.force = r3.Vec{}
		s.torque = r3.Vec{}
	}

	w.resolveContacts()
	w.steps++
}

func (w *World) integrate(s *solid, dt float64) {
	b := &s.body

	accel := r3.Scale(s.invMass, s.force)
	if s.props.AffectedByGravity {
		accel = r3.Add(accel, w.gravity)
	}
	b.LinearVelocity = r3.Add(b.LinearVelocity, r3.Scale(dt, accel))
	// diagonal inertia, applied in world axes
	b.AngularVelocity = r3.Add(b.AngularVelocity, r3.Scale(dt, mulElem(s.invInertia, s.torque)))

	b.Position = r3.Add(b.Position, r3.Scale(dt, b.LinearVelocity))

	// dq/dt = 0.5 * w * q
	omega := quat.Number{Imag: b.AngularVelocity.X, Jmag: b.AngularVelocity.Y, Kmag: b.AngularVelocity.Z}
	dq := quat.Scale(0.5*dt, quat.Mul(omega, b.Rotation))
	b.Rotation = normalize(quat.Add(b.Rotation, dq))
}

func normalize(q quat.Number) quat.Number {
	n := quat.Abs(q)
	if n == 0 {
		return quat.Number{Real: 1}
	}
	return quat.Scale(1/n, q)
}

// resolveContacts tests every pair of solids for bounding sphere overlap.
// Penetrating pairs are pushed apart; approaching pairs get a contact
// impulse. Collisions reaching a threshold are queued for CompleteUpdate.
func (w *World) resolveContacts() {
	n := w.solids.Count()
	for i := range n {
		a := w.solids.GetByIndex(i)
		if a.radius == 0 {
			continue
		}
		for j := i + 1; j < n; j++ {
			b := w.solids.GetByIndex(j)
			if b.radius == 0 || a.invMass+b.invMass == 0 {
				continue
			}
			if c, ok := contact(a, b); ok {
				c.A = SolidID(w.solids.GetIDByIndex(i))
				c.B = SolidID(w.solids.GetIDByIndex(j))
				w.collisions = append(w.collisions, c)
			}
		}
	}
}

// contact resolves a pair and reports whether the collision should be
// propagated.
func contact(a, b *solid) (Collision, bool) {
	delta := r3.Sub(a.body.Position, b.body.Position)
	dist := r3.Norm(delta)
	depth := a.radius + b.radius - dist
	if depth <= 0 {
		return Collision{}, false
	}

	normal := r3.Vec{Z: 1} // concentric: separate along Z
	if dist > 0 {
		normal = r3.Scale(1/dist, delta)
	}
	invMassSum := a.invMass + b.invMass

	// split the penetration by inverse mass
	a.body.Position = r3.Add(a.body.Position, r3.Scale(depth*a.invMass/invMassSum, normal))
	b.body.Position = r3.Sub(b.body.Position, r3.Scale(depth*b.invMass/invMassSum, normal))

	var impulse float64
	rel := r3.Sub(a.body.LinearVelocity, b.body.LinearVelocity)
	if vn := r3.Dot(rel, normal); vn < 0 {
		restitution := a.props.Restitution * b.props.Restitution
		impulse = -(1 + restitution) * vn / invMassSum
		a.applyImpulse(r3.Scale(impulse, normal), r3.Vec{})
		b.applyImpulse(r3.Scale(-impulse, normal), r3.Vec{})

		// Coulomb friction on the tangential velocity
		rel = r3.Sub(a.body.LinearVelocity, b.body.LinearVelocity)
		tangent := r3.Sub(rel, r3.Scale(r3.Dot(rel, normal), normal))
		if vt := r3.Norm(tangent); vt > 0 {
			mu := a.props.Friction * b.props.Friction
			jt := math.Min(vt/invMassSum, mu*impulse)
			dir := r3.Scale(-1/vt, tangent)
			a.applyImpulse(r3.Scale(jt, dir), r3.Vec{})
			b.applyImpulse(r3.Scale(-jt, dir), r3.Vec{})
		}
	}

	c := Collision{
		PointOnA:  r3.Sub(a.body.Position, r3.Scale(a.radius, normal)),
		PointOnB:  r3.Add(b.body.Position, r3.Scale(b.radius, normal)),
		NormalOnB: normal,
		Impulse:   impulse,
	}
	return c, impulse >= a.props.CollisionThreshold || impulse >= b.props.CollisionThreshold
}
