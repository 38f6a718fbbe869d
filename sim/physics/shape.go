package physics

import (
	"math"

	"github.com/sirupsen/logrus"
	"gonum.org/v1/gonum/spatial/r3"
)

// ShapeKind identifies the geometry of a collision shape.
type ShapeKind int

const (
	EmptyShape ShapeKind = iota
	BoxShape
	SphereShape
	CapsuleShape
	CompoundShape
)

var shapeKindNames = [...]string{"empty", "box", "sphere", "capsule", "compound"}

func (k ShapeKind) String() string {
	if k < 0 || int(k) >= len(shapeKindNames) {
		return "unknown"
	}
	return shapeKindNames[k]
}

// CollisionShape defines the geometry of a solid. Shapes are reference
// counted and may be shared by many solids; a compound shape holds a
// reference on each of its children.
//
// Contacts are resolved on the shape's bounding sphere.
type CollisionShape struct {
	kind      ShapeKind
	refs      int
	halfWidth r3.Vec
	radius    float64
	height    float64
	children  []*CollisionShape
	offsets   []r3.Vec
}

// NewEmptyShape creates a shape that never collides.
func NewEmptyShape() *CollisionShape {
	return &CollisionShape{kind: EmptyShape}
}

// NewBoxShape creates an axis aligned box with the given half extents.
func NewBoxShape(halfWidth r3.Vec) *CollisionShape {
	return &CollisionShape{kind: BoxShape, halfWidth: halfWidth}
}

// NewSphereShape creates a sphere.
func NewSphereShape(radius float64) *CollisionShape {
	return &CollisionShape{kind: SphereShape, radius: radius}
}

// NewCapsuleShape creates a capsule along the Y axis. Height is the distance
// between the centers of the two caps.
func NewCapsuleShape(radius, height float64) *CollisionShape {
	return &CollisionShape{kind: CapsuleShape, radius: radius, height: height}
}

// NewCompoundShape combines shapes placed at the given positions. Every
// child gets referenced until the compound is freed.
func NewCompoundShape(shapes []*CollisionShape, positions []r3.Vec) *CollisionShape {
	if len(shapes) != len(positions) {
		logrus.Panicf("compound shape: %d shapes but %d positions", len(shapes), len(positions))
	}
	for _, child := range shapes {
		child.Reference()
	}
	return &CollisionShape{
		kind:     CompoundShape,
		children: append([]*CollisionShape(nil), shapes...),
		offsets:  append([]r3.Vec(nil), positions...),
	}
}

// Kind returns the shape's geometry type.
func (s *CollisionShape) Kind() ShapeKind { return s.kind }

// References returns the current reference count.
func (s *CollisionShape) References() int { return s.refs }

// Reference adds a reference.
func (s *CollisionShape) Reference() {
	s.refs++
}

// Release drops a reference. When the last reference goes away the shape
// releases its children.
func (s *CollisionShape) Release() {
	if s.refs <= 0 {
		logrus.Panicf("%s shape released without references", s.kind)
	}
	s.refs--
	if s.refs == 0 {
		for _, child := range s.children {
			child.Release()
		}
		s.children = nil
		s.offsets = nil
	}
}

// BoundingRadius returns the radius of the sphere around the shape's origin
// that encloses it.
func (s *CollisionShape) BoundingRadius() float64 {
	switch s.kind {
	case BoxShape:
		return r3.Norm(s.halfWidth)
	case SphereShape:
		return s.radius
	case CapsuleShape:
		return s.radius + s.height/2
	case CompoundShape:
		var r float64
		for i, child := range s.children {
			r = math.Max(r, r3.Norm(s.offsets[i])+child.BoundingRadius())
		}
		return r
	default:
		return 0
	}
}

// localInertia returns the diagonal of the inertia tensor for mass.
func (s *CollisionShape) localInertia(mass float64) r3.Vec {
	switch s.kind {
	case BoxShape:
		return boxInertia(mass, s.halfWidth)
	case SphereShape:
		v := 0.4 * mass * s.radius * s.radius
		return r3.Vec{X: v, Y: v, Z: v}
	case CapsuleShape:
		return boxInertia(mass, r3.Vec{X: s.radius, Y: s.radius + s.height/2, Z: s.radius})
	case CompoundShape:
		r := s.BoundingRadius()
		v := 0.4 * mass * r * r
		return r3.Vec{X: v, Y: v, Z: v}
	default:
		// a sphere of radius 0.5
		v := 0.4 * mass * 0.5
		return r3.Vec{X: v, Y: v, Z: v}
	}
}

func boxInertia(mass float64, h r3.Vec) r3.Vec {
	x, y, z := 2*h.X, 2*h.Y, 2*h.Z
	return r3.Vec{
		X: mass / 12 * (y*y + z*z),
		Y: mass / 12 * (x*x + z*z),
		Z: mass / 12 * (x*x + y*y),
	}
}
