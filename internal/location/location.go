// Package location implements the Location value (spec component C2): an
// entity's position relative to a parent entity, plus the coordinate-frame
// transform applied to children when their parent is destroyed.
package location

import (
	"math"

	"github.com/worldforge/worldcore/internal/entityid"
)

// Vector3 is a plain 3D vector; zero value is the origin / zero vector.
type Vector3 struct {
	X, Y, Z float64
}

func (v Vector3) Add(o Vector3) Vector3 { return Vector3{v.X + o.X, v.Y + o.Y, v.Z + o.Z} }
func (v Vector3) Sub(o Vector3) Vector3 { return Vector3{v.X - o.X, v.Y - o.Y, v.Z - o.Z} }
func (v Vector3) Scale(s float64) Vector3 { return Vector3{v.X * s, v.Y * s, v.Z * s} }

func (v Vector3) Length() float64 {
	return math.Sqrt(v.X*v.X + v.Y*v.Y + v.Z*v.Z)
}

func (v Vector3) IsZero() bool { return v.X == 0 && v.Y == 0 && v.Z == 0 }

func (v Vector3) Normalize() Vector3 {
	l := v.Length()
	if l == 0 {
		return Vector3{}
	}
	return v.Scale(1 / l)
}

// RotateAroundZ rotates v by angleDegrees around the vertical (Z) axis.
// Used to apply drunkness jitter to a movement direction (SPEC_FULL.md §4).
func (v Vector3) RotateAroundZ(angleDegrees float64) Vector3 {
	rad := angleDegrees * math.Pi / 180
	sin, cos := math.Sin(rad), math.Cos(rad)
	return Vector3{
		X: v.X*cos - v.Y*sin,
		Y: v.X*sin + v.Y*cos,
		Z: v.Z,
	}
}

// Quaternion is a unit rotation quaternion. The zero value is NOT a valid
// rotation (all components zero) — use Valid() to check, and Identity() for
// the no-rotation case, matching the original's "identity rotation if
// orientation is invalid" destroy-time rule.
type Quaternion struct {
	W, X, Y, Z float64
}

func Identity() Quaternion { return Quaternion{W: 1} }

func (q Quaternion) Valid() bool {
	return q.W != 0 || q.X != 0 || q.Y != 0 || q.Z != 0
}

// Mul composes q then o (applies q first, then o): the Hamilton product o*q,
// the ordering for "child orientation *= parent orientation".
func (q Quaternion) Mul(o Quaternion) Quaternion {
	return Quaternion{
		W: o.W*q.W - o.X*q.X - o.Y*q.Y - o.Z*q.Z,
		X: o.W*q.X + o.X*q.W + o.Y*q.Z - o.Z*q.Y,
		Y: o.W*q.Y - o.X*q.Z + o.Y*q.W + o.Z*q.X,
		Z: o.W*q.Z + o.X*q.Y - o.Y*q.X + o.Z*q.W,
	}
}

// RotateVector rotates v by this quaternion.
func (q Quaternion) RotateVector(v Vector3) Vector3 {
	// qv = q * (0,v) * q^-1, using the standard expansion to avoid
	// constructing a pure-vector quaternion.
	uvx := q.Y*v.Z - q.Z*v.Y
	uvy := q.Z*v.X - q.X*v.Z
	uvz := q.X*v.Y - q.Y*v.X

	uuvx := q.Y*uvz - q.Z*uvy
	uuvy := q.Z*uvx - q.X*uvz
	uuvz := q.X*uvy - q.Y*uvx

	return Vector3{
		X: v.X + 2*(q.W*uvx+uuvx),
		Y: v.Y + 2*(q.W*uvy+uuvy),
		Z: v.Z + 2*(q.W*uvz+uuvz),
	}
}

// BBox is an axis-aligned bounding box in the entity's own local frame.
type BBox struct {
	Low, High Vector3
}

// Location is an entity's position relative to a parent entity (Ref). A
// Nil Ref means the entity is omnipresent (spec.md §3, used by Creator).
type Location struct {
	Ref      entityid.ID
	Pos      Vector3
	Velocity Vector3
	Face     Vector3 // unit vector, or zero meaning "no facing set"
	BBox     BBox
	BMedian  Vector3

	Orientation      Quaternion
	HasOrientation   bool
}

// ToParentCoords transforms a position expressed in this Location's own
// frame into its parent's frame, using this Location's pos/orientation as
// the transform (rotate then translate).
func (l Location) ToParentCoords(pos Vector3) Vector3 {
	orient := Identity()
	if l.HasOrientation && l.Orientation.Valid() {
		orient = l.Orientation
	}
	return orient.RotateVector(pos).Add(l.Pos)
}

// ReparentChild transforms a child's Location so it is expressed in the
// grandparent's frame, per spec.md §3: "rotate+translate by the destroyed
// entity's pose; identity rotation if orientation is invalid." destroyed is
// the Location of the entity being destroyed (the child's old parent);
// grandparent is the entity destroyed.Ref pointed to.
func ReparentChild(child *Location, destroyed Location, grandparent entityid.ID) {
	orient := Identity()
	if destroyed.HasOrientation && destroyed.Orientation.Valid() {
		orient = destroyed.Orientation
	}
	child.Pos = orient.RotateVector(child.Pos).Add(destroyed.Pos)
	child.Velocity = orient.RotateVector(child.Velocity)
	if child.HasOrientation {
		child.Orientation = child.Orientation.Mul(orient)
	}
	child.Ref = grandparent
}
