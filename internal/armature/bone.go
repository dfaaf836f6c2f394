// Package armature is the in-memory rig host: bone hierarchy, rest and pose
// state, constraints, the role registry, and the keyframe action store.
package armature

import (
	"github.com/google/uuid"

	"github.com/Faultbox/midgard-rig/pkg/math"
)

// Bone is a single bone of an armature. Head, Tail and Roll describe the rest
// geometry in armature space; Location, Rotation and Scale are the pose basis.
type Bone struct {
	ID        uuid.UUID
	Name      string
	Head      math.Vec3
	Tail      math.Vec3
	Roll      float64
	Parent    *Bone
	Connected bool
	Deform    bool
	Envelope  float64
	Color     string

	Constraints []*Constraint

	Location math.Vec3
	Rotation math.Quat
	Scale    math.Vec3

	pose math.Mat4
}

func newBone(name string) *Bone {
	return &Bone{
		ID:       uuid.New(),
		Name:     name,
		Tail:     math.Vec3{Z: 1},
		Deform:   true,
		Envelope: 0.25,
		Rotation: math.QuatIdentity(),
		Scale:    math.Vec3{X: 1, Y: 1, Z: 1},
		pose:     math.Identity(),
	}
}

// Vector returns tail minus head in rest space.
func (b *Bone) Vector() math.Vec3 {
	return b.Tail.Sub(b.Head)
}

// Length returns the rest length.
func (b *Bone) Length() float64 {
	return b.Vector().Length()
}

// MatrixLocal returns the rest matrix in armature space.
func (b *Bone) MatrixLocal() math.Mat4 {
	return math.BoneMatrix(b.Head, b.Tail, b.Roll)
}

// Basis returns the pose basis matrix built from location, rotation and scale.
func (b *Bone) Basis() math.Mat4 {
	return math.LocRotScale(b.Location, b.Rotation, b.Scale)
}

// Constraint returns the constraint with the given name, or nil.
func (b *Bone) Constraint(name string) *Constraint {
	for _, c := range b.Constraints {
		if c.Name == name {
			return c
		}
	}
	return nil
}

// ConstraintByID returns the constraint with the given id, or nil.
func (b *Bone) ConstraintByID(id uuid.UUID) *Constraint {
	for _, c := range b.Constraints {
		if c.ID == id {
			return c
		}
	}
	return nil
}

// ConstraintsOf returns the bone's constraints of one kind in attachment order.
func (b *Bone) ConstraintsOf(kind ConstraintKind) []*Constraint {
	var out []*Constraint
	for _, c := range b.Constraints {
		if c.Kind == kind {
			out = append(out, c)
		}
	}
	return out
}

// IsDescendantOf reports whether other is an ancestor of b.
func (b *Bone) IsDescendantOf(other *Bone) bool {
	for p := b.Parent; p != nil; p = p.Parent {
		if p == other {
			return true
		}
	}
	return false
}
