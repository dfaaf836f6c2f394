package armature

import (
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/Faultbox/midgard-rig/internal/rigerr"
	"github.com/Faultbox/midgard-rig/pkg/math"
)

// PosePosition selects whether evaluation shows the pose or the rest pose.
type PosePosition string

// Pose position modes.
const (
	PositionPose PosePosition = "POSE"
	PositionRest PosePosition = "REST"
)

// Armature owns bones in creation order plus the registry and action store.
type Armature struct {
	ID           uuid.UUID
	Name         string
	World        math.Mat4
	PosePosition PosePosition
	MirrorX      bool

	Registry *Registry
	Action   *Action

	bones  []*Bone
	byName map[string]*Bone
	byID   map[uuid.UUID]*Bone
	dirty  bool
}

// New creates an empty armature.
func New(name string) *Armature {
	return &Armature{
		ID:           uuid.New(),
		Name:         name,
		World:        math.Identity(),
		PosePosition: PositionPose,
		Registry:     NewRegistry(),
		Action:       NewAction(),
		byName:       make(map[string]*Bone),
		byID:         make(map[uuid.UUID]*Bone),
	}
}

// Bones returns the bones in armature order.
func (a *Armature) Bones() []*Bone {
	return a.bones
}

// Bone returns the bone with the given name, or nil.
func (a *Armature) Bone(name string) *Bone {
	return a.byName[name]
}

// BoneByID returns the bone with the given id, or nil.
func (a *Armature) BoneByID(id uuid.UUID) *Bone {
	return a.byID[id]
}

// Contains reports whether b belongs to this armature.
func (a *Armature) Contains(b *Bone) bool {
	return b != nil && a.byID[b.ID] == b
}

// NewBone adds a bone. A taken name gets a numeric suffix (".001", ".002", ...).
func (a *Armature) NewBone(name string) *Bone {
	b := newBone(a.uniqueName(name))
	a.addBone(b)
	return b
}

// AdoptBone adds a fully built bone, keeping its id. Used by loaders.
func (a *Armature) AdoptBone(b *Bone) error {
	if b.ID == uuid.Nil {
		b.ID = uuid.New()
	}
	if _, ok := a.byName[b.Name]; ok {
		return rigerr.Validation("duplicate bone name %q", b.Name)
	}
	if _, ok := a.byID[b.ID]; ok {
		return rigerr.Validation("duplicate bone id %s", b.ID)
	}
	a.addBone(b)
	return nil
}

func (a *Armature) addBone(b *Bone) {
	a.bones = append(a.bones, b)
	a.byName[b.Name] = b
	a.byID[b.ID] = b
	a.dirty = true
}

func (a *Armature) uniqueName(name string) string {
	if _, ok := a.byName[name]; !ok {
		return name
	}
	for i := 1; ; i++ {
		candidate := fmt.Sprintf("%s.%03d", name, i)
		if _, ok := a.byName[candidate]; !ok {
			return candidate
		}
	}
}

// RenameBone renames b and retargets constraints and keyframes that refer
// to the old name.
func (a *Armature) RenameBone(b *Bone, name string) error {
	if !a.Contains(b) {
		return rigerr.Validation("bone %q is not in armature %q", b.Name, a.Name)
	}
	if name == b.Name {
		return nil
	}
	if _, ok := a.byName[name]; ok {
		return rigerr.Validation("bone name %q already taken", name)
	}
	old := b.Name
	delete(a.byName, old)
	b.Name = name
	a.byName[name] = b
	for _, other := range a.bones {
		for _, c := range other.Constraints {
			if c.Subtarget == old {
				c.Subtarget = name
			}
			if c.PoleSubtarget == old {
				c.PoleSubtarget = name
			}
		}
	}
	a.Action.renameBone(old, name)
	a.dirty = true
	return nil
}

// RemoveBone deletes b, reparenting its children to b's parent.
func (a *Armature) RemoveBone(b *Bone) {
	if !a.Contains(b) {
		return
	}
	for _, c := range a.Children(b) {
		c.Parent = b.Parent
		c.Connected = false
	}
	for i, other := range a.bones {
		if other == b {
			a.bones = append(a.bones[:i], a.bones[i+1:]...)
			break
		}
	}
	delete(a.byName, b.Name)
	delete(a.byID, b.ID)
	a.dirty = true
}

// Children returns the direct children of b in armature order.
func (a *Armature) Children(b *Bone) []*Bone {
	var out []*Bone
	for _, c := range a.bones {
		if c.Parent == b {
			out = append(out, c)
		}
	}
	return out
}

// SetParent parents b to parent. A connected child has its head snapped to
// the parent's tail. Parenting into a cycle is rejected.
func (a *Armature) SetParent(b, parent *Bone, connected bool) error {
	if parent == nil {
		b.Parent = nil
		b.Connected = false
		a.dirty = true
		return nil
	}
	if parent == b || parent.IsDescendantOf(b) {
		return rigerr.Validation("parenting %q to %q would form a cycle", b.Name, parent.Name)
	}
	b.Parent = parent
	b.Connected = connected
	if connected {
		b.Head = parent.Tail
	}
	a.dirty = true
	return nil
}

// SetHead moves the head of b. A connected bone drags its parent's tail
// along, which in turn moves every sibling connected to that tail.
func (a *Armature) SetHead(b *Bone, p math.Vec3) {
	a.setHead(b, p)
	if a.MirrorX {
		if m := a.mirrorOf(b); m != nil {
			a.setHead(m, mirrorPoint(p))
		}
	}
}

// SetTail moves the tail of b and the heads of its connected children.
func (a *Armature) SetTail(b *Bone, p math.Vec3) {
	a.setTail(b, p)
	if a.MirrorX {
		if m := a.mirrorOf(b); m != nil {
			a.setTail(m, mirrorPoint(p))
		}
	}
}

// SetRoll sets the rest roll of b.
func (a *Armature) SetRoll(b *Bone, roll float64) {
	b.Roll = roll
	if a.MirrorX {
		if m := a.mirrorOf(b); m != nil {
			m.Roll = -roll
		}
	}
	a.dirty = true
}

func (a *Armature) setHead(b *Bone, p math.Vec3) {
	b.Head = p
	if b.Connected && b.Parent != nil {
		a.setTail(b.Parent, p)
	}
	a.dirty = true
}

func (a *Armature) setTail(b *Bone, p math.Vec3) {
	b.Tail = p
	for _, c := range a.Children(b) {
		if c.Connected {
			c.Head = p
		}
	}
	a.dirty = true
}

func (a *Armature) mirrorOf(b *Bone) *Bone {
	name := mirrorName(b.Name)
	if name == b.Name {
		return nil
	}
	return a.byName[name]
}

func mirrorName(name string) string {
	switch {
	case strings.HasSuffix(name, ".L"):
		return strings.TrimSuffix(name, ".L") + ".R"
	case strings.HasSuffix(name, ".R"):
		return strings.TrimSuffix(name, ".R") + ".L"
	}
	return name
}

func mirrorPoint(p math.Vec3) math.Vec3 {
	return math.Vec3{X: -p.X, Y: p.Y, Z: p.Z}
}

// EnterRestPosition switches to rest position with X-mirror editing off and
// returns a func restoring the previous state. Callers defer the restore.
func (a *Armature) EnterRestPosition() (restore func()) {
	prevPosition, prevMirror := a.PosePosition, a.MirrorX
	a.PosePosition = PositionRest
	a.MirrorX = false
	a.dirty = true
	return func() {
		a.PosePosition = prevPosition
		a.MirrorX = prevMirror
		a.dirty = true
	}
}

// DisableMirror turns X-mirror editing off and returns a restore func.
func (a *Armature) DisableMirror() (restore func()) {
	prev := a.MirrorX
	a.MirrorX = false
	return func() { a.MirrorX = prev }
}

// AddConstraint appends a new constraint to b.
func (a *Armature) AddConstraint(b *Bone, kind ConstraintKind, name string) *Constraint {
	c := newConstraint(kind, name)
	b.Constraints = append(b.Constraints, c)
	a.dirty = true
	return c
}

// RemoveConstraint detaches c from b.
func (a *Armature) RemoveConstraint(b *Bone, c *Constraint) {
	for i, other := range b.Constraints {
		if other == c {
			b.Constraints = append(b.Constraints[:i], b.Constraints[i+1:]...)
			a.dirty = true
			return
		}
	}
}

// Invalidate marks the evaluated pose stale after direct field writes.
func (a *Armature) Invalidate() {
	a.dirty = true
}

// BoneForRole resolves a registry role to a live bone, or nil.
func (a *Armature) BoneForRole(role Role) *Bone {
	id, ok := a.Registry.Lookup(role)
	if !ok {
		return nil
	}
	return a.byID[id]
}

// ConstraintForRole resolves a registry role to a live constraint on b, or nil.
func (a *Armature) ConstraintForRole(b *Bone, role Role) *Constraint {
	id, ok := a.Registry.Lookup(role)
	if !ok {
		return nil
	}
	return b.ConstraintByID(id)
}
