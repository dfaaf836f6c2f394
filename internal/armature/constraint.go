package armature

import "github.com/google/uuid"

// ConstraintKind identifies a constraint variant.
type ConstraintKind string

// Supported constraint kinds.
const (
	KindIK           ConstraintKind = "IK"
	KindCopyRotation ConstraintKind = "COPY_ROTATION"
	KindCopyLocation ConstraintKind = "COPY_LOCATION"
	KindDampedTrack  ConstraintKind = "DAMPED_TRACK"
)

// Valid reports whether k is a known kind.
func (k ConstraintKind) Valid() bool {
	switch k {
	case KindIK, KindCopyRotation, KindCopyLocation, KindDampedTrack:
		return true
	}
	return false
}

// Space is the coordinate space a constraint reads or writes in.
type Space string

// Constraint spaces.
const (
	SpaceWorld           Space = "WORLD"
	SpacePose            Space = "POSE"
	SpaceLocalWithParent Space = "LOCAL_WITH_PARENT"
	SpaceLocal           Space = "LOCAL"
)

// Constraint is a pose constraint attached to a bone. The target is always
// the owning armature; Subtarget names the target bone.
type Constraint struct {
	ID        uuid.UUID
	Name      string
	Kind      ConstraintKind
	Influence float64
	Subtarget string

	// IK
	PoleSubtarget string
	PoleAngle     float64
	ChainCount    int
	UseStretch    bool

	// Copy rotation
	UseX, UseY, UseZ bool
	TargetSpace      Space
	OwnerSpace       Space

	// Copy location, damped track
	HeadTail  float64
	UseOffset bool
}

func newConstraint(kind ConstraintKind, name string) *Constraint {
	return &Constraint{
		ID:          uuid.New(),
		Name:        name,
		Kind:        kind,
		Influence:   1,
		UseX:        true,
		UseY:        true,
		UseZ:        true,
		UseStretch:  true,
		TargetSpace: SpaceWorld,
		OwnerSpace:  SpaceWorld,
	}
}
