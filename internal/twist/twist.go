// Package twist splits a limb segment into twist bones whose rotation ramps
// from the segment's root to a reference bone.
package twist

import (
	"strconv"

	"go.uber.org/zap"

	"github.com/Faultbox/midgard-rig/internal/armature"
	"github.com/Faultbox/midgard-rig/internal/config"
	"github.com/Faultbox/midgard-rig/internal/logger"
	"github.com/Faultbox/midgard-rig/internal/rigerr"
)

// Constraint name prefixes.
const (
	copyLocPrefix = "Copy Loc "
	copyRotPrefix = "Copy Rot "
	trackPrefix   = "Dampd Trck "
)

// Synthesizer creates or updates twist bones.
type Synthesizer struct {
	Config config.TwistConfig
}

// New returns a synthesizer using cfg.
func New(cfg config.TwistConfig) *Synthesizer {
	return &Synthesizer{Config: cfg}
}

// Result lists the twist bones, proximal first.
type Result struct {
	Bones []*armature.Bone
}

// Upper builds twist bones for an upper limb segment (upper arm, thigh). Each
// bone follows the previous one's tail, copies a ramped share of the
// segment's rotation and tracks the segment's tail.
func (s *Synthesizer) Upper(arm *armature.Armature, segment *armature.Bone) (Result, error) {
	if err := s.validate(arm, segment); err != nil {
		return Result{}, err
	}

	restore := arm.EnterRestPosition()
	defer restore()

	bones, err := s.bones(arm, segment)
	if err != nil {
		return Result{}, err
	}
	for i, b := range bones {
		loc := s.constraint(arm, b, armature.KindCopyLocation, armature.RoleTwistCopyLocation, copyLocPrefix)
		if i == 0 {
			loc.Subtarget = segment.Name
			loc.HeadTail = 0
		} else {
			loc.Subtarget = bones[i-1].Name
			loc.HeadTail = 1
		}
		loc.UseOffset = false

		s.copyRotation(arm, b, segment, i)

		track := s.constraint(arm, b, armature.KindDampedTrack, armature.RoleTwistDampedTrack, trackPrefix)
		track.Subtarget = segment.Name
		track.HeadTail = 1
	}
	arm.Invalidate()

	logger.Info("twist bones created", zap.String("segment", segment.Name), zap.Int("count", len(bones)))
	return Result{Bones: bones}, nil
}

// Lower builds twist bones for a lower limb segment (forearm, shin) driven by
// reference, usually the hand or foot. No location constraint is added since
// the parent segment already anchors the bones.
func (s *Synthesizer) Lower(arm *armature.Armature, segment, reference *armature.Bone) (Result, error) {
	if err := s.validate(arm, segment); err != nil {
		return Result{}, err
	}
	if reference == nil {
		return Result{}, rigerr.Validation("no hand bone selected")
	}
	if !arm.Contains(reference) {
		return Result{}, rigerr.Validation("no hand bone %q in bones", reference.Name)
	}

	restore := arm.EnterRestPosition()
	defer restore()

	bones, err := s.bones(arm, segment)
	if err != nil {
		return Result{}, err
	}
	for i, b := range bones {
		s.dropCopyLocation(arm, b)
		s.copyRotation(arm, b, reference, i)

		track := s.constraint(arm, b, armature.KindDampedTrack, armature.RoleTwistDampedTrack, trackPrefix)
		track.Subtarget = reference.Name
		track.HeadTail = 0
	}
	arm.Invalidate()

	logger.Info("twist bones created",
		zap.String("segment", segment.Name),
		zap.String("reference", reference.Name),
		zap.Int("count", len(bones)))
	return Result{Bones: bones}, nil
}

func (s *Synthesizer) validate(arm *armature.Armature, segment *armature.Bone) error {
	if arm == nil {
		return rigerr.Validation("no armature selected")
	}
	if segment == nil {
		return rigerr.Validation("no active bone selected")
	}
	if !arm.Contains(segment) {
		return rigerr.Validation("bone %q is not in armature %q", segment.Name, arm.Name)
	}
	return nil
}

// bones lays out Count equal twist bones along segment, parented to it.
func (s *Synthesizer) bones(arm *armature.Armature, segment *armature.Bone) ([]*armature.Bone, error) {
	segment.Deform = false
	n := s.Config.Count
	dir := segment.Vector().Normalize()
	step := segment.Length() / float64(n)

	out := make([]*armature.Bone, n)
	for i := range n {
		role := armature.Role{Kind: armature.RoleTwist, Owner: segment.ID, Index: i}
		b := arm.BoneForRole(role)
		if b == nil {
			name := s.Config.Prefix + strconv.Itoa(i+1) + segment.Name
			if b = arm.Bone(name); b == nil {
				b = arm.NewBone(name)
			}
			arm.Registry.Bind(role, b.ID)
		}
		if err := arm.SetParent(b, segment, false); err != nil {
			return nil, err
		}
		arm.SetHead(b, segment.Head.Add(dir.Scale(step*float64(i))))
		arm.SetTail(b, segment.Head.Add(dir.Scale(step*float64(i+1))))
		b.Roll = segment.Roll
		b.Deform = true
		out[i] = b
	}
	return out, nil
}

func (s *Synthesizer) copyRotation(arm *armature.Armature, b, driver *armature.Bone, i int) {
	rot := s.constraint(arm, b, armature.KindCopyRotation, armature.RoleTwistCopyRotation, copyRotPrefix)
	rot.Subtarget = driver.Name
	rot.UseX, rot.UseY, rot.UseZ = true, true, true
	rot.Influence = s.Config.Influences[i]
	rot.TargetSpace = armature.SpaceLocalWithParent
	rot.OwnerSpace = armature.SpaceLocal
}

// constraint finds the constraint bound to kind on b, adopting one with the
// conventional name or adding a new one.
func (s *Synthesizer) constraint(arm *armature.Armature, b *armature.Bone, kind armature.ConstraintKind, roleKind armature.RoleKind, prefix string) *armature.Constraint {
	role := armature.Role{Kind: roleKind, Owner: b.ID}
	if c := arm.ConstraintForRole(b, role); c != nil {
		return c
	}
	name := prefix + clip(b.Name, s.Config.NameClip)
	c := b.Constraint(name)
	if c == nil || c.Kind != kind {
		c = arm.AddConstraint(b, kind, name)
	}
	arm.Registry.Bind(role, c.ID)
	return c
}

// dropCopyLocation removes the location constraint an earlier Upper run
// bound to b, along with its registry entry.
func (s *Synthesizer) dropCopyLocation(arm *armature.Armature, b *armature.Bone) {
	role := armature.Role{Kind: armature.RoleTwistCopyLocation, Owner: b.ID}
	if c := arm.ConstraintForRole(b, role); c != nil {
		arm.RemoveConstraint(b, c)
	}
	arm.Registry.Forget(role)
}

func clip(name string, n int) string {
	r := []rune(name)
	if n < 0 || len(r) <= n {
		return name
	}
	return string(r[:n])
}

// ReferenceCandidates lists the bones whose head sits on segment's tail,
// within tol on every axis. These are the usual drivers for Lower.
func ReferenceCandidates(arm *armature.Armature, segment *armature.Bone, tol float64) []*armature.Bone {
	if arm == nil || segment == nil {
		return nil
	}
	var out []*armature.Bone
	for _, b := range arm.Bones() {
		if b == segment {
			continue
		}
		d := b.Head.Sub(segment.Tail)
		if abs(d.X) < tol && abs(d.Y) < tol && abs(d.Z) < tol {
			out = append(out, b)
		}
	}
	return out
}

func abs(x float64) float64 {
	if x < 0 {
		return -x
	}
	return x
}
