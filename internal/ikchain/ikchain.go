// Package ikchain builds IK control rigs: a target bone at the effector's
// tail, a pole bone behind the middle joint, and an IK constraint on the
// effector with a pole angle that keeps the chain from twisting.
package ikchain

import (
	"go.uber.org/zap"

	"github.com/Faultbox/midgard-rig/internal/armature"
	"github.com/Faultbox/midgard-rig/internal/config"
	"github.com/Faultbox/midgard-rig/internal/logger"
	"github.com/Faultbox/midgard-rig/internal/rigerr"
	"github.com/Faultbox/midgard-rig/pkg/math"
)

// Generator creates or updates IK controls for an effector bone.
type Generator struct {
	Config config.IKConfig
}

// New returns a generator using cfg.
func New(cfg config.IKConfig) *Generator {
	return &Generator{Config: cfg}
}

// Result holds the entities a Generate call produced or reused.
type Result struct {
	Target     *armature.Bone
	Pole       *armature.Bone
	Constraint *armature.Constraint
	PoleAngle  float64
}

// Generate places the IK target and pole bones for effector and attaches the
// IK constraint. Re-running on the same effector updates the same entities.
func (g *Generator) Generate(arm *armature.Armature, effector *armature.Bone, chainCount int) (Result, error) {
	if arm == nil {
		return Result{}, rigerr.Validation("no armature selected")
	}
	if effector == nil {
		return Result{}, rigerr.Validation("no ik bone selected")
	}
	if !arm.Contains(effector) {
		return Result{}, rigerr.Validation("bone %q is not in armature %q", effector.Name, arm.Name)
	}
	base := effector.Parent
	if base == nil {
		return Result{}, rigerr.Validation("no parent bone to ik bone %q", effector.Name)
	}
	if chainCount < g.Config.MinChainCount || chainCount > g.Config.MaxChainCount {
		return Result{}, rigerr.Validation("chain count %d outside [%d, %d]",
			chainCount, g.Config.MinChainCount, g.Config.MaxChainCount)
	}

	restore := arm.EnterRestPosition()
	defer restore()

	dir := effector.Vector().Sub(base.Vector()).Normalize()
	if dir.IsZero() {
		// Straight chain: aim along the parent's Z axis.
		dir = base.MatrixLocal().Column(2).Normalize()
		logger.Warn("straight chain, pole direction taken from parent z axis",
			zap.String("bone", effector.Name))
	}

	target := g.controlBone(arm, effector, armature.RoleIKTarget, g.Config.TargetPrefix+effector.Name)
	target.Deform = false
	sign := -1.0
	if effector.Tail.Z > g.Config.UpThreshold {
		sign = 1
	}
	arm.SetHead(target, effector.Tail)
	arm.SetTail(target, effector.Tail.Add(dir.Scale(sign*g.Config.TargetLength)))

	pole := g.controlBone(arm, effector, armature.RolePoleTarget, g.Config.PolePrefix+effector.Name)
	pole.Deform = false
	poleHead := base.Tail.Add(dir.Scale(effector.Length() * g.Config.PoleDistanceFactor))
	arm.SetHead(pole, poleHead)
	arm.SetTail(pole, poleHead.Add(dir.Scale(g.Config.PoleLength)))

	angle := PoleAngle(base, effector, pole, g.Config.PoleAngleThreshold)

	c := g.constraint(arm, effector)
	c.Subtarget = target.Name
	c.PoleSubtarget = pole.Name
	c.PoleAngle = angle
	c.ChainCount = chainCount
	c.UseStretch = false
	arm.Invalidate()

	logger.Info("ik bone created",
		zap.String("bone", effector.Name),
		zap.String("target", target.Name),
		zap.String("pole", pole.Name),
		zap.Float64("pole_angle", angle),
		zap.Int("chain_count", chainCount))
	return Result{Target: target, Pole: pole, Constraint: c, PoleAngle: angle}, nil
}

// controlBone finds the bone bound to role for owner, adopting a bone with
// the conventional name or creating one when nothing is bound.
func (g *Generator) controlBone(arm *armature.Armature, owner *armature.Bone, kind armature.RoleKind, name string) *armature.Bone {
	role := armature.Role{Kind: kind, Owner: owner.ID}
	if b := arm.BoneForRole(role); b != nil {
		return b
	}
	b := arm.Bone(name)
	if b == nil {
		b = arm.NewBone(name)
	}
	arm.Registry.Bind(role, b.ID)
	return b
}

func (g *Generator) constraint(arm *armature.Armature, owner *armature.Bone) *armature.Constraint {
	role := armature.Role{Kind: armature.RoleIKConstraint, Owner: owner.ID}
	if c := arm.ConstraintForRole(owner, role); c != nil {
		return c
	}
	name := g.Config.TargetPrefix + owner.Name
	c := owner.Constraint(name)
	if c == nil || c.Kind != armature.KindIK {
		c = arm.AddConstraint(owner, armature.KindIK, name)
	}
	arm.Registry.Bind(role, c.ID)
	return c
}

// PoleAngle returns the IK pole angle for the chain base -> middle with the
// pole bone's head as pole location, measured from base's X axis.
//
// The sign flips when the cross product of the X axis and the projected pole
// axis lies within threshold radians of the base direction. A threshold of 1
// is the historical behaviour and is not an exact half-space test.
func PoleAngle(base, middle, pole *armature.Bone, threshold float64) float64 {
	normal := middle.Tail.Sub(base.Head).Cross(pole.Head.Sub(base.Head))
	projected := normal.Cross(base.Vector())
	return signedAngle(base.MatrixLocal().Column(0), projected, base.Vector(), threshold)
}

func signedAngle(u, v, normal math.Vec3, threshold float64) float64 {
	angle := u.Angle(v)
	c := u.Cross(v)
	if c == (math.Vec3{}) {
		return angle
	}
	if c.Angle(normal) < threshold {
		return -angle
	}
	return angle
}
