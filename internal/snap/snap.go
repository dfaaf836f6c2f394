// Package snap reconciles IK and FK at a frame: it keys the current visual
// pose of an IK chain into its FK channels and, for partially blended
// chains, moves the IK target and pole so full IK shows the same pose.
package snap

import (
	"go.uber.org/zap"

	"github.com/Faultbox/midgard-rig/internal/armature"
	"github.com/Faultbox/midgard-rig/internal/config"
	"github.com/Faultbox/midgard-rig/internal/logger"
	"github.com/Faultbox/midgard-rig/internal/rigerr"
	"github.com/Faultbox/midgard-rig/pkg/math"
)

// Chain is one discovered IK chain.
type Chain struct {
	Effector   *armature.Bone
	Parent     *armature.Bone
	Target     *armature.Bone
	Pole       *armature.Bone
	Constraint *armature.Constraint

	// Members in snap order: effector, parent, the rest of the IK chain,
	// target, target's children, effector's children, pole.
	Members []*armature.Bone
}

// Contains reports whether b is a member of the chain.
func (c Chain) Contains(b *armature.Bone) bool {
	for _, m := range c.Members {
		if m == b {
			return true
		}
	}
	return false
}

// Names returns the member names in order.
func (c Chain) Names() []string {
	out := make([]string, len(c.Members))
	for i, m := range c.Members {
		out[i] = m.Name
	}
	return out
}

// DiscoverChains scans bones in armature order and returns one chain per IK
// constraint with a target.
func DiscoverChains(arm *armature.Armature) []Chain {
	var chains []Chain
	for _, b := range arm.Bones() {
		for _, c := range b.ConstraintsOf(armature.KindIK) {
			if c.Subtarget == "" {
				continue
			}
			target := arm.Bone(c.Subtarget)
			if target == nil {
				logger.Warn("ik target missing", zap.String("bone", b.Name), zap.String("target", c.Subtarget))
				continue
			}
			ch := Chain{Effector: b, Parent: b.Parent, Target: target, Constraint: c}
			ch.Members = append(ch.Members, b)
			if b.Parent != nil {
				ch.Members = append(ch.Members, b.Parent)
				ch.Members = append(ch.Members, upperChain(b.Parent, c.ChainCount)...)
			}
			ch.Members = append(ch.Members, target)
			ch.Members = append(ch.Members, arm.Children(target)...)
			ch.Members = append(ch.Members, arm.Children(b)...)
			if c.PoleSubtarget != "" {
				if pole := arm.Bone(c.PoleSubtarget); pole != nil {
					ch.Pole = pole
					ch.Members = append(ch.Members, pole)
				}
			}
			chains = append(chains, ch)
		}
	}
	return chains
}

// upperChain returns the ancestors of parent that an IK constraint with
// chainCount still moves. A count of 0 reaches the root.
func upperChain(parent *armature.Bone, chainCount int) []*armature.Bone {
	var out []*armature.Bone
	for b, n := parent.Parent, 2; b != nil && (chainCount <= 0 || n < chainCount); b, n = b.Parent, n+1 {
		out = append(out, b)
	}
	return out
}

// FindChain returns the first chain containing b.
func FindChain(chains []Chain, b *armature.Bone) (Chain, bool) {
	for _, ch := range chains {
		if ch.Contains(b) {
			return ch, true
		}
	}
	return Chain{}, false
}

// Reconciler keys IK/FK snaps.
type Reconciler struct {
	Config config.SnapConfig
}

// New returns a reconciler using cfg.
func New(cfg config.SnapConfig) *Reconciler {
	return &Reconciler{Config: cfg}
}

// Result describes a snap.
type Result struct {
	Chain     Chain
	Rederived bool
}

// Snap keys the chain containing active at frame. The visual pose of every
// member is captured before anything is written; writes then replay it into
// the FK channels in member order. Afterwards the chain shows the captured
// pose at the keyed influence, at full IK and at pure FK.
func (r *Reconciler) Snap(arm *armature.Armature, active *armature.Bone, frame int) (Result, error) {
	if arm == nil {
		return Result{}, rigerr.Validation("no armature selected")
	}
	if active == nil {
		return Result{}, rigerr.Validation("no active bone")
	}
	ch, ok := FindChain(DiscoverChains(arm), active)
	if !ok {
		return Result{}, rigerr.Validation("no IK constraint found for %q", active.Name)
	}
	logger.Debug("snap chain", zap.Strings("members", ch.Names()), zap.Int("frame", frame))

	effector := ch.Effector
	poses := make(map[*armature.Bone]math.Mat4)
	capture := func(b *armature.Bone) {
		if b == nil {
			return
		}
		if _, ok := poses[b]; !ok {
			poses[b] = arm.PoseMatrix(b)
		}
		if b.Parent != nil {
			if _, ok := poses[b.Parent]; !ok {
				poses[b.Parent] = arm.PoseMatrix(b.Parent)
			}
		}
	}
	for _, m := range ch.Members {
		capture(m)
	}
	iks := effector.ConstraintsOf(armature.KindIK)
	for _, c := range iks {
		capture(arm.Bone(c.Subtarget))
		capture(arm.Bone(c.PoleSubtarget))
	}
	parentPose := func(b *armature.Bone) math.Mat4 {
		if b.Parent == nil {
			return math.Mat4{}
		}
		return poses[b.Parent]
	}

	// Bases are solved against the captured parent poses, not the live
	// evaluation, so FK alone reproduces the captured pose.
	for _, m := range ch.Members {
		arm.SetPoseMatrixIn(m, poses[m], parentPose(m))
		arm.KeyRotation(m, frame)
		arm.KeyLocation(m, frame)
	}

	res := Result{Chain: ch}
	effectorPose := poses[effector]
	var chainParentPose *math.Mat4
	if ch.Parent != nil {
		p := poses[ch.Parent]
		chainParentPose = &p
	}

	for _, c := range iks {
		arm.KeyInfluence(effector, c, frame)
		if c.Influence >= 1 {
			continue
		}
		target := arm.Bone(c.Subtarget)
		if target == nil {
			continue
		}

		// The target keeps its rest offset to the effector with its head on
		// the posed tail, so full IK starts solved.
		rel := effector.MatrixLocal().Inverse().Mul(target.MatrixLocal())
		tail := effectorPose.TransformPoint(math.Vec3{Y: effector.Length()})
		arm.SetPoseMatrixIn(target, effectorPose.Mul(rel).WithTranslation(tail), parentPose(target))

		if pole := arm.Bone(c.PoleSubtarget); pole != nil && pole != effector {
			loc := r.poleLocation(effector, effectorPose, ch.Parent, chainParentPose)
			_, rot, scale := poses[pole].Decompose()
			arm.SetPoseMatrixIn(pole, math.LocRotScale(loc, rot, scale), parentPose(pole))
			if r.Config.KeyPole {
				arm.KeyLocation(pole, frame)
				arm.KeyRotation(pole, frame)
			}
		}

		arm.KeyLocation(target, frame)
		arm.KeyRotation(target, frame)
		res.Rederived = true
	}
	arm.Invalidate()

	logger.Info("ik/fk snapped",
		zap.String("effector", effector.Name),
		zap.Int("frame", frame),
		zap.Bool("rederived", res.Rederived))
	return res, nil
}

// poleLocation places the pole behind the effector head, along the
// difference of the posed effector and parent directions. For a negative
// PoleDistanceFactor this lies on the side the effector's head bends to,
// which is where the IK solver turns that joint.
func (r *Reconciler) poleLocation(effector *armature.Bone, effectorPose math.Mat4, parent *armature.Bone, parentPose *math.Mat4) math.Vec3 {
	head := effectorPose.Translation()
	dir := poseVector(effector, effectorPose)
	if parent != nil && parentPose != nil {
		dir = dir.Sub(poseVector(parent, *parentPose))
	}
	return head.Add(dir.Normalize().Scale(effector.Length() * r.Config.PoleDistanceFactor))
}

func poseVector(b *armature.Bone, m math.Mat4) math.Vec3 {
	return m.TransformPoint(math.Vec3{Y: b.Length()}).Sub(m.Translation())
}
