package armature

import (
	gomath "math"

	"github.com/Faultbox/midgard-rig/pkg/math"
)

// IK solver settings.
const (
	ikIterations = 64
	ikTolerance  = 1e-9
)

// Update re-evaluates every pose matrix: forward kinematics with constraints
// in attachment order, then IK chains, then a second pass so bones
// downstream of an IK chain follow it.
func (a *Armature) Update() {
	if a.PosePosition == PositionRest {
		for _, b := range a.bones {
			b.pose = b.MatrixLocal()
		}
		a.dirty = false
		return
	}

	ev := newEvaluator(a, nil)
	ev.run()
	if overrides := a.solveIK(ev.result); len(overrides) > 0 {
		ev = newEvaluator(a, overrides)
		ev.run()
	}
	for b, m := range ev.result {
		b.pose = m
	}
	a.dirty = false
}

func (a *Armature) ensure() {
	if a.dirty {
		a.Update()
	}
}

// PoseMatrix returns the evaluated armature-space matrix of b.
func (a *Armature) PoseMatrix(b *Bone) math.Mat4 {
	a.ensure()
	return b.pose
}

// PoseHead returns the evaluated head of b.
func (a *Armature) PoseHead(b *Bone) math.Vec3 {
	return a.PoseMatrix(b).Translation()
}

// PoseTail returns the evaluated tail of b.
func (a *Armature) PoseTail(b *Bone) math.Vec3 {
	return a.PoseMatrix(b).TransformPoint(math.Vec3{Y: b.Length()})
}

// PoseVector returns the evaluated head-to-tail vector of b.
func (a *Armature) PoseVector(b *Bone) math.Vec3 {
	return a.PoseTail(b).Sub(a.PoseHead(b))
}

// SetPoseMatrix sets the pose basis of b so that, ignoring b's own
// constraints, it evaluates to m under its parent's current pose.
func (a *Armature) SetPoseMatrix(b *Bone, m math.Mat4) {
	a.ensure()
	var parent math.Mat4
	if b.Parent != nil {
		parent = b.Parent.pose
	}
	a.SetPoseMatrixIn(b, m, parent)
}

// SetPoseMatrixIn is SetPoseMatrix against a given parent pose instead of
// the evaluated one. The parent pose is ignored for root bones.
func (a *Armature) SetPoseMatrixIn(b *Bone, m, parentPose math.Mat4) {
	frame := restFrame(b, parentPose)
	b.Location, b.Rotation, b.Scale = frame.Inverse().Mul(m).Decompose()
	a.dirty = true
}

// restFrame returns parentPose * parentRest^-1 * rest, the matrix the pose
// basis of b is applied to.
func restFrame(b *Bone, parentPose math.Mat4) math.Mat4 {
	rest := b.MatrixLocal()
	if b.Parent == nil {
		return rest
	}
	return parentPose.Mul(b.Parent.MatrixLocal().Inverse()).Mul(rest)
}

type evaluator struct {
	arm       *Armature
	overrides map[*Bone]math.Mat4
	result    map[*Bone]math.Mat4
	visiting  map[*Bone]bool
}

func newEvaluator(a *Armature, overrides map[*Bone]math.Mat4) *evaluator {
	return &evaluator{
		arm:       a,
		overrides: overrides,
		result:    make(map[*Bone]math.Mat4, len(a.bones)),
		visiting:  make(map[*Bone]bool),
	}
}

func (e *evaluator) run() {
	for _, b := range e.arm.bones {
		e.eval(b)
	}
}

func (e *evaluator) eval(b *Bone) math.Mat4 {
	if m, ok := e.result[b]; ok {
		return m
	}
	// Dependency cycle: fall back to rest.
	if e.visiting[b] {
		return b.MatrixLocal()
	}
	e.visiting[b] = true
	defer delete(e.visiting, b)

	if m, ok := e.overrides[b]; ok {
		e.result[b] = m
		return m
	}

	m := e.frame(b).Mul(b.Basis())
	for _, c := range b.Constraints {
		m = e.apply(b, c, m)
	}
	e.result[b] = m
	return m
}

func (e *evaluator) frame(b *Bone) math.Mat4 {
	if b.Parent == nil {
		return b.MatrixLocal()
	}
	return restFrame(b, e.eval(b.Parent))
}

func (e *evaluator) apply(b *Bone, c *Constraint, m math.Mat4) math.Mat4 {
	if c.Influence <= 0 || c.Kind == KindIK {
		return m
	}
	target := e.arm.byName[c.Subtarget]
	if target == nil || target == b {
		return m
	}
	tm := e.eval(target)

	var out math.Mat4
	switch c.Kind {
	case KindCopyLocation:
		p := headTail(target, tm, c.HeadTail)
		if c.UseOffset {
			p = p.Add(m.Translation())
		}
		out = m.WithTranslation(p)
	case KindCopyRotation:
		out = e.copyRotation(b, c, m, target, tm)
	case KindDampedTrack:
		out = dampedTrack(m, headTail(target, tm, c.HeadTail))
	default:
		return m
	}
	return BlendMatrix(m, out, c.Influence)
}

func (e *evaluator) spaceMatrix(b *Bone, s Space) math.Mat4 {
	switch s {
	case SpaceLocal:
		return e.frame(b)
	case SpaceLocalWithParent:
		return b.MatrixLocal()
	}
	return math.Identity()
}

func (e *evaluator) copyRotation(b *Bone, c *Constraint, m math.Mat4, target *Bone, tm math.Mat4) math.Mat4 {
	q := e.spaceMatrix(target, c.TargetSpace).Inverse().Mul(tm).ToQuat()

	space := e.spaceMatrix(b, c.OwnerSpace)
	loc, rot, scale := space.Inverse().Mul(m).Decompose()
	if !(c.UseX && c.UseY && c.UseZ) {
		own, copied := rot.ToEuler(), q.ToEuler()
		if c.UseX {
			own.X = copied.X
		}
		if c.UseY {
			own.Y = copied.Y
		}
		if c.UseZ {
			own.Z = copied.Z
		}
		q = math.QuatFromEuler(own)
	}
	return space.Mul(math.LocRotScale(loc, q, scale))
}

// headTail returns the point at fraction t along the posed bone.
func headTail(b *Bone, m math.Mat4, t float64) math.Vec3 {
	return m.TransformPoint(math.Vec3{Y: b.Length() * t})
}

// dampedTrack swings m about its head so its Y axis points at p.
func dampedTrack(m math.Mat4, p math.Vec3) math.Mat4 {
	head := m.Translation()
	dir := p.Sub(head)
	if dir.LengthSquared() < 1e-18 {
		return m
	}
	q := math.QuatRotationBetween(m.Column(1), dir)
	return rotateAbout(m, q, head)
}

// rotateAbout applies rotation q to m about pivot.
func rotateAbout(m math.Mat4, q math.Quat, pivot math.Vec3) math.Mat4 {
	out := q.ToMat4().Mul(m.WithTranslation(m.Translation().Sub(pivot)))
	return out.WithTranslation(out.Translation().Add(pivot))
}

// BlendMatrix interpolates from a to b: translation and scale linearly,
// rotation by slerp.
func BlendMatrix(a, b math.Mat4, t float64) math.Mat4 {
	if t >= 1 {
		return b
	}
	if t <= 0 {
		return a
	}
	la, ra, sa := a.Decompose()
	lb, rb, sb := b.Decompose()
	return math.LocRotScale(la.Lerp(lb, t), ra.Slerp(rb, t), sa.Lerp(sb, t))
}

// ikChain returns owner followed by up to count-1 ancestors; count 0 runs to
// the root.
func ikChain(owner *Bone, count int) []*Bone {
	var chain []*Bone
	for b := owner; b != nil; b = b.Parent {
		chain = append(chain, b)
		if count > 0 && len(chain) == count {
			break
		}
	}
	return chain
}

func (a *Armature) solveIK(fk map[*Bone]math.Mat4) map[*Bone]math.Mat4 {
	overrides := make(map[*Bone]math.Mat4)
	current := func(b *Bone) math.Mat4 {
		if m, ok := overrides[b]; ok {
			return m
		}
		return fk[b]
	}

	for _, owner := range a.bones {
		for _, c := range owner.Constraints {
			if c.Kind != KindIK || c.Influence <= 0 {
				continue
			}
			target := a.byName[c.Subtarget]
			if target == nil || target == owner {
				continue
			}
			chain := ikChain(owner, c.ChainCount)
			mats := make([]math.Mat4, len(chain))
			for i, b := range chain {
				mats[i] = current(b)
			}

			var pole *math.Vec3
			if pb := a.byName[c.PoleSubtarget]; pb != nil && pb != owner {
				p := fk[pb].Translation()
				pole = &p
			}
			solved := solveChain(chain, mats, fk[target].Translation(), pole)
			for i, b := range chain {
				overrides[b] = BlendMatrix(current(b), solved[i], c.Influence)
			}
		}
	}
	return overrides
}

// solveChain swings the chain so the owner's tail reaches goal, then turns
// the owner and its parent about the axis from the parent's head to the tip
// so the joint between them faces pole. Bones above the parent keep their
// swing, and twist about each bone's own axis is kept from the input.
func solveChain(chain []*Bone, in []math.Mat4, goal math.Vec3, pole *math.Vec3) []math.Mat4 {
	mats := append([]math.Mat4(nil), in...)
	tip := func() math.Vec3 {
		return mats[0].TransformPoint(math.Vec3{Y: chain[0].Length()})
	}
	swing := func(k int, q math.Quat, pivot math.Vec3) {
		for i := 0; i <= k; i++ {
			mats[i] = rotateAbout(mats[i], q, pivot)
		}
	}

	if tip().Distance(goal) > ikTolerance {
		for iter := 0; iter < ikIterations; iter++ {
			for k := range chain {
				pivot := mats[k].Translation()
				from, to := tip().Sub(pivot), goal.Sub(pivot)
				if from.LengthSquared() < 1e-18 || to.LengthSquared() < 1e-18 {
					continue
				}
				swing(k, math.QuatRotationBetween(from, to), pivot)
			}
			if tip().Distance(goal) <= ikTolerance {
				break
			}
		}
	}

	if pole == nil || len(chain) < 2 {
		return mats
	}
	root := mats[1].Translation()
	axis := tip().Sub(root).Normalize()
	if axis.IsZero() {
		return mats
	}
	joint := reject(mats[0].Translation().Sub(root), axis)
	want := reject(pole.Sub(root), axis)
	if joint.LengthSquared() < 1e-18 || want.LengthSquared() < 1e-18 {
		return mats
	}
	angle := gomath.Atan2(joint.Cross(want).Dot(axis), joint.Dot(want))
	if gomath.Abs(angle) > 1e-12 {
		swing(1, math.QuatFromAxisAngle(axis, angle), root)
	}
	return mats
}

// reject removes the component of v along unit axis n.
func reject(v, n math.Vec3) math.Vec3 {
	return v.Sub(n.Scale(v.Dot(n)))
}
