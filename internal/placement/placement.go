// Package placement positions a humanoid skeleton inside a reference mesh.
//
// The estimator is a heuristic tuned for a single standing human facing -Y
// with its feet on z=0 and its left side on +X. All offsets are measured in
// "tall" units, the mesh height divided by a fixed anthropometric divisor, so
// the result scales with the mesh.
package placement

import (
	"go.uber.org/zap"

	"github.com/Faultbox/midgard-rig/internal/armature"
	"github.com/Faultbox/midgard-rig/internal/config"
	"github.com/Faultbox/midgard-rig/internal/logger"
	"github.com/Faultbox/midgard-rig/internal/rigerr"
	"github.com/Faultbox/midgard-rig/pkg/math"
)

// Group is the anatomical group a placed bone belongs to.
type Group string

// Bone groups.
const (
	GroupSpine Group = "spine"
	GroupArm   Group = "arm"
	GroupLeg   Group = "leg"
)

// Estimator places spine, arm and leg bones from mesh vertices.
type Estimator struct {
	Config config.PlacementConfig

	// Decorate is called once per placed bone. Nil assigns the group colour.
	Decorate func(b *armature.Bone, g Group)
}

// New returns an estimator with the default colour decoration.
func New(cfg config.PlacementConfig) *Estimator {
	return &Estimator{Config: cfg}
}

// Result describes a placement run.
type Result struct {
	Tall      float64
	Bones     []*armature.Bone
	Fallbacks []string
}

// Place moves (creating when missing) every configured bone of arm to fit
// mesh. Empty vertex bands fall back to fixed anchors and are logged, never
// returned.
func (e *Estimator) Place(mesh *armature.Mesh, arm *armature.Armature) (Result, error) {
	if mesh == nil {
		return Result{}, rigerr.Configuration("no object set in the scene")
	}
	if arm == nil {
		return Result{}, rigerr.Configuration("no armature set in the scene")
	}
	if len(mesh.Vertices) == 0 {
		return Result{}, rigerr.Configuration("mesh %q has no vertices", mesh.Name)
	}

	world := mesh.Sample()
	dims := armature.BoundsOf(world).Dimensions()
	if dims.Z <= 0 {
		return Result{}, rigerr.Configuration("mesh %q has zero height", mesh.Name)
	}

	restore := arm.EnterRestPosition()
	defer restore()

	toArm := arm.World.Inverse()
	pts := make([]math.Vec3, len(world))
	for i, p := range world {
		pts[i] = toArm.TransformPoint(p)
	}

	r := &run{
		cfg:   e.Config,
		arm:   arm,
		pts:   pts,
		tall:  dims.Z / e.Config.HeightDivisor,
		width: dims.X / 2,
	}
	r.spine()
	r.arms()
	r.legs()

	for _, pb := range r.placed {
		pb.bone.Envelope = pb.bone.Length() * e.Config.EnvelopeRatio
		if e.Decorate != nil {
			e.Decorate(pb.bone, pb.group)
		} else {
			pb.bone.Color = e.color(pb.group)
		}
	}
	arm.Invalidate()

	res := Result{Tall: r.tall, Fallbacks: r.fallbacks}
	for _, pb := range r.placed {
		res.Bones = append(res.Bones, pb.bone)
	}
	logger.Info("rig placed",
		zap.String("armature", arm.Name),
		zap.String("mesh", mesh.Name),
		zap.Float64("tall", r.tall),
		zap.Int("bones", len(res.Bones)),
		zap.Int("fallbacks", len(r.fallbacks)))
	return res, nil
}

func (e *Estimator) color(g Group) string {
	switch g {
	case GroupSpine:
		return e.Config.SpineColor
	case GroupArm:
		return e.Config.ArmColor
	case GroupLeg:
		return e.Config.LegColor
	}
	return ""
}

type placedBone struct {
	bone  *armature.Bone
	group Group
}

// run holds the state of one placement pass.
type run struct {
	cfg   config.PlacementConfig
	arm   *armature.Armature
	pts   []math.Vec3
	tall  float64
	width float64

	placed    []placedBone
	fallbacks []string
}

// bone returns the named bone, creating it under parent when missing.
func (r *run) bone(name string, g Group, parent *armature.Bone, connected bool) *armature.Bone {
	b := r.arm.Bone(name)
	if b == nil {
		b = r.arm.NewBone(name)
		if parent != nil {
			// Parent was created or found earlier in this run, never below b.
			_ = r.arm.SetParent(b, parent, connected)
		}
	}
	b.Deform = true
	r.placed = append(r.placed, placedBone{bone: b, group: g})
	return b
}

func (r *run) units(a [3]float64) math.Vec3 {
	return math.Vec3FromArray(a).Scale(r.tall)
}

func (r *run) fallback(anchor string, p math.Vec3) math.Vec3 {
	r.fallbacks = append(r.fallbacks, anchor)
	logger.Warn("vertex band empty, using fallback anchor",
		zap.String("anchor", anchor),
		zap.Error(rigerr.Degenerate("no vertices for %s", anchor)))
	return p
}

func filter(pts []math.Vec3, keep func(p math.Vec3) bool) []math.Vec3 {
	var out []math.Vec3
	for _, p := range pts {
		if keep(p) {
			out = append(out, p)
		}
	}
	return out
}

// extreme returns the point with the largest key. ok is false for empty input.
func extreme(pts []math.Vec3, key func(p math.Vec3) float64) (math.Vec3, bool) {
	if len(pts) == 0 {
		return math.Vec3{}, false
	}
	best := pts[0]
	for _, p := range pts[1:] {
		if key(p) > key(best) {
			best = p
		}
	}
	return best, true
}

func byX(p math.Vec3) float64    { return p.X }
func byY(p math.Vec3) float64    { return p.Y }
func byZ(p math.Vec3) float64    { return p.Z }
func byNegY(p math.Vec3) float64 { return -p.Y }

func abs(x float64) float64 {
	if x < 0 {
		return -x
	}
	return x
}

func (r *run) spine() {
	cfg := r.cfg
	centerline := filter(r.pts, func(p math.Vec3) bool { return abs(p.X) < cfg.CenterlineBand*r.tall })
	crown, ok := extreme(centerline, byZ)
	if !ok {
		crown, _ = extreme(r.pts, byZ)
	}

	z := cfg.SpineStart * r.tall
	band := cfg.SpineBand * r.tall
	var prev *armature.Bone
	for i, name := range cfg.SpineBones {
		b := r.bone(name, GroupSpine, prev, true)
		if prev != nil && b.Parent != prev {
			_ = r.arm.SetParent(b, prev, true)
		}
		b.Roll = 0

		head := math.Vec3{Z: z}
		z += cfg.SpineLengths[i] * r.tall
		tail := math.Vec3{Z: z}

		near := filter(centerline, func(p math.Vec3) bool {
			return abs(p.Z-head.Z) < band && abs(p.X-head.X) < band
		})
		maxY, okMax := extreme(near, byY)
		minY, _ := extreme(near, byNegY)
		var y float64
		if okMax {
			y = maxY.Y*cfg.SpineHeadBlend + minY.Y*(1-cfg.SpineHeadBlend)
		} else {
			y = r.fallback(name, math.Vec3{Y: cfg.SpineFallbackY[i]*r.tall + crown.Y}).Y
		}
		head.Y, tail.Y = y, y

		r.arm.SetHead(b, head)
		r.arm.SetTail(b, tail)
		prev = b
	}
}

func (r *run) arms() {
	cfg := r.cfg
	names := cfg.ArmBones
	shoulder := r.bone(names[0], GroupArm, r.arm.Bone(cfg.ArmRoot), false)
	upper := r.bone(names[1], GroupArm, shoulder, false)
	forearm := r.bone(names[2], GroupArm, upper, true)
	hand := r.bone(names[3], GroupArm, forearm, true)

	side := filter(r.pts, func(p math.Vec3) bool { return p.X > 0 })

	// Armpit: highest vertex clear of the torso.
	armpit, ok := extreme(filter(side, func(p math.Vec3) bool { return p.X > cfg.ArmpitMinX*r.tall }), byZ)
	if !ok {
		armpit = r.fallback("armpit", r.units(cfg.Fallback.Armpit))
	}
	upperHead := armpit.Add(r.units(cfg.ArmpitOffset))
	r.arm.SetHead(upper, upperHead)
	r.arm.SetHead(shoulder, upperHead.Sub(math.Vec3{X: cfg.ShoulderLength * r.tall}))
	r.arm.SetTail(shoulder, upperHead.Add(math.Vec3{Z: cfg.ShoulderLift * r.tall}))

	// Hand tip: furthest vertex near the half width.
	handTail, ok := extreme(filter(side, func(p math.Vec3) bool {
		return abs(p.X-r.width) < cfg.HandBand*r.tall
	}), byX)
	if !ok {
		handTail = r.fallback("hand", r.units(cfg.Fallback.Hand))
	}
	r.arm.SetTail(hand, handTail)

	// Elbow: midpoint of the front and back of the arm halfway to the hand.
	mid := upperHead.Lerp(handTail, 0.5)
	elbowBand := cfg.ElbowBand * r.tall
	elbowPts := filter(side, func(p math.Vec3) bool {
		return abs(p.X-mid.X) < elbowBand && abs(p.Z-mid.Z) < elbowBand
	})
	var elbow math.Vec3
	if front, ok := extreme(elbowPts, byY); ok {
		back, _ := extreme(elbowPts, byNegY)
		elbow = front.Lerp(back, 0.5)
	} else {
		elbow = r.fallback("elbow", mid)
	}
	r.arm.SetTail(upper, elbow)

	// Wrist: back of the arm near the wrist line, pulled inward.
	wrist, ok := extreme(filter(r.pts, func(p math.Vec3) bool {
		return abs(p.X-r.width*cfg.WristWidth) < cfg.WristBand*r.tall
	}), byY)
	if !ok {
		wrist = r.fallback("wrist", r.units(cfg.Fallback.Wrist))
	}
	wrist.Y -= cfg.WristInset * r.tall
	r.arm.SetTail(forearm, wrist)
}

func (r *run) legs() {
	cfg := r.cfg
	names := cfg.LegBones
	thigh := r.bone(names[0], GroupLeg, r.arm.Bone(cfg.LegRoot), false)
	shin := r.bone(names[1], GroupLeg, thigh, true)
	foot := r.bone(names[2], GroupLeg, shin, true)
	toe := r.bone(names[3], GroupLeg, foot, true)

	hip := math.Vec3{X: cfg.HipX * r.tall}
	if root := r.arm.Bone(cfg.SpineBones[0]); root != nil {
		hip.Y, hip.Z = root.Head.Y, root.Head.Z
	}
	r.arm.SetHead(thigh, hip)

	band := cfg.LegBand * r.tall
	// front returns the most forward (-Y) vertex at height h on the left side.
	front := func(anchor string, h float64, fb [3]float64) math.Vec3 {
		p, ok := extreme(filter(r.pts, func(p math.Vec3) bool {
			return abs(p.Z-h*r.tall) < band && p.X > 0
		}), byNegY)
		if !ok {
			p = r.fallback(anchor, r.units(fb))
		}
		return p
	}

	knee := front("knee", cfg.KneeHeight, cfg.Fallback.Knee)
	knee.Y += cfg.KneeInset * r.tall
	r.arm.SetTail(thigh, knee)

	ankle := front("ankle", cfg.AnkleHeight, cfg.Fallback.Ankle)
	ankle.Y += cfg.AnkleInset * r.tall
	r.arm.SetTail(shin, ankle)

	toeHead := front("toe", cfg.ToeHeight, cfg.Fallback.Toe)
	toeHead.Y += cfg.ToeInset * r.tall
	r.arm.SetTail(foot, toeHead)
	r.arm.SetTail(toe, toeHead.Sub(math.Vec3{Y: cfg.ToeLength * r.tall}))
}

// SelectNearBones returns the indices of mesh vertices whose world position
// lies within threshold of any of the given bones' rest segments.
func SelectNearBones(mesh *armature.Mesh, arm *armature.Armature, bones []*armature.Bone, threshold float64) ([]int, error) {
	if mesh == nil {
		return nil, rigerr.Configuration("no object set in the scene")
	}
	if arm == nil {
		return nil, rigerr.Configuration("no armature set in the scene")
	}
	if len(bones) == 0 {
		return nil, rigerr.Validation("no bones selected")
	}

	type segment struct{ head, tail math.Vec3 }
	segs := make([]segment, 0, len(bones))
	for _, b := range bones {
		segs = append(segs, segment{arm.World.TransformPoint(b.Head), arm.World.TransformPoint(b.Tail)})
	}

	var out []int
	for i, p := range mesh.Sample() {
		for _, s := range segs {
			if math.SegmentDistance(p, s.head, s.tail) <= threshold {
				out = append(out, i)
				break
			}
		}
	}
	return out, nil
}
