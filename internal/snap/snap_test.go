package snap

import (
	"fmt"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Faultbox/midgard-rig/internal/armature"
	"github.com/Faultbox/midgard-rig/internal/config"
	"github.com/Faultbox/midgard-rig/internal/ikchain"
	"github.com/Faultbox/midgard-rig/internal/rigerr"
	"github.com/Faultbox/midgard-rig/pkg/math"
)

func v(x, y, z float64) math.Vec3 { return math.Vec3{X: x, Y: y, Z: z} }

// rig builds hip -> thigh -> shin -> foot with an IK control on the shin.
func rig(t *testing.T) (*armature.Armature, *armature.Constraint) {
	t.Helper()
	arm := armature.New("rig")
	hip := arm.NewBone("hip")
	hip.Head, hip.Tail = v(0, 0, 1), v(0, 0, 1.1)
	thigh := arm.NewBone("thigh.L")
	require.NoError(t, arm.SetParent(thigh, hip, false))
	thigh.Head, thigh.Tail = v(0.1, 0, 1), v(0.1, -0.05, 0.5)
	shin := arm.NewBone("shin.L")
	require.NoError(t, arm.SetParent(shin, thigh, true))
	arm.SetTail(shin, v(0.1, 0, 0.05))
	foot := arm.NewBone("foot.L")
	require.NoError(t, arm.SetParent(foot, shin, true))
	arm.SetTail(foot, v(0.1, -0.15, 0))

	res, err := ikchain.New(config.Default().IK).Generate(arm, shin, 2)
	require.NoError(t, err)
	return arm, res.Constraint
}

func pose(arm *armature.Armature) {
	arm.Bone("thigh.L").Rotation = math.QuatFromAxisAngle(v(1, 0, 0), 0.3)
	arm.Bone("shin.L").Rotation = math.QuatFromAxisAngle(v(1, 0, 0), 0.5)
	// Pulls the target about 0.15 up and 0.1 forward, within reach.
	arm.Bone("ik_shin.L").Location = v(0.02, 0.022, -0.179)
	arm.Invalidate()
}

var wantMembers = []string{"shin.L", "thigh.L", "ik_shin.L", "foot.L", "pole_shin.L"}

func TestDiscoverChains(t *testing.T) {
	arm, c := rig(t)
	extra := arm.NewBone("stray")
	arm.AddConstraint(extra, armature.KindIK, "no target")

	chains := DiscoverChains(arm)
	require.Len(t, chains, 1)
	ch := chains[0]
	assert.Same(t, c, ch.Constraint)
	assert.Equal(t, "shin.L", ch.Effector.Name)
	assert.Equal(t, "thigh.L", ch.Parent.Name)
	assert.Equal(t, "ik_shin.L", ch.Target.Name)
	assert.Equal(t, "pole_shin.L", ch.Pole.Name)
	if diff := cmp.Diff(wantMembers, ch.Names()); diff != "" {
		t.Errorf("members mismatch (-want +got):\n%s", diff)
	}
}

func TestDiscoverChainsTargetChildren(t *testing.T) {
	arm, _ := rig(t)
	heel := arm.NewBone("heel_ctrl")
	require.NoError(t, arm.SetParent(heel, arm.Bone("ik_shin.L"), false))

	ch, ok := FindChain(DiscoverChains(arm), heel)
	require.True(t, ok)
	want := []string{"shin.L", "thigh.L", "ik_shin.L", "heel_ctrl", "foot.L", "pole_shin.L"}
	if diff := cmp.Diff(want, ch.Names()); diff != "" {
		t.Errorf("members mismatch (-want +got):\n%s", diff)
	}
}

func TestChainOrderInvariant(t *testing.T) {
	for _, name := range wantMembers {
		t.Run(name, func(t *testing.T) {
			arm, _ := rig(t)
			pose(arm)
			res, err := New(config.Default().Snap).Snap(arm, arm.Bone(name), 1)
			require.NoError(t, err)
			if diff := cmp.Diff(wantMembers, res.Chain.Names()); diff != "" {
				t.Errorf("active %s: members mismatch (-want +got):\n%s", name, diff)
			}
		})
	}
}

// holds reports whether every bone still evaluates to its matrix in want.
func holds(t *testing.T, arm *armature.Armature, want map[string]math.Mat4, context string) {
	t.Helper()
	arm.Invalidate()
	for name, m := range want {
		got := arm.PoseMatrix(arm.Bone(name))
		assert.True(t, got.ApproxEqual(m, 1e-5), "%s: %s moved\nwant %v\ngot  %v", context, name, m, got)
	}
}

func capture(arm *armature.Armature, names ...string) map[string]math.Mat4 {
	out := make(map[string]math.Mat4, len(names))
	for _, n := range names {
		out[n] = arm.PoseMatrix(arm.Bone(n))
	}
	return out
}

func TestSnapNoPop(t *testing.T) {
	for _, influence := range []float64{0, 0.3, 0.75} {
		arm, c := rig(t)
		c.Influence = influence
		pose(arm)
		before := capture(arm, "thigh.L", "shin.L", "foot.L")

		res, err := New(config.Default().Snap).Snap(arm, arm.Bone("foot.L"), 10)
		require.NoError(t, err)
		assert.True(t, res.Rederived)

		holds(t, arm, before, fmt.Sprintf("influence %v: keyed influence", influence))

		c.Influence = 1
		holds(t, arm, before, fmt.Sprintf("influence %v: full IK", influence))

		c.Influence = 0
		holds(t, arm, before, fmt.Sprintf("influence %v: FK only", influence))
	}
}

// longRig puts a three-bone IK chain on the foot and poses it off-plane.
func longRig(t *testing.T) (*armature.Armature, *armature.Constraint) {
	t.Helper()
	arm, shinIK := rig(t)
	shin := arm.Bone("shin.L")
	arm.RemoveConstraint(shin, shinIK)

	res, err := ikchain.New(config.Default().IK).Generate(arm, arm.Bone("foot.L"), 3)
	require.NoError(t, err)

	arm.Bone("thigh.L").Rotation = math.QuatFromAxisAngle(v(1, 0, 0), 0.3)
	shin.Rotation = math.QuatFromAxisAngle(v(1, 0, 0), 0.5)
	arm.Bone("foot.L").Rotation = math.QuatFromAxisAngle(v(0, 0, 1), 0.4)
	arm.Bone("ik_foot.L").Location = v(0.03, 0.05, 0.1)
	arm.Invalidate()
	return arm, res.Constraint
}

func TestSnapLongChainNoPop(t *testing.T) {
	for _, influence := range []float64{0.4, 0.9} {
		arm, c := longRig(t)
		c.Influence = influence
		before := capture(arm, "thigh.L", "shin.L", "foot.L")

		res, err := New(config.Default().Snap).Snap(arm, arm.Bone("foot.L"), 2)
		require.NoError(t, err)
		assert.Equal(t, []string{"foot.L", "shin.L", "thigh.L", "ik_foot.L", "pole_foot.L"}, res.Chain.Names())

		holds(t, arm, before, fmt.Sprintf("influence %v: keyed influence", influence))

		c.Influence = 1
		holds(t, arm, before, fmt.Sprintf("influence %v: full IK", influence))

		c.Influence = 0
		holds(t, arm, before, fmt.Sprintf("influence %v: FK only", influence))
	}
}

func TestUpperChain(t *testing.T) {
	arm, _ := rig(t)
	thigh := arm.Bone("thigh.L")
	assert.Empty(t, upperChain(thigh, 2))
	assert.Equal(t, []*armature.Bone{arm.Bone("hip")}, upperChain(thigh, 3))
	assert.Equal(t, []*armature.Bone{arm.Bone("hip")}, upperChain(thigh, 0), "zero reaches the root")
}

func TestSnapKeysChain(t *testing.T) {
	arm, c := rig(t)
	c.Influence = 0.5
	pose(arm)

	_, err := New(config.Default().Snap).Snap(arm, arm.Bone("thigh.L"), 7)
	require.NoError(t, err)

	for _, name := range wantMembers {
		for _, path := range []string{armature.PathLocation, armature.PathRotation} {
			curve := arm.Action.Curve(armature.BonePath(name, path), 0)
			require.NotNil(t, curve, "%s %s", name, path)
			assert.Equal(t, []armature.Keyframe{{Frame: 7, Value: curve.Keys[0].Value}}, curve.Keys)
		}
	}
	inf := arm.Action.Curve(armature.ConstraintPath("shin.L", c.Name, armature.PathInfluence), 0)
	require.NotNil(t, inf)
	assert.Equal(t, []armature.Keyframe{{Frame: 7, Value: 0.5}}, inf.Keys)
}

func TestSnapReplaysFromKeys(t *testing.T) {
	arm, c := rig(t)
	c.Influence = 0.3
	pose(arm)
	shin := arm.Bone("shin.L")
	before := arm.PoseMatrix(shin)

	_, err := New(config.Default().Snap).Snap(arm, shin, 4)
	require.NoError(t, err)

	arm.Bone("thigh.L").Rotation = math.QuatIdentity()
	shin.Rotation = math.QuatFromAxisAngle(v(0, 0, 1), 1)
	arm.Bone("ik_shin.L").Location = v(1, 1, 1)
	c.Influence = 1
	arm.ApplyFrame(4)

	assert.InDelta(t, 0.3, c.Influence, 1e-12)
	assert.True(t, arm.PoseMatrix(shin).ApproxEqual(before, 1e-5))
}

func TestSnapFullInfluenceKeepsControls(t *testing.T) {
	arm, c := rig(t)
	c.Influence = 1
	pose(arm)
	target := arm.Bone("ik_shin.L")
	targetPose := arm.PoseMatrix(target)
	shin := arm.Bone("shin.L")
	before := arm.PoseMatrix(shin)

	res, err := New(config.Default().Snap).Snap(arm, shin, 3)
	require.NoError(t, err)
	assert.False(t, res.Rederived)
	assert.True(t, arm.PoseMatrix(target).ApproxEqual(targetPose, 1e-9))
	assert.True(t, arm.PoseMatrix(shin).ApproxEqual(before, 1e-5))
}

func TestSnapPoleKeying(t *testing.T) {
	cfg := config.Default().Snap
	cfg.KeyPole = false
	arm, c := rig(t)
	c.Influence = 0.5
	pose(arm)

	_, err := New(cfg).Snap(arm, arm.Bone("shin.L"), 1)
	require.NoError(t, err)
	var keyed [3]float64
	for i := range keyed {
		curve := arm.Action.Curve(armature.BonePath("pole_shin.L", armature.PathLocation), i)
		require.NotNil(t, curve, "pole is a chain member and keyed with it")
		keyed[i] = curve.Keys[0].Value
	}

	pole := arm.Bone("pole_shin.L")
	assert.False(t, pole.Location.ApproxEqual(math.Vec3FromArray(keyed), 1e-6), "moved pole stays unkeyed")
}

func TestSnapValidation(t *testing.T) {
	r := New(config.Default().Snap)

	_, err := r.Snap(nil, nil, 1)
	assert.ErrorIs(t, err, rigerr.ErrValidation)
	assert.Contains(t, err.Error(), "no armature selected")

	arm, _ := rig(t)
	_, err = r.Snap(arm, nil, 1)
	assert.ErrorIs(t, err, rigerr.ErrValidation)

	_, err = r.Snap(arm, arm.Bone("hip"), 1)
	assert.ErrorIs(t, err, rigerr.ErrValidation)
	assert.Contains(t, err.Error(), "no IK constraint found")
	assert.Empty(t, arm.Action.Curves(), "failed snap writes nothing")
}
