package placement

import (
	"sort"

	"go.uber.org/zap"

	"github.com/Faultbox/midgard-rig/internal/armature"
	"github.com/Faultbox/midgard-rig/internal/config"
	"github.com/Faultbox/midgard-rig/internal/logger"
	"github.com/Faultbox/midgard-rig/internal/rigerr"
	"github.com/Faultbox/midgard-rig/pkg/math"
)

// BindResult describes an envelope binding.
type BindResult struct {
	Groups int
	// Vertices outside every envelope, bound to their nearest bone.
	Nearest int
}

// BindEnvelopeWeights parents mesh to arm and replaces its vertex groups
// with one group per deform bone. A vertex inside a bone's rest envelope
// gets 1 - d/envelope, d being its distance to the bone segment; a vertex
// outside every envelope goes fully to the nearest deform bone. Each vertex
// keeps its cfg.MaxInfluences strongest weights, normalized to sum to 1.
func BindEnvelopeWeights(mesh *armature.Mesh, arm *armature.Armature, cfg config.BindConfig) (BindResult, error) {
	if mesh == nil {
		return BindResult{}, rigerr.Configuration("no object set in the scene")
	}
	if arm == nil {
		return BindResult{}, rigerr.Configuration("no armature set in the scene")
	}
	var bones []*armature.Bone
	for _, b := range arm.Bones() {
		if b.Deform && b.Length() > 0 {
			bones = append(bones, b)
		}
	}
	if len(bones) == 0 {
		return BindResult{}, rigerr.Validation("armature %q has no deform bones", arm.Name)
	}

	type influence struct {
		bone   int
		weight float64
	}
	toArm := arm.World.Inverse()
	groups := make([][]armature.VertexWeight, len(bones))
	res := BindResult{Groups: len(bones)}

	for i, p := range mesh.Sample() {
		p = toArm.TransformPoint(p)
		var infl []influence
		nearest, nearestDist := 0, -1.0
		for j, b := range bones {
			d := math.SegmentDistance(p, b.Head, b.Tail)
			if nearestDist < 0 || d < nearestDist {
				nearest, nearestDist = j, d
			}
			if b.Envelope > 0 && d < b.Envelope {
				if w := 1 - d/b.Envelope; w >= cfg.MinWeight {
					infl = append(infl, influence{j, w})
				}
			}
		}
		if len(infl) == 0 {
			infl = []influence{{nearest, 1}}
			res.Nearest++
		}

		// Strongest first, armature order on ties.
		sort.SliceStable(infl, func(a, b int) bool { return infl[a].weight > infl[b].weight })
		if len(infl) > cfg.MaxInfluences {
			infl = infl[:cfg.MaxInfluences]
		}
		var sum float64
		for _, in := range infl {
			sum += in.weight
		}
		for _, in := range infl {
			groups[in.bone] = append(groups[in.bone], armature.VertexWeight{Index: i, Weight: in.weight / sum})
		}
	}

	mesh.Armature = arm.Name
	mesh.Groups = make([]armature.VertexGroup, len(bones))
	for j, b := range bones {
		mesh.Groups[j] = armature.VertexGroup{Name: b.Name, Weights: groups[j]}
	}

	logger.Info("mesh bound",
		zap.String("mesh", mesh.Name),
		zap.String("armature", arm.Name),
		zap.Int("groups", res.Groups),
		zap.Int("nearest", res.Nearest))
	return res, nil
}
