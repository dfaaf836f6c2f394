package armature

import (
	gomath "math"

	"github.com/Faultbox/midgard-rig/pkg/math"
)

// Mesh is a reference mesh: local vertices plus an object-to-world matrix.
// A bound mesh names its armature and carries one vertex group per deform
// bone.
type Mesh struct {
	Name     string
	Vertices []math.Vec3
	World    math.Mat4

	Armature string
	Groups   []VertexGroup
}

// VertexWeight is the weight of one vertex in a group.
type VertexWeight struct {
	Index  int
	Weight float64
}

// VertexGroup binds vertices to the bone of the same name. Weights are
// ordered by vertex index.
type VertexGroup struct {
	Name    string
	Weights []VertexWeight
}

// Group returns the vertex group called name, or nil.
func (m *Mesh) Group(name string) *VertexGroup {
	for i := range m.Groups {
		if m.Groups[i].Name == name {
			return &m.Groups[i]
		}
	}
	return nil
}

// Weight returns the weight of vertex i in group, 0 when absent.
func (m *Mesh) Weight(group string, i int) float64 {
	g := m.Group(group)
	if g == nil {
		return 0
	}
	for _, w := range g.Weights {
		if w.Index == i {
			return w.Weight
		}
	}
	return 0
}

// NewMesh creates a mesh with an identity world matrix.
func NewMesh(name string, vertices []math.Vec3) *Mesh {
	return &Mesh{Name: name, Vertices: vertices, World: math.Identity()}
}

// Sample returns the vertices transformed to world space. The result is a
// fresh slice owned by the caller.
func (m *Mesh) Sample() []math.Vec3 {
	out := make([]math.Vec3, len(m.Vertices))
	for i, v := range m.Vertices {
		out[i] = m.World.TransformPoint(v)
	}
	return out
}

// Bounds is an axis-aligned bounding box.
type Bounds struct {
	Min, Max math.Vec3
}

// BoundsOf returns the bounding box of pts. Empty input gives a zero box.
func BoundsOf(pts []math.Vec3) Bounds {
	if len(pts) == 0 {
		return Bounds{}
	}
	b := Bounds{
		Min: math.Vec3{X: gomath.Inf(1), Y: gomath.Inf(1), Z: gomath.Inf(1)},
		Max: math.Vec3{X: gomath.Inf(-1), Y: gomath.Inf(-1), Z: gomath.Inf(-1)},
	}
	for _, p := range pts {
		b.Min.X = gomath.Min(b.Min.X, p.X)
		b.Min.Y = gomath.Min(b.Min.Y, p.Y)
		b.Min.Z = gomath.Min(b.Min.Z, p.Z)
		b.Max.X = gomath.Max(b.Max.X, p.X)
		b.Max.Y = gomath.Max(b.Max.Y, p.Y)
		b.Max.Z = gomath.Max(b.Max.Z, p.Z)
	}
	return b
}

// Dimensions returns the box extent along each axis.
func (b Bounds) Dimensions() math.Vec3 {
	return b.Max.Sub(b.Min)
}
