// Package scene loads and saves the rig scene document and converts it to
// and from in-memory armatures and meshes.
package scene

import (
	"fmt"
	gomath "math"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/Faultbox/midgard-rig/internal/armature"
	"github.com/Faultbox/midgard-rig/internal/logger"
	"github.com/Faultbox/midgard-rig/pkg/encoding"
	"github.com/Faultbox/midgard-rig/pkg/formats"
	"github.com/Faultbox/midgard-rig/pkg/math"
)

// Scene is a loaded scene: meshes, armatures and the current frame.
type Scene struct {
	Frame     int
	Meshes    []*armature.Mesh
	Armatures []*armature.Armature

	// OBJ references of meshes loaded from files, written back as-is.
	sources map[string]formats.SceneMesh
}

// New returns an empty scene.
func New() *Scene {
	return &Scene{sources: make(map[string]formats.SceneMesh)}
}

// Mesh returns the named mesh, or nil.
func (s *Scene) Mesh(name string) *armature.Mesh {
	for _, m := range s.Meshes {
		if m.Name == name {
			return m
		}
	}
	return nil
}

// Armature returns the named armature, or nil.
func (s *Scene) Armature(name string) *armature.Armature {
	for _, a := range s.Armatures {
		if a.Name == name {
			return a
		}
	}
	return nil
}

// Load reads a scene file. OBJ paths resolve against the file's directory.
func Load(path string) (*Scene, error) {
	doc, err := formats.ParseSceneFile(path)
	if err != nil {
		return nil, err
	}
	s, err := Build(doc, filepath.Dir(path))
	if err != nil {
		return nil, fmt.Errorf("building scene %s: %w", path, err)
	}
	logger.Debug("scene loaded",
		zap.String("path", path),
		zap.Int("meshes", len(s.Meshes)),
		zap.Int("armatures", len(s.Armatures)))
	return s, nil
}

// Save writes the scene to path.
func (s *Scene) Save(path string) error {
	if err := formats.WriteSceneFile(path, s.Document()); err != nil {
		return fmt.Errorf("saving scene %s: %w", path, err)
	}
	logger.Debug("scene saved", zap.String("path", path))
	return nil
}

// Build converts a parsed document into a scene.
func Build(doc *formats.Scene, dir string) (*Scene, error) {
	s := New()
	s.Frame = doc.Frame
	for _, md := range doc.Meshes {
		m, err := buildMesh(md, dir)
		if err != nil {
			return nil, err
		}
		if md.OBJ != "" {
			s.sources[m.Name] = md
		}
		s.Meshes = append(s.Meshes, m)
	}
	for _, ad := range doc.Armatures {
		a, err := buildArmature(ad)
		if err != nil {
			return nil, err
		}
		s.Armatures = append(s.Armatures, a)
	}
	return s, nil
}

func buildMesh(md formats.SceneMesh, dir string) (*armature.Mesh, error) {
	verts := md.Vertices
	if md.OBJ != "" {
		path := md.OBJ
		if !filepath.IsAbs(path) {
			path = filepath.Join(dir, path)
		}
		obj, err := formats.ParseOBJFile(path)
		if err != nil {
			return nil, fmt.Errorf("mesh %q: %w", md.Name, err)
		}
		verts = obj.Vertices
		if md.OBJObject != "" {
			if verts = obj.Object(md.OBJObject); verts == nil {
				return nil, fmt.Errorf("%w: mesh %q: no object %q in %s", formats.ErrInvalidScene, md.Name, md.OBJObject, md.OBJ)
			}
		}
	}
	pts := make([]math.Vec3, len(verts))
	for i, v := range verts {
		pts[i] = math.Vec3FromArray(v)
	}
	m := armature.NewMesh(encoding.NormalizeName(md.Name), pts)
	if md.World != nil {
		m.World = math.Mat4(*md.World)
	}
	m.Armature = encoding.NormalizeName(md.Armature)
	for _, gd := range md.Groups {
		g := armature.VertexGroup{Name: encoding.NormalizeName(gd.Name)}
		for _, w := range gd.Weights {
			i := int(w[0])
			if i >= len(pts) {
				return nil, fmt.Errorf("%w: mesh %q group %q: vertex %d out of range", formats.ErrInvalidScene, md.Name, gd.Name, i)
			}
			g.Weights = append(g.Weights, armature.VertexWeight{Index: i, Weight: w[1]})
		}
		m.Groups = append(m.Groups, g)
	}
	return m, nil
}

func parseID(s string) (uuid.UUID, error) {
	if s == "" {
		return uuid.New(), nil
	}
	id, err := uuid.Parse(s)
	if err != nil {
		return uuid.Nil, fmt.Errorf("%w: id %q: %v", formats.ErrInvalidScene, s, err)
	}
	return id, nil
}

func buildArmature(ad formats.SceneArmature) (*armature.Armature, error) {
	a := armature.New(encoding.NormalizeName(ad.Name))
	id, err := parseID(ad.ID)
	if err != nil {
		return nil, err
	}
	a.ID = id
	if ad.World != nil {
		a.World = math.Mat4(*ad.World)
	}
	if ad.PosePosition != "" {
		a.PosePosition = armature.PosePosition(ad.PosePosition)
	}
	a.MirrorX = ad.MirrorX

	for _, bd := range ad.Bones {
		b, err := buildBone(bd)
		if err != nil {
			return nil, err
		}
		if err := a.AdoptBone(b); err != nil {
			return nil, err
		}
		for _, cd := range bd.Constraints {
			if err := buildConstraint(a, b, cd); err != nil {
				return nil, err
			}
		}
	}
	// Parents resolve after every bone exists. Stored heads are already
	// consistent, so links are set without snapping.
	for _, bd := range ad.Bones {
		if bd.Parent == "" {
			continue
		}
		b := a.Bone(encoding.NormalizeName(bd.Name))
		b.Parent = a.Bone(encoding.NormalizeName(bd.Parent))
		b.Connected = bd.Connected
		if b.IsDescendantOf(b) {
			return nil, fmt.Errorf("%w: bone %q is its own ancestor", formats.ErrInvalidScene, b.Name)
		}
	}

	for _, rd := range ad.Registry {
		owner, err := uuid.Parse(rd.Owner)
		if err != nil {
			return nil, fmt.Errorf("%w: registry owner %q: %v", formats.ErrInvalidScene, rd.Owner, err)
		}
		entity, err := uuid.Parse(rd.Entity)
		if err != nil {
			return nil, fmt.Errorf("%w: registry entity %q: %v", formats.ErrInvalidScene, rd.Entity, err)
		}
		a.Registry.Bind(armature.Role{Kind: armature.RoleKind(rd.Kind), Owner: owner, Index: rd.Index}, entity)
	}

	for _, cd := range ad.Action {
		for _, k := range cd.Keys {
			a.Action.Insert(cd.Path, cd.Index, int(gomath.Round(k[0])), k[1])
		}
	}
	a.Invalidate()
	return a, nil
}

func buildBone(bd formats.SceneBone) (*armature.Bone, error) {
	id, err := parseID(bd.ID)
	if err != nil {
		return nil, err
	}
	b := &armature.Bone{
		ID:       id,
		Name:     encoding.NormalizeName(bd.Name),
		Head:     math.Vec3FromArray(bd.Head),
		Tail:     math.Vec3FromArray(bd.Tail),
		Roll:     bd.Roll,
		Deform:   bd.Deform == nil || *bd.Deform,
		Envelope: bd.Envelope,
		Color:    bd.Color,
		Rotation: math.QuatIdentity(),
		Scale:    math.Vec3{X: 1, Y: 1, Z: 1},
	}
	if b.Envelope == 0 {
		b.Envelope = 0.25
	}
	if p := bd.Pose; p != nil {
		if p.Location != nil {
			b.Location = math.Vec3FromArray(*p.Location)
		}
		if p.Rotation != nil {
			r := *p.Rotation
			b.Rotation = math.Quat{W: r[0], X: r[1], Y: r[2], Z: r[3]}
		}
		if p.Scale != nil {
			b.Scale = math.Vec3FromArray(*p.Scale)
		}
	}
	return b, nil
}

func buildConstraint(a *armature.Armature, b *armature.Bone, cd formats.SceneConstraint) error {
	kind := armature.ConstraintKind(strings.ToUpper(cd.Kind))
	if !kind.Valid() {
		return fmt.Errorf("%w: constraint %q on %q: unknown kind %q", formats.ErrInvalidScene, cd.Name, b.Name, cd.Kind)
	}
	id, err := parseID(cd.ID)
	if err != nil {
		return err
	}
	c := a.AddConstraint(b, kind, encoding.NormalizeName(cd.Name))
	c.ID = id
	if cd.Influence != nil {
		c.Influence = *cd.Influence
	}
	c.Subtarget = encoding.NormalizeName(cd.Subtarget)
	c.PoleSubtarget = encoding.NormalizeName(cd.PoleSubtarget)
	c.PoleAngle = cd.PoleAngle
	c.ChainCount = cd.ChainCount
	if cd.UseStretch != nil {
		c.UseStretch = *cd.UseStretch
	}
	if cd.Axes != "" {
		axes := strings.ToLower(cd.Axes)
		c.UseX = strings.Contains(axes, "x")
		c.UseY = strings.Contains(axes, "y")
		c.UseZ = strings.Contains(axes, "z")
	}
	if cd.TargetSpace != "" {
		c.TargetSpace = armature.Space(cd.TargetSpace)
	}
	if cd.OwnerSpace != "" {
		c.OwnerSpace = armature.Space(cd.OwnerSpace)
	}
	c.HeadTail = cd.HeadTail
	c.UseOffset = cd.UseOffset
	return nil
}

// Document converts the scene back into a document.
func (s *Scene) Document() *formats.Scene {
	doc := &formats.Scene{Version: formats.SceneVersion, Frame: s.Frame}
	for _, m := range s.Meshes {
		if src, ok := s.sources[m.Name]; ok {
			src.World = matrix(m.World)
			src.Armature, src.Groups = m.Armature, groupsDoc(m)
			doc.Meshes = append(doc.Meshes, src)
			continue
		}
		md := formats.SceneMesh{Name: m.Name, World: matrix(m.World), Armature: m.Armature, Groups: groupsDoc(m)}
		md.Vertices = make([][3]float64, len(m.Vertices))
		for i, v := range m.Vertices {
			md.Vertices[i] = v.Array()
		}
		doc.Meshes = append(doc.Meshes, md)
	}
	for _, a := range s.Armatures {
		doc.Armatures = append(doc.Armatures, armatureDoc(a))
	}
	return doc
}

func groupsDoc(m *armature.Mesh) []formats.SceneGroup {
	var out []formats.SceneGroup
	for _, g := range m.Groups {
		gd := formats.SceneGroup{Name: g.Name, Weights: make([][2]float64, len(g.Weights))}
		for i, w := range g.Weights {
			gd.Weights[i] = [2]float64{float64(w.Index), w.Weight}
		}
		out = append(out, gd)
	}
	return out
}

// matrix returns nil for the identity so documents stay short.
func matrix(m math.Mat4) *[16]float64 {
	if m.ApproxEqual(math.Identity(), 0) {
		return nil
	}
	out := [16]float64(m)
	return &out
}

func armatureDoc(a *armature.Armature) formats.SceneArmature {
	ad := formats.SceneArmature{
		ID:           a.ID.String(),
		Name:         a.Name,
		World:        matrix(a.World),
		PosePosition: string(a.PosePosition),
		MirrorX:      a.MirrorX,
	}
	for _, b := range a.Bones() {
		ad.Bones = append(ad.Bones, boneDoc(b))
	}
	for _, e := range a.Registry.Entries() {
		ad.Registry = append(ad.Registry, formats.SceneRole{
			Kind:   string(e.Role.Kind),
			Owner:  e.Role.Owner.String(),
			Index:  e.Role.Index,
			Entity: e.Entity.String(),
		})
	}
	for _, c := range a.Action.Curves() {
		cd := formats.SceneCurve{Path: c.DataPath, Index: c.Index}
		for _, k := range c.Keys {
			cd.Keys = append(cd.Keys, [2]float64{float64(k.Frame), k.Value})
		}
		ad.Action = append(ad.Action, cd)
	}
	return ad
}

func boneDoc(b *armature.Bone) formats.SceneBone {
	bd := formats.SceneBone{
		ID:        b.ID.String(),
		Name:      b.Name,
		Connected: b.Connected,
		Head:      b.Head.Array(),
		Tail:      b.Tail.Array(),
		Roll:      b.Roll,
		Envelope:  b.Envelope,
		Color:     b.Color,
	}
	if b.Parent != nil {
		bd.Parent = b.Parent.Name
	}
	if !b.Deform {
		deform := false
		bd.Deform = &deform
	}

	var pose formats.ScenePose
	if !b.Location.IsZero() {
		loc := b.Location.Array()
		pose.Location = &loc
	}
	if b.Rotation != math.QuatIdentity() {
		q := b.Rotation
		rot := [4]float64{q.W, q.X, q.Y, q.Z}
		pose.Rotation = &rot
	}
	if b.Scale != (math.Vec3{X: 1, Y: 1, Z: 1}) {
		scale := b.Scale.Array()
		pose.Scale = &scale
	}
	if pose != (formats.ScenePose{}) {
		bd.Pose = &pose
	}

	for _, c := range b.Constraints {
		bd.Constraints = append(bd.Constraints, constraintDoc(c))
	}
	return bd
}

func constraintDoc(c *armature.Constraint) formats.SceneConstraint {
	cd := formats.SceneConstraint{
		ID:        c.ID.String(),
		Name:      c.Name,
		Kind:      string(c.Kind),
		Subtarget: c.Subtarget,
	}
	if c.Influence != 1 {
		inf := c.Influence
		cd.Influence = &inf
	}
	switch c.Kind {
	case armature.KindIK:
		cd.PoleSubtarget = c.PoleSubtarget
		cd.PoleAngle = c.PoleAngle
		cd.ChainCount = c.ChainCount
		if !c.UseStretch {
			stretch := false
			cd.UseStretch = &stretch
		}
	case armature.KindCopyRotation:
		cd.Axes = axes(c)
		cd.TargetSpace = string(c.TargetSpace)
		cd.OwnerSpace = string(c.OwnerSpace)
	case armature.KindCopyLocation:
		cd.HeadTail = c.HeadTail
		cd.UseOffset = c.UseOffset
	case armature.KindDampedTrack:
		cd.HeadTail = c.HeadTail
	}
	return cd
}

// axes returns "" when every axis is on, "none" when none is.
func axes(c *armature.Constraint) string {
	var sb strings.Builder
	if c.UseX {
		sb.WriteByte('x')
	}
	if c.UseY {
		sb.WriteByte('y')
	}
	if c.UseZ {
		sb.WriteByte('z')
	}
	switch sb.String() {
	case "xyz":
		return ""
	case "":
		return "none"
	}
	return sb.String()
}
