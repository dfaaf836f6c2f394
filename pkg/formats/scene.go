package formats

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// Scene document errors.
var (
	ErrUnsupportedSceneVersion = errors.New("unsupported scene version")
	ErrInvalidScene            = errors.New("invalid scene")
)

// SceneVersion is the document version written by MarshalScene.
const SceneVersion = 1

// Scene is the YAML rig scene document: reference meshes, armatures and the
// current frame. Vectors are [x, y, z], quaternions [w, x, y, z] and matrices
// 16 column-major floats.
type Scene struct {
	Version   int             `yaml:"version"`
	Frame     int             `yaml:"frame"`
	Meshes    []SceneMesh     `yaml:"meshes,omitempty"`
	Armatures []SceneArmature `yaml:"armatures,omitempty"`
}

// SceneMesh is a reference mesh. Vertices come either inline or from an OBJ
// file; OBJ paths are relative to the scene file. OBJObject picks one object
// from the file, empty takes every vertex. A bound mesh names its armature
// and lists its vertex groups.
type SceneMesh struct {
	Name      string       `yaml:"name"`
	OBJ       string       `yaml:"obj,omitempty"`
	OBJObject string       `yaml:"obj_object,omitempty"`
	Vertices  [][3]float64 `yaml:"vertices,omitempty,flow"`
	World     *[16]float64 `yaml:"world,omitempty,flow"`
	Armature  string       `yaml:"armature,omitempty"`
	Groups    []SceneGroup `yaml:"groups,omitempty"`
}

// SceneGroup is a vertex group with [vertex index, weight] pairs.
type SceneGroup struct {
	Name    string       `yaml:"name"`
	Weights [][2]float64 `yaml:"weights,flow"`
}

// SceneArmature is an armature with its bones, role registry and action.
type SceneArmature struct {
	ID           string       `yaml:"id,omitempty"`
	Name         string       `yaml:"name"`
	World        *[16]float64 `yaml:"world,omitempty,flow"`
	PosePosition string       `yaml:"pose_position,omitempty"`
	MirrorX      bool         `yaml:"mirror_x,omitempty"`
	Bones        []SceneBone  `yaml:"bones"`
	Registry     []SceneRole  `yaml:"registry,omitempty"`
	Action       []SceneCurve `yaml:"action,omitempty"`
}

// SceneBone is a bone's rest geometry, pose basis and constraints.
type SceneBone struct {
	ID          string            `yaml:"id,omitempty"`
	Name        string            `yaml:"name"`
	Parent      string            `yaml:"parent,omitempty"`
	Connected   bool              `yaml:"connected,omitempty"`
	Head        [3]float64        `yaml:"head,flow"`
	Tail        [3]float64        `yaml:"tail,flow"`
	Roll        float64           `yaml:"roll,omitempty"`
	Deform      *bool             `yaml:"deform,omitempty"`
	Envelope    float64           `yaml:"envelope,omitempty"`
	Color       string            `yaml:"color,omitempty"`
	Pose        *ScenePose        `yaml:"pose,omitempty"`
	Constraints []SceneConstraint `yaml:"constraints,omitempty"`
}

// ScenePose is a bone's pose basis. Missing fields mean rest.
type ScenePose struct {
	Location *[3]float64 `yaml:"location,omitempty,flow"`
	Rotation *[4]float64 `yaml:"rotation,omitempty,flow"`
	Scale    *[3]float64 `yaml:"scale,omitempty,flow"`
}

// SceneConstraint is one constraint. Only the fields of its kind are used.
type SceneConstraint struct {
	ID            string   `yaml:"id,omitempty"`
	Name          string   `yaml:"name"`
	Kind          string   `yaml:"kind"`
	Influence     *float64 `yaml:"influence,omitempty"`
	Subtarget     string   `yaml:"subtarget,omitempty"`
	PoleSubtarget string   `yaml:"pole_subtarget,omitempty"`
	PoleAngle     float64  `yaml:"pole_angle,omitempty"`
	ChainCount    int      `yaml:"chain_count,omitempty"`
	UseStretch    *bool    `yaml:"use_stretch,omitempty"`
	Axes          string   `yaml:"axes,omitempty"` // subset of "xyz" for copy rotation
	TargetSpace   string   `yaml:"target_space,omitempty"`
	OwnerSpace    string   `yaml:"owner_space,omitempty"`
	HeadTail      float64  `yaml:"head_tail,omitempty"`
	UseOffset     bool     `yaml:"use_offset,omitempty"`
}

// SceneRole is one registry binding.
type SceneRole struct {
	Kind   string `yaml:"kind"`
	Owner  string `yaml:"owner"`
	Index  int    `yaml:"index,omitempty"`
	Entity string `yaml:"entity"`
}

// SceneCurve is an F-curve: a data path, a channel index and its keys as
// [frame, value] pairs.
type SceneCurve struct {
	Path  string       `yaml:"path"`
	Index int          `yaml:"index"`
	Keys  [][2]float64 `yaml:"keys,flow"`
}

// Armature returns the named armature document, or nil.
func (s *Scene) Armature(name string) *SceneArmature {
	for i := range s.Armatures {
		if s.Armatures[i].Name == name {
			return &s.Armatures[i]
		}
	}
	return nil
}

// Mesh returns the named mesh document, or nil.
func (s *Scene) Mesh(name string) *SceneMesh {
	for i := range s.Meshes {
		if s.Meshes[i].Name == name {
			return &s.Meshes[i]
		}
	}
	return nil
}

// Validate checks names and cross references inside the document.
func (s *Scene) Validate() error {
	meshes := make(map[string]bool)
	for i, m := range s.Meshes {
		if m.Name == "" {
			return fmt.Errorf("%w: mesh %d has no name", ErrInvalidScene, i)
		}
		if meshes[m.Name] {
			return fmt.Errorf("%w: duplicate mesh %q", ErrInvalidScene, m.Name)
		}
		meshes[m.Name] = true
		if m.OBJ != "" && len(m.Vertices) > 0 {
			return fmt.Errorf("%w: mesh %q has both obj and inline vertices", ErrInvalidScene, m.Name)
		}
		if err := validateGroups(m); err != nil {
			return err
		}
	}

	armatures := make(map[string]bool)
	for _, a := range s.Armatures {
		if a.Name == "" {
			return fmt.Errorf("%w: armature has no name", ErrInvalidScene)
		}
		if armatures[a.Name] {
			return fmt.Errorf("%w: duplicate armature %q", ErrInvalidScene, a.Name)
		}
		armatures[a.Name] = true

		bones := make(map[string]bool, len(a.Bones))
		for _, b := range a.Bones {
			if b.Name == "" {
				return fmt.Errorf("%w: armature %q has an unnamed bone", ErrInvalidScene, a.Name)
			}
			if bones[b.Name] {
				return fmt.Errorf("%w: duplicate bone %q in %q", ErrInvalidScene, b.Name, a.Name)
			}
			bones[b.Name] = true
		}
		for _, b := range a.Bones {
			if b.Parent != "" && !bones[b.Parent] {
				return fmt.Errorf("%w: bone %q has unknown parent %q", ErrInvalidScene, b.Name, b.Parent)
			}
			for _, c := range b.Constraints {
				if c.Kind == "" {
					return fmt.Errorf("%w: constraint %q on %q has no kind", ErrInvalidScene, c.Name, b.Name)
				}
			}
		}
	}
	for _, m := range s.Meshes {
		if m.Armature != "" && !armatures[m.Armature] {
			return fmt.Errorf("%w: mesh %q is bound to unknown armature %q", ErrInvalidScene, m.Name, m.Armature)
		}
	}
	return nil
}

func validateGroups(m SceneMesh) error {
	names := make(map[string]bool, len(m.Groups))
	for _, g := range m.Groups {
		if g.Name == "" || names[g.Name] {
			return fmt.Errorf("%w: mesh %q has an unnamed or duplicate group %q", ErrInvalidScene, m.Name, g.Name)
		}
		names[g.Name] = true
		for _, w := range g.Weights {
			if w[0] < 0 || w[0] != float64(int(w[0])) {
				return fmt.Errorf("%w: group %q of %q has vertex index %v", ErrInvalidScene, g.Name, m.Name, w[0])
			}
			if w[1] < 0 || w[1] > 1 {
				return fmt.Errorf("%w: group %q of %q has weight %v", ErrInvalidScene, g.Name, m.Name, w[1])
			}
		}
	}
	return nil
}

// ParseScene parses a scene document from YAML.
func ParseScene(data []byte) (*Scene, error) {
	var s Scene
	if err := yaml.Unmarshal(data, &s); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidScene, err)
	}
	if s.Version == 0 {
		s.Version = SceneVersion
	}
	if s.Version != SceneVersion {
		return nil, fmt.Errorf("%w: %d", ErrUnsupportedSceneVersion, s.Version)
	}
	if err := s.Validate(); err != nil {
		return nil, err
	}
	return &s, nil
}

// ParseSceneFile parses a scene document from disk.
func ParseSceneFile(path string) (*Scene, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading scene file: %w", err)
	}
	return ParseScene(data)
}

// MarshalScene encodes s as YAML.
func MarshalScene(s *Scene) ([]byte, error) {
	out := *s
	out.Version = SceneVersion
	return yaml.Marshal(&out)
}

// WriteSceneFile writes s to path, creating parent directories.
func WriteSceneFile(path string, s *Scene) error {
	data, err := MarshalScene(s)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return err
	}
	return os.WriteFile(path, data, 0644)
}
