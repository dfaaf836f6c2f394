package formats

import (
	"errors"
	"path/filepath"
	"strings"
	"testing"
)

const testScene = `
frame: 12
meshes:
  - name: body
    vertices: [[0, 0, 0], [0, 0, 1.8]]
    armature: rig
    groups:
      - name: thigh.L
        weights: [[0, 1], [1, 0.25]]
armatures:
  - name: rig
    bones:
      - name: thigh.L
        head: [0.1, 0, 1]
        tail: [0.1, -0.05, 0.5]
      - name: shin.L
        parent: thigh.L
        connected: true
        head: [0.1, -0.05, 0.5]
        tail: [0.1, 0, 0.05]
        deform: false
        pose:
          rotation: [0.97, 0.24, 0, 0]
        constraints:
          - name: IK
            kind: IK
            subtarget: ik_shin.L
            chain_count: 2
            influence: 0.5
    action:
      - path: pose.bones["shin.L"].location
        index: 0
        keys: [[1, 0], [10, 0.5]]
`

func TestParseScene(t *testing.T) {
	s, err := ParseScene([]byte(testScene))
	if err != nil {
		t.Fatalf("ParseScene failed: %v", err)
	}

	if s.Version != SceneVersion {
		t.Errorf("expected version %d, got %d", SceneVersion, s.Version)
	}
	if s.Frame != 12 {
		t.Errorf("expected frame 12, got %d", s.Frame)
	}
	m := s.Mesh("body")
	if m == nil || len(m.Vertices) != 2 || m.Vertices[1][2] != 1.8 {
		t.Fatalf("unexpected mesh %+v", m)
	}
	if m.Armature != "rig" || len(m.Groups) != 1 || m.Groups[0].Weights[1] != [2]float64{1, 0.25} {
		t.Errorf("unexpected binding %q %+v", m.Armature, m.Groups)
	}

	a := s.Armature("rig")
	if a == nil {
		t.Fatal("expected armature rig")
	}
	if len(a.Bones) != 2 {
		t.Fatalf("expected 2 bones, got %d", len(a.Bones))
	}
	shin := a.Bones[1]
	if shin.Parent != "thigh.L" || !shin.Connected {
		t.Errorf("unexpected shin link %q connected=%v", shin.Parent, shin.Connected)
	}
	if shin.Deform == nil || *shin.Deform {
		t.Error("expected deform false")
	}
	if shin.Pose == nil || shin.Pose.Rotation == nil || shin.Pose.Rotation[0] != 0.97 {
		t.Errorf("unexpected pose %+v", shin.Pose)
	}
	if len(shin.Constraints) != 1 || *shin.Constraints[0].Influence != 0.5 {
		t.Errorf("unexpected constraints %+v", shin.Constraints)
	}
	if len(a.Action) != 1 || a.Action[0].Keys[1] != [2]float64{10, 0.5} {
		t.Errorf("unexpected action %+v", a.Action)
	}
}

func TestParseScene_Invalid(t *testing.T) {
	tests := []struct {
		name string
		data string
		want error
	}{
		{"not yaml", "meshes: [", ErrInvalidScene},
		{"future version", "version: 9\n", ErrUnsupportedSceneVersion},
		{"unnamed mesh", "meshes:\n  - vertices: [[0, 0, 0]]\n", ErrInvalidScene},
		{"obj and vertices", "meshes:\n  - name: m\n    obj: m.obj\n    vertices: [[0, 0, 0]]\n", ErrInvalidScene},
		{"duplicate bone", "armatures:\n  - name: a\n    bones:\n      - {name: b, head: [0, 0, 0], tail: [0, 0, 1]}\n      - {name: b, head: [0, 0, 0], tail: [0, 0, 1]}\n", ErrInvalidScene},
		{"unknown parent", "armatures:\n  - name: a\n    bones:\n      - {name: b, parent: x, head: [0, 0, 0], tail: [0, 0, 1]}\n", ErrInvalidScene},
		{"kindless constraint", "armatures:\n  - name: a\n    bones:\n      - name: b\n        head: [0, 0, 0]\n        tail: [0, 0, 1]\n        constraints: [{name: c}]\n", ErrInvalidScene},
		{"unknown bound armature", "meshes:\n  - name: m\n    armature: x\n", ErrInvalidScene},
		{"fractional vertex index", "meshes:\n  - name: m\n    groups: [{name: g, weights: [[0.5, 1]]}]\n", ErrInvalidScene},
		{"weight above one", "meshes:\n  - name: m\n    groups: [{name: g, weights: [[0, 2]]}]\n", ErrInvalidScene},
		{"duplicate group", "meshes:\n  - name: m\n    groups: [{name: g, weights: []}, {name: g, weights: []}]\n", ErrInvalidScene},
		{"short vector", "armatures:\n  - name: a\n    bones:\n      - {name: b, head: [0, 0], tail: [0, 0, 1]}\n", ErrInvalidScene},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseScene([]byte(tt.data))
			if !errors.Is(err, tt.want) {
				t.Errorf("expected %v, got %v", tt.want, err)
			}
		})
	}
}

func TestWriteSceneFile(t *testing.T) {
	s, err := ParseScene([]byte(testScene))
	if err != nil {
		t.Fatalf("ParseScene failed: %v", err)
	}

	path := filepath.Join(t.TempDir(), "out", "scene.yaml")
	if err := WriteSceneFile(path, s); err != nil {
		t.Fatalf("WriteSceneFile failed: %v", err)
	}

	back, err := ParseSceneFile(path)
	if err != nil {
		t.Fatalf("ParseSceneFile failed: %v", err)
	}
	if back.Frame != 12 || len(back.Armatures) != 1 || len(back.Armatures[0].Bones) != 2 {
		t.Errorf("document changed on the way through: %+v", back)
	}

	data, err := MarshalScene(s)
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(string(data), "head: [0.1, 0, 1]") {
		t.Errorf("expected flow style vectors, got:\n%s", data)
	}
	if !strings.Contains(string(data), "weights: [[0, 1], [1, 0.25]]") {
		t.Errorf("expected flow style weights, got:\n%s", data)
	}
}
