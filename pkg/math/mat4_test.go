package math

import (
	"math"
	"testing"
)

func TestIdentity(t *testing.T) {
	m := Identity()
	if m[0] != 1 || m[5] != 1 || m[10] != 1 || m[15] != 1 {
		t.Error("Identity diagonal should be 1")
	}
	if m[1] != 0 || m[4] != 0 {
		t.Error("Identity off-diagonal should be 0")
	}
}

func TestMulIdentity(t *testing.T) {
	m := Translate(Vec3{1, 2, 3})
	result := m.Mul(Identity())
	if result != m {
		t.Errorf("M * I should equal M, got %v", result)
	}
}

func TestTranslate(t *testing.T) {
	m := Translate(Vec3{5, 10, 15})
	// Translation lives in column 4 (indices 12, 13, 14)
	if m[12] != 5 || m[13] != 10 || m[14] != 15 {
		t.Errorf("Translate: got (%f, %f, %f), want (5, 10, 15)", m[12], m[13], m[14])
	}
	if m.Translation() != (Vec3{5, 10, 15}) {
		t.Errorf("Translation() = %v", m.Translation())
	}
}

func TestTransformPoint(t *testing.T) {
	m := Translate(Vec3{10, 20, 30}).Mul(Scale(Vec3{2, 2, 2}))
	got := m.TransformPoint(Vec3{1, 2, 3})
	want := Vec3{12, 24, 36}
	if got != want {
		t.Errorf("TransformPoint: got %v, want %v", got, want)
	}
	if d := m.TransformDirection(Vec3{1, 0, 0}); d != (Vec3{2, 0, 0}) {
		t.Errorf("TransformDirection ignores translation: got %v", d)
	}
}

func TestRotateAxisZ90(t *testing.T) {
	m := RotateAxis(Vec3{0, 0, 1}, math.Pi/2)
	got := m.TransformPoint(Vec3{1, 0, 0})
	if !got.ApproxEqual(Vec3{0, 1, 0}, 1e-12) {
		t.Errorf("RotateAxis Z 90: got %v, want (0, 1, 0)", got)
	}
}

func TestInverse(t *testing.T) {
	m := LocRotScale(Vec3{1, -2, 3}, QuatFromAxisAngle(Vec3{0, 1, 1}.Normalize(), 0.7), Vec3{2, 2, 2})
	got := m.Mul(m.Inverse())
	if !got.ApproxEqual(Identity(), 1e-12) {
		t.Errorf("M * M^-1 should be identity, got %v", got)
	}
}

func TestDecompose(t *testing.T) {
	loc := Vec3{4, 5, 6}
	rot := QuatFromAxisAngle(Vec3{1, 0, 0}, 1.1)
	scale := Vec3{1, 3, 1}
	l, r, s := LocRotScale(loc, rot, scale).Decompose()
	if !l.ApproxEqual(loc, 1e-12) || !r.ApproxEqual(rot, 1e-12) || !s.ApproxEqual(scale, 1e-12) {
		t.Errorf("Decompose() = %v %v %v", l, r, s)
	}
}

func TestBoneAxes(t *testing.T) {
	tests := []struct {
		name  string
		dir   Vec3
		roll  float64
		wantX Vec3
	}{
		{"up", Vec3{0, 0, 1}, 0, Vec3{1, 0, 0}},
		{"down", Vec3{0, 0, -1}, 0, Vec3{1, 0, 0}},
		{"along y", Vec3{0, 1, 0}, 0, Vec3{1, 0, 0}},
		{"along -y", Vec3{0, -1, 0}, 0, Vec3{-1, 0, 0}},
		{"up rolled", Vec3{0, 0, 1}, math.Pi / 2, Vec3{0, 1, 0}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := BoneAxes(tt.dir, tt.roll)
			if !m.Column(1).ApproxEqual(tt.dir.Normalize(), 1e-12) {
				t.Errorf("Y axis = %v, want %v", m.Column(1), tt.dir)
			}
			if !m.Column(0).ApproxEqual(tt.wantX, 1e-12) {
				t.Errorf("X axis = %v, want %v", m.Column(0), tt.wantX)
			}
			if got := RollFromAxes(m); math.Abs(got-tt.roll) > 1e-9 {
				t.Errorf("RollFromAxes() = %v, want %v", got, tt.roll)
			}
		})
	}
}
