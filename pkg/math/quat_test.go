package math

import (
	"math"
	"testing"
)

func TestQuatIdentity(t *testing.T) {
	q := QuatIdentity()
	if q.X != 0 || q.Y != 0 || q.Z != 0 || q.W != 1 {
		t.Errorf("Identity quaternion should be (0,0,0,1), got (%v,%v,%v,%v)", q.X, q.Y, q.Z, q.W)
	}
}

func TestQuatNormalize(t *testing.T) {
	n := Quat{X: 1, Y: 2, Z: 3, W: 4}.Normalize()
	length := math.Sqrt(n.X*n.X + n.Y*n.Y + n.Z*n.Z + n.W*n.W)
	if math.Abs(length-1.0) > 1e-12 {
		t.Errorf("Normalized quaternion length should be 1, got %v", length)
	}
}

func TestQuatSlerp(t *testing.T) {
	q1 := QuatIdentity()
	q2 := QuatFromAxisAngle(Vec3{X: 0, Y: 1, Z: 0}, math.Pi/2)

	if r := q1.Slerp(q2, 0); math.Abs(r.W-q1.W) > 1e-9 {
		t.Errorf("Slerp at t=0 should equal q1")
	}
	if r := q1.Slerp(q2, 1); math.Abs(r.W-q2.W) > 1e-9 {
		t.Errorf("Slerp at t=1 should equal q2")
	}

	// For a 90 degree rotation the halfway point is 45 degrees
	result5 := q1.Slerp(q2, 0.5)
	expectedW := math.Cos(math.Pi / 8)
	if math.Abs(result5.W-expectedW) > 1e-9 {
		t.Errorf("Slerp at t=0.5: expected W ~%v, got %v", expectedW, result5.W)
	}
}

func TestQuatToMat4(t *testing.T) {
	m := QuatIdentity().ToMat4()
	identity := Identity()
	for i := 0; i < 16; i++ {
		if math.Abs(m[i]-identity[i]) > 1e-12 {
			t.Errorf("Identity quat should produce identity matrix, element %d: got %v, want %v", i, m[i], identity[i])
		}
	}
}

func TestQuatMat4RoundTrip(t *testing.T) {
	axes := []Vec3{{1, 0, 0}, {0, 1, 0}, {0, 0, 1}, Vec3{1, 2, 3}.Normalize()}
	angles := []float64{0.3, 1.7, math.Pi - 0.01, -2.5}
	for _, axis := range axes {
		for _, angle := range angles {
			q := QuatFromAxisAngle(axis, angle)
			got := q.ToMat4().ToQuat()
			if !got.ApproxEqual(q, 1e-12) {
				t.Errorf("round trip axis %v angle %v: got %v, want %v", axis, angle, got, q)
			}
		}
	}
}

func TestQuatRotate(t *testing.T) {
	q := QuatFromAxisAngle(Vec3{0, 0, 1}, math.Pi/2)
	got := q.Rotate(Vec3{1, 0, 0})
	if !got.ApproxEqual(Vec3{0, 1, 0}, 1e-12) {
		t.Errorf("Rotate() = %v, want (0,1,0)", got)
	}
	viaMatrix := q.ToMat4().TransformDirection(Vec3{1, 2, 3})
	if !q.Rotate(Vec3{1, 2, 3}).ApproxEqual(viaMatrix, 1e-12) {
		t.Errorf("Rotate and ToMat4 disagree")
	}
}

func TestQuatRotationBetween(t *testing.T) {
	tests := []struct {
		name string
		a, b Vec3
	}{
		{"orthogonal", Vec3{1, 0, 0}, Vec3{0, 0, 1}},
		{"skewed", Vec3{1, 1, 0}, Vec3{0, -2, 5}},
		{"opposite", Vec3{0, 1, 0}, Vec3{0, -1, 0}},
		{"same", Vec3{0, 0, 3}, Vec3{0, 0, 1}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := QuatRotationBetween(tt.a, tt.b).Rotate(tt.a.Normalize())
			if !got.ApproxEqual(tt.b.Normalize(), 1e-9) {
				t.Errorf("rotated %v, want %v", got, tt.b.Normalize())
			}
		})
	}
}

func TestEulerRoundTrip(t *testing.T) {
	tests := []Vec3{
		{0.1, 0.2, 0.3},
		{-1.2, 0.4, 2.9},
		{0, 0, 0},
		{0.5, -1.3, -0.7},
	}
	for _, e := range tests {
		q := QuatFromEuler(e)
		got := q.ToEuler()
		if !got.ApproxEqual(e, 1e-9) {
			t.Errorf("ToEuler(QuatFromEuler(%v)) = %v", e, got)
		}
	}
}
