package math

import "math"

// Thresholds used when the bone direction is close to -Y.
const (
	boneSafeThreshold     = 6.1e-3
	boneCriticalThreshold = 2.5e-4
)

// BoneAxes returns the rest orientation of a bone pointing along dir with the
// given roll. The Y axis follows dir; roll rotates the frame about Y.
func BoneAxes(dir Vec3, roll float64) Mat4 {
	n := dir.Normalize()
	if n.IsZero() {
		n = Vec3{0, 1, 0}
	}
	x, y, z := n.X, n.Y, n.Z

	theta := 1 + y
	thetaAlt := x*x + z*z

	var b Mat4
	if theta > boneSafeThreshold || thetaAlt > boneCriticalThreshold*boneCriticalThreshold {
		if theta <= boneSafeThreshold {
			theta = thetaAlt*0.5 + thetaAlt*thetaAlt*0.125
		}
		b = FromBasis(
			Vec3{1 - x*x/theta, -x, -x * z / theta},
			Vec3{x, y, z},
			Vec3{-x * z / theta, -z, 1 - z*z/theta},
			Vec3{},
		)
	} else {
		// Pointing straight down -Y.
		b = FromBasis(Vec3{-1, 0, 0}, Vec3{0, -1, 0}, Vec3{0, 0, 1}, Vec3{})
	}

	return RotateAxis(n, roll).Mul(b)
}

// BoneMatrix returns the rest matrix of a bone: orientation from head to tail
// with roll, translated to head.
func BoneMatrix(head, tail Vec3, roll float64) Mat4 {
	return BoneAxes(tail.Sub(head), roll).WithTranslation(head)
}

// RollFromAxes recovers the roll of a bone whose rest frame is m.
func RollFromAxes(m Mat4) float64 {
	y := m.Column(1)
	ref := BoneAxes(y, 0)
	x0 := ref.Column(0)
	x1 := m.Column(0)
	angle := x0.Angle(x1)
	if x0.Cross(x1).Dot(y) < 0 {
		angle = -angle
	}
	if math.IsNaN(angle) {
		return 0
	}
	return angle
}
