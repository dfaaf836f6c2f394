package math

import "math"

// QuatFromEuler builds a rotation from XYZ Euler angles (X applied first).
func QuatFromEuler(e Vec3) Quat {
	qx := QuatFromAxisAngle(Vec3{1, 0, 0}, e.X)
	qy := QuatFromAxisAngle(Vec3{0, 1, 0}, e.Y)
	qz := QuatFromAxisAngle(Vec3{0, 0, 1}, e.Z)
	return qz.Mul(qy).Mul(qx)
}

// ToEuler returns the XYZ Euler angles of the rotation.
func (q Quat) ToEuler() Vec3 {
	m := q.ToMat4()
	sy := -m[2]
	if sy > 1 {
		sy = 1
	} else if sy < -1 {
		sy = -1
	}
	y := math.Asin(sy)
	if math.Abs(sy) > 1-1e-12 {
		// Gimbal lock: fold Z into X.
		return Vec3{math.Atan2(-m[9], m[5]), y, 0}
	}
	return Vec3{math.Atan2(m[6], m[10]), y, math.Atan2(m[1], m[0])}
}
