package math

import "math"

// Quat represents a quaternion for 3D rotations.
// Components are stored as X, Y, Z, W where W is the scalar part.
type Quat struct {
	X, Y, Z, W float64
}

// QuatIdentity returns an identity quaternion (no rotation).
func QuatIdentity() Quat {
	return Quat{X: 0, Y: 0, Z: 0, W: 1}
}

// QuatFromAxisAngle creates a quaternion from axis-angle rotation.
// axis should be normalized, angle is in radians.
func QuatFromAxisAngle(axis Vec3, angle float64) Quat {
	s := math.Sin(angle / 2)
	return Quat{
		X: axis.X * s,
		Y: axis.Y * s,
		Z: axis.Z * s,
		W: math.Cos(angle / 2),
	}
}

// QuatRotationBetween returns the shortest rotation taking direction a onto b.
func QuatRotationBetween(a, b Vec3) Quat {
	a = a.Normalize()
	b = b.Normalize()
	if a.IsZero() || b.IsZero() {
		return QuatIdentity()
	}
	d := a.Dot(b)
	if d < -1+1e-12 {
		// Opposite directions: any perpendicular axis works.
		axis := Vec3{1, 0, 0}.Cross(a)
		if axis.LengthSquared() < 1e-12 {
			axis = Vec3{0, 1, 0}.Cross(a)
		}
		return QuatFromAxisAngle(axis.Normalize(), math.Pi)
	}
	c := a.Cross(b)
	return Quat{X: c.X, Y: c.Y, Z: c.Z, W: 1 + d}.Normalize()
}

// Normalize returns a normalized quaternion.
func (q Quat) Normalize() Quat {
	length := math.Sqrt(q.X*q.X + q.Y*q.Y + q.Z*q.Z + q.W*q.W)
	if length < 1e-12 {
		return QuatIdentity()
	}
	inv := 1 / length
	return Quat{X: q.X * inv, Y: q.Y * inv, Z: q.Z * inv, W: q.W * inv}
}

// Conjugate returns the inverse rotation of a unit quaternion.
func (q Quat) Conjugate() Quat {
	return Quat{X: -q.X, Y: -q.Y, Z: -q.Z, W: q.W}
}

// Dot returns the dot product of two quaternions.
func (q Quat) Dot(other Quat) float64 {
	return q.X*other.X + q.Y*other.Y + q.Z*other.Z + q.W*other.W
}

// Slerp performs spherical linear interpolation between two quaternions.
// t should be in range [0, 1].
func (q Quat) Slerp(other Quat, t float64) Quat {
	dot := q.Dot(other)

	// Take the shorter path
	if dot < 0 {
		other = Quat{X: -other.X, Y: -other.Y, Z: -other.Z, W: -other.W}
		dot = -dot
	}

	if dot > 0.9995 {
		return q.Lerp(other, t)
	}

	theta0 := math.Acos(dot)
	theta := theta0 * t
	sinTheta := math.Sin(theta)
	sinTheta0 := math.Sin(theta0)

	s0 := math.Cos(theta) - dot*sinTheta/sinTheta0
	s1 := sinTheta / sinTheta0

	return Quat{
		X: q.X*s0 + other.X*s1,
		Y: q.Y*s0 + other.Y*s1,
		Z: q.Z*s0 + other.Z*s1,
		W: q.W*s0 + other.W*s1,
	}
}

// Lerp performs normalized linear interpolation between two quaternions.
func (q Quat) Lerp(other Quat, t float64) Quat {
	return Quat{
		X: q.X + t*(other.X-q.X),
		Y: q.Y + t*(other.Y-q.Y),
		Z: q.Z + t*(other.Z-q.Z),
		W: q.W + t*(other.W-q.W),
	}.Normalize()
}

// Mul multiplies two quaternions (q applied after other).
func (q Quat) Mul(other Quat) Quat {
	return Quat{
		X: q.W*other.X + q.X*other.W + q.Y*other.Z - q.Z*other.Y,
		Y: q.W*other.Y - q.X*other.Z + q.Y*other.W + q.Z*other.X,
		Z: q.W*other.Z + q.X*other.Y - q.Y*other.X + q.Z*other.W,
		W: q.W*other.W - q.X*other.X - q.Y*other.Y - q.Z*other.Z,
	}
}

// Rotate rotates v by the quaternion.
func (q Quat) Rotate(v Vec3) Vec3 {
	u := Vec3{q.X, q.Y, q.Z}
	t := u.Cross(v).Scale(2)
	return v.Add(t.Scale(q.W)).Add(u.Cross(t))
}

// ToMat4 converts the quaternion to a 4x4 rotation matrix.
func (q Quat) ToMat4() Mat4 {
	q = q.Normalize()

	xx := q.X * q.X
	xy := q.X * q.Y
	xz := q.X * q.Z
	xw := q.X * q.W
	yy := q.Y * q.Y
	yz := q.Y * q.Z
	yw := q.Y * q.W
	zz := q.Z * q.Z
	zw := q.Z * q.W

	return Mat4{
		1 - 2*(yy+zz), 2 * (xy + zw), 2 * (xz - yw), 0,
		2 * (xy - zw), 1 - 2*(xx+zz), 2 * (yz + xw), 0,
		2 * (xz + yw), 2 * (yz - xw), 1 - 2*(xx+yy), 0,
		0, 0, 0, 1,
	}
}

// ApproxEqual reports whether q and other describe the same rotation within eps.
// q and -q are considered equal.
func (q Quat) ApproxEqual(other Quat, eps float64) bool {
	return 1-math.Abs(q.Normalize().Dot(other.Normalize())) <= eps
}
