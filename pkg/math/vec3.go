// Package math provides vector, quaternion and matrix types for rig geometry.
package math

import "math"

// Epsilon is the tolerance used by approximate comparisons.
const Epsilon = 1e-9

// Vec3 is a 3D vector or point.
type Vec3 struct {
	X, Y, Z float64
}

// Add returns v + other.
func (v Vec3) Add(other Vec3) Vec3 {
	return Vec3{v.X + other.X, v.Y + other.Y, v.Z + other.Z}
}

// Sub returns v - other.
func (v Vec3) Sub(other Vec3) Vec3 {
	return Vec3{v.X - other.X, v.Y - other.Y, v.Z - other.Z}
}

// Scale returns v * scalar.
func (v Vec3) Scale(s float64) Vec3 {
	return Vec3{v.X * s, v.Y * s, v.Z * s}
}

// Neg returns -v.
func (v Vec3) Neg() Vec3 {
	return Vec3{-v.X, -v.Y, -v.Z}
}

// Dot returns the dot product.
func (v Vec3) Dot(other Vec3) float64 {
	return v.X*other.X + v.Y*other.Y + v.Z*other.Z
}

// Cross returns the cross product.
func (v Vec3) Cross(other Vec3) Vec3 {
	return Vec3{
		v.Y*other.Z - v.Z*other.Y,
		v.Z*other.X - v.X*other.Z,
		v.X*other.Y - v.Y*other.X,
	}
}

// LengthSquared returns the squared magnitude.
func (v Vec3) LengthSquared() float64 {
	return v.X*v.X + v.Y*v.Y + v.Z*v.Z
}

// Length returns the magnitude.
func (v Vec3) Length() float64 {
	return math.Sqrt(v.LengthSquared())
}

// Normalize returns a unit vector. The zero vector stays zero.
func (v Vec3) Normalize() Vec3 {
	l := v.Length()
	if l == 0 {
		return Vec3{}
	}
	return Vec3{v.X / l, v.Y / l, v.Z / l}
}

// Distance returns the distance to another point.
func (v Vec3) Distance(other Vec3) float64 {
	return v.Sub(other).Length()
}

// Lerp interpolates linearly towards other.
func (v Vec3) Lerp(other Vec3, t float64) Vec3 {
	return Vec3{
		v.X + t*(other.X-v.X),
		v.Y + t*(other.Y-v.Y),
		v.Z + t*(other.Z-v.Z),
	}
}

// Angle returns the unsigned angle in radians between v and other.
// Returns 0 if either vector has zero length.
func (v Vec3) Angle(other Vec3) float64 {
	l := v.Length() * other.Length()
	if l == 0 {
		return 0
	}
	c := v.Dot(other) / l
	if c > 1 {
		c = 1
	} else if c < -1 {
		c = -1
	}
	return math.Acos(c)
}

// IsZero reports whether all components are exactly zero.
func (v Vec3) IsZero() bool {
	return v.X == 0 && v.Y == 0 && v.Z == 0
}

// ApproxEqual reports whether every component differs by at most eps.
func (v Vec3) ApproxEqual(other Vec3, eps float64) bool {
	return math.Abs(v.X-other.X) <= eps &&
		math.Abs(v.Y-other.Y) <= eps &&
		math.Abs(v.Z-other.Z) <= eps
}

// Array returns the components as an array.
func (v Vec3) Array() [3]float64 {
	return [3]float64{v.X, v.Y, v.Z}
}

// Vec3FromArray builds a vector from an array.
func Vec3FromArray(a [3]float64) Vec3 {
	return Vec3{a[0], a[1], a[2]}
}

// SegmentDistance returns the distance from p to the segment [a, b].
// A degenerate segment is treated as the point a.
func SegmentDistance(p, a, b Vec3) float64 {
	ab := b.Sub(a)
	lsq := ab.LengthSquared()
	if lsq == 0 {
		return p.Distance(a)
	}
	t := p.Sub(a).Dot(ab) / lsq
	if t < 0 {
		t = 0
	} else if t > 1 {
		t = 1
	}
	return p.Distance(a.Add(ab.Scale(t)))
}
