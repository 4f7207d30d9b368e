package packet

import "math"

// Vector3 is a position or scale in world space.
type Vector3 struct {
	X, Y, Z float32
}

// Quaternion is an uncompressed orientation.
type Quaternion struct {
	X, Y, Z, W float32
}

// IdentityQuaternion is the orientation with no rotation applied.
var IdentityQuaternion = Quaternion{0, 0, 0, 1}

// Rotation is an orientation as it travels on the wire.
// When Compressed is set only Euler (degrees) is meaningful; otherwise only Quat is.
type Rotation struct {
	Compressed bool
	Euler      Vector3
	Quat       Quaternion
}

// Quaternion returns r as a quaternion.
// Compressed rotations are expanded by applying the Euler angles about Z, then X, then Y.
func (r Rotation) Quaternion() Quaternion {
	if !r.Compressed {
		return r.Quat
	}
	const half = math.Pi / 360 // degrees to radians, halved
	sx, cx := math.Sincos(float64(r.Euler.X) * half)
	sy, cy := math.Sincos(float64(r.Euler.Y) * half)
	sz, cz := math.Sincos(float64(r.Euler.Z) * half)
	return Quaternion{
		X: float32(cy*sx*cz + sy*cx*sz),
		Y: float32(sy*cx*cz - cy*sx*sz),
		Z: float32(cy*cx*sz - sy*sx*cz),
		W: float32(cy*cx*cz + sy*sx*sz),
	}
}
