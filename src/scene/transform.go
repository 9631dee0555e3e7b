package scene

import (
	"math"

	"github.com/go-gl/mathgl/mgl32"
)

// Transform places an object. Rotation holds Tait-Bryan angles in radians
// applied in Y, X, Z order.
type Transform struct {
	Translation mgl32.Vec3
	Scale       mgl32.Vec3
	Rotation    mgl32.Vec3
}

func NewTransform() Transform {
	return Transform{Scale: mgl32.Vec3{1, 1, 1}}
}

// Mat4 is translate * Ry * Rx * Rz * scale.
func (t Transform) Mat4() mgl32.Mat4 {
	c1, s1 := cos(t.Rotation.Y()), sin(t.Rotation.Y())
	c2, s2 := cos(t.Rotation.X()), sin(t.Rotation.X())
	c3, s3 := cos(t.Rotation.Z()), sin(t.Rotation.Z())
	sx, sy, sz := t.Scale.Elem()

	return mgl32.Mat4{
		sx * (c1*c3 + s1*s2*s3), sx * (c2 * s3), sx * (c1*s2*s3 - c3*s1), 0,
		sy * (c3*s1*s2 - c1*s3), sy * (c2 * c3), sy * (c1*c3*s2 + s1*s3), 0,
		sz * (c2 * s1), sz * (-s2), sz * (c1 * c2), 0,
		t.Translation.X(), t.Translation.Y(), t.Translation.Z(), 1,
	}
}

// NormalMatrix is the inverse transpose of the upper 3x3 of Mat4. Zero scale
// components produce infinities.
func (t Transform) NormalMatrix() mgl32.Mat3 {
	c1, s1 := cos(t.Rotation.Y()), sin(t.Rotation.Y())
	c2, s2 := cos(t.Rotation.X()), sin(t.Rotation.X())
	c3, s3 := cos(t.Rotation.Z()), sin(t.Rotation.Z())
	ix, iy, iz := 1/t.Scale.X(), 1/t.Scale.Y(), 1/t.Scale.Z()

	return mgl32.Mat3{
		ix * (c1*c3 + s1*s2*s3), ix * (c2 * s3), ix * (c1*s2*s3 - c3*s1),
		iy * (c3*s1*s2 - c1*s3), iy * (c2 * c3), iy * (c1*c3*s2 + s1*s3),
		iz * (c2 * s1), iz * (-s2), iz * (c1 * c2),
	}
}

func sin(v float32) float32 { return float32(math.Sin(float64(v))) }
func cos(v float32) float32 { return float32(math.Cos(float64(v))) }
