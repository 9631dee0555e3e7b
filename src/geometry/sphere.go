package geometry

import (
	"math"

	"github.com/go-gl/mathgl/mgl32"
)

type Sphere struct {
	Center mgl32.Vec3
	Radius float32
}

// SphereFromPoints bounds points with a sphere centered on their box. Not
// minimal, but never smaller than the points.
func SphereFromPoints(points []mgl32.Vec3) Sphere {
	if len(points) == 0 {
		return Sphere{}
	}
	center := BoxFromPoints(points).Center()

	var r2 float32
	for _, p := range points {
		d := p.Sub(center)
		r2 = max(r2, d.Dot(d))
	}
	return Sphere{Center: center, Radius: float32(math.Sqrt(float64(r2)))}
}

// Transform moves the sphere by m. The radius grows by the largest axis
// scale of m so the result still bounds the transformed points.
func (s Sphere) Transform(m mgl32.Mat4) Sphere {
	c := m.Mul4x1(s.Center.Vec4(1)).Vec3()
	scale := max(m.Col(0).Vec3().Len(), m.Col(1).Vec3().Len(), m.Col(2).Vec3().Len())
	return Sphere{Center: c, Radius: s.Radius * scale}
}
