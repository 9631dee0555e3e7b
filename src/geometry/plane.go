package geometry

import (
	"github.com/go-gl/mathgl/mgl32"
)

const (
	Infinity = float32(3.4028234663852886e+38)
	Epsilon  = 1.19209e-07 // defined by clang for x86
)

// Plane is n·p + D = 0 with the normal pointing out of the half-space the
// plane encloses.
type Plane struct {
	Normal mgl32.Vec3
	D      float32
}

// PlaneFromEquation normalizes (a, b, c, d) so that Distance is in world units.
func PlaneFromEquation(eq mgl32.Vec4) Plane {
	n := eq.Vec3()
	l := n.Len()
	if l < Epsilon {
		return Plane{}
	}
	return Plane{Normal: n.Mul(1 / l), D: eq.W() / l}
}

// Flip reverses the plane so front and back swap.
func (p Plane) Flip() Plane {
	return Plane{Normal: p.Normal.Mul(-1), D: -p.D}
}

// Distance is positive in front of the plane.
func (p Plane) Distance(point mgl32.Vec3) float32 {
	return p.Normal.Dot(point) + p.D
}

func IsPointInsidePlanes(planes []Plane, point mgl32.Vec3, margin float32) bool {
	for i := 0; i < len(planes); i++ {
		if planes[i].Distance(point)-margin > 0 {
			return false
		}
	}
	return true
}

func AreVerticesBehindPlane(plane Plane, vertices []mgl32.Vec3, margin float32) bool {
	for i := 0; i < len(vertices); i++ {
		if plane.Distance(vertices[i])-margin > 0 {
			return false
		}
	}
	return true
}
