package geometry

import (
	"github.com/go-gl/mathgl/mgl32"
)

const (
	PlaneLeft = iota
	PlaneRight
	PlaneBottom
	PlaneTop
	PlaneNear
	PlaneFar
)

// Frustum is six outward facing planes. A point is inside when it is behind
// all of them.
type Frustum struct {
	Planes [6]Plane
}

// FrustumFromMatrix extracts the planes of a projection·view matrix whose
// clip space has depth in [0, 1].
func FrustumFromMatrix(viewProj mgl32.Mat4) Frustum {
	r0, r1, r2, r3 := viewProj.Row(0), viewProj.Row(1), viewProj.Row(2), viewProj.Row(3)

	inward := [6]mgl32.Vec4{
		PlaneLeft:   r3.Add(r0),
		PlaneRight:  r3.Sub(r0),
		PlaneBottom: r3.Add(r1),
		PlaneTop:    r3.Sub(r1),
		PlaneNear:   r2,
		PlaneFar:    r3.Sub(r2),
	}
	var f Frustum
	for i, eq := range inward {
		f.Planes[i] = PlaneFromEquation(eq.Mul(-1))
	}
	return f
}

// ContainsSphere reports whether any part of s may be inside.
func (f Frustum) ContainsSphere(s Sphere) bool {
	return IsPointInsidePlanes(f.Planes[:], s.Center, s.Radius)
}

// ContainsVertices is false only when every vertex lies outside the same
// plane. Hulls straddling an edge of the frustum are kept.
func (f Frustum) ContainsVertices(vertices []mgl32.Vec3) bool {
	for _, p := range f.Planes {
		if AreVerticesBehindPlane(p.Flip(), vertices, -Epsilon) {
			return false
		}
	}
	return true
}
