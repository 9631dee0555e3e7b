package geometry

import (
	"github.com/go-gl/mathgl/mgl32"
)

// Box is axis aligned in the space of the points it was built from.
type Box struct {
	Min mgl32.Vec3
	Max mgl32.Vec3
}

func BoxFromPoints(points []mgl32.Vec3) Box {
	if len(points) == 0 {
		return Box{}
	}
	b := Box{
		Min: mgl32.Vec3{Infinity, Infinity, Infinity},
		Max: mgl32.Vec3{-Infinity, -Infinity, -Infinity},
	}
	for _, p := range points {
		for i := 0; i < 3; i++ {
			b.Min[i] = min(b.Min[i], p[i])
			b.Max[i] = max(b.Max[i], p[i])
		}
	}
	return b
}

func (b Box) Center() mgl32.Vec3 {
	return b.Min.Add(b.Max).Mul(0.5)
}

// Corners returns the eight corners moved by m.
func (b Box) Corners(m mgl32.Mat4) [8]mgl32.Vec3 {
	var out [8]mgl32.Vec3
	for i := range out {
		c := b.Min
		if i&1 != 0 {
			c[0] = b.Max[0]
		}
		if i&2 != 0 {
			c[1] = b.Max[1]
		}
		if i&4 != 0 {
			c[2] = b.Max[2]
		}
		out[i] = m.Mul4x1(c.Vec4(1)).Vec3()
	}
	return out
}
