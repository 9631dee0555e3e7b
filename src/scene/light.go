package scene

import (
	"github.com/go-gl/mathgl/mgl32"
)

// PointLight is an omnidirectional light. Color.W is the intensity.
type PointLight struct {
	Position mgl32.Vec4
	Color    mgl32.Vec4
}

func NewPointLight() PointLight {
	return PointLight{
		Position: mgl32.Vec4{0, -0.5, 0, 1},
		Color:    mgl32.Vec4{1, 1, 1, 1},
	}
}

// Orbit moves the light along its path and cycles its color for run time t
// in seconds. W components are kept.
func (l *PointLight) Orbit(t float32) {
	l.Position = mgl32.Vec4{sin(t), sin(t*0.7)*0.5 - 1.5, -cos(t), l.Position.W()}
	l.Color = mgl32.Vec4{sin(t)*0.5 + 0.5, sin(t*1.3)*0.5 + 0.5, sin(t*1.5)*0.5 + 0.5, l.Color.W()}
}
