package scene

import (
	"github.com/go-gl/mathgl/mgl32"
)

// NewCubeBuilder is a unit cube centered at offset, each face its own color.
func NewCubeBuilder(offset mgl32.Vec3) *MeshBuilder {
	type face struct {
		color  mgl32.Vec3
		normal mgl32.Vec3
		corner [4]mgl32.Vec3
	}
	faces := []face{
		{mgl32.Vec3{.9, .9, .9}, mgl32.Vec3{-1, 0, 0}, [4]mgl32.Vec3{{-.5, -.5, -.5}, {-.5, .5, .5}, {-.5, -.5, .5}, {-.5, .5, -.5}}},
		{mgl32.Vec3{.8, .8, .1}, mgl32.Vec3{1, 0, 0}, [4]mgl32.Vec3{{.5, -.5, -.5}, {.5, .5, .5}, {.5, -.5, .5}, {.5, .5, -.5}}},
		// top, the y axis points down
		{mgl32.Vec3{.9, .6, .1}, mgl32.Vec3{0, -1, 0}, [4]mgl32.Vec3{{-.5, -.5, -.5}, {.5, -.5, .5}, {-.5, -.5, .5}, {.5, -.5, -.5}}},
		{mgl32.Vec3{.8, .1, .1}, mgl32.Vec3{0, 1, 0}, [4]mgl32.Vec3{{-.5, .5, -.5}, {.5, .5, .5}, {-.5, .5, .5}, {.5, .5, -.5}}},
		{mgl32.Vec3{.1, .1, .8}, mgl32.Vec3{0, 0, 1}, [4]mgl32.Vec3{{-.5, -.5, .5}, {.5, .5, .5}, {-.5, .5, .5}, {.5, -.5, .5}}},
		{mgl32.Vec3{.1, .8, .1}, mgl32.Vec3{0, 0, -1}, [4]mgl32.Vec3{{-.5, -.5, -.5}, {.5, .5, -.5}, {-.5, .5, -.5}, {.5, -.5, -.5}}},
	}

	b := &MeshBuilder{}
	for i, f := range faces {
		for _, p := range f.corner {
			b.Vertices = append(b.Vertices, Vertex{Position: p, Color: f.color, Normal: f.normal})
		}
		base := uint32(i * 4)
		b.Indices = append(b.Indices, base, base+1, base+2, base, base+3, base+1)
	}
	return b.Translate(offset)
}

// NewQuadBuilder is a 2x2 quad in the XZ plane facing up.
func NewQuadBuilder() *MeshBuilder {
	white := mgl32.Vec3{1, 1, 1}
	return &MeshBuilder{
		Vertices: []Vertex{
			{Position: mgl32.Vec3{-1, 0, -1}, Color: white, Normal: Up, UV: mgl32.Vec2{0, 0}},
			{Position: mgl32.Vec3{1, 0, -1}, Color: white, Normal: Up, UV: mgl32.Vec2{1, 0}},
			{Position: mgl32.Vec3{1, 0, 1}, Color: white, Normal: Up, UV: mgl32.Vec2{1, 1}},
			{Position: mgl32.Vec3{-1, 0, 1}, Color: white, Normal: Up, UV: mgl32.Vec2{0, 1}},
		},
		Indices: []uint32{0, 1, 2, 0, 2, 3},
	}
}
