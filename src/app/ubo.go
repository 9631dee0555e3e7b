package app

import (
	"unsafe"

	"github.com/go-gl/mathgl/mgl32"
)

// GlobalUBO is the per-frame uniform shared by every system, std140 layout.
type GlobalUBO struct {
	Projection        mgl32.Mat4
	View              mgl32.Mat4
	AmbientLightColor mgl32.Vec4
	LightPosition     mgl32.Vec4
	LightColor        mgl32.Vec4
}

const globalUBOSize = int(unsafe.Sizeof(GlobalUBO{}))

func (u *GlobalUBO) bytes() []byte {
	return unsafe.Slice((*byte)(unsafe.Pointer(u)), globalUBOSize)
}

// UniformBuffer is a mapped buffer holding one GlobalUBO.
type UniformBuffer interface {
	Write(data []byte)
	Flush() error
}
