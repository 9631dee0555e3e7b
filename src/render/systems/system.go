// Package systems records draw commands for one frame. Systems never touch
// synchronization; they only bind and draw into the recorder they are lent.
package systems

import (
	"github.com/vulkan-go/vulkan"

	"prism/src/render"
	"prism/src/scene"
)

// FrameInfo is what a system gets for one frame. It is only valid until the
// frame ends.
type FrameInfo struct {
	FrameIndex          int
	FrameTime           float32
	CommandBuffer       vulkan.CommandBuffer
	Recorder            render.CommandRecorder
	Camera              *scene.Camera
	GlobalDescriptorSet vulkan.DescriptorSet
	Objects             scene.Map
}

type RenderSystem interface {
	RenderInto(info *FrameInfo)
	Destroy()
}

// Chain runs systems in the order given, so opaque geometry goes first.
type Chain []RenderSystem

func (c Chain) RenderAll(info *FrameInfo) {
	for _, s := range c {
		s.RenderInto(info)
	}
}

// Destroy releases systems in reverse order.
func (c Chain) Destroy() {
	for i := len(c) - 1; i >= 0; i-- {
		c[i].Destroy()
	}
}

// Pipeline is a compiled graphics pipeline together with its layout.
type Pipeline interface {
	Handle() vulkan.Pipeline
	Layout() vulkan.PipelineLayout
	Destroy()
}
