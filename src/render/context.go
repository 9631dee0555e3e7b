package render

import (
	"github.com/vulkan-go/vulkan"
)

// Context is what the application loop drives once per iteration.
type Context interface {
	BeginFrame() (*Frame, error)
	BeginPass(frame *Frame)
	EndPass(frame *Frame)
	EndFrame(frame *Frame) error
	NotifyResized()

	AspectRatio() float32
	RenderPass() vulkan.RenderPass
	IsFrameInProgress() bool
	FrameIndex() int
	CurrentCommandBuffer() vulkan.CommandBuffer
	FramesInFlight() int
	SwapchainDimensions() SwapchainDimensions
	Destroy() error
}
