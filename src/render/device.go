package render

import (
	"github.com/vulkan-go/vulkan"
)

// SurfaceProvider is the native drawable the chain presents into.
type SurfaceProvider interface {
	// FramebufferSize returns the current drawable size in pixels. Either
	// dimension is zero while the window is minimized.
	FramebufferSize() (width, height int)

	// CreateSurface binds a Vulkan surface to the drawable.
	CreateSurface(instance vulkan.Instance) (vulkan.Surface, error)

	// RequiredInstanceExtensions lists the instance extensions the surface
	// needs, NUL terminated.
	RequiredInstanceExtensions() []string
}

// SurfaceSupport is what the device and surface agree on.
type SurfaceSupport struct {
	Capabilities vulkan.SurfaceCapabilities
	Formats      []vulkan.SurfaceFormat
	PresentModes []vulkan.PresentMode
}

// SwapchainDimensions describes the size and format of the swapchain.
type SwapchainDimensions struct {
	// Width of the swapchain.
	Width uint32
	// Height of the swapchain.
	Height uint32
	// Format is the pixel format of the swapchain.
	Format vulkan.Format
}

// Device is the GPU the renderer drives. It owns the logical device, its
// queues and memory; the renderer only creates and destroys objects through it.
type Device interface {
	Surface() vulkan.Surface
	SurfaceSupport() (*SurfaceSupport, error)
	DepthFormat() (vulkan.Format, error)
	QueueFamilies() (graphics, present uint32)

	CreateSwapchain(info *vulkan.SwapchainCreateInfo) (vulkan.Swapchain, error)
	SwapchainImages(swapchain vulkan.Swapchain) ([]vulkan.Image, error)
	DestroySwapchain(swapchain vulkan.Swapchain)

	CreateImage(info *vulkan.ImageCreateInfo, properties vulkan.MemoryPropertyFlags) (vulkan.Image, vulkan.DeviceMemory, error)
	DestroyImage(image vulkan.Image, memory vulkan.DeviceMemory)
	CreateImageView(image vulkan.Image, format vulkan.Format, aspect vulkan.ImageAspectFlags) (vulkan.ImageView, error)
	DestroyImageView(view vulkan.ImageView)
	CreateRenderPass(info *vulkan.RenderPassCreateInfo) (vulkan.RenderPass, error)
	DestroyRenderPass(renderPass vulkan.RenderPass)
	CreateFramebuffer(info *vulkan.FramebufferCreateInfo) (vulkan.Framebuffer, error)
	DestroyFramebuffer(framebuffer vulkan.Framebuffer)

	AllocateCommandBuffers(count int) ([]vulkan.CommandBuffer, error)
	FreeCommandBuffers(buffers []vulkan.CommandBuffer)
	BeginCommandBuffer(buffer vulkan.CommandBuffer) error
	EndCommandBuffer(buffer vulkan.CommandBuffer) error
	Recorder(buffer vulkan.CommandBuffer) CommandRecorder

	CreateSemaphore() (vulkan.Semaphore, error)
	DestroySemaphore(semaphore vulkan.Semaphore)
	CreateFence(signaled bool) (vulkan.Fence, error)
	DestroyFence(fence vulkan.Fence)
	// WaitForFences blocks until every fence is signaled. An expired timeout
	// returns an error matching ErrTimeout.
	WaitForFences(fences []vulkan.Fence, timeout uint64) error
	ResetFences(fences []vulkan.Fence) error

	AcquireNextImage(swapchain vulkan.Swapchain, timeout uint64, signal vulkan.Semaphore) (uint32, vulkan.Result)
	Submit(info *vulkan.SubmitInfo, fence vulkan.Fence) error
	Present(info *vulkan.PresentInfo) vulkan.Result
	WaitIdle() error
}

// CommandRecorder records into one command buffer. Render systems only ever
// see this interface.
type CommandRecorder interface {
	BeginRenderPass(info *vulkan.RenderPassBeginInfo)
	EndRenderPass()
	SetViewport(viewport vulkan.Viewport)
	SetScissor(scissor vulkan.Rect2D)
	BindPipeline(pipeline vulkan.Pipeline)
	BindDescriptorSets(layout vulkan.PipelineLayout, firstSet uint32, sets []vulkan.DescriptorSet)
	PushConstants(layout vulkan.PipelineLayout, stages vulkan.ShaderStageFlags, offset uint32, data []byte)
	BindVertexBuffers(firstBinding uint32, buffers []vulkan.Buffer, offsets []vulkan.DeviceSize)
	BindIndexBuffer(buffer vulkan.Buffer, offset vulkan.DeviceSize, indexType vulkan.IndexType)
	Draw(vertexCount, instanceCount, firstVertex, firstInstance uint32)
	DrawIndexed(indexCount, instanceCount, firstIndex uint32, vertexOffset int32, firstInstance uint32)
}

// Buffer is a device buffer filled once at creation.
type Buffer interface {
	Handle() vulkan.Buffer
	Size() vulkan.DeviceSize
	Destroy()
}

// BufferAllocator uploads static geometry.
type BufferAllocator interface {
	NewVertexBuffer(data []byte) (Buffer, error)
	NewIndexBuffer(data []byte) (Buffer, error)
}
