package render

import (
	"math"

	"github.com/vulkan-go/vulkan"
)

// DefaultFramesInFlight is the number of frames the CPU may record ahead of
// the GPU.
const DefaultFramesInFlight = 2

type rendererConfig struct {
	framesInFlight int
	clearColor     [4]float32
	swapchain      SwapchainConfig
	fenceTimeout   uint64
	flipViewport   bool
	onRebuild      func(*Swapchain)
}

func defaultRendererConfig() rendererConfig {
	return rendererConfig{
		framesInFlight: DefaultFramesInFlight,
		clearColor:     [4]float32{0.01, 0.01, 0.01, 1},
		swapchain:      defaultSwapchainConfig(),
		fenceTimeout:   math.MaxUint64,
	}
}

// RendererBuilderOption is a functional option for configuring a Renderer.
// Use the With* functions to create options.
type RendererBuilderOption func(c *rendererConfig)

// WithFramesInFlight sets how many frames may be recorded before the CPU
// blocks on the GPU. Values below 1 are ignored.
//
// Parameters:
//   - n: number of frame slots
//
// Returns:
//   - RendererBuilderOption: option function to apply
func WithFramesInFlight(n int) RendererBuilderOption {
	return func(c *rendererConfig) {
		if n >= 1 {
			c.framesInFlight = n
		}
	}
}

// WithClearColor sets the color the render pass clears to. Alpha is forced
// to 1.
//
// Parameters:
//   - r, g, b: linear color components in [0, 1]
//
// Returns:
//   - RendererBuilderOption: option function to apply
func WithClearColor(r, g, b float32) RendererBuilderOption {
	return func(c *rendererConfig) {
		c.clearColor = [4]float32{r, g, b, 1}
	}
}

// WithVSync forces FIFO presentation.
//
// Parameters:
//   - enabled: true to lock presentation to the display refresh
//
// Returns:
//   - RendererBuilderOption: option function to apply
func WithVSync(enabled bool) RendererBuilderOption {
	return func(c *rendererConfig) {
		c.swapchain.VSync = enabled
	}
}

// WithPresentMode makes mode the most preferred present mode. FIFO remains
// the fallback when the surface does not offer it.
//
// Parameters:
//   - mode: the preferred present mode
//
// Returns:
//   - RendererBuilderOption: option function to apply
func WithPresentMode(mode vulkan.PresentMode) RendererBuilderOption {
	return func(c *rendererConfig) {
		c.swapchain.PresentModes = append([]vulkan.PresentMode{mode}, c.swapchain.PresentModes...)
	}
}

// WithAcquireTimeout bounds each image acquisition. An expired wait is
// logged and retried.
//
// Parameters:
//   - nanoseconds: timeout, math.MaxUint64 waits forever
//
// Returns:
//   - RendererBuilderOption: option function to apply
func WithAcquireTimeout(nanoseconds uint64) RendererBuilderOption {
	return func(c *rendererConfig) {
		c.swapchain.AcquireTimeout = nanoseconds
	}
}

// WithFenceTimeout bounds each frame-slot fence wait. An expired wait is
// logged and retried.
//
// Parameters:
//   - nanoseconds: timeout, math.MaxUint64 waits forever
//
// Returns:
//   - RendererBuilderOption: option function to apply
func WithFenceTimeout(nanoseconds uint64) RendererBuilderOption {
	return func(c *rendererConfig) {
		c.fenceTimeout = nanoseconds
	}
}

// WithFlippedViewport uses a negative-height viewport so +Y points up in clip
// space.
//
// Returns:
//   - RendererBuilderOption: option function to apply
func WithFlippedViewport() RendererBuilderOption {
	return func(c *rendererConfig) {
		c.flipViewport = true
	}
}

// WithOnRebuild registers a hook invoked after every successful swapchain
// rebuild, once the old chain is gone.
//
// Parameters:
//   - fn: receives the new swapchain
//
// Returns:
//   - RendererBuilderOption: option function to apply
func WithOnRebuild(fn func(*Swapchain)) RendererBuilderOption {
	return func(c *rendererConfig) {
		c.onRebuild = fn
	}
}
