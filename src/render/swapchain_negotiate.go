package render

import (
	"math"

	"github.com/vulkan-go/vulkan"
)

// SwapchainConfig holds the presentation preferences negotiated against the
// surface on every (re)build.
type SwapchainConfig struct {
	// VSync forces FIFO presentation.
	VSync bool
	// PresentModes lists preferred present modes, best first. FIFO is always
	// the fallback.
	PresentModes []vulkan.PresentMode
	// AcquireTimeout bounds AcquireNextImage in nanoseconds.
	AcquireTimeout uint64
}

func defaultSwapchainConfig() SwapchainConfig {
	return SwapchainConfig{
		PresentModes:   []vulkan.PresentMode{vulkan.PresentModeMailbox},
		AcquireTimeout: math.MaxUint64,
	}
}

func chooseSurfaceFormat(formats []vulkan.SurfaceFormat) vulkan.SurfaceFormat {
	for _, f := range formats {
		if f.Format == vulkan.FormatB8g8r8a8Srgb && f.ColorSpace == vulkan.ColorSpaceSrgbNonlinear {
			return f
		}
	}
	return formats[0]
}

func choosePresentMode(available []vulkan.PresentMode, cfg SwapchainConfig) vulkan.PresentMode {
	if cfg.VSync {
		return vulkan.PresentModeFifo
	}
	for _, want := range cfg.PresentModes {
		for _, mode := range available {
			if mode == want {
				return mode
			}
		}
	}
	return vulkan.PresentModeFifo
}

// chooseExtent uses the surface's current extent unless the surface leaves it
// to the swapchain (0xFFFFFFFF), in which case the drawable size is clamped.
func chooseExtent(caps vulkan.SurfaceCapabilities, width, height int) vulkan.Extent2D {
	if caps.CurrentExtent.Width != math.MaxUint32 {
		return caps.CurrentExtent
	}
	return vulkan.Extent2D{
		Width:  clamp(uint32(width), caps.MinImageExtent.Width, caps.MaxImageExtent.Width),
		Height: clamp(uint32(height), caps.MinImageExtent.Height, caps.MaxImageExtent.Height),
	}
}

func chooseImageCount(caps vulkan.SurfaceCapabilities) uint32 {
	count := caps.MinImageCount + 1
	if caps.MaxImageCount > 0 && count > caps.MaxImageCount {
		count = caps.MaxImageCount
	}
	return count
}

func chooseCompositeAlpha(caps vulkan.SurfaceCapabilities) vulkan.CompositeAlphaFlagBits {
	for _, bit := range []vulkan.CompositeAlphaFlagBits{
		vulkan.CompositeAlphaOpaqueBit,
		vulkan.CompositeAlphaInheritBit,
		vulkan.CompositeAlphaPreMultipliedBit,
		vulkan.CompositeAlphaPostMultipliedBit,
	} {
		if caps.SupportedCompositeAlpha&vulkan.CompositeAlphaFlags(bit) != 0 {
			return bit
		}
	}
	return vulkan.CompositeAlphaOpaqueBit
}

func clamp(v, lo, hi uint32) uint32 {
	if v < lo {
		return lo
	}
	if hi != 0 && v > hi {
		return hi
	}
	return v
}
