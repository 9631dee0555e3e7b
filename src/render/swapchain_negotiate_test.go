package render

import (
	"fmt"
	"math"
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/vulkan-go/vulkan"
)

func TestChooseExtent(t *testing.T) {
	caps := vulkan.SurfaceCapabilities{
		CurrentExtent:  vulkan.Extent2D{Width: math.MaxUint32, Height: math.MaxUint32},
		MinImageExtent: vulkan.Extent2D{Width: 64, Height: 64},
		MaxImageExtent: vulkan.Extent2D{Width: 2048, Height: 1024},
	}
	for idx, tc := range []struct {
		width, height int
		want          vulkan.Extent2D
	}{
		{800, 600, vulkan.Extent2D{Width: 800, Height: 600}},
		{10, 10, vulkan.Extent2D{Width: 64, Height: 64}},
		{4096, 4096, vulkan.Extent2D{Width: 2048, Height: 1024}},
		{4096, 32, vulkan.Extent2D{Width: 2048, Height: 64}},
	} {
		t.Run(fmt.Sprintf("%d/%dx%d", idx, tc.width, tc.height), func(t *testing.T) {
			require.Equal(t, tc.want, chooseExtent(caps, tc.width, tc.height))
		})
	}

	caps.CurrentExtent = vulkan.Extent2D{Width: 1280, Height: 720}
	require.Equal(t, caps.CurrentExtent, chooseExtent(caps, 800, 600))
}

func TestChooseImageCount(t *testing.T) {
	for idx, tc := range []struct {
		min, max uint32
		want     uint32
	}{
		{2, 0, 3},
		{2, 8, 3},
		{2, 2, 2},
		{3, 3, 3},
		{1, 4, 2},
	} {
		t.Run(fmt.Sprintf("%d/min=%d,max=%d", idx, tc.min, tc.max), func(t *testing.T) {
			caps := vulkan.SurfaceCapabilities{MinImageCount: tc.min, MaxImageCount: tc.max}
			require.Equal(t, tc.want, chooseImageCount(caps))
		})
	}
}

func TestChooseSurfaceFormat(t *testing.T) {
	srgb := vulkan.SurfaceFormat{Format: vulkan.FormatB8g8r8a8Srgb, ColorSpace: vulkan.ColorSpaceSrgbNonlinear}
	unorm := vulkan.SurfaceFormat{Format: vulkan.FormatB8g8r8a8Unorm, ColorSpace: vulkan.ColorSpaceSrgbNonlinear}
	rgba := vulkan.SurfaceFormat{Format: vulkan.FormatR8g8b8a8Unorm, ColorSpace: vulkan.ColorSpaceSrgbNonlinear}

	require.Equal(t, srgb, chooseSurfaceFormat([]vulkan.SurfaceFormat{unorm, srgb}))
	require.Equal(t, rgba, chooseSurfaceFormat([]vulkan.SurfaceFormat{rgba, unorm}))
}

func TestChoosePresentModeDefaults(t *testing.T) {
	cfg := defaultSwapchainConfig()
	require.Equal(t, vulkan.PresentModeMailbox, choosePresentMode([]vulkan.PresentMode{vulkan.PresentModeFifo, vulkan.PresentModeMailbox}, cfg))
	require.Equal(t, vulkan.PresentModeFifo, choosePresentMode([]vulkan.PresentMode{vulkan.PresentModeImmediate, vulkan.PresentModeFifo}, cfg))
	require.Equal(t, uint64(math.MaxUint64), cfg.AcquireTimeout)
}

func TestChooseCompositeAlpha(t *testing.T) {
	caps := vulkan.SurfaceCapabilities{
		SupportedCompositeAlpha: vulkan.CompositeAlphaFlags(vulkan.CompositeAlphaInheritBit),
	}
	require.Equal(t, vulkan.CompositeAlphaInheritBit, chooseCompositeAlpha(caps))
}

func TestClassify(t *testing.T) {
	for idx, tc := range []struct {
		res    vulkan.Result
		status Status
		err    error
	}{
		{vulkan.Success, StatusOK, nil},
		{vulkan.Suboptimal, StatusSuboptimal, nil},
		{vulkan.ErrorOutOfDate, StatusOutOfDate, nil},
		{vulkan.ErrorDeviceLost, StatusOK, ErrDeviceLost},
		{vulkan.Timeout, StatusOK, ErrTimeout},
		{vulkan.NotReady, StatusOK, ErrTimeout},
	} {
		t.Run(fmt.Sprintf("%d/%d", idx, tc.res), func(t *testing.T) {
			status, err := classify(tc.res)
			require.Equal(t, tc.status, status)
			if tc.err == nil {
				require.NoError(t, err)
				return
			}
			require.ErrorIs(t, err, tc.err)
		})
	}
	require.True(t, StatusSuboptimal.NeedsRebuild())
	require.True(t, StatusOutOfDate.NeedsRebuild())
	require.False(t, StatusOK.NeedsRebuild())
	require.Equal(t, "out-of-date", StatusOutOfDate.String())
}
