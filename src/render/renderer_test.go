package render_test

import (
	"fmt"
	"strings"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/require"
	"github.com/vulkan-go/vulkan"

	"prism/src/render"
	"prism/src/render/rendertest"
)

func newRenderer(t *testing.T, dev *rendertest.FakeDevice, surface *rendertest.Surface, opts ...render.RendererBuilderOption) *render.Renderer {
	t.Helper()
	r, err := render.NewRenderer(dev, surface, opts...)
	require.NoError(t, err)
	return r
}

func drawFrame(t *testing.T, r *render.Renderer) render.Frame {
	t.Helper()
	frame, err := r.BeginFrame()
	require.NoError(t, err)
	require.NotNil(t, frame)
	r.BeginPass(frame)
	r.EndPass(frame)
	require.NoError(t, r.EndFrame(frame))
	return *frame
}

func requireViolation(t *testing.T, op string, fn func()) {
	t.Helper()
	defer func() {
		v := recover()
		cv, ok := v.(render.ContractViolation)
		require.True(t, ok, "expected a ContractViolation panic, got %v", v)
		require.Equal(t, op, cv.Op)
	}()
	fn()
}

func TestRendererFrameIndexRoundRobin(t *testing.T) {
	for _, framesInFlight := range []int{1, 2, 3} {
		t.Run(fmt.Sprintf("F=%d", framesInFlight), func(t *testing.T) {
			dev := rendertest.NewFakeDevice()
			r := newRenderer(t, dev, rendertest.NewSurface(800, 600), render.WithFramesInFlight(framesInFlight))
			require.Equal(t, framesInFlight, r.FramesInFlight())

			for i := 0; i < 3*framesInFlight+1; i++ {
				frame := drawFrame(t, r)
				require.Equal(t, i%framesInFlight, frame.Index)
			}
			require.Empty(t, dev.Violations())
			require.Equal(t, 0, r.Rebuilds())
		})
	}
}

func TestRendererWaitsBeforeReusingSlot(t *testing.T) {
	dev := rendertest.NewFakeDevice()
	dev.Manual = true
	r := newRenderer(t, dev, rendertest.NewSurface(800, 600), render.WithFramesInFlight(2))

	for i := 0; i < 10; i++ {
		dev.ResetOps()
		drawFrame(t, r)
		ops := dev.Ops()

		require.Equal(t, "WaitForFences 1", ops[0], "frame %d: %v", i, ops)
		begin := indexOf(ops, "BeginCommandBuffer")
		reset := indexOf(ops, "ResetFences")
		submit := indexOf(ops, "Submit")
		require.Greater(t, begin, indexOf(ops, "AcquireNextImage 0"), "frame %d: %v", i, ops)
		require.Greater(t, reset, indexOf(ops, "EndCommandBuffer"), "frame %d: %v", i, ops)
		require.Equal(t, reset+1, submit, "frame %d: %v", i, ops)
	}
	require.Empty(t, dev.Violations())
}

func TestRendererFailedFrameKeepsSlotUsable(t *testing.T) {
	for idx, op := range []string{"BeginCommandBuffer", "EndCommandBuffer", "ResetFences", "Submit"} {
		t.Run(fmt.Sprintf("%d_%s", idx, op), func(t *testing.T) {
			dev := rendertest.NewFakeDevice()
			dev.Manual = true
			r := newRenderer(t, dev, rendertest.NewSurface(800, 600), render.WithFramesInFlight(2))
			boom := errors.New("boom")
			dev.FailNext(op, boom)

			frame, err := r.BeginFrame()
			if op == "BeginCommandBuffer" {
				require.Nil(t, frame)
			} else {
				require.NoError(t, err)
				r.BeginPass(frame)
				r.EndPass(frame)
				err = r.EndFrame(frame)
			}
			require.ErrorIs(t, err, boom)
			require.False(t, r.IsFrameInProgress())

			for i := 0; i < 5; i++ {
				drawFrame(t, r)
			}
			require.Empty(t, dev.Violations())
			require.Equal(t, 1, r.Rebuilds())
			require.Equal(t, 2, dev.Live()["fence"])
			require.Equal(t, 4, dev.Live()["semaphore"])

			require.NoError(t, r.Destroy())
			require.Empty(t, dev.Live())
		})
	}
}

func TestFakeDeviceFlagsInFlightReuse(t *testing.T) {
	dev := rendertest.NewFakeDevice()
	dev.Manual = true
	cbs, err := dev.AllocateCommandBuffers(1)
	require.NoError(t, err)
	fence, err := dev.CreateFence(false)
	require.NoError(t, err)

	require.NoError(t, dev.BeginCommandBuffer(cbs[0]))
	require.NoError(t, dev.EndCommandBuffer(cbs[0]))
	require.NoError(t, dev.Submit(&vulkan.SubmitInfo{
		CommandBufferCount: 1,
		PCommandBuffers:    cbs,
	}, fence))
	require.NoError(t, dev.BeginCommandBuffer(cbs[0]))

	require.Len(t, dev.Violations(), 1)
	require.Contains(t, dev.Violations()[0], "in flight")
}

func TestRendererContractViolations(t *testing.T) {
	for idx, tc := range []struct {
		name string
		op   string
		fn   func(r *render.Renderer)
	}{
		{"BeginPass while idle", "BeginPass", func(r *render.Renderer) { r.BeginPass(nil) }},
		{"EndPass while idle", "EndPass", func(r *render.Renderer) { r.EndPass(nil) }},
		{"EndFrame while idle", "EndFrame", func(r *render.Renderer) { _ = r.EndFrame(nil) }},
		{"FrameIndex while idle", "FrameIndex", func(r *render.Renderer) { r.FrameIndex() }},
		{"CurrentCommandBuffer while idle", "CurrentCommandBuffer", func(r *render.Renderer) { r.CurrentCommandBuffer() }},
		{"BeginFrame twice", "BeginFrame", func(r *render.Renderer) {
			_, _ = r.BeginFrame()
			_, _ = r.BeginFrame()
		}},
		{"EndFrame during pass", "EndFrame", func(r *render.Renderer) {
			frame, _ := r.BeginFrame()
			r.BeginPass(frame)
			_ = r.EndFrame(frame)
		}},
		{"BeginPass twice", "BeginPass", func(r *render.Renderer) {
			frame, _ := r.BeginFrame()
			r.BeginPass(frame)
			r.BeginPass(frame)
		}},
		{"EndPass without pass", "EndPass", func(r *render.Renderer) {
			frame, _ := r.BeginFrame()
			r.EndPass(frame)
		}},
		{"stale frame", "BeginPass", func(r *render.Renderer) {
			stale, _ := r.BeginFrame()
			_ = r.EndFrame(stale)
			_, _ = r.BeginFrame()
			r.BeginPass(stale)
		}},
		{"Destroy during frame", "Destroy", func(r *render.Renderer) {
			_, _ = r.BeginFrame()
			_ = r.Destroy()
		}},
	} {
		t.Run(fmt.Sprintf("%d/%s", idx, tc.name), func(t *testing.T) {
			r := newRenderer(t, rendertest.NewFakeDevice(), rendertest.NewSurface(800, 600))
			requireViolation(t, tc.op, func() { tc.fn(r) })
		})
	}
}

func TestRendererFrameScopedAccessors(t *testing.T) {
	r := newRenderer(t, rendertest.NewFakeDevice(), rendertest.NewSurface(800, 600))
	require.False(t, r.IsFrameInProgress())

	frame, err := r.BeginFrame()
	require.NoError(t, err)
	require.True(t, r.IsFrameInProgress())
	require.Equal(t, frame.Index, r.FrameIndex())
	require.Equal(t, frame.CommandBuffer, r.CurrentCommandBuffer())

	require.NoError(t, r.EndFrame(frame))
	require.False(t, r.IsFrameInProgress())
}

func TestRendererOutOfDateRebuilds(t *testing.T) {
	dev := rendertest.NewFakeDevice()
	surface := rendertest.NewSurface(800, 600)
	var rebuilt *render.Swapchain
	r := newRenderer(t, dev, surface, render.WithOnRebuild(func(sc *render.Swapchain) { rebuilt = sc }))
	renderPass := r.RenderPass()

	dev.AcquireResults = []vulkan.Result{vulkan.ErrorOutOfDate}
	surface.Resize(1024, 768)

	frame, err := r.BeginFrame()
	require.NoError(t, err)
	require.Nil(t, frame)
	require.False(t, r.IsFrameInProgress())

	require.Equal(t, uint32(1024), r.Swapchain().Width())
	require.Equal(t, uint32(768), r.Swapchain().Height())
	require.Equal(t, renderPass, r.RenderPass())
	require.Same(t, r.Swapchain(), rebuilt)
	require.NotEqual(t, vulkan.NullSwapchain, dev.LastSwapchainInfo().OldSwapchain)

	for i := 0; i < 4; i++ {
		drawFrame(t, r)
	}
	require.Equal(t, 1, r.Rebuilds())
	require.Equal(t, map[string]int{
		"swapchain":     1,
		"renderPass":    1,
		"image":         3,
		"imageView":     6,
		"framebuffer":   3,
		"commandBuffer": 2,
		"semaphore":     4,
		"fence":         2,
	}, dev.Live())
	require.Empty(t, dev.Violations())
}

func TestRendererSuboptimalRebuildsAfterPresent(t *testing.T) {
	for idx, tc := range []struct {
		name    string
		acquire []vulkan.Result
		present []vulkan.Result
	}{
		{"acquire", []vulkan.Result{vulkan.Suboptimal}, nil},
		{"present", nil, []vulkan.Result{vulkan.Suboptimal}},
		{"present out of date", nil, []vulkan.Result{vulkan.ErrorOutOfDate}},
	} {
		t.Run(fmt.Sprintf("%d/%s", idx, tc.name), func(t *testing.T) {
			dev := rendertest.NewFakeDevice()
			r := newRenderer(t, dev, rendertest.NewSurface(800, 600))
			dev.AcquireResults = tc.acquire
			dev.PresentResults = tc.present

			dev.ResetOps()
			frame := drawFrame(t, r)
			require.Equal(t, 0, frame.Index)
			require.Equal(t, 1, r.Rebuilds())

			ops := dev.Ops()
			require.Greater(t, indexOf(ops, "CreateSwapchain 800x600"), indexOfPrefix(ops, "Present"))
			require.Empty(t, dev.Violations())
		})
	}
}

func TestRendererResizeTriggersCoalesce(t *testing.T) {
	dev := rendertest.NewFakeDevice()
	surface := rendertest.NewSurface(800, 600)
	r := newRenderer(t, dev, surface)

	frame, err := r.BeginFrame()
	require.NoError(t, err)
	r.NotifyResized()
	surface.Resize(1280, 720)
	r.NotifyResized()
	dev.PresentResults = []vulkan.Result{vulkan.Suboptimal}
	r.NotifyResized()
	require.NoError(t, r.EndFrame(frame))

	require.Equal(t, 1, r.Rebuilds())
	require.Equal(t, 2, dev.SwapchainCreates())
	require.Equal(t, uint32(1280), r.Swapchain().Width())

	drawFrame(t, r)
	require.Equal(t, 1, r.Rebuilds())
	require.Empty(t, dev.Violations())
}

func TestRendererExtentMismatchRebuilds(t *testing.T) {
	dev := rendertest.NewFakeDevice()
	surface := rendertest.NewSurface(800, 600)
	r := newRenderer(t, dev, surface)

	drawFrame(t, r)
	surface.Resize(640, 480)
	drawFrame(t, r)

	require.Equal(t, 1, r.Rebuilds())
	require.Equal(t, render.SwapchainDimensions{
		Width:  640,
		Height: 480,
		Format: vulkan.FormatB8g8r8a8Srgb,
	}, r.SwapchainDimensions())
	require.InDelta(t, 640.0/480.0, r.AspectRatio(), 1e-6)
}

func TestRendererFixedSurfaceExtentDoesNotRebuild(t *testing.T) {
	dev := rendertest.NewFakeDevice()
	dev.Capabilities.CurrentExtent = vulkan.Extent2D{Width: 800, Height: 600}
	surface := rendertest.NewSurface(801, 600)
	r := newRenderer(t, dev, surface)

	for i := 0; i < 5; i++ {
		drawFrame(t, r)
	}
	require.Equal(t, 0, r.Rebuilds())
	require.Equal(t, 1, dev.SwapchainCreates())
	require.Equal(t, uint32(800), r.Swapchain().Width())
	width, height := r.Swapchain().DrawableSize()
	require.Equal(t, [2]int{801, 600}, [2]int{width, height})

	surface.Resize(900, 600)
	drawFrame(t, r)
	drawFrame(t, r)
	require.Equal(t, 1, r.Rebuilds())
	require.Equal(t, 2, dev.SwapchainCreates())
	require.Empty(t, dev.Violations())
}

func TestRendererZeroExtent(t *testing.T) {
	dev := rendertest.NewFakeDevice()
	surface := rendertest.NewSurface(800, 600)
	r := newRenderer(t, dev, surface)
	drawFrame(t, r)

	surface.Resize(0, 0)
	r.NotifyResized()
	for i := 0; i < 3; i++ {
		frame, err := r.BeginFrame()
		require.Nil(t, frame)
		require.ErrorIs(t, err, render.ErrSurfaceUnavailable)
		require.True(t, render.IsTransient(err))
		require.False(t, render.IsFatal(err))
		require.False(t, r.IsFrameInProgress())
	}
	require.Equal(t, 1, dev.SwapchainCreates())

	surface.Resize(800, 800)
	drawFrame(t, r)
	require.Equal(t, uint32(800), r.Swapchain().Width())
	require.Equal(t, uint32(800), r.Swapchain().Height())
	require.Equal(t, 1, r.Rebuilds())
	require.Empty(t, dev.Violations())
}

func TestRendererMinimizedDuringFrame(t *testing.T) {
	dev := rendertest.NewFakeDevice()
	surface := rendertest.NewSurface(800, 600)
	r := newRenderer(t, dev, surface)

	frame, err := r.BeginFrame()
	require.NoError(t, err)
	surface.Resize(0, 0)
	require.NoError(t, r.EndFrame(frame))
	require.False(t, r.IsFrameInProgress())

	_, err = r.BeginFrame()
	require.ErrorIs(t, err, render.ErrSurfaceUnavailable)

	surface.Resize(300, 200)
	drawFrame(t, r)
	require.Equal(t, uint32(300), r.Swapchain().Width())
	require.Empty(t, dev.Violations())
}

func TestRendererNoDeadlockOnInstantGPU(t *testing.T) {
	for _, manual := range []bool{false, true} {
		for _, framesInFlight := range []int{1, 2, 3} {
			t.Run(fmt.Sprintf("manual=%t/F=%d", manual, framesInFlight), func(t *testing.T) {
				dev := rendertest.NewFakeDevice()
				dev.Manual = manual
				r := newRenderer(t, dev, rendertest.NewSurface(800, 600), render.WithFramesInFlight(framesInFlight))

				for i := 0; i < framesInFlight+1; i++ {
					drawFrame(t, r)
					require.False(t, r.IsFrameInProgress())
				}
				require.Empty(t, dev.Violations())
			})
		}
	}
}

func TestRendererOutOfOrderImages(t *testing.T) {
	dev := rendertest.NewFakeDevice()
	dev.Manual = true
	order := []uint32{2, 0, 1, 1, 0, 2}
	dev.ImageOrder = order
	r := newRenderer(t, dev, rendertest.NewSurface(800, 600), render.WithFramesInFlight(2))

	for i := 0; i < 2*len(order); i++ {
		frame := drawFrame(t, r)
		require.Less(t, int(frame.ImageIndex), r.Swapchain().ImageCount())
		require.Equal(t, order[i%len(order)], frame.ImageIndex)
	}
	require.Empty(t, dev.Violations())
}

func TestRendererWaitsOnImageStillInFlight(t *testing.T) {
	dev := rendertest.NewFakeDevice()
	dev.Manual = true
	dev.ImageOrder = []uint32{0, 0}
	r := newRenderer(t, dev, rendertest.NewSurface(800, 600), render.WithFramesInFlight(2))

	drawFrame(t, r)
	dev.ResetOps()
	drawFrame(t, r)

	waits := 0
	for _, op := range dev.Ops() {
		if op == "WaitForFences 1" {
			waits++
		}
	}
	require.Equal(t, 2, waits)
	require.Empty(t, dev.Violations())
}

func TestRendererBeginPassRecordsFullExtent(t *testing.T) {
	for idx, tc := range []struct {
		opts    []render.RendererBuilderOption
		flipped bool
	}{
		{nil, false},
		{[]render.RendererBuilderOption{render.WithFlippedViewport()}, true},
	} {
		t.Run(fmt.Sprintf("%d/flipped=%t", idx, tc.flipped), func(t *testing.T) {
			dev := rendertest.NewFakeDevice()
			opts := append(tc.opts, render.WithClearColor(0.1, 0.2, 0.3))
			r := newRenderer(t, dev, rendertest.NewSurface(800, 600), opts...)

			frame, err := r.BeginFrame()
			require.NoError(t, err)
			r.BeginPass(frame)
			r.EndPass(frame)

			rec := dev.RecorderFor(frame.CommandBuffer)
			require.Equal(t, []string{"BeginRenderPass", "SetViewport", "SetScissor", "EndRenderPass"}, rec.Ops())

			begin := rec.Commands[0]
			require.Equal(t, r.RenderPass(), begin.RenderPass)
			require.Equal(t, r.Swapchain().Framebuffer(frame.ImageIndex), begin.Framebuffer)
			require.Equal(t, vulkan.Extent2D{Width: 800, Height: 600}, begin.RenderArea.Extent)
			require.Len(t, begin.ClearValues, 2)

			viewport := rec.Commands[1].Viewport
			require.Equal(t, float32(800), viewport.Width)
			if tc.flipped {
				require.Equal(t, float32(-600), viewport.Height)
				require.Equal(t, float32(600), viewport.Y)
			} else {
				require.Equal(t, float32(600), viewport.Height)
				require.Equal(t, float32(0), viewport.Y)
			}
			require.Equal(t, float32(1), viewport.MaxDepth)
			require.Equal(t, vulkan.Extent2D{Width: 800, Height: 600}, rec.Commands[2].Scissor.Extent)

			require.NoError(t, r.EndFrame(frame))
		})
	}
}

func TestRendererDeviceLost(t *testing.T) {
	dev := rendertest.NewFakeDevice()
	r := newRenderer(t, dev, rendertest.NewSurface(800, 600))
	dev.AcquireResults = []vulkan.Result{vulkan.ErrorDeviceLost}

	frame, err := r.BeginFrame()
	require.Nil(t, frame)
	require.ErrorIs(t, err, render.ErrDeviceLost)
	require.True(t, render.IsFatal(err))
	require.False(t, r.IsFrameInProgress())
}

func TestRendererRetriesTimedOutFenceWait(t *testing.T) {
	dev := rendertest.NewFakeDevice()
	r := newRenderer(t, dev, rendertest.NewSurface(800, 600), render.WithFenceTimeout(1000))
	dev.WaitTimeouts = 2

	dev.ResetOps()
	drawFrame(t, r)
	ops := dev.Ops()
	require.Equal(t, []string{"WaitForFences 1", "WaitForFences 1", "WaitForFences 1"}, ops[:3])
	require.Equal(t, "AcquireNextImage 0", ops[3])
}

func TestRendererChainFailureIsRetried(t *testing.T) {
	dev := rendertest.NewFakeDevice()
	surface := rendertest.NewSurface(800, 600)
	r := newRenderer(t, dev, surface)
	old := r.Swapchain()

	dev.FailNext("CreateFramebuffer", errors.New("out of memory"))
	r.NotifyResized()
	frame, err := r.BeginFrame()
	require.Nil(t, frame)
	require.ErrorIs(t, err, render.ErrChainConstructionFailed)
	require.Contains(t, err.Error(), "out of memory")
	require.Same(t, old, r.Swapchain())

	drawFrame(t, r)
	require.NotSame(t, old, r.Swapchain())
	require.Equal(t, 1, r.Rebuilds())
	require.Equal(t, 1, dev.Live()["swapchain"])
	require.Equal(t, 1, dev.Live()["renderPass"])
	require.Empty(t, dev.Violations())
}

func TestRendererRenderPassIncompatible(t *testing.T) {
	dev := rendertest.NewFakeDevice()
	r := newRenderer(t, dev, rendertest.NewSurface(800, 600))

	dev.Depth = vulkan.FormatD24UnormS8Uint
	r.NotifyResized()
	_, err := r.BeginFrame()
	require.ErrorIs(t, err, render.ErrRenderPassIncompatible)
	require.ErrorIs(t, err, render.ErrChainConstructionFailed)
	require.Equal(t, 1, dev.SwapchainCreates())
}

func TestRendererDestroyReleasesEverything(t *testing.T) {
	dev := rendertest.NewFakeDevice()
	dev.Manual = true
	surface := rendertest.NewSurface(800, 600)
	r := newRenderer(t, dev, surface, render.WithFramesInFlight(3))

	drawFrame(t, r)
	surface.Resize(900, 700)
	r.NotifyResized()
	drawFrame(t, r)
	drawFrame(t, r)

	require.NoError(t, r.Destroy())
	require.Empty(t, dev.Live())
	require.Empty(t, dev.Violations())
	require.Contains(t, dev.Ops(), "WaitIdle")
}

func indexOf(ops []string, op string) int {
	for i, o := range ops {
		if o == op {
			return i
		}
	}
	return -1
}

func indexOfPrefix(ops []string, prefix string) int {
	for i, o := range ops {
		if strings.HasPrefix(o, prefix) {
			return i
		}
	}
	return -1
}
