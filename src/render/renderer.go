package render

import (
	"github.com/pkg/errors"
	"github.com/vulkan-go/vulkan"
)

type frameState int

const (
	stateIdle frameState = iota
	stateFrame
	statePass
)

// Renderer drives one swapchain and a fixed ring of frame slots. It is not
// safe for concurrent use; every method runs on the submission thread.
type Renderer struct {
	device  Device
	surface SurfaceProvider
	cfg     rendererConfig

	swapchain *Swapchain
	slots     []frameSlot
	// imagesInFlight maps a swapchain image to the fence of the slot that
	// last rendered into it.
	imagesInFlight []vulkan.Fence

	frameIndex     int
	state          frameState
	current        *Frame
	serial         uint64
	rebuildPending bool
	rebuilds       int
}

var _ Context = (*Renderer)(nil)

// NewRenderer builds the initial swapchain and the frame slots.
func NewRenderer(device Device, surface SurfaceProvider, opts ...RendererBuilderOption) (*Renderer, error) {
	cfg := defaultRendererConfig()
	for _, opt := range opts {
		opt(&cfg)
	}

	sc, err := NewSwapchain(device, surface, nil, cfg.swapchain)
	if err != nil {
		return nil, err
	}
	slots, err := newFrameSlots(device, cfg.framesInFlight)
	if err != nil {
		sc.Destroy()
		return nil, err
	}
	return &Renderer{
		device:         device,
		surface:        surface,
		cfg:            cfg,
		swapchain:      sc,
		slots:          slots,
		imagesInFlight: make([]vulkan.Fence, sc.ImageCount()),
	}, nil
}

// BeginFrame waits for the current slot, acquires an image and starts
// recording. It returns (nil, nil) when the swapchain went stale and was
// rebuilt; the caller skips this tick. A transient error (see IsTransient)
// also means no frame this tick.
func (r *Renderer) BeginFrame() (*Frame, error) {
	if r.state != stateIdle {
		violate("BeginFrame", "frame already in progress")
	}
	if r.rebuildPending {
		if err := r.rebuild(); err != nil {
			return nil, err
		}
	}

	slot := &r.slots[r.frameIndex]
	if err := r.waitFences([]vulkan.Fence{slot.inFlight}); err != nil {
		return nil, err
	}

	imageIndex, status, err := r.swapchain.AcquireNextImage(slot.imageAvailable)
	if err != nil {
		return nil, err
	}
	switch status {
	case StatusOutOfDate:
		Logger().Debug("acquire out of date, skipping frame", "frame", r.frameIndex)
		r.rebuildPending = true
		return nil, r.rebuild()
	case StatusSuboptimal:
		Logger().Debug("acquire suboptimal", "frame", r.frameIndex, "image", imageIndex)
		r.rebuildPending = true
	}

	if fence := r.imagesInFlight[imageIndex]; fence != vulkan.NullFence && fence != slot.inFlight {
		if err := r.waitFences([]vulkan.Fence{fence}); err != nil {
			return nil, err
		}
	}
	r.imagesInFlight[imageIndex] = slot.inFlight

	if err := r.device.BeginCommandBuffer(slot.commandBuffer); err != nil {
		r.abandonFrame(slot, false)
		return nil, errors.Wrap(err, "begin command buffer")
	}

	r.serial++
	r.current = &Frame{
		Index:         r.frameIndex,
		ImageIndex:    imageIndex,
		CommandBuffer: slot.commandBuffer,
		Recorder:      r.device.Recorder(slot.commandBuffer),
		serial:        r.serial,
	}
	r.state = stateFrame
	return r.current, nil
}

// BeginPass begins the swapchain render pass on the frame's framebuffer and
// sets a full-extent viewport and scissor.
func (r *Renderer) BeginPass(frame *Frame) {
	r.checkFrame("BeginPass", frame)
	if r.state != stateFrame {
		violate("BeginPass", "render pass already begun")
	}

	extent := r.swapchain.Extent()
	clearValues := make([]vulkan.ClearValue, 2)
	clearValues[0].SetColor(r.cfg.clearColor[:])
	clearValues[1].SetDepthStencil(1, 0)

	rec := frame.Recorder
	rec.BeginRenderPass(&vulkan.RenderPassBeginInfo{
		SType:       vulkan.StructureTypeRenderPassBeginInfo,
		RenderPass:  r.swapchain.RenderPass(),
		Framebuffer: r.swapchain.Framebuffer(frame.ImageIndex),
		RenderArea: vulkan.Rect2D{
			Offset: vulkan.Offset2D{X: 0, Y: 0},
			Extent: extent,
		},
		ClearValueCount: uint32(len(clearValues)),
		PClearValues:    clearValues,
	})

	viewport := vulkan.Viewport{
		X:        0,
		Y:        0,
		Width:    float32(extent.Width),
		Height:   float32(extent.Height),
		MinDepth: 0,
		MaxDepth: 1,
	}
	if r.cfg.flipViewport {
		viewport.Y = float32(extent.Height)
		viewport.Height = -viewport.Height
	}
	rec.SetViewport(viewport)
	rec.SetScissor(vulkan.Rect2D{Offset: vulkan.Offset2D{X: 0, Y: 0}, Extent: extent})
	r.state = statePass
}

func (r *Renderer) EndPass(frame *Frame) {
	r.checkFrame("EndPass", frame)
	if r.state != statePass {
		violate("EndPass", "no render pass begun")
	}
	frame.Recorder.EndRenderPass()
	r.state = stateFrame
}

// EndFrame submits the recorded work, presents the image and advances the
// frame index. Any rebuild it triggers happens after presentation.
func (r *Renderer) EndFrame(frame *Frame) error {
	r.checkFrame("EndFrame", frame)
	if r.state == statePass {
		violate("EndFrame", "render pass still open")
	}

	slot := &r.slots[r.frameIndex]
	r.current = nil
	r.state = stateIdle
	r.frameIndex = (r.frameIndex + 1) % len(r.slots)

	if err := r.device.EndCommandBuffer(slot.commandBuffer); err != nil {
		r.abandonFrame(slot, false)
		return errors.Wrap(err, "end command buffer")
	}
	// the fence is reset only once nothing can fail before Submit
	if err := r.device.ResetFences([]vulkan.Fence{slot.inFlight}); err != nil {
		r.abandonFrame(slot, true)
		return errors.Wrap(err, "reset in-flight fence")
	}
	err := r.device.Submit(&vulkan.SubmitInfo{
		SType:                vulkan.StructureTypeSubmitInfo,
		WaitSemaphoreCount:   1,
		PWaitSemaphores:      []vulkan.Semaphore{slot.imageAvailable},
		PWaitDstStageMask:    []vulkan.PipelineStageFlags{vulkan.PipelineStageFlags(vulkan.PipelineStageColorAttachmentOutputBit)},
		CommandBufferCount:   1,
		PCommandBuffers:      []vulkan.CommandBuffer{slot.commandBuffer},
		SignalSemaphoreCount: 1,
		PSignalSemaphores:    []vulkan.Semaphore{slot.renderFinished},
	}, slot.inFlight)
	if err != nil {
		r.abandonFrame(slot, true)
		return errors.Wrap(err, "submit draw command buffer")
	}

	status, err := r.swapchain.Present(frame.ImageIndex, slot.renderFinished)
	if err != nil {
		return err
	}
	if status.NeedsRebuild() {
		Logger().Debug("present reported stale swapchain", "status", status)
		r.rebuildPending = true
	}
	if !r.rebuildPending && r.extentChanged() {
		r.rebuildPending = true
	}
	if !r.rebuildPending {
		return nil
	}
	if err := r.rebuild(); err != nil && !errors.Is(err, ErrSurfaceUnavailable) {
		return err
	}
	return nil
}

// NotifyResized schedules a rebuild. It is safe to call from a window
// callback on the submission thread, including mid-frame.
func (r *Renderer) NotifyResized() {
	r.rebuildPending = true
}

// extentChanged compares against the size the chain was built from, not its
// extent: a surface with a fixed current extent never matches the drawable.
func (r *Renderer) extentChanged() bool {
	width, height := r.surface.FramebufferSize()
	builtW, builtH := r.swapchain.DrawableSize()
	if width == builtW && height == builtH {
		return false
	}
	Logger().Warn("drawable size changed since swapchain build",
		"drawable", [2]int{width, height},
		"built", [2]int{builtW, builtH},
	)
	return true
}

// rebuild replaces the swapchain. On any error the rebuild stays pending and
// the old chain remains current.
func (r *Renderer) rebuild() error {
	r.rebuildPending = true

	width, height := r.surface.FramebufferSize()
	if width <= 0 || height <= 0 {
		return errors.Wrapf(ErrSurfaceUnavailable, "drawable is %dx%d", width, height)
	}
	if err := r.waitFences(slotFences(r.slots)); err != nil {
		return err
	}

	sc, err := NewSwapchain(r.device, r.surface, r.swapchain, r.cfg.swapchain)
	if err != nil {
		return err
	}
	r.swapchain.Destroy()
	r.swapchain = sc
	r.imagesInFlight = make([]vulkan.Fence, sc.ImageCount())
	r.rebuildPending = false
	r.rebuilds++

	if r.cfg.onRebuild != nil {
		r.cfg.onRebuild(sc)
	}
	return nil
}

// abandonFrame recovers a slot whose frame failed between acquire and submit.
// The acquired image is never presented, so the chain is rebuilt as well.
func (r *Renderer) abandonFrame(slot *frameSlot, fenceReset bool) {
	r.rebuildPending = true
	old := slot.inFlight
	if err := slot.renew(r.device, fenceReset); err != nil {
		Logger().Warn("renew frame slot", "err", err)
		return
	}
	for i, fence := range r.imagesInFlight {
		if fence == old {
			r.imagesInFlight[i] = vulkan.NullFence
		}
	}
}

func (r *Renderer) waitFences(fences []vulkan.Fence) error {
	for {
		err := r.device.WaitForFences(fences, r.cfg.fenceTimeout)
		if errors.Is(err, ErrTimeout) {
			Logger().Warn("fence wait timed out, retrying", "fences", len(fences), "timeout", r.cfg.fenceTimeout)
			continue
		}
		return err
	}
}

func (r *Renderer) checkFrame(op string, frame *Frame) {
	if r.state == stateIdle {
		violate(op, "no frame in progress")
	}
	if frame == nil || frame != r.current || frame.serial != r.serial {
		violate(op, "stale or foreign frame")
	}
}

// AspectRatio is the swapchain's width over height.
func (r *Renderer) AspectRatio() float32 {
	return r.swapchain.ExtentAspectRatio()
}

// RenderPass is stable across rebuilds; pipelines built against it stay valid.
func (r *Renderer) RenderPass() vulkan.RenderPass {
	return r.swapchain.RenderPass()
}

func (r *Renderer) IsFrameInProgress() bool {
	return r.state != stateIdle
}

// FrameIndex returns the slot of the frame in progress.
func (r *Renderer) FrameIndex() int {
	if r.state == stateIdle {
		violate("FrameIndex", "no frame in progress")
	}
	return r.frameIndex
}

// CurrentCommandBuffer returns the command buffer of the frame in progress.
func (r *Renderer) CurrentCommandBuffer() vulkan.CommandBuffer {
	if r.state == stateIdle {
		violate("CurrentCommandBuffer", "no frame in progress")
	}
	return r.slots[r.frameIndex].commandBuffer
}

func (r *Renderer) FramesInFlight() int {
	return len(r.slots)
}

func (r *Renderer) Swapchain() *Swapchain {
	return r.swapchain
}

// Rebuilds counts successful swapchain rebuilds.
func (r *Renderer) Rebuilds() int {
	return r.rebuilds
}

func (r *Renderer) SwapchainDimensions() SwapchainDimensions {
	return r.swapchain.Dimensions()
}

// Destroy waits for the device to go idle, then releases the frame slots and
// the swapchain.
func (r *Renderer) Destroy() error {
	if r.state != stateIdle {
		violate("Destroy", "frame in progress")
	}
	err := r.device.WaitIdle()
	destroyFrameSlots(r.device, r.slots)
	r.slots = nil
	if r.swapchain != nil {
		r.swapchain.Destroy()
		r.swapchain = nil
	}
	return errors.Wrap(err, "wait device idle")
}
