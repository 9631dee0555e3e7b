// Package rendertest provides a fake GPU for exercising the render package
// without a driver, in the spirit of net/http/httptest.
//
// The fake completes submitted work either at submit time (the default) or,
// with Manual set, only once the CPU waits on the submission's fence. It logs
// every queue-level operation and records protocol violations instead of
// crashing, so tests can assert that none happened.
package rendertest

import (
	"fmt"
	"math"
	"sync"
	"unsafe"

	"github.com/pkg/errors"
	"github.com/vulkan-go/vulkan"

	"prism/src/render"
)

type fenceState struct {
	signaled bool
	pending  bool
}

type cbState int

const (
	cbInitial cbState = iota
	cbRecording
	cbExecutable
)

type commandBuffer struct {
	state    cbState
	fence    vulkan.Fence
	recorder *Recorder
}

type swapchain struct {
	images    []vulkan.Image
	extent    vulkan.Extent2D
	retired   bool
	destroyed bool
	next      int
}

// FakeDevice implements render.Device. The zero value is not usable; call
// NewFakeDevice.
type FakeDevice struct {
	mu sync.Mutex

	// Manual defers GPU completion until a fence is waited on.
	Manual bool

	// Capabilities, Formats and PresentModes are reported by SurfaceSupport.
	Capabilities vulkan.SurfaceCapabilities
	Formats      []vulkan.SurfaceFormat
	PresentModes []vulkan.PresentMode
	Depth        vulkan.Format

	// AcquireResults are consumed one per AcquireNextImage; Success once empty.
	AcquireResults []vulkan.Result
	// PresentResults are consumed one per Present; Success once empty.
	PresentResults []vulkan.Result
	// ImageOrder, when set, is cycled to choose acquired image indices.
	// Otherwise images are handed out round-robin.
	ImageOrder []uint32
	// WaitTimeouts makes that many fence waits report a timeout first.
	WaitTimeouts int

	ops        []string
	violations []string
	failures   map[string]error
	live       map[string]int

	fences     map[vulkan.Fence]*fenceState
	semaphores map[vulkan.Semaphore]bool
	buffers    map[vulkan.CommandBuffer]*commandBuffer
	chains     map[vulkan.Swapchain]*swapchain
	order      int

	surface          vulkan.Surface
	acquireTimeout   uint64
	lastSwapchain    vulkan.SwapchainCreateInfo
	swapchainCreates int
}

var _ render.Device = (*FakeDevice)(nil)

// NewFakeDevice returns a device whose surface accepts any extent up to
// 4096x4096 and hands out MinImageCount+1 = 3 images.
func NewFakeDevice() *FakeDevice {
	d := &FakeDevice{
		Capabilities: vulkan.SurfaceCapabilities{
			MinImageCount:           2,
			MaxImageCount:           8,
			CurrentExtent:           vulkan.Extent2D{Width: math.MaxUint32, Height: math.MaxUint32},
			MinImageExtent:          vulkan.Extent2D{Width: 1, Height: 1},
			MaxImageExtent:          vulkan.Extent2D{Width: 4096, Height: 4096},
			MaxImageArrayLayers:     1,
			CurrentTransform:        vulkan.SurfaceTransformIdentityBit,
			SupportedCompositeAlpha: vulkan.CompositeAlphaFlags(vulkan.CompositeAlphaOpaqueBit),
		},
		Formats: []vulkan.SurfaceFormat{
			{Format: vulkan.FormatB8g8r8a8Unorm, ColorSpace: vulkan.ColorSpaceSrgbNonlinear},
			{Format: vulkan.FormatB8g8r8a8Srgb, ColorSpace: vulkan.ColorSpaceSrgbNonlinear},
		},
		PresentModes: []vulkan.PresentMode{vulkan.PresentModeFifo, vulkan.PresentModeMailbox},
		Depth:        vulkan.FormatD32Sfloat,
		failures:     make(map[string]error),
		live:         make(map[string]int),
		fences:       make(map[vulkan.Fence]*fenceState),
		semaphores:   make(map[vulkan.Semaphore]bool),
		buffers:      make(map[vulkan.CommandBuffer]*commandBuffer),
		chains:       make(map[vulkan.Swapchain]*swapchain),
	}
	d.surface = vulkan.Surface(d.handle())
	return d
}

func (d *FakeDevice) handle() unsafe.Pointer {
	return Handle()
}

func (d *FakeDevice) log(format string, args ...interface{}) {
	d.ops = append(d.ops, fmt.Sprintf(format, args...))
}

func (d *FakeDevice) violate(format string, args ...interface{}) {
	d.violations = append(d.violations, fmt.Sprintf(format, args...))
}

func (d *FakeDevice) fail(op string) error {
	err, ok := d.failures[op]
	if !ok {
		return nil
	}
	delete(d.failures, op)
	return err
}

// FailNext makes the next call to the named Device method return err.
func (d *FakeDevice) FailNext(op string, err error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.failures[op] = err
}

// Ops returns the queue-level operation log.
func (d *FakeDevice) Ops() []string {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]string(nil), d.ops...)
}

// ResetOps clears the operation log.
func (d *FakeDevice) ResetOps() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.ops = nil
}

// Violations lists every protocol violation observed so far.
func (d *FakeDevice) Violations() []string {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]string(nil), d.violations...)
}

// Live returns how many objects of each kind are created and not destroyed.
// Kinds with no live objects are omitted.
func (d *FakeDevice) Live() map[string]int {
	d.mu.Lock()
	defer d.mu.Unlock()
	out := make(map[string]int)
	for k, v := range d.live {
		if v != 0 {
			out[k] = v
		}
	}
	return out
}

// LastAcquireTimeout is the timeout passed to the latest AcquireNextImage.
func (d *FakeDevice) LastAcquireTimeout() uint64 {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.acquireTimeout
}

// SwapchainCreates counts CreateSwapchain calls that succeeded.
func (d *FakeDevice) SwapchainCreates() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.swapchainCreates
}

// LastSwapchainInfo returns the create info of the latest swapchain.
func (d *FakeDevice) LastSwapchainInfo() vulkan.SwapchainCreateInfo {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.lastSwapchain
}

// Complete finishes all outstanding GPU work.
func (d *FakeDevice) Complete() {
	d.mu.Lock()
	defer d.mu.Unlock()
	for _, f := range d.fences {
		if f.pending {
			f.pending, f.signaled = false, true
		}
	}
}

// FenceSignaled reports the fence's current state.
func (d *FakeDevice) FenceSignaled(fence vulkan.Fence) bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	f, ok := d.fences[fence]
	return ok && f.signaled
}

// RecorderFor returns the recorder bound to a command buffer.
func (d *FakeDevice) RecorderFor(cb vulkan.CommandBuffer) *Recorder {
	d.mu.Lock()
	defer d.mu.Unlock()
	if b, ok := d.buffers[cb]; ok {
		return b.recorder
	}
	return nil
}

func (d *FakeDevice) Surface() vulkan.Surface {
	return d.surface
}

func (d *FakeDevice) SurfaceSupport() (*render.SurfaceSupport, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if err := d.fail("SurfaceSupport"); err != nil {
		return nil, err
	}
	return &render.SurfaceSupport{
		Capabilities: d.Capabilities,
		Formats:      append([]vulkan.SurfaceFormat(nil), d.Formats...),
		PresentModes: append([]vulkan.PresentMode(nil), d.PresentModes...),
	}, nil
}

func (d *FakeDevice) DepthFormat() (vulkan.Format, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if err := d.fail("DepthFormat"); err != nil {
		return vulkan.FormatUndefined, err
	}
	return d.Depth, nil
}

func (d *FakeDevice) QueueFamilies() (graphics, present uint32) {
	return 0, 0
}

func (d *FakeDevice) CreateSwapchain(info *vulkan.SwapchainCreateInfo) (vulkan.Swapchain, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if err := d.fail("CreateSwapchain"); err != nil {
		return vulkan.NullSwapchain, err
	}
	if info.ImageExtent.Width == 0 || info.ImageExtent.Height == 0 {
		d.violate("CreateSwapchain with zero extent %dx%d", info.ImageExtent.Width, info.ImageExtent.Height)
	}
	if info.OldSwapchain != vulkan.NullSwapchain {
		old, ok := d.chains[info.OldSwapchain]
		switch {
		case !ok || old.destroyed:
			d.violate("CreateSwapchain with destroyed old swapchain")
		case old.retired:
			d.violate("CreateSwapchain with retired old swapchain")
		default:
			old.retired = true
		}
	}

	sc := &swapchain{extent: info.ImageExtent}
	for i := uint32(0); i < info.MinImageCount; i++ {
		sc.images = append(sc.images, vulkan.Image(d.handle()))
	}
	handle := vulkan.Swapchain(d.handle())
	d.chains[handle] = sc
	d.live["swapchain"]++
	d.swapchainCreates++
	d.lastSwapchain = *info
	d.log("CreateSwapchain %dx%d", info.ImageExtent.Width, info.ImageExtent.Height)
	return handle, nil
}

func (d *FakeDevice) SwapchainImages(handle vulkan.Swapchain) ([]vulkan.Image, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	sc, ok := d.chains[handle]
	if !ok {
		return nil, errors.New("unknown swapchain")
	}
	return append([]vulkan.Image(nil), sc.images...), nil
}

func (d *FakeDevice) DestroySwapchain(handle vulkan.Swapchain) {
	d.mu.Lock()
	defer d.mu.Unlock()
	sc, ok := d.chains[handle]
	if !ok || sc.destroyed {
		d.violate("DestroySwapchain on unknown or destroyed swapchain")
		return
	}
	sc.destroyed = true
	d.live["swapchain"]--
	d.log("DestroySwapchain")
}

func (d *FakeDevice) CreateImage(info *vulkan.ImageCreateInfo, _ vulkan.MemoryPropertyFlags) (vulkan.Image, vulkan.DeviceMemory, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if err := d.fail("CreateImage"); err != nil {
		return vulkan.NullImage, vulkan.NullDeviceMemory, err
	}
	d.live["image"]++
	return vulkan.Image(d.handle()), vulkan.DeviceMemory(d.handle()), nil
}

func (d *FakeDevice) DestroyImage(vulkan.Image, vulkan.DeviceMemory) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.live["image"]--
}

func (d *FakeDevice) CreateImageView(vulkan.Image, vulkan.Format, vulkan.ImageAspectFlags) (vulkan.ImageView, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if err := d.fail("CreateImageView"); err != nil {
		return vulkan.NullImageView, err
	}
	d.live["imageView"]++
	return vulkan.ImageView(d.handle()), nil
}

func (d *FakeDevice) DestroyImageView(vulkan.ImageView) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.live["imageView"]--
}

func (d *FakeDevice) CreateRenderPass(*vulkan.RenderPassCreateInfo) (vulkan.RenderPass, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if err := d.fail("CreateRenderPass"); err != nil {
		return vulkan.NullRenderPass, err
	}
	d.live["renderPass"]++
	d.log("CreateRenderPass")
	return vulkan.RenderPass(d.handle()), nil
}

func (d *FakeDevice) DestroyRenderPass(vulkan.RenderPass) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.live["renderPass"]--
	d.log("DestroyRenderPass")
}

func (d *FakeDevice) CreateFramebuffer(info *vulkan.FramebufferCreateInfo) (vulkan.Framebuffer, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if err := d.fail("CreateFramebuffer"); err != nil {
		return vulkan.NullFramebuffer, err
	}
	if info.Width == 0 || info.Height == 0 {
		d.violate("CreateFramebuffer with zero extent")
	}
	d.live["framebuffer"]++
	return vulkan.Framebuffer(d.handle()), nil
}

func (d *FakeDevice) DestroyFramebuffer(vulkan.Framebuffer) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.live["framebuffer"]--
}

func (d *FakeDevice) AllocateCommandBuffers(count int) ([]vulkan.CommandBuffer, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if err := d.fail("AllocateCommandBuffers"); err != nil {
		return nil, err
	}
	out := make([]vulkan.CommandBuffer, count)
	for i := range out {
		out[i] = vulkan.CommandBuffer(d.handle())
		d.buffers[out[i]] = &commandBuffer{recorder: NewRecorder()}
	}
	d.live["commandBuffer"] += count
	return out, nil
}

func (d *FakeDevice) FreeCommandBuffers(buffers []vulkan.CommandBuffer) {
	d.mu.Lock()
	defer d.mu.Unlock()
	for _, cb := range buffers {
		if b, ok := d.buffers[cb]; ok && b.fence != vulkan.NullFence && d.inFlight(b.fence) {
			d.violate("FreeCommandBuffers while command buffer in flight")
		}
		delete(d.buffers, cb)
	}
	d.live["commandBuffer"] -= len(buffers)
}

func (d *FakeDevice) inFlight(fence vulkan.Fence) bool {
	f, ok := d.fences[fence]
	return ok && f.pending
}

func (d *FakeDevice) BeginCommandBuffer(cb vulkan.CommandBuffer) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if err := d.fail("BeginCommandBuffer"); err != nil {
		return err
	}
	b, ok := d.buffers[cb]
	if !ok {
		return errors.New("unknown command buffer")
	}
	if b.fence != vulkan.NullFence && d.inFlight(b.fence) {
		d.violate("BeginCommandBuffer while command buffer in flight")
	}
	if b.state == cbRecording {
		d.violate("BeginCommandBuffer on a recording command buffer")
	}
	b.state = cbRecording
	b.recorder.Reset()
	d.log("BeginCommandBuffer")
	return nil
}

func (d *FakeDevice) EndCommandBuffer(cb vulkan.CommandBuffer) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	b, ok := d.buffers[cb]
	if !ok {
		return errors.New("unknown command buffer")
	}
	if err := d.fail("EndCommandBuffer"); err != nil {
		// a failed recording leaves the buffer invalid; the next begin resets it
		b.state = cbInitial
		return err
	}
	if b.state != cbRecording {
		d.violate("EndCommandBuffer on a command buffer not recording")
	}
	b.state = cbExecutable
	d.log("EndCommandBuffer")
	return nil
}

func (d *FakeDevice) Recorder(cb vulkan.CommandBuffer) render.CommandRecorder {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.buffers[cb].recorder
}

func (d *FakeDevice) CreateSemaphore() (vulkan.Semaphore, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if err := d.fail("CreateSemaphore"); err != nil {
		return vulkan.NullSemaphore, err
	}
	s := vulkan.Semaphore(d.handle())
	d.semaphores[s] = false
	d.live["semaphore"]++
	return s, nil
}

func (d *FakeDevice) DestroySemaphore(s vulkan.Semaphore) {
	d.mu.Lock()
	defer d.mu.Unlock()
	delete(d.semaphores, s)
	d.live["semaphore"]--
}

func (d *FakeDevice) CreateFence(signaled bool) (vulkan.Fence, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if err := d.fail("CreateFence"); err != nil {
		return vulkan.NullFence, err
	}
	f := vulkan.Fence(d.handle())
	d.fences[f] = &fenceState{signaled: signaled}
	d.live["fence"]++
	return f, nil
}

func (d *FakeDevice) DestroyFence(f vulkan.Fence) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.inFlight(f) {
		d.violate("DestroyFence while in flight")
	}
	delete(d.fences, f)
	d.live["fence"]--
}

func (d *FakeDevice) WaitForFences(fences []vulkan.Fence, _ uint64) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.log("WaitForFences %d", len(fences))
	if d.WaitTimeouts > 0 {
		d.WaitTimeouts--
		return render.NewError(vulkan.Timeout)
	}
	for _, fence := range fences {
		f, ok := d.fences[fence]
		if !ok {
			return errors.New("unknown fence")
		}
		if f.pending {
			f.pending, f.signaled = false, true
		}
		if !f.signaled {
			d.violate("WaitForFences on a fence nothing will signal")
			return errors.New("fence would never signal")
		}
	}
	return nil
}

func (d *FakeDevice) ResetFences(fences []vulkan.Fence) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if err := d.fail("ResetFences"); err != nil {
		return err
	}
	d.log("ResetFences")
	for _, fence := range fences {
		f, ok := d.fences[fence]
		if !ok {
			return errors.New("unknown fence")
		}
		if f.pending {
			d.violate("ResetFences on an in-flight fence")
		}
		f.signaled = false
	}
	return nil
}

func (d *FakeDevice) AcquireNextImage(handle vulkan.Swapchain, timeout uint64, signal vulkan.Semaphore) (uint32, vulkan.Result) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.acquireTimeout = timeout
	sc, ok := d.chains[handle]
	if !ok || sc.destroyed {
		d.violate("AcquireNextImage on destroyed swapchain")
		return 0, vulkan.ErrorOutOfDate
	}
	if sc.retired {
		d.violate("AcquireNextImage on retired swapchain")
		return 0, vulkan.ErrorOutOfDate
	}

	res := vulkan.Success
	if len(d.AcquireResults) > 0 {
		res, d.AcquireResults = d.AcquireResults[0], d.AcquireResults[1:]
	}
	d.log("AcquireNextImage %d", res)
	if render.IsError(res) && res != vulkan.Suboptimal {
		return 0, res
	}
	if d.semaphores[signal] {
		d.violate("AcquireNextImage signals a semaphore that is already signaled")
	}
	d.semaphores[signal] = true

	var index uint32
	if len(d.ImageOrder) > 0 {
		index = d.ImageOrder[d.order%len(d.ImageOrder)]
		d.order++
	} else {
		index = uint32(sc.next % len(sc.images))
		sc.next++
	}
	return index, res
}

func (d *FakeDevice) Submit(info *vulkan.SubmitInfo, fence vulkan.Fence) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if err := d.fail("Submit"); err != nil {
		return err
	}
	d.log("Submit")
	f, ok := d.fences[fence]
	if !ok {
		return errors.New("unknown fence")
	}
	if f.signaled || f.pending {
		d.violate("Submit with a fence that is not reset")
	}
	for _, s := range info.PWaitSemaphores {
		if !d.semaphores[s] {
			d.violate("Submit waits on an unsignaled semaphore")
		}
		d.semaphores[s] = false
	}
	for _, s := range info.PSignalSemaphores {
		d.semaphores[s] = true
	}
	for _, cb := range info.PCommandBuffers {
		b, ok := d.buffers[cb]
		if !ok {
			return errors.New("unknown command buffer")
		}
		if b.state != cbExecutable {
			d.violate("Submit of a command buffer that is not executable")
		}
		b.state = cbInitial
		b.fence = fence
	}
	if d.Manual {
		f.pending = true
	} else {
		f.signaled = true
	}
	return nil
}

func (d *FakeDevice) Present(info *vulkan.PresentInfo) vulkan.Result {
	d.mu.Lock()
	defer d.mu.Unlock()
	for _, s := range info.PWaitSemaphores {
		if !d.semaphores[s] {
			d.violate("Present waits on an unsignaled semaphore")
		}
		d.semaphores[s] = false
	}
	for i, handle := range info.PSwapchains {
		sc, ok := d.chains[handle]
		if !ok || sc.destroyed {
			d.violate("Present to destroyed swapchain")
			continue
		}
		if int(info.PImageIndices[i]) >= len(sc.images) {
			d.violate("Present of image %d of %d", info.PImageIndices[i], len(sc.images))
		}
	}
	res := vulkan.Success
	if len(d.PresentResults) > 0 {
		res, d.PresentResults = d.PresentResults[0], d.PresentResults[1:]
	}
	d.log("Present %d", res)
	return res
}

func (d *FakeDevice) WaitIdle() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	for _, f := range d.fences {
		if f.pending {
			f.pending, f.signaled = false, true
		}
	}
	d.log("WaitIdle")
	return nil
}
