package render

import (
	"fmt"

	"github.com/pkg/errors"
	"github.com/vulkan-go/vulkan"
)

// Swapchain is the presentation chain: the presentable images, their views,
// one depth attachment per image and a framebuffer per image, all bound to a
// single render pass. A Swapchain is never resized in place; it is replaced.
type Swapchain struct {
	device Device
	cfg    SwapchainConfig

	handle      vulkan.Swapchain
	imageFormat vulkan.Format
	colorSpace  vulkan.ColorSpace
	depthFormat vulkan.Format
	presentMode vulkan.PresentMode
	extent      vulkan.Extent2D
	// drawable is the framebuffer size the chain was negotiated from. The
	// surface may pin extent to something else.
	drawable [2]int

	images       []vulkan.Image
	imageViews   []vulkan.ImageView
	depthImages  []vulkan.Image
	depthMemory  []vulkan.DeviceMemory
	depthViews   []vulkan.ImageView
	framebuffers []vulkan.Framebuffer

	renderPass     vulkan.RenderPass
	ownsRenderPass bool
	// retired is set once a newer swapchain was created from this one.
	retired bool
}

// NewSwapchain builds a chain for the provider's current drawable size. When
// previous is non-nil it is handed to the driver as the old swapchain and its
// render pass is inherited; the caller destroys previous once this returns
// successfully.
func NewSwapchain(device Device, surface SurfaceProvider, previous *Swapchain, cfg SwapchainConfig) (sc *Swapchain, err error) {
	width, height := surface.FramebufferSize()
	if width <= 0 || height <= 0 {
		return nil, errors.Wrapf(ErrSurfaceUnavailable, "drawable is %dx%d", width, height)
	}

	support, err := device.SurfaceSupport()
	if err != nil {
		return nil, chainFailed("query surface support", err)
	}
	if len(support.Formats) == 0 || len(support.PresentModes) == 0 {
		return nil, chainFailed("query surface support", errors.New("surface reports no formats or present modes"))
	}
	extent := chooseExtent(support.Capabilities, width, height)
	if extent.Width == 0 || extent.Height == 0 {
		return nil, errors.Wrapf(ErrSurfaceUnavailable, "negotiated extent is %dx%d", extent.Width, extent.Height)
	}
	depthFormat, err := device.DepthFormat()
	if err != nil {
		return nil, chainFailed("choose depth format", err)
	}

	format := chooseSurfaceFormat(support.Formats)
	sc = &Swapchain{
		device:      device,
		cfg:         cfg,
		imageFormat: format.Format,
		colorSpace:  format.ColorSpace,
		depthFormat: depthFormat,
		presentMode: choosePresentMode(support.PresentModes, cfg),
		extent:      extent,
		drawable:    [2]int{width, height},
	}
	if previous != nil && !sc.CompareFormats(previous) {
		return nil, chainFailed("inherit render pass", errors.Wrapf(ErrRenderPassIncompatible,
			"color %d to %d, depth %d to %d", previous.imageFormat, sc.imageFormat, previous.depthFormat, sc.depthFormat))
	}

	defer func() {
		if err != nil {
			sc.Destroy()
			sc = nil
		}
	}()

	if err = sc.createSwapchain(support.Capabilities, previous); err != nil {
		return sc, chainFailed("create swapchain", err)
	}
	if err = sc.createImageViews(); err != nil {
		return sc, chainFailed("create image views", err)
	}
	if previous != nil {
		sc.renderPass = previous.renderPass
	} else if err = sc.createRenderPass(); err != nil {
		return sc, chainFailed("create render pass", err)
	}
	if err = sc.createDepthResources(); err != nil {
		return sc, chainFailed("create depth resources", err)
	}
	if err = sc.createFramebuffers(); err != nil {
		return sc, chainFailed("create framebuffers", err)
	}

	if previous != nil {
		previous.ownsRenderPass = false
	}
	sc.ownsRenderPass = true

	Logger().Info("swapchain built",
		"width", extent.Width,
		"height", extent.Height,
		"format", sc.imageFormat,
		"presentMode", sc.presentMode,
		"images", len(sc.images),
		"rebuild", previous != nil,
	)
	return sc, nil
}

func (s *Swapchain) createSwapchain(caps vulkan.SurfaceCapabilities, previous *Swapchain) error {
	graphics, present := s.device.QueueFamilies()

	info := vulkan.SwapchainCreateInfo{
		SType:            vulkan.StructureTypeSwapchainCreateInfo,
		Surface:          s.device.Surface(),
		MinImageCount:    chooseImageCount(caps),
		ImageFormat:      s.imageFormat,
		ImageColorSpace:  s.colorSpace,
		ImageExtent:      s.extent,
		ImageArrayLayers: 1,
		ImageUsage:       vulkan.ImageUsageFlags(vulkan.ImageUsageColorAttachmentBit),
		ImageSharingMode: vulkan.SharingModeExclusive,
		PreTransform:     caps.CurrentTransform,
		CompositeAlpha:   chooseCompositeAlpha(caps),
		PresentMode:      s.presentMode,
		Clipped:          vulkan.True,
	}
	if graphics != present {
		info.ImageSharingMode = vulkan.SharingModeConcurrent
		info.QueueFamilyIndexCount = 2
		info.PQueueFamilyIndices = []uint32{graphics, present}
	}
	// A retired swapchain cannot be handed over a second time.
	if previous != nil && !previous.retired {
		info.OldSwapchain = previous.handle
	}

	handle, err := s.device.CreateSwapchain(&info)
	if err != nil {
		return err
	}
	s.handle = handle
	if previous != nil {
		previous.retired = true
	}

	images, err := s.device.SwapchainImages(handle)
	if err != nil {
		return err
	}
	if len(images) == 0 {
		return errors.New("swapchain has no images")
	}
	s.images = images
	return nil
}

func (s *Swapchain) createImageViews() error {
	s.imageViews = make([]vulkan.ImageView, 0, len(s.images))
	for _, image := range s.images {
		view, err := s.device.CreateImageView(image, s.imageFormat, vulkan.ImageAspectFlags(vulkan.ImageAspectColorBit))
		if err != nil {
			return err
		}
		s.imageViews = append(s.imageViews, view)
	}
	return nil
}

func (s *Swapchain) createRenderPass() error {
	attachments := []vulkan.AttachmentDescription{
		{
			Format:         s.imageFormat,
			Samples:        vulkan.SampleCount1Bit,
			LoadOp:         vulkan.AttachmentLoadOpClear,
			StoreOp:        vulkan.AttachmentStoreOpStore,
			StencilLoadOp:  vulkan.AttachmentLoadOpDontCare,
			StencilStoreOp: vulkan.AttachmentStoreOpDontCare,
			InitialLayout:  vulkan.ImageLayoutUndefined,
			FinalLayout:    vulkan.ImageLayoutPresentSrc,
		},
		{
			Format:         s.depthFormat,
			Samples:        vulkan.SampleCount1Bit,
			LoadOp:         vulkan.AttachmentLoadOpClear,
			StoreOp:        vulkan.AttachmentStoreOpDontCare,
			StencilLoadOp:  vulkan.AttachmentLoadOpDontCare,
			StencilStoreOp: vulkan.AttachmentStoreOpDontCare,
			InitialLayout:  vulkan.ImageLayoutUndefined,
			FinalLayout:    vulkan.ImageLayoutDepthStencilAttachmentOptimal,
		},
	}
	colorRef := []vulkan.AttachmentReference{{
		Attachment: 0,
		Layout:     vulkan.ImageLayoutColorAttachmentOptimal,
	}}
	depthRef := vulkan.AttachmentReference{
		Attachment: 1,
		Layout:     vulkan.ImageLayoutDepthStencilAttachmentOptimal,
	}
	subpass := vulkan.SubpassDescription{
		PipelineBindPoint:       vulkan.PipelineBindPointGraphics,
		ColorAttachmentCount:    uint32(len(colorRef)),
		PColorAttachments:       colorRef,
		PDepthStencilAttachment: &depthRef,
	}
	stages := vulkan.PipelineStageFlags(vulkan.PipelineStageColorAttachmentOutputBit | vulkan.PipelineStageEarlyFragmentTestsBit)
	dependency := vulkan.SubpassDependency{
		SrcSubpass:    vulkan.SubpassExternal,
		DstSubpass:    0,
		SrcStageMask:  stages,
		SrcAccessMask: 0,
		DstStageMask:  stages,
		DstAccessMask: vulkan.AccessFlags(vulkan.AccessColorAttachmentWriteBit | vulkan.AccessDepthStencilAttachmentWriteBit),
	}

	renderPass, err := s.device.CreateRenderPass(&vulkan.RenderPassCreateInfo{
		SType:           vulkan.StructureTypeRenderPassCreateInfo,
		AttachmentCount: uint32(len(attachments)),
		PAttachments:    attachments,
		SubpassCount:    1,
		PSubpasses:      []vulkan.SubpassDescription{subpass},
		DependencyCount: 1,
		PDependencies:   []vulkan.SubpassDependency{dependency},
	})
	if err != nil {
		return err
	}
	s.renderPass = renderPass
	s.ownsRenderPass = true
	return nil
}

func (s *Swapchain) createDepthResources() error {
	count := len(s.images)
	s.depthImages = make([]vulkan.Image, 0, count)
	s.depthMemory = make([]vulkan.DeviceMemory, 0, count)
	s.depthViews = make([]vulkan.ImageView, 0, count)

	for i := 0; i < count; i++ {
		image, memory, err := s.device.CreateImage(&vulkan.ImageCreateInfo{
			SType:     vulkan.StructureTypeImageCreateInfo,
			ImageType: vulkan.ImageType2d,
			Extent: vulkan.Extent3D{
				Width:  s.extent.Width,
				Height: s.extent.Height,
				Depth:  1,
			},
			MipLevels:     1,
			ArrayLayers:   1,
			Format:        s.depthFormat,
			Tiling:        vulkan.ImageTilingOptimal,
			InitialLayout: vulkan.ImageLayoutUndefined,
			Usage:         vulkan.ImageUsageFlags(vulkan.ImageUsageDepthStencilAttachmentBit),
			Samples:       vulkan.SampleCount1Bit,
			SharingMode:   vulkan.SharingModeExclusive,
		}, vulkan.MemoryPropertyFlags(vulkan.MemoryPropertyDeviceLocalBit))
		if err != nil {
			return err
		}
		s.depthImages = append(s.depthImages, image)
		s.depthMemory = append(s.depthMemory, memory)

		view, err := s.device.CreateImageView(image, s.depthFormat, vulkan.ImageAspectFlags(vulkan.ImageAspectDepthBit))
		if err != nil {
			return err
		}
		s.depthViews = append(s.depthViews, view)
	}
	return nil
}

func (s *Swapchain) createFramebuffers() error {
	s.framebuffers = make([]vulkan.Framebuffer, 0, len(s.imageViews))
	for i, view := range s.imageViews {
		attachments := []vulkan.ImageView{view, s.depthViews[i]}
		framebuffer, err := s.device.CreateFramebuffer(&vulkan.FramebufferCreateInfo{
			SType:           vulkan.StructureTypeFramebufferCreateInfo,
			RenderPass:      s.renderPass,
			AttachmentCount: uint32(len(attachments)),
			PAttachments:    attachments,
			Width:           s.extent.Width,
			Height:          s.extent.Height,
			Layers:          1,
		})
		if err != nil {
			return err
		}
		s.framebuffers = append(s.framebuffers, framebuffer)
	}
	return nil
}

// AcquireNextImage asks the presentation engine for the next image, which
// becomes usable once signal is signaled.
func (s *Swapchain) AcquireNextImage(signal vulkan.Semaphore) (uint32, Status, error) {
	for {
		imageIndex, res := s.device.AcquireNextImage(s.handle, s.cfg.AcquireTimeout, signal)
		status, err := classify(res)
		if errors.Is(err, ErrTimeout) {
			Logger().Warn("acquire timed out, retrying", "timeout", s.cfg.AcquireTimeout)
			continue
		}
		if err != nil {
			return 0, status, errors.Wrap(err, "acquire next image")
		}
		if status == StatusOutOfDate {
			return 0, status, nil
		}
		if int(imageIndex) >= len(s.images) {
			return 0, status, fmt.Errorf("acquire returned image %d of %d", imageIndex, len(s.images))
		}
		return imageIndex, status, nil
	}
}

// Present queues imageIndex for presentation once wait is signaled.
func (s *Swapchain) Present(imageIndex uint32, wait vulkan.Semaphore) (Status, error) {
	res := s.device.Present(&vulkan.PresentInfo{
		SType:              vulkan.StructureTypePresentInfo,
		WaitSemaphoreCount: 1,
		PWaitSemaphores:    []vulkan.Semaphore{wait},
		SwapchainCount:     1,
		PSwapchains:        []vulkan.Swapchain{s.handle},
		PImageIndices:      []uint32{imageIndex},
	})
	status, err := classify(res)
	if err != nil {
		return status, errors.Wrap(err, "present")
	}
	return status, nil
}

// CompareFormats reports whether other uses the same color and depth formats,
// i.e. whether a render pass built for one is compatible with the other.
func (s *Swapchain) CompareFormats(other *Swapchain) bool {
	return s.imageFormat == other.imageFormat && s.depthFormat == other.depthFormat
}

func (s *Swapchain) Extent() vulkan.Extent2D         { return s.extent }
func (s *Swapchain) Width() uint32                   { return s.extent.Width }
func (s *Swapchain) Height() uint32                  { return s.extent.Height }
func (s *Swapchain) ImageCount() int                 { return len(s.images) }
func (s *Swapchain) ImageFormat() vulkan.Format      { return s.imageFormat }
func (s *Swapchain) DepthFormat() vulkan.Format      { return s.depthFormat }
func (s *Swapchain) PresentMode() vulkan.PresentMode { return s.presentMode }
func (s *Swapchain) RenderPass() vulkan.RenderPass   { return s.renderPass }
func (s *Swapchain) Handle() vulkan.Swapchain        { return s.handle }

// DrawableSize is the provider's framebuffer size when the chain was built.
func (s *Swapchain) DrawableSize() (width, height int) {
	return s.drawable[0], s.drawable[1]
}

// Framebuffer returns the framebuffer wrapping image i.
func (s *Swapchain) Framebuffer(i uint32) vulkan.Framebuffer {
	return s.framebuffers[i]
}

// ExtentAspectRatio is width over height.
func (s *Swapchain) ExtentAspectRatio() float32 {
	return float32(s.extent.Width) / float32(s.extent.Height)
}

func (s *Swapchain) Dimensions() SwapchainDimensions {
	return SwapchainDimensions{
		Width:  s.extent.Width,
		Height: s.extent.Height,
		Format: s.imageFormat,
	}
}

// Destroy releases every object the chain created. The render pass is only
// destroyed when it was not handed to a newer chain.
func (s *Swapchain) Destroy() {
	for _, fb := range s.framebuffers {
		s.device.DestroyFramebuffer(fb)
	}
	s.framebuffers = nil
	for _, view := range s.depthViews {
		s.device.DestroyImageView(view)
	}
	s.depthViews = nil
	for i, image := range s.depthImages {
		s.device.DestroyImage(image, s.depthMemory[i])
	}
	s.depthImages, s.depthMemory = nil, nil
	for _, view := range s.imageViews {
		s.device.DestroyImageView(view)
	}
	s.imageViews = nil
	s.images = nil
	if s.handle != vulkan.NullSwapchain {
		s.device.DestroySwapchain(s.handle)
		s.handle = vulkan.NullSwapchain
	}
	if s.ownsRenderPass && s.renderPass != vulkan.NullRenderPass {
		s.device.DestroyRenderPass(s.renderPass)
	}
	s.renderPass = vulkan.NullRenderPass
	s.ownsRenderPass = false
}
