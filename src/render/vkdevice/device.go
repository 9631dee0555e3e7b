// Package vkdevice is the Vulkan implementation of render.Device: instance,
// surface, physical and logical device, queues, command pool, plus the
// buffers, descriptors and pipelines the render systems build on.
//
// The caller must have loaded the Vulkan loader (vulkan.SetGetInstanceProcAddr
// followed by vulkan.Init) before calling New.
package vkdevice

import (
	"log/slog"

	"github.com/pkg/errors"
	"github.com/vulkan-go/vulkan"

	"prism/src/render"
)

// Device owns the Vulkan instance, surface, logical device and the command
// pool frame slots allocate from.
type Device struct {
	cfg deviceConfig
	log *slog.Logger

	instance    vulkan.Instance
	surface     vulkan.Surface
	physical    vulkan.PhysicalDevice
	properties  vulkan.PhysicalDeviceProperties
	memory      vulkan.PhysicalDeviceMemoryProperties
	families    queueFamilies
	device      vulkan.Device
	graphics    vulkan.Queue
	present     vulkan.Queue
	commandPool vulkan.CommandPool
	validation  bool
}

var (
	_ render.Device          = (*Device)(nil)
	_ render.BufferAllocator = (*Device)(nil)
)

// New creates every device-level object for the given surface provider.
func New(surface render.SurfaceProvider, opts ...DeviceBuilderOption) (d *Device, err error) {
	cfg := defaultDeviceConfig()
	for _, opt := range opts {
		opt(&cfg)
	}
	d = &Device{cfg: cfg, log: render.Logger()}
	defer func() {
		if err != nil {
			d.Destroy()
			d = nil
		}
	}()

	if err = d.createInstance(surface.RequiredInstanceExtensions()); err != nil {
		return d, err
	}
	if d.surface, err = surface.CreateSurface(d.instance); err != nil {
		if !errors.Is(err, render.ErrSurfaceCreationFailed) {
			err = errors.WithMessage(render.ErrSurfaceCreationFailed, err.Error())
		}
		return d, err
	}
	if err = d.pickPhysicalDevice(); err != nil {
		return d, err
	}
	if err = d.createLogicalDevice(); err != nil {
		return d, err
	}
	if err = d.createCommandPool(); err != nil {
		return d, err
	}
	return d, nil
}

func (d *Device) createInstance(extensions []string) error {
	appInfo := vulkan.ApplicationInfo{
		SType:              vulkan.StructureTypeApplicationInfo,
		PApplicationName:   d.cfg.appName + "\x00",
		ApplicationVersion: vulkan.MakeVersion(1, 0, 0),
		PEngineName:        "prism\x00",
		EngineVersion:      vulkan.MakeVersion(1, 0, 0),
		ApiVersion:         vulkan.ApiVersion10,
	}
	extensions = terminated(extensions)
	info := vulkan.InstanceCreateInfo{
		SType:                   vulkan.StructureTypeInstanceCreateInfo,
		PApplicationInfo:        &appInfo,
		EnabledExtensionCount:   uint32(len(extensions)),
		PpEnabledExtensionNames: extensions,
	}
	if d.cfg.validation {
		if validationAvailable() {
			d.validation = true
			info.EnabledLayerCount = 1
			info.PpEnabledLayerNames = []string{validationLayer}
		} else {
			d.log.Warn("validation requested but layer not installed", "layer", validationLayer)
		}
	}

	var instance vulkan.Instance
	if err := render.NewError(vulkan.CreateInstance(&info, nil, &instance)); err != nil {
		return errors.Wrap(err, "create instance")
	}
	d.instance = instance
	if err := vulkan.InitInstance(instance); err != nil {
		return errors.Wrap(err, "load instance functions")
	}
	return nil
}

func validationAvailable() bool {
	var count uint32
	if render.IsError(vulkan.EnumerateInstanceLayerProperties(&count, nil)) {
		return false
	}
	layers := make([]vulkan.LayerProperties, count)
	if render.IsError(vulkan.EnumerateInstanceLayerProperties(&count, layers)) {
		return false
	}
	names := make([]string, 0, count)
	for _, layer := range layers {
		layer.Deref()
		names = append(names, vulkan.ToString(layer.LayerName[:]))
	}
	return len(missingExtensions([]string{validationLayer}, names)) == 0
}

func (d *Device) createLogicalDevice() error {
	families := []uint32{d.families.graphics}
	if d.families.present != d.families.graphics {
		families = append(families, d.families.present)
	}
	queueInfos := make([]vulkan.DeviceQueueCreateInfo, 0, len(families))
	for _, family := range families {
		queueInfos = append(queueInfos, vulkan.DeviceQueueCreateInfo{
			SType:            vulkan.StructureTypeDeviceQueueCreateInfo,
			QueueFamilyIndex: family,
			QueueCount:       1,
			PQueuePriorities: []float32{1.0},
		})
	}

	info := vulkan.DeviceCreateInfo{
		SType:                   vulkan.StructureTypeDeviceCreateInfo,
		QueueCreateInfoCount:    uint32(len(queueInfos)),
		PQueueCreateInfos:       queueInfos,
		EnabledExtensionCount:   uint32(len(d.cfg.deviceExtensions)),
		PpEnabledExtensionNames: d.cfg.deviceExtensions,
		PEnabledFeatures:        []vulkan.PhysicalDeviceFeatures{{}},
	}
	if d.validation {
		info.EnabledLayerCount = 1
		info.PpEnabledLayerNames = []string{validationLayer}
	}

	var device vulkan.Device
	if err := render.NewError(vulkan.CreateDevice(d.physical, &info, nil, &device)); err != nil {
		return errors.Wrap(err, "create logical device")
	}
	d.device = device

	vulkan.GetDeviceQueue(device, d.families.graphics, 0, &d.graphics)
	vulkan.GetDeviceQueue(device, d.families.present, 0, &d.present)
	return nil
}

func (d *Device) createCommandPool() error {
	info := vulkan.CommandPoolCreateInfo{
		SType:            vulkan.StructureTypeCommandPoolCreateInfo,
		Flags:            vulkan.CommandPoolCreateFlags(vulkan.CommandPoolCreateResetCommandBufferBit),
		QueueFamilyIndex: d.families.graphics,
	}
	var pool vulkan.CommandPool
	if err := render.NewError(vulkan.CreateCommandPool(d.device, &info, nil, &pool)); err != nil {
		return errors.Wrap(err, "create command pool")
	}
	d.commandPool = pool
	return nil
}

// Handle returns the logical device.
func (d *Device) Handle() vulkan.Device {
	return d.device
}

// Properties returns the selected physical device's properties.
func (d *Device) Properties() vulkan.PhysicalDeviceProperties {
	return d.properties
}

// Name returns the selected GPU's name.
func (d *Device) Name() string {
	return vulkan.ToString(d.properties.DeviceName[:])
}

// Destroy releases the command pool, logical device, surface and instance.
// Every object created from the device must already be destroyed.
func (d *Device) Destroy() {
	if d.commandPool != vulkan.NullCommandPool {
		vulkan.DestroyCommandPool(d.device, d.commandPool, nil)
		d.commandPool = vulkan.NullCommandPool
	}
	if d.device != nil {
		vulkan.DestroyDevice(d.device, nil)
		d.device = nil
	}
	if d.surface != vulkan.NullSurface {
		vulkan.DestroySurface(d.instance, d.surface, nil)
		d.surface = vulkan.NullSurface
	}
	if d.instance != nil {
		vulkan.DestroyInstance(d.instance, nil)
		d.instance = nil
	}
}

func (d *Device) Surface() vulkan.Surface {
	return d.surface
}

func (d *Device) SurfaceSupport() (*render.SurfaceSupport, error) {
	return surfaceSupportOf(d.physical, d.surface)
}

func (d *Device) DepthFormat() (vulkan.Format, error) {
	return d.findSupportedFormat(
		[]vulkan.Format{vulkan.FormatD32Sfloat, vulkan.FormatD32SfloatS8Uint, vulkan.FormatD24UnormS8Uint},
		vulkan.ImageTilingOptimal,
		vulkan.FormatFeatureFlags(vulkan.FormatFeatureDepthStencilAttachmentBit),
	)
}

func (d *Device) QueueFamilies() (graphics, present uint32) {
	return d.families.graphics, d.families.present
}

func (d *Device) CreateSwapchain(info *vulkan.SwapchainCreateInfo) (vulkan.Swapchain, error) {
	var swapchain vulkan.Swapchain
	if err := render.NewError(vulkan.CreateSwapchain(d.device, info, nil, &swapchain)); err != nil {
		return vulkan.NullSwapchain, err
	}
	return swapchain, nil
}

func (d *Device) SwapchainImages(swapchain vulkan.Swapchain) ([]vulkan.Image, error) {
	var count uint32
	if err := render.NewError(vulkan.GetSwapchainImages(d.device, swapchain, &count, nil)); err != nil {
		return nil, err
	}
	images := make([]vulkan.Image, count)
	if err := render.NewError(vulkan.GetSwapchainImages(d.device, swapchain, &count, images)); err != nil {
		return nil, err
	}
	return images, nil
}

func (d *Device) DestroySwapchain(swapchain vulkan.Swapchain) {
	vulkan.DestroySwapchain(d.device, swapchain, nil)
}

func (d *Device) CreateImage(info *vulkan.ImageCreateInfo, properties vulkan.MemoryPropertyFlags) (vulkan.Image, vulkan.DeviceMemory, error) {
	var image vulkan.Image
	if err := render.NewError(vulkan.CreateImage(d.device, info, nil, &image)); err != nil {
		return vulkan.NullImage, vulkan.NullDeviceMemory, err
	}

	var req vulkan.MemoryRequirements
	vulkan.GetImageMemoryRequirements(d.device, image, &req)
	req.Deref()

	memory, err := d.allocate(req, properties)
	if err != nil {
		vulkan.DestroyImage(d.device, image, nil)
		return vulkan.NullImage, vulkan.NullDeviceMemory, err
	}
	if err := render.NewError(vulkan.BindImageMemory(d.device, image, memory, 0)); err != nil {
		vulkan.FreeMemory(d.device, memory, nil)
		vulkan.DestroyImage(d.device, image, nil)
		return vulkan.NullImage, vulkan.NullDeviceMemory, err
	}
	return image, memory, nil
}

func (d *Device) allocate(req vulkan.MemoryRequirements, properties vulkan.MemoryPropertyFlags) (vulkan.DeviceMemory, error) {
	typeIndex, err := d.findMemoryType(req.MemoryTypeBits, properties)
	if err != nil {
		return vulkan.NullDeviceMemory, err
	}
	var memory vulkan.DeviceMemory
	err = render.NewError(vulkan.AllocateMemory(d.device, &vulkan.MemoryAllocateInfo{
		SType:           vulkan.StructureTypeMemoryAllocateInfo,
		AllocationSize:  req.Size,
		MemoryTypeIndex: typeIndex,
	}, nil, &memory))
	if err != nil {
		return vulkan.NullDeviceMemory, err
	}
	return memory, nil
}

func (d *Device) DestroyImage(image vulkan.Image, memory vulkan.DeviceMemory) {
	vulkan.DestroyImage(d.device, image, nil)
	vulkan.FreeMemory(d.device, memory, nil)
}

func (d *Device) CreateImageView(image vulkan.Image, format vulkan.Format, aspect vulkan.ImageAspectFlags) (vulkan.ImageView, error) {
	info := vulkan.ImageViewCreateInfo{
		SType:    vulkan.StructureTypeImageViewCreateInfo,
		Image:    image,
		ViewType: vulkan.ImageViewType2d,
		Format:   format,
		Components: vulkan.ComponentMapping{
			R: vulkan.ComponentSwizzleIdentity,
			G: vulkan.ComponentSwizzleIdentity,
			B: vulkan.ComponentSwizzleIdentity,
			A: vulkan.ComponentSwizzleIdentity,
		},
		SubresourceRange: vulkan.ImageSubresourceRange{
			AspectMask: aspect,
			LevelCount: 1,
			LayerCount: 1,
		},
	}
	var view vulkan.ImageView
	if err := render.NewError(vulkan.CreateImageView(d.device, &info, nil, &view)); err != nil {
		return vulkan.NullImageView, err
	}
	return view, nil
}

func (d *Device) DestroyImageView(view vulkan.ImageView) {
	vulkan.DestroyImageView(d.device, view, nil)
}

func (d *Device) CreateRenderPass(info *vulkan.RenderPassCreateInfo) (vulkan.RenderPass, error) {
	var renderPass vulkan.RenderPass
	if err := render.NewError(vulkan.CreateRenderPass(d.device, info, nil, &renderPass)); err != nil {
		return vulkan.NullRenderPass, err
	}
	return renderPass, nil
}

func (d *Device) DestroyRenderPass(renderPass vulkan.RenderPass) {
	vulkan.DestroyRenderPass(d.device, renderPass, nil)
}

func (d *Device) CreateFramebuffer(info *vulkan.FramebufferCreateInfo) (vulkan.Framebuffer, error) {
	var framebuffer vulkan.Framebuffer
	if err := render.NewError(vulkan.CreateFramebuffer(d.device, info, nil, &framebuffer)); err != nil {
		return vulkan.NullFramebuffer, err
	}
	return framebuffer, nil
}

func (d *Device) DestroyFramebuffer(framebuffer vulkan.Framebuffer) {
	vulkan.DestroyFramebuffer(d.device, framebuffer, nil)
}

func (d *Device) AllocateCommandBuffers(count int) ([]vulkan.CommandBuffer, error) {
	buffers := make([]vulkan.CommandBuffer, count)
	err := render.NewError(vulkan.AllocateCommandBuffers(d.device, &vulkan.CommandBufferAllocateInfo{
		SType:              vulkan.StructureTypeCommandBufferAllocateInfo,
		CommandPool:        d.commandPool,
		Level:              vulkan.CommandBufferLevelPrimary,
		CommandBufferCount: uint32(count),
	}, buffers))
	if err != nil {
		return nil, err
	}
	return buffers, nil
}

func (d *Device) FreeCommandBuffers(buffers []vulkan.CommandBuffer) {
	vulkan.FreeCommandBuffers(d.device, d.commandPool, uint32(len(buffers)), buffers)
}

// BeginCommandBuffer implicitly resets the buffer; the pool is created with
// the reset-command-buffer flag.
func (d *Device) BeginCommandBuffer(buffer vulkan.CommandBuffer) error {
	return render.NewError(vulkan.BeginCommandBuffer(buffer, &vulkan.CommandBufferBeginInfo{
		SType: vulkan.StructureTypeCommandBufferBeginInfo,
	}))
}

func (d *Device) EndCommandBuffer(buffer vulkan.CommandBuffer) error {
	return render.NewError(vulkan.EndCommandBuffer(buffer))
}

func (d *Device) Recorder(buffer vulkan.CommandBuffer) render.CommandRecorder {
	return &recorder{cb: buffer}
}

func (d *Device) CreateSemaphore() (vulkan.Semaphore, error) {
	var semaphore vulkan.Semaphore
	err := render.NewError(vulkan.CreateSemaphore(d.device, &vulkan.SemaphoreCreateInfo{
		SType: vulkan.StructureTypeSemaphoreCreateInfo,
	}, nil, &semaphore))
	if err != nil {
		return vulkan.NullSemaphore, err
	}
	return semaphore, nil
}

func (d *Device) DestroySemaphore(semaphore vulkan.Semaphore) {
	vulkan.DestroySemaphore(d.device, semaphore, nil)
}

func (d *Device) CreateFence(signaled bool) (vulkan.Fence, error) {
	info := vulkan.FenceCreateInfo{SType: vulkan.StructureTypeFenceCreateInfo}
	if signaled {
		info.Flags = vulkan.FenceCreateFlags(vulkan.FenceCreateSignaledBit)
	}
	var fence vulkan.Fence
	if err := render.NewError(vulkan.CreateFence(d.device, &info, nil, &fence)); err != nil {
		return vulkan.NullFence, err
	}
	return fence, nil
}

func (d *Device) DestroyFence(fence vulkan.Fence) {
	vulkan.DestroyFence(d.device, fence, nil)
}

func (d *Device) WaitForFences(fences []vulkan.Fence, timeout uint64) error {
	return render.NewError(vulkan.WaitForFences(d.device, uint32(len(fences)), fences, vulkan.True, timeout))
}

func (d *Device) ResetFences(fences []vulkan.Fence) error {
	return render.NewError(vulkan.ResetFences(d.device, uint32(len(fences)), fences))
}

func (d *Device) AcquireNextImage(swapchain vulkan.Swapchain, timeout uint64, signal vulkan.Semaphore) (uint32, vulkan.Result) {
	var index uint32
	res := vulkan.AcquireNextImage(d.device, swapchain, timeout, signal, vulkan.NullFence, &index)
	return index, res
}

func (d *Device) Submit(info *vulkan.SubmitInfo, fence vulkan.Fence) error {
	return render.NewError(vulkan.QueueSubmit(d.graphics, 1, []vulkan.SubmitInfo{*info}, fence))
}

func (d *Device) Present(info *vulkan.PresentInfo) vulkan.Result {
	return vulkan.QueuePresent(d.present, info)
}

func (d *Device) WaitIdle() error {
	return render.NewError(vulkan.DeviceWaitIdle(d.device))
}
