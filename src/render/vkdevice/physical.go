package vkdevice

import (
	"strings"

	"github.com/pkg/errors"
	"github.com/vulkan-go/vulkan"

	"prism/src/render"
)

type queueFamilies struct {
	graphics uint32
	present  uint32
}

// pickQueueFamilies prefers one family that can both draw and present.
func pickQueueFamilies(flags []vulkan.QueueFlags, canPresent []bool) (queueFamilies, bool) {
	graphics, present := -1, -1
	for i, f := range flags {
		isGraphics := f&vulkan.QueueFlags(vulkan.QueueGraphicsBit) != 0
		if isGraphics && canPresent[i] {
			return queueFamilies{graphics: uint32(i), present: uint32(i)}, true
		}
		if isGraphics && graphics < 0 {
			graphics = i
		}
		if canPresent[i] && present < 0 {
			present = i
		}
	}
	if graphics < 0 || present < 0 {
		return queueFamilies{}, false
	}
	return queueFamilies{graphics: uint32(graphics), present: uint32(present)}, true
}

func scoreDevice(deviceType vulkan.PhysicalDeviceType) uint32 {
	switch deviceType {
	case vulkan.PhysicalDeviceTypeDiscreteGpu:
		return 1000
	case vulkan.PhysicalDeviceTypeIntegratedGpu:
		return 100
	case vulkan.PhysicalDeviceTypeVirtualGpu:
		return 10
	}
	return 1
}

// missingExtensions returns the required names not present in available.
// Both lists may or may not be NUL terminated.
func missingExtensions(required, available []string) []string {
	have := make(map[string]struct{}, len(available))
	for _, name := range available {
		have[strings.TrimRight(name, "\x00")] = struct{}{}
	}
	var missing []string
	for _, name := range required {
		if _, ok := have[strings.TrimRight(name, "\x00")]; !ok {
			missing = append(missing, name)
		}
	}
	return missing
}

func findMemoryTypeIndex(types []vulkan.MemoryPropertyFlags, filter uint32, want vulkan.MemoryPropertyFlags) (uint32, error) {
	for i, flags := range types {
		if filter&(1<<uint(i)) == 0 {
			continue
		}
		if flags&want == want {
			return uint32(i), nil
		}
	}
	return 0, errors.Errorf("no memory type matches filter %#x and properties %#x", filter, want)
}

func terminated(names []string) []string {
	out := make([]string, len(names))
	for i, name := range names {
		if !strings.HasSuffix(name, "\x00") {
			name += "\x00"
		}
		out[i] = name
	}
	return out
}

func (d *Device) pickPhysicalDevice() error {
	var count uint32
	if err := render.NewError(vulkan.EnumeratePhysicalDevices(d.instance, &count, nil)); err != nil {
		return errors.Wrap(err, "count physical devices")
	}
	if count == 0 {
		return errors.New("no GPU with Vulkan support")
	}
	devices := make([]vulkan.PhysicalDevice, count)
	if err := render.NewError(vulkan.EnumeratePhysicalDevices(d.instance, &count, devices)); err != nil {
		return errors.Wrap(err, "enumerate physical devices")
	}

	var best uint32
	for _, candidate := range devices {
		var props vulkan.PhysicalDeviceProperties
		vulkan.GetPhysicalDeviceProperties(candidate, &props)
		props.Deref()
		name := vulkan.ToString(props.DeviceName[:])

		families, ok := d.queueFamiliesOf(candidate)
		if !ok {
			d.log.Debug("skipping device without graphics and present queues", "device", name)
			continue
		}
		if missing := missingExtensions(d.cfg.deviceExtensions, deviceExtensionsOf(candidate)); len(missing) > 0 {
			d.log.Debug("skipping device missing extensions", "device", name, "missing", missing)
			continue
		}
		support, err := surfaceSupportOf(candidate, d.surface)
		if err != nil || len(support.Formats) == 0 || len(support.PresentModes) == 0 {
			d.log.Debug("skipping device without surface formats or present modes", "device", name)
			continue
		}

		score := scoreDevice(props.DeviceType)
		d.log.Debug("candidate device", "device", name, "score", score)
		if score > best {
			best = score
			d.physical = candidate
			d.properties = props
			d.families = families
		}
	}
	if best == 0 {
		return errors.New("no suitable GPU")
	}

	vulkan.GetPhysicalDeviceMemoryProperties(d.physical, &d.memory)
	d.memory.Deref()
	d.log.Info("selected device", "device", vulkan.ToString(d.properties.DeviceName[:]),
		"graphicsFamily", d.families.graphics, "presentFamily", d.families.present)
	return nil
}

func (d *Device) queueFamiliesOf(physical vulkan.PhysicalDevice) (queueFamilies, bool) {
	var count uint32
	vulkan.GetPhysicalDeviceQueueFamilyProperties(physical, &count, nil)
	props := make([]vulkan.QueueFamilyProperties, count)
	vulkan.GetPhysicalDeviceQueueFamilyProperties(physical, &count, props)

	flags := make([]vulkan.QueueFlags, count)
	canPresent := make([]bool, count)
	for i := range props {
		props[i].Deref()
		flags[i] = props[i].QueueFlags

		var supported vulkan.Bool32
		if err := render.NewError(vulkan.GetPhysicalDeviceSurfaceSupport(physical, uint32(i), d.surface, &supported)); err != nil {
			d.log.Warn("query present support", "family", i, "error", err)
			continue
		}
		canPresent[i] = supported.B()
	}
	return pickQueueFamilies(flags, canPresent)
}

func deviceExtensionsOf(physical vulkan.PhysicalDevice) []string {
	var count uint32
	if vulkan.EnumerateDeviceExtensionProperties(physical, "", &count, nil) != vulkan.Success {
		return nil
	}
	props := make([]vulkan.ExtensionProperties, count)
	if vulkan.EnumerateDeviceExtensionProperties(physical, "", &count, props) != vulkan.Success {
		return nil
	}
	names := make([]string, 0, count)
	for _, p := range props {
		p.Deref()
		names = append(names, vulkan.ToString(p.ExtensionName[:]))
	}
	return names
}

func surfaceSupportOf(physical vulkan.PhysicalDevice, surface vulkan.Surface) (*render.SurfaceSupport, error) {
	var caps vulkan.SurfaceCapabilities
	if err := render.NewError(vulkan.GetPhysicalDeviceSurfaceCapabilities(physical, surface, &caps)); err != nil {
		return nil, errors.Wrap(err, "query surface capabilities")
	}
	caps.Deref()
	caps.CurrentExtent.Deref()
	caps.MinImageExtent.Deref()
	caps.MaxImageExtent.Deref()
	support := &render.SurfaceSupport{Capabilities: caps}

	var formatCount uint32
	if err := render.NewError(vulkan.GetPhysicalDeviceSurfaceFormats(physical, surface, &formatCount, nil)); err != nil {
		return nil, errors.Wrap(err, "query surface formats")
	}
	if formatCount > 0 {
		formats := make([]vulkan.SurfaceFormat, formatCount)
		vulkan.GetPhysicalDeviceSurfaceFormats(physical, surface, &formatCount, formats)
		for _, f := range formats {
			f.Deref()
			support.Formats = append(support.Formats, f)
		}
	}

	var modeCount uint32
	if err := render.NewError(vulkan.GetPhysicalDeviceSurfacePresentModes(physical, surface, &modeCount, nil)); err != nil {
		return nil, errors.Wrap(err, "query present modes")
	}
	if modeCount > 0 {
		support.PresentModes = make([]vulkan.PresentMode, modeCount)
		vulkan.GetPhysicalDeviceSurfacePresentModes(physical, surface, &modeCount, support.PresentModes)
	}
	return support, nil
}

func (d *Device) findMemoryType(filter uint32, want vulkan.MemoryPropertyFlags) (uint32, error) {
	types := make([]vulkan.MemoryPropertyFlags, d.memory.MemoryTypeCount)
	for i := range types {
		t := d.memory.MemoryTypes[i]
		t.Deref()
		types[i] = t.PropertyFlags
	}
	return findMemoryTypeIndex(types, filter, want)
}

func (d *Device) findSupportedFormat(candidates []vulkan.Format, tiling vulkan.ImageTiling, features vulkan.FormatFeatureFlags) (vulkan.Format, error) {
	for _, format := range candidates {
		var props vulkan.FormatProperties
		vulkan.GetPhysicalDeviceFormatProperties(d.physical, format, &props)
		props.Deref()

		if tiling == vulkan.ImageTilingLinear && props.LinearTilingFeatures&features == features {
			return format, nil
		}
		if tiling == vulkan.ImageTilingOptimal && props.OptimalTilingFeatures&features == features {
			return format, nil
		}
	}
	return vulkan.FormatUndefined, errors.New("no supported format among candidates")
}
