package vkdevice

import (
	"unsafe"

	"github.com/pkg/errors"
	"github.com/vulkan-go/vulkan"

	"prism/src/render"
)

const hostVisible = vulkan.MemoryPropertyFlags(vulkan.MemoryPropertyHostVisibleBit | vulkan.MemoryPropertyHostCoherentBit)

// Buffer is a device buffer with its own memory allocation. Host visible
// buffers can be mapped and written directly.
type Buffer struct {
	device *Device
	handle vulkan.Buffer
	memory vulkan.DeviceMemory
	size   vulkan.DeviceSize
	mapped unsafe.Pointer
}

var _ render.Buffer = (*Buffer)(nil)

// NewBuffer creates a buffer of the given size and binds freshly allocated
// memory with the requested properties.
func (d *Device) NewBuffer(size vulkan.DeviceSize, usage vulkan.BufferUsageFlags, properties vulkan.MemoryPropertyFlags) (*Buffer, error) {
	if size == 0 {
		return nil, errors.New("buffer size must be non-zero")
	}
	info := vulkan.BufferCreateInfo{
		SType:       vulkan.StructureTypeBufferCreateInfo,
		Size:        size,
		Usage:       usage,
		SharingMode: vulkan.SharingModeExclusive,
	}
	var handle vulkan.Buffer
	if err := render.NewError(vulkan.CreateBuffer(d.device, &info, nil, &handle)); err != nil {
		return nil, errors.Wrap(err, "create buffer")
	}

	var req vulkan.MemoryRequirements
	vulkan.GetBufferMemoryRequirements(d.device, handle, &req)
	req.Deref()

	memory, err := d.allocate(req, properties)
	if err != nil {
		vulkan.DestroyBuffer(d.device, handle, nil)
		return nil, errors.Wrap(err, "allocate buffer memory")
	}
	if err := render.NewError(vulkan.BindBufferMemory(d.device, handle, memory, 0)); err != nil {
		vulkan.FreeMemory(d.device, memory, nil)
		vulkan.DestroyBuffer(d.device, handle, nil)
		return nil, errors.Wrap(err, "bind buffer memory")
	}
	return &Buffer{device: d, handle: handle, memory: memory, size: size}, nil
}

// NewVertexBuffer uploads data into a host visible vertex buffer.
func (d *Device) NewVertexBuffer(data []byte) (render.Buffer, error) {
	b, err := d.newFilledBuffer(data, vulkan.BufferUsageVertexBufferBit)
	if err != nil {
		return nil, err
	}
	return b, nil
}

// NewIndexBuffer uploads data into a host visible index buffer.
func (d *Device) NewIndexBuffer(data []byte) (render.Buffer, error) {
	b, err := d.newFilledBuffer(data, vulkan.BufferUsageIndexBufferBit)
	if err != nil {
		return nil, err
	}
	return b, nil
}

func (d *Device) newFilledBuffer(data []byte, usage vulkan.BufferUsageFlagBits) (*Buffer, error) {
	b, err := d.NewBuffer(vulkan.DeviceSize(len(data)), vulkan.BufferUsageFlags(usage), hostVisible)
	if err != nil {
		return nil, err
	}
	if err := b.Map(); err != nil {
		b.Destroy()
		return nil, err
	}
	b.Write(data)
	b.Unmap()
	return b, nil
}

// Map maps the whole buffer into host memory.
func (b *Buffer) Map() error {
	if b.mapped != nil {
		return nil
	}
	var ptr unsafe.Pointer
	if err := render.NewError(vulkan.MapMemory(b.device.device, b.memory, 0, b.size, 0, &ptr)); err != nil {
		return errors.Wrap(err, "map buffer memory")
	}
	b.mapped = ptr
	return nil
}

func (b *Buffer) Unmap() {
	if b.mapped == nil {
		return
	}
	vulkan.UnmapMemory(b.device.device, b.memory)
	b.mapped = nil
}

// Write copies data to the start of the mapped buffer.
func (b *Buffer) Write(data []byte) {
	b.WriteAt(data, 0)
}

// WriteAt copies data into the mapped buffer at offset. Panics if the buffer
// is not mapped or the write overruns it.
func (b *Buffer) WriteAt(data []byte, offset vulkan.DeviceSize) {
	if b.mapped == nil {
		panic("vkdevice: write to unmapped buffer")
	}
	if offset+vulkan.DeviceSize(len(data)) > b.size {
		panic(errors.Errorf("vkdevice: write of %d bytes at %d overruns buffer of %d", len(data), offset, b.size))
	}
	vulkan.Memcopy(unsafe.Add(b.mapped, int(offset)), data)
}

// Flush makes host writes visible to the device. Coherent memory does not
// need it, but it is harmless.
func (b *Buffer) Flush() error {
	return render.NewError(vulkan.FlushMappedMemoryRanges(b.device.device, 1, []vulkan.MappedMemoryRange{{
		SType:  vulkan.StructureTypeMappedMemoryRange,
		Memory: b.memory,
		Offset: 0,
		Size:   vulkan.DeviceSize(vulkan.WholeSize),
	}}))
}

func (b *Buffer) DescriptorInfo() vulkan.DescriptorBufferInfo {
	return vulkan.DescriptorBufferInfo{
		Buffer: b.handle,
		Offset: 0,
		Range:  b.size,
	}
}

func (b *Buffer) Handle() vulkan.Buffer   { return b.handle }
func (b *Buffer) Size() vulkan.DeviceSize { return b.size }

func (b *Buffer) Destroy() {
	if b.handle == vulkan.NullBuffer {
		return
	}
	b.Unmap()
	vulkan.DestroyBuffer(b.device.device, b.handle, nil)
	vulkan.FreeMemory(b.device.device, b.memory, nil)
	b.handle = vulkan.NullBuffer
	b.memory = vulkan.NullDeviceMemory
}
