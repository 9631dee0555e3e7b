package vkdevice

import (
	"github.com/pkg/errors"
	"github.com/vulkan-go/vulkan"

	"prism/src/render"
)

// DescriptorSetLayoutBuilder collects bindings keyed by binding number.
type DescriptorSetLayoutBuilder struct {
	device   *Device
	bindings map[uint32]vulkan.DescriptorSetLayoutBinding
	order    []uint32
}

func (d *Device) NewDescriptorSetLayoutBuilder() *DescriptorSetLayoutBuilder {
	return &DescriptorSetLayoutBuilder{device: d, bindings: map[uint32]vulkan.DescriptorSetLayoutBinding{}}
}

// AddBinding panics when binding is already in use.
func (b *DescriptorSetLayoutBuilder) AddBinding(binding uint32, kind vulkan.DescriptorType, stages vulkan.ShaderStageFlags, count uint32) *DescriptorSetLayoutBuilder {
	if _, ok := b.bindings[binding]; ok {
		panic(errors.Errorf("vkdevice: descriptor binding %d already in use", binding))
	}
	b.bindings[binding] = vulkan.DescriptorSetLayoutBinding{
		Binding:         binding,
		DescriptorType:  kind,
		DescriptorCount: count,
		StageFlags:      stages,
	}
	b.order = append(b.order, binding)
	return b
}

func (b *DescriptorSetLayoutBuilder) Build() (*DescriptorSetLayout, error) {
	bindings := make([]vulkan.DescriptorSetLayoutBinding, 0, len(b.order))
	for _, binding := range b.order {
		bindings = append(bindings, b.bindings[binding])
	}
	info := vulkan.DescriptorSetLayoutCreateInfo{
		SType:        vulkan.StructureTypeDescriptorSetLayoutCreateInfo,
		BindingCount: uint32(len(bindings)),
		PBindings:    bindings,
	}
	var layout vulkan.DescriptorSetLayout
	if err := render.NewError(vulkan.CreateDescriptorSetLayout(b.device.device, &info, nil, &layout)); err != nil {
		return nil, errors.Wrap(err, "create descriptor set layout")
	}
	return &DescriptorSetLayout{device: b.device, handle: layout, bindings: b.bindings}, nil
}

type DescriptorSetLayout struct {
	device   *Device
	handle   vulkan.DescriptorSetLayout
	bindings map[uint32]vulkan.DescriptorSetLayoutBinding
}

func (l *DescriptorSetLayout) Handle() vulkan.DescriptorSetLayout {
	return l.handle
}

func (l *DescriptorSetLayout) Destroy() {
	vulkan.DestroyDescriptorSetLayout(l.device.device, l.handle, nil)
}

type DescriptorPoolBuilder struct {
	device  *Device
	maxSets uint32
	flags   vulkan.DescriptorPoolCreateFlags
	sizes   []vulkan.DescriptorPoolSize
}

func (d *Device) NewDescriptorPoolBuilder() *DescriptorPoolBuilder {
	return &DescriptorPoolBuilder{device: d, maxSets: 1000}
}

func (b *DescriptorPoolBuilder) AddPoolSize(kind vulkan.DescriptorType, count uint32) *DescriptorPoolBuilder {
	b.sizes = append(b.sizes, vulkan.DescriptorPoolSize{Type: kind, DescriptorCount: count})
	return b
}

func (b *DescriptorPoolBuilder) SetPoolFlags(flags vulkan.DescriptorPoolCreateFlags) *DescriptorPoolBuilder {
	b.flags = flags
	return b
}

func (b *DescriptorPoolBuilder) SetMaxSets(count uint32) *DescriptorPoolBuilder {
	b.maxSets = count
	return b
}

func (b *DescriptorPoolBuilder) Build() (*DescriptorPool, error) {
	info := vulkan.DescriptorPoolCreateInfo{
		SType:         vulkan.StructureTypeDescriptorPoolCreateInfo,
		Flags:         b.flags,
		MaxSets:       b.maxSets,
		PoolSizeCount: uint32(len(b.sizes)),
		PPoolSizes:    b.sizes,
	}
	var pool vulkan.DescriptorPool
	if err := render.NewError(vulkan.CreateDescriptorPool(b.device.device, &info, nil, &pool)); err != nil {
		return nil, errors.Wrap(err, "create descriptor pool")
	}
	return &DescriptorPool{device: b.device, handle: pool}, nil
}

type DescriptorPool struct {
	device *Device
	handle vulkan.DescriptorPool
}

// Allocate allocates one set with the given layout.
func (p *DescriptorPool) Allocate(layout *DescriptorSetLayout) (vulkan.DescriptorSet, error) {
	info := vulkan.DescriptorSetAllocateInfo{
		SType:              vulkan.StructureTypeDescriptorSetAllocateInfo,
		DescriptorPool:     p.handle,
		DescriptorSetCount: 1,
		PSetLayouts:        []vulkan.DescriptorSetLayout{layout.handle},
	}
	var set vulkan.DescriptorSet
	if err := render.NewError(vulkan.AllocateDescriptorSets(p.device.device, &info, &set)); err != nil {
		return nil, errors.Wrap(err, "allocate descriptor set")
	}
	return set, nil
}

func (p *DescriptorPool) Reset() error {
	return render.NewError(vulkan.ResetDescriptorPool(p.device.device, p.handle, 0))
}

func (p *DescriptorPool) Destroy() {
	vulkan.DestroyDescriptorPool(p.device.device, p.handle, nil)
}

// DescriptorWriter batches writes for one set and applies them in Build.
type DescriptorWriter struct {
	layout *DescriptorSetLayout
	pool   *DescriptorPool
	writes []vulkan.WriteDescriptorSet
}

func NewDescriptorWriter(layout *DescriptorSetLayout, pool *DescriptorPool) *DescriptorWriter {
	return &DescriptorWriter{layout: layout, pool: pool}
}

// WriteBuffer panics if the layout has no single-descriptor binding at binding.
func (w *DescriptorWriter) WriteBuffer(binding uint32, info vulkan.DescriptorBufferInfo) *DescriptorWriter {
	desc, ok := w.layout.bindings[binding]
	if !ok {
		panic(errors.Errorf("vkdevice: layout has no binding %d", binding))
	}
	if desc.DescriptorCount != 1 {
		panic(errors.Errorf("vkdevice: binding %d expects %d descriptors", binding, desc.DescriptorCount))
	}
	w.writes = append(w.writes, vulkan.WriteDescriptorSet{
		SType:           vulkan.StructureTypeWriteDescriptorSet,
		DstBinding:      binding,
		DescriptorCount: 1,
		DescriptorType:  desc.DescriptorType,
		PBufferInfo:     []vulkan.DescriptorBufferInfo{info},
	})
	return w
}

// Build allocates a set from the pool and applies every queued write to it.
func (w *DescriptorWriter) Build() (vulkan.DescriptorSet, error) {
	set, err := w.pool.Allocate(w.layout)
	if err != nil {
		return nil, err
	}
	for i := range w.writes {
		w.writes[i].DstSet = set
	}
	vulkan.UpdateDescriptorSets(w.pool.device.device, uint32(len(w.writes)), w.writes, 0, nil)
	return set, nil
}
