package vkdevice

import (
	"encoding/binary"
	"fmt"
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/vulkan-go/vulkan"
)

func TestPickQueueFamilies(t *testing.T) {
	graphics := vulkan.QueueFlags(vulkan.QueueGraphicsBit)
	compute := vulkan.QueueFlags(vulkan.QueueComputeBit)

	for idx, tc := range []struct {
		name       string
		flags      []vulkan.QueueFlags
		canPresent []bool
		want       queueFamilies
		ok         bool
	}{
		{"shared", []vulkan.QueueFlags{compute, graphics | compute}, []bool{true, true}, queueFamilies{1, 1}, true},
		{"split", []vulkan.QueueFlags{graphics, compute}, []bool{false, true}, queueFamilies{0, 1}, true},
		{"prefer shared over first graphics", []vulkan.QueueFlags{graphics, graphics}, []bool{false, true}, queueFamilies{1, 1}, true},
		{"no present", []vulkan.QueueFlags{graphics}, []bool{false}, queueFamilies{}, false},
		{"no graphics", []vulkan.QueueFlags{compute}, []bool{true}, queueFamilies{}, false},
		{"empty", nil, nil, queueFamilies{}, false},
	} {
		t.Run(fmt.Sprintf("%d/%s", idx, tc.name), func(t *testing.T) {
			got, ok := pickQueueFamilies(tc.flags, tc.canPresent)
			require.Equal(t, tc.ok, ok)
			require.Equal(t, tc.want, got)
		})
	}
}

func TestScoreDevicePrefersDiscrete(t *testing.T) {
	require.Greater(t, scoreDevice(vulkan.PhysicalDeviceTypeDiscreteGpu), scoreDevice(vulkan.PhysicalDeviceTypeIntegratedGpu))
	require.Greater(t, scoreDevice(vulkan.PhysicalDeviceTypeIntegratedGpu), scoreDevice(vulkan.PhysicalDeviceTypeVirtualGpu))
	require.Greater(t, scoreDevice(vulkan.PhysicalDeviceTypeVirtualGpu), scoreDevice(vulkan.PhysicalDeviceTypeCpu))
	require.NotZero(t, scoreDevice(vulkan.PhysicalDeviceTypeOther))
}

func TestMissingExtensions(t *testing.T) {
	available := []string{"VK_KHR_swapchain", "VK_KHR_maintenance1\x00"}
	require.Empty(t, missingExtensions([]string{"VK_KHR_swapchain\x00", "VK_KHR_maintenance1"}, available))
	require.Equal(t, []string{"VK_EXT_mesh_shader\x00"}, missingExtensions([]string{"VK_KHR_swapchain\x00", "VK_EXT_mesh_shader\x00"}, available))
	require.Empty(t, missingExtensions(nil, nil))
}

func TestFindMemoryTypeIndex(t *testing.T) {
	deviceLocal := vulkan.MemoryPropertyFlags(vulkan.MemoryPropertyDeviceLocalBit)
	types := []vulkan.MemoryPropertyFlags{deviceLocal, hostVisible, deviceLocal | hostVisible}

	idx, err := findMemoryTypeIndex(types, 0b111, hostVisible)
	require.NoError(t, err)
	require.Equal(t, uint32(1), idx)

	idx, err = findMemoryTypeIndex(types, 0b100, hostVisible)
	require.NoError(t, err)
	require.Equal(t, uint32(2), idx)

	_, err = findMemoryTypeIndex(types, 0b001, hostVisible)
	require.Error(t, err)
}

func TestTerminated(t *testing.T) {
	require.Equal(t, []string{"a\x00", "b\x00"}, terminated([]string{"a", "b\x00"}))
	require.Empty(t, terminated(nil))
}

func TestDeviceOptions(t *testing.T) {
	cfg := defaultDeviceConfig()
	for _, opt := range []DeviceBuilderOption{
		WithAppName("viewer"),
		WithValidation(true),
		WithDeviceExtensions("VK_KHR_maintenance1"),
	} {
		opt(&cfg)
	}
	require.Equal(t, "viewer", cfg.appName)
	require.True(t, cfg.validation)
	require.Equal(t, []string{vulkan.KhrSwapchainExtensionName + "\x00", "VK_KHR_maintenance1\x00"}, cfg.deviceExtensions)
}

func TestSpirvWords(t *testing.T) {
	code := make([]byte, 8)
	binary.LittleEndian.PutUint32(code, spirvMagic)
	binary.LittleEndian.PutUint32(code[4:], 0x00010000)

	words, err := spirvWords(code)
	require.NoError(t, err)
	require.Equal(t, []uint32{spirvMagic, 0x00010000}, words)

	_, err = spirvWords(code[:6])
	require.Error(t, err)
	_, err = spirvWords(nil)
	require.Error(t, err)

	binary.LittleEndian.PutUint32(code, 0xdeadbeef)
	_, err = spirvWords(code)
	require.ErrorContains(t, err, "magic")
}

func TestDefaultPipelineConfig(t *testing.T) {
	cfg := DefaultPipelineConfig()
	require.Equal(t, vulkan.PrimitiveTopologyTriangleList, cfg.InputAssembly.Topology)
	require.Equal(t, vulkan.SampleCount1Bit, cfg.Multisample.RasterizationSamples)
	require.Equal(t, vulkan.CompareOpLess, cfg.DepthStencil.DepthCompareOp)
	require.Equal(t, vulkan.Bool32(vulkan.False), cfg.ColorBlend.BlendEnable)
	require.Equal(t, []vulkan.DynamicState{vulkan.DynamicStateViewport, vulkan.DynamicStateScissor}, cfg.DynamicStates)

	cfg.EnableAlphaBlending()
	require.Equal(t, vulkan.Bool32(vulkan.True), cfg.ColorBlend.BlendEnable)
	require.Equal(t, vulkan.BlendFactorSrcAlpha, cfg.ColorBlend.SrcColorBlendFactor)
	require.Equal(t, vulkan.BlendFactorOneMinusSrcAlpha, cfg.ColorBlend.DstColorBlendFactor)

	_, err := (&Device{}).NewGraphicsPipeline(nil, nil, DefaultPipelineConfig())
	require.ErrorContains(t, err, "no layout")
}

func TestDescriptorBuilders(t *testing.T) {
	b := (&Device{}).NewDescriptorSetLayoutBuilder()
	b.AddBinding(0, vulkan.DescriptorTypeUniformBuffer, vulkan.ShaderStageFlags(vulkan.ShaderStageAllGraphics), 1)
	require.Panics(t, func() {
		b.AddBinding(0, vulkan.DescriptorTypeUniformBuffer, vulkan.ShaderStageFlags(vulkan.ShaderStageAllGraphics), 1)
	})

	layout := &DescriptorSetLayout{bindings: b.bindings}
	w := NewDescriptorWriter(layout, &DescriptorPool{})
	w.WriteBuffer(0, vulkan.DescriptorBufferInfo{Range: 64})
	require.Len(t, w.writes, 1)
	require.Equal(t, vulkan.DescriptorTypeUniformBuffer, w.writes[0].DescriptorType)
	require.Panics(t, func() { w.WriteBuffer(3, vulkan.DescriptorBufferInfo{}) })

	pool := (&Device{}).NewDescriptorPoolBuilder().SetMaxSets(2).AddPoolSize(vulkan.DescriptorTypeUniformBuffer, 2)
	require.Equal(t, uint32(2), pool.maxSets)
	require.Len(t, pool.sizes, 1)
}
