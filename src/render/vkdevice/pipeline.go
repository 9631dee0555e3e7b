package vkdevice

import (
	"encoding/binary"

	"github.com/pkg/errors"
	"github.com/vulkan-go/vulkan"

	"prism/src/render"
)

const spirvMagic = 0x07230203

// PipelineConfig is the fixed-function state of a graphics pipeline. Start
// from DefaultPipelineConfig and adjust.
type PipelineConfig struct {
	BindingDescriptions   []vulkan.VertexInputBindingDescription
	AttributeDescriptions []vulkan.VertexInputAttributeDescription

	InputAssembly vulkan.PipelineInputAssemblyStateCreateInfo
	Rasterization vulkan.PipelineRasterizationStateCreateInfo
	Multisample   vulkan.PipelineMultisampleStateCreateInfo
	ColorBlend    vulkan.PipelineColorBlendAttachmentState
	DepthStencil  vulkan.PipelineDepthStencilStateCreateInfo
	DynamicStates []vulkan.DynamicState

	Layout     vulkan.PipelineLayout
	RenderPass vulkan.RenderPass
	Subpass    uint32
}

func DefaultPipelineConfig() PipelineConfig {
	return PipelineConfig{
		InputAssembly: vulkan.PipelineInputAssemblyStateCreateInfo{
			SType:                  vulkan.StructureTypePipelineInputAssemblyStateCreateInfo,
			Topology:               vulkan.PrimitiveTopologyTriangleList,
			PrimitiveRestartEnable: vulkan.False,
		},
		Rasterization: vulkan.PipelineRasterizationStateCreateInfo{
			SType:                   vulkan.StructureTypePipelineRasterizationStateCreateInfo,
			DepthClampEnable:        vulkan.False,
			RasterizerDiscardEnable: vulkan.False,
			PolygonMode:             vulkan.PolygonModeFill,
			LineWidth:               1.0,
			CullMode:                vulkan.CullModeFlags(vulkan.CullModeNone),
			FrontFace:               vulkan.FrontFaceCounterClockwise,
			DepthBiasEnable:         vulkan.False,
		},
		Multisample: vulkan.PipelineMultisampleStateCreateInfo{
			SType:                vulkan.StructureTypePipelineMultisampleStateCreateInfo,
			SampleShadingEnable:  vulkan.False,
			RasterizationSamples: vulkan.SampleCount1Bit,
			MinSampleShading:     1.0,
		},
		ColorBlend: vulkan.PipelineColorBlendAttachmentState{
			ColorWriteMask: vulkan.ColorComponentFlags(vulkan.ColorComponentRBit | vulkan.ColorComponentGBit |
				vulkan.ColorComponentBBit | vulkan.ColorComponentABit),
			BlendEnable:         vulkan.False,
			SrcColorBlendFactor: vulkan.BlendFactorOne,
			DstColorBlendFactor: vulkan.BlendFactorZero,
			ColorBlendOp:        vulkan.BlendOpAdd,
			SrcAlphaBlendFactor: vulkan.BlendFactorOne,
			DstAlphaBlendFactor: vulkan.BlendFactorZero,
			AlphaBlendOp:        vulkan.BlendOpAdd,
		},
		DepthStencil: vulkan.PipelineDepthStencilStateCreateInfo{
			SType:                 vulkan.StructureTypePipelineDepthStencilStateCreateInfo,
			DepthTestEnable:       vulkan.True,
			DepthWriteEnable:      vulkan.True,
			DepthCompareOp:        vulkan.CompareOpLess,
			DepthBoundsTestEnable: vulkan.False,
			MinDepthBounds:        0,
			MaxDepthBounds:        1,
			StencilTestEnable:     vulkan.False,
		},
		DynamicStates: []vulkan.DynamicState{vulkan.DynamicStateViewport, vulkan.DynamicStateScissor},
	}
}

// EnableAlphaBlending switches the color attachment to straight alpha.
func (c *PipelineConfig) EnableAlphaBlending() {
	c.ColorBlend.BlendEnable = vulkan.True
	c.ColorBlend.SrcColorBlendFactor = vulkan.BlendFactorSrcAlpha
	c.ColorBlend.DstColorBlendFactor = vulkan.BlendFactorOneMinusSrcAlpha
	c.ColorBlend.ColorBlendOp = vulkan.BlendOpAdd
	c.ColorBlend.SrcAlphaBlendFactor = vulkan.BlendFactorOne
	c.ColorBlend.DstAlphaBlendFactor = vulkan.BlendFactorZero
	c.ColorBlend.AlphaBlendOp = vulkan.BlendOpAdd
}

// NewPipelineLayout creates a layout from descriptor set layouts and push
// constant ranges. Either may be empty.
func (d *Device) NewPipelineLayout(setLayouts []vulkan.DescriptorSetLayout, pushConstants []vulkan.PushConstantRange) (vulkan.PipelineLayout, error) {
	info := vulkan.PipelineLayoutCreateInfo{
		SType:                  vulkan.StructureTypePipelineLayoutCreateInfo,
		SetLayoutCount:         uint32(len(setLayouts)),
		PSetLayouts:            setLayouts,
		PushConstantRangeCount: uint32(len(pushConstants)),
		PPushConstantRanges:    pushConstants,
	}
	var layout vulkan.PipelineLayout
	if err := render.NewError(vulkan.CreatePipelineLayout(d.device, &info, nil, &layout)); err != nil {
		return vulkan.NullPipelineLayout, errors.Wrap(err, "create pipeline layout")
	}
	return layout, nil
}

// Pipeline is a graphics pipeline. The layout stays owned by the caller.
type Pipeline struct {
	device *Device
	handle vulkan.Pipeline
	layout vulkan.PipelineLayout
}

// NewGraphicsPipeline compiles a pipeline from SPIR-V vertex and fragment
// code. cfg.Layout and cfg.RenderPass must be set.
func (d *Device) NewGraphicsPipeline(vert, frag []byte, cfg PipelineConfig) (*Pipeline, error) {
	if cfg.Layout == vulkan.NullPipelineLayout {
		return nil, errors.New("pipeline config has no layout")
	}
	if cfg.RenderPass == vulkan.NullRenderPass {
		return nil, errors.New("pipeline config has no render pass")
	}

	vertModule, err := d.createShaderModule(vert)
	if err != nil {
		return nil, errors.Wrap(err, "vertex shader")
	}
	defer vulkan.DestroyShaderModule(d.device, vertModule, nil)
	fragModule, err := d.createShaderModule(frag)
	if err != nil {
		return nil, errors.Wrap(err, "fragment shader")
	}
	defer vulkan.DestroyShaderModule(d.device, fragModule, nil)

	stages := []vulkan.PipelineShaderStageCreateInfo{
		{
			SType:  vulkan.StructureTypePipelineShaderStageCreateInfo,
			Stage:  vulkan.ShaderStageVertexBit,
			Module: vertModule,
			PName:  "main\x00",
		},
		{
			SType:  vulkan.StructureTypePipelineShaderStageCreateInfo,
			Stage:  vulkan.ShaderStageFragmentBit,
			Module: fragModule,
			PName:  "main\x00",
		},
	}
	vertexInput := vulkan.PipelineVertexInputStateCreateInfo{
		SType:                           vulkan.StructureTypePipelineVertexInputStateCreateInfo,
		VertexBindingDescriptionCount:   uint32(len(cfg.BindingDescriptions)),
		PVertexBindingDescriptions:      cfg.BindingDescriptions,
		VertexAttributeDescriptionCount: uint32(len(cfg.AttributeDescriptions)),
		PVertexAttributeDescriptions:    cfg.AttributeDescriptions,
	}
	viewport := vulkan.PipelineViewportStateCreateInfo{
		SType:         vulkan.StructureTypePipelineViewportStateCreateInfo,
		ViewportCount: 1,
		ScissorCount:  1,
	}
	colorBlend := vulkan.PipelineColorBlendStateCreateInfo{
		SType:           vulkan.StructureTypePipelineColorBlendStateCreateInfo,
		LogicOpEnable:   vulkan.False,
		LogicOp:         vulkan.LogicOpCopy,
		AttachmentCount: 1,
		PAttachments:    []vulkan.PipelineColorBlendAttachmentState{cfg.ColorBlend},
	}
	dynamic := vulkan.PipelineDynamicStateCreateInfo{
		SType:             vulkan.StructureTypePipelineDynamicStateCreateInfo,
		DynamicStateCount: uint32(len(cfg.DynamicStates)),
		PDynamicStates:    cfg.DynamicStates,
	}

	infos := []vulkan.GraphicsPipelineCreateInfo{{
		SType:               vulkan.StructureTypeGraphicsPipelineCreateInfo,
		StageCount:          uint32(len(stages)),
		PStages:             stages,
		PVertexInputState:   &vertexInput,
		PInputAssemblyState: &cfg.InputAssembly,
		PViewportState:      &viewport,
		PRasterizationState: &cfg.Rasterization,
		PMultisampleState:   &cfg.Multisample,
		PDepthStencilState:  &cfg.DepthStencil,
		PColorBlendState:    &colorBlend,
		PDynamicState:       &dynamic,
		Layout:              cfg.Layout,
		RenderPass:          cfg.RenderPass,
		Subpass:             cfg.Subpass,
		BasePipelineHandle:  vulkan.NullPipeline,
		BasePipelineIndex:   -1,
	}}
	pipelines := make([]vulkan.Pipeline, 1)
	if err := render.NewError(vulkan.CreateGraphicsPipelines(d.device, vulkan.PipelineCache(vulkan.NullHandle), 1, infos, nil, pipelines)); err != nil {
		return nil, errors.Wrap(err, "create graphics pipeline")
	}
	return &Pipeline{device: d, handle: pipelines[0], layout: cfg.Layout}, nil
}

func (d *Device) createShaderModule(code []byte) (vulkan.ShaderModule, error) {
	words, err := spirvWords(code)
	if err != nil {
		return vulkan.NullShaderModule, err
	}
	info := vulkan.ShaderModuleCreateInfo{
		SType:    vulkan.StructureTypeShaderModuleCreateInfo,
		CodeSize: uint(len(code)),
		PCode:    words,
	}
	var module vulkan.ShaderModule
	if err := render.NewError(vulkan.CreateShaderModule(d.device, &info, nil, &module)); err != nil {
		return vulkan.NullShaderModule, errors.Wrap(err, "create shader module")
	}
	return module, nil
}

// spirvWords reinterprets a little-endian SPIR-V binary as 32-bit words.
func spirvWords(code []byte) ([]uint32, error) {
	if len(code) < 4 || len(code)%4 != 0 {
		return nil, errors.Errorf("SPIR-V size %d is not a positive multiple of 4", len(code))
	}
	words := make([]uint32, len(code)/4)
	for i := range words {
		words[i] = binary.LittleEndian.Uint32(code[i*4:])
	}
	if words[0] != spirvMagic {
		return nil, errors.Errorf("bad SPIR-V magic %#08x", words[0])
	}
	return words, nil
}

func (p *Pipeline) Handle() vulkan.Pipeline       { return p.handle }
func (p *Pipeline) Layout() vulkan.PipelineLayout { return p.layout }

func (p *Pipeline) Destroy() {
	vulkan.DestroyPipeline(p.device.device, p.handle, nil)
}

// DestroyPipelineLayout releases a layout made by NewPipelineLayout.
func (d *Device) DestroyPipelineLayout(layout vulkan.PipelineLayout) {
	vulkan.DestroyPipelineLayout(d.device, layout, nil)
}
