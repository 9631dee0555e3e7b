package systems

import (
	"os"
	"path/filepath"

	"github.com/pkg/errors"
	"github.com/vulkan-go/vulkan"

	"prism/src/render/vkdevice"
	"prism/src/scene"
)

type loadedPipeline struct {
	*vkdevice.Pipeline
	device *vkdevice.Device
}

func (p loadedPipeline) Destroy() {
	p.Pipeline.Destroy()
	p.device.DestroyPipelineLayout(p.Pipeline.Layout())
}

// LoadPipeline compiles <shaderDir>/<name>.vert.spv and <name>.frag.spv into
// a pipeline for renderPass whose layout has the global set at index 0.
func LoadPipeline(
	device *vkdevice.Device,
	renderPass vulkan.RenderPass,
	globalSetLayout vulkan.DescriptorSetLayout,
	shaderDir, name string,
	pushConstants []vulkan.PushConstantRange,
	cfg vkdevice.PipelineConfig,
) (Pipeline, error) {
	vert, err := os.ReadFile(filepath.Join(shaderDir, name+".vert.spv"))
	if err != nil {
		return nil, errors.Wrapf(err, "load %s shaders", name)
	}
	frag, err := os.ReadFile(filepath.Join(shaderDir, name+".frag.spv"))
	if err != nil {
		return nil, errors.Wrapf(err, "load %s shaders", name)
	}

	layout, err := device.NewPipelineLayout([]vulkan.DescriptorSetLayout{globalSetLayout}, pushConstants)
	if err != nil {
		return nil, errors.Wrapf(err, "%s pipeline", name)
	}
	cfg.Layout = layout
	cfg.RenderPass = renderPass

	pipeline, err := device.NewGraphicsPipeline(vert, frag, cfg)
	if err != nil {
		device.DestroyPipelineLayout(layout)
		return nil, errors.Wrapf(err, "%s pipeline", name)
	}
	return loadedPipeline{Pipeline: pipeline, device: device}, nil
}

// LoadMeshSystem builds the mesh pipeline from the "mesh" shaders.
func LoadMeshSystem(device *vkdevice.Device, renderPass vulkan.RenderPass, globalSetLayout vulkan.DescriptorSetLayout, shaderDir string) (*MeshSystem, error) {
	cfg := vkdevice.DefaultPipelineConfig()
	cfg.BindingDescriptions = scene.VertexBindingDescriptions()
	cfg.AttributeDescriptions = scene.VertexAttributeDescriptions()

	p, err := LoadPipeline(device, renderPass, globalSetLayout, shaderDir, "mesh", MeshPushConstantRanges(), cfg)
	if err != nil {
		return nil, err
	}
	return NewMeshSystem(p), nil
}

// LoadPointLightSystem builds the billboard pipeline from the "point_light"
// shaders. It has no vertex input and blends with straight alpha.
func LoadPointLightSystem(device *vkdevice.Device, renderPass vulkan.RenderPass, globalSetLayout vulkan.DescriptorSetLayout, shaderDir string) (*PointLightSystem, error) {
	cfg := vkdevice.DefaultPipelineConfig()
	cfg.EnableAlphaBlending()

	p, err := LoadPipeline(device, renderPass, globalSetLayout, shaderDir, "point_light", nil, cfg)
	if err != nil {
		return nil, err
	}
	return NewPointLightSystem(p), nil
}
