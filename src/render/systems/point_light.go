package systems

import (
	"github.com/vulkan-go/vulkan"
)

// PointLightSystem draws the light as a camera facing billboard. The vertex
// shader builds the quad from the light position in the global uniform, so
// nothing is bound but the pipeline and the global set.
type PointLightSystem struct {
	pipeline Pipeline
}

func NewPointLightSystem(pipeline Pipeline) *PointLightSystem {
	return &PointLightSystem{pipeline: pipeline}
}

func (s *PointLightSystem) RenderInto(info *FrameInfo) {
	r := info.Recorder
	r.BindPipeline(s.pipeline.Handle())
	r.BindDescriptorSets(s.pipeline.Layout(), 0, []vulkan.DescriptorSet{info.GlobalDescriptorSet})
	r.Draw(6, 1, 0, 0)
}

func (s *PointLightSystem) Destroy() {
	s.pipeline.Destroy()
}
