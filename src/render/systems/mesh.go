package systems

import (
	"slices"
	"unsafe"

	"github.com/go-gl/mathgl/mgl32"
	"github.com/vulkan-go/vulkan"

	"prism/src/geometry"
	"prism/src/scene"
)

// MeshPushConstants is pushed once per drawn object. The normal matrix is
// padded to a mat4 to match std430.
type MeshPushConstants struct {
	Model  mgl32.Mat4
	Normal mgl32.Mat4
}

const meshPushStages = vulkan.ShaderStageFlags(vulkan.ShaderStageVertexBit | vulkan.ShaderStageFragmentBit)

func MeshPushConstantRanges() []vulkan.PushConstantRange {
	return []vulkan.PushConstantRange{{
		StageFlags: meshPushStages,
		Offset:     0,
		Size:       uint32(unsafe.Sizeof(MeshPushConstants{})),
	}}
}

// MeshStats counts what the last RenderInto did.
type MeshStats struct {
	Drawn  int
	Culled int
}

// MeshSystem draws every object that has a model and whose bounds intersect
// the camera frustum.
type MeshSystem struct {
	pipeline Pipeline
	stats    MeshStats
	ids      []scene.ID
}

func NewMeshSystem(pipeline Pipeline) *MeshSystem {
	return &MeshSystem{pipeline: pipeline}
}

func (s *MeshSystem) RenderInto(info *FrameInfo) {
	r := info.Recorder
	r.BindPipeline(s.pipeline.Handle())
	r.BindDescriptorSets(s.pipeline.Layout(), 0, []vulkan.DescriptorSet{info.GlobalDescriptorSet})

	frustum := geometry.FrustumFromMatrix(info.Camera.ViewProjection())

	// map order is random; sort for a stable draw order
	s.ids = s.ids[:0]
	for id, obj := range info.Objects {
		if obj.Model != nil {
			s.ids = append(s.ids, id)
		}
	}
	slices.Sort(s.ids)

	s.stats = MeshStats{}
	for _, id := range s.ids {
		obj := info.Objects[id]
		model := obj.Transform.Mat4()
		if !frustum.ContainsSphere(obj.Model.Bounds().Transform(model)) {
			s.stats.Culled++
			continue
		}
		// flat models have loose spheres; recheck with the box corners
		corners := obj.Model.Box().Corners(model)
		if !frustum.ContainsVertices(corners[:]) {
			s.stats.Culled++
			continue
		}
		push := MeshPushConstants{Model: model, Normal: obj.Transform.NormalMatrix().Mat4()}
		r.PushConstants(s.pipeline.Layout(), meshPushStages, 0,
			unsafe.Slice((*byte)(unsafe.Pointer(&push)), unsafe.Sizeof(push)))
		obj.Model.Bind(r)
		obj.Model.Draw(r)
		s.stats.Drawn++
	}
}

func (s *MeshSystem) Stats() MeshStats {
	return s.stats
}

func (s *MeshSystem) Destroy() {
	s.pipeline.Destroy()
}
