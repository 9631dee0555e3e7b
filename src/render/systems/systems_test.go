package systems_test

import (
	"encoding/binary"
	"math"
	"testing"

	"github.com/go-gl/mathgl/mgl32"
	"github.com/stretchr/testify/require"
	"github.com/vulkan-go/vulkan"

	"prism/src/render/rendertest"
	"prism/src/render/systems"
	"prism/src/scene"
)

type fakePipeline struct {
	handle    vulkan.Pipeline
	layout    vulkan.PipelineLayout
	destroyed int
}

func newFakePipeline() *fakePipeline {
	return &fakePipeline{
		handle: vulkan.Pipeline(rendertest.Handle()),
		layout: vulkan.PipelineLayout(rendertest.Handle()),
	}
}

func (p *fakePipeline) Handle() vulkan.Pipeline       { return p.handle }
func (p *fakePipeline) Layout() vulkan.PipelineLayout { return p.layout }
func (p *fakePipeline) Destroy()                      { p.destroyed++ }

type order struct {
	name string
	log  *[]string
}

func (o order) RenderInto(*systems.FrameInfo) { *o.log = append(*o.log, "render "+o.name) }
func (o order) Destroy()                      { *o.log = append(*o.log, "destroy "+o.name) }

func TestChainOrder(t *testing.T) {
	var log []string
	chain := systems.Chain{order{"mesh", &log}, order{"light", &log}}
	chain.RenderAll(&systems.FrameInfo{})
	chain.Destroy()
	require.Equal(t, []string{"render mesh", "render light", "destroy light", "destroy mesh"}, log)
}

type fixture struct {
	alloc   *rendertest.Allocator
	rec     *rendertest.Recorder
	reg     scene.Registry
	objects scene.Map
	info    *systems.FrameInfo
}

func newFixture(t *testing.T) *fixture {
	camera := scene.NewCamera()
	camera.SetViewYXZ(mgl32.Vec3{}, mgl32.Vec3{})
	camera.SetPerspectiveProjection(mgl32.DegToRad(50), 1, 0.1, 30)

	f := &fixture{alloc: &rendertest.Allocator{}, rec: rendertest.NewRecorder(), objects: scene.Map{}}
	f.info = &systems.FrameInfo{
		FrameIndex: 1,
		FrameTime:  0.016,
		Recorder:   f.rec,
		Camera:     camera,
		Objects:    f.objects,
	}
	return f
}

func (f *fixture) addCube(t *testing.T, at mgl32.Vec3) *scene.Object {
	mesh, err := scene.NewMesh(f.alloc, scene.NewCubeBuilder(mgl32.Vec3{}))
	require.NoError(t, err)
	obj := f.reg.Add(f.objects)
	obj.Model = mesh
	obj.Transform.Translation = at
	return obj
}

func pushedTranslation(data []byte) mgl32.Vec3 {
	f := func(i int) float32 { return math.Float32frombits(binary.LittleEndian.Uint32(data[i*4:])) }
	return mgl32.Vec3{f(12), f(13), f(14)}
}

func TestMeshSystemCullsOutsideFrustum(t *testing.T) {
	f := newFixture(t)
	f.reg.Add(f.objects) // viewer, no model
	f.addCube(t, mgl32.Vec3{0, 0, 5})
	f.addCube(t, mgl32.Vec3{0, 0, -5})
	f.addCube(t, mgl32.Vec3{0, 0, 50})
	f.addCube(t, mgl32.Vec3{40, 0, 5})

	pipeline := newFakePipeline()
	s := systems.NewMeshSystem(pipeline)
	s.RenderInto(f.info)

	require.Equal(t, systems.MeshStats{Drawn: 1, Culled: 3}, s.Stats())
	require.Equal(t, []string{
		"BindPipeline", "BindDescriptorSets",
		"PushConstants", "BindVertexBuffers", "BindIndexBuffer", "DrawIndexed",
	}, f.rec.Ops())

	push := f.rec.Find("PushConstants")[0]
	require.Len(t, push.Data, 128)
	require.Equal(t, pipeline.layout, push.PipelineLayout)
	require.Equal(t, vulkan.ShaderStageFlags(vulkan.ShaderStageVertexBit|vulkan.ShaderStageFragmentBit), push.Stages)
	require.Equal(t, mgl32.Vec3{0, 0, 5}, pushedTranslation(push.Data))

	s.Destroy()
	require.Equal(t, 1, pipeline.destroyed)
}

func TestMeshSystemKeepsPartiallyVisible(t *testing.T) {
	f := newFixture(t)
	// center just outside the right plane, corner still inside
	edge := float32(5 * math.Tan(float64(mgl32.DegToRad(25))))
	f.addCube(t, mgl32.Vec3{edge + 0.3, 0, 5})

	s := systems.NewMeshSystem(newFakePipeline())
	s.RenderInto(f.info)
	require.Equal(t, systems.MeshStats{Drawn: 1}, s.Stats())
}

func TestMeshSystemCullsFlatModelByBox(t *testing.T) {
	f := newFixture(t)
	// a wide thin slab above the view: its sphere reaches into the
	// frustum but every box corner is past the top or bottom plane
	slab := f.addCube(t, mgl32.Vec3{0, 3, 5})
	slab.Transform.Scale = mgl32.Vec3{20, 0.02, 0.02}
	f.addCube(t, mgl32.Vec3{0, 0, 5})

	s := systems.NewMeshSystem(newFakePipeline())
	s.RenderInto(f.info)

	require.Equal(t, systems.MeshStats{Drawn: 1, Culled: 1}, s.Stats())
	require.Equal(t, mgl32.Vec3{0, 0, 5}, pushedTranslation(f.rec.Find("PushConstants")[0].Data))
}

func TestMeshSystemDrawsInIDOrder(t *testing.T) {
	f := newFixture(t)
	for i := 0; i < 5; i++ {
		f.addCube(t, mgl32.Vec3{0, 0, float32(3 + i)})
	}
	s := systems.NewMeshSystem(newFakePipeline())
	s.RenderInto(f.info)

	pushes := f.rec.Find("PushConstants")
	require.Len(t, pushes, 5)
	for i, p := range pushes {
		require.Equal(t, float32(3+i), pushedTranslation(p.Data).Z())
	}
}

func TestMeshSystemBindsGlobalSet(t *testing.T) {
	f := newFixture(t)
	f.info.GlobalDescriptorSet = vulkan.DescriptorSet(rendertest.Handle())

	pipeline := newFakePipeline()
	systems.NewMeshSystem(pipeline).RenderInto(f.info)

	bind := f.rec.Find("BindDescriptorSets")
	require.Len(t, bind, 1)
	require.Equal(t, uint32(0), bind[0].FirstSet)
	require.Equal(t, []vulkan.DescriptorSet{f.info.GlobalDescriptorSet}, bind[0].Sets)
	require.Equal(t, pipeline.handle, f.rec.Find("BindPipeline")[0].Pipeline)
}

func TestPointLightSystem(t *testing.T) {
	f := newFixture(t)
	pipeline := newFakePipeline()
	s := systems.NewPointLightSystem(pipeline)
	s.RenderInto(f.info)

	require.Equal(t, []string{"BindPipeline", "BindDescriptorSets", "Draw"}, f.rec.Ops())
	draw := f.rec.Find("Draw")[0]
	require.Equal(t, uint32(6), draw.VertexCount)
	require.Equal(t, uint32(1), draw.InstanceCount)

	s.Destroy()
	require.Equal(t, 1, pipeline.destroyed)
}

func TestMeshPushConstantRange(t *testing.T) {
	ranges := systems.MeshPushConstantRanges()
	require.Len(t, ranges, 1)
	require.Equal(t, uint32(128), ranges[0].Size)
}
