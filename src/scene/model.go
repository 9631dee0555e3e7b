package scene

import (
	"unsafe"

	"github.com/go-gl/mathgl/mgl32"
	"github.com/pkg/errors"
	"github.com/vulkan-go/vulkan"

	"prism/src/geometry"
	"prism/src/render"
)

type Vertex struct {
	Position mgl32.Vec3
	Color    mgl32.Vec3
	Normal   mgl32.Vec3
	UV       mgl32.Vec2
}

func VertexBindingDescriptions() []vulkan.VertexInputBindingDescription {
	return []vulkan.VertexInputBindingDescription{{
		Binding:   0,
		Stride:    uint32(unsafe.Sizeof(Vertex{})),
		InputRate: vulkan.VertexInputRateVertex,
	}}
}

func VertexAttributeDescriptions() []vulkan.VertexInputAttributeDescription {
	var v Vertex
	return []vulkan.VertexInputAttributeDescription{
		{Location: 0, Binding: 0, Format: vulkan.FormatR32g32b32Sfloat, Offset: uint32(unsafe.Offsetof(v.Position))},
		{Location: 1, Binding: 0, Format: vulkan.FormatR32g32b32Sfloat, Offset: uint32(unsafe.Offsetof(v.Color))},
		{Location: 2, Binding: 0, Format: vulkan.FormatR32g32b32Sfloat, Offset: uint32(unsafe.Offsetof(v.Normal))},
		{Location: 3, Binding: 0, Format: vulkan.FormatR32g32Sfloat, Offset: uint32(unsafe.Offsetof(v.UV))},
	}
}

// Model is drawable geometry. Bind must precede Draw in the same pass.
type Model interface {
	Bind(r render.CommandRecorder)
	Draw(r render.CommandRecorder)
	// Bounds is a sphere around the model in model space.
	Bounds() geometry.Sphere
	// Box is the model space box, tighter than Bounds for flat models.
	Box() geometry.Box
}

// MeshBuilder is geometry ready for upload. Indices are optional.
type MeshBuilder struct {
	Vertices []Vertex
	Indices  []uint32
}

// Translate offsets every vertex.
func (b *MeshBuilder) Translate(offset mgl32.Vec3) *MeshBuilder {
	for i := range b.Vertices {
		b.Vertices[i].Position = b.Vertices[i].Position.Add(offset)
	}
	return b
}

// Mesh is a Model backed by device buffers.
type Mesh struct {
	vertices    render.Buffer
	indices     render.Buffer
	vertexCount uint32
	indexCount  uint32
	bounds      geometry.Sphere
	box         geometry.Box
}

var _ Model = (*Mesh)(nil)

// NewMesh uploads b through alloc. At least three vertices are required and
// every index must be in range.
func NewMesh(alloc render.BufferAllocator, b *MeshBuilder) (*Mesh, error) {
	if len(b.Vertices) < 3 {
		return nil, errors.Errorf("mesh needs at least 3 vertices, got %d", len(b.Vertices))
	}
	for i, idx := range b.Indices {
		if int(idx) >= len(b.Vertices) {
			return nil, errors.Errorf("index %d at %d out of range for %d vertices", idx, i, len(b.Vertices))
		}
	}

	positions := make([]mgl32.Vec3, len(b.Vertices))
	for i, v := range b.Vertices {
		positions[i] = v.Position
	}
	m := &Mesh{
		vertexCount: uint32(len(b.Vertices)),
		indexCount:  uint32(len(b.Indices)),
		bounds:      geometry.SphereFromPoints(positions),
		box:         geometry.BoxFromPoints(positions),
	}

	var err error
	if m.vertices, err = alloc.NewVertexBuffer(bytesOf(b.Vertices)); err != nil {
		return nil, errors.Wrap(err, "vertex buffer")
	}
	if m.indexCount > 0 {
		if m.indices, err = alloc.NewIndexBuffer(bytesOf(b.Indices)); err != nil {
			m.vertices.Destroy()
			return nil, errors.Wrap(err, "index buffer")
		}
	}
	return m, nil
}

func (m *Mesh) Bind(r render.CommandRecorder) {
	r.BindVertexBuffers(0, []vulkan.Buffer{m.vertices.Handle()}, []vulkan.DeviceSize{0})
	if m.indices != nil {
		r.BindIndexBuffer(m.indices.Handle(), 0, vulkan.IndexTypeUint32)
	}
}

func (m *Mesh) Draw(r render.CommandRecorder) {
	if m.indices != nil {
		r.DrawIndexed(m.indexCount, 1, 0, 0, 0)
		return
	}
	r.Draw(m.vertexCount, 1, 0, 0)
}

func (m *Mesh) Bounds() geometry.Sphere { return m.bounds }
func (m *Mesh) Box() geometry.Box       { return m.box }
func (m *Mesh) VertexCount() uint32     { return m.vertexCount }
func (m *Mesh) IndexCount() uint32      { return m.indexCount }

func (m *Mesh) Destroy() {
	if m.indices != nil {
		m.indices.Destroy()
		m.indices = nil
	}
	if m.vertices != nil {
		m.vertices.Destroy()
		m.vertices = nil
	}
}

// bytesOf views a slice of plain values as raw bytes without copying.
func bytesOf[T any](s []T) []byte {
	if len(s) == 0 {
		return nil
	}
	var zero T
	return unsafe.Slice((*byte)(unsafe.Pointer(&s[0])), len(s)*int(unsafe.Sizeof(zero)))
}
