package rendertest

import (
	"github.com/vulkan-go/vulkan"

	"prism/src/render"
)

// Buffer is a host-side stand-in for a device buffer.
type Buffer struct {
	Data      []byte
	Destroyed bool
	handle    vulkan.Buffer
}

var _ render.Buffer = (*Buffer)(nil)

func (b *Buffer) Handle() vulkan.Buffer   { return b.handle }
func (b *Buffer) Size() vulkan.DeviceSize { return vulkan.DeviceSize(len(b.Data)) }
func (b *Buffer) Destroy()                { b.Destroyed = true }

// Allocator implements render.BufferAllocator and remembers every buffer it
// handed out.
type Allocator struct {
	Vertex []*Buffer
	Index  []*Buffer
}

var _ render.BufferAllocator = (*Allocator)(nil)

func newBuffer(data []byte) *Buffer {
	return &Buffer{
		Data:   append([]byte(nil), data...),
		handle: vulkan.Buffer(Handle()),
	}
}

func (a *Allocator) NewVertexBuffer(data []byte) (render.Buffer, error) {
	b := newBuffer(data)
	a.Vertex = append(a.Vertex, b)
	return b, nil
}

func (a *Allocator) NewIndexBuffer(data []byte) (render.Buffer, error) {
	b := newBuffer(data)
	a.Index = append(a.Index, b)
	return b, nil
}

// Live counts buffers not yet destroyed.
func (a *Allocator) Live() int {
	n := 0
	for _, b := range append(append([]*Buffer(nil), a.Vertex...), a.Index...) {
		if !b.Destroyed {
			n++
		}
	}
	return n
}
