package rendertest

import (
	"github.com/vulkan-go/vulkan"

	"prism/src/render"
)

// Command is one recorded call. Only the fields relevant to Op are set.
type Command struct {
	Op string

	RenderPass  vulkan.RenderPass
	Framebuffer vulkan.Framebuffer
	RenderArea  vulkan.Rect2D
	ClearValues []vulkan.ClearValue
	Viewport    vulkan.Viewport
	Scissor     vulkan.Rect2D

	Pipeline       vulkan.Pipeline
	PipelineLayout vulkan.PipelineLayout
	FirstSet       uint32
	Sets           []vulkan.DescriptorSet
	Stages         vulkan.ShaderStageFlags
	Offset         uint32
	Data           []byte

	Buffers     []vulkan.Buffer
	IndexBuffer vulkan.Buffer
	IndexType   vulkan.IndexType

	VertexCount   uint32
	IndexCount    uint32
	InstanceCount uint32
	First         uint32
	VertexOffset  int32
}

// Recorder implements render.CommandRecorder by appending to Commands.
type Recorder struct {
	Commands []Command
}

var _ render.CommandRecorder = (*Recorder)(nil)

func NewRecorder() *Recorder {
	return &Recorder{}
}

// Reset drops every recorded command.
func (r *Recorder) Reset() {
	r.Commands = nil
}

// Ops lists the recorded operation names in order.
func (r *Recorder) Ops() []string {
	ops := make([]string, len(r.Commands))
	for i, c := range r.Commands {
		ops[i] = c.Op
	}
	return ops
}

// Find returns every command with the given op.
func (r *Recorder) Find(op string) []Command {
	var out []Command
	for _, c := range r.Commands {
		if c.Op == op {
			out = append(out, c)
		}
	}
	return out
}

func (r *Recorder) BeginRenderPass(info *vulkan.RenderPassBeginInfo) {
	r.Commands = append(r.Commands, Command{
		Op:          "BeginRenderPass",
		RenderPass:  info.RenderPass,
		Framebuffer: info.Framebuffer,
		RenderArea:  info.RenderArea,
		ClearValues: append([]vulkan.ClearValue(nil), info.PClearValues...),
	})
}

func (r *Recorder) EndRenderPass() {
	r.Commands = append(r.Commands, Command{Op: "EndRenderPass"})
}

func (r *Recorder) SetViewport(viewport vulkan.Viewport) {
	r.Commands = append(r.Commands, Command{Op: "SetViewport", Viewport: viewport})
}

func (r *Recorder) SetScissor(scissor vulkan.Rect2D) {
	r.Commands = append(r.Commands, Command{Op: "SetScissor", Scissor: scissor})
}

func (r *Recorder) BindPipeline(pipeline vulkan.Pipeline) {
	r.Commands = append(r.Commands, Command{Op: "BindPipeline", Pipeline: pipeline})
}

func (r *Recorder) BindDescriptorSets(layout vulkan.PipelineLayout, firstSet uint32, sets []vulkan.DescriptorSet) {
	r.Commands = append(r.Commands, Command{
		Op:             "BindDescriptorSets",
		PipelineLayout: layout,
		FirstSet:       firstSet,
		Sets:           append([]vulkan.DescriptorSet(nil), sets...),
	})
}

func (r *Recorder) PushConstants(layout vulkan.PipelineLayout, stages vulkan.ShaderStageFlags, offset uint32, data []byte) {
	r.Commands = append(r.Commands, Command{
		Op:             "PushConstants",
		PipelineLayout: layout,
		Stages:         stages,
		Offset:         offset,
		Data:           append([]byte(nil), data...),
	})
}

func (r *Recorder) BindVertexBuffers(firstBinding uint32, buffers []vulkan.Buffer, _ []vulkan.DeviceSize) {
	r.Commands = append(r.Commands, Command{
		Op:      "BindVertexBuffers",
		First:   firstBinding,
		Buffers: append([]vulkan.Buffer(nil), buffers...),
	})
}

func (r *Recorder) BindIndexBuffer(buffer vulkan.Buffer, _ vulkan.DeviceSize, indexType vulkan.IndexType) {
	r.Commands = append(r.Commands, Command{Op: "BindIndexBuffer", IndexBuffer: buffer, IndexType: indexType})
}

func (r *Recorder) Draw(vertexCount, instanceCount, firstVertex, _ uint32) {
	r.Commands = append(r.Commands, Command{
		Op:            "Draw",
		VertexCount:   vertexCount,
		InstanceCount: instanceCount,
		First:         firstVertex,
	})
}

func (r *Recorder) DrawIndexed(indexCount, instanceCount, firstIndex uint32, vertexOffset int32, _ uint32) {
	r.Commands = append(r.Commands, Command{
		Op:            "DrawIndexed",
		IndexCount:    indexCount,
		InstanceCount: instanceCount,
		First:         firstIndex,
		VertexOffset:  vertexOffset,
	})
}
