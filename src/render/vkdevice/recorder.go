package vkdevice

import (
	"unsafe"

	"github.com/vulkan-go/vulkan"
)

// recorder records straight into a Vulkan command buffer.
type recorder struct {
	cb vulkan.CommandBuffer
}

func (r *recorder) BeginRenderPass(info *vulkan.RenderPassBeginInfo) {
	vulkan.CmdBeginRenderPass(r.cb, info, vulkan.SubpassContentsInline)
}

func (r *recorder) EndRenderPass() {
	vulkan.CmdEndRenderPass(r.cb)
}

func (r *recorder) SetViewport(viewport vulkan.Viewport) {
	vulkan.CmdSetViewport(r.cb, 0, 1, []vulkan.Viewport{viewport})
}

func (r *recorder) SetScissor(scissor vulkan.Rect2D) {
	vulkan.CmdSetScissor(r.cb, 0, 1, []vulkan.Rect2D{scissor})
}

func (r *recorder) BindPipeline(pipeline vulkan.Pipeline) {
	vulkan.CmdBindPipeline(r.cb, vulkan.PipelineBindPointGraphics, pipeline)
}

func (r *recorder) BindDescriptorSets(layout vulkan.PipelineLayout, firstSet uint32, sets []vulkan.DescriptorSet) {
	vulkan.CmdBindDescriptorSets(r.cb, vulkan.PipelineBindPointGraphics, layout, firstSet, uint32(len(sets)), sets, 0, nil)
}

func (r *recorder) PushConstants(layout vulkan.PipelineLayout, stages vulkan.ShaderStageFlags, offset uint32, data []byte) {
	if len(data) == 0 {
		return
	}
	vulkan.CmdPushConstants(r.cb, layout, stages, offset, uint32(len(data)), unsafe.Pointer(&data[0]))
}

func (r *recorder) BindVertexBuffers(firstBinding uint32, buffers []vulkan.Buffer, offsets []vulkan.DeviceSize) {
	vulkan.CmdBindVertexBuffers(r.cb, firstBinding, uint32(len(buffers)), buffers, offsets)
}

func (r *recorder) BindIndexBuffer(buffer vulkan.Buffer, offset vulkan.DeviceSize, indexType vulkan.IndexType) {
	vulkan.CmdBindIndexBuffer(r.cb, buffer, offset, indexType)
}

func (r *recorder) Draw(vertexCount, instanceCount, firstVertex, firstInstance uint32) {
	vulkan.CmdDraw(r.cb, vertexCount, instanceCount, firstVertex, firstInstance)
}

func (r *recorder) DrawIndexed(indexCount, instanceCount, firstIndex uint32, vertexOffset int32, firstInstance uint32) {
	vulkan.CmdDrawIndexed(r.cb, indexCount, instanceCount, firstIndex, vertexOffset, firstInstance)
}
