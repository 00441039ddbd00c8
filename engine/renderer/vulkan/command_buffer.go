package vulkan

import (
	"unsafe"

	"github.com/cockroachdb/errors"
	vk "github.com/goki/vulkan"

	"github.com/spaghettifunk/prism/engine/core"
	"github.com/spaghettifunk/prism/engine/renderer/gpu"
)

// CommandBuffer is a primary command buffer from the graphics pool.
// Recording calls referencing unknown handles are dropped and logged.
type CommandBuffer struct {
	dev    *Device
	handle vk.CommandBuffer
}

func (d *Device) AllocateCommandBuffer() (gpu.CommandBuffer, error) {
	info := vk.CommandBufferAllocateInfo{
		SType:              vk.StructureTypeCommandBufferAllocateInfo,
		CommandPool:        d.pool,
		Level:              vk.CommandBufferLevelPrimary,
		CommandBufferCount: 1,
	}
	handles := make([]vk.CommandBuffer, 1)
	if err := resultError(vk.AllocateCommandBuffers(d.logical, &info, handles), "vkAllocateCommandBuffers"); err != nil {
		return nil, err
	}
	cb := &CommandBuffer{dev: d, handle: handles[0]}
	d.commands[cb] = struct{}{}
	return cb, nil
}

func (d *Device) FreeCommandBuffer(cb gpu.CommandBuffer) {
	c, ok := cb.(*CommandBuffer)
	if !ok {
		return
	}
	if _, live := d.commands[c]; !live {
		return
	}
	vk.FreeCommandBuffers(d.logical, d.pool, 1, []vk.CommandBuffer{c.handle})
	c.handle = nil
	delete(d.commands, c)
}

func (d *Device) commandBuffer(cb gpu.CommandBuffer) (*CommandBuffer, error) {
	c, ok := cb.(*CommandBuffer)
	if !ok || c.dev != d {
		return nil, errors.AssertionFailedf("command buffer %T does not belong to this device", cb)
	}
	return c, nil
}

func (d *Device) Submit(info gpu.SubmitInfo) error {
	c, err := d.commandBuffer(info.Commands)
	if err != nil {
		return err
	}
	submit := vk.SubmitInfo{
		SType:              vk.StructureTypeSubmitInfo,
		CommandBufferCount: 1,
		PCommandBuffers:    []vk.CommandBuffer{c.handle},
	}
	if info.Wait != 0 {
		submit.WaitSemaphoreCount = 1
		submit.PWaitSemaphores = []vk.Semaphore{d.semaphores[info.Wait]}
		submit.PWaitDstStageMask = []vk.PipelineStageFlags{toVkStages(info.WaitStage)}
	}
	if info.Signal != 0 {
		submit.SignalSemaphoreCount = 1
		submit.PSignalSemaphores = []vk.Semaphore{d.semaphores[info.Signal]}
	}
	var fence vk.Fence
	if info.Fence != 0 {
		fence = d.fences[info.Fence]
	}
	return resultError(vk.QueueSubmit(d.graphicsQueue, 1, []vk.SubmitInfo{submit}, fence), "vkQueueSubmit")
}

func (d *Device) SubmitAndWait(cb gpu.CommandBuffer) error {
	c, err := d.commandBuffer(cb)
	if err != nil {
		return err
	}
	submit := vk.SubmitInfo{
		SType:              vk.StructureTypeSubmitInfo,
		CommandBufferCount: 1,
		PCommandBuffers:    []vk.CommandBuffer{c.handle},
	}
	if err := resultError(vk.QueueSubmit(d.graphicsQueue, 1, []vk.SubmitInfo{submit}, vk.NullFence), "vkQueueSubmit"); err != nil {
		return err
	}
	return resultError(vk.QueueWaitIdle(d.graphicsQueue), "vkQueueWaitIdle")
}

func (c *CommandBuffer) Begin(oneShot bool) error {
	info := vk.CommandBufferBeginInfo{
		SType: vk.StructureTypeCommandBufferBeginInfo,
	}
	if oneShot {
		info.Flags = vk.CommandBufferUsageFlags(vk.CommandBufferUsageOneTimeSubmitBit)
	}
	return resultError(vk.BeginCommandBuffer(c.handle, &info), "vkBeginCommandBuffer")
}

func (c *CommandBuffer) End() error {
	return resultError(vk.EndCommandBuffer(c.handle), "vkEndCommandBuffer")
}

func (c *CommandBuffer) Reset() error {
	return resultError(vk.ResetCommandBuffer(c.handle, 0), "vkResetCommandBuffer")
}

func (c *CommandBuffer) PipelineBarrier(barriers ...gpu.ImageBarrier) {
	for _, b := range barriers {
		img, ok := c.dev.images[b.Image]
		if !ok {
			core.LogError("barrier on unknown image %d dropped", b.Image)
			continue
		}
		barrier := vk.ImageMemoryBarrier{
			SType:               vk.StructureTypeImageMemoryBarrier,
			SrcAccessMask:       toVkAccess(b.SrcAccess),
			DstAccessMask:       toVkAccess(b.DstAccess),
			OldLayout:           toVkLayout(b.OldLayout),
			NewLayout:           toVkLayout(b.NewLayout),
			SrcQueueFamilyIndex: vk.QueueFamilyIgnored,
			DstQueueFamilyIndex: vk.QueueFamilyIgnored,
			Image:               img.handle,
			SubresourceRange: vk.ImageSubresourceRange{
				AspectMask: toVkAspect(b.Aspect, img.format),
				LevelCount: 1,
				LayerCount: 1,
			},
		}
		vk.CmdPipelineBarrier(c.handle, toVkStages(b.SrcStage), toVkStages(b.DstStage), 0, 0, nil, 0, nil, 1, []vk.ImageMemoryBarrier{barrier})
	}
}

func (c *CommandBuffer) CopyBuffer(src, dst gpu.Buffer, size uint64) {
	s, sok := c.dev.buffers[src]
	t, tok := c.dev.buffers[dst]
	if !sok || !tok {
		core.LogError("copy between unknown buffers %d -> %d dropped", src, dst)
		return
	}
	vk.CmdCopyBuffer(c.handle, s.handle, t.handle, 1, []vk.BufferCopy{{Size: vk.DeviceSize(size)}})
}

func (c *CommandBuffer) CopyBufferToImage(src gpu.Buffer, dst gpu.Image, extent gpu.Extent) {
	s, sok := c.dev.buffers[src]
	img, iok := c.dev.images[dst]
	if !sok || !iok {
		core.LogError("copy from buffer %d to image %d dropped", src, dst)
		return
	}
	region := vk.BufferImageCopy{
		ImageSubresource: vk.ImageSubresourceLayers{
			AspectMask: vk.ImageAspectFlags(vk.ImageAspectColorBit),
			LayerCount: 1,
		},
		ImageExtent: vk.Extent3D{
			Width:  extent.Width,
			Height: extent.Height,
			Depth:  1,
		},
	}
	vk.CmdCopyBufferToImage(c.handle, s.handle, img.handle, vk.ImageLayoutTransferDstOptimal, 1, []vk.BufferImageCopy{region})
}

// BeginRenderPass maps clears onto the attachments in order: colors first,
// then depth.
func (c *CommandBuffer) BeginRenderPass(rp gpu.RenderPass, fb gpu.Framebuffer, area gpu.Extent, clears []gpu.ClearValue) {
	pass, pok := c.dev.passes[rp]
	framebuffer, fok := c.dev.framebuffers[fb]
	if !pok || !fok {
		core.LogError("render pass %d with framebuffer %d dropped", rp, fb)
		return
	}
	clearValues := make([]vk.ClearValue, len(clears))
	for i, cv := range clears {
		if i < pass.colorCount {
			clearValues[i].SetColor(cv.Color[:])
		} else {
			clearValues[i].SetDepthStencil(cv.Depth, cv.Stencil)
		}
	}
	info := vk.RenderPassBeginInfo{
		SType:       vk.StructureTypeRenderPassBeginInfo,
		RenderPass:  pass.handle,
		Framebuffer: framebuffer,
		RenderArea: vk.Rect2D{
			Extent: vk.Extent2D{Width: area.Width, Height: area.Height},
		},
		ClearValueCount: uint32(len(clearValues)),
		PClearValues:    clearValues,
	}
	vk.CmdBeginRenderPass(c.handle, &info, vk.SubpassContentsInline)
}

func (c *CommandBuffer) EndRenderPass() {
	vk.CmdEndRenderPass(c.handle)
}

// SetViewport sets the viewport and scissor to cover area.
func (c *CommandBuffer) SetViewport(area gpu.Extent) {
	viewport := vk.Viewport{
		Width:    float32(area.Width),
		Height:   float32(area.Height),
		MinDepth: 0,
		MaxDepth: 1,
	}
	scissor := vk.Rect2D{
		Extent: vk.Extent2D{Width: area.Width, Height: area.Height},
	}
	vk.CmdSetViewport(c.handle, 0, 1, []vk.Viewport{viewport})
	vk.CmdSetScissor(c.handle, 0, 1, []vk.Rect2D{scissor})
}

func (c *CommandBuffer) BindPipeline(p gpu.Pipeline) {
	pl, ok := c.dev.pipelines[p]
	if !ok {
		core.LogError("bind of unknown pipeline %d dropped", p)
		return
	}
	vk.CmdBindPipeline(c.handle, vk.PipelineBindPointGraphics, pl.handle)
}

// BindTextureTable marks the table as in use until the next WaitIdle.
func (c *CommandBuffer) BindTextureTable(p gpu.Pipeline, set uint32, t gpu.TextureTable) {
	pl, pok := c.dev.pipelines[p]
	table, tok := c.dev.tables[t]
	if !pok || !tok {
		core.LogError("bind of texture table %d to pipeline %d dropped", t, p)
		return
	}
	table.bound = true
	vk.CmdBindDescriptorSets(c.handle, vk.PipelineBindPointGraphics, pl.layout, set, 1, []vk.DescriptorSet{table.set}, 0, nil)
}

func (c *CommandBuffer) PushConstants(p gpu.Pipeline, data []byte) {
	pl, ok := c.dev.pipelines[p]
	if !ok || len(data) == 0 {
		return
	}
	stages := vk.ShaderStageFlags(vk.ShaderStageVertexBit | vk.ShaderStageFragmentBit)
	vk.CmdPushConstants(c.handle, pl.layout, stages, 0, uint32(len(data)), unsafe.Pointer(&data[0]))
}

func (c *CommandBuffer) BindVertexBuffer(b gpu.Buffer) {
	buf, ok := c.dev.buffers[b]
	if !ok {
		core.LogError("bind of unknown vertex buffer %d dropped", b)
		return
	}
	vk.CmdBindVertexBuffers(c.handle, 0, 1, []vk.Buffer{buf.handle}, []vk.DeviceSize{0})
}

// BindIndexBuffer binds b as 32-bit indices.
func (c *CommandBuffer) BindIndexBuffer(b gpu.Buffer) {
	buf, ok := c.dev.buffers[b]
	if !ok {
		core.LogError("bind of unknown index buffer %d dropped", b)
		return
	}
	vk.CmdBindIndexBuffer(c.handle, buf.handle, 0, vk.IndexTypeUint32)
}

func (c *CommandBuffer) Draw(vertexCount uint32) {
	vk.CmdDraw(c.handle, vertexCount, 1, 0, 0)
}

func (c *CommandBuffer) DrawIndexed(indexCount uint32) {
	vk.CmdDrawIndexed(c.handle, indexCount, 1, 0, 0, 0)
}
