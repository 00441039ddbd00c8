package gputest

import (
	"fmt"

	"github.com/spaghettifunk/prism/engine/renderer/gpu"
)

type cbState uint8

const (
	stateInitial cbState = iota
	stateRecording
	stateEnded
)

// CommandBuffer records commands as text and validates them against the
// device's image layouts as they are recorded.
type CommandBuffer struct {
	dev   *Device
	id    uint64
	state cbState

	commands []string
	inPass   bool
	pass     gpu.RenderPass
	pipeline gpu.Pipeline
	tables   map[uint32]gpu.TextureTable
	vertex   gpu.Buffer
	index    gpu.Buffer

	uploads int
	copies  int
	// Draws counts draw calls since the last Begin.
	Draws int
	// Barriers lists the image barriers recorded since the last Begin.
	Barriers []gpu.ImageBarrier
}

// Commands returns the commands recorded since the last Begin.
func (c *CommandBuffer) Commands() []string {
	return c.commands
}

func (c *CommandBuffer) ID() uint64 {
	return c.id
}

func (c *CommandBuffer) record(format string, args ...interface{}) {
	c.commands = append(c.commands, fmt.Sprintf(format, args...))
}

func (c *CommandBuffer) Begin(oneShot bool) error {
	if c.dev.inFlight(c) {
		c.dev.violation("begin of command buffer %d while in flight", c.id)
	}
	if c.state == stateRecording {
		c.dev.violation("begin of command buffer %d while recording", c.id)
	}
	c.state = stateRecording
	c.commands = nil
	c.inPass = false
	c.pipeline = 0
	c.tables = make(map[uint32]gpu.TextureTable)
	c.vertex, c.index = 0, 0
	c.uploads, c.copies, c.Draws = 0, 0, 0
	c.Barriers = nil
	return nil
}

func (c *CommandBuffer) End() error {
	if c.state != stateRecording {
		c.dev.violation("end of command buffer %d that is not recording", c.id)
	}
	if c.inPass {
		c.dev.violation("end of command buffer %d inside a render pass", c.id)
	}
	c.state = stateEnded
	return nil
}

func (c *CommandBuffer) Reset() error {
	if c.dev.inFlight(c) {
		c.dev.violation("reset of in-flight command buffer %d", c.id)
	}
	c.dev.logf("reset cb=%d", c.id)
	c.state = stateInitial
	return nil
}

func (c *CommandBuffer) PipelineBarrier(barriers ...gpu.ImageBarrier) {
	if c.inPass {
		c.dev.violation("barrier inside render pass")
	}
	for _, b := range barriers {
		info, ok := c.dev.images[b.Image]
		if !ok {
			c.dev.violation("barrier on unknown image %d", b.Image)
			continue
		}
		if b.OldLayout != gpu.LayoutUndefined && b.OldLayout != info.layout {
			c.dev.violation("barrier on image %d expects %s, image is in %s", b.Image, b.OldLayout, info.layout)
		}
		depth := info.desc.Format.IsDepth()
		if depth != (b.Aspect&gpu.AspectDepth != 0) {
			c.dev.violation("barrier on image %d with wrong aspect", b.Image)
		}
		if b.SrcStage == 0 || b.DstStage == 0 {
			c.dev.violation("barrier on image %d without stages", b.Image)
		}
		info.layout = b.NewLayout
		c.Barriers = append(c.Barriers, b)
		c.record("barrier %d %s->%s", b.Image, b.OldLayout, b.NewLayout)
	}
}

func (c *CommandBuffer) CopyBuffer(src, dst gpu.Buffer, size uint64) {
	if c.inPass {
		c.dev.violation("copy inside render pass")
	}
	c.copies++
	c.record("copy-buffer %d->%d %d", src, dst, size)
}

func (c *CommandBuffer) CopyBufferToImage(src gpu.Buffer, dst gpu.Image, extent gpu.Extent) {
	if c.inPass {
		c.dev.violation("copy inside render pass")
	}
	if l := c.dev.images[dst].layout; l != gpu.LayoutTransferDst {
		c.dev.violation("copy into image %d in layout %s", dst, l)
	}
	c.uploads++
	c.record("copy-image %d->%d %s", src, dst, extent)
}

func (c *CommandBuffer) BeginRenderPass(rp gpu.RenderPass, fb gpu.Framebuffer, area gpu.Extent, clears []gpu.ClearValue) {
	if c.inPass {
		c.dev.violation("nested render pass")
	}
	desc, ok := c.dev.passes[rp]
	if !ok {
		c.dev.violation("begin of unknown render pass %d", rp)
		return
	}
	fbInfo, ok := c.dev.framebuffers[fb]
	if !ok {
		c.dev.violation("begin of %s with unknown framebuffer %d", desc.Name, fb)
		return
	}
	attachments := append([]gpu.AttachmentDesc(nil), desc.Color...)
	if desc.Depth != nil {
		attachments = append(attachments, *desc.Depth)
	}
	if len(attachments) != len(fbInfo.views) {
		c.dev.violation("%s has %d attachments, framebuffer has %d", desc.Name, len(attachments), len(fbInfo.views))
	}
	for i, v := range fbInfo.views {
		if i >= len(attachments) {
			break
		}
		img := c.dev.views[v].image
		if l := c.dev.images[img].layout; l != attachments[i].Layout {
			c.dev.violation("%s attachment %d (image %d) in layout %s, want %s", desc.Name, i, img, l, attachments[i].Layout)
		}
	}
	if area != fbInfo.extent {
		c.dev.violation("%s render area %s on framebuffer %s", desc.Name, area, fbInfo.extent)
	}
	c.inPass = true
	c.pass = rp
	c.record("begin %s %s", desc.Name, area)
}

func (c *CommandBuffer) EndRenderPass() {
	if !c.inPass {
		c.dev.violation("end of render pass outside a pass")
	}
	c.inPass = false
	c.record("end %s", c.dev.passes[c.pass].Name)
}

func (c *CommandBuffer) SetViewport(area gpu.Extent) {
	c.record("viewport %s", area)
}

func (c *CommandBuffer) BindPipeline(p gpu.Pipeline) {
	desc, ok := c.dev.pipelines[p]
	if !ok {
		c.dev.violation("bind of unknown pipeline %d", p)
		return
	}
	if !c.compatible(desc.Pass, c.pass) {
		c.dev.violation("pipeline %s bound inside incompatible pass %s", desc.Name, c.dev.passes[c.pass].Name)
	}
	c.pipeline = p
	c.tables = make(map[uint32]gpu.TextureTable)
	c.record("pipeline %s", desc.Name)
}

// compatible mirrors render pass compatibility: same attachment formats.
func (c *CommandBuffer) compatible(a, b gpu.RenderPass) bool {
	if a == b {
		return true
	}
	da, db := c.dev.passes[a], c.dev.passes[b]
	if len(da.Color) != len(db.Color) || (da.Depth == nil) != (db.Depth == nil) {
		return false
	}
	for i := range da.Color {
		if da.Color[i].Format != db.Color[i].Format {
			return false
		}
	}
	return da.Depth == nil || da.Depth.Format == db.Depth.Format
}

func (c *CommandBuffer) BindTextureTable(p gpu.Pipeline, set uint32, t gpu.TextureTable) {
	if _, ok := c.dev.tables[t]; !ok {
		c.dev.violation("bind of unknown texture table %d", t)
	}
	c.tables[set] = t
	c.record("table %d=%d", set, t)
}

func (c *CommandBuffer) PushConstants(p gpu.Pipeline, data []byte) {
	desc := c.dev.pipelines[p]
	if uint32(len(data)) != desc.PushConstantSize {
		c.dev.violation("pipeline %s push constants of %d bytes, declared %d", desc.Name, len(data), desc.PushConstantSize)
	}
	c.record("push %d", len(data))
}

func (c *CommandBuffer) BindVertexBuffer(b gpu.Buffer) {
	c.vertex = b
}

func (c *CommandBuffer) BindIndexBuffer(b gpu.Buffer) {
	c.index = b
}

func (c *CommandBuffer) checkDraw(indexed bool) {
	if !c.inPass {
		c.dev.violation("draw outside render pass")
	}
	if c.pipeline == 0 {
		c.dev.violation("draw without pipeline")
		return
	}
	desc := c.dev.pipelines[c.pipeline]
	for set := range desc.Tables {
		t, ok := c.tables[uint32(set)]
		if !ok {
			c.dev.violation("pipeline %s draws without table set %d", desc.Name, set)
			continue
		}
		for slot, v := range c.dev.tables[t].slots {
			if v == 0 {
				c.dev.violation("pipeline %s samples empty table slot %d", desc.Name, slot)
				continue
			}
			img := c.dev.views[v].image
			if l := c.dev.images[img].layout; l != gpu.LayoutShaderReadOnly {
				c.dev.violation("pipeline %s samples image %d in layout %s", desc.Name, img, l)
			}
		}
	}
	if desc.MeshInput && c.vertex == 0 {
		c.dev.violation("pipeline %s draws without vertex buffer", desc.Name)
	}
	if indexed && c.index == 0 {
		c.dev.violation("indexed draw without index buffer")
	}
	c.Draws++
}

func (c *CommandBuffer) Draw(vertexCount uint32) {
	c.checkDraw(false)
	c.record("draw %d", vertexCount)
}

func (c *CommandBuffer) DrawIndexed(indexCount uint32) {
	c.checkDraw(true)
	c.record("draw-indexed %d", indexCount)
}
