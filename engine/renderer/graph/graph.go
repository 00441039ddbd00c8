// Package graph records the fixed sequence of render passes of a frame and
// the layout transitions between them.
package graph

import (
	"github.com/cockroachdb/errors"
	"github.com/go-gl/mathgl/mgl32"

	"github.com/spaghettifunk/prism/engine/core"
	"github.com/spaghettifunk/prism/engine/renderer/cache"
	"github.com/spaghettifunk/prism/engine/renderer/frame"
	"github.com/spaghettifunk/prism/engine/renderer/gpu"
	"github.com/spaghettifunk/prism/engine/renderer/resource"
	"github.com/spaghettifunk/prism/engine/renderer/swapchain"
)

// Overlay records its own draws into the presentation pass, after the
// viewport and in registration order.
type Overlay interface {
	Record(cb gpu.CommandBuffer, target gpu.Extent) error
}

type attachment struct {
	image  *resource.Image
	layout gpu.Layout
}

// node is one pass: the images it samples, the attachments it renders to,
// and the commands it records once they are in the right layouts.
type node struct {
	name   string
	reads  []*resource.Image
	writes []attachment
	record func(cb gpu.CommandBuffer) error
}

type Graph struct {
	dev       gpu.Device
	cache     *cache.Cache
	swapchain *swapchain.Manager
	post      core.PostConfig

	pipelines map[PipelineKind]pipeline
	overlays  []Overlay
	enc       Encoder
}

func New(dev gpu.Device, shaders ShaderSource, c *cache.Cache, sc *swapchain.Manager, post core.PostConfig) (*Graph, error) {
	g := &Graph{
		dev:       dev,
		cache:     c,
		swapchain: sc,
		post:      post,
		pipelines: make(map[PipelineKind]pipeline, pipelineKinds),
	}
	if err := g.createPipelines(shaders); err != nil {
		g.Destroy()
		return nil, err
	}
	return g, nil
}

// AddOverlay appends o to the presentation pass.
func (g *Graph) AddOverlay(o Overlay) {
	g.overlays = append(g.overlays, o)
}

// SetPost replaces the post-processing parameters from the next frame on.
func (g *Graph) SetPost(post core.PostConfig) {
	g.post = post
}

// Record fills the frame's command buffer with every pass, in order, and
// leaves the swapchain image ready for presentation.
func (g *Graph) Record(f *frame.Frame, view *View) error {
	cb := f.Commands
	sc := g.swapchain
	hdr, depth, bloom, composite := sc.HDR(), sc.Depth(), sc.Bloom(), sc.Composite()
	scene := []attachment{
		{hdr, gpu.LayoutColorAttachment},
		{depth, gpu.LayoutDepthAttachment},
	}
	vp := view.Camera.ViewProjection()
	list := BuildDrawList(view.Items)

	// The swapchain image is cleared, so its old contents are never needed.
	f.Image.Discard()

	nodes := []node{
		{name: "sky", writes: scene, record: func(cb gpu.CommandBuffer) error {
			return g.sky(cb, view, vp)
		}},
		{name: "opaque", writes: scene, record: func(cb gpu.CommandBuffer) error {
			return g.scenePass(cb, func() error {
				if err := g.drawMeshes(cb, PipelineStandard, list.Standard, vp); err != nil {
					return err
				}
				return g.drawMeshes(cb, PipelineDoubleSided, list.DoubleSided, vp)
			})
		}},
		{name: "transmissive", writes: scene, record: func(cb gpu.CommandBuffer) error {
			return g.scenePass(cb, func() error {
				return g.drawMeshes(cb, PipelineTransmissive, list.Transmissive, vp)
			})
		}},
		{name: "forward", writes: scene, record: func(cb gpu.CommandBuffer) error {
			return g.scenePass(cb, func() error {
				return g.drawWater(cb, view)
			})
		}},
		{name: "bloom", reads: []*resource.Image{hdr}, writes: []attachment{{bloom, gpu.LayoutColorAttachment}}, record: g.bloom},
		{name: "composite", reads: []*resource.Image{hdr, bloom}, writes: []attachment{{composite, gpu.LayoutColorAttachment}}, record: g.composite},
		{name: "present", reads: []*resource.Image{composite}, writes: []attachment{{f.Image, gpu.LayoutColorAttachment}}, record: func(cb gpu.CommandBuffer) error {
			return g.present(cb, f.ImageIndex)
		}},
	}
	for _, n := range nodes {
		if err := prepare(cb, n); err != nil {
			return errors.Wrapf(err, "preparing %s pass", n.name)
		}
		if err := n.record(cb); err != nil {
			return errors.Wrapf(err, "recording %s pass", n.name)
		}
	}
	return f.Image.TransitionTo(cb, gpu.LayoutPresentSrc)
}

// prepare moves every input of n to a sampled layout and every output to
// its attachment layout, then checks nothing is left in a layout the pass
// cannot use.
func prepare(cb gpu.CommandBuffer, n node) error {
	for _, img := range n.reads {
		if err := img.TransitionTo(cb, gpu.LayoutShaderReadOnly); err != nil {
			return err
		}
	}
	for _, w := range n.writes {
		if err := w.image.TransitionTo(cb, w.layout); err != nil {
			return err
		}
	}
	return validate(n)
}

func validate(n node) error {
	for _, img := range n.reads {
		if l := img.Layout(); l != gpu.LayoutShaderReadOnly {
			return errors.Mark(
				errors.AssertionFailedf("%s pass samples image %d in %s", n.name, img.Handle(), l),
				core.ErrUnmodeledTransition)
		}
	}
	for _, w := range n.writes {
		if l := w.image.Layout(); l != w.layout {
			return errors.Mark(
				errors.AssertionFailedf("%s pass renders to image %d in %s, want %s", n.name, w.image.Handle(), l, w.layout),
				core.ErrUnmodeledTransition)
		}
	}
	return nil
}

func (g *Graph) sky(cb gpu.CommandBuffer, view *View, vp mgl32.Mat4) error {
	sc := g.swapchain
	extent := sc.Extent()
	cb.BeginRenderPass(sc.Passes().HDRClear, sc.HDRFramebuffer(), extent, []gpu.ClearValue{
		{Color: [4]float32{0, 0, 0, 1}},
		{Depth: 1},
	})
	cb.SetViewport(extent)
	p := g.pipelines[PipelineSky]
	cb.BindPipeline(p.handle)
	sun := view.SunDirection
	if sun.Len() > 0 {
		sun = sun.Normalize()
	}
	if err := g.push(cb, PipelineSky, SkyConstants{InvViewProj: vp.Inv(), SunDirection: sun.Vec4(0)}); err != nil {
		cb.EndRenderPass()
		return err
	}
	cb.Draw(3)
	cb.EndRenderPass()
	return nil
}

// scenePass runs draw inside an HDR pass that keeps what earlier passes
// rendered.
func (g *Graph) scenePass(cb gpu.CommandBuffer, draw func() error) error {
	sc := g.swapchain
	cb.BeginRenderPass(sc.Passes().HDRLoad, sc.HDRFramebuffer(), sc.Extent(), nil)
	cb.SetViewport(sc.Extent())
	err := draw()
	cb.EndRenderPass()
	return err
}

func (g *Graph) drawMeshes(cb gpu.CommandBuffer, kind PipelineKind, items []DrawItem, vp mgl32.Mat4) error {
	if len(items) == 0 {
		return nil
	}
	p := g.pipelines[kind]
	cb.BindPipeline(p.handle)
	cb.BindTextureTable(p.handle, 0, g.cache.Table())
	for _, item := range items {
		mesh, ok := g.cache.Mesh(item.Mesh)
		if !ok {
			continue
		}
		texture := item.Material.TextureID
		if texture >= g.cache.Capacity() {
			texture = cache.FallbackTexture
		}
		cb.BindVertexBuffer(mesh.Vertices.Handle())
		cb.BindIndexBuffer(mesh.Indices.Handle())
		err := g.push(cb, kind, NewDrawConstants(vp, item.Model, item.Material, texture))
		if err != nil {
			return err
		}
		cb.DrawIndexed(mesh.IndexCount)
	}
	return nil
}

func (g *Graph) drawWater(cb gpu.CommandBuffer, view *View) error {
	if len(view.Water) == 0 {
		return nil
	}
	p := g.pipelines[PipelineWater]
	cb.BindPipeline(p.handle)
	for _, item := range view.Water {
		mesh, ok := g.cache.Mesh(item.Mesh)
		if !ok {
			continue
		}
		cb.BindVertexBuffer(mesh.Vertices.Handle())
		cb.BindIndexBuffer(mesh.Indices.Handle())
		err := g.push(cb, PipelineWater, NewWaterConstants(view.Camera, item.Model, item.Material.Tint, view.Time))
		if err != nil {
			return err
		}
		cb.DrawIndexed(mesh.IndexCount)
	}
	return nil
}

// fullscreen draws one generated triangle covering the target.
func (g *Graph) fullscreen(cb gpu.CommandBuffer, kind PipelineKind, rp gpu.RenderPass, fb gpu.Framebuffer, extent gpu.Extent, table gpu.TextureTable, record interface{}) error {
	cb.BeginRenderPass(rp, fb, extent, nil)
	cb.SetViewport(extent)
	p := g.pipelines[kind]
	cb.BindPipeline(p.handle)
	cb.BindTextureTable(p.handle, 0, table)
	err := g.push(cb, kind, record)
	if err == nil {
		cb.Draw(3)
	}
	cb.EndRenderPass()
	return err
}

func (g *Graph) bloom(cb gpu.CommandBuffer) error {
	sc := g.swapchain
	extent := sc.Bloom().Extent()
	src := sc.HDR().Extent()
	return g.fullscreen(cb, PipelineBloom, sc.Passes().Bloom, sc.BloomFramebuffer(), extent, sc.Inputs().Bloom, BloomConstants{
		Threshold: g.post.BloomThreshold,
		Knee:      g.post.BloomKnee,
		TexelSize: mgl32.Vec2{1 / float32(src.Width), 1 / float32(src.Height)},
	})
}

func (g *Graph) composite(cb gpu.CommandBuffer) error {
	sc := g.swapchain
	return g.fullscreen(cb, PipelineComposite, sc.Passes().Composite, sc.CompositeFramebuffer(), sc.Extent(), sc.Inputs().Composite, CompositeConstants{
		Exposure:      g.post.Exposure,
		Gamma:         g.post.Gamma,
		BloomStrength: g.post.BloomStrength,
	})
}

func (g *Graph) present(cb gpu.CommandBuffer, index uint32) error {
	sc := g.swapchain
	extent := sc.Extent()
	cb.BeginRenderPass(sc.Passes().Present, sc.PresentFramebuffer(index), extent, []gpu.ClearValue{
		{Color: [4]float32{0, 0, 0, 1}},
	})
	cb.SetViewport(extent)
	for _, o := range g.overlays {
		if err := o.Record(cb, extent); err != nil {
			cb.EndRenderPass()
			return err
		}
	}
	cb.EndRenderPass()
	return nil
}

// Destroy releases the pipelines. The GPU must be idle.
func (g *Graph) Destroy() {
	for kind, p := range g.pipelines {
		g.dev.DestroyPipeline(p.handle)
		delete(g.pipelines, kind)
	}
}
