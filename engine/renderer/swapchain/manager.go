// Package swapchain owns the presentable image chain and every
// resolution-dependent render target, and rebuilds them together.
package swapchain

import (
	"github.com/cockroachdb/errors"

	"github.com/spaghettifunk/prism/engine/core"
	"github.com/spaghettifunk/prism/engine/renderer/gpu"
	"github.com/spaghettifunk/prism/engine/renderer/resource"
)

// Display is the window the swapchain presents to.
type Display interface {
	// DrawableSize is the framebuffer size in pixels. Zero while minimized.
	DrawableSize() gpu.Extent
	// WaitEvents blocks until the window system has something to report.
	WaitEvents()
	ShouldClose() bool
}

const (
	HDRFormat       = gpu.FormatRGBA16Float
	CompositeFormat = gpu.FormatRGBA8Unorm
	// BloomDivisor is the bloom target size relative to the HDR target.
	BloomDivisor = 4
)

type Config struct {
	PresentMode gpu.PresentMode
}

// Passes are the render passes the graph records into. They only depend on
// formats, so they survive rebuilds. Present is recreated when the surface
// stops offering the chosen format.
type Passes struct {
	// HDRClear clears the HDR color and depth targets. HDRLoad is
	// compatible with it and keeps their contents.
	HDRClear  gpu.RenderPass
	HDRLoad   gpu.RenderPass
	Bloom     gpu.RenderPass
	Composite gpu.RenderPass
	Present   gpu.RenderPass
}

// Inputs are the texture tables full-screen passes sample their inputs
// through. Slots are rewritten on every rebuild.
type Inputs struct {
	// Bloom holds the HDR target.
	Bloom gpu.TextureTable
	// Composite holds the HDR target then the bloom target.
	Composite gpu.TextureTable
	// Viewport holds the composite target.
	Viewport gpu.TextureTable
}

// ViewportTexture is the handle the overlay samples the composite target
// through. It is reissued with a new Generation after every rebuild.
type ViewportTexture struct {
	Table      gpu.TextureTable
	Extent     gpu.Extent
	Generation uint64
	// Pass is the present pass overlays record into. It only changes when
	// the surface format does.
	Pass gpu.RenderPass
}

type Manager struct {
	dev     gpu.Device
	display Display
	config  Config

	format      gpu.Format
	depthFormat gpu.Format
	presentMode gpu.PresentMode
	extent      gpu.Extent

	swapchain gpu.Swapchain
	images    []*resource.Image
	presentFB []gpu.Framebuffer

	hdr       *resource.Image
	depth     *resource.Image
	bloom     *resource.Image
	composite *resource.Image

	hdrFB       gpu.Framebuffer
	bloomFB     gpu.Framebuffer
	compositeFB gpu.Framebuffer

	passes  Passes
	inputs  Inputs
	sampler gpu.Sampler

	pending     bool
	generation  uint64
	subscribers []func(ViewportTexture)
}

// New picks the surface format, creates the render passes and builds the
// swapchain and targets at the current drawable size.
func New(dev gpu.Device, display Display, config Config) (*Manager, error) {
	m := &Manager{
		dev:         dev,
		display:     display,
		config:      config,
		depthFormat: dev.DepthFormat(),
	}
	caps, err := dev.SurfaceCapabilities()
	if err != nil {
		return nil, errors.Wrap(err, "querying surface capabilities")
	}
	if m.format, err = chooseFormat(caps); err != nil {
		return nil, err
	}
	if err := m.createStatic(); err != nil {
		m.Destroy()
		return nil, err
	}
	if err := m.waitForDrawable(); err != nil {
		m.Destroy()
		return nil, err
	}
	if err := m.build(); err != nil {
		m.Destroy()
		return nil, err
	}
	core.LogInfo("swapchain created: %s %d images, format %s", m.extent, len(m.images), m.format)
	return m, nil
}

func (m *Manager) createStatic() error {
	descs := []struct {
		out  *gpu.RenderPass
		desc gpu.RenderPassDesc
	}{
		{&m.passes.HDRClear, m.hdrPassDesc("hdr-clear", gpu.LoadOpClear)},
		{&m.passes.HDRLoad, m.hdrPassDesc("hdr-load", gpu.LoadOpLoad)},
		{&m.passes.Bloom, colorPassDesc("bloom", HDRFormat, gpu.LoadOpDontCare)},
		{&m.passes.Composite, colorPassDesc("composite", CompositeFormat, gpu.LoadOpDontCare)},
		{&m.passes.Present, colorPassDesc("present", m.format, gpu.LoadOpClear)},
	}
	for _, d := range descs {
		rp, err := m.dev.CreateRenderPass(d.desc)
		if err != nil {
			return errors.Wrapf(err, "creating %s render pass", d.desc.Name)
		}
		*d.out = rp
	}

	var err error
	m.sampler, err = m.dev.CreateSampler(gpu.SamplerDesc{Filter: gpu.FilterLinear, Address: gpu.AddressClampToEdge})
	if err != nil {
		return errors.Wrap(err, "creating target sampler")
	}
	tables := []struct {
		out      *gpu.TextureTable
		capacity uint32
	}{
		{&m.inputs.Bloom, 1},
		{&m.inputs.Composite, 2},
		{&m.inputs.Viewport, 1},
	}
	for _, t := range tables {
		table, err := m.dev.CreateTextureTable(t.capacity)
		if err != nil {
			return errors.Wrap(err, "creating post-process input table")
		}
		*t.out = table
	}
	return nil
}

func (m *Manager) hdrPassDesc(name string, load gpu.LoadOp) gpu.RenderPassDesc {
	return gpu.RenderPassDesc{
		Name:  name,
		Color: []gpu.AttachmentDesc{{Format: HDRFormat, Load: load, Layout: gpu.LayoutColorAttachment}},
		Depth: &gpu.AttachmentDesc{Format: m.depthFormat, Load: load, Layout: gpu.LayoutDepthAttachment},
	}
}

func colorPassDesc(name string, format gpu.Format, load gpu.LoadOp) gpu.RenderPassDesc {
	return gpu.RenderPassDesc{
		Name:  name,
		Color: []gpu.AttachmentDesc{{Format: format, Load: load, Layout: gpu.LayoutColorAttachment}},
	}
}

// NotifyResize records that the drawable changed size. The next frame
// rebuilds before rendering.
func (m *Manager) NotifyResize(size gpu.Extent) {
	core.LogDebug("resize to %s pending", size)
	m.pending = true
}

// Pending reports whether a resize is waiting for a rebuild.
func (m *Manager) Pending() bool {
	return m.pending
}

// Rebuild waits for the GPU to go idle, tears down the swapchain and every
// target in dependency order, and recreates them at the current size. While
// the drawable is zero-sized it blocks on window events instead.
func (m *Manager) Rebuild() error {
	if err := m.waitForDrawable(); err != nil {
		return err
	}
	if err := m.dev.WaitIdle(); err != nil {
		return errors.Wrap(err, "waiting for device idle before rebuild")
	}
	m.destroyTargets()
	if err := m.build(); err != nil {
		return errors.Wrap(err, "rebuilding swapchain")
	}
	m.pending = false
	core.LogInfo("swapchain rebuilt: %s %d images", m.extent, len(m.images))
	return nil
}

func (m *Manager) waitForDrawable() error {
	for {
		if m.display.ShouldClose() {
			return core.ErrDisplayClosed
		}
		if size := m.display.DrawableSize(); !size.IsZero() {
			caps, err := m.dev.SurfaceCapabilities()
			if err != nil {
				return errors.Wrap(err, "querying surface capabilities")
			}
			if !chooseExtent(caps, size).IsZero() {
				return nil
			}
		}
		m.display.WaitEvents()
	}
}

// OnViewportChanged registers fn to receive the reissued viewport handle
// after every rebuild. fn is called once immediately.
func (m *Manager) OnViewportChanged(fn func(ViewportTexture)) {
	m.subscribers = append(m.subscribers, fn)
	fn(m.Viewport())
}

func (m *Manager) Viewport() ViewportTexture {
	return ViewportTexture{Table: m.inputs.Viewport, Extent: m.extent, Generation: m.generation, Pass: m.passes.Present}
}

func (m *Manager) Swapchain() gpu.Swapchain { return m.swapchain }

func (m *Manager) Extent() gpu.Extent { return m.extent }

func (m *Manager) Format() gpu.Format { return m.format }

func (m *Manager) DepthFormat() gpu.Format { return m.depthFormat }

func (m *Manager) PresentMode() gpu.PresentMode { return m.presentMode }

func (m *Manager) ImageCount() int { return len(m.images) }

func (m *Manager) Passes() Passes { return m.passes }

func (m *Manager) Inputs() Inputs { return m.inputs }

func (m *Manager) Generation() uint64 { return m.generation }

func (m *Manager) HDR() *resource.Image { return m.hdr }

func (m *Manager) Depth() *resource.Image { return m.depth }

func (m *Manager) Bloom() *resource.Image { return m.bloom }

func (m *Manager) Composite() *resource.Image { return m.composite }

// HDRFramebuffer binds the HDR color and depth targets. It serves both
// HDRClear and HDRLoad.
func (m *Manager) HDRFramebuffer() gpu.Framebuffer { return m.hdrFB }

func (m *Manager) BloomFramebuffer() gpu.Framebuffer { return m.bloomFB }

func (m *Manager) CompositeFramebuffer() gpu.Framebuffer { return m.compositeFB }

// Image returns the swapchain image at index.
func (m *Manager) Image(index uint32) *resource.Image {
	return m.images[index]
}

// PresentFramebuffer returns the framebuffer binding swapchain image index
// to the present pass.
func (m *Manager) PresentFramebuffer(index uint32) gpu.Framebuffer {
	return m.presentFB[index]
}

// Destroy releases everything. The GPU must be idle.
func (m *Manager) Destroy() {
	m.destroyTargets()
	for _, t := range []*gpu.TextureTable{&m.inputs.Bloom, &m.inputs.Composite, &m.inputs.Viewport} {
		if *t != 0 {
			m.dev.DestroyTextureTable(*t)
			*t = 0
		}
	}
	if m.sampler != 0 {
		m.dev.DestroySampler(m.sampler)
		m.sampler = 0
	}
	for _, rp := range []*gpu.RenderPass{&m.passes.HDRClear, &m.passes.HDRLoad, &m.passes.Bloom, &m.passes.Composite, &m.passes.Present} {
		if *rp != 0 {
			m.dev.DestroyRenderPass(*rp)
			*rp = 0
		}
	}
}
