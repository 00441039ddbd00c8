package swapchain

import (
	"github.com/cockroachdb/errors"

	"github.com/spaghettifunk/prism/engine/core"
	"github.com/spaghettifunk/prism/engine/renderer/gpu"
	"github.com/spaghettifunk/prism/engine/renderer/resource"
)

// build creates the swapchain and every target at the current surface
// extent. On error whatever was created is torn down again.
func (m *Manager) build() error {
	caps, err := m.dev.SurfaceCapabilities()
	if err != nil {
		return errors.Wrap(err, "querying surface capabilities")
	}
	if !containsFormat(caps.Formats, m.format) {
		if err := m.changeFormat(caps); err != nil {
			return err
		}
	}
	extent := chooseExtent(caps, m.display.DrawableSize())
	if extent.IsZero() {
		return errors.Newf("refusing to build a %s swapchain", extent)
	}
	m.presentMode = choosePresentMode(caps, m.config.PresentMode)

	if err := m.buildSwapchain(extent, chooseImageCount(caps)); err != nil {
		m.destroyTargets()
		return err
	}
	if err := m.buildOffscreen(extent); err != nil {
		m.destroyTargets()
		return err
	}
	m.extent = extent
	m.generation++
	vp := m.Viewport()
	for _, fn := range m.subscribers {
		fn(vp)
	}
	return nil
}

// changeFormat picks a new surface format and recreates the present pass
// for it. Subscribers see the new pass in the next ViewportTexture.
func (m *Manager) changeFormat(caps gpu.SurfaceCapabilities) error {
	format, err := chooseFormat(caps)
	if err != nil {
		return err
	}
	rp, err := m.dev.CreateRenderPass(colorPassDesc("present", format, gpu.LoadOpClear))
	if err != nil {
		return errors.Wrapf(err, "recreating present render pass for %s", format)
	}
	if m.passes.Present != 0 {
		m.dev.DestroyRenderPass(m.passes.Present)
	}
	core.LogInfo("surface format changed from %s to %s", m.format, format)
	m.passes.Present = rp
	m.format = format
	return nil
}

func containsFormat(formats []gpu.Format, f gpu.Format) bool {
	for _, candidate := range formats {
		if candidate == f {
			return true
		}
	}
	return false
}

func (m *Manager) buildSwapchain(extent gpu.Extent, count uint32) error {
	sc, handles, err := m.dev.CreateSwapchain(gpu.SwapchainDesc{
		Extent:      extent,
		Format:      m.format,
		ImageCount:  count,
		PresentMode: m.presentMode,
	})
	if err != nil {
		return errors.Wrapf(err, "creating %s swapchain", extent)
	}
	m.swapchain = sc
	for i, h := range handles {
		img, err := resource.WrapSwapchainImage(m.dev, h, extent, m.format)
		if err != nil {
			return errors.Wrapf(err, "wrapping swapchain image %d", i)
		}
		m.images = append(m.images, img)
		fb, err := m.dev.CreateFramebuffer(m.passes.Present, []gpu.ImageView{img.View()}, extent)
		if err != nil {
			return errors.Wrapf(err, "creating framebuffer for swapchain image %d", i)
		}
		m.presentFB = append(m.presentFB, fb)
	}
	return nil
}

func (m *Manager) buildOffscreen(extent gpu.Extent) error {
	var err error
	color := gpu.ImageUsageColorAttachment | gpu.ImageUsageSampled
	if m.hdr, err = resource.NewImage(m.dev, gpu.ImageDesc{Extent: extent, Format: HDRFormat, Usage: color}); err != nil {
		return errors.Wrap(err, "creating HDR target")
	}
	if m.depth, err = resource.NewImage(m.dev, gpu.ImageDesc{Extent: extent, Format: m.depthFormat, Usage: gpu.ImageUsageDepthAttachment}); err != nil {
		return errors.Wrap(err, "creating depth target")
	}
	bloomExtent := extent.Scaled(BloomDivisor)
	if m.bloom, err = resource.NewImage(m.dev, gpu.ImageDesc{Extent: bloomExtent, Format: HDRFormat, Usage: color}); err != nil {
		return errors.Wrap(err, "creating bloom target")
	}
	if m.composite, err = resource.NewImage(m.dev, gpu.ImageDesc{Extent: extent, Format: CompositeFormat, Usage: color}); err != nil {
		return errors.Wrap(err, "creating composite target")
	}

	if m.hdrFB, err = m.dev.CreateFramebuffer(m.passes.HDRClear, []gpu.ImageView{m.hdr.View(), m.depth.View()}, extent); err != nil {
		return errors.Wrap(err, "creating HDR framebuffer")
	}
	if m.bloomFB, err = m.dev.CreateFramebuffer(m.passes.Bloom, []gpu.ImageView{m.bloom.View()}, bloomExtent); err != nil {
		return errors.Wrap(err, "creating bloom framebuffer")
	}
	if m.compositeFB, err = m.dev.CreateFramebuffer(m.passes.Composite, []gpu.ImageView{m.composite.View()}, extent); err != nil {
		return errors.Wrap(err, "creating composite framebuffer")
	}

	writes := []struct {
		table gpu.TextureTable
		slot  uint32
		view  gpu.ImageView
	}{
		{m.inputs.Bloom, 0, m.hdr.View()},
		{m.inputs.Composite, 0, m.hdr.View()},
		{m.inputs.Composite, 1, m.bloom.View()},
		{m.inputs.Viewport, 0, m.composite.View()},
	}
	for _, w := range writes {
		if err := m.dev.WriteTextureTable(w.table, w.slot, w.view, m.sampler); err != nil {
			return errors.Wrap(err, "binding post-process inputs")
		}
	}
	return nil
}

// destroyTargets releases framebuffers, then views, then the swapchain,
// then the offscreen images.
func (m *Manager) destroyTargets() {
	for _, fb := range m.presentFB {
		m.dev.DestroyFramebuffer(fb)
	}
	m.presentFB = nil
	for _, img := range m.images {
		img.Destroy()
	}
	m.images = nil
	if m.swapchain != 0 {
		m.dev.DestroySwapchain(m.swapchain)
		m.swapchain = 0
	}

	for _, fb := range []*gpu.Framebuffer{&m.hdrFB, &m.bloomFB, &m.compositeFB} {
		if *fb != 0 {
			m.dev.DestroyFramebuffer(*fb)
			*fb = 0
		}
	}
	for _, img := range []**resource.Image{&m.hdr, &m.depth, &m.bloom, &m.composite} {
		if *img != nil {
			(*img).Destroy()
			*img = nil
		}
	}
	if m.extent != (gpu.Extent{}) {
		core.LogDebug("swapchain targets at %s destroyed", m.extent)
	}
}
