package vulkan

import (
	"github.com/cockroachdb/errors"
	vk "github.com/goki/vulkan"

	"github.com/spaghettifunk/prism/engine/renderer/gpu"
)

func (d *Device) CreateFramebuffer(rp gpu.RenderPass, attachments []gpu.ImageView, extent gpu.Extent) (gpu.Framebuffer, error) {
	pass, ok := d.passes[rp]
	if !ok {
		return 0, errors.Newf("unknown render pass %d", rp)
	}
	views := make([]vk.ImageView, len(attachments))
	for i, a := range attachments {
		v, ok := d.views[a]
		if !ok {
			return 0, errors.Newf("framebuffer attachment %d: unknown view %d", i, a)
		}
		views[i] = v
	}
	info := vk.FramebufferCreateInfo{
		SType:           vk.StructureTypeFramebufferCreateInfo,
		RenderPass:      pass.handle,
		AttachmentCount: uint32(len(views)),
		PAttachments:    views,
		Width:           extent.Width,
		Height:          extent.Height,
		Layers:          1,
	}
	var fb vk.Framebuffer
	if err := resultError(vk.CreateFramebuffer(d.logical, &info, nil, &fb), "vkCreateFramebuffer"); err != nil {
		return 0, err
	}
	h := gpu.Framebuffer(d.handle())
	d.framebuffers[h] = fb
	return h, nil
}

func (d *Device) DestroyFramebuffer(fb gpu.Framebuffer) {
	if f, ok := d.framebuffers[fb]; ok {
		vk.DestroyFramebuffer(d.logical, f, nil)
		delete(d.framebuffers, fb)
	}
}
