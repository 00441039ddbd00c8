package vulkan

import (
	"github.com/cockroachdb/errors"
	vk "github.com/goki/vulkan"

	"github.com/spaghettifunk/prism/engine/core"
	"github.com/spaghettifunk/prism/engine/renderer/gpu"
)

// CreateRenderPass creates a single-subpass pass whose attachments start
// and end in their declared layout. Layout changes happen in barriers
// recorded outside the pass.
func (d *Device) CreateRenderPass(desc gpu.RenderPassDesc) (gpu.RenderPass, error) {
	if len(desc.Color) == 0 && desc.Depth == nil {
		return 0, errors.Newf("render pass %q has no attachments", desc.Name)
	}

	attachments := make([]vk.AttachmentDescription, 0, len(desc.Color)+1)
	colorRefs := make([]vk.AttachmentReference, 0, len(desc.Color))
	for i, c := range desc.Color {
		layout := toVkLayout(c.Layout)
		attachments = append(attachments, vk.AttachmentDescription{
			Format:         toVkFormat(c.Format),
			Samples:        vk.SampleCount1Bit,
			LoadOp:         toVkLoadOp(c.Load),
			StoreOp:        vk.AttachmentStoreOpStore,
			StencilLoadOp:  vk.AttachmentLoadOpDontCare,
			StencilStoreOp: vk.AttachmentStoreOpDontCare,
			InitialLayout:  layout,
			FinalLayout:    layout,
		})
		colorRefs = append(colorRefs, vk.AttachmentReference{
			Attachment: uint32(i),
			Layout:     vk.ImageLayoutColorAttachmentOptimal,
		})
	}

	subpass := vk.SubpassDescription{
		PipelineBindPoint:    vk.PipelineBindPointGraphics,
		ColorAttachmentCount: uint32(len(colorRefs)),
		PColorAttachments:    colorRefs,
	}

	if desc.Depth != nil {
		layout := toVkLayout(desc.Depth.Layout)
		attachments = append(attachments, vk.AttachmentDescription{
			Format:         toVkFormat(desc.Depth.Format),
			Samples:        vk.SampleCount1Bit,
			LoadOp:         toVkLoadOp(desc.Depth.Load),
			StoreOp:        vk.AttachmentStoreOpStore,
			StencilLoadOp:  vk.AttachmentLoadOpDontCare,
			StencilStoreOp: vk.AttachmentStoreOpDontCare,
			InitialLayout:  layout,
			FinalLayout:    layout,
		})
		subpass.PDepthStencilAttachment = &vk.AttachmentReference{
			Attachment: uint32(len(desc.Color)),
			Layout:     vk.ImageLayoutDepthStencilAttachmentOptimal,
		}
	}
	dependency := externalDependency(desc.Depth != nil)

	info := vk.RenderPassCreateInfo{
		SType:           vk.StructureTypeRenderPassCreateInfo,
		AttachmentCount: uint32(len(attachments)),
		PAttachments:    attachments,
		SubpassCount:    1,
		PSubpasses:      []vk.SubpassDescription{subpass},
		DependencyCount: 1,
		PDependencies:   []vk.SubpassDependency{dependency},
	}
	var rp vk.RenderPass
	if err := resultError(vk.CreateRenderPass(d.logical, &info, nil, &rp), "vkCreateRenderPass"); err != nil {
		return 0, errors.Wrapf(err, "render pass %q", desc.Name)
	}
	h := gpu.RenderPass(d.handle())
	d.passes[h] = renderPass{handle: rp, colorCount: len(desc.Color)}
	core.LogDebug("Render pass %q created.", desc.Name)
	return h, nil
}

// externalDependency orders the pass after attachment work submitted
// before it. Earlier attachment writes are made available, so a pass that
// loads what the previous pass rendered, or writes depth the previous frame
// wrote, sees them.
func externalDependency(depth bool) vk.SubpassDependency {
	stages := vk.PipelineStageColorAttachmentOutputBit
	srcAccess := vk.AccessColorAttachmentWriteBit
	dstAccess := vk.AccessColorAttachmentReadBit | vk.AccessColorAttachmentWriteBit
	if depth {
		stages |= vk.PipelineStageEarlyFragmentTestsBit | vk.PipelineStageLateFragmentTestsBit
		srcAccess |= vk.AccessDepthStencilAttachmentWriteBit
		dstAccess |= vk.AccessDepthStencilAttachmentReadBit | vk.AccessDepthStencilAttachmentWriteBit
	}
	return vk.SubpassDependency{
		SrcSubpass:    vk.SubpassExternal,
		DstSubpass:    0,
		SrcStageMask:  vk.PipelineStageFlags(stages),
		DstStageMask:  vk.PipelineStageFlags(stages),
		SrcAccessMask: vk.AccessFlags(srcAccess),
		DstAccessMask: vk.AccessFlags(dstAccess),
	}
}

func (d *Device) DestroyRenderPass(rp gpu.RenderPass) {
	if pass, ok := d.passes[rp]; ok {
		vk.DestroyRenderPass(d.logical, pass.handle, nil)
		delete(d.passes, rp)
	}
}
