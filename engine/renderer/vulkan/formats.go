package vulkan

import (
	vk "github.com/goki/vulkan"

	"github.com/spaghettifunk/prism/engine/renderer/gpu"
)

var formats = map[gpu.Format]vk.Format{
	gpu.FormatRGBA8Unorm:  vk.FormatR8g8b8a8Unorm,
	gpu.FormatRGBA8Srgb:   vk.FormatR8g8b8a8Srgb,
	gpu.FormatBGRA8Unorm:  vk.FormatB8g8r8a8Unorm,
	gpu.FormatBGRA8Srgb:   vk.FormatB8g8r8a8Srgb,
	gpu.FormatRGBA16Float: vk.FormatR16g16b16a16Sfloat,
	gpu.FormatD32Float:    vk.FormatD32Sfloat,
	gpu.FormatD32FloatS8:  vk.FormatD32SfloatS8Uint,
	gpu.FormatD24UnormS8:  vk.FormatD24UnormS8Uint,
}

func toVkFormat(f gpu.Format) vk.Format {
	if v, ok := formats[f]; ok {
		return v
	}
	return vk.FormatUndefined
}

func fromVkFormat(f vk.Format) gpu.Format {
	for g, v := range formats {
		if v == f {
			return g
		}
	}
	return gpu.FormatUndefined
}

func hasStencil(f gpu.Format) bool {
	return f == gpu.FormatD32FloatS8 || f == gpu.FormatD24UnormS8
}

func toVkLayout(l gpu.Layout) vk.ImageLayout {
	switch l {
	case gpu.LayoutTransferDst:
		return vk.ImageLayoutTransferDstOptimal
	case gpu.LayoutShaderReadOnly:
		return vk.ImageLayoutShaderReadOnlyOptimal
	case gpu.LayoutColorAttachment:
		return vk.ImageLayoutColorAttachmentOptimal
	case gpu.LayoutDepthAttachment:
		return vk.ImageLayoutDepthStencilAttachmentOptimal
	case gpu.LayoutPresentSrc:
		return vk.ImageLayoutPresentSrc
	}
	return vk.ImageLayoutUndefined
}

func toVkAspect(a gpu.Aspect, f gpu.Format) vk.ImageAspectFlags {
	var flags vk.ImageAspectFlags
	if a&gpu.AspectColor != 0 {
		flags |= vk.ImageAspectFlags(vk.ImageAspectColorBit)
	}
	if a&gpu.AspectDepth != 0 {
		flags |= vk.ImageAspectFlags(vk.ImageAspectDepthBit)
		if hasStencil(f) {
			flags |= vk.ImageAspectFlags(vk.ImageAspectStencilBit)
		}
	}
	return flags
}

func toVkStages(s gpu.PipelineStage) vk.PipelineStageFlags {
	var flags vk.PipelineStageFlagBits
	if s&gpu.StageTopOfPipe != 0 {
		flags |= vk.PipelineStageTopOfPipeBit
	}
	if s&gpu.StageTransfer != 0 {
		flags |= vk.PipelineStageTransferBit
	}
	if s&gpu.StageFragmentShader != 0 {
		flags |= vk.PipelineStageFragmentShaderBit
	}
	if s&gpu.StageEarlyFragmentTests != 0 {
		flags |= vk.PipelineStageEarlyFragmentTestsBit
	}
	if s&gpu.StageLateFragmentTests != 0 {
		flags |= vk.PipelineStageLateFragmentTestsBit
	}
	if s&gpu.StageColorAttachmentOutput != 0 {
		flags |= vk.PipelineStageColorAttachmentOutputBit
	}
	if s&gpu.StageBottomOfPipe != 0 {
		flags |= vk.PipelineStageBottomOfPipeBit
	}
	return vk.PipelineStageFlags(flags)
}

func toVkAccess(a gpu.Access) vk.AccessFlags {
	var flags vk.AccessFlagBits
	if a&gpu.AccessTransferWrite != 0 {
		flags |= vk.AccessTransferWriteBit
	}
	if a&gpu.AccessShaderRead != 0 {
		flags |= vk.AccessShaderReadBit
	}
	if a&gpu.AccessColorAttachmentRead != 0 {
		flags |= vk.AccessColorAttachmentReadBit
	}
	if a&gpu.AccessColorAttachmentWrite != 0 {
		flags |= vk.AccessColorAttachmentWriteBit
	}
	if a&gpu.AccessDepthAttachmentRead != 0 {
		flags |= vk.AccessDepthStencilAttachmentReadBit
	}
	if a&gpu.AccessDepthAttachmentWrite != 0 {
		flags |= vk.AccessDepthStencilAttachmentWriteBit
	}
	return vk.AccessFlags(flags)
}

func toVkBufferUsage(u gpu.BufferUsage) vk.BufferUsageFlags {
	var flags vk.BufferUsageFlagBits
	if u&gpu.BufferUsageTransferSrc != 0 {
		flags |= vk.BufferUsageTransferSrcBit
	}
	if u&gpu.BufferUsageTransferDst != 0 {
		flags |= vk.BufferUsageTransferDstBit
	}
	if u&gpu.BufferUsageVertex != 0 {
		flags |= vk.BufferUsageVertexBufferBit
	}
	if u&gpu.BufferUsageIndex != 0 {
		flags |= vk.BufferUsageIndexBufferBit
	}
	return vk.BufferUsageFlags(flags)
}

func toVkImageUsage(u gpu.ImageUsage) vk.ImageUsageFlags {
	var flags vk.ImageUsageFlagBits
	if u&gpu.ImageUsageTransferDst != 0 {
		flags |= vk.ImageUsageTransferDstBit
	}
	if u&gpu.ImageUsageSampled != 0 {
		flags |= vk.ImageUsageSampledBit
	}
	if u&gpu.ImageUsageColorAttachment != 0 {
		flags |= vk.ImageUsageColorAttachmentBit
	}
	if u&gpu.ImageUsageDepthAttachment != 0 {
		flags |= vk.ImageUsageDepthStencilAttachmentBit
	}
	return vk.ImageUsageFlags(flags)
}

func toVkLoadOp(op gpu.LoadOp) vk.AttachmentLoadOp {
	switch op {
	case gpu.LoadOpLoad:
		return vk.AttachmentLoadOpLoad
	case gpu.LoadOpDontCare:
		return vk.AttachmentLoadOpDontCare
	}
	return vk.AttachmentLoadOpClear
}

func toVkPresentMode(m gpu.PresentMode) vk.PresentMode {
	if m == gpu.PresentMailbox {
		return vk.PresentModeMailbox
	}
	return vk.PresentModeFifo
}

func toVkFilter(f gpu.Filter) vk.Filter {
	if f == gpu.FilterNearest {
		return vk.FilterNearest
	}
	return vk.FilterLinear
}

func toVkAddressMode(m gpu.AddressMode) vk.SamplerAddressMode {
	if m == gpu.AddressClampToEdge {
		return vk.SamplerAddressModeClampToEdge
	}
	return vk.SamplerAddressModeRepeat
}

// memoryProperties returns the property flags a MemoryKind needs. Host
// memory is coherent so writes need no flush.
func memoryProperties(kind gpu.MemoryKind) vk.MemoryPropertyFlags {
	if kind == gpu.MemoryHostVisible {
		return vk.MemoryPropertyFlags(vk.MemoryPropertyHostVisibleBit | vk.MemoryPropertyHostCoherentBit)
	}
	return vk.MemoryPropertyFlags(vk.MemoryPropertyDeviceLocalBit)
}
