package vulkan

import (
	"testing"

	"github.com/cockroachdb/errors"
	vk "github.com/goki/vulkan"

	"github.com/spaghettifunk/prism/engine/renderer/gpu"
)

func TestResultErrorSentinels(t *testing.T) {
	tests := []struct {
		result vk.Result
		want   error
	}{
		{vk.ErrorOutOfDate, gpu.ErrSurfaceStale},
		{vk.Suboptimal, gpu.ErrSuboptimal},
		{vk.ErrorDeviceLost, gpu.ErrDeviceLost},
		{vk.ErrorSurfaceLost, gpu.ErrDeviceLost},
		{vk.Timeout, gpu.ErrTimeout},
		{vk.ErrorOutOfDeviceMemory, gpu.ErrOutOfMemory},
		{vk.ErrorOutOfPoolMemory, gpu.ErrOutOfMemory},
	}
	for _, tt := range tests {
		t.Run(VulkanResultString(tt.result), func(t *testing.T) {
			err := resultError(tt.result, "vkTest")
			if !errors.Is(err, tt.want) {
				t.Errorf("resultError(%s) = %v, want it marked %v", VulkanResultString(tt.result), err, tt.want)
			}
		})
	}

	if err := resultError(vk.Success, "vkTest"); err != nil {
		t.Errorf("resultError(VK_SUCCESS) = %v, want nil", err)
	}
	err := resultError(vk.ErrorFeatureNotPresent, "vkCreateDevice")
	if err == nil || gpu.NeedsRebuild(err) || errors.Is(err, gpu.ErrDeviceLost) {
		t.Errorf("unmapped result produced %v", err)
	}
}

func TestVulkanResultStringUnknown(t *testing.T) {
	if got := VulkanResultString(vk.Result(12345)); got != "VkResult(12345)" {
		t.Errorf("got %q", got)
	}
}

func TestFormatRoundTrip(t *testing.T) {
	for f := range formats {
		if got := fromVkFormat(toVkFormat(f)); got != f {
			t.Errorf("%s round-tripped to %s", f, got)
		}
	}
	if toVkFormat(gpu.FormatUndefined) != vk.FormatUndefined {
		t.Error("undefined format should map to VK_FORMAT_UNDEFINED")
	}
}

func TestDepthAspectAddsStencil(t *testing.T) {
	depth := vk.ImageAspectFlags(vk.ImageAspectDepthBit)
	stencil := vk.ImageAspectFlags(vk.ImageAspectStencilBit)
	if got := toVkAspect(gpu.AspectDepth, gpu.FormatD32Float); got != depth {
		t.Errorf("D32 aspect = %#x, want depth only", got)
	}
	if got := toVkAspect(gpu.AspectDepth, gpu.FormatD24UnormS8); got != depth|stencil {
		t.Errorf("D24S8 aspect = %#x, want depth|stencil", got)
	}
}

func TestStageAndAccessBits(t *testing.T) {
	stages := toVkStages(gpu.StageColorAttachmentOutput | gpu.StageFragmentShader)
	want := vk.PipelineStageFlags(vk.PipelineStageColorAttachmentOutputBit | vk.PipelineStageFragmentShaderBit)
	if stages != want {
		t.Errorf("stages = %#x, want %#x", stages, want)
	}
	if toVkAccess(gpu.AccessNone) != 0 {
		t.Error("AccessNone should map to no bits")
	}
	access := toVkAccess(gpu.AccessDepthAttachmentWrite)
	if access != vk.AccessFlags(vk.AccessDepthStencilAttachmentWriteBit) {
		t.Errorf("depth write access = %#x", access)
	}
}

func TestSafeStrings(t *testing.T) {
	if got := VulkanSafeString("main"); got != "main\x00" {
		t.Errorf("got %q", got)
	}
	if got := VulkanSafeString("main\x00"); got != "main\x00" {
		t.Errorf("already terminated string changed to %q", got)
	}
	in := []string{"a", "b"}
	out := VulkanSafeStrings(in)
	if in[0] != "a" || out[1] != "b\x00" {
		t.Errorf("VulkanSafeStrings(%q) = %q", in, out)
	}
	if got := cString([]byte{'g', 'p', 'u', 0, 'x'}); got != "gpu" {
		t.Errorf("cString = %q", got)
	}
}

func TestSpirvWords(t *testing.T) {
	words, err := spirvWords([]byte{0x03, 0x02, 0x23, 0x07, 1, 0, 0, 0})
	if err != nil {
		t.Fatal(err)
	}
	if words[0] != 0x07230203 || words[1] != 1 {
		t.Errorf("words = %#x", words)
	}
	if _, err := spirvWords([]byte{1, 2, 3}); err == nil {
		t.Error("unaligned SPIR-V accepted")
	}
}

func TestExternalDependencyMakesWritesAvailable(t *testing.T) {
	colorWrite := vk.AccessFlags(vk.AccessColorAttachmentWriteBit)
	depthWrite := vk.AccessFlags(vk.AccessDepthStencilAttachmentWriteBit)

	color := externalDependency(false)
	if color.SrcSubpass != vk.SubpassExternal {
		t.Errorf("source subpass = %d, want external", color.SrcSubpass)
	}
	if color.SrcAccessMask != colorWrite {
		t.Errorf("color pass source access = %#x, want color writes", color.SrcAccessMask)
	}

	depth := externalDependency(true)
	if depth.SrcAccessMask != colorWrite|depthWrite {
		t.Errorf("depth pass source access = %#x, want color and depth writes", depth.SrcAccessMask)
	}
	late := vk.PipelineStageFlags(vk.PipelineStageLateFragmentTestsBit)
	if depth.SrcStageMask&late == 0 {
		t.Errorf("depth pass source stages %#x miss late fragment tests", depth.SrcStageMask)
	}
}
