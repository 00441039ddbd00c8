package resource

import (
	"github.com/cockroachdb/errors"

	"github.com/spaghettifunk/prism/engine/core"
	"github.com/spaghettifunk/prism/engine/renderer/gpu"
)

type layoutPair struct {
	from, to gpu.Layout
}

type barrierMasks struct {
	srcStage  gpu.PipelineStage
	dstStage  gpu.PipelineStage
	srcAccess gpu.Access
	dstAccess gpu.Access
}

// transitions is every layout change the pipeline performs. Anything else
// is a design defect.
var transitions = map[layoutPair]barrierMasks{
	// texture uploads
	{gpu.LayoutUndefined, gpu.LayoutTransferDst}: {
		gpu.StageTopOfPipe, gpu.StageTransfer,
		gpu.AccessNone, gpu.AccessTransferWrite,
	},
	{gpu.LayoutTransferDst, gpu.LayoutShaderReadOnly}: {
		gpu.StageTransfer, gpu.StageFragmentShader,
		gpu.AccessTransferWrite, gpu.AccessShaderRead,
	},
	// first use of a render target, or a swapchain image after acquire. The
	// source stage is the stage frame submissions wait for the acquired
	// image at, so the layout change is ordered after the acquire.
	{gpu.LayoutUndefined, gpu.LayoutColorAttachment}: {
		gpu.StageColorAttachmentOutput, gpu.StageColorAttachmentOutput,
		gpu.AccessNone, gpu.AccessColorAttachmentRead | gpu.AccessColorAttachmentWrite,
	},
	{gpu.LayoutUndefined, gpu.LayoutDepthAttachment}: {
		gpu.StageTopOfPipe, gpu.StageEarlyFragmentTests | gpu.StageLateFragmentTests,
		gpu.AccessNone, gpu.AccessDepthAttachmentRead | gpu.AccessDepthAttachmentWrite,
	},
	// written by one pass, sampled by the next
	{gpu.LayoutColorAttachment, gpu.LayoutShaderReadOnly}: {
		gpu.StageColorAttachmentOutput, gpu.StageFragmentShader,
		gpu.AccessColorAttachmentWrite, gpu.AccessShaderRead,
	},
	// sampled last frame, written again this frame
	{gpu.LayoutShaderReadOnly, gpu.LayoutColorAttachment}: {
		gpu.StageFragmentShader, gpu.StageColorAttachmentOutput,
		gpu.AccessNone, gpu.AccessColorAttachmentRead | gpu.AccessColorAttachmentWrite,
	},
	{gpu.LayoutColorAttachment, gpu.LayoutPresentSrc}: {
		gpu.StageColorAttachmentOutput, gpu.StageBottomOfPipe,
		gpu.AccessColorAttachmentWrite, gpu.AccessNone,
	},
}

// BarrierFor returns the barrier moving img from one layout to another.
// Pairs outside the transition table return an error marked with
// core.ErrUnmodeledTransition.
func BarrierFor(img gpu.Image, aspect gpu.Aspect, from, to gpu.Layout) (gpu.ImageBarrier, error) {
	masks, ok := transitions[layoutPair{from, to}]
	if !ok {
		err := errors.AssertionFailedf("unexpected layout transition: %s -> %s", from, to)
		return gpu.ImageBarrier{}, errors.Mark(err, core.ErrUnmodeledTransition)
	}
	return gpu.ImageBarrier{
		Image:     img,
		Aspect:    aspect,
		OldLayout: from,
		NewLayout: to,
		SrcStage:  masks.srcStage,
		DstStage:  masks.dstStage,
		SrcAccess: masks.srcAccess,
		DstAccess: masks.dstAccess,
	}, nil
}

// TransitionTo records a barrier moving img to layout. It is a no-op when
// img is already in layout.
func (img *Image) TransitionTo(cb gpu.CommandBuffer, layout gpu.Layout) error {
	if img.layout == layout {
		return nil
	}
	b, err := BarrierFor(img.Handle(), img.Aspect(), img.layout, layout)
	if err != nil {
		return err
	}
	cb.PipelineBarrier(b)
	img.layout = layout
	return nil
}
