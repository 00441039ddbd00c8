package resource

import (
	"testing"

	"github.com/cockroachdb/errors"

	"github.com/spaghettifunk/prism/engine/core"
	"github.com/spaghettifunk/prism/engine/renderer/gpu"
	"github.com/spaghettifunk/prism/engine/renderer/gpu/gputest"
)

func checkClean(t *testing.T, dev *gputest.Device) {
	t.Helper()
	if len(dev.Violations) != 0 {
		t.Fatalf("violations: %v", dev.Violations)
	}
}

func TestNewImageRollsBackOnFailure(t *testing.T) {
	tests := []struct {
		name string
		op   string
	}{
		{"image", "CreateImage"},
		{"memory", "AllocateImageMemory"},
		{"view", "CreateImageView"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dev := gputest.New()
			dev.FailNth(tt.op, 1)
			img, err := NewImage(dev, gpu.ImageDesc{
				Extent: gpu.Extent{Width: 4, Height: 4},
				Format: gpu.FormatRGBA8Unorm,
				Usage:  gpu.ImageUsageSampled,
			})
			if err == nil {
				t.Fatal("expected an error")
			}
			if img != nil {
				t.Fatal("partial image returned")
			}
			if !errors.Is(err, gpu.ErrOutOfMemory) {
				t.Errorf("error %v does not wrap the device error", err)
			}
			if n := dev.Live(""); n != 0 {
				t.Errorf("%d objects leaked", n)
			}
			checkClean(t, dev)
		})
	}
}

func TestNewBufferRollsBackOnFailure(t *testing.T) {
	dev := gputest.New()
	dev.FailNth("AllocateBufferMemory", 1)
	if _, err := NewBuffer(dev, gpu.BufferDesc{Size: 16}, gpu.MemoryHostVisible); err == nil {
		t.Fatal("expected an error")
	}
	if n := dev.Live(""); n != 0 {
		t.Errorf("%d objects leaked", n)
	}
	checkClean(t, dev)
}

func TestImageDestroyOrder(t *testing.T) {
	dev := gputest.New()
	img, err := NewImage(dev, gpu.ImageDesc{
		Extent: gpu.Extent{Width: 8, Height: 8},
		Format: gpu.FormatD32Float,
		Usage:  gpu.ImageUsageDepthAttachment,
	})
	if err != nil {
		t.Fatal(err)
	}
	if img.Aspect() != gpu.AspectDepth {
		t.Errorf("aspect = %v, want depth", img.Aspect())
	}
	img.Destroy()
	img.Destroy()
	if n := dev.Live(""); n != 0 {
		t.Errorf("%d objects leaked", n)
	}
	// the fake flags a view outliving its image and memory outliving its owner
	checkClean(t, dev)
}

func TestMoveTransfersOwnership(t *testing.T) {
	dev := gputest.New()
	buf, err := NewBuffer(dev, gpu.BufferDesc{Size: 64}, gpu.MemoryHostVisible)
	if err != nil {
		t.Fatal(err)
	}
	moved := buf.Move()
	if buf.Valid() {
		t.Fatal("source still valid after Move")
	}
	buf.Destroy()
	if dev.Live("Buffer") != 1 || dev.Live("Memory") != 1 {
		t.Fatal("destroying the moved-from buffer released resources")
	}
	if err := moved.Write(0, []byte{1, 2, 3}); err != nil {
		t.Fatalf("Write: %v", err)
	}
	moved.Destroy()
	if n := dev.Live(""); n != 0 {
		t.Errorf("%d objects leaked", n)
	}
	checkClean(t, dev)
}

func TestCopyIsDetected(t *testing.T) {
	dev := gputest.New()
	buf, err := NewBuffer(dev, gpu.BufferDesc{Size: 4}, gpu.MemoryHostVisible)
	if err != nil {
		t.Fatal(err)
	}
	defer buf.Destroy()

	defer func() {
		if recover() == nil {
			t.Fatal("using a copied buffer did not panic")
		}
	}()
	copied := new(Buffer)
	*copied = *buf
	copied.Handle()
}

func TestSwapchainImageDestroysOnlyView(t *testing.T) {
	dev := gputest.New()
	sc, images, err := dev.CreateSwapchain(gpu.SwapchainDesc{
		Extent:     gpu.Extent{Width: 10, Height: 10},
		Format:     gpu.FormatBGRA8Srgb,
		ImageCount: 2,
	})
	if err != nil {
		t.Fatal(err)
	}
	img, err := WrapSwapchainImage(dev, images[0], gpu.Extent{Width: 10, Height: 10}, gpu.FormatBGRA8Srgb)
	if err != nil {
		t.Fatal(err)
	}
	img.Destroy()
	dev.DestroySwapchain(sc)
	checkClean(t, dev)
}

func TestBarrierForUnmodeledTransition(t *testing.T) {
	_, err := BarrierFor(1, gpu.AspectColor, gpu.LayoutPresentSrc, gpu.LayoutTransferDst)
	if err == nil {
		t.Fatal("expected an error")
	}
	if !errors.Is(err, core.ErrUnmodeledTransition) {
		t.Errorf("error %v is not marked as an unmodeled transition", err)
	}
	if !core.IsFatal(err) {
		t.Error("unmodeled transition is not fatal")
	}
}

func TestBarrierForModeledTransitions(t *testing.T) {
	tests := []struct {
		from, to           gpu.Layout
		srcStage, dstStage gpu.PipelineStage
	}{
		{gpu.LayoutUndefined, gpu.LayoutTransferDst, gpu.StageTopOfPipe, gpu.StageTransfer},
		{gpu.LayoutTransferDst, gpu.LayoutShaderReadOnly, gpu.StageTransfer, gpu.StageFragmentShader},
		// An acquired swapchain image is only released at the stage the
		// submission waits for the acquire semaphore.
		{gpu.LayoutUndefined, gpu.LayoutColorAttachment, gpu.StageColorAttachmentOutput, gpu.StageColorAttachmentOutput},
		{gpu.LayoutColorAttachment, gpu.LayoutShaderReadOnly, gpu.StageColorAttachmentOutput, gpu.StageFragmentShader},
		{gpu.LayoutShaderReadOnly, gpu.LayoutColorAttachment, gpu.StageFragmentShader, gpu.StageColorAttachmentOutput},
		{gpu.LayoutColorAttachment, gpu.LayoutPresentSrc, gpu.StageColorAttachmentOutput, gpu.StageBottomOfPipe},
	}
	for _, tt := range tests {
		b, err := BarrierFor(7, gpu.AspectColor, tt.from, tt.to)
		if err != nil {
			t.Errorf("%s -> %s: %v", tt.from, tt.to, err)
			continue
		}
		if b.SrcStage&tt.srcStage == 0 {
			t.Errorf("%s -> %s: src stage %b", tt.from, tt.to, b.SrcStage)
		}
		if b.DstStage&tt.dstStage == 0 {
			t.Errorf("%s -> %s: dst stage %b", tt.from, tt.to, b.DstStage)
		}
		if b.OldLayout != tt.from || b.NewLayout != tt.to || b.Image != 7 {
			t.Errorf("barrier = %+v", b)
		}
	}
}

func TestUploaderTexture(t *testing.T) {
	dev := gputest.New()
	up := NewUploader(dev)
	extent := gpu.Extent{Width: 2, Height: 2}
	img, err := up.Texture(make([]byte, 16), extent, gpu.FormatRGBA8Srgb)
	if err != nil {
		t.Fatal(err)
	}
	if img.Layout() != gpu.LayoutShaderReadOnly {
		t.Errorf("layout = %s", img.Layout())
	}
	if dev.ImageLayout(img.Handle()) != gpu.LayoutShaderReadOnly {
		t.Errorf("device layout = %s", dev.ImageLayout(img.Handle()))
	}
	if dev.Uploads != 1 {
		t.Errorf("uploads = %d", dev.Uploads)
	}
	// the staging buffer is gone, only the image remains
	if dev.Live("Buffer") != 0 || dev.Live("CommandBuffer") != 0 {
		t.Errorf("staging resources leaked: %d buffers", dev.Live("Buffer"))
	}
	img.Destroy()
	checkClean(t, dev)
}

func TestUploaderTextureRejectsShortPixels(t *testing.T) {
	dev := gputest.New()
	if _, err := NewUploader(dev).Texture(make([]byte, 3), gpu.Extent{Width: 1, Height: 1}, gpu.FormatRGBA8Srgb); err == nil {
		t.Fatal("expected an error")
	}
	if n := dev.Live(""); n != 0 {
		t.Errorf("%d objects leaked", n)
	}
}

func TestUploaderBufferFailureLeavesNothing(t *testing.T) {
	dev := gputest.New()
	dev.FailNth("SubmitAndWait", 1)
	if _, err := NewUploader(dev).Buffer(make([]byte, 32), gpu.BufferUsageVertex); err == nil {
		t.Fatal("expected an error")
	}
	if n := dev.Live(""); n != 0 {
		t.Errorf("%d objects leaked", n)
	}
	checkClean(t, dev)
}
