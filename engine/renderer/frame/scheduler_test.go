package frame

import (
	"fmt"
	"strings"
	"testing"

	"github.com/cockroachdb/errors"

	"github.com/spaghettifunk/prism/engine/core"
	"github.com/spaghettifunk/prism/engine/renderer/gpu"
	"github.com/spaghettifunk/prism/engine/renderer/gpu/gputest"
	"github.com/spaghettifunk/prism/engine/renderer/swapchain"
)

type fixture struct {
	dev       *gputest.Device
	display   *gputest.Display
	swapchain *swapchain.Manager
	scheduler *Scheduler
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	f := &fixture{dev: gputest.New(), display: gputest.NewDisplay(800, 600)}
	var err error
	if f.swapchain, err = swapchain.New(f.dev, f.display, swapchain.Config{}); err != nil {
		t.Fatal(err)
	}
	if f.scheduler, err = New(f.dev, f.swapchain, Config{FramesInFlight: 2}); err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() {
		f.scheduler.Destroy()
		f.swapchain.Destroy()
		if n := f.dev.Live(""); n != 0 {
			t.Errorf("%d objects leaked", n)
		}
	})
	return f
}

// render runs one full frame, drawing nothing but moving the swapchain
// image to the layout presentation expects.
func (f *fixture) render(t *testing.T) error {
	t.Helper()
	fr, err := f.scheduler.BeginFrame()
	if err != nil {
		return err
	}
	fr.Image.Discard()
	if err := fr.Image.TransitionTo(fr.Commands, gpu.LayoutColorAttachment); err != nil {
		t.Fatal(err)
	}
	if err := fr.Image.TransitionTo(fr.Commands, gpu.LayoutPresentSrc); err != nil {
		t.Fatal(err)
	}
	if err := f.scheduler.EndFrame(fr); err != nil {
		return err
	}
	return f.scheduler.Present(fr)
}

func indexOf(log []string, line string, from int) int {
	for i := from; i < len(log); i++ {
		if log[i] == line {
			return i
		}
	}
	return -1
}

func TestSlotReuseWaitsForItsFence(t *testing.T) {
	f := newFixture(t)
	for i := 0; i < 5; i++ {
		if err := f.render(t); err != nil {
			t.Fatalf("frame %d: %v", i, err)
		}
		if n := f.dev.InFlight(); n > 2 {
			t.Fatalf("frame %d: %d frames in flight", i, n)
		}
	}
	if f.dev.MaxInFlight != 2 {
		t.Errorf("max in flight = %d, want 2", f.dev.MaxInFlight)
	}
	if f.dev.Submits != 5 || f.dev.Presents != 5 {
		t.Errorf("submits = %d, presents = %d", f.dev.Submits, f.dev.Presents)
	}

	// Slot 0 carries submissions 1, 3 and 5. Its third submission must come
	// after the fence of the first was signaled.
	fence := f.scheduler.Slot(0).Fence
	log := f.dev.Log
	submit := fmt.Sprintf("fence=%d", fence)
	var submits []int
	for i, line := range log {
		if strings.HasPrefix(line, "submit cb=") && strings.HasSuffix(line, submit) {
			submits = append(submits, i)
		}
	}
	if len(submits) != 3 {
		t.Fatalf("slot 0 submitted %d times, want 3", len(submits))
	}
	signal := indexOf(log, fmt.Sprintf("signal fence=%d", fence), submits[0])
	if signal < 0 || signal > submits[1] {
		t.Errorf("fence signal at %d, second slot 0 submission at %d", signal, submits[1])
	}
	if len(f.dev.Violations) != 0 {
		t.Fatalf("violations: %v", f.dev.Violations)
	}
}

func TestSlotsAlternate(t *testing.T) {
	f := newFixture(t)
	var slots []int
	for i := 0; i < 4; i++ {
		slots = append(slots, f.scheduler.Current())
		if err := f.render(t); err != nil {
			t.Fatal(err)
		}
	}
	if fmt.Sprint(slots) != "[0 1 0 1]" {
		t.Errorf("slots = %v", slots)
	}
}

func TestStaleAcquireSkipsFrame(t *testing.T) {
	f := newFixture(t)
	f.dev.StaleAcquires = 1
	f.dev.Surface = gpu.Extent{Width: 1024, Height: 768}
	f.display.Size = f.dev.Surface

	err := f.render(t)
	if !errors.Is(err, core.ErrSwapchainBooting) {
		t.Fatalf("err = %v, want swapchain booting", err)
	}
	if f.dev.Submits != 0 {
		t.Errorf("skipped frame submitted %d times", f.dev.Submits)
	}
	if f.swapchain.Extent() != f.dev.Surface {
		t.Errorf("swapchain is %s after rebuild", f.swapchain.Extent())
	}
	if f.scheduler.Current() != 0 {
		t.Errorf("skipped frame advanced the slot")
	}
	if err := f.render(t); err != nil {
		t.Fatal(err)
	}
	if len(f.dev.Violations) != 0 {
		t.Fatalf("violations: %v", f.dev.Violations)
	}
}

func TestStalePresentRebuildsAndAdvances(t *testing.T) {
	for _, suboptimal := range []bool{false, true} {
		t.Run(fmt.Sprintf("suboptimal=%v", suboptimal), func(t *testing.T) {
			f := newFixture(t)
			if suboptimal {
				f.dev.SuboptimalPresents = 1
			} else {
				f.dev.StalePresents = 1
			}
			generation := f.swapchain.Generation()
			if err := f.render(t); err != nil {
				t.Fatalf("stale present is not an error: %v", err)
			}
			if f.swapchain.Generation() == generation {
				t.Error("present did not rebuild the swapchain")
			}
			if f.scheduler.Current() != 1 {
				t.Errorf("slot = %d, want 1", f.scheduler.Current())
			}
			for i := 0; i < 3; i++ {
				if err := f.render(t); err != nil {
					t.Fatal(err)
				}
			}
			if len(f.dev.Violations) != 0 {
				t.Fatalf("violations: %v", f.dev.Violations)
			}
		})
	}
}

func TestPendingResizeSkipsFrame(t *testing.T) {
	f := newFixture(t)
	if err := f.render(t); err != nil {
		t.Fatal(err)
	}
	f.dev.Surface = gpu.Extent{Width: 640, Height: 360}
	f.display.Size = f.dev.Surface
	f.swapchain.NotifyResize(f.display.Size)

	if err := f.render(t); !errors.Is(err, core.ErrSwapchainBooting) {
		t.Fatalf("err = %v, want swapchain booting", err)
	}
	if f.dev.IdleWaits != 1 {
		t.Errorf("idle waits = %d", f.dev.IdleWaits)
	}
	if err := f.render(t); err != nil {
		t.Fatal(err)
	}
}

func TestSubmitFailureIsFatal(t *testing.T) {
	f := newFixture(t)
	f.dev.SubmitErr = errors.New("VK_ERROR_DEVICE_LOST")
	err := f.render(t)
	if !errors.Is(err, gpu.ErrDeviceLost) {
		t.Fatalf("err = %v, want device lost", err)
	}
	if errors.Is(err, core.ErrSwapchainBooting) {
		t.Error("device loss reported as a skippable frame")
	}
}

func TestBeginFrameTwiceIsAnAssertion(t *testing.T) {
	f := newFixture(t)
	fr, err := f.scheduler.BeginFrame()
	if err != nil {
		t.Fatal(err)
	}
	if _, err := f.scheduler.BeginFrame(); !errors.HasAssertionFailure(err) {
		t.Errorf("err = %v, want assertion failure", err)
	}
	fr.Image.Discard()
	_ = fr.Image.TransitionTo(fr.Commands, gpu.LayoutColorAttachment)
	_ = fr.Image.TransitionTo(fr.Commands, gpu.LayoutPresentSrc)
	if err := f.scheduler.EndFrame(fr); err != nil {
		t.Fatal(err)
	}
	if err := f.scheduler.Present(fr); err != nil {
		t.Fatal(err)
	}
}

func TestNewRollsBackOnFailure(t *testing.T) {
	dev := gputest.New()
	sc, err := swapchain.New(dev, gputest.NewDisplay(800, 600), swapchain.Config{})
	if err != nil {
		t.Fatal(err)
	}
	before := dev.Live("")
	dev.FailNth("CreateSemaphore", 4)
	if _, err := New(dev, sc, Config{FramesInFlight: 2}); err == nil {
		t.Fatal("expected an error")
	}
	if n := dev.Live(""); n != before {
		t.Errorf("%d objects leaked", n-before)
	}
	sc.Destroy()
}
