// Package frame runs the per-frame acquire, submit and present protocol
// over a fixed ring of frame slots.
package frame

import (
	"time"

	"github.com/cockroachdb/errors"
	"github.com/loov/hrtime"

	"github.com/spaghettifunk/prism/engine/core"
	"github.com/spaghettifunk/prism/engine/renderer/gpu"
	"github.com/spaghettifunk/prism/engine/renderer/resource"
	"github.com/spaghettifunk/prism/engine/renderer/swapchain"
)

// AcquireWaitStage is the stage frame submissions wait for the acquired
// swapchain image at. The first transition of the image must start there.
const AcquireWaitStage = gpu.StageColorAttachmentOutput

type Config struct {
	FramesInFlight int
	// FenceTimeout bounds the slot fence and image acquire waits.
	FenceTimeout time.Duration
}

// Slot holds the synchronization objects and commands of one frame in
// flight. Its fence is signaled whenever the GPU is done with the slot.
type Slot struct {
	Fence          gpu.Fence
	ImageAcquired  gpu.Semaphore
	RenderFinished gpu.Semaphore
	Commands       gpu.CommandBuffer
}

// Frame is handed out by BeginFrame and must be passed to EndFrame and
// Present in that order.
type Frame struct {
	// Number counts frames started since creation.
	Number uint64
	Slot   int
	// ImageIndex is the acquired swapchain image.
	ImageIndex uint32
	Image      *resource.Image
	Commands   gpu.CommandBuffer
	submitted  bool
}

type Scheduler struct {
	dev       gpu.Device
	swapchain *swapchain.Manager
	config    Config

	slots   []*Slot
	current int
	number  uint64
	active  *Frame

	// imagesInFlight maps a swapchain image to the fence of the slot that
	// last rendered to it.
	imagesInFlight []gpu.Fence
	generation     uint64
	rebuildAfter   bool

	fenceWait time.Duration
}

// New creates FramesInFlight slots. Fences start signaled so the first use
// of every slot does not block.
func New(dev gpu.Device, sc *swapchain.Manager, config Config) (*Scheduler, error) {
	if config.FramesInFlight < 1 {
		return nil, errors.Newf("invalid frames in flight: %d", config.FramesInFlight)
	}
	if config.FenceTimeout == 0 {
		config.FenceTimeout = core.Forever
	}
	s := &Scheduler{dev: dev, swapchain: sc, config: config}
	for i := 0; i < config.FramesInFlight; i++ {
		slot, err := s.newSlot()
		if err != nil {
			s.Destroy()
			return nil, errors.Wrapf(err, "creating frame slot %d", i)
		}
		s.slots = append(s.slots, slot)
	}
	s.resetImages()
	return s, nil
}

func (s *Scheduler) newSlot() (*Slot, error) {
	slot := &Slot{}
	var err error
	if slot.Fence, err = s.dev.CreateFence(true); err != nil {
		return nil, err
	}
	if slot.ImageAcquired, err = s.dev.CreateSemaphore(); err != nil {
		s.destroySlot(slot)
		return nil, err
	}
	if slot.RenderFinished, err = s.dev.CreateSemaphore(); err != nil {
		s.destroySlot(slot)
		return nil, err
	}
	if slot.Commands, err = s.dev.AllocateCommandBuffer(); err != nil {
		s.destroySlot(slot)
		return nil, err
	}
	return slot, nil
}

func (s *Scheduler) destroySlot(slot *Slot) {
	if slot.Commands != nil {
		s.dev.FreeCommandBuffer(slot.Commands)
	}
	if slot.RenderFinished != 0 {
		s.dev.DestroySemaphore(slot.RenderFinished)
	}
	if slot.ImageAcquired != 0 {
		s.dev.DestroySemaphore(slot.ImageAcquired)
	}
	if slot.Fence != 0 {
		s.dev.DestroyFence(slot.Fence)
	}
}

func (s *Scheduler) resetImages() {
	s.imagesInFlight = make([]gpu.Fence, s.swapchain.ImageCount())
	s.generation = s.swapchain.Generation()
}

// fatal marks err as device loss. Anything but a stale surface reaching the
// scheduler means the device can no longer be trusted.
func fatal(err error, format string, args ...interface{}) error {
	return errors.Mark(errors.Wrapf(err, format, args...), gpu.ErrDeviceLost)
}

func (s *Scheduler) rebuild() error {
	if err := s.swapchain.Rebuild(); err != nil {
		return err
	}
	s.resetImages()
	s.rebuildAfter = false
	return nil
}

// BeginFrame waits for the current slot to retire, acquires a swapchain
// image and starts recording. It returns core.ErrSwapchainBooting when the
// tick must be skipped because the swapchain was rebuilt.
func (s *Scheduler) BeginFrame() (*Frame, error) {
	if s.active != nil {
		return nil, errors.AssertionFailedf("BeginFrame called with frame %d still open", s.active.Number)
	}
	if s.swapchain.Pending() {
		if err := s.rebuild(); err != nil {
			return nil, err
		}
		return nil, core.ErrSwapchainBooting
	}

	slot := s.slots[s.current]
	start := hrtime.Now()
	if err := s.dev.WaitFence(slot.Fence, s.config.FenceTimeout); err != nil {
		return nil, fatal(err, "waiting for frame slot %d", s.current)
	}
	s.fenceWait = hrtime.Since(start)

	index, err := s.dev.AcquireNextImage(s.swapchain.Swapchain(), s.config.FenceTimeout, slot.ImageAcquired)
	switch {
	case errors.Is(err, gpu.ErrSurfaceStale):
		core.LogDebug("swapchain out of date on acquire, rebuilding")
		if err := s.rebuild(); err != nil {
			return nil, err
		}
		return nil, core.ErrSwapchainBooting
	case errors.Is(err, gpu.ErrSuboptimal):
		s.rebuildAfter = true
	case err != nil:
		return nil, fatal(err, "acquiring swapchain image")
	}

	if s.generation != s.swapchain.Generation() {
		s.resetImages()
	}
	if f := s.imagesInFlight[index]; f != 0 && f != slot.Fence {
		if err := s.dev.WaitFence(f, s.config.FenceTimeout); err != nil {
			return nil, fatal(err, "waiting for swapchain image %d", index)
		}
	}
	s.imagesInFlight[index] = slot.Fence

	if err := slot.Commands.Reset(); err != nil {
		return nil, fatal(err, "resetting commands of slot %d", s.current)
	}
	if err := slot.Commands.Begin(false); err != nil {
		return nil, fatal(err, "beginning commands of slot %d", s.current)
	}
	s.number++
	s.active = &Frame{
		Number:     s.number,
		Slot:       s.current,
		ImageIndex: index,
		Image:      s.swapchain.Image(index),
		Commands:   slot.Commands,
	}
	return s.active, nil
}

// EndFrame finishes recording and submits the frame. The submission waits
// for the acquired image and signals the slot fence on completion.
func (s *Scheduler) EndFrame(f *Frame) error {
	if f != s.active || f.submitted {
		return errors.AssertionFailedf("EndFrame on a frame that is not open")
	}
	slot := s.slots[f.Slot]
	if err := f.Commands.End(); err != nil {
		return fatal(err, "ending commands of slot %d", f.Slot)
	}
	if err := s.dev.ResetFence(slot.Fence); err != nil {
		return fatal(err, "resetting fence of slot %d", f.Slot)
	}
	err := s.dev.Submit(gpu.SubmitInfo{
		Commands:  f.Commands,
		Wait:      slot.ImageAcquired,
		WaitStage: AcquireWaitStage,
		Signal:    slot.RenderFinished,
		Fence:     slot.Fence,
	})
	if err != nil {
		return fatal(err, "submitting frame %d", f.Number)
	}
	f.submitted = true
	return nil
}

// Present hands the image to the display once rendering finished, and
// advances to the next slot whatever the outcome. A stale or suboptimal
// surface triggers a rebuild and is not an error.
func (s *Scheduler) Present(f *Frame) error {
	if f != s.active || !f.submitted {
		return errors.AssertionFailedf("Present on a frame that was not submitted")
	}
	slot := s.slots[f.Slot]
	err := s.dev.Present(s.swapchain.Swapchain(), f.ImageIndex, slot.RenderFinished)
	s.active = nil
	s.current = (s.current + 1) % len(s.slots)

	switch {
	case gpu.NeedsRebuild(err), err == nil && (s.rebuildAfter || s.swapchain.Pending()):
		if err != nil {
			core.LogDebug("swapchain %s on present, rebuilding", err)
		}
		return s.rebuild()
	case err != nil:
		return fatal(err, "presenting frame %d", f.Number)
	}
	return nil
}

// Slot returns frame slot i.
func (s *Scheduler) Slot(i int) *Slot {
	return s.slots[i]
}

func (s *Scheduler) Current() int {
	return s.current
}

func (s *Scheduler) FramesInFlight() int {
	return len(s.slots)
}

// FenceWait is how long the last BeginFrame blocked on its slot fence.
func (s *Scheduler) FenceWait() time.Duration {
	return s.fenceWait
}

// Destroy waits for the GPU and releases every slot.
func (s *Scheduler) Destroy() {
	if err := s.dev.WaitIdle(); err != nil {
		core.LogError("wait idle before destroying frame slots: %s", err)
	}
	for _, slot := range s.slots {
		s.destroySlot(slot)
	}
	s.slots = nil
}
