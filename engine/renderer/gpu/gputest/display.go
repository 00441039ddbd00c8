package gputest

import "github.com/spaghettifunk/prism/engine/renderer/gpu"

// Display is a scripted window. Tests set Size directly, or restore it from
// OnWait to simulate a window coming back from minimized.
type Display struct {
	Size    gpu.Extent
	Closing bool
	Waits   int
	OnWait  func(d *Display)
}

func NewDisplay(width, height uint32) *Display {
	return &Display{Size: gpu.Extent{Width: width, Height: height}}
}

func (d *Display) DrawableSize() gpu.Extent {
	return d.Size
}

func (d *Display) WaitEvents() {
	d.Waits++
	if d.OnWait != nil {
		d.OnWait(d)
	}
}

func (d *Display) ShouldClose() bool {
	return d.Closing
}
