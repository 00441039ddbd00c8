package swapchain

import (
	"github.com/cockroachdb/errors"

	"github.com/spaghettifunk/prism/engine/core"
	"github.com/spaghettifunk/prism/engine/renderer/gpu"
)

// preferredFormats in order. The composite pass applies gamma itself, so
// UNORM surfaces come first.
var preferredFormats = []gpu.Format{
	gpu.FormatBGRA8Unorm,
	gpu.FormatRGBA8Unorm,
	gpu.FormatBGRA8Srgb,
	gpu.FormatRGBA8Srgb,
}

func chooseFormat(caps gpu.SurfaceCapabilities) (gpu.Format, error) {
	for _, want := range preferredFormats {
		for _, f := range caps.Formats {
			if f == want {
				return f, nil
			}
		}
	}
	if len(caps.Formats) == 0 {
		return gpu.FormatUndefined, errors.New("surface reports no formats")
	}
	return caps.Formats[0], nil
}

// choosePresentMode returns preferred when supported. FIFO is always
// available.
func choosePresentMode(caps gpu.SurfaceCapabilities, preferred gpu.PresentMode) gpu.PresentMode {
	for _, m := range caps.PresentModes {
		if m == preferred {
			return m
		}
	}
	return gpu.PresentFifo
}

// undefinedExtent is reported by surfaces whose size follows the swapchain.
const undefinedExtent = ^uint32(0)

func chooseExtent(caps gpu.SurfaceCapabilities, drawable gpu.Extent) gpu.Extent {
	if caps.CurrentExtent.Width != undefinedExtent {
		return caps.CurrentExtent
	}
	return gpu.Extent{
		Width:  core.Clamp(drawable.Width, caps.MinExtent.Width, caps.MaxExtent.Width),
		Height: core.Clamp(drawable.Height, caps.MinExtent.Height, caps.MaxExtent.Height),
	}
}

func chooseImageCount(caps gpu.SurfaceCapabilities) uint32 {
	count := caps.MinImageCount + 1
	if caps.MaxImageCount > 0 && count > caps.MaxImageCount {
		count = caps.MaxImageCount
	}
	return count
}
