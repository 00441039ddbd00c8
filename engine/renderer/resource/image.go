package resource

import (
	"github.com/cockroachdb/errors"

	"github.com/spaghettifunk/prism/engine/renderer/gpu"
)

// Image owns a GPU image, its memory and a default view. It also tracks the
// layout the image will be in once previously recorded commands execute.
type Image struct {
	nc       noCopy
	dev      gpu.Device
	handle   gpu.Image
	memory   gpu.Memory
	view     gpu.ImageView
	extent   gpu.Extent
	format   gpu.Format
	layout   gpu.Layout
	borrowed bool
}

func aspectOf(format gpu.Format) gpu.Aspect {
	if format.IsDepth() {
		return gpu.AspectDepth
	}
	return gpu.AspectColor
}

// NewImage creates a device-local image with memory and a default view.
// On error nothing is left allocated.
func NewImage(dev gpu.Device, desc gpu.ImageDesc) (*Image, error) {
	if desc.Extent.IsZero() {
		return nil, errors.Newf("refusing to create a %s image", desc.Extent)
	}
	handle, err := dev.CreateImage(desc)
	if err != nil {
		return nil, errors.Wrapf(err, "creating %s %s image", desc.Extent, desc.Format)
	}
	memory, err := dev.AllocateImageMemory(handle, gpu.MemoryDeviceLocal)
	if err != nil {
		dev.DestroyImage(handle)
		return nil, errors.Wrapf(err, "allocating memory for %s image", desc.Extent)
	}
	view, err := dev.CreateImageView(handle, gpu.ViewDesc{Format: desc.Format, Aspect: aspectOf(desc.Format)})
	if err != nil {
		dev.DestroyImage(handle)
		dev.FreeMemory(memory)
		return nil, errors.Wrap(err, "creating image view")
	}
	img := &Image{
		dev:    dev,
		handle: handle,
		memory: memory,
		view:   view,
		extent: desc.Extent,
		format: desc.Format,
	}
	img.nc.check()
	return img, nil
}

// WrapSwapchainImage creates a view for an image owned by a swapchain.
// Destroy releases only the view.
func WrapSwapchainImage(dev gpu.Device, handle gpu.Image, extent gpu.Extent, format gpu.Format) (*Image, error) {
	view, err := dev.CreateImageView(handle, gpu.ViewDesc{Format: format, Aspect: gpu.AspectColor})
	if err != nil {
		return nil, errors.Wrap(err, "creating swapchain image view")
	}
	img := &Image{
		dev:      dev,
		handle:   handle,
		view:     view,
		extent:   extent,
		format:   format,
		borrowed: true,
	}
	img.nc.check()
	return img, nil
}

func (img *Image) Handle() gpu.Image {
	img.nc.check()
	return img.handle
}

func (img *Image) View() gpu.ImageView {
	img.nc.check()
	return img.view
}

func (img *Image) Extent() gpu.Extent {
	return img.extent
}

func (img *Image) Format() gpu.Format {
	return img.format
}

func (img *Image) Aspect() gpu.Aspect {
	return aspectOf(img.format)
}

func (img *Image) Layout() gpu.Layout {
	return img.layout
}

func (img *Image) Valid() bool {
	return img != nil && img.handle != 0
}

// Discard forgets the image contents. The next transition starts from
// LayoutUndefined.
func (img *Image) Discard() {
	img.layout = gpu.LayoutUndefined
}

// Move transfers ownership to the returned Image. img no longer destroys
// anything.
func (img *Image) Move() *Image {
	img.nc.check()
	moved := &Image{
		dev:      img.dev,
		handle:   img.handle,
		memory:   img.memory,
		view:     img.view,
		extent:   img.extent,
		format:   img.format,
		layout:   img.layout,
		borrowed: img.borrowed,
	}
	moved.nc.check()
	img.handle, img.memory, img.view = 0, 0, 0
	return moved
}

// Destroy releases the view, then the image, then its memory. Safe to call
// more than once and on moved-from images.
func (img *Image) Destroy() {
	if img == nil {
		return
	}
	img.nc.check()
	if img.view != 0 {
		img.dev.DestroyImageView(img.view)
		img.view = 0
	}
	if img.handle != 0 && !img.borrowed {
		img.dev.DestroyImage(img.handle)
	}
	img.handle = 0
	if img.memory != 0 {
		img.dev.FreeMemory(img.memory)
		img.memory = 0
	}
}
