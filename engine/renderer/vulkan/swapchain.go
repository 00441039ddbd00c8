package vulkan

import (
	"math"
	"time"

	"github.com/cockroachdb/errors"
	vk "github.com/goki/vulkan"

	"github.com/spaghettifunk/prism/engine/core"
	"github.com/spaghettifunk/prism/engine/renderer/gpu"
)

type swapchain struct {
	handle vk.Swapchain
	images []gpu.Image
}

func (d *Device) SurfaceCapabilities() (gpu.SurfaceCapabilities, error) {
	support, err := querySwapchainSupport(d.physical, d.surface)
	if err != nil {
		return gpu.SurfaceCapabilities{}, err
	}
	c := support.capabilities
	caps := gpu.SurfaceCapabilities{
		CurrentExtent: gpu.Extent{Width: c.CurrentExtent.Width, Height: c.CurrentExtent.Height},
		MinExtent:     gpu.Extent{Width: c.MinImageExtent.Width, Height: c.MinImageExtent.Height},
		MaxExtent:     gpu.Extent{Width: c.MaxImageExtent.Width, Height: c.MaxImageExtent.Height},
		MinImageCount: c.MinImageCount,
		MaxImageCount: c.MaxImageCount,
	}
	for _, f := range support.formats {
		if f.ColorSpace != vk.ColorSpaceSrgbNonlinear {
			continue
		}
		if g := fromVkFormat(f.Format); g != gpu.FormatUndefined {
			caps.Formats = append(caps.Formats, g)
		}
	}
	for _, m := range support.presentModes {
		switch m {
		case vk.PresentModeFifo:
			caps.PresentModes = append(caps.PresentModes, gpu.PresentFifo)
		case vk.PresentModeMailbox:
			caps.PresentModes = append(caps.PresentModes, gpu.PresentMailbox)
		}
	}
	return caps, nil
}

// CreateSwapchain creates the swapchain and registers its images. The
// images belong to the swapchain and go away with DestroySwapchain.
func (d *Device) CreateSwapchain(desc gpu.SwapchainDesc) (gpu.Swapchain, []gpu.Image, error) {
	support, err := querySwapchainSupport(d.physical, d.surface)
	if err != nil {
		return 0, nil, err
	}

	info := vk.SwapchainCreateInfo{
		SType:            vk.StructureTypeSwapchainCreateInfo,
		Surface:          d.surface,
		MinImageCount:    desc.ImageCount,
		ImageFormat:      toVkFormat(desc.Format),
		ImageColorSpace:  vk.ColorSpaceSrgbNonlinear,
		ImageExtent:      vk.Extent2D{Width: desc.Extent.Width, Height: desc.Extent.Height},
		ImageArrayLayers: 1,
		ImageUsage:       vk.ImageUsageFlags(vk.ImageUsageColorAttachmentBit),
		PreTransform:     support.capabilities.CurrentTransform,
		CompositeAlpha:   vk.CompositeAlphaOpaqueBit,
		PresentMode:      toVkPresentMode(desc.PresentMode),
		Clipped:          vk.True,
	}
	if d.queues.graphics != d.queues.present {
		info.ImageSharingMode = vk.SharingModeConcurrent
		info.QueueFamilyIndexCount = 2
		info.PQueueFamilyIndices = []uint32{uint32(d.queues.graphics), uint32(d.queues.present)}
	} else {
		info.ImageSharingMode = vk.SharingModeExclusive
	}
	if old, ok := d.swapchains[desc.Old]; ok {
		info.OldSwapchain = old.handle
	}

	var handle vk.Swapchain
	if err := resultError(vk.CreateSwapchain(d.logical, &info, nil, &handle), "vkCreateSwapchainKHR"); err != nil {
		return 0, nil, err
	}

	var count uint32
	if err := resultError(vk.GetSwapchainImages(d.logical, handle, &count, nil), "vkGetSwapchainImagesKHR"); err != nil {
		vk.DestroySwapchain(d.logical, handle, nil)
		return 0, nil, err
	}
	raw := make([]vk.Image, count)
	if err := resultError(vk.GetSwapchainImages(d.logical, handle, &count, raw), "vkGetSwapchainImagesKHR"); err != nil {
		vk.DestroySwapchain(d.logical, handle, nil)
		return 0, nil, err
	}

	sc := &swapchain{handle: handle, images: make([]gpu.Image, count)}
	for i, img := range raw {
		h := gpu.Image(d.handle())
		d.images[h] = &image{handle: img, format: desc.Format, swapchain: true}
		sc.images[i] = h
	}
	h := gpu.Swapchain(d.handle())
	d.swapchains[h] = sc
	core.LogInfo("Swapchain created: %s, %d images, format %s.", desc.Extent, count, desc.Format)
	return h, append([]gpu.Image(nil), sc.images...), nil
}

func (d *Device) DestroySwapchain(h gpu.Swapchain) {
	sc, ok := d.swapchains[h]
	if !ok {
		return
	}
	for _, img := range sc.images {
		delete(d.images, img)
	}
	vk.DestroySwapchain(d.logical, sc.handle, nil)
	delete(d.swapchains, h)
}

func (d *Device) AcquireNextImage(h gpu.Swapchain, timeout time.Duration, signal gpu.Semaphore) (uint32, error) {
	sc, ok := d.swapchains[h]
	if !ok {
		return 0, errors.Newf("unknown swapchain %d", h)
	}
	ns := uint64(math.MaxUint64)
	if timeout != core.Forever {
		ns = uint64(timeout.Nanoseconds())
	}
	var index uint32
	res := vk.AcquireNextImage(d.logical, sc.handle, ns, d.semaphores[signal], vk.NullFence, &index)
	if res == vk.Suboptimal {
		return index, resultError(res, "vkAcquireNextImageKHR")
	}
	if err := resultError(res, "vkAcquireNextImageKHR"); err != nil {
		return 0, err
	}
	return index, nil
}

func (d *Device) Present(h gpu.Swapchain, index uint32, wait gpu.Semaphore) error {
	sc, ok := d.swapchains[h]
	if !ok {
		return errors.Newf("unknown swapchain %d", h)
	}
	info := vk.PresentInfo{
		SType:          vk.StructureTypePresentInfo,
		SwapchainCount: 1,
		PSwapchains:    []vk.Swapchain{sc.handle},
		PImageIndices:  []uint32{index},
	}
	if wait != 0 {
		info.WaitSemaphoreCount = 1
		info.PWaitSemaphores = []vk.Semaphore{d.semaphores[wait]}
	}
	return resultError(vk.QueuePresent(d.presentQueue, &info), "vkQueuePresentKHR")
}
