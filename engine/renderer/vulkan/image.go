package vulkan

import (
	"unsafe"

	"github.com/cockroachdb/errors"
	vk "github.com/goki/vulkan"

	"github.com/spaghettifunk/prism/engine/renderer/gpu"
)

func (d *Device) CreateBuffer(desc gpu.BufferDesc) (gpu.Buffer, error) {
	info := vk.BufferCreateInfo{
		SType:       vk.StructureTypeBufferCreateInfo,
		Size:        vk.DeviceSize(desc.Size),
		Usage:       toVkBufferUsage(desc.Usage),
		SharingMode: vk.SharingModeExclusive,
	}
	var b vk.Buffer
	if err := resultError(vk.CreateBuffer(d.logical, &info, nil, &b), "vkCreateBuffer"); err != nil {
		return 0, err
	}
	h := gpu.Buffer(d.handle())
	d.buffers[h] = buffer{handle: b}
	return h, nil
}

func (d *Device) DestroyBuffer(b gpu.Buffer) {
	if buf, ok := d.buffers[b]; ok {
		vk.DestroyBuffer(d.logical, buf.handle, nil)
		delete(d.buffers, b)
	}
}

func (d *Device) allocate(req vk.MemoryRequirements, kind gpu.MemoryKind) (vk.DeviceMemory, error) {
	req.Deref()
	index := d.findMemoryIndex(req.MemoryTypeBits, memoryProperties(kind))
	if index < 0 {
		return vk.NullDeviceMemory, errors.Mark(errors.New("no suitable memory type"), gpu.ErrOutOfMemory)
	}
	info := vk.MemoryAllocateInfo{
		SType:           vk.StructureTypeMemoryAllocateInfo,
		AllocationSize:  req.Size,
		MemoryTypeIndex: uint32(index),
	}
	var mem vk.DeviceMemory
	if err := resultError(vk.AllocateMemory(d.logical, &info, nil, &mem), "vkAllocateMemory"); err != nil {
		return vk.NullDeviceMemory, err
	}
	return mem, nil
}

func (d *Device) AllocateBufferMemory(b gpu.Buffer, kind gpu.MemoryKind) (gpu.Memory, error) {
	buf, ok := d.buffers[b]
	if !ok {
		return 0, errors.Newf("unknown buffer %d", b)
	}
	var req vk.MemoryRequirements
	vk.GetBufferMemoryRequirements(d.logical, buf.handle, &req)
	mem, err := d.allocate(req, kind)
	if err != nil {
		return 0, err
	}
	if err := resultError(vk.BindBufferMemory(d.logical, buf.handle, mem, 0), "vkBindBufferMemory"); err != nil {
		vk.FreeMemory(d.logical, mem, nil)
		return 0, err
	}
	h := gpu.Memory(d.handle())
	d.memories[h] = mem
	return h, nil
}

func (d *Device) CreateImage(desc gpu.ImageDesc) (gpu.Image, error) {
	if desc.Extent.IsZero() {
		return 0, errors.Newf("refusing to create a %s image", desc.Extent)
	}
	info := vk.ImageCreateInfo{
		SType:     vk.StructureTypeImageCreateInfo,
		ImageType: vk.ImageType2d,
		Format:    toVkFormat(desc.Format),
		Extent: vk.Extent3D{
			Width:  desc.Extent.Width,
			Height: desc.Extent.Height,
			Depth:  1,
		},
		MipLevels:     1,
		ArrayLayers:   1,
		Samples:       vk.SampleCount1Bit,
		Tiling:        vk.ImageTilingOptimal,
		Usage:         toVkImageUsage(desc.Usage),
		SharingMode:   vk.SharingModeExclusive,
		InitialLayout: vk.ImageLayoutUndefined,
	}
	var img vk.Image
	if err := resultError(vk.CreateImage(d.logical, &info, nil, &img), "vkCreateImage"); err != nil {
		return 0, err
	}
	h := gpu.Image(d.handle())
	d.images[h] = &image{handle: img, format: desc.Format}
	return h, nil
}

// DestroyImage is a no-op for swapchain images: the swapchain owns them.
func (d *Device) DestroyImage(img gpu.Image) {
	info, ok := d.images[img]
	if !ok || info.swapchain {
		return
	}
	vk.DestroyImage(d.logical, info.handle, nil)
	delete(d.images, img)
}

func (d *Device) AllocateImageMemory(img gpu.Image, kind gpu.MemoryKind) (gpu.Memory, error) {
	info, ok := d.images[img]
	if !ok {
		return 0, errors.Newf("unknown image %d", img)
	}
	var req vk.MemoryRequirements
	vk.GetImageMemoryRequirements(d.logical, info.handle, &req)
	mem, err := d.allocate(req, kind)
	if err != nil {
		return 0, err
	}
	if err := resultError(vk.BindImageMemory(d.logical, info.handle, mem, 0), "vkBindImageMemory"); err != nil {
		vk.FreeMemory(d.logical, mem, nil)
		return 0, err
	}
	h := gpu.Memory(d.handle())
	d.memories[h] = mem
	return h, nil
}

func (d *Device) CreateImageView(img gpu.Image, desc gpu.ViewDesc) (gpu.ImageView, error) {
	info, ok := d.images[img]
	if !ok {
		return 0, errors.Newf("unknown image %d", img)
	}
	viewInfo := vk.ImageViewCreateInfo{
		SType:    vk.StructureTypeImageViewCreateInfo,
		Image:    info.handle,
		ViewType: vk.ImageViewType2d,
		Format:   toVkFormat(desc.Format),
		SubresourceRange: vk.ImageSubresourceRange{
			AspectMask: toVkAspect(desc.Aspect, desc.Format),
			LevelCount: 1,
			LayerCount: 1,
		},
	}
	var view vk.ImageView
	if err := resultError(vk.CreateImageView(d.logical, &viewInfo, nil, &view), "vkCreateImageView"); err != nil {
		return 0, err
	}
	h := gpu.ImageView(d.handle())
	d.views[h] = view
	return h, nil
}

func (d *Device) DestroyImageView(view gpu.ImageView) {
	if v, ok := d.views[view]; ok {
		vk.DestroyImageView(d.logical, v, nil)
		delete(d.views, view)
	}
}

func (d *Device) FreeMemory(m gpu.Memory) {
	if mem, ok := d.memories[m]; ok {
		vk.FreeMemory(d.logical, mem, nil)
		delete(d.memories, m)
	}
}

func (d *Device) WriteMemory(m gpu.Memory, offset uint64, data []byte) error {
	mem, ok := d.memories[m]
	if !ok {
		return errors.Newf("unknown memory %d", m)
	}
	if len(data) == 0 {
		return nil
	}
	var ptr unsafe.Pointer
	if err := resultError(vk.MapMemory(d.logical, mem, vk.DeviceSize(offset), vk.DeviceSize(len(data)), 0, &ptr), "vkMapMemory"); err != nil {
		return err
	}
	vk.Memcopy(ptr, data)
	vk.UnmapMemory(d.logical, mem)
	return nil
}

func (d *Device) CreateSampler(desc gpu.SamplerDesc) (gpu.Sampler, error) {
	filter := toVkFilter(desc.Filter)
	address := toVkAddressMode(desc.Address)
	info := vk.SamplerCreateInfo{
		SType:                   vk.StructureTypeSamplerCreateInfo,
		MagFilter:               filter,
		MinFilter:               filter,
		MipmapMode:              vk.SamplerMipmapModeLinear,
		AddressModeU:            address,
		AddressModeV:            address,
		AddressModeW:            address,
		AnisotropyEnable:        vk.False,
		MaxAnisotropy:           1,
		BorderColor:             vk.BorderColorIntOpaqueBlack,
		UnnormalizedCoordinates: vk.False,
		CompareEnable:           vk.False,
		CompareOp:               vk.CompareOpAlways,
	}
	if desc.Anisotropy {
		info.AnisotropyEnable = vk.True
		info.MaxAnisotropy = d.properties.Limits.MaxSamplerAnisotropy
	}
	var s vk.Sampler
	if err := resultError(vk.CreateSampler(d.logical, &info, nil, &s), "vkCreateSampler"); err != nil {
		return 0, err
	}
	h := gpu.Sampler(d.handle())
	d.samplers[h] = s
	return h, nil
}

func (d *Device) DestroySampler(s gpu.Sampler) {
	if sampler, ok := d.samplers[s]; ok {
		vk.DestroySampler(d.logical, sampler, nil)
		delete(d.samplers, s)
	}
}
