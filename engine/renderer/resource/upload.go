package resource

import (
	"github.com/cockroachdb/errors"

	"github.com/spaghettifunk/prism/engine/renderer/gpu"
)

// Uploader copies CPU data into device-local resources through
// host-visible staging buffers, one blocking submission per upload.
type Uploader struct {
	dev gpu.Device
}

func NewUploader(dev gpu.Device) *Uploader {
	return &Uploader{dev: dev}
}

func (u *Uploader) staging(data []byte) (*Buffer, error) {
	staging, err := NewBuffer(u.dev, gpu.BufferDesc{
		Size:  uint64(len(data)),
		Usage: gpu.BufferUsageTransferSrc,
	}, gpu.MemoryHostVisible)
	if err != nil {
		return nil, errors.Wrap(err, "creating staging buffer")
	}
	if err := staging.Write(0, data); err != nil {
		staging.Destroy()
		return nil, errors.Wrap(err, "filling staging buffer")
	}
	return staging, nil
}

func (u *Uploader) oneShot(record func(cb gpu.CommandBuffer) error) error {
	cb, err := u.dev.AllocateCommandBuffer()
	if err != nil {
		return errors.Wrap(err, "allocating upload command buffer")
	}
	defer u.dev.FreeCommandBuffer(cb)

	if err := cb.Begin(true); err != nil {
		return err
	}
	if err := record(cb); err != nil {
		return err
	}
	if err := cb.End(); err != nil {
		return err
	}
	return u.dev.SubmitAndWait(cb)
}

// Buffer uploads data into a new device-local buffer with the given usage.
func (u *Uploader) Buffer(data []byte, usage gpu.BufferUsage) (*Buffer, error) {
	if len(data) == 0 {
		return nil, errors.New("upload of an empty buffer")
	}
	staging, err := u.staging(data)
	if err != nil {
		return nil, err
	}
	defer staging.Destroy()

	dst, err := NewBuffer(u.dev, gpu.BufferDesc{
		Size:  uint64(len(data)),
		Usage: usage | gpu.BufferUsageTransferDst,
	}, gpu.MemoryDeviceLocal)
	if err != nil {
		return nil, err
	}
	defer dst.Destroy()

	err = u.oneShot(func(cb gpu.CommandBuffer) error {
		cb.CopyBuffer(staging.Handle(), dst.Handle(), uint64(len(data)))
		return nil
	})
	if err != nil {
		return nil, errors.Wrap(err, "copying staging buffer")
	}
	return dst.Move(), nil
}

// Texture uploads tightly packed RGBA8 pixels into a new sampled image and
// leaves it in LayoutShaderReadOnly.
func (u *Uploader) Texture(pixels []byte, extent gpu.Extent, format gpu.Format) (*Image, error) {
	if extent.IsZero() {
		return nil, errors.Newf("upload of a %s texture", extent)
	}
	if want := int(extent.Width) * int(extent.Height) * 4; len(pixels) != want {
		return nil, errors.Newf("texture %s has %d bytes of pixels, want %d", extent, len(pixels), want)
	}
	staging, err := u.staging(pixels)
	if err != nil {
		return nil, err
	}
	defer staging.Destroy()

	img, err := NewImage(u.dev, gpu.ImageDesc{
		Extent: extent,
		Format: format,
		Usage:  gpu.ImageUsageTransferDst | gpu.ImageUsageSampled,
	})
	if err != nil {
		return nil, err
	}
	defer img.Destroy()

	err = u.oneShot(func(cb gpu.CommandBuffer) error {
		if err := img.TransitionTo(cb, gpu.LayoutTransferDst); err != nil {
			return err
		}
		cb.CopyBufferToImage(staging.Handle(), img.Handle(), extent)
		return img.TransitionTo(cb, gpu.LayoutShaderReadOnly)
	})
	if err != nil {
		return nil, errors.Wrap(err, "copying staging buffer to image")
	}
	return img.Move(), nil
}
