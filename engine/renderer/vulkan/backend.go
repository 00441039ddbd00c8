package vulkan

import (
	"github.com/cockroachdb/errors"

	"github.com/spaghettifunk/prism/engine/renderer/gpu"
)

// Backend opens a Device on Window. It satisfies renderer.Backend.
type Backend struct {
	Config Config
	Window SurfaceSource
}

func (b Backend) Open() (gpu.Device, error) {
	if b.Window == nil {
		return nil, errors.New("vulkan backend has no window")
	}
	return New(b.Config, b.Window)
}

func (b Backend) Close(dev gpu.Device) {
	if d, ok := dev.(*Device); ok {
		d.Destroy()
	}
}
