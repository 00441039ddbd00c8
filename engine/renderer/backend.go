package renderer

import "github.com/spaghettifunk/prism/engine/renderer/gpu"

// Backend opens the device the renderer draws with. Close is called once,
// after everything created on the device has been destroyed.
type Backend interface {
	Open() (gpu.Device, error)
	Close(dev gpu.Device)
}
