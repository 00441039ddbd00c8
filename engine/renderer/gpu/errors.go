package gpu

import "github.com/cockroachdb/errors"

var (
	// ErrSurfaceStale means the swapchain no longer matches the surface and
	// must be rebuilt. Always recoverable.
	ErrSurfaceStale = errors.New("surface out of date")
	// ErrSuboptimal means the operation succeeded but the swapchain should be
	// rebuilt.
	ErrSuboptimal  = errors.New("surface suboptimal")
	ErrDeviceLost  = errors.New("device lost")
	ErrTimeout     = errors.New("timeout")
	ErrOutOfMemory = errors.New("out of device memory")
)

// NeedsRebuild reports whether err asks for a swapchain rebuild.
func NeedsRebuild(err error) bool {
	return errors.Is(err, ErrSurfaceStale) || errors.Is(err, ErrSuboptimal)
}
