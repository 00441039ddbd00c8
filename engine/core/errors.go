package core

import (
	"github.com/cockroachdb/errors"
)

var (
	// ErrSwapchainBooting is returned by BeginFrame when the current tick must
	// be skipped because the swapchain was (or is being) recreated.
	ErrSwapchainBooting = errors.New("swapchain resized or recreated, booting")
	// ErrDisplayClosed is returned when a rebuild is abandoned because the
	// window is closing while minimized.
	ErrDisplayClosed = errors.New("display closed")
	// ErrUnmodeledTransition marks a layout transition the pipeline has no
	// barrier for. Always fatal.
	ErrUnmodeledTransition = errors.New("unmodeled layout transition")
	// ErrShaderContract marks a mismatch between a pipeline's declared
	// push-constant block and the record the renderer pushes. Always fatal.
	ErrShaderContract = errors.New("shader contract mismatch")
	ErrUnknown        = errors.New("unknown")
)

// IsFatal reports whether err describes a pipeline-design defect rather
// than a runtime condition.
func IsFatal(err error) bool {
	return errors.Is(err, ErrUnmodeledTransition) ||
		errors.Is(err, ErrShaderContract) ||
		errors.HasAssertionFailure(err)
}
