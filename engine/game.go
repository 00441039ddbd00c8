package engine

import (
	"github.com/spaghettifunk/prism/engine/core"
	"github.com/spaghettifunk/prism/engine/overlay"
	"github.com/spaghettifunk/prism/engine/scene"
)

type Game struct {
	ApplicationConfig *ApplicationConfig
	State             interface{}

	// Set by the engine before FnInitialize runs.
	Input *core.Input
	Scene *scene.Scene
	// Stats is nil when no font could be loaded.
	Stats *overlay.Stats

	FnInitialize Initialize
	FnUpdate     Update
	FnOnResize   OnResize
	FnShutdown   Shutdown
}

type Initialize func() error
type Update func(deltaTime float64) error
type OnResize func(width uint32, height uint32) error
type Shutdown func() error
