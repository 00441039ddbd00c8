package platform

import (
	"github.com/go-gl/glfw/v3.3/glfw"

	"github.com/spaghettifunk/prism/engine/core"
)

var keys = map[glfw.Key]core.KeyCode{
	glfw.KeyEscape: core.KEY_ESCAPE,
	glfw.KeySpace:  core.KEY_SPACE,
	glfw.KeyLeft:   core.KEY_LEFT,
	glfw.KeyUp:     core.KEY_UP,
	glfw.KeyRight:  core.KEY_RIGHT,
	glfw.KeyDown:   core.KEY_DOWN,
	glfw.KeyA:      core.KEY_A,
	glfw.KeyD:      core.KEY_D,
	glfw.KeyE:      core.KEY_E,
	glfw.KeyP:      core.KEY_P,
	glfw.KeyQ:      core.KEY_Q,
	glfw.KeyS:      core.KEY_S,
	glfw.KeyW:      core.KEY_W,
	glfw.KeyX:      core.KEY_X,
	glfw.KeyF1:     core.KEY_F1,
}

// translateKey maps a glfw key to the engine key code, or KEY_UNKNOWN for
// keys the engine does not track.
func translateKey(key glfw.Key) core.KeyCode {
	if code, ok := keys[key]; ok {
		return code
	}
	return core.KEY_UNKNOWN
}
