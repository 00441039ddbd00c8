package testbed

import (
	"fmt"

	"github.com/spaghettifunk/prism/engine"
	"github.com/spaghettifunk/prism/engine/core"
)

const (
	moveSpeed = 10.0
	turnSpeed = 90.0
)

type TestGame struct {
	*engine.Game
}

type gameState struct {
	width  uint32
	height uint32
}

func NewTestGame(configPath, logLevel string) *TestGame {
	tg := &TestGame{
		Game: &engine.Game{
			ApplicationConfig: &engine.ApplicationConfig{
				Name:       "Prism Testbed",
				ConfigPath: configPath,
				LogLevel:   logLevel,
			},
			State: &gameState{},
		},
	}

	tg.FnInitialize = tg.Initialize
	tg.FnUpdate = tg.Update
	tg.FnOnResize = tg.OnResize
	tg.FnShutdown = tg.Shutdown

	return tg
}

func (g *TestGame) Initialize() error {
	core.LogDebug("TestGame Initialize fn....")
	if g.Scene == nil || g.Input == nil {
		return fmt.Errorf("the engine did not hand over the scene and input")
	}
	return nil
}

// Update flies the camera: WASD to move, Q/E to go down/up, arrow keys to
// look around.
func (g *TestGame) Update(deltaTime float64) error {
	in, cam := g.Input, g.Scene.Camera
	step := float32(moveSpeed * deltaTime)
	turn := float32(turnSpeed * deltaTime)

	if in.IsKeyDown(core.KEY_W) {
		cam.MoveForward(step)
	}
	if in.IsKeyDown(core.KEY_S) {
		cam.MoveBackward(step)
	}
	if in.IsKeyDown(core.KEY_A) {
		cam.MoveLeft(step)
	}
	if in.IsKeyDown(core.KEY_D) {
		cam.MoveRight(step)
	}
	if in.IsKeyDown(core.KEY_E) {
		cam.MoveUp(step)
	}
	if in.IsKeyDown(core.KEY_Q) {
		cam.MoveDown(step)
	}
	if in.IsKeyDown(core.KEY_LEFT) {
		cam.Yaw(-turn)
	}
	if in.IsKeyDown(core.KEY_RIGHT) {
		cam.Yaw(turn)
	}
	if in.IsKeyDown(core.KEY_UP) {
		cam.Pitch(turn)
	}
	if in.IsKeyDown(core.KEY_DOWN) {
		cam.Pitch(-turn)
	}

	if g.Stats != nil {
		pos := cam.Position()
		yaw, pitch := cam.Rotation()
		g.Stats.Extra = fmt.Sprintf("pos %.1f %.1f %.1f  yaw %.0f pitch %.0f", pos.X(), pos.Y(), pos.Z(), yaw, pitch)
	}
	return nil
}

func (g *TestGame) OnResize(width uint32, height uint32) error {
	state := g.State.(*gameState)
	state.width, state.height = width, height
	return nil
}

func (g *TestGame) Shutdown() error {
	core.LogDebug("TestGame Shutdown fn....")
	return nil
}
