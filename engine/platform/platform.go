// Package platform owns the window. It turns glfw callbacks into engine
// events and reports the drawable size to the swapchain.
package platform

import (
	"runtime"

	"github.com/cockroachdb/errors"
	"github.com/go-gl/glfw/v3.3/glfw"

	"github.com/spaghettifunk/prism/engine/core"
	"github.com/spaghettifunk/prism/engine/renderer/gpu"
)

func init() {
	// GLFW event handling must run on the main OS thread
	runtime.LockOSThread()
}

type Platform struct {
	window *glfw.Window
	events *core.Events
	input  *core.Input
}

func New(events *core.Events, input *core.Input) *Platform {
	return &Platform{
		events: events,
		input:  input,
	}
}

func (p *Platform) Startup(cfg core.WindowConfig) error {
	if err := glfw.Init(); err != nil {
		return errors.Wrap(err, "initializing glfw")
	}
	if !glfw.VulkanSupported() {
		glfw.Terminate()
		return errors.New("glfw reports no vulkan loader")
	}

	glfw.WindowHint(glfw.Visible, glfw.False)
	glfw.WindowHint(glfw.Resizable, glfw.True)
	glfw.WindowHint(glfw.ClientAPI, glfw.NoAPI) // Required for Vulkan.

	window, err := glfw.CreateWindow(int(cfg.Width), int(cfg.Height), cfg.Title, nil, nil)
	if err != nil {
		glfw.Terminate()
		return errors.Wrap(err, "creating window")
	}
	p.window = window

	p.window.SetKeyCallback(p.keyCallback)
	p.window.SetFramebufferSizeCallback(p.framebufferSizeCallback)
	p.window.SetCloseCallback(p.closeCallback)
	p.window.SetPos(int(cfg.PosX), int(cfg.PosY))
	p.window.Show()

	core.LogInfo("Window %q created (%dx%d).", cfg.Title, cfg.Width, cfg.Height)
	return nil
}

// Window is the surface source for the Vulkan backend.
func (p *Platform) Window() *glfw.Window {
	return p.window
}

func (p *Platform) Shutdown() error {
	if p.window != nil {
		p.window.Destroy()
		p.window = nil
	}
	glfw.Terminate()
	return nil
}

// PumpMessages processes pending window events and reports whether the
// application should keep running.
func (p *Platform) PumpMessages() bool {
	glfw.PollEvents()
	return !p.ShouldClose()
}

func (p *Platform) DrawableSize() gpu.Extent {
	if p.window == nil {
		return gpu.Extent{}
	}
	w, h := p.window.GetFramebufferSize()
	return gpu.Extent{Width: uint32(w), Height: uint32(h)}
}

func (p *Platform) WaitEvents() {
	glfw.WaitEvents()
}

func (p *Platform) ShouldClose() bool {
	return p.window == nil || p.window.ShouldClose()
}

func (p *Platform) keyCallback(w *glfw.Window, key glfw.Key, scancode int, action glfw.Action, mods glfw.ModifierKey) {
	if action == glfw.Repeat {
		return
	}
	code := translateKey(key)
	if code == core.KEY_UNKNOWN {
		return
	}
	p.input.ProcessKey(code, action == glfw.Press)
}

func (p *Platform) framebufferSizeCallback(w *glfw.Window, width, height int) {
	p.events.Fire(core.EventContext{
		Type: core.EVENT_CODE_RESIZED,
		Data: &core.ResizeEvent{Width: uint32(width), Height: uint32(height)},
	})
}

func (p *Platform) closeCallback(w *glfw.Window) {
	p.events.Fire(core.EventContext{Type: core.EVENT_CODE_APPLICATION_QUIT})
}
