package engine

import (
	"context"

	"github.com/cockroachdb/errors"

	"github.com/spaghettifunk/prism/engine/assets"
	"github.com/spaghettifunk/prism/engine/core"
	"github.com/spaghettifunk/prism/engine/overlay"
	"github.com/spaghettifunk/prism/engine/platform"
	"github.com/spaghettifunk/prism/engine/renderer"
	"github.com/spaghettifunk/prism/engine/renderer/gpu"
	"github.com/spaghettifunk/prism/engine/renderer/vulkan"
	"github.com/spaghettifunk/prism/engine/scene"
)

type Stage uint8

const (
	// Engine is in an uninitialized state
	EngineStageUninitialized Stage = iota
	// Engine is currently initializing
	EngineStageInitializing
	// Engine initialization is complete
	EngineStageInitialized
	// Engine is currently running
	EngineStageRunning
	// Engine is in the process of shutting down
	EngineStageShuttingDown
)

type Engine struct {
	currentStage Stage
	gameInstance *Game
	config       core.Config
	isRunning    bool
	isSuspended  bool

	platform     *platform.Platform
	events       *core.Events
	input        *core.Input
	clock        *core.Clock
	metrics      *core.Metrics
	assetManager *assets.AssetManager
	renderer     *renderer.Renderer
	scene        *scene.Scene
	viewport     *overlay.Viewport
	stats        *overlay.Stats

	width    uint32
	height   uint32
	lastTime float64
}

func New(g *Game) (*Engine, error) {
	if g == nil || g.ApplicationConfig == nil {
		return nil, errors.New("game has no application config")
	}
	app := g.ApplicationConfig
	config, err := core.LoadConfig(app.ConfigPath)
	if err != nil {
		return nil, err
	}
	if app.Name != "" {
		config.Window.Title = app.Name
	}
	if app.LogLevel != "" {
		config.Log.Level = app.LogLevel
	}
	if err := core.SetLogLevel(config.Log.Level); err != nil {
		core.LogWarn("unknown log level %q, keeping the default", config.Log.Level)
	}

	events := core.NewEvents()
	input := core.NewInput(events)

	return &Engine{
		currentStage: EngineStageUninitialized,
		gameInstance: g,
		config:       config,
		events:       events,
		input:        input,
		clock:        core.NewClock(),
		metrics:      core.NewMetrics(),
		platform:     platform.New(events, input),
		assetManager: assets.NewAssetManager(config.Assets),
		scene:        scene.New(),
		isRunning:    true,
		width:        config.Window.Width,
		height:       config.Window.Height,
	}, nil
}

func (e *Engine) Initialize() error {
	e.currentStage = EngineStageInitializing

	e.events.Register(core.EVENT_CODE_APPLICATION_QUIT, e.onEvent)
	e.events.Register(core.EVENT_CODE_KEY_PRESSED, e.onKey)
	e.events.Register(core.EVENT_CODE_RESIZED, e.onResized)

	if err := e.platform.Startup(e.config.Window); err != nil {
		return err
	}
	size := e.platform.DrawableSize()
	e.width, e.height = size.Width, size.Height

	if err := e.assetManager.Initialize(context.Background()); err != nil {
		return err
	}

	backend := vulkan.Backend{
		Config: vulkan.Config{
			AppName:    e.config.Window.Title,
			Validation: e.config.Renderer.Validation,
		},
		Window: e.platform.Window(),
	}
	e.renderer = renderer.New(backend, e.platform, e.assetManager, e.assetManager, e.config)
	if !e.renderer.Initialize() {
		return errors.New("failed to initialize the renderer")
	}

	if err := e.createOverlays(); err != nil {
		return err
	}
	if err := e.loadScene(); err != nil {
		core.LogError("failed to load scene: %s", err)
	}

	e.gameInstance.Input = e.input
	e.gameInstance.Scene = e.scene
	e.gameInstance.Stats = e.stats
	if e.gameInstance.FnInitialize != nil {
		if err := e.gameInstance.FnInitialize(); err != nil {
			return err
		}
	}
	if e.gameInstance.FnOnResize != nil {
		if err := e.gameInstance.FnOnResize(e.width, e.height); err != nil {
			return err
		}
	}

	e.currentStage = EngineStageInitialized
	return nil
}

// createOverlays sets up the viewport showing the scene and, when the font
// loads, the stats text on top of it.
func (e *Engine) createOverlays() error {
	ctx := overlay.Context{
		Device:  e.renderer.Device(),
		Shaders: e.assetManager,
		Pass:    e.renderer.Swapchain().Passes().Present,
	}
	vp, err := overlay.NewViewport(ctx, overlay.Rect{})
	if err != nil {
		return errors.Wrap(err, "creating viewport overlay")
	}
	e.viewport = vp
	e.renderer.OnViewportChanged(vp.SetTexture)
	e.renderer.AddOverlay(vp)

	if e.config.Assets.Font == "" {
		return nil
	}
	font, err := e.assetManager.LoadFont(e.config.Assets.Font)
	if err != nil {
		core.LogWarn("stats overlay disabled: %s", err)
		return nil
	}
	stats, err := overlay.NewStats(ctx, e.renderer.Cache(), font, e.metrics)
	if err != nil {
		return errors.Wrap(err, "creating stats overlay")
	}
	e.stats = stats
	e.renderer.OnViewportChanged(stats.Retarget)
	e.renderer.AddOverlay(stats)
	return nil
}

// loadScene reads the configured scene file and rebuilds the scene from it.
// The scene stays empty when no file is configured.
func (e *Engine) loadScene() error {
	if e.config.Assets.Scene == "" {
		return nil
	}
	path, err := e.assetManager.Resolve(e.config.Assets.Scene)
	if err != nil {
		return err
	}
	f, err := scene.LoadFile(path)
	if err != nil {
		return err
	}
	e.scene.Rebuild(f, e.assetManager, e.renderer)
	core.LogInfo("Scene %s loaded: %d entities.", e.config.Assets.Scene, e.scene.Arena.Len())
	return nil
}

func (e *Engine) Run() error {
	e.currentStage = EngineStageRunning
	e.clock.Start()
	e.clock.Update()
	e.lastTime = e.clock.Elapsed()

	for e.isRunning {
		if !e.platform.PumpMessages() {
			e.isRunning = false
			break
		}
		if e.isSuspended {
			// Nothing to draw while minimized; block until the window
			// system wakes us up.
			e.platform.WaitEvents()
			continue
		}

		e.clock.Update()
		currentTime := e.clock.Elapsed()
		delta := currentTime - e.lastTime

		if err := e.frame(delta); err != nil {
			e.isRunning = false
			return err
		}

		// NOTE: Input update/state copying should always be handled
		// after any input should be recorded; I.E. before this line.
		e.input.Update()
		e.lastTime = currentTime
	}
	return nil
}

// frame runs one tick: game update, then draw. A skipped tick is counted
// and is not an error.
func (e *Engine) frame(delta float64) error {
	frameStart := core.Now()

	if e.gameInstance.FnUpdate != nil {
		if err := e.gameInstance.FnUpdate(delta); err != nil {
			return errors.Wrap(err, "game update")
		}
	}

	aspect := float32(1)
	if e.height > 0 {
		aspect = float32(e.width) / float32(e.height)
	}
	view := e.scene.View(aspect, float32(e.clock.Elapsed()))

	err := e.renderer.DrawFrame(view)
	switch {
	case err == nil:
		e.metrics.Update(core.Now() - frameStart)
		e.metrics.Render(e.renderer.FrameTime().Seconds(), e.renderer.FenceWait().Seconds())
		return nil
	case errors.Is(err, core.ErrSwapchainBooting):
		e.metrics.Skip()
		return nil
	case errors.Is(err, core.ErrDisplayClosed):
		core.LogInfo("Display closed while minimized, shutting down.")
		e.isRunning = false
		return nil
	case core.IsFatal(err):
		core.LogError("render pipeline defect: %+v", err)
		return err
	case errors.Is(err, gpu.ErrDeviceLost):
		core.LogError("device lost: %s", err)
		return err
	default:
		core.LogError("frame failed: %s", err)
		return err
	}
}

func (e *Engine) Shutdown() error {
	e.currentStage = EngineStageShuttingDown
	if e.gameInstance.FnShutdown != nil {
		if err := e.gameInstance.FnShutdown(); err != nil {
			core.LogError("game shutdown: %s", err)
		}
	}
	if e.renderer != nil {
		e.renderer.Shutdown()
	}
	if err := e.assetManager.Close(); err != nil {
		core.LogError("closing asset manager: %s", err)
	}
	e.events.Shutdown()
	return e.platform.Shutdown()
}

// GetFramebufferSize returns the width and height (in this order)
// of the application Framebuffer
func (e *Engine) GetFramebufferSize() (uint32, uint32) {
	return e.width, e.height
}

func (e *Engine) Metrics() *core.Metrics { return e.metrics }

func (e *Engine) onEvent(context core.EventContext) bool {
	switch context.Type {
	case core.EVENT_CODE_APPLICATION_QUIT:
		core.LogInfo("EVENT_CODE_APPLICATION_QUIT received, shutting down.")
		e.isRunning = false
		return true
	}
	return false
}

func (e *Engine) onKey(context core.EventContext) bool {
	ke, ok := context.Data.(*core.KeyEvent)
	if !ok {
		core.LogError("wrong event associated with the event type `%d`", context.Type)
		return false
	}
	switch ke.KeyCode {
	case core.KEY_ESCAPE:
		// NOTE: Technically firing an event to itself, but there may be other listeners.
		e.events.Fire(core.EventContext{Type: core.EVENT_CODE_APPLICATION_QUIT})
		// Block anything else from processing this.
		return true
	case core.KEY_F1:
		if e.renderer == nil {
			return true
		}
		if err := e.loadScene(); err != nil {
			core.LogError("failed to reload scene: %s", err)
		}
		return true
	}
	return false
}

func (e *Engine) onResized(context core.EventContext) bool {
	re, ok := context.Data.(*core.ResizeEvent)
	if !ok {
		core.LogError("wrong event associated with the event type `%d`", context.Type)
		return false
	}
	width, height := re.Width, re.Height

	// Check if different. If so, trigger a resize event.
	if width == e.width && height == e.height {
		return false
	}
	e.width = width
	e.height = height
	core.LogDebug("Window resize: %d, %d", width, height)

	// Handle minimization
	if width == 0 || height == 0 {
		core.LogInfo("Window minimized, suspending application.")
		e.isSuspended = true
		return true
	}
	if e.isSuspended {
		core.LogInfo("Window restored, resuming application.")
		e.isSuspended = false
	}
	if e.gameInstance.FnOnResize != nil {
		if err := e.gameInstance.FnOnResize(width, height); err != nil {
			core.LogError("game resize: %s", err)
		}
	}
	if e.renderer != nil {
		e.renderer.OnResize(width, height)
	}
	return false
}
