// Package renderer ties the frame pipeline together: resource cache,
// swapchain, frame scheduler and render graph on one device.
package renderer

import (
	"context"
	"strings"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/loov/hrtime"

	"github.com/spaghettifunk/prism/engine/core"
	"github.com/spaghettifunk/prism/engine/renderer/cache"
	"github.com/spaghettifunk/prism/engine/renderer/frame"
	"github.com/spaghettifunk/prism/engine/renderer/gpu"
	"github.com/spaghettifunk/prism/engine/renderer/graph"
	"github.com/spaghettifunk/prism/engine/renderer/swapchain"
)

type Renderer struct {
	backend  Backend
	display  swapchain.Display
	textures cache.TextureDecoder
	shaders  graph.ShaderSource
	config   core.Config

	dev       gpu.Device
	cache     *cache.Cache
	swapchain *swapchain.Manager
	scheduler *frame.Scheduler
	graph     *graph.Graph

	overlays    []graph.Overlay
	subscribers []func(swapchain.ViewportTexture)

	frameTime time.Duration
}

func New(backend Backend, display swapchain.Display, textures cache.TextureDecoder, shaders graph.ShaderSource, config core.Config) *Renderer {
	return &Renderer{
		backend:  backend,
		display:  display,
		textures: textures,
		shaders:  shaders,
		config:   config,
	}
}

func presentMode(name string) gpu.PresentMode {
	if strings.EqualFold(name, "mailbox") {
		return gpu.PresentMailbox
	}
	return gpu.PresentFifo
}

// Initialize opens the device and builds every subsystem. On failure
// everything created so far is torn down and false is returned.
func (r *Renderer) Initialize() bool {
	if err := r.initialize(); err != nil {
		core.LogError("failed to initialize renderer: %s", err)
		r.Shutdown()
		return false
	}
	core.LogInfo("Renderer initialized.")
	return true
}

func (r *Renderer) initialize() error {
	dev, err := r.backend.Open()
	if err != nil {
		return errors.Wrap(err, "opening device")
	}
	r.dev = dev

	rc := r.config.Renderer
	if r.cache, err = cache.New(dev, r.textures, cache.Config{
		MaxTextures: rc.MaxTextures,
		MaxMeshes:   rc.MaxMeshes,
	}); err != nil {
		return errors.Wrap(err, "creating resource cache")
	}
	if r.swapchain, err = swapchain.New(dev, r.display, swapchain.Config{
		PresentMode: presentMode(rc.PresentMode),
	}); err != nil {
		return errors.Wrap(err, "creating swapchain")
	}
	for _, fn := range r.subscribers {
		r.swapchain.OnViewportChanged(fn)
	}
	if r.scheduler, err = frame.New(dev, r.swapchain, frame.Config{
		FramesInFlight: int(rc.FramesInFlight),
		FenceTimeout:   rc.FenceTimeout(),
	}); err != nil {
		return errors.Wrap(err, "creating frame scheduler")
	}
	if r.graph, err = graph.New(dev, r.shaders, r.cache, r.swapchain, r.config.Post); err != nil {
		return errors.Wrap(err, "creating render graph")
	}
	for _, o := range r.overlays {
		r.graph.AddOverlay(o)
	}
	return nil
}

// DrawFrame records and presents one frame of view. It returns
// core.ErrSwapchainBooting when the tick was skipped for a rebuild; any
// other error is fatal.
func (r *Renderer) DrawFrame(view *graph.View) error {
	start := hrtime.Now()
	f, err := r.scheduler.BeginFrame()
	if err != nil {
		return err
	}
	if err := r.graph.Record(f, view); err != nil {
		return err
	}
	if err := r.scheduler.EndFrame(f); err != nil {
		return err
	}
	if err := r.scheduler.Present(f); err != nil {
		return err
	}
	r.frameTime = hrtime.Since(start)
	return nil
}

// OnResize schedules a swapchain rebuild before the next frame.
func (r *Renderer) OnResize(width, height uint32) {
	if r.swapchain == nil {
		return
	}
	core.LogDebug("renderer resize requested: %dx%d", width, height)
	r.swapchain.NotifyResize(gpu.Extent{Width: width, Height: height})
}

func (r *Renderer) AcquireTexture(path string) uint32 {
	return r.cache.AcquireTexture(path)
}

func (r *Renderer) AcquireMesh(key cache.MeshKey, vertices []gpu.Vertex, indices []uint32) int {
	return r.cache.AcquireMesh(key, vertices, indices)
}

// Preload decodes paths concurrently and uploads them, returning their IDs.
func (r *Renderer) Preload(ctx context.Context, paths []string) (map[string]uint32, error) {
	return r.cache.Preload(ctx, paths)
}

// AddOverlay registers o with the presentation pass. It may be called
// before or after Initialize. Overlays with a Destroy method are destroyed
// by Shutdown.
func (r *Renderer) AddOverlay(o graph.Overlay) {
	r.overlays = append(r.overlays, o)
	if r.graph != nil {
		r.graph.AddOverlay(o)
	}
}

// OnViewportChanged subscribes fn to the viewport texture reissued on every
// swapchain rebuild. Subscribing after Initialize delivers the current one.
func (r *Renderer) OnViewportChanged(fn func(swapchain.ViewportTexture)) {
	r.subscribers = append(r.subscribers, fn)
	if r.swapchain != nil {
		r.swapchain.OnViewportChanged(fn)
	}
}

// SetPost changes the post-processing parameters from the next frame on.
func (r *Renderer) SetPost(post core.PostConfig) {
	r.config.Post = post
	if r.graph != nil {
		r.graph.SetPost(post)
	}
}

func (r *Renderer) Device() gpu.Device { return r.dev }

func (r *Renderer) Cache() *cache.Cache { return r.cache }

func (r *Renderer) Swapchain() *swapchain.Manager { return r.swapchain }

func (r *Renderer) Scheduler() *frame.Scheduler { return r.scheduler }

// FrameTime is the CPU time of the last presented frame.
func (r *Renderer) FrameTime() time.Duration { return r.frameTime }

// FenceWait is how long the last frame waited for its slot to retire.
func (r *Renderer) FenceWait() time.Duration {
	if r.scheduler == nil {
		return 0
	}
	return r.scheduler.FenceWait()
}

// Shutdown waits for the GPU and destroys everything in reverse creation
// order. It is safe on a partially initialized renderer.
func (r *Renderer) Shutdown() {
	if r.dev == nil {
		return
	}
	if err := r.dev.WaitIdle(); err != nil {
		core.LogError("wait idle on shutdown: %s", err)
	}
	for _, o := range r.overlays {
		if d, ok := o.(interface{ Destroy() }); ok {
			d.Destroy()
		}
	}
	r.overlays = nil
	if r.graph != nil {
		r.graph.Destroy()
		r.graph = nil
	}
	if r.scheduler != nil {
		r.scheduler.Destroy()
		r.scheduler = nil
	}
	if r.swapchain != nil {
		r.swapchain.Destroy()
		r.swapchain = nil
	}
	if r.cache != nil {
		r.cache.Destroy()
		r.cache = nil
	}
	r.backend.Close(r.dev)
	r.dev = nil
	core.LogInfo("Renderer shut down.")
}
