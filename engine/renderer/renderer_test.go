package renderer

import (
	"testing"

	"github.com/cockroachdb/errors"
	"github.com/go-gl/mathgl/mgl32"

	"github.com/spaghettifunk/prism/engine/core"
	"github.com/spaghettifunk/prism/engine/renderer/cache"
	"github.com/spaghettifunk/prism/engine/renderer/gpu"
	"github.com/spaghettifunk/prism/engine/renderer/gpu/gputest"
	"github.com/spaghettifunk/prism/engine/renderer/graph"
	"github.com/spaghettifunk/prism/engine/renderer/swapchain"
)

type fakeBackend struct {
	dev     *gputest.Device
	openErr error
	closed  int
}

func (b *fakeBackend) Open() (gpu.Device, error) {
	if b.openErr != nil {
		return nil, b.openErr
	}
	return b.dev, nil
}

func (b *fakeBackend) Close(gpu.Device) { b.closed++ }

type textures struct{ decodes int }

func (t *textures) DecodeTexture(path string) (uint32, uint32, []byte, error) {
	t.decodes++
	return 2, 2, make([]byte, 16), nil
}

type shaders struct{}

func (shaders) LoadShader(string, gpu.ShaderStage) ([]byte, error) {
	return []byte{0x03, 0x02, 0x23, 0x07}, nil
}

func newRenderer(t *testing.T) (*Renderer, *fakeBackend, *gputest.Display) {
	t.Helper()
	backend := &fakeBackend{dev: gputest.New()}
	display := gputest.NewDisplay(800, 600)
	r := New(backend, display, &textures{}, shaders{}, core.DefaultConfig())
	return r, backend, display
}

func TestInitializeAndAcquireTextureTwice(t *testing.T) {
	r, backend, _ := newRenderer(t)
	if !r.Initialize() {
		t.Fatal("Initialize failed")
	}
	defer r.Shutdown()

	before := r.Cache().TextureCount()
	first := r.AcquireTexture("a.png")
	second := r.AcquireTexture("a.png")
	if first == cache.FallbackTexture || first != second {
		t.Fatalf("AcquireTexture twice = %d, %d; want the same non-zero ID", first, second)
	}
	if got := r.Cache().TextureCount(); got != before+1 {
		t.Errorf("texture count = %d, want %d", got, before+1)
	}
	if backend.dev.Uploads != 2 {
		// The fallback texture and a.png.
		t.Errorf("uploads = %d, want 2", backend.dev.Uploads)
	}
	if ext := r.Swapchain().Extent(); ext != (gpu.Extent{Width: 800, Height: 600}) {
		t.Errorf("swapchain extent = %s", ext)
	}
}

func TestInitializeFailureTearsDown(t *testing.T) {
	r, backend, _ := newRenderer(t)
	backend.dev.FailNth("CreatePipeline", 3)
	if r.Initialize() {
		t.Fatal("Initialize succeeded with a failing pipeline")
	}
	if n := backend.dev.Live(""); n != 0 {
		t.Errorf("%d objects left alive after failed initialization", n)
	}
	if backend.closed != 1 {
		t.Errorf("backend closed %d times, want 1", backend.closed)
	}
	if len(backend.dev.Violations) > 0 {
		t.Errorf("violations: %v", backend.dev.Violations)
	}
}

func TestInitializeWithoutDevice(t *testing.T) {
	r, backend, _ := newRenderer(t)
	backend.openErr = errors.New("no vulkan")
	if r.Initialize() {
		t.Fatal("Initialize succeeded without a device")
	}
	if backend.closed != 0 {
		t.Error("backend closed although it never opened")
	}
}

func TestDrawFrameSkipsAfterResize(t *testing.T) {
	r, backend, display := newRenderer(t)
	var viewports []swapchain.ViewportTexture
	r.OnViewportChanged(func(v swapchain.ViewportTexture) { viewports = append(viewports, v) })
	if !r.Initialize() {
		t.Fatal("Initialize failed")
	}
	defer r.Shutdown()

	view := &graph.View{Camera: graph.Camera{View: mgl32.Ident4(), Projection: mgl32.Ident4()}}
	if err := r.DrawFrame(view); err != nil {
		t.Fatalf("first frame: %s", err)
	}

	display.Size = gpu.Extent{Width: 1024, Height: 768}
	backend.dev.Surface = display.Size
	r.OnResize(1024, 768)
	if err := r.DrawFrame(view); !errors.Is(err, core.ErrSwapchainBooting) {
		t.Fatalf("frame after resize = %v, want ErrSwapchainBooting", err)
	}
	if err := r.DrawFrame(view); err != nil {
		t.Fatalf("frame after rebuild: %s", err)
	}
	if ext := r.Swapchain().Extent(); ext != display.Size {
		t.Errorf("swapchain extent = %s, want %s", ext, display.Size)
	}
	if len(viewports) != 2 || viewports[1].Generation <= viewports[0].Generation {
		t.Errorf("viewport reissues = %+v", viewports)
	}
	if len(backend.dev.Violations) > 0 {
		t.Errorf("violations: %v", backend.dev.Violations)
	}
}

func TestShutdownReleasesEverything(t *testing.T) {
	r, backend, _ := newRenderer(t)
	if !r.Initialize() {
		t.Fatal("Initialize failed")
	}
	r.AcquireTexture("a.png")
	r.AcquireMesh(cache.MeshKey{Source: "cube.obj"}, make([]gpu.Vertex, 3), []uint32{0, 1, 2})
	r.Shutdown()
	if n := backend.dev.Live(""); n != 0 {
		t.Errorf("%d objects alive after shutdown", n)
	}
	r.Shutdown()
	if backend.closed != 1 {
		t.Errorf("backend closed %d times, want 1", backend.closed)
	}
}

func TestPresentMode(t *testing.T) {
	if presentMode("Mailbox") != gpu.PresentMailbox {
		t.Error("mailbox not recognized")
	}
	if presentMode("immediate") != gpu.PresentFifo {
		t.Error("unknown mode should fall back to fifo")
	}
}
