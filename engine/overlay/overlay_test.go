package overlay

import (
	"strings"
	"testing"

	"github.com/cockroachdb/errors"
	"github.com/go-gl/mathgl/mgl32"

	"github.com/spaghettifunk/prism/engine/assets"
	"github.com/spaghettifunk/prism/engine/core"
	"github.com/spaghettifunk/prism/engine/renderer"
	"github.com/spaghettifunk/prism/engine/renderer/gpu"
	"github.com/spaghettifunk/prism/engine/renderer/gpu/gputest"
	"github.com/spaghettifunk/prism/engine/renderer/graph"
)

type backend struct{ dev *gputest.Device }

func (b backend) Open() (gpu.Device, error) { return b.dev, nil }
func (b backend) Close(gpu.Device)          {}

type textures struct{}

func (textures) DecodeTexture(string) (uint32, uint32, []byte, error) {
	return 1, 1, make([]byte, 4), nil
}

type shaders struct{}

func (shaders) LoadShader(string, gpu.ShaderStage) ([]byte, error) {
	return []byte{0x03, 0x02, 0x23, 0x07}, nil
}

// spy keeps the commands recorded into the presentation pass so far.
type spy struct{ commands []string }

func (s *spy) Record(cb gpu.CommandBuffer, _ gpu.Extent) error {
	s.commands = append([]string(nil), cb.(*gputest.CommandBuffer).Commands()...)
	return nil
}

func (s *spy) count(cmd string) int {
	n := 0
	for _, c := range s.commands {
		if c == cmd {
			n++
		}
	}
	return n
}

func setup(t *testing.T) (*renderer.Renderer, *gputest.Device, *gputest.Display, Context) {
	t.Helper()
	dev := gputest.New()
	display := gputest.NewDisplay(800, 600)
	r := renderer.New(backend{dev}, display, textures{}, shaders{}, core.DefaultConfig())
	if !r.Initialize() {
		t.Fatal("renderer failed to initialize")
	}
	ctx := Context{Device: r.Device(), Shaders: shaders{}, Pass: r.Swapchain().Passes().Present}
	return r, dev, display, ctx
}

func view() *graph.View {
	return &graph.View{Camera: graph.Camera{View: mgl32.Ident4(), Projection: mgl32.Ident4()}}
}

func TestViewportFollowsRebuilds(t *testing.T) {
	r, dev, display, ctx := setup(t)
	vp, err := NewViewport(ctx, Rect{})
	if err != nil {
		t.Fatal(err)
	}
	r.OnViewportChanged(vp.SetTexture)
	r.AddOverlay(vp)
	s := &spy{}
	r.AddOverlay(s)

	if err := r.DrawFrame(view()); err != nil {
		t.Fatal(err)
	}
	if s.count("pipeline viewport") != 1 || s.count("draw 6") != 1 {
		t.Errorf("presentation pass = %q", s.commands)
	}
	first := vp.Texture()

	display.Size = gpu.Extent{Width: 640, Height: 480}
	dev.Surface = display.Size
	r.OnResize(640, 480)
	if err := r.DrawFrame(view()); !errors.Is(err, core.ErrSwapchainBooting) {
		t.Fatalf("frame after resize = %v", err)
	}
	if err := r.DrawFrame(view()); err != nil {
		t.Fatal(err)
	}
	if got := vp.Texture(); got.Generation <= first.Generation || got.Extent != display.Size {
		t.Errorf("viewport texture not reissued: %+v then %+v", first, got)
	}
	if len(dev.Violations) > 0 {
		t.Errorf("violations: %v", dev.Violations)
	}

	r.Shutdown()
	if n := dev.Live("Pipeline"); n != 0 {
		t.Errorf("%d pipelines alive after shutdown", n)
	}
}

func TestViewportFollowsSurfaceFormatChange(t *testing.T) {
	r, dev, _, ctx := setup(t)
	vp, err := NewViewport(ctx, Rect{})
	if err != nil {
		t.Fatal(err)
	}
	r.OnViewportChanged(vp.SetTexture)
	r.AddOverlay(vp)
	s := &spy{}
	r.AddOverlay(s)
	if err := r.DrawFrame(view()); err != nil {
		t.Fatal(err)
	}
	before := r.Swapchain().Passes().Present

	dev.Caps.Formats = []gpu.Format{gpu.FormatRGBA8Unorm}
	r.OnResize(800, 600)
	if err := r.DrawFrame(view()); !errors.Is(err, core.ErrSwapchainBooting) {
		t.Fatalf("frame after format loss = %v", err)
	}
	if err := r.DrawFrame(view()); err != nil {
		t.Fatal(err)
	}
	after := r.Swapchain().Passes().Present
	if r.Swapchain().Format() != gpu.FormatRGBA8Unorm || after == before {
		t.Fatalf("format %s, present pass %d -> %d", r.Swapchain().Format(), before, after)
	}
	if vp.Texture().Pass != after {
		t.Errorf("viewport texture names pass %d, want %d", vp.Texture().Pass, after)
	}
	if s.count("pipeline viewport") != 1 {
		t.Errorf("presentation pass = %q", s.commands)
	}
	if len(dev.Violations) > 0 {
		t.Errorf("violations: %v", dev.Violations)
	}

	r.Shutdown()
	if n := dev.Live("Pipeline"); n != 0 {
		t.Errorf("%d pipelines alive after shutdown", n)
	}
	if n := dev.Live("RenderPass"); n != 0 {
		t.Errorf("%d render passes alive after shutdown", n)
	}
}

func TestViewportWithoutTextureDrawsNothing(t *testing.T) {
	r, dev, _, ctx := setup(t)
	defer r.Shutdown()
	vp, err := NewViewport(ctx, Rect{X: 10, Y: 10, W: 100, H: 100})
	if err != nil {
		t.Fatal(err)
	}
	r.AddOverlay(vp)
	s := &spy{}
	r.AddOverlay(s)
	if err := r.DrawFrame(view()); err != nil {
		t.Fatal(err)
	}
	if s.count("pipeline viewport") != 0 {
		t.Errorf("viewport drew without a texture: %q", s.commands)
	}
	if len(dev.Violations) > 0 {
		t.Errorf("violations: %v", dev.Violations)
	}
}

func TestStatsDrawsOneQuadPerGlyph(t *testing.T) {
	r, dev, _, ctx := setup(t)
	defer r.Shutdown()
	font := assets.NewFont(12, 64, 64, []string{"fonts/mono_0.png"}, map[rune]assets.Glyph{
		'?': {Width: 6, Height: 10, XAdvance: 7},
		' ': {XAdvance: 4},
	})
	before := r.Cache().TextureCount()
	stats, err := NewStats(ctx, r.Cache(), font, core.NewMetrics())
	if err != nil {
		t.Fatal(err)
	}
	if r.Cache().TextureCount() != before+1 {
		t.Errorf("font page not acquired")
	}
	stats.Extra = "ab"
	r.AddOverlay(stats)
	s := &spy{}
	r.AddOverlay(s)
	if err := r.DrawFrame(view()); err != nil {
		t.Fatal(err)
	}

	glyphs := len(strings.ReplaceAll(strings.ReplaceAll(stats.Text(), " ", ""), "\n", ""))
	if s.count("pipeline stats") != 1 || s.count("draw 6") != glyphs {
		t.Errorf("want %d glyph draws, presentation pass = %q", glyphs, s.commands)
	}
	if len(dev.Violations) > 0 {
		t.Errorf("violations: %v", dev.Violations)
	}
}

func TestRectNDC(t *testing.T) {
	target := gpu.Extent{Width: 200, Height: 100}
	got := Rect{X: 50, Y: 25, W: 100, H: 50}.ndc(target)
	if !got.ApproxEqual(mgl32.Vec4{-0.5, -0.5, 0.5, 0.5}) {
		t.Errorf("ndc = %v", got)
	}
	if full := (Rect{}).ndc(target); full != (mgl32.Vec4{-1, -1, 1, 1}) {
		t.Errorf("empty rect ndc = %v", full)
	}
}
