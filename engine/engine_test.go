package engine

import (
	"testing"

	"github.com/cockroachdb/errors"

	"github.com/spaghettifunk/prism/engine/core"
	"github.com/spaghettifunk/prism/engine/renderer"
	"github.com/spaghettifunk/prism/engine/renderer/gpu"
	"github.com/spaghettifunk/prism/engine/renderer/gpu/gputest"
	"github.com/spaghettifunk/prism/engine/scene"
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

func newEngine(t *testing.T, g *Game) (*Engine, *gputest.Device, *gputest.Display) {
	t.Helper()
	dev := gputest.New()
	display := gputest.NewDisplay(800, 600)
	r := renderer.New(backend{dev}, display, textures{}, shaders{}, core.DefaultConfig())
	if !r.Initialize() {
		t.Fatal("renderer failed to initialize")
	}
	t.Cleanup(r.Shutdown)

	events := core.NewEvents()
	e := &Engine{
		gameInstance: g,
		config:       core.DefaultConfig(),
		events:       events,
		input:        core.NewInput(events),
		clock:        core.NewClock(),
		metrics:      core.NewMetrics(),
		scene:        scene.New(),
		renderer:     r,
		isRunning:    true,
		width:        800,
		height:       600,
	}
	events.Register(core.EVENT_CODE_APPLICATION_QUIT, e.onEvent)
	events.Register(core.EVENT_CODE_KEY_PRESSED, e.onKey)
	events.Register(core.EVENT_CODE_RESIZED, e.onResized)
	return e, dev, display
}

func TestFrameCountsSkippedTicks(t *testing.T) {
	updates := 0
	g := &Game{FnUpdate: func(float64) error { updates++; return nil }}
	e, dev, display := newEngine(t, g)

	if err := e.frame(0.016); err != nil {
		t.Fatal(err)
	}
	display.Size = gpu.Extent{Width: 640, Height: 480}
	dev.Surface = display.Size
	e.events.Fire(core.EventContext{Type: core.EVENT_CODE_RESIZED, Data: &core.ResizeEvent{Width: 640, Height: 480}})
	if err := e.frame(0.016); err != nil {
		t.Fatalf("skipped tick returned %v", err)
	}
	if err := e.frame(0.016); err != nil {
		t.Fatal(err)
	}

	if e.metrics.Skipped() != 1 {
		t.Errorf("skipped = %d, want 1", e.metrics.Skipped())
	}
	if e.metrics.Rendered() != 2 {
		t.Errorf("rendered = %d, want the 2 presented frames", e.metrics.Rendered())
	}
	if updates != 3 {
		t.Errorf("game updated %d times, want 3", updates)
	}
	if !e.isRunning {
		t.Error("engine stopped on a skipped tick")
	}
	if len(dev.Violations) > 0 {
		t.Errorf("violations: %v", dev.Violations)
	}
}

func TestFrameStopsOnGameError(t *testing.T) {
	boom := errors.New("boom")
	e, _, _ := newEngine(t, &Game{FnUpdate: func(float64) error { return boom }})
	if err := e.frame(0.016); !errors.Is(err, boom) {
		t.Errorf("frame = %v, want the game error", err)
	}
}

func TestEscapeQuits(t *testing.T) {
	e, _, _ := newEngine(t, &Game{})
	e.input.ProcessKey(core.KEY_ESCAPE, true)
	if e.isRunning {
		t.Error("engine still running after escape")
	}
}

func TestMinimizeSuspends(t *testing.T) {
	var sizes [][2]uint32
	g := &Game{FnOnResize: func(w, h uint32) error {
		sizes = append(sizes, [2]uint32{w, h})
		return nil
	}}
	e, _, _ := newEngine(t, g)

	e.events.Fire(core.EventContext{Type: core.EVENT_CODE_RESIZED, Data: &core.ResizeEvent{}})
	if !e.isSuspended {
		t.Fatal("not suspended while minimized")
	}
	e.events.Fire(core.EventContext{Type: core.EVENT_CODE_RESIZED, Data: &core.ResizeEvent{Width: 1024, Height: 768}})
	if e.isSuspended {
		t.Error("still suspended after restore")
	}
	if len(sizes) != 1 || sizes[0] != [2]uint32{1024, 768} {
		t.Errorf("game saw resizes %v", sizes)
	}
	if w, h := e.GetFramebufferSize(); w != 1024 || h != 768 {
		t.Errorf("framebuffer size = %dx%d", w, h)
	}
}
