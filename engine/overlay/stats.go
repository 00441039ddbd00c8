package overlay

import (
	"fmt"

	"github.com/go-gl/mathgl/mgl32"

	"github.com/spaghettifunk/prism/engine/assets"
	"github.com/spaghettifunk/prism/engine/core"
	"github.com/spaghettifunk/prism/engine/renderer/cache"
	"github.com/spaghettifunk/prism/engine/renderer/gpu"
	"github.com/spaghettifunk/prism/engine/renderer/swapchain"
)

// Textures resolves font page images to bindless texture IDs.
type Textures interface {
	AcquireTexture(path string) uint32
	Table() gpu.TextureTable
	Capacity() uint32
}

var _ Textures = (*cache.Cache)(nil)

// Stats prints frame metrics in the top-left corner with a bitmap font.
type Stats struct {
	pipeline *quadPipeline
	textures Textures
	font     *assets.Font
	pages    []uint32
	metrics  *core.Metrics

	Origin mgl32.Vec2
	Color  mgl32.Vec4
	// Extra is printed below the metrics.
	Extra string
}

func NewStats(ctx Context, textures Textures, font *assets.Font, metrics *core.Metrics) (*Stats, error) {
	p, err := newQuadPipeline(ctx, "stats", textures.Capacity())
	if err != nil {
		return nil, err
	}
	s := &Stats{
		pipeline: p,
		textures: textures,
		font:     font,
		metrics:  metrics,
		Origin:   mgl32.Vec2{8, 8},
		Color:    mgl32.Vec4{1, 1, 1, 1},
	}
	for _, page := range font.Pages {
		s.pages = append(s.pages, textures.AcquireTexture(page))
	}
	return s, nil
}

// Text is what the next Record draws.
func (s *Stats) Text() string {
	fps, ms := s.metrics.Frame()
	cpu, wait := s.metrics.RenderTime()
	text := fmt.Sprintf("%.0f fps  %.2f ms  render %.2f ms  wait %.2f ms  skipped %d", fps, ms, cpu, wait, s.metrics.Skipped())
	if s.Extra != "" {
		text += "\n" + s.Extra
	}
	return text
}

// Retarget follows the present pass when the swapchain recreates it. It is
// meant to be passed to OnViewportChanged.
func (s *Stats) Retarget(t swapchain.ViewportTexture) {
	s.pipeline.retarget(t.Pass)
}

func (s *Stats) Record(cb gpu.CommandBuffer, target gpu.Extent) error {
	if target.IsZero() || !s.pipeline.ready() {
		return nil
	}
	quads := s.font.Layout(s.Text(), s.Origin.X(), s.Origin.Y())
	if len(quads) == 0 {
		return nil
	}
	s.pipeline.bind(cb, s.textures.Table())
	for _, q := range quads {
		id := cache.FallbackTexture
		if q.Page >= 0 && q.Page < len(s.pages) {
			id = s.pages[q.Page]
		}
		s.pipeline.draw(cb, QuadConstants{
			Rect:      Rect{X: q.X, Y: q.Y, W: q.W, H: q.H}.ndc(target),
			UV:        mgl32.Vec4{q.U0, q.V0, q.U1, q.V1},
			Color:     s.Color,
			TextureID: id,
		})
	}
	return nil
}

func (s *Stats) Destroy() {
	s.pipeline.destroy()
}
