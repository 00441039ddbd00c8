package overlay

import (
	"github.com/go-gl/mathgl/mgl32"

	"github.com/spaghettifunk/prism/engine/renderer/gpu"
	"github.com/spaghettifunk/prism/engine/renderer/swapchain"
)

// Viewport shows the composited scene in a rectangle of the screen. It
// samples through the viewport texture handle, which must be refreshed by
// SetTexture every time the swapchain reissues it.
type Viewport struct {
	pipeline *quadPipeline
	rect     Rect
	texture  swapchain.ViewportTexture
}

func NewViewport(ctx Context, rect Rect) (*Viewport, error) {
	p, err := newQuadPipeline(ctx, "viewport", 1)
	if err != nil {
		return nil, err
	}
	return &Viewport{pipeline: p, rect: rect}, nil
}

// SetTexture takes the reissued handle. It is meant to be passed to
// OnViewportChanged.
func (v *Viewport) SetTexture(t swapchain.ViewportTexture) {
	v.pipeline.retarget(t.Pass)
	v.texture = t
}

func (v *Viewport) Texture() swapchain.ViewportTexture { return v.texture }

func (v *Viewport) SetRect(r Rect) { v.rect = r }

func (v *Viewport) Record(cb gpu.CommandBuffer, target gpu.Extent) error {
	if v.texture.Table == 0 || target.IsZero() || !v.pipeline.ready() {
		return nil
	}
	v.pipeline.bind(cb, v.texture.Table)
	v.pipeline.draw(cb, QuadConstants{
		Rect:  v.rect.ndc(target),
		UV:    fullUV,
		Color: mgl32.Vec4{1, 1, 1, 1},
	})
	return nil
}

func (v *Viewport) Destroy() {
	v.pipeline.destroy()
}
