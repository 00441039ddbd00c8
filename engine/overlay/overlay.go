// Package overlay draws screen-space layers into the presentation pass:
// the viewport showing the composited scene and text on top of it.
package overlay

import (
	"github.com/cockroachdb/errors"
	"github.com/go-gl/mathgl/mgl32"

	"github.com/spaghettifunk/prism/engine/core"
	"github.com/spaghettifunk/prism/engine/renderer/gpu"
	"github.com/spaghettifunk/prism/engine/renderer/graph"
)

// Context is what overlays build their pipelines against.
type Context struct {
	Device  gpu.Device
	Shaders graph.ShaderSource
	// Pass is the presentation render pass overlays record into.
	Pass gpu.RenderPass
}

// Rect is a screen rectangle in pixels with a top-left origin. An empty
// rect covers the whole target.
type Rect struct {
	X, Y, W, H float32
}

func (r Rect) IsEmpty() bool { return r.W <= 0 || r.H <= 0 }

// ndc maps r to normalized device coordinates (x0, y0, x1, y1) on target.
func (r Rect) ndc(target gpu.Extent) mgl32.Vec4 {
	if r.IsEmpty() {
		return mgl32.Vec4{-1, -1, 1, 1}
	}
	w, h := float32(target.Width), float32(target.Height)
	return mgl32.Vec4{
		2*r.X/w - 1,
		2*r.Y/h - 1,
		2*(r.X+r.W)/w - 1,
		2*(r.Y+r.H)/h - 1,
	}
}

// QuadConstants is pushed once per quad. The layout matches the push
// constant block of quad.vert and quad.frag.
type QuadConstants struct {
	// Rect is the quad corners in NDC: x0, y0, x1, y1.
	Rect mgl32.Vec4
	// UV is the texture rectangle: u0, v0, u1, v1.
	UV        mgl32.Vec4
	Color     mgl32.Vec4
	TextureID uint32
	_         [3]uint32
}

var fullUV = mgl32.Vec4{0, 0, 1, 1}

// quadPipeline draws textured quads generated in the vertex shader.
type quadPipeline struct {
	ctx      Context
	name     string
	capacity uint32
	handle   gpu.Pipeline
	size     uint32
	enc      graph.Encoder
}

func newQuadPipeline(ctx Context, name string, tableCapacity uint32) (*quadPipeline, error) {
	size, err := graph.PushSize(QuadConstants{}, ctx.Device.Limits().MaxPushConstantsSize)
	if err != nil {
		return nil, err
	}
	vert, err := ctx.Shaders.LoadShader("quad", gpu.ShaderVertex)
	if err != nil {
		return nil, errors.Wrap(err, "loading quad vertex shader")
	}
	frag, err := ctx.Shaders.LoadShader("quad", gpu.ShaderFragment)
	if err != nil {
		return nil, errors.Wrap(err, "loading quad fragment shader")
	}
	handle, err := ctx.Device.CreatePipeline(gpu.PipelineDesc{
		Name:             name,
		Pass:             ctx.Pass,
		VertexShader:     vert,
		FragmentShader:   frag,
		Cull:             gpu.CullNone,
		Blend:            gpu.BlendAlpha,
		PushConstantSize: size,
		Tables:           []uint32{tableCapacity},
	})
	if err != nil {
		return nil, errors.Wrapf(err, "creating %s pipeline", name)
	}
	core.LogDebug("overlay pipeline %s created", name)
	return &quadPipeline{ctx: ctx, name: name, capacity: tableCapacity, handle: handle, size: size}, nil
}

// retarget recreates the pipeline for a new present pass. The GPU must be
// idle. On failure the overlay stops drawing.
func (p *quadPipeline) retarget(pass gpu.RenderPass) {
	if pass == 0 || pass == p.ctx.Pass {
		return
	}
	ctx := p.ctx
	ctx.Pass = pass
	next, err := newQuadPipeline(ctx, p.name, p.capacity)
	p.destroy()
	p.ctx = ctx
	if err != nil {
		core.LogError("overlay %s disabled: %s", p.name, err)
		return
	}
	p.handle = next.handle
}

func (p *quadPipeline) ready() bool {
	return p.handle != 0
}

func (p *quadPipeline) bind(cb gpu.CommandBuffer, table gpu.TextureTable) {
	cb.BindPipeline(p.handle)
	cb.BindTextureTable(p.handle, 0, table)
}

func (p *quadPipeline) draw(cb gpu.CommandBuffer, q QuadConstants) {
	cb.PushConstants(p.handle, p.enc.Encode(q))
	cb.Draw(6)
}

func (p *quadPipeline) destroy() {
	if p != nil && p.handle != 0 {
		p.ctx.Device.DestroyPipeline(p.handle)
		p.handle = 0
	}
}
