package graph

import (
	"github.com/cockroachdb/errors"

	"github.com/spaghettifunk/prism/engine/core"
	"github.com/spaghettifunk/prism/engine/renderer/gpu"
	"github.com/spaghettifunk/prism/engine/renderer/swapchain"
)

// ShaderSource loads compiled SPIR-V by shader name and stage.
type ShaderSource interface {
	LoadShader(name string, stage gpu.ShaderStage) ([]byte, error)
}

type PipelineKind uint8

const (
	PipelineSky PipelineKind = iota
	PipelineStandard
	PipelineDoubleSided
	PipelineTransmissive
	PipelineWater
	PipelineBloom
	PipelineComposite
	pipelineKinds
)

var pipelineNames = [...]string{
	PipelineSky:          "sky",
	PipelineStandard:     "standard",
	PipelineDoubleSided:  "double-sided",
	PipelineTransmissive: "transmissive",
	PipelineWater:        "water",
	PipelineBloom:        "bloom",
	PipelineComposite:    "composite",
}

func (k PipelineKind) String() string {
	if int(k) < len(pipelineNames) {
		return pipelineNames[k]
	}
	return "unknown"
}

type pipelineSpec struct {
	kind     PipelineKind
	vertex   string
	fragment string
	pass     func(swapchain.Passes) gpu.RenderPass
	record   interface{}
	mesh     bool
	depth    bool
	write    bool
	cull     gpu.CullMode
	blend    gpu.BlendMode
	// tables returns the texture table capacities, in set order.
	tables func(textures uint32) []uint32
}

func hdrPass(p swapchain.Passes) gpu.RenderPass { return p.HDRLoad }

func bindless(textures uint32) []uint32 { return []uint32{textures} }

func inputs(n uint32) func(uint32) []uint32 {
	return func(uint32) []uint32 { return []uint32{n} }
}

var pipelineSpecs = []pipelineSpec{
	{
		kind: PipelineSky, vertex: "fullscreen", fragment: "sky",
		pass:   func(p swapchain.Passes) gpu.RenderPass { return p.HDRClear },
		record: SkyConstants{}, cull: gpu.CullNone,
	},
	{
		kind: PipelineStandard, vertex: "mesh", fragment: "standard",
		pass: hdrPass, record: DrawConstants{}, mesh: true, depth: true, write: true,
		cull: gpu.CullBack, tables: bindless,
	},
	{
		kind: PipelineDoubleSided, vertex: "mesh", fragment: "standard",
		pass: hdrPass, record: DrawConstants{}, mesh: true, depth: true, write: true,
		cull: gpu.CullNone, tables: bindless,
	},
	{
		kind: PipelineTransmissive, vertex: "mesh", fragment: "transmissive",
		pass: hdrPass, record: DrawConstants{}, mesh: true, depth: true,
		cull: gpu.CullNone, blend: gpu.BlendAlpha, tables: bindless,
	},
	{
		kind: PipelineWater, vertex: "water", fragment: "water",
		pass: hdrPass, record: WaterConstants{}, mesh: true, depth: true,
		cull: gpu.CullNone, blend: gpu.BlendAlpha,
	},
	{
		kind: PipelineBloom, vertex: "fullscreen", fragment: "bloom",
		pass:   func(p swapchain.Passes) gpu.RenderPass { return p.Bloom },
		record: BloomConstants{}, cull: gpu.CullNone, tables: inputs(1),
	},
	{
		kind: PipelineComposite, vertex: "fullscreen", fragment: "composite",
		pass:   func(p swapchain.Passes) gpu.RenderPass { return p.Composite },
		record: CompositeConstants{}, cull: gpu.CullNone, tables: inputs(2),
	},
}

type pipeline struct {
	handle   gpu.Pipeline
	pushSize uint32
}

func (g *Graph) createPipelines(shaders ShaderSource) error {
	limit := g.dev.Limits().MaxPushConstantsSize
	for _, spec := range pipelineSpecs {
		size, err := PushSize(spec.record, limit)
		if err != nil {
			return errors.Wrapf(err, "pipeline %s", spec.kind)
		}
		vert, err := shaders.LoadShader(spec.vertex, gpu.ShaderVertex)
		if err != nil {
			return errors.Wrapf(err, "loading %s vertex shader", spec.vertex)
		}
		frag, err := shaders.LoadShader(spec.fragment, gpu.ShaderFragment)
		if err != nil {
			return errors.Wrapf(err, "loading %s fragment shader", spec.fragment)
		}
		desc := gpu.PipelineDesc{
			Name:             spec.kind.String(),
			Pass:             spec.pass(g.swapchain.Passes()),
			VertexShader:     vert,
			FragmentShader:   frag,
			MeshInput:        spec.mesh,
			DepthTest:        spec.depth,
			DepthWrite:       spec.write,
			Cull:             spec.cull,
			Blend:            spec.blend,
			PushConstantSize: size,
		}
		if spec.tables != nil {
			desc.Tables = spec.tables(g.cache.Capacity())
		}
		handle, err := g.dev.CreatePipeline(desc)
		if err != nil {
			return errors.Wrapf(err, "creating %s pipeline", spec.kind)
		}
		g.pipelines[spec.kind] = pipeline{handle: handle, pushSize: size}
		core.LogDebug("pipeline %s created (push constants %d bytes)", spec.kind, size)
	}
	return nil
}

// push encodes record and checks it against the block size the pipeline
// was created with.
func (g *Graph) push(cb gpu.CommandBuffer, kind PipelineKind, record interface{}) error {
	p := g.pipelines[kind]
	data := g.enc.Encode(record)
	if uint32(len(data)) != p.pushSize {
		return errors.Mark(
			errors.AssertionFailedf("pipeline %s expects %d push constant bytes, got %d", kind, p.pushSize, len(data)),
			core.ErrShaderContract)
	}
	cb.PushConstants(p.handle, data)
	return nil
}
