package vulkan

import (
	"runtime"
	"unsafe"

	"github.com/cockroachdb/errors"
	vk "github.com/goki/vulkan"

	"github.com/spaghettifunk/prism/engine/core"
	"github.com/spaghettifunk/prism/engine/renderer/gpu"
)

// pipeline holds a graphics pipeline and its layout.
type pipeline struct {
	handle vk.Pipeline
	layout vk.PipelineLayout
}

// meshAttributes matches gpu.Vertex: position, normal, uv.
var meshAttributes = []vk.VertexInputAttributeDescription{
	{Location: 0, Binding: 0, Format: vk.FormatR32g32b32Sfloat, Offset: 0},
	{Location: 1, Binding: 0, Format: vk.FormatR32g32b32Sfloat, Offset: 12},
	{Location: 2, Binding: 0, Format: vk.FormatR32g32Sfloat, Offset: 24},
}

// tableSpecialization sets constant_id 0, the length shaders declare for
// the texture array of set 0, to the table capacity.
func tableSpecialization(capacity *uint32) *vk.SpecializationInfo {
	return &vk.SpecializationInfo{
		MapEntryCount: 1,
		PMapEntries:   []vk.SpecializationMapEntry{{ConstantID: 0, Offset: 0, Size: 4}},
		DataSize:      4,
		PData:         unsafe.Pointer(capacity),
	}
}

func (d *Device) CreatePipeline(desc gpu.PipelineDesc) (gpu.Pipeline, error) {
	pass, ok := d.passes[desc.Pass]
	if !ok {
		return 0, errors.Newf("pipeline %q: unknown render pass %d", desc.Name, desc.Pass)
	}
	if desc.PushConstantSize%4 != 0 || desc.PushConstantSize > d.limits.MaxPushConstantsSize {
		return 0, errors.Newf("pipeline %q: push constant size %d is invalid (limit %d)", desc.Name, desc.PushConstantSize, d.limits.MaxPushConstantsSize)
	}

	vert, err := d.createShaderStage(gpu.ShaderVertex, desc.VertexShader)
	if err != nil {
		return 0, errors.Wrapf(err, "pipeline %q", desc.Name)
	}
	defer d.destroyShaderStage(vert)
	frag, err := d.createShaderStage(gpu.ShaderFragment, desc.FragmentShader)
	if err != nil {
		return 0, errors.Wrapf(err, "pipeline %q", desc.Name)
	}
	defer d.destroyShaderStage(frag)

	var capacity uint32
	if len(desc.Tables) > 0 {
		capacity = desc.Tables[0]
		spec := tableSpecialization(&capacity)
		vert.info.PSpecializationInfo = spec
		frag.info.PSpecializationInfo = spec
	}

	setLayouts := make([]vk.DescriptorSetLayout, len(desc.Tables))
	for i, capacity := range desc.Tables {
		l, err := d.tableLayout(capacity)
		if err != nil {
			return 0, errors.Wrapf(err, "pipeline %q", desc.Name)
		}
		setLayouts[i] = l
	}
	layoutInfo := vk.PipelineLayoutCreateInfo{
		SType:          vk.StructureTypePipelineLayoutCreateInfo,
		SetLayoutCount: uint32(len(setLayouts)),
		PSetLayouts:    setLayouts,
	}
	if desc.PushConstantSize > 0 {
		layoutInfo.PushConstantRangeCount = 1
		layoutInfo.PPushConstantRanges = []vk.PushConstantRange{{
			StageFlags: vk.ShaderStageFlags(vk.ShaderStageVertexBit | vk.ShaderStageFragmentBit),
			Offset:     0,
			Size:       desc.PushConstantSize,
		}}
	}
	var layout vk.PipelineLayout
	if err := resultError(vk.CreatePipelineLayout(d.logical, &layoutInfo, nil, &layout), "vkCreatePipelineLayout"); err != nil {
		return 0, errors.Wrapf(err, "pipeline %q", desc.Name)
	}

	// Viewport and scissor are dynamic, the counts still have to be set.
	viewportState := vk.PipelineViewportStateCreateInfo{
		SType:         vk.StructureTypePipelineViewportStateCreateInfo,
		ViewportCount: 1,
		ScissorCount:  1,
	}

	rasterizer := vk.PipelineRasterizationStateCreateInfo{
		SType:       vk.StructureTypePipelineRasterizationStateCreateInfo,
		PolygonMode: vk.PolygonModeFill,
		LineWidth:   1.0,
		FrontFace:   vk.FrontFaceCounterClockwise,
		CullMode:    vk.CullModeFlags(vk.CullModeBackBit),
	}
	if desc.Cull == gpu.CullNone {
		rasterizer.CullMode = vk.CullModeFlags(vk.CullModeNone)
	}

	multisampling := vk.PipelineMultisampleStateCreateInfo{
		SType:                vk.StructureTypePipelineMultisampleStateCreateInfo,
		RasterizationSamples: vk.SampleCount1Bit,
		MinSampleShading:     1.0,
	}

	depthStencil := vk.PipelineDepthStencilStateCreateInfo{
		SType:            vk.StructureTypePipelineDepthStencilStateCreateInfo,
		DepthTestEnable:  vk.False,
		DepthWriteEnable: vk.False,
		DepthCompareOp:   vk.CompareOpLessOrEqual,
	}
	if desc.DepthTest {
		depthStencil.DepthTestEnable = vk.True
	}
	if desc.DepthWrite {
		depthStencil.DepthWriteEnable = vk.True
	}

	writeMask := vk.ColorComponentFlags(vk.ColorComponentRBit | vk.ColorComponentGBit | vk.ColorComponentBBit | vk.ColorComponentABit)
	blend := vk.PipelineColorBlendAttachmentState{
		BlendEnable:    vk.False,
		ColorWriteMask: writeMask,
	}
	if desc.Blend == gpu.BlendAlpha {
		blend = vk.PipelineColorBlendAttachmentState{
			BlendEnable:         vk.True,
			SrcColorBlendFactor: vk.BlendFactorSrcAlpha,
			DstColorBlendFactor: vk.BlendFactorOneMinusSrcAlpha,
			ColorBlendOp:        vk.BlendOpAdd,
			SrcAlphaBlendFactor: vk.BlendFactorOne,
			DstAlphaBlendFactor: vk.BlendFactorOneMinusSrcAlpha,
			AlphaBlendOp:        vk.BlendOpAdd,
			ColorWriteMask:      writeMask,
		}
	}
	blends := make([]vk.PipelineColorBlendAttachmentState, pass.colorCount)
	for i := range blends {
		blends[i] = blend
	}
	colorBlend := vk.PipelineColorBlendStateCreateInfo{
		SType:           vk.StructureTypePipelineColorBlendStateCreateInfo,
		LogicOpEnable:   vk.False,
		LogicOp:         vk.LogicOpCopy,
		AttachmentCount: uint32(len(blends)),
		PAttachments:    blends,
	}

	dynamicStates := []vk.DynamicState{
		vk.DynamicStateViewport,
		vk.DynamicStateScissor,
	}
	dynamicState := vk.PipelineDynamicStateCreateInfo{
		SType:             vk.StructureTypePipelineDynamicStateCreateInfo,
		DynamicStateCount: uint32(len(dynamicStates)),
		PDynamicStates:    dynamicStates,
	}

	vertexInput := vk.PipelineVertexInputStateCreateInfo{
		SType: vk.StructureTypePipelineVertexInputStateCreateInfo,
	}
	if desc.MeshInput {
		vertexInput.VertexBindingDescriptionCount = 1
		vertexInput.PVertexBindingDescriptions = []vk.VertexInputBindingDescription{{
			Binding:   0,
			Stride:    gpu.VertexSize,
			InputRate: vk.VertexInputRateVertex,
		}}
		vertexInput.VertexAttributeDescriptionCount = uint32(len(meshAttributes))
		vertexInput.PVertexAttributeDescriptions = meshAttributes
	}

	inputAssembly := vk.PipelineInputAssemblyStateCreateInfo{
		SType:    vk.StructureTypePipelineInputAssemblyStateCreateInfo,
		Topology: vk.PrimitiveTopologyTriangleList,
	}

	info := vk.GraphicsPipelineCreateInfo{
		SType:               vk.StructureTypeGraphicsPipelineCreateInfo,
		StageCount:          2,
		PStages:             []vk.PipelineShaderStageCreateInfo{vert.info, frag.info},
		PVertexInputState:   &vertexInput,
		PInputAssemblyState: &inputAssembly,
		PViewportState:      &viewportState,
		PRasterizationState: &rasterizer,
		PMultisampleState:   &multisampling,
		PDepthStencilState:  &depthStencil,
		PColorBlendState:    &colorBlend,
		PDynamicState:       &dynamicState,
		Layout:              layout,
		RenderPass:          pass.handle,
		Subpass:             0,
		BasePipelineHandle:  vk.NullPipeline,
		BasePipelineIndex:   -1,
	}
	pipelines := make([]vk.Pipeline, 1)
	if err := resultError(vk.CreateGraphicsPipelines(d.logical, vk.NullPipelineCache, 1, []vk.GraphicsPipelineCreateInfo{info}, nil, pipelines), "vkCreateGraphicsPipelines"); err != nil {
		vk.DestroyPipelineLayout(d.logical, layout, nil)
		return 0, errors.Wrapf(err, "pipeline %q", desc.Name)
	}
	runtime.KeepAlive(&capacity)

	h := gpu.Pipeline(d.handle())
	d.pipelines[h] = &pipeline{handle: pipelines[0], layout: layout}
	core.LogDebug("Graphics pipeline %q created.", desc.Name)
	return h, nil
}

func (d *Device) DestroyPipeline(p gpu.Pipeline) {
	pl, ok := d.pipelines[p]
	if !ok {
		return
	}
	vk.DestroyPipeline(d.logical, pl.handle, nil)
	vk.DestroyPipelineLayout(d.logical, pl.layout, nil)
	delete(d.pipelines, p)
}
