// Package gpu is the device abstraction the frame pipeline is written
// against. Handles are opaque integers owned by a Device; zero is null.
package gpu

import "fmt"

type (
	Buffer       uint64
	Memory       uint64
	Image        uint64
	ImageView    uint64
	Sampler      uint64
	Fence        uint64
	Semaphore    uint64
	RenderPass   uint64
	Framebuffer  uint64
	Pipeline     uint64
	Swapchain    uint64
	TextureTable uint64
)

type Extent struct {
	Width  uint32
	Height uint32
}

func (e Extent) IsZero() bool {
	return e.Width == 0 || e.Height == 0
}

// Scaled divides both dimensions by div, never going below 1.
func (e Extent) Scaled(div uint32) Extent {
	s := Extent{Width: e.Width / div, Height: e.Height / div}
	if s.Width == 0 {
		s.Width = 1
	}
	if s.Height == 0 {
		s.Height = 1
	}
	return s
}

func (e Extent) String() string {
	return fmt.Sprintf("%dx%d", e.Width, e.Height)
}

type Format uint8

const (
	FormatUndefined Format = iota
	FormatRGBA8Unorm
	FormatRGBA8Srgb
	FormatBGRA8Unorm
	FormatBGRA8Srgb
	FormatRGBA16Float
	FormatD32Float
	FormatD32FloatS8
	FormatD24UnormS8
)

func (f Format) IsDepth() bool {
	return f == FormatD32Float || f == FormatD32FloatS8 || f == FormatD24UnormS8
}

func (f Format) String() string {
	switch f {
	case FormatRGBA8Unorm:
		return "RGBA8Unorm"
	case FormatRGBA8Srgb:
		return "RGBA8Srgb"
	case FormatBGRA8Unorm:
		return "BGRA8Unorm"
	case FormatBGRA8Srgb:
		return "BGRA8Srgb"
	case FormatRGBA16Float:
		return "RGBA16Float"
	case FormatD32Float:
		return "D32Float"
	case FormatD32FloatS8:
		return "D32FloatS8"
	case FormatD24UnormS8:
		return "D24UnormS8"
	}
	return "Undefined"
}

// Layout is the memory layout an image is in.
type Layout uint8

const (
	LayoutUndefined Layout = iota
	LayoutTransferDst
	LayoutShaderReadOnly
	LayoutColorAttachment
	LayoutDepthAttachment
	LayoutPresentSrc
)

func (l Layout) String() string {
	switch l {
	case LayoutUndefined:
		return "Undefined"
	case LayoutTransferDst:
		return "TransferDst"
	case LayoutShaderReadOnly:
		return "ShaderReadOnly"
	case LayoutColorAttachment:
		return "ColorAttachment"
	case LayoutDepthAttachment:
		return "DepthAttachment"
	case LayoutPresentSrc:
		return "PresentSrc"
	}
	return fmt.Sprintf("Layout(%d)", uint8(l))
}

// Writable reports whether the layout is one a pass writes in.
func (l Layout) Writable() bool {
	return l == LayoutColorAttachment || l == LayoutDepthAttachment || l == LayoutTransferDst
}

type Aspect uint8

const (
	AspectColor Aspect = 1 << iota
	AspectDepth
)

type PipelineStage uint32

const (
	StageTopOfPipe PipelineStage = 1 << iota
	StageTransfer
	StageFragmentShader
	StageEarlyFragmentTests
	StageLateFragmentTests
	StageColorAttachmentOutput
	StageBottomOfPipe
)

type Access uint32

const AccessNone Access = 0

const (
	AccessTransferWrite Access = 1 << iota
	AccessShaderRead
	AccessColorAttachmentRead
	AccessColorAttachmentWrite
	AccessDepthAttachmentRead
	AccessDepthAttachmentWrite
)

type BufferUsage uint32

const (
	BufferUsageTransferSrc BufferUsage = 1 << iota
	BufferUsageTransferDst
	BufferUsageVertex
	BufferUsageIndex
)

type ImageUsage uint32

const (
	ImageUsageTransferDst ImageUsage = 1 << iota
	ImageUsageSampled
	ImageUsageColorAttachment
	ImageUsageDepthAttachment
)

// MemoryKind selects between CPU-writable staging memory and device-local
// memory.
type MemoryKind uint8

const (
	MemoryDeviceLocal MemoryKind = iota
	MemoryHostVisible
)

type BufferDesc struct {
	Size  uint64
	Usage BufferUsage
}

type ImageDesc struct {
	Extent Extent
	Format Format
	Usage  ImageUsage
}

type ViewDesc struct {
	Format Format
	Aspect Aspect
}

type Filter uint8

const (
	FilterLinear Filter = iota
	FilterNearest
)

type AddressMode uint8

const (
	AddressRepeat AddressMode = iota
	AddressClampToEdge
)

type SamplerDesc struct {
	Filter  Filter
	Address AddressMode
	// Anisotropy enables anisotropic filtering at the device maximum.
	Anisotropy bool
}

// ImageBarrier moves an image between layouts with an execution and memory
// dependency between the given stages.
type ImageBarrier struct {
	Image     Image
	Aspect    Aspect
	OldLayout Layout
	NewLayout Layout
	SrcStage  PipelineStage
	DstStage  PipelineStage
	SrcAccess Access
	DstAccess Access
}

type LoadOp uint8

const (
	LoadOpClear LoadOp = iota
	LoadOpLoad
	LoadOpDontCare
)

// AttachmentDesc describes one render pass attachment. The pass starts and
// ends in Layout: transitions are recorded explicitly as barriers.
type AttachmentDesc struct {
	Format Format
	Load   LoadOp
	Layout Layout
}

type RenderPassDesc struct {
	Name  string
	Color []AttachmentDesc
	Depth *AttachmentDesc
}

type ClearValue struct {
	Color   [4]float32
	Depth   float32
	Stencil uint32
}

type CullMode uint8

const (
	CullBack CullMode = iota
	CullNone
)

type BlendMode uint8

const (
	BlendOpaque BlendMode = iota
	BlendAlpha
)

type ShaderStage uint8

const (
	ShaderVertex ShaderStage = iota
	ShaderFragment
)

func (s ShaderStage) String() string {
	if s == ShaderVertex {
		return "vert"
	}
	return "frag"
}

type PipelineDesc struct {
	Name           string
	Pass           RenderPass
	VertexShader   []byte
	FragmentShader []byte
	// MeshInput enables the Vertex layout as the vertex input. Full-screen
	// pipelines generate their vertices in the shader.
	MeshInput  bool
	DepthTest  bool
	DepthWrite bool
	Cull       CullMode
	Blend      BlendMode
	// PushConstantSize is the byte size of the block visible to both stages.
	PushConstantSize uint32
	// Tables lists the capacity of each texture table set, in set order.
	Tables []uint32
}

type SwapchainDesc struct {
	Extent      Extent
	Format      Format
	ImageCount  uint32
	PresentMode PresentMode
	Old         Swapchain
}

type PresentMode uint8

const (
	PresentFifo PresentMode = iota
	PresentMailbox
)

type SurfaceCapabilities struct {
	CurrentExtent Extent
	MinExtent     Extent
	MaxExtent     Extent
	MinImageCount uint32
	MaxImageCount uint32
	Formats       []Format
	PresentModes  []PresentMode
}

type Limits struct {
	MaxPushConstantsSize uint32
	MaxTextureTableSize  uint32
}

// SubmitInfo describes one queue submission of a recorded frame.
type SubmitInfo struct {
	Commands  CommandBuffer
	Wait      Semaphore
	WaitStage PipelineStage
	Signal    Semaphore
	Fence     Fence
}

// Vertex is the mesh vertex layout shared by every mesh pipeline.
type Vertex struct {
	Position [3]float32
	Normal   [3]float32
	UV       [2]float32
}

// VertexSize is the byte stride of Vertex.
const VertexSize = 32
