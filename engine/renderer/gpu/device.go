package gpu

import "time"

// Device owns every GPU object it hands out. All methods are called from
// the rendering thread.
type Device interface {
	Limits() Limits
	// DepthFormat is the best supported depth attachment format.
	DepthFormat() Format

	CreateBuffer(desc BufferDesc) (Buffer, error)
	DestroyBuffer(b Buffer)
	// AllocateBufferMemory allocates memory matching the buffer's
	// requirements and binds it.
	AllocateBufferMemory(b Buffer, kind MemoryKind) (Memory, error)

	CreateImage(desc ImageDesc) (Image, error)
	DestroyImage(img Image)
	AllocateImageMemory(img Image, kind MemoryKind) (Memory, error)
	CreateImageView(img Image, desc ViewDesc) (ImageView, error)
	DestroyImageView(view ImageView)

	FreeMemory(m Memory)
	// WriteMemory copies data into host-visible memory at offset.
	WriteMemory(m Memory, offset uint64, data []byte) error

	CreateSampler(desc SamplerDesc) (Sampler, error)
	DestroySampler(s Sampler)

	CreateFence(signaled bool) (Fence, error)
	DestroyFence(f Fence)
	// WaitFence blocks until f is signaled or the timeout expires
	// (ErrTimeout).
	WaitFence(f Fence, timeout time.Duration) error
	ResetFence(f Fence) error
	CreateSemaphore() (Semaphore, error)
	DestroySemaphore(s Semaphore)

	AllocateCommandBuffer() (CommandBuffer, error)
	FreeCommandBuffer(cb CommandBuffer)
	Submit(info SubmitInfo) error
	// SubmitAndWait submits a one-shot command buffer and blocks until the
	// queue is idle.
	SubmitAndWait(cb CommandBuffer) error
	WaitIdle() error

	SurfaceCapabilities() (SurfaceCapabilities, error)
	CreateSwapchain(desc SwapchainDesc) (Swapchain, []Image, error)
	DestroySwapchain(sc Swapchain)
	// AcquireNextImage returns ErrSurfaceStale when the swapchain no longer
	// matches the surface. ErrSuboptimal comes with a valid index.
	AcquireNextImage(sc Swapchain, timeout time.Duration, signal Semaphore) (uint32, error)
	// Present returns ErrSurfaceStale or ErrSuboptimal when the swapchain
	// needs a rebuild. The image is still handed to the display.
	Present(sc Swapchain, index uint32, wait Semaphore) error

	CreateRenderPass(desc RenderPassDesc) (RenderPass, error)
	DestroyRenderPass(rp RenderPass)
	CreateFramebuffer(rp RenderPass, attachments []ImageView, extent Extent) (Framebuffer, error)
	DestroyFramebuffer(fb Framebuffer)
	CreatePipeline(desc PipelineDesc) (Pipeline, error)
	DestroyPipeline(p Pipeline)

	// CreateTextureTable creates a set of capacity combined image samplers
	// addressable by index from shaders.
	CreateTextureTable(capacity uint32) (TextureTable, error)
	// WriteTextureTable points slot at view sampled with sampler. The view
	// must be in LayoutShaderReadOnly when the table is used.
	WriteTextureTable(t TextureTable, slot uint32, view ImageView, sampler Sampler) error
	DestroyTextureTable(t TextureTable)
}

// CommandBuffer records GPU work. Recording methods do not fail: errors
// surface when the buffer is ended or submitted.
type CommandBuffer interface {
	Begin(oneShot bool) error
	End() error
	Reset() error

	PipelineBarrier(barriers ...ImageBarrier)
	CopyBuffer(src, dst Buffer, size uint64)
	CopyBufferToImage(src Buffer, dst Image, extent Extent)

	BeginRenderPass(rp RenderPass, fb Framebuffer, area Extent, clears []ClearValue)
	EndRenderPass()
	SetViewport(area Extent)
	BindPipeline(p Pipeline)
	BindTextureTable(p Pipeline, set uint32, t TextureTable)
	PushConstants(p Pipeline, data []byte)
	BindVertexBuffer(b Buffer)
	BindIndexBuffer(b Buffer)
	Draw(vertexCount uint32)
	DrawIndexed(indexCount uint32)
}
