// Package gputest provides an in-memory gpu.Device that records every call,
// models in-order GPU completion, and reports protocol violations.
package gputest

import (
	"fmt"
	"time"

	"github.com/cockroachdb/errors"

	"github.com/spaghettifunk/prism/engine/renderer/gpu"
)

type imageInfo struct {
	desc      gpu.ImageDesc
	layout    gpu.Layout
	swapchain bool
	memory    gpu.Memory
}

type viewInfo struct {
	image gpu.Image
}

type memoryInfo struct {
	kind  gpu.MemoryKind
	data  []byte
	owner uint64
}

type fenceInfo struct {
	signaled bool
}

type framebufferInfo struct {
	pass   gpu.RenderPass
	views  []gpu.ImageView
	extent gpu.Extent
}

type tableInfo struct {
	slots []gpu.ImageView
}

type submission struct {
	cb    *CommandBuffer
	fence gpu.Fence
}

// Device is a fake gpu.Device. The zero value is not usable; call New.
type Device struct {
	next uint64
	kind map[uint64]string

	buffers      map[gpu.Buffer]gpu.BufferDesc
	bufferMemory map[gpu.Buffer]gpu.Memory
	images       map[gpu.Image]*imageInfo
	views        map[gpu.ImageView]viewInfo
	memory       map[gpu.Memory]*memoryInfo
	fences       map[gpu.Fence]*fenceInfo
	semaphores   map[gpu.Semaphore]bool
	passes       map[gpu.RenderPass]gpu.RenderPassDesc
	framebuffers map[gpu.Framebuffer]framebufferInfo
	pipelines    map[gpu.Pipeline]gpu.PipelineDesc
	tables       map[gpu.TextureTable]*tableInfo
	swapchains   map[gpu.Swapchain][]gpu.Image
	commands     map[*CommandBuffer]bool

	pending []submission
	acquire uint32

	failAt map[string]int

	// Surface is what SurfaceCapabilities reports as the current extent.
	Surface gpu.Extent
	// Caps is the template for SurfaceCapabilities.
	Caps gpu.SurfaceCapabilities
	Lims gpu.Limits
	Depth gpu.Format

	// StaleAcquires and StalePresents make the next N calls report a stale
	// surface. SuboptimalPresents does the same with ErrSuboptimal.
	StaleAcquires      int
	StalePresents      int
	SuboptimalPresents int
	// SubmitErr, when set, is returned by the next Submit.
	SubmitErr error

	// Log is a chronological record of every call, one line each.
	Log []string
	// Violations lists protocol errors detected while recording or
	// submitting. A correct pipeline leaves it empty.
	Violations []string

	MaxInFlight   int
	Uploads       int
	BufferCopies  int
	Submits       int
	Presents      int
	IdleWaits     int
	TableWrites   int
	ZeroSizeBuilt int
}

// New returns a device with an 800x600 surface.
func New() *Device {
	d := &Device{
		kind:         make(map[uint64]string),
		buffers:      make(map[gpu.Buffer]gpu.BufferDesc),
		bufferMemory: make(map[gpu.Buffer]gpu.Memory),
		images:       make(map[gpu.Image]*imageInfo),
		views:        make(map[gpu.ImageView]viewInfo),
		memory:       make(map[gpu.Memory]*memoryInfo),
		fences:       make(map[gpu.Fence]*fenceInfo),
		semaphores:   make(map[gpu.Semaphore]bool),
		passes:       make(map[gpu.RenderPass]gpu.RenderPassDesc),
		framebuffers: make(map[gpu.Framebuffer]framebufferInfo),
		pipelines:    make(map[gpu.Pipeline]gpu.PipelineDesc),
		tables:       make(map[gpu.TextureTable]*tableInfo),
		swapchains:   make(map[gpu.Swapchain][]gpu.Image),
		commands:     make(map[*CommandBuffer]bool),
		failAt:       make(map[string]int),
		Surface:      gpu.Extent{Width: 800, Height: 600},
		Caps: gpu.SurfaceCapabilities{
			MinExtent:     gpu.Extent{Width: 1, Height: 1},
			MaxExtent:     gpu.Extent{Width: 16384, Height: 16384},
			MinImageCount: 2,
			MaxImageCount: 8,
			Formats:       []gpu.Format{gpu.FormatBGRA8Srgb, gpu.FormatBGRA8Unorm},
			PresentModes:  []gpu.PresentMode{gpu.PresentFifo, gpu.PresentMailbox},
		},
		Lims: gpu.Limits{
			MaxPushConstantsSize: 256,
			MaxTextureTableSize:  1 << 16,
		},
		Depth: gpu.FormatD32Float,
	}
	return d
}

// FailNth makes the nth next call of op (a method name such as
// "CreateImage") fail with gpu.ErrOutOfMemory.
func (d *Device) FailNth(op string, n int) {
	d.failAt[op] = n
}

func (d *Device) fail(op string) error {
	n, ok := d.failAt[op]
	if !ok {
		return nil
	}
	n--
	if n <= 0 {
		delete(d.failAt, op)
		return errors.Wrapf(gpu.ErrOutOfMemory, "injected %s failure", op)
	}
	d.failAt[op] = n
	return nil
}

func (d *Device) logf(format string, args ...interface{}) {
	d.Log = append(d.Log, fmt.Sprintf(format, args...))
}

func (d *Device) violation(format string, args ...interface{}) {
	d.Violations = append(d.Violations, fmt.Sprintf(format, args...))
}

func (d *Device) alloc(kind string) uint64 {
	d.next++
	d.kind[d.next] = kind
	return d.next
}

func (d *Device) release(kind string, h uint64) bool {
	if h == 0 {
		d.violation("destroy null %s", kind)
		return false
	}
	if d.kind[h] != kind {
		d.violation("destroy of dead or foreign %s %d", kind, h)
		return false
	}
	delete(d.kind, h)
	return true
}

// Live returns the number of live objects of kind ("Image", "Buffer",
// "Memory", "ImageView", ...), or of every kind when kind is empty.
func (d *Device) Live(kind string) int {
	n := 0
	for _, k := range d.kind {
		if kind == "" || k == kind {
			n++
		}
	}
	return n
}

// ImageExtent returns the extent an image was created with.
func (d *Device) ImageExtent(img gpu.Image) gpu.Extent {
	if info, ok := d.images[img]; ok {
		return info.desc.Extent
	}
	return gpu.Extent{}
}

// ImageLayout returns the layout recorded for img.
func (d *Device) ImageLayout(img gpu.Image) gpu.Layout {
	if info, ok := d.images[img]; ok {
		return info.layout
	}
	return gpu.LayoutUndefined
}

// ViewImage returns the image a view was created from.
func (d *Device) ViewImage(view gpu.ImageView) gpu.Image {
	return d.views[view].image
}

// LiveImages returns the extents of every live image, swapchain images
// included.
func (d *Device) LiveImages() map[gpu.Image]gpu.ImageDesc {
	out := make(map[gpu.Image]gpu.ImageDesc, len(d.images))
	for h, info := range d.images {
		out[h] = info.desc
	}
	return out
}

// TableSlot returns the view written at slot, or 0.
func (d *Device) TableSlot(t gpu.TextureTable, slot uint32) gpu.ImageView {
	info, ok := d.tables[t]
	if !ok || int(slot) >= len(info.slots) {
		return 0
	}
	return info.slots[slot]
}

// Pipeline returns the description a pipeline was created with.
func (d *Device) Pipeline(p gpu.Pipeline) gpu.PipelineDesc {
	return d.pipelines[p]
}

// FenceSignaled reports the fence state.
func (d *Device) FenceSignaled(f gpu.Fence) bool {
	info, ok := d.fences[f]
	return ok && info.signaled
}

// InFlight is the number of submissions the fake GPU has not retired.
func (d *Device) InFlight() int {
	return len(d.pending)
}

// Complete retires every pending submission, as if the GPU caught up.
func (d *Device) Complete() {
	d.retire(len(d.pending))
}

func (d *Device) retire(n int) {
	for i := 0; i < n; i++ {
		s := d.pending[i]
		if f, ok := d.fences[s.fence]; ok {
			f.signaled = true
			d.logf("signal fence=%d", s.fence)
		}
	}
	d.pending = d.pending[n:]
}

func (d *Device) Limits() gpu.Limits {
	return d.Lims
}

func (d *Device) DepthFormat() gpu.Format {
	return d.Depth
}

func (d *Device) CreateBuffer(desc gpu.BufferDesc) (gpu.Buffer, error) {
	if err := d.fail("CreateBuffer"); err != nil {
		return 0, err
	}
	if desc.Size == 0 {
		d.violation("zero-sized buffer")
		return 0, errors.New("zero-sized buffer")
	}
	h := gpu.Buffer(d.alloc("Buffer"))
	d.buffers[h] = desc
	d.logf("CreateBuffer %d size=%d", h, desc.Size)
	return h, nil
}

func (d *Device) DestroyBuffer(b gpu.Buffer) {
	if !d.release("Buffer", uint64(b)) {
		return
	}
	delete(d.buffers, b)
	d.logf("DestroyBuffer %d", b)
}

func (d *Device) AllocateBufferMemory(b gpu.Buffer, kind gpu.MemoryKind) (gpu.Memory, error) {
	if err := d.fail("AllocateBufferMemory"); err != nil {
		return 0, err
	}
	desc, ok := d.buffers[b]
	if !ok {
		return 0, errors.Newf("unknown buffer %d", b)
	}
	m := gpu.Memory(d.alloc("Memory"))
	d.memory[m] = &memoryInfo{kind: kind, data: make([]byte, desc.Size), owner: uint64(b)}
	d.bufferMemory[b] = m
	d.logf("AllocateBufferMemory %d buffer=%d", m, b)
	return m, nil
}

func (d *Device) CreateImage(desc gpu.ImageDesc) (gpu.Image, error) {
	if err := d.fail("CreateImage"); err != nil {
		return 0, err
	}
	if desc.Extent.IsZero() {
		d.ZeroSizeBuilt++
		d.violation("zero-sized image %s", desc.Extent)
		return 0, errors.New("zero-sized image")
	}
	h := gpu.Image(d.alloc("Image"))
	d.images[h] = &imageInfo{desc: desc}
	d.logf("CreateImage %d %s %s", h, desc.Extent, desc.Format)
	return h, nil
}

func (d *Device) DestroyImage(img gpu.Image) {
	info, ok := d.images[img]
	if ok && info.swapchain {
		d.violation("destroy of swapchain image %d", img)
		return
	}
	for _, v := range d.views {
		if v.image == img {
			d.violation("image %d destroyed before its view", img)
		}
	}
	if !d.release("Image", uint64(img)) {
		return
	}
	delete(d.images, img)
	d.logf("DestroyImage %d", img)
}

func (d *Device) AllocateImageMemory(img gpu.Image, kind gpu.MemoryKind) (gpu.Memory, error) {
	if err := d.fail("AllocateImageMemory"); err != nil {
		return 0, err
	}
	info, ok := d.images[img]
	if !ok {
		return 0, errors.Newf("unknown image %d", img)
	}
	m := gpu.Memory(d.alloc("Memory"))
	d.memory[m] = &memoryInfo{kind: kind, owner: uint64(img)}
	info.memory = m
	d.logf("AllocateImageMemory %d image=%d", m, img)
	return m, nil
}

func (d *Device) CreateImageView(img gpu.Image, desc gpu.ViewDesc) (gpu.ImageView, error) {
	if err := d.fail("CreateImageView"); err != nil {
		return 0, err
	}
	if _, ok := d.images[img]; !ok {
		return 0, errors.Newf("unknown image %d", img)
	}
	v := gpu.ImageView(d.alloc("ImageView"))
	d.views[v] = viewInfo{image: img}
	d.logf("CreateImageView %d image=%d", v, img)
	return v, nil
}

func (d *Device) DestroyImageView(view gpu.ImageView) {
	for fb, info := range d.framebuffers {
		for _, v := range info.views {
			if v == view {
				d.violation("view %d destroyed before framebuffer %d", view, fb)
			}
		}
	}
	if !d.release("ImageView", uint64(view)) {
		return
	}
	delete(d.views, view)
	d.logf("DestroyImageView %d", view)
}

func (d *Device) FreeMemory(m gpu.Memory) {
	info, ok := d.memory[m]
	if ok {
		if _, alive := d.kind[info.owner]; alive {
			d.violation("memory %d freed while %s %d is alive", m, d.kind[info.owner], info.owner)
		}
	}
	if !d.release("Memory", uint64(m)) {
		return
	}
	delete(d.memory, m)
	d.logf("FreeMemory %d", m)
}

func (d *Device) WriteMemory(m gpu.Memory, offset uint64, data []byte) error {
	info, ok := d.memory[m]
	if !ok {
		return errors.Newf("unknown memory %d", m)
	}
	if info.kind != gpu.MemoryHostVisible {
		d.violation("write to device-local memory %d", m)
		return errors.New("memory is not host visible")
	}
	if offset+uint64(len(data)) > uint64(len(info.data)) {
		return errors.Newf("write of %d bytes at %d overflows %d", len(data), offset, len(info.data))
	}
	copy(info.data[offset:], data)
	return nil
}

func (d *Device) CreateSampler(desc gpu.SamplerDesc) (gpu.Sampler, error) {
	if err := d.fail("CreateSampler"); err != nil {
		return 0, err
	}
	s := gpu.Sampler(d.alloc("Sampler"))
	d.logf("CreateSampler %d", s)
	return s, nil
}

func (d *Device) DestroySampler(s gpu.Sampler) {
	if d.release("Sampler", uint64(s)) {
		d.logf("DestroySampler %d", s)
	}
}

func (d *Device) CreateFence(signaled bool) (gpu.Fence, error) {
	if err := d.fail("CreateFence"); err != nil {
		return 0, err
	}
	f := gpu.Fence(d.alloc("Fence"))
	d.fences[f] = &fenceInfo{signaled: signaled}
	return f, nil
}

func (d *Device) DestroyFence(f gpu.Fence) {
	if d.release("Fence", uint64(f)) {
		delete(d.fences, f)
	}
}

// WaitFence retires submissions in order until f is signaled. Waiting on a
// fence nothing will signal reports gpu.ErrTimeout.
func (d *Device) WaitFence(f gpu.Fence, timeout time.Duration) error {
	info, ok := d.fences[f]
	if !ok {
		return errors.Newf("unknown fence %d", f)
	}
	d.logf("wait fence=%d", f)
	if info.signaled {
		return nil
	}
	for i, s := range d.pending {
		if s.fence == f {
			d.retire(i + 1)
			return nil
		}
	}
	return errors.Wrapf(gpu.ErrTimeout, "fence %d is never signaled", f)
}

func (d *Device) ResetFence(f gpu.Fence) error {
	info, ok := d.fences[f]
	if !ok {
		return errors.Newf("unknown fence %d", f)
	}
	for _, s := range d.pending {
		if s.fence == f {
			d.violation("reset of in-flight fence %d", f)
		}
	}
	info.signaled = false
	d.logf("reset fence=%d", f)
	return nil
}

func (d *Device) CreateSemaphore() (gpu.Semaphore, error) {
	if err := d.fail("CreateSemaphore"); err != nil {
		return 0, err
	}
	s := gpu.Semaphore(d.alloc("Semaphore"))
	d.semaphores[s] = false
	return s, nil
}

func (d *Device) DestroySemaphore(s gpu.Semaphore) {
	if d.release("Semaphore", uint64(s)) {
		delete(d.semaphores, s)
	}
}

func (d *Device) AllocateCommandBuffer() (gpu.CommandBuffer, error) {
	if err := d.fail("AllocateCommandBuffer"); err != nil {
		return nil, err
	}
	cb := &CommandBuffer{dev: d, id: d.alloc("CommandBuffer")}
	d.commands[cb] = true
	return cb, nil
}

func (d *Device) FreeCommandBuffer(cb gpu.CommandBuffer) {
	c, ok := cb.(*CommandBuffer)
	if !ok || !d.release("CommandBuffer", c.id) {
		return
	}
	delete(d.commands, c)
}

func (d *Device) inFlight(cb *CommandBuffer) bool {
	for _, s := range d.pending {
		if s.cb == cb {
			return true
		}
	}
	return false
}

func (d *Device) Submit(info gpu.SubmitInfo) error {
	if d.SubmitErr != nil {
		err := d.SubmitErr
		d.SubmitErr = nil
		return err
	}
	cb, ok := info.Commands.(*CommandBuffer)
	if !ok {
		return errors.New("foreign command buffer")
	}
	if cb.state != stateEnded {
		d.violation("submit of command buffer %d that was not ended", cb.id)
	}
	if info.Fence != 0 && d.fences[info.Fence].signaled {
		d.violation("submit with signaled fence %d", info.Fence)
	}
	if info.Wait != 0 {
		d.checkAcquireChain(cb, info.WaitStage)
		if !d.semaphores[info.Wait] {
			d.violation("submit waits on unsignaled semaphore %d", info.Wait)
		}
		d.semaphores[info.Wait] = false
	}
	if info.Signal != 0 {
		if d.semaphores[info.Signal] {
			d.violation("submit signals semaphore %d that is already signaled", info.Signal)
		}
		d.semaphores[info.Signal] = true
	}
	d.pending = append(d.pending, submission{cb: cb, fence: info.Fence})
	if len(d.pending) > d.MaxInFlight {
		d.MaxInFlight = len(d.pending)
	}
	d.Submits++
	d.logf("submit cb=%d fence=%d", cb.id, info.Fence)
	return nil
}

// checkAcquireChain reports swapchain images whose first transition after
// acquire does not start at a stage the submission waits for the acquire
// semaphore at. Such a barrier may run before the display released the
// image.
func (d *Device) checkAcquireChain(cb *CommandBuffer, wait gpu.PipelineStage) {
	for _, b := range cb.Barriers {
		info, ok := d.images[b.Image]
		if !ok || !info.swapchain {
			continue
		}
		if b.OldLayout != gpu.LayoutUndefined && b.OldLayout != gpu.LayoutPresentSrc {
			continue
		}
		if b.SrcStage&wait == 0 {
			d.violation("swapchain image %d leaves %s at stages %#x, before the acquire wait at %#x", b.Image, b.OldLayout, b.SrcStage, wait)
		}
	}
}

func (d *Device) SubmitAndWait(cb gpu.CommandBuffer) error {
	if err := d.fail("SubmitAndWait"); err != nil {
		return err
	}
	c, ok := cb.(*CommandBuffer)
	if !ok {
		return errors.New("foreign command buffer")
	}
	if c.state != stateEnded {
		d.violation("one-shot submit of command buffer %d that was not ended", c.id)
	}
	d.Complete()
	d.Uploads += c.uploads
	d.BufferCopies += c.copies
	d.logf("submit-wait cb=%d", c.id)
	return nil
}

func (d *Device) WaitIdle() error {
	d.IdleWaits++
	d.Complete()
	d.logf("wait idle")
	return nil
}

func (d *Device) SurfaceCapabilities() (gpu.SurfaceCapabilities, error) {
	caps := d.Caps
	caps.CurrentExtent = d.Surface
	return caps, nil
}

func (d *Device) CreateSwapchain(desc gpu.SwapchainDesc) (gpu.Swapchain, []gpu.Image, error) {
	if err := d.fail("CreateSwapchain"); err != nil {
		return 0, nil, err
	}
	if desc.Extent.IsZero() {
		d.ZeroSizeBuilt++
		d.violation("zero-sized swapchain")
		return 0, nil, errors.New("zero-sized swapchain")
	}
	sc := gpu.Swapchain(d.alloc("Swapchain"))
	images := make([]gpu.Image, desc.ImageCount)
	for i := range images {
		h := gpu.Image(d.alloc("SwapchainImage"))
		d.images[h] = &imageInfo{
			desc:      gpu.ImageDesc{Extent: desc.Extent, Format: desc.Format, Usage: gpu.ImageUsageColorAttachment},
			swapchain: true,
		}
		images[i] = h
	}
	d.swapchains[sc] = images
	d.acquire = 0
	d.logf("CreateSwapchain %d %s images=%d", sc, desc.Extent, desc.ImageCount)
	return sc, images, nil
}

func (d *Device) DestroySwapchain(sc gpu.Swapchain) {
	images, ok := d.swapchains[sc]
	if !ok {
		d.violation("destroy of unknown swapchain %d", sc)
		return
	}
	for _, img := range images {
		for v, info := range d.views {
			if info.image == img {
				d.violation("swapchain destroyed before view %d", v)
			}
		}
		delete(d.images, img)
		delete(d.kind, uint64(img))
	}
	delete(d.swapchains, sc)
	d.release("Swapchain", uint64(sc))
	d.logf("DestroySwapchain %d", sc)
}

func (d *Device) AcquireNextImage(sc gpu.Swapchain, timeout time.Duration, signal gpu.Semaphore) (uint32, error) {
	images, ok := d.swapchains[sc]
	if !ok {
		return 0, errors.Newf("unknown swapchain %d", sc)
	}
	if d.StaleAcquires > 0 {
		d.StaleAcquires--
		d.logf("acquire stale")
		return 0, gpu.ErrSurfaceStale
	}
	if d.semaphores[signal] {
		d.violation("acquire signals semaphore %d that is already signaled", signal)
	}
	d.semaphores[signal] = true
	idx := d.acquire % uint32(len(images))
	d.acquire++
	d.logf("acquire image=%d", idx)
	return idx, nil
}

func (d *Device) Present(sc gpu.Swapchain, index uint32, wait gpu.Semaphore) error {
	images, ok := d.swapchains[sc]
	if !ok {
		return errors.Newf("unknown swapchain %d", sc)
	}
	if int(index) >= len(images) {
		return errors.Newf("present index %d out of range", index)
	}
	if !d.semaphores[wait] {
		d.violation("present waits on unsignaled semaphore %d", wait)
	}
	d.semaphores[wait] = false
	if l := d.images[images[index]].layout; l != gpu.LayoutPresentSrc {
		d.violation("present of image in layout %s", l)
	}
	d.Presents++
	d.logf("present image=%d", index)
	if d.StalePresents > 0 {
		d.StalePresents--
		return gpu.ErrSurfaceStale
	}
	if d.SuboptimalPresents > 0 {
		d.SuboptimalPresents--
		return gpu.ErrSuboptimal
	}
	return nil
}

func (d *Device) CreateRenderPass(desc gpu.RenderPassDesc) (gpu.RenderPass, error) {
	if err := d.fail("CreateRenderPass"); err != nil {
		return 0, err
	}
	rp := gpu.RenderPass(d.alloc("RenderPass"))
	d.passes[rp] = desc
	d.logf("CreateRenderPass %d %s", rp, desc.Name)
	return rp, nil
}

func (d *Device) DestroyRenderPass(rp gpu.RenderPass) {
	if d.release("RenderPass", uint64(rp)) {
		delete(d.passes, rp)
	}
}

func (d *Device) CreateFramebuffer(rp gpu.RenderPass, attachments []gpu.ImageView, extent gpu.Extent) (gpu.Framebuffer, error) {
	if err := d.fail("CreateFramebuffer"); err != nil {
		return 0, err
	}
	if extent.IsZero() {
		d.ZeroSizeBuilt++
		d.violation("zero-sized framebuffer")
		return 0, errors.New("zero-sized framebuffer")
	}
	for _, v := range attachments {
		img := d.views[v].image
		if got := d.images[img].desc.Extent; got != extent {
			d.violation("framebuffer %s with attachment %s", extent, got)
		}
	}
	fb := gpu.Framebuffer(d.alloc("Framebuffer"))
	d.framebuffers[fb] = framebufferInfo{pass: rp, views: append([]gpu.ImageView(nil), attachments...), extent: extent}
	d.logf("CreateFramebuffer %d %s", fb, extent)
	return fb, nil
}

func (d *Device) DestroyFramebuffer(fb gpu.Framebuffer) {
	if d.release("Framebuffer", uint64(fb)) {
		delete(d.framebuffers, fb)
		d.logf("DestroyFramebuffer %d", fb)
	}
}

func (d *Device) CreatePipeline(desc gpu.PipelineDesc) (gpu.Pipeline, error) {
	if err := d.fail("CreatePipeline"); err != nil {
		return 0, err
	}
	if desc.PushConstantSize > d.Lims.MaxPushConstantsSize {
		return 0, errors.Newf("push constant block %d exceeds %d", desc.PushConstantSize, d.Lims.MaxPushConstantsSize)
	}
	if len(desc.VertexShader) == 0 || len(desc.FragmentShader) == 0 {
		return 0, errors.Newf("pipeline %s is missing a shader stage", desc.Name)
	}
	p := gpu.Pipeline(d.alloc("Pipeline"))
	d.pipelines[p] = desc
	d.logf("CreatePipeline %d %s", p, desc.Name)
	return p, nil
}

func (d *Device) DestroyPipeline(p gpu.Pipeline) {
	if d.release("Pipeline", uint64(p)) {
		delete(d.pipelines, p)
	}
}

func (d *Device) CreateTextureTable(capacity uint32) (gpu.TextureTable, error) {
	if err := d.fail("CreateTextureTable"); err != nil {
		return 0, err
	}
	if capacity > d.Lims.MaxTextureTableSize {
		return 0, errors.Newf("texture table of %d exceeds %d", capacity, d.Lims.MaxTextureTableSize)
	}
	t := gpu.TextureTable(d.alloc("TextureTable"))
	d.tables[t] = &tableInfo{slots: make([]gpu.ImageView, capacity)}
	return t, nil
}

func (d *Device) WriteTextureTable(t gpu.TextureTable, slot uint32, view gpu.ImageView, sampler gpu.Sampler) error {
	info, ok := d.tables[t]
	if !ok {
		return errors.Newf("unknown texture table %d", t)
	}
	if int(slot) >= len(info.slots) {
		d.violation("texture table write at %d past capacity %d", slot, len(info.slots))
		return errors.Newf("slot %d out of range", slot)
	}
	if _, ok := d.views[view]; !ok {
		d.violation("texture table write of dead view %d", view)
	}
	info.slots[slot] = view
	d.TableWrites++
	return nil
}

func (d *Device) DestroyTextureTable(t gpu.TextureTable) {
	if d.release("TextureTable", uint64(t)) {
		delete(d.tables, t)
	}
}
