// Package vulkan implements gpu.Device on top of goki/vulkan.
package vulkan

import (
	"unsafe"

	"github.com/cockroachdb/errors"
	vk "github.com/goki/vulkan"

	"github.com/spaghettifunk/prism/engine/core"
	"github.com/spaghettifunk/prism/engine/renderer/gpu"
)

// SurfaceSource is the window the device presents to. *glfw.Window
// implements it.
type SurfaceSource interface {
	GetRequiredInstanceExtensions() []string
	CreateWindowSurface(instance interface{}, allocCallbacks unsafe.Pointer) (uintptr, error)
}

type Config struct {
	AppName string
	// Validation enables the Khronos validation layer and routes its
	// reports to the engine log.
	Validation bool
}

type image struct {
	handle    vk.Image
	format    gpu.Format
	swapchain bool
}

type buffer struct {
	handle vk.Buffer
}

type renderPass struct {
	handle     vk.RenderPass
	colorCount int
}

// Device is a gpu.Device backed by one Vulkan logical device, bound to one
// window surface. Handles given out are keys into the maps below.
type Device struct {
	validation bool

	instance vk.Instance
	debug    vk.DebugReportCallback
	surface  vk.Surface

	physical      vk.PhysicalDevice
	properties    vk.PhysicalDeviceProperties
	memory        vk.PhysicalDeviceMemoryProperties
	queues        queueFamilyInfo
	logical       vk.Device
	graphicsQueue vk.Queue
	presentQueue  vk.Queue
	pool          vk.CommandPool

	depthFormat gpu.Format
	limits      gpu.Limits

	next         uint64
	buffers      map[gpu.Buffer]buffer
	memories     map[gpu.Memory]vk.DeviceMemory
	images       map[gpu.Image]*image
	views        map[gpu.ImageView]vk.ImageView
	samplers     map[gpu.Sampler]vk.Sampler
	fences       map[gpu.Fence]vk.Fence
	semaphores   map[gpu.Semaphore]vk.Semaphore
	passes       map[gpu.RenderPass]renderPass
	framebuffers map[gpu.Framebuffer]vk.Framebuffer
	pipelines    map[gpu.Pipeline]*pipeline
	tables       map[gpu.TextureTable]*textureTable
	setLayouts   map[uint32]vk.DescriptorSetLayout
	swapchains   map[gpu.Swapchain]*swapchain
	commands     map[*CommandBuffer]struct{}
}

// New creates the instance, surface and logical device. glfw must already
// be initialized. On error everything created so far is destroyed.
func New(cfg Config, window SurfaceSource) (*Device, error) {
	d := &Device{
		validation:   cfg.Validation,
		buffers:      make(map[gpu.Buffer]buffer),
		memories:     make(map[gpu.Memory]vk.DeviceMemory),
		images:       make(map[gpu.Image]*image),
		views:        make(map[gpu.ImageView]vk.ImageView),
		samplers:     make(map[gpu.Sampler]vk.Sampler),
		fences:       make(map[gpu.Fence]vk.Fence),
		semaphores:   make(map[gpu.Semaphore]vk.Semaphore),
		passes:       make(map[gpu.RenderPass]renderPass),
		framebuffers: make(map[gpu.Framebuffer]vk.Framebuffer),
		pipelines:    make(map[gpu.Pipeline]*pipeline),
		tables:       make(map[gpu.TextureTable]*textureTable),
		setLayouts:   make(map[uint32]vk.DescriptorSetLayout),
		swapchains:   make(map[gpu.Swapchain]*swapchain),
		commands:     make(map[*CommandBuffer]struct{}),
	}
	if err := d.init(cfg, window); err != nil {
		d.Destroy()
		return nil, err
	}
	core.LogInfo("Vulkan device initialized successfully.")
	return d, nil
}

func (d *Device) init(cfg Config, window SurfaceSource) error {
	if err := loadLoader(); err != nil {
		return err
	}
	if err := d.createInstance(cfg.AppName, window); err != nil {
		return err
	}
	if err := d.createSurface(window); err != nil {
		return err
	}
	if err := d.selectPhysicalDevice(); err != nil {
		return err
	}
	depth, ok := detectDepthFormat(d.physical)
	if !ok {
		return errors.New("no supported depth format")
	}
	d.depthFormat = depth
	if err := d.createLogicalDevice(); err != nil {
		return err
	}

	d.properties.Limits.Deref()
	lim := d.properties.Limits
	tableSize := lim.MaxPerStageDescriptorSamplers
	if lim.MaxPerStageDescriptorSampledImages < tableSize {
		tableSize = lim.MaxPerStageDescriptorSampledImages
	}
	d.limits = gpu.Limits{
		MaxPushConstantsSize: lim.MaxPushConstantsSize,
		MaxTextureTableSize:  tableSize,
	}
	core.LogDebug("Limits: push constants %d bytes, texture table %d", d.limits.MaxPushConstantsSize, d.limits.MaxTextureTableSize)
	return nil
}

// Destroy releases every object still alive, then the device, surface and
// instance. Objects still alive at this point are leaks and are logged.
func (d *Device) Destroy() {
	if d.logical != nil {
		vk.DeviceWaitIdle(d.logical)
		if n := d.live(); n > 0 {
			core.LogWarn("Destroying Vulkan device with %d live objects.", n)
		}
		for cb := range d.commands {
			d.FreeCommandBuffer(cb)
		}
		for p := range d.pipelines {
			d.DestroyPipeline(p)
		}
		for t := range d.tables {
			d.DestroyTextureTable(t)
		}
		for _, l := range d.setLayouts {
			vk.DestroyDescriptorSetLayout(d.logical, l, nil)
		}
		d.setLayouts = map[uint32]vk.DescriptorSetLayout{}
		for fb := range d.framebuffers {
			d.DestroyFramebuffer(fb)
		}
		for rp := range d.passes {
			d.DestroyRenderPass(rp)
		}
		for v := range d.views {
			d.DestroyImageView(v)
		}
		for sc := range d.swapchains {
			d.DestroySwapchain(sc)
		}
		for img := range d.images {
			d.DestroyImage(img)
		}
		for b := range d.buffers {
			d.DestroyBuffer(b)
		}
		for m := range d.memories {
			d.FreeMemory(m)
		}
		for s := range d.samplers {
			d.DestroySampler(s)
		}
		for f := range d.fences {
			d.DestroyFence(f)
		}
		for s := range d.semaphores {
			d.DestroySemaphore(s)
		}
		if d.pool != nil {
			vk.DestroyCommandPool(d.logical, d.pool, nil)
			d.pool = nil
		}
		core.LogDebug("Destroying Vulkan device...")
		vk.DestroyDevice(d.logical, nil)
		d.logical = nil
	}
	if d.surface != vk.NullSurface {
		core.LogDebug("Destroying Vulkan surface...")
		vk.DestroySurface(d.instance, d.surface, nil)
		d.surface = vk.NullSurface
	}
	if d.debug != vk.NullDebugReportCallback {
		vk.DestroyDebugReportCallback(d.instance, d.debug, nil)
		d.debug = vk.NullDebugReportCallback
	}
	if d.instance != nil {
		core.LogDebug("Destroying Vulkan instance...")
		vk.DestroyInstance(d.instance, nil)
		d.instance = nil
	}
}

func (d *Device) live() int {
	return len(d.buffers) + len(d.memories) + len(d.views) + len(d.samplers) +
		len(d.fences) + len(d.semaphores) + len(d.passes) + len(d.framebuffers) +
		len(d.pipelines) + len(d.tables) + len(d.swapchains) + len(d.commands)
}

func (d *Device) handle() uint64 {
	d.next++
	return d.next
}

func (d *Device) Limits() gpu.Limits {
	return d.limits
}

func (d *Device) DepthFormat() gpu.Format {
	return d.depthFormat
}

func (d *Device) WaitIdle() error {
	if err := resultError(vk.DeviceWaitIdle(d.logical), "vkDeviceWaitIdle"); err != nil {
		return err
	}
	for _, t := range d.tables {
		t.bound = false
	}
	return nil
}

// findMemoryIndex returns the first memory type allowed by typeFilter that
// has every bit of propertyFlags, or -1.
func (d *Device) findMemoryIndex(typeFilter uint32, propertyFlags vk.MemoryPropertyFlags) int32 {
	for i := uint32(0); i < d.memory.MemoryTypeCount; i++ {
		t := d.memory.MemoryTypes[i]
		t.Deref()
		if typeFilter&(1<<i) != 0 && t.PropertyFlags&propertyFlags == propertyFlags {
			return int32(i)
		}
	}
	core.LogWarn("Unable to find suitable memory type!")
	return -1
}

var _ gpu.Device = (*Device)(nil)
