package vulkan

import (
	"runtime"

	"github.com/cockroachdb/errors"
	vk "github.com/goki/vulkan"

	"github.com/spaghettifunk/prism/engine/core"
	"github.com/spaghettifunk/prism/engine/renderer/gpu"
)

const portabilitySubset = "VK_KHR_portability_subset"

type physicalDeviceRequirements struct {
	DeviceExtensionNames []string
	SamplerAnisotropy    bool
	// DynamicSampledArrays is needed to index texture tables with a push
	// constant.
	DynamicSampledArrays bool
	DiscreteGPU          bool
}

type queueFamilyInfo struct {
	graphics int32
	present  int32
}

type swapchainSupport struct {
	capabilities vk.SurfaceCapabilities
	formats      []vk.SurfaceFormat
	presentModes []vk.PresentMode
}

// selectPhysicalDevice picks the first device meeting the requirements,
// trying discrete GPUs before anything else.
func (d *Device) selectPhysicalDevice() error {
	var count uint32
	if err := resultError(vk.EnumeratePhysicalDevices(d.instance, &count, nil), "vkEnumeratePhysicalDevices"); err != nil {
		return err
	}
	if count == 0 {
		return errors.New("no devices which support Vulkan were found")
	}
	devices := make([]vk.PhysicalDevice, count)
	if err := resultError(vk.EnumeratePhysicalDevices(d.instance, &count, devices), "vkEnumeratePhysicalDevices"); err != nil {
		return err
	}

	requirements := physicalDeviceRequirements{
		DeviceExtensionNames: []string{vk.KhrSwapchainExtensionName},
		SamplerAnisotropy:    true,
		DynamicSampledArrays: true,
		DiscreteGPU:          runtime.GOOS != "darwin",
	}
	for pass := 0; pass < 2; pass++ {
		for _, pd := range devices {
			queues, ok := d.meetsRequirements(pd, &requirements)
			if !ok {
				continue
			}
			d.physical = pd
			d.queues = queues
			vk.GetPhysicalDeviceMemoryProperties(pd, &d.memory)
			d.memory.Deref()
			d.logDevice()
			return nil
		}
		if !requirements.DiscreteGPU {
			break
		}
		core.LogInfo("No discrete GPU meets the requirements, trying every device.")
		requirements.DiscreteGPU = false
	}
	return errors.New("no physical devices were found which meet the requirements")
}

func (d *Device) meetsRequirements(pd vk.PhysicalDevice, req *physicalDeviceRequirements) (queueFamilyInfo, bool) {
	info := queueFamilyInfo{graphics: -1, present: -1}

	var properties vk.PhysicalDeviceProperties
	vk.GetPhysicalDeviceProperties(pd, &properties)
	properties.Deref()
	name := cString(properties.DeviceName[:])

	if req.DiscreteGPU && properties.DeviceType != vk.PhysicalDeviceTypeDiscreteGpu {
		core.LogDebug("%s is not a discrete GPU, skipping.", name)
		return info, false
	}

	var familyCount uint32
	vk.GetPhysicalDeviceQueueFamilyProperties(pd, &familyCount, nil)
	families := make([]vk.QueueFamilyProperties, familyCount)
	vk.GetPhysicalDeviceQueueFamilyProperties(pd, &familyCount, families)
	for i := range families {
		families[i].Deref()
		if families[i].QueueFlags&vk.QueueFlags(vk.QueueGraphicsBit) != 0 && info.graphics < 0 {
			info.graphics = int32(i)
		}
		var supportsPresent vk.Bool32
		if res := vk.GetPhysicalDeviceSurfaceSupport(pd, uint32(i), d.surface, &supportsPresent); res != vk.Success {
			return info, false
		}
		// Prefer a family that does both.
		if supportsPresent == vk.True && (info.present < 0 || int32(i) == info.graphics) {
			info.present = int32(i)
		}
	}
	if info.graphics < 0 || info.present < 0 {
		core.LogDebug("%s lacks a graphics or present queue, skipping.", name)
		return info, false
	}

	support, err := querySwapchainSupport(pd, d.surface)
	if err != nil || len(support.formats) == 0 || len(support.presentModes) == 0 {
		core.LogDebug("%s lacks swapchain support, skipping.", name)
		return info, false
	}

	available := deviceExtensions(pd)
	for _, ext := range req.DeviceExtensionNames {
		if _, ok := available[ext]; !ok {
			core.LogDebug("%s lacks extension %s, skipping.", name, ext)
			return info, false
		}
	}

	var features vk.PhysicalDeviceFeatures
	vk.GetPhysicalDeviceFeatures(pd, &features)
	features.Deref()
	if req.SamplerAnisotropy && features.SamplerAnisotropy == vk.False {
		core.LogDebug("%s does not support samplerAnisotropy, skipping.", name)
		return info, false
	}
	if req.DynamicSampledArrays && features.ShaderSampledImageArrayDynamicIndexing == vk.False {
		core.LogDebug("%s cannot index sampled image arrays dynamically, skipping.", name)
		return info, false
	}

	d.properties = properties
	return info, true
}

func (d *Device) logDevice() {
	p := d.properties
	core.LogInfo("Selected device: '%s'.", cString(p.DeviceName[:]))
	switch p.DeviceType {
	case vk.PhysicalDeviceTypeIntegratedGpu:
		core.LogInfo("GPU type is Integrated.")
	case vk.PhysicalDeviceTypeDiscreteGpu:
		core.LogInfo("GPU type is Discrete.")
	case vk.PhysicalDeviceTypeVirtualGpu:
		core.LogInfo("GPU type is Virtual.")
	case vk.PhysicalDeviceTypeCpu:
		core.LogInfo("GPU type is CPU.")
	default:
		core.LogInfo("GPU type is Unknown.")
	}
	core.LogInfo("Vulkan API version: %d.%d.%d",
		vk.Version(p.ApiVersion).Major(),
		vk.Version(p.ApiVersion).Minor(),
		vk.Version(p.ApiVersion).Patch())

	for i := uint32(0); i < d.memory.MemoryHeapCount; i++ {
		heap := d.memory.MemoryHeaps[i]
		heap.Deref()
		gib := float64(heap.Size) / 1024 / 1024 / 1024
		if vk.MemoryHeapFlagBits(heap.Flags)&vk.MemoryHeapDeviceLocalBit != 0 {
			core.LogInfo("Local GPU memory: %.2f GiB", gib)
		} else {
			core.LogInfo("Shared System memory: %.2f GiB", gib)
		}
	}
	core.LogDebug("Graphics family %d, present family %d", d.queues.graphics, d.queues.present)
}

func deviceExtensions(pd vk.PhysicalDevice) map[string]struct{} {
	out := make(map[string]struct{})
	var count uint32
	if vk.EnumerateDeviceExtensionProperties(pd, "", &count, nil) != vk.Success || count == 0 {
		return out
	}
	props := make([]vk.ExtensionProperties, count)
	if vk.EnumerateDeviceExtensionProperties(pd, "", &count, props) != vk.Success {
		return out
	}
	for i := range props {
		props[i].Deref()
		out[cString(props[i].ExtensionName[:])] = struct{}{}
	}
	return out
}

func querySwapchainSupport(pd vk.PhysicalDevice, surface vk.Surface) (swapchainSupport, error) {
	var s swapchainSupport
	if err := resultError(vk.GetPhysicalDeviceSurfaceCapabilities(pd, surface, &s.capabilities), "vkGetPhysicalDeviceSurfaceCapabilitiesKHR"); err != nil {
		return s, err
	}
	s.capabilities.Deref()
	s.capabilities.CurrentExtent.Deref()
	s.capabilities.MinImageExtent.Deref()
	s.capabilities.MaxImageExtent.Deref()

	var formatCount uint32
	if err := resultError(vk.GetPhysicalDeviceSurfaceFormats(pd, surface, &formatCount, nil), "vkGetPhysicalDeviceSurfaceFormatsKHR"); err != nil {
		return s, err
	}
	if formatCount > 0 {
		s.formats = make([]vk.SurfaceFormat, formatCount)
		if err := resultError(vk.GetPhysicalDeviceSurfaceFormats(pd, surface, &formatCount, s.formats), "vkGetPhysicalDeviceSurfaceFormatsKHR"); err != nil {
			return s, err
		}
		for i := range s.formats {
			s.formats[i].Deref()
		}
	}

	var modeCount uint32
	if err := resultError(vk.GetPhysicalDeviceSurfacePresentModes(pd, surface, &modeCount, nil), "vkGetPhysicalDeviceSurfacePresentModesKHR"); err != nil {
		return s, err
	}
	if modeCount > 0 {
		s.presentModes = make([]vk.PresentMode, modeCount)
		if err := resultError(vk.GetPhysicalDeviceSurfacePresentModes(pd, surface, &modeCount, s.presentModes), "vkGetPhysicalDeviceSurfacePresentModesKHR"); err != nil {
			return s, err
		}
	}
	return s, nil
}

// detectDepthFormat returns the first candidate usable as an optimally
// tiled depth attachment.
func detectDepthFormat(pd vk.PhysicalDevice) (gpu.Format, bool) {
	candidates := []gpu.Format{gpu.FormatD32Float, gpu.FormatD32FloatS8, gpu.FormatD24UnormS8}
	flags := vk.FormatFeatureFlags(vk.FormatFeatureDepthStencilAttachmentBit)
	for _, c := range candidates {
		var properties vk.FormatProperties
		vk.GetPhysicalDeviceFormatProperties(pd, toVkFormat(c), &properties)
		properties.Deref()
		if properties.OptimalTilingFeatures&flags == flags {
			return c, true
		}
	}
	return gpu.FormatUndefined, false
}

func (d *Device) createLogicalDevice() error {
	core.LogInfo("Creating logical device...")

	families := []uint32{uint32(d.queues.graphics)}
	if d.queues.present != d.queues.graphics {
		families = append(families, uint32(d.queues.present))
	}
	queueCreateInfos := make([]vk.DeviceQueueCreateInfo, len(families))
	for i, family := range families {
		queueCreateInfos[i] = vk.DeviceQueueCreateInfo{
			SType:            vk.StructureTypeDeviceQueueCreateInfo,
			QueueFamilyIndex: family,
			QueueCount:       1,
			PQueuePriorities: []float32{1.0},
		}
	}

	features := vk.PhysicalDeviceFeatures{
		SamplerAnisotropy:                      vk.True,
		ShaderSampledImageArrayDynamicIndexing: vk.True,
	}

	extensions := []string{vk.KhrSwapchainExtensionName}
	if _, ok := deviceExtensions(d.physical)[portabilitySubset]; ok {
		core.LogInfo("Adding required extension '%s'.", portabilitySubset)
		extensions = append(extensions, portabilitySubset)
	}

	deviceCreateInfo := vk.DeviceCreateInfo{
		SType:                   vk.StructureTypeDeviceCreateInfo,
		QueueCreateInfoCount:    uint32(len(queueCreateInfos)),
		PQueueCreateInfos:       queueCreateInfos,
		PEnabledFeatures:        []vk.PhysicalDeviceFeatures{features},
		EnabledExtensionCount:   uint32(len(extensions)),
		PpEnabledExtensionNames: VulkanSafeStrings(extensions),
	}
	if err := resultError(vk.CreateDevice(d.physical, &deviceCreateInfo, nil, &d.logical), "vkCreateDevice"); err != nil {
		return err
	}
	core.LogInfo("Logical device created.")

	vk.GetDeviceQueue(d.logical, uint32(d.queues.graphics), 0, &d.graphicsQueue)
	vk.GetDeviceQueue(d.logical, uint32(d.queues.present), 0, &d.presentQueue)

	poolCreateInfo := vk.CommandPoolCreateInfo{
		SType:            vk.StructureTypeCommandPoolCreateInfo,
		QueueFamilyIndex: uint32(d.queues.graphics),
		Flags:            vk.CommandPoolCreateFlags(vk.CommandPoolCreateResetCommandBufferBit),
	}
	if err := resultError(vk.CreateCommandPool(d.logical, &poolCreateInfo, nil, &d.pool), "vkCreateCommandPool"); err != nil {
		return err
	}
	core.LogInfo("Graphics command pool created.")
	return nil
}
