package vulkan

import (
	"math"
	"time"

	"github.com/cockroachdb/errors"
	vk "github.com/goki/vulkan"

	"github.com/spaghettifunk/prism/engine/core"
	"github.com/spaghettifunk/prism/engine/renderer/gpu"
)

func (d *Device) CreateFence(signaled bool) (gpu.Fence, error) {
	info := vk.FenceCreateInfo{
		SType: vk.StructureTypeFenceCreateInfo,
	}
	if signaled {
		info.Flags = vk.FenceCreateFlags(vk.FenceCreateSignaledBit)
	}
	var f vk.Fence
	if err := resultError(vk.CreateFence(d.logical, &info, nil, &f), "vkCreateFence"); err != nil {
		return 0, err
	}
	h := gpu.Fence(d.handle())
	d.fences[h] = f
	return h, nil
}

func (d *Device) DestroyFence(f gpu.Fence) {
	if fence, ok := d.fences[f]; ok {
		vk.DestroyFence(d.logical, fence, nil)
		delete(d.fences, f)
	}
}

func (d *Device) WaitFence(f gpu.Fence, timeout time.Duration) error {
	fence, ok := d.fences[f]
	if !ok {
		return errors.Newf("unknown fence %d", f)
	}
	ns := uint64(math.MaxUint64)
	if timeout != core.Forever {
		ns = uint64(timeout.Nanoseconds())
	}
	return resultError(vk.WaitForFences(d.logical, 1, []vk.Fence{fence}, vk.True, ns), "vkWaitForFences")
}

func (d *Device) ResetFence(f gpu.Fence) error {
	fence, ok := d.fences[f]
	if !ok {
		return errors.Newf("unknown fence %d", f)
	}
	return resultError(vk.ResetFences(d.logical, 1, []vk.Fence{fence}), "vkResetFences")
}

func (d *Device) CreateSemaphore() (gpu.Semaphore, error) {
	info := vk.SemaphoreCreateInfo{
		SType: vk.StructureTypeSemaphoreCreateInfo,
	}
	var s vk.Semaphore
	if err := resultError(vk.CreateSemaphore(d.logical, &info, nil, &s), "vkCreateSemaphore"); err != nil {
		return 0, err
	}
	h := gpu.Semaphore(d.handle())
	d.semaphores[h] = s
	return h, nil
}

func (d *Device) DestroySemaphore(s gpu.Semaphore) {
	if sem, ok := d.semaphores[s]; ok {
		vk.DestroySemaphore(d.logical, sem, nil)
		delete(d.semaphores, s)
	}
}
