package vulkan

import (
	"github.com/cockroachdb/errors"
	vk "github.com/goki/vulkan"

	"github.com/spaghettifunk/prism/engine/core"
	"github.com/spaghettifunk/prism/engine/renderer/gpu"
)

// textureTable is one descriptor set holding an array of combined image
// samplers at binding 0, allocated from its own pool.
type textureTable struct {
	pool     vk.DescriptorPool
	set      vk.DescriptorSet
	capacity uint32
	// bound is set when a command buffer binds the table and cleared by
	// WaitIdle. Writing a bound table waits for the device first.
	bound bool
}

// tableLayout returns the set layout for a table of capacity entries,
// creating it on first use.
func (d *Device) tableLayout(capacity uint32) (vk.DescriptorSetLayout, error) {
	if l, ok := d.setLayouts[capacity]; ok {
		return l, nil
	}
	bindings := []vk.DescriptorSetLayoutBinding{{
		Binding:         0,
		DescriptorType:  vk.DescriptorTypeCombinedImageSampler,
		DescriptorCount: capacity,
		StageFlags:      vk.ShaderStageFlags(vk.ShaderStageFragmentBit),
	}}
	info := vk.DescriptorSetLayoutCreateInfo{
		SType:        vk.StructureTypeDescriptorSetLayoutCreateInfo,
		BindingCount: uint32(len(bindings)),
		PBindings:    bindings,
	}
	var l vk.DescriptorSetLayout
	if err := resultError(vk.CreateDescriptorSetLayout(d.logical, &info, nil, &l), "vkCreateDescriptorSetLayout"); err != nil {
		return vk.NullDescriptorSetLayout, err
	}
	d.setLayouts[capacity] = l
	return l, nil
}

func (d *Device) CreateTextureTable(capacity uint32) (gpu.TextureTable, error) {
	if capacity == 0 || capacity > d.limits.MaxTextureTableSize {
		return 0, errors.Newf("texture table capacity %d outside 1..%d", capacity, d.limits.MaxTextureTableSize)
	}
	layout, err := d.tableLayout(capacity)
	if err != nil {
		return 0, err
	}

	poolInfo := vk.DescriptorPoolCreateInfo{
		SType:         vk.StructureTypeDescriptorPoolCreateInfo,
		MaxSets:       1,
		PoolSizeCount: 1,
		PPoolSizes: []vk.DescriptorPoolSize{{
			Type:            vk.DescriptorTypeCombinedImageSampler,
			DescriptorCount: capacity,
		}},
	}
	var pool vk.DescriptorPool
	if err := resultError(vk.CreateDescriptorPool(d.logical, &poolInfo, nil, &pool), "vkCreateDescriptorPool"); err != nil {
		return 0, err
	}

	allocInfo := vk.DescriptorSetAllocateInfo{
		SType:              vk.StructureTypeDescriptorSetAllocateInfo,
		DescriptorPool:     pool,
		DescriptorSetCount: 1,
		PSetLayouts:        []vk.DescriptorSetLayout{layout},
	}
	sets := make([]vk.DescriptorSet, 1)
	if err := resultError(vk.AllocateDescriptorSets(d.logical, &allocInfo, &sets[0]), "vkAllocateDescriptorSets"); err != nil {
		vk.DestroyDescriptorPool(d.logical, pool, nil)
		return 0, err
	}

	h := gpu.TextureTable(d.handle())
	d.tables[h] = &textureTable{pool: pool, set: sets[0], capacity: capacity}
	core.LogDebug("Texture table %d created with %d slots.", h, capacity)
	return h, nil
}

func (d *Device) WriteTextureTable(t gpu.TextureTable, slot uint32, view gpu.ImageView, sampler gpu.Sampler) error {
	table, ok := d.tables[t]
	if !ok {
		return errors.Newf("unknown texture table %d", t)
	}
	if slot >= table.capacity {
		return errors.Newf("slot %d outside texture table of %d", slot, table.capacity)
	}
	v, vok := d.views[view]
	s, sok := d.samplers[sampler]
	if !vok || !sok {
		return errors.Newf("texture table write with unknown view %d or sampler %d", view, sampler)
	}
	if table.bound {
		if err := d.WaitIdle(); err != nil {
			return err
		}
	}
	write := vk.WriteDescriptorSet{
		SType:           vk.StructureTypeWriteDescriptorSet,
		DstSet:          table.set,
		DstBinding:      0,
		DstArrayElement: slot,
		DescriptorCount: 1,
		DescriptorType:  vk.DescriptorTypeCombinedImageSampler,
		PImageInfo: []vk.DescriptorImageInfo{{
			Sampler:     s,
			ImageView:   v,
			ImageLayout: vk.ImageLayoutShaderReadOnlyOptimal,
		}},
	}
	vk.UpdateDescriptorSets(d.logical, 1, []vk.WriteDescriptorSet{write}, 0, nil)
	return nil
}

func (d *Device) DestroyTextureTable(t gpu.TextureTable) {
	table, ok := d.tables[t]
	if !ok {
		return
	}
	// Destroying the pool frees the set.
	vk.DestroyDescriptorPool(d.logical, table.pool, nil)
	delete(d.tables, t)
}
