package vulkan

import (
	"encoding/binary"

	"github.com/cockroachdb/errors"
	vk "github.com/goki/vulkan"

	"github.com/spaghettifunk/prism/engine/renderer/gpu"
)

// shaderStage is a compiled module and the stage info referencing it.
type shaderStage struct {
	module vk.ShaderModule
	info   vk.PipelineShaderStageCreateInfo
}

// spirvWords reinterprets little-endian SPIR-V bytes as words.
func spirvWords(code []byte) ([]uint32, error) {
	if len(code) == 0 || len(code)%4 != 0 {
		return nil, errors.Newf("SPIR-V size %d is not a positive multiple of 4", len(code))
	}
	words := make([]uint32, len(code)/4)
	for i := range words {
		words[i] = binary.LittleEndian.Uint32(code[i*4:])
	}
	return words, nil
}

func (d *Device) createShaderStage(stage gpu.ShaderStage, code []byte) (shaderStage, error) {
	words, err := spirvWords(code)
	if err != nil {
		return shaderStage{}, errors.Wrapf(err, "%s shader", stage)
	}
	info := vk.ShaderModuleCreateInfo{
		SType:    vk.StructureTypeShaderModuleCreateInfo,
		CodeSize: uint64(len(code)),
		PCode:    words,
	}
	var module vk.ShaderModule
	if err := resultError(vk.CreateShaderModule(d.logical, &info, nil, &module), "vkCreateShaderModule"); err != nil {
		return shaderStage{}, errors.Wrapf(err, "%s shader", stage)
	}

	flag := vk.ShaderStageVertexBit
	if stage == gpu.ShaderFragment {
		flag = vk.ShaderStageFragmentBit
	}
	return shaderStage{
		module: module,
		info: vk.PipelineShaderStageCreateInfo{
			SType:  vk.StructureTypePipelineShaderStageCreateInfo,
			Stage:  flag,
			Module: module,
			PName:  VulkanSafeString("main"),
		},
	}, nil
}

func (d *Device) destroyShaderStage(s shaderStage) {
	if s.module != vk.NullShaderModule {
		vk.DestroyShaderModule(d.logical, s.module, nil)
	}
}
