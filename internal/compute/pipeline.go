package compute

import (
	"fmt"
	"unsafe"

	vk "github.com/goki/vulkan"
	"go.uber.org/zap"
)

const (
	// numBindings storage buffers A, B and C at bindings 0, 1 and 2.
	numBindings = 3
	// pushConstantSize holds the single uint32 matrix dimension.
	pushConstantSize = 4
)

// Pipeline is the compute pipeline with its layouts.
type Pipeline struct {
	TileSize uint32

	setLayout vk.DescriptorSetLayout
	layout    vk.PipelineLayout
	pipeline  vk.Pipeline
}

// createPipeline builds the descriptor set layout, the pipeline layout and
// the compute pipeline. The work-group size is specialized from tile as
// (tile, tile, 1) through constant IDs 0, 1 and 2. The shader module is
// destroyed as soon as the pipeline exists. Every created object is pushed
// onto rel.
func createPipeline(dc *DeviceContext, code []uint32, tile uint32, rel *releaser) (p *Pipeline, err error) {
	if len(code) == 0 {
		return nil, newError(KindResourceCreation, "create pipeline", fmt.Errorf("%w: empty shader code", ErrShaderLoad))
	}
	var local releaser
	defer local.releaseOnError(&err)
	p = &Pipeline{TileSize: tile}

	stage := vk.ShaderStageFlags(vk.ShaderStageComputeBit)
	bindings := make([]vk.DescriptorSetLayoutBinding, numBindings)
	for i := range bindings {
		bindings[i] = vk.DescriptorSetLayoutBinding{
			Binding:         uint32(i),
			DescriptorType:  vk.DescriptorTypeStorageBuffer,
			DescriptorCount: 1,
			StageFlags:      stage,
		}
	}
	ret := vk.CreateDescriptorSetLayout(dc.device, &vk.DescriptorSetLayoutCreateInfo{
		SType:        vk.StructureTypeDescriptorSetLayoutCreateInfo,
		BindingCount: uint32(len(bindings)),
		PBindings:    bindings,
	}, nil, &p.setLayout)
	if err := resultError(KindResourceCreation, "create descriptor set layout", ret); err != nil {
		return nil, err
	}
	setLayout := p.setLayout
	local.pushVoid("descriptor set layout", func() { vk.DestroyDescriptorSetLayout(dc.device, setLayout, nil) })

	ret = vk.CreatePipelineLayout(dc.device, &vk.PipelineLayoutCreateInfo{
		SType:                  vk.StructureTypePipelineLayoutCreateInfo,
		SetLayoutCount:         1,
		PSetLayouts:            []vk.DescriptorSetLayout{p.setLayout},
		PushConstantRangeCount: 1,
		PPushConstantRanges: []vk.PushConstantRange{{
			StageFlags: stage,
			Offset:     0,
			Size:       pushConstantSize,
		}},
	}, nil, &p.layout)
	if err := resultError(KindResourceCreation, "create pipeline layout", ret); err != nil {
		return nil, err
	}
	layout := p.layout
	local.pushVoid("pipeline layout", func() { vk.DestroyPipelineLayout(dc.device, layout, nil) })

	var module vk.ShaderModule
	ret = vk.CreateShaderModule(dc.device, &vk.ShaderModuleCreateInfo{
		SType:    vk.StructureTypeShaderModuleCreateInfo,
		CodeSize: uint(len(code) * 4),
		PCode:    code,
	}, nil, &module)
	if err := resultError(KindResourceCreation, "create shader module", ret); err != nil {
		return nil, err
	}
	// the module is only needed until the pipeline is built
	defer vk.DestroyShaderModule(dc.device, module, nil)
	dc.names.shaderModule(module, "matmul shader")

	specData := [3]uint32{tile, tile, 1}
	entries := []vk.SpecializationMapEntry{
		{ConstantID: 0, Offset: 0, Size: 4},
		{ConstantID: 1, Offset: 4, Size: 4},
		{ConstantID: 2, Offset: 8, Size: 4},
	}
	pipelines := make([]vk.Pipeline, 1)
	ret = vk.CreateComputePipelines(dc.device, nil, 1, []vk.ComputePipelineCreateInfo{{
		SType: vk.StructureTypeComputePipelineCreateInfo,
		Stage: vk.PipelineShaderStageCreateInfo{
			SType:  vk.StructureTypePipelineShaderStageCreateInfo,
			Stage:  vk.ShaderStageComputeBit,
			Module: module,
			PName:  safeString("main"),
			PSpecializationInfo: []vk.SpecializationInfo{{
				MapEntryCount: uint32(len(entries)),
				PMapEntries:   entries,
				DataSize:      uint(unsafe.Sizeof(specData)),
				PData:         unsafe.Pointer(&specData[0]),
			}},
		},
		Layout: p.layout,
	}}, nil, pipelines)
	if err := resultError(KindResourceCreation, "create compute pipeline", ret); err != nil {
		return nil, err
	}
	p.pipeline = pipelines[0]
	pipeline := p.pipeline
	local.pushVoid("pipeline", func() { vk.DestroyPipeline(dc.device, pipeline, nil) })

	dc.names.pipeline(p.pipeline, "matmul pipeline")
	dc.log.Debug("compute pipeline created", zap.Uint32("tile", tile), zap.Int("code_words", len(code)))
	local.transfer(rel)
	return p, nil
}
