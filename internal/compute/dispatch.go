package compute

import (
	"fmt"
	"math"
	"time"
	"unsafe"

	vk "github.com/goki/vulkan"
)

// DispatchGrid returns the work-group counts (n/tile, n/tile, 1). It fails
// when n is not a multiple of tile or a dimension exceeds maxCount.
func DispatchGrid(n, tile uint32, maxCount [3]uint32) ([3]uint32, error) {
	if n == 0 || tile == 0 {
		return [3]uint32{}, fmt.Errorf("matrix size %d and tile size %d must be positive", n, tile)
	}
	if n%tile != 0 {
		return [3]uint32{}, fmt.Errorf("matrix size %d is not a multiple of tile size %d", n, tile)
	}
	g := n / tile
	grid := [3]uint32{g, g, 1}
	for i, c := range grid {
		if maxCount[i] != 0 && c > maxCount[i] {
			return [3]uint32{}, fmt.Errorf("dispatch grid dimension %d (%d) exceeds device limit %d", i, c, maxCount[i])
		}
	}
	return grid, nil
}

// TimestampDuration converts a pair of raw timestamps into elapsed time
// using the device tick period in nanoseconds.
func TimestampDuration(start, end uint64, period float32) (time.Duration, error) {
	if end < start {
		return 0, newErrorf(KindCommandExecution, "read timestamps", "end timestamp %d precedes start %d", end, start)
	}
	ns := float64(end-start) * float64(period)
	if ns > math.MaxInt64 {
		return 0, newErrorf(KindCommandExecution, "read timestamps", "elapsed %g ns overflows", ns)
	}
	return time.Duration(ns), nil
}

// Timestamp query slots.
const (
	queryStart uint32 = 0
	queryEnd   uint32 = 1
	queryCount        = 2
)

// dispatcher owns the per-engine descriptor pool and query pool. The pool
// holds exactly one set; it is allocated and reset on every invocation.
type dispatcher struct {
	dc        *DeviceContext
	pipeline  *Pipeline
	descPool  vk.DescriptorPool
	queryPool vk.QueryPool
	setsInUse int
}

func newDispatcher(dc *DeviceContext, p *Pipeline, rel *releaser) (*dispatcher, error) {
	d := &dispatcher{dc: dc, pipeline: p}

	ret := vk.CreateDescriptorPool(dc.device, &vk.DescriptorPoolCreateInfo{
		SType:         vk.StructureTypeDescriptorPoolCreateInfo,
		MaxSets:       1,
		PoolSizeCount: 1,
		PPoolSizes: []vk.DescriptorPoolSize{{
			Type:            vk.DescriptorTypeStorageBuffer,
			DescriptorCount: numBindings,
		}},
	}, nil, &d.descPool)
	if err := resultError(KindResourceCreation, "create descriptor pool", ret); err != nil {
		return nil, err
	}
	descPool := d.descPool
	rel.pushVoid("descriptor pool", func() { vk.DestroyDescriptorPool(dc.device, descPool, nil) })

	ret = vk.CreateQueryPool(dc.device, &vk.QueryPoolCreateInfo{
		SType:      vk.StructureTypeQueryPoolCreateInfo,
		QueryType:  vk.QueryTypeTimestamp,
		QueryCount: queryCount,
	}, nil, &d.queryPool)
	if err := resultError(KindResourceCreation, "create query pool", ret); err != nil {
		return nil, err
	}
	queryPool := d.queryPool
	rel.pushVoid("query pool", func() { vk.DestroyQueryPool(dc.device, queryPool, nil) })
	dc.names.queryPool(d.queryPool, "dispatch timestamps")
	return d, nil
}

// allocateSet allocates the invocation's descriptor set and points its
// three bindings at a, b and c.
func (d *dispatcher) allocateSet(a, b, c *Buffer) (vk.DescriptorSet, error) {
	var set vk.DescriptorSet
	ret := vk.AllocateDescriptorSets(d.dc.device, &vk.DescriptorSetAllocateInfo{
		SType:              vk.StructureTypeDescriptorSetAllocateInfo,
		DescriptorPool:     d.descPool,
		DescriptorSetCount: 1,
		PSetLayouts:        []vk.DescriptorSetLayout{d.pipeline.setLayout},
	}, &set)
	if err := resultError(KindResourceCreation, "allocate descriptor set", ret); err != nil {
		return nil, err
	}
	d.setsInUse++
	d.dc.names.descriptorSet(set, "matmul operands")

	buffers := [numBindings]*Buffer{a, b, c}
	writes := make([]vk.WriteDescriptorSet, numBindings)
	for i, buf := range buffers {
		writes[i] = vk.WriteDescriptorSet{
			SType:           vk.StructureTypeWriteDescriptorSet,
			DstSet:          set,
			DstBinding:      uint32(i),
			DescriptorCount: 1,
			DescriptorType:  vk.DescriptorTypeStorageBuffer,
			PBufferInfo: []vk.DescriptorBufferInfo{{
				Buffer: buf.handle,
				Offset: 0,
				Range:  vk.DeviceSize(vk.WholeSize),
			}},
		}
	}
	vk.UpdateDescriptorSets(d.dc.device, uint32(len(writes)), writes, 0, nil)
	return set, nil
}

// resetSets returns every allocated set to the descriptor pool.
func (d *dispatcher) resetSets() error {
	ret := vk.ResetDescriptorPool(d.dc.device, d.descPool, 0)
	if err := resultError(KindCommandExecution, "reset descriptor pool", ret); err != nil {
		return err
	}
	d.setsInUse = 0
	return nil
}

// record writes the dispatch into cb: push constant, bindings, timestamp
// reset and the bracketed dispatch. grid must already be validated; a
// grid beyond the device limits here is a programming error.
func (d *dispatcher) record(cb vk.CommandBuffer, set vk.DescriptorSet, n uint32, grid [3]uint32) {
	limit := d.dc.Limits.MaxComputeWorkGroupCount
	for i := range grid {
		if grid[i] == 0 || (limit[i] != 0 && grid[i] > limit[i]) {
			panic(fmt.Sprintf("compute: dispatch grid %v outside device limits %v", grid, limit))
		}
	}

	stage := vk.ShaderStageFlags(vk.ShaderStageComputeBit)
	vk.CmdPushConstants(cb, d.pipeline.layout, stage, 0, pushConstantSize, unsafe.Pointer(&n))
	vk.CmdBindDescriptorSets(cb, vk.PipelineBindPointCompute, d.pipeline.layout, 0, 1, []vk.DescriptorSet{set}, 0, nil)
	vk.CmdBindPipeline(cb, vk.PipelineBindPointCompute, d.pipeline.pipeline)

	vk.CmdResetQueryPool(cb, d.queryPool, 0, queryCount)
	vk.CmdWriteTimestamp(cb, vk.PipelineStageTopOfPipeBit, d.queryPool, queryStart)
	vk.CmdDispatch(cb, grid[0], grid[1], grid[2])
	vk.CmdWriteTimestamp(cb, vk.PipelineStageBottomOfPipeBit, d.queryPool, queryEnd)
}

// elapsed reads both timestamps, waiting for them to be available.
func (d *dispatcher) elapsed() (time.Duration, error) {
	var stamps [queryCount]uint64
	ret := vk.GetQueryPoolResults(d.dc.device, d.queryPool, 0, queryCount,
		uint(unsafe.Sizeof(stamps)), unsafe.Pointer(&stamps[0]), vk.DeviceSize(8),
		vk.QueryResultFlags(vk.QueryResult64Bit|vk.QueryResultWaitBit))
	if err := resultError(KindCommandExecution, "read timestamps", ret); err != nil {
		return 0, err
	}
	return TimestampDuration(stamps[queryStart], stamps[queryEnd], d.dc.Limits.TimestampPeriod)
}
