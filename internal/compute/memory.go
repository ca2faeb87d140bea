package compute

import (
	"fmt"
	"strings"

	vk "github.com/goki/vulkan"
	"go.uber.org/zap"
)

// MemoryFlags is a set of memory property flags.
type MemoryFlags uint32

const (
	MemoryDeviceLocal  = MemoryFlags(vk.MemoryPropertyDeviceLocalBit)
	MemoryHostVisible  = MemoryFlags(vk.MemoryPropertyHostVisibleBit)
	MemoryHostCoherent = MemoryFlags(vk.MemoryPropertyHostCoherentBit)
	MemoryHostCached   = MemoryFlags(vk.MemoryPropertyHostCachedBit)
)

// Has reports whether f contains every flag in want.
func (f MemoryFlags) Has(want MemoryFlags) bool {
	return f&want == want
}

func (f MemoryFlags) String() string {
	if f == 0 {
		return "none"
	}
	var parts []string
	for _, p := range []struct {
		flag MemoryFlags
		name string
	}{
		{MemoryDeviceLocal, "DEVICE_LOCAL"},
		{MemoryHostVisible, "HOST_VISIBLE"},
		{MemoryHostCoherent, "HOST_COHERENT"},
		{MemoryHostCached, "HOST_CACHED"},
	} {
		if f&p.flag != 0 {
			parts = append(parts, p.name)
			f &^= p.flag
		}
	}
	if f != 0 {
		parts = append(parts, fmt.Sprintf("0x%x", uint32(f)))
	}
	return strings.Join(parts, "|")
}

// MemoryType is one entry of a device's memory type table.
type MemoryType struct {
	Flags     MemoryFlags
	HeapIndex uint32
}

// MemoryTable is the device's memory types in index order.
type MemoryTable []MemoryType

// FindMemoryType returns the lowest index i such that bit i of typeBits is
// set and the type's flags include all of want.
func FindMemoryType(table MemoryTable, typeBits uint32, want MemoryFlags) (uint32, error) {
	for i, mt := range table {
		if i >= 32 {
			break
		}
		if typeBits&(1<<uint(i)) != 0 && mt.Flags.Has(want) {
			return uint32(i), nil
		}
	}
	return 0, newError(KindMemoryType, "find memory type",
		fmt.Errorf("%w: type bits 0x%x, properties %s", ErrNoCompatibleMemoryType, typeBits, want))
}

// BufferUsage is a set of buffer usage flags.
type BufferUsage uint32

const (
	UsageStorage     = BufferUsage(vk.BufferUsageStorageBufferBit)
	UsageTransferSrc = BufferUsage(vk.BufferUsageTransferSrcBit)
	UsageTransferDst = BufferUsage(vk.BufferUsageTransferDstBit)
)

// Buffer is a buffer object bound at offset 0 to its own allocation.
type Buffer struct {
	Size  uint64 // requested size in bytes
	Usage BufferUsage
	Props MemoryFlags

	handle    vk.Buffer
	memory    vk.DeviceMemory
	allocSize uint64
	device    vk.Device
}

// Destroy destroys the buffer and then frees its memory.
func (b *Buffer) Destroy() {
	if b == nil || b.device == nil {
		return
	}
	if b.handle != nil {
		vk.DestroyBuffer(b.device, b.handle, nil)
		b.handle = nil
	}
	if b.memory != nil {
		vk.FreeMemory(b.device, b.memory, nil)
		b.memory = nil
	}
}

// CreateBuffer creates an exclusive buffer of size bytes, allocates
// memory of the type chosen by FindMemoryType for props, and binds it.
// On failure nothing is left allocated.
func (dc *DeviceContext) CreateBuffer(size uint64, usage BufferUsage, props MemoryFlags, name string) (buf *Buffer, err error) {
	if size == 0 {
		return nil, newError(KindContractViolation, "create buffer", fmt.Errorf("buffer %q has zero size", name))
	}
	var local releaser
	defer local.releaseOnError(&err)

	var handle vk.Buffer
	ret := vk.CreateBuffer(dc.device, &vk.BufferCreateInfo{
		SType:       vk.StructureTypeBufferCreateInfo,
		Size:        vk.DeviceSize(size),
		Usage:       vk.BufferUsageFlags(usage),
		SharingMode: vk.SharingModeExclusive,
	}, nil, &handle)
	if err := resultError(KindResourceCreation, "create buffer "+name, ret); err != nil {
		return nil, err
	}
	local.pushVoid("buffer "+name, func() { vk.DestroyBuffer(dc.device, handle, nil) })

	var req vk.MemoryRequirements
	vk.GetBufferMemoryRequirements(dc.device, handle, &req)
	req.Deref()

	typeIndex, err := FindMemoryType(dc.Memory, req.MemoryTypeBits, props)
	if err != nil {
		return nil, err
	}

	var memory vk.DeviceMemory
	ret = vk.AllocateMemory(dc.device, &vk.MemoryAllocateInfo{
		SType:           vk.StructureTypeMemoryAllocateInfo,
		AllocationSize:  req.Size,
		MemoryTypeIndex: typeIndex,
	}, nil, &memory)
	if err := resultError(KindResourceCreation, "allocate memory "+name, ret); err != nil {
		return nil, err
	}
	local.pushVoid("memory "+name, func() { vk.FreeMemory(dc.device, memory, nil) })

	if err := resultError(KindResourceCreation, "bind buffer memory "+name, vk.BindBufferMemory(dc.device, handle, memory, 0)); err != nil {
		return nil, err
	}

	dc.names.buffer(handle, name)
	dc.names.memory(memory, name+" memory")
	dc.log.Debug("buffer created",
		zap.String("name", name),
		zap.Uint64("size", size),
		zap.Uint64("alloc_size", uint64(req.Size)),
		zap.Uint32("memory_type", typeIndex),
		zap.Stringer("props", props))

	return &Buffer{
		Size:      size,
		Usage:     usage,
		Props:     props,
		handle:    handle,
		memory:    memory,
		allocSize: uint64(req.Size),
		device:    dc.device,
	}, nil
}
