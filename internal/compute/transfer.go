package compute

import (
	"unsafe"

	vk "github.com/goki/vulkan"
)

const float32Size = 4

// Memory properties of the staging buffers.
const (
	uploadStagingProps   = MemoryHostVisible | MemoryHostCoherent
	downloadStagingProps = MemoryHostVisible | MemoryHostCoherent | MemoryHostCached
)

// mapFloats maps size bytes of b and returns them as a float32 slice.
func (dc *DeviceContext) mapFloats(b *Buffer, n int) ([]float32, error) {
	var ptr unsafe.Pointer
	ret := vk.MapMemory(dc.device, b.memory, 0, vk.DeviceSize(n*float32Size), 0, &ptr)
	if err := resultError(KindCommandExecution, "map memory", ret); err != nil {
		return nil, err
	}
	return unsafe.Slice((*float32)(ptr), n), nil
}

func (dc *DeviceContext) unmap(b *Buffer) {
	vk.UnmapMemory(dc.device, b.memory)
}

func recordCopy(src, dst *Buffer, size uint64) func(cb vk.CommandBuffer) error {
	return func(cb vk.CommandBuffer) error {
		vk.CmdCopyBuffer(cb, src.handle, dst.handle, 1, []vk.BufferCopy{{
			SrcOffset: 0,
			DstOffset: 0,
			Size:      vk.DeviceSize(size),
		}})
		return nil
	}
}

// Upload copies data into the start of dst, one of the buffers returned by
// Buffers, through a temporary host-visible staging buffer. It blocks until
// the copy has completed; the staging buffer is destroyed on every path.
func (e *Engine) Upload(dst *Buffer, data []float32) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.closed {
		return newError(KindContractViolation, "upload", ErrClosed)
	}
	if !e.owns(dst) {
		return newErrorf(KindContractViolation, "upload", "destination is not an operand buffer of this engine")
	}
	return e.upload(dst, data)
}

// Download copies len(out) floats from the start of src, one of the
// buffers returned by Buffers, into out through a temporary host-visible
// cached staging buffer. It blocks until the copy has completed.
func (e *Engine) Download(src *Buffer, out []float32) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.closed {
		return newError(KindContractViolation, "download", ErrClosed)
	}
	if !e.owns(src) {
		return newErrorf(KindContractViolation, "download", "source is not an operand buffer of this engine")
	}
	return e.download(src, out)
}

func (e *Engine) upload(dst *Buffer, data []float32) error {
	size := uint64(len(data)) * float32Size
	if size == 0 {
		return nil
	}
	if size > dst.Size {
		return newErrorf(KindContractViolation, "upload", "%d bytes do not fit in a %d byte buffer", size, dst.Size)
	}

	staging, err := e.dc.CreateBuffer(size, UsageTransferSrc, uploadStagingProps, "upload staging")
	if err != nil {
		return err
	}
	defer staging.Destroy()

	mapped, err := e.dc.mapFloats(staging, len(data))
	if err != nil {
		return err
	}
	copy(mapped, data)
	e.dc.unmap(staging)

	return e.cmds.run("upload", recordCopy(staging, dst, size))
}

func (e *Engine) download(src *Buffer, out []float32) error {
	size := uint64(len(out)) * float32Size
	if size == 0 {
		return nil
	}
	if size > src.Size {
		return newErrorf(KindContractViolation, "download", "%d bytes exceed the %d byte buffer", size, src.Size)
	}

	staging, err := e.dc.CreateBuffer(size, UsageTransferDst, downloadStagingProps, "download staging")
	if err != nil {
		return err
	}
	defer staging.Destroy()

	if err := e.cmds.run("download", recordCopy(src, staging, size)); err != nil {
		return err
	}

	mapped, err := e.dc.mapFloats(staging, len(out))
	if err != nil {
		return err
	}
	copy(out, mapped)
	e.dc.unmap(staging)
	return nil
}
