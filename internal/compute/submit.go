package compute

import (
	"fmt"

	vk "github.com/goki/vulkan"
	"go.uber.org/multierr"
)

// SyncMode selects how the host waits for submitted work.
type SyncMode int

const (
	// SyncIdle waits for the whole device to become idle after each submit.
	SyncIdle SyncMode = iota
	// SyncFence waits on a fence signaled by the submit.
	SyncFence
)

func (m SyncMode) String() string {
	switch m {
	case SyncIdle:
		return "idle"
	case SyncFence:
		return "fence"
	default:
		return fmt.Sprintf("SyncMode(%d)", int(m))
	}
}

// ParseSyncMode parses "idle" or "fence". The empty string means idle.
func ParseSyncMode(s string) (SyncMode, error) {
	switch s {
	case "", "idle":
		return SyncIdle, nil
	case "fence":
		return SyncFence, nil
	default:
		return SyncIdle, fmt.Errorf("unknown sync mode %q (expected idle or fence)", s)
	}
}

// commandPool issues single-use primary command buffers on the compute
// queue family and tracks how many are outstanding.
type commandPool struct {
	dc          *DeviceContext
	pool        vk.CommandPool
	sync        SyncMode
	outstanding int
	// pending is a buffer accepted by the queue whose completion was never
	// confirmed. It must not be freed or reset until the device is idle.
	pending vk.CommandBuffer
}

func newCommandPool(dc *DeviceContext, sync SyncMode, rel *releaser) (*commandPool, error) {
	var pool vk.CommandPool
	ret := vk.CreateCommandPool(dc.device, &vk.CommandPoolCreateInfo{
		SType:            vk.StructureTypeCommandPoolCreateInfo,
		Flags:            vk.CommandPoolCreateFlags(vk.CommandPoolCreateTransientBit),
		QueueFamilyIndex: dc.QueueFamily,
	}, nil, &pool)
	if err := resultError(KindResourceCreation, "create command pool", ret); err != nil {
		return nil, err
	}
	rel.pushVoid("command pool", func() { vk.DestroyCommandPool(dc.device, pool, nil) })
	return &commandPool{dc: dc, pool: pool, sync: sync}, nil
}

// begin allocates one primary command buffer and begins one-time recording.
func (cp *commandPool) begin(name string) (vk.CommandBuffer, error) {
	buffers := make([]vk.CommandBuffer, 1)
	ret := vk.AllocateCommandBuffers(cp.dc.device, &vk.CommandBufferAllocateInfo{
		SType:              vk.StructureTypeCommandBufferAllocateInfo,
		CommandPool:        cp.pool,
		Level:              vk.CommandBufferLevelPrimary,
		CommandBufferCount: 1,
	}, buffers)
	if err := resultError(KindResourceCreation, "allocate command buffer", ret); err != nil {
		return nil, err
	}
	cb := buffers[0]
	cp.outstanding++
	cp.dc.names.commandBuffer(cb, name)

	ret = vk.BeginCommandBuffer(cb, &vk.CommandBufferBeginInfo{
		SType: vk.StructureTypeCommandBufferBeginInfo,
		Flags: vk.CommandBufferUsageFlags(vk.CommandBufferUsageOneTimeSubmitBit),
	})
	if err := resultError(KindCommandExecution, "begin command buffer", ret); err != nil {
		return nil, multierr.Append(err, cp.retire(cb))
	}
	return cb, nil
}

// free returns cb to the pool.
func (cp *commandPool) free(cb vk.CommandBuffer) {
	vk.FreeCommandBuffers(cp.dc.device, cp.pool, 1, []vk.CommandBuffer{cb})
	cp.outstanding--
}

// reset releases the pool's internal allocations back to the driver.
func (cp *commandPool) reset() error {
	ret := vk.ResetCommandPool(cp.dc.device, cp.pool, vk.CommandPoolResetFlags(vk.CommandPoolResetReleaseResourcesBit))
	return resultError(KindCommandExecution, "reset command pool", ret)
}

// retire frees cb and resets the pool. A buffer that may still be
// executing is left alone; the pool is destroyed after the device-idle
// wait in Close.
func (cp *commandPool) retire(cb vk.CommandBuffer) error {
	if cb != nil && cb == cp.pending {
		return nil
	}
	cp.free(cb)
	return cp.reset()
}

// submit ends cb, submits it to the compute queue and blocks until the
// work is complete.
func (cp *commandPool) submit(cb vk.CommandBuffer) (err error) {
	if err := resultError(KindCommandExecution, "end command buffer", vk.EndCommandBuffer(cb)); err != nil {
		return err
	}

	fence := vk.NullFence
	if cp.sync == SyncFence {
		ret := vk.CreateFence(cp.dc.device, &vk.FenceCreateInfo{
			SType: vk.StructureTypeFenceCreateInfo,
		}, nil, &fence)
		if err := resultError(KindResourceCreation, "create fence", ret); err != nil {
			return err
		}
		defer vk.DestroyFence(cp.dc.device, fence, nil)
	}

	ret := vk.QueueSubmit(cp.dc.queue, 1, []vk.SubmitInfo{{
		SType:              vk.StructureTypeSubmitInfo,
		CommandBufferCount: 1,
		PCommandBuffers:    []vk.CommandBuffer{cb},
	}}, fence)
	if err := resultError(KindCommandExecution, "submit command buffer", ret); err != nil {
		return err
	}
	cp.pending = cb

	if cp.sync == SyncFence {
		ret = vk.WaitForFences(cp.dc.device, 1, []vk.Fence{fence}, vk.True, vk.MaxUint64)
		err = resultError(KindCommandExecution, "wait for fence", ret)
	} else {
		err = cp.dc.WaitIdle()
	}
	if err != nil {
		return err
	}
	cp.pending = nil
	return nil
}

// run records a single-use command buffer with record, submits it and
// waits. The buffer is retired on every path.
func (cp *commandPool) run(name string, record func(cb vk.CommandBuffer) error) (err error) {
	cb, err := cp.begin(name)
	if err != nil {
		return err
	}
	defer func() { err = multierr.Append(err, cp.retire(cb)) }()

	if err := record(cb); err != nil {
		return err
	}
	return cp.submit(cb)
}
