//go:build !novulkan

package gpu

import (
	"fmt"
	"os"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/fxnlabs/vkmatmul/internal/compute"
)

// VulkanBackend implements GPUBackend on a compute.Engine. The engine's
// matrix size is fixed at Initialize, so only N×N by N×N products of that
// size are accepted.
type VulkanBackend struct {
	opts   compute.Options
	logger *zap.Logger

	mu          sync.Mutex
	engine      *compute.Engine
	lastGPUTime time.Duration
}

// NewVulkanBackend creates a new Vulkan backend; no device work happens
// until Initialize.
func NewVulkanBackend(opts compute.Options, logger *zap.Logger) *VulkanBackend {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &VulkanBackend{opts: opts, logger: logger}
}

// IsAvailable reports whether a loader and a shader are present.
func (v *VulkanBackend) IsAvailable() bool {
	if len(v.opts.ShaderCode) == 0 {
		if _, err := os.Stat(v.opts.ShaderPath); err != nil {
			v.logger.Debug("Vulkan shader not found", zap.String("path", v.opts.ShaderPath), zap.Error(err))
			return false
		}
	}
	return compute.LoaderAvailable()
}

// Initialize creates the compute engine
func (v *VulkanBackend) Initialize() error {
	v.mu.Lock()
	defer v.mu.Unlock()
	if v.engine != nil {
		return nil
	}
	engine, err := compute.New(v.opts, v.logger)
	if err != nil {
		return fmt.Errorf("failed to initialize Vulkan backend: %w", err)
	}
	v.engine = engine
	limits := engine.Limits()
	v.logger.Info("Vulkan backend initialized",
		zap.String("device", engine.DeviceName()),
		zap.Int("n", engine.N()),
		zap.Int("tile", engine.TileSize()),
		zap.Uint32s("max_work_groups", limits.MaxComputeWorkGroupCount[:]),
		zap.Float32("timestamp_period_ns", limits.TimestampPeriod))
	return nil
}

// Cleanup destroys the engine and every device object it owns
func (v *VulkanBackend) Cleanup() error {
	v.mu.Lock()
	defer v.mu.Unlock()
	if v.engine == nil {
		return nil
	}
	err := v.engine.Close()
	v.engine = nil
	return err
}

// GetDeviceInfo returns information about the selected device
func (v *VulkanBackend) GetDeviceInfo() DeviceInfo {
	v.mu.Lock()
	defer v.mu.Unlock()
	info := DeviceInfo{
		Name:       "Vulkan (not initialized)",
		Type:       BackendVulkan,
		APIVersion: compute.FormatVersion(compute.APIVersion),
	}
	if v.engine != nil {
		info.Name = v.engine.DeviceName()
	}
	return info
}

// MatrixMultiply runs the product on the device
func (v *VulkanBackend) MatrixMultiply(a, b []float32, m, k, n int) ([]float32, error) {
	v.mu.Lock()
	defer v.mu.Unlock()
	if v.engine == nil {
		return nil, fmt.Errorf("Vulkan backend not initialized")
	}
	size := v.engine.N()
	if m != size || k != size || n != size {
		return nil, fmt.Errorf("Vulkan backend multiplies %dx%d matrices only, got %dx%d by %dx%d", size, size, m, k, k, n)
	}
	res, err := v.engine.Multiply(a, b)
	if err != nil {
		return nil, err
	}
	v.lastGPUTime = res.GPUTime
	return res.C, nil
}

// LastGPUTime returns the timestamp-measured time of the last dispatch
func (v *VulkanBackend) LastGPUTime() time.Duration {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.lastGPUTime
}

// Stats returns the engine's pool occupancy, zero between calls.
func (v *VulkanBackend) Stats() compute.Stats {
	v.mu.Lock()
	defer v.mu.Unlock()
	if v.engine == nil {
		return compute.Stats{}
	}
	return v.engine.Stats()
}
