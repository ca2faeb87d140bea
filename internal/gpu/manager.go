package gpu

import (
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/fxnlabs/vkmatmul/internal/compute"
)

// Backend preferences accepted by ManagerOptions.Prefer.
const (
	PreferAuto   = "auto"
	PreferVulkan = BackendVulkan
	PreferCPU    = BackendCPU
)

// ManagerOptions select and configure the backend.
type ManagerOptions struct {
	// Prefer is auto, vulkan or cpu. auto tries Vulkan and falls back to
	// CPU; vulkan fails instead of falling back.
	Prefer string
	Vulkan compute.Options
}

// Manager handles backend selection and lifecycle
type Manager struct {
	backend GPUBackend
	mu      sync.RWMutex
	logger  *zap.Logger
	opts    ManagerOptions
}

// NewManager creates a new manager and selects the best available backend
func NewManager(opts ManagerOptions, logger *zap.Logger) (*Manager, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	if opts.Prefer == "" {
		opts.Prefer = PreferAuto
	}

	m := &Manager{
		logger: logger,
		opts:   opts,
	}

	if err := m.detectAndInitialize(); err != nil {
		return nil, err
	}

	return m, nil
}

// detectAndInitialize detects available backends and initializes the best one
func (m *Manager) detectAndInitialize() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	switch m.opts.Prefer {
	case PreferAuto, PreferVulkan:
	case PreferCPU:
		return m.useCPU()
	default:
		return fmt.Errorf("unknown backend preference %q", m.opts.Prefer)
	}

	vkBackend := m.tryCreateVulkanBackend()
	var vkErr error
	switch {
	case vkBackend == nil:
		vkErr = fmt.Errorf("Vulkan support not compiled in")
	case !vkBackend.IsAvailable():
		vkErr = fmt.Errorf("Vulkan loader or shader not available")
	default:
		if vkErr = vkBackend.Initialize(); vkErr == nil {
			m.backend = vkBackend
			return nil
		}
		// If initialization failed, try cleanup
		_ = vkBackend.Cleanup()
	}

	if m.opts.Prefer == PreferVulkan {
		return vkErr
	}
	m.logger.Warn("Vulkan backend unavailable, falling back to CPU", zap.Error(vkErr))
	return m.useCPU()
}

func (m *Manager) useCPU() error {
	cpuBackend := NewCPUBackend(m.logger)
	if err := cpuBackend.Initialize(); err != nil {
		return fmt.Errorf("failed to initialize CPU backend: %w", err)
	}
	m.backend = cpuBackend
	return nil
}

// GetBackend returns the current backend
func (m *Manager) GetBackend() GPUBackend {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.backend
}

// MatrixMultiply performs matrix multiplication using the selected backend
func (mgr *Manager) MatrixMultiply(a, b []float32, m, k, n int) ([]float32, error) {
	backend := mgr.GetBackend()
	if backend == nil {
		return nil, fmt.Errorf("no backend available")
	}
	return backend.MatrixMultiply(a, b, m, k, n)
}

// LastGPUTime returns the device time of the last multiply, or zero when
// the backend does not measure it.
func (m *Manager) LastGPUTime() time.Duration {
	if tb, ok := m.GetBackend().(TimedBackend); ok {
		return tb.LastGPUTime()
	}
	return 0
}

// GetDeviceInfo returns device information from the current backend
func (m *Manager) GetDeviceInfo() DeviceInfo {
	backend := m.GetBackend()
	if backend == nil {
		return DeviceInfo{Name: "No backend available", Type: BackendNone}
	}
	return backend.GetDeviceInfo()
}

// IsGPUAvailable returns true if a GPU backend is active
func (m *Manager) IsGPUAvailable() bool {
	backend := m.GetBackend()
	if backend == nil {
		return false
	}
	_, isCPU := backend.(*CPUBackend)
	return !isCPU
}

// Cleanup releases resources held by the current backend
func (m *Manager) Cleanup() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.backend != nil {
		if err := m.backend.Cleanup(); err != nil {
			return err
		}
		m.backend = nil
	}
	return nil
}

// GetBackendType returns a string describing the current backend type
func (m *Manager) GetBackendType() string {
	switch m.GetBackend().(type) {
	case nil:
		return BackendNone
	case *CPUBackend:
		return BackendCPU
	case *VulkanBackend:
		return BackendVulkan
	default:
		return "unknown"
	}
}
