package gpu

import (
	"fmt"
	"runtime"
	"sync"

	"go.uber.org/zap"
)

// CPUBackend implements GPUBackend with the sequential triple loop. It is
// the fallback and the reference the GPU result is checked against.
type CPUBackend struct {
	logger      *zap.Logger
	mu          sync.Mutex
	initialized bool
}

// NewCPUBackend creates a new CPU backend instance
func NewCPUBackend(logger *zap.Logger) *CPUBackend {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &CPUBackend{
		logger: logger,
	}
}

// Initialize prepares the CPU backend for use
func (c *CPUBackend) Initialize() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.initialized {
		return nil
	}
	c.initialized = true
	c.logger.Info("CPU backend initialized", zap.Int("cpus", runtime.NumCPU()))
	return nil
}

// Cleanup releases any resources (none for CPU backend)
func (c *CPUBackend) Cleanup() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.initialized = false
	return nil
}

// IsAvailable checks if the backend is available (always true for CPU)
func (c *CPUBackend) IsAvailable() bool {
	return true
}

// GetDeviceInfo returns device information for CPU
func (c *CPUBackend) GetDeviceInfo() DeviceInfo {
	total, available := systemMemory()
	return DeviceInfo{
		Name:            fmt.Sprintf("CPU (%s)", runtime.GOARCH),
		Type:            BackendCPU,
		TotalMemory:     total,
		AvailableMemory: available,
		DriverVersion:   runtime.Version(),
	}
}

// MatrixMultiply performs matrix multiplication using CPU
// Implements C = A * B where A is m×k, B is k×n, and C is m×n
func (c *CPUBackend) MatrixMultiply(a, b []float32, m, k, n int) ([]float32, error) {
	c.mu.Lock()
	initialized := c.initialized
	c.mu.Unlock()
	if !initialized {
		return nil, fmt.Errorf("CPU backend not initialized")
	}

	if len(a) != m*k {
		return nil, fmt.Errorf("matrix A size mismatch: expected %d, got %d", m*k, len(a))
	}
	if len(b) != k*n {
		return nil, fmt.Errorf("matrix B size mismatch: expected %d, got %d", k*n, len(b))
	}

	result := make([]float32, m*n)
	for i := 0; i < m; i++ {
		for j := 0; j < n; j++ {
			sum := float32(0.0)
			for l := 0; l < k; l++ {
				sum += a[i*k+l] * b[l*n+j]
			}
			result[i*n+j] = sum
		}
	}

	return result, nil
}
