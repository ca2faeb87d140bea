package gpu

import "time"

// Backend type names reported by Manager.GetBackendType.
const (
	BackendVulkan = "vulkan"
	BackendCPU    = "cpu"
	BackendNone   = "none"
)

// DeviceInfo contains information about the compute device
type DeviceInfo struct {
	Name            string `json:"name"`
	Type            string `json:"type"`
	TotalMemory     int64  `json:"totalMemory"`     // in bytes
	AvailableMemory int64  `json:"availableMemory"` // in bytes
	APIVersion      string `json:"apiVersion,omitempty"`
	DriverVersion   string `json:"driverVersion"`
}

// GPUBackend defines the interface for matrix multiply backends.
//
// Implementation notes:
// - Backends handle their device memory internally
// - Fallback to CPU is handled by the Manager, not the backend
// - Cleanup must release every device object the backend created
type GPUBackend interface {
	// MatrixMultiply performs C = A * B where A is m×k, B is k×n and C is
	// m×n, all row-major.
	MatrixMultiply(a, b []float32, m, k, n int) ([]float32, error)

	// GetDeviceInfo returns information about the device
	GetDeviceInfo() DeviceInfo

	// IsAvailable performs a quick check without heavy initialization
	IsAvailable() bool

	// Initialize prepares the backend for use. Calling it twice is a no-op.
	Initialize() error

	// Cleanup releases any resources held by the backend
	Cleanup() error
}

// TimedBackend is implemented by backends that measure device-side time.
type TimedBackend interface {
	GPUBackend
	// LastGPUTime returns the device time of the most recent MatrixMultiply.
	LastGPUTime() time.Duration
}
