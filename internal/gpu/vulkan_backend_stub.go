//go:build novulkan

package gpu

import (
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/fxnlabs/vkmatmul/internal/compute"
)

// VulkanBackend stub for builds without Vulkan support
type VulkanBackend struct{}

// NewVulkanBackend returns a stub backend
func NewVulkanBackend(opts compute.Options, logger *zap.Logger) *VulkanBackend {
	return &VulkanBackend{}
}

func (v *VulkanBackend) IsAvailable() bool { return false }

func (v *VulkanBackend) Initialize() error {
	return fmt.Errorf("Vulkan support not compiled in")
}

func (v *VulkanBackend) Cleanup() error { return nil }

func (v *VulkanBackend) GetDeviceInfo() DeviceInfo {
	return DeviceInfo{Name: "Vulkan (not available)", Type: BackendVulkan}
}

func (v *VulkanBackend) MatrixMultiply(a, b []float32, m, k, n int) ([]float32, error) {
	return nil, fmt.Errorf("Vulkan support not compiled in")
}

func (v *VulkanBackend) LastGPUTime() time.Duration { return 0 }

func (v *VulkanBackend) Stats() compute.Stats { return compute.Stats{} }
