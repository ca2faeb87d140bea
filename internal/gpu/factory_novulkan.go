//go:build novulkan

package gpu

// tryCreateVulkanBackend returns nil when the novulkan build tag is present
func (m *Manager) tryCreateVulkanBackend() GPUBackend {
	return nil
}
