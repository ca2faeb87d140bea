//go:build !novulkan

package gpu

// tryCreateVulkanBackend returns a Vulkan backend when built with Vulkan support
func (m *Manager) tryCreateVulkanBackend() GPUBackend {
	return NewVulkanBackend(m.opts.Vulkan, m.logger)
}
