package gpu

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/fxnlabs/vkmatmul/internal/compute"
)

func TestManager_PreferCPU(t *testing.T) {
	manager, err := NewManager(ManagerOptions{Prefer: PreferCPU}, zaptest.NewLogger(t))
	require.NoError(t, err)
	defer manager.Cleanup()

	require.NotNil(t, manager.GetBackend())
	assert.Equal(t, BackendCPU, manager.GetBackendType())
	assert.False(t, manager.IsGPUAvailable())
	assert.Contains(t, manager.GetDeviceInfo().Name, "CPU")
	assert.Zero(t, manager.LastGPUTime())

	result, err := manager.MatrixMultiply([]float32{1, 2, 3, 4}, []float32{5, 6, 7, 8}, 2, 2, 2)
	require.NoError(t, err)
	assert.Equal(t, []float32{19, 22, 43, 50}, result)
}

func TestManager_AutoFallsBackToCPU(t *testing.T) {
	// a shader path that does not exist makes the Vulkan backend unavailable
	manager, err := NewManager(ManagerOptions{
		Prefer: PreferAuto,
		Vulkan: compute.Options{MatrixSize: 16, ShaderPath: t.TempDir() + "/missing.spv"},
	}, zaptest.NewLogger(t))
	require.NoError(t, err)
	defer manager.Cleanup()

	assert.Equal(t, BackendCPU, manager.GetBackendType())
}

func TestManager_PreferVulkanDoesNotFallBack(t *testing.T) {
	_, err := NewManager(ManagerOptions{
		Prefer: PreferVulkan,
		Vulkan: compute.Options{MatrixSize: 16, ShaderPath: t.TempDir() + "/missing.spv"},
	}, zaptest.NewLogger(t))
	assert.Error(t, err)
}

func TestManager_UnknownPreference(t *testing.T) {
	_, err := NewManager(ManagerOptions{Prefer: "cuda"}, nil)
	assert.ErrorContains(t, err, "unknown backend preference")
}

func TestManager_Cleanup(t *testing.T) {
	manager, err := NewManager(ManagerOptions{Prefer: PreferCPU}, nil)
	require.NoError(t, err)

	require.NoError(t, manager.Cleanup())
	assert.Nil(t, manager.GetBackend())
	assert.Equal(t, BackendNone, manager.GetBackendType())
	assert.Equal(t, BackendNone, manager.GetDeviceInfo().Type)

	_, err = manager.MatrixMultiply([]float32{1}, []float32{1}, 1, 1, 1)
	assert.ErrorContains(t, err, "no backend available")

	// second cleanup is a no-op
	assert.NoError(t, manager.Cleanup())
}
