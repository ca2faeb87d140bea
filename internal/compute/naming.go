package compute

import (
	"unsafe"

	vk "github.com/goki/vulkan"
	"go.uber.org/zap"
)

// The marker device extension requires the report instance extension.
const (
	debugMarkerExtension = "VK_EXT_debug_marker"
	debugReportExtension = "VK_EXT_debug_report"
)

// namingInstanceExtensions returns requested plus VK_EXT_debug_report when
// names are wanted and the loader exposes it. reportEnabled tells whether
// the report extension ends up enabled.
func namingInstanceExtensions(requested, available []string, want bool) (exts []string, reportEnabled bool) {
	exts = append([]string(nil), requested...)
	if len(missingNames(exts, []string{debugReportExtension})) == 0 {
		return exts, true
	}
	if !want || len(missingNames(available, []string{debugReportExtension})) > 0 {
		return exts, false
	}
	return append(exts, debugReportExtension), true
}

// namingDeviceExtensions returns requested plus VK_EXT_debug_marker when
// naming can work: names are wanted, the report instance extension is
// enabled and the device exposes the marker extension.
func namingDeviceExtensions(requested, deviceExts []string, want, reportEnabled bool) (exts []string, markers bool) {
	exts = append([]string(nil), requested...)
	if !want || !reportEnabled || len(missingNames(deviceExts, []string{debugMarkerExtension})) > 0 {
		return exts, false
	}
	if len(missingNames(exts, []string{debugMarkerExtension})) > 0 {
		exts = append(exts, debugMarkerExtension)
	}
	return exts, true
}

// namer attaches human-readable labels to device objects for debugging
// tools. It is a no-op when the marker extension is not enabled; failures
// are logged and otherwise ignored.
type namer struct {
	device  vk.Device
	enabled bool
	log     *zap.Logger
}

func newNamer(device vk.Device, enabled bool, log *zap.Logger) *namer {
	if enabled {
		log.Debug("debug object names enabled")
	}
	return &namer{device: device, enabled: enabled, log: log}
}

func (n *namer) set(kind vk.DebugReportObjectType, object uint64, name string) {
	if n == nil || !n.enabled || object == 0 {
		return
	}
	ret := vk.DebugMarkerSetObjectName(n.device, &vk.DebugMarkerObjectNameInfo{
		SType:       vk.StructureTypeDebugMarkerObjectNameInfo,
		ObjectType:  kind,
		Object:      object,
		PObjectName: safeString(name),
	})
	if ret != vk.Success {
		n.log.Debug("failed to set object name", zap.String("name", name), zap.Error(ResultError{Result: ret}))
	}
}

func handleValue(p unsafe.Pointer) uint64 {
	return uint64(uintptr(p))
}

func (n *namer) buffer(h vk.Buffer, name string) {
	n.set(vk.DebugReportObjectTypeBuffer, handleValue(unsafe.Pointer(h)), name)
}

func (n *namer) memory(h vk.DeviceMemory, name string) {
	n.set(vk.DebugReportObjectTypeDeviceMemory, handleValue(unsafe.Pointer(h)), name)
}

func (n *namer) pipeline(h vk.Pipeline, name string) {
	n.set(vk.DebugReportObjectTypePipeline, handleValue(unsafe.Pointer(h)), name)
}

func (n *namer) descriptorSet(h vk.DescriptorSet, name string) {
	n.set(vk.DebugReportObjectTypeDescriptorSet, handleValue(unsafe.Pointer(h)), name)
}

func (n *namer) commandBuffer(h vk.CommandBuffer, name string) {
	n.set(vk.DebugReportObjectTypeCommandBuffer, handleValue(unsafe.Pointer(h)), name)
}

func (n *namer) queryPool(h vk.QueryPool, name string) {
	n.set(vk.DebugReportObjectTypeQueryPool, handleValue(unsafe.Pointer(h)), name)
}

func (n *namer) shaderModule(h vk.ShaderModule, name string) {
	n.set(vk.DebugReportObjectTypeShaderModule, handleValue(unsafe.Pointer(h)), name)
}
