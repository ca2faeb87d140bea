package compute

import (
	"errors"
	"fmt"
	"strings"

	vk "github.com/goki/vulkan"
	"go.uber.org/zap"
)

// DeviceLimits caches the physical device limits the engine consults.
type DeviceLimits struct {
	MaxComputeWorkGroupCount       [3]uint32
	MaxComputeWorkGroupSize        [3]uint32
	MaxComputeWorkGroupInvocations uint32
	MaxPushConstantsSize           uint32
	MaxStorageBufferRange          uint32
	// TimestampPeriod is the number of nanoseconds per timestamp tick.
	TimestampPeriod             float32
	TimestampComputeAndGraphics bool
}

// DeviceReport describes a physical device in terms of everything the
// suitability checks look at.
type DeviceReport struct {
	Name       string
	Type       string
	APIVersion uint32

	FragmentStoresAndAtomics       bool
	VertexPipelineStoresAndAtomics bool

	Limits     DeviceLimits
	Extensions []string
}

// QueueFamily describes one queue family of a physical device.
type QueueFamily struct {
	Index              uint32
	QueueCount         uint32
	Compute            bool
	TimestampValidBits uint32
}

// CheckSuitability returns nil if the device can run the engine, or an
// error describing the first failed requirement.
func CheckSuitability(r DeviceReport, requiredExtensions []string) error {
	if !versionAtLeast(r.APIVersion, 1, 2) {
		return fmt.Errorf("the device does not support API version 1.2.0 (has %s)", FormatVersion(r.APIVersion))
	}
	// shader-side diagnostic writes need stores and atomics in all stages
	if !r.FragmentStoresAndAtomics {
		return errors.New("the device does not support fragment stores and atomics")
	}
	if !r.VertexPipelineStoresAndAtomics {
		return errors.New("the device does not support vertex pipeline stores and atomics")
	}
	if !r.Limits.TimestampComputeAndGraphics {
		return errors.New("the device does not support timestamp compute and graphics")
	}
	if r.Limits.TimestampPeriod == 0 {
		return errors.New("the device does not support timestamp queries")
	}
	if missing := missingNames(r.Extensions, requiredExtensions); len(missing) > 0 {
		return fmt.Errorf("device extension %q is not supported", missing[0])
	}
	return nil
}

// SelectDevice returns the index of the first suitable device in
// enumeration order. There is no scoring between suitable devices.
// The returned error wraps ErrNoSuitableDevice and lists the rejection
// reason of every device.
func SelectDevice(reports []DeviceReport, requiredExtensions []string, log *zap.Logger) (int, error) {
	if log == nil {
		log = zap.NewNop()
	}
	reasons := make([]string, 0, len(reports))
	for i, r := range reports {
		log.Info("checking physical device", zap.String("device", r.Name))
		if err := CheckSuitability(r, requiredExtensions); err != nil {
			log.Warn("physical device rejected", zap.String("device", r.Name), zap.Error(err))
			reasons = append(reasons, fmt.Sprintf("%s: %v", r.Name, err))
			continue
		}
		log.Info("selected physical device", zap.String("device", r.Name))
		return i, nil
	}
	if len(reports) == 0 {
		return -1, newError(KindInitialization, "select physical device", fmt.Errorf("%w: no devices found", ErrNoSuitableDevice))
	}
	return -1, newError(KindInitialization, "select physical device",
		fmt.Errorf("%w: %s", ErrNoSuitableDevice, strings.Join(reasons, "; ")))
}

// SelectQueueFamily returns the index of the first family, in index order,
// with a nonzero queue count and compute capability.
func SelectQueueFamily(families []QueueFamily) (uint32, error) {
	for _, f := range families {
		if f.QueueCount > 0 && f.Compute {
			return f.Index, nil
		}
	}
	return 0, newError(KindInitialization, "select queue family", ErrNoComputeQueue)
}

// physicalDevice pairs a handle with the report built from it.
type physicalDevice struct {
	handle vk.PhysicalDevice
	report DeviceReport
}

func deviceTypeString(t vk.PhysicalDeviceType) string {
	switch t {
	case vk.PhysicalDeviceTypeIntegratedGpu:
		return "integrated"
	case vk.PhysicalDeviceTypeDiscreteGpu:
		return "discrete"
	case vk.PhysicalDeviceTypeVirtualGpu:
		return "virtual"
	case vk.PhysicalDeviceTypeCpu:
		return "cpu"
	default:
		return "other"
	}
}

// enumerateDevices lists the physical devices of the instance, in
// enumeration order, with their reports filled in.
func enumerateDevices(instance vk.Instance) ([]physicalDevice, error) {
	var count uint32
	if err := resultError(KindInitialization, "enumerate physical devices", vk.EnumeratePhysicalDevices(instance, &count, nil)); err != nil {
		return nil, err
	}
	handles := make([]vk.PhysicalDevice, count)
	if count > 0 {
		if err := resultError(KindInitialization, "enumerate physical devices", vk.EnumeratePhysicalDevices(instance, &count, handles)); err != nil {
			return nil, err
		}
	}
	devices := make([]physicalDevice, 0, count)
	for _, h := range handles {
		report, err := describeDevice(h)
		if err != nil {
			return nil, err
		}
		devices = append(devices, physicalDevice{handle: h, report: report})
	}
	return devices, nil
}

func describeDevice(h vk.PhysicalDevice) (DeviceReport, error) {
	var props vk.PhysicalDeviceProperties
	vk.GetPhysicalDeviceProperties(h, &props)
	props.Deref()
	props.Limits.Deref()

	var features vk.PhysicalDeviceFeatures
	vk.GetPhysicalDeviceFeatures(h, &features)
	features.Deref()

	exts, err := deviceExtensions(h)
	if err != nil {
		return DeviceReport{}, err
	}

	lim := props.Limits
	return DeviceReport{
		Name:                           vk.ToString(props.DeviceName[:]),
		Type:                           deviceTypeString(props.DeviceType),
		APIVersion:                     props.ApiVersion,
		FragmentStoresAndAtomics:       features.FragmentStoresAndAtomics == vk.True,
		VertexPipelineStoresAndAtomics: features.VertexPipelineStoresAndAtomics == vk.True,
		Limits: DeviceLimits{
			MaxComputeWorkGroupCount:       lim.MaxComputeWorkGroupCount,
			MaxComputeWorkGroupSize:        lim.MaxComputeWorkGroupSize,
			MaxComputeWorkGroupInvocations: lim.MaxComputeWorkGroupInvocations,
			MaxPushConstantsSize:           lim.MaxPushConstantsSize,
			MaxStorageBufferRange:          lim.MaxStorageBufferRange,
			TimestampPeriod:                lim.TimestampPeriod,
			TimestampComputeAndGraphics:    lim.TimestampComputeAndGraphics == vk.True,
		},
		Extensions: exts,
	}, nil
}

func deviceExtensions(h vk.PhysicalDevice) ([]string, error) {
	var count uint32
	if err := resultError(KindInitialization, "enumerate device extensions", vk.EnumerateDeviceExtensionProperties(h, "", &count, nil)); err != nil {
		return nil, err
	}
	list := make([]vk.ExtensionProperties, count)
	if err := resultError(KindInitialization, "enumerate device extensions", vk.EnumerateDeviceExtensionProperties(h, "", &count, list)); err != nil {
		return nil, err
	}
	names := make([]string, 0, count)
	for _, ext := range list {
		ext.Deref()
		names = append(names, vk.ToString(ext.ExtensionName[:]))
	}
	return names, nil
}

func queueFamilies(h vk.PhysicalDevice) []QueueFamily {
	var count uint32
	vk.GetPhysicalDeviceQueueFamilyProperties(h, &count, nil)
	props := make([]vk.QueueFamilyProperties, count)
	vk.GetPhysicalDeviceQueueFamilyProperties(h, &count, props)
	families := make([]QueueFamily, 0, count)
	for i, p := range props {
		p.Deref()
		families = append(families, QueueFamily{
			Index:              uint32(i),
			QueueCount:         p.QueueCount,
			Compute:            p.QueueFlags&vk.QueueFlags(vk.QueueComputeBit) != 0,
			TimestampValidBits: p.TimestampValidBits,
		})
	}
	return families
}

func memoryTable(h vk.PhysicalDevice) MemoryTable {
	var props vk.PhysicalDeviceMemoryProperties
	vk.GetPhysicalDeviceMemoryProperties(h, &props)
	props.Deref()
	table := make(MemoryTable, 0, props.MemoryTypeCount)
	for i := uint32(0); i < props.MemoryTypeCount; i++ {
		mt := props.MemoryTypes[i]
		mt.Deref()
		table = append(table, MemoryType{
			Flags:     MemoryFlags(mt.PropertyFlags),
			HeapIndex: mt.HeapIndex,
		})
	}
	return table
}

// DeviceContext is the selected device, its compute queue and cached
// capabilities. It is immutable after creation and shared read-only by
// every other component.
type DeviceContext struct {
	Name        string
	QueueFamily uint32
	Limits      DeviceLimits
	Memory      MemoryTable

	instance vk.Instance
	physical vk.PhysicalDevice
	device   vk.Device
	queue    vk.Queue
	names    *namer
	log      *zap.Logger
}

// DeviceOptions control device bootstrap.
type DeviceOptions struct {
	AppName            string
	InstanceExtensions []string
	DeviceExtensions   []string
	ValidationLayers   []string
	// DebugNames enables object labels when the device supports them.
	DebugNames bool
}

// newDeviceContext creates the instance and logical device and pushes their
// destruction onto rel; on failure everything created so far is released.
func newDeviceContext(opts DeviceOptions, rel *releaser, log *zap.Logger) (dc *DeviceContext, err error) {
	var local releaser
	defer local.releaseOnError(&err)

	instanceExts, reportEnabled := opts.InstanceExtensions, false
	if opts.DebugNames {
		available, err := InstanceExtensions()
		if err != nil {
			return nil, err
		}
		instanceExts, reportEnabled = namingInstanceExtensions(opts.InstanceExtensions, available, true)
		if !reportEnabled {
			log.Warn("debug names requested but the loader does not expose " + debugReportExtension)
		}
	}

	instance, err := createInstance(opts.AppName, instanceExts, opts.ValidationLayers, log)
	if err != nil {
		return nil, err
	}
	local.pushVoid("instance", func() { vk.DestroyInstance(instance, nil) })

	log.Info("enumerating physical devices")
	devices, err := enumerateDevices(instance)
	if err != nil {
		return nil, err
	}
	reports := make([]DeviceReport, len(devices))
	for i, d := range devices {
		reports[i] = d.report
		log.Info("available physical device",
			zap.String("device", d.report.Name),
			zap.String("type", d.report.Type),
			zap.String("api_version", FormatVersion(d.report.APIVersion)))
	}
	idx, err := SelectDevice(reports, opts.DeviceExtensions, log)
	if err != nil {
		return nil, err
	}
	pd := devices[idx]

	families := queueFamilies(pd.handle)
	family, err := SelectQueueFamily(families)
	if err != nil {
		return nil, err
	}
	log.Info("selected queue family",
		zap.Uint32("family", family),
		zap.Uint32("timestamp_valid_bits", families[family].TimestampValidBits))

	enabled, useMarkers := namingDeviceExtensions(opts.DeviceExtensions, pd.report.Extensions, opts.DebugNames, reportEnabled)
	if opts.DebugNames && !useMarkers {
		log.Warn("debug names requested but "+debugMarkerExtension+" is unavailable", zap.String("device", pd.report.Name))
	}
	exts := safeStrings(enabled)

	var device vk.Device
	ret := vk.CreateDevice(pd.handle, &vk.DeviceCreateInfo{
		SType:                vk.StructureTypeDeviceCreateInfo,
		QueueCreateInfoCount: 1,
		PQueueCreateInfos: []vk.DeviceQueueCreateInfo{{
			SType:            vk.StructureTypeDeviceQueueCreateInfo,
			QueueFamilyIndex: family,
			QueueCount:       1,
			PQueuePriorities: []float32{1.0},
		}},
		EnabledExtensionCount:   uint32(len(exts)),
		PpEnabledExtensionNames: exts,
		PEnabledFeatures: []vk.PhysicalDeviceFeatures{{
			FragmentStoresAndAtomics:       vk.True,
			VertexPipelineStoresAndAtomics: vk.True,
		}},
	}, nil, &device)
	if err := resultError(KindInitialization, "create logical device", ret); err != nil {
		return nil, err
	}
	local.pushVoid("device", func() { vk.DestroyDevice(device, nil) })

	var queue vk.Queue
	vk.GetDeviceQueue(device, family, 0, &queue)

	dc = &DeviceContext{
		Name:        pd.report.Name,
		QueueFamily: family,
		Limits:      pd.report.Limits,
		Memory:      memoryTable(pd.handle),
		instance:    instance,
		physical:    pd.handle,
		device:      device,
		queue:       queue,
		log:         log,
	}
	dc.names = newNamer(device, useMarkers, log)
	local.transfer(rel)
	return dc, nil
}

// WaitIdle blocks until the device has finished all submitted work.
func (dc *DeviceContext) WaitIdle() error {
	return resultError(KindCommandExecution, "wait device idle", vk.DeviceWaitIdle(dc.device))
}

// DeviceStatus is the outcome of the suitability checks for one device.
type DeviceStatus struct {
	Report   DeviceReport
	Families []QueueFamily
	Suitable bool
	Reason   string
}

// ProbeDevices creates a temporary instance and reports the suitability of
// every physical device without creating a logical device.
func ProbeDevices(opts DeviceOptions, log *zap.Logger) ([]DeviceStatus, error) {
	if log == nil {
		log = zap.NewNop()
	}
	instance, err := createInstance(opts.AppName, opts.InstanceExtensions, opts.ValidationLayers, log)
	if err != nil {
		return nil, err
	}
	defer vk.DestroyInstance(instance, nil)

	devices, err := enumerateDevices(instance)
	if err != nil {
		return nil, err
	}
	out := make([]DeviceStatus, 0, len(devices))
	for _, d := range devices {
		st := DeviceStatus{Report: d.report, Families: queueFamilies(d.handle)}
		if err := CheckSuitability(d.report, opts.DeviceExtensions); err != nil {
			st.Reason = err.Error()
		} else if _, err := SelectQueueFamily(st.Families); err != nil {
			st.Reason = err.Error()
		} else {
			st.Suitable = true
		}
		out = append(out, st)
	}
	return out, nil
}
