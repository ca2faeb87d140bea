package compute

import (
	"fmt"
	"strings"
	"sync"

	vk "github.com/goki/vulkan"
	"go.uber.org/zap"
)

// APIVersion is the Vulkan API version requested from the instance and
// required of the device.
var APIVersion = vk.MakeVersion(1, 2, 0)

var (
	loaderOnce sync.Once
	loaderErr  error
)

// initLoader loads the Vulkan library and the global function pointers.
// It runs once per process.
func initLoader() error {
	loaderOnce.Do(func() {
		if err := vk.SetDefaultGetInstanceProcAddr(); err != nil {
			loaderErr = newError(KindInitialization, "load vulkan library", err)
			return
		}
		if err := vk.Init(); err != nil {
			loaderErr = newError(KindInitialization, "initialize vulkan loader", err)
		}
	})
	return loaderErr
}

// LoaderAvailable reports whether a Vulkan loader can be initialized in this process.
func LoaderAvailable() bool {
	return initLoader() == nil
}

// FormatVersion formats a packed Vulkan version number as major.minor.patch.
func FormatVersion(v uint32) string {
	return fmt.Sprintf("%d.%d.%d", versionMajor(v), versionMinor(v), versionPatch(v))
}

func versionMajor(v uint32) uint32 { return v >> 22 }
func versionMinor(v uint32) uint32 { return (v >> 12) & 0x3ff }
func versionPatch(v uint32) uint32 { return v & 0xfff }

// versionAtLeast compares packed versions on major and minor only.
func versionAtLeast(v uint32, major, minor uint32) bool {
	if versionMajor(v) != major {
		return versionMajor(v) > major
	}
	return versionMinor(v) >= minor
}

// safeString returns s terminated with a NUL byte as the binding expects.
func safeString(s string) string {
	if strings.HasSuffix(s, "\x00") {
		return s
	}
	return s + "\x00"
}

func safeStrings(list []string) []string {
	out := make([]string, len(list))
	for i, s := range list {
		out[i] = safeString(s)
	}
	return out
}

// missingNames returns the entries of required that are not in available.
func missingNames(available, required []string) []string {
	have := make(map[string]struct{}, len(available))
	for _, name := range available {
		have[strings.TrimRight(name, "\x00")] = struct{}{}
	}
	var missing []string
	for _, name := range required {
		if _, ok := have[strings.TrimRight(name, "\x00")]; !ok {
			missing = append(missing, name)
		}
	}
	return missing
}

// InstanceExtensions lists the instance extensions exposed by the loader.
func InstanceExtensions() ([]string, error) {
	if err := initLoader(); err != nil {
		return nil, err
	}
	var count uint32
	if err := resultError(KindInitialization, "enumerate instance extensions", vk.EnumerateInstanceExtensionProperties("", &count, nil)); err != nil {
		return nil, err
	}
	list := make([]vk.ExtensionProperties, count)
	if err := resultError(KindInitialization, "enumerate instance extensions", vk.EnumerateInstanceExtensionProperties("", &count, list)); err != nil {
		return nil, err
	}
	names := make([]string, 0, count)
	for _, ext := range list {
		ext.Deref()
		names = append(names, vk.ToString(ext.ExtensionName[:]))
	}
	return names, nil
}

// instanceLayers lists the instance layers exposed by the loader.
func instanceLayers() ([]string, error) {
	var count uint32
	if err := resultError(KindInitialization, "enumerate instance layers", vk.EnumerateInstanceLayerProperties(&count, nil)); err != nil {
		return nil, err
	}
	list := make([]vk.LayerProperties, count)
	if err := resultError(KindInitialization, "enumerate instance layers", vk.EnumerateInstanceLayerProperties(&count, list)); err != nil {
		return nil, err
	}
	names := make([]string, 0, count)
	for _, layer := range list {
		layer.Deref()
		names = append(names, vk.ToString(layer.LayerName[:]))
	}
	return names, nil
}

// createInstance checks the required instance extensions and layers and
// creates the instance. The caller owns the returned instance.
func createInstance(appName string, extensions, layers []string, log *zap.Logger) (vk.Instance, error) {
	if err := initLoader(); err != nil {
		return nil, err
	}

	log.Info("checking required instance extensions", zap.Strings("extensions", extensions))
	available, err := InstanceExtensions()
	if err != nil {
		return nil, err
	}
	if missing := missingNames(available, extensions); len(missing) > 0 {
		return nil, newErrorf(KindInitialization, "check instance extensions", "instance extension %q is not supported", missing[0])
	}

	if len(layers) > 0 {
		availableLayers, err := instanceLayers()
		if err != nil {
			return nil, err
		}
		if missing := missingNames(availableLayers, layers); len(missing) > 0 {
			return nil, newErrorf(KindInitialization, "check instance layers", "instance layer %q is not available", missing[0])
		}
	}

	exts := safeStrings(extensions)
	lays := safeStrings(layers)
	var instance vk.Instance
	ret := vk.CreateInstance(&vk.InstanceCreateInfo{
		SType: vk.StructureTypeInstanceCreateInfo,
		PApplicationInfo: &vk.ApplicationInfo{
			SType:              vk.StructureTypeApplicationInfo,
			PApplicationName:   safeString(appName),
			ApplicationVersion: vk.MakeVersion(1, 0, 0),
			PEngineName:        safeString("vkmatmul"),
			EngineVersion:      vk.MakeVersion(1, 0, 0),
			ApiVersion:         APIVersion,
		},
		EnabledExtensionCount:   uint32(len(exts)),
		PpEnabledExtensionNames: exts,
		EnabledLayerCount:       uint32(len(lays)),
		PpEnabledLayerNames:     lays,
	}, nil, &instance)
	if err := resultError(KindInitialization, "create instance", ret); err != nil {
		return nil, err
	}
	if err := vk.InitInstance(instance); err != nil {
		vk.DestroyInstance(instance, nil)
		return nil, newError(KindInitialization, "load instance functions", err)
	}
	log.Debug("instance created", zap.String("api_version", FormatVersion(APIVersion)))
	return instance, nil
}
