package vulkan

import (
	"fmt"
	"log/slog"

	vk "github.com/goki/vulkan"

	"github.com/KojoZero/azahar/internal/frontend"
	"github.com/KojoZero/azahar/internal/telemetry"
)

// Device extensions the renderer can take advantage of
const (
	extTimelineSemaphore            = "VK_KHR_timeline_semaphore"
	extExtendedDynamicState         = "VK_EXT_extended_dynamic_state"
	extCustomBorderColor            = "VK_EXT_custom_border_color"
	extIndexTypeUint8               = "VK_EXT_index_type_uint8"
	extFragmentShaderInterlock      = "VK_EXT_fragment_shader_interlock"
	extImageFormatList              = "VK_KHR_image_format_list"
	extPipelineCreationCacheControl = "VK_EXT_pipeline_creation_cache_control"
	extFragmentShaderBarycentric    = "VK_KHR_fragment_shader_barycentric"
	extShaderStencilExport          = "VK_EXT_shader_stencil_export"
	extExternalMemoryHost           = "VK_EXT_external_memory_host"
	extShaderViewportIndexLayer     = "VK_EXT_shader_viewport_index_layer"
	extPortabilitySubset            = "VK_KHR_portability_subset"
)

// Capabilities records which optional device features the renderer may
// use. A flag is true only when the device advertises the extension AND,
// for flags backed by extension entry points, the frontend's dispatch
// table actually resolved them. Detection may clear a flag after the fact
// (driver workarounds); it never sets one the device did not advertise.
type Capabilities struct {
	TimelineSemaphores           bool
	ExtendedDynamicState         bool
	CustomBorderColor            bool
	IndexTypeUint8               bool
	FragmentShaderInterlock      bool
	ImageFormatList              bool
	PipelineCreationCacheControl bool
	FragmentShaderBarycentric    bool
	ShaderStencilExport          bool
	ExternalMemoryHost           bool
	LayeredRendering             bool

	// MinUniformAlignment is the device's minimum uniform buffer offset
	// alignment in bytes.
	MinUniformAlignment uint64
}

// Entry points that must resolve before the matching capability is trusted.
// The frontend's device may not have loaded extension functions even when
// the extension itself is advertised.
var gatedProcs = map[string][]string{
	"extended_dynamic_state": {
		"vkCmdSetCullModeEXT",
		"vkCmdSetDepthTestEnableEXT",
		"vkCmdSetDepthWriteEnableEXT",
		"vkCmdSetFrontFaceEXT",
	},
	"timeline_semaphores": {
		"vkGetSemaphoreCounterValueKHR",
		"vkWaitSemaphoresKHR",
	},
	"external_memory_host": {
		"vkGetMemoryHostPointerPropertiesEXT",
	},
}

// deviceInfo is the raw data capability resolution works from, split out
// so resolution itself stays a pure function of its inputs.
type deviceInfo struct {
	name                string
	apiVersion          uint32
	extensions          map[string]struct{}
	minUniformAlignment uint64
}

func (d deviceInfo) has(ext string) bool {
	_, ok := d.extensions[ext]
	return ok
}

// DetectCapabilities produces the capability record for a physical device.
// It is idempotent and has no side effect beyond logging, so callers may
// re-run it after an interface refresh. A nil device is fatal; missing
// optional extensions never are.
func DetectCapabilities(gpu vk.PhysicalDevice, loader frontend.ProcLoader) (Capabilities, error) {
	if gpu == nil {
		return Capabilities{}, ErrNoPhysicalDevice
	}

	info, err := queryDeviceInfo(gpu)
	if err != nil {
		return Capabilities{}, fmt.Errorf("failed to query device info: %w", err)
	}

	return resolveCapabilities(info, loader), nil
}

// queryDeviceInfo gathers properties and the extension set from the device
func queryDeviceInfo(gpu vk.PhysicalDevice) (deviceInfo, error) {
	var props vk.PhysicalDeviceProperties
	vk.GetPhysicalDeviceProperties(gpu, &props)
	props.Deref()
	props.Limits.Deref()

	var count uint32
	if res := vk.EnumerateDeviceExtensionProperties(gpu, "", &count, nil); res != vk.Success {
		return deviceInfo{}, fmt.Errorf("failed to enumerate device extensions: %w", vk.Error(res))
	}
	list := make([]vk.ExtensionProperties, count)
	if count > 0 {
		if res := vk.EnumerateDeviceExtensionProperties(gpu, "", &count, list); res != vk.Success {
			return deviceInfo{}, fmt.Errorf("failed to enumerate device extensions: %w", vk.Error(res))
		}
	}

	extensions := make(map[string]struct{}, count)
	for i := range list {
		list[i].Deref()
		extensions[vk.ToString(list[i].ExtensionName[:])] = struct{}{}
	}

	return deviceInfo{
		name:                vk.ToString(props.DeviceName[:]),
		apiVersion:          props.ApiVersion,
		extensions:          extensions,
		minUniformAlignment: uint64(props.Limits.MinUniformBufferOffsetAlignment),
	}, nil
}

// resolveCapabilities turns the raw device info into the capability
// record, verifying entry points and applying driver workarounds
func resolveCapabilities(info deviceInfo, loader frontend.ProcLoader) Capabilities {
	metrics := telemetry.New()

	caps := Capabilities{
		TimelineSemaphores:           info.has(extTimelineSemaphore),
		ExtendedDynamicState:         info.has(extExtendedDynamicState),
		CustomBorderColor:            info.has(extCustomBorderColor),
		IndexTypeUint8:               info.has(extIndexTypeUint8),
		FragmentShaderInterlock:      info.has(extFragmentShaderInterlock),
		ImageFormatList:              info.has(extImageFormatList),
		PipelineCreationCacheControl: info.has(extPipelineCreationCacheControl),
		FragmentShaderBarycentric:    info.has(extFragmentShaderBarycentric),
		ShaderStencilExport:          info.has(extShaderStencilExport),
		ExternalMemoryHost:           info.has(extExternalMemoryHost),
		MinUniformAlignment:          info.minUniformAlignment,
	}

	// Layered rendering needs the shaderOutputLayer feature, promoted to
	// core in 1.2 from VK_EXT_shader_viewport_index_layer. Declare it only
	// when one of the two is confirmed.
	caps.LayeredRendering = info.has(extShaderViewportIndexLayer) || atLeastVersion(info.apiVersion, 1, 2)

	downgrade := func(flag *bool, name, reason string) {
		if !*flag {
			return
		}
		*flag = false
		slog.Warn("Disabling device capability",
			"capability", name,
			"reason", reason,
			"device", info.name,
		)
		metrics.CapabilityDowngrades.WithLabelValues(name).Inc()
	}

	if !procsResolve(loader, gatedProcs["extended_dynamic_state"]) {
		downgrade(&caps.ExtendedDynamicState, "extended_dynamic_state", "entry points not loaded in frontend dispatch")
	}
	if !procsResolve(loader, gatedProcs["timeline_semaphores"]) {
		downgrade(&caps.TimelineSemaphores, "timeline_semaphores", "entry points not loaded in frontend dispatch")
	}
	if !procsResolve(loader, gatedProcs["external_memory_host"]) {
		downgrade(&caps.ExternalMemoryHost, "external_memory_host", "entry points not loaded in frontend dispatch")
	}

	// Portability (translation-layer) drivers report barycentric support
	// but their target shading language has no matching primitive.
	if info.has(extPortabilitySubset) {
		downgrade(&caps.FragmentShaderBarycentric, "fragment_shader_barycentric", "portability driver cannot compile barycentric inputs")
	}

	return caps
}

// procsResolve reports whether every named entry point resolves through
// the frontend's loader. A missing loader resolves nothing.
func procsResolve(loader frontend.ProcLoader, names []string) bool {
	if loader == nil {
		return false
	}
	for _, name := range names {
		if loader(name) == nil {
			return false
		}
	}
	return true
}

func atLeastVersion(apiVersion uint32, major, minor int) bool {
	v := vk.Version(apiVersion)
	if v.Major() != major {
		return v.Major() > major
	}
	return v.Minor() >= minor
}
