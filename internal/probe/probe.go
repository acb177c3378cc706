// Package probe runs Vulkan device detection outside a frontend. It owns
// a private instance for enumeration, which the bridge proper never does,
// and reports what the presentation path would get on each device.
package probe

import (
	"fmt"
	"log/slog"
	"sync"

	vk "github.com/goki/vulkan"

	"github.com/KojoZero/azahar/internal/config"
	"github.com/KojoZero/azahar/internal/renderer/vulkan"
)

// ValidationLayer is the standard Khronos validation layer
const ValidationLayer = "VK_LAYER_KHRONOS_validation"

var (
	vulkanInitOnce sync.Once
	vulkanInitErr  error
)

func initVulkan() error {
	vulkanInitOnce.Do(func() {
		if err := vk.SetDefaultGetInstanceProcAddr(); err != nil {
			vulkanInitErr = fmt.Errorf("failed to load Vulkan loader: %w", err)
			return
		}
		vulkanInitErr = vk.Init()
	})
	return vulkanInitErr
}

// Probe detects Vulkan devices and their presentation capabilities
type Probe struct {
	preferredDevice     string
	enableValidation    bool
	validationLayersSet bool
}

// New creates a Probe configured from the renderer settings
func New(settings *config.Settings) *Probe {
	return &Probe{
		preferredDevice:  settings.Renderer.PreferredDevice,
		enableValidation: settings.Renderer.EnableValidation,
	}
}

// Report is the outcome of one detection run
type Report struct {
	Supported    bool
	Device       Device
	Devices      []Device
	Capabilities vulkan.Capabilities
}

// Run enumerates devices, selects one per the configured preference and
// detects its capabilities. Detection failures degrade to an unsupported
// report instead of an error so callers can fall back to software
// rendering.
func (p *Probe) Run() (*Report, error) {
	report := &Report{}

	if err := initVulkan(); err != nil {
		slog.Warn("Failed to initialize Vulkan, hardware rendering unavailable", "error", err)
		return report, nil
	}

	instance, err := p.createInstance()
	if err != nil {
		slog.Warn("Failed to create Vulkan instance, hardware rendering unavailable", "error", err)
		return report, nil
	}
	defer vk.DestroyInstance(instance, nil)

	devices, err := listDevices(instance)
	if err != nil {
		slog.Warn("Failed to list Vulkan devices, hardware rendering unavailable", "error", err)
		return report, nil
	}
	report.Devices = devices

	device := selectDevice(devices, p.preferredDevice)
	if !device.Available {
		slog.Warn("Selected Vulkan device is not available, hardware rendering unavailable",
			"device", device.Name,
		)
		return report, nil
	}
	report.Device = device

	// No frontend supplies a proc loader here, so proc-gated capabilities
	// report as downgraded. Extension-derived flags are still meaningful.
	caps, err := vulkan.DetectCapabilities(device.handle, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to detect capabilities: %w", err)
	}
	report.Capabilities = caps
	report.Supported = true

	slog.Info("Vulkan device detected",
		"name", device.Name,
		"type", device.Type,
		"driver_version", device.DriverVersion,
		"api_version", device.APIVersion,
		"timeline_semaphores", caps.TimelineSemaphores,
		"extended_dynamic_state", caps.ExtendedDynamicState,
		"layered_rendering", caps.LayeredRendering,
	)
	return report, nil
}

func (p *Probe) createInstance() (vk.Instance, error) {
	appInfo := vk.ApplicationInfo{
		SType:              vk.StructureTypeApplicationInfo,
		PApplicationName:   "Azahar\x00",
		ApplicationVersion: vk.MakeVersion(1, 0, 0),
		PEngineName:        "No Engine\x00",
		EngineVersion:      vk.MakeVersion(1, 0, 0),
		ApiVersion:         vk.MakeVersion(1, 1, 0),
	}
	createInfo := vk.InstanceCreateInfo{
		SType:            vk.StructureTypeInstanceCreateInfo,
		PApplicationInfo: &appInfo,
	}

	if p.enableValidation {
		if validationLayerSupported() {
			createInfo.EnabledLayerCount = 1
			createInfo.PpEnabledLayerNames = []string{ValidationLayer + "\x00"}
			p.validationLayersSet = true
			slog.Info("Vulkan validation layers enabled")
		} else {
			slog.Warn("Vulkan validation layers requested but not available")
		}
	}

	var instance vk.Instance
	if res := vk.CreateInstance(&createInfo, nil, &instance); res != vk.Success {
		return nil, fmt.Errorf("failed to create Vulkan instance: %w", vk.Error(res))
	}
	if err := vk.InitInstance(instance); err != nil {
		vk.DestroyInstance(instance, nil)
		return nil, fmt.Errorf("failed to initialize instance dispatch: %w", err)
	}
	return instance, nil
}

func validationLayerSupported() bool {
	var count uint32
	if vk.EnumerateInstanceLayerProperties(&count, nil) != vk.Success {
		return false
	}
	props := make([]vk.LayerProperties, count)
	if vk.EnumerateInstanceLayerProperties(&count, props) != vk.Success {
		return false
	}
	for i := range props {
		props[i].Deref()
		if vk.ToString(props[i].LayerName[:]) == ValidationLayer {
			return true
		}
	}
	return false
}
