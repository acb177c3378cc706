package probe

import (
	"fmt"
	"log/slog"
	"strings"

	vk "github.com/goki/vulkan"
)

// Device type labels used in reports and logs
const (
	DeviceTypeDiscrete   = "discrete"
	DeviceTypeIntegrated = "integrated"
	DeviceTypeVirtual    = "virtual"
	DeviceTypeCPU        = "cpu"
	DeviceTypeOther      = "other"
)

// Device describes one enumerated physical device
type Device struct {
	Name          string
	Type          string
	DeviceID      uint32
	VendorID      uint32
	DriverVersion string
	APIVersion    string
	Available     bool

	handle vk.PhysicalDevice
}

// listDevices enumerates physical devices on an instance. A device is
// available when it exposes a graphics-capable queue family, which the
// presentation bridge requires.
func listDevices(instance vk.Instance) ([]Device, error) {
	var count uint32
	if res := vk.EnumeratePhysicalDevices(instance, &count, nil); res != vk.Success {
		return nil, fmt.Errorf("failed to enumerate physical devices: %w", vk.Error(res))
	}
	if count == 0 {
		return nil, fmt.Errorf("no Vulkan-capable devices found")
	}
	physicalDevices := make([]vk.PhysicalDevice, count)
	if res := vk.EnumeratePhysicalDevices(instance, &count, physicalDevices); res != vk.Success {
		return nil, fmt.Errorf("failed to enumerate physical devices: %w", vk.Error(res))
	}

	devices := make([]Device, 0, count)
	for _, physicalDevice := range physicalDevices {
		var props vk.PhysicalDeviceProperties
		vk.GetPhysicalDeviceProperties(physicalDevice, &props)
		props.Deref()

		apiVersion := props.ApiVersion
		device := Device{
			Name:          vk.ToString(props.DeviceName[:]),
			Type:          mapDeviceType(props.DeviceType),
			DeviceID:      props.DeviceID,
			VendorID:      props.VendorID,
			DriverVersion: driverVersionString(props.VendorID, props.DriverVersion, apiVersion),
			APIVersion:    versionString(apiVersion),
			Available:     hasGraphicsQueue(physicalDevice),
			handle:        physicalDevice,
		}
		devices = append(devices, device)

		slog.Debug("Found Vulkan device",
			"name", device.Name,
			"type", device.Type,
			"vendor_id", fmt.Sprintf("0x%04X", device.VendorID),
			"device_id", fmt.Sprintf("0x%04X", device.DeviceID),
			"available", device.Available,
		)
	}
	return devices, nil
}

func hasGraphicsQueue(physicalDevice vk.PhysicalDevice) bool {
	var count uint32
	vk.GetPhysicalDeviceQueueFamilyProperties(physicalDevice, &count, nil)
	if count == 0 {
		return false
	}
	families := make([]vk.QueueFamilyProperties, count)
	vk.GetPhysicalDeviceQueueFamilyProperties(physicalDevice, &count, families)
	for i := range families {
		families[i].Deref()
		if families[i].QueueFlags&vk.QueueFlags(vk.QueueGraphicsBit) != 0 {
			return true
		}
	}
	return false
}

// graphicsQueueFamily finds the first graphics-capable queue family.
func graphicsQueueFamily(physicalDevice vk.PhysicalDevice) (uint32, bool) {
	var count uint32
	vk.GetPhysicalDeviceQueueFamilyProperties(physicalDevice, &count, nil)
	families := make([]vk.QueueFamilyProperties, count)
	vk.GetPhysicalDeviceQueueFamilyProperties(physicalDevice, &count, families)
	for i := range families {
		families[i].Deref()
		if families[i].QueueFlags&vk.QueueFlags(vk.QueueGraphicsBit) != 0 {
			return uint32(i), true
		}
	}
	return 0, false
}

// selectDevice picks a device for the given preference. A non-auto
// preference matches case-insensitively on a name substring; auto
// selection prefers discrete over integrated over anything available.
// Pure so it can race-freely serve concurrent callers.
func selectDevice(devices []Device, preference string) Device {
	autoSelect := preference == "auto" || preference == ""

	if !autoSelect {
		preferredLower := strings.ToLower(preference)
		for _, dev := range devices {
			if strings.Contains(strings.ToLower(dev.Name), preferredLower) && dev.Available {
				slog.Info("Selected preferred device", "device", dev.Name, "preferred", preference)
				return dev
			}
		}
		for _, dev := range devices {
			if strings.Contains(strings.ToLower(dev.Name), preferredLower) {
				slog.Warn("Preferred device found but not available",
					"device", dev.Name,
					"preferred", preference,
				)
			}
		}
		slog.Warn("Preferred Vulkan device not found, falling back to auto-selection",
			"preferred_device", preference,
		)
	}

	for _, dev := range devices {
		if dev.Available && dev.Type == DeviceTypeDiscrete {
			slog.Info("Auto-selected discrete GPU", "device", dev.Name)
			return dev
		}
	}
	for _, dev := range devices {
		if dev.Available && dev.Type == DeviceTypeIntegrated {
			slog.Info("Auto-selected integrated GPU", "device", dev.Name)
			return dev
		}
	}
	for _, dev := range devices {
		if dev.Available {
			slog.Info("Auto-selected available device", "device", dev.Name, "type", dev.Type)
			return dev
		}
	}

	if len(devices) > 0 {
		slog.Warn("No available devices found, using first device", "device", devices[0].Name)
		return devices[0]
	}
	return Device{}
}

func mapDeviceType(deviceType vk.PhysicalDeviceType) string {
	switch deviceType {
	case vk.PhysicalDeviceTypeDiscreteGpu:
		return DeviceTypeDiscrete
	case vk.PhysicalDeviceTypeIntegratedGpu:
		return DeviceTypeIntegrated
	case vk.PhysicalDeviceTypeVirtualGpu:
		return DeviceTypeVirtual
	case vk.PhysicalDeviceTypeCpu:
		return DeviceTypeCPU
	default:
		return DeviceTypeOther
	}
}

// driverVersionString formats a driver version for display. NVIDIA packs
// its own bit layout; other vendors use the standard Vulkan encoding.
func driverVersionString(vendorID, driverVersion, apiVersion uint32) string {
	if vendorID == 0x10DE {
		major := (driverVersion >> 22) & 0x3FF
		minor := (driverVersion >> 14) & 0xFF
		patch := (driverVersion >> 6) & 0xFF
		build := driverVersion & 0x3F
		return fmt.Sprintf("%d.%d.%d.%d", major, minor, patch, build)
	}
	return versionString(apiVersion)
}

func versionString(version uint32) string {
	v := vk.Version(version)
	return fmt.Sprintf("%d.%d.%d", v.Major(), v.Minor(), v.Patch())
}
