package probe

import (
	"testing"

	vk "github.com/goki/vulkan"
)

func TestSelectDeviceAutoPrefersDiscrete(t *testing.T) {
	devices := []Device{
		{Name: "Software Rasterizer", Type: DeviceTypeCPU, Available: true},
		{Name: "Intel UHD 770", Type: DeviceTypeIntegrated, Available: true},
		{Name: "NVIDIA RTX 4070", Type: DeviceTypeDiscrete, Available: true},
	}

	selected := selectDevice(devices, "auto")
	if selected.Name != "NVIDIA RTX 4070" {
		t.Errorf("Expected discrete GPU, got %s", selected.Name)
	}
}

func TestSelectDeviceAutoFallsBackToIntegrated(t *testing.T) {
	devices := []Device{
		{Name: "Software Rasterizer", Type: DeviceTypeCPU, Available: true},
		{Name: "Intel UHD 770", Type: DeviceTypeIntegrated, Available: true},
		{Name: "NVIDIA RTX 4070", Type: DeviceTypeDiscrete, Available: false},
	}

	selected := selectDevice(devices, "")
	if selected.Name != "Intel UHD 770" {
		t.Errorf("Expected integrated GPU, got %s", selected.Name)
	}
}

func TestSelectDevicePreferredByNameSubstring(t *testing.T) {
	devices := []Device{
		{Name: "NVIDIA RTX 4070", Type: DeviceTypeDiscrete, Available: true},
		{Name: "AMD Radeon RX 7800", Type: DeviceTypeDiscrete, Available: true},
	}

	selected := selectDevice(devices, "radeon")
	if selected.Name != "AMD Radeon RX 7800" {
		t.Errorf("Expected preferred device, got %s", selected.Name)
	}
}

func TestSelectDevicePreferredUnavailableFallsBack(t *testing.T) {
	devices := []Device{
		{Name: "NVIDIA RTX 4070", Type: DeviceTypeDiscrete, Available: true},
		{Name: "AMD Radeon RX 7800", Type: DeviceTypeDiscrete, Available: false},
	}

	selected := selectDevice(devices, "radeon")
	if selected.Name != "NVIDIA RTX 4070" {
		t.Errorf("Expected auto-selection fallback, got %s", selected.Name)
	}
}

func TestSelectDeviceNoneAvailableUsesFirst(t *testing.T) {
	devices := []Device{
		{Name: "NVIDIA RTX 4070", Type: DeviceTypeDiscrete, Available: false},
		{Name: "Intel UHD 770", Type: DeviceTypeIntegrated, Available: false},
	}

	selected := selectDevice(devices, "auto")
	if selected.Name != "NVIDIA RTX 4070" {
		t.Errorf("Expected first device, got %s", selected.Name)
	}
}

func TestSelectDeviceEmptyList(t *testing.T) {
	selected := selectDevice(nil, "auto")
	if selected.Name != "" {
		t.Errorf("Expected empty device, got %s", selected.Name)
	}
}

func TestMapDeviceType(t *testing.T) {
	tests := []struct {
		vkType vk.PhysicalDeviceType
		want   string
	}{
		{vk.PhysicalDeviceTypeDiscreteGpu, DeviceTypeDiscrete},
		{vk.PhysicalDeviceTypeIntegratedGpu, DeviceTypeIntegrated},
		{vk.PhysicalDeviceTypeVirtualGpu, DeviceTypeVirtual},
		{vk.PhysicalDeviceTypeCpu, DeviceTypeCPU},
		{vk.PhysicalDeviceTypeOther, DeviceTypeOther},
	}
	for _, tt := range tests {
		if got := mapDeviceType(tt.vkType); got != tt.want {
			t.Errorf("Type %d: expected %s, got %s", tt.vkType, tt.want, got)
		}
	}
}

func TestDriverVersionStringNvidiaEncoding(t *testing.T) {
	// 535.113.1.0 in NVIDIA's packed layout
	packed := uint32(535)<<22 | uint32(113)<<14 | uint32(1)<<6
	got := driverVersionString(0x10DE, packed, vk.MakeVersion(1, 3, 0))
	if got != "535.113.1.0" {
		t.Errorf("Expected 535.113.1.0, got %s", got)
	}
}

func TestDriverVersionStringStandardEncoding(t *testing.T) {
	got := driverVersionString(0x1002, 0, vk.MakeVersion(1, 3, 250))
	if got != "1.3.250" {
		t.Errorf("Expected 1.3.250, got %s", got)
	}
}
