package vulkan

import (
	"testing"
	"unsafe"

	vk "github.com/goki/vulkan"

	"github.com/KojoZero/azahar/internal/frontend"
)

var probe byte

// loaderWith resolves exactly the named entry points
func loaderWith(names ...string) frontend.ProcLoader {
	known := make(map[string]struct{}, len(names))
	for _, n := range names {
		known[n] = struct{}{}
	}
	return func(name string) unsafe.Pointer {
		if _, ok := known[name]; ok {
			return unsafe.Pointer(&probe)
		}
		return nil
	}
}

func loaderWithAll() frontend.ProcLoader {
	return func(string) unsafe.Pointer { return unsafe.Pointer(&probe) }
}

func infoWith(apiVersion uint32, exts ...string) deviceInfo {
	set := make(map[string]struct{}, len(exts))
	for _, e := range exts {
		set[e] = struct{}{}
	}
	return deviceInfo{
		name:       "Test GPU",
		apiVersion: apiVersion,
		extensions: set,
	}
}

func TestResolveCapabilities_ExtensionMembership(t *testing.T) {
	info := infoWith(vk.MakeVersion(1, 1, 0),
		extCustomBorderColor,
		extIndexTypeUint8,
		extImageFormatList,
	)

	caps := resolveCapabilities(info, loaderWithAll())

	if !caps.CustomBorderColor {
		t.Error("Expected custom border color enabled")
	}
	if !caps.IndexTypeUint8 {
		t.Error("Expected 8-bit index types enabled")
	}
	if !caps.ImageFormatList {
		t.Error("Expected image format list enabled")
	}
	if caps.FragmentShaderInterlock {
		t.Error("Expected fragment shader interlock disabled without its extension")
	}
	if caps.ShaderStencilExport {
		t.Error("Expected stencil export disabled without its extension")
	}
}

func TestResolveCapabilities_ProcGating(t *testing.T) {
	tests := []struct {
		name   string
		loader frontend.ProcLoader
		want   bool
	}{
		{
			name:   "all entry points resolve",
			loader: loaderWithAll(),
			want:   true,
		},
		{
			name:   "nil loader disables gated flags",
			loader: nil,
			want:   false,
		},
		{
			name: "one missing entry point disables the flag",
			loader: loaderWith(
				"vkCmdSetCullModeEXT",
				"vkCmdSetDepthTestEnableEXT",
				"vkCmdSetDepthWriteEnableEXT",
				// vkCmdSetFrontFaceEXT missing
			),
			want: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			info := infoWith(vk.MakeVersion(1, 1, 0), extExtendedDynamicState)
			caps := resolveCapabilities(info, tt.loader)
			if caps.ExtendedDynamicState != tt.want {
				t.Errorf("Expected extended dynamic state %v, got %v", tt.want, caps.ExtendedDynamicState)
			}
		})
	}
}

func TestResolveCapabilities_NeverUpgrades(t *testing.T) {
	// A resolving entry point must not enable a capability the device
	// never advertised.
	info := infoWith(vk.MakeVersion(1, 1, 0))
	caps := resolveCapabilities(info, loaderWithAll())

	if caps.ExtendedDynamicState {
		t.Error("Expected extended dynamic state disabled without the extension")
	}
	if caps.TimelineSemaphores {
		t.Error("Expected timeline semaphores disabled without the extension")
	}
}

func TestResolveCapabilities_PortabilityWorkaround(t *testing.T) {
	info := infoWith(vk.MakeVersion(1, 1, 0),
		extFragmentShaderBarycentric,
		extPortabilitySubset,
	)

	caps := resolveCapabilities(info, loaderWithAll())
	if caps.FragmentShaderBarycentric {
		t.Error("Expected barycentric inputs disabled on a portability driver")
	}

	// Without the portability extension the flag stands.
	info = infoWith(vk.MakeVersion(1, 1, 0), extFragmentShaderBarycentric)
	caps = resolveCapabilities(info, loaderWithAll())
	if !caps.FragmentShaderBarycentric {
		t.Error("Expected barycentric inputs enabled on a native driver")
	}
}

func TestResolveCapabilities_LayeredRendering(t *testing.T) {
	tests := []struct {
		name string
		info deviceInfo
		want bool
	}{
		{
			name: "extension confirmed on 1.1",
			info: infoWith(vk.MakeVersion(1, 1, 0), extShaderViewportIndexLayer),
			want: true,
		},
		{
			name: "core 1.2 device",
			info: infoWith(vk.MakeVersion(1, 2, 0)),
			want: true,
		},
		{
			name: "1.1 device without the extension",
			info: infoWith(vk.MakeVersion(1, 1, 0)),
			want: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			caps := resolveCapabilities(tt.info, loaderWithAll())
			if caps.LayeredRendering != tt.want {
				t.Errorf("Expected layered rendering %v, got %v", tt.want, caps.LayeredRendering)
			}
		})
	}
}

func TestResolveCapabilities_Idempotent(t *testing.T) {
	info := infoWith(vk.MakeVersion(1, 1, 0),
		extExtendedDynamicState,
		extTimelineSemaphore,
		extFragmentShaderBarycentric,
		extPortabilitySubset,
	)
	loader := loaderWith("vkGetSemaphoreCounterValueKHR", "vkWaitSemaphoresKHR")

	first := resolveCapabilities(info, loader)
	second := resolveCapabilities(info, loader)
	if first != second {
		t.Errorf("Expected identical capability records, got %+v then %+v", first, second)
	}
}

func TestDetectCapabilities_NilDevice(t *testing.T) {
	if _, err := DetectCapabilities(nil, loaderWithAll()); err == nil {
		t.Error("Expected error for nil physical device")
	}
}
