package vulkan

import (
	"errors"
	"testing"

	vk "github.com/goki/vulkan"

	"github.com/KojoZero/azahar/internal/frontend"
)

func TestNewInstanceRequiresInterface(t *testing.T) {
	_, err := NewInstance(frontend.NewProvider())
	if !errors.Is(err, ErrInterfaceUnavailable) {
		t.Errorf("Expected ErrInterfaceUnavailable, got %v", err)
	}
}

func TestNewInstanceRejectsMissingGPU(t *testing.T) {
	provider := frontend.NewProvider()
	provider.Refresh(&frontend.HWRenderInterface{})

	_, err := NewInstance(provider)
	if !errors.Is(err, ErrNoPhysicalDevice) {
		t.Errorf("Expected ErrNoPhysicalDevice, got %v", err)
	}
}

func TestVersionString(t *testing.T) {
	got := versionString(vk.MakeVersion(1, 3, 250))
	if got != "1.3.250" {
		t.Errorf("Expected 1.3.250, got %s", got)
	}
}
