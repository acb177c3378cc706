package probe

import (
	"fmt"
	"log/slog"

	vk "github.com/goki/vulkan"

	"github.com/KojoZero/azahar/internal/config"
	"github.com/KojoZero/azahar/internal/frontend"
	"github.com/KojoZero/azahar/internal/renderer/vulkan"
)

// Smoke drives the full presentation path against a synthetic host:
// acquire, record nothing, submit, present, for the requested number of
// frames. It exercises the same code a frontend session would, minus
// display.
func (p *Probe) Smoke(settings *config.Settings, frames int) error {
	if err := initVulkan(); err != nil {
		return err
	}

	instance, err := p.createInstance()
	if err != nil {
		return err
	}
	defer vk.DestroyInstance(instance, nil)

	devices, err := listDevices(instance)
	if err != nil {
		return err
	}
	device := selectDevice(devices, p.preferredDevice)
	if !device.Available {
		return fmt.Errorf("selected device %q is not available", device.Name)
	}

	host, err := NewSyntheticHost(instance, device)
	if err != nil {
		return err
	}
	defer host.Close()

	provider := frontend.NewProvider()
	provider.Refresh(host.Interface())

	renderer, err := vulkan.New(provider, settings)
	if err != nil {
		return fmt.Errorf("failed to start renderer: %w", err)
	}
	defer renderer.Teardown()

	for i := 0; i < frames; i++ {
		frame := renderer.AcquireFrame()
		if _, err := renderer.RecordInto(frame); err != nil {
			return fmt.Errorf("frame %d: %w", i, err)
		}
		if err := renderer.Present(frame); err != nil {
			return fmt.Errorf("frame %d: %w", i, err)
		}
	}

	if err := renderer.WaitIdle(); err != nil {
		return err
	}

	slog.Info("Smoke run complete",
		"device", device.Name,
		"frames", frames,
		"presented", host.PresentedFrames(),
	)
	return nil
}
