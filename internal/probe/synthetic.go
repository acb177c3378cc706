package probe

import (
	"fmt"
	"sync/atomic"

	vk "github.com/goki/vulkan"

	"github.com/KojoZero/azahar/internal/frontend"
)

// SyntheticHost stands in for a frontend during smoke runs. It owns a
// real logical device on the probed GPU but exposes no sync index and no
// queue lock, so the bridge falls back to its own pacing: round-robin
// slot selection and fence-tracked submissions. Presented images are
// acknowledged and dropped, there is no display.
type SyntheticHost struct {
	instance vk.Instance
	gpu      vk.PhysicalDevice
	device   vk.Device
	queue    vk.Queue
	family   uint32

	presented atomic.Uint64

	intf *frontend.HWRenderInterface
}

// NewSyntheticHost creates a logical device with one graphics queue on the
// given GPU and builds the render interface around it.
func NewSyntheticHost(instance vk.Instance, device Device) (*SyntheticHost, error) {
	family, ok := graphicsQueueFamily(device.handle)
	if !ok {
		return nil, fmt.Errorf("device %q has no graphics queue family", device.Name)
	}

	queueInfo := vk.DeviceQueueCreateInfo{
		SType:            vk.StructureTypeDeviceQueueCreateInfo,
		QueueFamilyIndex: family,
		QueueCount:       1,
		PQueuePriorities: []float32{1.0},
	}
	createInfo := vk.DeviceCreateInfo{
		SType:                vk.StructureTypeDeviceCreateInfo,
		QueueCreateInfoCount: 1,
		PQueueCreateInfos:    []vk.DeviceQueueCreateInfo{queueInfo},
	}

	var logical vk.Device
	if res := vk.CreateDevice(device.handle, &createInfo, nil, &logical); res != vk.Success {
		return nil, fmt.Errorf("failed to create logical device: %w", vk.Error(res))
	}

	var queue vk.Queue
	vk.GetDeviceQueue(logical, family, 0, &queue)

	h := &SyntheticHost{
		instance: instance,
		gpu:      device.handle,
		device:   logical,
		queue:    queue,
		family:   family,
	}
	h.intf = &frontend.HWRenderInterface{
		Instance:   instance,
		GPU:        device.handle,
		Device:     logical,
		Queue:      queue,
		QueueIndex: family,
		SetImage: func(handle uintptr, image *frontend.Image, waitSemaphoreCount uint32, waitSemaphores []vk.Semaphore, queueFamilyIndex uint32) {
			h.presented.Add(1)
		},
		NotifyFrameReady: func() {},
	}
	return h, nil
}

// Interface returns the render interface the bridge consumes
func (h *SyntheticHost) Interface() *frontend.HWRenderInterface { return h.intf }

// PresentedFrames reports how many images were handed over
func (h *SyntheticHost) PresentedFrames() uint64 { return h.presented.Load() }

// Close destroys the logical device after draining it. The instance is
// owned by the caller.
func (h *SyntheticHost) Close() {
	if h.device != nil {
		vk.DeviceWaitIdle(h.device)
		vk.DestroyDevice(h.device, nil)
		h.device = nil
	}
}
