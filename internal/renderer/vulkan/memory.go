package vulkan

import (
	"fmt"

	vk "github.com/goki/vulkan"
)

// Allocator creates device-local images on the frontend-owned device. It
// stands in for a full memory allocator library: the bridge only ever
// holds one live image, so a dedicated allocation per image is fine.
type Allocator struct {
	device vk.Device
	gpu    vk.PhysicalDevice
}

// NewAllocator wraps the borrowed device handles. It owns no Vulkan state
// of its own.
func NewAllocator(device vk.Device, gpu vk.PhysicalDevice) *Allocator {
	return &Allocator{device: device, gpu: gpu}
}

// CreateImage creates an image, allocates device-local memory for it and
// binds the two. On any failure nothing is leaked.
func (a *Allocator) CreateImage(info *vk.ImageCreateInfo) (vk.Image, vk.DeviceMemory, error) {
	nullImage := vk.Image(vk.NullHandle)
	nullMemory := vk.DeviceMemory(vk.NullHandle)

	var image vk.Image
	if res := vk.CreateImage(a.device, info, nil, &image); res != vk.Success {
		return nullImage, nullMemory, fmt.Errorf("failed to create image: %w", vk.Error(res))
	}

	var memReq vk.MemoryRequirements
	vk.GetImageMemoryRequirements(a.device, image, &memReq)
	memReq.Deref()

	typeIndex, ok := a.findMemoryType(memReq.MemoryTypeBits, vk.MemoryPropertyDeviceLocalBit)
	if !ok {
		vk.DestroyImage(a.device, image, nil)
		return nullImage, nullMemory, fmt.Errorf("no device-local memory type for image")
	}

	allocInfo := vk.MemoryAllocateInfo{
		SType:           vk.StructureTypeMemoryAllocateInfo,
		AllocationSize:  memReq.Size,
		MemoryTypeIndex: typeIndex,
	}
	var memory vk.DeviceMemory
	if res := vk.AllocateMemory(a.device, &allocInfo, nil, &memory); res != vk.Success {
		vk.DestroyImage(a.device, image, nil)
		return nullImage, nullMemory, fmt.Errorf("failed to allocate image memory: %w", vk.Error(res))
	}

	if res := vk.BindImageMemory(a.device, image, memory, 0); res != vk.Success {
		vk.FreeMemory(a.device, memory, nil)
		vk.DestroyImage(a.device, image, nil)
		return nullImage, nullMemory, fmt.Errorf("failed to bind image memory: %w", vk.Error(res))
	}

	return image, memory, nil
}

// DestroyImage releases an image and its backing allocation
func (a *Allocator) DestroyImage(image vk.Image, memory vk.DeviceMemory) {
	if image != vk.Image(vk.NullHandle) {
		vk.DestroyImage(a.device, image, nil)
	}
	if memory != vk.DeviceMemory(vk.NullHandle) {
		vk.FreeMemory(a.device, memory, nil)
	}
}

func (a *Allocator) findMemoryType(typeBits uint32, properties vk.MemoryPropertyFlagBits) (uint32, bool) {
	var memProps vk.PhysicalDeviceMemoryProperties
	vk.GetPhysicalDeviceMemoryProperties(a.gpu, &memProps)
	memProps.Deref()

	for i := uint32(0); i < memProps.MemoryTypeCount; i++ {
		memType := memProps.MemoryTypes[i]
		memType.Deref()
		if typeBits&(1<<i) == 0 {
			continue
		}
		if vk.MemoryPropertyFlagBits(memType.PropertyFlags)&properties == properties {
			return i, true
		}
	}
	return 0, false
}
