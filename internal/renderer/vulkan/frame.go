package vulkan

import (
	vk "github.com/goki/vulkan"
)

// Frame holds the per-slot presentation state for one pooled frame. All
// frames render into the shared output texture; only the synchronization
// primitives and command buffer are per-frame.
type Frame struct {
	Width  uint32
	Height uint32

	Image       vk.Image
	ImageView   vk.ImageView
	Framebuffer vk.Framebuffer

	CommandBuffer vk.CommandBuffer

	// RenderReady is signaled by the submission that finishes rendering
	// into this slot.
	RenderReady vk.Semaphore

	// PresentDone starts pre-signaled so the first acquire of every slot
	// never blocks.
	PresentDone vk.Fence
}
