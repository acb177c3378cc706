// Package frontend models the rendering interface a libretro-style
// frontend exposes to the core. The frontend owns the Vulkan instance,
// device and queue; the core only borrows them for the session and talks
// back through the callback entry points collected here.
package frontend

import (
	"unsafe"

	vk "github.com/goki/vulkan"
)

// ProcLoader resolves a Vulkan entry point by name. The frontend supplies
// it so the core can verify that extension functions were actually loaded
// into the frontend's dispatch table before relying on them.
type ProcLoader func(name string) unsafe.Pointer

// Image is the descriptor handed to the frontend when presenting. The
// frontend may retain the pointer across calls (frame duping while
// paused), so callers must pass a descriptor with a stable address, never
// a stack temporary rebuilt per frame.
type Image struct {
	ImageView   vk.ImageView
	ImageLayout vk.ImageLayout
	CreateInfo  vk.ImageViewCreateInfo
}

// HWRenderInterface mirrors the frontend's hardware render interface for
// Vulkan. All handles are owned by the frontend; the core must treat them
// as borrowed references and never destroy them.
//
// Callback fields may be nil when the frontend does not implement the
// corresponding entry point; callers check before invoking.
type HWRenderInterface struct {
	// Handle is the opaque frontend token passed back on every callback.
	Handle uintptr

	Instance       vk.Instance
	GPU            vk.PhysicalDevice
	Device         vk.Device
	Queue          vk.Queue
	QueueIndex     uint32
	GetProcAddress ProcLoader

	// GetSyncIndex reports which pooled frame slot the frontend expects
	// to be written next.
	GetSyncIndex func(handle uintptr) uint32

	// WaitSyncIndex blocks inside the frontend until the slot reported by
	// GetSyncIndex is safe to reuse.
	WaitSyncIndex func(handle uintptr)

	// SetImage hands the frontend the image it should display next.
	SetImage func(handle uintptr, image *Image, waitSemaphoreCount uint32, waitSemaphores []vk.Semaphore, queueFamilyIndex uint32)

	// LockQueue and UnlockQueue bracket raw submissions on the shared
	// queue. The frontend may submit on the same queue from its own
	// thread, so every submission from the core must hold this lock.
	LockQueue   func(handle uintptr)
	UnlockQueue func(handle uintptr)

	// NotifyFrameReady signals that a new buffer is ready for display,
	// the equivalent of a swap-buffers call.
	NotifyFrameReady func()
}
