package vulkan

import (
	"fmt"
	"log/slog"

	vk "github.com/goki/vulkan"
)

// outputFormat is what the frontend consumes after rendering
const outputFormat = vk.FormatR8g8b8a8Unorm

// OutputTexture owns the single GPU image the emulated screens are
// composited into. Every pooled frame references this one image; resizing
// fully destroys the old image (view first, then allocation) before
// creating the replacement, so at most one is ever resident. Callers must
// drain in-flight frames before a resize.
type OutputTexture struct {
	instance *Instance

	image    vk.Image
	memory   vk.DeviceMemory
	view     vk.ImageView
	viewInfo vk.ImageViewCreateInfo

	width     uint32
	height    uint32
	allocated bool

	create  func(width, height uint32) error
	release func()
}

// NewOutputTexture prepares an empty manager; nothing is allocated until
// the first Ensure.
func NewOutputTexture(instance *Instance) *OutputTexture {
	t := &OutputTexture{instance: instance}
	t.create = t.createImage
	t.release = t.releaseImage
	return t
}

// Ensure makes the resident image match the requested dimensions. It is
// idempotent: matching dimensions are a no-op. An allocation failure is
// fatal for the session since there is no fallback size.
func (t *OutputTexture) Ensure(width, height uint32) error {
	if width == 0 || height == 0 {
		return fmt.Errorf("invalid output texture dimensions %dx%d", width, height)
	}
	if t.allocated && t.width == width && t.height == height {
		return nil
	}
	if t.allocated {
		t.release()
		t.allocated = false
	}
	if err := t.create(width, height); err != nil {
		return fmt.Errorf("failed to create %dx%d output texture: %w", width, height, err)
	}
	t.width = width
	t.height = height
	t.allocated = true

	slog.Debug("Created output texture", "width", width, "height", height)
	return nil
}

// Destroy releases the image and view; safe to call when nothing is
// allocated.
func (t *OutputTexture) Destroy() {
	if !t.allocated {
		return
	}
	t.release()
	t.allocated = false
	t.width = 0
	t.height = 0
}

// Image returns the resident image handle
func (t *OutputTexture) Image() vk.Image { return t.image }

// View returns the resident image view
func (t *OutputTexture) View() vk.ImageView { return t.view }

// ViewCreateInfo returns the create info the resident view was built
// with. The frontend wants it alongside the view at presentation time.
func (t *OutputTexture) ViewCreateInfo() vk.ImageViewCreateInfo { return t.viewInfo }

// Width returns the current width in pixels
func (t *OutputTexture) Width() uint32 { return t.width }

// Height returns the current height in pixels
func (t *OutputTexture) Height() uint32 { return t.height }

func (t *OutputTexture) createImage(width, height uint32) error {
	imageInfo := vk.ImageCreateInfo{
		SType:       vk.StructureTypeImageCreateInfo,
		ImageType:   vk.ImageType2d,
		Format:      outputFormat,
		Extent:      vk.Extent3D{Width: width, Height: height, Depth: 1},
		MipLevels:   1,
		ArrayLayers: 1,
		Samples:     vk.SampleCount1Bit,
		Tiling:      vk.ImageTilingOptimal,
		// The frontend samples and copies the texture after rendering;
		// transfer-dst covers clears.
		Usage: vk.ImageUsageFlags(vk.ImageUsageColorAttachmentBit |
			vk.ImageUsageTransferSrcBit |
			vk.ImageUsageSampledBit |
			vk.ImageUsageTransferDstBit),
		SharingMode:   vk.SharingModeExclusive,
		InitialLayout: vk.ImageLayoutUndefined,
	}

	image, memory, err := t.instance.Allocator().CreateImage(&imageInfo)
	if err != nil {
		return err
	}

	t.viewInfo = vk.ImageViewCreateInfo{
		SType:    vk.StructureTypeImageViewCreateInfo,
		Image:    image,
		ViewType: vk.ImageViewType2d,
		Format:   outputFormat,
		Components: vk.ComponentMapping{
			R: vk.ComponentSwizzleIdentity,
			G: vk.ComponentSwizzleIdentity,
			B: vk.ComponentSwizzleIdentity,
			A: vk.ComponentSwizzleIdentity,
		},
		SubresourceRange: vk.ImageSubresourceRange{
			AspectMask: vk.ImageAspectFlags(vk.ImageAspectColorBit),
			LevelCount: 1,
			LayerCount: 1,
		},
	}

	var view vk.ImageView
	if res := vk.CreateImageView(t.instance.Device(), &t.viewInfo, nil, &view); res != vk.Success {
		t.instance.Allocator().DestroyImage(image, memory)
		return fmt.Errorf("failed to create image view: %w", vk.Error(res))
	}

	t.image = image
	t.memory = memory
	t.view = view
	return nil
}

func (t *OutputTexture) releaseImage() {
	device := t.instance.Device()
	if t.view != vk.ImageView(vk.NullHandle) {
		vk.DestroyImageView(device, t.view, nil)
		t.view = vk.ImageView(vk.NullHandle)
	}
	t.instance.Allocator().DestroyImage(t.image, t.memory)
	t.image = vk.Image(vk.NullHandle)
	t.memory = vk.DeviceMemory(vk.NullHandle)
}
