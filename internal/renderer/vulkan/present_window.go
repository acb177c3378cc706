package vulkan

import (
	"fmt"
	"log/slog"
	"math"

	vk "github.com/goki/vulkan"

	"github.com/KojoZero/azahar/internal/frontend"
	"github.com/KojoZero/azahar/internal/telemetry"
)

// FrameCount is the size of the presentation pool. Two slots are enough
// because the frontend serializes presentation through its sync index.
const FrameCount = 2

// PresentWindow drives presentation through the frontend instead of a
// swapchain. The frontend owns display timing and buffer rotation; the
// window only renders into the shared output texture and tells the
// frontend when an image is ready.
type PresentWindow struct {
	instance *Instance
	provider *frontend.Provider
	output   *OutputTexture
	metrics  *telemetry.Metrics

	commandPool vk.CommandPool
	renderPass  vk.RenderPass
	frames      []*Frame

	// cursor drives slot selection when the frontend exposes no sync
	// index.
	cursor uint32

	lastGeneration uint64

	// presentImage has a stable address for the lifetime of the window.
	// The frontend retains the pointer for frame duping, so it must never
	// be a per-call temporary.
	presentImage frontend.Image

	waitFences func(fences []vk.Fence) error
	rebuild    func(width, height uint32) error
}

// NewPresentWindow builds the presentation pool at the given initial
// dimensions.
func NewPresentWindow(instance *Instance, provider *frontend.Provider, width, height uint32) (*PresentWindow, error) {
	w := &PresentWindow{
		instance: instance,
		provider: provider,
		output:   NewOutputTexture(instance),
		metrics:  telemetry.New(),
	}
	w.waitFences = w.waitAllFences
	w.rebuild = w.rebuildFrames

	if err := w.createCommandPool(); err != nil {
		return nil, err
	}
	if err := w.createRenderPass(); err != nil {
		return nil, err
	}
	if err := w.output.Ensure(width, height); err != nil {
		return nil, err
	}
	if err := w.rebuild(width, height); err != nil {
		return nil, err
	}

	slog.Info("Created presentation window",
		"width", width,
		"height", height,
		"frames", FrameCount,
	)
	return w, nil
}

// AcquireFrame picks the slot to render into next. When the frontend is
// available its sync index decides the slot, after blocking in the
// frontend until that slot is reusable. Without a frontend the window
// falls back to round-robin and waits on the slot's own fence.
func (w *PresentWindow) AcquireFrame() *Frame {
	intf, generation, ok := w.provider.Current()
	if ok && generation != w.lastGeneration {
		slog.Debug("Acquiring against refreshed frontend interface",
			"generation", generation,
		)
		w.lastGeneration = generation
	}

	if ok && intf.GetSyncIndex != nil {
		if intf.WaitSyncIndex != nil {
			intf.WaitSyncIndex(intf.Handle)
		}
		index := intf.GetSyncIndex(intf.Handle) % uint32(len(w.frames))
		w.cursor = index
		return w.frames[index]
	}

	index := w.cursor % uint32(len(w.frames))
	w.cursor++
	frame := w.frames[index]
	if err := w.waitFences([]vk.Fence{frame.PresentDone}); err != nil {
		slog.Error("Failed to wait for frame fence",
			"slot", index,
			"error", err,
		)
	}
	return frame
}

// ResizeFrame rebuilds the output texture and frame pool for new
// dimensions. Matching dimensions are a no-op. All in-flight work is
// drained first so no frame still references the old image.
func (w *PresentWindow) ResizeFrame(width, height uint32) error {
	if width == w.output.Width() && height == w.output.Height() {
		return nil
	}

	if err := w.waitFences(w.allFences()); err != nil {
		return fmt.Errorf("failed to drain frames before resize: %w", err)
	}
	if err := w.output.Ensure(width, height); err != nil {
		return err
	}
	if err := w.rebuild(width, height); err != nil {
		return err
	}

	w.metrics.PoolRebuilds.Inc()
	slog.Info("Rebuilt frame pool",
		"width", width,
		"height", height,
	)
	return nil
}

// Present hands the finished frame to the frontend for display. A missing
// interface (context teardown mid-frame) skips the present instead of
// failing the session.
func (w *PresentWindow) Present(frame *Frame) {
	intf, _, ok := w.provider.Current()
	if !ok || intf.SetImage == nil {
		slog.Warn("Skipping present, frontend interface unavailable")
		w.metrics.PresentsSkipped.Inc()
		return
	}

	w.presentImage.ImageView = w.output.View()
	w.presentImage.ImageLayout = vk.ImageLayoutShaderReadOnlyOptimal
	w.presentImage.CreateInfo = w.output.ViewCreateInfo()

	intf.SetImage(intf.Handle, &w.presentImage, 0, nil, w.instance.QueueFamilyIndex())
	if intf.NotifyFrameReady != nil {
		intf.NotifyFrameReady()
	}
	w.metrics.FramesPresented.Inc()
}

// WaitPresent blocks until every pooled frame has finished presenting.
func (w *PresentWindow) WaitPresent() error {
	return w.waitFences(w.allFences())
}

// Teardown drains the pool and releases everything the window owns. The
// borrowed device itself is left untouched.
func (w *PresentWindow) Teardown() {
	if err := w.waitFences(w.allFences()); err != nil {
		slog.Warn("Failed to drain frames during teardown", "error", err)
	}
	w.destroyFrames()
	device := w.instance.Device()
	if w.renderPass != vk.RenderPass(vk.NullHandle) {
		vk.DestroyRenderPass(device, w.renderPass, nil)
		w.renderPass = vk.RenderPass(vk.NullHandle)
	}
	if w.commandPool != vk.CommandPool(vk.NullHandle) {
		vk.DestroyCommandPool(device, w.commandPool, nil)
		w.commandPool = vk.CommandPool(vk.NullHandle)
	}
	w.output.Destroy()
	w.metrics.OutstandingFrames.Set(0)
}

// RenderPass returns the pass the pooled framebuffers were built against
func (w *PresentWindow) RenderPass() vk.RenderPass { return w.renderPass }

// Width returns the current output width in pixels
func (w *PresentWindow) Width() uint32 { return w.output.Width() }

// Height returns the current output height in pixels
func (w *PresentWindow) Height() uint32 { return w.output.Height() }

func (w *PresentWindow) createCommandPool() error {
	poolInfo := vk.CommandPoolCreateInfo{
		SType: vk.StructureTypeCommandPoolCreateInfo,
		Flags: vk.CommandPoolCreateFlags(vk.CommandPoolCreateResetCommandBufferBit |
			vk.CommandPoolCreateTransientBit),
		QueueFamilyIndex: w.instance.QueueFamilyIndex(),
	}
	var pool vk.CommandPool
	if res := vk.CreateCommandPool(w.instance.Device(), &poolInfo, nil, &pool); res != vk.Success {
		return fmt.Errorf("failed to create command pool: %w", vk.Error(res))
	}
	w.commandPool = pool
	return nil
}

// createRenderPass builds the single-attachment pass ending in
// shader-read layout, which is what the frontend samples during display.
func (w *PresentWindow) createRenderPass() error {
	colorAttachment := vk.AttachmentDescription{
		Format:         outputFormat,
		Samples:        vk.SampleCount1Bit,
		LoadOp:         vk.AttachmentLoadOpClear,
		StoreOp:        vk.AttachmentStoreOpStore,
		StencilLoadOp:  vk.AttachmentLoadOpDontCare,
		StencilStoreOp: vk.AttachmentStoreOpDontCare,
		InitialLayout:  vk.ImageLayoutUndefined,
		FinalLayout:    vk.ImageLayoutShaderReadOnlyOptimal,
	}
	colorRef := vk.AttachmentReference{
		Attachment: 0,
		Layout:     vk.ImageLayoutColorAttachmentOptimal,
	}
	subpass := vk.SubpassDescription{
		PipelineBindPoint:    vk.PipelineBindPointGraphics,
		ColorAttachmentCount: 1,
		PColorAttachments:    []vk.AttachmentReference{colorRef},
	}
	dependency := vk.SubpassDependency{
		SrcSubpass:    vk.SubpassExternal,
		DstSubpass:    0,
		SrcStageMask:  vk.PipelineStageFlags(vk.PipelineStageColorAttachmentOutputBit),
		SrcAccessMask: 0,
		DstStageMask:  vk.PipelineStageFlags(vk.PipelineStageColorAttachmentOutputBit),
		DstAccessMask: vk.AccessFlags(vk.AccessColorAttachmentWriteBit),
	}
	passInfo := vk.RenderPassCreateInfo{
		SType:           vk.StructureTypeRenderPassCreateInfo,
		AttachmentCount: 1,
		PAttachments:    []vk.AttachmentDescription{colorAttachment},
		SubpassCount:    1,
		PSubpasses:      []vk.SubpassDescription{subpass},
		DependencyCount: 1,
		PDependencies:   []vk.SubpassDependency{dependency},
	}

	var pass vk.RenderPass
	if res := vk.CreateRenderPass(w.instance.Device(), &passInfo, nil, &pass); res != vk.Success {
		return fmt.Errorf("failed to create render pass: %w", vk.Error(res))
	}
	w.renderPass = pass
	return nil
}

// rebuildFrames recreates every pooled frame against the current output
// texture. The fences start signaled so the first acquire of each slot
// never blocks.
func (w *PresentWindow) rebuildFrames(width, height uint32) error {
	w.destroyFrames()

	device := w.instance.Device()

	allocInfo := vk.CommandBufferAllocateInfo{
		SType:              vk.StructureTypeCommandBufferAllocateInfo,
		CommandPool:        w.commandPool,
		Level:              vk.CommandBufferLevelPrimary,
		CommandBufferCount: FrameCount,
	}
	commandBuffers := make([]vk.CommandBuffer, FrameCount)
	if res := vk.AllocateCommandBuffers(device, &allocInfo, commandBuffers); res != vk.Success {
		return fmt.Errorf("failed to allocate command buffers: %w", vk.Error(res))
	}

	frames := make([]*Frame, 0, FrameCount)
	for i := 0; i < FrameCount; i++ {
		frame := &Frame{
			Width:         width,
			Height:        height,
			Image:         w.output.Image(),
			ImageView:     w.output.View(),
			CommandBuffer: commandBuffers[i],
		}

		semInfo := vk.SemaphoreCreateInfo{
			SType: vk.StructureTypeSemaphoreCreateInfo,
		}
		if res := vk.CreateSemaphore(device, &semInfo, nil, &frame.RenderReady); res != vk.Success {
			return fmt.Errorf("failed to create frame semaphore: %w", vk.Error(res))
		}

		fenceInfo := vk.FenceCreateInfo{
			SType: vk.StructureTypeFenceCreateInfo,
			Flags: vk.FenceCreateFlags(vk.FenceCreateSignaledBit),
		}
		if res := vk.CreateFence(device, &fenceInfo, nil, &frame.PresentDone); res != vk.Success {
			return fmt.Errorf("failed to create frame fence: %w", vk.Error(res))
		}

		fbInfo := vk.FramebufferCreateInfo{
			SType:           vk.StructureTypeFramebufferCreateInfo,
			RenderPass:      w.renderPass,
			AttachmentCount: 1,
			PAttachments:    []vk.ImageView{w.output.View()},
			Width:           width,
			Height:          height,
			Layers:          1,
		}
		if res := vk.CreateFramebuffer(device, &fbInfo, nil, &frame.Framebuffer); res != vk.Success {
			return fmt.Errorf("failed to create framebuffer: %w", vk.Error(res))
		}

		frames = append(frames, frame)
	}

	w.frames = frames
	w.metrics.OutstandingFrames.Set(float64(len(frames)))
	return nil
}

func (w *PresentWindow) destroyFrames() {
	device := w.instance.Device()
	for _, frame := range w.frames {
		if frame.Framebuffer != vk.Framebuffer(vk.NullHandle) {
			vk.DestroyFramebuffer(device, frame.Framebuffer, nil)
		}
		if frame.RenderReady != vk.Semaphore(vk.NullHandle) {
			vk.DestroySemaphore(device, frame.RenderReady, nil)
		}
		if frame.PresentDone != vk.Fence(vk.NullHandle) {
			vk.DestroyFence(device, frame.PresentDone, nil)
		}
		if frame.CommandBuffer != nil {
			vk.FreeCommandBuffers(device, w.commandPool, 1, []vk.CommandBuffer{frame.CommandBuffer})
		}
	}
	w.frames = nil
}

func (w *PresentWindow) allFences() []vk.Fence {
	fences := make([]vk.Fence, 0, len(w.frames))
	for _, frame := range w.frames {
		fences = append(fences, frame.PresentDone)
	}
	return fences
}

func (w *PresentWindow) waitAllFences(fences []vk.Fence) error {
	if len(fences) == 0 {
		return nil
	}
	res := vk.WaitForFences(w.instance.Device(), uint32(len(fences)), fences, vk.True, math.MaxUint64)
	if res != vk.Success {
		return fmt.Errorf("failed to wait for fences: %w", vk.Error(res))
	}
	return nil
}
