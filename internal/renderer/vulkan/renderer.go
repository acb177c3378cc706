package vulkan

import (
	"errors"
	"fmt"
	"log/slog"

	vk "github.com/goki/vulkan"
	"github.com/google/uuid"

	"github.com/KojoZero/azahar/internal/config"
	"github.com/KojoZero/azahar/internal/frontend"
	"github.com/KojoZero/azahar/internal/telemetry"
)

// Emulated screen dimensions in pixels
const (
	TopScreenWidth     = 400
	TopScreenHeight    = 240
	BottomScreenWidth  = 320
	BottomScreenHeight = 240
)

// outputDimensions picks the output texture size for the configured
// layout. The bottom screen sits under the top screen, so hiding it
// halves the height.
func outputDimensions(settings *config.Settings) (uint32, uint32) {
	if settings.Renderer.RenderTouchscreen {
		return TopScreenWidth, TopScreenHeight + BottomScreenHeight
	}
	return TopScreenWidth, TopScreenHeight
}

// Renderer ties the device adapter, presentation window and submission
// scheduler into the surface the emulated core drives each frame:
// acquire, record, present.
type Renderer struct {
	sessionID string
	settings  *config.Settings

	instance  *Instance
	window    *PresentWindow
	semaphore MasterSemaphore
	metrics   *telemetry.Metrics

	beginCommandBuffer func(cmdbuf vk.CommandBuffer) error
}

// hostDrivesSync reports whether the frontend exposes the callbacks the
// host-delegated scheduler relies on: a sync index to hand out ticks and
// a queue lock to bracket submissions. Anything less gets fence tracking.
func hostDrivesSync(intf *frontend.HWRenderInterface) bool {
	return intf != nil &&
		intf.GetSyncIndex != nil &&
		intf.LockQueue != nil &&
		intf.UnlockQueue != nil
}

// New builds a renderer against the frontend's current interface. It
// fails when the frontend has not supplied one yet.
func New(provider *frontend.Provider, settings *config.Settings) (*Renderer, error) {
	instance, err := NewInstance(provider)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize device adapter: %w", err)
	}

	width, height := outputDimensions(settings)
	window, err := NewPresentWindow(instance, provider, width, height)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize presentation window: %w", err)
	}

	intf, _, _ := provider.Current()
	var semaphore MasterSemaphore
	if hostDrivesSync(intf) {
		semaphore = NewHostDelegatedSemaphore(instance, provider)
	} else {
		slog.Info("Frontend exposes no sync callbacks, using fence-tracked submissions")
		semaphore = NewFenceBackedSemaphore(instance)
	}

	r := &Renderer{
		sessionID: uuid.New().String(),
		settings:  settings,
		instance:  instance,
		window:    window,
		semaphore: semaphore,
		metrics:   telemetry.New(),
	}
	r.beginCommandBuffer = beginCommandBuffer

	slog.Info("Renderer session started",
		"session_id", r.sessionID,
		"device", instance.DeviceName(),
		"width", width,
		"height", height,
	)
	return r, nil
}

// SessionID identifies this renderer session in logs
func (r *Renderer) SessionID() string { return r.sessionID }

// Capabilities reports the detected device capabilities
func (r *Renderer) Capabilities() Capabilities { return r.instance.Capabilities() }

// Instance exposes the device adapter for subsystems that record their
// own GPU work
func (r *Renderer) Instance() *Instance { return r.instance }

// EnsureOutputSize resizes the output texture and frame pool if the
// layout changed; matching dimensions are free.
func (r *Renderer) EnsureOutputSize(width, height uint32) error {
	return r.window.ResizeFrame(width, height)
}

// AcquireFrame returns the next frame slot, safe to record into.
func (r *Renderer) AcquireFrame() *Frame {
	return r.window.AcquireFrame()
}

// RecordInto opens the frame's command buffer and returns it as the
// recording target. Present closes and submits it.
func (r *Renderer) RecordInto(frame *Frame) (vk.CommandBuffer, error) {
	if err := r.beginCommandBuffer(frame.CommandBuffer); err != nil {
		return nil, fmt.Errorf("failed to begin frame recording: %w", err)
	}
	return frame.CommandBuffer, nil
}

// Present submits the frame's recorded work and hands the result to the
// frontend. A frontend that vanished mid-frame skips the present without
// failing; device loss propagates as fatal.
func (r *Renderer) Present(frame *Frame) error {
	tick := r.semaphore.NextTick()
	if err := r.semaphore.SubmitWork(frame.CommandBuffer, tick); err != nil {
		if errors.Is(err, ErrInterfaceUnavailable) {
			slog.Warn("Skipping present, frontend went away before submission",
				"tick", tick,
			)
			r.metrics.PresentsSkipped.Inc()
			return nil
		}
		return err
	}
	r.window.Present(frame)
	return nil
}

// WaitIdle drains all pooled frames and submitted work.
func (r *Renderer) WaitIdle() error {
	if err := r.window.WaitPresent(); err != nil {
		return err
	}
	r.semaphore.Refresh()
	return nil
}

// Teardown drains and releases everything the renderer owns. Borrowed
// frontend handles are left untouched.
func (r *Renderer) Teardown() {
	if err := r.WaitIdle(); err != nil {
		slog.Warn("Failed to drain work during teardown",
			"session_id", r.sessionID,
			"error", err,
		)
	}
	if fenced, ok := r.semaphore.(*FenceBackedSemaphore); ok {
		fenced.Destroy()
	}
	r.window.Teardown()
	slog.Info("Renderer session ended", "session_id", r.sessionID)
}

func beginCommandBuffer(cmdbuf vk.CommandBuffer) error {
	beginInfo := vk.CommandBufferBeginInfo{
		SType: vk.StructureTypeCommandBufferBeginInfo,
		Flags: vk.CommandBufferUsageFlags(vk.CommandBufferUsageOneTimeSubmitBit),
	}
	if res := vk.BeginCommandBuffer(cmdbuf, &beginInfo); res != vk.Success {
		return vk.Error(res)
	}
	return nil
}
