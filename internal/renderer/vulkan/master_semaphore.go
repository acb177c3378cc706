package vulkan

import (
	"fmt"
	"log/slog"
	"math"
	"sync/atomic"

	vk "github.com/goki/vulkan"

	"github.com/KojoZero/azahar/internal/frontend"
	"github.com/KojoZero/azahar/internal/telemetry"
)

// MasterSemaphore tracks GPU work completion as a monotonic tick counter
// and owns command buffer submission to the graphics queue.
type MasterSemaphore interface {
	// NextTick reserves the tick the next submission will signal.
	NextTick() uint64

	// KnownGpuTick reports the highest tick known complete on the GPU.
	KnownGpuTick() uint64

	// Refresh re-reads completion state. Never blocks.
	Refresh()

	// Wait ensures work up to tick is complete before returning.
	Wait(tick uint64)

	// SubmitWork ends the command buffer and submits it, marking tick
	// complete on success.
	SubmitWork(cmdbuf vk.CommandBuffer, tick uint64) error
}

// HostDelegatedSemaphore relies on the frontend for completion tracking:
// the frontend serializes presentation through its sync index, so any tick
// whose submission has been accepted by the queue is treated as complete.
// No Vulkan semaphores back the counter, which is why Refresh and Wait
// never block.
//
// Every submission is bracketed by the frontend's queue lock because the
// frontend submits on the same queue from its own thread.
type HostDelegatedSemaphore struct {
	instance *Instance
	provider *frontend.Provider
	metrics  *telemetry.Metrics

	currentTick atomic.Uint64
	gpuTick     atomic.Uint64

	endCommandBuffer func(cmdbuf vk.CommandBuffer) error
	queueSubmit      func(queue vk.Queue, submit vk.SubmitInfo) vk.Result
}

// NewHostDelegatedSemaphore creates the semaphore at tick zero.
func NewHostDelegatedSemaphore(instance *Instance, provider *frontend.Provider) *HostDelegatedSemaphore {
	s := &HostDelegatedSemaphore{
		instance: instance,
		provider: provider,
		metrics:  telemetry.New(),
	}
	s.endCommandBuffer = endCommandBuffer
	s.queueSubmit = submitOne
	return s
}

// NextTick reserves and returns the next submission tick.
func (s *HostDelegatedSemaphore) NextTick() uint64 {
	return s.currentTick.Add(1)
}

// KnownGpuTick reports the highest tick considered complete.
func (s *HostDelegatedSemaphore) KnownGpuTick() uint64 {
	return s.gpuTick.Load()
}

// Refresh marks every reserved tick complete. The frontend has already
// waited for the GPU before letting the core reuse a frame slot, so
// nothing reserved can still be running.
func (s *HostDelegatedSemaphore) Refresh() {
	s.advanceTo(s.currentTick.Load())
}

// Wait returns once tick is considered complete, raising the completion
// counter to at least tick. Delegated tracking means this never blocks,
// even for a tick no submission has reserved yet.
func (s *HostDelegatedSemaphore) Wait(tick uint64) {
	if tick <= s.gpuTick.Load() {
		return
	}
	s.Refresh()
	s.advanceTo(tick)
}

// SubmitWork ends cmdbuf and submits it on the shared queue under the
// frontend's queue lock. Device loss is fatal for the session; any other
// failure leaves the tick incomplete for a caller retry. The lock is
// released exactly once on every path.
func (s *HostDelegatedSemaphore) SubmitWork(cmdbuf vk.CommandBuffer, tick uint64) error {
	if err := s.endCommandBuffer(cmdbuf); err != nil {
		s.metrics.SubmissionErrors.WithLabelValues("end_command_buffer").Inc()
		return fmt.Errorf("failed to end command buffer: %w", err)
	}

	intf, _, ok := s.provider.Current()
	if !ok {
		s.metrics.SubmissionErrors.WithLabelValues("no_interface").Inc()
		return fmt.Errorf("failed to submit tick %d: %w", tick, ErrInterfaceUnavailable)
	}

	submitInfo := vk.SubmitInfo{
		SType:              vk.StructureTypeSubmitInfo,
		CommandBufferCount: 1,
		PCommandBuffers:    []vk.CommandBuffer{cmdbuf},
	}

	if intf.LockQueue != nil {
		intf.LockQueue(intf.Handle)
	}
	if intf.UnlockQueue != nil {
		defer intf.UnlockQueue(intf.Handle)
	}

	res := s.queueSubmit(intf.Queue, submitInfo)
	switch res {
	case vk.Success:
	case vk.ErrorDeviceLost:
		s.metrics.SubmissionErrors.WithLabelValues("device_lost").Inc()
		slog.Error("Device lost during queue submission", "tick", tick)
		return fmt.Errorf("failed to submit tick %d: %w", tick, ErrDeviceLost)
	default:
		s.metrics.SubmissionErrors.WithLabelValues("submit_failed").Inc()
		return fmt.Errorf("failed to submit tick %d: %w", tick, vk.Error(res))
	}

	s.metrics.QueueSubmissions.Inc()
	s.advanceTo(tick)
	return nil
}

// advanceTo raises the known GPU tick monotonically.
func (s *HostDelegatedSemaphore) advanceTo(tick uint64) {
	for {
		known := s.gpuTick.Load()
		if tick <= known {
			return
		}
		if s.gpuTick.CompareAndSwap(known, tick) {
			s.metrics.CompletedTick.Set(float64(tick))
			return
		}
	}
}

func endCommandBuffer(cmdbuf vk.CommandBuffer) error {
	if res := vk.EndCommandBuffer(cmdbuf); res != vk.Success {
		return vk.Error(res)
	}
	return nil
}

func submitOne(queue vk.Queue, submit vk.SubmitInfo) vk.Result {
	return vk.QueueSubmit(queue, 1, []vk.SubmitInfo{submit}, vk.Fence(vk.NullHandle))
}

// FenceBackedSemaphore tracks completion with per-submission fences for
// running without a frontend (the standalone probe). It keeps a small ring
// of fences, blocking on the oldest when all are in flight.
type FenceBackedSemaphore struct {
	instance *Instance

	currentTick atomic.Uint64
	gpuTick     atomic.Uint64

	inflight []fenceTick
	free     []vk.Fence

	endCommandBuffer func(cmdbuf vk.CommandBuffer) error
	submitFenced     func(queue vk.Queue, submit vk.SubmitInfo, fence vk.Fence) vk.Result
	fenceDone        func(fence vk.Fence, block bool) (bool, error)
	resetFence       func(fence vk.Fence) error
	newFence         func() (vk.Fence, error)
}

type fenceTick struct {
	fence vk.Fence
	tick  uint64
}

const fenceRingSize = 4

// NewFenceBackedSemaphore creates the fence-tracked variant at tick zero.
func NewFenceBackedSemaphore(instance *Instance) *FenceBackedSemaphore {
	s := &FenceBackedSemaphore{instance: instance}
	s.endCommandBuffer = endCommandBuffer
	s.submitFenced = func(queue vk.Queue, submit vk.SubmitInfo, fence vk.Fence) vk.Result {
		return vk.QueueSubmit(queue, 1, []vk.SubmitInfo{submit}, fence)
	}
	s.fenceDone = func(fence vk.Fence, block bool) (bool, error) {
		device := instance.Device()
		if block {
			res := vk.WaitForFences(device, 1, []vk.Fence{fence}, vk.True, math.MaxUint64)
			if res != vk.Success {
				return false, vk.Error(res)
			}
			return true, nil
		}
		switch res := vk.GetFenceStatus(device, fence); res {
		case vk.Success:
			return true, nil
		case vk.NotReady:
			return false, nil
		default:
			return false, vk.Error(res)
		}
	}
	s.resetFence = func(fence vk.Fence) error {
		if res := vk.ResetFences(instance.Device(), 1, []vk.Fence{fence}); res != vk.Success {
			return vk.Error(res)
		}
		return nil
	}
	s.newFence = func() (vk.Fence, error) {
		fenceInfo := vk.FenceCreateInfo{
			SType: vk.StructureTypeFenceCreateInfo,
		}
		var fence vk.Fence
		if res := vk.CreateFence(instance.Device(), &fenceInfo, nil, &fence); res != vk.Success {
			return vk.Fence(vk.NullHandle), vk.Error(res)
		}
		return fence, nil
	}
	return s
}

// NextTick reserves and returns the next submission tick.
func (s *FenceBackedSemaphore) NextTick() uint64 {
	return s.currentTick.Add(1)
}

// KnownGpuTick reports the highest tick whose fence has signaled.
func (s *FenceBackedSemaphore) KnownGpuTick() uint64 {
	return s.gpuTick.Load()
}

// Refresh polls in-flight fences and retires those that signaled.
func (s *FenceBackedSemaphore) Refresh() {
	s.retire(false, 0)
}

// Wait blocks until tick's fence has signaled.
func (s *FenceBackedSemaphore) Wait(tick uint64) {
	if tick <= s.gpuTick.Load() {
		return
	}
	s.retire(true, tick)
}

// SubmitWork ends cmdbuf and submits it with a fresh fence from the ring.
func (s *FenceBackedSemaphore) SubmitWork(cmdbuf vk.CommandBuffer, tick uint64) error {
	if err := s.endCommandBuffer(cmdbuf); err != nil {
		return fmt.Errorf("failed to end command buffer: %w", err)
	}

	fence, err := s.acquireFence()
	if err != nil {
		return fmt.Errorf("failed to acquire submission fence: %w", err)
	}

	submitInfo := vk.SubmitInfo{
		SType:              vk.StructureTypeSubmitInfo,
		CommandBufferCount: 1,
		PCommandBuffers:    []vk.CommandBuffer{cmdbuf},
	}
	res := s.submitFenced(s.instance.GraphicsQueue(), submitInfo, fence)
	if res == vk.ErrorDeviceLost {
		return fmt.Errorf("failed to submit tick %d: %w", tick, ErrDeviceLost)
	}
	if res != vk.Success {
		return fmt.Errorf("failed to submit tick %d: %w", tick, vk.Error(res))
	}

	s.inflight = append(s.inflight, fenceTick{fence: fence, tick: tick})
	return nil
}

// acquireFence reuses a retired fence or creates one while the ring has
// room, blocking on the oldest in-flight entry otherwise.
func (s *FenceBackedSemaphore) acquireFence() (vk.Fence, error) {
	if len(s.free) == 0 && len(s.inflight) >= fenceRingSize {
		oldest := s.inflight[0]
		if _, err := s.fenceDone(oldest.fence, true); err != nil {
			return vk.Fence(vk.NullHandle), err
		}
		s.inflight = s.inflight[1:]
		s.advanceTo(oldest.tick)
		s.free = append(s.free, oldest.fence)
	}
	if n := len(s.free); n > 0 {
		fence := s.free[n-1]
		s.free = s.free[:n-1]
		if err := s.resetFence(fence); err != nil {
			return vk.Fence(vk.NullHandle), err
		}
		return fence, nil
	}
	return s.newFence()
}

func (s *FenceBackedSemaphore) retire(block bool, target uint64) {
	for len(s.inflight) > 0 {
		head := s.inflight[0]
		mustBlock := block && head.tick <= target && s.gpuTick.Load() < target
		done, err := s.fenceDone(head.fence, mustBlock)
		if err != nil {
			slog.Error("Failed to check submission fence", "tick", head.tick, "error", err)
			return
		}
		if !done {
			return
		}
		s.inflight = s.inflight[1:]
		s.free = append(s.free, head.fence)
		s.advanceTo(head.tick)
	}
}

// Destroy waits out in-flight work and releases every fence in the ring.
func (s *FenceBackedSemaphore) Destroy() {
	s.retire(true, s.currentTick.Load())
	device := s.instance.Device()
	for _, ft := range s.inflight {
		vk.DestroyFence(device, ft.fence, nil)
	}
	s.inflight = nil
	for _, fence := range s.free {
		vk.DestroyFence(device, fence, nil)
	}
	s.free = nil
}

func (s *FenceBackedSemaphore) advanceTo(tick uint64) {
	for {
		known := s.gpuTick.Load()
		if tick <= known {
			return
		}
		if s.gpuTick.CompareAndSwap(known, tick) {
			return
		}
	}
}
