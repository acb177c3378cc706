package vulkan

import (
	"errors"
	"testing"

	vk "github.com/goki/vulkan"

	"github.com/KojoZero/azahar/internal/config"
	"github.com/KojoZero/azahar/internal/frontend"
	"github.com/KojoZero/azahar/internal/telemetry"
)

// fakeSemaphore records ticks and submissions without touching the queue.
type fakeSemaphore struct {
	tick      uint64
	submitted []uint64
	submitErr error
}

func (f *fakeSemaphore) NextTick() uint64     { f.tick++; return f.tick }
func (f *fakeSemaphore) KnownGpuTick() uint64 { return 0 }
func (f *fakeSemaphore) Refresh()             {}
func (f *fakeSemaphore) Wait(tick uint64)     {}
func (f *fakeSemaphore) SubmitWork(cmdbuf vk.CommandBuffer, tick uint64) error {
	if f.submitErr != nil {
		return f.submitErr
	}
	f.submitted = append(f.submitted, tick)
	return nil
}

func seamRenderer(provider *frontend.Provider, sem MasterSemaphore) (*Renderer, *windowRecorder) {
	window, rec := seamWindow(provider)
	r := &Renderer{
		sessionID: "test-session",
		settings:  config.Default(),
		instance:  &Instance{},
		window:    window,
		semaphore: sem,
		metrics:   telemetry.New(),
	}
	r.beginCommandBuffer = func(cmdbuf vk.CommandBuffer) error { return nil }
	return r, rec
}

func TestOutputDimensions(t *testing.T) {
	tests := []struct {
		name              string
		renderTouchscreen bool
		wantWidth         uint32
		wantHeight        uint32
	}{
		{"both screens", true, 400, 480},
		{"top screen only", false, 400, 240},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := config.Default()
			cfg.Renderer.RenderTouchscreen = tt.renderTouchscreen
			w, h := outputDimensions(cfg)
			if w != tt.wantWidth || h != tt.wantHeight {
				t.Errorf("Expected %dx%d, got %dx%d", tt.wantWidth, tt.wantHeight, w, h)
			}
		})
	}
}

func TestPresentSubmitsThenHandsOff(t *testing.T) {
	var images []*frontend.Image
	intf := &frontend.HWRenderInterface{
		SetImage: func(handle uintptr, image *frontend.Image, waitSemaphoreCount uint32, waitSemaphores []vk.Semaphore, queueFamilyIndex uint32) {
			images = append(images, image)
		},
	}
	provider := frontend.NewProvider()
	provider.Refresh(intf)

	sem := &fakeSemaphore{}
	r, _ := seamRenderer(provider, sem)

	frame := r.AcquireFrame()
	if _, err := r.RecordInto(frame); err != nil {
		t.Fatalf("RecordInto failed: %v", err)
	}
	if err := r.Present(frame); err != nil {
		t.Fatalf("Present failed: %v", err)
	}

	if len(sem.submitted) != 1 || sem.submitted[0] != 1 {
		t.Errorf("Expected submission of tick 1, got %v", sem.submitted)
	}
	if len(images) != 1 {
		t.Errorf("Expected one handoff to the frontend, got %d", len(images))
	}
}

func TestPresentSkipsWhenFrontendGone(t *testing.T) {
	sem := &fakeSemaphore{
		submitErr: ErrInterfaceUnavailable,
	}
	r, _ := seamRenderer(frontend.NewProvider(), sem)

	frame := r.AcquireFrame()
	if err := r.Present(frame); err != nil {
		t.Errorf("Expected a skipped present to succeed, got %v", err)
	}
}

func TestPresentPropagatesDeviceLoss(t *testing.T) {
	sem := &fakeSemaphore{
		submitErr: ErrDeviceLost,
	}
	r, _ := seamRenderer(frontend.NewProvider(), sem)

	frame := r.AcquireFrame()
	if err := r.Present(frame); !errors.Is(err, ErrDeviceLost) {
		t.Errorf("Expected ErrDeviceLost, got %v", err)
	}
}

func TestEnsureOutputSizeRebuildsPool(t *testing.T) {
	r, rec := seamRenderer(frontend.NewProvider(), &fakeSemaphore{})

	if err := r.EnsureOutputSize(400, 240); err != nil {
		t.Fatalf("EnsureOutputSize failed: %v", err)
	}
	if len(rec.rebuilds) != 0 {
		t.Errorf("Expected no rebuild for matching dimensions, got %v", rec.rebuilds)
	}

	if err := r.EnsureOutputSize(400, 480); err != nil {
		t.Fatalf("EnsureOutputSize failed: %v", err)
	}
	if len(rec.rebuilds) != 1 || rec.rebuilds[0] != [2]uint32{400, 480} {
		t.Errorf("Expected one 400x480 rebuild, got %v", rec.rebuilds)
	}
}

func TestHostDrivesSync(t *testing.T) {
	getSyncIndex := func(handle uintptr) uint32 { return 0 }
	lock := func(handle uintptr) {}

	tests := []struct {
		name string
		intf *frontend.HWRenderInterface
		want bool
	}{
		{
			name: "full sync surface",
			intf: &frontend.HWRenderInterface{
				GetSyncIndex: getSyncIndex,
				LockQueue:    lock,
				UnlockQueue:  lock,
			},
			want: true,
		},
		{
			name: "no sync index",
			intf: &frontend.HWRenderInterface{
				LockQueue:   lock,
				UnlockQueue: lock,
			},
			want: false,
		},
		{
			name: "no queue lock",
			intf: &frontend.HWRenderInterface{
				GetSyncIndex: getSyncIndex,
			},
			want: false,
		},
		{
			name: "nil interface",
			intf: nil,
			want: false,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := hostDrivesSync(tt.intf); got != tt.want {
				t.Errorf("Expected %v, got %v", tt.want, got)
			}
		})
	}
}

func TestRecordIntoBeginFailure(t *testing.T) {
	r, _ := seamRenderer(frontend.NewProvider(), &fakeSemaphore{})
	boom := errors.New("command buffer reset pending")
	r.beginCommandBuffer = func(cmdbuf vk.CommandBuffer) error { return boom }

	frame := r.AcquireFrame()
	if _, err := r.RecordInto(frame); !errors.Is(err, boom) {
		t.Errorf("Expected wrapped begin error, got %v", err)
	}
}
