package vulkan

import (
	"fmt"
	"log/slog"
	"sync"

	vk "github.com/goki/vulkan"

	"github.com/KojoZero/azahar/internal/frontend"
)

var (
	dispatchOnce sync.Once
	dispatchErr  error
)

// initDispatch loads the Vulkan loader and the instance-level entry
// points. Safe to call again after an interface refresh.
func initDispatch(instance vk.Instance) error {
	dispatchOnce.Do(func() {
		if err := vk.SetDefaultGetInstanceProcAddr(); err != nil {
			dispatchErr = fmt.Errorf("failed to load vulkan library: %w", err)
			return
		}
		if err := vk.Init(); err != nil {
			dispatchErr = fmt.Errorf("failed to initialize vulkan dispatch: %w", err)
		}
	})
	if dispatchErr != nil {
		return dispatchErr
	}
	if instance != nil {
		if err := vk.InitInstance(instance); err != nil {
			return fmt.Errorf("failed to initialize instance dispatch: %w", err)
		}
	}
	return nil
}

// Instance adapts the frontend-owned Vulkan handles to the accessor
// surface the renderer expects. It creates and owns nothing: instance,
// device and queue are borrowed from the frontend for the session, and
// graphics and present work share the frontend's single queue.
type Instance struct {
	provider   *frontend.Provider
	generation uint64

	instance         vk.Instance
	gpu              vk.PhysicalDevice
	device           vk.Device
	queue            vk.Queue
	queueFamilyIndex uint32

	deviceName string
	caps       Capabilities
	allocator  *Allocator
}

// NewInstance validates the frontend's handles and runs capability
// detection. A missing interface or nil device/queue handle is an
// unrecoverable setup error, not something to retry.
func NewInstance(provider *frontend.Provider) (*Instance, error) {
	intf, generation, ok := provider.Current()
	if !ok {
		return nil, fmt.Errorf("cannot initialize renderer: %w", ErrInterfaceUnavailable)
	}
	if intf.GPU == nil {
		return nil, fmt.Errorf("cannot initialize renderer: %w", ErrNoPhysicalDevice)
	}
	if intf.Device == nil {
		return nil, fmt.Errorf("cannot initialize renderer: %w", ErrNoDevice)
	}
	if intf.Queue == nil {
		return nil, fmt.Errorf("cannot initialize renderer: %w", ErrNoGraphicsQueue)
	}

	if err := initDispatch(intf.Instance); err != nil {
		return nil, err
	}

	info, err := queryDeviceInfo(intf.GPU)
	if err != nil {
		return nil, err
	}
	caps := resolveCapabilities(info, intf.GetProcAddress)

	inst := &Instance{
		provider:         provider,
		generation:       generation,
		instance:         intf.Instance,
		gpu:              intf.GPU,
		device:           intf.Device,
		queue:            intf.Queue,
		queueFamilyIndex: intf.QueueIndex,
		deviceName:       info.name,
		caps:             caps,
		allocator:        NewAllocator(intf.Device, intf.GPU),
	}

	slog.Info("Vulkan device adapter initialized",
		"device", info.name,
		"api_version", versionString(info.apiVersion),
		"queue_family", intf.QueueIndex,
		"extensions", len(info.extensions),
	)

	return inst, nil
}

// Instance returns the frontend-owned vk.Instance
func (i *Instance) Instance() vk.Instance { return i.instance }

// GPU returns the frontend-owned physical device
func (i *Instance) GPU() vk.PhysicalDevice { return i.gpu }

// Device returns the frontend-owned logical device
func (i *Instance) Device() vk.Device { return i.device }

// GraphicsQueue returns the frontend-owned queue used for all submissions
func (i *Instance) GraphicsQueue() vk.Queue { return i.queue }

// PresentQueue returns the same queue as GraphicsQueue: the frontend owns
// exactly one
func (i *Instance) PresentQueue() vk.Queue { return i.queue }

// QueueFamilyIndex returns the family index of the shared queue
func (i *Instance) QueueFamilyIndex() uint32 { return i.queueFamilyIndex }

// Allocator returns the device memory allocator
func (i *Instance) Allocator() *Allocator { return i.allocator }

// Capabilities returns the detected capability record
func (i *Instance) Capabilities() Capabilities { return i.caps }

// DeviceName returns the physical device name
func (i *Instance) DeviceName() string { return i.deviceName }

// Generation returns the provider generation the handles were captured at
func (i *Instance) Generation() uint64 { return i.generation }

func versionString(apiVersion uint32) string {
	v := vk.Version(apiVersion)
	return fmt.Sprintf("%d.%d.%d", v.Major(), v.Minor(), v.Patch())
}
