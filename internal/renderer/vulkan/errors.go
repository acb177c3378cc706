package vulkan

import "errors"

// Fatal initialization and submission conditions. Everything else the
// bridge hits at runtime is downgraded and logged rather than surfaced.
var (
	// ErrInterfaceUnavailable means the frontend has not made its render
	// interface available (or revoked it) at a point where it is required.
	ErrInterfaceUnavailable = errors.New("frontend render interface not available")

	// ErrNoPhysicalDevice means the frontend interface carried a nil
	// physical device handle.
	ErrNoPhysicalDevice = errors.New("frontend provided no physical device")

	// ErrNoDevice means the frontend interface carried a nil logical
	// device handle.
	ErrNoDevice = errors.New("frontend provided no logical device")

	// ErrNoGraphicsQueue means the frontend interface carried a nil
	// queue handle.
	ErrNoGraphicsQueue = errors.New("frontend provided no graphics queue")

	// ErrDeviceLost is returned when a queue submission reports device
	// loss. The session cannot continue rendering after this.
	ErrDeviceLost = errors.New("device lost during queue submission")
)
