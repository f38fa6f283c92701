package backend

import (
	"errors"

	"github.com/gogpu/atlasmap/gpucore"
)

// Common backend errors.
var (
	// ErrDeviceNotAvailable is returned when a requested device is not registered.
	ErrDeviceNotAvailable = errors.New("backend: device not available")

	// ErrNoDevice is returned by OpenDefault when no registered device opens.
	ErrNoDevice = errors.New("backend: no device could be opened")
)

// Device names.
const (
	// DeviceNative is the wgpu HAL device.
	DeviceNative = "native"

	// DeviceRecording is the in-memory recording device.
	DeviceRecording = "recording"
)

// Opener opens a new device instance.
type Opener func() (gpucore.Device, error)
