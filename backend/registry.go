package backend

import (
	"errors"
	"fmt"
	"slices"

	"github.com/gogpu/gpucontext"

	"github.com/gogpu/atlasmap"
	"github.com/gogpu/atlasmap/gpucore"
	"github.com/gogpu/atlasmap/recording"
)

// Priority order for device selection (first to open wins).
var devicePriority = []string{DeviceNative, DeviceRecording}

var devices = gpucontext.NewRegistry[Opener](gpucontext.WithPriority(devicePriority...))

func init() {
	Register(DeviceRecording, func() (gpucore.Device, error) {
		return recording.NewDevice(), nil
	})
}

// Register registers a device opener with the given name.
// This is typically called from init() functions in device packages.
// If a device with the same name is already registered, it is replaced.
func Register(name string, open Opener) {
	devices.Register(name, func() Opener { return open })
}

// Unregister removes a device from the registry.
// This is useful for testing.
func Unregister(name string) {
	devices.Unregister(name)
}

// Available returns the sorted names of registered devices.
func Available() []string {
	names := devices.Available()
	slices.Sort(names)
	return names
}

// IsRegistered checks if a device with the given name is registered.
func IsRegistered(name string) bool {
	return devices.Has(name)
}

// Open opens the device registered under name.
func Open(name string) (gpucore.Device, error) {
	open := devices.Get(name)
	if open == nil {
		return nil, fmt.Errorf("%w: %q", ErrDeviceNotAvailable, name)
	}
	dev, err := open()
	if err != nil {
		return nil, fmt.Errorf("backend: open %s: %w", name, err)
	}
	return dev, nil
}

// OpenDefault opens the highest-priority device that opens successfully.
// Devices outside the priority list are tried last, in name order.
func OpenDefault() (gpucore.Device, error) {
	var errs []error
	for _, name := range order() {
		dev, err := Open(name)
		if err == nil {
			atlasmap.Logger().Debug("backend: device opened", "device", name)
			return dev, nil
		}
		atlasmap.Logger().Warn("backend: device failed to open", "device", name, "error", err)
		errs = append(errs, err)
	}
	return nil, errors.Join(append([]error{ErrNoDevice}, errs...)...)
}

// order returns registered names in selection order.
func order() []string {
	names := Available()
	out := make([]string, 0, len(names))
	for _, name := range devicePriority {
		if slices.Contains(names, name) {
			out = append(out, name)
		}
	}
	for _, name := range names {
		if !slices.Contains(devicePriority, name) {
			out = append(out, name)
		}
	}
	return out
}
