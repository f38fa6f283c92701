//go:build !nogpu

package native

import (
	"github.com/gogpu/atlasmap/backend"
	"github.com/gogpu/atlasmap/gpucore"

	// Register every HAL backend available on this platform.
	_ "github.com/gogpu/wgpu/hal/allbackends"
)

func init() {
	backend.Register(backend.DeviceNative, func() (gpucore.Device, error) {
		dev, err := Open()
		if err != nil {
			return nil, err
		}
		return dev, nil
	})
}
