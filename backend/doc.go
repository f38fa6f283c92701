// Package backend selects the GPU device the map renderer draws with.
//
// Devices are registered by name from init() functions and opened at
// runtime. The recording device is always available; the native device is
// registered by importing its package:
//
//	import _ "github.com/gogpu/atlasmap/backend/native"
//
// # Device Selection
//
// Use OpenDefault to open the best available device, or Open to request a
// specific one by name:
//
//	dev, err := backend.OpenDefault()
//	if err != nil {
//		log.Fatal(err)
//	}
//	defer dev.Close()
//
//	r := atlas.New(dev, atlas.DefaultConfig())
//
// OpenDefault tries devices in priority order (native, recording) and falls
// back to the next one when a device fails to open, for example when no GPU
// adapter is present.
//
// # Available Devices
//
//   - "native": Pure Go WebGPU via gogpu/wgpu HAL, shaders compiled by naga
//   - "recording": in-memory device that records every command (always available)
package backend
