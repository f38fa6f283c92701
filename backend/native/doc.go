// Package native provides a Pure Go GPU device for the map renderer using
// gogpu/wgpu HAL. WGSL shaders are compiled to SPIR-V with gogpu/naga.
//
// Importing the package registers the device with the backend registry
// under the name "native". Building with the nogpu tag leaves the package
// empty, and backend.OpenDefault falls back to the recording device.
package native
