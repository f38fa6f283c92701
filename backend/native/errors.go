//go:build !nogpu

package native

import "errors"

// Native device errors.
var (
	// ErrNoGPU is returned when no GPU adapter is available.
	ErrNoGPU = errors.New("native: no GPU available")

	// ErrInvalidRegion is returned by WriteTexture when the region does not
	// fit the mip level or the data is too short.
	ErrInvalidRegion = errors.New("native: invalid texture region")

	// ErrOutOfRange is returned by WriteBuffer for writes past the buffer end.
	ErrOutOfRange = errors.New("native: buffer write out of range")

	// ErrUnsupportedFormat is returned for texture formats without a HAL
	// equivalent.
	ErrUnsupportedFormat = errors.New("native: unsupported texture format")

	// ErrShaderCompilation is returned when WGSL fails to compile to SPIR-V.
	ErrShaderCompilation = errors.New("native: shader compilation failed")
)
