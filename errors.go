package atlasmap

import "errors"

var (
	// ErrNotInitialized is returned by RenderFrame before InitializeRendering.
	ErrNotInitialized = errors.New("atlasmap: rendering not initialized")

	// ErrAlreadyInitialized is returned by a second InitializeRendering.
	ErrAlreadyInitialized = errors.New("atlasmap: rendering already initialized")

	// ErrReleased is returned by any rendering call after ReleaseRendering.
	ErrReleased = errors.New("atlasmap: renderer released")

	// ErrNoBackend is returned when a renderer is used without a backend.
	ErrNoBackend = errors.New("atlasmap: no backend")

	// ErrInvalidLayer is returned for a layer outside [0, LayerCount).
	ErrInvalidLayer = errors.New("atlasmap: invalid layer")
)
