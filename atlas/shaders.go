package atlas

import (
	_ "embed"
)

// WGSL sources of the two render stages.
var (
	//go:embed shaders/map.wgsl
	mapShaderWGSL string

	//go:embed shaders/sky.wgsl
	skyShaderWGSL string
)

// Vertex and fragment entry points shared by both shaders.
const (
	vertexEntry   = "vs_main"
	fragmentEntry = "fs_main"
)
