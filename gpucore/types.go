package gpucore

import "fmt"

// Resource IDs
//
// These opaque IDs represent GPU resources. Each device implementation
// maintains a mapping between IDs and actual backend resources.

// BufferID is an opaque handle to a GPU buffer.
type BufferID uint64

// TextureID is an opaque handle to a GPU texture.
type TextureID uint64

// SamplerID is an opaque handle to a texture sampler.
type SamplerID uint64

// ShaderModuleID is an opaque handle to a compiled shader module.
type ShaderModuleID uint64

// PipelineID is an opaque handle to a render pipeline.
type PipelineID uint64

// InvalidID is the zero value, representing an invalid/null resource.
const InvalidID = 0

// BufferUsage is a bitmask specifying how a buffer will be used.
type BufferUsage uint32

// Buffer usage flags.
const (
	BufferUsageCopyDst BufferUsage = 1 << iota
	BufferUsageIndex
	BufferUsageVertex
	BufferUsageUniform
)

// TextureFormat specifies the format of texture data.
type TextureFormat uint32

// Texture formats.
const (
	// TextureFormatRGBA8Unorm is 8-bit RGBA, normalized unsigned integer.
	TextureFormatRGBA8Unorm TextureFormat = iota + 1

	// TextureFormatBGRA8Unorm is 8-bit BGRA, normalized unsigned integer.
	TextureFormatBGRA8Unorm

	// TextureFormatR32Float is a single 32-bit float channel (elevation data).
	TextureFormatR32Float
)

// BytesPerPixel returns the texel size of the format, or 0 if unknown.
func (f TextureFormat) BytesPerPixel() uint32 {
	switch f {
	case TextureFormatRGBA8Unorm, TextureFormatBGRA8Unorm, TextureFormatR32Float:
		return 4
	default:
		return 0
	}
}

// Filterable reports whether the format can be sampled with linear filtering
// without optional device features.
func (f TextureFormat) Filterable() bool {
	return f != TextureFormatR32Float
}

// String returns the format name.
func (f TextureFormat) String() string {
	switch f {
	case TextureFormatRGBA8Unorm:
		return "RGBA8Unorm"
	case TextureFormatBGRA8Unorm:
		return "BGRA8Unorm"
	case TextureFormatR32Float:
		return "R32Float"
	default:
		return fmt.Sprintf("TextureFormat(%d)", uint32(f))
	}
}

// FilterMode selects texel filtering.
type FilterMode uint8

// Filter modes.
const (
	FilterNearest FilterMode = iota
	FilterLinear
)

// ShaderStage is a bitmask of programmable stages.
type ShaderStage uint8

// Shader stages.
const (
	StageVertex ShaderStage = 1 << iota
	StageFragment
)

// TextureDesc describes a 2D texture.
type TextureDesc struct {
	Label     string
	Width     uint32
	Height    uint32
	MipLevels uint32 // 0 is treated as 1
	Format    TextureFormat
}

// Levels returns the effective mip level count.
func (d TextureDesc) Levels() uint32 {
	if d.MipLevels == 0 {
		return 1
	}
	return d.MipLevels
}

// SizeBytes returns the approximate memory footprint of the texture
// including its mip chain.
func (d TextureDesc) SizeBytes() uint64 {
	var total uint64
	w, h := d.Width, d.Height
	bpp := uint64(d.Format.BytesPerPixel())
	for range d.Levels() {
		total += uint64(w) * uint64(h) * bpp
		w = max(w/2, 1)
		h = max(h/2, 1)
	}
	return total
}

// Region is a texel rectangle inside one mip level of a texture.
type Region struct {
	X, Y          uint32
	Width, Height uint32
}

// SamplerDesc describes a texture sampler. Addressing is always clamp-to-edge.
type SamplerDesc struct {
	Label  string
	Filter FilterMode // minification and magnification
	Mipmap FilterMode
	MaxLOD float32
}

// VertexAttribute is a float32 vector attribute of a vertex buffer.
type VertexAttribute struct {
	Location   uint32
	Offset     uint64
	Components uint32 // 1..4 float32 components
}

// TextureBinding declares one texture+sampler pair of a pipeline.
// Binding i uses bind slots 1+2i (texture) and 2+2i (sampler); slot 0 is
// always the uniform block.
type TextureBinding struct {
	Stages     ShaderStage
	Filterable bool
}

// PipelineDesc describes a render pipeline with a single vertex buffer,
// an optional index buffer, one uniform block and a list of textures.
type PipelineDesc struct {
	Label          string
	VertexModule   ShaderModuleID
	VertexEntry    string
	FragmentModule ShaderModuleID
	FragmentEntry  string

	VertexStride uint64
	Attributes   []VertexAttribute

	UniformSize   uint64
	UniformStages ShaderStage
	Textures      []TextureBinding

	DepthTest  bool
	AlphaBlend bool
}

// Viewport is a rectangle of the render target in pixels, origin top-left.
type Viewport struct {
	X, Y          float32
	Width, Height float32
}

// Color is a linear RGBA color with components in [0, 1].
type Color struct {
	R, G, B, A float64
}

// FrameTarget describes the target of one frame.
type FrameTarget struct {
	Width  uint32
	Height uint32
	Clear  Color
}
