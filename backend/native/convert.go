//go:build !nogpu

package native

import (
	"fmt"

	"github.com/gogpu/gputypes"

	"github.com/gogpu/atlasmap/gpucore"
)

// depthFormat is the format of the frame depth attachment.
const depthFormat = gputypes.TextureFormatDepth24Plus

// colorFormat is the format of the offscreen frame target.
const colorFormat = gputypes.TextureFormatRGBA8Unorm

func convertBufferUsage(usage gpucore.BufferUsage) gputypes.BufferUsage {
	var result gputypes.BufferUsage
	if usage&gpucore.BufferUsageCopyDst != 0 {
		result |= gputypes.BufferUsageCopyDst
	}
	if usage&gpucore.BufferUsageIndex != 0 {
		result |= gputypes.BufferUsageIndex
	}
	if usage&gpucore.BufferUsageVertex != 0 {
		result |= gputypes.BufferUsageVertex
	}
	if usage&gpucore.BufferUsageUniform != 0 {
		result |= gputypes.BufferUsageUniform
	}
	return result
}

func convertTextureFormat(format gpucore.TextureFormat) (gputypes.TextureFormat, error) {
	switch format {
	case gpucore.TextureFormatRGBA8Unorm:
		return gputypes.TextureFormatRGBA8Unorm, nil
	case gpucore.TextureFormatBGRA8Unorm:
		return gputypes.TextureFormatBGRA8Unorm, nil
	case gpucore.TextureFormatR32Float:
		return gputypes.TextureFormatR32Float, nil
	default:
		return 0, fmt.Errorf("%w: %s", ErrUnsupportedFormat, format)
	}
}

func convertFilter(f gpucore.FilterMode) gputypes.FilterMode {
	if f == gpucore.FilterLinear {
		return gputypes.FilterModeLinear
	}
	return gputypes.FilterModeNearest
}

func convertStages(s gpucore.ShaderStage) gputypes.ShaderStages {
	var result gputypes.ShaderStages
	if s&gpucore.StageVertex != 0 {
		result |= gputypes.ShaderStageVertex
	}
	if s&gpucore.StageFragment != 0 {
		result |= gputypes.ShaderStageFragment
	}
	return result
}

func vertexFormat(components uint32) (gputypes.VertexFormat, error) {
	switch components {
	case 1:
		return gputypes.VertexFormatFloat32, nil
	case 2:
		return gputypes.VertexFormatFloat32x2, nil
	case 3:
		return gputypes.VertexFormatFloat32x3, nil
	case 4:
		return gputypes.VertexFormatFloat32x4, nil
	default:
		return 0, fmt.Errorf("native: vertex attribute with %d components", components)
	}
}

// bindGroupLayoutEntries returns the layout of the single bind group every
// pipeline uses: the uniform block at binding 0 followed by one
// texture/sampler pair per texture binding.
func bindGroupLayoutEntries(desc gpucore.PipelineDesc) []gputypes.BindGroupLayoutEntry {
	entries := make([]gputypes.BindGroupLayoutEntry, 0, 1+2*len(desc.Textures))
	entries = append(entries, gputypes.BindGroupLayoutEntry{
		Binding:    0,
		Visibility: convertStages(desc.UniformStages),
		Buffer: &gputypes.BufferBindingLayout{
			Type:           gputypes.BufferBindingTypeUniform,
			MinBindingSize: desc.UniformSize,
		},
	})
	for i, tb := range desc.Textures {
		sampleType := gputypes.TextureSampleTypeUnfilterableFloat
		samplerType := gputypes.SamplerBindingTypeNonFiltering
		if tb.Filterable {
			sampleType = gputypes.TextureSampleTypeFloat
			samplerType = gputypes.SamplerBindingTypeFiltering
		}
		stages := convertStages(tb.Stages)
		entries = append(entries,
			gputypes.BindGroupLayoutEntry{
				Binding:    uint32(1 + 2*i),
				Visibility: stages,
				Texture: &gputypes.TextureBindingLayout{
					SampleType:    sampleType,
					ViewDimension: gputypes.TextureViewDimension2D,
				},
			},
			gputypes.BindGroupLayoutEntry{
				Binding:    uint32(2 + 2*i),
				Visibility: stages,
				Sampler:    &gputypes.SamplerBindingLayout{Type: samplerType},
			},
		)
	}
	return entries
}

func vertexBufferLayout(desc gpucore.PipelineDesc) (gputypes.VertexBufferLayout, error) {
	attrs := make([]gputypes.VertexAttribute, 0, len(desc.Attributes))
	for _, a := range desc.Attributes {
		format, err := vertexFormat(a.Components)
		if err != nil {
			return gputypes.VertexBufferLayout{}, err
		}
		attrs = append(attrs, gputypes.VertexAttribute{
			Format:         format,
			Offset:         a.Offset,
			ShaderLocation: a.Location,
		})
	}
	return gputypes.VertexBufferLayout{
		ArrayStride: desc.VertexStride,
		StepMode:    gputypes.VertexStepModeVertex,
		Attributes:  attrs,
	}, nil
}

func alignUp(v, align uint64) uint64 {
	return (v + align - 1) / align * align
}
