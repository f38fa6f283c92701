package gpucore

import "errors"

// Device errors.
var (
	// ErrUnknownResource is returned when an ID does not name a live resource.
	ErrUnknownResource = errors.New("gpucore: unknown resource")

	// ErrDeviceClosed is returned when using a closed device.
	ErrDeviceClosed = errors.New("gpucore: device closed")

	// ErrFrameInProgress is returned by BeginFrame while a frame is open.
	ErrFrameInProgress = errors.New("gpucore: frame already in progress")
)

// Device creates GPU resources and records frames.
//
// Resource methods are safe to call from the rendering goroutine only;
// implementations are not required to be safe for concurrent use.
type Device interface {
	// Name identifies the implementation ("native", "recording", ...).
	Name() string

	CreateTexture(desc TextureDesc) (TextureID, error)
	// WriteTexture uploads tightly packed texels into a region of one mip level.
	WriteTexture(id TextureID, mip uint32, region Region, data []byte) error
	DestroyTexture(id TextureID)

	CreateBuffer(label string, size uint64, usage BufferUsage) (BufferID, error)
	WriteBuffer(id BufferID, offset uint64, data []byte) error
	DestroyBuffer(id BufferID)

	CreateSampler(desc SamplerDesc) (SamplerID, error)
	DestroySampler(id SamplerID)

	// CreateShaderModule compiles WGSL source.
	CreateShaderModule(label, wgsl string) (ShaderModuleID, error)
	DestroyShaderModule(id ShaderModuleID)

	CreatePipeline(desc PipelineDesc) (PipelineID, error)
	DestroyPipeline(id PipelineID)

	// BeginFrame opens a render pass on the frame target. The returned encoder
	// must be ended before the next BeginFrame.
	BeginFrame(target FrameTarget) (PassEncoder, error)

	// Close releases the device and every resource still alive.
	Close() error
}

// PassEncoder records draw commands of one render pass.
//
// State set with SetPipeline, SetUniforms, SetTexture and the buffer setters
// is captured by every following DrawIndexed call.
type PassEncoder interface {
	SetViewport(v Viewport)
	SetPipeline(id PipelineID)
	// SetUniforms sets the uniform block for subsequent draws. The data is
	// copied.
	SetUniforms(data []byte)
	// SetTexture binds texture binding slot i. InvalidID binds a placeholder.
	SetTexture(slot int, tex TextureID, sampler SamplerID)
	SetVertexBuffer(id BufferID)
	// SetIndexBuffer binds a buffer of uint16 indices.
	SetIndexBuffer(id BufferID)
	DrawIndexed(indexCount uint32)
	// End submits the pass and waits until the GPU consumed it.
	End() error
}
