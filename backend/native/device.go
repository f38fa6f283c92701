//go:build !nogpu

package native

import (
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/gogpu/gputypes"
	"github.com/gogpu/naga"
	"github.com/gogpu/wgpu/hal"

	"github.com/gogpu/atlasmap"
	"github.com/gogpu/atlasmap/gpucore"
)

// Name is the device name reported by Device.Name.
const Name = "native"

type texture struct {
	raw  hal.Texture
	view hal.TextureView
	desc gpucore.TextureDesc
}

type buffer struct {
	raw  hal.Buffer
	size uint64
}

type pipeline struct {
	desc           gpucore.PipelineDesc
	groupLayout    hal.BindGroupLayout
	pipelineLayout hal.PipelineLayout
	raw            hal.RenderPipeline
}

type frameTarget struct {
	width, height uint32
	color         *texture
	depth         *texture
}

// Stats counts live resources and submitted frames.
type Stats struct {
	Textures      int
	Buffers       int
	Samplers      int
	ShaderModules int
	Pipelines     int
	Frames        uint64
	Draws         uint64
}

// Option configures a Device.
type Option func(*Device)

// WithShaderValidation enables or disables naga IR validation before SPIR-V
// generation. Validation is enabled by default.
func WithShaderValidation(enabled bool) Option {
	return func(d *Device) {
		d.compile.Validate = enabled
	}
}

// Device implements gpucore.Device using gogpu/wgpu/hal directly.
// Frames render into an offscreen RGBA8 target with a depth attachment.
//
// Thread Safety: Device is safe for concurrent use from multiple goroutines.
// All resource operations are protected by a mutex.
type Device struct {
	mu     sync.Mutex
	device hal.Device
	queue  hal.Queue

	// Set when the device was opened by Open and is destroyed by Close.
	instance hal.Instance
	adapter  hal.Adapter

	compile naga.CompileOptions

	nextID atomic.Uint64

	textures  map[gpucore.TextureID]*texture
	buffers   map[gpucore.BufferID]*buffer
	samplers  map[gpucore.SamplerID]hal.Sampler
	modules   map[gpucore.ShaderModuleID]hal.ShaderModule
	pipelines map[gpucore.PipelineID]*pipeline

	placeholder        *texture
	placeholderSampler hal.Sampler
	uniforms           *buffer
	target             *frameTarget

	inFrame bool
	closed  bool
	frames  uint64
	draws   uint64
}

// NewDevice creates a Device wrapping the given HAL device and queue.
// The caller keeps ownership of device and queue; Close releases only the
// resources created through the returned Device.
func NewDevice(device hal.Device, queue hal.Queue, opts ...Option) *Device {
	d := &Device{
		device:    device,
		queue:     queue,
		compile:   naga.DefaultOptions(),
		textures:  make(map[gpucore.TextureID]*texture),
		buffers:   make(map[gpucore.BufferID]*buffer),
		samplers:  make(map[gpucore.SamplerID]hal.Sampler),
		modules:   make(map[gpucore.ShaderModuleID]hal.ShaderModule),
		pipelines: make(map[gpucore.PipelineID]*pipeline),
	}
	for _, opt := range opts {
		opt(d)
	}

	// Start ID generation at 1 (0 is invalid)
	d.nextID.Store(1)
	return d
}

// Open selects the best available HAL backend, opens its first adapter and
// returns a Device owning the result.
func Open(opts ...Option) (*Device, error) {
	backend, err := hal.SelectBestBackend()
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrNoGPU, err)
	}

	instance, err := backend.CreateInstance(&hal.InstanceDescriptor{
		Backends: gputypes.BackendsPrimary,
	})
	if err != nil {
		return nil, fmt.Errorf("%w: create instance: %w", ErrNoGPU, err)
	}

	adapters := instance.EnumerateAdapters(nil)
	if len(adapters) == 0 {
		instance.Destroy()
		return nil, ErrNoGPU
	}
	exposed := adapters[0]

	open, err := exposed.Adapter.Open(0, exposed.Capabilities.Limits)
	if err != nil {
		instance.Destroy()
		return nil, fmt.Errorf("native: device creation failed: %w", err)
	}

	d := NewDevice(open.Device, open.Queue, opts...)
	d.instance = instance
	d.adapter = exposed.Adapter

	atlasmap.Logger().Info("native: device opened",
		"adapter", exposed.Info.Name,
		"backend", exposed.Info.Backend.String(),
		"driver", exposed.Info.Driver)
	return d, nil
}

// Name returns "native".
func (d *Device) Name() string { return Name }

// Stats returns live resource counts.
func (d *Device) Stats() Stats {
	d.mu.Lock()
	defer d.mu.Unlock()
	return Stats{
		Textures:      len(d.textures),
		Buffers:       len(d.buffers),
		Samplers:      len(d.samplers),
		ShaderModules: len(d.modules),
		Pipelines:     len(d.pipelines),
		Frames:        d.frames,
		Draws:         d.draws,
	}
}

func (d *Device) newID() uint64 {
	return d.nextID.Add(1) - 1
}

func (d *Device) checkLocked() error {
	if d.closed {
		return gpucore.ErrDeviceClosed
	}
	return nil
}

// === Textures ===

// CreateTexture creates a sampled 2D texture that can be written with
// WriteTexture.
func (d *Device) CreateTexture(desc gpucore.TextureDesc) (gpucore.TextureID, error) {
	format, err := convertTextureFormat(desc.Format)
	if err != nil {
		return gpucore.InvalidID, err
	}

	d.mu.Lock()
	defer d.mu.Unlock()
	if err := d.checkLocked(); err != nil {
		return gpucore.InvalidID, err
	}

	t, err := d.createTextureLocked(desc, format,
		gputypes.TextureUsageTextureBinding|gputypes.TextureUsageCopyDst)
	if err != nil {
		return gpucore.InvalidID, err
	}
	id := gpucore.TextureID(d.newID())
	d.textures[id] = t
	return id, nil
}

func (d *Device) createTextureLocked(desc gpucore.TextureDesc, format gputypes.TextureFormat, usage gputypes.TextureUsage) (*texture, error) {
	if desc.Width == 0 || desc.Height == 0 {
		return nil, fmt.Errorf("native: texture %q has zero size", desc.Label)
	}
	raw, err := d.device.CreateTexture(&hal.TextureDescriptor{
		Label: desc.Label,
		Size: hal.Extent3D{
			Width:              desc.Width,
			Height:             desc.Height,
			DepthOrArrayLayers: 1,
		},
		MipLevelCount: desc.Levels(),
		SampleCount:   1,
		Dimension:     gputypes.TextureDimension2D,
		Format:        format,
		Usage:         usage,
	})
	if err != nil {
		return nil, fmt.Errorf("native: create texture %q: %w", desc.Label, err)
	}

	view, err := d.device.CreateTextureView(raw, &hal.TextureViewDescriptor{
		Label:           desc.Label,
		Format:          format,
		Dimension:       gputypes.TextureViewDimension2D,
		Aspect:          gputypes.TextureAspectAll,
		MipLevelCount:   desc.Levels(),
		ArrayLayerCount: 1,
	})
	if err != nil {
		d.device.DestroyTexture(raw)
		return nil, fmt.Errorf("native: create view %q: %w", desc.Label, err)
	}
	return &texture{raw: raw, view: view, desc: desc}, nil
}

func (d *Device) destroyTexture(t *texture) {
	d.device.DestroyTextureView(t.view)
	d.device.DestroyTexture(t.raw)
}

// WriteTexture uploads tightly packed texels into a region of one mip level.
func (d *Device) WriteTexture(id gpucore.TextureID, mip uint32, region gpucore.Region, data []byte) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if err := d.checkLocked(); err != nil {
		return err
	}
	t, ok := d.textures[id]
	if !ok {
		return fmt.Errorf("%w: texture %d", gpucore.ErrUnknownResource, id)
	}

	if mip >= t.desc.Levels() {
		return fmt.Errorf("%w: mip %d of %d", ErrInvalidRegion, mip, t.desc.Levels())
	}
	w := max(t.desc.Width>>mip, 1)
	h := max(t.desc.Height>>mip, 1)
	if region.Width == 0 || region.Height == 0 ||
		region.X+region.Width > w || region.Y+region.Height > h {
		return fmt.Errorf("%w: %+v outside %dx%d", ErrInvalidRegion, region, w, h)
	}
	bpp := t.desc.Format.BytesPerPixel()
	rowBytes := region.Width * bpp
	if uint64(len(data)) < uint64(rowBytes)*uint64(region.Height) {
		return fmt.Errorf("%w: %d bytes for %dx%d texels", ErrInvalidRegion, len(data), region.Width, region.Height)
	}

	return d.queue.WriteTexture(
		&hal.ImageCopyTexture{
			Texture:  t.raw,
			MipLevel: mip,
			Origin:   hal.Origin3D{X: region.X, Y: region.Y},
			Aspect:   gputypes.TextureAspectAll,
		},
		data,
		&hal.ImageDataLayout{
			BytesPerRow:  rowBytes,
			RowsPerImage: region.Height,
		},
		&hal.Extent3D{Width: region.Width, Height: region.Height, DepthOrArrayLayers: 1},
	)
}

// DestroyTexture releases a texture. Unknown IDs are ignored.
func (d *Device) DestroyTexture(id gpucore.TextureID) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if t, ok := d.textures[id]; ok {
		delete(d.textures, id)
		d.destroyTexture(t)
	}
}

// === Buffers ===

// CreateBuffer creates a GPU buffer. The size is rounded up to a multiple of 4.
func (d *Device) CreateBuffer(label string, size uint64, usage gpucore.BufferUsage) (gpucore.BufferID, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if err := d.checkLocked(); err != nil {
		return gpucore.InvalidID, err
	}
	b, err := d.createBufferLocked(label, size, convertBufferUsage(usage)|gputypes.BufferUsageCopyDst)
	if err != nil {
		return gpucore.InvalidID, err
	}
	id := gpucore.BufferID(d.newID())
	d.buffers[id] = b
	return id, nil
}

func (d *Device) createBufferLocked(label string, size uint64, usage gputypes.BufferUsage) (*buffer, error) {
	size = alignUp(max(size, 4), 4)
	raw, err := d.device.CreateBuffer(&hal.BufferDescriptor{
		Label: label,
		Size:  size,
		Usage: usage,
	})
	if err != nil {
		return nil, fmt.Errorf("native: create buffer %q: %w", label, err)
	}
	return &buffer{raw: raw, size: size}, nil
}

// WriteBuffer writes data at offset. Data whose length is not a multiple of
// 4 is zero padded.
func (d *Device) WriteBuffer(id gpucore.BufferID, offset uint64, data []byte) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if err := d.checkLocked(); err != nil {
		return err
	}
	b, ok := d.buffers[id]
	if !ok {
		return fmt.Errorf("%w: buffer %d", gpucore.ErrUnknownResource, id)
	}
	return d.writeBufferLocked(b, offset, data)
}

func (d *Device) writeBufferLocked(b *buffer, offset uint64, data []byte) error {
	if offset%4 != 0 {
		return fmt.Errorf("%w: offset %d is not 4-byte aligned", ErrOutOfRange, offset)
	}
	if n := uint64(len(data)); n%4 != 0 {
		padded := make([]byte, alignUp(n, 4))
		copy(padded, data)
		data = padded
	}
	if offset+uint64(len(data)) > b.size {
		return fmt.Errorf("%w: %d bytes at %d in %d-byte buffer", ErrOutOfRange, len(data), offset, b.size)
	}
	return d.queue.WriteBuffer(b.raw, offset, data)
}

// DestroyBuffer releases a buffer. Unknown IDs are ignored.
func (d *Device) DestroyBuffer(id gpucore.BufferID) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if b, ok := d.buffers[id]; ok {
		delete(d.buffers, id)
		d.device.DestroyBuffer(b.raw)
	}
}

// === Samplers ===

// CreateSampler creates a clamp-to-edge sampler.
func (d *Device) CreateSampler(desc gpucore.SamplerDesc) (gpucore.SamplerID, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if err := d.checkLocked(); err != nil {
		return gpucore.InvalidID, err
	}
	s, err := d.createSamplerLocked(desc)
	if err != nil {
		return gpucore.InvalidID, err
	}
	id := gpucore.SamplerID(d.newID())
	d.samplers[id] = s
	return id, nil
}

func (d *Device) createSamplerLocked(desc gpucore.SamplerDesc) (hal.Sampler, error) {
	filter := convertFilter(desc.Filter)
	s, err := d.device.CreateSampler(&hal.SamplerDescriptor{
		Label:        desc.Label,
		AddressModeU: gputypes.AddressModeClampToEdge,
		AddressModeV: gputypes.AddressModeClampToEdge,
		AddressModeW: gputypes.AddressModeClampToEdge,
		MagFilter:    filter,
		MinFilter:    filter,
		MipmapFilter: convertFilter(desc.Mipmap),
		LodMaxClamp:  desc.MaxLOD,
		Anisotropy:   1,
	})
	if err != nil {
		return nil, fmt.Errorf("native: create sampler %q: %w", desc.Label, err)
	}
	return s, nil
}

// DestroySampler releases a sampler. Unknown IDs are ignored.
func (d *Device) DestroySampler(id gpucore.SamplerID) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if s, ok := d.samplers[id]; ok {
		delete(d.samplers, id)
		d.device.DestroySampler(s)
	}
}

// === Shaders and pipelines ===

// CreateShaderModule compiles WGSL source to SPIR-V with naga and creates a
// shader module from it.
func (d *Device) CreateShaderModule(label, wgsl string) (gpucore.ShaderModuleID, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if err := d.checkLocked(); err != nil {
		return gpucore.InvalidID, err
	}

	spirv, err := compileWGSL(wgsl, d.compile)
	if err != nil {
		return gpucore.InvalidID, fmt.Errorf("native: shader %q: %w", label, err)
	}
	module, err := d.device.CreateShaderModule(&hal.ShaderModuleDescriptor{
		Label:  label,
		Source: hal.ShaderSource{SPIRV: spirv},
	})
	if err != nil {
		return gpucore.InvalidID, fmt.Errorf("native: create shader module %q: %w", label, err)
	}

	id := gpucore.ShaderModuleID(d.newID())
	d.modules[id] = module
	atlasmap.Logger().Debug("native: shader module created", "label", label, "words", len(spirv))
	return id, nil
}

// DestroyShaderModule releases a shader module. Unknown IDs are ignored.
func (d *Device) DestroyShaderModule(id gpucore.ShaderModuleID) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if m, ok := d.modules[id]; ok {
		delete(d.modules, id)
		d.device.DestroyShaderModule(m)
	}
}

// CreatePipeline creates a render pipeline targeting the offscreen frame
// format. Every pipeline carries a depth state matching the frame depth
// attachment; pipelines without DepthTest always pass and never write depth.
func (d *Device) CreatePipeline(desc gpucore.PipelineDesc) (gpucore.PipelineID, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if err := d.checkLocked(); err != nil {
		return gpucore.InvalidID, err
	}

	vs, ok := d.modules[desc.VertexModule]
	if !ok {
		return gpucore.InvalidID, fmt.Errorf("%w: vertex module %d", gpucore.ErrUnknownResource, desc.VertexModule)
	}
	fs, ok := d.modules[desc.FragmentModule]
	if !ok {
		return gpucore.InvalidID, fmt.Errorf("%w: fragment module %d", gpucore.ErrUnknownResource, desc.FragmentModule)
	}
	vertexLayout, err := vertexBufferLayout(desc)
	if err != nil {
		return gpucore.InvalidID, err
	}

	groupLayout, err := d.device.CreateBindGroupLayout(&hal.BindGroupLayoutDescriptor{
		Label:   desc.Label,
		Entries: bindGroupLayoutEntries(desc),
	})
	if err != nil {
		return gpucore.InvalidID, fmt.Errorf("native: create bind group layout %q: %w", desc.Label, err)
	}
	pipelineLayout, err := d.device.CreatePipelineLayout(&hal.PipelineLayoutDescriptor{
		Label:            desc.Label,
		BindGroupLayouts: []hal.BindGroupLayout{groupLayout},
	})
	if err != nil {
		d.device.DestroyBindGroupLayout(groupLayout)
		return gpucore.InvalidID, fmt.Errorf("native: create pipeline layout %q: %w", desc.Label, err)
	}

	depth := &hal.DepthStencilState{
		Format:       depthFormat,
		DepthCompare: gputypes.CompareFunctionAlways,
	}
	if desc.DepthTest {
		depth.DepthWriteEnabled = true
		depth.DepthCompare = gputypes.CompareFunctionLessEqual
	}
	target := gputypes.ColorTargetState{
		Format:    colorFormat,
		WriteMask: gputypes.ColorWriteMaskAll,
	}
	if desc.AlphaBlend {
		blend := gputypes.BlendStateAlpha()
		target.Blend = &blend
	}

	raw, err := d.device.CreateRenderPipeline(&hal.RenderPipelineDescriptor{
		Label:  desc.Label,
		Layout: pipelineLayout,
		Vertex: hal.VertexState{
			Module:     vs,
			EntryPoint: desc.VertexEntry,
			Buffers:    []gputypes.VertexBufferLayout{vertexLayout},
		},
		Primitive: gputypes.PrimitiveState{
			Topology:  gputypes.PrimitiveTopologyTriangleList,
			FrontFace: gputypes.FrontFaceCCW,
			CullMode:  gputypes.CullModeNone,
		},
		DepthStencil: depth,
		Multisample:  gputypes.DefaultMultisampleState(),
		Fragment: &hal.FragmentState{
			Module:     fs,
			EntryPoint: desc.FragmentEntry,
			Targets:    []gputypes.ColorTargetState{target},
		},
	})
	if err != nil {
		d.device.DestroyPipelineLayout(pipelineLayout)
		d.device.DestroyBindGroupLayout(groupLayout)
		return gpucore.InvalidID, fmt.Errorf("native: create render pipeline %q: %w", desc.Label, err)
	}

	id := gpucore.PipelineID(d.newID())
	d.pipelines[id] = &pipeline{
		desc:           desc,
		groupLayout:    groupLayout,
		pipelineLayout: pipelineLayout,
		raw:            raw,
	}
	return id, nil
}

func (d *Device) destroyPipeline(p *pipeline) {
	d.device.DestroyRenderPipeline(p.raw)
	d.device.DestroyPipelineLayout(p.pipelineLayout)
	d.device.DestroyBindGroupLayout(p.groupLayout)
}

// DestroyPipeline releases a pipeline. Unknown IDs are ignored.
func (d *Device) DestroyPipeline(id gpucore.PipelineID) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if p, ok := d.pipelines[id]; ok {
		delete(d.pipelines, id)
		d.destroyPipeline(p)
	}
}

// === Frames ===

// BeginFrame opens a frame on an offscreen target of the requested size.
// The target is reallocated when the size changes.
func (d *Device) BeginFrame(target gpucore.FrameTarget) (gpucore.PassEncoder, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if err := d.checkLocked(); err != nil {
		return nil, err
	}
	if d.inFrame {
		return nil, gpucore.ErrFrameInProgress
	}
	if target.Width == 0 || target.Height == 0 {
		return nil, fmt.Errorf("native: frame target %dx%d", target.Width, target.Height)
	}
	if err := d.ensurePlaceholderLocked(); err != nil {
		return nil, err
	}
	if err := d.ensureTargetLocked(target.Width, target.Height); err != nil {
		return nil, err
	}
	d.inFrame = true
	return &encoder{dev: d, target: target}, nil
}

// ensurePlaceholderLocked creates the 1x1 texture and sampler bound for
// texture slots set to InvalidID.
func (d *Device) ensurePlaceholderLocked() error {
	if d.placeholder != nil {
		return nil
	}
	t, err := d.createTextureLocked(gpucore.TextureDesc{
		Label:  "placeholder",
		Width:  1,
		Height: 1,
		Format: gpucore.TextureFormatRGBA8Unorm,
	}, gputypes.TextureFormatRGBA8Unorm, gputypes.TextureUsageTextureBinding|gputypes.TextureUsageCopyDst)
	if err != nil {
		return err
	}
	err = d.queue.WriteTexture(
		&hal.ImageCopyTexture{Texture: t.raw, Aspect: gputypes.TextureAspectAll},
		make([]byte, 4),
		&hal.ImageDataLayout{BytesPerRow: 4, RowsPerImage: 1},
		&hal.Extent3D{Width: 1, Height: 1, DepthOrArrayLayers: 1},
	)
	if err != nil {
		d.destroyTexture(t)
		return fmt.Errorf("native: write placeholder: %w", err)
	}
	s, err := d.createSamplerLocked(gpucore.SamplerDesc{Label: "placeholder"})
	if err != nil {
		d.destroyTexture(t)
		return err
	}
	d.placeholder = t
	d.placeholderSampler = s
	return nil
}

func (d *Device) ensureTargetLocked(width, height uint32) error {
	if d.target != nil && d.target.width == width && d.target.height == height {
		return nil
	}
	d.destroyTargetLocked()

	color, err := d.createTextureLocked(gpucore.TextureDesc{
		Label: "frame color", Width: width, Height: height,
	}, colorFormat, gputypes.TextureUsageRenderAttachment|gputypes.TextureUsageCopySrc)
	if err != nil {
		return err
	}
	depth, err := d.createTextureLocked(gpucore.TextureDesc{
		Label: "frame depth", Width: width, Height: height,
	}, depthFormat, gputypes.TextureUsageRenderAttachment)
	if err != nil {
		d.destroyTexture(color)
		return err
	}
	d.target = &frameTarget{width: width, height: height, color: color, depth: depth}
	atlasmap.Logger().Debug("native: frame target allocated", "width", width, "height", height)
	return nil
}

func (d *Device) destroyTargetLocked() {
	if d.target == nil {
		return
	}
	d.destroyTexture(d.target.depth)
	d.destroyTexture(d.target.color)
	d.target = nil
}

// ensureUniformsLocked grows the uniform ring buffer to at least size bytes.
func (d *Device) ensureUniformsLocked(size uint64) error {
	if d.uniforms != nil && d.uniforms.size >= size {
		return nil
	}
	newSize := uint64(minUniformRing)
	for newSize < size {
		newSize *= 2
	}
	b, err := d.createBufferLocked("uniform ring", newSize,
		gputypes.BufferUsageUniform|gputypes.BufferUsageCopyDst)
	if err != nil {
		return err
	}
	if d.uniforms != nil {
		d.device.DestroyBuffer(d.uniforms.raw)
	}
	d.uniforms = b
	return nil
}

// Close waits for the GPU, releases every resource still alive and, for
// devices returned by Open, the HAL device itself. Close is idempotent.
func (d *Device) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.closed {
		return nil
	}
	d.closed = true

	var waitErr error
	if err := d.device.WaitIdle(); err != nil {
		waitErr = fmt.Errorf("native: wait idle: %w", err)
	}

	for id, p := range d.pipelines {
		d.destroyPipeline(p)
		delete(d.pipelines, id)
	}
	for id, m := range d.modules {
		d.device.DestroyShaderModule(m)
		delete(d.modules, id)
	}
	for id, s := range d.samplers {
		d.device.DestroySampler(s)
		delete(d.samplers, id)
	}
	for id, b := range d.buffers {
		d.device.DestroyBuffer(b.raw)
		delete(d.buffers, id)
	}
	for id, t := range d.textures {
		d.destroyTexture(t)
		delete(d.textures, id)
	}
	if d.uniforms != nil {
		d.device.DestroyBuffer(d.uniforms.raw)
		d.uniforms = nil
	}
	if d.placeholder != nil {
		d.device.DestroySampler(d.placeholderSampler)
		d.destroyTexture(d.placeholder)
		d.placeholder = nil
	}
	d.destroyTargetLocked()

	if d.instance != nil {
		d.device.Destroy()
		d.adapter.Destroy()
		d.instance.Destroy()
		d.instance = nil
		d.adapter = nil
	}

	atlasmap.Logger().Info("native: device closed", "frames", d.frames)
	return waitErr
}

var _ gpucore.Device = (*Device)(nil)
