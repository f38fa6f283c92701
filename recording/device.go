package recording

import (
	"errors"
	"fmt"
	"sync"

	"github.com/gogpu/atlasmap/gpucore"
)

// ErrInjected is the default error returned by operations armed with FailOn.
var ErrInjected = errors.New("recording: injected failure")

// Live counts resources that were created and not destroyed.
type Live struct {
	Textures      int
	Buffers       int
	Samplers      int
	ShaderModules int
	Pipelines     int
}

// Total returns the number of live resources.
func (l Live) Total() int {
	return l.Textures + l.Buffers + l.Samplers + l.ShaderModules + l.Pipelines
}

type texture struct {
	desc gpucore.TextureDesc
	mips [][]byte
}

type buffer struct {
	label string
	usage gpucore.BufferUsage
	data  []byte
}

type shaderModule struct {
	label  string
	source string
}

// Device is an in-memory gpucore.Device.
//
// Device is safe for concurrent use.
type Device struct {
	mu sync.Mutex

	nextID    uint64
	textures  map[gpucore.TextureID]*texture
	buffers   map[gpucore.BufferID]*buffer
	samplers  map[gpucore.SamplerID]gpucore.SamplerDesc
	shaders   map[gpucore.ShaderModuleID]shaderModule
	pipelines map[gpucore.PipelineID]gpucore.PipelineDesc

	frames    []*Frame
	maxFrames int
	open      *encoder
	closed    bool
	ops       []string
	failOn    map[string]error
}

// NewDevice creates an empty recording device that keeps every frame.
func NewDevice() *Device {
	return &Device{
		textures:  make(map[gpucore.TextureID]*texture),
		buffers:   make(map[gpucore.BufferID]*buffer),
		samplers:  make(map[gpucore.SamplerID]gpucore.SamplerDesc),
		shaders:   make(map[gpucore.ShaderModuleID]shaderModule),
		pipelines: make(map[gpucore.PipelineID]gpucore.PipelineDesc),
		failOn:    make(map[string]error),
	}
}

// Name returns "recording".
func (d *Device) Name() string { return "recording" }

// SetMaxFrames limits the number of retained frames; older frames are
// dropped. Zero keeps every frame.
func (d *Device) SetMaxFrames(n int) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.maxFrames = n
	d.trimFramesLocked()
}

// FailOn makes the next calls of op (a Device method name such as
// "CreateShaderModule") fail with err, or ErrInjected when err is nil.
func (d *Device) FailOn(op string, err error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if err == nil {
		err = ErrInjected
	}
	d.failOn[op] = err
}

// Frames returns the recorded frames, oldest first.
func (d *Device) Frames() []*Frame {
	d.mu.Lock()
	defer d.mu.Unlock()
	out := make([]*Frame, len(d.frames))
	copy(out, d.frames)
	return out
}

// LastFrame returns the most recent frame, or nil.
func (d *Device) LastFrame() *Frame {
	d.mu.Lock()
	defer d.mu.Unlock()
	if len(d.frames) == 0 {
		return nil
	}
	return d.frames[len(d.frames)-1]
}

// Ops returns the resource lifecycle log, e.g. "CreateTexture atlas".
func (d *Device) Ops() []string {
	d.mu.Lock()
	defer d.mu.Unlock()
	out := make([]string, len(d.ops))
	copy(out, d.ops)
	return out
}

// Live returns the counts of live resources.
func (d *Device) Live() Live {
	d.mu.Lock()
	defer d.mu.Unlock()
	return Live{
		Textures:      len(d.textures),
		Buffers:       len(d.buffers),
		Samplers:      len(d.samplers),
		ShaderModules: len(d.shaders),
		Pipelines:     len(d.pipelines),
	}
}

// Texture returns the description of a live texture.
func (d *Device) Texture(id gpucore.TextureID) (gpucore.TextureDesc, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	t, ok := d.textures[id]
	if !ok {
		return gpucore.TextureDesc{}, false
	}
	return t.desc, true
}

// TextureData returns a copy of one mip level of a live texture.
func (d *Device) TextureData(id gpucore.TextureID, mip uint32) []byte {
	d.mu.Lock()
	defer d.mu.Unlock()
	t, ok := d.textures[id]
	if !ok || int(mip) >= len(t.mips) {
		return nil
	}
	return append([]byte(nil), t.mips[mip]...)
}

// BufferData returns a copy of a live buffer's contents.
func (d *Device) BufferData(id gpucore.BufferID) []byte {
	d.mu.Lock()
	defer d.mu.Unlock()
	b, ok := d.buffers[id]
	if !ok {
		return nil
	}
	return append([]byte(nil), b.data...)
}

// ShaderSource returns the WGSL source of a live shader module.
func (d *Device) ShaderSource(id gpucore.ShaderModuleID) (string, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	s, ok := d.shaders[id]
	return s.source, ok
}

// Pipeline returns the description of a live pipeline.
func (d *Device) Pipeline(id gpucore.PipelineID) (gpucore.PipelineDesc, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	p, ok := d.pipelines[id]
	return p, ok
}

func (d *Device) CreateTexture(desc gpucore.TextureDesc) (gpucore.TextureID, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if err := d.checkLocked("CreateTexture"); err != nil {
		return gpucore.InvalidID, err
	}
	if desc.Width == 0 || desc.Height == 0 || desc.Format.BytesPerPixel() == 0 {
		return gpucore.InvalidID, fmt.Errorf("recording: invalid texture %q: %dx%d %s",
			desc.Label, desc.Width, desc.Height, desc.Format)
	}
	t := &texture{desc: desc, mips: make([][]byte, desc.Levels())}
	w, h := desc.Width, desc.Height
	for i := range t.mips {
		t.mips[i] = make([]byte, int(w)*int(h)*int(desc.Format.BytesPerPixel()))
		w = max(w/2, 1)
		h = max(h/2, 1)
	}
	id := gpucore.TextureID(d.newIDLocked())
	d.textures[id] = t
	d.logLocked("CreateTexture", desc.Label)
	return id, nil
}

func (d *Device) WriteTexture(id gpucore.TextureID, mip uint32, region gpucore.Region, data []byte) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if err := d.checkLocked("WriteTexture"); err != nil {
		return err
	}
	t, ok := d.textures[id]
	if !ok {
		return fmt.Errorf("%w: texture %d", gpucore.ErrUnknownResource, id)
	}
	if int(mip) >= len(t.mips) {
		return fmt.Errorf("recording: mip %d out of range for %q", mip, t.desc.Label)
	}
	mw, mh := max(t.desc.Width>>mip, 1), max(t.desc.Height>>mip, 1)
	if region.X+region.Width > mw || region.Y+region.Height > mh {
		return fmt.Errorf("recording: region %+v outside %dx%d mip %d of %q", region, mw, mh, mip, t.desc.Label)
	}
	bpp := int(t.desc.Format.BytesPerPixel())
	rowBytes := int(region.Width) * bpp
	if len(data) != rowBytes*int(region.Height) {
		return fmt.Errorf("recording: texture write of %d bytes, want %d", len(data), rowBytes*int(region.Height))
	}
	dst := t.mips[mip]
	for row := range int(region.Height) {
		off := ((int(region.Y)+row)*int(mw) + int(region.X)) * bpp
		copy(dst[off:off+rowBytes], data[row*rowBytes:(row+1)*rowBytes])
	}
	return nil
}

func (d *Device) DestroyTexture(id gpucore.TextureID) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if t, ok := d.textures[id]; ok {
		delete(d.textures, id)
		d.logLocked("DestroyTexture", t.desc.Label)
	}
}

func (d *Device) CreateBuffer(label string, size uint64, usage gpucore.BufferUsage) (gpucore.BufferID, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if err := d.checkLocked("CreateBuffer"); err != nil {
		return gpucore.InvalidID, err
	}
	id := gpucore.BufferID(d.newIDLocked())
	d.buffers[id] = &buffer{label: label, usage: usage, data: make([]byte, size)}
	d.logLocked("CreateBuffer", label)
	return id, nil
}

func (d *Device) WriteBuffer(id gpucore.BufferID, offset uint64, data []byte) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if err := d.checkLocked("WriteBuffer"); err != nil {
		return err
	}
	b, ok := d.buffers[id]
	if !ok {
		return fmt.Errorf("%w: buffer %d", gpucore.ErrUnknownResource, id)
	}
	if offset+uint64(len(data)) > uint64(len(b.data)) {
		return fmt.Errorf("recording: write of %d bytes at %d overflows %q (%d bytes)", len(data), offset, b.label, len(b.data))
	}
	copy(b.data[offset:], data)
	return nil
}

func (d *Device) DestroyBuffer(id gpucore.BufferID) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if b, ok := d.buffers[id]; ok {
		delete(d.buffers, id)
		d.logLocked("DestroyBuffer", b.label)
	}
}

func (d *Device) CreateSampler(desc gpucore.SamplerDesc) (gpucore.SamplerID, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if err := d.checkLocked("CreateSampler"); err != nil {
		return gpucore.InvalidID, err
	}
	id := gpucore.SamplerID(d.newIDLocked())
	d.samplers[id] = desc
	d.logLocked("CreateSampler", desc.Label)
	return id, nil
}

func (d *Device) DestroySampler(id gpucore.SamplerID) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if s, ok := d.samplers[id]; ok {
		delete(d.samplers, id)
		d.logLocked("DestroySampler", s.Label)
	}
}

func (d *Device) CreateShaderModule(label, wgsl string) (gpucore.ShaderModuleID, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if err := d.checkLocked("CreateShaderModule"); err != nil {
		return gpucore.InvalidID, fmt.Errorf("shader %q: %w", label, err)
	}
	if wgsl == "" {
		return gpucore.InvalidID, fmt.Errorf("recording: empty shader source for %q", label)
	}
	id := gpucore.ShaderModuleID(d.newIDLocked())
	d.shaders[id] = shaderModule{label: label, source: wgsl}
	d.logLocked("CreateShaderModule", label)
	return id, nil
}

func (d *Device) DestroyShaderModule(id gpucore.ShaderModuleID) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if s, ok := d.shaders[id]; ok {
		delete(d.shaders, id)
		d.logLocked("DestroyShaderModule", s.label)
	}
}

func (d *Device) CreatePipeline(desc gpucore.PipelineDesc) (gpucore.PipelineID, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if err := d.checkLocked("CreatePipeline"); err != nil {
		return gpucore.InvalidID, err
	}
	if _, ok := d.shaders[desc.VertexModule]; !ok {
		return gpucore.InvalidID, fmt.Errorf("%w: vertex module %d", gpucore.ErrUnknownResource, desc.VertexModule)
	}
	if _, ok := d.shaders[desc.FragmentModule]; !ok {
		return gpucore.InvalidID, fmt.Errorf("%w: fragment module %d", gpucore.ErrUnknownResource, desc.FragmentModule)
	}
	id := gpucore.PipelineID(d.newIDLocked())
	d.pipelines[id] = desc
	d.logLocked("CreatePipeline", desc.Label)
	return id, nil
}

func (d *Device) DestroyPipeline(id gpucore.PipelineID) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if p, ok := d.pipelines[id]; ok {
		delete(d.pipelines, id)
		d.logLocked("DestroyPipeline", p.Label)
	}
}

func (d *Device) BeginFrame(target gpucore.FrameTarget) (gpucore.PassEncoder, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if err := d.checkLocked("BeginFrame"); err != nil {
		return nil, err
	}
	if d.open != nil {
		return nil, gpucore.ErrFrameInProgress
	}
	d.open = &encoder{dev: d, frame: &Frame{Target: target}}
	return d.open, nil
}

// Close releases every resource. Frames stay readable.
func (d *Device) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.closed {
		return nil
	}
	d.closed = true
	clear(d.textures)
	clear(d.buffers)
	clear(d.samplers)
	clear(d.shaders)
	clear(d.pipelines)
	d.ops = append(d.ops, "Close")
	return nil
}

func (d *Device) checkLocked(op string) error {
	if d.closed {
		return gpucore.ErrDeviceClosed
	}
	if err, ok := d.failOn[op]; ok {
		return err
	}
	return nil
}

func (d *Device) newIDLocked() uint64 {
	d.nextID++
	return d.nextID
}

func (d *Device) logLocked(op, label string) {
	d.ops = append(d.ops, op+" "+label)
}

func (d *Device) trimFramesLocked() {
	if d.maxFrames > 0 && len(d.frames) > d.maxFrames {
		d.frames = append(d.frames[:0:0], d.frames[len(d.frames)-d.maxFrames:]...)
	}
}

// encoder records commands into a frame.
type encoder struct {
	dev   *Device
	frame *Frame
	ended bool
}

func (e *encoder) add(c Command) {
	if !e.ended {
		e.frame.Commands = append(e.frame.Commands, c)
	}
}

func (e *encoder) SetViewport(v gpucore.Viewport) {
	e.add(Command{Type: CmdSetViewport, Viewport: v})
}

func (e *encoder) SetPipeline(id gpucore.PipelineID) {
	e.add(Command{Type: CmdSetPipeline, Pipeline: id})
}

func (e *encoder) SetUniforms(data []byte) {
	e.add(Command{Type: CmdSetUniforms, Uniforms: append([]byte(nil), data...)})
}

func (e *encoder) SetTexture(slot int, tex gpucore.TextureID, sampler gpucore.SamplerID) {
	e.add(Command{Type: CmdSetTexture, Slot: slot, Texture: tex, Sampler: sampler})
}

func (e *encoder) SetVertexBuffer(id gpucore.BufferID) {
	e.add(Command{Type: CmdSetVertexBuffer, Buffer: id})
}

func (e *encoder) SetIndexBuffer(id gpucore.BufferID) {
	e.add(Command{Type: CmdSetIndexBuffer, Buffer: id})
}

func (e *encoder) DrawIndexed(indexCount uint32) {
	e.add(Command{Type: CmdDrawIndexed, IndexCount: indexCount})
}

func (e *encoder) End() error {
	d := e.dev
	d.mu.Lock()
	defer d.mu.Unlock()
	if e.ended {
		return nil
	}
	e.ended = true
	if d.open == e {
		d.open = nil
	}
	if err := d.checkLocked("End"); err != nil {
		return err
	}
	d.frames = append(d.frames, e.frame)
	d.trimFramesLocked()
	return nil
}

var _ gpucore.Device = (*Device)(nil)
