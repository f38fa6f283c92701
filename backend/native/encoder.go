//go:build !nogpu

package native

import (
	"errors"
	"fmt"

	"github.com/gogpu/gputypes"
	"github.com/gogpu/wgpu/hal"

	"github.com/gogpu/atlasmap/gpucore"
)

const (
	// uniformAlignment is the WebGPU minUniformBufferOffsetAlignment default.
	uniformAlignment = 256

	// minUniformRing is the initial size of the uniform ring buffer.
	minUniformRing = 64 * 1024
)

var errFrameEnded = errors.New("native: frame already ended")

type textureSlot struct {
	tex     gpucore.TextureID
	sampler gpucore.SamplerID
}

// draw is one DrawIndexed call with the state captured at call time.
type draw struct {
	viewport   *gpucore.Viewport
	pipeline   gpucore.PipelineID
	uniforms   []byte
	textures   []textureSlot
	vertices   gpucore.BufferID
	indices    gpucore.BufferID
	indexCount uint32
}

// encoder records the draws of one frame. Nothing reaches the GPU before
// End: uniform blocks are packed into the ring buffer, bind groups are
// created per draw and the pass is encoded, submitted and waited on.
type encoder struct {
	dev    *Device
	target gpucore.FrameTarget
	ended  bool

	viewport *gpucore.Viewport
	pipeline gpucore.PipelineID
	uniforms []byte
	textures []textureSlot
	vertices gpucore.BufferID
	indices  gpucore.BufferID

	draws []draw
}

func (e *encoder) SetViewport(v gpucore.Viewport) {
	e.viewport = &v
}

func (e *encoder) SetPipeline(id gpucore.PipelineID) {
	e.pipeline = id
}

func (e *encoder) SetUniforms(data []byte) {
	e.uniforms = append([]byte(nil), data...)
}

func (e *encoder) SetTexture(slot int, tex gpucore.TextureID, sampler gpucore.SamplerID) {
	if slot < 0 {
		return
	}
	if slot >= len(e.textures) {
		e.textures = append(e.textures, make([]textureSlot, slot+1-len(e.textures))...)
	}
	e.textures[slot] = textureSlot{tex: tex, sampler: sampler}
}

func (e *encoder) SetVertexBuffer(id gpucore.BufferID) {
	e.vertices = id
}

func (e *encoder) SetIndexBuffer(id gpucore.BufferID) {
	e.indices = id
}

func (e *encoder) DrawIndexed(indexCount uint32) {
	if indexCount == 0 {
		return
	}
	e.draws = append(e.draws, draw{
		viewport:   e.viewport,
		pipeline:   e.pipeline,
		uniforms:   e.uniforms,
		textures:   append([]textureSlot(nil), e.textures...),
		vertices:   e.vertices,
		indices:    e.indices,
		indexCount: indexCount,
	})
}

// End submits the frame and waits for the GPU. The frame is closed even when
// End fails.
func (e *encoder) End() error {
	d := e.dev
	d.mu.Lock()
	defer d.mu.Unlock()

	if e.ended {
		return errFrameEnded
	}
	e.ended = true
	defer func() { d.inFrame = false }()

	if err := d.checkLocked(); err != nil {
		return err
	}
	return d.submitLocked(e.target, e.draws)
}

// resolvedDraw is a draw with every ID looked up.
type resolvedDraw struct {
	draw
	pipeline *pipeline
	vertices *buffer
	indices  *buffer
	offset   uint64
}

func (d *Device) submitLocked(target gpucore.FrameTarget, draws []draw) error {
	resolved, ringSize, err := d.resolveLocked(draws)
	if err != nil {
		return err
	}

	if ringSize > 0 {
		if err := d.ensureUniformsLocked(ringSize); err != nil {
			return err
		}
		staging := make([]byte, ringSize)
		for _, r := range resolved {
			copy(staging[r.offset:], r.uniforms)
		}
		if err := d.writeBufferLocked(d.uniforms, 0, staging); err != nil {
			return fmt.Errorf("native: write uniforms: %w", err)
		}
	}

	groups := make([]hal.BindGroup, 0, len(resolved))
	defer func() {
		for _, g := range groups {
			d.device.DestroyBindGroup(g)
		}
	}()
	for i := range resolved {
		g, err := d.bindGroupLocked(&resolved[i])
		if err != nil {
			return err
		}
		groups = append(groups, g)
	}

	enc, err := d.device.CreateCommandEncoder(&hal.CommandEncoderDescriptor{Label: "atlasmap frame"})
	if err != nil {
		return fmt.Errorf("native: create command encoder: %w", err)
	}
	defer enc.Destroy()
	if err := enc.BeginEncoding("atlasmap frame"); err != nil {
		return fmt.Errorf("native: begin encoding: %w", err)
	}

	pass := enc.BeginRenderPass(&hal.RenderPassDescriptor{
		Label: "atlasmap frame",
		ColorAttachments: []hal.RenderPassColorAttachment{{
			View:    d.target.color.view,
			LoadOp:  gputypes.LoadOpClear,
			StoreOp: gputypes.StoreOpStore,
			ClearValue: gputypes.Color{
				R: target.Clear.R,
				G: target.Clear.G,
				B: target.Clear.B,
				A: target.Clear.A,
			},
		}},
		DepthStencilAttachment: &hal.RenderPassDepthStencilAttachment{
			View:            d.target.depth.view,
			DepthLoadOp:     gputypes.LoadOpClear,
			DepthStoreOp:    gputypes.StoreOpStore,
			DepthClearValue: 1,
		},
	})
	for i, r := range resolved {
		if r.viewport != nil {
			v := r.viewport
			pass.SetViewport(v.X, v.Y, v.Width, v.Height, 0, 1)
		}
		pass.SetPipeline(r.pipeline.raw)
		pass.SetBindGroup(0, groups[i], nil)
		pass.SetVertexBuffer(0, r.vertices.raw, 0)
		pass.SetIndexBuffer(r.indices.raw, gputypes.IndexFormatUint16, 0)
		pass.DrawIndexed(r.indexCount, 1, 0, 0, 0)
	}
	pass.End()

	cmd, err := enc.EndEncoding()
	if err != nil {
		return fmt.Errorf("native: end encoding: %w", err)
	}
	defer d.device.FreeCommandBuffer(cmd)

	if _, err := d.queue.Submit([]hal.CommandBuffer{cmd}); err != nil {
		return fmt.Errorf("native: submit: %w", err)
	}
	if err := d.device.WaitIdle(); err != nil {
		return fmt.Errorf("native: wait idle: %w", err)
	}

	d.frames++
	d.draws += uint64(len(resolved))
	return nil
}

// resolveLocked looks up the resources of every draw and assigns each
// uniform block an aligned offset in the ring buffer.
func (d *Device) resolveLocked(draws []draw) ([]resolvedDraw, uint64, error) {
	resolved := make([]resolvedDraw, 0, len(draws))
	var offset uint64
	for i, dr := range draws {
		p, ok := d.pipelines[dr.pipeline]
		if !ok {
			return nil, 0, fmt.Errorf("%w: draw %d: pipeline %d", gpucore.ErrUnknownResource, i, dr.pipeline)
		}
		vb, ok := d.buffers[dr.vertices]
		if !ok {
			return nil, 0, fmt.Errorf("%w: draw %d: vertex buffer %d", gpucore.ErrUnknownResource, i, dr.vertices)
		}
		ib, ok := d.buffers[dr.indices]
		if !ok {
			return nil, 0, fmt.Errorf("%w: draw %d: index buffer %d", gpucore.ErrUnknownResource, i, dr.indices)
		}
		if uint64(len(dr.uniforms)) < p.desc.UniformSize {
			return nil, 0, fmt.Errorf("native: draw %d: %d uniform bytes, pipeline %q needs %d",
				i, len(dr.uniforms), p.desc.Label, p.desc.UniformSize)
		}
		if uint64(dr.indexCount)*2 > ib.size {
			return nil, 0, fmt.Errorf("native: draw %d: %d indices exceed buffer of %d bytes", i, dr.indexCount, ib.size)
		}

		// Only the pipeline's declared block is uploaded.
		dr.uniforms = dr.uniforms[:p.desc.UniformSize]
		resolved = append(resolved, resolvedDraw{
			draw:     dr,
			pipeline: p,
			vertices: vb,
			indices:  ib,
			offset:   offset,
		})
		offset += alignUp(max(p.desc.UniformSize, 4), uniformAlignment)
	}
	return resolved, offset, nil
}

func (d *Device) bindGroupLocked(r *resolvedDraw) (hal.BindGroup, error) {
	desc := r.pipeline.desc
	entries := make([]gputypes.BindGroupEntry, 0, 1+2*len(desc.Textures))
	entries = append(entries, gputypes.BindGroupEntry{
		Binding: 0,
		Resource: gputypes.BufferBinding{
			Buffer: d.uniforms.raw.NativeHandle(),
			Offset: r.offset,
			Size:   desc.UniformSize,
		},
	})

	for i := range desc.Textures {
		view := d.placeholder.view
		sampler := d.placeholderSampler
		if i < len(r.textures) {
			slot := r.textures[i]
			if slot.tex != gpucore.InvalidID {
				t, ok := d.textures[slot.tex]
				if !ok {
					return nil, fmt.Errorf("%w: texture %d", gpucore.ErrUnknownResource, slot.tex)
				}
				view = t.view
			}
			if slot.sampler != gpucore.InvalidID {
				s, ok := d.samplers[slot.sampler]
				if !ok {
					return nil, fmt.Errorf("%w: sampler %d", gpucore.ErrUnknownResource, slot.sampler)
				}
				sampler = s
			}
		}
		entries = append(entries,
			gputypes.BindGroupEntry{
				Binding:  uint32(1 + 2*i),
				Resource: gputypes.TextureViewBinding{TextureView: view.NativeHandle()},
			},
			gputypes.BindGroupEntry{
				Binding:  uint32(2 + 2*i),
				Resource: gputypes.SamplerBinding{Sampler: sampler.NativeHandle()},
			},
		)
	}

	g, err := d.device.CreateBindGroup(&hal.BindGroupDescriptor{
		Label:   desc.Label,
		Layout:  r.pipeline.groupLayout,
		Entries: entries,
	})
	if err != nil {
		return nil, fmt.Errorf("native: create bind group %q: %w", desc.Label, err)
	}
	return g, nil
}
