package recording

import (
	"errors"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/gogpu/atlasmap/gpucore"
)

func TestTextureWriteRegion(t *testing.T) {
	d := NewDevice()
	id, err := d.CreateTexture(gpucore.TextureDesc{Label: "t", Width: 4, Height: 4, MipLevels: 2, Format: gpucore.TextureFormatRGBA8Unorm})
	if err != nil {
		t.Fatal(err)
	}

	px := []byte{1, 2, 3, 4, 5, 6, 7, 8}
	if err := d.WriteTexture(id, 0, gpucore.Region{X: 2, Y: 1, Width: 2, Height: 1}, px); err != nil {
		t.Fatalf("WriteTexture() = %v", err)
	}
	data := d.TextureData(id, 0)
	off := (1*4 + 2) * 4
	if diff := cmp.Diff(px, data[off:off+8]); diff != "" {
		t.Errorf("texel mismatch (-want +got):\n%s", diff)
	}

	if err := d.WriteTexture(id, 1, gpucore.Region{Width: 2, Height: 2}, make([]byte, 16)); err != nil {
		t.Errorf("WriteTexture(mip 1) = %v", err)
	}
	if err := d.WriteTexture(id, 1, gpucore.Region{X: 1, Width: 2, Height: 2}, make([]byte, 16)); err == nil {
		t.Error("expected out-of-bounds error")
	}
	if err := d.WriteTexture(id, 0, gpucore.Region{Width: 1, Height: 1}, make([]byte, 3)); err == nil {
		t.Error("expected size mismatch error")
	}
	if err := d.WriteTexture(999, 0, gpucore.Region{}, nil); !errors.Is(err, gpucore.ErrUnknownResource) {
		t.Errorf("WriteTexture(unknown) = %v, want ErrUnknownResource", err)
	}
}

func TestFrameRecording(t *testing.T) {
	d := NewDevice()
	vs, _ := d.CreateShaderModule("vs", "@vertex fn main() {}")
	fs, _ := d.CreateShaderModule("fs", "@fragment fn main() {}")
	p, err := d.CreatePipeline(gpucore.PipelineDesc{Label: "p", VertexModule: vs, FragmentModule: fs})
	if err != nil {
		t.Fatal(err)
	}

	enc, err := d.BeginFrame(gpucore.FrameTarget{Width: 10, Height: 10})
	if err != nil {
		t.Fatal(err)
	}
	if _, err := d.BeginFrame(gpucore.FrameTarget{}); !errors.Is(err, gpucore.ErrFrameInProgress) {
		t.Errorf("second BeginFrame() = %v, want ErrFrameInProgress", err)
	}
	enc.SetPipeline(p)
	enc.SetTexture(0, 5, 6)
	enc.SetUniforms([]byte{1})
	enc.DrawIndexed(6)
	enc.SetTexture(0, 7, 6)
	enc.DrawIndexed(12)
	if err := enc.End(); err != nil {
		t.Fatal(err)
	}

	draws := d.LastFrame().Draws()
	if len(draws) != 2 {
		t.Fatalf("expected 2 draws, got %d", len(draws))
	}
	if draws[0].Textures[0].Texture != 5 || draws[1].Textures[0].Texture != 7 {
		t.Errorf("draws should capture the texture bound at draw time: %+v", draws)
	}
	if draws[1].IndexCount != 12 || draws[1].Pipeline != p {
		t.Errorf("unexpected second draw %+v", draws[1])
	}
	if len(d.LastFrame().DrawsWith(p)) != 2 {
		t.Error("DrawsWith should find both draws")
	}
}

func TestFailOnAndLifecycle(t *testing.T) {
	d := NewDevice()
	d.FailOn("CreateShaderModule", nil)
	if _, err := d.CreateShaderModule("vs", "x"); !errors.Is(err, ErrInjected) {
		t.Errorf("CreateShaderModule() = %v, want ErrInjected", err)
	}

	b, _ := d.CreateBuffer("vbo", 16, gpucore.BufferUsageVertex)
	s, _ := d.CreateSampler(gpucore.SamplerDesc{Label: "linear"})
	if got := d.Live(); got.Buffers != 1 || got.Samplers != 1 {
		t.Errorf("unexpected live counts %+v", got)
	}
	d.DestroySampler(s)
	d.DestroyBuffer(b)
	if got := d.Live().Total(); got != 0 {
		t.Errorf("Live().Total() = %d, want 0", got)
	}

	want := []string{"CreateBuffer vbo", "CreateSampler linear", "DestroySampler linear", "DestroyBuffer vbo"}
	if diff := cmp.Diff(want, d.Ops()); diff != "" {
		t.Errorf("Ops() mismatch (-want +got):\n%s", diff)
	}

	if err := d.Close(); err != nil {
		t.Fatal(err)
	}
	if _, err := d.CreateBuffer("late", 4, gpucore.BufferUsageVertex); !errors.Is(err, gpucore.ErrDeviceClosed) {
		t.Errorf("CreateBuffer after Close = %v, want ErrDeviceClosed", err)
	}
}

func TestMaxFrames(t *testing.T) {
	d := NewDevice()
	d.SetMaxFrames(2)
	for i := range 5 {
		enc, err := d.BeginFrame(gpucore.FrameTarget{Width: uint32(i + 1), Height: 1})
		if err != nil {
			t.Fatal(err)
		}
		if err := enc.End(); err != nil {
			t.Fatal(err)
		}
	}
	frames := d.Frames()
	if len(frames) != 2 {
		t.Fatalf("expected 2 frames, got %d", len(frames))
	}
	if frames[1].Target.Width != 5 {
		t.Errorf("last frame width = %d, want 5", frames[1].Target.Width)
	}
}
