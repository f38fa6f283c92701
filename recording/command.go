package recording

import (
	"fmt"

	"github.com/gogpu/atlasmap/gpucore"
)

// CommandType identifies the type of a recorded pass command.
type CommandType uint8

const (
	CmdSetViewport CommandType = iota
	CmdSetPipeline
	CmdSetUniforms
	CmdSetTexture
	CmdSetVertexBuffer
	CmdSetIndexBuffer
	CmdDrawIndexed
)

var commandTypeNames = [...]string{
	CmdSetViewport:     "SetViewport",
	CmdSetPipeline:     "SetPipeline",
	CmdSetUniforms:     "SetUniforms",
	CmdSetTexture:      "SetTexture",
	CmdSetVertexBuffer: "SetVertexBuffer",
	CmdSetIndexBuffer:  "SetIndexBuffer",
	CmdDrawIndexed:     "DrawIndexed",
}

// String returns the command name.
func (t CommandType) String() string {
	if int(t) < len(commandTypeNames) {
		return commandTypeNames[t]
	}
	return fmt.Sprintf("CommandType(%d)", uint8(t))
}

// Command is one recorded pass command. Only the fields relevant to Type
// are set.
type Command struct {
	Type       CommandType
	Viewport   gpucore.Viewport
	Pipeline   gpucore.PipelineID
	Uniforms   []byte
	Slot       int
	Texture    gpucore.TextureID
	Sampler    gpucore.SamplerID
	Buffer     gpucore.BufferID
	IndexCount uint32
}

// TextureState is a texture binding captured by a draw.
type TextureState struct {
	Texture gpucore.TextureID
	Sampler gpucore.SamplerID
}

// Draw is the complete state of one indexed draw call.
type Draw struct {
	Viewport     gpucore.Viewport
	Pipeline     gpucore.PipelineID
	Uniforms     []byte
	Textures     map[int]TextureState
	VertexBuffer gpucore.BufferID
	IndexBuffer  gpucore.BufferID
	IndexCount   uint32
}

// Frame is one recorded frame.
type Frame struct {
	Target   gpucore.FrameTarget
	Commands []Command
}

// Draws replays the commands and returns the state of every draw call.
func (f *Frame) Draws() []Draw {
	var (
		draws []Draw
		cur   = Draw{Textures: make(map[int]TextureState)}
	)
	for _, c := range f.Commands {
		switch c.Type {
		case CmdSetViewport:
			cur.Viewport = c.Viewport
		case CmdSetPipeline:
			cur.Pipeline = c.Pipeline
		case CmdSetUniforms:
			cur.Uniforms = c.Uniforms
		case CmdSetTexture:
			cur.Textures[c.Slot] = TextureState{Texture: c.Texture, Sampler: c.Sampler}
		case CmdSetVertexBuffer:
			cur.VertexBuffer = c.Buffer
		case CmdSetIndexBuffer:
			cur.IndexBuffer = c.Buffer
		case CmdDrawIndexed:
			d := cur
			d.IndexCount = c.IndexCount
			d.Textures = make(map[int]TextureState, len(cur.Textures))
			for k, v := range cur.Textures {
				d.Textures[k] = v
			}
			draws = append(draws, d)
		}
	}
	return draws
}

// DrawsWith returns the draws issued with the given pipeline.
func (f *Frame) DrawsWith(pipeline gpucore.PipelineID) []Draw {
	var out []Draw
	for _, d := range f.Draws() {
		if d.Pipeline == pipeline {
			out = append(out, d)
		}
	}
	return out
}
