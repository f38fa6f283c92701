package atlas

import (
	"encoding/binary"
	"math"
)

// maxPatchesPerSide keeps patch vertex indices within uint16.
const maxPatchesPerSide = 255

// vertexStride is the size of one vec2<f32> vertex.
const vertexStride = 8

// mesh is CPU-side geometry ready for upload.
type mesh struct {
	vertices []byte
	indices  []byte
}

func (m mesh) indexCount() uint32 {
	return uint32(len(m.indices) / 2)
}

// tilePatch builds an n x n grid over the unit square. Vertex positions
// double as texture coordinates, with (0, 0) at the north-west corner.
func tilePatch(n int) mesh {
	n = min(max(n, 1), maxPatchesPerSide)
	side := n + 1

	vertices := make([]byte, 0, side*side*vertexStride)
	for row := range side {
		for col := range side {
			vertices = appendVec2(vertices, float32(col)/float32(n), float32(row)/float32(n))
		}
	}

	indices := make([]byte, 0, n*n*6*2)
	for row := range n {
		for col := range n {
			tl := uint16(row*side + col)
			tr := tl + 1
			bl := tl + uint16(side)
			br := bl + 1
			indices = appendIndices(indices, tl, bl, br, tl, br, tr)
		}
	}
	return mesh{vertices: vertices, indices: indices}
}

// skyQuad is the unit quad of the sky plane.
func skyQuad() mesh {
	var vertices []byte
	for _, v := range [4][2]float32{{-1, -1}, {-1, 1}, {1, 1}, {1, -1}} {
		vertices = appendVec2(vertices, v[0], v[1])
	}
	return mesh{
		vertices: vertices,
		indices:  appendIndices(nil, 0, 1, 2, 0, 2, 3),
	}
}

func appendVec2(b []byte, x, y float32) []byte {
	b = binary.LittleEndian.AppendUint32(b, math.Float32bits(x))
	return binary.LittleEndian.AppendUint32(b, math.Float32bits(y))
}

func appendIndices(b []byte, idx ...uint16) []byte {
	for _, i := range idx {
		b = binary.LittleEndian.AppendUint16(b, i)
	}
	return b
}
