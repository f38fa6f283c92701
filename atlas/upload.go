package atlas

import (
	"encoding/binary"
	"image"
	"math"

	xdraw "golang.org/x/image/draw"

	"github.com/gogpu/atlasmap"
	"github.com/gogpu/atlasmap/gpucore"
)

// texels is tile data converted for upload: a square image with its mip
// chain, level 0 first.
type texels struct {
	size   int // level 0 edge length
	format gpucore.TextureFormat
	levels [][]byte
}

// rasterImage converts img to a square straight-alpha NRGBA image of edge
// size, scaling it bilinearly when it is not square.
func rasterImage(img image.Image) *image.NRGBA {
	b := img.Bounds()
	size := max(b.Dx(), b.Dy())
	dst := image.NewNRGBA(image.Rect(0, 0, size, size))
	if b.Dx() == b.Dy() {
		xdraw.Draw(dst, dst.Bounds(), img, b.Min, xdraw.Src)
	} else {
		xdraw.BiLinear.Scale(dst, dst.Bounds(), img, b, xdraw.Src, nil)
	}
	return dst
}

// quantize16 reduces img to the precision of a 16-bit texture: ARGB4444
// when any texel is translucent, RGB565 otherwise.
func quantize16(img *image.NRGBA) {
	translucent := false
	for i := 3; i < len(img.Pix); i += 4 {
		if img.Pix[i] != 0xff {
			translucent = true
			break
		}
	}
	for i := 0; i+3 < len(img.Pix); i += 4 {
		px := img.Pix[i : i+4 : i+4]
		if translucent {
			px[0], px[1], px[2], px[3] = quantize(px[0], 4), quantize(px[1], 4), quantize(px[2], 4), quantize(px[3], 4)
		} else {
			px[0], px[1], px[2] = quantize(px[0], 5), quantize(px[1], 6), quantize(px[2], 5)
		}
	}
}

// quantize rounds v to the nearest value representable with n bits and
// expands it back to 8 bits.
func quantize(v uint8, n uint) uint8 {
	levels := uint32(1)<<n - 1
	q := (uint32(v)*levels + 127) / 255
	return uint8((q*255 + levels/2) / levels)
}

// padImage returns img surrounded by pad texels replicating its edges.
func padImage(img *image.NRGBA, pad int) *image.NRGBA {
	if pad <= 0 {
		return img
	}
	size := img.Bounds().Dx()
	out := image.NewNRGBA(image.Rect(0, 0, size+2*pad, size+2*pad))
	for y := range size + 2*pad {
		sy := min(max(y-pad, 0), size-1)
		for x := range size + 2*pad {
			sx := min(max(x-pad, 0), size-1)
			copy(out.Pix[out.PixOffset(x, y):out.PixOffset(x, y)+4], img.Pix[img.PixOffset(sx, sy):img.PixOffset(sx, sy)+4])
		}
	}
	return out
}

// mipChain returns levels images, each half the size of the previous one.
func mipChain(base *image.NRGBA, levels uint32) [][]byte {
	out := make([][]byte, 0, levels)
	out = append(out, base.Pix)
	prev := base
	for range max(levels, 1) - 1 {
		size := max(prev.Bounds().Dx()/2, 1)
		next := image.NewNRGBA(image.Rect(0, 0, size, size))
		xdraw.BiLinear.Scale(next, next.Bounds(), prev, prev.Bounds(), xdraw.Src, nil)
		out = append(out, next.Pix)
		prev = next
	}
	return out
}

// prepareRaster converts a raster tile for upload.
func prepareRaster(img image.Image, depth atlasmap.TextureDepth, pad int, levels uint32) texels {
	base := rasterImage(img)
	if depth == atlasmap.TextureDepth16 {
		quantize16(base)
	}
	padded := padImage(base, pad)
	return texels{
		size:   padded.Bounds().Dx(),
		format: gpucore.TextureFormatRGBA8Unorm,
		levels: mipChain(padded, levels),
	}
}

// prepareElevation converts a heightmap to little-endian R32Float texels
// surrounded by pad replicated samples.
func prepareElevation(e *atlasmap.ElevationTile, pad int) texels {
	size := e.Size + 2*pad
	data := make([]byte, size*size*4)
	for y := range size {
		for x := range size {
			h := e.At(x-pad, y-pad)
			binary.LittleEndian.PutUint32(data[(y*size+x)*4:], math.Float32bits(h))
		}
	}
	return texels{
		size:   size,
		format: gpucore.TextureFormatR32Float,
		levels: [][]byte{data},
	}
}

// write uploads every level of tx to the square region of edge tx.size at
// (x, y) of texture id.
func (tx texels) write(dev gpucore.Device, id gpucore.TextureID, x, y int) error {
	for level, data := range tx.levels {
		size := uint32(max(tx.size>>level, 1))
		region := gpucore.Region{
			X:      uint32(x >> level),
			Y:      uint32(y >> level),
			Width:  size,
			Height: size,
		}
		if err := dev.WriteTexture(id, uint32(level), region, data); err != nil {
			return err
		}
	}
	return nil
}
