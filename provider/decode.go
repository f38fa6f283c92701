// Package provider holds the tile decoding shared by the tile providers in
// its subpackages.
//
// Raster tiles are decoded from PNG, JPEG or WebP. Elevation tiles use the
// Terrain-RGB encoding: height = -10000 + (R*65536 + G*256 + B) * 0.1 meters.
package provider

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	"math"

	// Registered tile image formats.
	_ "image/jpeg"
	_ "image/png"

	_ "golang.org/x/image/webp"

	"github.com/gogpu/atlasmap"
)

// Terrain-RGB constants.
const (
	terrainBase  = -10000
	terrainScale = 0.1
)

// ErrNotSquare is returned for elevation tiles whose image is not square.
var ErrNotSquare = errors.New("provider: elevation tile is not square")

// Decode decodes an encoded tile image. With elevation set the image is
// interpreted as Terrain-RGB and an *atlasmap.ElevationTile is returned,
// otherwise an atlasmap.RasterTile. Empty data yields (nil, nil), the
// "no tile here" answer of a TileProvider.
func Decode(data []byte, elevation bool) (atlasmap.TileData, error) {
	if len(data) == 0 {
		return nil, nil
	}
	img, format, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("provider: decode tile: %w", err)
	}
	if !elevation {
		return atlasmap.RasterTile{Image: img}, nil
	}
	e, err := TerrainRGB(img)
	if err != nil {
		return nil, fmt.Errorf("provider: %s elevation tile: %w", format, err)
	}
	return e, nil
}

// TerrainRGB converts a Terrain-RGB encoded image to an elevation tile.
func TerrainRGB(img image.Image) (*atlasmap.ElevationTile, error) {
	b := img.Bounds()
	if b.Dx() != b.Dy() {
		return nil, fmt.Errorf("%w: %dx%d", ErrNotSquare, b.Dx(), b.Dy())
	}
	size := b.Dx()
	heights := make([]float32, size*size)
	for y := range size {
		for x := range size {
			r, g, bl, _ := img.At(b.Min.X+x, b.Min.Y+y).RGBA()
			v := (r>>8)<<16 | (g>>8)<<8 | bl>>8
			heights[y*size+x] = float32(terrainBase + float64(v)*terrainScale)
		}
	}
	return &atlasmap.ElevationTile{Size: size, Heights: heights}, nil
}

// EncodeTerrainRGB returns the Terrain-RGB color of a height in meters,
// clamped to the encodable range.
func EncodeTerrainRGB(height float64) (r, g, b uint8) {
	v := int64(math.Round((height - terrainBase) / terrainScale))
	v = min(max(v, 0), 1<<24-1)
	return uint8(v >> 16), uint8(v >> 8), uint8(v)
}
