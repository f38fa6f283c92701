package atlasmap

import "fmt"

// Layer identifies one of the tile layers composited per visible tile.
type Layer int

const (
	// LayerElevation carries height samples that displace the tile mesh.
	LayerElevation Layer = iota

	// LayerRaster0 is the base map. It is drawn opaque below the overlays.
	LayerRaster0

	// LayerRaster1 is the first overlay.
	LayerRaster1

	// LayerRaster2 is the second overlay.
	LayerRaster2

	// LayerRaster3 is the third overlay.
	LayerRaster3
)

const (
	// LayerCount is the number of layers, elevation included.
	LayerCount = 5

	// RasterLayerCount is the number of raster layers.
	RasterLayerCount = LayerCount - 1
)

// Layers returns all layers in compositing order.
func Layers() [LayerCount]Layer {
	return [LayerCount]Layer{LayerElevation, LayerRaster0, LayerRaster1, LayerRaster2, LayerRaster3}
}

// Valid reports whether l is a known layer.
func (l Layer) Valid() bool {
	return l >= 0 && l < LayerCount
}

// IsRaster reports whether l is one of the raster layers.
func (l Layer) IsRaster() bool {
	return l >= LayerRaster0 && l < LayerCount
}

// String returns the layer name.
func (l Layer) String() string {
	switch l {
	case LayerElevation:
		return "Elevation"
	case LayerRaster0:
		return "Raster0"
	case LayerRaster1:
		return "Raster1"
	case LayerRaster2:
		return "Raster2"
	case LayerRaster3:
		return "Raster3"
	default:
		return fmt.Sprintf("Layer(%d)", int(l))
	}
}

// TextureDepth is the preferred color depth of uploaded raster tiles.
type TextureDepth int

const (
	// TextureDepth32 keeps 8 bits per channel.
	TextureDepth32 TextureDepth = iota

	// TextureDepth16 quantizes tiles to 16 bits per pixel before upload.
	TextureDepth16
)

// String returns "16bit" or "32bit".
func (d TextureDepth) String() string {
	if d == TextureDepth16 {
		return "16bit"
	}
	return "32bit"
}

// TextureFiltering selects how raster tiles are sampled.
type TextureFiltering int

const (
	// FilteringTrilinear samples with linear filtering across mip levels.
	FilteringTrilinear TextureFiltering = iota

	// FilteringBilinear samples the base level with linear filtering.
	FilteringBilinear

	// FilteringNearest samples the base level without filtering.
	FilteringNearest
)

// String returns the filtering mode name.
func (f TextureFiltering) String() string {
	switch f {
	case FilteringTrilinear:
		return "Trilinear"
	case FilteringBilinear:
		return "Bilinear"
	case FilteringNearest:
		return "Nearest"
	default:
		return fmt.Sprintf("TextureFiltering(%d)", int(f))
	}
}
