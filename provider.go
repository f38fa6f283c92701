package atlasmap

import (
	"context"
	"image"

	"github.com/gogpu/atlasmap/tile"
)

// TileData is a decoded tile delivered by a TileProvider: a RasterTile or
// an ElevationTile.
type TileData interface {
	Bounds() image.Rectangle
}

// RasterTile is a decoded raster image. Any image.Image is accepted; the
// backend converts it to its upload format.
type RasterTile struct {
	image.Image
}

// ElevationTile is a square grid of height samples in meters, row-major
// from the north-west corner.
type ElevationTile struct {
	Size    int
	Heights []float32
}

// Bounds returns the sample grid rectangle.
func (e *ElevationTile) Bounds() image.Rectangle {
	return image.Rect(0, 0, e.Size, e.Size)
}

// At returns the sample at (x, y), clamping to the grid.
func (e *ElevationTile) At(x, y int) float32 {
	if e.Size == 0 || len(e.Heights) < e.Size*e.Size {
		return 0
	}
	x = min(max(x, 0), e.Size-1)
	y = min(max(y, 0), e.Size-1)
	return e.Heights[y*e.Size+x]
}

// TileReadyFunc receives the result of a tile request. A nil data with a nil
// error means the provider has no tile for that position. Ownership of data
// passes to the renderer.
type TileReadyFunc func(data TileData, err error)

// TileProvider supplies tiles asynchronously.
//
// RequestTile must not block on I/O: it starts the work and returns. ready
// is called at most once, from any goroutine. ctx is canceled when the
// renderer is released; a provider may drop the callback after that.
type TileProvider interface {
	RequestTile(ctx context.Context, zoom tile.Zoom, id tile.ID, ready TileReadyFunc)
}

// TileProviderFunc adapts a function to TileProvider.
type TileProviderFunc func(ctx context.Context, zoom tile.Zoom, id tile.ID, ready TileReadyFunc)

// RequestTile calls f.
func (f TileProviderFunc) RequestTile(ctx context.Context, zoom tile.Zoom, id tile.ID, ready TileReadyFunc) {
	f(ctx, zoom, id, ready)
}
