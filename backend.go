package atlasmap

import (
	"context"

	"github.com/gogpu/atlasmap/cache"
	"github.com/gogpu/atlasmap/tile"
)

// UploadParams controls how a backend stores a tile.
type UploadParams struct {
	Depth      TextureDepth
	AllowAtlas bool
	Filtering  TextureFiltering
}

// Backend is the GPU side of a Renderer.
//
// All methods except Name are called from the rendering goroutine only.
// Implementations live in sub-packages; atlas.Renderer is the standard one.
type Backend interface {
	// Name returns the backend name (e.g., "atlas").
	Name() string

	// Initialize creates the GPU resources needed to draw. A failure leaves
	// the backend unusable.
	Initialize(ctx context.Context) error

	// UploadTile stores decoded tile data on the GPU and returns the cache
	// entry describing it.
	UploadTile(layer Layer, zoom tile.Zoom, id tile.ID, data TileData, params UploadParams) (cache.Tile, error)

	// ReleaseTile frees the GPU storage of a tile evicted from the cache.
	// Empty tiles are passed too and must be ignored.
	ReleaseTile(layer Layer, t cache.Tile)

	// RenderFrame draws one frame.
	RenderFrame(ctx context.Context, f *Frame) error

	// Release destroys all GPU resources. It is called once.
	Release() error
}

// Frame is the read-only input of Backend.RenderFrame.
type Frame struct {
	// Config is the active configuration snapshot.
	Config *Configuration

	// Camera holds the matrices computed from Config.
	Camera Camera

	// VisibleTiles lists the visible tiles at Config.ZoomBase, farthest
	// from the target first. IDs are not normalized: a tile east of the
	// antimeridian keeps its position relative to the target.
	VisibleTiles []tile.ID

	caches *[LayerCount]*cache.TileZoomCache
}

// Tile looks up the cached tile of layer for a visible tile id. ok is false
// on a cache miss or when the provider reported the tile unavailable.
func (f *Frame) Tile(layer Layer, id tile.ID) (t cache.Tile, ok bool) {
	if f.caches == nil || !layer.Valid() || !f.Config.HasProvider(layer) {
		return cache.Tile{}, false
	}
	zoom := f.Config.ZoomBase
	t, ok = f.caches[layer].Get(zoom, tile.Normalize(id, zoom))
	if !ok || t.IsEmpty() {
		return cache.Tile{}, false
	}
	return t, true
}
