// Package atlasmap renders slippy-map raster tiles onto a 3D ground plane
// seen through a tilted, rotatable camera.
//
// # Overview
//
// A Renderer owns a double-buffered Configuration, a tile cache per layer
// and a GPU Backend. Caller goroutines mutate the pending configuration
// through setters and deliver tiles through TileProvider callbacks. The
// rendering goroutine calls RenderFrame, which commits the pending
// configuration, uploads queued tiles, requests missing ones and draws.
//
// # Quick Start
//
//	dev, _ := native.Open(ctx, native.Config{Width: 1280, Height: 720})
//
//	r := atlasmap.NewRenderer(
//	    atlasmap.WithBackend(atlas.New(dev, atlas.DefaultConfig())),
//	    atlasmap.WithRedrawRequest(func() { window.Invalidate() }),
//	)
//	r.SetTileProvider(atlasmap.LayerRaster0, tiles)
//	r.UpdateViewport(image.Pt(1280, 720), image.Rect(0, 0, 1280, 720), 16.5, 400)
//	r.UpdateMap(atlasmap.Point31{X: 1 << 30, Y: 1 << 30}, 4)
//
//	if err := r.InitializeRendering(ctx); err != nil {
//	    return err
//	}
//	defer r.ReleaseRendering()
//
//	for range r.RedrawRequests() {
//	    if err := r.RenderFrame(ctx); err != nil {
//	        return err
//	    }
//	}
//
// # Layers
//
// Every visible tile is composited from up to five layers: an elevation
// layer that displaces the tile mesh and four raster layers blended in order
// with their configured opacity. A layer without a provider or without a
// cached tile contributes nothing.
//
// # Coordinate System
//
// Positions are 31-bit tile coordinates (Point31): the world spans
// [0, 2^31) on both axes, X grows east and Y grows south. The ground plane
// is XZ in world space with Y up and one tile of the base zoom spanning
// tile.Size3D units.
//
// # Sub-packages
//
//   - tile: tile IDs, zoom levels and 31-bit coordinate helpers
//   - cache: the memory-bounded TileZoomCache
//   - style: the cartographic style model and rule evaluator
//   - atlas: the GPU draw pass implementing Backend
//   - gpucore, recording, backend/native: the device abstraction and its implementations
//   - provider/mbtiles, provider/redis: tile providers
package atlasmap
