package atlasmap

import (
	"context"
	"errors"
	"fmt"

	"github.com/gogpu/atlasmap/cache"
	"github.com/gogpu/atlasmap/tile"
)

// pendingTile is a delivered tile waiting for upload.
type pendingTile struct {
	layer      Layer
	key        cache.Key
	data       TileData
	generation uint64
}

// EnqueueTile queues decoded tile data for upload on the next frame. nil
// data records the tile as unavailable. It reports whether the tile was
// queued; a tile already waiting for upload is dropped.
//
// Providers normally deliver tiles through the TileReadyFunc passed to
// RequestTile. EnqueueTile serves providers that push tiles unasked.
func (r *Renderer) EnqueueTile(layer Layer, zoom tile.Zoom, id tile.ID, data TileData) bool {
	if !layer.Valid() {
		return false
	}
	gen := r.active.Load().generation[layer]
	return r.enqueue(layer, cache.Key{Zoom: zoom, ID: tile.Normalize(id, zoom)}, data, gen)
}

// readyFunc returns the callback for one tile request.
func (r *Renderer) readyFunc(layer Layer, key cache.Key, gen uint64) TileReadyFunc {
	return func(data TileData, err error) {
		if err != nil {
			if r.State() != StateRendering || errors.Is(err, context.Canceled) {
				return
			}
			Logger().Warn("tile request failed",
				"layer", layer, "zoom", key.Zoom, "tile", key.ID, "err", err)
			data = nil
		}
		r.enqueue(layer, key, data, gen)
	}
}

func (r *Renderer) enqueue(layer Layer, key cache.Key, data TileData, gen uint64) bool {
	if r.State() == StateReleased {
		return false
	}
	active := r.active.Load()

	r.queueMu.Lock()
	if g, ok := r.requested[layer][key]; ok && g == gen {
		delete(r.requested[layer], key)
	}
	if gen != active.generation[layer] {
		r.queueMu.Unlock()
		Logger().Debug("stale tile dropped", "layer", layer, "zoom", key.Zoom, "tile", key.ID)
		return false
	}
	if _, dup := r.queued[layer][key]; dup {
		r.queueMu.Unlock()
		Logger().Debug("duplicate tile dropped", "layer", layer, "zoom", key.Zoom, "tile", key.ID)
		return false
	}
	r.queued[layer][key] = struct{}{}
	r.queue = append(r.queue, pendingTile{layer: layer, key: key, data: data, generation: gen})
	r.queueMu.Unlock()

	r.requestRedraw()
	return true
}

// PendingTilesCount returns the number of tiles waiting for upload.
func (r *Renderer) PendingTilesCount() int {
	r.queueMu.Lock()
	defer r.queueMu.Unlock()
	return len(r.queue)
}

// takePending removes up to limit current-generation tiles from the queue
// (all when limit is zero) and returns them with the number left behind.
func (r *Renderer) takePending(cfg *Configuration, limit int) ([]pendingTile, int) {
	r.queueMu.Lock()
	defer r.queueMu.Unlock()

	var items []pendingTile
	n := 0
	for n < len(r.queue) && (limit == 0 || len(items) < limit) {
		it := r.queue[n]
		n++
		delete(r.queued[it.layer], it.key)
		if it.generation != cfg.generation[it.layer] {
			continue
		}
		items = append(items, it)
	}
	rest := copy(r.queue, r.queue[n:])
	clear(r.queue[rest:])
	r.queue = r.queue[:rest]
	return items, rest
}

// UpdateTilesCache applies pending cache invalidation and uploads queued
// tiles into the cache. RenderFrame calls it.
func (r *Renderer) UpdateTilesCache(ctx context.Context) error {
	r.stateMu.Lock()
	defer r.stateMu.Unlock()
	if err := r.checkRendering(); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	return r.updateTilesCache(r.active.Load())
}

func (r *Renderer) updateTilesCache(cfg *Configuration) error {
	items, remaining := r.takePending(cfg, cfg.Options.MaxTileUploadsPerFrame)

	r.cacheMu.Lock()
	defer r.cacheMu.Unlock()

	for l, purge := range r.purge {
		if purge {
			r.caches[l].Purge()
			r.purge[l] = false
			Logger().Debug("tile cache purged", "layer", Layer(l))
		}
	}

	params := UploadParams{
		Depth:      cfg.EffectiveTextureDepth(),
		AllowAtlas: cfg.Options.AllowAtlasTextures,
		Filtering:  cfg.Options.TextureFiltering,
	}
	var errs []error
	for _, it := range items {
		t := cache.Tile{AtlasSlot: -1}
		if it.data != nil {
			up, err := r.backend.UploadTile(it.layer, it.key.Zoom, it.key.ID, it.data, params)
			if err != nil {
				errs = append(errs, fmt.Errorf("atlasmap: upload %s tile %d/%s: %w", it.layer, it.key.Zoom, it.key.ID, err))
			} else {
				t = up
			}
		}
		r.caches[it.layer].Insert(it.key.Zoom, it.key.ID, t)
		Logger().Debug("tile cached", "layer", it.layer, "zoom", it.key.Zoom, "tile", it.key.ID, "bytes", t.UsedBytes)
	}

	if remaining > 0 {
		r.requestRedraw()
	}
	if err := errors.Join(errs...); err != nil {
		Logger().Error("tile upload failed", "err", err)
		return err
	}
	return nil
}

// InvalidateTileCache drops every cached tile on the next UpdateTilesCache.
func (r *Renderer) InvalidateTileCache() {
	r.cacheMu.Lock()
	for l := range r.purge {
		r.purge[l] = true
	}
	r.cacheMu.Unlock()
	r.requestRedraw()
}

// requestMissingTiles asks each layer's provider for visible tiles that
// are neither cached, queued nor already requested, nearest first.
func (r *Renderer) requestMissingTiles(cfg *Configuration) {
	zoom := cfg.ZoomBase
	seen := make(map[tile.ID]struct{}, len(r.visible))
	ids := make([]tile.ID, 0, len(r.visible))
	for i := len(r.visible) - 1; i >= 0; i-- {
		id := tile.Normalize(r.visible[i], zoom)
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		ids = append(ids, id)
	}

	for l, p := range cfg.Providers {
		if p == nil {
			continue
		}
		layer := Layer(l)
		gen := cfg.generation[l]
		for _, id := range ids {
			if r.caches[l].Contains(zoom, id) {
				continue
			}
			key := cache.Key{Zoom: zoom, ID: id}
			r.queueMu.Lock()
			_, queued := r.queued[l][key]
			_, inFlight := r.requested[l][key]
			if !queued && !inFlight {
				r.requested[l][key] = gen
			}
			r.queueMu.Unlock()
			if queued || inFlight {
				continue
			}
			Logger().Debug("tile requested", "layer", layer, "zoom", zoom, "tile", id)
			p.RequestTile(r.ctx, zoom, id, r.readyFunc(layer, key, gen))
		}
	}
}

// forgetRequests drops in-flight bookkeeping of a layer whose provider was
// replaced.
func (r *Renderer) forgetRequests(layer Layer) {
	r.queueMu.Lock()
	clear(r.requested[layer])
	r.queueMu.Unlock()
}

// cleanupCache drops the tiles of layers without a provider and, with
// AggressiveCacheCleanup, tiles that left the visible set.
func (r *Renderer) cleanupCache(cfg *Configuration, visible map[tile.ID]struct{}) {
	r.cacheMu.Lock()
	defer r.cacheMu.Unlock()

	for l, c := range r.caches {
		switch {
		case cfg.Providers[l] == nil:
			if c.Len() > 0 {
				c.Purge()
			}
		case cfg.Options.AggressiveCacheCleanup:
			c.RemoveIf(func(k cache.Key, _ cache.Tile) bool {
				if k.Zoom != cfg.ZoomBase {
					return true
				}
				_, ok := visible[k.ID]
				return !ok
			})
		}
	}
}
