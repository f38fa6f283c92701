package atlasmap

import (
	"context"
	"image"
	"log/slog"
	"sync"

	"github.com/gogpu/atlasmap/cache"
	"github.com/gogpu/atlasmap/gpucore"
	"github.com/gogpu/atlasmap/tile"
)

type fakeUpload struct {
	layer  Layer
	key    cache.Key
	params UploadParams
}

type fakeBackend struct {
	mu          sync.Mutex
	initErr     error
	uploadErr   error
	renderErr   error
	initCalls   int
	releaseCall int
	next        gpucore.TextureID
	uploads     []fakeUpload
	released    []cache.Tile
	frames      []*Frame
	hits        map[Layer]int
	logger      *slog.Logger
}

func newFakeBackend() *fakeBackend {
	return &fakeBackend{hits: make(map[Layer]int)}
}

func (b *fakeBackend) Name() string { return "fake" }

func (b *fakeBackend) SetLogger(l *slog.Logger) {
	b.mu.Lock()
	b.logger = l
	b.mu.Unlock()
}

func (b *fakeBackend) currentLogger() *slog.Logger {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.logger
}

func (b *fakeBackend) Initialize(context.Context) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.initCalls++
	return b.initErr
}

func (b *fakeBackend) UploadTile(layer Layer, zoom tile.Zoom, id tile.ID, _ TileData, params UploadParams) (cache.Tile, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.uploadErr != nil {
		return cache.Tile{}, b.uploadErr
	}
	b.next++
	b.uploads = append(b.uploads, fakeUpload{layer: layer, key: cache.Key{Zoom: zoom, ID: id}, params: params})
	return cache.Tile{Texture: b.next, UsedBytes: 1024, AtlasSlot: -1}, nil
}

func (b *fakeBackend) ReleaseTile(_ Layer, t cache.Tile) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.released = append(b.released, t)
}

func (b *fakeBackend) RenderFrame(_ context.Context, f *Frame) error {
	hits := make(map[Layer]int)
	for _, id := range f.VisibleTiles {
		for _, l := range Layers() {
			if _, ok := f.Tile(l, id); ok {
				hits[l]++
			}
		}
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	b.frames = append(b.frames, f)
	b.hits = hits
	return b.renderErr
}

func (b *fakeBackend) Release() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.releaseCall++
	return nil
}

func (b *fakeBackend) uploadCount() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.uploads)
}

func (b *fakeBackend) releasedCount() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.released)
}

func (b *fakeBackend) lastHits(l Layer) int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.hits[l]
}

// fakeProvider records requests and holds their callbacks until deliver.
type fakeProvider struct {
	mu       sync.Mutex
	requests []cache.Key
	ready    map[cache.Key]TileReadyFunc
}

func newFakeProvider() *fakeProvider {
	return &fakeProvider{ready: make(map[cache.Key]TileReadyFunc)}
}

func (p *fakeProvider) RequestTile(_ context.Context, zoom tile.Zoom, id tile.ID, ready TileReadyFunc) {
	key := cache.Key{Zoom: zoom, ID: id}
	p.mu.Lock()
	p.requests = append(p.requests, key)
	p.ready[key] = ready
	p.mu.Unlock()
}

func (p *fakeProvider) requestCount(key cache.Key) int {
	p.mu.Lock()
	defer p.mu.Unlock()
	n := 0
	for _, k := range p.requests {
		if k == key {
			n++
		}
	}
	return n
}

func (p *fakeProvider) allRequests() []cache.Key {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]cache.Key(nil), p.requests...)
}

func (p *fakeProvider) deliver(key cache.Key, data TileData, err error) bool {
	p.mu.Lock()
	ready, ok := p.ready[key]
	delete(p.ready, key)
	p.mu.Unlock()
	if ok {
		ready(data, err)
	}
	return ok
}

func rasterTile() TileData {
	return RasterTile{image.NewRGBA(image.Rect(0, 0, 256, 256))}
}

// testTarget is the center of tile (100, 200) at zoom 10.
var testTarget = Point31{X: 100<<21 + 1<<20, Y: 200<<21 + 1<<20}

var testTile = tile.ID{X: 100, Y: 200}
