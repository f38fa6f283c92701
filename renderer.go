package atlasmap

import (
	"context"
	"fmt"
	"image"
	"slices"
	"sync"
	"sync/atomic"

	"github.com/gogpu/atlasmap/cache"
	"github.com/gogpu/atlasmap/tile"
)

// State is the lifecycle state of a Renderer.
type State int32

const (
	// StateUninitialized is the state of a new renderer.
	StateUninitialized State = iota

	// StateRendering is entered by a successful InitializeRendering.
	StateRendering

	// StateReleased is terminal.
	StateReleased
)

// String returns the state name.
func (s State) String() string {
	switch s {
	case StateUninitialized:
		return "Uninitialized"
	case StateRendering:
		return "Rendering"
	case StateReleased:
		return "Released"
	default:
		return fmt.Sprintf("State(%d)", int32(s))
	}
}

// Option configures a Renderer during creation.
type Option func(*rendererOptions)

type rendererOptions struct {
	backend     Backend
	budget      uint64
	minRetained int
	redraw      func()
	options     Options
}

func defaultRendererOptions() rendererOptions {
	cfg := cache.DefaultConfig()
	return rendererOptions{
		budget:      cfg.BudgetBytes,
		minRetained: cfg.MinRetained,
		options:     DefaultOptions(),
	}
}

// WithBackend sets the GPU backend.
func WithBackend(b Backend) Option {
	return func(o *rendererOptions) {
		o.backend = b
	}
}

// WithCacheBudget sets the memory budget of each layer's tile cache.
// Zero means unlimited.
func WithCacheBudget(bytes uint64) Option {
	return func(o *rendererOptions) {
		o.budget = bytes
	}
}

// WithMinRetainedTiles sets the per-layer tile count eviction never goes
// below.
func WithMinRetainedTiles(n int) Option {
	return func(o *rendererOptions) {
		o.minRetained = n
	}
}

// WithOptions sets the initial renderer options.
func WithOptions(opts Options) Option {
	return func(o *rendererOptions) {
		o.options = opts
	}
}

// WithRedrawRequest installs the redraw request callback.
// See SetRedrawRequestCallback.
func WithRedrawRequest(fn func()) Option {
	return func(o *rendererOptions) {
		o.redraw = fn
	}
}

// Renderer draws tiled map layers through a Backend.
//
// Setters, EnqueueTile and provider callbacks may be called from any
// goroutine. InitializeRendering, RenderFrame, UpdateConfiguration,
// UpdateTilesCache and ReleaseRendering belong to the rendering goroutine.
type Renderer struct {
	backend   Backend
	backendID uint64

	// stateMu serializes the rendering goroutine operations.
	stateMu sync.Mutex
	state   atomic.Int32
	ctx     context.Context
	cancel  context.CancelFunc

	// Pending configuration, guarded by configMu.
	configMu       sync.Mutex
	pending        Configuration
	dirty          bool
	invalidate     [LayerCount]bool
	invalidateAll  bool
	active         atomic.Pointer[Configuration]
	camera         Camera
	visible        []tile.ID
	lastFrame      atomic.Pointer[Frame]
	redrawMu       sync.Mutex
	redraw         func()
	redrawArmed    atomic.Bool
	redrawRequests chan struct{}

	// Pending-to-cache queue, guarded by queueMu.
	queueMu   sync.Mutex
	queue     []pendingTile
	queued    [LayerCount]map[cache.Key]struct{}
	requested [LayerCount]map[cache.Key]uint64

	// cacheMu orders cache invalidation against uploads.
	cacheMu sync.Mutex
	purge   [LayerCount]bool
	caches  [LayerCount]*cache.TileZoomCache
}

// NewRenderer creates a renderer with the default configuration.
func NewRenderer(opts ...Option) *Renderer {
	o := defaultRendererOptions()
	for _, opt := range opts {
		opt(&o)
	}

	r := &Renderer{
		backend:        o.backend,
		redraw:         o.redraw,
		redrawRequests: make(chan struct{}, 1),
	}
	r.pending = DefaultConfiguration()
	r.pending.Options = o.options
	r.dirty = true
	active := r.pending
	r.active.Store(&active)

	for l := range LayerCount {
		layer := Layer(l)
		r.queued[l] = make(map[cache.Key]struct{})
		r.requested[l] = make(map[cache.Key]uint64)
		r.caches[l] = cache.New(cache.Config{
			BudgetBytes: o.budget,
			MinRetained: o.minRetained,
			OnEvict: func(_ cache.Key, t cache.Tile) {
				r.releaseTile(layer, t)
			},
		})
	}
	return r
}

// State returns the lifecycle state.
func (r *Renderer) State() State {
	return State(r.state.Load())
}

// Backend returns the renderer's backend, nil if none was set.
func (r *Renderer) Backend() Backend {
	return r.backend
}

// SetRedrawRequestCallback installs fn, replacing any previous callback.
// fn is called at most once per batch of changes between two frames and
// must not block. Pass nil to remove the callback.
func (r *Renderer) SetRedrawRequestCallback(fn func()) {
	r.redrawMu.Lock()
	r.redraw = fn
	r.redrawMu.Unlock()
}

// RedrawRequests returns a channel receiving a value whenever a redraw is
// requested. Requests coalesce while the channel is full.
func (r *Renderer) RedrawRequests() <-chan struct{} {
	return r.redrawRequests
}

// requestRedraw notifies the consumer once until the next frame starts.
func (r *Renderer) requestRedraw() {
	if !r.redrawArmed.CompareAndSwap(false, true) {
		return
	}
	r.redrawMu.Lock()
	fn := r.redraw
	r.redrawMu.Unlock()
	if fn != nil {
		fn()
	}
	select {
	case r.redrawRequests <- struct{}{}:
	default:
	}
}

// update applies fn to the pending configuration and requests a redraw if
// fn reports a change.
func (r *Renderer) update(fn func(c *Configuration) bool) bool {
	r.configMu.Lock()
	changed := fn(&r.pending)
	if changed {
		r.dirty = true
	}
	r.configMu.Unlock()

	if changed {
		r.requestRedraw()
	}
	return changed
}

// SetTileProvider sets the tile provider of a layer. nil disables the
// layer. The layer's cached tiles are dropped on the next frame and
// callbacks still in flight from the previous provider are ignored.
func (r *Renderer) SetTileProvider(layer Layer, p TileProvider) error {
	if !layer.Valid() {
		return fmt.Errorf("%w: %d", ErrInvalidLayer, int(layer))
	}
	r.update(func(c *Configuration) bool {
		c.Providers[layer] = p
		c.generation[layer]++
		r.invalidate[layer] = true
		return true
	})
	return nil
}

// SetPreferredTextureDepth sets the raster tile depth. A change drops all
// cached tiles.
func (r *Renderer) SetPreferredTextureDepth(d TextureDepth) {
	r.update(func(c *Configuration) bool {
		if c.TextureDepth == d {
			return false
		}
		c.TextureDepth = d
		r.invalidateAll = true
		return true
	})
}

// UpdateViewport sets the window size, the viewport inside it, the
// vertical field of view in degrees and the fog distance.
func (r *Renderer) UpdateViewport(window image.Point, viewport image.Rectangle, fov, fogDistance float32) {
	r.update(func(c *Configuration) bool {
		fov = clamp(fov, epsilon, 90)
		fogDistance = max(fogDistance, epsilon)
		if c.WindowSize == window && c.Viewport == viewport &&
			fuzzyEqual(c.FieldOfView, fov) && fuzzyEqual(c.Fog.Distance, fogDistance) {
			return false
		}
		c.WindowSize = window
		c.Viewport = viewport
		c.FieldOfView = fov
		c.Fog.Distance = fogDistance
		return true
	})
}

// UpdateCamera sets the camera distance from the target (zero for the
// automatic distance), the azimuth and the elevation angle in degrees.
func (r *Renderer) UpdateCamera(distance, azimuth, elevation float32) {
	r.update(func(c *Configuration) bool {
		distance = max(distance, 0)
		azimuth = normalizeDegrees(azimuth)
		elevation = clamp(elevation, epsilon, 90)
		if fuzzyEqual(c.DistanceFromTarget, distance) &&
			fuzzyEqual(c.Azimuth, azimuth) && fuzzyEqual(c.ElevationAngle, elevation) {
			return false
		}
		c.DistanceFromTarget = distance
		c.Azimuth = azimuth
		c.ElevationAngle = elevation
		return true
	})
}

// UpdateMap sets the target position and the fractional zoom.
func (r *Renderer) UpdateMap(target Point31, zoom float32) {
	r.update(func(c *Configuration) bool {
		target = target.Wrap()
		changed := c.Target != target
		c.Target = target
		if c.setZoom(zoom) {
			changed = true
		}
		return changed
	})
}

// SetLayerOpacity sets the blend weight of a raster layer, clamped to
// [0, 1].
func (r *Renderer) SetLayerOpacity(layer Layer, opacity float32) error {
	if !layer.IsRaster() {
		return fmt.Errorf("%w: %s has no opacity", ErrInvalidLayer, layer)
	}
	r.update(func(c *Configuration) bool {
		opacity = clamp(opacity, 0, 1)
		if fuzzyEqual(c.LayerOpacity[layer], opacity) {
			return false
		}
		c.LayerOpacity[layer] = opacity
		return true
	})
	return nil
}

// SetElevationScale sets the elevation sample multiplier.
func (r *Renderer) SetElevationScale(scale float32) {
	r.update(func(c *Configuration) bool {
		if fuzzyEqual(c.ElevationScale, scale) {
			return false
		}
		c.ElevationScale = scale
		return true
	})
}

// SetFog sets the fog parameters. Out of range values are clamped.
func (r *Renderer) SetFog(f FogParams) {
	r.update(func(c *Configuration) bool {
		f = f.clamped()
		if c.Fog == f {
			return false
		}
		c.Fog = f
		return true
	})
}

// SetSkyColor sets the sky color.
func (r *Renderer) SetSkyColor(rgb [3]float32) {
	r.update(func(c *Configuration) bool {
		for i := range rgb {
			rgb[i] = clamp(rgb[i], 0, 1)
		}
		if c.SkyColor == rgb {
			return false
		}
		c.SkyColor = rgb
		return true
	})
}

// SetOptions replaces the renderer options. Changing how tiles are
// uploaded drops all cached tiles.
func (r *Renderer) SetOptions(o Options) {
	r.update(func(c *Configuration) bool {
		o.HeightmapPatchesPerSide = max(o.HeightmapPatchesPerSide, 1)
		o.MaxTileUploadsPerFrame = max(o.MaxTileUploadsPerFrame, 0)
		if c.Options == o {
			return false
		}
		if o.invalidatesTiles(c.Options) {
			r.invalidateAll = true
		}
		c.Options = o
		return true
	})
}

// ActiveConfiguration returns a copy of the configuration used by the
// last committed frame.
func (r *Renderer) ActiveConfiguration() Configuration {
	return *r.active.Load()
}

// PendingConfiguration returns a copy of the configuration the next frame
// will commit.
func (r *Renderer) PendingConfiguration() Configuration {
	r.configMu.Lock()
	defer r.configMu.Unlock()
	return r.pending
}

// VisibleTiles returns the visible tiles of the last rendered frame,
// farthest from the target first.
func (r *Renderer) VisibleTiles() []tile.ID {
	f := r.lastFrame.Load()
	if f == nil {
		return nil
	}
	return slices.Clone(f.VisibleTiles)
}

// CachedTilesCount returns the number of cached tiles over all layers.
func (r *Renderer) CachedTilesCount() int {
	n := 0
	for _, c := range r.caches {
		n += c.Len()
	}
	return n
}

// CacheStats returns the cache statistics of a layer.
func (r *Renderer) CacheStats(layer Layer) cache.Stats {
	if !layer.Valid() {
		return cache.Stats{}
	}
	return r.caches[layer].Stats()
}

// InitializeRendering prepares the backend. It must be called once before
// RenderFrame.
func (r *Renderer) InitializeRendering(ctx context.Context) error {
	r.stateMu.Lock()
	defer r.stateMu.Unlock()

	switch r.State() {
	case StateRendering:
		return ErrAlreadyInitialized
	case StateReleased:
		return ErrReleased
	}
	if r.backend == nil {
		return ErrNoBackend
	}
	if err := r.backend.Initialize(ctx); err != nil {
		Logger().Error("backend initialization failed", "backend", r.backend.Name(), "err", err)
		return fmt.Errorf("atlasmap: initialize %s backend: %w", r.backend.Name(), err)
	}

	r.ctx, r.cancel = context.WithCancel(context.WithoutCancel(ctx))
	r.backendID = attachBackend(r.backend)
	r.state.Store(int32(StateRendering))
	Logger().Info("rendering initialized", "backend", r.backend.Name())

	r.requestRedraw()
	return nil
}

// UpdateConfiguration commits the pending configuration if it changed and
// recomputes the camera and the visible tiles. It reports whether a new
// configuration was committed. RenderFrame calls it.
func (r *Renderer) UpdateConfiguration() bool {
	r.stateMu.Lock()
	defer r.stateMu.Unlock()
	return r.updateConfiguration()
}

func (r *Renderer) updateConfiguration() bool {
	r.configMu.Lock()
	if !r.dirty {
		r.configMu.Unlock()
		return false
	}
	cfg := r.pending
	invalidate, all := r.invalidate, r.invalidateAll
	r.invalidate = [LayerCount]bool{}
	r.invalidateAll = false
	r.dirty = false
	r.configMu.Unlock()

	prev := r.active.Swap(&cfg)

	r.cacheMu.Lock()
	for l := range LayerCount {
		if all || invalidate[l] {
			r.purge[l] = true
		}
	}
	r.cacheMu.Unlock()

	for l := range LayerCount {
		if prev == nil || prev.generation[l] != cfg.generation[l] {
			r.forgetRequests(Layer(l))
		}
	}

	r.camera = computeCamera(&cfg)
	r.visible = visibleTiles(&cfg, &r.camera)
	Logger().Debug("configuration committed",
		"zoom", cfg.Zoom, "azimuth", cfg.Azimuth, "elevation", cfg.ElevationAngle,
		"visible", len(r.visible))
	return true
}

// RenderFrame commits the configuration, uploads queued tiles, requests
// missing tiles and draws one frame.
func (r *Renderer) RenderFrame(ctx context.Context) error {
	r.stateMu.Lock()
	defer r.stateMu.Unlock()

	if err := r.checkRendering(); err != nil {
		return err
	}
	r.redrawArmed.Store(false)

	r.updateConfiguration()
	cfg := r.active.Load()

	if err := r.updateTilesCache(cfg); err != nil {
		return err
	}

	unique := uniqueTiles(r.visible, cfg.ZoomBase)
	r.requestMissingTiles(cfg)

	frame := &Frame{
		Config:       cfg,
		Camera:       r.camera,
		VisibleTiles: r.visible,
		caches:       &r.caches,
	}
	r.lastFrame.Store(frame)

	err := r.backend.RenderFrame(ctx, frame)
	r.cleanupCache(cfg, unique)
	if err != nil {
		Logger().Error("frame failed", "backend", r.backend.Name(), "err", err)
		return fmt.Errorf("atlasmap: render frame: %w", err)
	}
	return nil
}

// ReleaseRendering releases all cached tiles and the backend's GPU
// resources. It is idempotent; the renderer cannot be initialized again.
func (r *Renderer) ReleaseRendering() error {
	r.stateMu.Lock()
	defer r.stateMu.Unlock()

	state := r.State()
	if state == StateReleased {
		return nil
	}

	var err error
	if state == StateRendering {
		r.cancel()
		r.cacheMu.Lock()
		for _, c := range r.caches {
			c.Purge()
		}
		r.purge = [LayerCount]bool{}
		r.cacheMu.Unlock()

		err = r.backend.Release()
		detachBackend(r.backendID)
	}

	r.queueMu.Lock()
	r.queue = nil
	for l := range LayerCount {
		clear(r.queued[l])
		clear(r.requested[l])
	}
	r.queueMu.Unlock()

	r.state.Store(int32(StateReleased))
	Logger().Info("rendering released")
	if err != nil {
		return fmt.Errorf("atlasmap: release backend: %w", err)
	}
	return nil
}

func (r *Renderer) checkRendering() error {
	switch r.State() {
	case StateUninitialized:
		return ErrNotInitialized
	case StateReleased:
		return ErrReleased
	}
	return nil
}

func (r *Renderer) releaseTile(layer Layer, t cache.Tile) {
	if t.IsEmpty() || r.backend == nil || r.State() != StateRendering {
		return
	}
	r.backend.ReleaseTile(layer, t)
}
