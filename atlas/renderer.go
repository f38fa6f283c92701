package atlas

import (
	"context"
	"errors"
	"fmt"
	"image"
	"log/slog"
	"sync"
	"sync/atomic"

	"github.com/gogpu/atlasmap"
	"github.com/gogpu/atlasmap/cache"
	"github.com/gogpu/atlasmap/gpucore"
	"github.com/gogpu/atlasmap/tile"
)

// Config configures the atlas renderer.
type Config struct {
	// AtlasSize is the maximum edge length of an atlas texture.
	AtlasSize int

	// AtlasPadding is the number of replicated edge texels around each
	// packed tile.
	AtlasPadding int

	// MaxAtlasTexturesPerPool bounds the atlas textures of one pool. Tiles
	// that do not fit get standalone textures.
	MaxAtlasTexturesPerPool int
}

// DefaultConfig returns a 2048 texel atlas with 4 texels of padding and
// up to 8 atlas textures per pool.
func DefaultConfig() Config {
	return Config{
		AtlasSize:               2048,
		AtlasPadding:            4,
		MaxAtlasTexturesPerPool: 8,
	}
}

// FrameStats describes the last rendered frame.
type FrameStats struct {
	// TilesDrawn is the number of tile patches drawn.
	TilesDrawn int

	// TilesMissing counts drawn tiles without raster data in any layer.
	// They are drawn with zero layer weights over the placeholder texture.
	TilesMissing int

	// PatchesPerSide is the tile patch grid resolution.
	PatchesPerSide int
}

// PoolStats describes one texture pool.
type PoolStats struct {
	Layer     atlasmap.Layer
	TileSize  int
	MipLevels uint32
	Textures  int
	UsedSlots int
	Capacity  int
}

type rendererState int

const (
	stateCreated rendererState = iota
	stateReady
	stateReleased
)

// stage is one render pass stage: a pipeline with its own geometry.
type stage struct {
	label      string
	module     gpucore.ShaderModuleID
	pipeline   gpucore.PipelineID
	vertices   gpucore.BufferID
	indices    gpucore.BufferID
	indexCount uint32
}

// Renderer is the atlas backend. It implements atlasmap.Backend.
type Renderer struct {
	dev    gpucore.Device
	cfg    Config
	logger atomic.Pointer[slog.Logger]

	mu               sync.Mutex
	state            rendererState
	sky              stage
	terrain          stage
	samplers         [3]gpucore.SamplerID // indexed by atlasmap.TextureFiltering
	elevationSampler gpucore.SamplerID
	patchesPerSide   int

	pools      []*pool
	poolIndex  map[poolKey]int
	standalone map[gpucore.TextureID]uint32 // texture -> mip levels

	stats FrameStats
}

// New creates an atlas renderer drawing on dev. Invalid config fields are
// replaced by their defaults.
func New(dev gpucore.Device, cfg Config) *Renderer {
	def := DefaultConfig()
	if cfg.AtlasSize <= 0 {
		cfg.AtlasSize = def.AtlasSize
	}
	if cfg.AtlasPadding < 0 {
		cfg.AtlasPadding = 0
	}
	if cfg.MaxAtlasTexturesPerPool <= 0 {
		cfg.MaxAtlasTexturesPerPool = def.MaxAtlasTexturesPerPool
	}
	return &Renderer{
		dev:        dev,
		cfg:        cfg,
		poolIndex:  make(map[poolKey]int),
		standalone: make(map[gpucore.TextureID]uint32),
	}
}

// Name returns "atlas".
func (r *Renderer) Name() string { return "atlas" }

// SetLogger sets the logger used by the renderer.
func (r *Renderer) SetLogger(l *slog.Logger) {
	r.logger.Store(l)
}

func (r *Renderer) log() *slog.Logger {
	if l := r.logger.Load(); l != nil {
		return l
	}
	return atlasmap.Logger()
}

// Device returns the device the renderer draws on.
func (r *Renderer) Device() gpucore.Device {
	return r.dev
}

// LastFrameStats returns statistics of the last rendered frame.
func (r *Renderer) LastFrameStats() FrameStats {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.stats
}

// PoolStats returns statistics of every texture pool.
func (r *Renderer) PoolStats() []PoolStats {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]PoolStats, 0, len(r.pools))
	for _, p := range r.pools {
		out = append(out, PoolStats{
			Layer:     p.key.layer,
			TileSize:  p.key.tileSize,
			MipLevels: p.key.mipLevels,
			Textures:  len(p.textures),
			UsedSlots: p.usedSlots(),
			Capacity:  p.maxTextures * p.slotsPerTexture(),
		})
	}
	return out
}

// StandaloneTextures returns the number of tiles stored outside atlases.
func (r *Renderer) StandaloneTextures() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.standalone)
}

// Initialize creates the samplers and both render stages, sky first. On
// failure everything created so far is destroyed.
func (r *Renderer) Initialize(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	switch r.state {
	case stateReady:
		return nil
	case stateReleased:
		return ErrReleased
	}

	if err := r.initLocked(); err != nil {
		r.destroyLocked()
		return err
	}
	r.state = stateReady
	r.log().Info("atlas: initialized", "device", r.dev.Name(), "atlasSize", r.cfg.AtlasSize)
	return nil
}

func (r *Renderer) initLocked() error {
	samplers := [...]gpucore.SamplerDesc{
		atlasmap.FilteringTrilinear: {Label: "trilinear", Filter: gpucore.FilterLinear, Mipmap: gpucore.FilterLinear, MaxLOD: 32},
		atlasmap.FilteringBilinear:  {Label: "bilinear", Filter: gpucore.FilterLinear, Mipmap: gpucore.FilterNearest},
		atlasmap.FilteringNearest:   {Label: "nearest", Filter: gpucore.FilterNearest, Mipmap: gpucore.FilterNearest},
	}
	for i, desc := range samplers {
		id, err := r.dev.CreateSampler(desc)
		if err != nil {
			return fmt.Errorf("atlas: create %s sampler: %w", desc.Label, err)
		}
		r.samplers[i] = id
	}
	id, err := r.dev.CreateSampler(gpucore.SamplerDesc{Label: "elevation", Filter: gpucore.FilterNearest, Mipmap: gpucore.FilterNearest})
	if err != nil {
		return fmt.Errorf("atlas: create elevation sampler: %w", err)
	}
	r.elevationSampler = id

	r.sky.label = "sky"
	if err := r.initStage(&r.sky, skyShaderWGSL, skyQuad(), skyPipelineDesc); err != nil {
		return err
	}
	r.patchesPerSide = 1
	r.terrain.label = "map"
	return r.initStage(&r.terrain, mapShaderWGSL, tilePatch(r.patchesPerSide), mapPipelineDesc)
}

func skyPipelineDesc(module gpucore.ShaderModuleID) gpucore.PipelineDesc {
	return gpucore.PipelineDesc{
		Label:          "sky",
		VertexModule:   module,
		VertexEntry:    vertexEntry,
		FragmentModule: module,
		FragmentEntry:  fragmentEntry,
		VertexStride:   vertexStride,
		Attributes:     []gpucore.VertexAttribute{{Location: 0, Components: 2}},
		UniformSize:    skyUniformSize,
		UniformStages:  gpucore.StageVertex | gpucore.StageFragment,
	}
}

func mapPipelineDesc(module gpucore.ShaderModuleID) gpucore.PipelineDesc {
	textures := make([]gpucore.TextureBinding, atlasmap.LayerCount)
	for _, l := range atlasmap.Layers() {
		if l.IsRaster() {
			textures[l] = gpucore.TextureBinding{Stages: gpucore.StageFragment, Filterable: true}
		} else {
			textures[l] = gpucore.TextureBinding{Stages: gpucore.StageVertex}
		}
	}
	return gpucore.PipelineDesc{
		Label:          "map",
		VertexModule:   module,
		VertexEntry:    vertexEntry,
		FragmentModule: module,
		FragmentEntry:  fragmentEntry,
		VertexStride:   vertexStride,
		Attributes:     []gpucore.VertexAttribute{{Location: 0, Components: 2}},
		UniformSize:    mapUniformSize,
		UniformStages:  gpucore.StageVertex | gpucore.StageFragment,
		Textures:       textures,
		DepthTest:      true,
		AlphaBlend:     true,
	}
}

// initStage creates the buffers, shader module and pipeline of s.
func (r *Renderer) initStage(s *stage, source string, m mesh, desc func(gpucore.ShaderModuleID) gpucore.PipelineDesc) error {
	if err := r.uploadMesh(s, m); err != nil {
		return err
	}
	module, err := r.dev.CreateShaderModule(s.label, source)
	if err != nil {
		return fmt.Errorf("atlas: compile %s shader: %w", s.label, err)
	}
	s.module = module
	pipeline, err := r.dev.CreatePipeline(desc(module))
	if err != nil {
		return fmt.Errorf("atlas: create %s pipeline: %w", s.label, err)
	}
	s.pipeline = pipeline
	return nil
}

// uploadMesh replaces the geometry buffers of s.
func (r *Renderer) uploadMesh(s *stage, m mesh) error {
	r.destroyBuffers(s)
	vb, err := r.dev.CreateBuffer(s.label+" vertices", uint64(len(m.vertices)), gpucore.BufferUsageVertex|gpucore.BufferUsageCopyDst)
	if err != nil {
		return fmt.Errorf("atlas: create %s vertex buffer: %w", s.label, err)
	}
	s.vertices = vb
	ib, err := r.dev.CreateBuffer(s.label+" indices", uint64(len(m.indices)), gpucore.BufferUsageIndex|gpucore.BufferUsageCopyDst)
	if err != nil {
		return fmt.Errorf("atlas: create %s index buffer: %w", s.label, err)
	}
	s.indices = ib
	if err := r.dev.WriteBuffer(vb, 0, m.vertices); err != nil {
		return fmt.Errorf("atlas: write %s vertices: %w", s.label, err)
	}
	if err := r.dev.WriteBuffer(ib, 0, m.indices); err != nil {
		return fmt.Errorf("atlas: write %s indices: %w", s.label, err)
	}
	s.indexCount = m.indexCount()
	return nil
}

func (r *Renderer) destroyBuffers(s *stage) {
	if s.vertices != gpucore.InvalidID {
		r.dev.DestroyBuffer(s.vertices)
		s.vertices = gpucore.InvalidID
	}
	if s.indices != gpucore.InvalidID {
		r.dev.DestroyBuffer(s.indices)
		s.indices = gpucore.InvalidID
	}
	s.indexCount = 0
}

// destroyStage tears s down: shader module, then pipeline, then buffers.
func (r *Renderer) destroyStage(s *stage) {
	if s.module != gpucore.InvalidID {
		r.dev.DestroyShaderModule(s.module)
		s.module = gpucore.InvalidID
	}
	if s.pipeline != gpucore.InvalidID {
		r.dev.DestroyPipeline(s.pipeline)
		s.pipeline = gpucore.InvalidID
	}
	r.destroyBuffers(s)
}

// UploadTile stores data in an atlas slot when params allow it and a slot
// is free, and in a standalone texture otherwise.
func (r *Renderer) UploadTile(layer atlasmap.Layer, zoom tile.Zoom, id tile.ID, data atlasmap.TileData, params atlasmap.UploadParams) (cache.Tile, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if err := r.checkLocked(); err != nil {
		return cache.Tile{}, err
	}

	var (
		size      int
		format    gpucore.TextureFormat
		prepare   func(pad int, levels uint32) texels
		trilinear = params.Filtering == atlasmap.FilteringTrilinear
	)
	switch d := data.(type) {
	case *atlasmap.ElevationTile:
		if layer != atlasmap.LayerElevation || d == nil || d.Size <= 0 || len(d.Heights) < d.Size*d.Size {
			return cache.Tile{}, fmt.Errorf("%w: elevation data for %s", ErrUnsupportedTile, layer)
		}
		size, format, trilinear = d.Size, gpucore.TextureFormatR32Float, false
		prepare = func(pad int, _ uint32) texels { return prepareElevation(d, pad) }
	case image.Image:
		if !layer.IsRaster() || isNilRaster(d) {
			return cache.Tile{}, fmt.Errorf("%w: raster data for %s", ErrUnsupportedTile, layer)
		}
		b := d.Bounds()
		size, format = max(b.Dx(), b.Dy()), gpucore.TextureFormatRGBA8Unorm
		prepare = func(pad int, levels uint32) texels { return prepareRaster(d, params.Depth, pad, levels) }
	default:
		return cache.Tile{}, fmt.Errorf("%w: %T", ErrUnsupportedTile, data)
	}
	if size <= 0 {
		return cache.Tile{}, fmt.Errorf("%w: empty tile %s", ErrUnsupportedTile, id)
	}

	if params.AllowAtlas && size+2*r.cfg.AtlasPadding <= r.cfg.AtlasSize {
		levels := uint32(1)
		if trilinear {
			levels = atlasMipLevels(size + 2*r.cfg.AtlasPadding)
		}
		t, err := r.uploadAtlasLocked(poolKey{layer: layer, tileSize: size, format: format, mipLevels: levels}, prepare)
		if !errors.Is(err, ErrAtlasFull) {
			if err == nil {
				r.log().Debug("atlas: tile packed", "layer", layer, "zoom", zoom, "tile", id, "slot", t.AtlasSlot)
			}
			return t, err
		}
		r.log().Debug("atlas: pool full, using standalone texture", "layer", layer, "tileSize", size)
	}

	levels := uint32(1)
	if trilinear {
		levels = fullMipLevels(size)
	}
	return r.uploadStandaloneLocked(layer, size, format, levels, prepare(0, levels))
}

func isNilRaster(img image.Image) bool {
	rt, ok := img.(atlasmap.RasterTile)
	return ok && rt.Image == nil
}

func (r *Renderer) uploadAtlasLocked(key poolKey, prepare func(int, uint32) texels) (cache.Tile, error) {
	idx, ok := r.poolIndex[key]
	if !ok {
		p, err := newPool(key, r.cfg.AtlasSize, r.cfg.AtlasPadding, r.cfg.MaxAtlasTexturesPerPool)
		if err != nil {
			return cache.Tile{}, err
		}
		idx = len(r.pools)
		r.pools = append(r.pools, p)
		r.poolIndex[key] = idx
	}
	p := r.pools[idx]

	tex, slot, err := p.allocate(r.dev)
	if err != nil {
		return cache.Tile{}, err
	}
	x, y := p.slotOrigin(slot)
	if err := prepare(p.padding, key.mipLevels).write(r.dev, tex, x, y); err != nil {
		p.release(r.dev, tex, slot)
		return cache.Tile{}, fmt.Errorf("atlas: write slot %d: %w", slot, err)
	}
	return cache.Tile{
		Texture:   tex,
		UsedBytes: p.slotBytes(),
		AtlasPool: idx,
		AtlasSlot: slot,
	}, nil
}

func (r *Renderer) uploadStandaloneLocked(layer atlasmap.Layer, size int, format gpucore.TextureFormat, levels uint32, tx texels) (cache.Tile, error) {
	desc := gpucore.TextureDesc{
		Label:     fmt.Sprintf("tile %s %d", layer, size),
		Width:     uint32(size),
		Height:    uint32(size),
		MipLevels: levels,
		Format:    format,
	}
	tex, err := r.dev.CreateTexture(desc)
	if err != nil {
		return cache.Tile{}, fmt.Errorf("atlas: create tile texture: %w", err)
	}
	if err := tx.write(r.dev, tex, 0, 0); err != nil {
		r.dev.DestroyTexture(tex)
		return cache.Tile{}, fmt.Errorf("atlas: write tile texture: %w", err)
	}
	r.standalone[tex] = levels
	return cache.Tile{
		Texture:   tex,
		UsedBytes: desc.SizeBytes(),
		AtlasPool: -1,
		AtlasSlot: -1,
	}, nil
}

// ReleaseTile frees the slot or texture of t. Empty tiles are ignored.
func (r *Renderer) ReleaseTile(layer atlasmap.Layer, t cache.Tile) {
	if t.IsEmpty() {
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.state == stateReleased {
		return
	}
	if t.IsAtlasPacked() {
		if t.AtlasPool >= 0 && t.AtlasPool < len(r.pools) && r.pools[t.AtlasPool].release(r.dev, t.Texture, t.AtlasSlot) {
			return
		}
		r.log().Warn("atlas: release of unknown slot", "layer", layer, "pool", t.AtlasPool, "slot", t.AtlasSlot)
		return
	}
	if _, ok := r.standalone[t.Texture]; ok {
		delete(r.standalone, t.Texture)
		r.dev.DestroyTexture(t.Texture)
	}
}

// tileDraw holds the cached layers of one visible tile.
type tileDraw struct {
	id     tile.ID
	tiles  [atlasmap.LayerCount]cache.Tile
	hit    [atlasmap.LayerCount]bool
	raster bool
}

// has reports whether layer l of the tile holds a texture. Tiles the
// provider reported unavailable are cached without one.
func (d *tileDraw) has(l atlasmap.Layer) bool {
	return d.hit[l] && d.tiles[l].Texture != gpucore.InvalidID
}

// RenderFrame clears the target to the sky color, draws the sky plane and
// then every visible tile, one indexed draw each. Layers without a
// texture are bound to the placeholder with zero weight.
func (r *Renderer) RenderFrame(ctx context.Context, f *atlasmap.Frame) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	cfg := f.Config

	// Cache lookups may evict tiles and call back into ReleaseTile, so they
	// run before r.mu is taken.
	draws := make([]tileDraw, 0, len(f.VisibleTiles))
	for _, id := range f.VisibleTiles {
		d := tileDraw{id: id}
		for _, l := range atlasmap.Layers() {
			d.tiles[l], d.hit[l] = f.Tile(l, id)
		}
		for _, l := range atlasmap.Layers() {
			if l.IsRaster() && d.has(l) {
				d.raster = true
			}
		}
		draws = append(draws, d)
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if err := r.checkLocked(); err != nil {
		return err
	}

	patches := 1
	if cfg.HasProvider(atlasmap.LayerElevation) {
		patches = min(max(cfg.Options.HeightmapPatchesPerSide, 1), maxPatchesPerSide)
	}
	if patches != r.patchesPerSide {
		if err := r.uploadMesh(&r.terrain, tilePatch(patches)); err != nil {
			return err
		}
		r.patchesPerSide = patches
	}

	width, height := cfg.WindowSize.X, cfg.WindowSize.Y
	if width <= 0 || height <= 0 {
		width, height = cfg.Viewport.Max.X, cfg.Viewport.Max.Y
	}
	enc, err := r.dev.BeginFrame(gpucore.FrameTarget{
		Width:  uint32(max(width, 1)),
		Height: uint32(max(height, 1)),
		Clear: gpucore.Color{
			R: float64(cfg.SkyColor[0]),
			G: float64(cfg.SkyColor[1]),
			B: float64(cfg.SkyColor[2]),
			A: 1,
		},
	})
	if err != nil {
		return fmt.Errorf("atlas: begin frame: %w", err)
	}

	vp := cfg.Viewport
	if vp.Empty() {
		vp = image.Rect(0, 0, max(width, 1), max(height, 1))
	}
	enc.SetViewport(gpucore.Viewport{
		X:      float32(vp.Min.X),
		Y:      float32(vp.Min.Y),
		Width:  float32(vp.Dx()),
		Height: float32(vp.Dy()),
	})

	enc.SetPipeline(r.sky.pipeline)
	enc.SetUniforms(skyUniforms(cfg, &f.Camera))
	enc.SetVertexBuffer(r.sky.vertices)
	enc.SetIndexBuffer(r.sky.indices)
	enc.DrawIndexed(r.sky.indexCount)

	enc.SetPipeline(r.terrain.pipeline)
	enc.SetVertexBuffer(r.terrain.vertices)
	enc.SetIndexBuffer(r.terrain.indices)

	var u mapUniforms
	u.setFrame(cfg, &f.Camera, tile.Size3D)
	stats := FrameStats{PatchesPerSide: r.patchesPerSide}
	for i := range draws {
		d := &draws[i]
		if !d.raster {
			stats.TilesMissing++
		}
		target := f.Camera.TargetTile
		u.setTileOffset(d.id.X-target.X, d.id.Y-target.Y)
		for _, l := range atlasmap.Layers() {
			sampler := r.samplerLocked(l, cfg.Options.TextureFiltering)
			if !d.has(l) {
				u.setLayer(l, layerParams{slot: -1})
				enc.SetTexture(int(l), gpucore.InvalidID, sampler)
				continue
			}
			p := r.layerParamsLocked(d.tiles[l])
			p.weight = cfg.LayerOpacity[l]
			u.setLayer(l, p)
			enc.SetTexture(int(l), d.tiles[l].Texture, sampler)
		}
		enc.SetUniforms(u[:])
		enc.DrawIndexed(r.terrain.indexCount)
		stats.TilesDrawn++
	}

	if err := enc.End(); err != nil {
		return fmt.Errorf("atlas: submit frame: %w", err)
	}
	r.stats = stats
	return nil
}

func (r *Renderer) samplerLocked(l atlasmap.Layer, f atlasmap.TextureFiltering) gpucore.SamplerID {
	if l == atlasmap.LayerElevation {
		return r.elevationSampler
	}
	if f < 0 || int(f) >= len(r.samplers) {
		f = atlasmap.FilteringTrilinear
	}
	return r.samplers[f]
}

// layerParamsLocked returns the texture addressing of t.
func (r *Renderer) layerParamsLocked(t cache.Tile) layerParams {
	if !t.IsAtlasPacked() || t.AtlasPool < 0 || t.AtlasPool >= len(r.pools) {
		levels := r.standalone[t.Texture]
		return layerParams{slot: -1, maxMip: float32(max(levels, 1) - 1)}
	}
	p := r.pools[t.AtlasPool]
	size := float32(p.textureSize())
	return layerParams{
		slot:         float32(t.AtlasSlot),
		slotsPerSide: float32(p.slotsPerSide),
		slotSizeN:    float32(p.slotSize) / size,
		paddingN:     float32(p.padding) / size,
		maxMip:       float32(p.key.mipLevels - 1),
	}
}

// Release destroys the map stage, the sky stage, the samplers and every
// tile texture. The device itself stays open.
func (r *Renderer) Release() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.state == stateReleased {
		return nil
	}
	r.destroyLocked()
	r.state = stateReleased
	r.log().Info("atlas: released")
	return nil
}

func (r *Renderer) destroyLocked() {
	r.destroyStage(&r.terrain)
	r.destroyStage(&r.sky)
	for i, id := range r.samplers {
		if id != gpucore.InvalidID {
			r.dev.DestroySampler(id)
			r.samplers[i] = gpucore.InvalidID
		}
	}
	if r.elevationSampler != gpucore.InvalidID {
		r.dev.DestroySampler(r.elevationSampler)
		r.elevationSampler = gpucore.InvalidID
	}
	for _, p := range r.pools {
		p.destroy(r.dev)
	}
	r.pools = nil
	clear(r.poolIndex)
	for tex := range r.standalone {
		r.dev.DestroyTexture(tex)
	}
	clear(r.standalone)
}

func (r *Renderer) checkLocked() error {
	switch r.state {
	case stateCreated:
		return ErrNotInitialized
	case stateReleased:
		return ErrReleased
	}
	return nil
}

var _ atlasmap.Backend = (*Renderer)(nil)
