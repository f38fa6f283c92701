package atlasmap

import (
	"image"
	"math"

	"github.com/gogpu/atlasmap/tile"
)

// epsilon is the smallest accepted value for clamped positive settings.
const epsilon float32 = 1.1920929e-07

// Point31 is a position in 31-bit tile coordinates.
type Point31 struct {
	X, Y uint32
}

// point31Mask keeps a coordinate inside [0, 2^31).
const point31Mask = 1<<31 - 1

// Wrap returns p with both coordinates wrapped into [0, 2^31).
func (p Point31) Wrap() Point31 {
	return Point31{X: p.X & point31Mask, Y: p.Y & point31Mask}
}

// Tile returns the tile containing p at zoom.
func (p Point31) Tile(zoom tile.Zoom) tile.ID {
	return tile.FromPoint31(p.X, p.Y, zoom)
}

// FogParams configures distance fog and the sky gradient.
type FogParams struct {
	// Distance is the distance from the target at which fog is opaque, in
	// world units of the base zoom.
	Distance float32

	// OriginFactor is the share of Distance over which fog builds up.
	OriginFactor float32

	// HeightOriginFactor is the share of the sky height covered by fog.
	HeightOriginFactor float32

	// Density controls how quickly fog thickens.
	Density float32

	// Color is the fog color.
	Color [3]float32
}

// DefaultFog returns the default fog parameters.
func DefaultFog() FogParams {
	return FogParams{
		Distance:           400,
		OriginFactor:       0.36,
		HeightOriginFactor: 0.05,
		Density:            1.9,
		Color:              [3]float32{1, 0, 0},
	}
}

func (f FogParams) clamped() FogParams {
	f.Distance = max(f.Distance, epsilon)
	f.OriginFactor = clamp(f.OriginFactor, epsilon, 1)
	f.HeightOriginFactor = clamp(f.HeightOriginFactor, epsilon, 1)
	f.Density = max(f.Density, epsilon)
	for i, c := range f.Color {
		f.Color[i] = clamp(c, 0, 1)
	}
	return f
}

// Options holds renderer-wide switches.
type Options struct {
	// Force16BitTextures uploads raster tiles at 16 bits per pixel regardless
	// of the preferred texture depth.
	Force16BitTextures bool

	// AllowAtlasTextures packs tiles of equal size into shared atlas textures.
	AllowAtlasTextures bool

	// TextureFiltering selects raster tile sampling.
	TextureFiltering TextureFiltering

	// HeightmapPatchesPerSide is the tile mesh subdivision used when an
	// elevation provider is set.
	HeightmapPatchesPerSide int

	// MaxTileUploadsPerFrame bounds the tiles uploaded by one
	// UpdateTilesCache call. Zero means unlimited.
	MaxTileUploadsPerFrame int

	// AggressiveCacheCleanup removes cached tiles that left the visible set
	// after every frame instead of leaving them to the memory budget.
	AggressiveCacheCleanup bool
}

// DefaultOptions returns the default renderer options.
func DefaultOptions() Options {
	return Options{
		AllowAtlasTextures:      true,
		TextureFiltering:        FilteringTrilinear,
		HeightmapPatchesPerSide: 24,
	}
}

// invalidatesTiles reports whether switching from old to o changes how
// tiles are uploaded, which makes every cached tile stale.
func (o Options) invalidatesTiles(old Options) bool {
	return o.Force16BitTextures != old.Force16BitTextures ||
		o.AllowAtlasTextures != old.AllowAtlasTextures ||
		o.TextureFiltering != old.TextureFiltering ||
		o.HeightmapPatchesPerSide != old.HeightmapPatchesPerSide
}

// Configuration is the complete renderer state. The renderer keeps a
// pending copy mutated by setters and an active snapshot read by the frame.
type Configuration struct {
	// Providers holds the tile provider of each layer; nil disables a layer.
	Providers [LayerCount]TileProvider

	// LayerOpacity is the blend weight of each raster layer in [0, 1].
	// The elevation entry is unused.
	LayerOpacity [LayerCount]float32

	// ElevationScale multiplies elevation samples.
	ElevationScale float32

	WindowSize image.Point
	Viewport   image.Rectangle

	// FieldOfView is the vertical field of view in degrees, in (0, 90].
	FieldOfView float32

	Fog      FogParams
	SkyColor [3]float32

	// DistanceFromTarget is the camera distance from the target in world
	// units. Zero selects a distance at which one base-zoom tile spans
	// ReferenceTileSize pixels of the viewport height.
	DistanceFromTarget float32

	// Azimuth is the camera heading in degrees, normalized to (-180, 180].
	Azimuth float32

	// ElevationAngle is the camera pitch above the ground in degrees, in
	// (0, 90]. 90 looks straight down.
	ElevationAngle float32

	Target Point31

	// Zoom is the fractional zoom, ZoomBase and ZoomFraction its split.
	Zoom         float32
	ZoomBase     tile.Zoom
	ZoomFraction float32

	TextureDepth TextureDepth
	Options      Options

	// generation counts provider replacements per layer so callbacks from a
	// replaced provider can be recognized.
	generation [LayerCount]uint64
}

// ReferenceTileSize is the on-screen tile height, in pixels, targeted by
// the automatic camera distance.
const ReferenceTileSize = 256

// DefaultConfiguration returns the configuration a new renderer starts with.
func DefaultConfiguration() Configuration {
	c := Configuration{
		ElevationScale: 1,
		FieldOfView:    16.5,
		Fog:            DefaultFog(),
		SkyColor:       [3]float32{140.0 / 255, 190.0 / 255, 214.0 / 255},
		ElevationAngle: 45,
		Target:         Point31{X: 1 << 30, Y: 1 << 30},
		TextureDepth:   TextureDepth32,
		Options:        DefaultOptions(),
	}
	for i := range c.LayerOpacity {
		c.LayerOpacity[i] = 1
	}
	return c
}

// EffectiveTextureDepth returns the depth tiles are uploaded with.
func (c *Configuration) EffectiveTextureDepth() TextureDepth {
	if c.Options.Force16BitTextures {
		return TextureDepth16
	}
	return c.TextureDepth
}

// HasProvider reports whether layer l has a tile provider.
func (c *Configuration) HasProvider(l Layer) bool {
	return l.Valid() && c.Providers[l] != nil
}

// Aspect returns the viewport aspect ratio, 1 for an empty viewport.
func (c *Configuration) Aspect() float32 {
	w, h := c.Viewport.Dx(), c.Viewport.Dy()
	if w <= 0 || h <= 0 {
		return 1
	}
	return float32(w) / float32(h)
}

// setZoom clamps and splits zoom. It reports whether the value changed.
func (c *Configuration) setZoom(zoom float32) bool {
	zoom = clamp(zoom, epsilon, tile.MaxFractionalZoom)
	if fuzzyEqual(c.Zoom, zoom) {
		return false
	}
	c.Zoom = zoom
	c.ZoomBase, c.ZoomFraction = tile.SplitZoom(zoom)
	return true
}

func clamp(v, lo, hi float32) float32 {
	return min(max(v, lo), hi)
}

// fuzzyEqual compares with a relative tolerance of 1e-5.
func fuzzyEqual(a, b float32) bool {
	d := math.Abs(float64(a - b))
	return d*100000 <= math.Min(math.Abs(float64(a)), math.Abs(float64(b)))
}

// normalizeDegrees maps an angle to (-180, 180].
func normalizeDegrees(deg float32) float32 {
	d := math.Mod(float64(deg), 360)
	if d <= -180 {
		d += 360
	} else if d > 180 {
		d -= 360
	}
	return float32(d)
}
