package atlasmap

import (
	"errors"
	"image"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/gogpu/atlasmap/tile"
)

func TestDefaultConfiguration(t *testing.T) {
	c := DefaultConfiguration()
	if c.FieldOfView != 16.5 {
		t.Errorf("FieldOfView = %v, want 16.5", c.FieldOfView)
	}
	if c.ElevationAngle != 45 || c.Azimuth != 0 {
		t.Errorf("camera = (%v, %v), want (0, 45)", c.Azimuth, c.ElevationAngle)
	}
	if diff := cmp.Diff(DefaultFog(), c.Fog); diff != "" {
		t.Errorf("Fog mismatch (-want +got):\n%s", diff)
	}
	if c.Target != (Point31{X: 1 << 30, Y: 1 << 30}) {
		t.Errorf("Target = %+v, want the world center", c.Target)
	}
	for _, l := range Layers() {
		if c.LayerOpacity[l] != 1 {
			t.Errorf("LayerOpacity[%s] = %v, want 1", l, c.LayerOpacity[l])
		}
	}
	if c.EffectiveTextureDepth() != TextureDepth32 {
		t.Errorf("EffectiveTextureDepth() = %v, want 32bit", c.EffectiveTextureDepth())
	}
	c.Options.Force16BitTextures = true
	if c.EffectiveTextureDepth() != TextureDepth16 {
		t.Errorf("forced EffectiveTextureDepth() = %v, want 16bit", c.EffectiveTextureDepth())
	}
}

func TestSettersClamp(t *testing.T) {
	r := NewRenderer()
	r.UpdateViewport(image.Pt(800, 600), image.Rect(0, 0, 800, 600), 120, -5)
	r.UpdateCamera(-10, 370, 100)
	r.UpdateMap(Point31{X: 1<<31 + 5, Y: 3}, 40)
	if err := r.SetLayerOpacity(LayerRaster1, 2); err != nil {
		t.Fatalf("SetLayerOpacity() = %v", err)
	}
	r.SetFog(FogParams{Distance: 100, OriginFactor: 2, HeightOriginFactor: -1, Density: -1, Color: [3]float32{2, 0.5, -1}})
	r.SetSkyColor([3]float32{0.5, 1.5, 0})

	c := r.PendingConfiguration()
	if c.FieldOfView != 90 {
		t.Errorf("FieldOfView = %v, want 90", c.FieldOfView)
	}
	if c.DistanceFromTarget != 0 || c.Azimuth != 10 || c.ElevationAngle != 90 {
		t.Errorf("camera = (%v, %v, %v), want (0, 10, 90)", c.DistanceFromTarget, c.Azimuth, c.ElevationAngle)
	}
	if c.Target != (Point31{X: 5, Y: 3}) {
		t.Errorf("Target = %+v, want {5 3}", c.Target)
	}
	if c.Zoom != tile.MaxFractionalZoom || c.ZoomBase != tile.MaxZoom {
		t.Errorf("zoom = (%v, %d), want (%v, %d)", c.Zoom, c.ZoomBase, tile.MaxFractionalZoom, tile.MaxZoom)
	}
	if c.LayerOpacity[LayerRaster1] != 1 {
		t.Errorf("LayerOpacity = %v, want 1", c.LayerOpacity[LayerRaster1])
	}
	wantFog := FogParams{Distance: 100, OriginFactor: 1, HeightOriginFactor: epsilon, Density: epsilon, Color: [3]float32{1, 0.5, 0}}
	if diff := cmp.Diff(wantFog, c.Fog); diff != "" {
		t.Errorf("Fog mismatch (-want +got):\n%s", diff)
	}
	if c.SkyColor != [3]float32{0.5, 1, 0} {
		t.Errorf("SkyColor = %v, want [0.5 1 0]", c.SkyColor)
	}

	r.UpdateViewport(image.Pt(800, 600), image.Rect(0, 0, 800, 600), 0, 0)
	r.UpdateCamera(0, -190, 0)
	r.UpdateMap(Point31{}, -1)
	c = r.PendingConfiguration()
	if c.FieldOfView != epsilon || c.Fog.Distance != epsilon {
		t.Errorf("viewport = (%v, %v), want (epsilon, epsilon)", c.FieldOfView, c.Fog.Distance)
	}
	if c.Azimuth != 170 || c.ElevationAngle != epsilon {
		t.Errorf("camera = (%v, %v), want (170, epsilon)", c.Azimuth, c.ElevationAngle)
	}
	if c.Zoom != epsilon || c.ZoomBase != 0 {
		t.Errorf("zoom = (%v, %d), want (epsilon, 0)", c.Zoom, c.ZoomBase)
	}
}

func TestSettersRejectInvalidLayer(t *testing.T) {
	r := NewRenderer()
	if err := r.SetTileProvider(Layer(LayerCount), nil); !errors.Is(err, ErrInvalidLayer) {
		t.Errorf("SetTileProvider(invalid) = %v, want ErrInvalidLayer", err)
	}
	if err := r.SetLayerOpacity(LayerElevation, 0.5); !errors.Is(err, ErrInvalidLayer) {
		t.Errorf("SetLayerOpacity(elevation) = %v, want ErrInvalidLayer", err)
	}
}

func TestNormalizeDegrees(t *testing.T) {
	tests := []struct {
		in, want float32
	}{
		{0, 0},
		{180, 180},
		{-180, 180},
		{190, -170},
		{-190, 170},
		{370, 10},
		{720, 0},
	}
	for _, tt := range tests {
		if got := normalizeDegrees(tt.in); got != tt.want {
			t.Errorf("normalizeDegrees(%v) = %v, want %v", tt.in, got, tt.want)
		}
	}
}

func TestFuzzyEqual(t *testing.T) {
	tests := []struct {
		a, b float32
		want bool
	}{
		{0, 0, true},
		{1, 1.000001, true},
		{1, 1.001, false},
		{0, epsilon, false},
		{100, 100.0005, true},
	}
	for _, tt := range tests {
		if got := fuzzyEqual(tt.a, tt.b); got != tt.want {
			t.Errorf("fuzzyEqual(%v, %v) = %v, want %v", tt.a, tt.b, got, tt.want)
		}
	}
}

func TestOptionsInvalidatesTiles(t *testing.T) {
	base := DefaultOptions()
	tests := []struct {
		name   string
		modify func(*Options)
		want   bool
	}{
		{"same", func(*Options) {}, false},
		{"force16", func(o *Options) { o.Force16BitTextures = true }, true},
		{"atlas", func(o *Options) { o.AllowAtlasTextures = false }, true},
		{"filtering", func(o *Options) { o.TextureFiltering = FilteringBilinear }, true},
		{"patches", func(o *Options) { o.HeightmapPatchesPerSide = 8 }, true},
		{"uploads", func(o *Options) { o.MaxTileUploadsPerFrame = 3 }, false},
		{"cleanup", func(o *Options) { o.AggressiveCacheCleanup = true }, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			o := base
			tt.modify(&o)
			if got := o.invalidatesTiles(base); got != tt.want {
				t.Errorf("invalidatesTiles() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestPoint31(t *testing.T) {
	p := Point31{X: 1<<31 | 7, Y: 1 << 30}.Wrap()
	if p != (Point31{X: 7, Y: 1 << 30}) {
		t.Errorf("Wrap() = %+v, want {7 %d}", p, 1<<30)
	}
	if got := p.Tile(1); got != (tile.ID{X: 0, Y: 1}) {
		t.Errorf("Tile(1) = %v, want 0,1", got)
	}
}

func TestLayer(t *testing.T) {
	if LayerElevation.IsRaster() || !LayerRaster3.IsRaster() {
		t.Error("IsRaster() mismatch")
	}
	if Layer(-1).Valid() || Layer(LayerCount).Valid() {
		t.Error("Valid() accepted an out of range layer")
	}
	if got := LayerRaster2.String(); got != "Raster2" {
		t.Errorf("String() = %q, want %q", got, "Raster2")
	}
	if got := Layer(7).String(); got != "Layer(7)" {
		t.Errorf("String() = %q, want %q", got, "Layer(7)")
	}
}
