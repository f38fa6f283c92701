package main

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/gogpu/atlasmap"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "atlasmap.toml")
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("WriteFile failed: %v", err)
	}
	return path
}

func TestLoadConfigDefaults(t *testing.T) {
	cfg, err := LoadConfig("")
	if err != nil {
		t.Fatalf("LoadConfig() error = %v", err)
	}
	want := RendererConfig{
		Width:         1280,
		Height:        720,
		FieldOfView:   16.5,
		FogDistance:   atlasmap.DefaultFog().Distance,
		CacheBudgetMB: 256,
		TextureDepth:  32,
		Filtering:     "trilinear",
		AtlasTextures: true,
	}
	if diff := cmp.Diff(want, cfg.Renderer); diff != "" {
		t.Errorf("Renderer mismatch (-want +got):\n%s", diff)
	}
	if cfg.Provider.Kind != "mbtiles" || cfg.Output.Frames != 120 || cfg.Camera.Elevation != 45 {
		t.Errorf("LoadConfig() = %+v, want defaults", cfg)
	}
}

func TestLoadConfigFile(t *testing.T) {
	path := writeConfig(t, `
[renderer]
width = 640
height = 480
texture_depth = 16
filtering = "nearest"

[camera]
lat = 50.45
lon = 30.52
zoom = 11.5
azimuth = 90
sweep = 1.5

[provider]
kind = "redis"
redis_addr = "cache:6379"
redis_prefix = "osm"

[output]
frames = 10
log_level = "debug"
progress = false
`)
	cfg, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("LoadConfig() error = %v", err)
	}
	want := Config{
		Renderer: RendererConfig{
			Width:         640,
			Height:        480,
			FieldOfView:   16.5,
			FogDistance:   atlasmap.DefaultFog().Distance,
			CacheBudgetMB: 256,
			TextureDepth:  16,
			Filtering:     "nearest",
			AtlasTextures: true,
		},
		Camera: CameraConfig{
			Lat:       50.45,
			Lon:       30.52,
			Zoom:      11.5,
			Azimuth:   90,
			Elevation: 45,
			Sweep:     1.5,
		},
		Provider: ProviderConfig{
			Kind:           "redis",
			RedisAddr:      "cache:6379",
			RedisPrefix:    "osm",
			RedisMaxActive: 16,
		},
		Output: OutputConfig{
			Frames:   10,
			LogLevel: "debug",
		},
	}
	if diff := cmp.Diff(want, cfg); diff != "" {
		t.Errorf("LoadConfig() mismatch (-want +got):\n%s", diff)
	}
	if got := cfg.Renderer.textureDepth(); got != atlasmap.TextureDepth16 {
		t.Errorf("textureDepth() = %v, want 16bit", got)
	}
	if got, _ := cfg.Renderer.filtering(); got != atlasmap.FilteringNearest {
		t.Errorf("filtering() = %v, want Nearest", got)
	}
}

func TestLoadConfigEnv(t *testing.T) {
	t.Setenv("ATLASMAP_CAMERA_AZIMUTH", "30")
	t.Setenv("ATLASMAP_OUTPUT_FRAMES", "5")
	path := writeConfig(t, "[camera]\nazimuth = 90\n")

	cfg, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("LoadConfig() error = %v", err)
	}
	if cfg.Camera.Azimuth != 30 {
		t.Errorf("Camera.Azimuth = %v, want 30", cfg.Camera.Azimuth)
	}
	if cfg.Output.Frames != 5 {
		t.Errorf("Output.Frames = %d, want 5", cfg.Output.Frames)
	}
}

func TestLoadConfigInvalid(t *testing.T) {
	tests := []struct {
		name    string
		content string
		wantErr string
	}{
		{"size", "[renderer]\nwidth = 0\n", "invalid size"},
		{"depth", "[renderer]\ntexture_depth = 24\n", "texture_depth"},
		{"filtering", "[renderer]\nfiltering = \"cubic\"\n", "filtering"},
		{"kind", "[provider]\nkind = \"http\"\n", "unknown kind"},
		{"frames", "[output]\nframes = -1\n", "negative frame count"},
		{"level", "[output]\nlog_level = \"loud\"\n", "output"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := LoadConfig(writeConfig(t, tt.content))
			if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("LoadConfig() error = %v, want containing %q", err, tt.wantErr)
			}
		})
	}
}

func TestLoadConfigMissingFile(t *testing.T) {
	if _, err := LoadConfig(filepath.Join(t.TempDir(), "missing.toml")); err == nil {
		t.Error("LoadConfig() of a missing file succeeded, want error")
	}
}
