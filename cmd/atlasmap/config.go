package main

import (
	"fmt"
	"log/slog"
	"strings"

	"github.com/spf13/viper"

	"github.com/gogpu/atlasmap"
)

// Config is the command configuration file.
type Config struct {
	Renderer RendererConfig `mapstructure:"renderer"`
	Camera   CameraConfig   `mapstructure:"camera"`
	Provider ProviderConfig `mapstructure:"provider"`
	Output   OutputConfig   `mapstructure:"output"`
}

type RendererConfig struct {
	// Device names the GPU device; empty picks the best available.
	Device        string  `mapstructure:"device"`
	Width         int     `mapstructure:"width"`
	Height        int     `mapstructure:"height"`
	FieldOfView   float32 `mapstructure:"fov"`
	FogDistance   float32 `mapstructure:"fog_distance"`
	CacheBudgetMB int     `mapstructure:"cache_budget_mb"`
	TextureDepth  int     `mapstructure:"texture_depth"`
	Filtering     string  `mapstructure:"filtering"`
	AtlasTextures bool    `mapstructure:"atlas_textures"`
	MaxUploads    int     `mapstructure:"max_uploads_per_frame"`
}

type CameraConfig struct {
	Lat       float64 `mapstructure:"lat"`
	Lon       float64 `mapstructure:"lon"`
	Zoom      float32 `mapstructure:"zoom"`
	Distance  float32 `mapstructure:"distance"`
	Azimuth   float32 `mapstructure:"azimuth"`
	Elevation float32 `mapstructure:"elevation"`

	// Sweep is the azimuth change per frame in degrees.
	Sweep float32 `mapstructure:"sweep"`
}

type ProviderConfig struct {
	// Kind is "mbtiles" or "redis".
	Kind string `mapstructure:"kind"`

	Path          string `mapstructure:"path"`
	ElevationPath string `mapstructure:"elevation_path"`

	RedisAddr       string `mapstructure:"redis_addr"`
	RedisPrefix     string `mapstructure:"redis_prefix"`
	RedisMaxActive  int    `mapstructure:"redis_max_active"`
	ElevationPrefix string `mapstructure:"elevation_prefix"`

	Workers int `mapstructure:"workers"`
}

type OutputConfig struct {
	Frames   int    `mapstructure:"frames"`
	LogLevel string `mapstructure:"log_level"`
	Progress bool   `mapstructure:"progress"`
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("renderer.device", "")
	v.SetDefault("renderer.width", 1280)
	v.SetDefault("renderer.height", 720)
	v.SetDefault("renderer.fov", 16.5)
	v.SetDefault("renderer.fog_distance", atlasmap.DefaultFog().Distance)
	v.SetDefault("renderer.cache_budget_mb", 256)
	v.SetDefault("renderer.texture_depth", 32)
	v.SetDefault("renderer.filtering", "trilinear")
	v.SetDefault("renderer.atlas_textures", true)
	v.SetDefault("renderer.max_uploads_per_frame", 0)

	v.SetDefault("camera.lat", 0.0)
	v.SetDefault("camera.lon", 0.0)
	v.SetDefault("camera.zoom", 3.0)
	v.SetDefault("camera.distance", 0.0)
	v.SetDefault("camera.azimuth", 0.0)
	v.SetDefault("camera.elevation", 45.0)
	v.SetDefault("camera.sweep", 3.0)

	v.SetDefault("provider.kind", "mbtiles")
	v.SetDefault("provider.path", "")
	v.SetDefault("provider.elevation_path", "")
	v.SetDefault("provider.redis_addr", "127.0.0.1:6379")
	v.SetDefault("provider.redis_prefix", "tiles")
	v.SetDefault("provider.redis_max_active", 16)
	v.SetDefault("provider.elevation_prefix", "")
	v.SetDefault("provider.workers", 0)

	v.SetDefault("output.frames", 120)
	v.SetDefault("output.log_level", "info")
	v.SetDefault("output.progress", true)
}

// LoadConfig reads the TOML file at path. An empty path uses defaults only.
// ATLASMAP_<SECTION>_<KEY> environment variables override file values.
func LoadConfig(path string) (Config, error) {
	v := viper.New()
	setDefaults(v)
	v.SetEnvPrefix("atlasmap")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigType("toml")
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("read config %s: %w", path, err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("decode config: %w", err)
	}
	return cfg, cfg.validate()
}

func (c Config) validate() error {
	if c.Renderer.Width <= 0 || c.Renderer.Height <= 0 {
		return fmt.Errorf("renderer: invalid size %dx%d", c.Renderer.Width, c.Renderer.Height)
	}
	if c.Renderer.TextureDepth != 16 && c.Renderer.TextureDepth != 32 {
		return fmt.Errorf("renderer: texture_depth must be 16 or 32, got %d", c.Renderer.TextureDepth)
	}
	if _, err := c.Renderer.filtering(); err != nil {
		return err
	}
	switch c.Provider.Kind {
	case "mbtiles", "redis":
	default:
		return fmt.Errorf("provider: unknown kind %q", c.Provider.Kind)
	}
	if c.Output.Frames < 0 {
		return fmt.Errorf("output: negative frame count %d", c.Output.Frames)
	}
	if _, err := c.Output.level(); err != nil {
		return err
	}
	return nil
}

func (r RendererConfig) filtering() (atlasmap.TextureFiltering, error) {
	switch strings.ToLower(r.Filtering) {
	case "trilinear":
		return atlasmap.FilteringTrilinear, nil
	case "bilinear":
		return atlasmap.FilteringBilinear, nil
	case "nearest":
		return atlasmap.FilteringNearest, nil
	default:
		return 0, fmt.Errorf("renderer: unknown filtering %q", r.Filtering)
	}
}

func (r RendererConfig) textureDepth() atlasmap.TextureDepth {
	if r.TextureDepth == 16 {
		return atlasmap.TextureDepth16
	}
	return atlasmap.TextureDepth32
}

func (o OutputConfig) level() (slog.Level, error) {
	var l slog.Level
	if err := l.UnmarshalText([]byte(o.LogLevel)); err != nil {
		return 0, fmt.Errorf("output: %w", err)
	}
	return l, nil
}
