// Command atlasmap renders a sweep of frames around a map position with the
// atlas renderer and reports tile cache and draw statistics.
//
// Usage:
//
//	atlasmap -config atlasmap.toml
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"image"
	"io"
	"log"
	"log/slog"
	"os"
	"os/signal"

	"github.com/schollz/progressbar/v3"

	"github.com/gogpu/atlasmap"
	"github.com/gogpu/atlasmap/atlas"
	"github.com/gogpu/atlasmap/backend"
	_ "github.com/gogpu/atlasmap/backend/native"
	"github.com/gogpu/atlasmap/gpucore"
	"github.com/gogpu/atlasmap/provider/mbtiles"
	"github.com/gogpu/atlasmap/provider/redis"
	"github.com/gogpu/atlasmap/tile"
)

func main() {
	configPath := flag.String("config", "", "TOML configuration file")
	flag.Parse()

	cfg, err := LoadConfig(*configPath)
	if err != nil {
		log.Fatal(err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	if err := run(ctx, cfg, os.Stdout); err != nil {
		log.Fatal(err)
	}
}

func run(ctx context.Context, cfg Config, out io.Writer) error {
	level, _ := cfg.Output.level()
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
	atlasmap.SetLogger(logger)
	defer atlasmap.SetLogger(nil)

	dev, err := openDevice(cfg.Renderer.Device)
	if err != nil {
		return err
	}
	defer dev.Close()
	fmt.Fprintf(out, "device: %s\n", dev.Name())

	providers, err := openProviders(cfg.Provider, logger)
	if err != nil {
		return err
	}
	defer func() {
		for _, c := range providers {
			c.closer.Close()
		}
	}()

	ar := atlas.New(dev, atlas.DefaultConfig())
	r, err := newRenderer(cfg, ar, providers)
	if err != nil {
		return err
	}

	if err := r.InitializeRendering(ctx); err != nil {
		return err
	}
	renderErr := renderFrames(ctx, cfg, r, ar, out)
	report(out, r, ar, providers)
	return errors.Join(renderErr, r.ReleaseRendering())
}

func openDevice(name string) (gpucore.Device, error) {
	if name == "" {
		return backend.OpenDefault()
	}
	return backend.Open(name)
}

type layerProvider struct {
	layer  atlasmap.Layer
	tiles  atlasmap.TileProvider
	closer io.Closer
	stats  func() string
}

func openProviders(cfg ProviderConfig, logger *slog.Logger) ([]layerProvider, error) {
	var providers []layerProvider
	switch cfg.Kind {
	case "mbtiles":
		if cfg.Path == "" {
			return nil, errors.New("provider: mbtiles path is empty")
		}
		open := func(layer atlasmap.Layer, path string, opts ...mbtiles.Option) error {
			opts = append(opts, mbtiles.WithLogger(logger), mbtiles.WithWorkers(cfg.Workers))
			p, err := mbtiles.Open(path, opts...)
			if err != nil {
				return err
			}
			if md, err := p.Metadata(); err == nil {
				logger.Info("tile source", "layer", layer, "path", path, "name", md["name"], "format", md["format"])
			}
			providers = append(providers, layerProvider{layer, p, p, func() string {
				s := p.Stats()
				return fmt.Sprintf("%d requests, %d completed", s.Submitted, s.Completed)
			}})
			return nil
		}
		if err := open(atlasmap.LayerRaster0, cfg.Path); err != nil {
			return nil, err
		}
		if cfg.ElevationPath != "" {
			if err := open(atlasmap.LayerElevation, cfg.ElevationPath, mbtiles.WithElevation()); err != nil {
				providers[0].closer.Close()
				return nil, err
			}
		}

	case "redis":
		conns := redis.NewPool(cfg.RedisAddr, cfg.RedisMaxActive)
		add := func(layer atlasmap.Layer, prefix string, opts ...redis.Option) {
			opts = append(opts, redis.WithLogger(logger), redis.WithWorkers(cfg.Workers))
			p := redis.New(conns, prefix, opts...)
			providers = append(providers, layerProvider{layer, p, p, func() string {
				s := p.Stats()
				return fmt.Sprintf("%d requests, %d completed", s.Submitted, s.Completed)
			}})
		}
		add(atlasmap.LayerRaster0, cfg.RedisPrefix)
		if cfg.ElevationPrefix != "" {
			add(atlasmap.LayerElevation, cfg.ElevationPrefix, redis.WithElevation())
		}
		// Closed after the providers drain their requests.
		providers = append(providers, layerProvider{layer: -1, closer: conns})
	}
	return providers, nil
}

func newRenderer(cfg Config, b atlasmap.Backend, providers []layerProvider) (*atlasmap.Renderer, error) {
	filtering, err := cfg.Renderer.filtering()
	if err != nil {
		return nil, err
	}
	opts := atlasmap.DefaultOptions()
	opts.AllowAtlasTextures = cfg.Renderer.AtlasTextures
	opts.TextureFiltering = filtering
	opts.MaxTileUploadsPerFrame = cfg.Renderer.MaxUploads

	r := atlasmap.NewRenderer(
		atlasmap.WithBackend(b),
		atlasmap.WithCacheBudget(uint64(cfg.Renderer.CacheBudgetMB)<<20),
		atlasmap.WithOptions(opts),
	)
	for _, p := range providers {
		if p.tiles == nil {
			continue
		}
		if err := r.SetTileProvider(p.layer, p.tiles); err != nil {
			return nil, err
		}
	}

	w, h := cfg.Renderer.Width, cfg.Renderer.Height
	r.SetPreferredTextureDepth(cfg.Renderer.textureDepth())
	r.UpdateViewport(image.Pt(w, h), image.Rect(0, 0, w, h), cfg.Renderer.FieldOfView, cfg.Renderer.FogDistance)

	x31, y31 := tile.FromLatLon(cfg.Camera.Lat, cfg.Camera.Lon)
	r.UpdateMap(atlasmap.Point31{X: x31, Y: y31}, cfg.Camera.Zoom)
	r.UpdateCamera(cfg.Camera.Distance, cfg.Camera.Azimuth, cfg.Camera.Elevation)
	return r, nil
}

func renderFrames(ctx context.Context, cfg Config, r *atlasmap.Renderer, ar *atlas.Renderer, out io.Writer) error {
	frames := cfg.Output.Frames
	var bar *progressbar.ProgressBar
	if cfg.Output.Progress {
		bar = progressbar.NewOptions(frames,
			progressbar.OptionSetDescription("rendering"),
			progressbar.OptionSetWriter(os.Stderr),
			progressbar.OptionShowCount(),
		)
		defer bar.Finish()
	}

	drawn := 0
	for i := range frames {
		if err := ctx.Err(); err != nil {
			return err
		}
		azimuth := cfg.Camera.Azimuth + float32(i)*cfg.Camera.Sweep
		r.UpdateCamera(cfg.Camera.Distance, azimuth, cfg.Camera.Elevation)
		if err := r.RenderFrame(ctx); err != nil {
			return fmt.Errorf("frame %d: %w", i, err)
		}
		fs := ar.LastFrameStats()
		drawn += fs.TilesDrawn
		if bar != nil {
			bar.Add(1)
		} else {
			fmt.Fprintf(out, "frame %d: azimuth %.1f, %d tiles drawn, %d without raster data\n", i, azimuth, fs.TilesDrawn, fs.TilesMissing)
		}
	}
	if frames > 0 {
		fmt.Fprintf(out, "frames: %d, tiles drawn: %d (%.1f per frame)\n", frames, drawn, float64(drawn)/float64(frames))
	}
	return nil
}

func report(out io.Writer, r *atlasmap.Renderer, ar *atlas.Renderer, providers []layerProvider) {
	fmt.Fprintf(out, "cached tiles: %d\n", r.CachedTilesCount())
	for _, p := range providers {
		if p.tiles == nil {
			continue
		}
		fmt.Fprintf(out, "%s cache: %s\n", p.layer, r.CacheStats(p.layer))
		fmt.Fprintf(out, "%s provider: %s\n", p.layer, p.stats())
	}
	for _, ps := range ar.PoolStats() {
		fmt.Fprintf(out, "pool %s/%dpx: %d textures, %d/%d slots, %d mips\n",
			ps.Layer, ps.TileSize, ps.Textures, ps.UsedSlots, ps.Capacity, ps.MipLevels)
	}
	fmt.Fprintf(out, "standalone textures: %d\n", ar.StandaloneTextures())
}
