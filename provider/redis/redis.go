// Package redis serves tiles stored in Redis under "prefix:z:x:y" keys.
package redis

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	redigo "github.com/gomodule/redigo/redis"

	"github.com/gogpu/atlasmap"
	"github.com/gogpu/atlasmap/internal/parallel"
	"github.com/gogpu/atlasmap/provider"
	"github.com/gogpu/atlasmap/tile"
)

// ErrClosed is reported to requests made after Close.
var ErrClosed = errors.New("redis: provider closed")

type config struct {
	logger    *slog.Logger
	elevation bool
	workers   int
}

// Option configures a Provider.
type Option func(*config)

// WithLogger sets the logger for per-tile events. The default discards.
func WithLogger(logger *slog.Logger) Option {
	return func(c *config) { c.logger = logger }
}

// WithElevation decodes tiles as Terrain-RGB elevation tiles.
func WithElevation() Option {
	return func(c *config) { c.elevation = true }
}

// WithWorkers sets the number of goroutines issuing requests.
// Zero uses GOMAXPROCS.
func WithWorkers(n int) Option {
	return func(c *config) { c.workers = n }
}

// NewPool returns a connection pool for the server at addr.
func NewPool(addr string, maxActive int) *redigo.Pool {
	return &redigo.Pool{
		MaxIdle:     max(maxActive/2, 1),
		MaxActive:   maxActive,
		IdleTimeout: 240 * time.Second,
		Wait:        true,
		Dial: func() (redigo.Conn, error) {
			return redigo.Dial("tcp", addr)
		},
	}
}

// Provider implements atlasmap.TileProvider over a Redis key space.
// The connection pool belongs to the caller.
type Provider struct {
	conns  *redigo.Pool
	prefix string
	pool   *parallel.WorkerPool
	logger *slog.Logger
	elev   bool
}

// New returns a Provider reading keys under prefix from conns.
func New(conns *redigo.Pool, prefix string, opts ...Option) *Provider {
	cfg := config{logger: slog.New(slog.DiscardHandler)}
	for _, opt := range opts {
		opt(&cfg)
	}
	if cfg.logger == nil {
		cfg.logger = slog.New(slog.DiscardHandler)
	}
	return &Provider{
		conns:  conns,
		prefix: prefix,
		pool:   parallel.NewWorkerPool(cfg.workers),
		logger: cfg.logger,
		elev:   cfg.elevation,
	}
}

// Key returns the key of the tile at (zoom, id).
func (p *Provider) Key(zoom tile.Zoom, id tile.ID) string {
	return fmt.Sprintf("%s:%d:%d:%d", p.prefix, zoom, id.X, id.Y)
}

// ReadTile returns the encoded tile at (zoom, id). A missing key yields
// (nil, nil).
func (p *Provider) ReadTile(ctx context.Context, zoom tile.Zoom, id tile.ID) ([]byte, error) {
	conn, err := p.conns.GetContext(ctx)
	if err != nil {
		return nil, fmt.Errorf("redis: get connection: %w", err)
	}
	defer conn.Close()

	data, err := redigo.Bytes(conn.Do("GET", p.Key(zoom, id)))
	if err != nil {
		if errors.Is(err, redigo.ErrNil) {
			return nil, nil
		}
		return nil, fmt.Errorf("redis: get %s: %w", p.Key(zoom, id), err)
	}
	return data, nil
}

// RequestTile fetches and decodes the tile on the worker pool.
func (p *Provider) RequestTile(ctx context.Context, zoom tile.Zoom, id tile.ID, ready atlasmap.TileReadyFunc) {
	ok := p.pool.Submit(func() {
		if ctx.Err() != nil {
			return
		}
		data, err := p.load(ctx, zoom, id)
		if err != nil {
			p.logger.Warn("redis: tile failed", "zoom", zoom, "tile", id, "err", err)
		}
		ready(data, err)
	})
	if !ok {
		ready(nil, ErrClosed)
	}
}

func (p *Provider) load(ctx context.Context, zoom tile.Zoom, id tile.ID) (atlasmap.TileData, error) {
	raw, err := p.ReadTile(ctx, zoom, id)
	if err != nil {
		return nil, err
	}
	data, err := provider.Decode(raw, p.elev)
	if err != nil {
		return nil, fmt.Errorf("redis: tile %d/%s: %w", zoom, id, err)
	}
	return data, nil
}

// Stats returns the worker pool counters.
func (p *Provider) Stats() parallel.Stats {
	return p.pool.Stats()
}

// Close waits for pending requests. The connection pool is left open.
func (p *Provider) Close() error {
	p.pool.Close()
	return nil
}

var _ atlasmap.TileProvider = (*Provider)(nil)
