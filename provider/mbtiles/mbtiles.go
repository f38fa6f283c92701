// Package mbtiles serves tiles from an MBTiles (sqlite) file.
//
// The file is opened read-only. Rows are addressed in the TMS scheme and
// flipped to the XYZ scheme the renderer uses.
package mbtiles

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"

	_ "github.com/mattn/go-sqlite3"

	"github.com/gogpu/atlasmap"
	"github.com/gogpu/atlasmap/internal/parallel"
	"github.com/gogpu/atlasmap/provider"
	"github.com/gogpu/atlasmap/tile"
)

// ErrClosed is reported to requests made after Close.
var ErrClosed = errors.New("mbtiles: provider closed")

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

// WithWorkers sets the number of goroutines reading the database.
// Zero uses GOMAXPROCS.
func WithWorkers(n int) Option {
	return func(c *config) { c.workers = n }
}

// Provider implements atlasmap.TileProvider over an MBTiles file.
type Provider struct {
	db     *sql.DB
	stmt   *sql.Stmt
	pool   *parallel.WorkerPool
	logger *slog.Logger
	elev   bool
}

// Open opens the MBTiles file at path. The returned Provider must be closed.
func Open(path string, opts ...Option) (*Provider, error) {
	cfg := config{logger: slog.New(slog.DiscardHandler)}
	for _, opt := range opts {
		opt(&cfg)
	}
	if cfg.logger == nil {
		cfg.logger = slog.New(slog.DiscardHandler)
	}

	db, err := sql.Open("sqlite3", fmt.Sprintf("file:%s?mode=ro", path))
	if err != nil {
		return nil, fmt.Errorf("mbtiles: open %s: %w", path, err)
	}
	stmt, err := db.Prepare("SELECT tile_data FROM tiles WHERE zoom_level = ? AND tile_column = ? AND tile_row = ?")
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("mbtiles: open %s: %w", path, err)
	}

	cfg.logger.Info("mbtiles: opened", "path", path, "elevation", cfg.elevation)
	return &Provider{
		db:     db,
		stmt:   stmt,
		pool:   parallel.NewWorkerPool(cfg.workers),
		logger: cfg.logger,
		elev:   cfg.elevation,
	}, nil
}

// ReadTile returns the encoded tile at (zoom, id) in XYZ addressing.
// A missing tile yields (nil, nil).
func (p *Provider) ReadTile(zoom tile.Zoom, id tile.ID) ([]byte, error) {
	if id.X < 0 || id.Y < 0 || int64(id.X) >= tile.Count(zoom) || int64(id.Y) >= tile.Count(zoom) {
		return nil, nil
	}
	row := tile.Count(zoom) - 1 - int64(id.Y)

	var data []byte
	if err := p.stmt.QueryRow(int(zoom), id.X, row).Scan(&data); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("mbtiles: read %d/%s: %w", zoom, id, err)
	}
	return data, nil
}

// Metadata returns the name/value pairs of the metadata table.
func (p *Provider) Metadata() (map[string]string, error) {
	rows, err := p.db.Query("SELECT name, value FROM metadata")
	if err != nil {
		return nil, fmt.Errorf("mbtiles: metadata: %w", err)
	}
	defer rows.Close()

	metadata := make(map[string]string)
	for rows.Next() {
		var name, value string
		if err := rows.Scan(&name, &value); err != nil {
			return nil, fmt.Errorf("mbtiles: metadata: %w", err)
		}
		metadata[name] = value
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("mbtiles: metadata: %w", err)
	}
	return metadata, nil
}

// RequestTile reads and decodes the tile on the worker pool.
func (p *Provider) RequestTile(ctx context.Context, zoom tile.Zoom, id tile.ID, ready atlasmap.TileReadyFunc) {
	ok := p.pool.Submit(func() {
		if ctx.Err() != nil {
			return
		}
		data, err := p.load(zoom, id)
		if err != nil {
			p.logger.Warn("mbtiles: tile failed", "zoom", zoom, "tile", id, "err", err)
		} else if data == nil {
			p.logger.Debug("mbtiles: tile unavailable", "zoom", zoom, "tile", id)
		}
		ready(data, err)
	})
	if !ok {
		ready(nil, ErrClosed)
	}
}

func (p *Provider) load(zoom tile.Zoom, id tile.ID) (atlasmap.TileData, error) {
	raw, err := p.ReadTile(zoom, id)
	if err != nil {
		return nil, err
	}
	data, err := provider.Decode(raw, p.elev)
	if err != nil {
		return nil, fmt.Errorf("mbtiles: tile %d/%s: %w", zoom, id, err)
	}
	return data, nil
}

// Stats returns the worker pool counters.
func (p *Provider) Stats() parallel.Stats {
	return p.pool.Stats()
}

// Close waits for pending requests and closes the database.
func (p *Provider) Close() error {
	p.pool.Close()
	return errors.Join(p.stmt.Close(), p.db.Close())
}

var _ atlasmap.TileProvider = (*Provider)(nil)
