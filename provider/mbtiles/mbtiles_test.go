package mbtiles_test

import (
	"bytes"
	"context"
	"database/sql"
	"errors"
	"image"
	"image/color"
	"image/png"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"github.com/gogpu/atlasmap"
	"github.com/gogpu/atlasmap/provider"
	"github.com/gogpu/atlasmap/provider/mbtiles"
	"github.com/gogpu/atlasmap/tile"
)

type fixtureTile struct {
	z, x, y int // XYZ
	data    []byte
}

func pngTile(t *testing.T, c color.Color) []byte {
	t.Helper()
	img := image.NewNRGBA(image.Rect(0, 0, 8, 8))
	for y := range 8 {
		for x := range 8 {
			img.Set(x, y, c)
		}
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatalf("png.Encode failed: %v", err)
	}
	return buf.Bytes()
}

func writeFixture(t *testing.T, metadata map[string]string, tiles []fixtureTile) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "fixture.mbtiles")
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		t.Fatalf("sql.Open failed: %v", err)
	}
	defer db.Close()

	if _, err := db.Exec(`
		CREATE TABLE metadata (name TEXT, value TEXT);
		CREATE TABLE tiles (
			zoom_level INTEGER,
			tile_column INTEGER,
			tile_row INTEGER,
			tile_data BLOB
		);
	`); err != nil {
		t.Fatalf("create schema failed: %v", err)
	}
	for name, value := range metadata {
		if _, err := db.Exec("INSERT INTO metadata (name, value) VALUES (?, ?)", name, value); err != nil {
			t.Fatalf("insert metadata failed: %v", err)
		}
	}
	for _, ft := range tiles {
		row := (1 << ft.z) - 1 - ft.y
		if _, err := db.Exec("INSERT INTO tiles (zoom_level, tile_column, tile_row, tile_data) VALUES (?, ?, ?, ?)",
			ft.z, ft.x, row, ft.data); err != nil {
			t.Fatalf("insert tile failed: %v", err)
		}
	}
	return path
}

type result struct {
	data atlasmap.TileData
	err  error
}

func request(t *testing.T, p *mbtiles.Provider, zoom tile.Zoom, id tile.ID) result {
	t.Helper()
	ch := make(chan result, 1)
	p.RequestTile(context.Background(), zoom, id, func(data atlasmap.TileData, err error) {
		ch <- result{data, err}
	})
	select {
	case r := <-ch:
		return r
	case <-time.After(5 * time.Second):
		t.Fatal("RequestTile callback not called")
		return result{}
	}
}

func TestReadTile(t *testing.T) {
	red := pngTile(t, color.NRGBA{R: 255, A: 255})
	path := writeFixture(t, nil, []fixtureTile{{z: 2, x: 1, y: 0, data: red}})

	p, err := mbtiles.Open(path)
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	defer p.Close()

	got, err := p.ReadTile(2, tile.ID{X: 1, Y: 0})
	if err != nil {
		t.Fatalf("ReadTile failed: %v", err)
	}
	if !cmp.Equal(got, red) {
		t.Errorf("ReadTile(2, 1,0) returned %d bytes, want %d", len(got), len(red))
	}

	// Row 0 in XYZ is row 3 in TMS; the flipped position holds nothing.
	got, err = p.ReadTile(2, tile.ID{X: 1, Y: 3})
	if err != nil || got != nil {
		t.Errorf("ReadTile(2, 1,3) = (%v, %v), want (nil, nil)", got, err)
	}

	got, err = p.ReadTile(2, tile.ID{X: -1, Y: 0})
	if err != nil || got != nil {
		t.Errorf("ReadTile(2, -1,0) = (%v, %v), want (nil, nil)", got, err)
	}
}

func TestMetadata(t *testing.T) {
	want := map[string]string{"name": "fixture", "format": "png", "maxzoom": "4"}
	p, err := mbtiles.Open(writeFixture(t, want, nil))
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	defer p.Close()

	got, err := p.Metadata()
	if err != nil {
		t.Fatalf("Metadata failed: %v", err)
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("Metadata mismatch (-want +got):\n%s", diff)
	}
}

func TestRequestTile(t *testing.T) {
	path := writeFixture(t, nil, []fixtureTile{
		{z: 1, x: 0, y: 1, data: pngTile(t, color.NRGBA{G: 255, A: 255})},
		{z: 1, x: 1, y: 1, data: []byte("broken")},
	})
	p, err := mbtiles.Open(path, mbtiles.WithWorkers(2))
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	defer p.Close()

	r := request(t, p, 1, tile.ID{X: 0, Y: 1})
	if r.err != nil {
		t.Fatalf("RequestTile error = %v", r.err)
	}
	rt, ok := r.data.(atlasmap.RasterTile)
	if !ok {
		t.Fatalf("RequestTile data = %T, want atlasmap.RasterTile", r.data)
	}
	if _, g, _, _ := rt.At(3, 3).RGBA(); g>>8 != 255 {
		t.Errorf("green = %d, want 255", g>>8)
	}

	if r := request(t, p, 1, tile.ID{X: 0, Y: 0}); r.data != nil || r.err != nil {
		t.Errorf("missing tile = (%v, %v), want (nil, nil)", r.data, r.err)
	}

	if r := request(t, p, 1, tile.ID{X: 1, Y: 1}); r.err == nil {
		t.Error("broken tile succeeded, want error")
	}
}

func TestRequestElevation(t *testing.T) {
	img := image.NewNRGBA(image.Rect(0, 0, 2, 2))
	r, g, b := provider.EncodeTerrainRGB(250)
	for y := range 2 {
		for x := range 2 {
			img.Set(x, y, color.NRGBA{R: r, G: g, B: b, A: 255})
		}
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatalf("png.Encode failed: %v", err)
	}

	p, err := mbtiles.Open(writeFixture(t, nil, []fixtureTile{{z: 0, x: 0, y: 0, data: buf.Bytes()}}),
		mbtiles.WithElevation())
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	defer p.Close()

	res := request(t, p, 0, tile.ID{})
	if res.err != nil {
		t.Fatalf("RequestTile error = %v", res.err)
	}
	e, ok := res.data.(*atlasmap.ElevationTile)
	if !ok {
		t.Fatalf("RequestTile data = %T, want *atlasmap.ElevationTile", res.data)
	}
	if got := e.At(1, 1); got < 249.9 || got > 250.1 {
		t.Errorf("height = %v, want 250", got)
	}
}

func TestRequestAfterClose(t *testing.T) {
	p, err := mbtiles.Open(writeFixture(t, nil, nil))
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	if err := p.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}
	if r := request(t, p, 0, tile.ID{}); !errors.Is(r.err, mbtiles.ErrClosed) {
		t.Errorf("RequestTile after Close error = %v, want ErrClosed", r.err)
	}
}

func TestRequestCanceled(t *testing.T) {
	p, err := mbtiles.Open(writeFixture(t, nil, nil))
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	called := make(chan struct{}, 1)
	p.RequestTile(ctx, 0, tile.ID{}, func(atlasmap.TileData, error) { called <- struct{}{} })
	if err := p.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}
	select {
	case <-called:
		t.Error("callback called for canceled request")
	default:
	}
}
