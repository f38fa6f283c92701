package main

import (
	"bytes"
	"context"
	"database/sql"
	"path/filepath"
	"strings"
	"testing"
)

func emptyMBTiles(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "empty.mbtiles")
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		t.Fatalf("sql.Open failed: %v", err)
	}
	defer db.Close()
	if _, err := db.Exec(`
		CREATE TABLE metadata (name TEXT, value TEXT);
		CREATE TABLE tiles (zoom_level INTEGER, tile_column INTEGER, tile_row INTEGER, tile_data BLOB);
		INSERT INTO metadata (name, value) VALUES ('name', 'empty'), ('format', 'png');
	`); err != nil {
		t.Fatalf("create schema failed: %v", err)
	}
	return path
}

func TestRun(t *testing.T) {
	cfg, err := LoadConfig("")
	if err != nil {
		t.Fatalf("LoadConfig() error = %v", err)
	}
	cfg.Renderer.Device = "recording"
	cfg.Renderer.Width, cfg.Renderer.Height = 320, 240
	cfg.Provider.Path = emptyMBTiles(t)
	cfg.Output.Frames = 3
	cfg.Output.Progress = false
	cfg.Output.LogLevel = "error"

	var out bytes.Buffer
	if err := run(context.Background(), cfg, &out); err != nil {
		t.Fatalf("run() error = %v", err)
	}
	for _, want := range []string{"device: recording", "frame 2:", "frames: 3", "Raster0 cache:", "standalone textures:"} {
		if !strings.Contains(out.String(), want) {
			t.Errorf("output missing %q:\n%s", want, out.String())
		}
	}
}

func TestRunUnknownDevice(t *testing.T) {
	cfg, err := LoadConfig("")
	if err != nil {
		t.Fatalf("LoadConfig() error = %v", err)
	}
	cfg.Renderer.Device = "quantum"
	cfg.Provider.Path = emptyMBTiles(t)
	if err := run(context.Background(), cfg, &bytes.Buffer{}); err == nil {
		t.Error("run() with an unknown device succeeded, want error")
	}
}

func TestRunMissingPath(t *testing.T) {
	cfg, err := LoadConfig("")
	if err != nil {
		t.Fatalf("LoadConfig() error = %v", err)
	}
	cfg.Renderer.Device = "recording"
	if err := run(context.Background(), cfg, &bytes.Buffer{}); err == nil {
		t.Error("run() without a tile path succeeded, want error")
	}
}
