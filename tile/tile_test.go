package tile

import "testing"

func TestNormalize(t *testing.T) {
	tests := []struct {
		name string
		id   ID
		zoom Zoom
		want ID
	}{
		{"west wrap", ID{X: -1, Y: 3}, 3, ID{X: 7, Y: 3}},
		{"east wrap", ID{X: 8, Y: 3}, 3, ID{X: 0, Y: 3}},
		{"north wrap", ID{X: 2, Y: -2}, 3, ID{X: 2, Y: 6}},
		{"south wrap", ID{X: 2, Y: 17}, 3, ID{X: 2, Y: 1}},
		{"in range", ID{X: 5, Y: 5}, 3, ID{X: 5, Y: 5}},
		{"zoom zero", ID{X: -4, Y: 9}, 0, ID{X: 0, Y: 0}},
		{"max zoom negative", ID{X: -1, Y: 0}, MaxZoom, ID{X: 1<<31 - 1, Y: 0}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Normalize(tt.id, tt.zoom); got != tt.want {
				t.Errorf("Normalize(%v, %d) = %v, want %v", tt.id, tt.zoom, got, tt.want)
			}
		})
	}
}

func TestFromPoint31(t *testing.T) {
	// The world midpoint is the top-left corner of tile (1,1) at zoom 1.
	mid := uint32(1) << 30
	if got := FromPoint31(mid, mid, 1); got != (ID{X: 1, Y: 1}) {
		t.Errorf("FromPoint31(mid, mid, 1) = %v, want 1,1", got)
	}
	if got := FromPoint31(mid-1, mid, 1); got != (ID{X: 0, Y: 1}) {
		t.Errorf("FromPoint31(mid-1, mid, 1) = %v, want 0,1", got)
	}
	if got := FromPoint31(12345, 67890, MaxZoom); got != (ID{X: 12345, Y: 67890}) {
		t.Errorf("FromPoint31 at max zoom = %v, want identity", got)
	}
}

func TestPoint31RoundTrip(t *testing.T) {
	id := ID{X: 5, Y: 2}
	x, y := Point31(id, 3)
	if got := FromPoint31(x, y, 3); got != id {
		t.Errorf("FromPoint31(Point31(%v)) = %v", id, got)
	}
}

func TestOffsetInTile(t *testing.T) {
	mid := uint32(1) << 30
	x, y := OffsetInTile(mid, mid, 1)
	if x != 0 || y != 0 {
		t.Errorf("OffsetInTile(corner) = (%v, %v), want (0, 0)", x, y)
	}

	quarter := uint32(1) << 29
	x, _ = OffsetInTile(quarter, 0, 0)
	if x < 0.24 || x > 0.26 {
		t.Errorf("OffsetInTile(quarter).x = %v, want ~0.25", x)
	}

	x, y = OffsetInTile(77, 99, MaxZoom)
	if x != 0 || y != 0 {
		t.Errorf("OffsetInTile at max zoom = (%v, %v), want (0, 0)", x, y)
	}
}

func TestSplitZoom(t *testing.T) {
	tests := []struct {
		in       float32
		wantBase Zoom
		wantFrac float32
	}{
		{0, 0, 0},
		{-3, 0, 0},
		{3.25, 3, 0.25},
		{3.5, 4, -0.5},
		{3.75, 4, -0.25},
		{10, 10, 0},
	}
	for _, tt := range tests {
		base, frac := SplitZoom(tt.in)
		if base != tt.wantBase || frac != tt.wantFrac {
			t.Errorf("SplitZoom(%v) = (%d, %v), want (%d, %v)", tt.in, base, frac, tt.wantBase, tt.wantFrac)
		}
	}

	base, frac := SplitZoom(40)
	if base != MaxZoom || frac < 0.49 || frac >= 0.5 {
		t.Errorf("SplitZoom(40) = (%d, %v), want (%d, ~0.5)", base, frac, MaxZoom)
	}
}

func TestFromLatLon(t *testing.T) {
	tests := []struct {
		lat, lon float64
		zoom     Zoom
		want     ID
	}{
		{0, 0, 1, ID{1, 1}},
		{0, -180, 1, ID{0, 1}},
		{0, 180, 1, ID{0, 1}},
		{90, 0, 2, ID{2, 0}},
		{-90, 0, 2, ID{2, 3}},
		// Kyiv at zoom 10.
		{50.4501, 30.5234, 10, ID{598, 345}},
	}
	for _, tt := range tests {
		x31, y31 := FromLatLon(tt.lat, tt.lon)
		if got := FromPoint31(x31, y31, tt.zoom); got != tt.want {
			t.Errorf("FromLatLon(%v, %v) at zoom %d = %v, want %v", tt.lat, tt.lon, tt.zoom, got, tt.want)
		}
	}
}
