// Package tile defines the slippy-map tile coordinates shared by the cache,
// the renderer and the tile providers.
//
// Coordinates are expressed at an explicit zoom level that travels alongside
// an [ID]; an ID is not self-describing. Positions on the map use 31-bit
// integer coordinates, where the whole world spans [0, 2^31) on both axes
// regardless of zoom.
package tile

import (
	"fmt"
	"math"
)

// Zoom is a tile pyramid level in [0, MaxZoom].
type Zoom uint8

const (
	// MaxZoom is the deepest zoom level addressable with 31-bit coordinates.
	MaxZoom Zoom = 31

	// ZoomLevels is the number of distinct zoom levels.
	ZoomLevels = int(MaxZoom) + 1

	// Size3D is the edge length of one tile in world units of the 3D scene.
	Size3D float32 = 100
)

// ID is a tile column/row pair at some zoom.
type ID struct {
	X int32
	Y int32
}

// String returns the tile ID as "x,y".
func (id ID) String() string {
	return fmt.Sprintf("%d,%d", id.X, id.Y)
}

// Count returns the number of tiles along one axis at zoom z.
func Count(z Zoom) int64 {
	return int64(1) << z
}

// Normalize wraps id into [0, 2^z) on both axes.
//
// At MaxZoom every non-negative int32 is already in range, so only negative
// coordinates are wrapped.
func Normalize(id ID, z Zoom) ID {
	n := Count(z)
	return ID{
		X: int32(wrap(int64(id.X), n)),
		Y: int32(wrap(int64(id.Y), n)),
	}
}

func wrap(v, n int64) int64 {
	v %= n
	if v < 0 {
		v += n
	}
	return v
}

// FromPoint31 returns the tile at zoom z containing the 31-bit point (x31, y31).
func FromPoint31(x31, y31 uint32, z Zoom) ID {
	shift := uint(MaxZoom - z)
	return ID{X: int32(x31 >> shift), Y: int32(y31 >> shift)}
}

// Point31 returns the 31-bit coordinate of the top-left corner of id at zoom z.
func Point31(id ID, z Zoom) (x31, y31 uint32) {
	shift := uint(MaxZoom - z)
	return uint32(id.X) << shift, uint32(id.Y) << shift
}

// OffsetInTile returns the normalized position of (x31, y31) inside the tile
// that contains it at zoom z. Both components are in [0, 1]. At MaxZoom a tile
// is a single 31-bit cell and the offset is always zero.
func OffsetInTile(x31, y31 uint32, z Zoom) (float32, float32) {
	if z == MaxZoom {
		return 0, 0
	}
	id := FromPoint31(x31, y31, z)
	ox, oy := Point31(id, z)
	span := float64((uint32(1) << uint(MaxZoom-z)) - 1)
	if span == 0 {
		return 0, 0
	}
	return float32(float64(x31-ox) / span), float32(float64(y31-oy) / span)
}

// MaxFractionalZoom is the largest zoom SplitZoom keeps without clamping.
const MaxFractionalZoom float32 = float32(MaxZoom) + 0.49999

// SplitZoom splits a fractional zoom into the nearest integer level and the
// remaining fraction in [-0.5, 0.5). The input is clamped to
// [0, MaxFractionalZoom].
func SplitZoom(zoom float32) (Zoom, float32) {
	if zoom <= 0 {
		return 0, 0
	}
	zoom = min(zoom, MaxFractionalZoom)
	base := float32(math.Floor(float64(zoom) + 0.5))
	return Zoom(base), zoom - base
}

// MaxLatitude is the latitude limit of the Web Mercator projection.
const MaxLatitude = 85.0511

// FromLatLon projects a WGS84 position to 31-bit Web Mercator coordinates.
// Latitude is clamped to ±MaxLatitude and longitude wrapped to [-180, 180).
func FromLatLon(lat, lon float64) (x31, y31 uint32) {
	const world = float64(1 << 31)

	lon = math.Mod(lon+180, 360)
	if lon < 0 {
		lon += 360
	}
	lat = min(max(lat, -MaxLatitude), MaxLatitude)
	rad := lat * math.Pi / 180
	merc := math.Log(math.Tan(rad) + 1/math.Cos(rad))

	x := lon / 360 * world
	y := (1 - merc/math.Pi) / 2 * world
	return clamp31(x), clamp31(y)
}

func clamp31(v float64) uint32 {
	return uint32(min(max(v, 0), float64(1<<31-1)))
}
