package atlasmap

import (
	"cmp"
	"math"
	"slices"

	"github.com/gogpu/atlasmap/internal/mat4"
	"github.com/gogpu/atlasmap/tile"
)

// Matrix is a column-major 4x4 matrix laid out like WGSL mat4x4<f32>.
type Matrix [16]float32

// maxVisibleTiles bounds the visible set for extreme camera setups.
const maxVisibleTiles = 4096

// Camera holds the per-configuration camera state derived by
// computeCamera. World space has the target at the origin, Y up and the
// ground on the XZ plane.
type Camera struct {
	Projection     Matrix
	View           Matrix
	ProjectionView Matrix

	// Position is the camera position in world space.
	Position [3]float32

	// DistanceToTarget is the camera distance from the target after the
	// zoom fraction is applied.
	DistanceToTarget float32

	// ScaleToRetainProjectedSize is 2^-ZoomFraction: world distances scaled
	// by it keep their on-screen size across fractional zoom changes.
	ScaleToRetainProjectedSize float32

	// CorrectedFogDistance is Fog.Distance scaled to the current zoom.
	CorrectedFogDistance float32

	ZNear, ZFar float32

	// TargetTile is the tile containing the target at ZoomBase and
	// TargetInTile the target position inside it, normalized to [0, 1).
	TargetTile   tile.ID
	TargetInTile [2]float32

	// SkyProjectionViewModel places the sky plane facing the camera at the
	// fog distance, and SkyHalfSize is its half extent in world units.
	SkyProjectionViewModel Matrix
	SkyHalfSize            [2]float32
}

// computeCamera derives the camera matrices from c.
func computeCamera(c *Configuration) Camera {
	var cam Camera

	scale := float32(math.Exp2(float64(c.ZoomFraction)))
	cam.ScaleToRetainProjectedSize = 1 / scale
	cam.CorrectedFogDistance = c.Fog.Distance * cam.ScaleToRetainProjectedSize

	fov := mat4.Radians(c.FieldOfView)
	tanHalf := float32(math.Tan(fov / 2))
	dist := c.DistanceFromTarget
	if dist <= 0 {
		h := c.Viewport.Dy()
		if h <= 0 {
			h = ReferenceTileSize
		}
		visible := float32(h) / ReferenceTileSize * tile.Size3D
		dist = visible / 2 / tanHalf
	}
	dist /= scale
	cam.DistanceToTarget = dist

	cam.ZNear = max(dist*0.05, 0.1)
	cam.ZFar = (dist + cam.CorrectedFogDistance) * 2

	azimuth := mat4.Radians(c.Azimuth)
	elevation := mat4.Radians(c.ElevationAngle)
	view := mat4.Translate(0, 0, -dist).
		Mul(mat4.RotateX(elevation)).
		Mul(mat4.RotateY(azimuth))
	proj := mat4.Perspective(fov, c.Aspect(), cam.ZNear, cam.ZFar)
	pv := proj.Mul(view)

	cam.View = Matrix(view)
	cam.Projection = Matrix(proj)
	cam.ProjectionView = Matrix(pv)

	if inv, ok := view.Inverse(); ok {
		p := inv.MulVec4(mat4.Vec4{0, 0, 0, 1})
		cam.Position = [3]float32{p[0], p[1], p[2]}
	}

	skyModel := mat4.RotateY(-azimuth).Mul(mat4.Translate(0, 0, -cam.CorrectedFogDistance))
	cam.SkyProjectionViewModel = Matrix(pv.Mul(skyModel))
	skyDistance := dist + cam.CorrectedFogDistance
	cam.SkyHalfSize = [2]float32{
		skyDistance * tanHalf * c.Aspect(),
		skyDistance*tanHalf + cam.Position[1],
	}

	cam.TargetTile = c.Target.Tile(c.ZoomBase)
	cam.TargetInTile[0], cam.TargetInTile[1] = tile.OffsetInTile(c.Target.X, c.Target.Y, c.ZoomBase)
	return cam
}

// visibleTiles returns the tiles whose ground rectangle intersects the
// view frustum footprint within the fog distance, farthest from the target
// tile first.
func visibleTiles(c *Configuration, cam *Camera) []tile.ID {
	inv, ok := mat4.Mat4(cam.ProjectionView).Inverse()
	if !ok {
		return nil
	}
	radius := cam.CorrectedFogDistance
	eye := mat4.Vec3(cam.Position)
	eyeGround := float32(math.Hypot(float64(eye[0]), float64(eye[2])))

	var footprint [][2]float32
	for _, corner := range [4][2]float32{{-1, -1}, {1, -1}, {1, 1}, {-1, 1}} {
		pn := mat4.Unproject(inv, corner[0], corner[1], 0)
		pf := mat4.Unproject(inv, corner[0], corner[1], 1)
		dir := pf.Sub(pn)
		if dir[1] < -1e-6 {
			t := -pn[1] / dir[1]
			footprint = append(footprint, [2]float32{pn[0] + dir[0]*t, pn[2] + dir[2]*t})
			continue
		}
		// The ray misses the ground: extend it horizontally past the fog.
		hl := float32(math.Hypot(float64(dir[0]), float64(dir[2])))
		if hl < 1e-6 {
			continue
		}
		reach := radius + eyeGround
		footprint = append(footprint, [2]float32{
			eye[0] + dir[0]/hl*reach,
			eye[2] + dir[2]/hl*reach,
		})
	}
	hull := convexHull(footprint)
	if len(hull) < 3 {
		return nil
	}

	minX, minZ, maxX, maxZ := bounds(hull)
	minX, minZ = max(minX, -radius), max(minZ, -radius)
	maxX, maxZ = min(maxX, radius), min(maxZ, radius)
	if minX > maxX || minZ > maxZ {
		return nil
	}

	const s = tile.Size3D
	offX, offY := cam.TargetInTile[0], cam.TargetInTile[1]
	dx0 := int32(math.Floor(float64(minX/s + offX)))
	dx1 := int32(math.Floor(float64(maxX/s + offX)))
	dy0 := int32(math.Floor(float64(minZ/s + offY)))
	dy1 := int32(math.Floor(float64(maxZ/s + offY)))

	var ids []tile.ID
	for dy := dy0; dy <= dy1; dy++ {
		for dx := dx0; dx <= dx1; dx++ {
			x0 := (float32(dx) - offX) * s
			z0 := (float32(dy) - offY) * s
			x1, z1 := x0+s, z0+s
			if !withinRadius(x0, z0, x1, z1, radius) || !hullIntersectsRect(hull, x0, z0, x1, z1) {
				continue
			}
			ids = append(ids, tile.ID{X: cam.TargetTile.X + dx, Y: cam.TargetTile.Y + dy})
			if len(ids) == maxVisibleTiles {
				return sortFarthestFirst(ids, cam.TargetTile)
			}
		}
	}
	return sortFarthestFirst(ids, cam.TargetTile)
}

func sortFarthestFirst(ids []tile.ID, target tile.ID) []tile.ID {
	dist2 := func(id tile.ID) int64 {
		dx, dy := int64(id.X-target.X), int64(id.Y-target.Y)
		return dx*dx + dy*dy
	}
	slices.SortFunc(ids, func(a, b tile.ID) int {
		return cmp.Or(
			cmp.Compare(dist2(b), dist2(a)),
			cmp.Compare(a.Y, b.Y),
			cmp.Compare(a.X, b.X),
		)
	})
	return ids
}

// uniqueTiles normalizes ids into the zoom's tile range and drops
// duplicates created by wrap-around.
func uniqueTiles(ids []tile.ID, zoom tile.Zoom) map[tile.ID]struct{} {
	set := make(map[tile.ID]struct{}, len(ids))
	for _, id := range ids {
		set[tile.Normalize(id, zoom)] = struct{}{}
	}
	return set
}

func withinRadius(x0, z0, x1, z1, r float32) bool {
	nx := clamp(0, x0, x1)
	nz := clamp(0, z0, z1)
	return nx*nx+nz*nz <= r*r
}

func bounds(pts [][2]float32) (minX, minZ, maxX, maxZ float32) {
	minX, minZ = pts[0][0], pts[0][1]
	maxX, maxZ = minX, minZ
	for _, p := range pts[1:] {
		minX, maxX = min(minX, p[0]), max(maxX, p[0])
		minZ, maxZ = min(minZ, p[1]), max(maxZ, p[1])
	}
	return minX, minZ, maxX, maxZ
}

func cross(o, a, b [2]float32) float32 {
	return (a[0]-o[0])*(b[1]-o[1]) - (a[1]-o[1])*(b[0]-o[0])
}

// convexHull returns the hull of pts in counter-clockwise order
// (monotone chain).
func convexHull(pts [][2]float32) [][2]float32 {
	if len(pts) < 3 {
		return pts
	}
	sorted := slices.Clone(pts)
	slices.SortFunc(sorted, func(a, b [2]float32) int {
		return cmp.Or(cmp.Compare(a[0], b[0]), cmp.Compare(a[1], b[1]))
	})
	hull := make([][2]float32, 0, 2*len(sorted))
	for _, p := range sorted {
		for len(hull) >= 2 && cross(hull[len(hull)-2], hull[len(hull)-1], p) <= 0 {
			hull = hull[:len(hull)-1]
		}
		hull = append(hull, p)
	}
	lower := len(hull) + 1
	for i := len(sorted) - 2; i >= 0; i-- {
		p := sorted[i]
		for len(hull) >= lower && cross(hull[len(hull)-2], hull[len(hull)-1], p) <= 0 {
			hull = hull[:len(hull)-1]
		}
		hull = append(hull, p)
	}
	return hull[:len(hull)-1]
}

// hullIntersectsRect is a separating axis test between a convex polygon and
// an axis-aligned rectangle.
func hullIntersectsRect(hull [][2]float32, x0, z0, x1, z1 float32) bool {
	minX, minZ, maxX, maxZ := bounds(hull)
	if maxX < x0 || minX > x1 || maxZ < z0 || minZ > z1 {
		return false
	}
	rect := [4][2]float32{{x0, z0}, {x1, z0}, {x1, z1}, {x0, z1}}
	for i := range hull {
		a, b := hull[i], hull[(i+1)%len(hull)]
		// Counter-clockwise hull: the outside lies to the right of a->b.
		outside := true
		for _, p := range rect {
			if cross(a, b, p) >= 0 {
				outside = false
				break
			}
		}
		if outside {
			return false
		}
	}
	return true
}
