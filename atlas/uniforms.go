package atlas

import (
	"encoding/binary"
	"math"

	"github.com/gogpu/atlasmap"
)

// Uniform block sizes. Must match MapUniforms in shaders/map.wgsl and
// SkyUniforms in shaders/sky.wgsl.
const (
	mapUniformSize = 352
	skyUniformSize = 112
)

// Offsets into MapUniforms.
const (
	offProjView         = 0
	offView             = 64
	offTargetInTile     = 128
	offTileOffset       = 136
	offFogColor         = 144
	offElevationScale   = 160
	offDistanceToTarget = 164
	offCameraElevation  = 168
	offFogDistance      = 172
	offFogDensity       = 176
	offFogOrigin        = 180
	offScaleToRetain    = 184
	offTileSize         = 188
	offLayers           = 192
	layerParamsSize     = 32
)

// layerParams is one LayerParams entry of MapUniforms.
type layerParams struct {
	slot         float32 // negative for standalone textures
	slotsPerSide float32
	slotSizeN    float32
	paddingN     float32
	weight       float32
	maxMip       float32
}

// mapUniforms is the byte image of MapUniforms. The per-frame part is
// written once and the per-tile fields are patched before each draw.
type mapUniforms [mapUniformSize]byte

func (u *mapUniforms) putFloat(off int, v float32) {
	binary.LittleEndian.PutUint32(u[off:], math.Float32bits(v))
}

func (u *mapUniforms) putMatrix(off int, m atlasmap.Matrix) {
	for i, v := range m {
		u.putFloat(off+i*4, v)
	}
}

// setFrame writes the fields shared by every tile of a frame.
func (u *mapUniforms) setFrame(cfg *atlasmap.Configuration, cam *atlasmap.Camera, tileSize float32) {
	u.putMatrix(offProjView, cam.ProjectionView)
	u.putMatrix(offView, cam.View)
	u.putFloat(offTargetInTile, cam.TargetInTile[0])
	u.putFloat(offTargetInTile+4, cam.TargetInTile[1])
	for i, c := range cfg.Fog.Color {
		u.putFloat(offFogColor+i*4, c)
	}
	u.putFloat(offFogColor+12, 1)
	u.putFloat(offElevationScale, cfg.ElevationScale)
	u.putFloat(offDistanceToTarget, cam.DistanceToTarget)
	u.putFloat(offCameraElevation, cfg.ElevationAngle/90)
	u.putFloat(offFogDistance, cfg.Fog.Distance)
	u.putFloat(offFogDensity, cfg.Fog.Density)
	u.putFloat(offFogOrigin, cfg.Fog.OriginFactor)
	u.putFloat(offScaleToRetain, cam.ScaleToRetainProjectedSize)
	u.putFloat(offTileSize, tileSize)
}

// setTileOffset writes the tile position relative to the target tile.
func (u *mapUniforms) setTileOffset(dx, dy int32) {
	u.putFloat(offTileOffset, float32(dx))
	u.putFloat(offTileOffset+4, float32(dy))
}

// setLayer writes the parameters of layer l.
func (u *mapUniforms) setLayer(l atlasmap.Layer, p layerParams) {
	off := offLayers + int(l)*layerParamsSize
	u.putFloat(off, p.slot)
	u.putFloat(off+4, p.slotsPerSide)
	u.putFloat(off+8, p.slotSizeN)
	u.putFloat(off+12, p.paddingN)
	u.putFloat(off+16, p.weight)
	u.putFloat(off+20, p.maxMip)
	u.putFloat(off+24, 0)
	u.putFloat(off+28, 0)
}

// skyUniforms builds the SkyUniforms block.
func skyUniforms(cfg *atlasmap.Configuration, cam *atlasmap.Camera) []byte {
	b := make([]byte, skyUniformSize)
	put := func(off int, v float32) {
		binary.LittleEndian.PutUint32(b[off:], math.Float32bits(v))
	}
	for i, v := range cam.SkyProjectionViewModel {
		put(i*4, v)
	}
	put(64, cam.SkyHalfSize[0])
	put(68, cam.SkyHalfSize[1])
	put(72, cfg.Fog.HeightOriginFactor)
	put(76, cfg.Fog.Density)
	for i := range 3 {
		put(80+i*4, cfg.SkyColor[i])
		put(96+i*4, cfg.Fog.Color[i])
	}
	put(92, 1)
	put(108, 1)
	return b
}
