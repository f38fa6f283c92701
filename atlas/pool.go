package atlas

import (
	"errors"
	"fmt"
	"math/bits"

	"github.com/gogpu/atlasmap"
	"github.com/gogpu/atlasmap/gpucore"
)

// Atlas errors.
var (
	// ErrAtlasFull is returned when every atlas texture of a pool is full
	// and the pool may not grow.
	ErrAtlasFull = errors.New("atlas: texture pool is full")

	// ErrNotInitialized is returned when drawing before Initialize.
	ErrNotInitialized = errors.New("atlas: renderer not initialized")

	// ErrReleased is returned when using a released renderer.
	ErrReleased = errors.New("atlas: renderer released")

	// ErrUnsupportedTile is returned for tile data the renderer cannot upload.
	ErrUnsupportedTile = errors.New("atlas: unsupported tile data")
)

// poolKey groups tiles that can share atlas textures.
type poolKey struct {
	layer     atlasmap.Layer
	tileSize  int
	format    gpucore.TextureFormat
	mipLevels uint32
}

// atlasTexture is one atlas texture of a pool.
type atlasTexture struct {
	id   gpucore.TextureID
	free []int // free slots, lowest index last
	used int
}

// pool is a set of equally divided atlas textures.
type pool struct {
	key          poolKey
	padding      int
	slotSize     int // tileSize + 2*padding
	slotsPerSide int
	maxTextures  int
	textures     []*atlasTexture
}

func newPool(key poolKey, atlasSize, padding, maxTextures int) (*pool, error) {
	slot := key.tileSize + 2*padding
	if key.tileSize <= 0 || slot > atlasSize {
		return nil, fmt.Errorf("atlas: tile size %d does not fit a %d atlas", key.tileSize, atlasSize)
	}
	return &pool{
		key:          key,
		padding:      padding,
		slotSize:     slot,
		slotsPerSide: atlasSize / slot,
		maxTextures:  max(maxTextures, 1),
	}, nil
}

// textureSize returns the edge length of an atlas texture.
func (p *pool) textureSize() int {
	return p.slotsPerSide * p.slotSize
}

// slotsPerTexture returns the number of slots of one atlas texture.
func (p *pool) slotsPerTexture() int {
	return p.slotsPerSide * p.slotsPerSide
}

// slotOrigin returns the top-left texel of slot at mip level 0.
func (p *pool) slotOrigin(slot int) (x, y int) {
	return (slot % p.slotsPerSide) * p.slotSize, (slot / p.slotsPerSide) * p.slotSize
}

// slotBytes returns the memory of one slot including its mip chain.
func (p *pool) slotBytes() uint64 {
	var total uint64
	bpp := uint64(p.key.format.BytesPerPixel())
	for level := range p.key.mipLevels {
		s := uint64(p.slotSize >> level)
		total += s * s * bpp
	}
	return total
}

// allocate returns a free slot, creating an atlas texture when every
// existing one is full.
func (p *pool) allocate(dev gpucore.Device) (gpucore.TextureID, int, error) {
	for _, t := range p.textures {
		if n := len(t.free); n > 0 {
			slot := t.free[n-1]
			t.free = t.free[:n-1]
			t.used++
			return t.id, slot, nil
		}
	}
	if len(p.textures) >= p.maxTextures {
		return gpucore.InvalidID, -1, ErrAtlasFull
	}

	size := uint32(p.textureSize())
	id, err := dev.CreateTexture(gpucore.TextureDesc{
		Label:     fmt.Sprintf("atlas %s %d #%d", p.key.layer, p.key.tileSize, len(p.textures)),
		Width:     size,
		Height:    size,
		MipLevels: p.key.mipLevels,
		Format:    p.key.format,
	})
	if err != nil {
		return gpucore.InvalidID, -1, fmt.Errorf("atlas: create atlas texture: %w", err)
	}
	n := p.slotsPerTexture()
	t := &atlasTexture{id: id, free: make([]int, 0, n)}
	for slot := n - 1; slot >= 1; slot-- {
		t.free = append(t.free, slot)
	}
	t.used = 1
	p.textures = append(p.textures, t)
	return id, 0, nil
}

// release returns a slot to the pool. An atlas texture left empty is
// destroyed unless it is the last one of the pool. It reports whether the
// slot belonged to the pool.
func (p *pool) release(dev gpucore.Device, id gpucore.TextureID, slot int) bool {
	for i, t := range p.textures {
		if t.id != id {
			continue
		}
		t.free = append(t.free, slot)
		t.used--
		if t.used <= 0 && len(p.textures) > 1 {
			dev.DestroyTexture(t.id)
			p.textures = append(p.textures[:i], p.textures[i+1:]...)
		}
		return true
	}
	return false
}

// usedSlots returns the number of allocated slots.
func (p *pool) usedSlots() int {
	n := 0
	for _, t := range p.textures {
		n += t.used
	}
	return n
}

func (p *pool) destroy(dev gpucore.Device) {
	for _, t := range p.textures {
		dev.DestroyTexture(t.id)
	}
	p.textures = nil
}

// atlasMipLevels returns the mip level count for which every slot edge
// and origin stays a whole number of texels.
func atlasMipLevels(slotSize int) uint32 {
	if slotSize <= 0 {
		return 1
	}
	return uint32(min(bits.TrailingZeros(uint(slotSize)), bits.Len(uint(slotSize))-1)) + 1
}

// fullMipLevels returns the length of a complete mip chain for size.
func fullMipLevels(size int) uint32 {
	if size <= 1 {
		return 1
	}
	return uint32(bits.Len(uint(size)))
}
