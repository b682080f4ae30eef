package world

import (
	"fmt"
	"math"

	"voxmap/internal/coord"
)

// Subset restricts rendering to part of the world.
type Subset interface {
	Contains(c coord.ChunkCoord) bool
	// BlockFilter returns the filter to apply when loading c.
	BlockFilter(c coord.ChunkCoord) BlockFilter
	// Description is stable across runs and feeds the cache fingerprint.
	Description() string
}

// FullSubset contains the whole world.
type FullSubset struct{}

func (FullSubset) Contains(coord.ChunkCoord) bool           { return true }
func (FullSubset) BlockFilter(coord.ChunkCoord) BlockFilter { return NullBlockFilter{} }
func (FullSubset) Description() string                      { return "FullWorldSubset" }

// circleBuffer pads the chunk test so that chunks whose centre lies just
// outside the circle, but which still hold blocks inside it, are kept.
const circleBuffer = coord.ChunkWidth * 3

// CircularSubset keeps blocks within Radius of an origin, in block units.
type CircularSubset struct {
	OriginX float64
	OriginZ float64
	Radius  float64
}

func (s CircularSubset) Contains(c coord.ChunkCoord) bool {
	cx := float64(c.X*coord.ChunkWidth) + coord.ChunkWidth/2
	cz := float64(c.Z*coord.ChunkDepth) + coord.ChunkDepth/2
	return math.Hypot(cx-s.OriginX, cz-s.OriginZ) <= s.Radius+circleBuffer
}

func (s CircularSubset) BlockFilter(c coord.ChunkCoord) BlockFilter {
	// Chunks wholly inside the circle need no per-block test.
	x0 := float64(c.X * coord.ChunkWidth)
	z0 := float64(c.Z * coord.ChunkDepth)
	inside := true
	for _, p := range [][2]float64{{x0, z0}, {x0 + coord.ChunkWidth, z0}, {x0, z0 + coord.ChunkDepth}, {x0 + coord.ChunkWidth, z0 + coord.ChunkDepth}} {
		if math.Hypot(p[0]-s.OriginX, p[1]-s.OriginZ) > s.Radius {
			inside = false
			break
		}
	}
	if inside {
		return NullBlockFilter{}
	}
	return circleFilter{originX: s.OriginX, originZ: s.OriginZ, radius: s.Radius}
}

func (s CircularSubset) Description() string {
	return fmt.Sprintf("CircularWorldSubset(%g,%g,%g)", s.OriginX, s.OriginZ, s.Radius)
}

// RectSubset keeps blocks with MinX <= x < MaxX and MinZ <= z < MaxZ.
type RectSubset struct {
	MinX, MinZ int64
	MaxX, MaxZ int64
}

func (s RectSubset) Contains(c coord.ChunkCoord) bool {
	x0, z0 := c.X*coord.ChunkWidth, c.Z*coord.ChunkDepth
	return x0+coord.ChunkWidth > s.MinX && x0 < s.MaxX &&
		z0+coord.ChunkDepth > s.MinZ && z0 < s.MaxZ
}

func (s RectSubset) BlockFilter(c coord.ChunkCoord) BlockFilter {
	x0, z0 := c.X*coord.ChunkWidth, c.Z*coord.ChunkDepth
	if x0 >= s.MinX && x0+coord.ChunkWidth <= s.MaxX &&
		z0 >= s.MinZ && z0+coord.ChunkDepth <= s.MaxZ {
		return NullBlockFilter{}
	}
	return rectFilter{minX: s.MinX, minZ: s.MinZ, maxX: s.MaxX, maxZ: s.MaxZ}
}

func (s RectSubset) Description() string {
	return fmt.Sprintf("RectangularWorldSubset(%d,%d,%d,%d)", s.MinX, s.MinZ, s.MaxX, s.MaxZ)
}
