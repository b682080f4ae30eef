package coord

import (
	"encoding/binary"
	"fmt"
	"math"
)

// World dimensions in blocks.
const (
	ChunkWidth  = 16
	ChunkHeight = 384
	ChunkDepth  = 16

	// RegionWidth and RegionDepth are measured in chunks.
	RegionWidth = 32
	RegionDepth = 32
)

// ChunkCoord identifies a chunk column. Ordered by x, then z.
type ChunkCoord struct {
	X int64
	Z int64
}

// RegionCoord identifies a group of RegionWidth x RegionDepth chunks.
type RegionCoord struct {
	X int64
	Z int64
}

// TileCoord is a position in output tile space at a single zoom level.
type TileCoord struct {
	X int
	Y int
}

func (c ChunkCoord) String() string {
	return fmt.Sprintf("chunk(%d,%d)", c.X, c.Z)
}

// Region returns the region owning this chunk.
func (c ChunkCoord) Region() RegionCoord {
	return RegionCoord{
		X: FloorDiv(c.X, RegionWidth),
		Z: FloorDiv(c.Z, RegionDepth),
	}
}

// Compare returns -1, 0 or +1. It is the canonical order used when folding
// chunk hashes into a tile hash.
func (c ChunkCoord) Compare(o ChunkCoord) int {
	switch {
	case c.X < o.X:
		return -1
	case c.X > o.X:
		return 1
	case c.Z < o.Z:
		return -1
	case c.Z > o.Z:
		return 1
	}
	return 0
}

// Neighbours returns the four edge-adjacent chunks.
func (c ChunkCoord) Neighbours() [4]ChunkCoord {
	return [4]ChunkCoord{
		{X: c.X + 1, Z: c.Z},
		{X: c.X - 1, Z: c.Z},
		{X: c.X, Z: c.Z + 1},
		{X: c.X, Z: c.Z - 1},
	}
}

func (r RegionCoord) String() string {
	return fmt.Sprintf("region(%d,%d)", r.X, r.Z)
}

// Chunk returns the chunk at the given offset inside the region.
func (r RegionCoord) Chunk(offsetX, offsetZ int64) ChunkCoord {
	return ChunkCoord{
		X: r.X*RegionWidth + offsetX,
		Z: r.Z*RegionDepth + offsetZ,
	}
}

// RegionFromWorld maps a world-space block position onto its region.
func RegionFromWorld(worldX, worldZ float64) RegionCoord {
	chunkX := int64(math.Floor(worldX / ChunkWidth))
	chunkZ := int64(math.Floor(worldZ / ChunkDepth))
	return ChunkCoord{X: chunkX, Z: chunkZ}.Region()
}

func (t TileCoord) String() string {
	return fmt.Sprintf("tile(%d,%d)", t.X, t.Y)
}

// Parent returns the tile one zoom level coarser that contains t.
func (t TileCoord) Parent() TileCoord {
	return TileCoord{
		X: int(FloorDiv(int64(t.X), 2)),
		Y: int(FloorDiv(int64(t.Y), 2)),
	}
}

// MarshalBinary encodes the tile as two big-endian int32 values.
func (t TileCoord) MarshalBinary() ([]byte, error) {
	buf := make([]byte, 8)
	binary.BigEndian.PutUint32(buf[0:4], uint32(int32(t.X)))
	binary.BigEndian.PutUint32(buf[4:8], uint32(int32(t.Y)))
	return buf, nil
}

func (t *TileCoord) UnmarshalBinary(data []byte) error {
	if len(data) != 8 {
		return fmt.Errorf("tile coord: want 8 bytes, got %d", len(data))
	}
	t.X = int(int32(binary.BigEndian.Uint32(data[0:4])))
	t.Y = int(int32(binary.BigEndian.Uint32(data[4:8])))
	return nil
}

// FloorDiv divides rounding towards negative infinity.
func FloorDiv(a, b int64) int64 {
	q := a / b
	if (a%b != 0) && ((a < 0) != (b < 0)) {
		q--
	}
	return q
}
