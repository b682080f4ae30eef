package world

import (
	"voxmap/internal/coord"
	"voxmap/internal/lru"
)

// Unloader is implemented by anything holding resources that must be freed
// when it leaves a working-set cache.
type Unloader interface {
	Unload()
}

// RawChunk is loaded voxel data for a single chunk.
type RawChunk interface {
	Unloader
	Coord() coord.ChunkCoord
}

// Geometry is renderable data derived from a raw chunk and its neighbours.
type Geometry interface {
	Unloader
}

// ChunkLocator answers whether a chunk has data on disk.
type ChunkLocator interface {
	Exists(c coord.ChunkCoord) bool
}

// ChunkLoader reads raw chunks. The filter is applied while loading.
type ChunkLoader interface {
	ChunkLocator
	Load(c coord.ChunkCoord, filter BlockFilter) (RawChunk, error)
}

// BuildParams are the global parameters geometry is derived under. Changing
// any of them requires a flush of the working set.
type BuildParams struct {
	LightStyle     string
	DefaultBlockID string
	Mask           BlockMaskFactory
}

// GeometryBuilder derives geometry for a chunk. Neighbouring raw chunks, when
// loaded, are available through raw.
type GeometryBuilder interface {
	Build(raw RawChunk, neighbours *RawCache, params BuildParams) (Geometry, error)
}

// ChunkCache is a bounded LRU of per-chunk values. Evicted values are
// unloaded.
type ChunkCache[V Unloader] struct {
	entries *lru.Cache[coord.ChunkCoord, V]
}

type (
	RawCache      = ChunkCache[RawChunk]
	GeometryCache = ChunkCache[Geometry]
)

func NewChunkCache[V Unloader](maxSize int) *ChunkCache[V] {
	return &ChunkCache[V]{
		entries: lru.New(maxSize, func(_ coord.ChunkCoord, v V) {
			v.Unload()
		}),
	}
}

func (c *ChunkCache[V]) Put(key coord.ChunkCoord, value V) {
	c.entries.Put(key, value)
}

func (c *ChunkCache[V]) Get(key coord.ChunkCoord) (V, bool) {
	return c.entries.Get(key)
}

func (c *ChunkCache[V]) Contains(key coord.ChunkCoord) bool {
	return c.entries.Contains(key)
}

func (c *ChunkCache[V]) Touch(key coord.ChunkCoord) bool {
	return c.entries.Touch(key)
}

func (c *ChunkCache[V]) TrimToMaxSize() int {
	return c.entries.TrimToMaxSize()
}

func (c *ChunkCache[V]) UnloadAll() int {
	return c.entries.UnloadAll()
}

func (c *ChunkCache[V]) Len() int {
	return c.entries.Len()
}

func (c *ChunkCache[V]) MaxSize() int {
	return c.entries.MaxSize()
}
