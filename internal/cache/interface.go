package cache

import (
	"errors"

	"voxmap/internal/coord"
	"voxmap/internal/frustum"
	"voxmap/internal/swap"
	"voxmap/internal/tileimage"
)

var ErrNoStagedHash = errors.New("no staged hash for tile")

// ChunkHashes looks up the content hash of a chunk hashed during this run.
type ChunkHashes interface {
	ChunkHash(c coord.ChunkCoord) ([]byte, error)
}

// World lists the chunks visible from a camera.
type World interface {
	FindVisible(cam frustum.Camera) []coord.ChunkCoord
}

// TileFramer positions a camera so that it frames exactly one tile.
type TileFramer interface {
	FrameTile(tile coord.TileCoord, zoom, tileWidth, tileHeight int) frustum.Camera
}

// Query holds everything needed to hash the tiles of one zoom level.
type Query struct {
	Hashes     ChunkHashes
	World      World
	Camera     TileFramer
	Zoom       int
	TileWidth  int
	TileHeight int

	// LayerDir holds one Zoom{n} directory per zoom level.
	LayerDir string
}

// Stats describes the persisted state of a tile cache.
type Stats struct {
	Tiles   int
	Staged  int
	Pending map[int]int // zoom level -> tiles awaiting downsample
}

// TileCache decides which tiles need rendering and tracks which coarser
// tiles need downsampling afterwards. Render loops are written against this
// interface only.
type TileCache interface {
	// Reset discards staged hashes that were never written.
	Reset() error
	IsUsingExistingCache() bool
	HasDownsampleState() bool

	// FindChangedTiles returns the members of visible whose image is missing
	// or whose content hash differs from the stored one, staging the new hash
	// for each.
	FindChangedTiles(factory *swap.Factory, visible *swap.TileList, q Query) (*swap.TileList, error)
	// WriteImageCache persists the staged hash of a tile that was rendered.
	WriteImageCache(c coord.TileCoord) error

	// CalculateDownsampledTileCoordinates flags every ancestor of baseTiles,
	// from zoomLevel-1 down to 0, as needing downsampling.
	CalculateDownsampledTileCoordinates(baseTiles *swap.TileList, zoomLevel int) error
	// FindTilesForDownsampling returns the flagged tiles of a zoom level,
	// plus any tile marked done whose image is unusable. A nil list means
	// the cache keeps no downsample state.
	FindTilesForDownsampling(factory *swap.Factory, zoomLevel int, layerDir string, format tileimage.Format) (*swap.TileList, error)
	// UpdateTileDownsampleStatus is safe for concurrent use.
	UpdateTileDownsampleStatus(c coord.TileCoord, zoomLevel int) error

	Stats() (Stats, error)
	Close() error
}

// TilesForDownsampling returns the tiles to regenerate at zoomLevel. When the
// cache keeps no downsample state, every parent of the tiles changed at the
// finer level is returned.
func TilesForDownsampling(tc TileCache, factory *swap.Factory, finer *swap.TileList, zoomLevel int, layerDir string, format tileimage.Format) (*swap.TileList, error) {
	tiles, err := tc.FindTilesForDownsampling(factory, zoomLevel, layerDir, format)
	if err != nil {
		return nil, err
	}
	if tiles != nil {
		return tiles, nil
	}
	return swap.NextZoomTiles(factory, finer)
}
