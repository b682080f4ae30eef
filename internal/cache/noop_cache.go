package cache

import (
	"voxmap/internal/coord"
	"voxmap/internal/swap"
	"voxmap/internal/tileimage"
)

// NoopTileCache treats every tile as changed and keeps no state.
type NoopTileCache struct{}

func NewNoopTileCache() *NoopTileCache {
	return &NoopTileCache{}
}

func (c *NoopTileCache) Reset() error {
	return nil
}

func (c *NoopTileCache) IsUsingExistingCache() bool {
	return false
}

func (c *NoopTileCache) HasDownsampleState() bool {
	return false
}

func (c *NoopTileCache) FindChangedTiles(_ *swap.Factory, visible *swap.TileList, _ Query) (*swap.TileList, error) {
	return visible, nil
}

func (c *NoopTileCache) WriteImageCache(coord.TileCoord) error {
	return nil
}

func (c *NoopTileCache) CalculateDownsampledTileCoordinates(*swap.TileList, int) error {
	return nil
}

func (c *NoopTileCache) FindTilesForDownsampling(*swap.Factory, int, string, tileimage.Format) (*swap.TileList, error) {
	return nil, nil
}

func (c *NoopTileCache) UpdateTileDownsampleStatus(coord.TileCoord, int) error {
	return nil
}

func (c *NoopTileCache) Stats() (Stats, error) {
	return Stats{}, nil
}

func (c *NoopTileCache) Close() error {
	return nil
}
