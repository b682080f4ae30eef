package cache

import (
	"fmt"

	"go.uber.org/zap"

	"voxmap/internal/tileimage"
)

// NewTileCache creates a tile cache based on the cache type
func NewTileCache(cacheType, cacheDir string, fp *Fingerprint, format tileimage.Format, prober tileimage.Prober, log *zap.Logger) (TileCache, error) {
	switch cacheType {
	case "file":
		log.Info("Using file tile cache", zap.String("cache_dir", cacheDir))
		c, err := NewFileTileCache(cacheDir, fp, format, prober, log)
		if err != nil {
			return nil, err
		}
		return c, nil
	case "disabled":
		log.Info("Tile cache disabled")
		return NewNoopTileCache(), nil
	default:
		return nil, fmt.Errorf("unknown cache type: %s (supported: file, disabled)", cacheType)
	}
}
