package config

import (
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"voxmap/internal/world"
)

type Config struct {
	CacheType             string
	CacheDir              string
	OutputDir             string
	LogLevel              string
	TileSize              int
	NumZoomLevels         int
	MaxTiles              int
	RawCacheChunks        int
	GeometryCacheChunks   int
	HashFrontCacheRegions int
	HashFrontCacheMin     int
	Rasteriser            string
	ColourDepth           int
	AlphaBits             int
	NumSamples            int
	MinecraftJar          string
	TexturePack           string
	VerifyImages          bool
	VipsConcurrency       int
	VipsMaxCacheMB        int
	MapConfig             string
	ChangedFileList       string
}

func Load() *Config {
	outputDir := getEnv("OUTPUT_DIR", "/data/map")
	cacheType := getEnv("CACHE", "file")

	cfg := &Config{
		CacheType:             cacheType,
		CacheDir:              getEnv("CACHE_DIR", filepath.Join(outputDir, "Cache")),
		OutputDir:             outputDir,
		LogLevel:              getEnv("LOG_LEVEL", "info"),
		TileSize:              getEnvInt("TILE_SIZE", 512),
		NumZoomLevels:         getEnvInt("NUM_ZOOM_LEVELS", 8),
		MaxTiles:              getEnvInt("MAX_TILES", 0),
		RawCacheChunks:        getEnvInt("RAW_CACHE_CHUNKS", 100),
		GeometryCacheChunks:   getEnvInt("GEOMETRY_CACHE_CHUNKS", 100),
		HashFrontCacheRegions: getEnvInt("HASH_FRONT_CACHE_REGIONS", 32),
		HashFrontCacheMin:     getEnvInt("HASH_FRONT_CACHE_MIN", 16),
		Rasteriser:            getEnv("RASTERISER", "lwjgl"),
		ColourDepth:           getEnvInt("COLOUR_DEPTH", 16),
		AlphaBits:             getEnvInt("ALPHA_BITS", 8),
		NumSamples:            getEnvInt("NUM_SAMPLES", 4),
		MinecraftJar:          getEnv("MINECRAFT_JAR", ""),
		TexturePack:           getEnv("TEXTURE_PACK", ""),
		VerifyImages:          getEnvBool("VERIFY_IMAGES", false),
		VipsConcurrency:       getEnvInt("VIPS_CONCURRENCY", 1),
		VipsMaxCacheMB:        getEnvInt("VIPS_MAX_CACHE_MB", 64),
		MapConfig:             getEnv("MAP_CONFIG", ""),
		ChangedFileList:       getEnv("CHANGED_FILE_LIST", ""),
	}

	return cfg
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolValue, err := strconv.ParseBool(strings.TrimSpace(value)); err == nil {
			return boolValue
		}
	}
	return defaultValue
}

// IsCacheEnabled reports whether tile hashes are persisted between runs.
func (c *Config) IsCacheEnabled() bool {
	return strings.TrimSpace(c.CacheType) != "disabled"
}

// LayerCacheDir is where the tile cache of one layer lives.
func (c *Config) LayerCacheDir(mapID, layerID string) string {
	return filepath.Join(c.CacheDir, "tileCache", mapID, layerID)
}

// SwapDir holds the external tile lists of the current run.
func (c *Config) SwapDir() string {
	return filepath.Join(c.CacheDir, "swap")
}

// LayerDir is where the images of one layer are written.
func (c *Config) LayerDir(mapID, layerID string) string {
	return filepath.Join(c.OutputDir, mapID, layerID)
}

// WorkingSetOptions sizes a renderer's chunk caches for the given subset.
func (c *Config) WorkingSetOptions(subset world.Subset) world.WorkingSetOptions {
	return world.WorkingSetOptions{
		RawChunks:      c.RawCacheChunks,
		GeometryChunks: c.GeometryCacheChunks,
		Subset:         subset,
	}
}
