package main

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/cshum/vipsgen/vips"
	"go.uber.org/zap"

	"voxmap/internal/cache"
	"voxmap/internal/changelog"
	"voxmap/internal/config"
	"voxmap/internal/hashstore"
	"voxmap/internal/logger"
	"voxmap/internal/swap"
	"voxmap/internal/tileimage"
)

const usage = `usage: voxmap-cache <command>

commands:
  status                  open every layer's tile cache and report its state
  verify                  check the region hash files of the last run
  export <records> [out]  write a change log as a list of paths (out defaults to CHANGED_FILE_LIST)
`

func main() {
	cfg := config.Load()

	log, err := logger.New(cfg.LogLevel)
	if err != nil {
		panic(fmt.Sprintf("failed to initialize logger: %v", err))
	}
	defer log.Sync()

	cmd := "status"
	if len(os.Args) > 1 {
		cmd = os.Args[1]
	}

	switch cmd {
	case "status":
		err = status(cfg, log)
	case "verify":
		err = verify(cfg, log)
	case "export":
		err = export(cfg, os.Args[2:], log)
	default:
		fmt.Fprint(os.Stderr, usage)
		os.Exit(2)
	}
	if err != nil {
		log.Fatal("Command failed", zap.String("command", cmd), zap.Error(err))
	}
}

func status(cfg *config.Config, log *zap.Logger) error {
	if cfg.MapConfig == "" {
		return fmt.Errorf("MAP_CONFIG is not set")
	}
	maps, err := config.LoadMaps(cfg.MapConfig)
	if err != nil {
		return err
	}

	if cfg.VerifyImages {
		startVips(cfg, log)
		defer vips.Shutdown()
	}
	prober := tileimage.NewProber(cfg.VerifyImages, log)

	factory, err := swap.NewFactory(cfg.SwapDir(), log)
	if err != nil {
		return err
	}
	defer factory.Close()

	for _, m := range maps.Maps {
		for _, l := range m.Layers {
			if err := layerStatus(cfg, m, l, factory, prober, log); err != nil {
				return fmt.Errorf("map %s layer %s: %w", m.ID, l.ID, err)
			}
		}
	}
	return nil
}

func layerStatus(cfg *config.Config, m config.Map, l config.Layer, factory *swap.Factory, prober tileimage.Prober, log *zap.Logger) error {
	log = log.With(zap.String("map", m.ID), zap.String("layer", l.ID))

	fp, err := cache.LayerFingerprint(cfg, m, l)
	if err != nil {
		return err
	}
	tc, err := cache.NewTileCache(cfg.CacheType, cfg.LayerCacheDir(m.ID, l.ID), fp, l.Format(), prober, log)
	if err != nil {
		return err
	}
	defer tc.Close()

	stats, err := tc.Stats()
	if err != nil {
		return err
	}
	log.Info("Tile cache",
		zap.Bool("existing", tc.IsUsingExistingCache()),
		zap.Bool("downsample_state", tc.HasDownsampleState()),
		zap.Int("tiles", stats.Tiles),
		zap.Any("downsample_backlog", stats.Pending),
	)

	if tc.HasDownsampleState() {
		if err := checkDownsampled(cfg, tc, factory, cfg.LayerDir(m.ID, l.ID), l.Format(), log); err != nil {
			return err
		}
	}

	scanZoomLevels(cfg, cfg.LayerDir(m.ID, l.ID), l.Format(), prober, log)
	return nil
}

// checkDownsampled re-flags downsampled tiles whose image went missing, so
// the next render regenerates them, and reports what is left per level.
func checkDownsampled(cfg *config.Config, tc cache.TileCache, factory *swap.Factory, layerDir string, format tileimage.Format, log *zap.Logger) error {
	for zoom := cfg.NumZoomLevels - 1; zoom >= 0; zoom-- {
		tiles, err := tc.FindTilesForDownsampling(factory, zoom, layerDir, format)
		if err != nil {
			return err
		}
		if tiles == nil {
			return nil
		}
		if tiles.Size() > 0 {
			log.Info("Tiles awaiting downsample",
				zap.Int("zoom", zoom),
				zap.Int("tiles", tiles.Size()),
				zap.Stringer("min", tiles.MinCoord()),
				zap.Stringer("max", tiles.MaxCoord()),
			)
		}
		factory.Release(tiles)
	}
	return nil
}

// scanZoomLevels checks the images of every zoom level in parallel.
func scanZoomLevels(cfg *config.Config, layerDir string, format tileimage.Format, prober tileimage.Prober, log *zap.Logger) {
	workerLimit := cfg.VipsConcurrency
	if workerLimit <= 0 {
		workerLimit = 1
	}

	workerChan := make(chan struct{}, workerLimit)
	var wg sync.WaitGroup

	for zoom := 0; zoom <= cfg.NumZoomLevels; zoom++ {
		wg.Add(1)
		workerChan <- struct{}{} // Acquire worker slot

		go func(zoom int) {
			defer wg.Done()
			defer func() { <-workerChan }() // Release worker slot

			res, err := tileimage.Scan(tileimage.ZoomDir(layerDir, zoom), format, prober, log)
			if err != nil {
				log.Warn("Failed to scan zoom level", zap.Int("zoom", zoom), zap.Error(err))
				return
			}
			if res.Tiles == 0 {
				return
			}
			log.Info("Zoom level",
				zap.Int("zoom", zoom),
				zap.Int("tiles", res.Tiles),
				zap.Int64("bytes", res.Bytes),
				zap.Int("invalid", len(res.Invalid)),
			)
			for _, path := range res.Invalid {
				log.Warn("Invalid tile image", zap.String("path", path))
			}
		}(zoom)
	}

	wg.Wait()
}

func verify(cfg *config.Config, log *zap.Logger) error {
	dir := filepath.Join(cfg.CacheDir, "hashStore")
	ok, corrupt, err := hashstore.Verify(dir)
	if err != nil {
		return err
	}
	for _, name := range corrupt {
		log.Warn("Corrupt region hash file", zap.String("file", name))
	}
	log.Info("Verified region hash files", zap.Int("ok", ok), zap.Int("corrupt", len(corrupt)))
	return nil
}

func export(cfg *config.Config, args []string, log *zap.Logger) error {
	if len(args) == 0 {
		return fmt.Errorf("export needs a change log path")
	}
	out := cfg.ChangedFileList
	if len(args) > 1 {
		out = args[1]
	}
	if out == "" {
		return fmt.Errorf("no output path given and CHANGED_FILE_LIST is not set")
	}

	n, err := changelog.Export(args[0], out)
	if err != nil {
		return err
	}
	log.Info("Exported change list", zap.String("path", out), zap.Int("files", n))
	return nil
}

func startVips(cfg *config.Config, log *zap.Logger) {
	vipsConfig := &vips.Config{
		ConcurrencyLevel: cfg.VipsConcurrency,
		MaxCacheMem:      cfg.VipsMaxCacheMB * 1024 * 1024,
		MaxCacheFiles:    0,
		MaxCacheSize:     0,
		ReportLeaks:      false,
		CacheTrace:       false,
		VectorEnabled:    true,
	}

	vips.SetLogging(func(domain string, level vips.LogLevel, message string) {
		if level >= vips.LogLevelError {
			log.Error("vips", zap.String("domain", domain), zap.Int("level", int(level)), zap.String("message", message))
		} else if level >= vips.LogLevelWarning {
			log.Warn("vips", zap.String("domain", domain), zap.Int("level", int(level)), zap.String("message", message))
		}
	}, vips.LogLevelError)

	vips.Startup(vipsConfig)

	log.Info("VIPS initialized",
		zap.Int("max_cache_mb", cfg.VipsMaxCacheMB),
		zap.Int("concurrency", cfg.VipsConcurrency),
	)
}
