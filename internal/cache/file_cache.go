package cache

import (
	"bytes"
	"database/sql"
	"encoding/hex"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/multierr"
	"go.uber.org/zap"
	_ "modernc.org/sqlite"

	"voxmap/internal/coord"
	"voxmap/internal/swap"
	"voxmap/internal/tileimage"
)

const (
	masterFileName = "tiles.cache"
	dbFileName     = "tiles.db"
)

// FileTileCache keeps tile hashes and downsample state for one layer in a
// SQLite database. The whole directory is deleted when the fingerprint in the
// master file does not match the current settings.
// Structure: {cacheDir}/tiles.cache, {cacheDir}/tiles.db
type FileTileCache struct {
	mu            sync.Mutex
	closed        bool
	cacheDir      string
	format        tileimage.Format
	prober        tileimage.Prober
	db            *sql.DB
	markDone      *sql.Stmt
	usingExisting bool
	hadDownsample bool
	logger        *zap.Logger
}

// NewFileTileCache opens the cache in cacheDir. format is the layer's image
// format, used to check that a cached tile still has its image. prober may be
// nil, in which case images only have to exist.
func NewFileTileCache(cacheDir string, fp *Fingerprint, format tileimage.Format, prober tileimage.Prober, logger *zap.Logger) (*FileTileCache, error) {
	logger = logger.With(zap.String("cache_dir", cacheDir), zap.String("cache_run", uuid.NewString()))
	if prober == nil {
		prober = tileimage.StatProber{}
	}

	if err := os.MkdirAll(cacheDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create cache directory: %w", err)
	}

	want := fp.Sum()
	valid := isCacheValid(cacheDir, want)
	if valid {
		logger.Info("Tile cache found and is valid")
	} else {
		logger.Warn("Settings changed, deleting tile cache")
		if err := resetCacheDir(cacheDir, want); err != nil {
			return nil, err
		}
	}

	dbPath := filepath.Join(cacheDir, dbFileName)
	db, err := openDB(dbPath)
	if err != nil && valid {
		logger.Warn("Tile cache database unusable, rebuilding", zap.Error(err))
		valid = false
		if err := resetCacheDir(cacheDir, want); err != nil {
			return nil, err
		}
		db, err = openDB(dbPath)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to open tile cache database: %w", err)
	}

	c := &FileTileCache{
		cacheDir:      cacheDir,
		format:        format,
		prober:        prober,
		db:            db,
		usingExisting: valid,
		logger:        logger,
	}
	if err := c.init(); err != nil {
		_ = db.Close()
		return nil, err
	}
	return c, nil
}

func (c *FileTileCache) init() error {
	var err error
	c.markDone, err = c.db.Prepare(`INSERT INTO downsample (zoom, x, y, done) VALUES (?, ?, ?, 1)
		ON CONFLICT (zoom, x, y) DO UPDATE SET done = 1`)
	if err != nil {
		return fmt.Errorf("failed to prepare statement: %w", err)
	}
	if err := c.db.QueryRow(`SELECT EXISTS (SELECT 1 FROM downsample)`).Scan(&c.hadDownsample); err != nil {
		return fmt.Errorf("failed to read downsample state: %w", err)
	}
	// Hashes staged by an interrupted run were never rendered.
	return c.Reset()
}

func isCacheValid(cacheDir string, want []byte) bool {
	got, err := os.ReadFile(filepath.Join(cacheDir, masterFileName))
	if err != nil {
		return false
	}
	return bytes.Equal(got, want)
}

func resetCacheDir(cacheDir string, sum []byte) error {
	if err := os.RemoveAll(cacheDir); err != nil {
		return fmt.Errorf("failed to delete tile cache: %w", err)
	}
	if err := os.MkdirAll(cacheDir, 0755); err != nil {
		return fmt.Errorf("failed to create cache directory: %w", err)
	}

	// Write atomically
	path := filepath.Join(cacheDir, masterFileName)
	tmpPath := path + ".tmp"
	if err := os.WriteFile(tmpPath, sum, 0644); err != nil {
		return fmt.Errorf("failed to write cache master file: %w", err)
	}
	if err := os.Rename(tmpPath, path); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("failed to write cache master file: %w", err)
	}
	return nil
}

func openDB(path string) (*sql.DB, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	stmts := []string{
		"PRAGMA journal_mode=WAL;",
		"PRAGMA synchronous=NORMAL;",
		"PRAGMA busy_timeout=5000;",
		"PRAGMA temp_store=MEMORY;",
		`CREATE TABLE IF NOT EXISTS tiles (
			x INTEGER NOT NULL,
			y INTEGER NOT NULL,
			hash TEXT,
			staged INTEGER NOT NULL DEFAULT 0,
			staged_hash TEXT,
			PRIMARY KEY (x, y)
		);`,
		`CREATE TABLE IF NOT EXISTS downsample (
			zoom INTEGER NOT NULL,
			x INTEGER NOT NULL,
			y INTEGER NOT NULL,
			done INTEGER NOT NULL DEFAULT 0,
			PRIMARY KEY (zoom, x, y)
		);`,
	}
	for _, s := range stmts {
		if _, err := db.Exec(s); err != nil {
			_ = db.Close()
			return nil, err
		}
	}
	return db, nil
}

func (c *FileTileCache) Reset() error {
	if _, err := c.db.Exec(`UPDATE tiles SET staged = 0, staged_hash = NULL WHERE staged = 1`); err != nil {
		return fmt.Errorf("failed to reset staged hashes: %w", err)
	}
	return nil
}

func (c *FileTileCache) IsUsingExistingCache() bool {
	return c.usingExisting
}

func (c *FileTileCache) HasDownsampleState() bool {
	return c.hadDownsample
}

func (c *FileTileCache) FindChangedTiles(factory *swap.Factory, visible *swap.TileList, q Query) (*swap.TileList, error) {
	start := time.Now()

	result, err := factory.CreateList()
	if err != nil {
		return nil, err
	}

	tx, err := c.db.Begin()
	if err != nil {
		factory.Release(result)
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	lookup, err := tx.Prepare(`SELECT hash FROM tiles WHERE x = ? AND y = ?`)
	if err != nil {
		factory.Release(result)
		return nil, fmt.Errorf("failed to prepare statement: %w", err)
	}
	defer lookup.Close()

	stage, err := tx.Prepare(`INSERT INTO tiles (x, y, staged, staged_hash) VALUES (?, ?, 1, ?)
		ON CONFLICT (x, y) DO UPDATE SET staged = 1, staged_hash = excluded.staged_hash`)
	if err != nil {
		factory.Release(result)
		return nil, fmt.Errorf("failed to prepare statement: %w", err)
	}
	defer stage.Close()

	zoomDir := tileimage.ZoomDir(q.LayerDir, q.Zoom)
	total := visible.Size()
	count, unknown := 0, 0

	err = visible.ForEach(func(tile coord.TileCoord) error {
		cam := q.Camera.FrameTile(tile, q.Zoom, q.TileWidth, q.TileHeight)
		hash, known := TileHash(q.World.FindVisible(cam), q.Hashes)

		changed := true
		if known && tileimage.Exists(zoomDir, tile, c.format) {
			stored, err := storedHash(lookup, tile)
			if err != nil {
				return err
			}
			changed = !bytes.Equal(stored, hash)
		}
		if !known {
			unknown++
		}

		if changed {
			if err := result.Add(tile); err != nil {
				return err
			}
			// A NULL staged hash never matches, so a tile whose chunks could
			// not all be hashed is rendered again next run.
			var staged sql.NullString
			if known {
				staged = sql.NullString{String: hex.EncodeToString(hash), Valid: true}
			}
			if _, err := stage.Exec(tile.X, tile.Y, staged); err != nil {
				return fmt.Errorf("failed to stage hash for %v: %w", tile, err)
			}
		}

		count++
		if count%100 == 0 {
			c.logger.Debug("Finding changed tiles",
				zap.Int("done", count),
				zap.Int("total", total),
				zap.Int("percent", count*100/total),
			)
		}
		return nil
	})
	if err != nil {
		factory.Release(result)
		return nil, err
	}
	if err := tx.Commit(); err != nil {
		factory.Release(result)
		return nil, fmt.Errorf("failed to commit staged hashes: %w", err)
	}

	c.logger.Info("Found changed tiles",
		zap.Int("zoom", q.Zoom),
		zap.Int("visible", total),
		zap.Int("changed", result.Size()),
		zap.Int("unknown", unknown),
		zap.Duration("took", time.Since(start)),
	)
	return result, nil
}

func storedHash(lookup *sql.Stmt, tile coord.TileCoord) ([]byte, error) {
	var stored sql.NullString
	err := lookup.QueryRow(tile.X, tile.Y).Scan(&stored)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read hash for %v: %w", tile, err)
	}
	if !stored.Valid {
		return nil, nil
	}
	hash, err := hex.DecodeString(stored.String)
	if err != nil {
		return nil, nil
	}
	return hash, nil
}

func (c *FileTileCache) WriteImageCache(tile coord.TileCoord) error {
	res, err := c.db.Exec(`UPDATE tiles SET hash = staged_hash, staged = 0, staged_hash = NULL
		WHERE x = ? AND y = ? AND staged = 1`, tile.X, tile.Y)
	if err != nil {
		return fmt.Errorf("failed to write hash for %v: %w", tile, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to write hash for %v: %w", tile, err)
	}
	if n == 0 {
		return fmt.Errorf("%w: %v", ErrNoStagedHash, tile)
	}
	return nil
}

// StoredHash returns the persisted hash of a tile, or nil.
func (c *FileTileCache) StoredHash(tile coord.TileCoord) ([]byte, error) {
	lookup, err := c.db.Prepare(`SELECT hash FROM tiles WHERE x = ? AND y = ?`)
	if err != nil {
		return nil, err
	}
	defer lookup.Close()
	return storedHash(lookup, tile)
}

func (c *FileTileCache) CalculateDownsampledTileCoordinates(baseTiles *swap.TileList, zoomLevel int) error {
	start := time.Now()

	tx, err := c.db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	flag, err := tx.Prepare(`INSERT INTO downsample (zoom, x, y, done) VALUES (?, ?, ?, 0)
		ON CONFLICT (zoom, x, y) DO UPDATE SET done = 0`)
	if err != nil {
		return fmt.Errorf("failed to prepare statement: %w", err)
	}
	defer flag.Close()

	err = baseTiles.ForEach(func(tile coord.TileCoord) error {
		for level := zoomLevel - 1; level >= 0; level-- {
			tile = tile.Parent()
			if _, err := flag.Exec(level, tile.X, tile.Y); err != nil {
				return fmt.Errorf("failed to flag %v at zoom %d: %w", tile, level, err)
			}
		}
		return nil
	})
	if err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit downsample state: %w", err)
	}

	c.logger.Debug("Flagged tiles for downsampling",
		zap.Int("base_tiles", baseTiles.Size()),
		zap.Int("levels", zoomLevel),
		zap.Duration("took", time.Since(start)),
	)
	return nil
}

func (c *FileTileCache) FindTilesForDownsampling(factory *swap.Factory, zoomLevel int, layerDir string, format tileimage.Format) (*swap.TileList, error) {
	list, err := factory.CreateList()
	if err != nil {
		return nil, err
	}

	reflagged, err := c.collectDownsampleTiles(list, zoomLevel, tileimage.ZoomDir(layerDir, zoomLevel), format)
	if err != nil {
		factory.Release(list)
		return nil, err
	}

	for _, tile := range reflagged {
		if _, err := c.db.Exec(`UPDATE downsample SET done = 0 WHERE zoom = ? AND x = ? AND y = ?`, zoomLevel, tile.X, tile.Y); err != nil {
			factory.Release(list)
			return nil, fmt.Errorf("failed to re-flag %v: %w", tile, err)
		}
	}
	if len(reflagged) > 0 {
		c.logger.Warn("Downsampled tiles missing on disk", zap.Int("zoom", zoomLevel), zap.Int("tiles", len(reflagged)))
	}

	c.logger.Debug("Found tiles for downsampling", zap.Int("zoom", zoomLevel), zap.Int("tiles", list.Size()))
	return list, nil
}

func (c *FileTileCache) collectDownsampleTiles(list *swap.TileList, zoomLevel int, zoomDir string, format tileimage.Format) ([]coord.TileCoord, error) {
	rows, err := c.db.Query(`SELECT x, y, done FROM downsample WHERE zoom = ?`, zoomLevel)
	if err != nil {
		return nil, fmt.Errorf("failed to query downsample state: %w", err)
	}
	defer rows.Close()

	var reflagged []coord.TileCoord
	for rows.Next() {
		var tile coord.TileCoord
		var done int
		if err := rows.Scan(&tile.X, &tile.Y, &done); err != nil {
			return nil, fmt.Errorf("failed to read downsample state: %w", err)
		}
		if done != 0 {
			if c.prober.Valid(tileimage.Path(zoomDir, tile, format)) {
				continue
			}
			reflagged = append(reflagged, tile)
		}
		if err := list.Add(tile); err != nil {
			return nil, err
		}
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read downsample state: %w", err)
	}
	return reflagged, nil
}

func (c *FileTileCache) UpdateTileDownsampleStatus(tile coord.TileCoord, zoomLevel int) error {
	if _, err := c.markDone.Exec(zoomLevel, tile.X, tile.Y); err != nil {
		return fmt.Errorf("failed to mark %v downsampled at zoom %d: %w", tile, zoomLevel, err)
	}
	return nil
}

func (c *FileTileCache) Stats() (Stats, error) {
	s := Stats{Pending: make(map[int]int)}
	if err := c.db.QueryRow(`SELECT COUNT(hash), COALESCE(SUM(staged), 0) FROM tiles`).Scan(&s.Tiles, &s.Staged); err != nil {
		return s, fmt.Errorf("failed to count tiles: %w", err)
	}

	rows, err := c.db.Query(`SELECT zoom, COUNT(*) FROM downsample WHERE done = 0 GROUP BY zoom`)
	if err != nil {
		return s, fmt.Errorf("failed to count downsample backlog: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var zoom, n int
		if err := rows.Scan(&zoom, &n); err != nil {
			return s, fmt.Errorf("failed to count downsample backlog: %w", err)
		}
		s.Pending[zoom] = n
	}
	return s, rows.Err()
}

func (c *FileTileCache) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return nil
	}
	c.closed = true
	return multierr.Combine(c.markDone.Close(), c.db.Close())
}
