package hashstore

import (
	"bufio"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"go.uber.org/zap"

	"voxmap/internal/coord"
	"voxmap/internal/lru"
)

const (
	DefaultFrontCacheSize = 32
	DefaultFrontCacheMin  = 16
)

// Store records the content hash of every chunk hashed during this run,
// sharded into one file per region. Regions are written whole by EndRegion
// and never change afterwards, so the front cache and the files always agree.
//
// Store is meant to be driven from a single goroutine.
type Store struct {
	dir    string
	active *regionHashes
	front  *lru.Cache[coord.RegionCoord, *regionHashes]
	logger *zap.Logger
}

// Open creates an empty store under cacheDir/hashStore, discarding anything
// left by an earlier run.
func Open(cacheDir string, frontSize, frontMin int, logger *zap.Logger) (*Store, error) {
	dir := filepath.Join(cacheDir, "hashStore")
	if err := os.RemoveAll(dir); err != nil {
		return nil, fmt.Errorf("failed to clear hash store: %w", err)
	}
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create hash store: %w", err)
	}

	if frontSize <= 0 {
		frontSize = DefaultFrontCacheSize
	}
	front := lru.New[coord.RegionCoord, *regionHashes](frontSize, nil)
	front.SetMinSize(frontMin)

	return &Store{
		dir:    dir,
		front:  front,
		logger: logger,
	}, nil
}

func (s *Store) Dir() string {
	return s.dir
}

// StartRegion begins collecting hashes for region. Regions are processed one
// at a time; starting a second one before EndRegion is a caller bug and
// panics.
func (s *Store) StartRegion(region coord.RegionCoord) {
	if s.active != nil {
		panic(fmt.Sprintf("hashstore: StartRegion(%v) while %v is active", region, s.active.region))
	}
	s.active = newRegionHashes(region)
}

// AddHash records the hash of a chunk in the active region. A nil hash is
// ignored.
func (s *Store) AddHash(chunk coord.ChunkCoord, hash []byte) {
	if s.active == nil {
		panic(fmt.Sprintf("hashstore: AddHash(%v) with no active region", chunk))
	}
	if hash == nil {
		return
	}
	if chunk.Region() != s.active.region {
		s.logger.Warn("Chunk hashed outside its region",
			zap.Stringer("chunk", chunk), zap.Stringer("active", s.active.region))
	}
	s.active.hashes[chunk] = hash
}

// EndRegion writes the active region to disk and keeps it in the front
// cache.
func (s *Store) EndRegion() error {
	if s.active == nil {
		panic("hashstore: EndRegion with no active region")
	}
	region := s.active
	s.active = nil

	if err := region.write(s.dir); err != nil {
		return err
	}
	s.remember(region)
	return nil
}

// ChunkHash returns the stored hash of chunk. It returns ErrNotHashed if the
// chunk was never hashed, and an error wrapping ErrCorrupt if its region file
// cannot be trusted; either way the caller should treat the chunk as unknown.
func (s *Store) ChunkHash(chunk coord.ChunkCoord) ([]byte, error) {
	regionCoord := chunk.Region()

	region, ok := s.front.Get(regionCoord)
	if !ok {
		var err error
		region, err = readRegionHashes(s.dir, regionCoord)
		switch {
		case errors.Is(err, os.ErrNotExist):
			// Never hashed: remember the empty region so misses stay cheap.
			region = newRegionHashes(regionCoord)
		case err != nil:
			s.logger.Warn("Discarding region hashes", zap.Stringer("region", regionCoord), zap.Error(err))
			return nil, err
		}
		s.remember(region)
	}

	hash, ok := region.hashes[chunk]
	if !ok {
		return nil, ErrNotHashed
	}
	return hash, nil
}

// Evict drops every region from the front cache. Later lookups go to disk.
func (s *Store) Evict() {
	s.front.UnloadAll()
}

func (s *Store) remember(region *regionHashes) {
	s.front.Put(region.region, region)
	s.front.TrimToMaxSize()
}

// Verify reads every region file in the store and reports how many are
// intact. Files failing to decode are returned in corrupt.
func (s *Store) Verify() (ok int, corrupt []string, err error) {
	return Verify(s.dir)
}

// Verify checks every region file in dir.
func Verify(dir string) (ok int, corrupt []string, err error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return 0, nil, fmt.Errorf("failed to read hash store: %w", err)
	}
	for _, e := range entries {
		name := e.Name()
		if e.IsDir() || !strings.HasSuffix(name, ".hashes") {
			continue
		}
		f, err := os.Open(filepath.Join(dir, name))
		if err != nil {
			return ok, corrupt, fmt.Errorf("failed to open %s: %w", name, err)
		}
		decodeErr := newRegionHashes(coord.RegionCoord{}).decode(bufio.NewReader(f))
		f.Close()
		if decodeErr != nil {
			corrupt = append(corrupt, name)
			continue
		}
		ok++
	}
	return ok, corrupt, nil
}
