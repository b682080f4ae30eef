package swap

import (
	"errors"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"voxmap/internal/coord"
)

const (
	bucketSize = 4
	tilePrefix = "t_"
	tileSuffix = ".tile"
)

// TileList is an on-disk set of tile coordinates. Membership is the
// existence of an empty marker file at
// {dir}/{x/4}/{y/4}/t_{x}_{y}.tile, so the set can grow far beyond what fits
// in memory while keeping per-directory fan-out small.
//
// A TileList is not safe for concurrent Add calls.
type TileList struct {
	dir  string
	size int

	minX, maxX int
	minY, maxY int
}

func newTileList(dir string) (*TileList, error) {
	if err := os.RemoveAll(dir); err != nil {
		return nil, fmt.Errorf("failed to clear tile list directory: %w", err)
	}
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create tile list directory: %w", err)
	}

	return &TileList{
		dir:  dir,
		minX: math.MaxInt,
		minY: math.MaxInt,
		maxX: math.MinInt,
		maxY: math.MinInt,
	}, nil
}

func (l *TileList) Dir() string {
	return l.dir
}

// Add inserts c. Adding a coordinate that is already present is a no-op.
func (l *TileList) Add(c coord.TileCoord) error {
	path := TilePath(l.dir, c)
	if _, err := os.Stat(path); err == nil {
		return nil
	} else if !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("failed to stat tile marker: %w", err)
	}

	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create tile bucket: %w", err)
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0644)
	if err != nil {
		if errors.Is(err, os.ErrExist) {
			return nil
		}
		return fmt.Errorf("failed to create tile marker: %w", err)
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("failed to close tile marker: %w", err)
	}

	l.minX = min(l.minX, c.X)
	l.maxX = max(l.maxX, c.X)
	l.minY = min(l.minY, c.Y)
	l.maxY = max(l.maxY, c.Y)
	l.size++
	return nil
}

// Contains reports whether c has been added.
func (l *TileList) Contains(c coord.TileCoord) bool {
	_, err := os.Stat(TilePath(l.dir, c))
	return err == nil
}

// Size is the number of distinct coordinates added.
func (l *TileList) Size() int {
	return l.size
}

// MinCoord returns the smallest x and smallest y inserted. The coordinate
// itself need not be a member of the list.
func (l *TileList) MinCoord() coord.TileCoord {
	return coord.TileCoord{X: l.minX, Y: l.minY}
}

// MaxCoord returns the largest x and largest y inserted.
func (l *TileList) MaxCoord() coord.TileCoord {
	return coord.TileCoord{X: l.maxX, Y: l.maxY}
}

// Iterator starts a fresh walk over the list. Order is unspecified.
func (l *TileList) Iterator() *Iterator {
	return newIterator(l.dir)
}

// ForEach calls fn for every member, stopping at the first error.
func (l *TileList) ForEach(fn func(coord.TileCoord) error) error {
	it := l.Iterator()
	for it.Next() {
		if err := fn(it.Coord()); err != nil {
			return err
		}
	}
	return it.Err()
}

// ToSet loads the whole list into memory. Only use it on lists known to be
// small.
func (l *TileList) ToSet() (map[coord.TileCoord]struct{}, error) {
	set := make(map[coord.TileCoord]struct{}, l.size)
	err := l.ForEach(func(c coord.TileCoord) error {
		set[c] = struct{}{}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return set, nil
}

// TilePath returns the marker path for c below dir.
func TilePath(dir string, c coord.TileCoord) string {
	return filepath.Join(dir,
		strconv.Itoa(c.X/bucketSize),
		strconv.Itoa(c.Y/bucketSize),
		tilePrefix+strconv.Itoa(c.X)+"_"+strconv.Itoa(c.Y)+tileSuffix)
}

// parseTileName parses a marker file name such as "t_-3_12.tile".
func parseTileName(name string) (coord.TileCoord, bool) {
	if !strings.HasPrefix(name, tilePrefix) || !strings.HasSuffix(name, tileSuffix) {
		return coord.TileCoord{}, false
	}
	body := strings.TrimSuffix(strings.TrimPrefix(name, tilePrefix), tileSuffix)
	xs, ys, ok := strings.Cut(body, "_")
	if !ok {
		return coord.TileCoord{}, false
	}
	x, err := strconv.Atoi(xs)
	if err != nil {
		return coord.TileCoord{}, false
	}
	y, err := strconv.Atoi(ys)
	if err != nil {
		return coord.TileCoord{}, false
	}
	return coord.TileCoord{X: x, Y: y}, true
}
