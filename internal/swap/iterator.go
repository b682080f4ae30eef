package swap

import (
	"fmt"
	"os"
	"path/filepath"

	"voxmap/internal/coord"
)

// Iterator walks the two-level bucket tree of a TileList lazily: only one
// directory listing per level is held at a time.
//
//	it := list.Iterator()
//	for it.Next() {
//		use(it.Coord())
//	}
//	if err := it.Err(); err != nil { ... }
type Iterator struct {
	base string

	xDirs []string
	yDirs []string
	tiles []coord.TileCoord

	xPos, yPos, tilePos int

	cur     coord.TileCoord
	err     error
	started bool
}

func newIterator(base string) *Iterator {
	return &Iterator{base: base}
}

// Next advances to the next coordinate.
func (it *Iterator) Next() bool {
	if it.err != nil {
		return false
	}
	if !it.started {
		it.started = true
		it.xDirs, it.err = listDirs(it.base)
		if it.err != nil {
			return false
		}
		it.xPos = -1
	}

	for {
		if it.tilePos < len(it.tiles) {
			it.cur = it.tiles[it.tilePos]
			it.tilePos++
			return true
		}

		if it.yPos < len(it.yDirs) {
			dir := it.yDirs[it.yPos]
			it.yPos++
			it.tiles, it.err = listTiles(dir)
			if it.err != nil {
				return false
			}
			it.tilePos = 0
			continue
		}

		it.xPos++
		if it.xPos >= len(it.xDirs) {
			return false
		}
		it.yDirs, it.err = listDirs(it.xDirs[it.xPos])
		if it.err != nil {
			return false
		}
		it.yPos = 0
		it.tiles = nil
		it.tilePos = 0
	}
}

// Coord returns the coordinate produced by the last successful Next.
func (it *Iterator) Coord() coord.TileCoord {
	return it.cur
}

// Err returns the first I/O error hit during the walk.
func (it *Iterator) Err() error {
	return it.err
}

func listDirs(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("failed to read tile list directory: %w", err)
	}
	dirs := make([]string, 0, len(entries))
	for _, e := range entries {
		if e.IsDir() {
			dirs = append(dirs, filepath.Join(dir, e.Name()))
		}
	}
	return dirs, nil
}

func listTiles(dir string) ([]coord.TileCoord, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("failed to read tile bucket: %w", err)
	}
	tiles := make([]coord.TileCoord, 0, len(entries))
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		if c, ok := parseTileName(e.Name()); ok {
			tiles = append(tiles, c)
		}
	}
	return tiles, nil
}
