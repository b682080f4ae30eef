package tileimage

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"voxmap/internal/coord"
)

// Format is an output image encoding.
type Format string

const (
	PNG  Format = "png"
	JPEG Format = "jpg"
	WebP Format = "webp"
)

// ParseFormat accepts the common spellings of each format.
func ParseFormat(s string) (Format, error) {
	switch strings.ToLower(strings.TrimPrefix(s, ".")) {
	case "png":
		return PNG, nil
	case "jpg", "jpeg":
		return JPEG, nil
	case "webp":
		return WebP, nil
	default:
		return "", fmt.Errorf("unsupported image format: %s", s)
	}
}

func (f Format) Extension() string {
	return string(f)
}

// Path returns the image file for a tile. Tiles are spread over a 16x16 grid
// of directories to keep directories small.
// Structure: {dir}/{x%16}/{y%16}/tile_{x}_{y}.{ext}
func Path(dir string, c coord.TileCoord, format Format) string {
	return filepath.Join(dir,
		strconv.Itoa(c.X%16),
		strconv.Itoa(c.Y%16),
		fmt.Sprintf("tile_%d_%d.%s", c.X, c.Y, format.Extension()),
	)
}

// ZoomDir returns the directory holding all tiles of a zoom level.
func ZoomDir(baseDir string, zoom int) string {
	return filepath.Join(baseDir, "Zoom"+strconv.Itoa(zoom))
}

// Exists reports whether the tile image is present on disk.
func Exists(dir string, c coord.TileCoord, format Format) bool {
	_, err := os.Stat(Path(dir, c, format))
	return err == nil
}

func parseTileFile(name string, format Format) (coord.TileCoord, bool) {
	rest, ok := strings.CutPrefix(name, "tile_")
	if !ok {
		return coord.TileCoord{}, false
	}
	rest, ok = strings.CutSuffix(rest, "."+format.Extension())
	if !ok {
		return coord.TileCoord{}, false
	}
	xs, ys, ok := strings.Cut(rest, "_")
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
