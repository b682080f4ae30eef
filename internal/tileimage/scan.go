package tileimage

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"go.uber.org/zap"
)

// ScanResult summarises the images found in one zoom directory.
type ScanResult struct {
	Tiles   int
	Invalid []string
	Bytes   int64
}

// Scan walks a zoom directory laid out by Path and checks every tile image
// of the given format with the prober. Files that do not look like tiles are
// ignored. A missing directory is an empty result.
func Scan(dir string, format Format, prober Prober, logger *zap.Logger) (*ScanResult, error) {
	res := &ScanResult{}

	xDirs, err := os.ReadDir(dir)
	if errors.Is(err, os.ErrNotExist) {
		return res, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read zoom directory: %w", err)
	}

	for _, xd := range xDirs {
		if !xd.IsDir() {
			continue
		}
		yDirs, err := os.ReadDir(filepath.Join(dir, xd.Name()))
		if err != nil {
			return nil, fmt.Errorf("failed to read tile directory: %w", err)
		}
		for _, yd := range yDirs {
			if !yd.IsDir() {
				continue
			}
			sub := filepath.Join(dir, xd.Name(), yd.Name())
			entries, err := os.ReadDir(sub)
			if err != nil {
				return nil, fmt.Errorf("failed to read tile directory: %w", err)
			}
			for _, e := range entries {
				if e.IsDir() {
					continue
				}
				if _, ok := parseTileFile(e.Name(), format); !ok {
					continue
				}
				path := filepath.Join(sub, e.Name())
				info, err := e.Info()
				if err != nil {
					logger.Warn("Error getting file info", zap.String("path", path), zap.Error(err))
					continue
				}
				res.Tiles++
				res.Bytes += info.Size()
				if !prober.Valid(path) {
					res.Invalid = append(res.Invalid, path)
				}
			}
		}
	}

	return res, nil
}
