package tileimage

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/cshum/vipsgen/vips"
	"go.uber.org/zap"
)

// Prober decides whether a tile image on disk is usable. Tiles failing the
// probe are treated as missing and regenerated.
type Prober interface {
	Valid(path string) bool
}

// StatProber accepts any non-empty regular file.
type StatProber struct{}

func (StatProber) Valid(path string) bool {
	info, err := os.Stat(path)
	return err == nil && info.Mode().IsRegular() && info.Size() > 0
}

// VipsProber decodes the image header with libvips, catching truncated
// files left by an interrupted run. vips.Startup must have been called.
type VipsProber struct {
	logger *zap.Logger
}

func NewVipsProber(logger *zap.Logger) *VipsProber {
	return &VipsProber{logger: logger}
}

func (p *VipsProber) Valid(path string) bool {
	if !(StatProber{}).Valid(path) {
		return false
	}
	image, err := loadImage(path)
	if err != nil {
		p.logger.Debug("Tile image failed to decode", zap.String("path", path), zap.Error(err))
		return false
	}
	defer image.Close()

	return image.Width() > 0 && image.Height() > 0
}

// NewProber returns the vips prober when verify is set, otherwise the stat
// prober.
func NewProber(verify bool, logger *zap.Logger) Prober {
	if verify {
		return NewVipsProber(logger)
	}
	return StatProber{}
}

// loadImage opens an image for header access only.
func loadImage(path string) (*vips.Image, error) {
	ext := strings.ToLower(filepath.Ext(path))

	access := vips.AccessSequential

	switch ext {
	case ".jpg", ".jpeg":
		opts := vips.DefaultJpegloadOptions()
		opts.Access = access
		return vips.NewJpegload(path, opts)
	case ".png":
		opts := vips.DefaultPngloadOptions()
		opts.Access = access
		return vips.NewPngload(path, opts)
	case ".webp":
		opts := vips.DefaultWebploadOptions()
		opts.Access = access
		return vips.NewWebpload(path, opts)
	default:
		return nil, fmt.Errorf("unsupported image format: %s", ext)
	}
}
