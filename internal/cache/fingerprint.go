package cache

import (
	"crypto/sha256"
	"encoding/binary"
	"encoding/hex"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"

	"voxmap/internal/config"
)

// RendererVersion is bumped whenever rendering changes enough that every
// cached tile must be discarded.
const RendererVersion = 15

type Field struct {
	Name  string
	Value string
}

// Fingerprint is an ordered list of the settings a cache depends on. Any
// change to a field, its name or its position changes Sum.
type Fingerprint struct {
	fields []Field
}

// NewFingerprint starts a fingerprint with the renderer version.
func NewFingerprint() *Fingerprint {
	f := &Fingerprint{}
	f.Add("renderer_version", strconv.Itoa(RendererVersion))
	return f
}

func (f *Fingerprint) Add(name string, value any) *Fingerprint {
	var s string
	switch v := value.(type) {
	case string:
		s = v
	case float64:
		s = strconv.FormatFloat(v, 'g', -1, 64)
	default:
		s = fmt.Sprint(v)
	}
	f.fields = append(f.fields, Field{Name: name, Value: s})
	return f
}

// AddPath records a path in absolute form so that the same directory reached
// through different relative paths fingerprints the same.
func (f *Fingerprint) AddPath(name, path string) *Fingerprint {
	if path != "" {
		if abs, err := filepath.Abs(path); err == nil {
			path = abs
		}
	}
	return f.Add(name, path)
}

// AddFile records the digest of a file's contents. An empty path records an
// empty value.
func (f *Fingerprint) AddFile(name, path string) error {
	if path == "" {
		f.Add(name, "")
		return nil
	}
	file, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("failed to open %s: %w", name, err)
	}
	defer file.Close()

	h := sha256.New()
	if _, err := io.Copy(h, file); err != nil {
		return fmt.Errorf("failed to hash %s: %w", name, err)
	}
	f.Add(name, hex.EncodeToString(h.Sum(nil)))
	return nil
}

func (f *Fingerprint) Fields() []Field {
	return f.fields
}

// Sum digests the fields. Names and values are length-prefixed so that no
// two different field lists share an encoding.
func (f *Fingerprint) Sum() []byte {
	h := sha256.New()
	var n [4]byte
	write := func(s string) {
		binary.BigEndian.PutUint32(n[:], uint32(len(s)))
		h.Write(n[:])
		io.WriteString(h, s)
	}
	for _, field := range f.fields {
		write(field.Name)
		write(field.Value)
	}
	return h.Sum(nil)
}

// LayerFingerprint describes everything a layer's cached tiles depend on:
// renderer settings, output geometry, paths, the map's camera and subset,
// and the layer's style together with its custom block file.
func LayerFingerprint(cfg *config.Config, m config.Map, l config.Layer) (*Fingerprint, error) {
	subset, err := m.Subset.Build()
	if err != nil {
		return nil, err
	}

	f := NewFingerprint().
		Add("rasteriser", cfg.Rasteriser).
		Add("max_tiles", cfg.MaxTiles).
		Add("num_zoom_levels", cfg.NumZoomLevels).
		Add("tile_size", cfg.TileSize).
		Add("colour_depth", cfg.ColourDepth).
		Add("alpha_bits", cfg.AlphaBits).
		Add("num_samples", cfg.NumSamples).
		AddPath("output_dir", cfg.OutputDir).
		AddPath("minecraft_jar", cfg.MinecraftJar).
		AddPath("texture_pack", cfg.TexturePack).
		Add("map_id", m.ID).
		Add("map_name", m.Name).
		Add("camera_angle", m.CameraAngle).
		Add("camera_elevation", m.CameraElevation).
		Add("dimension", m.Dimension).
		Add("closest_zoom_size", m.ClosestZoomSize).
		Add("subset", subset.Description()).
		Add("layer_id", l.ID).
		Add("layer_name", l.Name).
		Add("light_style", l.LightStyle).
		Add("render_style", l.RenderStyle).
		Add("image_format", l.ImageFormat).
		Add("image_compression", l.ImageCompression).
		Add("custom_block_config", l.CustomBlockConfig).
		Add("use_default_blocks", l.DefaultBlocks())

	if err := f.AddFile("custom_blocks_digest", l.CustomBlockConfig); err != nil {
		return nil, err
	}
	return f, nil
}
