package config

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"voxmap/internal/tileimage"
	"voxmap/internal/world"
)

// MapFile is the YAML description of the maps to render.
type MapFile struct {
	Maps []Map `yaml:"maps"`
}

type Map struct {
	ID              string  `yaml:"id"`
	Name            string  `yaml:"name"`
	CameraAngle     float64 `yaml:"camera_angle"`
	CameraElevation float64 `yaml:"camera_elevation"`
	Dimension       string  `yaml:"dimension"`
	ClosestZoomSize int     `yaml:"closest_zoom_size"`
	Subset          Subset  `yaml:"subset"`
	Layers          []Layer `yaml:"layers"`
}

type Subset struct {
	Type    string  `yaml:"type"`
	OriginX float64 `yaml:"origin_x"`
	OriginZ float64 `yaml:"origin_z"`
	Radius  float64 `yaml:"radius"`
	MinX    int64   `yaml:"min_x"`
	MinZ    int64   `yaml:"min_z"`
	MaxX    int64   `yaml:"max_x"`
	MaxZ    int64   `yaml:"max_z"`
}

type Layer struct {
	ID                string  `yaml:"id"`
	Name              string  `yaml:"name"`
	LightStyle        string  `yaml:"light_style"`
	RenderStyle       string  `yaml:"render_style"`
	ImageFormat       string  `yaml:"image_format"`
	ImageCompression  float64 `yaml:"image_compression"`
	CustomBlockConfig string  `yaml:"custom_block_config"`
	UseDefaultBlocks  *bool   `yaml:"use_default_blocks"`
}

// LoadMaps reads and validates a map file, filling in defaults.
func LoadMaps(path string) (*MapFile, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read map config: %w", err)
	}
	var mf MapFile
	if err := yaml.Unmarshal(raw, &mf); err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	if err := mf.normalize(); err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return &mf, nil
}

func (mf *MapFile) normalize() error {
	if len(mf.Maps) == 0 {
		return fmt.Errorf("no maps defined")
	}
	seen := make(map[string]bool)
	for i := range mf.Maps {
		m := &mf.Maps[i]
		if m.ID == "" {
			m.ID = fmt.Sprintf("Map%d", i)
		}
		if seen[m.ID] {
			return fmt.Errorf("duplicate map id %q", m.ID)
		}
		seen[m.ID] = true
		if m.Name == "" {
			m.Name = m.ID
		}
		if m.Dimension == "" {
			m.Dimension = "overworld"
		}
		if m.ClosestZoomSize == 0 {
			m.ClosestZoomSize = 12
		}
		if m.Subset.Type == "" {
			m.Subset.Type = "full"
		}
		if _, err := m.Subset.Build(); err != nil {
			return fmt.Errorf("map %q: %w", m.ID, err)
		}
		if len(m.Layers) == 0 {
			m.Layers = []Layer{{}}
		}

		layerIDs := make(map[string]bool)
		for j := range m.Layers {
			l := &m.Layers[j]
			if l.ID == "" {
				l.ID = fmt.Sprintf("%sLayer%d", m.ID, j)
			}
			if layerIDs[l.ID] {
				return fmt.Errorf("map %q: duplicate layer id %q", m.ID, l.ID)
			}
			layerIDs[l.ID] = true
			if l.Name == "" {
				l.Name = l.ID
			}
			if l.LightStyle == "" {
				l.LightStyle = "day"
			}
			if l.RenderStyle == "" {
				l.RenderStyle = "normal"
			}
			if l.ImageFormat == "" {
				l.ImageFormat = string(tileimage.PNG)
			}
			format, err := tileimage.ParseFormat(l.ImageFormat)
			if err != nil {
				return fmt.Errorf("layer %q: %w", l.ID, err)
			}
			l.ImageFormat = string(format)
			if l.UseDefaultBlocks == nil {
				t := true
				l.UseDefaultBlocks = &t
			}
		}
	}
	return nil
}

func (l Layer) Format() tileimage.Format {
	return tileimage.Format(l.ImageFormat)
}

func (l Layer) DefaultBlocks() bool {
	return l.UseDefaultBlocks == nil || *l.UseDefaultBlocks
}

// Build turns the subset description into a world subset.
func (s Subset) Build() (world.Subset, error) {
	switch strings.ToLower(s.Type) {
	case "", "full":
		return world.FullSubset{}, nil
	case "circular", "circle":
		if s.Radius <= 0 {
			return nil, fmt.Errorf("circular subset needs a positive radius")
		}
		return world.CircularSubset{OriginX: s.OriginX, OriginZ: s.OriginZ, Radius: s.Radius}, nil
	case "rect", "rectangular":
		if s.MaxX <= s.MinX || s.MaxZ <= s.MinZ {
			return nil, fmt.Errorf("rectangular subset is empty")
		}
		return world.RectSubset{MinX: s.MinX, MinZ: s.MinZ, MaxX: s.MaxX, MaxZ: s.MaxZ}, nil
	default:
		return nil, fmt.Errorf("unknown subset type: %s (supported: full, circular, rect)", s.Type)
	}
}
