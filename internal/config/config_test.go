package config

import (
	"os"
	"path/filepath"
	"testing"

	"voxmap/internal/tileimage"
	"voxmap/internal/world"
)

func TestLoadFromEnv(t *testing.T) {
	t.Setenv("OUTPUT_DIR", "/tmp/out")
	t.Setenv("CACHE", "disabled")
	t.Setenv("TILE_SIZE", "256")
	t.Setenv("MAX_TILES", "not a number")
	t.Setenv("VERIFY_IMAGES", "true")

	cfg := Load()
	if cfg.OutputDir != "/tmp/out" || cfg.CacheDir != filepath.Join("/tmp/out", "Cache") {
		t.Fatalf("dirs = %q, %q", cfg.OutputDir, cfg.CacheDir)
	}
	if cfg.IsCacheEnabled() {
		t.Fatal("cache should be disabled")
	}
	if cfg.TileSize != 256 || cfg.MaxTiles != 0 || !cfg.VerifyImages {
		t.Fatalf("unexpected config: %+v", cfg)
	}
	if cfg.HashFrontCacheRegions != 32 || cfg.HashFrontCacheMin != 16 {
		t.Fatalf("front cache defaults = %d/%d", cfg.HashFrontCacheRegions, cfg.HashFrontCacheMin)
	}

	cfg.RawCacheChunks = 250
	opts := cfg.WorkingSetOptions(world.FullSubset{})
	if opts.RawChunks != 250 || opts.GeometryChunks != 100 || opts.Subset == nil {
		t.Fatalf("working set options = %+v", opts)
	}
}

func writeMaps(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "maps.yaml")
	if err := os.WriteFile(path, []byte(body), 0644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestLoadMaps(t *testing.T) {
	path := writeMaps(t, `
maps:
  - id: world
    camera_angle: 45
    camera_elevation: 30
    subset:
      type: circular
      origin_x: 10
      radius: 200
    layers:
      - id: day
        image_format: jpeg
      - id: night
        light_style: night
        use_default_blocks: false
  - name: Second
`)
	mf, err := LoadMaps(path)
	if err != nil {
		t.Fatalf("LoadMaps: %v", err)
	}
	if len(mf.Maps) != 2 {
		t.Fatalf("got %d maps", len(mf.Maps))
	}

	m := mf.Maps[0]
	if m.Name != "world" || m.Dimension != "overworld" || m.ClosestZoomSize != 12 {
		t.Fatalf("defaults not applied: %+v", m)
	}
	subset, err := m.Subset.Build()
	if err != nil {
		t.Fatal(err)
	}
	if c, ok := subset.(world.CircularSubset); !ok || c.Radius != 200 || c.OriginX != 10 {
		t.Fatalf("subset = %#v", subset)
	}
	if m.Layers[0].Format() != tileimage.JPEG || !m.Layers[0].DefaultBlocks() {
		t.Fatalf("layer 0 = %+v", m.Layers[0])
	}
	if m.Layers[1].LightStyle != "night" || m.Layers[1].DefaultBlocks() {
		t.Fatalf("layer 1 = %+v", m.Layers[1])
	}

	second := mf.Maps[1]
	if second.ID != "Map1" || len(second.Layers) != 1 || second.Layers[0].ID != "Map1Layer0" {
		t.Fatalf("second map = %+v", second)
	}
	if _, ok := mustBuild(t, second.Subset).(world.FullSubset); !ok {
		t.Fatal("default subset should be full")
	}
}

func mustBuild(t *testing.T, s Subset) world.Subset {
	t.Helper()
	subset, err := s.Build()
	if err != nil {
		t.Fatal(err)
	}
	return subset
}

func TestLoadMapsRejectsInvalid(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{"no maps", "maps: []\n"},
		{"duplicate map", "maps:\n  - id: a\n  - id: a\n"},
		{"duplicate layer", "maps:\n  - id: a\n    layers:\n      - id: l\n      - id: l\n"},
		{"bad format", "maps:\n  - id: a\n    layers:\n      - image_format: bmp\n"},
		{"bad subset", "maps:\n  - id: a\n    subset:\n      type: hexagon\n"},
		{"empty rect", "maps:\n  - id: a\n    subset:\n      type: rect\n"},
		{"not yaml", "maps: [\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := LoadMaps(writeMaps(t, tt.body)); err == nil {
				t.Fatal("expected error")
			}
		})
	}
}
