package cache

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"voxmap/internal/config"
)

func TestFingerprintSum(t *testing.T) {
	base := func() *Fingerprint {
		return NewFingerprint().Add("a", "x").Add("b", 2)
	}
	if !bytes.Equal(base().Sum(), base().Sum()) {
		t.Fatal("Sum should be deterministic")
	}

	tests := []struct {
		name string
		fp   *Fingerprint
	}{
		{"value changed", NewFingerprint().Add("a", "x").Add("b", 3)},
		{"order changed", NewFingerprint().Add("b", 2).Add("a", "x")},
		{"field added", base().Add("c", "")},
		{"boundary moved", NewFingerprint().Add("ax", "").Add("b", 2)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if bytes.Equal(base().Sum(), tt.fp.Sum()) {
				t.Fatal("fingerprints should differ")
			}
		})
	}
}

func TestFingerprintAddFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "blocks.xml")
	if err := os.WriteFile(path, []byte("<blocks/>"), 0644); err != nil {
		t.Fatal(err)
	}
	sum := func() []byte {
		f := NewFingerprint()
		if err := f.AddFile("blocks", path); err != nil {
			t.Fatal(err)
		}
		return f.Sum()
	}

	before := sum()
	if err := os.WriteFile(path, []byte("<blocks><block/></blocks>"), 0644); err != nil {
		t.Fatal(err)
	}
	if bytes.Equal(before, sum()) {
		t.Fatal("editing the file should change the fingerprint")
	}

	if err := NewFingerprint().AddFile("blocks", filepath.Join(t.TempDir(), "missing")); err == nil {
		t.Fatal("missing file should be an error")
	}
}

func TestLayerFingerprint(t *testing.T) {
	cfg := &config.Config{TileSize: 512, NumZoomLevels: 8, OutputDir: "/out"}
	m := config.Map{ID: "m", Subset: config.Subset{Type: "circular", Radius: 100}}
	day := config.Layer{ID: "l", LightStyle: "day", ImageFormat: "png"}
	night := day
	night.LightStyle = "night"

	a, err := LayerFingerprint(cfg, m, day)
	if err != nil {
		t.Fatal(err)
	}
	b, err := LayerFingerprint(cfg, m, night)
	if err != nil {
		t.Fatal(err)
	}
	if bytes.Equal(a.Sum(), b.Sum()) {
		t.Fatal("light style should change the fingerprint")
	}

	wider := m
	wider.Subset.Radius = 200
	c, err := LayerFingerprint(cfg, wider, day)
	if err != nil {
		t.Fatal(err)
	}
	if bytes.Equal(a.Sum(), c.Sum()) {
		t.Fatal("subset should change the fingerprint")
	}

	if a.Fields()[0].Name != "renderer_version" {
		t.Fatalf("first field = %q, want renderer_version", a.Fields()[0].Name)
	}
}
