package tileimage

import (
	"os"
	"path/filepath"
	"testing"

	"go.uber.org/zap/zaptest"

	"voxmap/internal/coord"
)

func TestPath(t *testing.T) {
	tests := []struct {
		c      coord.TileCoord
		format Format
		want   string
	}{
		{coord.TileCoord{X: 3, Y: 4}, PNG, "base/3/4/tile_3_4.png"},
		{coord.TileCoord{X: 35, Y: 17}, JPEG, "base/3/1/tile_35_17.jpg"},
		{coord.TileCoord{X: -17, Y: -2}, WebP, "base/-1/-2/tile_-17_-2.webp"},
	}
	for _, tt := range tests {
		if got := Path("base", tt.c, tt.format); got != filepath.FromSlash(tt.want) {
			t.Errorf("Path(%v) = %q, want %q", tt.c, got, tt.want)
		}
	}
	if got := ZoomDir("out", 3); got != filepath.Join("out", "Zoom3") {
		t.Errorf("ZoomDir = %q", got)
	}
}

func TestParseFormat(t *testing.T) {
	for in, want := range map[string]Format{"png": PNG, ".JPEG": JPEG, "jpg": JPEG, "webp": WebP} {
		got, err := ParseFormat(in)
		if err != nil || got != want {
			t.Errorf("ParseFormat(%q) = %q, %v", in, got, err)
		}
	}
	if _, err := ParseFormat("bmp"); err == nil {
		t.Error("ParseFormat(bmp) should fail")
	}
}

func writeTile(t *testing.T, dir string, c coord.TileCoord, format Format, data string) string {
	t.Helper()
	path := Path(dir, c, format)
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, []byte(data), 0644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestScan(t *testing.T) {
	dir := t.TempDir()
	writeTile(t, dir, coord.TileCoord{X: 1, Y: 2}, PNG, "img")
	writeTile(t, dir, coord.TileCoord{X: 17, Y: 2}, PNG, "image")
	empty := writeTile(t, dir, coord.TileCoord{X: 0, Y: 0}, PNG, "")
	writeTile(t, dir, coord.TileCoord{X: 5, Y: 5}, JPEG, "other format")
	if err := os.WriteFile(filepath.Join(dir, "1", "2", "notes.txt"), []byte("x"), 0644); err != nil {
		t.Fatal(err)
	}

	res, err := Scan(dir, PNG, StatProber{}, zaptest.NewLogger(t))
	if err != nil {
		t.Fatalf("Scan: %v", err)
	}
	if res.Tiles != 3 {
		t.Fatalf("Tiles = %d, want 3", res.Tiles)
	}
	if res.Bytes != 8 {
		t.Fatalf("Bytes = %d, want 8", res.Bytes)
	}
	if len(res.Invalid) != 1 || res.Invalid[0] != empty {
		t.Fatalf("Invalid = %v, want [%s]", res.Invalid, empty)
	}

	res, err = Scan(filepath.Join(dir, "missing"), PNG, StatProber{}, zaptest.NewLogger(t))
	if err != nil || res.Tiles != 0 {
		t.Fatalf("Scan(missing) = %+v, %v", res, err)
	}
}

func TestExistsAndStatProber(t *testing.T) {
	dir := t.TempDir()
	c := coord.TileCoord{X: 2, Y: 9}
	if Exists(dir, c, PNG) {
		t.Fatal("tile should not exist yet")
	}
	path := writeTile(t, dir, c, PNG, "x")
	if !Exists(dir, c, PNG) || !(StatProber{}).Valid(path) {
		t.Fatal("written tile should exist and be valid")
	}
	if (StatProber{}).Valid(dir) {
		t.Fatal("directory should not be a valid tile")
	}
}
