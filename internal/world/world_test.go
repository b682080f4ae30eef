package world

import (
	"errors"
	"slices"
	"testing"

	"github.com/go-gl/mathgl/mgl64"
	"go.uber.org/zap/zaptest"

	"voxmap/internal/coord"
	"voxmap/internal/frustum"
)

// topDown frames the block rectangle [x0,x1] x [z0,z1] looking straight down.
func topDown(x0, x1, z0, z1 float64) *frustum.Frustum {
	return frustum.FromCorners([8]mgl64.Vec3{
		frustum.NearTopLeft:     {x0, 500, z0},
		frustum.NearTopRight:    {x1, 500, z0},
		frustum.NearBottomLeft:  {x0, 500, z1},
		frustum.NearBottomRight: {x1, 500, z1},
		frustum.FarTopLeft:      {x0, -100, z0},
		frustum.FarTopRight:     {x1, -100, z0},
		frustum.FarBottomLeft:   {x0, -100, z1},
		frustum.FarBottomRight:  {x1, -100, z1},
	})
}

type fakeChunk struct {
	c        coord.ChunkCoord
	filter   BlockFilter
	unloaded *[]coord.ChunkCoord
}

func (f *fakeChunk) Coord() coord.ChunkCoord { return f.c }
func (f *fakeChunk) Unload()                 { *f.unloaded = append(*f.unloaded, f.c) }

type fakeGeometry struct {
	c        coord.ChunkCoord
	unloaded *[]coord.ChunkCoord
}

func (f *fakeGeometry) Unload() { *f.unloaded = append(*f.unloaded, f.c) }

type fakeWorld struct {
	chunks          map[coord.ChunkCoord]bool
	loads           []coord.ChunkCoord
	builds          []coord.ChunkCoord
	rawUnloaded     []coord.ChunkCoord
	geometryUnloads []coord.ChunkCoord
	failLoad        coord.ChunkCoord
	neighboursSeen  map[coord.ChunkCoord]int
}

func newFakeWorld(chunks ...coord.ChunkCoord) *fakeWorld {
	w := &fakeWorld{
		chunks:         make(map[coord.ChunkCoord]bool),
		failLoad:       coord.ChunkCoord{X: 1 << 40},
		neighboursSeen: make(map[coord.ChunkCoord]int),
	}
	for _, c := range chunks {
		w.chunks[c] = true
	}
	return w
}

func (w *fakeWorld) Exists(c coord.ChunkCoord) bool { return w.chunks[c] }

func (w *fakeWorld) Load(c coord.ChunkCoord, filter BlockFilter) (RawChunk, error) {
	if c == w.failLoad {
		return nil, errors.New("boom")
	}
	w.loads = append(w.loads, c)
	return &fakeChunk{c: c, filter: filter, unloaded: &w.rawUnloaded}, nil
}

func (w *fakeWorld) Build(raw RawChunk, neighbours *RawCache, _ BuildParams) (Geometry, error) {
	c := raw.Coord()
	w.builds = append(w.builds, c)
	for _, n := range c.Neighbours() {
		if neighbours.Contains(n) {
			w.neighboursSeen[c]++
		}
	}
	return &fakeGeometry{c: c, unloaded: &w.geometryUnloads}, nil
}

func TestFindVisible(t *testing.T) {
	var chunks []coord.ChunkCoord
	for x := int64(-2); x < 4; x++ {
		for z := int64(-2); z < 4; z++ {
			chunks = append(chunks, coord.ChunkCoord{X: x, Z: z})
		}
	}
	w := newFakeWorld(chunks...)
	delete(w.chunks, coord.ChunkCoord{X: 1, Z: 1})

	v := Visibility{Subset: FullSubset{}, Locator: w}
	// Chunks 0..1 in x and 0..1 in z, inset so that edges do not touch neighbours.
	got := v.FindVisible(topDown(0.5, 31.5, 0.5, 31.5))
	want := []coord.ChunkCoord{{X: 0, Z: 0}, {X: 0, Z: 1}, {X: 1, Z: 0}}
	if !slices.Equal(got, want) {
		t.Fatalf("FindVisible = %v, want %v", got, want)
	}
}

func TestFindVisibleAcrossRegions(t *testing.T) {
	w := newFakeWorld(coord.ChunkCoord{X: -1, Z: 0}, coord.ChunkCoord{X: 0, Z: 0}, coord.ChunkCoord{X: 5, Z: 5})
	v := Visibility{Subset: FullSubset{}, Locator: w}

	cam := topDown(-15.5, 15.5, 0.5, 15.5)
	lo, hi := RegionBounds(cam)
	if lo != (coord.RegionCoord{X: -1, Z: 0}) || hi != (coord.RegionCoord{X: 0, Z: 0}) {
		t.Fatalf("RegionBounds = %v..%v", lo, hi)
	}
	if regions := v.FindVisibleRegions(cam); len(regions) != 2 {
		t.Fatalf("FindVisibleRegions = %v, want 2 regions", regions)
	}

	got := v.FindVisible(cam)
	want := []coord.ChunkCoord{{X: -1, Z: 0}, {X: 0, Z: 0}}
	if !slices.Equal(got, want) {
		t.Fatalf("FindVisible = %v, want %v", got, want)
	}
}

func TestFindVisibleRespectsSubset(t *testing.T) {
	w := newFakeWorld(coord.ChunkCoord{X: 0, Z: 0}, coord.ChunkCoord{X: 1, Z: 0})
	v := Visibility{Subset: RectSubset{MinX: 0, MinZ: 0, MaxX: 16, MaxZ: 16}, Locator: w}

	got := v.FindVisible(topDown(0.5, 31.5, 0.5, 15.5))
	if !slices.Equal(got, []coord.ChunkCoord{{X: 0, Z: 0}}) {
		t.Fatalf("FindVisible = %v", got)
	}
}

func TestChunkCacheEviction(t *testing.T) {
	var unloaded []coord.ChunkCoord
	c := NewChunkCache[Geometry](3)
	put := func(x int64) {
		k := coord.ChunkCoord{X: x}
		c.Put(k, &fakeGeometry{c: k, unloaded: &unloaded})
	}

	put(1)
	put(2)
	put(3)
	c.Touch(coord.ChunkCoord{X: 1})
	put(4)

	if n := c.TrimToMaxSize(); n != 1 {
		t.Fatalf("TrimToMaxSize evicted %d, want 1", n)
	}
	if !slices.Equal(unloaded, []coord.ChunkCoord{{X: 2}}) {
		t.Fatalf("unloaded = %v, want chunk 2", unloaded)
	}
	if !c.Contains(coord.ChunkCoord{X: 1}) {
		t.Fatal("touched chunk was evicted")
	}
}

func TestPrepareLoadsNeighboursAndTrims(t *testing.T) {
	var chunks []coord.ChunkCoord
	for x := int64(0); x < 3; x++ {
		for z := int64(0); z < 3; z++ {
			chunks = append(chunks, coord.ChunkCoord{X: x, Z: z})
		}
	}
	w := newFakeWorld(chunks...)
	ws := NewWorkingSet(w, w, WorkingSetOptions{RawChunks: 4, GeometryChunks: 1}, zaptest.NewLogger(t))

	centre := coord.ChunkCoord{X: 1, Z: 1}
	geoms := ws.Prepare([]coord.ChunkCoord{centre})
	if len(geoms) != 1 {
		t.Fatalf("Prepare returned %d geometries, want 1", len(geoms))
	}
	if len(w.loads) != 5 {
		t.Fatalf("loaded %d chunks, want centre plus 4 neighbours", len(w.loads))
	}
	if w.neighboursSeen[centre] != 4 {
		t.Fatalf("builder saw %d neighbours, want 4", w.neighboursSeen[centre])
	}
	// Five raw chunks against a limit of four: the least recently touched
	// neighbour goes, the visible chunk stays.
	if raw, _ := ws.Stats(); raw != 4 {
		t.Fatalf("raw cache holds %d, want 4", raw)
	}
	if len(w.rawUnloaded) != 1 {
		t.Fatalf("raw unloads = %v", w.rawUnloaded)
	}
	if !ws.Raw.Contains(centre) {
		t.Fatal("visible chunk evicted from raw cache")
	}

	// Second frame hits the geometry cache.
	ws.Prepare([]coord.ChunkCoord{centre})
	if len(w.builds) != 1 {
		t.Fatalf("built %d times, want 1", len(w.builds))
	}
}

func TestPrepareSkipsMissingNeighboursAndFailures(t *testing.T) {
	w := newFakeWorld(coord.ChunkCoord{X: 0, Z: 0}, coord.ChunkCoord{X: 1, Z: 0})
	w.failLoad = coord.ChunkCoord{X: 1, Z: 0}
	ws := NewWorkingSet(w, w, WorkingSetOptions{}, zaptest.NewLogger(t))

	geoms := ws.Prepare([]coord.ChunkCoord{{X: 0, Z: 0}, {X: 1, Z: 0}})
	if len(geoms) != 1 {
		t.Fatalf("Prepare returned %d geometries, want 1", len(geoms))
	}
	if !slices.Equal(w.loads, []coord.ChunkCoord{{X: 0, Z: 0}}) {
		t.Fatalf("loads = %v", w.loads)
	}
}

func TestInvalidationFlushesBothCaches(t *testing.T) {
	w := newFakeWorld(coord.ChunkCoord{X: 0, Z: 0})
	ws := NewWorkingSet(w, w, WorkingSetOptions{}, zaptest.NewLogger(t))
	visible := []coord.ChunkCoord{{X: 0, Z: 0}}

	tests := []struct {
		name    string
		change  func()
		flushes bool
	}{
		{"light style", func() { ws.SetLightStyle("night") }, true},
		{"same light style", func() { ws.SetLightStyle("night") }, false},
		{"default block", func() { ws.SetDefaultBlockID("minecraft:stone") }, true},
		{"same default block", func() { ws.SetDefaultBlockID("minecraft:stone") }, false},
		{"block filter", func() { _ = ws.SetBlockFilter(NewExcludeBlocks("minecraft:grass")) }, true},
		{"block mask", func() { ws.SetBlockMaskFactory(nil) }, true},
		{"registry reload", ws.ReloadBlockRegistry, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ws.Prepare(visible)
			w.rawUnloaded, w.geometryUnloads = nil, nil

			tt.change()

			raw, geometry := ws.Stats()
			if tt.flushes {
				if raw != 0 || geometry != 0 {
					t.Fatalf("caches not flushed: raw=%d geometry=%d", raw, geometry)
				}
				if len(w.rawUnloaded) != 1 || len(w.geometryUnloads) != 1 {
					t.Fatalf("unload hooks: raw=%v geometry=%v", w.rawUnloaded, w.geometryUnloads)
				}
			} else if raw != 1 || geometry != 1 {
				t.Fatalf("caches flushed unexpectedly: raw=%d geometry=%d", raw, geometry)
			}
		})
	}

	if err := ws.SetBlockFilter(nil); err == nil {
		t.Fatal("SetBlockFilter(nil) should fail")
	}
}

func TestLoaderGetsComposedFilter(t *testing.T) {
	w := newFakeWorld(coord.ChunkCoord{X: 0, Z: 0})
	ws := NewWorkingSet(w, w, WorkingSetOptions{
		Subset: CircularSubset{OriginX: 0, OriginZ: 0, Radius: 8},
	}, zaptest.NewLogger(t))
	if err := ws.SetBlockFilter(NewExcludeBlocks("minecraft:grass")); err != nil {
		t.Fatal(err)
	}

	ws.Prepare([]coord.ChunkCoord{{X: 0, Z: 0}})
	raw, ok := ws.Raw.Get(coord.ChunkCoord{X: 0, Z: 0})
	if !ok {
		t.Fatal("chunk not loaded")
	}
	f := raw.(*fakeChunk).filter
	if f.Keep(2, 64, 2, "minecraft:grass") {
		t.Fatal("global filter not applied")
	}
	if !f.Keep(2, 64, 2, "minecraft:stone") {
		t.Fatal("block inside circle was dropped")
	}
	if f.Keep(12, 64, 12, "minecraft:stone") {
		t.Fatal("block outside circle was kept")
	}
}

func TestSubsets(t *testing.T) {
	circle := CircularSubset{OriginX: 0, OriginZ: 0, Radius: 100}
	if !circle.Contains(coord.ChunkCoord{X: 0, Z: 0}) {
		t.Fatal("circle should contain origin chunk")
	}
	// Centre at 136, outside the radius but inside the buffer.
	if !circle.Contains(coord.ChunkCoord{X: 8, Z: 0}) {
		t.Fatal("circle should contain buffered chunk")
	}
	if circle.Contains(coord.ChunkCoord{X: 20, Z: 0}) {
		t.Fatal("circle should not contain distant chunk")
	}
	if _, ok := circle.BlockFilter(coord.ChunkCoord{X: 0, Z: 0}).(NullBlockFilter); !ok {
		t.Fatal("chunk fully inside circle should not be filtered")
	}

	rect := RectSubset{MinX: -16, MinZ: -16, MaxX: 20, MaxZ: 16}
	if !rect.Contains(coord.ChunkCoord{X: 1, Z: 0}) || rect.Contains(coord.ChunkCoord{X: 2, Z: 0}) {
		t.Fatal("rect containment wrong")
	}
	if _, ok := rect.BlockFilter(coord.ChunkCoord{X: -1, Z: -1}).(NullBlockFilter); !ok {
		t.Fatal("chunk fully inside rect should not be filtered")
	}
	if rect.BlockFilter(coord.ChunkCoord{X: 1, Z: 0}).Keep(20, 0, 0, "x") {
		t.Fatal("block outside rect was kept")
	}

	if circle.Description() == (CircularSubset{Radius: 101}).Description() {
		t.Fatal("descriptions should differ")
	}
}

func TestCompose(t *testing.T) {
	if _, ok := Compose(nil, NullBlockFilter{}).(NullBlockFilter); !ok {
		t.Fatal("empty compose should be null filter")
	}
	ex := NewExcludeBlocks("a")
	if _, ok := Compose(ex, NullBlockFilter{}).(ExcludeBlocks); !ok {
		t.Fatal("single filter should be returned unwrapped")
	}
	f := Compose(ex, NewExcludeBlocks("b"))
	if f.Keep(0, 0, 0, "a") || f.Keep(0, 0, 0, "b") || !f.Keep(0, 0, 0, "c") {
		t.Fatal("composite filter wrong")
	}
}
