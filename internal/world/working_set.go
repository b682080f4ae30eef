package world

import (
	"errors"
	"fmt"

	"go.uber.org/zap"

	"voxmap/internal/coord"
)

const (
	DefaultRawCacheChunks      = 100
	DefaultGeometryCacheChunks = 100
)

// WorkingSet owns the raw and geometry caches for one renderer, together with
// the global parameters geometry depends on. Any change to those parameters
// flushes both caches.
//
// WorkingSet is not safe for concurrent use.
type WorkingSet struct {
	Raw      *RawCache
	Geometry *GeometryCache

	loader  ChunkLoader
	builder GeometryBuilder
	subset  Subset
	filter  BlockFilter
	params  BuildParams
	logger  *zap.Logger
}

type WorkingSetOptions struct {
	RawChunks      int
	GeometryChunks int
	Subset         Subset
}

func NewWorkingSet(loader ChunkLoader, builder GeometryBuilder, opts WorkingSetOptions, logger *zap.Logger) *WorkingSet {
	if opts.RawChunks <= 0 {
		opts.RawChunks = DefaultRawCacheChunks
	}
	if opts.GeometryChunks <= 0 {
		opts.GeometryChunks = DefaultGeometryCacheChunks
	}
	if opts.Subset == nil {
		opts.Subset = FullSubset{}
	}
	return &WorkingSet{
		Raw:      NewChunkCache[RawChunk](opts.RawChunks),
		Geometry: NewChunkCache[Geometry](opts.GeometryChunks),
		loader:   loader,
		builder:  builder,
		subset:   opts.Subset,
		filter:   NullBlockFilter{},
		logger:   logger,
	}
}

func (w *WorkingSet) Params() BuildParams {
	return w.params
}

func (w *WorkingSet) SetLightStyle(style string) {
	if w.params.LightStyle == style {
		return
	}
	w.params.LightStyle = style
	w.Flush("light style changed")
}

func (w *WorkingSet) SetDefaultBlockID(id string) {
	if w.params.DefaultBlockID == id {
		return
	}
	w.params.DefaultBlockID = id
	w.Flush("default block changed")
}

func (w *WorkingSet) SetBlockFilter(f BlockFilter) error {
	if f == nil {
		return errors.New("block filter must not be nil")
	}
	w.filter = f
	w.Flush("block filter changed")
	return nil
}

func (w *WorkingSet) SetBlockMaskFactory(f BlockMaskFactory) {
	w.params.Mask = f
	w.Flush("block mask changed")
}

// ReloadBlockRegistry must be called after the block type registry has been
// reloaded.
func (w *WorkingSet) ReloadBlockRegistry() {
	w.Flush("block registry reloaded")
}

// Flush unloads all geometry and then all raw chunks.
func (w *WorkingSet) Flush(reason string) {
	geometry := w.Geometry.UnloadAll()
	raw := w.Raw.UnloadAll()
	w.logger.Debug("Flushed chunk caches",
		zap.String("reason", reason),
		zap.Int("geometry", geometry),
		zap.Int("raw", raw),
	)
}

// Prepare makes geometry available for every visible chunk. Raw data is
// loaded for the visible chunks and their neighbours, since edge geometry
// depends on adjacent blocks. Both caches are trimmed only after all geometry
// for the frame exists, geometry first.
//
// Chunks that fail to load or build are logged and left out of the result.
func (w *WorkingSet) Prepare(visible []coord.ChunkCoord) []Geometry {
	for _, c := range visible {
		w.ensureRaw(c)
		for _, n := range c.Neighbours() {
			if w.subset.Contains(n) && w.loader.Exists(n) {
				w.ensureRaw(n)
			}
		}
	}

	out := make([]Geometry, 0, len(visible))
	for _, c := range visible {
		if g, ok := w.Geometry.Get(c); ok {
			out = append(out, g)
			continue
		}
		raw, ok := w.Raw.Get(c)
		if !ok {
			continue
		}
		g, err := w.builder.Build(raw, w.Raw, w.params)
		if err != nil {
			w.logger.Warn("Failed to build chunk geometry", zap.Stringer("chunk", c), zap.Error(err))
			continue
		}
		w.Geometry.Put(c, g)
		out = append(out, g)
	}

	w.Geometry.TrimToMaxSize()
	w.Raw.TrimToMaxSize()
	return out
}

func (w *WorkingSet) ensureRaw(c coord.ChunkCoord) {
	if w.Raw.Touch(c) {
		return
	}
	raw, err := w.loader.Load(c, Compose(w.filter, w.subset.BlockFilter(c)))
	if err != nil {
		w.logger.Warn("Failed to load chunk", zap.Stringer("chunk", c), zap.Error(err))
		return
	}
	w.Raw.Put(c, raw)
}

// Stats returns the number of resident raw and geometry entries.
func (w *WorkingSet) Stats() (raw, geometry int) {
	return w.Raw.Len(), w.Geometry.Len()
}

func (w *WorkingSet) LogStats() {
	raw, geometry := w.Stats()
	w.logger.Debug("Chunk cache usage",
		zap.String("raw", fmt.Sprintf("%d/%d", raw, w.Raw.MaxSize())),
		zap.String("geometry", fmt.Sprintf("%d/%d", geometry, w.Geometry.MaxSize())),
	)
}
