package world

import (
	"math"
)

// BlockFilter decides, per block, whether it survives loading. Loaders call
// Keep for every non-air block in world coordinates; a false return replaces
// the block with air.
type BlockFilter interface {
	Keep(x, y, z int64, blockID string) bool
}

// BlockMaskFactory produces per-chunk visibility masks used while building
// geometry. It is opaque to the working set.
type BlockMaskFactory interface {
	Name() string
}

// NullBlockFilter keeps every block.
type NullBlockFilter struct{}

func (NullBlockFilter) Keep(int64, int64, int64, string) bool { return true }

// CompositeBlockFilter keeps a block only if every member keeps it.
type CompositeBlockFilter []BlockFilter

func (f CompositeBlockFilter) Keep(x, y, z int64, blockID string) bool {
	for _, m := range f {
		if !m.Keep(x, y, z, blockID) {
			return false
		}
	}
	return true
}

// Compose joins filters, skipping nils and NullBlockFilter. A single
// remaining filter is returned as is.
func Compose(filters ...BlockFilter) BlockFilter {
	var out CompositeBlockFilter
	for _, f := range filters {
		switch f.(type) {
		case nil, NullBlockFilter:
			continue
		}
		out = append(out, f)
	}
	switch len(out) {
	case 0:
		return NullBlockFilter{}
	case 1:
		return out[0]
	}
	return out
}

// ExcludeBlocks drops the listed block ids.
type ExcludeBlocks map[string]struct{}

func NewExcludeBlocks(ids ...string) ExcludeBlocks {
	f := make(ExcludeBlocks, len(ids))
	for _, id := range ids {
		f[id] = struct{}{}
	}
	return f
}

func (f ExcludeBlocks) Keep(_, _, _ int64, blockID string) bool {
	_, excluded := f[blockID]
	return !excluded
}

// circleFilter keeps blocks within radius of an origin on the ground plane.
type circleFilter struct {
	originX, originZ float64
	radius           float64
}

func (f circleFilter) Keep(x, _, z int64, _ string) bool {
	dx := float64(x) + 0.5 - f.originX
	dz := float64(z) + 0.5 - f.originZ
	return math.Hypot(dx, dz) <= f.radius
}

// rectFilter keeps blocks inside [min, max) on the ground plane.
type rectFilter struct {
	minX, minZ int64
	maxX, maxZ int64
}

func (f rectFilter) Keep(x, _, z int64, _ string) bool {
	return x >= f.minX && x < f.maxX && z >= f.minZ && z < f.maxZ
}
