package world

import (
	"math"
	"slices"

	"github.com/go-gl/mathgl/mgl64"

	"voxmap/internal/coord"
	"voxmap/internal/frustum"
)

// Visibility narrows the world to the chunks a camera can see. It never
// loads anything.
type Visibility struct {
	Subset  Subset
	Locator ChunkLocator
}

// RegionBounds returns the rectangle of regions covered by the camera's
// frustum corners projected onto the ground plane.
func RegionBounds(cam frustum.Camera) (lo, hi coord.RegionCoord) {
	corners := cam.FrustumVertices()
	lo = coord.RegionCoord{X: math.MaxInt64, Z: math.MaxInt64}
	hi = coord.RegionCoord{X: math.MinInt64, Z: math.MinInt64}
	for _, p := range corners {
		r := coord.RegionFromWorld(p.X(), p.Z())
		lo.X, lo.Z = min(lo.X, r.X), min(lo.Z, r.Z)
		hi.X, hi.Z = max(hi.X, r.X), max(hi.Z, r.Z)
	}
	return lo, hi
}

func RegionBox(r coord.RegionCoord) frustum.BoundingBox {
	const w = coord.RegionWidth * coord.ChunkWidth
	const d = coord.RegionDepth * coord.ChunkDepth
	return frustum.BoundingBox{
		Origin: mgl64.Vec3{float64(r.X * w), 0, float64(r.Z * d)},
		Width:  w,
		Height: coord.ChunkHeight,
		Depth:  d,
	}
}

func ChunkBox(c coord.ChunkCoord) frustum.BoundingBox {
	return frustum.BoundingBox{
		Origin: mgl64.Vec3{float64(c.X * coord.ChunkWidth), 0, float64(c.Z * coord.ChunkDepth)},
		Width:  coord.ChunkWidth,
		Height: coord.ChunkHeight,
		Depth:  coord.ChunkDepth,
	}
}

// FindVisibleRegions returns the regions whose bounding box passes the
// frustum test.
func (v Visibility) FindVisibleRegions(cam frustum.Camera) []coord.RegionCoord {
	lo, hi := RegionBounds(cam)
	var out []coord.RegionCoord
	for x := lo.X; x <= hi.X; x++ {
		for z := lo.Z; z <= hi.Z; z++ {
			r := coord.RegionCoord{X: x, Z: z}
			if RegionBox(r).IsVisible(cam) {
				out = append(out, r)
			}
		}
	}
	return out
}

// FindVisible returns every chunk that passes the frustum test, belongs to
// the subset and exists on disk, in canonical order.
func (v Visibility) FindVisible(cam frustum.Camera) []coord.ChunkCoord {
	var out []coord.ChunkCoord
	for _, r := range v.FindVisibleRegions(cam) {
		for x := int64(0); x < coord.RegionWidth; x++ {
			for z := int64(0); z < coord.RegionDepth; z++ {
				c := r.Chunk(x, z)
				if v.Subset != nil && !v.Subset.Contains(c) {
					continue
				}
				if !ChunkBox(c).IsVisible(cam) {
					continue
				}
				if v.Locator != nil && !v.Locator.Exists(c) {
					continue
				}
				out = append(out, c)
			}
		}
	}
	slices.SortFunc(out, coord.ChunkCoord.Compare)
	return out
}
