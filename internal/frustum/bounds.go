package frustum

import "github.com/go-gl/mathgl/mgl64"

// BoundingBox is an axis-aligned box given by its minimum corner and size.
type BoundingBox struct {
	Origin mgl64.Vec3
	Width  float64
	Height float64
	Depth  float64
}

// Corners returns the eight corners of the box.
func (b BoundingBox) Corners() [8]mgl64.Vec3 {
	x0, y0, z0 := b.Origin.X(), b.Origin.Y(), b.Origin.Z()
	x1, y1, z1 := x0+b.Width, y0+b.Height, z0+b.Depth
	return [8]mgl64.Vec3{
		{x0, y0, z0}, {x1, y0, z0}, {x0, y0, z1}, {x1, y0, z1},
		{x0, y1, z0}, {x1, y1, z0}, {x0, y1, z1}, {x1, y1, z1},
	}
}

// IsVisible is a conservative test: the box is hidden only when every corner
// lies outside the same plane. Boxes straddling a frustum edge may pass even
// though no part of them is visible, but a visible box is never rejected.
func (b BoundingBox) IsVisible(cam Camera) bool {
	code := ^0
	for _, c := range b.Corners() {
		code &= cam.Classify(c.X(), c.Y(), c.Z())
		if code == 0 {
			return true
		}
	}
	return code == 0
}
