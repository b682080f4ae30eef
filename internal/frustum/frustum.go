package frustum

import (
	"github.com/go-gl/mathgl/mgl64"
)

// Outcodes returned by Classify. A point inside the frustum has code Inside.
const (
	Inside = 0
	Left   = 1 << 0
	Right  = 1 << 1
	Top    = 1 << 2
	Bottom = 1 << 3
	Near   = 1 << 4
	Far    = 1 << 5
)

const (
	leftPlane = iota
	rightPlane
	topPlane
	bottomPlane
	nearPlane
	farPlane
)

// Corner indices into the eight frustum vertices: the near face first, then
// the far face, each ordered top-left, top-right, bottom-left, bottom-right.
const (
	NearTopLeft = iota
	NearTopRight
	NearBottomLeft
	NearBottomRight
	FarTopLeft
	FarTopRight
	FarBottomLeft
	FarBottomRight
)

// Camera is the part of a camera the visibility query needs.
type Camera interface {
	FrustumVertices() [8]mgl64.Vec3
	Classify(x, y, z float64) int
}

// Plane is a point plus a unit normal pointing into the frustum.
type Plane struct {
	Point  mgl64.Vec3
	Normal mgl64.Vec3
}

func NewPlane(point, normal mgl64.Vec3) Plane {
	return Plane{Point: point, Normal: normal.Normalize()}
}

// IsInside reports whether p lies on the inner side of the plane. Points on
// the plane count as inside.
func (p Plane) IsInside(v mgl64.Vec3) bool {
	return v.Sub(p.Point).Dot(p.Normal) >= 0
}

// Frustum is a convex view volume bounded by six planes.
type Frustum struct {
	planes [6]Plane
	points [8]mgl64.Vec3
}

// FromCorners builds a frustum from its eight corner points (see the corner
// index constants). Each plane normal is oriented towards the centre of the
// volume, so the corner winding does not matter.
func FromCorners(c [8]mgl64.Vec3) *Frustum {
	var centre mgl64.Vec3
	for _, p := range c {
		centre = centre.Add(p)
	}
	centre = centre.Mul(1.0 / 8)

	f := &Frustum{points: c}
	f.planes[leftPlane] = planeThrough(c[NearTopLeft], c[NearBottomLeft], c[FarTopLeft], centre)
	f.planes[rightPlane] = planeThrough(c[NearTopRight], c[NearBottomRight], c[FarTopRight], centre)
	f.planes[topPlane] = planeThrough(c[NearTopLeft], c[NearTopRight], c[FarTopLeft], centre)
	f.planes[bottomPlane] = planeThrough(c[NearBottomLeft], c[NearBottomRight], c[FarBottomLeft], centre)
	f.planes[nearPlane] = planeThrough(c[NearTopLeft], c[NearTopRight], c[NearBottomLeft], centre)
	f.planes[farPlane] = planeThrough(c[FarTopLeft], c[FarTopRight], c[FarBottomLeft], centre)
	return f
}

func planeThrough(a, b, c, inside mgl64.Vec3) Plane {
	normal := b.Sub(a).Cross(c.Sub(a))
	if inside.Sub(a).Dot(normal) < 0 {
		normal = normal.Mul(-1)
	}
	return NewPlane(a, normal)
}

func (f *Frustum) FrustumVertices() [8]mgl64.Vec3 {
	return f.points
}

func (f *Frustum) Planes() [6]Plane {
	return f.planes
}

// IsVisible reports whether v is inside all six planes.
func (f *Frustum) IsVisible(v mgl64.Vec3) bool {
	for _, p := range f.planes {
		if !p.IsInside(v) {
			return false
		}
	}
	return true
}

// Classify returns the outcode of a point. Opposite planes are exclusive: a
// point left of the volume is never also tested against the right plane.
func (f *Frustum) Classify(x, y, z float64) int {
	v := mgl64.Vec3{x, y, z}
	code := Inside

	if !f.planes[leftPlane].IsInside(v) {
		code |= Left
	} else if !f.planes[rightPlane].IsInside(v) {
		code |= Right
	}

	if !f.planes[topPlane].IsInside(v) {
		code |= Top
	} else if !f.planes[bottomPlane].IsInside(v) {
		code |= Bottom
	}

	if !f.planes[nearPlane].IsInside(v) {
		code |= Near
	} else if !f.planes[farPlane].IsInside(v) {
		code |= Far
	}

	return code
}
