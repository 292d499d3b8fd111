package render

import (
	"github.com/taigrr/penumbra/pkg/geom"
	"github.com/taigrr/penumbra/pkg/math3d"
)

// Frustum holds the six planes of a view volume with normals pointing
// inward, ordered left, right, bottom, top, near, far.
type Frustum struct {
	Planes [6]geom.Plane
}

const (
	FrustumLeft = iota
	FrustumRight
	FrustumBottom
	FrustumTop
	FrustumNear
	FrustumFar
)

// NewFrustumFromMatrix extracts the planes of a view-projection matrix
// (Gribb/Hartmann). m is column-major, so row i is m[i], m[i+4], m[i+8],
// m[i+12].
func NewFrustumFromMatrix(m math3d.Mat4) Frustum {
	row := func(i int) (math3d.Vec3, float64) {
		return math3d.V3(m[i], m[i+4], m[i+8]), m[i+12]
	}
	r3n, r3w := row(3)
	var f Frustum
	for i := range 3 {
		n, w := row(i)
		f.Planes[2*i] = normalizePlane(r3n.Add(n), r3w+w)
		f.Planes[2*i+1] = normalizePlane(r3n.Sub(n), r3w-w)
	}
	return f
}

func normalizePlane(n math3d.Vec3, w float64) geom.Plane {
	l := n.Len()
	if l == 0 {
		return geom.Plane{Normal: n, W: w}
	}
	return geom.Plane{Normal: n.Scale(1 / l), W: w / l}
}

// AABB is an axis-aligned bounding box.
type AABB struct {
	Min math3d.Vec3
	Max math3d.Vec3
}

// Center returns the middle of the box.
func (b AABB) Center() math3d.Vec3 {
	return b.Min.Add(b.Max).Scale(0.5)
}

// Size returns the box dimensions.
func (b AABB) Size() math3d.Vec3 {
	return b.Max.Sub(b.Min)
}

// Transform returns the box bounding all eight corners of b under m.
func (b AABB) Transform(m math3d.Mat4) AABB {
	out := AABB{Min: m.MulVec3(b.Min), Max: m.MulVec3(b.Min)}
	for i := 1; i < 8; i++ {
		c := math3d.V3(
			pick(i&1 != 0, b.Max.X, b.Min.X),
			pick(i&2 != 0, b.Max.Y, b.Min.Y),
			pick(i&4 != 0, b.Max.Z, b.Min.Z),
		)
		p := m.MulVec3(c)
		out.Min = out.Min.Min(p)
		out.Max = out.Max.Max(p)
	}
	return out
}

// ContainsPoint reports whether p lies inside the box, faces included.
func (b AABB) ContainsPoint(p math3d.Vec3) bool {
	return p.X >= b.Min.X && p.X <= b.Max.X &&
		p.Y >= b.Min.Y && p.Y <= b.Max.Y &&
		p.Z >= b.Min.Z && p.Z <= b.Max.Z
}

// IntersectAABB reports whether any part of box may be inside the
// frustum. It tests the corner furthest along each plane normal.
func (f Frustum) IntersectAABB(box AABB) bool {
	for _, pl := range f.Planes {
		pv := math3d.V3(
			pick(pl.Normal.X >= 0, box.Max.X, box.Min.X),
			pick(pl.Normal.Y >= 0, box.Max.Y, box.Min.Y),
			pick(pl.Normal.Z >= 0, box.Max.Z, box.Min.Z),
		)
		if pl.Distance(pv) < 0 {
			return false
		}
	}
	return true
}

// ContainsPoint reports whether p is inside every plane.
func (f Frustum) ContainsPoint(p math3d.Vec3) bool {
	for _, pl := range f.Planes {
		if pl.Distance(p) < 0 {
			return false
		}
	}
	return true
}

// IntersectsSphere reports whether a sphere touches the frustum.
func (f Frustum) IntersectsSphere(center math3d.Vec3, radius float64) bool {
	for _, pl := range f.Planes {
		if pl.Distance(center) < -radius {
			return false
		}
	}
	return true
}

func pick(cond bool, a, b float64) float64 {
	if cond {
		return a
	}
	return b
}
