package geom

import (
	"math"

	"github.com/taigrr/penumbra/pkg/math3d"
)

// Axis names the coordinate axis most aligned with a plane normal. The
// values match the 1-based convention the shader source uses.
type Axis int

const (
	AxisX Axis = iota + 1
	AxisY
	AxisZ
)

func (a Axis) String() string {
	switch a {
	case AxisX:
		return "x"
	case AxisY:
		return "y"
	case AxisZ:
		return "z"
	}
	return "invalid"
}

// MajorAxis returns the axis with the largest |component| of n.
// Ties go toward z, then y.
func MajorAxis(n math3d.Vec3) Axis {
	ax, ay, az := math.Abs(n.X), math.Abs(n.Y), math.Abs(n.Z)
	if ax > ay {
		if ax > az {
			return AxisX
		}
		return AxisZ
	}
	if ay > az {
		return AxisY
	}
	return AxisZ
}

// Project drops the given axis, leaving the coordinate plane perpendicular
// to it: x → (y, z), y → (x, z), z → (x, y).
func Project(p math3d.Vec3, axis Axis) math3d.Vec2 {
	switch axis {
	case AxisX:
		return math3d.V2(p.Y, p.Z)
	case AxisY:
		return math3d.V2(p.X, p.Z)
	default:
		return math3d.V2(p.X, p.Y)
	}
}

// Orientation returns the 2D cross product of (b-a) and (c-b): positive for
// a counter-clockwise turn a→b→c, negative for clockwise, zero if collinear.
func Orientation(a, b, c math3d.Vec2) float64 {
	return b.Sub(a).Cross(c.Sub(b))
}

// PointInTriangle2D reports whether test lies inside triangle t1 t2 t3 after
// projecting all four points onto the plane perpendicular to axis.
//
// The test is closed: points on an edge or at a vertex are inside, for
// either winding. Triangles that project to zero area contain nothing.
func PointInTriangle2D(test, t1, t2, t3 math3d.Vec3, axis Axis) bool {
	p := Project(test, axis)
	a, b, c := Project(t1, axis), Project(t2, axis), Project(t3, axis)
	if Orientation(a, b, c) == 0 {
		return false
	}
	c1 := Orientation(p, a, b)
	c2 := Orientation(p, b, c)
	c3 := Orientation(p, c, a)
	allPos := c1 >= 0 && c2 >= 0 && c3 >= 0
	allNeg := c1 <= 0 && c2 <= 0 && c3 <= 0
	return allPos || allNeg
}

// SegmentTriangle intersects segment a→b with triangle p1 p2 p3 and returns
// the hit point and its alpha along the segment.
func SegmentTriangle(a, b, p1, p2, p3 math3d.Vec3) (hit math3d.Vec3, alpha float64, ok bool) {
	pl := PlaneFromTriangle(p1, p2, p3)
	hit, alpha, ok = LinePlaneIntersect(a, b, pl)
	if !ok || alpha < 0 || alpha > 1 {
		return math3d.Vec3{}, 0, false
	}
	if !PointInTriangle2D(hit, p1, p2, p3, MajorAxis(pl.Normal)) {
		return math3d.Vec3{}, 0, false
	}
	return hit, alpha, true
}

// RayTriangleIntersect reports whether segment a→b crosses triangle p1 p2 p3.
// Degenerate triangles and segments parallel to the triangle never hit.
func RayTriangleIntersect(a, b, p1, p2, p3 math3d.Vec3) bool {
	_, _, ok := SegmentTriangle(a, b, p1, p2, p3)
	return ok
}
