// Package geom holds the reference ray/triangle math used for shadow tests.
//
// Everything here is a pure function on float64 values. The same algorithm
// runs in float32 inside the device kernel; this package is the version the
// tests and the CPU diagnostics trust.
package geom

import (
	"math"

	"github.com/taigrr/penumbra/pkg/math3d"
)

// ParallelEpsilon is the smallest |axis·normal| for which a segment is
// considered to cross a plane rather than run alongside it.
const ParallelEpsilon = 1e-3

// Plane is a plane in (normal, signed distance) form: points p on the plane
// satisfy Normal·p + W = 0.
type Plane struct {
	Normal math3d.Vec3
	W      float64
}

// PlaneFromTriangle returns the plane through p1, p2, p3 with normal
// normalize((p2-p1) × (p3-p2)). A degenerate triangle yields a zero normal,
// which every intersection below treats as "no hit".
func PlaneFromTriangle(p1, p2, p3 math3d.Vec3) Plane {
	n := p2.Sub(p1).Cross(p3.Sub(p2)).Normalize()
	return Plane{Normal: n, W: -p1.Dot(n)}
}

// Distance returns the signed distance from p to the plane.
func (pl Plane) Distance(p math3d.Vec3) float64 {
	return pl.Normal.Dot(p) + pl.W
}

// Degenerate reports whether the plane has no usable normal.
func (pl Plane) Degenerate() bool {
	return pl.Normal.LenSq() == 0 || !pl.Normal.IsFinite() || math.IsNaN(pl.W)
}

// LinePlaneIntersect finds alpha such that a + alpha(b-a) lies on pl.
// ok is false when the segment direction is within ParallelEpsilon of the
// plane. Alpha outside [0, 1] is returned as is; rejecting it is the
// caller's decision.
func LinePlaneIntersect(a, b math3d.Vec3, pl Plane) (hit math3d.Vec3, alpha float64, ok bool) {
	if pl.Degenerate() {
		return math3d.Vec3{}, 0, false
	}
	axis := b.Sub(a)
	pdDot := axis.Dot(pl.Normal)
	if math.Abs(pdDot) < ParallelEpsilon {
		return math3d.Vec3{}, 0, false
	}
	alpha = (-pl.W - a.Dot(pl.Normal)) / pdDot
	return a.Add(axis.Scale(alpha)), alpha, true
}
