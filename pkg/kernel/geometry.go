package kernel

import (
	"github.com/chewxy/math32"
	"github.com/go-gl/mathgl/mgl32"
	"github.com/taigrr/penumbra/pkg/geom"
)

const parallelEps = float32(geom.ParallelEpsilon)

func lineTriangle(a, b, p1, p2, p3 mgl32.Vec3) bool {
	n := p2.Sub(p1).Cross(p3.Sub(p2))
	l := n.Len()
	if l == 0 || math32.IsNaN(l) || math32.IsInf(l, 0) {
		return false
	}
	n = n.Mul(1 / l)
	w := -p1.Dot(n)

	axis := b.Sub(a)
	pd := axis.Dot(n)
	if math32.Abs(pd) < parallelEps {
		return false
	}
	alpha := (-w - a.Dot(n)) / pd
	if !(alpha >= 0 && alpha <= 1) {
		return false
	}
	hit := a.Add(axis.Mul(alpha))
	return pointInTriangle(hit, p1, p2, p3, majorAxis(n))
}

func majorAxis(n mgl32.Vec3) geom.Axis {
	ax, ay, az := math32.Abs(n[0]), math32.Abs(n[1]), math32.Abs(n[2])
	if ax > ay {
		if ax > az {
			return geom.AxisX
		}
		return geom.AxisZ
	}
	if ay > az {
		return geom.AxisY
	}
	return geom.AxisZ
}

func project(p mgl32.Vec3, axis geom.Axis) mgl32.Vec2 {
	switch axis {
	case geom.AxisX:
		return mgl32.Vec2{p[1], p[2]}
	case geom.AxisY:
		return mgl32.Vec2{p[0], p[2]}
	default:
		return mgl32.Vec2{p[0], p[1]}
	}
}

func orient(a, b, c mgl32.Vec2) float32 {
	u, v := b.Sub(a), c.Sub(b)
	return u[0]*v[1] - u[1]*v[0]
}

func pointInTriangle(test, t1, t2, t3 mgl32.Vec3, axis geom.Axis) bool {
	p := project(test, axis)
	a, b, c := project(t1, axis), project(t2, axis), project(t3, axis)
	if orient(a, b, c) == 0 {
		return false
	}
	c1, c2, c3 := orient(p, a, b), orient(p, b, c), orient(p, c, a)
	return (c1 >= 0 && c2 >= 0 && c3 >= 0) || (c1 <= 0 && c2 <= 0 && c3 <= 0)
}

func reflect(i, n mgl32.Vec3) mgl32.Vec3 {
	return i.Sub(n.Mul(2 * n.Dot(i)))
}

func normalize(v mgl32.Vec3) mgl32.Vec3 {
	l := v.Len()
	if l == 0 {
		return v
	}
	return v.Mul(1 / l)
}

func clamp01(x float32) float32 {
	return min(1, max(0, x))
}
