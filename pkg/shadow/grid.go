package shadow

import "github.com/taigrr/penumbra/pkg/math3d"

// GridPoint is one diagnostic sample on a surface.
type GridPoint struct {
	Pos    math3d.Vec3
	Result Result
}

// Grid evaluates res×res points spread bilinearly over the quad c1 c2 c3 c4
// (in order around the quad). It is the CPU cross-check drawn over the
// floor and wall.
func Grid(corners [4]math3d.Vec3, res int, light math3d.Vec3, occ Occluder, prm Params) []GridPoint {
	if res < 2 {
		res = 2
	}
	out := make([]GridPoint, 0, res*res)
	for i := range res {
		s := float64(i) / float64(res-1)
		near := corners[0].Lerp(corners[1], s)
		far := corners[3].Lerp(corners[2], s)
		for j := range res {
			t := float64(j) / float64(res-1)
			p := near.Lerp(far, t)
			seed := math3d.V2(float64(i)+0.5, float64(j)+0.5)
			out = append(out, GridPoint{Pos: p, Result: Evaluate(p, light, seed, occ, prm)})
		}
	}
	return out
}
