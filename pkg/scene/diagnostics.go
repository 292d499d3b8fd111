package scene

import (
	"github.com/taigrr/penumbra/pkg/math3d"
	"github.com/taigrr/penumbra/pkg/occluder"
	"github.com/taigrr/penumbra/pkg/shadow"
)

// Diagnostic grid settings: the floor grid jitters five light samples
// within a small radius, the wall grid is a single hard test.
const (
	GridRes     = 15
	gridSamples = 5
	gridRadius  = 0.1
)

// ShadowGrids evaluates the CPU shadow test over the floor and the wall
// in world space, for drawing as dots over the frame.
func (st *State) ShadowGrids() (floor, wall []shadow.GridPoint) {
	mesh, model := st.Caster()
	occ := shadow.Transformed{Buffers: occluder.FromSource(mesh), Transform: model}

	soft := shadow.Params{
		Samples:   gridSamples,
		Radius:    gridRadius,
		Floor:     0.5,
		Epsilon:   shadow.DefaultEpsilon,
		Strategy:  st.Shadow.Strategy,
		Symmetric: true,
		Frame:     st.Frame,
	}
	floor = shadow.Grid(st.squareCorners(FloorModel), GridRes, st.Light, occ, soft)
	wall = shadow.Grid(st.squareCorners(WallModel), GridRes, st.Light, occ, shadow.Hard())
	return floor, wall
}

// squareCorners returns the square's four corners placed by model, in
// order around the quad.
func (st *State) squareCorners(model math3d.Mat4) [4]math3d.Vec3 {
	var c [4]math3d.Vec3
	for i := range c {
		p, _, _ := st.Square.GetVertex(i)
		c[i] = model.MulVec3(p)
	}
	return c
}

// WavyPoints returns the wave's control points in world space.
func (st *State) WavyPoints() []math3d.Vec3 {
	model := st.WavyModel()
	pts := st.Wavy.Points()
	for i, p := range pts {
		pts[i] = model.MulVec3(p)
	}
	return pts
}
