package shadow

import (
	"math"
	"testing"

	"github.com/taigrr/penumbra/pkg/math3d"
	"github.com/taigrr/penumbra/pkg/occluder"
)

// tris is an Occluder over a plain triangle list.
type tris [][3]math3d.Vec3

func (t tris) TriangleCount() int { return len(t) }
func (t tris) Triangle(i int) (p1, p2, p3 math3d.Vec3, ok bool) {
	return t[i][0], t[i][1], t[i][2], true
}

var flat = tris{{math3d.V3(-1, 0, -1), math3d.V3(1, 0, -1), math3d.V3(0, 0, 1)}}

// ceiling blocks every ray from below y=1 to above it near the origin.
var ceiling = tris{{math3d.V3(-100, 1, -100), math3d.V3(100, 1, -100), math3d.V3(0, 1, 100)}}

func TestEvaluateScenarios(t *testing.T) {
	tests := []struct {
		name     string
		p, light math3d.Vec3
		want     float64
	}{
		{"under the triangle", math3d.V3(0, -1, 0), math3d.V3(0, 5, 0), 0},
		{"beside the triangle", math3d.V3(0, -1, 5), math3d.V3(0, 5, 5), 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res := Evaluate(tt.p, tt.light, math3d.V2(0.5, 0.5), flat, Hard())
			if res.Fraction != tt.want {
				t.Errorf("fraction = %v, want %v", res.Fraction, tt.want)
			}
		})
	}
}

func TestZeroSamplesFallsBackToHardTest(t *testing.T) {
	prm := Soft()
	prm.Samples = 0
	prm.IncludeCenter = false
	res := Evaluate(math3d.V3(0, -1, 0), math3d.V3(0, 5, 0), math3d.V2(3.5, 9.5), flat, prm)
	if res.Total != 1 {
		t.Fatalf("total = %d, want 1", res.Total)
	}
	if math.IsNaN(res.Factor) || res.Factor != prm.Floor {
		t.Errorf("factor = %v, want %v", res.Factor, prm.Floor)
	}
}

func TestFactorRemap(t *testing.T) {
	tests := []struct {
		name string
		prm  Params
		occ  Occluder
		want float64
	}{
		{"hard lit", Hard(), tris{}, 1},
		{"hard shadowed", Hard(), ceiling, 0.5},
		{"soft shadowed", Soft(), ceiling, 0.5},
		{"remapped shadowed", Remapped(), ceiling, 0.7},
		{"remapped lit", Remapped(), tris{}, 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res := Evaluate(math3d.Zero3(), math3d.V3(0, 5, 0), math3d.V2(10.5, 20.5), tt.occ, tt.prm)
			if math.Abs(res.Factor-tt.want) > 1e-12 {
				t.Errorf("factor = %v, want %v", res.Factor, tt.want)
			}
		})
	}
}

func TestSoftSampleCount(t *testing.T) {
	res := Evaluate(math3d.Zero3(), math3d.V3(0, 5, 0), math3d.V2(1.5, 1.5), tris{}, Soft())
	if res.Total != 16 {
		t.Errorf("total = %d, want 16 (center + 15)", res.Total)
	}
}

func TestSelfShadowEpsilon(t *testing.T) {
	// A point lying on the occluder's own surface, lit from the front side.
	p := math3d.V3(0, 0, 0)
	res := Evaluate(p, math3d.V3(0.3, 5, 0.2), math3d.V2(0.5, 0.5), flat, Hard())
	if res.Fraction != 1 {
		t.Errorf("surface shadows itself: fraction = %v", res.Fraction)
	}
}

func TestOcclusionMonotonic(t *testing.T) {
	light := math3d.V3(0.2, 4, -0.1)
	prm := Soft()
	prm.Radius = 1.5
	points := []math3d.Vec3{
		math3d.V3(0, -1, 0), math3d.V3(0.9, -1, 0), math3d.V3(-1.2, -1, 0.4),
		math3d.V3(0.5, -2, 1.5), math3d.V3(3, -1, 3),
	}
	extra := [3]math3d.Vec3{math3d.V3(0, 2, -1), math3d.V3(2, 2, 1), math3d.V3(-1, 2, 2)}
	more := append(tris{}, flat...)
	more = append(more, extra)

	for _, p := range points {
		seed := math3d.V2(p.X*10+0.5, p.Z*10+0.5)
		before := Evaluate(p, light, seed, flat, prm)
		after := Evaluate(p, light, seed, more, prm)
		if after.Unoccluded > before.Unoccluded {
			t.Errorf("p=%v: adding a triangle raised unoccluded %d → %d", p, before.Unoccluded, after.Unoccluded)
		}
	}
}

func TestEvaluateDeterministic(t *testing.T) {
	prm := Soft()
	prm.Radius = 1
	p, light := math3d.V3(0.8, -1, 0.2), math3d.V3(0, 3, 0)
	first := Evaluate(p, light, math3d.V2(33.5, 71.5), flat, prm)
	for range 10 {
		if again := Evaluate(p, light, math3d.V2(33.5, 71.5), flat, prm); again != first {
			t.Fatalf("repeat evaluation %+v, first %+v", again, first)
		}
	}
}

func TestTransformedOccluder(t *testing.T) {
	buf := &occluder.Buffers{
		Points: []math3d.Vec4{
			math3d.Point(math3d.V3(-1, 0, -1)),
			math3d.Point(math3d.V3(1, 0, -1)),
			math3d.Point(math3d.V3(0, 0, 1)),
		},
		Indices: []int32{0, 1, 2},
	}
	occ := Transformed{Buffers: buf, Transform: math3d.Translate(math3d.V3(0, 0, 5))}
	res := Evaluate(math3d.V3(0, -1, 5), math3d.V3(0, 5, 5), math3d.V2(0.5, 0.5), occ, Hard())
	if res.Fraction != 0 {
		t.Errorf("moved triangle does not occlude: fraction %v", res.Fraction)
	}
	if (Transformed{}).TriangleCount() != 0 {
		t.Error("empty Transformed reports triangles")
	}
}

func TestOutOfRangeIndexIgnored(t *testing.T) {
	buf := &occluder.Buffers{
		Points: []math3d.Vec4{
			math3d.Point(math3d.V3(-1, 0, -1)),
			math3d.Point(math3d.V3(1, 0, -1)),
			math3d.Point(math3d.V3(0, 0, 1)),
		},
		Indices: []int32{0, 1, 9, 0, 1, 2},
	}
	occ := Transformed{Buffers: buf, Transform: math3d.Identity()}
	p, light := math3d.V3(0, -1, 0), math3d.V3(0, 5, 0)

	if got := Evaluate(p, light, math3d.V2(0.5, 0.5), Limit(occ, 1), Hard()); got.Fraction != 1 {
		t.Errorf("invalid triangle occludes: fraction %v", got.Fraction)
	}
	if got := Evaluate(p, light, math3d.V2(0.5, 0.5), occ, Hard()); got.Fraction != 0 {
		t.Errorf("valid triangle after an invalid one missed: fraction %v", got.Fraction)
	}
}

func TestGrid(t *testing.T) {
	corners := [4]math3d.Vec3{
		math3d.V3(-2, -1, -2), math3d.V3(2, -1, -2), math3d.V3(2, -1, 2), math3d.V3(-2, -1, 2),
	}
	pts := Grid(corners, 15, math3d.V3(0, 5, 0), flat, Hard())
	if len(pts) != 225 {
		t.Fatalf("len = %d, want 225", len(pts))
	}
	if pts[0].Pos != corners[0] || pts[len(pts)-1].Pos != corners[2] {
		t.Errorf("grid corners %v %v", pts[0].Pos, pts[len(pts)-1].Pos)
	}
	center := pts[7*15+7]
	if center.Pos != math3d.V3(0, -1, 0) || center.Result.Fraction != 0 {
		t.Errorf("center %v fraction %v, want origin shadowed", center.Pos, center.Result.Fraction)
	}
}

func TestParamsValidate(t *testing.T) {
	for _, p := range []Params{Hard(), Soft(), Remapped()} {
		if err := p.Validate(); err != nil {
			t.Errorf("preset %+v: %v", p, err)
		}
	}
	if err := (Params{Samples: -1, Floor: 2}).Validate(); err == nil {
		t.Error("expected error")
	}
}

func BenchmarkEvaluateSoft(b *testing.B) {
	prm := Soft()
	for b.Loop() {
		_ = Evaluate(math3d.V3(0.3, -1, 0.1), math3d.V3(0, 5, 0), math3d.V2(12.5, 40.5), flat, prm)
	}
}

func TestLimit(t *testing.T) {
	two := append(tris{}, flat[0], flat[0])
	tests := []struct{ n, want int }{{0, 0}, {1, 1}, {2, 2}, {9, 2}, {-3, 0}}
	for _, tt := range tests {
		if got := Limit(two, tt.n).TriangleCount(); got != tt.want {
			t.Errorf("Limit(%d) = %d, want %d", tt.n, got, tt.want)
		}
	}
	if Evaluate(math3d.V3(0, -1, 0), math3d.V3(0, 5, 0), math3d.V2(0.5, 0.5), Limit(flat, 0), Hard()).Fraction != 1 {
		t.Error("zero triangle count still occludes")
	}
}
