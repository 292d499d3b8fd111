package shading

import (
	"math"
	"testing"

	"github.com/taigrr/penumbra/pkg/math3d"
	"github.com/taigrr/penumbra/pkg/occluder"
	"github.com/taigrr/penumbra/pkg/shadow"
)

const tolerance = 1e-9

func approx(a, b float64) bool {
	return math.Abs(a-b) < tolerance
}

type constTex math3d.Vec3

func (c constTex) SampleRGB(u, v float64) math3d.Vec3 { return math3d.Vec3(c) }

// ceiling is one large triangle in the plane y=0 around (0, 0, -5).
func ceiling() *occluder.Buffers {
	return &occluder.Buffers{
		Points: []math3d.Vec4{
			math3d.Point(math3d.V3(-10, 0, -15)),
			math3d.Point(math3d.V3(10, 0, -15)),
			math3d.Point(math3d.V3(0, 0, 5)),
		},
		Indices: []int32{0, 1, 2},
	}
}

func TestIntensity(t *testing.T) {
	p := math3d.V3(0, 0, -5)
	n := math3d.V3(0, 0, 1)
	e := p.Normalize()
	s60 := math.Sin(math.Pi / 3)

	tests := []struct {
		name  string
		light math3d.Vec3
		want  float64
	}{
		{"head on", math3d.V3(0, 0, 0), 1},
		{"behind", math3d.V3(0, 0, -10), 0},
		{"sixty degrees", p.Add(math3d.V3(s60, 0, 0.5).Scale(3)), 0.5 + math.Pow(0.5, SpecularExponent)},
		{"grazing", math3d.V3(10, 0, -5), 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Intensity(n, e, p, tt.light); !approx(got, tt.want) {
				t.Errorf("Intensity = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestTotalIntensity(t *testing.T) {
	p := math3d.V3(0, 0, -5)
	n := math3d.V3(0, 0, 1)
	e := p.Normalize()
	s60 := math.Sin(math.Pi / 3)
	half := p.Add(math3d.V3(s60, 0, 0.5))
	halfOther := p.Add(math3d.V3(-s60, 0, 0.5))
	behind := math3d.V3(0, 0, -10)

	if got, want := TotalIntensity(n, e, p, half, nil), Intensity(n, e, p, half); got != want {
		t.Errorf("no lights: got %v, want canonical %v", got, want)
	}
	if got := TotalIntensity(n, e, p, behind, []math3d.Vec3{half, halfOther, half}); got != 1 {
		t.Errorf("sum not clamped: %v", got)
	}
	a := TotalIntensity(n, e, p, behind, []math3d.Vec3{half, behind})
	b := TotalIntensity(n, e, p, behind, []math3d.Vec3{behind, half})
	if a != b {
		t.Errorf("order dependent: %v vs %v", a, b)
	}
	if !approx(a, Intensity(n, e, p, half)) {
		t.Errorf("unlit light contributed: %v", a)
	}
}

func TestShadeUnlit(t *testing.T) {
	u := DefaultUniforms()
	u.UseLight = false
	u.DefaultColor = math3d.V3(0.2, 0.4, 0.6)
	u.Dim = 0.5

	normals := []math3d.Vec3{{X: 0, Y: 0, Z: 1}, {X: 1, Y: 0, Z: 0}, {X: 0, Y: 0, Z: -1}}
	for _, n := range normals {
		f := Fragment{Position: math3d.V3(1, 2, -7), Normal: n}
		c, discard := Shade(f, &u, nil, nil)
		if discard {
			t.Fatalf("normal %v discarded", n)
		}
		want := [4]float64{0.1, 0.2, 0.3, 1}
		for i := range c {
			if !approx(c[i], want[i]) {
				t.Errorf("normal %v: color %v, want %v", n, c, want)
				break
			}
		}
	}
}

func TestShadeDiscard(t *testing.T) {
	tests := []struct {
		name     string
		fwd      bool
		faceted  bool
		normal   math3d.Vec3
		wantDrop bool
	}{
		{"away, forward facing", true, false, math3d.V3(0, 0, -1), true},
		{"away, two sided", false, false, math3d.V3(0, 0, -1), false},
		{"toward, forward facing", true, false, math3d.V3(0, 0, 1), false},
		{"faceted ignores normal", true, true, math3d.V3(0, 0, -1), false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			u := DefaultUniforms()
			u.FwdFacing = tt.fwd
			u.Faceted = tt.faceted
			f := Fragment{
				Position: math3d.V3(0, 0, -5),
				Normal:   tt.normal,
				DPdx:     math3d.V3(1, 0, 0),
				DPdy:     math3d.V3(0, 1, 0),
			}
			if _, got := Shade(f, &u, nil, nil); got != tt.wantDrop {
				t.Errorf("discard = %v, want %v", got, tt.wantDrop)
			}
		})
	}
}

func TestShadeFacetColor(t *testing.T) {
	u := DefaultUniforms()
	u.Faceted = true
	u.UseDefaultColor = false
	u.UseLight = false
	f := Fragment{DPdx: math3d.V3(1, 0, 0), DPdy: math3d.V3(0, 1, 0), Position: math3d.V3(0, 0, -3)}
	c, _ := Shade(f, &u, nil, nil)
	if c[0] != FacetColor.X || c[1] != FacetColor.Y || c[2] != FacetColor.Z {
		t.Errorf("faceted color = %v, want %v", c, FacetColor)
	}
}

func TestShadeTexture(t *testing.T) {
	tex := constTex(math3d.V3(0.5, 1, 1))
	f := Fragment{Position: math3d.V3(0, 0, -3), Normal: math3d.V3(0, 0, 1), HasUV: true}

	tests := []struct {
		name   string
		useTex bool
		tint   bool
		hasUV  bool
		want   math3d.Vec3
	}{
		{"texture", true, false, true, math3d.V3(0.5, 1, 1)},
		{"tinted", true, true, true, math3d.V3(0.5, 0.5, 0)},
		{"tint without texture", false, true, true, math3d.V3(1, 0.5, 0)},
		{"no uv falls back", true, false, false, math3d.V3(1, 0.5, 0)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			u := DefaultUniforms()
			u.UseLight = false
			u.UseTexture = tt.useTex
			u.UseTint = tt.tint
			u.DefaultColor = math3d.V3(1, 0.5, 0)
			g := f
			g.HasUV = tt.hasUV
			c, _ := Shade(g, &u, nil, tex)
			got := math3d.V3(c[0], c[1], c[2])
			if got.Distance(tt.want) > tolerance {
				t.Errorf("color = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestShadeShadow(t *testing.T) {
	buf := ceiling()
	f := Fragment{
		Position: math3d.V3(0, -1, -5),
		Normal:   math3d.V3(0, 1, 0),
		Coord:    math3d.V2(10.5, 20.5),
	}

	tests := []struct {
		name      string
		useLight  bool
		shadowing bool
		triangles int
		want      float64
	}{
		{"shadowed", true, true, 1, 0.5},
		{"shadowing off", true, false, 1, 1},
		{"no triangles bound", true, true, 0, 1},
		{"unlit ignores shadow", false, true, 1, 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			u := DefaultUniforms()
			u.Light = math3d.V3(0, 5, -5)
			u.UseLight = tt.useLight
			u.Shadowing = tt.shadowing
			u.Shadow = shadow.Hard()
			u.ObjTriangles = tt.triangles
			c, _ := Shade(f, &u, Occluder(buf, &u), nil)
			if !approx(c[0], tt.want) {
				t.Errorf("red = %v, want %v", c[0], tt.want)
			}
		})
	}
}

func TestShadeOutOfRangeIndexIgnored(t *testing.T) {
	buf := ceiling()
	buf.Indices = []int32{0, 1, 9}
	u := DefaultUniforms()
	u.Light = math3d.V3(0, 5, -5)
	u.Shadowing = true
	u.Shadow = shadow.Hard()
	u.ObjTriangles = 1
	f := Fragment{Position: math3d.V3(0, -1, -5), Normal: math3d.V3(0, 1, 0), Coord: math3d.V2(10.5, 20.5)}
	c, _ := Shade(f, &u, Occluder(buf, &u), nil)
	if !approx(c[0], 1) {
		t.Errorf("red = %v, want 1 with the invalid triangle skipped", c[0])
	}
}

func TestShadeOpacity(t *testing.T) {
	u := DefaultUniforms()
	u.Opacity = 0.25
	u.Lights = []math3d.Vec3{{Z: 10}}
	c, _ := Shade(Fragment{Position: math3d.V3(0, 0, -1), Normal: math3d.V3(0, 0, 1)}, &u, nil, nil)
	if c[3] != 0.25 {
		t.Errorf("alpha = %v, want 0.25", c[3])
	}
}

func TestOccluderNilBuffers(t *testing.T) {
	u := DefaultUniforms()
	u.ObjTriangles = 5
	if n := Occluder(nil, &u).TriangleCount(); n != 0 {
		t.Errorf("nil buffers expose %d triangles", n)
	}
}

func TestUniformsValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Uniforms)
		wantErr bool
	}{
		{"defaults", func(*Uniforms) {}, false},
		{"max lights", func(u *Uniforms) { u.Lights = make([]math3d.Vec3, MaxLights) }, false},
		{"too many lights", func(u *Uniforms) { u.Lights = make([]math3d.Vec3, MaxLights+1) }, true},
		{"opacity above one", func(u *Uniforms) { u.Opacity = 1.5 }, true},
		{"negative opacity", func(u *Uniforms) { u.Opacity = -0.1 }, true},
		{"negative dim", func(u *Uniforms) { u.Dim = -1 }, true},
		{"negative triangles", func(u *Uniforms) { u.ObjTriangles = -1 }, true},
		{"bad shadow", func(u *Uniforms) { u.Shadow.Floor = 2 }, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			u := DefaultUniforms()
			tt.mutate(&u)
			if err := u.Validate(); (err != nil) != tt.wantErr {
				t.Errorf("Validate() = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func BenchmarkShade(b *testing.B) {
	u := DefaultUniforms()
	u.Light = math3d.V3(0, 5, -5)
	u.Shadowing = true
	buf := ceiling()
	u.ObjTriangles = buf.TriangleCount()
	occ := Occluder(buf, &u)
	f := Fragment{Position: math3d.V3(0, -1, -5), Normal: math3d.V3(0, 1, 0), Coord: math3d.V2(3.5, 4.5)}
	for b.Loop() {
		Shade(f, &u, occ, nil)
	}
}
