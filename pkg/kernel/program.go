package kernel

import (
	"fmt"

	"github.com/chewxy/math32"
	"github.com/go-gl/mathgl/mgl32"
	"github.com/taigrr/penumbra/pkg/math3d"
	"github.com/taigrr/penumbra/pkg/occluder"
	"github.com/taigrr/penumbra/pkg/sampler"
	"github.com/taigrr/penumbra/pkg/shading"
	"github.com/taigrr/penumbra/pkg/shadow"
)

// Fragment is the float32 varying set of one covered pixel.
type Fragment struct {
	Position   mgl32.Vec3
	Normal     mgl32.Vec3
	DPdx, DPdy mgl32.Vec3
	UV         mgl32.Vec2
	HasUV      bool
	Coord      mgl32.Vec2
}

// FromShading narrows a reference fragment to device precision.
func FromShading(f shading.Fragment) Fragment {
	return Fragment{
		Position: vec3(f.Position),
		Normal:   vec3(f.Normal),
		DPdx:     vec3(f.DPdx),
		DPdy:     vec3(f.DPdy),
		UV:       mgl32.Vec2{float32(f.UV.X), float32(f.UV.Y)},
		HasUV:    f.HasUV,
		Coord:    mgl32.Vec2{float32(f.Coord.X), float32(f.Coord.Y)},
	}
}

// Output is the result of one fragment invocation.
type Output struct {
	Color   mgl32.Vec4
	Discard bool
}

// Program is a compiled fragment program: the uniforms of one draw at
// device precision.
type Program struct {
	PointsSlot    int
	TrianglesSlot int
	// Workers bounds the goroutines of a dispatch. Zero means GOMAXPROCS.
	Workers int
	// Progress, when set, is called from worker goroutines with the size
	// of each finished chunk.
	Progress func(n int)

	objTransform mgl32.Mat4
	objTriangles int

	light  mgl32.Vec3
	lights []mgl32.Vec3

	dim, opacity    float32
	defaultColor    mgl32.Vec3
	useDefaultColor bool
	useLight        bool
	shadowing       bool
	useTexture      bool
	useTint         bool
	fwdFacing       bool
	faceted         bool

	samples       int
	radius        float32
	floor         float32
	epsilon       float32
	includeCenter bool
	symmetric     bool
	frame         uint32
	sampler       sampler.Sampler

	texture shading.Texture
}

// Compile validates u and converts it for the device. tex may be nil.
func Compile(u *shading.Uniforms, tex shading.Texture) (*Program, error) {
	if err := u.Validate(); err != nil {
		return nil, fmt.Errorf("compile program: %w", err)
	}
	eps := u.Shadow.Epsilon
	if eps == 0 {
		eps = shadow.DefaultEpsilon
	}
	p := &Program{
		PointsSlot:      occluder.SlotPoints,
		TrianglesSlot:   occluder.SlotTriangles,
		objTransform:    mgl32.Mat4(u.ObjTransform.Float32()),
		objTriangles:    u.ObjTriangles,
		light:           vec3(u.Light),
		dim:             float32(u.Dim),
		opacity:         float32(u.Opacity),
		defaultColor:    vec3(u.DefaultColor),
		useDefaultColor: u.UseDefaultColor,
		useLight:        u.UseLight,
		shadowing:       u.Shadowing,
		useTexture:      u.UseTexture,
		useTint:         u.UseTint,
		fwdFacing:       u.FwdFacing,
		faceted:         u.Faceted,
		samples:         u.Shadow.Samples,
		radius:          float32(u.Shadow.Radius),
		floor:           float32(u.Shadow.Floor),
		epsilon:         float32(eps),
		includeCenter:   u.Shadow.IncludeCenter,
		symmetric:       u.Shadow.Symmetric,
		frame:           u.Shadow.Frame,
		sampler:         sampler.New(u.Shadow.Strategy),
		texture:         tex,
	}
	for _, l := range u.Lights {
		p.lights = append(p.lights, vec3(l))
	}
	return p, nil
}

// triangles transforms the bound occluder into shading space. The count is
// the triangle uniform clamped to what the index buffer holds; triangles
// that reference missing points are dropped.
func (p *Program) triangles(v view) []mgl32.Vec3 {
	n := min(p.objTriangles, len(v.indices)/3)
	npts := int32(len(v.points) / 4)
	out := make([]mgl32.Vec3, 0, 3*n)
	for i := range n {
		idx := v.indices[3*i : 3*i+3]
		if idx[0] < 0 || idx[1] < 0 || idx[2] < 0 || idx[0] >= npts || idx[1] >= npts || idx[2] >= npts {
			continue
		}
		for _, e := range idx {
			pt := mgl32.Vec4(v.points[4*e : 4*e+4])
			out = append(out, p.objTransform.Mul4x1(pt).Vec3())
		}
	}
	return out
}

func occluded(a, b mgl32.Vec3, tris []mgl32.Vec3) bool {
	for i := 0; i+2 < len(tris); i += 3 {
		if lineTriangle(a, b, tris[i], tris[i+1], tris[i+2]) {
			return true
		}
	}
	return false
}

func (p *Program) shadowFactor(pos mgl32.Vec3, coord mgl32.Vec2, tris []mgl32.Vec3) float32 {
	start := pos.Add(normalize(p.light.Sub(pos)).Mul(p.epsilon))
	var visible, total int
	if p.samples <= 0 || p.includeCenter {
		total++
		if !occluded(start, p.light, tris) {
			visible++
		}
	}
	for i := range p.samples {
		r := p.sampler.Rand3(sampler.Seed(coord, i, p.frame))
		total++
		if !occluded(start, sampler.Jitter(p.light, p.radius, r, p.symmetric), tris) {
			visible++
		}
	}
	return p.floor + (1-p.floor)*float32(visible)/float32(total)
}

func intensity(n, e, pos, l mgl32.Vec3) float32 {
	dir := normalize(l.Sub(pos))
	d := max(0, n.Dot(dir))
	s := max(0, reflect(dir, n).Dot(e))
	return clamp01(d + math32.Pow(s, shading.SpecularExponent))
}

func (p *Program) shade(f Fragment, tris []mgl32.Vec3) Output {
	n := normalize(f.Normal)
	if p.faceted {
		n = normalize(f.DPdx.Cross(f.DPdy))
	}
	if p.fwdFacing && n[2] < 0 {
		return Output{Discard: true}
	}
	e := normalize(f.Position)

	in := float32(1)
	if p.useLight {
		if len(p.lights) == 0 {
			in = intensity(n, e, f.Position, p.light)
		} else {
			in = 0
			for _, l := range p.lights {
				in += intensity(n, e, f.Position, l)
			}
			in = clamp01(in)
		}
		if p.shadowing {
			in *= p.shadowFactor(f.Position, f.Coord, tris)
		}
	}

	base := mgl32.Vec3{1, 1, 1}
	switch {
	case p.useTexture && p.texture != nil && f.HasUV:
		base = vec3(p.texture.SampleRGB(float64(f.UV[0]), float64(f.UV[1])))
		if p.useTint {
			base = mgl32.Vec3{base[0] * p.defaultColor[0], base[1] * p.defaultColor[1], base[2] * p.defaultColor[2]}
		}
	case p.useDefaultColor:
		base = p.defaultColor
	case p.faceted:
		base = vec3(shading.FacetColor)
	}
	return Output{Color: base.Mul(p.dim * in).Vec4(p.opacity)}
}

// ShadeFragment runs the program for a single fragment against the buffers
// bound on dev.
func (p *Program) ShadeFragment(dev *Device, f Fragment) Output {
	dev.mu.RLock()
	defer dev.mu.RUnlock()
	return p.shade(f, p.triangles(dev.view(p.PointsSlot, p.TrianglesSlot)))
}

func vec3(v math3d.Vec3) mgl32.Vec3 {
	return mgl32.Vec3{float32(v.X), float32(v.Y), float32(v.Z)}
}
