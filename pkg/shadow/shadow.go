// Package shadow is the reference shadow evaluator: for a shaded point and a
// light it counts how many (jittered) light samples are visible past a
// brute-force scan of every occluder triangle.
package shadow

import (
	"errors"
	"fmt"

	"github.com/go-gl/mathgl/mgl32"
	"github.com/taigrr/penumbra/pkg/geom"
	"github.com/taigrr/penumbra/pkg/math3d"
	"github.com/taigrr/penumbra/pkg/occluder"
	"github.com/taigrr/penumbra/pkg/sampler"
)

// DefaultEpsilon is how far a shaded point is pushed toward the light before
// testing, so a surface does not shadow itself.
const DefaultEpsilon = 1e-4

// Params controls sampling and how the visible fraction maps to a factor.
type Params struct {
	// Samples is the number of jittered light positions. Zero means a
	// single hard test against the un-jittered light.
	Samples int `yaml:"samples"`
	// Radius scales the jitter offset. It plays no part in attenuation.
	Radius float64 `yaml:"radius"`
	// Floor is the factor of a fully occluded point; visible points get 1.
	Floor float64 `yaml:"floor"`
	// IncludeCenter adds the un-jittered light as one more sample.
	IncludeCenter bool             `yaml:"include_center"`
	Epsilon       float64          `yaml:"epsilon"`
	Strategy      sampler.Strategy `yaml:"sampler"`
	Symmetric     bool             `yaml:"symmetric"`
	// Frame salts the sampler seed. Keep it fixed for reproducible output.
	Frame uint32 `yaml:"-"`
}

// Hard is a single un-jittered test, darkening occluded points to half.
func Hard() Params {
	return Params{Floor: 0.5, Epsilon: DefaultEpsilon}
}

// Soft averages the centre test with 15 jittered samples.
func Soft() Params {
	return Params{
		Samples:       15,
		Radius:        0.3,
		Floor:         0.5,
		IncludeCenter: true,
		Epsilon:       DefaultEpsilon,
		Strategy:      sampler.Trig,
	}
}

// Remapped maps the visible fraction into [0.7, 1] using hashed jitter.
func Remapped() Params {
	return Params{
		Samples:  1,
		Radius:   0.2,
		Floor:    0.7,
		Epsilon:  DefaultEpsilon,
		Strategy: sampler.Hash,
	}
}

// Validate reports parameters outside their meaningful range.
func (p Params) Validate() error {
	var errs []error
	if p.Samples < 0 {
		errs = append(errs, fmt.Errorf("samples %d is negative", p.Samples))
	}
	if p.Floor < 0 || p.Floor > 1 {
		errs = append(errs, fmt.Errorf("floor %v outside [0,1]", p.Floor))
	}
	if p.Radius < 0 {
		errs = append(errs, fmt.Errorf("radius %v is negative", p.Radius))
	}
	return errors.Join(errs...)
}

// Occluder is the triangle set a shadow ray is tested against, already in
// the space of the shaded points.
type Occluder interface {
	TriangleCount() int
	// Triangle returns the corners of triangle i. ok is false for a
	// triangle that references missing points; it casts no shadow.
	Triangle(i int) (p1, p2, p3 math3d.Vec3, ok bool)
}

// Transformed places occluder buffers with a model transform.
type Transformed struct {
	Buffers   *occluder.Buffers
	Transform math3d.Mat4
}

// TriangleCount implements Occluder.
func (t Transformed) TriangleCount() int {
	if t.Buffers == nil {
		return 0
	}
	return t.Buffers.TriangleCount()
}

// Triangle implements Occluder.
func (t Transformed) Triangle(i int) (p1, p2, p3 math3d.Vec3, ok bool) {
	a, b, c, ok := t.Buffers.Triangle(i)
	if !ok {
		return p1, p2, p3, false
	}
	return t.Transform.MulVec3(a), t.Transform.MulVec3(b), t.Transform.MulVec3(c), true
}

// Result is the outcome of one evaluation.
type Result struct {
	Unoccluded int
	Total      int
	// Fraction is Unoccluded/Total.
	Fraction float64
	// Factor is Floor + (1-Floor)·Fraction.
	Factor float64
}

// Occluded reports whether any triangle of occ crosses segment a→b.
// Invalid triangles are skipped.
func Occluded(a, b math3d.Vec3, occ Occluder) bool {
	for i := range occ.TriangleCount() {
		p1, p2, p3, ok := occ.Triangle(i)
		if ok && geom.RayTriangleIntersect(a, b, p1, p2, p3) {
			return true
		}
	}
	return false
}

// Evaluate computes how much of light is visible from p. coord is the
// window coordinate of the fragment and only seeds the sampler.
func Evaluate(p, light math3d.Vec3, coord math3d.Vec2, occ Occluder, prm Params) Result {
	eps := prm.Epsilon
	if eps == 0 {
		eps = DefaultEpsilon
	}
	start := p.Add(light.Sub(p).Normalize().Scale(eps))

	var res Result
	test := func(l math3d.Vec3) {
		res.Total++
		if !Occluded(start, l, occ) {
			res.Unoccluded++
		}
	}

	if prm.Samples <= 0 || prm.IncludeCenter {
		test(light)
	}
	if prm.Samples > 0 {
		smp := sampler.New(prm.Strategy)
		base := vec32(light)
		c := mgl32.Vec2{float32(coord.X), float32(coord.Y)}
		for i := range prm.Samples {
			r := smp.Rand3(sampler.Seed(c, i, prm.Frame))
			test(vec64(sampler.Jitter(base, float32(prm.Radius), r, prm.Symmetric)))
		}
	}

	res.Fraction = float64(res.Unoccluded) / float64(res.Total)
	res.Factor = prm.Floor + (1-prm.Floor)*res.Fraction
	return res
}

func vec32(v math3d.Vec3) mgl32.Vec3 {
	return mgl32.Vec3{float32(v.X), float32(v.Y), float32(v.Z)}
}

func vec64(v mgl32.Vec3) math3d.Vec3 {
	return math3d.V3(float64(v[0]), float64(v[1]), float64(v[2]))
}

// Limit caps the triangle count of occ at n, the way a triangle-count
// uniform bounds the device loop. n larger than the real count is clamped.
func Limit(occ Occluder, n int) Occluder {
	return limited{occ, n}
}

type limited struct {
	Occluder
	n int
}

func (l limited) TriangleCount() int {
	return max(0, min(l.n, l.Occluder.TriangleCount()))
}
