package shading

import (
	"github.com/taigrr/penumbra/pkg/math3d"
	"github.com/taigrr/penumbra/pkg/occluder"
	"github.com/taigrr/penumbra/pkg/shadow"
)

// Fragment is the interpolated input of one covered pixel.
type Fragment struct {
	Position math3d.Vec3 // view space
	Normal   math3d.Vec3 // view space, not normalized
	// DPdx and DPdy are the change of Position one pixel right and one
	// pixel up.
	DPdx, DPdy math3d.Vec3
	UV         math3d.Vec2
	HasUV      bool
	// Coord is the window coordinate of the pixel centre, y up.
	Coord math3d.Vec2
}

// Texture is sampled by UV and returns linear RGB in [0, 1].
type Texture interface {
	SampleRGB(u, v float64) math3d.Vec3
}

// Occluder builds the occluder view a draw sees: the bound buffers under
// the object transform, capped at the triangle-count uniform.
func Occluder(buf *occluder.Buffers, u *Uniforms) shadow.Occluder {
	if buf == nil {
		return shadow.Limit(&occluder.Buffers{}, 0)
	}
	return shadow.Limit(shadow.Transformed{Buffers: buf, Transform: u.ObjTransform}, u.ObjTriangles)
}

// Shade runs the fragment program. occ and tex may be nil.
func Shade(f Fragment, u *Uniforms, occ shadow.Occluder, tex Texture) (color [4]float64, discard bool) {
	n := f.Normal.Normalize()
	if u.Faceted {
		n = f.DPdx.Cross(f.DPdy).Normalize()
	}
	if u.FwdFacing && n.Z < 0 {
		return color, true
	}
	e := f.Position.Normalize()

	intensity := 1.0
	if u.UseLight {
		intensity = TotalIntensity(n, e, f.Position, u.Light, u.Lights)
		if u.Shadowing && occ != nil {
			intensity *= shadow.Evaluate(f.Position, u.Light, f.Coord, occ, u.Shadow).Factor
		}
	}

	base := math3d.Splat(1)
	switch {
	case u.UseTexture && tex != nil && f.HasUV:
		base = tex.SampleRGB(f.UV.X, f.UV.Y)
		if u.UseTint {
			base = base.Mul(u.DefaultColor)
		}
	case u.UseDefaultColor:
		base = u.DefaultColor
	case u.Faceted:
		base = FacetColor
	}

	rgb := base.Scale(u.Dim * intensity)
	return [4]float64{rgb.X, rgb.Y, rgb.Z, u.Opacity}, false
}
