package shading

import (
	"errors"
	"fmt"

	"github.com/taigrr/penumbra/pkg/math3d"
	"github.com/taigrr/penumbra/pkg/shadow"
)

// FacetColor is the flat colour of faceted fragments that have neither a
// texture nor a default colour.
var FacetColor = math3d.V3(0.1, 0.5, 0.8)

// Uniforms is the per-draw state shared by every fragment. Positions are in
// view space.
type Uniforms struct {
	ModelView    math3d.Mat4
	Persp        math3d.Mat4
	ObjTransform math3d.Mat4
	ObjTriangles int

	Light  math3d.Vec3
	Lights []math3d.Vec3

	Dim             float64
	Opacity         float64
	DefaultColor    math3d.Vec3
	UseDefaultColor bool

	UseLight   bool
	Shadowing  bool
	UseTexture bool
	// UseTint multiplies the texture colour by DefaultColor.
	UseTint   bool
	FwdFacing bool
	Faceted   bool

	Shadow shadow.Params
}

// DefaultUniforms returns lit, unshadowed, opaque white.
func DefaultUniforms() Uniforms {
	return Uniforms{
		ModelView:       math3d.Identity(),
		Persp:           math3d.Identity(),
		ObjTransform:    math3d.Identity(),
		Dim:             1,
		Opacity:         1,
		DefaultColor:    math3d.Splat(1),
		UseDefaultColor: true,
		UseLight:        true,
		Shadow:          shadow.Soft(),
	}
}

// Validate reports every problem with u.
func (u *Uniforms) Validate() error {
	var errs []error
	if len(u.Lights) > MaxLights {
		errs = append(errs, fmt.Errorf("%d lights exceeds %d", len(u.Lights), MaxLights))
	}
	if u.Opacity < 0 || u.Opacity > 1 {
		errs = append(errs, fmt.Errorf("opacity %g outside [0,1]", u.Opacity))
	}
	if u.Dim < 0 {
		errs = append(errs, fmt.Errorf("negative dim %g", u.Dim))
	}
	if u.ObjTriangles < 0 {
		errs = append(errs, fmt.Errorf("negative triangle count %d", u.ObjTriangles))
	}
	if err := u.Shadow.Validate(); err != nil {
		errs = append(errs, fmt.Errorf("shadow: %w", err))
	}
	return errors.Join(errs...)
}
