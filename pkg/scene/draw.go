package scene

import (
	"context"
	"fmt"
	"image/color"

	"github.com/taigrr/penumbra/pkg/math3d"
	"github.com/taigrr/penumbra/pkg/models"
	"github.com/taigrr/penumbra/pkg/occluder"
	"github.com/taigrr/penumbra/pkg/render"
	"github.com/taigrr/penumbra/pkg/shading"
	"github.com/taigrr/penumbra/pkg/shadow"
)

// Draw is one mesh of a frame with its uniforms.
type Draw struct {
	Name     string
	Mesh     *models.Mesh
	Model    math3d.Mat4
	Texture  shading.Texture
	Uniforms shading.Uniforms
}

// Pipeline executes a frame: it receives the occluder buffers through
// occluder.Target, then a Begin, the draws in order and an End.
type Pipeline interface {
	occluder.Target
	Begin(background color.RGBA)
	Draw(ctx context.Context, d *Draw) error
	End() error
}

// Background is the clear colour.
func (st *State) Background() color.RGBA {
	bg := st.cfg.Shading.Background
	return color.RGBA{bg[0], bg[1], bg[2], 255}
}

// BindOccluder uploads the caster geometry to target when it changed.
func (st *State) BindOccluder(target occluder.Target) error {
	mesh, _ := st.Caster()
	if mesh != st.occluderMesh {
		st.binder.Set(occluder.FromSource(mesh))
		st.occluderMesh = mesh
	}
	if err := st.binder.Bind(target); err != nil {
		return fmt.Errorf("bind occluder: %w", err)
	}
	return nil
}

// InvalidateOccluder makes the next BindOccluder upload again, as a new
// pipeline starts with empty slots.
func (st *State) InvalidateOccluder() { st.binder.Touch() }

// Uploads counts occluder uploads so far.
func (st *State) Uploads() int { return st.binder.Uploads() }

// ShadowParams returns the shadow parameters for this frame.
func (st *State) ShadowParams() shadow.Params {
	p := st.Shadow
	p.Frame = st.Frame
	return p
}

// Draws returns the frame's draws as seen by cam: the caster (object or
// wavy box), then the floor and the wall. BindOccluder must run first so
// the triangle count is current.
func (st *State) Draws(cam *render.Camera) []Draw {
	view := cam.ViewMatrix()
	_, casterModel := st.Caster()
	occ := st.binder.Uniforms(view, casterModel)

	base := shading.DefaultUniforms()
	base.Persp = cam.ProjectionMatrix()
	base.ObjTransform = occ.ObjTransform
	base.ObjTriangles = occ.ObjTriangles
	base.Light = view.MulVec3(st.Light)
	for _, l := range st.Lights {
		base.Lights = append(base.Lights, view.MulVec3(l))
	}
	base.Dim = st.Dim
	base.Shadowing = true
	base.Shadow = st.ShadowParams()
	base.Faceted = st.Faceted
	base.FwdFacing = st.FwdFacing

	draws := make([]Draw, 0, 3)
	add := func(name string, mesh *models.Mesh, model math3d.Mat4, tex shading.Texture, col math3d.Vec3, opacity float64) {
		u := base
		u.ModelView = view.Mul(model)
		u.DefaultColor = col
		u.Opacity = opacity
		u.UseTexture = tex != nil && mesh.HasUVs()
		u.UseTint = u.UseTexture && st.Tint
		if !u.UseTexture {
			tex = nil
		}
		draws = append(draws, Draw{Name: name, Mesh: mesh, Model: model, Texture: tex, Uniforms: u})
	}

	obj := st.cfg.Object
	if st.ShowWavy {
		mesh, model := st.Caster()
		add("wavy", mesh, model, nil, obj.Color, obj.Opacity)
	} else {
		add("object", st.Object, st.ObjectModel(), st.Texture(), obj.Color, obj.Opacity)
	}
	if st.cfg.Floor.Enabled {
		add("floor", st.Square, FloorModel, st.FloorTexture, st.cfg.Floor.Color, 1)
	}
	if st.cfg.Wall.Enabled {
		add("wall", st.Square, WallModel, st.WallTexture, st.cfg.Wall.Color, 1)
	}
	return draws
}

// Render binds the occluder and runs every draw through p.
func (st *State) Render(ctx context.Context, p Pipeline, cam *render.Camera) error {
	if err := st.BindOccluder(p); err != nil {
		return err
	}
	p.Begin(st.Background())
	for _, d := range st.Draws(cam) {
		if err := p.Draw(ctx, &d); err != nil {
			return fmt.Errorf("draw %s: %w", d.Name, err)
		}
	}
	return p.End()
}
