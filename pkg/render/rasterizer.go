// Package render turns meshes into fragments, hands them to a Shader and
// resolves the shaded results into a Framebuffer that can be drawn to a
// terminal or saved as PNG.
package render

import (
	"math"

	"github.com/taigrr/penumbra/pkg/math3d"
	"github.com/taigrr/penumbra/pkg/shading"
)

// MeshRenderer is the geometry a rasterizer can draw. It matches
// models.Mesh without importing it.
type MeshRenderer interface {
	VertexCount() int
	TriangleCount() int
	GetVertex(i int) (pos, normal math3d.Vec3, uv math3d.Vec2)
	GetFace(i int) [3]int
}

// BoundedMeshRenderer adds local bounds for frustum culling.
type BoundedMeshRenderer interface {
	MeshRenderer
	GetBounds() (min, max math3d.Vec3)
}

// UVMeshRenderer reports whether GetVertex returns meaningful UVs.
type UVMeshRenderer interface {
	HasUVs() bool
}

// Fragment is one covered pixel of one triangle.
type Fragment struct {
	shading.Fragment
	X, Y  int     // framebuffer pixel, y down
	Depth float64 // NDC z, smaller is closer
}

// Rasterizer converts triangles into fragments and owns the depth buffer.
type Rasterizer struct {
	camera       *Camera
	fb           *Framebuffer
	zbuffer      []float64
	frustum      Frustum
	frustumDirty bool
	frags        []Fragment

	// CullBackfaces drops triangles wound clockwise on screen. Off by
	// default: the forward-facing discard in the fragment program is the
	// cull the pipeline relies on.
	CullBackfaces bool

	CullingStats  CullingStats
	FragmentStats FragmentStats
}

// CullingStats counts frustum tests since the last reset.
type CullingStats struct {
	MeshesTested int
	MeshesCulled int
	MeshesDrawn  int
}

// FragmentStats counts fragments since the last reset.
type FragmentStats struct {
	Emitted   int
	Discarded int
	Written   int
}

// NewRasterizer creates a rasterizer drawing into fb through camera.
func NewRasterizer(camera *Camera, fb *Framebuffer) *Rasterizer {
	r := &Rasterizer{
		camera:       camera,
		fb:           fb,
		frustumDirty: true,
	}
	r.Resize()
	return r
}

// Resize matches the depth buffer to the framebuffer.
func (r *Rasterizer) Resize() {
	if r.fb == nil {
		r.zbuffer = nil
		return
	}
	r.zbuffer = make([]float64, r.fb.Width*r.fb.Height)
	r.ClearDepth()
}

// Width returns the framebuffer width.
func (r *Rasterizer) Width() int {
	if r.fb == nil {
		return 0
	}
	return r.fb.Width
}

// Height returns the framebuffer height.
func (r *Rasterizer) Height() int {
	if r.fb == nil {
		return 0
	}
	return r.fb.Height
}

// Camera returns the camera the rasterizer projects through.
func (r *Rasterizer) Camera() *Camera { return r.camera }

// ClearDepth resets the depth buffer. Call before each frame.
func (r *Rasterizer) ClearDepth() {
	n := len(r.zbuffer)
	if n == 0 {
		return
	}
	r.zbuffer[0] = math.MaxFloat64
	for i := 1; i < n; i *= 2 {
		copy(r.zbuffer[i:], r.zbuffer[:i])
	}
}

// InvalidateFrustum marks the frustum stale after the camera moved.
func (r *Rasterizer) InvalidateFrustum() {
	r.frustumDirty = true
}

// ResetStats zeroes the culling and fragment counters.
func (r *Rasterizer) ResetStats() {
	r.CullingStats = CullingStats{}
	r.FragmentStats = FragmentStats{}
}

func (r *Rasterizer) updateFrustum() {
	if r.frustumDirty {
		r.frustum = NewFrustumFromMatrix(r.camera.ViewProjectionMatrix())
		r.frustumDirty = false
	}
}

// IsVisible tests a local-space box placed with model against the frustum.
func (r *Rasterizer) IsVisible(local AABB, model math3d.Mat4) bool {
	r.updateFrustum()
	return r.frustum.IntersectAABB(local.Transform(model))
}

// Depth returns the stored depth at (x, y).
func (r *Rasterizer) Depth(x, y int) float64 {
	if x < 0 || x >= r.Width() || y < 0 || y >= r.Height() {
		return math.MaxFloat64
	}
	return r.zbuffer[y*r.Width()+x]
}

func (r *Rasterizer) setDepth(x, y int, z float64) {
	if x < 0 || x >= r.Width() || y < 0 || y >= r.Height() {
		return
	}
	r.zbuffer[y*r.Width()+x] = z
}

func (r *Rasterizer) culled(mesh MeshRenderer, model math3d.Mat4) bool {
	bounded, ok := mesh.(BoundedMeshRenderer)
	if !ok {
		return false
	}
	r.CullingStats.MeshesTested++
	lo, hi := bounded.GetBounds()
	if !r.IsVisible(AABB{Min: lo, Max: hi}, model) {
		r.CullingStats.MeshesCulled++
		return true
	}
	r.CullingStats.MeshesDrawn++
	return false
}

// screenVertex is a vertex after projection, with its view-space
// attributes kept for interpolation.
type screenVertex struct {
	X, Y float64 // pixels, y down
	Z    float64 // NDC depth
	W    float64 // clip w

	View   math3d.Vec3
	Normal math3d.Vec3
	UV     math3d.Vec2
}

// Rasterize appends the fragments of every triangle of mesh, placed with
// model, to dst. Fragments already behind the depth buffer are skipped.
func (r *Rasterizer) Rasterize(dst []Fragment, mesh MeshRenderer, model math3d.Mat4) []Fragment {
	if r.fb == nil || r.culled(mesh, model) {
		return dst
	}
	modelView := r.camera.ViewMatrix().Mul(model)
	normalMat := modelView.NormalMatrix()
	proj := r.camera.ProjectionMatrix()
	hasUV := true
	if m, ok := mesh.(UVMeshRenderer); ok {
		hasUV = m.HasUVs()
	}

	for i := range mesh.TriangleCount() {
		face := mesh.GetFace(i)
		var sv [3]screenVertex
		behind := false
		for k, vi := range face {
			pos, n, uv := mesh.GetVertex(vi)
			view := modelView.MulVec3(pos)
			clip := proj.MulVec4(math3d.Point(view))
			if clip.W <= 0 {
				behind = true
				break
			}
			ndc := clip.PerspectiveDivide()
			sv[k] = screenVertex{
				X:      (ndc.X + 1) * 0.5 * float64(r.Width()),
				Y:      (1 - ndc.Y) * 0.5 * float64(r.Height()),
				Z:      ndc.Z,
				W:      clip.W,
				View:   view,
				Normal: normalMat.MulVec3Dir(n),
				UV:     uv,
			}
		}
		// Triangles crossing the eye plane are dropped rather than clipped.
		if behind {
			continue
		}
		dst = r.rasterizeTriangle(dst, &sv, hasUV)
	}
	return dst
}

// edgeCoeffs returns A, B, C with edge(x, y) = A·x + B·y + C, positive to
// the left of x0,y0 → x1,y1.
func edgeCoeffs(x0, y0, x1, y1 float64) (a, b, c float64) {
	return y0 - y1, x1 - x0, x0*y1 - x1*y0
}

func (r *Rasterizer) rasterizeTriangle(dst []Fragment, sv *[3]screenVertex, hasUV bool) []Fragment {
	a0, b0, c0 := edgeCoeffs(sv[1].X, sv[1].Y, sv[2].X, sv[2].Y)
	a1, b1, c1 := edgeCoeffs(sv[2].X, sv[2].Y, sv[0].X, sv[0].Y)
	a2, b2, c2 := edgeCoeffs(sv[0].X, sv[0].Y, sv[1].X, sv[1].Y)
	area := a2*sv[2].X + b2*sv[2].Y + c2
	if area == 0 || math.IsNaN(area) {
		return dst
	}
	// Screen y points down, so counter-clockwise in NDC gives a negative area.
	if r.CullBackfaces && area > 0 {
		return dst
	}
	inv := 1 / area
	a0, b0, c0 = a0*inv, b0*inv, c0*inv
	a1, b1, c1 = a1*inv, b1*inv, c1*inv
	a2, b2, c2 = a2*inv, b2*inv, c2*inv

	minX := max(0, int(math.Floor(min3(sv[0].X, sv[1].X, sv[2].X))))
	maxX := min(r.Width()-1, int(math.Ceil(max3(sv[0].X, sv[1].X, sv[2].X))))
	minY := max(0, int(math.Floor(min3(sv[0].Y, sv[1].Y, sv[2].Y))))
	maxY := min(r.Height()-1, int(math.Ceil(max3(sv[0].Y, sv[1].Y, sv[2].Y))))

	invW := [3]float64{1 / sv[0].W, 1 / sv[1].W, 1 / sv[2].W}
	persp := func(l0, l1, l2 float64) (float64, float64, float64) {
		p0, p1, p2 := l0*invW[0], l1*invW[1], l2*invW[2]
		s := p0 + p1 + p2
		return p0 / s, p1 / s, p2 / s
	}
	viewAt := func(l0, l1, l2 float64) math3d.Vec3 {
		p0, p1, p2 := persp(l0, l1, l2)
		return sv[0].View.Scale(p0).Add(sv[1].View.Scale(p1)).Add(sv[2].View.Scale(p2))
	}

	height := float64(r.Height())
	for y := minY; y <= maxY; y++ {
		py := float64(y) + 0.5
		for x := minX; x <= maxX; x++ {
			px := float64(x) + 0.5
			l0 := a0*px + b0*py + c0
			l1 := a1*px + b1*py + c1
			l2 := a2*px + b2*py + c2
			if l0 < 0 || l1 < 0 || l2 < 0 {
				continue
			}
			z := l0*sv[0].Z + l1*sv[1].Z + l2*sv[2].Z
			if z >= r.Depth(x, y) {
				continue
			}

			p0, p1, p2 := persp(l0, l1, l2)
			pos := sv[0].View.Scale(p0).Add(sv[1].View.Scale(p1)).Add(sv[2].View.Scale(p2))
			f := Fragment{X: x, Y: y, Depth: z}
			f.Position = pos
			f.Normal = sv[0].Normal.Scale(p0).Add(sv[1].Normal.Scale(p1)).Add(sv[2].Normal.Scale(p2))
			// One pixel right, and one pixel up (y-1 on a y-down screen).
			f.DPdx = viewAt(l0+a0, l1+a1, l2+a2).Sub(pos)
			f.DPdy = viewAt(l0-b0, l1-b1, l2-b2).Sub(pos)
			if hasUV {
				f.UV = sv[0].UV.Scale(p0).Add(sv[1].UV.Scale(p1)).Add(sv[2].UV.Scale(p2))
				f.HasUV = true
			}
			f.Coord = math3d.V2(px, height-py)
			dst = append(dst, f)
		}
	}
	return dst
}

// Resolve writes shaded fragments in order: discarded fragments write
// nothing, the rest pass a depth test, blend over the framebuffer by alpha
// and store their depth.
func (r *Rasterizer) Resolve(frags []Fragment, shaded []Shaded) {
	r.FragmentStats.Emitted += len(frags)
	for i, f := range frags {
		s := shaded[i]
		if s.Discard {
			r.FragmentStats.Discarded++
			continue
		}
		if f.Depth >= r.Depth(f.X, f.Y) {
			continue
		}
		r.fb.Blend(f.X, f.Y, s.Color)
		r.setDepth(f.X, f.Y, f.Depth)
		r.FragmentStats.Written++
	}
}

func min3(a, b, c float64) float64 {
	return math.Min(a, math.Min(b, c))
}

func max3(a, b, c float64) float64 {
	return math.Max(a, math.Max(b, c))
}
