package render

import (
	"math"

	"github.com/taigrr/penumbra/pkg/math3d"
)

// Camera is a perspective camera. It can be placed freely or orbit a
// target.
type Camera struct {
	Position math3d.Vec3

	// Orientation in radians.
	Pitch float64
	Yaw   float64

	FOV         float64 // vertical, radians
	AspectRatio float64
	Near        float64
	Far         float64

	viewMatrix     math3d.Mat4
	projMatrix     math3d.Mat4
	viewProjMatrix math3d.Mat4
	viewDirty      bool
	projDirty      bool
}

// Camera defaults of the shadow scene.
const (
	DefaultFOVDegrees = 30
	DefaultNear       = 0.001
	DefaultFar        = 500
)

// NewCamera returns a camera at the origin looking down -z.
func NewCamera() *Camera {
	return &Camera{
		FOV:         math3d.Radians(DefaultFOVDegrees),
		AspectRatio: 16.0 / 9.0,
		Near:        DefaultNear,
		Far:         DefaultFar,
		viewDirty:   true,
		projDirty:   true,
	}
}

// SetPosition moves the camera.
func (c *Camera) SetPosition(pos math3d.Vec3) {
	c.Position = pos
	c.viewDirty = true
}

// SetFOV sets the vertical field of view in radians.
func (c *Camera) SetFOV(fov float64) {
	c.FOV = fov
	c.projDirty = true
}

// SetAspectRatio sets width / height.
func (c *Camera) SetAspectRatio(aspect float64) {
	c.AspectRatio = aspect
	c.projDirty = true
}

// SetClipPlanes sets the near and far planes.
func (c *Camera) SetClipPlanes(near, far float64) {
	c.Near = near
	c.Far = far
	c.projDirty = true
}

// Forward returns the viewing direction.
func (c *Camera) Forward() math3d.Vec3 {
	return math3d.V3(
		-math.Sin(c.Yaw)*math.Cos(c.Pitch),
		math.Sin(c.Pitch),
		-math.Cos(c.Yaw)*math.Cos(c.Pitch),
	)
}

// Right returns the camera's right vector.
func (c *Camera) Right() math3d.Vec3 {
	return math3d.V3(math.Cos(c.Yaw), 0, -math.Sin(c.Yaw))
}

// Up returns the camera's up vector.
func (c *Camera) Up() math3d.Vec3 {
	return c.Right().Cross(c.Forward())
}

// LookAt turns the camera toward target.
func (c *Camera) LookAt(target math3d.Vec3) {
	dir := target.Sub(c.Position).Normalize()
	c.Pitch = math.Asin(max(-1, min(1, dir.Y)))
	c.Yaw = math.Atan2(-dir.X, -dir.Z)
	c.viewDirty = true
}

// Orbit places the camera distance away from target at the given yaw and
// pitch and looks at target. Yaw 0, pitch 0 puts the eye on +z.
func (c *Camera) Orbit(target math3d.Vec3, yaw, pitch, distance float64) {
	const limit = math.Pi/2 - 0.01
	pitch = max(-limit, min(limit, pitch))
	off := math3d.V3(
		math.Sin(yaw)*math.Cos(pitch),
		math.Sin(pitch),
		math.Cos(yaw)*math.Cos(pitch),
	)
	c.SetPosition(target.Add(off.Scale(distance)))
	c.LookAt(target)
}

// ViewMatrix maps world space to view space.
func (c *Camera) ViewMatrix() math3d.Mat4 {
	if c.viewDirty {
		rot := math3d.RotateX(-c.Pitch).Mul(math3d.RotateY(-c.Yaw))
		c.viewMatrix = rot.Mul(math3d.Translate(c.Position.Negate()))
		c.viewDirty = false
		c.viewProjMatrix = c.ProjectionMatrix().Mul(c.viewMatrix)
	}
	return c.viewMatrix
}

// ProjectionMatrix maps view space to clip space.
func (c *Camera) ProjectionMatrix() math3d.Mat4 {
	if c.projDirty {
		c.projMatrix = math3d.Perspective(c.FOV, c.AspectRatio, c.Near, c.Far)
		c.projDirty = false
		c.viewProjMatrix = c.projMatrix.Mul(c.ViewMatrix())
	}
	return c.projMatrix
}

// ViewProjectionMatrix returns projection · view.
func (c *Camera) ViewProjectionMatrix() math3d.Mat4 {
	if c.viewDirty || c.projDirty {
		c.viewProjMatrix = c.ProjectionMatrix().Mul(c.ViewMatrix())
	}
	return c.viewProjMatrix
}

// WorldToScreen projects p to pixel coordinates (y down) of a
// width×height target. visible is false behind the camera or outside the
// frustum.
func (c *Camera) WorldToScreen(p math3d.Vec3, width, height int) (x, y, depth float64, visible bool) {
	clip := c.ViewProjectionMatrix().MulVec4(math3d.Point(p))
	if clip.W <= 0 {
		return 0, 0, 0, false
	}
	ndc := clip.PerspectiveDivide()
	x = (ndc.X + 1) * 0.5 * float64(width)
	y = (1 - ndc.Y) * 0.5 * float64(height)
	visible = ndc.X >= -1 && ndc.X <= 1 && ndc.Y >= -1 && ndc.Y <= 1 && ndc.Z >= -1 && ndc.Z <= 1
	return x, y, ndc.Z, visible
}

// ScreenRay returns the world-space line through pixel (x, y) of a
// width×height target, from the near plane toward the far plane.
func (c *Camera) ScreenRay(x, y float64, width, height int) (near, far math3d.Vec3) {
	inv := c.ViewProjectionMatrix().Inverse()
	nx := 2*x/float64(width) - 1
	ny := 1 - 2*y/float64(height)
	near = inv.MulVec4(math3d.V4(nx, ny, -1, 1)).PerspectiveDivide()
	far = inv.MulVec4(math3d.V4(nx, ny, 1, 1)).PerspectiveDivide()
	return near, far
}
