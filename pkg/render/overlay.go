package render

import (
	"image/color"

	"github.com/taigrr/penumbra/pkg/math3d"
	"github.com/taigrr/penumbra/pkg/shadow"
)

// Overlay draws unshaded world-space markers over a rendered frame: light
// guides, anchor disks and shadow diagnostics.
type Overlay struct {
	camera *Camera
	fb     *Framebuffer
}

// NewOverlay draws into fb through camera.
func NewOverlay(camera *Camera, fb *Framebuffer) *Overlay {
	return &Overlay{camera: camera, fb: fb}
}

func (o *Overlay) project(p math3d.Vec3) (x, y int, ok bool) {
	fx, fy, _, vis := o.camera.WorldToScreen(p, o.fb.Width, o.fb.Height)
	return int(fx), int(fy), vis
}

// Line3D draws a segment when at least one end is on screen.
func (o *Overlay) Line3D(a, b math3d.Vec3, c color.RGBA) {
	x0, y0, va := o.project(a)
	x1, y1, vb := o.project(b)
	if !va && !vb {
		return
	}
	o.fb.DrawLine(x0, y0, x1, y1, c)
}

// Disk3D draws a screen-space disk of r pixels at p.
func (o *Overlay) Disk3D(p math3d.Vec3, r int, c color.RGBA) {
	if x, y, ok := o.project(p); ok {
		o.fb.DrawDisk(x, y, r, c)
	}
}

// LightGuides draws the light as a disk with red, green and blue lines
// dropping to the three axis planes.
func (o *Overlay) LightGuides(light math3d.Vec3) {
	o.Line3D(light, math3d.V3(0, light.Y, light.Z), ColorRed)
	o.Line3D(light, math3d.V3(light.X, 0, light.Z), ColorGreen)
	o.Line3D(light, math3d.V3(light.X, light.Y, 0), ColorBlue)
	o.Disk3D(light, 2, ColorYellow)
}

// ShadowGrid draws one dot per grid point, grey levels following the
// shadow factor.
func (o *Overlay) ShadowGrid(points []shadow.GridPoint) {
	for _, gp := range points {
		v := toByte(gp.Result.Factor)
		o.Disk3D(gp.Pos, 0, color.RGBA{v, v, v, 255})
	}
}
