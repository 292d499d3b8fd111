package scene

import (
	"math"

	"github.com/taigrr/penumbra/pkg/geom"
	"github.com/taigrr/penumbra/pkg/math3d"
	"github.com/taigrr/penumbra/pkg/models"
	"github.com/taigrr/penumbra/pkg/occluder"
	"github.com/taigrr/penumbra/pkg/render"
	"github.com/taigrr/penumbra/pkg/shading"
	"github.com/taigrr/penumbra/pkg/shadow"
)

// DragKind is what a mouse drag moves.
type DragKind int

const (
	DragNone DragKind = iota
	DragLight
	DragObject
	DragCamera
	DragSlider
)

// DragTarget is the current mouse grab. Slider is meaningful only for
// DragSlider.
type DragTarget struct {
	Kind   DragKind
	Slider SliderID
}

// PickRadius is how close, in framebuffer pixels, a click must land to
// grab the light or the object anchor.
const PickRadius = 4

const (
	orbitPerPixel = 0.02
	zoomStep      = 0.5
	minDistance   = 2
	maxDistance   = 40
	maxRotation   = 20
	maxPitch      = 1.5
)

// Surface placements in the y-up world. The square spans [-1,1] in xz.
var (
	FloorModel = math3d.ScaleUniform(2).Mul(math3d.Translate(math3d.V3(0, -0.1, -0.01)))
	WallModel  = math3d.Translate(math3d.V3(0, 1, -2.5)).
			Mul(math3d.ScaleUniform(2)).
			Mul(math3d.RotateX(math3d.Radians(90)))
)

// State is everything the view mutates between frames.
type State struct {
	cfg Config

	// Orbit camera, in the values the view smooths toward.
	Yaw, Pitch, Distance float64
	Target               math3d.Vec3

	Light  math3d.Vec3
	Lights []math3d.Vec3
	Dim    float64
	Shadow shadow.Params
	// softSamples restores the sample count when leaving hard mode.
	softSamples int

	Anchor   math3d.Vec3
	Spin     math3d.Mat4
	Rotation int

	Faceted     bool
	FwdFacing   bool
	Tint        bool
	Hard        bool
	Diagnostics bool
	ShadowGrid  bool
	ShowWavy    bool
	HUD         bool
	Temporal    bool
	Frame       uint32

	Object   *models.Mesh
	Square   *models.Mesh
	Wavy     *models.WavyBox
	wavyMesh *models.Mesh

	Textures     []shading.Texture
	TextureIndex int
	FloorTexture shading.Texture
	WallTexture  shading.Texture
	occluderMesh *models.Mesh
	binder       *occluder.Binder
	Sliders      []*Slider
	Drag         DragTarget
	dragPlane    geom.Plane
	dragOffset   math3d.Vec3
	lastX, lastY int
}

// New builds the state for cfg with object as the shadow-casting mesh.
func New(cfg Config, object *models.Mesh) *State {
	st := &State{
		cfg:     cfg,
		Object:  object,
		Square:  models.Square(),
		Wavy:    models.NewWavyBox(),
		binder:  occluder.NewBinder(),
		Sliders: newSliders(),

		Faceted:   cfg.Shading.Faceted,
		FwdFacing: cfg.Shading.FwdFacing,
		Tint:      cfg.Shading.Tint,
		Temporal:  cfg.Shading.Temporal,
		ShowWavy:  cfg.Wavy.Show,
		Lights:    append([]math3d.Vec3(nil), cfg.Light.Extra...),
	}
	st.Wavy.Res, st.Wavy.Freq, st.Wavy.Ampl = cfg.Wavy.Res, cfg.Wavy.Freq, cfg.Wavy.Ampl
	st.Yaw, st.Pitch, st.Distance = cfg.Camera.Yaw, cfg.Camera.Pitch, cfg.Camera.Distance
	st.Target = cfg.Camera.Target
	st.Shadow = cfg.Shadow
	st.Reset()
	return st
}

// Config returns the configuration the state was built from.
func (st *State) Config() Config { return st.cfg }

// Reset restores the light, object placement, spin and sample count.
func (st *State) Reset() {
	st.Light = st.cfg.Light.Position
	st.Dim = st.cfg.Light.Dim
	st.Anchor = st.cfg.Object.Anchor
	st.Spin = math3d.Identity()
	st.Rotation = st.cfg.Object.Rotation
	st.Shadow.Samples = st.cfg.Shadow.Samples
	st.Shadow.Radius = st.cfg.Shadow.Radius
	st.softSamples = st.Shadow.Samples
	st.Hard = false
	st.syncSliders()
}

// ObjectModel places the object at its anchor with the current spin.
func (st *State) ObjectModel() math3d.Mat4 {
	return math3d.Translate(st.Anchor).Mul(st.Spin).Mul(math3d.ScaleUniform(st.cfg.Object.Scale))
}

// WavyModel places the wavy box at the anchor.
func (st *State) WavyModel() math3d.Mat4 {
	return math3d.Translate(st.Anchor)
}

// Caster returns the mesh that casts shadows and its placement: the wavy
// box when shown, otherwise the object.
func (st *State) Caster() (*models.Mesh, math3d.Mat4) {
	if st.ShowWavy {
		if st.wavyMesh == nil {
			st.wavyMesh = st.Wavy.Mesh()
		}
		return st.wavyMesh, st.WavyModel()
	}
	return st.Object, st.ObjectModel()
}

// Step advances one frame of dt seconds: the object spins by
// Rotation half-degrees about each axis per 60 Hz frame, the wave moves,
// and the sampler frame advances when temporal jitter is on.
func (st *State) Step(dt float64) {
	if st.Rotation > 0 {
		a := math3d.Radians(float64(st.Rotation)*0.5) * dt * 60
		st.Spin = st.Spin.Mul(math3d.RotateX(a)).Mul(math3d.RotateY(a)).Mul(math3d.RotateZ(a))
	}
	st.Wavy.Advance()
	st.wavyMesh = nil
	if st.Temporal {
		st.Frame++
	}
}

// ApplyCamera points cam along the orbit.
func (st *State) ApplyCamera(cam *render.Camera) {
	st.ApplyOrbit(cam, st.Yaw, st.Pitch, st.Distance)
}

// ApplyOrbit points cam with explicit orbit values, such as spring-smoothed
// ones.
func (st *State) ApplyOrbit(cam *render.Camera, yaw, pitch, distance float64) {
	cam.SetFOV(math3d.Radians(st.cfg.Camera.FOV))
	cam.SetClipPlanes(st.cfg.Camera.Near, st.cfg.Camera.Far)
	cam.Orbit(st.Target, yaw, pitch, distance)
}

// Zoom moves the eye steps increments closer (negative: farther).
func (st *State) Zoom(steps int) {
	st.Distance = min(maxDistance, max(minDistance, st.Distance-float64(steps)*zoomStep))
}

// Pick grabs whatever is under framebuffer pixel (x, y), in priority
// slider, light, object anchor, then camera.
func (st *State) Pick(x, y int, cam *render.Camera, width, height int) DragTarget {
	st.lastX, st.lastY = x, y
	for _, s := range st.Sliders {
		if s.Hit(x, y) {
			st.Drag = DragTarget{Kind: DragSlider, Slider: s.ID}
			s.SetFromX(x)
			st.applySlider(s)
			return st.Drag
		}
	}
	switch {
	case near(cam, st.Light, x, y, width, height):
		st.Drag = DragTarget{Kind: DragLight}
		st.grab(st.Light, x, y, cam, width, height)
	case near(cam, st.Anchor, x, y, width, height):
		st.Drag = DragTarget{Kind: DragObject}
		st.grab(st.Anchor, x, y, cam, width, height)
	default:
		st.Drag = DragTarget{Kind: DragCamera}
	}
	return st.Drag
}

func near(cam *render.Camera, p math3d.Vec3, x, y, width, height int) bool {
	sx, sy, _, ok := cam.WorldToScreen(p, width, height)
	if !ok {
		return false
	}
	return math.Hypot(sx-float64(x)-0.5, sy-float64(y)-0.5) <= PickRadius
}

// grab fixes the drag plane through p facing the camera.
func (st *State) grab(p math3d.Vec3, x, y int, cam *render.Camera, width, height int) {
	n := cam.Forward()
	st.dragPlane = geom.Plane{Normal: n, W: -n.Dot(p)}
	st.dragOffset = math3d.Zero3()
	if hit, ok := st.dragHit(x, y, cam, width, height); ok {
		st.dragOffset = p.Sub(hit)
	}
}

func (st *State) dragHit(x, y int, cam *render.Camera, width, height int) (math3d.Vec3, bool) {
	a, b := cam.ScreenRay(float64(x)+0.5, float64(y)+0.5, width, height)
	hit, _, ok := geom.LinePlaneIntersect(a, b, st.dragPlane)
	return hit, ok
}

// DragTo continues the current grab at pixel (x, y).
func (st *State) DragTo(x, y int, cam *render.Camera, width, height int) {
	dx, dy := x-st.lastX, y-st.lastY
	st.lastX, st.lastY = x, y
	switch st.Drag.Kind {
	case DragSlider:
		s := st.slider(st.Drag.Slider)
		s.SetFromX(x)
		st.applySlider(s)
	case DragLight:
		if hit, ok := st.dragHit(x, y, cam, width, height); ok {
			st.Light = hit.Add(st.dragOffset)
			st.syncSliders()
		}
	case DragObject:
		if hit, ok := st.dragHit(x, y, cam, width, height); ok {
			st.Anchor = hit.Add(st.dragOffset)
		}
	case DragCamera:
		st.Yaw -= float64(dx) * orbitPerPixel
		st.Pitch = ClampPitch(st.Pitch + float64(dy)*orbitPerPixel)
	}
}

// ClampPitch keeps the orbit short of the poles.
func ClampPitch(p float64) float64 { return min(maxPitch, max(-maxPitch, p)) }

// Release ends the current grab.
func (st *State) Release() { st.Drag = DragTarget{} }

func (st *State) slider(id SliderID) *Slider {
	for _, s := range st.Sliders {
		if s.ID == id {
			return s
		}
	}
	return st.Sliders[0]
}

func (st *State) applySlider(s *Slider) {
	switch s.ID {
	case SliderLightX:
		st.Light.X = s.Value
	case SliderLightY:
		st.Light.Y = s.Value
	case SliderLightZ:
		st.Light.Z = s.Value
	case SliderDim:
		st.Dim = s.Value
	case SliderFreq:
		st.Wavy.Freq = s.Value
		st.wavyMesh = nil
	case SliderLightSize:
		st.Shadow.Radius = s.Value
	}
}

func (st *State) syncSliders() {
	for _, s := range st.Sliders {
		switch s.ID {
		case SliderLightX:
			s.Set(st.Light.X)
		case SliderLightY:
			s.Set(st.Light.Y)
		case SliderLightZ:
			s.Set(st.Light.Z)
		case SliderDim:
			s.Set(st.Dim)
		case SliderFreq:
			s.Set(st.Wavy.Freq)
		case SliderLightSize:
			s.Set(st.Shadow.Radius)
		}
	}
}

// Texture is the object texture currently selected, or nil.
func (st *State) Texture() shading.Texture {
	if len(st.Textures) == 0 {
		return nil
	}
	return st.Textures[st.TextureIndex]
}

// NextTexture and PrevTexture step through Textures without wrapping.
func (st *State) NextTexture() {
	st.TextureIndex = min(st.TextureIndex+1, max(0, len(st.Textures)-1))
}

func (st *State) PrevTexture() {
	st.TextureIndex = max(st.TextureIndex-1, 0)
}

// Faster and Slower change the spin speed.
func (st *State) Faster() { st.Rotation = min(st.Rotation+1, maxRotation) }
func (st *State) Slower() { st.Rotation = max(st.Rotation-1, 0) }

// MoreSamples and FewerSamples change the jittered light count, never
// below one.
func (st *State) MoreSamples() {
	st.Hard = false
	st.Shadow.Samples++
	st.softSamples = st.Shadow.Samples
}

func (st *State) FewerSamples() {
	st.Hard = false
	st.Shadow.Samples = max(1, st.Shadow.Samples-1)
	st.softSamples = st.Shadow.Samples
}

// ToggleHard switches between the single hard test and soft sampling.
func (st *State) ToggleHard() {
	st.Hard = !st.Hard
	if st.Hard {
		st.Shadow.Samples = 0
	} else {
		st.Shadow.Samples = st.softSamples
	}
}

// ScaleAmplitude, ScaleFrequency and StepResolution edit the wave.
func (st *State) ScaleAmplitude(up bool) {
	st.Wavy.Ampl *= scaleStep(up)
	st.wavyMesh = nil
}

func (st *State) ScaleFrequency(up bool) {
	st.Wavy.Freq *= scaleStep(up)
	st.wavyMesh = nil
	st.syncSliders()
}

func (st *State) StepResolution(up bool) {
	if up {
		st.Wavy.Res++
	} else if st.Wavy.Res > 2 {
		st.Wavy.Res--
	}
	st.wavyMesh = nil
}

func scaleStep(up bool) float64 {
	if up {
		return 1.1
	}
	return 0.9
}
