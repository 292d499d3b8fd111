package scene

import (
	"context"
	"math"
	"os"
	"path/filepath"
	"reflect"
	"testing"

	"github.com/taigrr/penumbra/pkg/math3d"
	"github.com/taigrr/penumbra/pkg/models"
	"github.com/taigrr/penumbra/pkg/render"
	"github.com/taigrr/penumbra/pkg/sampler"
)

func TestDefaultValid(t *testing.T) {
	cfg := Default()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("default config invalid: %v", err)
	}
	if cfg.Light.Position != math3d.V3(-1.2, 2.4, 1.8) || cfg.Shadow.Radius != 0.2 || cfg.Shadow.Samples != 1 {
		t.Errorf("unexpected light defaults: %+v %+v", cfg.Light, cfg.Shadow)
	}
	if cfg.Camera.FOV != 30 || cfg.Camera.Near != 0.001 || cfg.Camera.Far != 500 {
		t.Errorf("unexpected camera defaults: %+v", cfg.Camera)
	}
}

func writeFile(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "scene.yaml")
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestLoadOverlaysDefaults(t *testing.T) {
	path := writeFile(t, `
light:
  position: {x: 0, y: 3, z: 0}
shadow:
  samples: 4
  sampler: hash
`)
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Light.Position != math3d.V3(0, 3, 0) {
		t.Errorf("light = %v", cfg.Light.Position)
	}
	if cfg.Shadow.Samples != 4 || cfg.Shadow.Strategy != sampler.Hash {
		t.Errorf("shadow = %+v", cfg.Shadow)
	}
	if cfg.Camera.FOV != 30 || cfg.Object.Mesh != "cube" {
		t.Error("defaults not kept for unset fields")
	}
}

func TestLoadErrors(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{"bad yaml", "light: [\n"},
		{"opacity", "object:\n  opacity: 2\n"},
		{"sampler", "shadow:\n  sampler: perlin\n"},
		{"clip planes", "camera:\n  near: 5\n  far: 1\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := Load(writeFile(t, tt.body)); err == nil {
				t.Error("expected error")
			}
		})
	}
	if _, err := Load(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Error("expected error for missing file")
	}
}

func TestSaveLoad(t *testing.T) {
	cfg := Default()
	cfg.Light.Extra = []math3d.Vec3{{X: 1, Y: 2, Z: 3}}
	cfg.Shadow.Strategy = sampler.Hash
	path := filepath.Join(t.TempDir(), "scene.yaml")
	if err := Save(path, cfg); err != nil {
		t.Fatalf("Save: %v", err)
	}
	got, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if !reflect.DeepEqual(got, cfg) {
		t.Errorf("round trip changed config:\n got %+v\nwant %+v", got, cfg)
	}
}

func TestTooManyLights(t *testing.T) {
	cfg := Default()
	cfg.Light.Extra = make([]math3d.Vec3, 21)
	if err := cfg.Validate(); err == nil {
		t.Error("expected error for 21 extra lights")
	}
}

func TestSlider(t *testing.T) {
	s := &Slider{Min: -2, Max: 2, X: 10, Y: 5, W: 40}
	tests := []struct {
		x, y int
		hit  bool
		want float64
	}{
		{10, 5, true, -2},
		{30, 6, true, 0},
		{50, 4, true, 2},
		{60, 5, false, 2},
		{0, 5, false, -2},
		{30, 9, false, 0},
	}
	for _, tt := range tests {
		if got := s.Hit(tt.x, tt.y); got != tt.hit {
			t.Errorf("Hit(%d, %d) = %v, want %v", tt.x, tt.y, got, tt.hit)
		}
		s.SetFromX(tt.x)
		if math.Abs(s.Value-tt.want) > 1e-12 {
			t.Errorf("SetFromX(%d) = %v, want %v", tt.x, s.Value, tt.want)
		}
	}
}

const fbW, fbH = 160, 90

func newTestState(t testing.TB) (*State, *render.Camera) {
	t.Helper()
	st := New(Default(), models.Cube(1))
	st.LayoutSliders(fbW)
	cam := render.NewCamera()
	cam.SetAspectRatio(float64(fbW) / fbH)
	st.ApplyCamera(cam)
	return st, cam
}

// hideSliders moves the sliders off screen so picks reach the scene.
func hideSliders(st *State) {
	for _, s := range st.Sliders {
		s.Y += 1000
	}
}

func pixel(t *testing.T, cam *render.Camera, p math3d.Vec3) (int, int) {
	t.Helper()
	x, y, _, ok := cam.WorldToScreen(p, fbW, fbH)
	if !ok {
		t.Fatalf("%v is off screen", p)
	}
	return int(x), int(y)
}

func TestPickPriority(t *testing.T) {
	st, cam := newTestState(t)
	s := st.Sliders[0]
	if got := st.Pick(s.X+s.W/2, s.Y, cam, fbW, fbH); got.Kind != DragSlider || got.Slider != s.ID {
		t.Errorf("slider pick = %+v", got)
	}

	hideSliders(st)
	lx, ly := pixel(t, cam, st.Light)
	if got := st.Pick(lx, ly, cam, fbW, fbH); got.Kind != DragLight {
		t.Errorf("light pick = %+v", got)
	}
	ax, ay := pixel(t, cam, st.Anchor)
	if got := st.Pick(ax, ay, cam, fbW, fbH); got.Kind != DragObject {
		t.Errorf("anchor pick = %+v", got)
	}
	if got := st.Pick(fbW-2, fbH-2, cam, fbW, fbH); got.Kind != DragCamera {
		t.Errorf("background pick = %+v", got)
	}
	st.Release()
	if st.Drag.Kind != DragNone {
		t.Error("Release kept the grab")
	}
}

func TestDragLightInViewPlane(t *testing.T) {
	st, cam := newTestState(t)
	hideSliders(st)
	before := st.Light
	lx, ly := pixel(t, cam, before)
	st.Pick(lx, ly, cam, fbW, fbH)
	st.DragTo(lx+6, ly, cam, fbW, fbH)

	moved := st.Light.Sub(before)
	if moved.Len() < 0.05 {
		t.Fatalf("light moved %v", moved)
	}
	if d := moved.Dot(cam.Forward()); math.Abs(d) > 1e-6 {
		t.Errorf("light left the view plane by %v", d)
	}
	if moved.Dot(cam.Right()) <= 0 {
		t.Errorf("light moved %v, want toward screen right", moved)
	}
	if got := st.Sliders[SliderLightX].Value; math.Abs(got-st.Light.X) > 1e-12 {
		t.Errorf("x slider %v does not follow light %v", got, st.Light.X)
	}
}

func TestDragSlider(t *testing.T) {
	st, cam := newTestState(t)
	s := st.Sliders[SliderDim]
	st.Pick(s.X, s.Y, cam, fbW, fbH)
	st.DragTo(s.X+s.W, s.Y, cam, fbW, fbH)
	if st.Dim != s.Max {
		t.Errorf("dim = %v, want %v", st.Dim, s.Max)
	}
	size := st.Sliders[SliderLightSize]
	st.Pick(size.X+size.W/2, size.Y, cam, fbW, fbH)
	if math.Abs(st.Shadow.Radius-0.5) > 0.02 {
		t.Errorf("light radius = %v, want about .5", st.Shadow.Radius)
	}
}

func TestDragCamera(t *testing.T) {
	st, cam := newTestState(t)
	hideSliders(st)
	st.Pick(fbW-20, fbH-20, cam, fbW, fbH)
	yaw, pitch := st.Yaw, st.Pitch
	st.DragTo(fbW-30, fbH-15, cam, fbW, fbH)
	if st.Yaw <= yaw || st.Pitch <= pitch {
		t.Errorf("orbit did not follow drag: yaw %v→%v pitch %v→%v", yaw, st.Yaw, pitch, st.Pitch)
	}
}

func TestZoomClamp(t *testing.T) {
	st, _ := newTestState(t)
	st.Zoom(1000)
	if st.Distance != minDistance {
		t.Errorf("distance = %v, want %v", st.Distance, minDistance)
	}
	st.Zoom(-1000)
	if st.Distance != maxDistance {
		t.Errorf("distance = %v, want %v", st.Distance, maxDistance)
	}
}

func TestStep(t *testing.T) {
	st, _ := newTestState(t)
	st.Step(1.0 / 60)
	if st.Spin != math3d.Identity() {
		t.Error("object spun with rotation 0")
	}
	if st.Wavy.Shift == 0 {
		t.Error("wave did not advance")
	}
	st.Faster()
	st.Step(1.0 / 60)
	if st.Spin == math3d.Identity() {
		t.Error("object did not spin")
	}
	st.Reset()
	if st.Spin != math3d.Identity() || st.Rotation != 0 || st.Light != DefaultLight {
		t.Error("Reset left state behind")
	}
}

func TestSamplesAndHard(t *testing.T) {
	st, _ := newTestState(t)
	st.FewerSamples()
	if st.Shadow.Samples != 1 {
		t.Errorf("samples = %d, want floor of 1", st.Shadow.Samples)
	}
	st.MoreSamples()
	st.MoreSamples()
	st.ToggleHard()
	if st.Shadow.Samples != 0 {
		t.Errorf("hard mode samples = %d", st.Shadow.Samples)
	}
	st.ToggleHard()
	if st.Shadow.Samples != 3 {
		t.Errorf("soft samples = %d, want 3", st.Shadow.Samples)
	}
}

func TestTextureCycling(t *testing.T) {
	st, _ := newTestState(t)
	if st.Texture() != nil {
		t.Error("texture without textures")
	}
	st.Textures = append(st.Textures, nil, render.NewCheckerTexture(4, 4, 1, render.ColorWhite, render.ColorBlack))
	st.NextTexture()
	st.NextTexture()
	if st.TextureIndex != 1 || st.Texture() == nil {
		t.Errorf("index = %d", st.TextureIndex)
	}
	st.PrevTexture()
	st.PrevTexture()
	if st.TextureIndex != 0 {
		t.Errorf("index = %d", st.TextureIndex)
	}
}

func TestDraws(t *testing.T) {
	st, cam := newTestState(t)
	fb := render.NewFramebuffer(fbW, fbH)
	cpu := NewCPU(render.NewRasterizer(cam, fb), fb, ModeKernel)
	if err := st.BindOccluder(cpu); err != nil {
		t.Fatal(err)
	}
	draws := st.Draws(cam)
	if len(draws) != 3 {
		t.Fatalf("got %d draws", len(draws))
	}
	obj := draws[0]
	if obj.Uniforms.ObjTriangles != 12 {
		t.Errorf("triangle count = %d", obj.Uniforms.ObjTriangles)
	}
	if got, want := obj.Uniforms.Light, cam.ViewMatrix().MulVec3(st.Light); got.Distance(want) > 1e-12 {
		t.Errorf("light = %v, want view-space %v", got, want)
	}
	if obj.Uniforms.UseTexture || obj.Texture != nil {
		t.Error("untextured object samples a texture")
	}
	for _, d := range draws {
		if err := d.Uniforms.Validate(); err != nil {
			t.Errorf("%s: %v", d.Name, err)
		}
	}
}

func renderFrame(t testing.TB, st *State, cam *render.Camera, mode Mode) *render.Framebuffer {
	t.Helper()
	fb := render.NewFramebuffer(fbW, fbH)
	cpu := NewCPU(render.NewRasterizer(cam, fb), fb, mode)
	if err := st.Render(context.Background(), cpu, cam); err != nil {
		t.Fatalf("Render: %v", err)
	}
	return fb
}

func TestRenderKernelMatchesReference(t *testing.T) {
	st, cam := newTestState(t)
	st.Shadow.Samples = 4
	kern := renderFrame(t, st, cam, ModeKernel)
	ref := renderFrame(t, st, cam, ModeReference)

	differ, lit := 0, 0
	for i, a := range kern.Pixels {
		b := ref.Pixels[i]
		if a != st.Background() {
			lit++
		}
		d := max(absDiff(a.R, b.R), absDiff(a.G, b.G), absDiff(a.B, b.B))
		if d > 2 {
			differ++
		}
	}
	if lit < len(kern.Pixels)/4 {
		t.Errorf("only %d pixels drawn", lit)
	}
	if differ > len(kern.Pixels)/50 {
		t.Errorf("%d of %d pixels differ", differ, len(kern.Pixels))
	}
}

func TestRenderSharedStateAcrossPipelines(t *testing.T) {
	for _, mode := range []Mode{ModeKernel, ModeReference} {
		t.Run(mode.String(), func(t *testing.T) {
			st, cam := newTestState(t)
			first := renderFrame(t, st, cam, mode)
			second := renderFrame(t, st, cam, mode)
			if st.Uploads() != 2 {
				t.Errorf("uploads = %d, want one per pipeline", st.Uploads())
			}

			for i, a := range first.Pixels {
				if b := second.Pixels[i]; a != b {
					t.Fatalf("pixel %d: first pipeline %v, second %v", i, a, b)
				}
			}

			// A pipeline whose slots were never filled draws the scene unshadowed.
			bare := render.NewFramebuffer(fbW, fbH)
			cpu := NewCPU(render.NewRasterizer(cam, bare), bare, mode)
			cpu.Begin(st.Background())
			for _, d := range st.Draws(cam) {
				if err := cpu.Draw(context.Background(), &d); err != nil {
					t.Fatalf("draw %s: %v", d.Name, err)
				}
			}
			shadowed := 0
			for i, a := range second.Pixels {
				if a != bare.Pixels[i] {
					shadowed++
				}
			}
			if shadowed == 0 {
				t.Error("second pipeline renders no shadow")
			}
		})
	}
}

func absDiff(a, b uint8) int {
	if a > b {
		return int(a - b)
	}
	return int(b - a)
}

func TestOccluderUploadsOnlyOnChange(t *testing.T) {
	st, cam := newTestState(t)
	fb := render.NewFramebuffer(fbW, fbH)
	cpu := NewCPU(render.NewRasterizer(cam, fb), fb, ModeKernel)
	ctx := context.Background()
	for range 2 {
		if err := st.Render(ctx, cpu, cam); err != nil {
			t.Fatal(err)
		}
	}
	if st.Uploads() != 1 {
		t.Errorf("static occluder uploaded %d times", st.Uploads())
	}
	st.ShowWavy = true
	for range 2 {
		st.Step(1.0 / 60)
		if err := st.Render(ctx, cpu, cam); err != nil {
			t.Fatal(err)
		}
	}
	if st.Uploads() != 3 {
		t.Errorf("wavy occluder uploads = %d, want 3", st.Uploads())
	}
}

func TestShadowGrids(t *testing.T) {
	st, _ := newTestState(t)
	floor, wall := st.ShadowGrids()
	if len(floor) != GridRes*GridRes || len(wall) != GridRes*GridRes {
		t.Fatalf("grid sizes %d, %d", len(floor), len(wall))
	}
	shadowed := 0
	for _, p := range floor {
		if math.Abs(p.Pos.Y+0.2) > 1e-9 {
			t.Fatalf("floor point %v off the floor", p.Pos)
		}
		if p.Result.Fraction < 1 {
			shadowed++
		}
	}
	if shadowed == 0 {
		t.Error("cube casts no shadow on the floor grid")
	}
}

func BenchmarkRenderKernel(b *testing.B) {
	st, cam := newTestState(b)
	fb := render.NewFramebuffer(fbW, fbH)
	cpu := NewCPU(render.NewRasterizer(cam, fb), fb, ModeKernel)
	ctx := context.Background()
	for b.Loop() {
		_ = st.Render(ctx, cpu, cam)
	}
}
