package render

import (
	"math"
	"testing"

	"github.com/taigrr/penumbra/pkg/math3d"
)

func TestNormalizePlane(t *testing.T) {
	pl := normalizePlane(math3d.V3(0, 3, 4), 10)
	if math.Abs(pl.Normal.Len()-1) > 1e-9 {
		t.Errorf("normal length = %v, want 1", pl.Normal.Len())
	}
	if math.Abs(pl.Normal.Y-0.6) > 1e-9 || math.Abs(pl.Normal.Z-0.8) > 1e-9 {
		t.Errorf("normal = %v, want (0, 0.6, 0.8)", pl.Normal)
	}
	if math.Abs(pl.W-2) > 1e-9 {
		t.Errorf("W = %v, want 2", pl.W)
	}
	if zero := normalizePlane(math3d.Vec3{}, 3); zero.W != 3 {
		t.Errorf("zero normal changed W to %v", zero.W)
	}
}

func TestAABBTransform(t *testing.T) {
	box := AABB{Min: math3d.V3(-1, -1, -1), Max: math3d.V3(1, 1, 1)}
	tests := []struct {
		name     string
		m        math3d.Mat4
		min, max math3d.Vec3
	}{
		{"translation", math3d.Translate(math3d.V3(10, 20, 30)), math3d.V3(9, 19, 29), math3d.V3(11, 21, 31)},
		{"scale", math3d.ScaleUniform(2), math3d.V3(-2, -2, -2), math3d.V3(2, 2, 2)},
		{"rotation", math3d.RotateY(math.Pi / 4), math3d.V3(-math.Sqrt2, -1, -math.Sqrt2), math3d.V3(math.Sqrt2, 1, math.Sqrt2)},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got := box.Transform(tc.m)
			if got.Min.Distance(tc.min) > 1e-9 || got.Max.Distance(tc.max) > 1e-9 {
				t.Errorf("Transform = %v..%v, want %v..%v", got.Min, got.Max, tc.min, tc.max)
			}
		})
	}
}

func TestAABBContainsPoint(t *testing.T) {
	box := AABB{Min: math3d.V3(0, 0, 0), Max: math3d.V3(10, 10, 10)}
	tests := []struct {
		name  string
		point math3d.Vec3
		want  bool
	}{
		{"center", math3d.V3(5, 5, 5), true},
		{"corner", math3d.V3(10, 10, 10), true},
		{"face", math3d.V3(5, 0, 5), true},
		{"outside", math3d.V3(11, 5, 5), false},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if got := box.ContainsPoint(tc.point); got != tc.want {
				t.Errorf("ContainsPoint(%v) = %v, want %v", tc.point, got, tc.want)
			}
		})
	}
}

func TestFrustumContainsPoint(t *testing.T) {
	f := NewFrustumFromMatrix(math3d.Perspective(math.Pi/3, 16.0/9.0, 0.1, 100))
	for i, pl := range f.Planes {
		if math.Abs(pl.Normal.Len()-1) > 1e-6 {
			t.Errorf("plane %d not normalized", i)
		}
	}

	tests := []struct {
		name  string
		point math3d.Vec3
		want  bool
	}{
		{"near", math3d.V3(0, 0, -1), true},
		{"far", math3d.V3(0, 0, -99), true},
		{"behind", math3d.V3(0, 0, 1), false},
		{"past far", math3d.V3(0, 0, -200), false},
		{"before near", math3d.V3(0, 0, -0.01), false},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if got := f.ContainsPoint(tc.point); got != tc.want {
				t.Errorf("ContainsPoint(%v) = %v, want %v", tc.point, got, tc.want)
			}
		})
	}
}

func TestFrustumIntersectAABB(t *testing.T) {
	f := NewFrustumFromMatrix(math3d.Perspective(math.Pi/3, 16.0/9.0, 1, 100))
	tests := []struct {
		name string
		box  AABB
		want bool
	}{
		{"inside", AABB{math3d.V3(-1, -1, -10), math3d.V3(1, 1, -5)}, true},
		{"crosses near", AABB{math3d.V3(-1, -1, -2), math3d.V3(1, 1, 2)}, true},
		{"behind", AABB{math3d.V3(-1, -1, 5), math3d.V3(1, 1, 10)}, false},
		{"past far", AABB{math3d.V3(-1, -1, -150), math3d.V3(1, 1, -120)}, false},
		{"right", AABB{math3d.V3(100, -1, -10), math3d.V3(110, 1, -5)}, false},
		{"encloses", AABB{math3d.V3(-200, -200, -200), math3d.V3(200, 200, 200)}, true},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if got := f.IntersectAABB(tc.box); got != tc.want {
				t.Errorf("IntersectAABB = %v, want %v", got, tc.want)
			}
		})
	}
}

func TestFrustumIntersectsSphere(t *testing.T) {
	f := NewFrustumFromMatrix(math3d.Perspective(math.Pi/3, 16.0/9.0, 1, 100))
	if !f.IntersectsSphere(math3d.V3(0, 0, -0.5), 1) {
		t.Error("sphere straddling the near plane rejected")
	}
	if f.IntersectsSphere(math3d.V3(0, 0, 5), 1) {
		t.Error("sphere behind the camera accepted")
	}
}

func TestOrbitCameraFrustum(t *testing.T) {
	cam := NewCamera()
	cam.SetAspectRatio(1)
	target := math3d.V3(0, 0.8, 0)
	cam.Orbit(target, math.Pi/2, 0.2, 10)

	if d := cam.Position.Distance(target); math.Abs(d-10) > 1e-9 {
		t.Errorf("eye distance = %v, want 10", d)
	}
	if cam.Position.X < 9 {
		t.Errorf("yaw 90° should put the eye on +x, got %v", cam.Position)
	}
	if fwd := cam.Forward(); fwd.Dot(target.Sub(cam.Position).Normalize()) < 1-1e-9 {
		t.Errorf("camera not looking at target: forward %v", fwd)
	}
	f := NewFrustumFromMatrix(cam.ViewProjectionMatrix())
	if !f.ContainsPoint(target) {
		t.Error("target outside frustum")
	}
	if f.ContainsPoint(cam.Position.Add(cam.Position.Sub(target))) {
		t.Error("point behind the eye inside frustum")
	}
}

func TestScreenRayThroughCenter(t *testing.T) {
	cam := NewCamera()
	cam.SetAspectRatio(2)
	target := math3d.V3(1, 2, 3)
	cam.Orbit(target, 0.3, 0.4, 7)

	near, far := cam.ScreenRay(50, 25, 100, 50)
	dir := far.Sub(near).Normalize()
	if dir.Dot(cam.Forward()) < 1-1e-6 {
		t.Errorf("center ray %v not along forward %v", dir, cam.Forward())
	}
	x, y, _, ok := cam.WorldToScreen(target, 100, 50)
	if !ok || math.Abs(x-50) > 1e-6 || math.Abs(y-25) > 1e-6 {
		t.Errorf("target projects to (%v, %v, %v), want center", x, y, ok)
	}
}

func BenchmarkFrustumIntersectAABB(b *testing.B) {
	f := NewFrustumFromMatrix(math3d.Perspective(math.Pi/3, 16.0/9.0, 0.1, 100))
	box := AABB{Min: math3d.V3(-1, -1, -10), Max: math3d.V3(1, 1, -5)}
	for b.Loop() {
		f.IntersectAABB(box)
	}
}

func BenchmarkAABBTransform(b *testing.B) {
	box := AABB{Min: math3d.V3(-1, -1, -1), Max: math3d.V3(1, 1, 1)}
	m := math3d.RotateY(0.5).Mul(math3d.Translate(math3d.V3(1, 2, 3)))
	for b.Loop() {
		box.Transform(m)
	}
}
