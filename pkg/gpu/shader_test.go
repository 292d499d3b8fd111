package gpu

import (
	"strings"
	"testing"

	"github.com/taigrr/penumbra/pkg/math3d"
	"github.com/taigrr/penumbra/pkg/models"
	"github.com/taigrr/penumbra/pkg/render"
)

func TestFragmentSourceBindings(t *testing.T) {
	src, err := DefaultFragmentSource()
	if err != nil {
		t.Fatal(err)
	}
	for _, want := range []string{
		"layout(std430, binding = 20) readonly buffer ObjPoints",
		"layout(std430, binding = 23) readonly buffer ObjIndices",
		"#define MAX_LIGHTS 20",
		"const float SPECULAR_EXPONENT = 50.0;",
		"const vec3 FACET_COLOR = vec3(0.1, 0.5, 0.8);",
	} {
		if !strings.Contains(src, want) {
			t.Errorf("fragment source missing %q", want)
		}
	}
	if strings.Contains(src, "{{") || strings.Contains(src, "<no value>") {
		t.Error("fragment source has unexpanded template fields")
	}
}

func TestFragmentSourceCustomSlots(t *testing.T) {
	src, err := FragmentSource(3, 4)
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(src, "binding = 3)") || !strings.Contains(src, "binding = 4)") {
		t.Error("custom slots not applied")
	}
}

func TestInterleave(t *testing.T) {
	m := models.Square()
	verts, elems := interleave(m)
	if len(verts) != vertexStride*m.VertexCount() {
		t.Fatalf("got %d floats, want %d", len(verts), vertexStride*m.VertexCount())
	}
	if len(elems) != 3*m.TriangleCount() {
		t.Fatalf("got %d elements, want %d", len(elems), 3*m.TriangleCount())
	}
	v := m.Vertices[1]
	got := verts[vertexStride : 2*vertexStride]
	want := []float32{
		float32(v.Position.X), float32(v.Position.Y), float32(v.Position.Z),
		float32(v.Normal.X), float32(v.Normal.Y), float32(v.Normal.Z),
		float32(v.UV.X), float32(v.UV.Y),
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("vertex 1 float %d = %v, want %v", i, got[i], want[i])
		}
	}
}

func TestMat32ColumnMajor(t *testing.T) {
	m := mat32(math3d.Translate(math3d.V3(1, 2, 3)))
	if m[12] != 1 || m[13] != 2 || m[14] != 3 || m[15] != 1 {
		t.Errorf("translation column = %v", m[12:])
	}
}

func TestBakeKeepsTextureSize(t *testing.T) {
	tex := render.NewCheckerTexture(4, 2, 1, render.ColorWhite, render.ColorBlack)
	w, h, pix := bake(tex)
	if w != 4 || h != 2 || len(pix) != 4*4*2 {
		t.Fatalf("bake = %dx%d with %d bytes", w, h, len(pix))
	}
	for i := 3; i < len(pix); i += 4 {
		if pix[i] != 255 {
			t.Fatalf("alpha at %d = %d", i, pix[i])
		}
	}
}

func TestReadbackFlipsRows(t *testing.T) {
	fb := render.NewFramebuffer(2, 2)
	// Bottom-up: first row is the bottom of the image.
	pix := []uint8{
		10, 0, 0, 255, 20, 0, 0, 255,
		30, 0, 0, 255, 40, 0, 0, 255,
	}
	readback(fb, pix)
	if got := fb.GetPixel(0, 0).R; got != 30 {
		t.Errorf("top-left R = %d, want 30", got)
	}
	if got := fb.GetPixel(1, 1).R; got != 20 {
		t.Errorf("bottom-right R = %d, want 20", got)
	}
}
