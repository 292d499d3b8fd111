// Package occluder describes the geometry that casts shadows: a buffer of
// homogeneous points and a buffer of packed triangle indices, and the
// contract for handing both to a shading device.
package occluder

import (
	"errors"
	"fmt"

	"github.com/taigrr/penumbra/pkg/math3d"
)

// Binding slots for the two storage buffers. The CPU kernel and the GLSL
// program both read these constants, so host and device always agree.
const (
	SlotPoints    = 20
	SlotTriangles = 23
)

var (
	ErrEmpty      = errors.New("occluder has no triangles")
	ErrIndexCount = errors.New("index count is not a multiple of 3")
	ErrIndexRange = errors.New("triangle index out of range")
)

// Source is anything that can provide triangle geometry, such as a loaded
// or procedural mesh.
type Source interface {
	VertexCount() int
	TriangleCount() int
	GetVertex(i int) (pos, normal math3d.Vec3, uv math3d.Vec2)
	GetFace(i int) [3]int
}

// Buffers is the occluder geometry buffer pair in object space.
type Buffers struct {
	Points  []math3d.Vec4
	Indices []int32
}

// FromSource copies the positions and triangle indices of src.
func FromSource(src Source) *Buffers {
	b := &Buffers{
		Points:  make([]math3d.Vec4, src.VertexCount()),
		Indices: make([]int32, 0, 3*src.TriangleCount()),
	}
	for i := range b.Points {
		pos, _, _ := src.GetVertex(i)
		b.Points[i] = math3d.Point(pos)
	}
	for i := range src.TriangleCount() {
		f := src.GetFace(i)
		b.Indices = append(b.Indices, int32(f[0]), int32(f[1]), int32(f[2]))
	}
	return b
}

// TriangleCount returns len(Indices)/3, the value the triangle-count uniform
// must carry.
func (b *Buffers) TriangleCount() int {
	return len(b.Indices) / 3
}

// Triangle returns the object-space corners of triangle i. ok is false
// when i is past the index buffer or a corner index is outside Points.
func (b *Buffers) Triangle(i int) (p1, p2, p3 math3d.Vec3, ok bool) {
	if i < 0 || 3*i+2 >= len(b.Indices) {
		return p1, p2, p3, false
	}
	idx := b.Indices[3*i : 3*i+3]
	n := int32(len(b.Points))
	for _, e := range idx {
		if e < 0 || e >= n {
			return p1, p2, p3, false
		}
	}
	return b.Points[idx[0]].Vec3(), b.Points[idx[1]].Vec3(), b.Points[idx[2]].Vec3(), true
}

// Validate checks the invariants the device relies on but never checks
// itself. Every violation found is reported.
func (b *Buffers) Validate() error {
	var errs []error
	if len(b.Indices) == 0 {
		errs = append(errs, ErrEmpty)
	}
	if len(b.Indices)%3 != 0 {
		errs = append(errs, fmt.Errorf("%w: %d indices", ErrIndexCount, len(b.Indices)))
	}
	for i, idx := range b.Indices {
		if idx < 0 || int(idx) >= len(b.Points) {
			errs = append(errs, fmt.Errorf("%w: index %d at position %d, %d points", ErrIndexRange, idx, i, len(b.Points)))
		}
	}
	return errors.Join(errs...)
}

// Pack flattens the buffers into the device layout: four floats per point
// and three int32 per triangle.
func (b *Buffers) Pack() (points []float32, indices []int32) {
	points = make([]float32, 0, 4*len(b.Points))
	for _, p := range b.Points {
		points = append(points, float32(p.X), float32(p.Y), float32(p.Z), float32(p.W))
	}
	indices = make([]int32, len(b.Indices))
	copy(indices, b.Indices)
	return points, indices
}
