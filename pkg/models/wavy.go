package models

import (
	"math"

	"github.com/taigrr/penumbra/pkg/math3d"
)

// WavyBox is the box [-1,1]³ cut into Res slices along x, with the top
// and bottom edges of each slice displaced in y by a travelling sine wave.
// The near edges (z = -1) follow Shift and the far edges Shift1.
type WavyBox struct {
	Res    int
	Freq   float64
	Ampl   float64
	Shift  float64
	Shift1 float64
}

// Default wave parameters.
const (
	DefaultWavyRes  = 15
	DefaultWavyFreq = 2
	DefaultWavyAmpl = 0.3

	shiftStep  = 0.05
	shift1Step = 0.03
)

// NewWavyBox returns a box with the default wave.
func NewWavyBox() *WavyBox {
	return &WavyBox{
		Res:    DefaultWavyRes,
		Freq:   DefaultWavyFreq,
		Ampl:   DefaultWavyAmpl,
		Shift1: 0.75,
	}
}

// Per-slice point order.
const (
	topNear = iota
	topFar
	bottomFar
	bottomNear
	slicePoints
)

func (w *WavyBox) res() int { return max(2, w.Res) }

// Points returns 4·Res points, four per slice from left to right.
func (w *WavyBox) Points() []math3d.Vec3 {
	res := w.res()
	pts := make([]math3d.Vec3, 0, slicePoints*res)
	for i := range res {
		s := float64(i) / float64(res-1)
		x := -1 + 2*s
		angle := s * w.Freq * 2 * math.Pi
		near := w.Ampl * math.Sin(angle+w.Shift)
		far := w.Ampl * math.Sin(angle+w.Shift1)
		pts = append(pts,
			math3d.V3(x, 1+near, -1),
			math3d.V3(x, 1+far, 1),
			math3d.V3(x, -1+far, 1),
			math3d.V3(x, -1+near, -1),
		)
	}
	return pts
}

// Quads returns the counter-clockwise outward quads: top, bottom, near
// and far strips between neighbouring slices, then the two end caps.
func (w *WavyBox) Quads() [][4]int {
	res := w.res()
	quads := make([][4]int, 0, 4*(res-1)+2)
	for i := 0; i < slicePoints*(res-1); i += slicePoints {
		r := i + slicePoints
		quads = append(quads,
			[4]int{i + topNear, i + topFar, r + topFar, r + topNear},
			[4]int{i + bottomNear, r + bottomNear, r + bottomFar, i + bottomFar},
			[4]int{i + topNear, r + topNear, r + bottomNear, i + bottomNear},
			[4]int{i + topFar, i + bottomFar, r + bottomFar, r + topFar},
		)
	}
	last := slicePoints * (res - 1)
	quads = append(quads,
		[4]int{topNear, bottomNear, bottomFar, topFar},
		[4]int{last + topNear, last + topFar, last + bottomFar, last + bottomNear},
	)
	return quads
}

// Mesh triangulates the current surface with smooth normals.
func (w *WavyBox) Mesh() *Mesh {
	m := NewMesh("wavy")
	for _, p := range w.Points() {
		m.Vertices = append(m.Vertices, MeshVertex{Position: p})
	}
	for _, q := range w.Quads() {
		m.addQuad(q[0], q[1], q[2], q[3], -1)
	}
	m.CalculateSmoothNormals()
	m.CalculateBounds()
	return m
}

// Advance moves the wave one frame along.
func (w *WavyBox) Advance() {
	w.Shift += shiftStep
	w.Shift1 += shift1Step
}
