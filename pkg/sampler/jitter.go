package sampler

import (
	"github.com/chewxy/math32"
	"github.com/go-gl/mathgl/mgl32"
)

// Seed builds the sampler seed for sample index of the fragment at window
// coordinate coord: ((index+1)·coord, frame). A fixed frame keeps every
// pixel's jitter stable; advancing it re-rolls the jitter each frame.
func Seed(coord mgl32.Vec2, index int, frame uint32) mgl32.Vec3 {
	k := float32(index + 1)
	return mgl32.Vec3{coord[0] * k, coord[1] * k, float32(frame)}
}

// Jitter offsets light by radius along the direction of r.
//
// By default r is used as drawn, so offsets fall in the positive octant.
// With symmetric set, r is remapped to [-1, 1) first. A zero direction
// leaves the light where it is.
func Jitter(light mgl32.Vec3, radius float32, r mgl32.Vec3, symmetric bool) mgl32.Vec3 {
	if symmetric {
		r = r.Mul(2).Sub(mgl32.Vec3{1, 1, 1})
	}
	l := r.Len()
	if l == 0 || math32.IsNaN(l) {
		return light
	}
	return light.Add(r.Mul(radius / l))
}

// Lights returns n jittered light positions for the fragment at coord.
func Lights(s Sampler, light mgl32.Vec3, radius float32, coord mgl32.Vec2, n int, frame uint32, symmetric bool) []mgl32.Vec3 {
	out := make([]mgl32.Vec3, n)
	for i := range n {
		out[i] = Jitter(light, radius, s.Rand3(Seed(coord, i, frame)), symmetric)
	}
	return out
}
