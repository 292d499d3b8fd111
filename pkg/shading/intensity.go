// Package shading is the reference fragment pipeline: a one-sided
// diffuse plus specular model combined with the shadow evaluator, the
// texture, tint and opacity.
package shading

import (
	"math"

	"github.com/taigrr/penumbra/pkg/math3d"
)

// SpecularExponent is the fixed shininess of the specular term.
const SpecularExponent = 50

// MaxLights is the capacity of the light array uniform.
const MaxLights = 20

// Intensity returns the lit intensity of point p with unit normal n seen
// along unit eye direction e, for a point light at l. The result is in
// [0, 1].
func Intensity(n, e, p, l math3d.Vec3) float64 {
	dir := l.Sub(p).Normalize()
	d := max(0, n.Dot(dir))
	s := max(0, dir.Reflect(n).Dot(e))
	return clamp01(d + math.Pow(s, SpecularExponent))
}

// TotalIntensity sums Intensity over lights and clamps the total. With no
// lights the single canonical light is used.
func TotalIntensity(n, e, p, light math3d.Vec3, lights []math3d.Vec3) float64 {
	if len(lights) == 0 {
		return Intensity(n, e, p, light)
	}
	var sum float64
	for _, l := range lights {
		sum += Intensity(n, e, p, l)
	}
	return clamp01(sum)
}

func clamp01(x float64) float64 {
	return min(1, max(0, x))
}
