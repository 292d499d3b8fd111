// Package sampler generates the deterministic pseudo-random triples used to
// jitter light positions for soft shadows.
//
// All arithmetic is float32 so the host reference and the device kernel,
// which both call into this package, draw identical jitter for a seed.
package sampler

import (
	"fmt"
	"math"

	"github.com/chewxy/math32"
	"github.com/go-gl/mathgl/mgl32"
)

// Strategy selects a pseudo-random generator.
type Strategy int

const (
	// Trig hashes sin(dot(seed.xy, c)) per channel. Cheap, low quality.
	Trig Strategy = iota
	// Hash runs an integer avalanche over the IEEE-754 bits of the seed.
	Hash
)

func (s Strategy) String() string {
	switch s {
	case Trig:
		return "trig"
	case Hash:
		return "hash"
	}
	return fmt.Sprintf("Strategy(%d)", int(s))
}

// MarshalText implements encoding.TextMarshaler.
func (s Strategy) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (s *Strategy) UnmarshalText(b []byte) error {
	switch string(b) {
	case "trig", "":
		*s = Trig
	case "hash":
		*s = Hash
	default:
		return fmt.Errorf("unknown sampler strategy %q", b)
	}
	return nil
}

// Sampler maps a seed to three values in [0, 1). The same seed always gives
// the same triple.
type Sampler interface {
	Rand3(seed mgl32.Vec3) mgl32.Vec3
}

// New returns the sampler for s. Unknown strategies fall back to Trig.
func New(s Strategy) Sampler {
	if s == Hash {
		return HashSampler{}
	}
	return TrigSampler{}
}

// TrigSampler implements the trigonometric hash. Only seed.xy is used.
type TrigSampler struct{}

var trigChannels = [3]struct {
	c mgl32.Vec2
	k float32
}{
	{mgl32.Vec2{12.9898, 78.233}, 43758.5453},
	{mgl32.Vec2{912.9898, 978.233}, 943758.5453},
	{mgl32.Vec2{6912.0002, 6978.233}, 6943758.3545},
}

// Rand3 implements Sampler.
func (TrigSampler) Rand3(seed mgl32.Vec3) mgl32.Vec3 {
	xy := seed.Vec2()
	var out mgl32.Vec3
	for i, ch := range trigChannels {
		out[i] = Fract(math32.Sin(xy.Dot(ch.c)) * ch.k)
	}
	return out
}

// HashSampler implements the bit-mixing hash over all three seed components.
type HashSampler struct{}

// Rand3 implements Sampler. Channel 0 is the plain hash of the seed; the
// other channels salt the z word with the hashed channel number.
func (HashSampler) Rand3(seed mgl32.Vec3) mgl32.Vec3 {
	x := math.Float32bits(seed[0])
	y := math.Float32bits(seed[1])
	z := math.Float32bits(seed[2])
	var out mgl32.Vec3
	for i := range out {
		out[i] = FloatConstruct(Hash3(x, y, z^HashUint(uint32(i))))
	}
	return out
}

// HashUint is Bob Jenkins' one-at-a-time avalanche on a single word.
func HashUint(x uint32) uint32 {
	x += x << 10
	x ^= x >> 6
	x += x << 3
	x ^= x >> 11
	x += x << 15
	return x
}

// Hash3 combines three words as hash(x ^ hash(y) ^ hash(z)).
func Hash3(x, y, z uint32) uint32 {
	return HashUint(x ^ HashUint(y) ^ HashUint(z))
}

const (
	ieeeMantissa = 0x007FFFFF
	ieeeOne      = 0x3F800000
)

// FloatConstruct keeps the low 23 bits of m as the mantissa of a float in
// [1, 2) and subtracts one, giving a value in [0, 1).
func FloatConstruct(m uint32) float32 {
	m &= ieeeMantissa
	m |= ieeeOne
	return math.Float32frombits(m) - 1
}

// Fract returns x - floor(x).
func Fract(x float32) float32 {
	return x - math32.Floor(x)
}
