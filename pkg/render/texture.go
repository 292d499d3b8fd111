package render

import (
	"fmt"
	"image"
	_ "image/jpeg" // register decoder
	_ "image/png"  // register decoder
	"math"
	"os"

	"github.com/taigrr/penumbra/pkg/math3d"
)

// WrapMode determines how coordinates outside [0,1] are handled.
type WrapMode int

const (
	WrapRepeat WrapMode = iota
	WrapClamp
)

// FilterMode selects nearest or bilinear sampling.
type FilterMode int

const (
	FilterNearest FilterMode = iota
	FilterBilinear
)

// Texture is a 2D image sampled by UV with v pointing up.
type Texture struct {
	Width      int
	Height     int
	Pixels     []Color
	WrapU      WrapMode
	WrapV      WrapMode
	FilterMode FilterMode
}

// NewTexture creates an empty repeating texture.
func NewTexture(width, height int) *Texture {
	return &Texture{
		Width:  width,
		Height: height,
		Pixels: make([]Color, width*height),
	}
}

// LoadTexture decodes a PNG or JPEG file.
func LoadTexture(path string) (*Texture, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open texture: %w", err)
	}
	defer f.Close()

	img, _, err := image.Decode(f)
	if err != nil {
		return nil, fmt.Errorf("decode texture %s: %w", path, err)
	}
	return TextureFromImage(img), nil
}

// TextureFromImage copies img into a texture.
func TextureFromImage(img image.Image) *Texture {
	b := img.Bounds()
	tex := NewTexture(b.Dx(), b.Dy())
	tex.FilterMode = FilterBilinear
	for y := range tex.Height {
		for x := range tex.Width {
			r, g, bl, a := img.At(b.Min.X+x, b.Min.Y+y).RGBA()
			tex.SetPixel(x, y, Color{R: uint8(r >> 8), G: uint8(g >> 8), B: uint8(bl >> 8), A: uint8(a >> 8)})
		}
	}
	return tex
}

// NewCheckerTexture creates a checkerboard of checkSize pixel squares.
func NewCheckerTexture(width, height, checkSize int, c1, c2 Color) *Texture {
	tex := NewTexture(width, height)
	for y := range height {
		for x := range width {
			if (x/checkSize+y/checkSize)%2 == 0 {
				tex.SetPixel(x, y, c1)
			} else {
				tex.SetPixel(x, y, c2)
			}
		}
	}
	return tex
}

// NewStripeTexture creates diagonal stripes of the given pixel width.
func NewStripeTexture(size, stripe int, c1, c2 Color) *Texture {
	tex := NewTexture(size, size)
	tex.FilterMode = FilterBilinear
	for y := range size {
		for x := range size {
			if ((x+y)/stripe)%2 == 0 {
				tex.SetPixel(x, y, c1)
			} else {
				tex.SetPixel(x, y, c2)
			}
		}
	}
	return tex
}

// SetPixel sets (x, y), ignoring out-of-range writes.
func (t *Texture) SetPixel(x, y int, c Color) {
	if x < 0 || x >= t.Width || y < 0 || y >= t.Height {
		return
	}
	t.Pixels[y*t.Width+x] = c
}

// GetPixel returns (x, y), or transparent black out of range.
func (t *Texture) GetPixel(x, y int) Color {
	if x < 0 || x >= t.Width || y < 0 || y >= t.Height {
		return Color{}
	}
	return t.Pixels[y*t.Width+x]
}

// Sample returns the colour at (u, v).
func (t *Texture) Sample(u, v float64) Color {
	if t.Width == 0 || t.Height == 0 {
		return Color{}
	}
	u = wrapCoord(u, t.WrapU)
	v = 1 - wrapCoord(v, t.WrapV) // image rows grow downward
	if t.FilterMode == FilterBilinear {
		return t.sampleBilinear(u, v)
	}
	return t.GetPixel(min(int(u*float64(t.Width)), t.Width-1), min(int(v*float64(t.Height)), t.Height-1))
}

// SampleRGB returns the colour at (u, v) as linear [0, 1] RGB.
func (t *Texture) SampleRGB(u, v float64) math3d.Vec3 {
	c := t.Sample(u, v)
	return math3d.V3(float64(c.R), float64(c.G), float64(c.B)).Scale(1.0 / 255)
}

func wrapCoord(c float64, mode WrapMode) float64 {
	if mode == WrapClamp {
		return math.Max(0, math.Min(1, c))
	}
	return c - math.Floor(c)
}

func (t *Texture) sampleBilinear(u, v float64) Color {
	fx := u*float64(t.Width) - 0.5
	fy := v*float64(t.Height) - 0.5
	x0, y0 := int(math.Floor(fx)), int(math.Floor(fy))
	tx, ty := fx-float64(x0), fy-float64(y0)

	xa, xb := wrapPixel(x0, t.Width, t.WrapU), wrapPixel(x0+1, t.Width, t.WrapU)
	ya, yb := wrapPixel(y0, t.Height, t.WrapV), wrapPixel(y0+1, t.Height, t.WrapV)

	top := lerpColor(t.GetPixel(xa, ya), t.GetPixel(xb, ya), tx)
	bot := lerpColor(t.GetPixel(xa, yb), t.GetPixel(xb, yb), tx)
	return lerpColor(top, bot, ty)
}

func wrapPixel(x, size int, mode WrapMode) int {
	if mode == WrapClamp {
		return max(0, min(size-1, x))
	}
	x %= size
	if x < 0 {
		x += size
	}
	return x
}

func lerpColor(a, b Color, t float64) Color {
	l := func(x, y uint8) uint8 {
		return uint8(float64(x) + (float64(y)-float64(x))*t + 0.5)
	}
	return Color{R: l(a.R, b.R), G: l(a.G, b.G), B: l(a.B, b.B), A: l(a.A, b.A)}
}
