package render

import (
	"fmt"
	"image"
	"image/color"
	"image/png"
	"os"
)

// Framebuffer is a row-major RGBA pixel grid. For terminal output its
// height is twice the number of rows, since each cell shows two pixels
// with a half-block glyph.
type Framebuffer struct {
	Width  int
	Height int
	Pixels []color.RGBA
}

// NewFramebuffer allocates a width×height framebuffer.
func NewFramebuffer(width, height int) *Framebuffer {
	return &Framebuffer{
		Width:  width,
		Height: height,
		Pixels: make([]color.RGBA, width*height),
	}
}

// Clear fills the framebuffer with c.
func (fb *Framebuffer) Clear(c color.RGBA) {
	for i := range fb.Pixels {
		fb.Pixels[i] = c
	}
}

// SetPixel sets (x, y) to c. Out-of-range writes are ignored.
func (fb *Framebuffer) SetPixel(x, y int, c color.RGBA) {
	if x < 0 || x >= fb.Width || y < 0 || y >= fb.Height {
		return
	}
	fb.Pixels[y*fb.Width+x] = c
}

// GetPixel returns (x, y), or transparent black out of range.
func (fb *Framebuffer) GetPixel(x, y int) color.RGBA {
	if x < 0 || x >= fb.Width || y < 0 || y >= fb.Height {
		return color.RGBA{}
	}
	return fb.Pixels[y*fb.Width+x]
}

// Blend composites a linear [0, 1] rgba colour over (x, y) as
// src·a + dst·(1-a). The stored alpha becomes opaque.
func (fb *Framebuffer) Blend(x, y int, c [4]float64) {
	if x < 0 || x >= fb.Width || y < 0 || y >= fb.Height {
		return
	}
	dst := fb.Pixels[y*fb.Width+x]
	a := clampUnit(c[3])
	mix := func(src float64, d uint8) uint8 {
		return toByte(clampUnit(src)*a + float64(d)/255*(1-a))
	}
	fb.Pixels[y*fb.Width+x] = color.RGBA{
		R: mix(c[0], dst.R),
		G: mix(c[1], dst.G),
		B: mix(c[2], dst.B),
		A: 255,
	}
}

func clampUnit(v float64) float64 {
	if v != v {
		return 0
	}
	return min(1, max(0, v))
}

func toByte(v float64) uint8 {
	return uint8(clampUnit(v)*255 + 0.5)
}

// DrawLine draws a line with Bresenham's algorithm.
func (fb *Framebuffer) DrawLine(x0, y0, x1, y1 int, c color.RGBA) {
	dx := abs(x1 - x0)
	dy := -abs(y1 - y0)
	sx := 1
	if x0 > x1 {
		sx = -1
	}
	sy := 1
	if y0 > y1 {
		sy = -1
	}
	err := dx + dy

	for {
		fb.SetPixel(x0, y0, c)
		if x0 == x1 && y0 == y1 {
			break
		}
		e2 := 2 * err
		if e2 >= dy {
			err += dy
			x0 += sx
		}
		if e2 <= dx {
			err += dx
			y0 += sy
		}
	}
}

// DrawRect fills a w×h rectangle with its top-left corner at (x, y).
func (fb *Framebuffer) DrawRect(x, y, w, h int, c color.RGBA) {
	for py := y; py < y+h; py++ {
		for px := x; px < x+w; px++ {
			fb.SetPixel(px, py, c)
		}
	}
}

// DrawDisk fills a disk of radius r pixels centred on (cx, cy).
func (fb *Framebuffer) DrawDisk(cx, cy, r int, c color.RGBA) {
	for dy := -r; dy <= r; dy++ {
		for dx := -r; dx <= r; dx++ {
			if dx*dx+dy*dy <= r*r {
				fb.SetPixel(cx+dx, cy+dy, c)
			}
		}
	}
}

func abs(x int) int {
	if x < 0 {
		return -x
	}
	return x
}

// ToImage copies the framebuffer into an image.RGBA.
func (fb *Framebuffer) ToImage() *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, fb.Width, fb.Height))
	for y := range fb.Height {
		copy(img.Pix[y*img.Stride:], rgbaBytes(fb.Pixels[y*fb.Width:(y+1)*fb.Width]))
	}
	return img
}

func rgbaBytes(row []color.RGBA) []byte {
	out := make([]byte, 0, 4*len(row))
	for _, c := range row {
		out = append(out, c.R, c.G, c.B, c.A)
	}
	return out
}

// SavePNG writes the framebuffer to path.
func (fb *Framebuffer) SavePNG(path string) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create %s: %w", path, err)
	}
	if err := png.Encode(f, fb.ToImage()); err != nil {
		f.Close()
		return fmt.Errorf("encode %s: %w", path, err)
	}
	return f.Close()
}
