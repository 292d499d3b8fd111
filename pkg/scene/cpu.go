package scene

import (
	"context"
	"fmt"
	"image/color"

	"github.com/taigrr/penumbra/pkg/kernel"
	"github.com/taigrr/penumbra/pkg/math3d"
	"github.com/taigrr/penumbra/pkg/occluder"
	"github.com/taigrr/penumbra/pkg/render"
	"github.com/taigrr/penumbra/pkg/shading"
)

// Mode picks the CPU fragment program.
type Mode int

const (
	// ModeKernel runs the float32 device kernel against slot storage.
	ModeKernel Mode = iota
	// ModeReference runs the float64 reference pipeline.
	ModeReference
)

func (m Mode) String() string {
	if m == ModeReference {
		return "reference"
	}
	return "kernel"
}

// CPU is the software Pipeline: the rasterizer produces fragments and the
// chosen program shades them.
type CPU struct {
	Mode    Mode
	Workers int
	// Progress receives shaded fragment counts from worker goroutines.
	Progress func(n int)

	raster *render.Rasterizer
	fb     *render.Framebuffer
	dev    *kernel.Device
	// ref mirrors the uploaded buffers for the reference program.
	ref occluder.Buffers

	kernelShader render.KernelShader
	refShader    render.ReferenceShader
}

// NewCPU draws through raster into fb.
func NewCPU(raster *render.Rasterizer, fb *render.Framebuffer, mode Mode) *CPU {
	return &CPU{Mode: mode, raster: raster, fb: fb, dev: kernel.NewDevice()}
}

// Device exposes the kernel's slot storage.
func (c *CPU) Device() *kernel.Device { return c.dev }

// UploadPoints implements occluder.Target.
func (c *CPU) UploadPoints(slot int, data []float32) error {
	if err := c.dev.UploadPoints(slot, data); err != nil {
		return err
	}
	if slot == occluder.SlotPoints {
		c.ref.Points = c.ref.Points[:0]
		for i := 0; i+3 < len(data); i += 4 {
			c.ref.Points = append(c.ref.Points, math3d.V4(float64(data[i]), float64(data[i+1]), float64(data[i+2]), float64(data[i+3])))
		}
	}
	return nil
}

// UploadIndices implements occluder.Target.
func (c *CPU) UploadIndices(slot int, data []int32) error {
	if err := c.dev.UploadIndices(slot, data); err != nil {
		return err
	}
	if slot == occluder.SlotTriangles {
		c.ref.Indices = append(c.ref.Indices[:0], data...)
	}
	return nil
}

// Begin implements Pipeline.
func (c *CPU) Begin(bg color.RGBA) {
	c.fb.Clear(bg)
	c.raster.ClearDepth()
}

// Draw implements Pipeline.
func (c *CPU) Draw(ctx context.Context, d *Draw) error {
	if err := d.Uniforms.Validate(); err != nil {
		return fmt.Errorf("uniforms: %w", err)
	}
	var sh render.Shader
	switch c.Mode {
	case ModeReference:
		c.refShader.Uniforms = &d.Uniforms
		c.refShader.Occluder = shading.Occluder(&c.ref, &d.Uniforms)
		c.refShader.Texture = d.Texture
		c.refShader.Workers = c.Workers
		c.refShader.Progress = c.Progress
		sh = &c.refShader
	default:
		prog, err := kernel.Compile(&d.Uniforms, d.Texture)
		if err != nil {
			return err
		}
		prog.Workers = c.Workers
		prog.Progress = c.Progress
		c.kernelShader.Program = prog
		c.kernelShader.Device = c.dev
		sh = &c.kernelShader
	}
	return c.raster.Draw(ctx, d.Mesh, d.Model, sh)
}

// End implements Pipeline.
func (c *CPU) End() error { return nil }
