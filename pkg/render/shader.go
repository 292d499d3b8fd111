package render

import (
	"context"
	"fmt"
	"runtime"

	"github.com/taigrr/penumbra/pkg/kernel"
	"github.com/taigrr/penumbra/pkg/math3d"
	"github.com/taigrr/penumbra/pkg/shading"
	"github.com/taigrr/penumbra/pkg/shadow"
	"golang.org/x/sync/errgroup"
)

// Shaded is the fragment program output for one fragment.
type Shaded struct {
	Color   [4]float64
	Discard bool
}

// Shader runs a fragment program over a batch. The result is indexed like
// frags and is only valid until the next call.
type Shader interface {
	ShadeBatch(ctx context.Context, frags []Fragment) ([]Shaded, error)
}

// TileSize is the number of fragments a worker shades between
// cancellation checks.
const TileSize = 512

// ReferenceShader runs the float64 reference pipeline in parallel tiles.
type ReferenceShader struct {
	Uniforms *shading.Uniforms
	Occluder shadow.Occluder
	Texture  shading.Texture
	Workers  int
	// Progress is called from worker goroutines after each tile.
	Progress func(n int)

	out []Shaded
}

// ShadeBatch implements Shader.
func (s *ReferenceShader) ShadeBatch(ctx context.Context, frags []Fragment) ([]Shaded, error) {
	s.out = grow(s.out, len(frags))
	workers := s.Workers
	if workers <= 0 {
		workers = runtime.GOMAXPROCS(0)
	}
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)
	for start := 0; start < len(frags); start += TileSize {
		if gctx.Err() != nil {
			break
		}
		end := min(start+TileSize, len(frags))
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			for i := start; i < end; i++ {
				c, d := shading.Shade(frags[i].Fragment, s.Uniforms, s.Occluder, s.Texture)
				s.out[i] = Shaded{Color: c, Discard: d}
			}
			if s.Progress != nil {
				s.Progress(end - start)
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return s.out, nil
}

// KernelShader runs a compiled float32 program against a device.
type KernelShader struct {
	Program *kernel.Program
	Device  *kernel.Device

	in  []kernel.Fragment
	res []kernel.Output
	out []Shaded
}

// ShadeBatch implements Shader.
func (s *KernelShader) ShadeBatch(ctx context.Context, frags []Fragment) ([]Shaded, error) {
	if s.Program == nil || s.Device == nil {
		return nil, fmt.Errorf("kernel shader: no program or device")
	}
	s.in = s.in[:0]
	for _, f := range frags {
		s.in = append(s.in, kernel.FromShading(f.Fragment))
	}
	s.res = grow(s.res, len(frags))
	if err := s.Program.Dispatch(ctx, s.Device, s.in, s.res); err != nil {
		return nil, err
	}
	s.out = grow(s.out, len(frags))
	for i, o := range s.res {
		s.out[i] = Shaded{
			Color:   [4]float64{float64(o.Color[0]), float64(o.Color[1]), float64(o.Color[2]), float64(o.Color[3])},
			Discard: o.Discard,
		}
	}
	return s.out, nil
}

func grow[T any](s []T, n int) []T {
	if cap(s) < n {
		return make([]T, n)
	}
	return s[:n]
}

// Draw rasterizes mesh placed with model, shades the fragments and
// resolves them into the framebuffer.
func (r *Rasterizer) Draw(ctx context.Context, mesh MeshRenderer, model math3d.Mat4, sh Shader) error {
	r.frags = r.Rasterize(r.frags[:0], mesh, model)
	if len(r.frags) == 0 {
		return nil
	}
	out, err := sh.ShadeBatch(ctx, r.frags)
	if err != nil {
		return fmt.Errorf("shade %d fragments: %w", len(r.frags), err)
	}
	r.Resolve(r.frags, out)
	return nil
}
