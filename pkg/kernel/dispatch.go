package kernel

import (
	"context"
	"fmt"
	"runtime"

	"golang.org/x/sync/errgroup"
)

// ChunkSize is the number of fragments one worker shades between
// cancellation checks.
const ChunkSize = 256

// Dispatch shades frags into out in parallel chunks. Fragments are
// independent and complete in no particular order. The device read lock is
// held until every chunk finishes.
func (p *Program) Dispatch(ctx context.Context, dev *Device, frags []Fragment, out []Output) error {
	if len(out) < len(frags) {
		return fmt.Errorf("dispatch: output holds %d of %d fragments", len(out), len(frags))
	}
	dev.mu.RLock()
	defer dev.mu.RUnlock()
	tris := p.triangles(dev.view(p.PointsSlot, p.TrianglesSlot))

	workers := p.Workers
	if workers <= 0 {
		workers = runtime.GOMAXPROCS(0)
	}
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)
	for start := 0; start < len(frags); start += ChunkSize {
		if gctx.Err() != nil {
			break
		}
		end := min(start+ChunkSize, len(frags))
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			for i := start; i < end; i++ {
				out[i] = p.shade(frags[i], tris)
			}
			if p.Progress != nil {
				p.Progress(end - start)
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}
	return ctx.Err()
}
