package main

import (
	"fmt"

	"github.com/taigrr/penumbra/pkg/render"
	"github.com/taigrr/penumbra/pkg/scene"
)

// pipeline is a scene.Pipeline with resources to release.
type pipeline interface {
	scene.Pipeline
	Close() error
}

type cpuPipeline struct{ *scene.CPU }

func (cpuPipeline) Close() error { return nil }

// newPipeline builds the --backend pipeline drawing into fb.
func newPipeline(opts *options, raster *render.Rasterizer, fb *render.Framebuffer, workers int, progress func(int)) (pipeline, error) {
	switch opts.backend {
	case "cpu", "":
		mode, err := parseMode(opts.mode)
		if err != nil {
			return nil, err
		}
		c := scene.NewCPU(raster, fb, mode)
		c.Workers = workers
		c.Progress = progress
		return cpuPipeline{c}, nil
	case "gl":
		return newGLPipeline(fb)
	}
	return nil, fmt.Errorf("unknown backend %q (want cpu or gl)", opts.backend)
}
