//go:build gl

package main

import (
	"github.com/taigrr/penumbra/pkg/gpu"
	"github.com/taigrr/penumbra/pkg/render"
)

func newGLPipeline(fb *render.Framebuffer) (pipeline, error) {
	b, err := gpu.New(fb)
	if err != nil {
		return nil, err
	}
	return b, nil
}
