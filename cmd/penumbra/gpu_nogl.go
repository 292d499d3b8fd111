//go:build !gl

package main

import (
	"errors"

	"github.com/taigrr/penumbra/pkg/render"
)

func newGLPipeline(*render.Framebuffer) (pipeline, error) {
	return nil, errors.New("gl backend not compiled in; rebuild with -tags gl")
}
