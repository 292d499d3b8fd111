package main

import (
	"fmt"
	"io"
	"log/slog"
	"math"
	"os"
	"runtime"
	"strconv"
	"strings"

	"github.com/klauspost/cpuid/v2"
	"github.com/spf13/cobra"
	"github.com/taigrr/penumbra/pkg/math3d"
	"github.com/taigrr/penumbra/pkg/models"
	"github.com/taigrr/penumbra/pkg/render"
	"github.com/taigrr/penumbra/pkg/scene"
	"github.com/taigrr/penumbra/pkg/shading"
)

// setupLogging installs the default slog handler. An empty path writes to
// fallback.
func setupLogging(level, path string, fallback io.Writer) (io.Closer, error) {
	var lvl slog.Level
	if err := lvl.UnmarshalText([]byte(level)); err != nil {
		return nil, fmt.Errorf("log level %q: %w", level, err)
	}
	w, closer := fallback, io.Closer(nopCloser{})
	if path != "" {
		f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
		if err != nil {
			return nil, fmt.Errorf("open log file: %w", err)
		}
		w, closer = f, f
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: lvl})))
	return closer, nil
}

type nopCloser struct{}

func (nopCloser) Close() error { return nil }

// workerCount resolves --workers, then $PENUMBRA_WORKERS, then GOMAXPROCS.
func workerCount(flag int) int {
	if flag > 0 {
		return flag
	}
	if env := os.Getenv("PENUMBRA_WORKERS"); env != "" {
		n, err := strconv.Atoi(env)
		if err == nil && n > 0 {
			return n
		}
		slog.Warn("ignoring PENUMBRA_WORKERS", "value", env)
	}
	return runtime.GOMAXPROCS(0)
}

func logHost(workers int) {
	slog.Info("host",
		"cpu", cpuid.CPU.BrandName,
		"cores", cpuid.CPU.PhysicalCores,
		"avx2", cpuid.CPU.Supports(cpuid.AVX2),
		"workers", workers)
}

func parseMode(s string) (scene.Mode, error) {
	switch strings.ToLower(s) {
	case "kernel", "":
		return scene.ModeKernel, nil
	case "reference", "ref":
		return scene.ModeReference, nil
	}
	return 0, fmt.Errorf("unknown mode %q (want kernel or reference)", s)
}

// loadConfig reads --scene over the defaults and applies flag overrides.
func loadConfig(cmd *cobra.Command, opts *options) (scene.Config, error) {
	cfg := scene.Default()
	if opts.scenePath != "" {
		var err error
		if cfg, err = scene.Load(opts.scenePath); err != nil {
			return cfg, err
		}
	}
	flags := cmd.Flags()
	if flags.Changed("samples") {
		cfg.Shadow.Samples = opts.samples
	}
	if flags.Changed("radius") {
		cfg.Shadow.Radius = opts.radius
	}
	if err := cfg.Validate(); err != nil {
		return cfg, fmt.Errorf("scene: %w", err)
	}
	return cfg, nil
}

func saveConfig(path string, cfg scene.Config) error {
	if err := scene.Save(path, cfg); err != nil {
		return err
	}
	slog.Info("wrote scene", "path", path)
	return nil
}

// loadObject resolves the configured mesh. Files are centred and scaled to
// fit a unit cube; a mesh that fails to load falls back to the cube.
func loadObject(cfg scene.Config) *models.Mesh {
	name := cfg.Object.Mesh
	if m, ok := models.Builtin(name); ok {
		return m
	}
	m, err := models.Load(name)
	if err != nil {
		slog.Warn("load object failed, using cube", "path", name, "error", err)
		return models.Cube(1)
	}
	m.CalculateBounds()
	center := m.Center()
	size := m.Size()
	if maxDim := math.Max(size.X, math.Max(size.Y, size.Z)); maxDim > 0 {
		s := 1 / maxDim
		m.Transform(math3d.Scale(math3d.V3(s, s, s)).Mul(math3d.Translate(center.Scale(-1))))
	}
	slog.Info("loaded object", "path", name, "vertices", m.VertexCount(), "triangles", m.TriangleCount())
	return m
}

// loadTextures builds the object texture cycle: untextured first, then the
// configured files, then the mesh's own base map, then procedural ones
// when nothing else is available.
func loadTextures(cfg scene.Config, object *models.Mesh) []shading.Texture {
	texs := []shading.Texture{nil}
	for _, path := range cfg.Object.Textures {
		t, err := render.LoadTexture(path)
		if err != nil {
			slog.Warn("load texture failed", "path", path, "error", err)
			continue
		}
		texs = append(texs, t)
	}
	if img := object.BaseMap(); img != nil {
		texs = append(texs, render.TextureFromImage(img))
	}
	if len(texs) == 1 {
		texs = append(texs,
			render.NewCheckerTexture(64, 64, 8, render.RGB(220, 200, 160), render.RGB(120, 90, 60)),
			render.NewStripeTexture(64, 4, render.RGB(200, 210, 230), render.RGB(70, 80, 110)),
		)
	}
	return texs
}

// surfaceTexture loads a floor or wall texture, defaulting to a checker.
func surfaceTexture(sc scene.SurfaceConfig, fallback *render.Texture) shading.Texture {
	if sc.Texture == "" {
		return fallback
	}
	t, err := render.LoadTexture(sc.Texture)
	if err != nil {
		slog.Warn("load surface texture failed", "path", sc.Texture, "error", err)
		return fallback
	}
	return t
}

// newState loads every asset cfg names and returns the ready scene.
func newState(cfg scene.Config) *scene.State {
	object := loadObject(cfg)
	st := scene.New(cfg, object)
	st.Textures = loadTextures(cfg, object)
	st.FloorTexture = surfaceTexture(cfg.Floor,
		render.NewCheckerTexture(64, 64, 8, render.RGB(230, 230, 230), render.RGB(90, 90, 90)))
	st.WallTexture = surfaceTexture(cfg.Wall, nil)
	return st
}
