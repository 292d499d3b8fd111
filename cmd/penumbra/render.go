package main

import (
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"
	"github.com/taigrr/penumbra/pkg/render"
)

type renderFlags struct {
	width, height int
	out           string
	overlay       bool
	quiet         bool
}

func newRenderCmd(opts *options) *cobra.Command {
	rf := &renderFlags{}
	cmd := &cobra.Command{
		Use:   "render",
		Short: "Render one frame to a PNG",
		RunE: func(cmd *cobra.Command, args []string) error {
			closer, err := setupLogging(opts.logLevel, opts.logFile, os.Stderr)
			if err != nil {
				return err
			}
			defer closer.Close()
			cfg, err := loadConfig(cmd, opts)
			if err != nil {
				return err
			}
			if rf.width <= 0 || rf.height <= 0 {
				return fmt.Errorf("size %dx%d must be positive", rf.width, rf.height)
			}
			workers := workerCount(opts.workers)
			logHost(workers)

			st := newState(cfg)
			fb := render.NewFramebuffer(rf.width, rf.height)
			cam := render.NewCamera()
			cam.SetAspectRatio(float64(rf.width) / float64(rf.height))
			st.ApplyCamera(cam)
			raster := render.NewRasterizer(cam, fb)

			var progress func(int)
			var bar *progressbar.ProgressBar
			if !rf.quiet {
				bar = progressbar.Default(-1, "shading fragments")
				progress = func(n int) { bar.Add(n) }
			}
			pipe, err := newPipeline(opts, raster, fb, workers, progress)
			if err != nil {
				return err
			}
			defer pipe.Close()

			start := time.Now()
			if err := st.Render(cmd.Context(), pipe, cam); err != nil {
				return err
			}
			if bar != nil {
				bar.Finish()
			}
			if rf.overlay {
				ov := render.NewOverlay(cam, fb)
				ov.LightGuides(st.Light)
				floor, wall := st.ShadowGrids()
				ov.ShadowGrid(floor)
				ov.ShadowGrid(wall)
			}
			if err := fb.SavePNG(rf.out); err != nil {
				return fmt.Errorf("save %s: %w", rf.out, err)
			}
			slog.Info("rendered",
				"out", rf.out,
				"size", fmt.Sprintf("%dx%d", rf.width, rf.height),
				"backend", opts.backend,
				"samples", st.Shadow.Samples,
				"elapsed", time.Since(start).Round(time.Millisecond))
			return nil
		},
	}
	f := cmd.Flags()
	f.IntVar(&rf.width, "width", 640, "image width in pixels")
	f.IntVar(&rf.height, "height", 360, "image height in pixels")
	f.StringVarP(&rf.out, "out", "o", "penumbra.png", "output PNG path")
	f.BoolVar(&rf.overlay, "overlay", false, "draw light guides and shadow grids")
	f.BoolVarP(&rf.quiet, "quiet", "q", false, "hide the progress bar")
	return cmd
}
