package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	uv "github.com/charmbracelet/ultraviolet"
	"github.com/spf13/cobra"
	"github.com/taigrr/penumbra/pkg/render"
	"github.com/taigrr/penumbra/pkg/scene"
)

func newViewCmd(opts *options) *cobra.Command {
	var fps int
	cmd := &cobra.Command{
		Use:   "view",
		Short: "Render the scene live in the terminal",
		RunE: func(cmd *cobra.Command, args []string) error {
			// The terminal owns stdout and stderr while the view runs.
			closer, err := setupLogging(opts.logLevel, opts.logFile, io.Discard)
			if err != nil {
				return err
			}
			defer closer.Close()

			cfg, err := loadConfig(cmd, opts)
			if err != nil {
				return err
			}
			if fps <= 0 {
				return fmt.Errorf("--fps must be positive")
			}
			workers := workerCount(opts.workers)
			logHost(workers)
			return runView(cmd.Context(), opts, newState(cfg), workers, fps)
		},
	}
	cmd.Flags().IntVar(&fps, "fps", 30, "target frames per second")
	return cmd
}

// viewer owns the terminal and everything sized to it.
type viewer struct {
	opts    *options
	workers int
	st      *scene.State
	orbit   *orbit
	hud     *HUD

	term          *uv.Terminal
	termRenderer  *render.TerminalRenderer
	width, height int

	fb     *render.Framebuffer
	camera *render.Camera
	raster *render.Rasterizer
	pipe   pipeline
}

func runView(ctx context.Context, opts *options, st *scene.State, workers, fps int) error {
	term := uv.DefaultTerminal()
	width, height, err := term.GetSize()
	if err != nil {
		return fmt.Errorf("get terminal size: %w", err)
	}
	if err := term.Start(); err != nil {
		return fmt.Errorf("start terminal: %w", err)
	}
	term.EnterAltScreen()
	term.HideCursor()
	fmt.Fprint(os.Stdout, "\x1b[?1003h") // any-event mouse tracking
	fmt.Fprint(os.Stdout, "\x1b[?1006h") // SGR extended mouse mode

	v := &viewer{
		opts:    opts,
		workers: workers,
		st:      st,
		orbit:   newOrbit(fps, st),
		hud:     NewHUD(os.Stdout, title(st), opts.backend),
		term:    term,
		camera:  render.NewCamera(),
	}
	defer func() {
		if v.pipe != nil {
			v.pipe.Close()
		}
		fmt.Fprint(os.Stdout, "\x1b[?1003l")
		fmt.Fprint(os.Stdout, "\x1b[?1006l")
		term.ExitAltScreen()
		term.ShowCursor()
		term.Shutdown(context.Background())
	}()
	if err := v.resize(width, height); err != nil {
		return err
	}

	ticker := time.NewTicker(time.Second / time.Duration(fps))
	defer ticker.Stop()
	events := term.Events()
	lastFrame := time.Now()
	for {
		select {
		case <-ctx.Done():
			return nil
		case ev, ok := <-events:
			if !ok {
				return nil
			}
			quit, err := v.handle(ev)
			if err != nil {
				return err
			}
			if quit {
				return nil
			}
		case now := <-ticker.C:
			dt := min(now.Sub(lastFrame).Seconds(), 0.1)
			lastFrame = now
			if err := v.frame(ctx, dt); err != nil {
				if errors.Is(err, context.Canceled) {
					return nil
				}
				return err
			}
		}
	}
}

func title(st *scene.State) string {
	return filepath.Base(st.Config().Object.Mesh)
}

// resize rebuilds the framebuffer, rasterizer and pipeline for a
// width×height cell terminal.
func (v *viewer) resize(width, height int) error {
	v.width, v.height = width, height
	v.term.Erase()
	v.term.Resize(width, height)
	v.termRenderer = render.NewTerminalRenderer(v.term, width, height)
	fbWidth, fbHeight := v.termRenderer.FramebufferSize()
	v.fb = render.NewFramebuffer(fbWidth, fbHeight)
	v.camera.SetAspectRatio(float64(fbWidth) / float64(fbHeight))
	v.raster = render.NewRasterizer(v.camera, v.fb)
	if v.pipe != nil {
		v.pipe.Close()
	}
	pipe, err := newPipeline(v.opts, v.raster, v.fb, v.workers, nil)
	if err != nil {
		return err
	}
	v.pipe = pipe
	v.st.InvalidateOccluder()
	v.st.LayoutSliders(fbWidth)
	slog.Debug("resize", "cells", fmt.Sprintf("%dx%d", width, height), "pixels", fmt.Sprintf("%dx%d", fbWidth, fbHeight))
	return nil
}

// handle applies one terminal event and reports whether to quit.
func (v *viewer) handle(ev uv.Event) (bool, error) {
	st := v.st
	const spin = 0.05
	switch ev := ev.(type) {
	case uv.WindowSizeEvent:
		return false, v.resize(ev.Width, ev.Height)

	case uv.KeyPressEvent:
		switch {
		case ev.MatchString("escape"), ev.MatchString("ctrl+c"):
			return true, nil
		case ev.MatchString("f"):
			st.Faceted = !st.Faceted
		case ev.MatchString("d"):
			st.Diagnostics = !st.Diagnostics
		case ev.MatchString("l"):
			st.NextTexture()
		case ev.MatchString("k"):
			st.PrevTexture()
		case ev.MatchString("s"):
			st.ShadowGrid = !st.ShadowGrid
		case ev.MatchString("q"):
			st.Slower()
		case ev.MatchString("e"):
			st.Faster()
		case ev.MatchString("r"):
			st.Reset()
			v.orbit.reset(st)
		case ev.MatchString("+", "="):
			st.MoreSamples()
		case ev.MatchString("-", "_"):
			st.FewerSamples()
		case ev.MatchString("0"):
			st.ShowWavy = !st.ShowWavy
		case ev.MatchString("1"):
			st.ScaleAmplitude(true)
		case ev.MatchString("!", "shift+1"):
			st.ScaleAmplitude(false)
		case ev.MatchString("2"):
			st.ScaleFrequency(true)
		case ev.MatchString("@", "shift+2"):
			st.ScaleFrequency(false)
		case ev.MatchString("3"):
			st.StepResolution(true)
		case ev.MatchString("#", "shift+3"):
			st.StepResolution(false)
		case ev.MatchString("t"):
			st.Tint = !st.Tint
		case ev.MatchString("h"):
			st.ToggleHard()
		case ev.MatchString("?", "shift+/"):
			st.HUD = !st.HUD
		case ev.MatchString("left"):
			v.orbit.impulse(-spin, 0)
		case ev.MatchString("right"):
			v.orbit.impulse(spin, 0)
		case ev.MatchString("up"):
			v.orbit.impulse(0, spin)
		case ev.MatchString("down"):
			v.orbit.impulse(0, -spin)
		}

	case uv.MouseClickEvent:
		// Cells are one pixel wide and two tall.
		st.Pick(ev.X, ev.Y*2, v.camera, v.fb.Width, v.fb.Height)

	case uv.MouseMotionEvent:
		if st.Drag.Kind != scene.DragNone {
			st.DragTo(ev.X, ev.Y*2, v.camera, v.fb.Width, v.fb.Height)
		}

	case uv.MouseReleaseEvent:
		st.Release()

	case uv.MouseWheelEvent:
		switch ev.Button {
		case uv.MouseWheelUp:
			st.Zoom(1)
		case uv.MouseWheelDown:
			st.Zoom(-1)
		}
	}
	return false, nil
}

// frame advances the scene by dt seconds and presents it.
func (v *viewer) frame(ctx context.Context, dt float64) error {
	st := v.st
	yaw, pitch, distance := v.orbit.update(st)
	st.ApplyOrbit(v.camera, yaw, pitch, distance)
	st.Step(dt)

	if err := st.Render(ctx, v.pipe, v.camera); err != nil {
		return err
	}
	v.drawOverlay()

	v.termRenderer.Render(v.fb)
	if err := v.termRenderer.Flush(); err != nil {
		return fmt.Errorf("flush: %w", err)
	}
	v.hud.UpdateFPS()
	v.hud.Render(v.width, v.height, st)
	return nil
}

// drawOverlay marks the light and anchor, draws the sliders and, when
// enabled, the diagnostics.
func (v *viewer) drawOverlay() {
	st := v.st
	ov := render.NewOverlay(v.camera, v.fb)
	ov.LightGuides(st.Light)
	ov.Disk3D(st.Anchor, 1, render.ColorWhite)
	if st.ShadowGrid {
		floor, wall := st.ShadowGrids()
		ov.ShadowGrid(floor)
		ov.ShadowGrid(wall)
	}
	if st.Diagnostics && st.ShowWavy {
		for _, p := range st.WavyPoints() {
			ov.Disk3D(p, 0, render.ColorRed)
		}
	}
	drawSliders(v.fb, st.Sliders, st.Drag)
}

func drawSliders(fb *render.Framebuffer, sliders []*scene.Slider, drag scene.DragTarget) {
	track := render.RGB(60, 60, 70)
	for _, s := range sliders {
		fb.DrawLine(s.X, s.Y, s.X+s.W, s.Y, track)
		knob := render.ColorWhite
		if drag.Kind == scene.DragSlider && drag.Slider == s.ID {
			knob = render.ColorYellow
		}
		k := s.KnobX()
		fb.DrawLine(k, s.Y-1, k, s.Y+1, knob)
	}
}
