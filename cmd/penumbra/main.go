// penumbra renders a mesh casting soft shadows onto a floor and a wall,
// either live in the terminal or headless to a PNG.
//
// Controls (view):
//
//	Mouse drag  - Move a slider, the light, the object anchor, or orbit
//	Scroll      - Zoom in/out
//	Arrows      - Spin the orbit
//	F           - Toggle faceted shading
//	D           - Toggle wavy box vertex diagnostics
//	L/K         - Next/previous object texture
//	S           - Toggle CPU shadow grid
//	Q/E         - Slower/faster object rotation
//	R           - Reset light, object and rotation
//	+/-         - More/fewer light samples
//	0           - Toggle wavy box and object
//	1/2/3       - Grow wave amplitude/frequency/resolution (shift shrinks)
//	T           - Toggle texture tint
//	H           - Toggle hard/soft shadows
//	?           - Toggle HUD overlay
//	Esc         - Quit
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/charmbracelet/fang"
	"github.com/spf13/cobra"
)

// options are the flags shared by every subcommand.
type options struct {
	scenePath string
	logLevel  string
	logFile   string
	workers   int
	backend   string
	mode      string
	samples   int
	radius    float64
}

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()
	if err := fang.Execute(ctx, newRootCmd()); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	opts := &options{}
	root := &cobra.Command{
		Use:   "penumbra",
		Short: "Mesh shadows in the terminal",
		Long:  "penumbra rasterizes a mesh over a floor and a wall and shades every fragment with a brute-force soft shadow test against the mesh's triangles.",

		SilenceUsage: true,
	}
	pf := root.PersistentFlags()
	pf.StringVar(&opts.scenePath, "scene", "", "scene YAML file (defaults built in)")
	pf.StringVar(&opts.logLevel, "log-level", "info", "log level: debug, info, warn, error")
	pf.StringVar(&opts.logFile, "log-file", "", "log file (view discards logs by default)")
	pf.IntVar(&opts.workers, "workers", 0, "shading goroutines (0: $PENUMBRA_WORKERS or GOMAXPROCS)")
	pf.StringVar(&opts.backend, "backend", "cpu", "execution backend: cpu or gl")
	pf.StringVar(&opts.mode, "mode", "kernel", "cpu fragment program: kernel or reference")
	pf.IntVar(&opts.samples, "samples", 0, "jittered light samples (overrides the scene)")
	pf.Float64Var(&opts.radius, "radius", 0, "light radius (overrides the scene)")

	root.AddCommand(newViewCmd(opts), newRenderCmd(opts), newSceneCmd(opts))
	return root
}

func newSceneCmd(opts *options) *cobra.Command {
	var out string
	cmd := &cobra.Command{
		Use:   "scene",
		Short: "Write the scene configuration as YAML",
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
			if out == "" {
				return fmt.Errorf("--write is required")
			}
			return saveConfig(out, cfg)
		},
	}
	cmd.Flags().StringVar(&out, "write", "", "output YAML path")
	return cmd
}
