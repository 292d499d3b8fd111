package main

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/taigrr/penumbra/pkg/scene"
)

const (
	ansiReset     = "\x1b[0m"
	ansiBold      = "\x1b[1m"
	ansiDim       = "\x1b[2m"
	ansiBgBlack   = "\x1b[40m"
	ansiFgWhite   = "\x1b[97m"
	ansiFgGreen   = "\x1b[92m"
	ansiFgYellow  = "\x1b[93m"
	ansiFgCyan    = "\x1b[96m"
	ansiClearLine = "\x1b[2K"
)

func moveTo(row, col int) string {
	return fmt.Sprintf("\x1b[%d;%dH", row, col)
}

// HUD writes status text over the rendered cells with raw ANSI.
type HUD struct {
	out       io.Writer
	title     string
	backend   string
	fps       float64
	fpsFrames int
	fpsTime   time.Time
}

func NewHUD(out io.Writer, title, backend string) *HUD {
	return &HUD{out: out, title: title, backend: backend, fpsTime: time.Now()}
}

// UpdateFPS counts a frame.
func (h *HUD) UpdateFPS() {
	h.fpsFrames++
	elapsed := time.Since(h.fpsTime)
	if elapsed >= time.Second {
		h.fps = float64(h.fpsFrames) / elapsed.Seconds()
		h.fpsFrames = 0
		h.fpsTime = time.Now()
	}
}

func check(on bool) string {
	if on {
		return "[✓]"
	}
	return "[ ]"
}

// Render draws the slider labels and, when enabled, the status rows.
// width and height are in cells.
func (h *HUD) Render(width, height int, st *scene.State) {
	var b strings.Builder
	b.WriteString(moveTo(1, 1) + ansiClearLine)
	b.WriteString(moveTo(height, 1) + ansiClearLine)

	// Sliders live in framebuffer pixels, two per cell row.
	for _, s := range st.Sliders {
		row := s.Y/2 + 1
		col := s.X + s.W + 3
		if col+12 > width || row >= height {
			continue
		}
		fmt.Fprintf(&b, "%s%s%s %-10s%s", moveTo(row, col), ansiBgBlack, ansiFgWhite, s.String(), ansiReset)
	}

	if !st.HUD {
		fmt.Fprint(h.out, b.String())
		return
	}

	fmt.Fprintf(&b, "%s%s%s %.0f FPS %s", moveTo(1, 1), ansiBgBlack, ansiFgGreen, h.fps, ansiReset)
	titleCol := max((width-len(h.title)-2)/2, 1)
	fmt.Fprintf(&b, "%s%s%s%s %s %s", moveTo(1, titleCol), ansiBold, ansiBgBlack, ansiFgWhite, h.title, ansiReset)

	mesh, _ := st.Caster()
	info := fmt.Sprintf(" %s %d tris %d smp ", h.backend, mesh.TriangleCount(), st.Shadow.Samples)
	fmt.Fprintf(&b, "%s%s%s%s%s%s", moveTo(1, max(width-len(info), 1)), ansiBgBlack, ansiFgCyan, ansiBold, info, ansiReset)

	modes := fmt.Sprintf(" %s Faceted %s Tint %s Hard %s Wavy %s Grid  rot %d ",
		check(st.Faceted), check(st.Tint), check(st.Hard), check(st.ShowWavy), check(st.ShadowGrid), st.Rotation)
	fmt.Fprintf(&b, "%s%s%s%s%s", moveTo(height, 1), ansiBgBlack, ansiFgWhite, modes, ansiReset)

	hint := " ?: hide "
	fmt.Fprintf(&b, "%s%s%s%s%s%s", moveTo(height, max(width-len(hint), 1)), ansiBgBlack, ansiDim, ansiFgYellow, hint, ansiReset)
	fmt.Fprint(h.out, b.String())
}
