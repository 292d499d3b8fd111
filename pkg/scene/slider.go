package scene

import "fmt"

// SliderID names a slider.
type SliderID int

const (
	SliderLightX SliderID = iota
	SliderLightY
	SliderLightZ
	SliderDim
	SliderFreq
	SliderLightSize
)

// Slider is a horizontal value control in framebuffer pixels (y down).
type Slider struct {
	ID       SliderID
	Label    string
	Min, Max float64
	Value    float64
	X, Y, W  int
}

// Hit reports whether (x, y) is on the slider track.
func (s *Slider) Hit(x, y int) bool {
	return x >= s.X && x <= s.X+s.W && y >= s.Y-1 && y <= s.Y+1
}

// SetFromX moves the knob to column x, clamped to the track.
func (s *Slider) SetFromX(x int) {
	t := 0.0
	if s.W > 0 {
		t = min(1, max(0, float64(x-s.X)/float64(s.W)))
	}
	s.Value = s.Min + t*(s.Max-s.Min)
}

// Set stores v clamped to the slider range.
func (s *Slider) Set(v float64) {
	s.Value = min(s.Max, max(s.Min, v))
}

// KnobX is the column of the knob.
func (s *Slider) KnobX() int {
	if s.Max == s.Min {
		return s.X
	}
	return s.X + int(float64(s.W)*(s.Value-s.Min)/(s.Max-s.Min)+0.5)
}

func (s *Slider) String() string {
	return fmt.Sprintf("%s %.2f", s.Label, s.Value)
}

func newSliders() []*Slider {
	return []*Slider{
		{ID: SliderLightX, Label: "x", Min: -2, Max: 2},
		{ID: SliderLightY, Label: "y", Min: 0, Max: 4},
		{ID: SliderLightZ, Label: "z", Min: -2, Max: 2},
		{ID: SliderDim, Label: "dim", Min: 0, Max: 2},
		{ID: SliderFreq, Label: "freq", Min: 0.5, Max: 6},
		{ID: SliderLightSize, Label: "lsize", Min: 0, Max: 1},
	}
}

// LayoutSliders stacks the sliders down the top-left of a framebuffer
// width pixels wide, each half the width long.
func (st *State) LayoutSliders(width int) {
	const top, gap, left = 3, 4, 2
	w := max(8, width/2-left)
	for i, s := range st.Sliders {
		s.X, s.Y, s.W = left, top+i*gap, w
	}
}
