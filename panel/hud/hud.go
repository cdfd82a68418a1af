// Package hud draws the text overlay on top of the rendered frame.
//
// Text is rasterized only when the status changes. Every other frame replays
// the cached pixels, so a steady overlay costs no allocations.
package hud

import (
	"fmt"
	"image/color"
	"math"

	"tinygo.org/x/drivers"
	"tinygo.org/x/tinyfont"
	"tinygo.org/x/tinyfont/proggy"

	"urdfpanel/hal"
	"urdfpanel/panel/quarkgl"
)

var (
	textColor  = color.RGBA{R: 0xE0, G: 0xE0, B: 0xE0, A: 0xFF}
	errorColor = color.RGBA{R: 0xFF, G: 0x60, B: 0x60, A: 0xFF}
)

const margin = 4

// JointValue is one row of the joint table.
type JointValue struct {
	Name  string
	Value float64 // radians
}

// Status is what the overlay shows.
type Status struct {
	Variant string
	State   string
	Err     error
	Joints  []JointValue
}

// dot is one lit pixel: a byte offset into the framebuffer and its RGB565 value.
type dot struct {
	off int
	px  uint16
}

type HUD struct {
	font    tinyfont.Fonter
	lineH   int16
	visible bool

	// Cache of the last composed status.
	valid    bool
	variant  string
	state    string
	err      error
	joints   []JointValue
	w, h     int
	stride   int
	lines    int
	dots     []dot
	ink      inkDisplayer
	composes int
}

func New() *HUD {
	font := &proggy.TinySZ8pt7b
	h := &HUD{font: font, lineH: int16(font.GetYAdvance()), visible: true}
	h.ink.hud = h
	return h
}

func (h *HUD) Visible() bool { return h.visible }

func (h *HUD) SetVisible(v bool) { h.visible = v }

func (h *HUD) Toggle() { h.visible = !h.visible }

// Composes reports how many times the text was rasterized.
func (h *HUD) Composes() int { return h.composes }

// Draw writes st into fb and returns the number of lines drawn.
func (h *HUD) Draw(fb hal.Framebuffer, st Status) int {
	if !h.visible || fb == nil || fb.Format() != hal.PixelFormatRGB565 {
		return 0
	}
	if h.stale(fb, st) {
		h.compose(fb, st)
	}
	buf := fb.Buffer()
	for _, d := range h.dots {
		if d.off+1 >= len(buf) {
			continue
		}
		buf[d.off] = byte(d.px)
		buf[d.off+1] = byte(d.px >> 8)
	}
	return h.lines
}

func (h *HUD) stale(fb hal.Framebuffer, st Status) bool {
	if !h.valid || fb.Width() != h.w || fb.Height() != h.h || fb.StrideBytes() != h.stride {
		return true
	}
	if st.Variant != h.variant || st.State != h.state || st.Err != h.err {
		return true
	}
	if len(st.Joints) != len(h.joints) {
		return true
	}
	for i, j := range st.Joints {
		if j != h.joints[i] {
			return true
		}
	}
	return false
}

func (h *HUD) compose(fb hal.Framebuffer, st Status) {
	h.valid = true
	h.variant, h.state, h.err = st.Variant, st.State, st.Err
	h.joints = append(h.joints[:0], st.Joints...)
	h.w, h.h, h.stride = fb.Width(), fb.Height(), fb.StrideBytes()
	h.dots = h.dots[:0]
	h.lines = 0
	h.composes++

	maxH := int16(min(h.h, math.MaxInt16))
	y := int16(margin)
	put := func(s string, c color.RGBA) bool {
		if y+h.lineH > maxH {
			return false
		}
		tinyfont.WriteLine(&h.ink, h.font, margin, y+h.lineH, s, c)
		y += h.lineH
		h.lines++
		return true
	}

	if !put(fmt.Sprintf("%s  %s", st.Variant, st.State), textColor) {
		return
	}
	if st.Err != nil && !put("error: "+st.Err.Error(), errorColor) {
		return
	}
	for _, j := range st.Joints {
		if !put(fmt.Sprintf("%-20s %7.1f deg", j.Name, j.Value*180/math.Pi), textColor) {
			break
		}
	}
}

// inkDisplayer records glyph pixels as dots against the composed surface size.
type inkDisplayer struct {
	hud *HUD
}

var _ drivers.Displayer = (*inkDisplayer)(nil)

func (d *inkDisplayer) Size() (x, y int16) {
	return int16(min(d.hud.w, math.MaxInt16)), int16(min(d.hud.h, math.MaxInt16))
}

func (d *inkDisplayer) SetPixel(x, y int16, c color.RGBA) {
	h := d.hud
	ix, iy := int(x), int(y)
	if ix < 0 || ix >= h.w || iy < 0 || iy >= h.h {
		return
	}
	h.dots = append(h.dots, dot{
		off: iy*h.stride + ix*2,
		px:  quarkgl.RGB565(quarkgl.RGBA(c.R, c.G, c.B, c.A)),
	})
}

func (d *inkDisplayer) Display() error { return nil }
