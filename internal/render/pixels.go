// Package render turns the shared colour array into RGBA pixels.
//
// The renderer only reads. It never takes cell locks, so a frame may mix
// values from before and after a concurrent move; the next frame corrects it.
package render

import (
	"image"

	"stardust/internal/world"
)

// Framebuffer holds one RGBA frame of the simulation window.
type Framebuffer struct {
	W, H int
	Pix  []byte
}

// Copy refreshes the framebuffer from the world's colour array, resizing it
// to the current window. Colours are stored as 0xRRGGBBAA.
func (fb *Framebuffer) Copy(w *world.World) {
	r := w.Window()
	fb.resize(r.Width(), r.Height())
	stride := w.Width()
	colours := w.Cells.Colour
	for y := 0; y < fb.H; y++ {
		row := (r.Y1+y)*stride + r.X1
		fillColourRow(fb.Pix[y*fb.W*4:(y+1)*fb.W*4], colours[row:row+fb.W])
	}
}

func (fb *Framebuffer) resize(w, h int) {
	if w < 0 {
		w = 0
	}
	if h < 0 {
		h = 0
	}
	fb.W, fb.H = w, h
	n := 4 * w * h
	if cap(fb.Pix) < n {
		fb.Pix = make([]byte, n)
	}
	fb.Pix = fb.Pix[:n]
}

// Image wraps the framebuffer without copying.
func (fb *Framebuffer) Image() *image.RGBA {
	return &image.RGBA{Pix: fb.Pix, Stride: 4 * fb.W, Rect: image.Rect(0, 0, fb.W, fb.H)}
}

// fillColourRow unpacks 0xRRGGBBAA colours into RGBA bytes.
func fillColourRow(buf []byte, colours []uint32) {
	for i, c := range colours {
		base := i * 4
		buf[base+0] = uint8(c >> 24)
		buf[base+1] = uint8(c >> 16)
		buf[base+2] = uint8(c >> 8)
		buf[base+3] = uint8(c)
	}
}
