package render

import (
	"context"
	"image/color"
	"testing"

	"stardust/internal/world"
)

func TestFramebufferCopiesWindow(t *testing.T) {
	w, err := world.New(world.Options{MaxWidth: 4, MaxHeight: 3, MaxWorkers: 1})
	if err != nil {
		t.Fatalf("world.New: %v", err)
	}
	defer w.Close()
	w.Cells.Colour[w.Index(1, 1)] = 0x11223344
	w.Cells.Colour[w.Index(2, 2)] = 0xAABBCCDD

	var fb Framebuffer
	fb.Copy(w)
	if fb.W != 4 || fb.H != 3 || len(fb.Pix) != 48 {
		t.Fatalf("framebuffer %dx%d with %d bytes", fb.W, fb.H, len(fb.Pix))
	}
	if got := fb.Image().RGBAAt(1, 1); got != (color.RGBA{R: 0x11, G: 0x22, B: 0x33, A: 0x44}) {
		t.Fatalf("pixel (1,1) = %v", got)
	}

	if err := w.SetWindow(context.Background(), world.DefaultLockOptions(), world.Rect{X1: 1, Y1: 1, X2: 3, Y2: 3}); err != nil {
		t.Fatalf("SetWindow: %v", err)
	}
	before := &fb.Pix[0]
	fb.Copy(w)
	if fb.W != 2 || fb.H != 2 {
		t.Fatalf("framebuffer %dx%d after shrinking the window", fb.W, fb.H)
	}
	if &fb.Pix[0] != before {
		t.Fatal("shrinking must reuse the allocation")
	}
	img := fb.Image()
	if got := img.RGBAAt(0, 0); got != (color.RGBA{R: 0x11, G: 0x22, B: 0x33, A: 0x44}) {
		t.Fatalf("window origin = %v", got)
	}
	if got := img.RGBAAt(1, 1); got != (color.RGBA{R: 0xAA, G: 0xBB, B: 0xCC, A: 0xDD}) {
		t.Fatalf("window (1,1) = %v", got)
	}
}
