//go:build ebiten

package ui

import (
	"github.com/hajimehoshi/ebiten/v2"
	"github.com/hajimehoshi/ebiten/v2/inpututil"

	"stardust/internal/world"
)

// Overlay draws optional debugging visuals on top of the grid.
type Overlay struct {
	w     *world.World
	scale int
	kind  int

	img *ebiten.Image
	buf []byte
}

// NewOverlay constructs an overlay for w. Nothing is shown until toggled.
func NewOverlay(w *world.World, scale int) *Overlay {
	return &Overlay{w: w, scale: scale}
}

// Update toggles the lock view on 1 and the settled view on 2.
func (o *Overlay) Update() {
	if inpututil.IsKeyJustPressed(ebiten.KeyDigit1) {
		o.toggle(MaskLocks)
	}
	if inpututil.IsKeyJustPressed(ebiten.KeyDigit2) {
		o.toggle(MaskSettled)
	}
}

func (o *Overlay) toggle(kind int) {
	if o.kind == kind {
		o.kind = 0
		return
	}
	o.kind = kind
}

// Draw renders the active mask onto screen.
func (o *Overlay) Draw(screen *ebiten.Image) {
	if o.kind == 0 {
		return
	}
	r := o.w.Window()
	if r.Empty() {
		return
	}
	o.buf = FillMask(o.w, o.kind, o.buf)
	if o.img == nil || o.img.Bounds().Dx() != r.Width() || o.img.Bounds().Dy() != r.Height() {
		if o.img != nil {
			o.img.Dispose()
		}
		o.img = ebiten.NewImage(r.Width(), r.Height())
	}
	o.img.WritePixels(o.buf)

	op := &ebiten.DrawImageOptions{}
	op.GeoM.Scale(float64(o.scale), float64(o.scale))
	screen.DrawImage(o.img, op)
}
