//go:build ebiten

package render

import (
	"github.com/hajimehoshi/ebiten/v2"

	"stardust/internal/world"
)

// GridPainter uploads the simulation window into an ebiten image.
type GridPainter struct {
	fb  Framebuffer
	img *ebiten.Image
}

// NewGridPainter returns a painter; its image is sized on first use.
func NewGridPainter() *GridPainter { return &GridPainter{} }

// Blit copies the world's colours and draws them scaled onto dst.
func (gp *GridPainter) Blit(dst *ebiten.Image, w *world.World, scale int) {
	gp.fb.Copy(w)
	if gp.fb.W == 0 || gp.fb.H == 0 {
		return
	}
	if gp.img == nil || gp.img.Bounds().Dx() != gp.fb.W || gp.img.Bounds().Dy() != gp.fb.H {
		if gp.img != nil {
			gp.img.Dispose()
		}
		gp.img = ebiten.NewImage(gp.fb.W, gp.fb.H)
	}
	gp.img.WritePixels(gp.fb.Pix)

	op := &ebiten.DrawImageOptions{}
	op.GeoM.Scale(float64(scale), float64(scale))
	dst.DrawImage(gp.img, op)
}

// Size returns the dimensions of the last frame.
func (gp *GridPainter) Size() (int, int) { return gp.fb.W, gp.fb.H }
