//go:build ebiten

package ui

import (
	"image"
	"image/color"

	"github.com/hajimehoshi/ebiten/v2"
	"github.com/hajimehoshi/ebiten/v2/inpututil"
	"github.com/hajimehoshi/ebiten/v2/text"
	"golang.org/x/image/font/basicfont"
)

// HUD renders the status and palette panel to the right of the simulation
// view.
type HUD struct {
	width      int
	panel      *ebiten.Image
	lastHeight int

	palette  []Material
	buttons  []image.Rectangle
	selected int

	panelOffsetX int
	pixel        *ebiten.Image
}

// NewHUD constructs a HUD for the palette and panel width.
func NewHUD(palette []Material, width int) *HUD {
	if width < 0 {
		width = 0
	}
	h := &HUD{width: width, palette: palette}
	if width > 0 {
		h.pixel = ebiten.NewImage(1, 1)
		h.pixel.Fill(color.White)
	}
	h.layoutButtons()
	return h
}

// Selected returns the material chosen for painting.
func (h *HUD) Selected() Material {
	if h == nil || len(h.palette) == 0 {
		return Material{}
	}
	return h.palette[h.selected]
}

// Cycle moves the selection by delta, wrapping around.
func (h *HUD) Cycle(delta int) {
	if h == nil || len(h.palette) == 0 {
		return
	}
	n := len(h.palette)
	h.selected = ((h.selected+delta)%n + n) % n
}

// Update handles palette clicks. It reports whether the click landed on the
// panel so the caller does not paint with it.
func (h *HUD) Update(panelOffsetX int) bool {
	if h == nil || h.width <= 0 {
		return false
	}
	h.panelOffsetX = panelOffsetX
	mx, my := ebiten.CursorPosition()
	if mx < panelOffsetX {
		return false
	}
	if !inpututil.IsMouseButtonJustPressed(ebiten.MouseButtonLeft) {
		return true
	}
	localX := mx - panelOffsetX
	for i, rect := range h.buttons {
		if pointInRect(localX, my, rect) {
			h.selected = i
			break
		}
	}
	return true
}

// Draw paints the panel anchored at offsetX.
func (h *HUD) Draw(screen *ebiten.Image, offsetX, height int, st Status) {
	if h == nil || h.width <= 0 || height <= 0 {
		return
	}
	if h.panel == nil || h.lastHeight != height {
		if h.panel != nil {
			h.panel.Dispose()
		}
		h.panel = ebiten.NewImage(h.width, height)
		h.lastHeight = height
	}
	h.panel.Fill(color.RGBA{R: 16, G: 16, B: 20, A: 255})

	face := basicfont.Face7x13
	y := panelPadding + headerBaseline
	for i, line := range st.Lines() {
		col := color.RGBA{R: 160, G: 160, B: 170, A: 255}
		if i == 0 {
			col = color.RGBA{R: 200, G: 200, B: 210, A: 255}
		}
		text.Draw(h.panel, line, face, panelPadding, y, col)
		y += lineSpacing
	}
	for i, m := range h.palette {
		h.drawButton(h.buttons[i], m, i == h.selected)
	}

	op := &ebiten.DrawImageOptions{}
	op.GeoM.Translate(float64(offsetX), 0)
	screen.DrawImage(h.panel, op)
}

func (h *HUD) drawButton(rect image.Rectangle, m Material, selected bool) {
	if h.pixel == nil {
		return
	}
	bg := color.RGBA{R: 32, G: 34, B: 40, A: 255}
	if selected {
		bg = color.RGBA{R: 70, G: 72, B: 84, A: 255}
	}
	h.fillRect(rect, bg)
	swatch := image.Rect(rect.Min.X+4, rect.Min.Y+4, rect.Min.X+4+swatchSize, rect.Min.Y+4+swatchSize)
	h.fillRect(swatch, color.RGBA{R: uint8(m.Colour >> 24), G: uint8(m.Colour >> 16), B: uint8(m.Colour >> 8), A: 255})

	face := basicfont.Face7x13
	bounds := text.BoundString(face, m.Name)
	x := swatch.Max.X + buttonGap
	y := rect.Min.Y + (rect.Dy()-bounds.Dy())/2 + bounds.Dy()
	text.Draw(h.panel, m.Name, face, x, y, color.RGBA{R: 230, G: 230, B: 240, A: 255})
}

func (h *HUD) fillRect(rect image.Rectangle, col color.RGBA) {
	op := &ebiten.DrawImageOptions{}
	op.GeoM.Scale(float64(rect.Dx()), float64(rect.Dy()))
	op.GeoM.Translate(float64(rect.Min.X), float64(rect.Min.Y))
	op.ColorScale.ScaleWithColor(col)
	h.panel.DrawImage(h.pixel, op)
}

func (h *HUD) layoutButtons() {
	h.buttons = h.buttons[:0]
	top := paletteTop
	for range h.palette {
		h.buttons = append(h.buttons, image.Rect(panelPadding, top, h.width-panelPadding, top+buttonHeight))
		top += buttonHeight + buttonGap
	}
}

func pointInRect(x, y int, rect image.Rectangle) bool {
	return x >= rect.Min.X && x < rect.Max.X && y >= rect.Min.Y && y < rect.Max.Y
}

const (
	panelPadding   = 12
	headerBaseline = 18
	lineSpacing    = 16
	buttonHeight   = 24
	buttonGap      = 6
	swatchSize     = 16
	paletteTop     = panelPadding + headerBaseline + 7*lineSpacing + 8
)
