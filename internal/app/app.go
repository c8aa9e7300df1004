//go:build ebiten

package app

import (
	"context"
	"time"

	"github.com/hajimehoshi/ebiten/v2"
	"github.com/hajimehoshi/ebiten/v2/inpututil"

	"stardust/internal/particles"
	"stardust/internal/render"
	"stardust/internal/sim"
	"stardust/internal/ui"
)

const hudWidth = 180

// Game adapts a running simulation to the ebiten.Game interface. Ticks are
// advanced through the coordinator; when the previous tick is still running
// the frame's tick is dropped rather than waited for.
type Game struct {
	sim     *sim.Sim
	painter *render.GridPainter
	overlay *ui.Overlay
	hud     *ui.HUD
	pace    *Pace

	scale    int
	brush    int
	paused   bool
	tickOnce bool
	seed     int64

	lastX, lastY int
	drawing      bool

	startTick int32
	started   time.Time
}

// New constructs a Game for the provided simulation.
func New(s *sim.Sim) *Game {
	cfg := s.Config()
	g := &Game{
		sim:       s,
		painter:   render.NewGridPainter(),
		overlay:   ui.NewOverlay(s.World, cfg.Viewer.Scale),
		hud:       ui.NewHUD(ui.Palette(s.Rules), hudWidth),
		pace:      NewPace(cfg.Engine.TPS),
		scale:     cfg.Viewer.Scale,
		brush:     cfg.Viewer.Brush,
		seed:      cfg.Scene.Seed,
		startTick: s.World.Tick(),
		started:   time.Now(),
	}
	g.hud.Cycle(int(particles.TypeSand))
	return g
}

// Reset repaints the configured scene with the provided seed.
func (g *Game) Reset(seed int64) {
	g.seed = seed
	if err := sim.Populate(g.sim.Editor, g.sim.Config().Scene.Name, seed); err != nil {
		g.sim.Logger().Warn("reset failed", "error", err)
	}
	g.tickOnce = false
}

// Update handles per-frame input and advances the simulation.
func (g *Game) Update() error {
	if inpututil.IsKeyJustPressed(ebiten.KeyQ) || inpututil.IsKeyJustPressed(ebiten.KeyEscape) {
		return ebiten.Termination
	}
	if inpututil.IsKeyJustPressed(ebiten.KeySpace) {
		g.paused = !g.paused
		g.pace.Reset()
	}
	if inpututil.IsKeyJustPressed(ebiten.KeyN) {
		g.tickOnce = true
	}
	if inpututil.IsKeyJustPressed(ebiten.KeyR) {
		g.Reset(g.seed)
	}
	if inpututil.IsKeyJustPressed(ebiten.KeyS) {
		g.Reset(time.Now().UnixNano())
	}
	if inpututil.IsKeyJustPressed(ebiten.KeyTab) {
		g.hud.Cycle(1)
	}
	if inpututil.IsKeyJustPressed(ebiten.KeyBracketLeft) && g.brush > 0 {
		g.brush--
	}
	if inpututil.IsKeyJustPressed(ebiten.KeyBracketRight) {
		g.brush++
	}

	g.overlay.Update()
	onPanel := g.hud.Update(g.gridWidth() * g.scale)
	if !onPanel {
		g.paint()
	} else {
		g.drawing = false
	}

	switch {
	case g.tickOnce:
		g.sim.Coord.Advance()
		g.tickOnce = false
	case !g.paused:
		// Owed ticks beyond the first would only find the workers busy.
		if g.pace.Due(time.Now()) > 0 {
			g.sim.Coord.Advance()
		}
	}
	return nil
}

// paint draws with the selected material on the left button and erases to
// air on the right, joining consecutive cursor positions with a line.
func (g *Game) paint() {
	left := ebiten.IsMouseButtonPressed(ebiten.MouseButtonLeft)
	right := ebiten.IsMouseButtonPressed(ebiten.MouseButtonRight)
	if !left && !right {
		g.drawing = false
		return
	}
	typ := g.hud.Selected().ID
	if right {
		typ = particles.TypeAir
	}
	mx, my := ebiten.CursorPosition()
	r := g.sim.World.Window()
	x, y := r.X1+mx/g.scale, r.Y1+my/g.scale
	if !g.drawing {
		g.lastX, g.lastY = x, y
		g.drawing = true
	}
	if _, err := g.sim.Editor.Line(g.lastX, g.lastY, x, y, g.brush, typ); err != nil {
		g.sim.Logger().Warn("paint failed", "error", err)
	}
	g.lastX, g.lastY = x, y
}

// Draw renders the current simulation state.
func (g *Game) Draw(screen *ebiten.Image) {
	g.painter.Blit(screen, g.sim.World, g.scale)
	g.overlay.Draw(screen)

	cs := g.sim.Coord.Stats()
	ps := g.sim.Pool.Stats()
	g.hud.Draw(screen, g.gridWidth()*g.scale, g.gridHeight()*g.scale, ui.Status{
		Scene:     g.sim.Config().Scene.Name,
		Seed:      g.seed,
		Tick:      g.sim.World.Tick(),
		TPS:       ebiten.ActualTPS(),
		TargetTPS: g.pace.TPS(),
		Workers:   ps.Workers,
		Dropped:   cs.Dropped,
		Crashes:   ps.Crashes,
		Paused:    g.paused,
		Brush:     g.brush,
	})
}

// Layout returns the logical screen size.
func (g *Game) Layout(outsideWidth, outsideHeight int) (int, int) {
	return g.gridWidth()*g.scale + hudWidth, g.gridHeight() * g.scale
}

func (g *Game) gridWidth() int  { return g.sim.World.Window().Width() }
func (g *Game) gridHeight() int { return g.sim.World.Window().Height() }

// Close waits for the last tick and records the session in the journal.
func (g *Game) Close() error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := g.sim.Coord.WaitIdle(ctx); err != nil {
		return err
	}
	_, err := g.sim.Finish(g.startTick, time.Since(g.started))
	return err
}
