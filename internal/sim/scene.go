package sim

import (
	"fmt"

	"stardust/internal/engine"
	"stardust/internal/particles"
	"stardust/internal/world"
	"stardust/pkg/core"
)

// Populate paints a named scene into the editor's window.
func Populate(ed *engine.Editor, scene string, seed int64) error {
	build, ok := scenes[scene]
	if !ok {
		return fmt.Errorf("unknown scene %q", scene)
	}
	if _, err := ed.Fill(particles.TypeAir); err != nil {
		return err
	}
	return build(ed, ed.Window(), core.NewRNG(uint64(seed)))
}

type sceneFunc func(ed *engine.Editor, r world.Rect, rng core.RNG) error

var scenes = map[string]sceneFunc{
	"empty": func(*engine.Editor, world.Rect, core.RNG) error { return nil },
	"box": func(ed *engine.Editor, _ world.Rect, _ core.RNG) error {
		_, err := ed.Border(particles.TypeWall)
		return err
	},
	"sandbox":   sandbox,
	"hourglass": hourglass,
}

// sandbox is a walled box with a sand heap falling into a water pool and a
// sprinkling of loose grains.
func sandbox(ed *engine.Editor, r world.Rect, rng core.RNG) error {
	if _, err := ed.Border(particles.TypeWall); err != nil {
		return err
	}
	w, h := r.Width(), r.Height()
	if _, err := ed.Rect(r.X1+1, r.Y1+h*3/4, r.X1+w/2, r.Y2-2, particles.TypeWater); err != nil {
		return err
	}
	if _, err := ed.Dot(r.X1+w/2, r.Y1+h/4, max(1, min(w, h)/8), particles.TypeSand); err != nil {
		return err
	}
	for i := 0; i < w*h/64; i++ {
		x := r.X1 + 1 + rng.Intn(max(1, w-2))
		y := r.Y1 + 1 + rng.Intn(max(1, h/2))
		if err := ed.Set(x, y, particles.TypeSand); err != nil {
			return err
		}
	}
	return nil
}

// hourglass funnels a block of sand through a one-cell gap.
func hourglass(ed *engine.Editor, r world.Rect, _ core.RNG) error {
	if _, err := ed.Border(particles.TypeWall); err != nil {
		return err
	}
	w, h := r.Width(), r.Height()
	cx, cy := r.X1+w/2, r.Y1+h/2
	reach := min(w/2-1, h/2-1)
	if reach < 2 {
		return nil
	}
	if _, err := ed.Line(cx-reach, cy-reach, cx-1, cy-1, 0, particles.TypeWall); err != nil {
		return err
	}
	if _, err := ed.Line(cx+reach, cy-reach, cx+1, cy-1, 0, particles.TypeWall); err != nil {
		return err
	}
	for y := cy - reach + 1; y < cy-reach/2; y++ {
		d := cy - y
		if _, err := ed.Rect(cx-d+1, y, cx+d-1, y, particles.TypeSand); err != nil {
			return err
		}
	}
	return nil
}
