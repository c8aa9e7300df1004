package engine

import (
	"errors"
	"fmt"
	"runtime"

	"stardust/internal/world"
)

var (
	// ErrUnknownType is returned when painting a type with no rule.
	ErrUnknownType = errors.New("unknown particle type")
	// ErrCellBusy is returned when a cell stayed locked through every retry.
	ErrCellBusy = errors.New("cell busy")
)

const (
	editSpins    = 64
	editAttempts = 4096
)

// EditResult counts the cells an edit touched.
type EditResult struct {
	Changed int
	Skipped int
}

func (r *EditResult) add(o EditResult) {
	r.Changed += o.Changed
	r.Skipped += o.Skipped
}

// Editor mutates cells from outside the worker pool, taking each cell's lock
// like any worker would.
type Editor struct {
	w     *world.World
	rules *RuleSet
	owner int32
}

// NewEditor returns an editor that locks cells as owner, or as the main
// thread if owner is zero.
func NewEditor(w *world.World, rules *RuleSet, owner int32) *Editor {
	if owner == world.OwnerNone {
		owner = world.OwnerMain
	}
	return &Editor{w: w, rules: rules, owner: owner}
}

// Window returns the rectangle edits are clipped to.
func (e *Editor) Window() world.Rect { return e.w.Window() }

func (e *Editor) acquire(idx int) bool {
	for i := 0; i < editAttempts; i++ {
		if e.w.TryAcquire(idx, e.owner) {
			return true
		}
		if i >= editSpins {
			runtime.Gosched()
		}
	}
	return false
}

// Set turns the cell at (x, y) into a fresh particle of type typ. Cells
// outside the window are ignored.
func (e *Editor) Set(x, y int, typ uint8) error {
	rule, ok := e.rules.Lookup(typ)
	if !ok {
		return fmt.Errorf("editor: %w %d", ErrUnknownType, typ)
	}
	if !e.w.Window().Contains(x, y) {
		return nil
	}
	idx := e.w.Index(x, y)
	if !e.acquire(idx) {
		return fmt.Errorf("editor: (%d,%d): %w", x, y, ErrCellBusy)
	}
	defer e.w.Release(idx, e.owner)

	c := Cell{w: e.w, idx: idx, x: x, y: y}
	c.ResetCommon()
	c.SetType(typ)
	rule.Reset(c)
	c.stamp(world.TickStamp(e.w.Tick()))
	return nil
}

// Pick returns the type at (x, y). The second result is false outside the
// window or if the cell could not be locked.
func (e *Editor) Pick(x, y int) (uint8, bool) {
	if !e.w.Window().Contains(x, y) {
		return 0, false
	}
	idx := e.w.Index(x, y)
	if !e.acquire(idx) {
		return 0, false
	}
	typ := e.w.Cells.Type[idx]
	e.w.Release(idx, e.owner)
	return typ, true
}

func (e *Editor) apply(x, y int, typ uint8, res *EditResult) error {
	if !e.w.Window().Contains(x, y) {
		return nil
	}
	err := e.Set(x, y, typ)
	switch {
	case err == nil:
		res.Changed++
	case errors.Is(err, ErrCellBusy):
		res.Skipped++
	default:
		return err
	}
	return nil
}

// Dot paints a filled disc of the given radius. Radius zero is one cell.
func (e *Editor) Dot(x, y, radius int, typ uint8) (EditResult, error) {
	var res EditResult
	if radius < 0 {
		radius = 0
	}
	r2 := radius * radius
	for dy := -radius; dy <= radius; dy++ {
		for dx := -radius; dx <= radius; dx++ {
			if dx*dx+dy*dy > r2 {
				continue
			}
			if err := e.apply(x+dx, y+dy, typ, &res); err != nil {
				return res, err
			}
		}
	}
	return res, nil
}

// Line paints dots of the given radius along a Bresenham line.
func (e *Editor) Line(x1, y1, x2, y2, radius int, typ uint8) (EditResult, error) {
	var res EditResult
	dx, dy := abs(x2-x1), -abs(y2-y1)
	sx, sy := sign(x2-x1), sign(y2-y1)
	d := dx + dy
	x, y := x1, y1
	for {
		r, derr := e.Dot(x, y, radius, typ)
		res.add(r)
		if derr != nil {
			return res, derr
		}
		if x == x2 && y == y2 {
			return res, nil
		}
		d2 := 2 * d
		if d2 >= dy {
			d += dy
			x += sx
		}
		if d2 <= dx {
			d += dx
			y += sy
		}
	}
}

// Rect fills the inclusive rectangle between two corners.
func (e *Editor) Rect(x1, y1, x2, y2 int, typ uint8) (EditResult, error) {
	var res EditResult
	if x1 > x2 {
		x1, x2 = x2, x1
	}
	if y1 > y2 {
		y1, y2 = y2, y1
	}
	for y := y1; y <= y2; y++ {
		for x := x1; x <= x2; x++ {
			if err := e.apply(x, y, typ, &res); err != nil {
				return res, err
			}
		}
	}
	return res, nil
}

// Fill paints the whole window.
func (e *Editor) Fill(typ uint8) (EditResult, error) {
	r := e.w.Window()
	return e.Rect(r.X1, r.Y1, r.X2-1, r.Y2-1, typ)
}

// Border paints the outermost ring of the window.
func (e *Editor) Border(typ uint8) (EditResult, error) {
	r := e.w.Window()
	var res EditResult
	edges := [][4]int{
		{r.X1, r.Y1, r.X2 - 1, r.Y1},
		{r.X1, r.Y2 - 1, r.X2 - 1, r.Y2 - 1},
		{r.X1, r.Y1 + 1, r.X1, r.Y2 - 2},
		{r.X2 - 1, r.Y1 + 1, r.X2 - 1, r.Y2 - 2},
	}
	for _, ed := range edges {
		if ed[1] > ed[3] {
			continue
		}
		sub, err := e.Rect(ed[0], ed[1], ed[2], ed[3], typ)
		res.add(sub)
		if err != nil {
			return res, err
		}
	}
	return res, nil
}

func abs(v int) int {
	if v < 0 {
		return -v
	}
	return v
}

func sign(v int) int {
	switch {
	case v < 0:
		return -1
	case v > 0:
		return 1
	}
	return 0
}
