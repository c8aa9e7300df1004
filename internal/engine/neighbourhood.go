package engine

import (
	"stardust/internal/world"
)

// heldSet tracks the cell locks a worker currently owns so they can be
// released together, or reclaimed after a crash.
type heldSet struct {
	idx []int
}

func (h *heldSet) add(i int) { h.idx = append(h.idx, i) }

func (h *heldSet) contains(i int) bool {
	for _, j := range h.idx {
		if j == i {
			return true
		}
	}
	return false
}

func (h *heldSet) releaseAll(w *world.World, owner int32) {
	for _, i := range h.idx {
		w.Release(i, owner)
	}
	h.idx = h.idx[:0]
}

// Neighbourhood gives a rule access to the cells around the one it is
// applied to. Every real cell it hands out is locked by the calling worker
// until the rule returns.
type Neighbourhood struct {
	w      *world.World
	rules  *RuleSet
	owner  int32
	tick   int32
	window world.Rect
	centre Cell
	held   *heldSet
}

// Tick returns the tick being simulated.
func (n *Neighbourhood) Tick() int32 { return n.tick }

// Rules returns the rule set, so a rule can ask about its neighbours' types.
func (n *Neighbourhood) Rules() *RuleSet { return n.rules }

// RuleOf returns the rule for c's type, or nil if none is registered.
func (n *Neighbourhood) RuleOf(c Cell) Rule {
	r, _ := n.rules.Lookup(c.Type())
	return r
}

// At returns the cell at offset (dx, dy) from the centre. The second result
// is false when the cell is held by someone else; the rule should report
// Deferred or try another direction.
func (n *Neighbourhood) At(dx, dy int) (Cell, bool) {
	if dx == 0 && dy == 0 {
		return n.centre, true
	}
	x, y := n.centre.x+dx, n.centre.y+dy
	if edge, out := n.window.EdgeOf(x, y); out {
		return Cell{w: n.w, x: x, y: y, virtual: true, typ: n.w.WrappingAt(edge)}, true
	}
	idx := n.w.Index(x, y)
	c := Cell{w: n.w, idx: idx, x: x, y: y}
	if n.held.contains(idx) {
		return c, true
	}
	if !n.w.TryAcquire(idx, n.owner) {
		return Cell{}, false
	}
	n.held.add(idx)
	return c, true
}

// Swap exchanges the contents of two held cells and marks both done for
// this tick. Swapping with a virtual cell is a no-op that reports false.
func (n *Neighbourhood) Swap(a, b Cell) bool {
	if a.virtual || b.virtual {
		return false
	}
	a.swap(b)
	stamp := world.TickStamp(n.tick)
	a.stamp(stamp)
	b.stamp(stamp)
	return true
}
