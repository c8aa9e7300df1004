// Package particles holds the built-in particle rules. Each rule registers
// itself under a fixed type id from init, and Rules assembles them into a
// rule set for the engine.
package particles

import (
	"math"

	"stardust/internal/engine"
	"stardust/internal/world"
)

// Built-in type ids. Air and wall are the ids the engine reserves.
const (
	TypeAir   = world.TypeAir
	TypeWall  = world.TypeWall
	TypeSand  uint8 = 2
	TypeWater uint8 = 3
)

var registry = map[uint8]engine.Rule{}

// Register adds a rule under the provided type id.
func Register(id uint8, r engine.Rule) {
	if r == nil {
		return
	}
	registry[id] = r
}

// Rules builds a rule set from every registered rule.
func Rules() *engine.RuleSet {
	rs := engine.NewRuleSet()
	for id, r := range registry {
		rs.Register(id, r)
	}
	return rs
}

// Motion constants shared by the moving rules, in cells per tick.
const (
	gravity       = 0.5
	terminalSpeed = 1.0
	maxInitiative = 2.0
	diagonalCost  = math.Sqrt2
	lateralCost   = 1.0
)

// ScratchB holds the particle's initiative as float32 bits in the low word
// and, above it, the tick stamp of the last tick gravity was applied.
const (
	accelShift  = 32
	accelMarked = 1 << 40
	accelMask   = accelMarked | 0xff<<accelShift
)

func initiative(c engine.Cell) float32 { return math.Float32frombits(uint32(c.ScratchB())) }

func setInitiative(c engine.Cell, v float32) {
	c.SetScratchB(c.ScratchB()&accelMask | uint64(math.Float32bits(v)))
}

// accelerate applies gravity once per tick and turns speed into initiative,
// the budget of cells the particle may still travel this tick. Retries
// within the same tick return the stored budget.
func accelerate(c engine.Cell, tick int32) float32 {
	ini := initiative(c)
	mark := uint64(accelMarked) | uint64(world.TickStamp(tick))<<accelShift
	if c.ScratchB()&accelMask == mark {
		return ini
	}
	vx, vy := c.Velocity()
	vy = min(vy+gravity, terminalSpeed)
	c.SetVelocity(vx, vy)
	ini = min(ini+float32(math.Hypot(float64(vx), float64(vy))), maxInitiative)
	c.SetScratchB(mark | uint64(math.Float32bits(ini)))
	return ini
}

// canEnter reports whether a particle governed by self may swap into target.
func canEnter(n *engine.Neighbourhood, self engine.Rule, target engine.Cell) bool {
	tr := n.RuleOf(target)
	if tr == nil || tr.Phase() == engine.Solid {
		return false
	}
	return tr.Density() < self.Density()
}

// tryMove attempts each offset in order. It reports Moved on the first swap,
// Deferred if a candidate was contended and nothing moved, and Blocked
// otherwise. The cost is charged before the swap so it travels with the
// particle.
func tryMove(c engine.Cell, n *engine.Neighbourhood, self engine.Rule, ini *float32, cost float32, offsets ...[2]int) engine.Outcome {
	contended := false
	for _, off := range offsets {
		if *ini < cost {
			break
		}
		target, ok := n.At(off[0], off[1])
		if !ok {
			contended = true
			continue
		}
		if !canEnter(n, self, target) {
			continue
		}
		*ini -= cost
		setInitiative(c, *ini)
		n.Swap(c, target)
		return engine.Moved
	}
	if contended {
		return engine.Deferred
	}
	return engine.Blocked
}

// jitter shifts the red, green and blue channels of an RGBA colour by delta.
func jitter(rgba uint32, delta int) uint32 {
	ch := func(shift uint) uint32 {
		v := int(rgba>>shift&0xFF) + delta
		v = max(0, min(255, v))
		return uint32(v) << shift
	}
	return ch(24) | ch(16) | ch(8) | rgba&0xFF
}

func seedFor(c engine.Cell) uint64 { return uint64(c.Y())*65599 + uint64(c.X()) + 1 }
