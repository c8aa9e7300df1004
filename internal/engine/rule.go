// Package engine runs particle rules over a shared world with a fixed pool of
// workers synchronised by a global tick barrier.
//
// The coordinator advances the tick only when every worker has reported idle.
// Each worker then scans the whole simulation window, alternating direction
// between passes, and claims cells one at a time with a compare-and-swap on
// the cell's lock word. A rule only ever sees cells its worker holds.
package engine

import (
	"fmt"
	"math"
	"sort"
)

// Outcome is what a rule reports after one application to a cell.
type Outcome uint8

const (
	// Settled means the cell has nothing more to do this tick.
	Settled Outcome = iota
	// Moved means the rule changed the grid; the touched cells are done for
	// this tick.
	Moved
	// Blocked means the ideal move was impossible. The cell's stage advances
	// and it is retried on a later pass until it settles.
	Blocked
	// Deferred means a neighbour could not be locked. The cell is retried on a
	// later pass without advancing its stage.
	Deferred
)

func (o Outcome) String() string {
	switch o {
	case Settled:
		return "settled"
	case Moved:
		return "moved"
	case Blocked:
		return "blocked"
	case Deferred:
		return "deferred"
	default:
		return fmt.Sprintf("outcome(%d)", uint8(o))
	}
}

// Phase is the state of matter a rule simulates.
type Phase uint8

const (
	Gas Phase = iota
	Liquid
	Solid
)

// Immovable is the density of particles nothing can displace.
var Immovable = math.Inf(1)

// Rule is the pluggable behaviour of one particle type.
type Rule interface {
	// Name identifies the type in logs and tools.
	Name() string
	// Static rules are never applied; their cells settle immediately.
	Static() bool
	Phase() Phase
	// Density in kg/m³. Lighter particles are displaced by heavier ones.
	Density() float64
	// Reset initialises a cell that has just become this type.
	Reset(c Cell)
	// Apply advances the cell. It may only touch c and cells obtained from n.
	Apply(c Cell, n *Neighbourhood) Outcome
}

// RuleSet maps particle type ids to rules.
type RuleSet struct {
	rules [256]Rule
}

// NewRuleSet returns an empty rule set.
func NewRuleSet() *RuleSet { return &RuleSet{} }

// Register binds a rule to a type id, replacing any previous binding.
func (rs *RuleSet) Register(id uint8, r Rule) {
	if r == nil {
		return
	}
	rs.rules[id] = r
}

// Lookup returns the rule for a type id.
func (rs *RuleSet) Lookup(id uint8) (Rule, bool) {
	r := rs.rules[id]
	return r, r != nil
}

// ByName finds a type id by rule name.
func (rs *RuleSet) ByName(name string) (uint8, bool) {
	for id, r := range rs.rules {
		if r != nil && r.Name() == name {
			return uint8(id), true
		}
	}
	return 0, false
}

// Types lists the registered type ids in ascending order.
func (rs *RuleSet) Types() []uint8 {
	var out []uint8
	for id, r := range rs.rules {
		if r != nil {
			out = append(out, uint8(id))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// mustLookup panics on unregistered types. Inside a worker the panic is caught
// at the tick boundary and handled as a crash.
func (rs *RuleSet) mustLookup(id uint8) Rule {
	r := rs.rules[id]
	if r == nil {
		panic(fmt.Sprintf("engine: unknown particle type %d", id))
	}
	return r
}
