package particles

import (
	"stardust/internal/engine"
	"stardust/pkg/core"
)

const colourSand = 0xAC844AFF

// Sand is a granular solid. It falls under gravity, slides off slopes at
// 45° and sinks through anything lighter that is not itself solid.
type Sand struct{}

func (Sand) Name() string        { return "sand" }
func (Sand) Static() bool        { return false }
func (Sand) Phase() engine.Phase { return engine.Solid }
func (Sand) Density() float64    { return 1602 }
func (Sand) BaseColour() uint32  { return colourSand }

func (Sand) Reset(c engine.Cell) {
	rng := core.NewRNG(seedFor(c))
	c.SetColour(jitter(colourSand, rng.Intn(17)-8))
	c.SetScratchA(rng.State())
}

func (s Sand) Apply(c engine.Cell, n *engine.Neighbourhood) engine.Outcome {
	ini := accelerate(c, n.Tick())
	if ini < 1 {
		setInitiative(c, ini)
		return engine.Settled
	}
	switch out := tryMove(c, n, s, &ini, 1, [2]int{0, 1}); out {
	case engine.Moved:
		return out
	case engine.Deferred:
		setInitiative(c, ini)
		return out
	}

	rng := core.NewRNG(c.ScratchA())
	dir := rng.Sign()
	c.SetScratchA(rng.State())
	out := tryMove(c, n, s, &ini, diagonalCost, [2]int{dir, 1}, [2]int{-dir, 1})
	switch out {
	case engine.Moved:
		return out
	case engine.Deferred:
		setInitiative(c, ini)
		return out
	}
	// Grains lose all momentum on contact.
	c.SetVelocity(0, 0)
	setInitiative(c, 0)
	return engine.Blocked
}

func init() {
	Register(TypeSand, Sand{})
}
