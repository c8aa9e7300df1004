package particles

import (
	"stardust/internal/engine"
	"stardust/pkg/core"
)

const colourWater = 0x2F6FD8CC

// Water is a liquid. It falls like sand, then spreads sideways when it
// cannot fall any further.
type Water struct{}

func (Water) Name() string        { return "water" }
func (Water) Static() bool        { return false }
func (Water) Phase() engine.Phase { return engine.Liquid }
func (Water) Density() float64    { return 997 }
func (Water) BaseColour() uint32  { return colourWater }

func (Water) Reset(c engine.Cell) {
	rng := core.NewRNG(seedFor(c))
	c.SetColour(jitter(colourWater, rng.Intn(9)-4))
	c.SetScratchA(rng.State())
}

func (wt Water) Apply(c engine.Cell, n *engine.Neighbourhood) engine.Outcome {
	ini := accelerate(c, n.Tick())
	if ini < 1 {
		setInitiative(c, ini)
		return engine.Settled
	}
	rng := core.NewRNG(c.ScratchA())
	dir := rng.Sign()
	c.SetScratchA(rng.State())

	contended := false
	steps := []struct {
		cost    float32
		offsets [][2]int
	}{
		{1, [][2]int{{0, 1}}},
		{diagonalCost, [][2]int{{dir, 1}, {-dir, 1}}},
		{lateralCost, [][2]int{{dir, 0}, {-dir, 0}}},
	}
	for _, st := range steps {
		switch tryMove(c, n, wt, &ini, st.cost, st.offsets...) {
		case engine.Moved:
			return engine.Moved
		case engine.Deferred:
			contended = true
		}
	}
	if contended {
		setInitiative(c, ini)
		return engine.Deferred
	}
	c.SetVelocity(0, 0)
	setInitiative(c, 0)
	return engine.Blocked
}

func init() {
	Register(TypeWater, Water{})
}
