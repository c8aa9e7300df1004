package particles

import "stardust/internal/engine"

const (
	colourAir  = 0x0000FF44
	colourWall = 0x6E6A64FF
)

// Air is empty space. It never moves by itself; heavier particles swap
// through it.
type Air struct{}

func (Air) Name() string        { return "air" }
func (Air) Static() bool        { return true }
func (Air) Phase() engine.Phase { return engine.Gas }
func (Air) Density() float64    { return 1.185 }
func (Air) Reset(c engine.Cell) { c.SetColour(colourAir) }
func (Air) BaseColour() uint32  { return colourAir }

func (Air) Apply(engine.Cell, *engine.Neighbourhood) engine.Outcome { return engine.Settled }

// Wall is an immovable solid.
type Wall struct{}

func (Wall) Name() string        { return "wall" }
func (Wall) Static() bool        { return true }
func (Wall) Phase() engine.Phase { return engine.Solid }
func (Wall) Density() float64    { return engine.Immovable }
func (Wall) Reset(c engine.Cell) { c.SetColour(colourWall) }
func (Wall) BaseColour() uint32  { return colourWall }

func (Wall) Apply(engine.Cell, *engine.Neighbourhood) engine.Outcome { return engine.Settled }

func init() {
	Register(TypeAir, Air{})
	Register(TypeWall, Wall{})
}
