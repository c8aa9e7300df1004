package engine

import (
	"stardust/internal/world"
)

// Cell is a handle on one grid cell held by the caller. Cells outside the
// simulation window are virtual: they report the edge's wrapping type and
// ignore writes.
type Cell struct {
	w       *world.World
	idx     int
	x, y    int
	virtual bool
	typ     uint8
}

// X returns the cell's column.
func (c Cell) X() int { return c.x }

// Y returns the cell's row.
func (c Cell) Y() int { return c.y }

// Virtual reports whether the cell lies beyond the window edge.
func (c Cell) Virtual() bool { return c.virtual }

func (c Cell) Type() uint8 {
	if c.virtual {
		return c.typ
	}
	return c.w.Cells.Type[c.idx]
}

func (c Cell) SetType(t uint8) {
	if !c.virtual {
		c.w.Cells.Type[c.idx] = t
	}
}

func (c Cell) Stage() uint8 {
	if c.virtual {
		return world.StageSettled
	}
	return c.w.Cells.Stage[c.idx]
}

func (c Cell) Colour() uint32 {
	if c.virtual {
		return 0
	}
	return c.w.Cells.Colour[c.idx]
}

func (c Cell) SetColour(v uint32) {
	if !c.virtual {
		c.w.Cells.Colour[c.idx] = v
	}
}

func (c Cell) Velocity() (float32, float32) {
	if c.virtual {
		return 0, 0
	}
	return c.w.Cells.VelocityX[c.idx], c.w.Cells.VelocityY[c.idx]
}

func (c Cell) SetVelocity(vx, vy float32) {
	if !c.virtual {
		c.w.Cells.VelocityX[c.idx] = vx
		c.w.Cells.VelocityY[c.idx] = vy
	}
}

func (c Cell) Subpixel() (float32, float32) {
	if c.virtual {
		return 0, 0
	}
	return c.w.Cells.SubpixelX[c.idx], c.w.Cells.SubpixelY[c.idx]
}

func (c Cell) SetSubpixel(sx, sy float32) {
	if !c.virtual {
		c.w.Cells.SubpixelX[c.idx] = sx
		c.w.Cells.SubpixelY[c.idx] = sy
	}
}

func (c Cell) Mass() float32 {
	if c.virtual {
		return 0
	}
	return c.w.Cells.Mass[c.idx]
}

func (c Cell) SetMass(m float32) {
	if !c.virtual {
		c.w.Cells.Mass[c.idx] = m
	}
}

func (c Cell) Temperature() float32 {
	if c.virtual {
		return 0
	}
	return c.w.Cells.Temperature[c.idx]
}

func (c Cell) SetTemperature(t float32) {
	if !c.virtual {
		c.w.Cells.Temperature[c.idx] = t
	}
}

// ScratchA and ScratchB are opaque per-rule state.
func (c Cell) ScratchA() uint64 {
	if c.virtual {
		return 0
	}
	return c.w.Cells.ScratchA[c.idx]
}

func (c Cell) SetScratchA(v uint64) {
	if !c.virtual {
		c.w.Cells.ScratchA[c.idx] = v
	}
}

func (c Cell) ScratchB() uint64 {
	if c.virtual {
		return 0
	}
	return c.w.Cells.ScratchB[c.idx]
}

func (c Cell) SetScratchB(v uint64) {
	if !c.virtual {
		c.w.Cells.ScratchB[c.idx] = v
	}
}

// ResetCommon clears the physical attributes every type shares.
func (c Cell) ResetCommon() {
	c.SetVelocity(0, 0)
	c.SetSubpixel(0, 0)
	c.SetMass(0)
	c.SetTemperature(0)
	c.SetScratchA(0)
	c.SetScratchB(0)
}

// swap exchanges every attribute except the lock between two held cells.
func (c Cell) swap(o Cell) {
	cs := &c.w.Cells
	a, b := c.idx, o.idx
	cs.Type[a], cs.Type[b] = cs.Type[b], cs.Type[a]
	cs.TickParity[a], cs.TickParity[b] = cs.TickParity[b], cs.TickParity[a]
	cs.Stage[a], cs.Stage[b] = cs.Stage[b], cs.Stage[a]
	cs.Colour[a], cs.Colour[b] = cs.Colour[b], cs.Colour[a]
	cs.VelocityX[a], cs.VelocityX[b] = cs.VelocityX[b], cs.VelocityX[a]
	cs.VelocityY[a], cs.VelocityY[b] = cs.VelocityY[b], cs.VelocityY[a]
	cs.SubpixelX[a], cs.SubpixelX[b] = cs.SubpixelX[b], cs.SubpixelX[a]
	cs.SubpixelY[a], cs.SubpixelY[b] = cs.SubpixelY[b], cs.SubpixelY[a]
	cs.Mass[a], cs.Mass[b] = cs.Mass[b], cs.Mass[a]
	cs.Temperature[a], cs.Temperature[b] = cs.Temperature[b], cs.Temperature[a]
	cs.ScratchA[a], cs.ScratchA[b] = cs.ScratchA[b], cs.ScratchA[a]
	cs.ScratchB[a], cs.ScratchB[b] = cs.ScratchB[b], cs.ScratchB[a]
}

// stamp marks the cell done for the tick whose world.TickStamp is ts.
func (c Cell) stamp(ts uint8) {
	if c.virtual {
		return
	}
	c.w.Cells.TickParity[c.idx] = ts
	c.w.Cells.Stage[c.idx] = world.StageSettled
}
