// Package ui draws the viewer's side panel and debug overlays.
package ui

import (
	"fmt"

	"stardust/internal/engine"
)

// Status is what the side panel shows for one frame.
type Status struct {
	Scene     string
	Seed      int64
	Tick      int32
	TPS       float64
	TargetTPS int
	Workers   int
	Dropped   uint64
	Crashes   uint64
	Paused    bool
	Brush     int
}

// Lines formats the status block.
func (s Status) Lines() []string {
	state := "running"
	if s.Paused {
		state = "paused"
	}
	return []string{
		fmt.Sprintf("%s #%d", s.Scene, s.Seed),
		fmt.Sprintf("tick %d (%s)", s.Tick, state),
		fmt.Sprintf("tps %.0f/%d", s.TPS, s.TargetTPS),
		fmt.Sprintf("workers %d", s.Workers),
		fmt.Sprintf("dropped %d", s.Dropped),
		fmt.Sprintf("crashes %d", s.Crashes),
		fmt.Sprintf("brush %d", s.Brush),
	}
}

// Material is one entry of the paint palette.
type Material struct {
	ID     uint8
	Name   string
	Colour uint32
}

// colourer is implemented by rules with a base colour.
type colourer interface {
	BaseColour() uint32
}

// Palette lists the registered particle types in id order.
func Palette(rules *engine.RuleSet) []Material {
	var out []Material
	for _, id := range rules.Types() {
		r, _ := rules.Lookup(id)
		m := Material{ID: id, Name: r.Name(), Colour: 0x808080FF}
		if c, ok := r.(colourer); ok {
			m.Colour = c.BaseColour()
		}
		out = append(out, m)
	}
	return out
}
