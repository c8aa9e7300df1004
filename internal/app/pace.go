package app

import "time"

// maxCatchUp bounds how many ticks one frame may request after a stall.
const maxCatchUp = 4

// Pace converts wall-clock frames into coordinator ticks at a target rate.
type Pace struct {
	step        time.Duration
	accumulator time.Duration
	last        time.Time
}

// NewPace returns a Pace targeting tps ticks per second.
func NewPace(tps int) *Pace {
	p := &Pace{}
	p.SetTPS(tps)
	return p
}

// SetTPS changes the tick rate.
func (p *Pace) SetTPS(tps int) {
	if tps <= 0 {
		tps = 60
	}
	p.step = time.Second / time.Duration(tps)
}

// TPS returns the target rate.
func (p *Pace) TPS() int { return int(time.Second / p.step) }

// Due reports how many ticks are owed at now. The first call owes one.
func (p *Pace) Due(now time.Time) int {
	if p.last.IsZero() {
		p.last = now
		p.accumulator = p.step
	}
	p.accumulator += now.Sub(p.last)
	p.last = now
	n := int(p.accumulator / p.step)
	if n > maxCatchUp {
		n = maxCatchUp
		p.accumulator = 0
		return n
	}
	p.accumulator -= time.Duration(n) * p.step
	return n
}

// Reset forgets accumulated time, for example after unpausing.
func (p *Pace) Reset() {
	p.last = time.Time{}
	p.accumulator = 0
}
