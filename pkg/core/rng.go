package core

// Lehmer generator constants (MINSTD).
const (
	lehmerMul = 16807
	lehmerMod = 1<<31 - 1
)

// RNG is a Lehmer generator small enough to live in a cell's scratch word.
// Its whole state is one value in [1, 2^31-2], so a particle can carry its
// own deterministic stream from tick to tick.
type RNG struct {
	state uint32
}

// NewRNG creates a generator from any seed. Seeds that reduce to zero are
// replaced by one.
func NewRNG(seed uint64) RNG {
	s := uint32(seed % lehmerMod)
	if s == 0 {
		s = 1
	}
	return RNG{state: s}
}

// State returns the value to store back in scratch.
func (r *RNG) State() uint64 { return uint64(r.state) }

// Next advances the generator and returns a value in [1, 2^31-2].
func (r *RNG) Next() uint32 {
	if r.state == 0 {
		r.state = 1
	}
	r.state = uint32(uint64(r.state) * lehmerMul % lehmerMod)
	return r.state
}

// Float returns a value in (0, 1).
func (r *RNG) Float() float64 { return float64(r.Next()) / lehmerMod }

// Bool returns a random boolean value.
func (r *RNG) Bool() bool { return r.Next()&1 == 1 }

// Intn returns a value in [0, n).
func (r *RNG) Intn(n int) int {
	if n <= 0 {
		return 0
	}
	return int(r.Next() % uint32(n))
}

// Sign returns -1 or 1.
func (r *RNG) Sign() int {
	if r.Bool() {
		return 1
	}
	return -1
}
