// Package world owns the shared simulation memory: global coordination words,
// per-worker status slots and the per-cell attribute arrays.
//
// Field order and sizes are a fixed contract. Every participant derives the
// same byte offsets from Fields, so a Descriptor (dimensions plus the layout
// checksum) is all that has to be handed to a worker.
package world

import (
	"fmt"
	"sync/atomic"

	"stardust/internal/shm"
)

// MaxWorkers is the number of worker status slots reserved in every world.
const MaxWorkers = 256

// Reserved lock owners. Worker ids are always positive.
const (
	OwnerNone     int32 = 0
	OwnerMain     int32 = -1
	OwnerRenderer int32 = -2
)

// Particle types the engine itself depends on. Every other id belongs to the
// rule set.
const (
	TypeAir  uint8 = 0
	TypeWall uint8 = 1
)

// Per-tick refinement stages.
const (
	StageUntried uint8 = 0
	StageBlocked uint8 = 1
	StageSettled uint8 = 2
)

// TickStamp is the value a cell's TickParity holds once it has been visited
// during tick: the tick's low byte. A cell that sat out one or more ticks
// still compares unequal, so its stage is reset when it is next visited.
func TickStamp(tick int32) uint8 { return uint8(tick) }

// Status is the value of a worker status slot.
type Status int32

const (
	StatusIdle Status = iota
	StatusBusy
	// StatusGoingIdle marks a worker that finished its scan but has not yet
	// re-armed its tick wait. Only the worker itself moves out of it.
	StatusGoingIdle
	StatusCrashed
)

func (s Status) String() string {
	switch s {
	case StatusIdle:
		return "idle"
	case StatusBusy:
		return "busy"
	case StatusGoingIdle:
		return "going-idle"
	case StatusCrashed:
		return "crashed"
	default:
		return fmt.Sprintf("status(%d)", int32(s))
	}
}

// Edge indexes the wrapping behaviour array.
type Edge int

const (
	EdgeTop Edge = iota
	EdgeLeft
	EdgeBottom
	EdgeRight
)

// Field names, in layout order.
const (
	FieldGlobalLock  = "global_lock"
	FieldGlobalTick  = "global_tick"
	FieldStatus      = "worker_status"
	FieldTotal       = "total_workers"
	FieldWindow      = "simulation_window"
	FieldWrapping    = "wrapping_behaviour"
	FieldLock        = "lock"
	FieldType        = "type"
	FieldTickParity  = "tick_parity"
	FieldStage       = "stage"
	FieldColour      = "colour"
	FieldVelocityX   = "velocity_x"
	FieldVelocityY   = "velocity_y"
	FieldSubpixelX   = "subpixel_x"
	FieldSubpixelY   = "subpixel_y"
	FieldMass        = "mass"
	FieldTemperature = "temperature"
	FieldScratchA    = "scratch_a"
	FieldScratchB    = "scratch_b"
)

// Fields returns the layout contract for a world of the given capacity.
func Fields(maxWidth, maxHeight, maxWorkers int) []shm.Field {
	cells := maxWidth * maxHeight
	return []shm.Field{
		{Name: FieldGlobalLock, Kind: shm.Int32, Count: 1},
		{Name: FieldGlobalTick, Kind: shm.Int32, Count: 1},
		{Name: FieldStatus, Kind: shm.Int32, Count: maxWorkers},
		{Name: FieldTotal, Kind: shm.Uint32, Count: 1},
		{Name: FieldWindow, Kind: shm.Uint32, Count: 4},
		{Name: FieldWrapping, Kind: shm.Uint8, Count: 4},
		{Name: FieldLock, Kind: shm.Int32, Count: cells},
		{Name: FieldType, Kind: shm.Uint8, Count: cells},
		{Name: FieldTickParity, Kind: shm.Uint8, Count: cells},
		{Name: FieldStage, Kind: shm.Uint8, Count: cells},
		{Name: FieldColour, Kind: shm.Uint32, Count: cells},
		{Name: FieldVelocityX, Kind: shm.Float32, Count: cells},
		{Name: FieldVelocityY, Kind: shm.Float32, Count: cells},
		{Name: FieldSubpixelX, Kind: shm.Float32, Count: cells},
		{Name: FieldSubpixelY, Kind: shm.Float32, Count: cells},
		{Name: FieldMass, Kind: shm.Float32, Count: cells},
		{Name: FieldTemperature, Kind: shm.Float32, Count: cells},
		{Name: FieldScratchA, Kind: shm.Uint64, Count: cells},
		{Name: FieldScratchB, Kind: shm.Uint64, Count: cells},
	}
}

// Descriptor identifies a world's shape. A worker handed a descriptor can
// check it against the world it was given before touching any memory.
type Descriptor struct {
	MaxWidth   int    `json:"max_width"`
	MaxHeight  int    `json:"max_height"`
	MaxWorkers int    `json:"max_workers"`
	Bytes      int    `json:"bytes"`
	Checksum   uint64 `json:"checksum"`
}

// Cells are the per-cell arrays, indexed by y*MaxWidth + x.
//
// Lock is the only field that may be touched without owning the cell, and
// only through sync/atomic. Everything else belongs to whoever holds Lock.
type Cells struct {
	Lock        []int32
	Type        []uint8
	TickParity  []uint8
	Stage       []uint8
	Colour      []uint32
	VelocityX   []float32
	VelocityY   []float32
	SubpixelX   []float32
	SubpixelY   []float32
	Mass        []float32
	Temperature []float32
	ScratchA    []uint64
	ScratchB    []uint64
}

// Options sizes a world.
type Options struct {
	MaxWidth   int
	MaxHeight  int
	MaxWorkers int
	// MaxBytes caps the shared block; zero means unlimited.
	MaxBytes int
}

// World is the process-wide shared state. It is created once and passed by
// reference to the coordinator, every worker and every collaborator.
type World struct {
	region *shm.Region
	desc   Descriptor

	globalLock []int32
	globalTick []int32
	status     []int32
	total      []uint32
	window     []uint32
	wrapping   []uint8

	Cells Cells
}

// New allocates a world. The full capacity is the initial window and every
// edge wraps to wall.
func New(opts Options) (*World, error) {
	if opts.MaxWidth <= 0 || opts.MaxHeight <= 0 {
		return nil, fmt.Errorf("world: invalid resolution %dx%d", opts.MaxWidth, opts.MaxHeight)
	}
	if opts.MaxWorkers <= 0 {
		opts.MaxWorkers = MaxWorkers
	}
	region, err := shm.Allocate(Fields(opts.MaxWidth, opts.MaxHeight, opts.MaxWorkers), opts.MaxBytes)
	if err != nil {
		return nil, fmt.Errorf("world: %w", err)
	}
	plan := region.Plan()
	w := &World{
		region: region,
		desc: Descriptor{
			MaxWidth:   opts.MaxWidth,
			MaxHeight:  opts.MaxHeight,
			MaxWorkers: opts.MaxWorkers,
			Bytes:      plan.Total,
			Checksum:   plan.Checksum(),
		},
		globalLock: region.Int32s(FieldGlobalLock),
		globalTick: region.Int32s(FieldGlobalTick),
		status:     region.Int32s(FieldStatus),
		total:      region.Uint32s(FieldTotal),
		window:     region.Uint32s(FieldWindow),
		wrapping:   region.Uint8s(FieldWrapping),
		Cells: Cells{
			Lock:        region.Int32s(FieldLock),
			Type:        region.Uint8s(FieldType),
			TickParity:  region.Uint8s(FieldTickParity),
			Stage:       region.Uint8s(FieldStage),
			Colour:      region.Uint32s(FieldColour),
			VelocityX:   region.Float32s(FieldVelocityX),
			VelocityY:   region.Float32s(FieldVelocityY),
			SubpixelX:   region.Float32s(FieldSubpixelX),
			SubpixelY:   region.Float32s(FieldSubpixelY),
			Mass:        region.Float32s(FieldMass),
			Temperature: region.Float32s(FieldTemperature),
			ScratchA:    region.Uint64s(FieldScratchA),
			ScratchB:    region.Uint64s(FieldScratchB),
		},
	}
	w.storeWindow(Rect{X2: opts.MaxWidth, Y2: opts.MaxHeight})
	for i := range w.wrapping {
		w.wrapping[i] = TypeWall
	}
	return w, nil
}

// Close releases the shared block.
func (w *World) Close() error { return w.region.Close() }

// Descriptor returns the world's shape.
func (w *World) Descriptor() Descriptor { return w.desc }

// Plan exposes the byte layout of the shared block.
func (w *World) Plan() shm.Plan { return w.region.Plan() }

// Width returns the row stride of the cell arrays.
func (w *World) Width() int { return w.desc.MaxWidth }

// Height returns the maximum number of rows.
func (w *World) Height() int { return w.desc.MaxHeight }

// Capacity returns the number of cells backing the arrays.
func (w *World) Capacity() int { return w.desc.MaxWidth * w.desc.MaxHeight }

// Index returns the linear cell index for (x, y).
func (w *World) Index(x, y int) int { return y*w.desc.MaxWidth + x }

// Coord is the inverse of Index.
func (w *World) Coord(idx int) (int, int) { return idx % w.desc.MaxWidth, idx / w.desc.MaxWidth }

// Tick returns the current global tick.
func (w *World) Tick() int32 { return atomic.LoadInt32(&w.globalTick[0]) }

// TickAddr exposes the tick word for futex waits.
func (w *World) TickAddr() *int32 { return &w.globalTick[0] }

// IncrementTick advances the global tick by one and returns the new value.
// Only the tick coordinator calls this.
func (w *World) IncrementTick() int32 { return atomic.AddInt32(&w.globalTick[0], 1) }

// Status returns worker slot i (zero based).
func (w *World) Status(i int) Status { return Status(atomic.LoadInt32(&w.status[i])) }

// SetStatus stores worker slot i.
func (w *World) SetStatus(i int, s Status) { atomic.StoreInt32(&w.status[i], int32(s)) }

// CompareAndSwapStatus moves slot i from old to new if it still holds old.
func (w *World) CompareAndSwapStatus(i int, old, new Status) bool {
	return atomic.CompareAndSwapInt32(&w.status[i], int32(old), int32(new))
}

// StatusAddr exposes slot i for futex waits.
func (w *World) StatusAddr(i int) *int32 { return &w.status[i] }

// TotalWorkers returns the number of workers in the pool.
func (w *World) TotalWorkers() int { return int(atomic.LoadUint32(&w.total[0])) }

// SetTotalWorkers is called once, after the pool has started.
func (w *World) SetTotalWorkers(n int) { atomic.StoreUint32(&w.total[0], uint32(n)) }

// Window returns the active simulation rectangle.
func (w *World) Window() Rect {
	return Rect{
		X1: int(atomic.LoadUint32(&w.window[0])),
		Y1: int(atomic.LoadUint32(&w.window[1])),
		X2: int(atomic.LoadUint32(&w.window[2])),
		Y2: int(atomic.LoadUint32(&w.window[3])),
	}
}

func (w *World) storeWindow(r Rect) {
	atomic.StoreUint32(&w.window[0], uint32(r.X1))
	atomic.StoreUint32(&w.window[1], uint32(r.Y1))
	atomic.StoreUint32(&w.window[2], uint32(r.X2))
	atomic.StoreUint32(&w.window[3], uint32(r.Y2))
}

// Wrapping returns the particle type seen past each edge.
func (w *World) Wrapping() [4]uint8 {
	var out [4]uint8
	copy(out[:], w.wrapping)
	return out
}

// WrappingAt returns the type seen past a single edge.
func (w *World) WrappingAt(e Edge) uint8 { return w.wrapping[e] }
