package engine

import (
	"fmt"
	"image"
	"runtime"
	"sync/atomic"
	"time"

	"stardust/internal/futex"
	"stardust/internal/world"
)

// DefaultIterationLimit bounds the passes a worker makes over the window in
// one tick.
const DefaultIterationLimit = 100

// tickWaitSlice bounds a single futex wait on the tick word so a missed
// shutdown wake is noticed.
const tickWaitSlice = 50 * time.Millisecond

// WorkerStats are cumulative counters for one worker.
type WorkerStats struct {
	ID       int32  `json:"id"`
	Ticks    uint64 `json:"ticks"`
	Passes   uint64 `json:"passes"`
	Moves    uint64 `json:"moves"`
	Deferred uint64 `json:"deferred"`
	Crashes  uint64 `json:"crashes"`
}

// Worker simulates every cell of the window once per tick, in cooperation
// with the other workers of its pool.
type Worker struct {
	id    int32
	slot  int
	w     *world.World
	rules *RuleSet
	limit int

	held heldSet
	nb   Neighbourhood

	lastSeen int32
	shutdown *atomic.Bool
	emit     func(Event)

	ticks    atomic.Uint64
	passes   atomic.Uint64
	moves    atomic.Uint64
	deferred atomic.Uint64
	crashes  atomic.Uint64
}

func newWorker(hs Handshake, rules *RuleSet, limit int, shutdown *atomic.Bool, emit func(Event)) *Worker {
	if limit <= 0 {
		limit = DefaultIterationLimit
	}
	wk := &Worker{
		id:       hs.ID,
		slot:     int(hs.ID) - 1,
		w:        hs.World,
		rules:    rules,
		limit:    limit,
		lastSeen: hs.Tick,
		shutdown: shutdown,
		emit:     emit,
	}
	wk.nb = Neighbourhood{w: wk.w, rules: rules, owner: wk.id, held: &wk.held}
	return wk
}

// ID returns the worker's id, which is also its lock owner value.
func (wk *Worker) ID() int32 { return wk.id }

// Stats returns the worker's counters.
func (wk *Worker) Stats() WorkerStats {
	return WorkerStats{
		ID:       wk.id,
		Ticks:    wk.ticks.Load(),
		Passes:   wk.passes.Load(),
		Moves:    wk.moves.Load(),
		Deferred: wk.deferred.Load(),
		Crashes:  wk.crashes.Load(),
	}
}

func (wk *Worker) run() {
	runtime.LockOSThread()
	defer runtime.UnlockOSThread()

	wk.emit(EventReady{ID: wk.id})
	for wk.awaitTick() {
		tick := wk.w.Tick()
		wk.lastSeen = tick
		if wk.runTick(tick) {
			wk.finish()
		}
	}
	wk.emit(EventExited{ID: wk.id})
}

// awaitTick blocks until the global tick moves past the last one seen. It
// returns false on shutdown.
func (wk *Worker) awaitTick() bool {
	addr := wk.w.TickAddr()
	for {
		if wk.shutdown.Load() {
			return false
		}
		if atomic.LoadInt32(addr) != wk.lastSeen {
			return true
		}
		futex.Wait(addr, wk.lastSeen, tickWaitSlice)
	}
}

// runTick scans the window for one tick. A panic abandons the tick: the
// worker's locks are released and its slot is returned to Idle before
// runTick reports false.
func (wk *Worker) runTick(tick int32) (ok bool) {
	defer func() {
		if r := recover(); r != nil {
			released := RecoverHeld(wk.w, wk.id, wk.held.idx)
			wk.held.idx = wk.held.idx[:0]
			wk.crashes.Add(1)
			wk.emit(EventCrashed{ID: wk.id, Tick: tick, Reason: fmt.Sprint(r), Released: released})
			ok = false
		}
	}()
	wk.passes.Add(uint64(wk.scan(tick)))
	wk.ticks.Add(1)
	return true
}

// finish reports the tick done: Busy, then GoingIdle, then Idle. A tick
// advanced between here and the next awaitTick is not lost, because awaitTick
// compares the tick word against lastSeen rather than waiting for a wake.
func (wk *Worker) finish() {
	wk.w.CompareAndSwapStatus(wk.slot, world.StatusBusy, world.StatusGoingIdle)
	wk.w.CompareAndSwapStatus(wk.slot, world.StatusGoingIdle, world.StatusIdle)
	futex.Wake(wk.w.StatusAddr(wk.slot), futex.WakeAll)
}

type visit uint8

const (
	visitNone visit = iota
	visitChanged
	visitDeferred
)

// scan makes passes over the window until one changes nothing and defers
// nothing, or the iteration limit is reached. Odd workers start at the first
// cell, even workers at the last, and every pass reverses direction.
func (wk *Worker) scan(tick int32) int {
	window := wk.w.Window()
	stamp := world.TickStamp(tick)
	wk.nb.tick = tick
	wk.nb.window = window
	forward := wk.id%2 == 1

	for pass := 1; pass <= wk.limit; pass++ {
		changed, deferred := false, 0
		eachCell(window, forward, func(x, y int) {
			switch wk.visit(x, y, stamp) {
			case visitChanged:
				changed = true
			case visitDeferred:
				deferred++
			}
		})
		wk.deferred.Add(uint64(deferred))
		forward = !forward
		if !changed && deferred == 0 {
			return pass
		}
	}
	return wk.limit
}

func (wk *Worker) visit(x, y int, stamp uint8) visit {
	w := wk.w
	idx := w.Index(x, y)
	if !w.TryAcquire(idx, wk.id) {
		return visitDeferred
	}
	wk.held.add(idx)

	cs := &w.Cells
	if cs.TickParity[idx] != stamp {
		cs.TickParity[idx] = stamp
		cs.Stage[idx] = world.StageUntried
	}
	if cs.Stage[idx] >= world.StageSettled {
		wk.held.releaseAll(w, wk.id)
		return visitNone
	}
	rule := wk.rules.mustLookup(cs.Type[idx])
	if rule.Static() {
		cs.Stage[idx] = world.StageSettled
		wk.held.releaseAll(w, wk.id)
		return visitNone
	}

	centre := Cell{w: w, idx: idx, x: x, y: y}
	wk.nb.centre = centre
	res := visitNone
	switch rule.Apply(centre, &wk.nb) {
	case Moved:
		centre.stamp(stamp)
		wk.moves.Add(1)
		res = visitChanged
	case Blocked:
		if cs.Stage[idx] < world.StageSettled {
			cs.Stage[idx]++
		}
		res = visitChanged
	case Settled:
		cs.Stage[idx] = world.StageSettled
	case Deferred:
		res = visitDeferred
	}
	wk.held.releaseAll(w, wk.id)
	return res
}

// eachCell visits the rectangle row by row, from the top-left corner when
// forward and from the bottom-right corner otherwise.
func eachCell(r world.Rect, forward bool, fn func(x, y int)) {
	if r.Empty() {
		return
	}
	if forward {
		for y := r.Y1; y < r.Y2; y++ {
			for x := r.X1; x < r.X2; x++ {
				fn(x, y)
			}
		}
		return
	}
	for y := r.Y2 - 1; y >= r.Y1; y-- {
		for x := r.X2 - 1; x >= r.X1; x-- {
			fn(x, y)
		}
	}
}

// ScanOrder lists the cells worker id visits on its first pass of a tick.
func ScanOrder(id int32, window world.Rect) []image.Point {
	out := make([]image.Point, 0, window.Area())
	eachCell(window, id%2 == 1, func(x, y int) {
		out = append(out, image.Point{X: x, Y: y})
	})
	return out
}
