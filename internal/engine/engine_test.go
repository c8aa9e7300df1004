package engine

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"stardust/internal/futex"
	"stardust/internal/world"
)

const typeTest uint8 = 2

type testRule struct {
	static bool
	apply  func(c Cell, n *Neighbourhood) Outcome
}

func (r testRule) Name() string     { return "test" }
func (r testRule) Static() bool     { return r.static }
func (r testRule) Phase() Phase     { return Solid }
func (r testRule) Density() float64 { return 1 }
func (r testRule) Reset(c Cell)     { c.SetColour(0xFFFFFFFF) }

func (r testRule) Apply(c Cell, n *Neighbourhood) Outcome {
	if r.apply == nil {
		return Settled
	}
	return r.apply(c, n)
}

func testRules(apply func(c Cell, n *Neighbourhood) Outcome) *RuleSet {
	rs := NewRuleSet()
	rs.Register(world.TypeAir, testRule{static: true})
	rs.Register(world.TypeWall, testRule{static: true})
	rs.Register(typeTest, testRule{apply: apply})
	return rs
}

func discardLogger() *slog.Logger { return slog.New(slog.DiscardHandler) }

func newTestWorld(t *testing.T, width, height int) *world.World {
	t.Helper()
	w, err := world.New(world.Options{MaxWidth: width, MaxHeight: height, MaxWorkers: 8})
	if err != nil {
		t.Fatalf("world.New: %v", err)
	}
	t.Cleanup(func() { w.Close() })
	return w
}

type eventLog struct {
	mu     sync.Mutex
	events []Event
	ch     chan Event
}

func newEventLog() *eventLog { return &eventLog{ch: make(chan Event, 64)} }

func (l *eventLog) HandleEvent(e Event) {
	l.mu.Lock()
	l.events = append(l.events, e)
	l.mu.Unlock()
	select {
	case l.ch <- e:
	default:
	}
}

func (l *eventLog) count(match func(Event) bool) int {
	l.mu.Lock()
	defer l.mu.Unlock()
	n := 0
	for _, e := range l.events {
		if match(e) {
			n++
		}
	}
	return n
}

func startPool(t *testing.T, w *world.World, rules *RuleSet, workers int, sink EventSink) *Pool {
	t.Helper()
	p := NewPool(w, rules, PoolOptions{Workers: workers, Logger: discardLogger(), Sink: sink})
	if err := p.Start(); err != nil {
		t.Fatalf("Start: %v", err)
	}
	t.Cleanup(p.Stop)
	return p
}

func stepCtx(t *testing.T) context.Context {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	t.Cleanup(cancel)
	return ctx
}

func assertUnlocked(t *testing.T, w *world.World) {
	t.Helper()
	for i := range w.Cells.Lock {
		if owner := w.LockOwner(i); owner != world.OwnerNone {
			x, y := w.Coord(i)
			t.Fatalf("cell (%d,%d) still locked by %d", x, y, owner)
		}
	}
}

func TestAdvanceDropsWhileAnyWorkerBusy(t *testing.T) {
	w := newTestWorld(t, 4, 4)
	w.SetTotalWorkers(3)
	w.SetStatus(1, world.StatusBusy)
	c := NewCoordinator(w, discardLogger())

	tick, ok := c.Advance()
	if ok || tick != 0 || w.Tick() != 0 {
		t.Fatalf("Advance = %d,%v with busy worker; tick now %d", tick, ok, w.Tick())
	}
	if w.Status(0) != world.StatusIdle || w.Status(2) != world.StatusIdle {
		t.Fatal("dropped advance must not touch status slots")
	}

	w.SetStatus(1, world.StatusGoingIdle)
	if _, ok := c.Advance(); ok {
		t.Fatal("a going-idle worker must still hold the barrier")
	}

	w.SetStatus(1, world.StatusIdle)
	tick, ok = c.Advance()
	if !ok || tick != 1 {
		t.Fatalf("Advance = %d,%v with all idle", tick, ok)
	}
	for i := 0; i < 3; i++ {
		if w.Status(i) != world.StatusBusy {
			t.Fatalf("slot %d = %v after advance, want busy", i, w.Status(i))
		}
	}
	if st := c.Stats(); st.Advanced != 1 || st.Dropped != 2 {
		t.Fatalf("stats = %+v", st)
	}
}

func TestAdvanceDroppedWhileWorkerMidTick(t *testing.T) {
	w := newTestWorld(t, 4, 4)
	entered := make(chan struct{})
	release := make(chan struct{})
	var once sync.Once
	rules := testRules(func(c Cell, n *Neighbourhood) Outcome {
		once.Do(func() {
			close(entered)
			<-release
		})
		return Settled
	})
	w.Cells.Type[w.Index(1, 1)] = typeTest
	startPool(t, w, rules, 1, nil)
	c := NewCoordinator(w, discardLogger())

	if _, ok := c.Advance(); !ok {
		t.Fatal("first advance should succeed")
	}
	<-entered
	if tick, ok := c.Advance(); ok || tick != 1 {
		t.Fatalf("Advance mid-tick = %d,%v, want dropped at 1", tick, ok)
	}
	close(release)
	if err := c.WaitIdle(stepCtx(t)); err != nil {
		t.Fatalf("WaitIdle: %v", err)
	}
	if tick, ok := c.Advance(); !ok || tick != 2 {
		t.Fatalf("Advance after idle = %d,%v", tick, ok)
	}
}

func TestStressEveryCellOncePerTick(t *testing.T) {
	w := newTestWorld(t, 32, 32)
	rules := testRules(func(c Cell, n *Neighbourhood) Outcome {
		c.SetScratchA(c.ScratchA() + 1)
		return Settled
	})
	for i := range w.Cells.Type {
		w.Cells.Type[i] = typeTest
	}
	p := startPool(t, w, rules, 3, nil)
	c := NewCoordinator(w, discardLogger())
	ctx := stepCtx(t)

	for i := 0; i < 3; i++ {
		if err := c.WaitIdle(ctx); err != nil {
			t.Fatalf("WaitIdle: %v", err)
		}
		if _, ok := c.Advance(); !ok {
			t.Fatalf("advance %d dropped with every worker idle", i+1)
		}
	}
	if err := c.WaitIdle(ctx); err != nil {
		t.Fatalf("WaitIdle: %v", err)
	}

	for i, v := range w.Cells.ScratchA {
		if v != 3 {
			x, y := w.Coord(i)
			t.Fatalf("cell (%d,%d) incremented %d times, want 3", x, y, v)
		}
	}
	assertUnlocked(t, w)

	var ticks uint64
	for _, ws := range p.Stats().PerWorker {
		if ws.Ticks != 3 {
			t.Fatalf("worker %d observed %d ticks, want 3", ws.ID, ws.Ticks)
		}
		ticks += ws.Ticks
	}
	if ticks != 9 {
		t.Fatalf("total observed ticks = %d", ticks)
	}
}

func TestLocksReturnToZeroAfterTicks(t *testing.T) {
	w := newTestWorld(t, 16, 16)
	rules := testRules(func(c Cell, n *Neighbourhood) Outcome {
		if below, ok := n.At(0, 1); ok && below.Type() == world.TypeAir {
			n.Swap(c, below)
			return Moved
		}
		return Blocked
	})
	for x := 0; x < 16; x += 2 {
		w.Cells.Type[w.Index(x, 0)] = typeTest
		w.Cells.Type[w.Index(x, 5)] = typeTest
	}
	startPool(t, w, rules, 4, nil)
	c := NewCoordinator(w, discardLogger())

	for i := 0; i < 20; i++ {
		if _, err := c.Step(stepCtx(t)); err != nil {
			t.Fatalf("Step: %v", err)
		}
		assertUnlocked(t, w)
	}
	for x := 0; x < 16; x += 2 {
		if w.Cells.Type[w.Index(x, 15)] != typeTest || w.Cells.Type[w.Index(x, 14)] != typeTest {
			t.Fatalf("column %d did not fall to the floor", x)
		}
	}
}

func TestCrashReleasesHeldLocks(t *testing.T) {
	w := newTestWorld(t, 6, 6)
	rules := testRules(func(c Cell, n *Neighbourhood) Outcome {
		n.At(1, 0)
		n.At(0, 1)
		if n.Tick() == 1 {
			panic("injected fault")
		}
		return Settled
	})
	w.Cells.Type[w.Index(2, 2)] = typeTest
	events := newEventLog()
	p := startPool(t, w, rules, 1, events)
	c := NewCoordinator(w, discardLogger())

	if _, err := c.Step(stepCtx(t)); err != nil {
		t.Fatalf("Step: %v", err)
	}
	for _, xy := range [][2]int{{2, 2}, {3, 2}, {2, 3}} {
		if owner := w.LockOwner(w.Index(xy[0], xy[1])); owner != world.OwnerNone {
			t.Fatalf("cell %v locked by %d after recovery", xy, owner)
		}
	}
	if w.Status(0) != world.StatusIdle {
		t.Fatalf("status = %v after crash, want idle", w.Status(0))
	}

	var crash EventCrashed
	deadline := time.After(5 * time.Second)
	for crash.ID == 0 {
		select {
		case e := <-events.ch:
			if ce, ok := e.(EventCrashed); ok {
				crash = ce
			}
		case <-deadline:
			t.Fatal("no crash event")
		}
	}
	if crash.Tick != 1 || crash.Released != 3 || crash.Reason != "injected fault" {
		t.Fatalf("crash event = %+v", crash)
	}

	if tick, err := c.Step(stepCtx(t)); err != nil || tick != 2 {
		t.Fatalf("Step after crash = %d,%v", tick, err)
	}
	if st := p.Stats().PerWorker[0]; st.Crashes != 1 || st.Ticks != 1 {
		t.Fatalf("worker stats = %+v", st)
	}
	assertUnlocked(t, w)
}

func TestCellsSkippedByCrashRunNextTick(t *testing.T) {
	w := newTestWorld(t, 4, 1)
	rules := testRules(func(c Cell, n *Neighbourhood) Outcome {
		if n.Tick() == 2 && c.X() == 0 {
			panic("injected fault")
		}
		c.SetScratchA(c.ScratchA() + 1)
		return Settled
	})
	for i := range w.Cells.Type {
		w.Cells.Type[i] = typeTest
	}
	// Worker 1 scans forward, so the crash at x=0 abandons the rest of tick 2.
	startPool(t, w, rules, 1, nil)
	c := NewCoordinator(w, discardLogger())
	for i := 0; i < 3; i++ {
		if _, err := c.Step(stepCtx(t)); err != nil {
			t.Fatalf("Step: %v", err)
		}
	}
	for x := 0; x < 4; x++ {
		if got := w.Cells.ScratchA[w.Index(x, 0)]; got != 2 {
			t.Fatalf("cell %d ran %d times over ticks 1..3, want 2", x, got)
		}
	}
	assertUnlocked(t, w)
}

func TestTickAdvancedBeforeWorkerRearms(t *testing.T) {
	w := newTestWorld(t, 2, 2)
	w.SetTotalWorkers(1)
	w.Cells.Type[w.Index(1, 1)] = typeTest
	rules := testRules(func(c Cell, n *Neighbourhood) Outcome {
		c.SetScratchA(uint64(n.Tick()))
		return Settled
	})
	var shutdown atomic.Bool
	wk := newWorker(Handshake{ID: 1, World: w, Descriptor: w.Descriptor()}, rules, 0, &shutdown, func(Event) {})
	c := NewCoordinator(w, discardLogger())

	// The worker reports tick 0 done; the coordinator advances before the
	// worker gets back to waiting on the tick word.
	w.SetStatus(0, world.StatusBusy)
	wk.finish()
	if w.Status(0) != world.StatusIdle {
		t.Fatalf("status = %v after finish", w.Status(0))
	}
	if tick, ok := c.Advance(); !ok || tick != 1 {
		t.Fatalf("Advance = %d,%v", tick, ok)
	}

	done := make(chan struct{})
	go func() {
		defer close(done)
		wk.run()
	}()
	if err := c.WaitIdle(stepCtx(t)); err != nil {
		t.Fatalf("WaitIdle: %v", err)
	}
	if got := w.Cells.ScratchA[w.Index(1, 1)]; got != 1 {
		t.Fatalf("cell saw tick %d, want the tick advanced before re-arming", got)
	}
	shutdown.Store(true)
	futex.Wake(w.TickAddr(), futex.WakeAll)
	<-done
	if wk.Stats().Ticks != 1 {
		t.Fatalf("ticks = %d, want 1", wk.Stats().Ticks)
	}
}

func TestRecoverFullScan(t *testing.T) {
	w := newTestWorld(t, 5, 5)
	w.SetTotalWorkers(2)
	w.SetStatus(1, world.StatusBusy)
	for _, i := range []int{0, 7, 24} {
		if !w.TryAcquire(i, 2) {
			t.Fatalf("acquire %d", i)
		}
	}
	w.TryAcquire(3, world.OwnerMain)
	w.TryAcquire(4, 1)

	if n := Recover(w, 2); n != 3 {
		t.Fatalf("Recover released %d, want 3", n)
	}
	for _, i := range []int{0, 7, 24} {
		if w.LockOwner(i) != world.OwnerNone {
			t.Fatalf("cell %d still held", i)
		}
	}
	if w.LockOwner(3) != world.OwnerMain || w.LockOwner(4) != 1 {
		t.Fatal("recovery must leave other owners' locks alone")
	}
	if w.Status(1) != world.StatusIdle {
		t.Fatalf("status = %v, want idle", w.Status(1))
	}
}

func TestHandshakeValidate(t *testing.T) {
	w := newTestWorld(t, 4, 4)
	other := newTestWorld(t, 5, 4)
	good := Handshake{ID: 1, World: w, Descriptor: w.Descriptor()}
	if err := good.Validate(); err != nil {
		t.Fatalf("valid handshake: %v", err)
	}
	tests := []struct {
		name string
		hs   Handshake
	}{
		{"nil world", Handshake{ID: 1, Descriptor: w.Descriptor()}},
		{"zero id", Handshake{ID: 0, World: w, Descriptor: w.Descriptor()}},
		{"id past max", Handshake{ID: 9, World: w, Descriptor: w.Descriptor()}},
		{"foreign descriptor", Handshake{ID: 1, World: w, Descriptor: other.Descriptor()}},
	}
	for _, tt := range tests {
		if err := tt.hs.Validate(); !errors.Is(err, ErrProtocolViolation) {
			t.Errorf("%s: err = %v, want ErrProtocolViolation", tt.name, err)
		}
	}
}

func TestPoolToleratesPartialLoadFailure(t *testing.T) {
	w := newTestWorld(t, 4, 4)
	events := newEventLog()
	calls := 0
	p := NewPool(w, testRules(nil), PoolOptions{
		Workers: 3,
		Logger:  discardLogger(),
		Sink:    events,
		Loader: func(hs Handshake) error {
			calls++
			if hs.ID == 1 {
				return errors.New("no module")
			}
			return nil
		},
	})
	if err := p.Start(); err != nil {
		t.Fatalf("Start: %v", err)
	}
	if calls != 3 {
		t.Fatalf("loader ran %d times, want once per worker", calls)
	}
	if p.Workers() != 2 || w.TotalWorkers() != 2 {
		t.Fatalf("workers=%d total=%d, want 2", p.Workers(), w.TotalWorkers())
	}
	ids := map[int32]bool{}
	for _, ws := range p.Stats().PerWorker {
		ids[ws.ID] = true
	}
	if !ids[1] || !ids[2] {
		t.Fatalf("survivor ids %v, want dense 1..2", ids)
	}

	if _, err := NewCoordinator(w, discardLogger()).Step(stepCtx(t)); err != nil {
		t.Fatalf("Step: %v", err)
	}
	p.Stop()
	if n := events.count(func(e Event) bool { _, ok := e.(EventLoadFailed); return ok }); n != 1 {
		t.Fatalf("%d load failure events, want 1", n)
	}
	if n := events.count(func(e Event) bool { _, ok := e.(EventExited); return ok }); n != 2 {
		t.Fatalf("%d exit events, want 2", n)
	}
	if p.Stats().LoadFailures != 1 {
		t.Fatalf("load failures = %d", p.Stats().LoadFailures)
	}
}

func TestPoolFailsWithNoWorkers(t *testing.T) {
	w := newTestWorld(t, 4, 4)
	p := NewPool(w, testRules(nil), PoolOptions{
		Workers: 2,
		Logger:  discardLogger(),
		Loader:  func(Handshake) error { return errors.New("broken") },
	})
	if err := p.Start(); !errors.Is(err, ErrNoWorkers) {
		t.Fatalf("Start err = %v, want ErrNoWorkers", err)
	}
	p.Stop()
	if err := p.Start(); err == nil {
		t.Fatal("second Start should fail")
	}
}

func TestDefaultWorkers(t *testing.T) {
	tests := []struct{ cpus, want int }{
		{1, 1}, {2, 1}, {3, 1}, {8, 6}, {1024, world.MaxWorkers},
	}
	for _, tt := range tests {
		if got := DefaultWorkers(tt.cpus); got != tt.want {
			t.Errorf("DefaultWorkers(%d) = %d, want %d", tt.cpus, got, tt.want)
		}
	}
}
