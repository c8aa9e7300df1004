package engine

import (
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"

	"stardust/internal/futex"
	"stardust/internal/world"
)

// ReservedCores is the number of CPUs left to the main and render loops when
// the pool is sized from the machine.
const ReservedCores = 2

// DefaultWorkers sizes a pool for numCPU processors.
func DefaultWorkers(numCPU int) int {
	n := numCPU - ReservedCores
	if n < 1 {
		n = 1
	}
	if n > world.MaxWorkers {
		n = world.MaxWorkers
	}
	return n
}

// PoolOptions configures a Pool.
type PoolOptions struct {
	Workers        int
	IterationLimit int
	// Loader runs once per worker before it starts. An error skips that
	// worker.
	Loader func(Handshake) error
	Logger *slog.Logger
	Sink   EventSink
}

// PoolStats aggregates the pool's workers.
type PoolStats struct {
	Workers      int           `json:"workers"`
	LoadFailures uint64        `json:"load_failures"`
	Crashes      uint64        `json:"crashes"`
	PerWorker    []WorkerStats `json:"per_worker"`
}

// Pool owns the worker goroutines of one world.
type Pool struct {
	w      *world.World
	rules  *RuleSet
	opts   PoolOptions
	logger *slog.Logger

	workers  []*Worker
	events   chan Event
	shutdown atomic.Bool
	wg       sync.WaitGroup
	done     chan struct{}

	loadFailures atomic.Uint64
	crashes      atomic.Uint64

	startOnce sync.Once
	stopOnce  sync.Once
}

// NewPool prepares a pool. Nothing runs until Start.
func NewPool(w *world.World, rules *RuleSet, opts PoolOptions) *Pool {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	if opts.Workers <= 0 {
		opts.Workers = 1
	}
	if opts.Workers > w.Descriptor().MaxWorkers {
		opts.Workers = w.Descriptor().MaxWorkers
	}
	return &Pool{
		w:      w,
		rules:  rules,
		opts:   opts,
		logger: logger.With("component", "pool"),
		events: make(chan Event, 64),
		done:   make(chan struct{}),
	}
}

// Start hands every worker its handshake and launches the survivors. Workers
// that fail validation or loading are skipped and the rest are numbered
// densely from 1. It returns ErrNoWorkers if none survive.
func (p *Pool) Start() error {
	err := fmt.Errorf("pool: already started")
	p.startOnce.Do(func() { err = p.start() })
	return err
}

func (p *Pool) start() error {
	go p.dispatch()

	inbox := make(chan Handshake, p.opts.Workers)
	for i := 1; i <= p.opts.Workers; i++ {
		inbox <- Handshake{ID: int32(i), World: p.w, Descriptor: p.w.Descriptor(), Tick: p.w.Tick()}
	}
	close(inbox)

	var survivors []Handshake
	for hs := range inbox {
		if err := p.load(hs); err != nil {
			p.loadFailures.Add(1)
			p.events <- EventLoadFailed{ID: hs.ID, Err: err}
			continue
		}
		hs.ID = int32(len(survivors) + 1)
		survivors = append(survivors, hs)
	}
	if len(survivors) == 0 {
		close(p.events)
		<-p.done
		return fmt.Errorf("pool: %w (%d failed to load)", ErrNoWorkers, p.opts.Workers)
	}

	for i := range survivors {
		p.w.SetStatus(i, world.StatusIdle)
	}
	p.w.SetTotalWorkers(len(survivors))
	for _, hs := range survivors {
		wk := newWorker(hs, p.rules, p.opts.IterationLimit, &p.shutdown, p.emit)
		p.workers = append(p.workers, wk)
		p.wg.Add(1)
		go func() {
			defer p.wg.Done()
			wk.run()
		}()
	}
	p.logger.Info("pool started", "workers", len(survivors), "requested", p.opts.Workers, "native_futex", futex.Native)
	return nil
}

func (p *Pool) load(hs Handshake) error {
	if err := hs.Validate(); err != nil {
		return err
	}
	if p.opts.Loader != nil {
		if err := p.opts.Loader(hs); err != nil {
			return fmt.Errorf("worker %d: %w", hs.ID, err)
		}
	}
	return nil
}

func (p *Pool) emit(e Event) { p.events <- e }

func (p *Pool) dispatch() {
	defer close(p.done)
	for e := range p.events {
		switch e := e.(type) {
		case EventReady:
			p.logger.Debug("worker ready", "worker", e.ID)
		case EventLoadFailed:
			p.logger.Warn("worker load failure", "worker", e.ID, "err", e.Err)
		case EventCrashed:
			p.crashes.Add(1)
			p.logger.Error("worker crashed", "worker", e.ID, "tick", e.Tick, "reason", e.Reason, "released", e.Released)
		case EventExited:
			p.logger.Debug("worker exited", "worker", e.ID)
		}
		if p.opts.Sink != nil {
			p.opts.Sink.HandleEvent(e)
		}
	}
}

// Workers returns the number of running workers.
func (p *Pool) Workers() int { return len(p.workers) }

// Stats snapshots the pool counters.
func (p *Pool) Stats() PoolStats {
	st := PoolStats{
		Workers:      len(p.workers),
		LoadFailures: p.loadFailures.Load(),
		Crashes:      p.crashes.Load(),
	}
	for _, wk := range p.workers {
		st.PerWorker = append(st.PerWorker, wk.Stats())
	}
	return st
}

// Stop asks every worker to leave its loop and waits for them and for the
// event dispatcher.
func (p *Pool) Stop() {
	p.stopOnce.Do(func() {
		p.shutdown.Store(true)
		futex.Wake(p.w.TickAddr(), futex.WakeAll)
		p.wg.Wait()
		if len(p.workers) > 0 {
			close(p.events)
			<-p.done
		}
	})
}
