package sim

import (
	"context"
	"errors"
	"time"

	"golang.org/x/sync/errgroup"

	"stardust/internal/engine"
	"stardust/internal/journal"
)

// RunOptions bounds a headless run.
type RunOptions struct {
	// Ticks to advance; zero runs until ctx is done.
	Ticks int
	// Unthrottled advances as soon as every worker is idle instead of at the
	// configured TPS.
	Unthrottled bool
	// SampleEvery is the journal sampling period; zero uses the configured
	// flush interval.
	SampleEvery time.Duration
}

// Report summarises a run.
type Report struct {
	Ticks       int32                   `json:"ticks"`
	Elapsed     time.Duration           `json:"elapsed"`
	TicksPerSec float64                 `json:"ticks_per_sec"`
	Coordinator engine.CoordinatorStats `json:"coordinator"`
	Pool        engine.PoolStats        `json:"pool"`
	Moves       uint64                  `json:"moves"`
}

// Run drives the coordinator until the tick budget is spent or ctx is done.
// A journal, if configured, receives periodic samples and the final summary.
func (s *Sim) Run(ctx context.Context, opts RunOptions) (Report, error) {
	start := time.Now()
	startTick := s.World.Tick()
	advanced := make(chan struct{})

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		defer close(advanced)
		return s.drive(gctx, opts)
	})
	if s.Journal != nil {
		every := opts.SampleEvery
		if every <= 0 {
			every = s.cfg.Journal.FlushInterval
		}
		if every <= 0 {
			every = time.Second
		}
		g.Go(func() error { return s.sample(gctx, every, advanced) })
	}

	err := g.Wait()
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		err = nil
	}
	// The last tick may still be in flight after a cancellation.
	waitCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if werr := s.Coord.WaitIdle(waitCtx); werr != nil && err == nil {
		err = werr
	}

	rep, ferr := s.Finish(startTick, time.Since(start))
	if err == nil {
		err = ferr
	}
	return rep, err
}

// Finish builds the report for the ticks advanced since startTick and, with a
// journal, stores it as the run summary.
func (s *Sim) Finish(startTick int32, elapsed time.Duration) (Report, error) {
	rep := s.report(startTick, elapsed)
	var err error
	if s.Journal != nil {
		err = s.Journal.FinishRun(context.Background(), journal.Summary{
			Ticks:    rep.Ticks,
			Duration: rep.Elapsed,
			Tick:     rep.Coordinator,
			Pool:     rep.Pool,
		})
	}
	s.logger.Info("run finished", "ticks", rep.Ticks, "elapsed", rep.Elapsed.Round(time.Millisecond),
		"tps", int(rep.TicksPerSec), "dropped", rep.Coordinator.Dropped, "crashes", rep.Pool.Crashes)
	return rep, err
}

func (s *Sim) drive(ctx context.Context, opts RunOptions) error {
	done := func(n int) bool { return opts.Ticks > 0 && n >= opts.Ticks }

	if opts.Unthrottled {
		for n := 0; !done(n); n++ {
			if _, err := s.Coord.Step(ctx); err != nil {
				return err
			}
		}
		return nil
	}

	ticker := time.NewTicker(time.Second / time.Duration(s.cfg.Engine.TPS))
	defer ticker.Stop()
	for n := 0; !done(n); {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			if _, ok := s.Coord.Advance(); ok {
				n++
			}
		}
	}
	return nil
}

func (s *Sim) sample(ctx context.Context, every time.Duration, driveDone <-chan struct{}) error {
	ticker := time.NewTicker(every)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-driveDone:
			return nil
		case <-ticker.C:
			if err := s.recordSample(ctx); err != nil {
				return err
			}
		}
	}
}

func (s *Sim) recordSample(ctx context.Context) error {
	cs := s.Coord.Stats()
	ps := s.Pool.Stats()
	if err := s.Journal.RecordSample(ctx, journal.Sample{
		Tick:     s.World.Tick(),
		Advanced: cs.Advanced,
		Dropped:  cs.Dropped,
		Moves:    totalMoves(ps),
		Crashes:  ps.Crashes,
	}); err != nil {
		return err
	}
	return s.Journal.Flush(ctx)
}

func (s *Sim) report(startTick int32, elapsed time.Duration) Report {
	ps := s.Pool.Stats()
	rep := Report{
		Ticks:       s.World.Tick() - startTick,
		Elapsed:     elapsed,
		Coordinator: s.Coord.Stats(),
		Pool:        ps,
		Moves:       totalMoves(ps),
	}
	if elapsed > 0 {
		rep.TicksPerSec = float64(rep.Ticks) / elapsed.Seconds()
	}
	return rep
}

func totalMoves(ps engine.PoolStats) uint64 {
	var n uint64
	for _, ws := range ps.PerWorker {
		n += ws.Moves
	}
	return n
}
