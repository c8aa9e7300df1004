package engine

import (
	"context"
	"log/slog"
	"sync/atomic"
	"time"

	"stardust/internal/futex"
	"stardust/internal/world"
)

// idleWaitSlice bounds one futex wait on a status word so cancellation is
// noticed.
const idleWaitSlice = 10 * time.Millisecond

// CoordinatorStats counts tick attempts.
type CoordinatorStats struct {
	Advanced uint64 `json:"advanced"`
	Dropped  uint64 `json:"dropped"`
}

// Coordinator advances the global tick. It has a single owner; Advance must
// not be called concurrently.
type Coordinator struct {
	w      *world.World
	logger *slog.Logger

	advanced atomic.Uint64
	dropped  atomic.Uint64
}

// NewCoordinator returns a coordinator for w.
func NewCoordinator(w *world.World, logger *slog.Logger) *Coordinator {
	if logger == nil {
		logger = slog.Default()
	}
	return &Coordinator{w: w, logger: logger}
}

// Advance starts a new tick if every worker is idle. Otherwise the frame is
// dropped and the tick is left unchanged.
func (c *Coordinator) Advance() (int32, bool) {
	n := c.w.TotalWorkers()
	for i := 0; i < n; i++ {
		if s := c.w.Status(i); s != world.StatusIdle {
			dropped := c.dropped.Add(1)
			c.logger.Debug("tick dropped", "worker", i+1, "status", s.String(), "dropped", dropped)
			return c.w.Tick(), false
		}
	}
	for i := 0; i < n; i++ {
		c.w.SetStatus(i, world.StatusBusy)
	}
	tick := c.w.IncrementTick()
	futex.Wake(c.w.TickAddr(), futex.WakeAll)
	c.advanced.Add(1)
	return tick, true
}

// WaitIdle blocks until every worker slot reads Idle or ctx is done.
func (c *Coordinator) WaitIdle(ctx context.Context) error {
	idle := func(v int32) bool { return world.Status(v) == world.StatusIdle }
	deadline, _ := ctx.Deadline()
	n := c.w.TotalWorkers()
	for i := 0; i < n; i++ {
		if futex.WaitUntil(c.w.StatusAddr(i), idle, idleWaitSlice, deadline, ctx.Done()) {
			continue
		}
		if err := ctx.Err(); err != nil {
			return err
		}
		return context.DeadlineExceeded
	}
	return nil
}

// Step advances one tick and waits for it to finish, retrying dropped frames
// until ctx is done.
func (c *Coordinator) Step(ctx context.Context) (int32, error) {
	for {
		if err := c.WaitIdle(ctx); err != nil {
			return c.w.Tick(), err
		}
		if tick, ok := c.Advance(); ok {
			return tick, c.WaitIdle(ctx)
		}
	}
}

// Stats returns the counters so far.
func (c *Coordinator) Stats() CoordinatorStats {
	return CoordinatorStats{Advanced: c.advanced.Load(), Dropped: c.dropped.Load()}
}
