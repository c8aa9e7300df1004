package world

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"stardust/internal/futex"
)

// TryAcquire claims cell idx for owner with a single compare-and-swap. It
// never blocks.
func (w *World) TryAcquire(idx int, owner int32) bool {
	if owner == OwnerNone {
		return false
	}
	return atomic.CompareAndSwapInt32(&w.Cells.Lock[idx], OwnerNone, owner)
}

// Release frees cell idx if owner holds it and reports whether it did.
func (w *World) Release(idx int, owner int32) bool {
	if atomic.CompareAndSwapInt32(&w.Cells.Lock[idx], owner, OwnerNone) {
		return true
	}
	if checkLockOwner {
		panic(fmt.Sprintf("world: release of cell %d by %d, held by %d", idx, owner, w.LockOwner(idx)))
	}
	return false
}

// LockOwner returns the current holder of cell idx, or OwnerNone.
func (w *World) LockOwner(idx int) int32 { return atomic.LoadInt32(&w.Cells.Lock[idx]) }

// LockPolicy decides what WithGlobalLock does once its retries run out.
type LockPolicy int

const (
	// BestEffort runs the body unsynchronized and logs a warning.
	BestEffort LockPolicy = iota
	// FailFast returns ErrLockTimeout.
	FailFast
)

func (p LockPolicy) String() string {
	if p == FailFast {
		return "fail-fast"
	}
	return "best-effort"
}

// ErrLockTimeout is returned by WithGlobalLock under FailFast.
var ErrLockTimeout = errors.New("global lock timeout")

// LockOptions bounds the global lock retry loop.
type LockOptions struct {
	Attempts int
	Timeout  time.Duration
	Policy   LockPolicy
	Logger   *slog.Logger
}

// DefaultLockOptions spreads 200 attempts over two seconds and proceeds
// unsynchronized when they are exhausted.
func DefaultLockOptions() LockOptions {
	return LockOptions{Attempts: 200, Timeout: 2 * time.Second, Policy: BestEffort}
}

// WithGlobalLock runs body while holding the advisory global lock. Only
// callers that also use WithGlobalLock are excluded; workers never take it.
func (w *World) WithGlobalLock(ctx context.Context, opts LockOptions, body func() error) error {
	attempts := opts.Attempts
	if attempts <= 0 {
		attempts = 1
	}
	slice := opts.Timeout / time.Duration(attempts)
	if slice <= 0 {
		slice = time.Millisecond
	}
	addr := &w.globalLock[0]

	for i := 1; ; i++ {
		if atomic.CompareAndSwapInt32(addr, 0, 1) {
			defer func() {
				atomic.StoreInt32(addr, 0)
				futex.Wake(addr, futex.WakeAll)
			}()
			return body()
		}
		if i >= attempts {
			break
		}
		if err := ctx.Err(); err != nil {
			return err
		}
		futex.Wait(addr, 1, slice)
	}

	if opts.Policy == FailFast {
		return fmt.Errorf("%w after %d attempts", ErrLockTimeout, attempts)
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	logger.Warn("global lock not acquired, proceeding unsynchronized", "attempts", attempts, "timeout", opts.Timeout)
	return body()
}

// GlobalLockHeld reports whether someone currently holds the global lock.
func (w *World) GlobalLockHeld() bool { return atomic.LoadInt32(&w.globalLock[0]) != 0 }

// ErrInvalidWindow reports a window outside the world's capacity.
var ErrInvalidWindow = errors.New("invalid simulation window")

// SetWindow resizes the active rectangle under the global lock.
func (w *World) SetWindow(ctx context.Context, opts LockOptions, r Rect) error {
	if r.X1 < 0 || r.Y1 < 0 || r.Empty() || r.X2 > w.desc.MaxWidth || r.Y2 > w.desc.MaxHeight {
		return fmt.Errorf("%w: %+v exceeds %dx%d", ErrInvalidWindow, r, w.desc.MaxWidth, w.desc.MaxHeight)
	}
	return w.WithGlobalLock(ctx, opts, func() error {
		w.storeWindow(r)
		return nil
	})
}

// SetWrapping replaces the per-edge wrapping behaviour under the global lock.
func (w *World) SetWrapping(ctx context.Context, opts LockOptions, edges [4]uint8) error {
	return w.WithGlobalLock(ctx, opts, func() error {
		copy(w.wrapping, edges[:])
		return nil
	})
}
