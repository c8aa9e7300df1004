package engine

import (
	"sync/atomic"

	"stardust/internal/futex"
	"stardust/internal/world"
)

// Recover reclaims every cell lock held by worker id by scanning the whole
// grid. The worker's slot reads Crashed while the scan runs and Idle after.
// It returns the number of locks released.
func Recover(w *world.World, id int32) int {
	slot := int(id) - 1
	w.SetStatus(slot, world.StatusCrashed)
	released := 0
	for i := range w.Cells.Lock {
		if atomic.CompareAndSwapInt32(&w.Cells.Lock[i], id, world.OwnerNone) {
			released++
		}
	}
	markIdle(w, slot)
	return released
}

// RecoverHeld is Recover restricted to the cells the worker was tracking.
func RecoverHeld(w *world.World, id int32, held []int) int {
	slot := int(id) - 1
	w.SetStatus(slot, world.StatusCrashed)
	released := 0
	for _, i := range held {
		if atomic.CompareAndSwapInt32(&w.Cells.Lock[i], id, world.OwnerNone) {
			released++
		}
	}
	markIdle(w, slot)
	return released
}

func markIdle(w *world.World, slot int) {
	w.SetStatus(slot, world.StatusIdle)
	futex.Wake(w.StatusAddr(slot), futex.WakeAll)
}
