// Package futex blocks goroutines on the value of an int32 word.
//
// Wait returns when the word no longer holds the expected value, when another
// goroutine calls Wake on the same address, when the timeout elapses, or
// spuriously. Callers always re-check the word after Wait returns.
package futex

import (
	"math"
	"sync/atomic"
	"time"
)

// WakeAll wakes every waiter on an address.
const WakeAll = math.MaxInt32

// WaitUntil blocks until cond reports true for the word, the deadline passes,
// or done is closed. It returns whether cond held on exit.
func WaitUntil(addr *int32, cond func(int32) bool, slice time.Duration, deadline time.Time, done <-chan struct{}) bool {
	for {
		cur := atomic.LoadInt32(addr)
		if cond(cur) {
			return true
		}
		if !deadline.IsZero() && !time.Now().Before(deadline) {
			return false
		}
		select {
		case <-done:
			return cond(atomic.LoadInt32(addr))
		default:
		}
		Wait(addr, cur, slice)
	}
}
