//go:build !linux

package futex

import (
	"sync/atomic"
	"time"
)

// Native reports whether Wait parks in the kernel instead of polling.
const Native = false

const (
	pollMin = 20 * time.Microsecond
	pollMax = time.Millisecond
)

// Wait polls *addr with a growing sleep while it still equals val, for at most
// timeout. A non-positive timeout polls without limit.
func Wait(addr *int32, val int32, timeout time.Duration) {
	var deadline time.Time
	if timeout > 0 {
		deadline = time.Now().Add(timeout)
	}
	sleep := pollMin
	for atomic.LoadInt32(addr) == val {
		if !deadline.IsZero() {
			left := time.Until(deadline)
			if left <= 0 {
				return
			}
			if sleep > left {
				sleep = left
			}
		}
		time.Sleep(sleep)
		if sleep < pollMax {
			sleep *= 2
		}
	}
}

// Wake is a no-op: pollers observe the change on their next check.
func Wake(addr *int32, n int) {}
