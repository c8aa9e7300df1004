//go:build linux

package futex

import (
	"time"
	"unsafe"

	"golang.org/x/sys/unix"
)

// Native reports whether Wait parks in the kernel instead of polling.
const Native = true

const (
	opWait    = 0
	opWake    = 1
	opPrivate = 128
)

// Wait parks the calling thread while *addr == val, for at most timeout.
// A non-positive timeout waits without limit.
func Wait(addr *int32, val int32, timeout time.Duration) {
	var ts *unix.Timespec
	if timeout > 0 {
		t := unix.NsecToTimespec(int64(timeout))
		ts = &t
	}
	// EAGAIN (value already changed), EINTR and ETIMEDOUT all mean "re-check".
	_, _, _ = unix.Syscall6(
		unix.SYS_FUTEX,
		uintptr(unsafe.Pointer(addr)),
		opWait|opPrivate,
		uintptr(uint32(val)),
		uintptr(unsafe.Pointer(ts)),
		0,
		0,
	)
}

// Wake wakes up to n threads parked on addr.
func Wake(addr *int32, n int) {
	_, _, _ = unix.Syscall6(
		unix.SYS_FUTEX,
		uintptr(unsafe.Pointer(addr)),
		opWake|opPrivate,
		uintptr(n),
		0,
		0,
		0,
	)
}
