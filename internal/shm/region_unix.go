//go:build unix

package shm

import "golang.org/x/sys/unix"

func pageSize() int { return unix.Getpagesize() }

// mapBlock maps anonymous shared memory. Page alignment of the mapping keeps
// every field offset produced by Layout naturally aligned in absolute terms.
func mapBlock(size int) ([]byte, func() error, error) {
	buf, err := unix.Mmap(-1, 0, size, unix.PROT_READ|unix.PROT_WRITE, unix.MAP_SHARED|unix.MAP_ANON)
	if err != nil {
		return nil, nil, err
	}
	return buf, func() error { return unix.Munmap(buf) }, nil
}
