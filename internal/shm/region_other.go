//go:build !unix

package shm

import (
	"os"
	"unsafe"
)

func pageSize() int { return os.Getpagesize() }

// mapBlock falls back to a heap buffer backed by uint64 words so the base
// address is 8-byte aligned.
func mapBlock(size int) ([]byte, func() error, error) {
	words := make([]uint64, (size+7)/8)
	buf := unsafe.Slice((*byte)(unsafe.Pointer(&words[0])), len(words)*8)[:size]
	return buf, func() error { return nil }, nil
}
