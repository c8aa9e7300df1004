package shm

import (
	"errors"
	"fmt"
	"sync"
	"unsafe"
)

// ErrAllocation reports that a block could not be reserved, either because it
// exceeds the configured maximum or because the host refused the mapping.
var ErrAllocation = errors.New("shared memory allocation failed")

// Region is one allocated block plus the plan describing it.
type Region struct {
	plan Plan
	buf  []byte

	release   func() error
	closeOnce sync.Once
	closeErr  error
}

// Allocate lays out fields and reserves a block large enough to hold them,
// rounded up to the host page size. The block is zeroed.
func Allocate(fields []Field, maxBytes int) (*Region, error) {
	plan, err := Layout(fields)
	if err != nil {
		return nil, err
	}
	if maxBytes > 0 && plan.Total > maxBytes {
		return nil, fmt.Errorf("%w: need %d bytes, limit is %d", ErrAllocation, plan.Total, maxBytes)
	}
	size := alignUp(plan.Total, pageSize())
	if size == 0 {
		size = pageSize()
	}
	buf, release, err := mapBlock(size)
	if err != nil {
		return nil, fmt.Errorf("%w: map %d bytes: %v", ErrAllocation, size, err)
	}
	return &Region{plan: plan, buf: buf, release: release}, nil
}

// Plan returns the layout the region was built from.
func (r *Region) Plan() Plan { return r.plan }

// Bytes exposes the raw block, including page-rounding slack.
func (r *Region) Bytes() []byte { return r.buf }

// Close unmaps the block. Views obtained earlier must not be used afterwards.
func (r *Region) Close() error {
	r.closeOnce.Do(func() {
		if r.release != nil {
			r.closeErr = r.release()
		}
		r.buf = nil
	})
	return r.closeErr
}

// Uint8s returns the named uint8 array.
func (r *Region) Uint8s(name string) []uint8 {
	p := r.placement(name, Uint8)
	if p.Count == 0 {
		return nil
	}
	return r.buf[p.Offset : p.Offset+p.Count : p.Offset+p.Count]
}

// Int32s returns the named int32 array.
func (r *Region) Int32s(name string) []int32 {
	p := r.placement(name, Int32)
	if p.Count == 0 {
		return nil
	}
	return unsafe.Slice((*int32)(unsafe.Pointer(&r.buf[p.Offset])), p.Count)
}

// Uint32s returns the named uint32 array.
func (r *Region) Uint32s(name string) []uint32 {
	p := r.placement(name, Uint32)
	if p.Count == 0 {
		return nil
	}
	return unsafe.Slice((*uint32)(unsafe.Pointer(&r.buf[p.Offset])), p.Count)
}

// Float32s returns the named float32 array.
func (r *Region) Float32s(name string) []float32 {
	p := r.placement(name, Float32)
	if p.Count == 0 {
		return nil
	}
	return unsafe.Slice((*float32)(unsafe.Pointer(&r.buf[p.Offset])), p.Count)
}

// Uint64s returns the named uint64 array.
func (r *Region) Uint64s(name string) []uint64 {
	p := r.placement(name, Uint64)
	if p.Count == 0 {
		return nil
	}
	return unsafe.Slice((*uint64)(unsafe.Pointer(&r.buf[p.Offset])), p.Count)
}

// placement panics on unknown names and kind mismatches: both are programming
// errors in the caller's field table, not runtime conditions.
func (r *Region) placement(name string, want Kind) Placement {
	p, ok := r.plan.Lookup(name)
	if !ok {
		panic(fmt.Sprintf("shm: no field %q", name))
	}
	if p.Kind != want {
		panic(fmt.Sprintf("shm: field %q is %v, not %v", name, p.Kind, want))
	}
	return p
}
