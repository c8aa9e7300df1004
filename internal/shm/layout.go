// Package shm places heterogeneous typed arrays inside one contiguous shared
// memory block.
//
// The placement is a fixed contract: every goroutine that maps the same block
// computes identical offsets from the same field list, so no offsets ever need
// to be exchanged.
package shm

import (
	"errors"
	"fmt"
	"hash/fnv"
)

// Kind enumerates the supported element types.
type Kind uint8

const (
	// Uint8 is a one byte unsigned element.
	Uint8 Kind = iota + 1
	// Int32 is a four byte signed element, usable with sync/atomic.
	Int32
	// Uint32 is a four byte unsigned element.
	Uint32
	// Float32 is a four byte IEEE-754 element.
	Float32
	// Uint64 is an eight byte unsigned element, usable with sync/atomic.
	Uint64
)

// Size returns the element size in bytes, or 0 for an unknown kind.
func (k Kind) Size() int {
	switch k {
	case Uint8:
		return 1
	case Int32, Uint32, Float32:
		return 4
	case Uint64:
		return 8
	default:
		return 0
	}
}

func (k Kind) String() string {
	switch k {
	case Uint8:
		return "uint8"
	case Int32:
		return "int32"
	case Uint32:
		return "uint32"
	case Float32:
		return "float32"
	case Uint64:
		return "uint64"
	default:
		return fmt.Sprintf("kind(%d)", uint8(k))
	}
}

// Field declares one named array in the block.
type Field struct {
	Name  string
	Kind  Kind
	Count int
}

// Placement records where a field landed.
type Placement struct {
	Field
	Offset int
}

// Bytes returns the number of bytes the field occupies.
func (p Placement) Bytes() int { return p.Kind.Size() * p.Count }

// Plan is the result of laying out a field list.
type Plan struct {
	Fields []Placement
	Total  int

	index map[string]int
}

// ErrLayout reports an invalid field declaration.
var ErrLayout = errors.New("invalid layout")

// Layout assigns offsets to fields in declaration order. Each offset is the
// running total rounded up to the element size so atomic access stays
// aligned. Layout is pure: equal inputs always produce equal plans.
func Layout(fields []Field) (Plan, error) {
	plan := Plan{
		Fields: make([]Placement, 0, len(fields)),
		index:  make(map[string]int, len(fields)),
	}
	offset := 0
	for _, f := range fields {
		size := f.Kind.Size()
		if size == 0 {
			return Plan{}, fmt.Errorf("%w: field %q has unknown kind %v", ErrLayout, f.Name, f.Kind)
		}
		if f.Name == "" {
			return Plan{}, fmt.Errorf("%w: unnamed field", ErrLayout)
		}
		if f.Count < 0 {
			return Plan{}, fmt.Errorf("%w: field %q has negative count %d", ErrLayout, f.Name, f.Count)
		}
		if _, dup := plan.index[f.Name]; dup {
			return Plan{}, fmt.Errorf("%w: duplicate field %q", ErrLayout, f.Name)
		}
		offset = alignUp(offset, size)
		plan.index[f.Name] = len(plan.Fields)
		plan.Fields = append(plan.Fields, Placement{Field: f, Offset: offset})
		offset += size * f.Count
	}
	plan.Total = offset
	return plan, nil
}

// Lookup returns the placement for a named field.
func (p Plan) Lookup(name string) (Placement, bool) {
	i, ok := p.index[name]
	if !ok {
		return Placement{}, false
	}
	return p.Fields[i], true
}

// Offsets returns the field offsets in declaration order.
func (p Plan) Offsets() []int {
	out := make([]int, len(p.Fields))
	for i, f := range p.Fields {
		out[i] = f.Offset
	}
	return out
}

// Checksum digests names, kinds, counts and offsets. Two parties holding plans
// with the same checksum agree on where every array starts.
func (p Plan) Checksum() uint64 {
	h := fnv.New64a()
	var buf [8]byte
	put := func(v uint64) {
		for i := range buf {
			buf[i] = byte(v >> (8 * i))
		}
		h.Write(buf[:])
	}
	for _, f := range p.Fields {
		h.Write([]byte(f.Name))
		put(uint64(f.Kind))
		put(uint64(f.Count))
		put(uint64(f.Offset))
	}
	put(uint64(p.Total))
	return h.Sum64()
}

func alignUp(n, to int) int {
	if to <= 1 {
		return n
	}
	return (n + to - 1) / to * to
}
