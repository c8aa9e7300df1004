package engine

import (
	"errors"
	"fmt"

	"stardust/internal/world"
)

// ErrProtocolViolation is returned when a handshake does not describe the
// world it carries.
var ErrProtocolViolation = errors.New("protocol violation")

// ErrNoWorkers is returned by Pool.Start when every worker failed to load.
var ErrNoWorkers = errors.New("no workers available")

// Handshake is the single message a worker receives before it starts.
type Handshake struct {
	ID         int32
	World      *world.World
	Descriptor world.Descriptor
	// Tick is the global tick at handshake time, the worker's first
	// last-seen value.
	Tick int32
}

// Validate checks the handshake against the world it carries.
func (h Handshake) Validate() error {
	if h.World == nil {
		return fmt.Errorf("%w: handshake without world", ErrProtocolViolation)
	}
	if h.ID < 1 || int(h.ID) > h.World.Descriptor().MaxWorkers {
		return fmt.Errorf("%w: worker id %d out of range", ErrProtocolViolation, h.ID)
	}
	got := h.World.Descriptor()
	if got != h.Descriptor {
		return fmt.Errorf("%w: descriptor %dx%d/%x does not match world %dx%d/%x", ErrProtocolViolation,
			h.Descriptor.MaxWidth, h.Descriptor.MaxHeight, h.Descriptor.Checksum,
			got.MaxWidth, got.MaxHeight, got.Checksum)
	}
	return nil
}

// Event is a message from a worker to its pool. The set is closed.
type Event interface {
	Worker() int32
	event()
}

// EventReady is sent once the worker goroutine is running.
type EventReady struct {
	ID int32
}

// EventLoadFailed reports a worker that never started.
type EventLoadFailed struct {
	ID  int32
	Err error
}

// EventCrashed reports a recovered panic. The tick was abandoned and the
// worker's locks released.
type EventCrashed struct {
	ID       int32
	Tick     int32
	Reason   string
	Released int
}

// EventExited is sent when a worker leaves its loop on shutdown.
type EventExited struct {
	ID int32
}

func (e EventReady) Worker() int32      { return e.ID }
func (e EventLoadFailed) Worker() int32 { return e.ID }
func (e EventCrashed) Worker() int32    { return e.ID }
func (e EventExited) Worker() int32     { return e.ID }

func (EventReady) event()      {}
func (EventLoadFailed) event() {}
func (EventCrashed) event()    {}
func (EventExited) event()     {}

// EventSink receives every event after the pool has logged it.
type EventSink interface {
	HandleEvent(Event)
}
