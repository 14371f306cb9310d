// Copyright 2026 Joseph Cumines
//
// Permission to use, copy, modify, and distribute this software for any
// purpose with or without fee is hereby granted, provided that this copyright
// notice appears in all copies.

package reactor

// State is a snapshot of what an EventQueue is doing.
//
// The value is derived from counters, and is only a hint: it may change as
// soon as it has been read. StateFinished is terminal.
type State uint8

const (
	// StateIdle indicates no goroutine is inside ProcessEvents.
	StateIdle State = iota
	// StateWaiting indicates at least one goroutine is inside ProcessEvents,
	// none of which is invoking a callback.
	StateWaiting
	// StateDispatching indicates at least one callback is being invoked.
	StateDispatching
	// StateFinished indicates Finish has been called.
	StateFinished
)

// String returns a human-readable representation of the state.
func (s State) String() string {
	switch s {
	case StateIdle:
		return "Idle"
	case StateWaiting:
		return "Waiting"
	case StateDispatching:
		return "Dispatching"
	case StateFinished:
		return "Finished"
	default:
		return "Unknown"
	}
}
