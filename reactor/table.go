// Copyright 2026 Joseph Cumines
//
// Permission to use, copy, modify, and distribute this software for any
// purpose with or without fee is hereby granted, provided that this copyright
// notice appears in all copies.

package reactor

import (
	"sync"

	"github.com/joeycumines/go-reactor/socket"
)

// Kind selects one of the three callback slots of a handle.
type Kind uint8

const (
	KindReadable Kind = iota
	KindWritable
	KindError

	numKinds = 3
)

// String returns a human-readable representation of the kind.
func (k Kind) String() string {
	switch k {
	case KindReadable:
		return "readable"
	case KindWritable:
		return "writable"
	case KindError:
		return "error"
	default:
		return "unknown"
	}
}

// Callback is invoked by ProcessEvents, on whichever goroutine received the
// event.
type Callback func()

// slot holds the armed callbacks of one handle.
type slot struct {
	cbs    [numKinds]Callback
	handle socket.Handle
}

// table maps handles to slots. Slots live in an append-only arena, so an
// index stays valid (and keeps referring to the same handle value) for the
// lifetime of the table. Callbacks are always invoked by the caller, after
// the mutex has been released, so they may freely re-register.
type table struct {
	index map[socket.Handle]int
	slots []slot
	mu    sync.Mutex
}

func (x *table) init() {
	x.index = make(map[socket.Handle]int)
}

// register installs cb into the kind slot of h, replacing any callback that
// has not fired yet. It returns the slot index, and whether the slot was
// created by this call.
func (x *table) register(h socket.Handle, kind Kind, cb Callback) (index int, created bool) {
	x.mu.Lock()
	defer x.mu.Unlock()
	index, ok := x.index[h]
	if !ok {
		index = len(x.slots)
		x.slots = append(x.slots, slot{handle: h})
		x.index[h] = index
		created = true
	}
	x.slots[index].cbs[kind] = cb
	return index, created
}

// consume reads and clears a callback, returning nil if the slot was empty.
func (x *table) consume(index int, kind Kind) Callback {
	x.mu.Lock()
	defer x.mu.Unlock()
	if index < 0 || index >= len(x.slots) {
		return nil
	}
	cb := x.slots[index].cbs[kind]
	x.slots[index].cbs[kind] = nil
	return cb
}

// lookup finds the slot index of h.
func (x *table) lookup(h socket.Handle) (int, bool) {
	x.mu.Lock()
	defer x.mu.Unlock()
	index, ok := x.index[h]
	return index, ok
}

// drop clears every callback of h, without invoking them.
func (x *table) drop(h socket.Handle) (int, bool) {
	x.mu.Lock()
	defer x.mu.Unlock()
	index, ok := x.index[h]
	if !ok {
		return 0, false
	}
	x.slots[index].cbs = [numKinds]Callback{}
	return index, true
}

// len returns the number of slots ever created.
func (x *table) len() int {
	x.mu.Lock()
	defer x.mu.Unlock()
	return len(x.slots)
}
