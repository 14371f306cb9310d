// Copyright 2026 Joseph Cumines
//
// Permission to use, copy, modify, and distribute this software for any
// purpose with or without fee is hereby granted, provided that this copyright
// notice appears in all copies.

package reactor

import (
	"time"

	"github.com/joeycumines/go-reactor/socket"
)

// pollerAPI is the contract between EventQueue and the platform poller.
//
// Timer methods (setTimer, ackTimer, rearmTimer, freeTimer) are called with
// the timer's mutex held. poll may be called by any number of goroutines at
// once, and is responsible for dispatching what it receives, via
// EventQueue.dispatch, EventQueue.runScheduled and EventQueue.fireTimer.
type pollerAPI interface {
	init(q *EventQueue) error
	close() error
	// arm (re)arms OS notification for the slot at index, which now holds a
	// callback of the given kind. created is set the first time the slot is
	// used.
	arm(h socket.Handle, index int, kind Kind, created bool) error
	disarm(h socket.Handle, index int) error
	poll(timeout time.Duration) (int, error)
	wake() error
	finish() error
	setTimer(t *Timer, first, interval time.Duration) error
	ackTimer(t *Timer) bool
	rearmTimer(t *Timer) error
	freeTimer(t *Timer) error
}

var _ pollerAPI = (*poller)(nil)

// durationToMillis converts a wait timeout, negative meaning forever, and
// rounding sub-millisecond waits up.
func durationToMillis(d time.Duration) int {
	if d < 0 {
		return -1
	}
	ms := d.Milliseconds()
	if ms == 0 && d > 0 {
		ms = 1
	}
	if ms > int64(^uint32(0)>>1) {
		ms = int64(^uint32(0) >> 1)
	}
	return int(ms)
}
