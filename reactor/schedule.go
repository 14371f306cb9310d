// Copyright 2026 Joseph Cumines
//
// Permission to use, copy, modify, and distribute this software for any
// purpose with or without fee is hereby granted, provided that this copyright
// notice appears in all copies.

package reactor

import (
	"sync"

	"github.com/eapache/queue"
)

// callbackQueue is the FIFO behind ScheduleCallback.
type callbackQueue struct {
	q  *queue.Queue
	mu sync.Mutex
}

func (x *callbackQueue) init() {
	x.q = queue.New()
}

func (x *callbackQueue) push(cb Callback) {
	x.mu.Lock()
	x.q.Add(cb)
	x.mu.Unlock()
}

func (x *callbackQueue) pop() (Callback, bool) {
	x.mu.Lock()
	defer x.mu.Unlock()
	if x.q.Length() == 0 {
		return nil, false
	}
	return x.q.Remove().(Callback), true
}

func (x *callbackQueue) len() int {
	x.mu.Lock()
	defer x.mu.Unlock()
	return x.q.Length()
}
