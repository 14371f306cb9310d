// Copyright 2026 Joseph Cumines
//
// Permission to use, copy, modify, and distribute this software for any
// purpose with or without fee is hereby granted, provided that this copyright
// notice appears in all copies.

package reactor

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	"code.hybscloud.com/atomix"
	"github.com/bassosimone/runtimex"
	"github.com/google/uuid"
	"github.com/joeycumines/go-catrate"
	"github.com/joeycumines/go-reactor/socket"
	"github.com/joeycumines/go-reactor/syserr"
	"github.com/joeycumines/logiface"
)

// Pollable is anything backed by an OS socket handle, e.g. *socket.Socket.
type Pollable interface {
	Handle() socket.Handle
}

// EventQueue is the reactor. All methods are safe for concurrent use, except
// Close, which must not overlap with ProcessEvents.
type EventQueue struct {
	logger      *logiface.Logger[logiface.Event]
	limiter     *catrate.Limiter
	metrics     *metricsCounters
	id          string
	sched       callbackQueue
	timers      timerIndex
	table       table
	poller      poller
	maxEvents   int
	waiting     atomix.Int32
	dispatching atomix.Int32
	finished    atomic.Bool
	closed      atomic.Bool
	draining    atomic.Bool
}

// New creates an EventQueue, using the platform's native facility.
func New(opts ...Option) (*EventQueue, error) {
	cfg, err := resolveOptions(opts)
	if err != nil {
		return nil, err
	}
	q := &EventQueue{
		logger:    cfg.logger,
		id:        runtimex.PanicOnError1(uuid.NewV7()).String(),
		maxEvents: cfg.maxEvents,
	}
	if len(cfg.errorLogRates) != 0 {
		if q.limiter, err = newLimiter(cfg.errorLogRates); err != nil {
			return nil, err
		}
	}
	if cfg.metrics {
		q.metrics = new(metricsCounters)
	}
	q.sched.init()
	q.timers.init()
	q.table.init()
	if err := q.poller.init(q); err != nil {
		q.logger.Err().
			Err(err).
			Str(`class`, syserr.Class(err)).
			Log(`reactor init failed`)
		return nil, err
	}
	q.logger.Debug().
		Str(`reactor`, q.id).
		Int(`max_events`, q.maxEvents).
		Log(`reactor created`)
	return q, nil
}

// ID returns the unique id of q, as used in log events.
func (q *EventQueue) ID() string {
	return q.id
}

// CallOnReadable arms cb to run once when s becomes readable (or a listening
// socket has a pending connection).
func (q *EventQueue) CallOnReadable(s Pollable, cb Callback) error {
	return q.subscribe(s, KindReadable, cb)
}

// CallOnWritable arms cb to run once when s becomes writable (or a
// connecting socket has connected).
func (q *EventQueue) CallOnWritable(s Pollable, cb Callback) error {
	return q.subscribe(s, KindWritable, cb)
}

// CallOnError arms cb to run once when s reports an error or hang-up.
func (q *EventQueue) CallOnError(s Pollable, cb Callback) error {
	return q.subscribe(s, KindError, cb)
}

func (q *EventQueue) subscribe(s Pollable, kind Kind, cb Callback) error {
	if cb == nil {
		return ErrNilCallback
	}
	if s == nil {
		return ErrInvalidHandle
	}
	return q.subscribeHandle(s.Handle(), kind, cb)
}

func (q *EventQueue) subscribeHandle(h socket.Handle, kind Kind, cb Callback) error {
	if q.closed.Load() {
		return ErrClosed
	}
	if h == socket.InvalidHandle {
		return ErrInvalidHandle
	}
	index, created := q.table.register(h, kind, cb)
	q.metrics.incSubscriptions()
	// the slot stays in place on failure, a later arming may succeed
	if err := q.poller.arm(h, index, kind, created); err != nil {
		q.logArmError(`arm`, err)
		return err
	}
	return nil
}

// Deregister drops every callback armed for s (without invoking them), and
// removes s from the OS interest set. It must be called before closing a
// socket that was ever armed. Callbacks already taken for dispatch by
// another goroutine may still run.
func (q *EventQueue) Deregister(s Pollable) error {
	if q.closed.Load() {
		return ErrClosed
	}
	if s == nil {
		return ErrInvalidHandle
	}
	return q.deregisterHandle(s.Handle())
}

func (q *EventQueue) deregisterHandle(h socket.Handle) error {
	index, ok := q.table.drop(h)
	if !ok {
		return nil
	}
	return q.poller.disarm(h, index)
}

// ScheduleCallback queues cb to run once on a ProcessEvents goroutine, and
// wakes a waiter. Callbacks scheduled by one goroutine run in order; queued
// callbacks never run concurrently with each other. It returns ErrFinished
// once Finish has been called.
func (q *EventQueue) ScheduleCallback(cb Callback) error {
	if cb == nil {
		return ErrNilCallback
	}
	if q.closed.Load() {
		return ErrClosed
	}
	if q.finished.Load() {
		return ErrFinished
	}
	q.sched.push(cb)
	if err := q.poller.wake(); err != nil {
		q.logArmError(`wake`, err)
		return err
	}
	return nil
}

// ProcessEvents waits up to timeout for events, and dispatches every event
// received by a single wait call. A negative timeout waits indefinitely; a
// zero timeout polls. It returns the number of callbacks invoked, and
// returns 0 immediately once Finish has been called. A Finish from within
// one of the callbacks stops the dispatch of the rest of the batch, and
// that call also returns 0.
func (q *EventQueue) ProcessEvents(timeout time.Duration) (int, error) {
	if q.closed.Load() {
		return 0, ErrClosed
	}
	if q.finished.Load() {
		return 0, nil
	}
	q.waiting.Add(1)
	n, err := q.poller.poll(timeout)
	q.waiting.Add(-1)
	if err != nil {
		q.metrics.incWaitErrors()
		if q.allowLog(`poll`) {
			q.logger.Err().
				Str(`reactor`, q.id).
				Err(err).
				Str(`class`, syserr.Class(err)).
				Log(`wait failed`)
		}
		return n, err
	}
	return n, nil
}

// Run calls ProcessEvents until Finish is called (returning nil), ctx is
// done (returning ctx.Err()) or the wait call fails.
func (q *EventQueue) Run(ctx context.Context) error {
	stop := context.AfterFunc(ctx, func() { _ = q.poller.wake() })
	defer stop()
	for {
		if err := ctx.Err(); err != nil {
			// pass the wake on, other Run calls may share ctx
			_ = q.poller.wake()
			return err
		}
		if q.finished.Load() {
			return nil
		}
		if _, err := q.ProcessEvents(-1); err != nil {
			return err
		}
	}
}

// Finish stops the event queue: every goroutine blocked in ProcessEvents
// returns, and any later call returns 0 immediately. Finish may be called
// from a callback, and more than once.
func (q *EventQueue) Finish() {
	if !q.finished.CompareAndSwap(false, true) {
		return
	}
	if err := q.poller.finish(); err != nil {
		q.logger.Err().
			Str(`reactor`, q.id).
			Err(err).
			Log(`finish signal failed`)
	}
	q.logger.Debug().
		Str(`reactor`, q.id).
		Log(`reactor finished`)
}

// Close finishes q, frees its remaining timers and releases the OS
// resources. It must only be called once no goroutine is inside
// ProcessEvents or Run.
func (q *EventQueue) Close() error {
	if !q.closed.CompareAndSwap(false, true) {
		return ErrClosed
	}
	q.Finish()
	for _, t := range q.timers.all() {
		_ = q.FreeTimer(t)
	}
	err := q.poller.close()
	q.logger.Debug().
		Str(`reactor`, q.id).
		Int(`slots`, q.table.len()).
		Log(`reactor closed`)
	return err
}

// State returns a snapshot of what q is doing.
func (q *EventQueue) State() State {
	switch {
	case q.finished.Load():
		return StateFinished
	case q.dispatching.Load() > 0:
		return StateDispatching
	case q.waiting.Load() > 0:
		return StateWaiting
	default:
		return StateIdle
	}
}

// Metrics returns the counters, all zero unless WithMetrics was enabled.
func (q *EventQueue) Metrics() Metrics {
	return q.metrics.snapshot()
}

// dispatch consumes and invokes a slot callback, reporting whether one ran.
func (q *EventQueue) dispatch(index int, kind Kind) bool {
	cb := q.table.consume(index, kind)
	if cb == nil {
		return false
	}
	q.metrics.incCallbacks()
	q.invoke(cb)
	return true
}

// runScheduled drains the ScheduleCallback queue. Only one goroutine drains
// at a time, which keeps queued callbacks in order.
func (q *EventQueue) runScheduled() int {
	var n int
	for {
		if !q.draining.CompareAndSwap(false, true) {
			return n
		}
		for {
			cb, ok := q.sched.pop()
			if !ok {
				break
			}
			q.metrics.incScheduled()
			q.invoke(cb)
			n++
		}
		q.draining.Store(false)
		// a push may have raced with the release
		if q.sched.len() == 0 {
			return n
		}
	}
}

func (q *EventQueue) invoke(cb Callback) {
	q.dispatching.Add(1)
	defer q.dispatching.Add(-1)
	cb()
}

// newLimiter converts the panic raised for invalid rates into an error.
func newLimiter(rates map[time.Duration]int) (limiter *catrate.Limiter, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("reactor: invalid error log rates: %v", r)
		}
	}()
	return catrate.NewLimiter(rates), nil
}

func (q *EventQueue) allowLog(category string) bool {
	if q.limiter == nil {
		return true
	}
	_, ok := q.limiter.Allow(category)
	return ok
}

func (q *EventQueue) logArmError(op string, err error) {
	if !q.allowLog(op) {
		return
	}
	q.logger.Err().
		Str(`reactor`, q.id).
		Str(`op`, op).
		Err(err).
		Str(`class`, syserr.Class(err)).
		Log(`arming failed`)
}
