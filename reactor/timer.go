// Copyright 2026 Joseph Cumines
//
// Permission to use, copy, modify, and distribute this software for any
// purpose with or without fee is hereby granted, provided that this copyright
// notice appears in all copies.

package reactor

import (
	"runtime"
	"slices"
	"sync"
	"time"
)

// TimerSpec describes when a timer fires. The first expiration is At, if
// set, otherwise After from now; a due time in the past fires as soon as
// possible. A positive Interval makes the timer periodic.
type TimerSpec struct {
	At       time.Time
	After    time.Duration
	Interval time.Duration
}

// After returns a one-shot TimerSpec firing after d.
func After(d time.Duration) TimerSpec {
	return TimerSpec{After: d}
}

// At returns a one-shot TimerSpec firing at t.
func At(t time.Time) TimerSpec {
	return TimerSpec{At: t}
}

// Every returns a periodic TimerSpec firing every d, starting after d.
func Every(d time.Duration) TimerSpec {
	return TimerSpec{After: d, Interval: d}
}

// minTimerDelay stands in for "now", as a zero due time disarms most native
// timers.
const minTimerDelay = time.Microsecond

func (x TimerSpec) firstDelay() time.Duration {
	d := x.After
	if !x.At.IsZero() {
		d = time.Until(x.At)
	}
	if d < minTimerDelay {
		d = minTimerDelay
	}
	return d
}

// Timer is a native timer owned by an EventQueue, created by SetTimer and
// destroyed by FreeTimer.
type Timer struct {
	q        *EventQueue
	cb       Callback
	cond     sync.Cond
	native   nativeTimer
	firingG  []uint64
	interval time.Duration
	id       uint64
	mu       sync.Mutex
	freed    bool
}

// Interval returns the repeat period, 0 for a one-shot timer.
func (t *Timer) Interval() time.Duration {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.interval
}

// SetTimer creates (t == nil) or rearms (t != nil) a timer. When rearming, a
// nil cb keeps the current callback. The timer fires on a ProcessEvents
// goroutine; a periodic timer rearms itself once its callback returns.
func (q *EventQueue) SetTimer(t *Timer, spec TimerSpec, cb Callback) (*Timer, error) {
	if q.closed.Load() {
		return nil, ErrClosed
	}
	if spec.Interval < 0 {
		return nil, ErrInvalidTimer
	}
	if t == nil {
		if cb == nil {
			return nil, ErrNilCallback
		}
		t = &Timer{q: q, native: invalidNativeTimer, cb: cb}
		t.cond.L = &t.mu
		t.id = q.timers.add(t)
	} else if t.q != q {
		return nil, ErrInvalidTimer
	}

	t.mu.Lock()
	defer t.mu.Unlock()
	if t.freed {
		return nil, ErrTimerFreed
	}
	if cb != nil {
		t.cb = cb
	}
	t.interval = spec.Interval
	if err := q.poller.setTimer(t, spec.firstDelay(), spec.Interval); err != nil {
		q.logArmError(`set_timer`, err)
		if !t.native.valid() {
			t.freed = true
			q.timers.remove(t.id)
		}
		return nil, err
	}
	q.logger.Trace().
		Str(`reactor`, q.id).
		Uint64(`timer`, t.id).
		Dur(`interval`, spec.Interval).
		Log(`timer set`)
	return t, nil
}

// FreeTimer disarms and destroys t. If an expiration of t is being dispatched
// on another goroutine, FreeTimer waits for its callback to return, so t's
// callback is never invoked after FreeTimer returns. Calling FreeTimer from
// t's own callback is allowed. Freeing a timer twice returns ErrTimerFreed.
func (q *EventQueue) FreeTimer(t *Timer) error {
	if t == nil || t.q != q {
		return ErrInvalidTimer
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.freed {
		return ErrTimerFreed
	}
	t.freed = true
	self := getGoroutineID()
	for t.firingElsewhere(self) {
		t.cond.Wait()
	}
	q.timers.remove(t.id)
	err := q.poller.freeTimer(t)
	t.native = invalidNativeTimer
	return err
}

// fireTimer runs one expiration of t: the freed check, the callback, and
// the rearm of a periodic timer. It reports whether the callback ran.
func (q *EventQueue) fireTimer(t *Timer) bool {
	t.mu.Lock()
	if t.freed || !t.native.valid() {
		t.mu.Unlock()
		q.metrics.incTimerSkips()
		return false
	}
	if !q.poller.ackTimer(t) {
		// stale report, the timer was set again since
		if err := q.poller.rearmTimer(t); err != nil {
			q.logArmError(`rearm_timer`, err)
		}
		t.mu.Unlock()
		q.metrics.incTimerSkips()
		return false
	}
	cb := t.cb
	g := getGoroutineID()
	t.firingG = append(t.firingG, g)
	t.mu.Unlock()

	defer func() {
		t.mu.Lock()
		defer t.mu.Unlock()
		if i := slices.Index(t.firingG, g); i >= 0 {
			t.firingG = slices.Delete(t.firingG, i, i+1)
		}
		if !t.freed && t.interval > 0 {
			if err := q.poller.rearmTimer(t); err != nil {
				q.logArmError(`rearm_timer`, err)
			}
		}
		t.cond.Broadcast()
	}()

	q.metrics.incTimerFirings()
	q.invoke(cb)
	return true
}

// firingElsewhere reports whether a goroutine other than self is inside the
// callback. Must be called with t.mu held.
func (t *Timer) firingElsewhere(self uint64) bool {
	for _, g := range t.firingG {
		if g != self {
			return true
		}
	}
	return false
}

// timerIndex tracks live timers by id.
type timerIndex struct {
	timers map[uint64]*Timer
	next   uint64
	mu     sync.Mutex
}

func (x *timerIndex) init() {
	x.timers = make(map[uint64]*Timer)
}

// maxTimerID keeps ids representable as a pointer-sized value, with room for
// the completion key offset used on Windows.
const maxTimerID = uint64(^uintptr(0)) - 64

func (x *timerIndex) add(t *Timer) uint64 {
	x.mu.Lock()
	defer x.mu.Unlock()
	for {
		x.next++
		if x.next > maxTimerID {
			x.next = 1
		}
		if _, ok := x.timers[x.next]; !ok {
			break
		}
	}
	x.timers[x.next] = t
	return x.next
}

func (x *timerIndex) get(id uint64) *Timer {
	x.mu.Lock()
	defer x.mu.Unlock()
	return x.timers[id]
}

func (x *timerIndex) remove(id uint64) {
	x.mu.Lock()
	defer x.mu.Unlock()
	delete(x.timers, id)
}

func (x *timerIndex) all() []*Timer {
	x.mu.Lock()
	defer x.mu.Unlock()
	timers := make([]*Timer, 0, len(x.timers))
	for _, t := range x.timers {
		timers = append(timers, t)
	}
	return timers
}

// getGoroutineID parses the current goroutine's id out of its stack header.
func getGoroutineID() uint64 {
	var buf [64]byte
	n := runtime.Stack(buf[:], false)
	var id uint64
	for i := len("goroutine "); i < n; i++ {
		if buf[i] >= '0' && buf[i] <= '9' {
			id = id*10 + uint64(buf[i]-'0')
		} else {
			break
		}
	}
	return id
}
