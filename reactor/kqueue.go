// Copyright 2026 Joseph Cumines
//
// Permission to use, copy, modify, and distribute this software for any
// purpose with or without fee is hereby granted, provided that this copyright
// notice appears in all copies.

//go:build darwin || freebsd

package reactor

import (
	"sync"
	"time"

	"github.com/joeycumines/go-reactor/socket"
	"github.com/joeycumines/go-reactor/syserr"
	"golang.org/x/sys/unix"
)

// EVFILT_USER idents.
const (
	identWake   = 1
	identFinish = 2
)

// nativeTimer is an EVFILT_TIMER ident (the timer id), 0 once freed.
type nativeTimer struct {
	ident     uint64
	repeating bool
}

var invalidNativeTimer = nativeTimer{}

func (x nativeTimer) valid() bool {
	return x.ident != 0
}

// poller manages readiness using kqueue (macOS, FreeBSD).
//
// Socket filters are EV_CLEAR, and re-added on every arming: EV_ADD of an
// existing knote re-evaluates the filter. Scheduled callbacks are signalled
// with an EV_CLEAR user event; Finish triggers a second user event, without
// EV_CLEAR, that stays active.
type poller struct {
	q    *EventQueue
	bufs sync.Pool
	kq   int
}

func (p *poller) init(q *EventQueue) error {
	p.q = q
	maxEvents := q.maxEvents
	p.bufs.New = func() any {
		buf := make([]unix.Kevent_t, maxEvents)
		return &buf
	}

	kq, err := unix.Kqueue()
	if err != nil {
		p.kq = -1
		return syserr.Wrap(`kqueue`, err)
	}
	unix.CloseOnExec(kq)
	p.kq = kq

	changes := make([]unix.Kevent_t, 2)
	unix.SetKevent(&changes[0], identWake, unix.EVFILT_USER, unix.EV_ADD|unix.EV_CLEAR)
	unix.SetKevent(&changes[1], identFinish, unix.EVFILT_USER, unix.EV_ADD)
	if err := p.apply(changes...); err != nil {
		_ = p.close()
		return err
	}
	return nil
}

func (p *poller) close() error {
	if p.kq < 0 {
		return nil
	}
	err := unix.Close(p.kq)
	p.kq = -1
	return syserr.Wrap(`close`, err)
}

// apply submits changes, without receiving events.
func (p *poller) apply(changes ...unix.Kevent_t) error {
	for {
		_, err := unix.Kevent(p.kq, changes, nil, nil)
		if err == unix.EINTR {
			continue
		}
		return syserr.Wrap(`kevent`, err)
	}
}

func (p *poller) arm(h socket.Handle, _ int, kind Kind, _ bool) error {
	var k unix.Kevent_t
	filter := unix.EVFILT_READ
	if kind == KindWritable {
		filter = unix.EVFILT_WRITE
	}
	// errors arrive as EV_EOF on the read filter
	unix.SetKevent(&k, h, filter, unix.EV_ADD|unix.EV_CLEAR)
	return p.apply(k)
}

func (p *poller) disarm(h socket.Handle, _ int) error {
	var k unix.Kevent_t
	for _, filter := range [...]int{unix.EVFILT_READ, unix.EVFILT_WRITE} {
		unix.SetKevent(&k, h, filter, unix.EV_DELETE)
		if err := p.apply(k); err != nil && !syserr.Is(err, syserr.OriginErrno, int64(unix.ENOENT)) && !syserr.Is(err, syserr.OriginErrno, int64(unix.EBADF)) {
			return err
		}
	}
	return nil
}

func (p *poller) poll(timeout time.Duration) (int, error) {
	bufp := p.bufs.Get().(*[]unix.Kevent_t)
	defer p.bufs.Put(bufp)
	buf := *bufp

	var ts *unix.Timespec
	if timeout >= 0 {
		v := unix.NsecToTimespec(timeout.Nanoseconds())
		ts = &v
	}
	n, err := unix.Kevent(p.kq, nil, buf, ts)
	if err != nil {
		if err == unix.EINTR {
			return 0, nil
		}
		return 0, syserr.Wrap(`kevent`, err)
	}
	if n > 0 {
		p.q.metrics.incWakeups()
	}

	var invoked int
	for i := range buf[:n] {
		if p.q.finished.Load() {
			return 0, nil
		}
		ev := &buf[i]
		switch ev.Filter {
		case unix.EVFILT_USER:
			if ev.Ident != identWake {
				return 0, nil
			}
			invoked += p.q.runScheduled()
		case unix.EVFILT_TIMER:
			if t := p.q.timers.get(uint64(ev.Ident)); t != nil && p.q.fireTimer(t) {
				invoked++
			}
		case unix.EVFILT_READ, unix.EVFILT_WRITE:
			invoked += p.dispatchSlot(ev)
		}
	}
	if p.q.finished.Load() {
		return 0, nil
	}
	return invoked, nil
}

func (p *poller) dispatchSlot(ev *unix.Kevent_t) int {
	index, ok := p.q.table.lookup(socket.Handle(ev.Ident))
	if !ok {
		return 0
	}
	var n int
	if ev.Flags&(unix.EV_EOF|unix.EV_ERROR) != 0 && p.q.dispatch(index, KindError) {
		n++
	}
	kind := KindReadable
	if ev.Filter == unix.EVFILT_WRITE {
		kind = KindWritable
	}
	if p.q.dispatch(index, kind) {
		n++
	}
	return n
}

func (p *poller) trigger(ident int) error {
	var k unix.Kevent_t
	unix.SetKevent(&k, ident, unix.EVFILT_USER, 0)
	k.Fflags = unix.NOTE_TRIGGER
	return p.apply(k)
}

func (p *poller) wake() error {
	return p.trigger(identWake)
}

func (p *poller) finish() error {
	return p.trigger(identFinish)
}

// setTimer uses a native repeating timer when the first delay matches the
// interval, and otherwise a one-shot that rearmTimer converts. Repeating
// timers are EV_DISPATCH, and re-enabled once the callback returns.
func (p *poller) setTimer(t *Timer, first, interval time.Duration) error {
	if t.native.valid() {
		// start over, flags of an existing knote are not all replaced
		if err := p.freeTimer(t); err != nil {
			return err
		}
	}
	t.native.ident = t.id
	if interval > 0 && first == interval {
		t.native.repeating = true
		return p.addTimer(t, interval, unix.EV_ADD|unix.EV_DISPATCH)
	}
	t.native.repeating = false
	return p.addTimer(t, first, unix.EV_ADD|unix.EV_ONESHOT)
}

func (p *poller) addTimer(t *Timer, d time.Duration, flags int) error {
	var k unix.Kevent_t
	unix.SetKevent(&k, int(t.native.ident), unix.EVFILT_TIMER, flags)
	k.Fflags = unix.NOTE_USECONDS
	us := d.Microseconds()
	if us <= 0 {
		us = 1
	}
	k.Data = us
	return p.apply(k)
}

func (p *poller) ackTimer(*Timer) bool { return true }

func (p *poller) rearmTimer(t *Timer) error {
	if t.native.repeating {
		var k unix.Kevent_t
		unix.SetKevent(&k, int(t.native.ident), unix.EVFILT_TIMER, unix.EV_ENABLE|unix.EV_DISPATCH)
		return p.apply(k)
	}
	t.native.repeating = true
	return p.addTimer(t, t.interval, unix.EV_ADD|unix.EV_DISPATCH)
}

func (p *poller) freeTimer(t *Timer) error {
	if !t.native.valid() {
		return nil
	}
	var k unix.Kevent_t
	unix.SetKevent(&k, int(t.native.ident), unix.EVFILT_TIMER, unix.EV_DELETE)
	if err := p.apply(k); err != nil && !syserr.Is(err, syserr.OriginErrno, int64(unix.ENOENT)) {
		return err
	}
	return nil
}
