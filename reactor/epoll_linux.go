// Copyright 2026 Joseph Cumines
//
// Permission to use, copy, modify, and distribute this software for any
// purpose with or without fee is hereby granted, provided that this copyright
// notice appears in all copies.

//go:build linux

package reactor

import (
	"sync"
	"time"
	"unsafe"

	"github.com/joeycumines/go-reactor/socket"
	"github.com/joeycumines/go-reactor/syserr"
	"golang.org/x/sys/unix"
)

// Reserved epoll tokens, slot indices being non-negative. Timer events carry
// tokenTimer with the timerfd in the remaining data word.
const (
	tokenWake   int32 = -1
	tokenFinish int32 = -2
	tokenTimer  int32 = -3
)

// Handles are watched edge-triggered for everything at once; the table
// decides what to do with an edge.
const epollSlotEvents = unix.EPOLLIN | unix.EPOLLOUT | unix.EPOLLRDHUP | unix.EPOLLET

// nativeTimer is a timerfd, -1 once freed.
type nativeTimer struct {
	fd int
}

var invalidNativeTimer = nativeTimer{fd: -1}

func (x nativeTimer) valid() bool {
	return x.fd >= 0
}

// poller manages readiness using epoll (Linux).
//
// Each slot index is carried in the event's data, so dispatch needs no handle
// lookup. Scheduled callbacks are signalled through an edge-triggered
// eventfd; Finish writes a second, level-triggered eventfd that is never
// read, so every later wait returns at once. Timerfds bypass the table,
// being registered EPOLLONESHOT and found through timers.
type poller struct {
	q        *EventQueue
	timers   map[int32]*Timer
	bufs     sync.Pool
	epfd     int
	wakeFd   int
	finishFd int
	timersMu sync.Mutex
}

func (p *poller) init(q *EventQueue) error {
	p.q = q
	p.epfd, p.wakeFd, p.finishFd = -1, -1, -1
	p.timers = make(map[int32]*Timer)
	maxEvents := q.maxEvents
	p.bufs.New = func() any {
		buf := make([]unix.EpollEvent, maxEvents)
		return &buf
	}

	var err error
	if p.epfd, err = unix.EpollCreate1(unix.EPOLL_CLOEXEC); err != nil {
		return syserr.Wrap(`epoll_create1`, err)
	}
	if p.wakeFd, err = unix.Eventfd(0, unix.EFD_CLOEXEC|unix.EFD_NONBLOCK); err != nil {
		_ = p.close()
		return syserr.Wrap(`eventfd`, err)
	}
	if p.finishFd, err = unix.Eventfd(0, unix.EFD_CLOEXEC|unix.EFD_NONBLOCK); err != nil {
		_ = p.close()
		return syserr.Wrap(`eventfd`, err)
	}
	if err := unix.EpollCtl(p.epfd, unix.EPOLL_CTL_ADD, p.wakeFd, &unix.EpollEvent{
		Events: unix.EPOLLIN | unix.EPOLLET,
		Fd:     tokenWake,
	}); err != nil {
		_ = p.close()
		return syserr.Wrap(`epoll_ctl`, err)
	}
	if err := unix.EpollCtl(p.epfd, unix.EPOLL_CTL_ADD, p.finishFd, &unix.EpollEvent{
		Events: unix.EPOLLIN,
		Fd:     tokenFinish,
	}); err != nil {
		_ = p.close()
		return syserr.Wrap(`epoll_ctl`, err)
	}
	return nil
}

func (p *poller) close() error {
	var first error
	for _, fd := range [...]*int{&p.finishFd, &p.wakeFd, &p.epfd} {
		if *fd < 0 {
			continue
		}
		if err := unix.Close(*fd); err != nil && first == nil {
			first = syserr.Wrap(`close`, err)
		}
		*fd = -1
	}
	return first
}

// arm registers h on first use and modifies it otherwise. EPOLL_CTL_MOD makes
// the kernel re-check readiness, so an edge that arrived while the slot was
// empty is reported again.
func (p *poller) arm(h socket.Handle, index int, _ Kind, created bool) error {
	ev := unix.EpollEvent{Events: epollSlotEvents, Fd: int32(index)}
	first, second := unix.EPOLL_CTL_MOD, unix.EPOLL_CTL_ADD
	if created {
		first, second = second, first
	}
	err := unix.EpollCtl(p.epfd, first, h, &ev)
	switch {
	case err == nil:
		return nil
	case err == unix.EEXIST && first == unix.EPOLL_CTL_ADD, err == unix.ENOENT && first == unix.EPOLL_CTL_MOD:
		// registered elsewhere, or removed by Deregister (or by closing)
		err = unix.EpollCtl(p.epfd, second, h, &ev)
	}
	return syserr.Wrap(`epoll_ctl`, err)
}

func (p *poller) disarm(h socket.Handle, _ int) error {
	err := unix.EpollCtl(p.epfd, unix.EPOLL_CTL_DEL, h, nil)
	if err == unix.ENOENT || err == unix.EBADF {
		return nil
	}
	return syserr.Wrap(`epoll_ctl`, err)
}

func (p *poller) poll(timeout time.Duration) (int, error) {
	bufp := p.bufs.Get().(*[]unix.EpollEvent)
	defer p.bufs.Put(bufp)
	buf := *bufp

	n, err := unix.EpollWait(p.epfd, buf, durationToMillis(timeout))
	if err != nil {
		if err == unix.EINTR {
			return 0, nil
		}
		return 0, syserr.Wrap(`epoll_wait`, err)
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
		switch ev.Fd {
		case tokenFinish:
			return 0, nil
		case tokenWake:
			p.drainWake()
			invoked += p.q.runScheduled()
		case tokenTimer:
			if t := p.timer(ev.Pad); t != nil && p.q.fireTimer(t) {
				invoked++
			}
		default:
			invoked += p.dispatchSlot(int(ev.Fd), ev.Events)
		}
	}
	if p.q.finished.Load() {
		return 0, nil
	}
	return invoked, nil
}

func (p *poller) dispatchSlot(index int, events uint32) int {
	var n int
	const hangup = unix.EPOLLERR | unix.EPOLLHUP | unix.EPOLLRDHUP
	if events&hangup != 0 && p.q.dispatch(index, KindError) {
		n++
	}
	if events&(unix.EPOLLIN|hangup) != 0 && p.q.dispatch(index, KindReadable) {
		n++
	}
	if events&(unix.EPOLLOUT|unix.EPOLLERR|unix.EPOLLHUP) != 0 && p.q.dispatch(index, KindWritable) {
		n++
	}
	return n
}

func (p *poller) wake() error {
	var one uint64 = 1
	_, err := unix.Write(p.wakeFd, (*[8]byte)(unsafe.Pointer(&one))[:])
	if err == unix.EAGAIN {
		// counter saturated, a wake is already pending
		return nil
	}
	return syserr.Wrap(`write`, err)
}

func (p *poller) drainWake() {
	var buf [8]byte
	_, _ = unix.Read(p.wakeFd, buf[:])
}

func (p *poller) finish() error {
	var one uint64 = 1
	_, err := unix.Write(p.finishFd, (*[8]byte)(unsafe.Pointer(&one))[:])
	if err == unix.EAGAIN {
		return nil
	}
	return syserr.Wrap(`write`, err)
}

// setTimer creates the timerfd on first use. Setting the time resets any
// pending expiration count.
func (p *poller) setTimer(t *Timer, first, interval time.Duration) error {
	created := false
	if !t.native.valid() {
		fd, err := unix.TimerfdCreate(unix.CLOCK_MONOTONIC, unix.TFD_NONBLOCK|unix.TFD_CLOEXEC)
		if err != nil {
			return syserr.Wrap(`timerfd_create`, err)
		}
		t.native.fd = fd
		created = true
	}
	spec := unix.ItimerSpec{
		Value:    unix.NsecToTimespec(first.Nanoseconds()),
		Interval: unix.NsecToTimespec(interval.Nanoseconds()),
	}
	var err error
	if err = unix.TimerfdSettime(t.native.fd, 0, &spec, nil); err != nil {
		err = syserr.Wrap(`timerfd_settime`, err)
	} else if created {
		p.timersMu.Lock()
		p.timers[int32(t.native.fd)] = t
		p.timersMu.Unlock()
		err = p.armTimer(t, unix.EPOLL_CTL_ADD)
	} else {
		err = p.armTimer(t, unix.EPOLL_CTL_MOD)
	}
	if err != nil && created {
		p.timersMu.Lock()
		delete(p.timers, int32(t.native.fd))
		p.timersMu.Unlock()
		_ = unix.Close(t.native.fd)
		t.native = invalidNativeTimer
	}
	return err
}

// armTimer enables one readiness report for the timerfd. The report is
// level-triggered, so an expiration that is still unread is reported again.
func (p *poller) armTimer(t *Timer, op int) error {
	return syserr.Wrap(`epoll_ctl`, unix.EpollCtl(p.epfd, op, t.native.fd, &unix.EpollEvent{
		Events: unix.EPOLLIN | unix.EPOLLONESHOT,
		Fd:     tokenTimer,
		Pad:    int32(t.native.fd),
	}))
}

func (p *poller) timer(fd int32) *Timer {
	p.timersMu.Lock()
	defer p.timersMu.Unlock()
	return p.timers[fd]
}

// ackTimer reads the expiration count. It reports false if there was none,
// which happens when SetTimer reset the timerfd after the wait returned.
func (p *poller) ackTimer(t *Timer) bool {
	var buf [8]byte
	n, err := unix.Read(t.native.fd, buf[:])
	return err == nil && n == len(buf)
}

func (p *poller) rearmTimer(t *Timer) error {
	return p.armTimer(t, unix.EPOLL_CTL_MOD)
}

func (p *poller) freeTimer(t *Timer) error {
	fd := t.native.fd
	if fd < 0 {
		return nil
	}
	p.timersMu.Lock()
	delete(p.timers, int32(fd))
	p.timersMu.Unlock()
	_ = unix.EpollCtl(p.epfd, unix.EPOLL_CTL_DEL, fd, nil)
	return syserr.Wrap(`close`, unix.Close(fd))
}
