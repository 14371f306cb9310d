// Copyright 2026 Joseph Cumines
//
// Permission to use, copy, modify, and distribute this software for any
// purpose with or without fee is hereby granted, provided that this copyright
// notice appears in all copies.

//go:build windows

package reactor

import (
	"runtime"
	"sync"
	"time"

	"code.hybscloud.com/iox"
	"github.com/joeycumines/go-reactor/internal/winapi"
	"github.com/joeycumines/go-reactor/socket"
	"github.com/joeycumines/go-reactor/syserr"
	"golang.org/x/sys/windows"
)

const (
	// groupSize is the number of sockets sharing a WSA event, bounded by the
	// fd_set used to check them.
	groupSize = winapi.FD_SETSIZE
	// maxGroups leaves one wait slot for the control event.
	maxGroups = winapi.MAXIMUM_WAIT_OBJECTS - 1

	emulatedEvents = winapi.FD_READ | winapi.FD_WRITE | winapi.FD_ACCEPT | winapi.FD_CONNECT | winapi.FD_CLOSE
)

// pumps maps emulator thread ids to their emulator, for the timer APC.
var pumps sync.Map

// timerAPC is the waitable timer completion routine. It runs on the
// emulator thread, during its alertable wait, and forwards the expiration
// (the timer id being the argument) to the completion port.
var timerAPC = windows.NewCallback(func(arg, _, _ uintptr) uintptr {
	if v, ok := pumps.Load(windows.GetCurrentThreadId()); ok {
		_ = windows.PostQueuedCompletionStatus(v.(*emulator).port, 0, keyTimer+arg, nil)
	}
	return 0
})

// emulator derives socket readiness for the completion port.
//
// Sockets are associated (WSAEventSelect) with one of up to maxGroups
// manual-reset events. A dedicated OS thread waits, alertably, on those and
// a control event; when a group signals, it resets the event, checks just
// that group with a non-blocking select, and posts one completion per ready
// armed kind. Arming a socket signals its group, so readiness that predates
// the arming is found by the next check.
type emulator struct {
	q        *EventQueue
	byHandle map[socket.Handle]*emulatedSocket
	done     chan struct{}
	groups   []*socketGroup
	requests []emulatorRequest
	mu       sync.Mutex
	port     windows.Handle
	control  windows.Handle
	stopping bool
}

type socketGroup struct {
	sockets []*emulatedSocket
	event   windows.Handle
}

type emulatedSocket struct {
	group  *socketGroup
	index  int
	h      socket.Handle
	want   [numKinds]bool
	hangup bool
}

type emulatorRequest struct {
	fn   func() error
	done chan error
}

func startEmulator(q *EventQueue, port windows.Handle) (*emulator, error) {
	control, err := windows.CreateEvent(nil, 0, 0, nil)
	if err != nil {
		return nil, syserr.Wrap(`CreateEvent`, err)
	}
	e := &emulator{
		q:        q,
		port:     port,
		control:  control,
		byHandle: make(map[socket.Handle]*emulatedSocket),
		done:     make(chan struct{}),
	}
	started := make(chan struct{})
	go e.run(started)
	<-started
	q.logger.Debug().
		Str(`reactor`, q.id).
		Log(`readiness emulator started`)
	return e, nil
}

func (e *emulator) stop() {
	e.mu.Lock()
	e.stopping = true
	e.mu.Unlock()
	_ = windows.SetEvent(e.control)
	<-e.done

	e.mu.Lock()
	defer e.mu.Unlock()
	for _, r := range e.requests {
		r.done <- ErrClosed
	}
	e.requests = nil
	for _, g := range e.groups {
		for _, s := range g.sockets {
			_ = winapi.WSAEventSelect(s.h, 0, 0)
		}
		_ = windows.CloseHandle(g.event)
	}
	e.groups = nil
	clear(e.byHandle)
	_ = windows.CloseHandle(e.control)
}

func (e *emulator) run(started chan<- struct{}) {
	// the thread exits with the goroutine, taking any pending APCs with it
	runtime.LockOSThread()
	tid := windows.GetCurrentThreadId()
	pumps.Store(tid, e)
	defer close(e.done)
	defer pumps.Delete(tid)
	close(started)

	var (
		handles []windows.Handle
		groups  []*socketGroup
		backoff iox.Backoff
	)
	for {
		e.mu.Lock()
		requests := e.requests
		e.requests = nil
		e.mu.Unlock()
		for _, r := range requests {
			r.done <- r.fn()
		}

		e.mu.Lock()
		if e.stopping {
			e.mu.Unlock()
			return
		}
		handles = append(handles[:0], e.control)
		groups = append(groups[:0], e.groups...)
		for _, g := range groups {
			handles = append(handles, g.event)
		}
		e.mu.Unlock()

		r, err := winapi.WaitForMultipleObjectsEx(handles, windows.INFINITE, true)
		if err != nil {
			if e.q.allowLog(`emulator`) {
				e.q.logger.Err().
					Str(`reactor`, e.q.id).
					Err(err).
					Log(`emulator wait failed`)
			}
			backoff.Wait()
			continue
		}
		backoff.Reset()
		if i := int(r - winapi.WAIT_OBJECT_0); i >= 1 && i < len(handles) {
			e.check(groups[i-1])
		}
		// control and WAIT_IO_COMPLETION just go around again
	}
}

// do runs fn on the emulator thread.
func (e *emulator) do(fn func() error) error {
	r := emulatorRequest{fn: fn, done: make(chan error, 1)}
	e.mu.Lock()
	if e.stopping {
		e.mu.Unlock()
		return ErrClosed
	}
	e.requests = append(e.requests, r)
	e.mu.Unlock()
	if err := windows.SetEvent(e.control); err != nil {
		return syserr.Wrap(`SetEvent`, err)
	}
	return <-r.done
}

// setWaitableTimer must be called on the emulator thread.
func (e *emulator) setWaitableTimer(t *Timer, d time.Duration) error {
	due := -int64(d / 100)
	if due == 0 {
		due = -1
	}
	return syserr.Wrap(`SetWaitableTimer`, winapi.SetWaitableTimer(t.native.h, due, 0, timerAPC, uintptr(t.id)))
}

func (e *emulator) arm(h socket.Handle, index int, kind Kind) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.stopping {
		return ErrClosed
	}
	s := e.byHandle[h]
	if s == nil {
		g, err := e.groupWithRoom()
		if err != nil {
			return err
		}
		if err := winapi.WSAEventSelect(h, g.event, emulatedEvents); err != nil {
			return syserr.Wrap(`WSAEventSelect`, err)
		}
		s = &emulatedSocket{group: g, h: h}
		g.sockets = append(g.sockets, s)
		e.byHandle[h] = s
	}
	s.index = index
	s.want[kind] = true
	return syserr.Wrap(`SetEvent`, windows.SetEvent(s.group.event))
}

// groupWithRoom must be called with e.mu held.
func (e *emulator) groupWithRoom() (*socketGroup, error) {
	for _, g := range e.groups {
		if len(g.sockets) < groupSize {
			return g, nil
		}
	}
	if len(e.groups) >= maxGroups {
		return nil, ErrCapacity
	}
	event, err := windows.CreateEvent(nil, 1, 0, nil)
	if err != nil {
		return nil, syserr.Wrap(`CreateEvent`, err)
	}
	g := &socketGroup{event: event}
	e.groups = append(e.groups, g)
	// the emulator thread must pick up the new wait handle
	_ = windows.SetEvent(e.control)
	return g, nil
}

func (e *emulator) disarm(h socket.Handle) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	s := e.byHandle[h]
	if s == nil {
		return nil
	}
	e.removeLocked(s)
	if err := winapi.WSAEventSelect(h, 0, 0); err != nil && err != winapi.WSAENOTSOCK {
		return syserr.Wrap(`WSAEventSelect`, err)
	}
	return nil
}

func (e *emulator) removeLocked(s *emulatedSocket) {
	delete(e.byHandle, s.h)
	g := s.group
	for i, v := range g.sockets {
		if v == s {
			last := len(g.sockets) - 1
			g.sockets[i] = g.sockets[last]
			g.sockets[last] = nil
			g.sockets = g.sockets[:last]
			break
		}
	}
}

// check runs on the emulator thread, after g's event signalled.
func (e *emulator) check(g *socketGroup) {
	_ = windows.ResetEvent(g.event)

	e.mu.Lock()
	defer e.mu.Unlock()

	var read, write, except winapi.FdSet
	var armed int
	for _, s := range g.sockets {
		var ne winapi.NetworkEvents
		if err := winapi.WSAEnumNetworkEvents(s.h, 0, &ne); err == nil {
			if ne.Events&winapi.FD_CLOSE != 0 ||
				(ne.Events&winapi.FD_CONNECT != 0 && ne.ErrorCodes[winapi.FD_CONNECT_BIT] != 0) {
				s.hangup = true
			}
		}
		if !s.want[KindReadable] && !s.want[KindWritable] && !s.want[KindError] {
			continue
		}
		armed++
		read.Set(s.h)
		except.Set(s.h)
		if s.want[KindWritable] {
			write.Set(s.h)
		}
	}
	if armed == 0 {
		return
	}

	if _, err := winapi.Select(&read, &write, &except, &windows.Timeval{}); err != nil {
		// most likely a socket closed without being deregistered
		e.pruneLocked(g)
		_ = windows.SetEvent(g.event)
		return
	}

	for _, s := range g.sockets {
		failed := s.hangup || except.IsSet(s.h)
		e.post(s, KindError, failed)
		e.post(s, KindReadable, failed || read.IsSet(s.h))
		e.post(s, KindWritable, failed || write.IsSet(s.h))
	}
}

// post queues a slot dispatch, if kind is armed and ready.
func (e *emulator) post(s *emulatedSocket, kind Kind, ready bool) {
	if !ready || !s.want[kind] {
		return
	}
	s.want[kind] = false
	if err := windows.PostQueuedCompletionStatus(e.port, uint32(s.index), keySlot+uintptr(kind), nil); err != nil {
		// try again on the next check
		s.want[kind] = true
		if e.q.allowLog(`emulator`) {
			e.q.logger.Err().
				Str(`reactor`, e.q.id).
				Err(err).
				Log(`emulator post failed`)
		}
	}
}

// pruneLocked drops the sockets of g that are no longer valid. Their slots
// are left as they are, never to be invoked.
func (e *emulator) pruneLocked(g *socketGroup) {
	for _, s := range append([]*emulatedSocket(nil), g.sockets...) {
		var set winapi.FdSet
		set.Set(s.h)
		if _, err := winapi.Select(&set, nil, nil, &windows.Timeval{}); err != nil {
			e.removeLocked(s)
			e.q.logger.Warning().
				Str(`reactor`, e.q.id).
				Int(`slot`, s.index).
				Err(err).
				Log(`dropped invalid socket, deregister before closing`)
		}
	}
}
