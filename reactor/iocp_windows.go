// Copyright 2026 Joseph Cumines
//
// Permission to use, copy, modify, and distribute this software for any
// purpose with or without fee is hereby granted, provided that this copyright
// notice appears in all copies.

//go:build windows

package reactor

import (
	"errors"
	"sync"
	"time"
	"unsafe"

	"github.com/joeycumines/go-reactor/internal/winapi"
	"github.com/joeycumines/go-reactor/socket"
	"github.com/joeycumines/go-reactor/syserr"
	"golang.org/x/sys/windows"
)

// Completion keys. Slot keys carry the slot index in the byte count. Timer
// keys are keyTimer plus the timer id, which maxTimerID keeps in range.
const (
	keyWake uintptr = iota + 1
	keyFinish
	keyOverlapped
	keySlot // + Kind

	keyTimer = keySlot + numKinds // + timer id
)

// nativeTimer is a waitable timer, owned by the emulator thread.
type nativeTimer struct {
	h windows.Handle
}

var invalidNativeTimer = nativeTimer{}

func (x nativeTimer) valid() bool {
	return x.h != 0
}

// poller drains an I/O completion port (Windows).
//
// The port carries scheduled-callback wakes, timer expirations, shutdown
// markers, overlapped completions for handles attached with Associate, and
// socket readiness found by the emulator.
type poller struct {
	q          *EventQueue
	emu        *emulator
	overlapped map[*Overlapped]struct{}
	bufs       sync.Pool
	mu         sync.Mutex
	port       windows.Handle
}

func (p *poller) init(q *EventQueue) error {
	p.q = q
	p.overlapped = make(map[*Overlapped]struct{})
	maxEvents := q.maxEvents
	p.bufs.New = func() any {
		buf := make([]winapi.OverlappedEntry, maxEvents)
		return &buf
	}
	port, err := windows.CreateIoCompletionPort(windows.InvalidHandle, 0, 0, 0)
	if err != nil {
		return syserr.Wrap(`CreateIoCompletionPort`, err)
	}
	p.port = port
	return nil
}

func (p *poller) close() error {
	p.mu.Lock()
	emu := p.emu
	p.emu = nil
	p.mu.Unlock()
	if emu != nil {
		emu.stop()
	}
	if p.port == 0 {
		return nil
	}
	err := windows.CloseHandle(p.port)
	p.port = 0
	return syserr.Wrap(`CloseHandle`, err)
}

// emulator starts the readiness emulator on first use.
func (p *poller) emulator() (*emulator, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.emu != nil {
		return p.emu, nil
	}
	if p.q.closed.Load() {
		return nil, ErrClosed
	}
	emu, err := startEmulator(p.q, p.port)
	if err != nil {
		return nil, err
	}
	p.emu = emu
	return emu, nil
}

func (p *poller) arm(h socket.Handle, index int, kind Kind, _ bool) error {
	emu, err := p.emulator()
	if err != nil {
		return err
	}
	return emu.arm(h, index, kind)
}

func (p *poller) disarm(h socket.Handle, _ int) error {
	p.mu.Lock()
	emu := p.emu
	p.mu.Unlock()
	if emu == nil {
		return nil
	}
	return emu.disarm(h)
}

func (p *poller) poll(timeout time.Duration) (int, error) {
	bufp := p.bufs.Get().(*[]winapi.OverlappedEntry)
	defer p.bufs.Put(bufp)
	buf := *bufp

	ms := uint32(windows.INFINITE)
	if timeout >= 0 {
		ms = uint32(durationToMillis(timeout))
	}
	var removed uint32
	if err := winapi.GetQueuedCompletionStatusEx(p.port, buf, &removed, ms, false); err != nil {
		if errors.Is(err, windows.WAIT_TIMEOUT) {
			return 0, nil
		}
		return 0, syserr.Wrap(`GetQueuedCompletionStatusEx`, err)
	}
	if removed > 0 {
		p.q.metrics.incWakeups()
	}

	var invoked int
	for i := range buf[:removed] {
		e := &buf[i]
		if e.CompletionKey == keyFinish {
			// pass it on to the next waiter
			_ = windows.PostQueuedCompletionStatus(p.port, 0, keyFinish, nil)
			return 0, nil
		}
		if p.q.finished.Load() {
			return 0, nil
		}
		switch key := e.CompletionKey; {
		case key == keyWake:
			invoked += p.q.runScheduled()
		case key > keyTimer:
			if t := p.q.timers.get(uint64(key - keyTimer)); t != nil && p.q.fireTimer(t) {
				invoked++
			}
		case key == keyOverlapped:
			if p.complete(e) {
				invoked++
			}
		case key >= keySlot && key < keySlot+numKinds:
			if p.q.dispatch(int(e.NumberOfBytesTransferred), Kind(key-keySlot)) {
				invoked++
			}
		}
	}
	if p.q.finished.Load() {
		return 0, nil
	}
	return invoked, nil
}

func (p *poller) wake() error {
	return syserr.Wrap(`PostQueuedCompletionStatus`, windows.PostQueuedCompletionStatus(p.port, 0, keyWake, nil))
}

// finish posts a marker per blocked waiter. Each receiver re-posts one, so
// waiters that were not counted yet are released too.
func (p *poller) finish() error {
	n := int(p.q.waiting.Load())
	if n < 1 {
		n = 1
	}
	for range n {
		if err := windows.PostQueuedCompletionStatus(p.port, 0, keyFinish, nil); err != nil {
			return syserr.Wrap(`PostQueuedCompletionStatus`, err)
		}
	}
	return nil
}

// Waitable timers are always one-shot, their completion routine runs on the
// emulator thread, and periodic timers are set again by rearmTimer.

func (p *poller) setTimer(t *Timer, first, _ time.Duration) error {
	emu, err := p.emulator()
	if err != nil {
		return err
	}
	return emu.do(func() error {
		if !t.native.valid() {
			h, err := winapi.CreateWaitableTimer()
			if err != nil {
				return syserr.Wrap(`CreateWaitableTimer`, err)
			}
			t.native.h = h
		}
		return emu.setWaitableTimer(t, first)
	})
}

func (p *poller) ackTimer(*Timer) bool { return true }

func (p *poller) rearmTimer(t *Timer) error {
	emu, err := p.emulator()
	if err != nil {
		return err
	}
	return emu.do(func() error {
		return emu.setWaitableTimer(t, t.interval)
	})
}

func (p *poller) freeTimer(t *Timer) error {
	if !t.native.valid() {
		return nil
	}
	h := t.native.h
	p.mu.Lock()
	emu := p.emu
	p.mu.Unlock()
	if emu == nil {
		return syserr.Wrap(`CloseHandle`, windows.CloseHandle(h))
	}
	return emu.do(func() error {
		_ = winapi.CancelWaitableTimer(h)
		return syserr.Wrap(`CloseHandle`, windows.CloseHandle(h))
	})
}

// Overlapped is an OVERLAPPED for an operation on a handle attached with
// Associate. Its callback is invoked once, on a ProcessEvents goroutine,
// when the operation completes.
type Overlapped struct {
	windows.Overlapped
	cb func(n uint32, err error)
}

// Associate attaches h to the completion port. Operations started on h with
// an Overlapped from NewOverlapped complete through ProcessEvents.
func (q *EventQueue) Associate(h windows.Handle) error {
	if q.closed.Load() {
		return ErrClosed
	}
	_, err := windows.CreateIoCompletionPort(h, q.poller.port, keyOverlapped, 0)
	return syserr.Wrap(`CreateIoCompletionPort`, err)
}

// NewOverlapped allocates an Overlapped, kept alive until its completion is
// dispatched or ReleaseOverlapped is called (for an operation that failed to
// start).
func (q *EventQueue) NewOverlapped(cb func(n uint32, err error)) (*Overlapped, error) {
	if cb == nil {
		return nil, ErrNilCallback
	}
	o := &Overlapped{cb: cb}
	q.poller.mu.Lock()
	q.poller.overlapped[o] = struct{}{}
	q.poller.mu.Unlock()
	return o, nil
}

// ReleaseOverlapped forgets o, whose operation will not complete.
func (q *EventQueue) ReleaseOverlapped(o *Overlapped) {
	q.poller.mu.Lock()
	delete(q.poller.overlapped, o)
	q.poller.mu.Unlock()
}

func (p *poller) complete(e *winapi.OverlappedEntry) bool {
	if e.Overlapped == nil {
		return false
	}
	o := (*Overlapped)(unsafe.Pointer(e.Overlapped))
	p.mu.Lock()
	_, ok := p.overlapped[o]
	delete(p.overlapped, o)
	p.mu.Unlock()
	if !ok {
		return false
	}
	var err error
	if status := windows.NTStatus(o.Internal); status != windows.STATUS_SUCCESS {
		err = syserr.Wrap(`overlapped`, status.Errno())
	}
	p.q.metrics.incCallbacks()
	p.q.invoke(func() { o.cb(e.NumberOfBytesTransferred, err) })
	return true
}
