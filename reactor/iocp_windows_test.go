// Copyright 2026 Joseph Cumines
//
// Permission to use, copy, modify, and distribute this software for any
// purpose with or without fee is hereby granted, provided that this copyright
// notice appears in all copies.

//go:build windows

package reactor

import (
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/sys/windows"
)

func TestPoller_slotCompletion(t *testing.T) {
	q := newTestQueue(t)

	var called atomic.Int32
	index, _ := q.table.register(42, KindWritable, func() { called.Add(1) })
	require.NoError(t, windows.PostQueuedCompletionStatus(q.poller.port, uint32(index), keySlot+uintptr(KindWritable), nil))

	n, err := q.ProcessEvents(time.Second)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	assert.Equal(t, int32(1), called.Load())
}

func TestPoller_finishMarkerIsPassedOn(t *testing.T) {
	q := newTestQueue(t)
	q.Finish()
	// the marker stays on the port for waiters that were not counted
	n, err := q.poller.poll(time.Second)
	require.NoError(t, err)
	assert.Zero(t, n)
	n, err = q.poller.poll(time.Second)
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestEmulator_capacity(t *testing.T) {
	q := newTestQueue(t)
	_, server := tcpPair(t)

	emu, err := q.poller.emulator()
	require.NoError(t, err)

	emu.mu.Lock()
	saved := emu.groups
	full := make([]*socketGroup, maxGroups)
	for i := range full {
		full[i] = &socketGroup{sockets: make([]*emulatedSocket, groupSize)}
	}
	emu.groups = full
	emu.mu.Unlock()

	err = q.CallOnReadable(server, func() {})
	assert.ErrorIs(t, err, ErrCapacity)

	emu.mu.Lock()
	emu.groups = saved
	emu.mu.Unlock()

	require.NoError(t, q.CallOnReadable(server, func() {}))
	require.NoError(t, q.Deregister(server))
}

func TestEventQueue_overlapped(t *testing.T) {
	q := newTestQueue(t)

	var got atomic.Uint32
	o, err := q.NewOverlapped(func(n uint32, err error) {
		if err == nil {
			got.Store(n)
		}
	})
	require.NoError(t, err)

	// a completion posted by hand stands in for an I/O operation
	require.NoError(t, windows.PostQueuedCompletionStatus(q.poller.port, 5, keyOverlapped, &o.Overlapped))
	pumpUntil(t, q, func() bool { return got.Load() == 5 })

	o2, err := q.NewOverlapped(func(uint32, error) { t.Error(`released overlapped completed`) })
	require.NoError(t, err)
	q.ReleaseOverlapped(o2)
	require.NoError(t, windows.PostQueuedCompletionStatus(q.poller.port, 1, keyOverlapped, &o2.Overlapped))
	n, err := q.ProcessEvents(time.Second)
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestPoller_timerKeyCarriesFullID(t *testing.T) {
	q := newTestQueue(t)
	q.timers.mu.Lock()
	q.timers.next = maxTimerID - 1
	q.timers.mu.Unlock()

	var called atomic.Int32
	timer, err := q.SetTimer(nil, After(5*time.Millisecond), func() { called.Add(1) })
	require.NoError(t, err)
	defer q.FreeTimer(timer)
	require.Equal(t, maxTimerID, timer.id)

	pumpUntil(t, q, func() bool { return called.Load() == 1 })
}
